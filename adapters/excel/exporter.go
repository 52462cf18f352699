package excel

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"phasegrid/domain/core"
	"phasegrid/domain/phases"
	"phasegrid/internal"
	"phasegrid/ports"
)

// Exporter writes analysis results to an xlsx workbook: one sheet per plate
// with the meta-phenotype arrays stacked as labeled blocks, one sheet per
// plate for the aligned tensor, and a summary sheet across all plates.
type Exporter struct {
	filePath string
	log      *internal.Logger
}

// NewExporter creates an exporter writing to the given workbook path
func NewExporter(filePath string) *Exporter {
	return &Exporter{
		filePath: filePath,
		log:      internal.NewDefaultLogger("excel exporter"),
	}
}

// Export writes every plate's arrays, tensor and summaries
func (e *Exporter) Export(ctx context.Context, runID core.RunID, exports []ports.PlateExport) error {
	startTime := time.Now()
	f := excelize.NewFile()
	defer f.Close()

	if err := e.writeSummarySheet(f, runID, exports); err != nil {
		return err
	}
	for _, pe := range exports {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.writePhenotypeSheet(f, pe); err != nil {
			return err
		}
		if pe.Tensor != nil {
			if err := e.writeTensorSheet(f, pe); err != nil {
				return err
			}
		}
	}

	// The default sheet excelize creates is replaced by the summary.
	if err := f.SaveAs(e.filePath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	e.log.Info("run %s exported %d plates to %s in %dms",
		runID, len(exports), e.filePath, time.Since(startTime).Milliseconds())
	return nil
}

// writeSummarySheet renames the default sheet and fills the per-kind
// descriptive statistics for every plate
func (e *Exporter) writeSummarySheet(f *excelize.File, runID core.RunID, exports []ports.PlateExport) error {
	const sheet = "Summary"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	header := []interface{}{"run", "plate", "phenotype", "mean", "median", "std_dev", "min", "max", "q25", "q75", "finite", "total"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}

	rowNum := 2
	for _, pe := range exports {
		for _, kind := range phases.AllMetaPhenotypes() {
			s, ok := pe.Summaries[kind]
			if !ok {
				continue
			}
			row := []interface{}{
				string(runID), pe.Plate, string(kind),
				cellValue(s.Mean), cellValue(s.Median), cellValue(s.StdDev),
				cellValue(s.Min), cellValue(s.Max), cellValue(s.Q25), cellValue(s.Q75),
				s.FiniteCount, s.TotalCount,
			}
			if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", rowNum), &row); err != nil {
				return fmt.Errorf("failed to write summary row: %w", err)
			}
			rowNum++
		}
	}
	return nil
}

// writePhenotypeSheet stacks one labeled block per meta-phenotype array
func (e *Exporter) writePhenotypeSheet(f *excelize.File, pe ports.PlateExport) error {
	sheet := fmt.Sprintf("Plate %d phenotypes", pe.Plate+1)
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", sheet, err)
	}

	rowNum := 1
	for _, kind := range phases.AllMetaPhenotypes() {
		grid, ok := pe.Arrays[kind]
		if !ok {
			continue
		}
		label := []interface{}{string(kind)}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", rowNum), &label); err != nil {
			return fmt.Errorf("failed to write block label: %w", err)
		}
		rowNum++
		for r := 0; r < grid.Rows; r++ {
			row := make([]interface{}, grid.Cols)
			for c := 0; c < grid.Cols; c++ {
				row[c] = cellValue(grid.At(r, c))
			}
			if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", rowNum), &row); err != nil {
				return fmt.Errorf("failed to write array row: %w", err)
			}
			rowNum++
		}
		rowNum++
	}
	return nil
}

// writeTensorSheet emits the aligned tensor: a two-row header describing the
// slot layout, then one row per curve position
func (e *Exporter) writeTensorSheet(f *excelize.File, pe ports.PlateExport) error {
	sheet := fmt.Sprintf("Plate %d tensor", pe.Plate+1)
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", sheet, err)
	}
	t := pe.Tensor

	slotHeader := []interface{}{"row", "col"}
	nameHeader := []interface{}{"", ""}
	for i, slot := range t.Layout {
		for _, name := range slot.Phenotypes {
			slotHeader = append(slotHeader, fmt.Sprintf("slot %d (%s)", i+1, slot.Phase))
			nameHeader = append(nameHeader, string(name))
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &slotHeader); err != nil {
		return fmt.Errorf("failed to write tensor header: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A2", &nameHeader); err != nil {
		return fmt.Errorf("failed to write tensor header: %w", err)
	}

	rowNum := 3
	for r := 0; r < t.Rows; r++ {
		for c := 0; c < t.Cols; c++ {
			row := make([]interface{}, 0, t.Width+2)
			row = append(row, r, c)
			for _, v := range t.Values[r][c] {
				row = append(row, cellValue(v))
			}
			if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", rowNum), &row); err != nil {
				return fmt.Errorf("failed to write tensor row: %w", err)
			}
			rowNum++
		}
	}
	return nil
}

// cellValue maps non-finite sentinels to their string spellings; xlsx cells
// cannot hold them as numbers
func cellValue(v float64) interface{} {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return v
}

var _ ports.Exporter = (*Exporter)(nil)
