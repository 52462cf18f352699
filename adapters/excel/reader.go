package excel

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"phasegrid/domain/curves"
	"phasegrid/domain/plates"
	"phasegrid/internal"
	"phasegrid/ports"
)

// Series labels in the curve workbook. Every curve occupies four rows, one
// per series, keyed by plate position.
const (
	seriesTime        = "time"
	seriesValue       = "value"
	seriesFirstDeriv  = "first_derivative"
	seriesSecondDeriv = "second_derivative"
	seriesFilter      = "filter"
)

// CurveReader loads preprocessed growth curves from an xlsx workbook. Sheets
// named "Plate N" hold one plate each; rows are
// (row, col, series, sample values...) with the four curve series per
// position and an optional single filter row per position.
type CurveReader struct {
	filePath string
	log      *internal.Logger
}

// NewCurveReader creates a curve reader backed by one workbook
func NewCurveReader(filePath string) ports.CurveSource {
	return &CurveReader{
		filePath: filePath,
		log:      internal.NewDefaultLogger("excel reader"),
	}
}

// PlateCount counts the plate sheets in the workbook
func (r *CurveReader) PlateCount(ctx context.Context) (int, error) {
	f, err := r.open()
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	for _, name := range f.GetSheetList() {
		if _, ok := plateIndex(name); ok {
			count++
		}
	}
	return count, nil
}

// LoadPlate reads one plate's curves
func (r *CurveReader) LoadPlate(ctx context.Context, index int) (*curves.Plate, error) {
	rows, err := r.sheetRows(index)
	if err != nil {
		return nil, err
	}

	type cellSeries map[string][]float64
	data := make(map[plates.Coord]cellSeries)
	maxRow, maxCol := -1, -1

	for i, row := range rows {
		if i == 0 || len(row) < 4 {
			continue
		}
		coord, series, values, err := parseCurveRow(row)
		if err != nil {
			return nil, fmt.Errorf("plate %d row %d: %w", index, i+1, err)
		}
		if series == seriesFilter {
			continue
		}
		if _, ok := data[coord]; !ok {
			data[coord] = make(cellSeries, 4)
		}
		data[coord][series] = values
		if coord.Row > maxRow {
			maxRow = coord.Row
		}
		if coord.Col > maxCol {
			maxCol = coord.Col
		}
	}
	if maxRow < 0 {
		return nil, fmt.Errorf("plate %d holds no curves", index)
	}

	plate, err := curves.NewPlate(maxRow+1, maxCol+1)
	if err != nil {
		return nil, err
	}

	coords := make([]plates.Coord, 0, len(data))
	for coord := range data {
		coords = append(coords, coord)
	}
	sort.Slice(coords, func(a, b int) bool {
		if coords[a].Row != coords[b].Row {
			return coords[a].Row < coords[b].Row
		}
		return coords[a].Col < coords[b].Col
	})

	for _, coord := range coords {
		cs := data[coord]
		curve, err := curves.NewGrowthCurve(cs[seriesTime], cs[seriesValue], cs[seriesFirstDeriv], cs[seriesSecondDeriv])
		if err != nil {
			return nil, fmt.Errorf("plate %d position (%d, %d): %w", index, coord.Row, coord.Col, err)
		}
		plate.Set(coord.Row, coord.Col, curve)
	}

	r.log.Debug("plate %d loaded %d curves (%dx%d)", index, len(coords), plate.Rows, plate.Cols)
	return plate, nil
}

// LoadFilter reads the plate's optional quality-control rows. A filter row
// carries a single nonzero value to exclude the position; plates without
// filter rows come back nil.
func (r *CurveReader) LoadFilter(ctx context.Context, index int) (plates.Filter, error) {
	rows, err := r.sheetRows(index)
	if err != nil {
		return nil, err
	}

	type mark struct {
		coord    plates.Coord
		excluded bool
	}
	var marks []mark
	maxRow, maxCol := -1, -1

	for i, row := range rows {
		if i == 0 || len(row) < 4 {
			continue
		}
		coord, series, values, err := parseCurveRow(row)
		if err != nil {
			return nil, fmt.Errorf("plate %d row %d: %w", index, i+1, err)
		}
		if coord.Row > maxRow {
			maxRow = coord.Row
		}
		if coord.Col > maxCol {
			maxCol = coord.Col
		}
		if series != seriesFilter || len(values) == 0 {
			continue
		}
		marks = append(marks, mark{coord, values[0] != 0})
	}
	if len(marks) == 0 {
		return nil, nil
	}

	filter := plates.NewFilter(maxRow+1, maxCol+1)
	for _, m := range marks {
		filter[m.coord.Row][m.coord.Col] = m.excluded
	}
	return filter, nil
}

func (r *CurveReader) open() (*excelize.File, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("curve workbook not found: %s", r.filePath)
	}
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return f, nil
}

func (r *CurveReader) sheetRows(index int) ([][]string, error) {
	f, err := r.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := fmt.Sprintf("Plate %d", index+1)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// parseCurveRow decodes (row, col, series, samples...) from one sheet row.
// Blank sample cells decode to NaN.
func parseCurveRow(cells []string) (plates.Coord, string, []float64, error) {
	row, err := strconv.Atoi(strings.TrimSpace(cells[0]))
	if err != nil {
		return plates.Coord{}, "", nil, fmt.Errorf("bad row index %q", cells[0])
	}
	col, err := strconv.Atoi(strings.TrimSpace(cells[1]))
	if err != nil {
		return plates.Coord{}, "", nil, fmt.Errorf("bad column index %q", cells[1])
	}
	series := strings.TrimSpace(strings.ToLower(cells[2]))

	values := make([]float64, 0, len(cells)-3)
	for _, cell := range cells[3:] {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			values = append(values, math.NaN())
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return plates.Coord{}, "", nil, fmt.Errorf("bad sample %q", cell)
		}
		values = append(values, v)
	}
	return plates.Coord{Row: row, Col: col}, series, values, nil
}

// plateIndex extracts N from a "Plate N" sheet name
func plateIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, "Plate ") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, "Plate "))
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}
