package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"phasegrid/domain/core"
	"phasegrid/domain/phases"
	"phasegrid/internal"
	"phasegrid/ports"
)

// Writer renders a run report as markdown and as the HTML produced from it.
// The report carries the per-plate summary tables and the aligned tensor
// layout for a quick human pass over a run before touching the workbook.
type Writer struct {
	dir string
	log *internal.Logger
}

// NewWriter creates a report writer targeting one output directory
func NewWriter(dir string) *Writer {
	return &Writer{
		dir: dir,
		log: internal.NewDefaultLogger("report"),
	}
}

// Export renders the run report. Both the .md and .html files land next to
// each other, named after the run.
func (w *Writer) Export(ctx context.Context, runID core.RunID, exports []ports.PlateExport) error {
	md := w.render(runID, exports)

	mdPath := filepath.Join(w.dir, fmt.Sprintf("run-%s.md", runID))
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.CompletePage})
	html := markdown.ToHTML([]byte(md), p, renderer)

	htmlPath := filepath.Join(w.dir, fmt.Sprintf("run-%s.html", runID))
	if err := os.WriteFile(htmlPath, html, 0o644); err != nil {
		return fmt.Errorf("failed to write html report: %w", err)
	}

	w.log.Info("run %s report written to %s", runID, w.dir)
	return nil
}

// render builds the markdown source for the run report
func (w *Writer) render(runID core.RunID, exports []ports.PlateExport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Growth phase analysis run %s\n\n", runID)
	fmt.Fprintf(&b, "Generated %s.\n\n", time.Now().Format(time.RFC3339))

	for _, pe := range exports {
		fmt.Fprintf(&b, "## Plate %d\n\n", pe.Plate+1)

		if len(pe.Summaries) > 0 {
			b.WriteString("| phenotype | mean | median | std dev | finite / total |\n")
			b.WriteString("|---|---|---|---|---|\n")
			for _, kind := range phases.AllMetaPhenotypes() {
				s, ok := pe.Summaries[kind]
				if !ok {
					continue
				}
				fmt.Fprintf(&b, "| %s | %.4g | %.4g | %.4g | %d / %d |\n",
					kind, s.Mean, s.Median, s.StdDev, s.FiniteCount, s.TotalCount)
			}
			b.WriteString("\n")
		}

		if pe.Tensor != nil {
			fmt.Fprintf(&b, "Aligned tensor: %d slots, %d columns per curve.\n\n", len(pe.Tensor.Layout), pe.Tensor.Width)
			b.WriteString("| slot | phase | anchor | columns |\n")
			b.WriteString("|---|---|---|---|\n")
			for i, slot := range pe.Tensor.Layout {
				fmt.Fprintf(&b, "| %d | %s | %.4f | %d |\n", i+1, slot.Phase, slot.Anchor, len(slot.Phenotypes))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

var _ ports.Exporter = (*Writer)(nil)
