package ports

import (
	"context"

	"phasegrid/domain/core"
	"phasegrid/domain/phases"
	"phasegrid/domain/plates"
	"phasegrid/internal/extraction"
)

// PlateExport bundles everything one plate contributes to a workbook or report
type PlateExport struct {
	Plate     int
	Arrays    map[phases.MetaPhenotype]*plates.FloatGrid
	Summaries map[phases.MetaPhenotype]extraction.PlateSummary
	Tensor    *plates.AlignedTensor
}

// Exporter defines the interface for writing analysis results to a file
type Exporter interface {
	Export(ctx context.Context, runID core.RunID, exports []PlateExport) error
}
