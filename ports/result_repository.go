package ports

import (
	"context"

	"phasegrid/domain/core"
	"phasegrid/domain/phases"
	"phasegrid/domain/plates"
)

// AnalysisRun records one full segmentation pass over an experiment
type AnalysisRun struct {
	ID         core.RunID     `json:"id"`
	StartedAt  core.Timestamp `json:"started_at"`
	FinishedAt core.Timestamp `json:"finished_at"`
	Plates     int            `json:"plates"`
	Curves     int            `json:"curves"`
}

// ResultRepository defines the interface for persisting analysis output
type ResultRepository interface {
	// Run bookkeeping
	CreateRun(ctx context.Context, run *AnalysisRun) error
	FinishRun(ctx context.Context, run *AnalysisRun) error
	GetRun(ctx context.Context, id core.RunID) (*AnalysisRun, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*AnalysisRun, error)

	// Per-plate payloads
	SavePhaseGrid(ctx context.Context, runID core.RunID, plate int, grid *plates.PhaseGrid) error
	GetPhaseGrid(ctx context.Context, runID core.RunID, plate int) (*plates.PhaseGrid, error)

	SaveMetaPhenotype(ctx context.Context, runID core.RunID, plate int, kind phases.MetaPhenotype, grid *plates.FloatGrid) error
	GetMetaPhenotype(ctx context.Context, runID core.RunID, plate int, kind phases.MetaPhenotype) (*plates.FloatGrid, error)
	ListMetaPhenotypes(ctx context.Context, runID core.RunID, plate int) ([]phases.MetaPhenotype, error)

	SaveTensor(ctx context.Context, runID core.RunID, plate int, tensor *plates.AlignedTensor) error
	GetTensor(ctx context.Context, runID core.RunID, plate int) (*plates.AlignedTensor, error)
}
