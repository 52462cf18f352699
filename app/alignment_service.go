package app

import (
	"context"
	"fmt"
	"time"

	"phasegrid/domain/core"
	"phasegrid/domain/plates"
	"phasegrid/internal"
	"phasegrid/internal/alignment"
	"phasegrid/ports"
)

// AlignmentService builds cross-curve aligned phenotype tensors
type AlignmentService struct {
	opts alignment.Options
	repo ports.ResultRepository
	log  *internal.Logger
}

// NewAlignmentService creates an alignment service. Repo may be nil.
func NewAlignmentService(opts alignment.Options, repo ports.ResultRepository) *AlignmentService {
	return &AlignmentService{
		opts: opts,
		repo: repo,
		log:  internal.NewDefaultLogger("alignment"),
	}
}

// AlignPlate aligns the phase structures of one plate's curves and emits the
// aligned phenotype tensor
func (s *AlignmentService) AlignPlate(ctx context.Context, runID core.RunID, plate int, grid *plates.PhaseGrid, filter plates.Filter, endTime float64) (*plates.AlignedTensor, error) {
	startTime := time.Now()

	session := alignment.NewSession(grid, filter, endTime, s.opts)
	tensor := session.Tensor()

	if s.repo != nil {
		if err := s.repo.SaveTensor(ctx, runID, plate, tensor); err != nil {
			return nil, fmt.Errorf("save tensor for plate %d: %w", plate, err)
		}
	}

	s.log.Info("plate %d aligned %d curves into %d slots (%d columns) in %dms",
		plate, session.CurveCount(), len(tensor.Layout), tensor.Width,
		time.Since(startTime).Milliseconds())
	return tensor, nil
}
