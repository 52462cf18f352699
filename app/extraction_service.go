package app

import (
	"context"
	"fmt"
	"time"

	"phasegrid/domain/core"
	"phasegrid/domain/phases"
	"phasegrid/domain/plates"
	"phasegrid/internal"
	"phasegrid/internal/extraction"
	"phasegrid/ports"
)

// ExtractionService computes plate-level meta phenotype arrays from the
// phase grids an analysis run produced
type ExtractionService struct {
	extractor *extraction.Extractor
	repo      ports.ResultRepository
	log       *internal.Logger
}

// PlateExtraction is the extraction output for one plate
type PlateExtraction struct {
	Plate     int                                             `json:"plate"`
	Arrays    map[phases.MetaPhenotype]*plates.FloatGrid      `json:"arrays"`
	Summaries map[phases.MetaPhenotype]extraction.PlateSummary `json:"summaries"`
}

// NewExtractionService creates an extraction service. Repo may be nil.
func NewExtractionService(extractor *extraction.Extractor, repo ports.ResultRepository) *ExtractionService {
	return &ExtractionService{
		extractor: extractor,
		repo:      repo,
		log:       internal.NewDefaultLogger("extraction"),
	}
}

// ExtractPlate computes every registered meta phenotype for one plate
func (s *ExtractionService) ExtractPlate(ctx context.Context, runID core.RunID, plate int, in extraction.Inputs) (*PlateExtraction, error) {
	startTime := time.Now()

	arrays, err := s.extractor.ExtractAll(ctx, in, phases.AllMetaPhenotypes())
	if err != nil {
		return nil, fmt.Errorf("extract plate %d: %w", plate, err)
	}

	out := &PlateExtraction{
		Plate:     plate,
		Arrays:    arrays,
		Summaries: make(map[phases.MetaPhenotype]extraction.PlateSummary, len(arrays)),
	}
	for kind, grid := range arrays {
		out.Summaries[kind] = extraction.Summarize(grid)
		if s.repo != nil {
			if err := s.repo.SaveMetaPhenotype(ctx, runID, plate, kind, grid); err != nil {
				return nil, fmt.Errorf("save %s for plate %d: %w", kind, plate, err)
			}
		}
	}

	s.log.Info("plate %d yielded %d meta phenotype arrays in %dms",
		plate, len(arrays), time.Since(startTime).Milliseconds())
	return out, nil
}
