package app

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"phasegrid/domain/core"
	"phasegrid/domain/curves"
	"phasegrid/domain/phases"
	"phasegrid/domain/plates"
	"phasegrid/internal"
	"phasegrid/internal/extraction"
	"phasegrid/internal/phenotypes"
	"phasegrid/internal/segmentation"
	"phasegrid/ports"
)

// AnalysisService turns raw plates of curves into per-cell phase vectors
type AnalysisService struct {
	engine  *segmentation.Engine
	calc    *phenotypes.Calculator
	repo    ports.ResultRepository
	log     *internal.Logger
	workers int64
}

// PlateResult is the complete segmentation output for one plate
type PlateResult struct {
	Plate       int                      `json:"plate"`
	Grid        *plates.PhaseGrid        `json:"grid"`
	LowPoint    *plates.LowPoint         `json:"low_point"`
	Frequencies map[phases.Phase][]int   `json:"frequencies"`
	Curves      int                      `json:"curves"`
}

// AnalysisResult is the per-run output across all plates
type AnalysisResult struct {
	RunID     core.RunID    `json:"run_id"`
	Plates    []PlateResult `json:"plates"`
	RuntimeMs int64         `json:"runtime_ms"`
}

// NewAnalysisService creates an analysis service. Repo may be nil when the
// caller only needs in-memory results.
func NewAnalysisService(engine *segmentation.Engine, calc *phenotypes.Calculator, repo ports.ResultRepository) *AnalysisService {
	return &AnalysisService{
		engine:  engine,
		calc:    calc,
		repo:    repo,
		log:     internal.NewDefaultLogger("analysis"),
		workers: int64(runtime.NumCPU()),
	}
}

// AnalyzeAll runs segmentation and per-segment phenotyping over every plate
// of the source, persisting results when a repository is configured.
func (s *AnalysisService) AnalyzeAll(ctx context.Context, source ports.CurveSource) (*AnalysisResult, error) {
	startTime := time.Now()
	runID := core.RunID(core.NewID())

	count, err := source.PlateCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("plate count: %w", err)
	}

	run := &ports.AnalysisRun{ID: runID, StartedAt: core.Now(), Plates: count}
	if s.repo != nil {
		if err := s.repo.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
	}

	result := &AnalysisResult{RunID: runID}
	totalCurves := 0
	for i := 0; i < count; i++ {
		plate, err := source.LoadPlate(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("load plate %d: %w", i, err)
		}
		pr, err := s.AnalyzePlate(ctx, i, plate)
		if err != nil {
			return nil, fmt.Errorf("analyze plate %d: %w", i, err)
		}
		if s.repo != nil {
			if err := s.repo.SavePhaseGrid(ctx, runID, i, pr.Grid); err != nil {
				return nil, fmt.Errorf("save plate %d: %w", i, err)
			}
		}
		totalCurves += pr.Curves
		result.Plates = append(result.Plates, *pr)
	}

	result.RuntimeMs = time.Since(startTime).Milliseconds()
	if s.repo != nil {
		run.FinishedAt = core.Now()
		run.Curves = totalCurves
		if err := s.repo.FinishRun(ctx, run); err != nil {
			return nil, fmt.Errorf("finish run: %w", err)
		}
	}
	s.log.Info("run %s segmented %d curves on %d plates in %dms", runID, totalCurves, count, result.RuntimeMs)
	return result, nil
}

// AnalyzePlate segments every curve of one plate in parallel and builds the
// phase grid plus the experiment low point used by the alternative lag model
func (s *AnalysisService) AnalyzePlate(ctx context.Context, index int, plate *curves.Plate) (*PlateResult, error) {
	grid, err := plates.NewPhaseGrid(plate.Rows, plate.Cols)
	if err != nil {
		return nil, err
	}
	low := &plates.LowPoint{
		Value: plates.NewFloatGrid(plate.Rows, plate.Cols),
		When:  plates.NewFloatGrid(plate.Rows, plate.Cols),
	}

	sem := semaphore.NewWeighted(s.workers)
	var wg sync.WaitGroup
	curveCount := 0
	labels := make([][]phases.Phase, plate.Rows*plate.Cols)

	for r := 0; r < plate.Rows; r++ {
		for c := 0; c < plate.Cols; c++ {
			curve := plate.At(r, c)
			if curve == nil {
				continue
			}
			curveCount++
			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return nil, err
			}
			wg.Add(1)
			go func(r, c int, curve *curves.GrowthCurve) {
				defer wg.Done()
				defer sem.Release(1)
				segments := s.engine.Segment(curve)
				grid.Set(r, c, s.calc.BuildVector(curve, segments))
				labels[r*plate.Cols+c] = phases.ExpandLabels(segments)
				v, t := lowPoint(curve)
				low.Value.Set(r, c, v)
				low.When.Set(r, c, t)
			}(r, c, curve)
		}
	}
	wg.Wait()

	return &PlateResult{
		Plate:       index,
		Grid:        grid,
		LowPoint:    low,
		Frequencies: extraction.AssignmentFrequencies(labels),
		Curves:      curveCount,
	}, nil
}

// lowPoint finds the curve's minimum population size in absolute units and
// the time it was observed. Curve values are log2 population sizes.
func lowPoint(curve *curves.GrowthCurve) (value, when float64) {
	value, when = math.NaN(), math.NaN()
	best := math.Inf(1)
	for i, v := range curve.Values {
		if math.IsNaN(v) || v >= best {
			continue
		}
		best = v
		value = math.Exp2(v)
		when = curve.Times[i]
	}
	return value, when
}
