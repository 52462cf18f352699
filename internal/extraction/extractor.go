package extraction

import (
	"context"
	"runtime"

	"phasegrid/domain/core"
	"phasegrid/domain/phases"
	"phasegrid/domain/plates"
	"phasegrid/internal"
)

// Extractor computes plate-level meta phenotypes from a grid of phase
// vectors. Every kind maps to one pure per-cell function applied
// independently across the plate; a cell with missing or malformed data
// degrades to NaN without aborting the rest of the plate.
type Extractor struct {
	log     *internal.Logger
	workers int64
}

// NewExtractor creates an extractor with one worker per CPU
func NewExtractor() *Extractor {
	return &Extractor{
		log:     internal.NewDefaultLogger("meta-phenotype extraction"),
		workers: int64(runtime.NumCPU()),
	}
}

// Inputs bundles the externally supplied plate context. Filter and LowPoint
// may be nil; LowPoint is required only by the alternative lag model.
type Inputs struct {
	Grid     *plates.PhaseGrid
	Filter   plates.Filter
	LowPoint *plates.LowPoint
}

// Extract computes one meta phenotype across the plate. Cells excluded by
// the quality-control filter come back NaN.
func (e *Extractor) Extract(ctx context.Context, in Inputs, kind phases.MetaPhenotype) (*plates.FloatGrid, error) {
	fn, err := e.cellFunc(in, kind)
	if err != nil {
		return nil, err
	}
	return e.mapCells(ctx, in, fn)
}

// ExtractAll computes every requested kind, sequential across kinds and
// parallel within each plate pass.
func (e *Extractor) ExtractAll(ctx context.Context, in Inputs, kinds []phases.MetaPhenotype) (map[phases.MetaPhenotype]*plates.FloatGrid, error) {
	out := make(map[phases.MetaPhenotype]*plates.FloatGrid, len(kinds))
	for _, kind := range kinds {
		grid, err := e.Extract(ctx, in, kind)
		if err != nil {
			return nil, err
		}
		out[kind] = grid
	}
	return out, nil
}

// cellFunc resolves the per-cell algorithm for one meta phenotype kind
func (e *Extractor) cellFunc(in Inputs, kind phases.MetaPhenotype) (cellFunc, error) {
	switch kind {
	case phases.MetaModalities:
		return func(pv phases.PhaseVector, _ plates.Coord) float64 {
			return countImpulses(pv)
		}, nil

	case phases.MetaModalitiesAlternativeModel:
		return func(pv phases.PhaseVector, _ plates.Coord) float64 {
			return countInnerImpulses(pv)
		}, nil

	case phases.MetaCollapses:
		return func(pv phases.PhaseVector, _ plates.Coord) float64 {
			return countCollapses(pv)
		}, nil

	case phases.MetaMajorImpulseYieldContribution:
		return rankedImpulseMeasure(1, phases.PhenotypePopulationDoublings), nil

	case phases.MetaFirstMinorImpulseYieldContribution:
		return rankedImpulseMeasure(2, phases.PhenotypePopulationDoublings), nil

	case phases.MetaMajorImpulseAveragePopulationDoublingTime:
		return rankedImpulseMeasure(1, phases.PhenotypePopulationDoublingTime), nil

	case phases.MetaFirstMinorImpulseAveragePopulationDoublingTime:
		return rankedImpulseMeasure(2, phases.PhenotypePopulationDoublingTime), nil

	case phases.MetaMajorImpulseFlankAsymmetry:
		return func(pv phases.PhaseVector, coord plates.Coord) float64 {
			return flankAsymmetry(pv, coord, e.log)
		}, nil

	case phases.MetaInitialAccelerationAsymptoteAngle:
		return phaseMeasure(phases.PhaseAcceleration, phases.PhenotypeAsymptoteAngle, false), nil

	case phases.MetaFinalRetardationAsymptoteAngle:
		return phaseMeasure(phases.PhaseRetardation, phases.PhenotypeAsymptoteAngle, true), nil

	case phases.MetaInitialAccelerationAsymptoteIntersect:
		return phaseMeasure(phases.PhaseAcceleration, phases.PhenotypeAsymptoteIntersection, false), nil

	case phases.MetaFinalRetardationAsymptoteIntersect:
		return phaseMeasure(phases.PhaseRetardation, phases.PhenotypeAsymptoteIntersection, true), nil

	case phases.MetaInitialLag:
		return func(pv phases.PhaseVector, _ plates.Coord) float64 {
			return initialLag(pv)
		}, nil

	case phases.MetaTimeBeforeMajorGrowth:
		return func(pv phases.PhaseVector, _ plates.Coord) float64 {
			return timeBeforeMajorGrowth(pv)
		}, nil

	case phases.MetaInitialLagAlternativeModel:
		low := in.LowPoint
		return func(pv phases.PhaseVector, coord plates.Coord) float64 {
			if low == nil || low.Value == nil || low.When == nil {
				return nan()
			}
			return initialLagAlternative(pv, low.Value.At(coord.Row, coord.Col), low.When.At(coord.Row, coord.Col))
		}, nil

	default:
		return nil, core.ErrUnknownMetaPhenotype
	}
}
