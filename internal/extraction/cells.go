package extraction

import (
	"math"
	"sort"

	"phasegrid/domain/phases"
	"phasegrid/domain/plates"
	"phasegrid/internal"
)

// cellFunc computes one meta phenotype for a single cell
type cellFunc func(pv phases.PhaseVector, coord plates.Coord) float64

func nan() float64 { return math.NaN() }

// doublingsOrNegInf treats a missing or NaN doublings value as -Inf so the
// yield ranking always places unusable segments first.
func doublingsOrNegInf(e phases.Entry) float64 {
	v := e.Phenotypes.Get(phases.PhenotypePopulationDoublings)
	if math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}

// yieldOrder returns the entry indices sorted ascending by population
// doublings. The sort is stable: ties keep earlier segments first.
func yieldOrder(pv phases.PhaseVector) []int {
	order := make([]int, len(pv))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return doublingsOrNegInf(pv[order[a]]) < doublingsOrNegInf(pv[order[b]])
	})
	return order
}

// rankedImpulse returns the impulse entry at the given yield rank (1 = major,
// 2 = first minor). Nil when the curve has fewer impulses than the rank.
func rankedImpulse(pv phases.PhaseVector, rank int) *phases.Entry {
	var impulses []int
	for i, e := range pv {
		if e.Phase == phases.PhaseImpulse {
			impulses = append(impulses, i)
		}
	}
	if len(impulses) < rank {
		return nil
	}
	sort.SliceStable(impulses, func(a, b int) bool {
		return doublingsOrNegInf(pv[impulses[a]]) < doublingsOrNegInf(pv[impulses[b]])
	})
	idx := impulses[len(impulses)-rank]
	return &pv[idx]
}

// rankedImpulseMeasure builds a cell function returning one measure of the
// impulse at the given yield rank
func rankedImpulseMeasure(rank int, measure phases.SegmentPhenotype) cellFunc {
	return func(pv phases.PhaseVector, _ plates.Coord) float64 {
		e := rankedImpulse(pv, rank)
		if e == nil {
			return nan()
		}
		return e.Phenotypes.Get(measure)
	}
}

// MajorImpulseIndex returns the original entry index of the curve's major
// impulse: the impulse holding the highest position in the whole vector's
// yield sort order. -1 when the curve has no impulse.
func MajorImpulseIndex(pv phases.PhaseVector) int {
	order := yieldOrder(pv)
	for i := len(order) - 1; i >= 0; i-- {
		if pv[order[i]].Phase == phases.PhaseImpulse {
			return order[i]
		}
	}
	return -1
}

// phaseMeasure builds a cell function returning one measure of the first (or
// last) occurrence of a phase
func phaseMeasure(phase phases.Phase, measure phases.SegmentPhenotype, last bool) cellFunc {
	return func(pv phases.PhaseVector, _ plates.Coord) float64 {
		indices := pv.Indices(phase)
		if len(indices) == 0 {
			return nan()
		}
		idx := indices[0]
		if last {
			idx = indices[len(indices)-1]
		}
		return pv[idx].Phenotypes.Get(measure)
	}
}

// countImpulses counts impulse entries; a nil vector is malformed data
func countImpulses(pv phases.PhaseVector) float64 {
	if pv == nil {
		return nan()
	}
	return float64(pv.Count(phases.PhaseImpulse))
}

// countInnerImpulses counts impulses strictly inside the main growth arc:
// between the first acceleration and the last retardation. NaN when either
// anchor phase is absent; an empty arc (last retardation before the first
// acceleration) counts zero.
func countInnerImpulses(pv phases.PhaseVector) float64 {
	if pv == nil {
		return nan()
	}
	acc := pv.Indices(phases.PhaseAcceleration)
	if len(acc) == 0 {
		return nan()
	}
	ret := pv.Indices(phases.PhaseRetardation)
	if len(ret) == 0 {
		return nan()
	}
	if ret[len(ret)-1] < acc[0] {
		return 0
	}
	inner := pv[acc[0]:ret[len(ret)-1]]
	return float64(inner.Count(phases.PhaseImpulse))
}

// countCollapses counts collapse entries
func countCollapses(pv phases.PhaseVector) float64 {
	if pv == nil {
		return nan()
	}
	return float64(pv.Count(phases.PhaseCollapse))
}

// flankAngle measures one flank of the major impulse. A missing flank (curve
// boundary) degrades to the angle of the impulse slope against a unit-slope
// reference; a flat flank yields the pseudo-angle between the two fitted
// lines; curvature flanks contribute their asymptote angle; anything else is
// maximally asymmetric.
func flankAngle(flank *phases.Entry, impulse phases.Entry) float64 {
	impulseSlope := impulse.Phenotypes.Get(phases.PhenotypeLinearSlope)

	switch {
	case flank == nil:
		return math.Atan2(1, impulseSlope)
	case flank.Phase == phases.PhaseFlat:
		flatSlope := flank.Phenotypes.Get(phases.PhenotypeLinearSlope)
		return math.Pi - math.Abs(math.Atan2(1, impulseSlope)-math.Atan2(1, flatSlope))
	case flank.Phase.IsNonLinear():
		return flank.Phenotypes.Get(phases.PhenotypeAsymptoteAngle)
	default:
		return math.Inf(1)
	}
}

// flankAsymmetry computes the right/left flank angle ratio of the major
// impulse. +Inf marks "computed but maximally bad": no major impulse, missing
// phenotype data, or an inconsistent phase label (logged as an error).
func flankAsymmetry(pv phases.PhaseVector, coord plates.Coord, log *internal.Logger) float64 {
	if pv == nil {
		return nan()
	}
	mi := MajorImpulseIndex(pv)
	if mi < 0 || pv[mi].Phenotypes == nil {
		return math.Inf(1)
	}
	if pv[mi].Phase != phases.PhaseImpulse {
		log.Error("got index %d as impulse but is %s at (%d, %d)", mi, pv[mi].Phase, coord.Row, coord.Col)
		return math.Inf(1)
	}

	var left, right *phases.Entry
	if mi > 0 {
		left = &pv[mi-1]
	}
	if mi < len(pv)-1 {
		right = &pv[mi+1]
	}

	a1 := flankAngle(left, pv[mi])
	a2 := flankAngle(right, pv[mi])
	return a2 / a1
}

// lineCrossing returns the time where two fitted lines cross:
// (m2 - m1) / (k1 - k2). Lag cannot precede the flat phase, so negative
// crossings are invalid.
func lineCrossing(flatSlope, flatIntercept, impulseSlope, impulseIntercept float64) float64 {
	lag := (impulseIntercept - flatIntercept) / (flatSlope - impulseSlope)
	if lag < 0 {
		return nan()
	}
	return lag
}

// initialLag computes the crossing time of the first flat model and the
// model of the first impulse following a flat phase
func initialLag(pv phases.PhaseVector) float64 {
	if pv == nil {
		return nan()
	}
	flats := pv.Indices(phases.PhaseFlat)
	if len(flats) == 0 {
		return nan()
	}
	flat := pv[flats[0]]

	impulseIdx := pv.IndexOfSequence(phases.PhaseFlat, phases.PhaseImpulse)
	if impulseIdx < 0 {
		return nan()
	}
	impulse := pv[impulseIdx]

	return lineCrossing(
		flat.Phenotypes.Get(phases.PhenotypeLinearSlope),
		flat.Phenotypes.Get(phases.PhenotypeLinearIntercept),
		impulse.Phenotypes.Get(phases.PhenotypeLinearSlope),
		impulse.Phenotypes.Get(phases.PhenotypeLinearIntercept),
	)
}

// timeBeforeMajorGrowth is the initial-lag crossing against the major
// impulse instead of the first flat-to-impulse transition partner
func timeBeforeMajorGrowth(pv phases.PhaseVector) float64 {
	if pv == nil {
		return nan()
	}
	flats := pv.Indices(phases.PhaseFlat)
	if len(flats) == 0 {
		return nan()
	}
	flat := pv[flats[0]]

	mi := MajorImpulseIndex(pv)
	if mi < 0 {
		return nan()
	}
	impulse := pv[mi]

	return lineCrossing(
		flat.Phenotypes.Get(phases.PhenotypeLinearSlope),
		flat.Phenotypes.Get(phases.PhenotypeLinearIntercept),
		impulse.Phenotypes.Get(phases.PhenotypeLinearSlope),
		impulse.Phenotypes.Get(phases.PhenotypeLinearIntercept),
	)
}

// initialLagAlternative uses the experiment low point (absolute units) as a
// zero-slope flat reference. Invalid when the crossing is negative, when the
// major impulse starts before the low point, or when the low-point time is
// not finite.
func initialLagAlternative(pv phases.PhaseVector, lowValue, lowWhen float64) float64 {
	if pv == nil {
		return nan()
	}
	impulse := rankedImpulse(pv, 1)
	if impulse == nil {
		return nan()
	}

	slope := impulse.Phenotypes.Get(phases.PhenotypeLinearSlope)
	intercept := impulse.Phenotypes.Get(phases.PhenotypeLinearIntercept)
	start := impulse.Phenotypes.Get(phases.PhenotypeStart)

	lag := (intercept - math.Log2(lowValue)) / (0 - slope)
	if lag < 0 || start < lowWhen || math.IsInf(lowWhen, 0) || math.IsNaN(lowWhen) {
		return nan()
	}
	return lag
}
