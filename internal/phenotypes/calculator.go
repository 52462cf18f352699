package phenotypes

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"phasegrid/domain/curves"
	"phasegrid/domain/phases"
)

// Calculator derives the per-segment scalar phenotypes from a segmented
// growth curve. Degenerate fits never raise: affected measures come back NaN
// and downstream consumers treat NaN as "unavailable".
type Calculator struct{}

// NewCalculator creates a segment phenotype calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// BuildVector computes phenotypes for every segment in order and assembles
// the curve's phase vector. Undetermined segments carry a nil phenotype map.
func (c *Calculator) BuildVector(curve *curves.GrowthCurve, segments []phases.Segment) phases.PhaseVector {
	pv := make(phases.PhaseVector, len(segments))
	for i, seg := range segments {
		pv[i] = phases.Entry{
			Phase:      seg.Phase,
			Phenotypes: c.Compute(curve, segments, i),
		}
	}
	return pv
}

// Compute calculates the phenotype map for segment idx. Linear phases get an
// OLS model, curvature phases get the asymptote tangent model, undetermined
// segments get nil.
func (c *Calculator) Compute(curve *curves.GrowthCurve, segments []phases.Segment, idx int) phases.SegmentPhenotypes {
	if idx < 0 || idx >= len(segments) {
		return nil
	}
	seg := segments[idx]

	switch {
	case seg.Phase.IsLinear():
		return c.linearPhenotypes(curve, seg)
	case seg.Phase.IsNonLinear():
		return c.asymptotePhenotypes(curve, segments, idx)
	default:
		return nil
	}
}

// linearPhenotypes fits log2 size against time over the segment range
func (c *Calculator) linearPhenotypes(curve *curves.GrowthCurve, seg phases.Segment) phases.SegmentPhenotypes {
	slope, intercept, r2 := fitLine(curve.Times[seg.Start:seg.End], curve.Values[seg.Start:seg.End])
	duration := curve.Span(seg.Start, seg.End)

	doublings := slope * duration
	doublingTime := math.NaN()
	if slope > 0 {
		doublingTime = math.Ln2 / slope
	}

	return phases.SegmentPhenotypes{
		phases.PhenotypeStart:                   curve.Times[seg.Start],
		phases.PhenotypeDuration:                duration,
		phases.PhenotypeLinearSlope:             slope,
		phases.PhenotypeLinearIntercept:         intercept,
		phases.PhenotypeLinearRSquared:          r2,
		phases.PhenotypePopulationDoublings:     doublings,
		phases.PhenotypePopulationDoublingTime:  doublingTime,
	}
}

// asymptotePhenotypes derives the angle and crossing time of the tangents
// bounding a curvature region
func (c *Calculator) asymptotePhenotypes(curve *curves.GrowthCurve, segments []phases.Segment, idx int) phases.SegmentPhenotypes {
	seg := segments[idx]

	kIn, mIn := c.tangent(curve, segments, idx, -1)
	kOut, mOut := c.tangent(curve, segments, idx, +1)

	angle := asymptoteAngle(kIn, kOut)

	intersect := math.NaN()
	if !math.IsNaN(kIn) && !math.IsNaN(kOut) && kIn != kOut {
		intersect = (mOut - mIn) / (kIn - kOut)
	}

	return phases.SegmentPhenotypes{
		phases.PhenotypeStart:                  curve.Times[seg.Start],
		phases.PhenotypeDuration:               curve.Span(seg.Start, seg.End),
		phases.PhenotypeAsymptoteAngle:         angle,
		phases.PhenotypeAsymptoteIntersection:  intersect,
	}
}

// tangent returns the slope and intercept of the line bounding segment idx on
// the given side (-1 incoming, +1 outgoing). An adjacent linear segment
// supplies its fitted model; anything else (curve boundary, non-linear
// neighbor) degrades to a unit-slope reference line through the boundary
// sample so boundary segments still yield a measurable angle.
func (c *Calculator) tangent(curve *curves.GrowthCurve, segments []phases.Segment, idx, side int) (k, m float64) {
	neighbor := idx + side
	if neighbor >= 0 && neighbor < len(segments) && segments[neighbor].Phase.IsLinear() {
		ns := segments[neighbor]
		slope, intercept, _ := fitLine(curve.Times[ns.Start:ns.End], curve.Values[ns.Start:ns.End])
		if !math.IsNaN(slope) {
			return slope, intercept
		}
	}

	// Synthetic unit-slope reference through the boundary sample.
	b := segments[idx].Start
	if side > 0 {
		b = segments[idx].End - 1
	}
	if b < 0 || b >= curve.Len() || math.IsNaN(curve.Values[b]) {
		return math.NaN(), math.NaN()
	}
	return 1, curve.Values[b] - curve.Times[b]
}

// asymptoteAngle measures the angle between two tangent slopes via arctan2 on
// unit-normalized slope components
func asymptoteAngle(kIn, kOut float64) float64 {
	if math.IsNaN(kIn) || math.IsNaN(kOut) {
		return math.NaN()
	}
	return math.Pi - math.Abs(math.Atan2(1, kIn)-math.Atan2(1, kOut))
}

// fitLine runs OLS of ys against xs, dropping NaN samples. Fewer than two
// finite samples or zero x-variance yield NaN coefficients.
func fitLine(xs, ys []float64) (slope, intercept, r2 float64) {
	fx := make([]float64, 0, len(xs))
	fy := make([]float64, 0, len(ys))
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		fx = append(fx, xs[i])
		fy = append(fy, ys[i])
	}
	if len(fx) < 2 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	if stat.Variance(fx, nil) == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}

	intercept, slope = stat.LinearRegression(fx, fy, nil, false)
	r2 = stat.RSquaredFrom(estimates(fx, slope, intercept), fy, nil)
	return slope, intercept, r2
}

func estimates(xs []float64, slope, intercept float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = intercept + slope*x
	}
	return out
}
