package segmentation

import (
	"math"

	"phasegrid/domain/core"
	"phasegrid/domain/curves"
	"phasegrid/domain/phases"
)

// Params controls the per-curve phase classification.
type Params struct {
	// MinSegmentLength is the shortest run (in samples) an interior segment
	// may have before it is merged into a neighbor.
	MinSegmentLength int `json:"min_segment_length"`
	// CurvatureNoise is the |second derivative| threshold below which a
	// sample counts as linear.
	CurvatureNoise float64 `json:"curvature_noise"`
	// SlopeNoise is the |first derivative| threshold below which a sample
	// counts as flat.
	SlopeNoise float64 `json:"slope_noise"`
}

// DefaultParams returns the thresholds used for standard plate scans
func DefaultParams() Params {
	return Params{
		MinSegmentLength: 3,
		CurvatureNoise:   0.002,
		SlopeNoise:       0.001,
	}
}

// Validate checks parameter sanity
func (p Params) Validate() error {
	if p.MinSegmentLength < 1 {
		return core.NewValidationError("min_segment_length", "must be >= 1")
	}
	if p.CurvatureNoise <= 0 {
		return core.NewValidationError("curvature_noise", "must be > 0")
	}
	if p.SlopeNoise <= 0 {
		return core.NewValidationError("slope_noise", "must be > 0")
	}
	return nil
}

// Engine classifies every index of a growth curve into a phase and emits the
// gapless segment sequence. It is stateless across curves and safe for
// concurrent use.
type Engine struct {
	params Params
}

// NewEngine creates a segmentation engine with validated parameters
func NewEngine(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{params: params}, nil
}

// Params returns the engine's parameters
func (e *Engine) Params() Params {
	return e.params
}

// Segment runs the classification state machine over one curve. The result
// tiles the full index range: contiguous, non-overlapping, neighbors never
// share a phase. Degenerate curves are not errors: a curve shorter than the
// minimum segment length yields one undetermined segment, an entirely flat
// curve yields one flat segment.
func (e *Engine) Segment(curve *curves.GrowthCurve) []phases.Segment {
	n := curve.Len()
	if n == 0 {
		return nil
	}
	if n < e.params.MinSegmentLength {
		return []phases.Segment{{Phase: phases.PhaseUndetermined, Start: 0, End: n}}
	}

	labels := e.classify(curve)
	runs := encodeRuns(labels)
	runs = smoothOscillations(runs, e.params.MinSegmentLength)
	runs = mergeShortRuns(runs, e.params.MinSegmentLength)

	segments := make([]phases.Segment, len(runs))
	for i, r := range runs {
		segments[i] = phases.Segment{Phase: r.label, Start: r.start, End: r.end}
	}
	return segments
}

// classify assigns a tentative phase to every index, left to right. The
// preceding determined state resolves the ambiguous cases: negative curvature
// with a clearly falling slope after growth is a collapse, not a retardation,
// and a sustained linear decline after growth is a collapse rather than noise.
func (e *Engine) classify(curve *curves.GrowthCurve) []phases.Phase {
	n := curve.Len()
	labels := make([]phases.Phase, n)
	sawGrowth := false

	for i := 0; i < n; i++ {
		d1 := curve.FirstDeriv[i]
		d2 := curve.SecondDeriv[i]

		var label phases.Phase
		switch {
		case math.IsNaN(curve.Values[i]) || math.IsNaN(d1) || math.IsNaN(d2):
			label = phases.PhaseUndetermined
		case d2 > e.params.CurvatureNoise:
			label = phases.PhaseAcceleration
		case d2 < -e.params.CurvatureNoise:
			if d1 < -e.params.SlopeNoise && sawGrowth {
				label = phases.PhaseCollapse
			} else {
				label = phases.PhaseRetardation
			}
		case d1 > e.params.SlopeNoise:
			label = phases.PhaseImpulse
		case d1 < -e.params.SlopeNoise:
			if sawGrowth {
				label = phases.PhaseCollapse
			} else {
				// Declines before any growth (condensation dips etc.)
				// carry no model.
				label = phases.PhaseUndetermined
			}
		default:
			label = phases.PhaseFlat
		}

		if label == phases.PhaseImpulse || label == phases.PhaseAcceleration {
			sawGrowth = true
		}
		labels[i] = label
	}
	return labels
}

type run struct {
	label phases.Phase
	start int
	end   int
}

func (r run) len() int { return r.end - r.start }

// encodeRuns run-length encodes the index labels
func encodeRuns(labels []phases.Phase) []run {
	var runs []run
	for i, label := range labels {
		if len(runs) > 0 && runs[len(runs)-1].label == label {
			runs[len(runs)-1].end = i + 1
			continue
		}
		runs = append(runs, run{label: label, start: i, end: i + 1})
	}
	return runs
}

// smoothOscillations relabels adjacent sub-minimum curvature runs of opposite
// direction as a single undetermined non-linear region: curvature that flips
// sign faster than the minimum segment length never resolved against noise.
func smoothOscillations(runs []run, minLen int) []run {
	opposite := func(a, b phases.Phase) bool {
		return (a == phases.PhaseAcceleration && b == phases.PhaseRetardation) ||
			(a == phases.PhaseRetardation && b == phases.PhaseAcceleration)
	}
	out := make([]run, len(runs))
	copy(out, runs)
	for i := 0; i+1 < len(out); i++ {
		a, b := out[i], out[i+1]
		if a.len() < minLen && b.len() < minLen && opposite(a.label, b.label) {
			out[i].label = phases.PhaseUndeterminedNonLinear
			out[i+1].label = phases.PhaseUndeterminedNonLinear
		}
	}
	return coalesce(out)
}

// coalesce joins adjacent runs sharing a label
func coalesce(runs []run) []run {
	var out []run
	for _, r := range runs {
		if len(out) > 0 && out[len(out)-1].label == r.label {
			out[len(out)-1].end = r.end
			continue
		}
		out = append(out, r)
	}
	return out
}

// mergeShortRuns repeatedly relabels interior runs shorter than minLen with
// the neighboring label that produces the larger total contiguous run, ties
// broken toward the left neighbor. The first and last runs are closed as-is:
// there is no further data to merge the boundary against.
func mergeShortRuns(runs []run, minLen int) []run {
	runs = coalesce(runs)
	for {
		// Shortest interior run below the minimum, earliest on ties.
		target := -1
		for i := 1; i+1 < len(runs); i++ {
			if runs[i].len() >= minLen {
				continue
			}
			if target < 0 || runs[i].len() < runs[target].len() {
				target = i
			}
		}
		if target < 0 {
			return runs
		}

		left, right := runs[target-1], runs[target+1]
		if left.len() >= right.len() {
			runs[target].label = left.label
		} else {
			runs[target].label = right.label
		}
		runs = coalesce(runs)
	}
}
