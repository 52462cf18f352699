package phenotypes

import (
	"math"
	"testing"

	"phasegrid/domain/curves"
	"phasegrid/domain/phases"
	"phasegrid/internal/segmentation"
	"phasegrid/internal/testkit"
)

func segmentedSigmoid(t *testing.T) (*curves.GrowthCurve, []phases.Segment) {
	t.Helper()
	c := testkit.Curve(0.25, 2.0,
		testkit.Flat(8),
		testkit.Accel(5, 0.05, 0.01),
		testkit.Impulse(12, 0.4),
		testkit.Retard(5, 0.05, 0.01),
		testkit.Flat(8),
	)
	engine, err := segmentation.NewEngine(segmentation.DefaultParams())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return c, engine.Segment(c)
}

func findPhase(segments []phases.Segment, phase phases.Phase) int {
	for i, s := range segments {
		if s.Phase == phase {
			return i
		}
	}
	return -1
}

// ============================================================================
// TEST: linear model phenotypes
// ============================================================================

func TestCompute_ImpulseSlopeAndDoublings(t *testing.T) {
	curve, segments := segmentedSigmoid(t)
	idx := findPhase(segments, phases.PhaseImpulse)
	if idx < 0 {
		t.Fatalf("no impulse segment in %v", segments)
	}

	sp := NewCalculator().Compute(curve, segments, idx)
	if sp == nil {
		t.Fatal("impulse phenotypes are nil")
	}

	slope := sp.Get(phases.PhenotypeLinearSlope)
	if math.Abs(slope-0.4) > 1e-9 {
		t.Errorf("slope = %v, want 0.4", slope)
	}

	// Doubling time is ln(2)/slope and must be positive for growth.
	dt := sp.Get(phases.PhenotypePopulationDoublingTime)
	if math.Abs(dt-math.Ln2/0.4) > 1e-9 {
		t.Errorf("doubling time = %v, want %v", dt, math.Ln2/0.4)
	}

	// Doublings = slope x duration.
	duration := sp.Get(phases.PhenotypeDuration)
	doublings := sp.Get(phases.PhenotypePopulationDoublings)
	if math.Abs(doublings-0.4*duration) > 1e-9 {
		t.Errorf("doublings = %v, want %v", doublings, 0.4*duration)
	}

	if r2 := sp.Get(phases.PhenotypeLinearRSquared); !(r2 > 0.999) {
		t.Errorf("r squared = %v for an exact line", r2)
	}
}

func TestCompute_FlatSegmentHasNoDoublingTime(t *testing.T) {
	// A zero-slope fit grows nothing, so doubling time is undefined.
	curve, segments := segmentedSigmoid(t)
	idx := findPhase(segments, phases.PhaseFlat)
	if idx < 0 {
		t.Fatalf("no flat segment in %v", segments)
	}

	sp := NewCalculator().Compute(curve, segments, idx)
	if dt := sp.Get(phases.PhenotypePopulationDoublingTime); !math.IsNaN(dt) {
		t.Errorf("doubling time = %v, want NaN", dt)
	}
	if d := sp.Get(phases.PhenotypePopulationDoublings); math.Abs(d) > 1e-9 {
		t.Errorf("doublings = %v, want 0", d)
	}
}

// ============================================================================
// TEST: asymptote phenotypes
// ============================================================================

func TestCompute_AccelerationAsymptotes(t *testing.T) {
	curve, segments := segmentedSigmoid(t)
	idx := findPhase(segments, phases.PhaseAcceleration)
	if idx < 0 {
		t.Fatalf("no acceleration segment in %v", segments)
	}

	sp := NewCalculator().Compute(curve, segments, idx)
	if sp == nil {
		t.Fatal("acceleration phenotypes are nil")
	}

	// Flanked by flat (slope 0) and impulse (slope 0.4):
	// angle = pi - |atan2(1, 0) - atan2(1, 0.4)|.
	want := math.Pi - math.Abs(math.Atan2(1, 0)-math.Atan2(1, 0.4))
	if angle := sp.Get(phases.PhenotypeAsymptoteAngle); math.Abs(angle-want) > 1e-9 {
		t.Errorf("asymptote angle = %v, want %v", angle, want)
	}

	// The tangents have different slopes, so they cross at a finite time
	// inside the experiment.
	intersect := sp.Get(phases.PhenotypeAsymptoteIntersection)
	if math.IsNaN(intersect) {
		t.Errorf("asymptote intersection is NaN")
	}
}

func TestCompute_UndeterminedSegmentIsNil(t *testing.T) {
	curve := testkit.Curve(0.25, 2.0, testkit.Flat(10))
	segments := []phases.Segment{{Phase: phases.PhaseUndetermined, Start: 0, End: curve.Len()}}

	if sp := NewCalculator().Compute(curve, segments, 0); sp != nil {
		t.Errorf("undetermined phenotypes = %v, want nil", sp)
	}
}

func TestBuildVector_MatchesSegments(t *testing.T) {
	curve, segments := segmentedSigmoid(t)
	pv := NewCalculator().BuildVector(curve, segments)

	if len(pv) != len(segments) {
		t.Fatalf("vector length %d, segments %d", len(pv), len(segments))
	}
	for i := range pv {
		if pv[i].Phase != segments[i].Phase {
			t.Errorf("entry %d phase %s, segment %s", i, pv[i].Phase, segments[i].Phase)
		}
		if pv[i].Phase.IsDetermined() && pv[i].Phenotypes == nil {
			t.Errorf("determined entry %d has nil phenotypes", i)
		}
	}
}

// ============================================================================
// TEST: line fitting edge cases
// ============================================================================

func TestFitLine_DropsNaNSamples(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4}
	ys := []float64{1, math.NaN(), 3, 4, 5}

	slope, intercept, _ := fitLine(xs, ys)
	if math.Abs(slope-1) > 1e-9 {
		t.Errorf("slope = %v, want 1", slope)
	}
	if math.Abs(intercept-1) > 1e-9 {
		t.Errorf("intercept = %v, want 1", intercept)
	}
}

func TestFitLine_TooFewSamples(t *testing.T) {
	slope, _, _ := fitLine([]float64{1}, []float64{2})
	if !math.IsNaN(slope) {
		t.Errorf("slope = %v, want NaN for a single sample", slope)
	}
}
