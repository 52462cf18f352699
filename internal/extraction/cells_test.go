package extraction

import (
	"math"
	"testing"

	"phasegrid/domain/phases"
	"phasegrid/domain/plates"
	"phasegrid/internal"
	"phasegrid/internal/testkit"
)

// threeImpulseVector builds the canonical ranking fixture: impulses with
// doublings 1.0, 3.0 and 2.0 separated by flat phases.
func threeImpulseVector() phases.PhaseVector {
	return phases.PhaseVector{
		testkit.Entry(phases.PhaseImpulse,
			phases.PhenotypePopulationDoublings, 1.0,
			phases.PhenotypePopulationDoublingTime, 3.0),
		testkit.Entry(phases.PhaseFlat, phases.PhenotypePopulationDoublings, 0.0),
		testkit.Entry(phases.PhaseImpulse,
			phases.PhenotypePopulationDoublings, 3.0,
			phases.PhenotypePopulationDoublingTime, 1.0),
		testkit.Entry(phases.PhaseFlat, phases.PhenotypePopulationDoublings, 0.0),
		testkit.Entry(phases.PhaseImpulse,
			phases.PhenotypePopulationDoublings, 2.0,
			phases.PhenotypePopulationDoublingTime, 2.0),
	}
}

// ============================================================================
// TEST: yield ranking
// ============================================================================

func TestRankedImpulse_YieldOrdering(t *testing.T) {
	pv := threeImpulseVector()

	major := rankedImpulse(pv, 1)
	if major == nil {
		t.Fatal("no major impulse")
	}
	if got := major.Phenotypes.Get(phases.PhenotypePopulationDoublings); got != 3.0 {
		t.Errorf("major doublings = %v, want 3.0", got)
	}

	minor := rankedImpulse(pv, 2)
	if minor == nil {
		t.Fatal("no first minor impulse")
	}
	if got := minor.Phenotypes.Get(phases.PhenotypePopulationDoublings); got != 2.0 {
		t.Errorf("first minor doublings = %v, want 2.0", got)
	}

	if rankedImpulse(pv, 4) != nil {
		t.Errorf("rank 4 should exceed the impulse count")
	}
}

func TestRankedImpulse_NaNDoublingsRankLast(t *testing.T) {
	pv := phases.PhaseVector{
		testkit.Entry(phases.PhaseImpulse, phases.PhenotypePopulationDoublings, math.NaN()),
		testkit.Entry(phases.PhaseImpulse, phases.PhenotypePopulationDoublings, 0.5),
	}

	major := rankedImpulse(pv, 1)
	if got := major.Phenotypes.Get(phases.PhenotypePopulationDoublings); got != 0.5 {
		t.Errorf("major doublings = %v, want 0.5 (NaN ranks last)", got)
	}
}

func TestMajorImpulseIndex(t *testing.T) {
	pv := threeImpulseVector()
	if got := MajorImpulseIndex(pv); got != 2 {
		t.Errorf("major impulse index = %d, want 2", got)
	}

	noImpulses := phases.PhaseVector{
		testkit.Entry(phases.PhaseFlat, phases.PhenotypePopulationDoublings, 0.0),
	}
	if got := MajorImpulseIndex(noImpulses); got != -1 {
		t.Errorf("major impulse index = %d, want -1", got)
	}
}

// ============================================================================
// TEST: flank asymmetry
// ============================================================================

func TestFlankAsymmetry_NonLinearFlanks(t *testing.T) {
	// Scenario: acceleration and retardation flanks contribute their
	// asymptote angles directly, so the ratio is right/left.
	log := internal.NewDefaultLogger("test")
	pv := phases.PhaseVector{
		testkit.Entry(phases.PhaseAcceleration, phases.PhenotypeAsymptoteAngle, 0.3),
		testkit.Entry(phases.PhaseImpulse,
			phases.PhenotypePopulationDoublings, 2.0,
			phases.PhenotypeLinearSlope, 0.4),
		testkit.Entry(phases.PhaseRetardation, phases.PhenotypeAsymptoteAngle, 0.6),
	}

	got := flankAsymmetry(pv, plates.Coord{}, log)
	if math.Abs(got-2.0) > 1e-9 {
		t.Errorf("flank asymmetry = %v, want 2.0", got)
	}
}

func TestFlankAsymmetry_MissingFlankUsesImpulseSlope(t *testing.T) {
	// An impulse at the curve start has no left flank; the left angle
	// degrades to atan2(1, impulse slope).
	log := internal.NewDefaultLogger("test")
	pv := phases.PhaseVector{
		testkit.Entry(phases.PhaseImpulse,
			phases.PhenotypePopulationDoublings, 2.0,
			phases.PhenotypeLinearSlope, 0.4),
		testkit.Entry(phases.PhaseRetardation, phases.PhenotypeAsymptoteAngle, 0.6),
	}

	want := 0.6 / math.Atan2(1, 0.4)
	if got := flankAsymmetry(pv, plates.Coord{}, log); math.Abs(got-want) > 1e-9 {
		t.Errorf("flank asymmetry = %v, want %v", got, want)
	}
}

func TestFlankAsymmetry_NoImpulseIsInfinite(t *testing.T) {
	log := internal.NewDefaultLogger("test")
	pv := phases.PhaseVector{
		testkit.Entry(phases.PhaseFlat, phases.PhenotypePopulationDoublings, 0.0),
	}

	if got := flankAsymmetry(pv, plates.Coord{}, log); !math.IsInf(got, 1) {
		t.Errorf("flank asymmetry = %v, want +Inf", got)
	}
}

func TestFlankAsymmetry_NilVectorIsNaN(t *testing.T) {
	log := internal.NewDefaultLogger("test")
	if got := flankAsymmetry(nil, plates.Coord{}, log); !math.IsNaN(got) {
		t.Errorf("flank asymmetry = %v, want NaN", got)
	}
}

// ============================================================================
// TEST: lag models
// ============================================================================

func lagVector(flatSlope, flatIntercept, impSlope, impIntercept float64) phases.PhaseVector {
	return phases.PhaseVector{
		testkit.Entry(phases.PhaseFlat,
			phases.PhenotypeLinearSlope, flatSlope,
			phases.PhenotypeLinearIntercept, flatIntercept,
			phases.PhenotypePopulationDoublings, 0.0),
		testkit.Entry(phases.PhaseImpulse,
			phases.PhenotypeLinearSlope, impSlope,
			phases.PhenotypeLinearIntercept, impIntercept,
			phases.PhenotypeStart, 5.0,
			phases.PhenotypePopulationDoublings, 2.0),
	}
}

func TestInitialLag_LineCrossing(t *testing.T) {
	// Flat y = 2, impulse y = 0.5t. They cross at t = 4.
	pv := lagVector(0, 2, 0.5, 0)
	if got := initialLag(pv); math.Abs(got-4) > 1e-9 {
		t.Errorf("initial lag = %v, want 4", got)
	}
}

func TestInitialLag_NeverNegative(t *testing.T) {
	// Flat y = 2, impulse y = 0.5t + 4 crosses at t = -4: before the
	// experiment, so invalid.
	pv := lagVector(0, 2, 0.5, 4)
	if got := initialLag(pv); !math.IsNaN(got) {
		t.Errorf("initial lag = %v, want NaN for negative crossing", got)
	}
}

func TestInitialLag_RequiresFlatThenImpulse(t *testing.T) {
	pv := phases.PhaseVector{
		testkit.Entry(phases.PhaseImpulse,
			phases.PhenotypeLinearSlope, 0.5,
			phases.PhenotypeLinearIntercept, 0.0,
			phases.PhenotypePopulationDoublings, 2.0),
		testkit.Entry(phases.PhaseFlat,
			phases.PhenotypeLinearSlope, 0.0,
			phases.PhenotypeLinearIntercept, 2.0,
			phases.PhenotypePopulationDoublings, 0.0),
	}
	if got := initialLag(pv); !math.IsNaN(got) {
		t.Errorf("initial lag = %v, want NaN without a flat-then-impulse pair", got)
	}
}

func TestInitialLagAlternative(t *testing.T) {
	// Impulse y = 0.5t with low point at 2^1 observed at t = 1:
	// lag = (0 - log2(2)) / (0 - 0.5) = 2.
	pv := lagVector(0, 2, 0.5, 0)

	if got := initialLagAlternative(pv, 2.0, 1.0); math.Abs(got-2) > 1e-9 {
		t.Errorf("alternative lag = %v, want 2", got)
	}

	// The major impulse must not start before the low point was observed.
	if got := initialLagAlternative(pv, 2.0, 6.0); !math.IsNaN(got) {
		t.Errorf("alternative lag = %v, want NaN when impulse precedes low point", got)
	}

	// A non-finite low-point time invalidates the model.
	if got := initialLagAlternative(pv, 2.0, math.NaN()); !math.IsNaN(got) {
		t.Errorf("alternative lag = %v, want NaN for NaN low-point time", got)
	}
}

// ============================================================================
// TEST: counts
// ============================================================================

func TestCounts(t *testing.T) {
	pv := phases.PhaseVector{
		testkit.Entry(phases.PhaseFlat, phases.PhenotypePopulationDoublings, 0.0),
		testkit.Entry(phases.PhaseAcceleration, phases.PhenotypeAsymptoteAngle, 0.3),
		testkit.Entry(phases.PhaseImpulse, phases.PhenotypePopulationDoublings, 2.0),
		testkit.Entry(phases.PhaseRetardation, phases.PhenotypeAsymptoteAngle, 0.4),
		testkit.Entry(phases.PhaseImpulse, phases.PhenotypePopulationDoublings, 0.5),
		testkit.Entry(phases.PhaseCollapse, phases.PhenotypePopulationDoublings, -1.0),
	}

	if got := countImpulses(pv); got != 2 {
		t.Errorf("impulses = %v, want 2", got)
	}
	if got := countCollapses(pv); got != 1 {
		t.Errorf("collapses = %v, want 1", got)
	}

	// Inner modalities: impulses between the first acceleration (index 1)
	// and the last retardation (index 3), half-open, so only index 2.
	if got := countInnerImpulses(pv); got != 1 {
		t.Errorf("inner impulses = %v, want 1", got)
	}
}

func TestCountInnerImpulses_RetardationBeforeAcceleration(t *testing.T) {
	// Pre-growth negative curvature can classify an early retardation, so the
	// last retardation may precede the first acceleration. The growth arc is
	// then empty and holds no impulses.
	pv := phases.PhaseVector{
		testkit.Entry(phases.PhaseRetardation, phases.PhenotypeAsymptoteAngle, 0.2),
		testkit.Entry(phases.PhaseFlat, phases.PhenotypePopulationDoublings, 0.0),
		testkit.Entry(phases.PhaseAcceleration, phases.PhenotypeAsymptoteAngle, 0.3),
		testkit.Entry(phases.PhaseImpulse, phases.PhenotypePopulationDoublings, 2.0),
	}
	if got := countInnerImpulses(pv); got != 0 {
		t.Errorf("inner impulses = %v, want 0 for an empty growth arc", got)
	}
}

func TestCountInnerImpulses_MissingAnchors(t *testing.T) {
	pv := phases.PhaseVector{
		testkit.Entry(phases.PhaseFlat, phases.PhenotypePopulationDoublings, 0.0),
		testkit.Entry(phases.PhaseImpulse, phases.PhenotypePopulationDoublings, 2.0),
	}
	if got := countInnerImpulses(pv); !math.IsNaN(got) {
		t.Errorf("inner impulses = %v, want NaN without acceleration and retardation", got)
	}
}
