package alignment

import (
	"math"
	"testing"

	"phasegrid/domain/phases"
	"phasegrid/domain/plates"
	"phasegrid/internal/testkit"
)

// sigmoidVector builds a five-segment phase vector shifted in time by offset:
// flat, acceleration, major impulse, retardation, flat.
func sigmoidVector(offset float64) phases.PhaseVector {
	return phases.PhaseVector{
		testkit.Entry(phases.PhaseFlat,
			phases.PhenotypeStart, 0+offset,
			phases.PhenotypeDuration, 10.0,
			phases.PhenotypePopulationDoublings, 0.0),
		testkit.Entry(phases.PhaseAcceleration,
			phases.PhenotypeStart, 10+offset,
			phases.PhenotypeDuration, 2.0,
			phases.PhenotypeAsymptoteAngle, 0.4),
		testkit.Entry(phases.PhaseImpulse,
			phases.PhenotypeStart, 12+offset,
			phases.PhenotypeDuration, 8.0,
			phases.PhenotypePopulationDoublings, 3.0,
			phases.PhenotypeLinearSlope, 0.4),
		testkit.Entry(phases.PhaseRetardation,
			phases.PhenotypeStart, 20+offset,
			phases.PhenotypeDuration, 2.0,
			phases.PhenotypeAsymptoteAngle, 0.5),
		testkit.Entry(phases.PhaseFlat,
			phases.PhenotypeStart, 22+offset,
			phases.PhenotypeDuration, 8.0,
			phases.PhenotypePopulationDoublings, 0.0),
	}
}

// ============================================================================
// TEST: slot formation
// ============================================================================

func TestSession_IdenticalCurvesOneSlotPerSegment(t *testing.T) {
	grid := testkit.UniformGrid(2, 2, sigmoidVector(0))
	session := NewSession(grid, nil, 30, DefaultOptions())
	tensor := session.Tensor()

	if session.CurveCount() != 4 {
		t.Fatalf("curve count = %d, want 4", session.CurveCount())
	}
	if len(tensor.Layout) != 5 {
		t.Fatalf("slot count = %d, want 5", len(tensor.Layout))
	}

	want := []phases.Phase{
		phases.PhaseFlat,
		phases.PhaseAcceleration,
		phases.PhaseImpulse,
		phases.PhaseRetardation,
		phases.PhaseFlat,
	}
	for i, slot := range tensor.Layout {
		if slot.Phase != want[i] {
			t.Errorf("slot %d phase = %s, want %s", i, slot.Phase, want[i])
		}
	}

	// Linear slots carry the 6-column linear block, curvature slots the
	// 4-column asymptote block.
	if tensor.Width != 6+4+6+4+6 {
		t.Errorf("tensor width = %d, want 26", tensor.Width)
	}
}

func TestSession_AnchorsAreMonotone(t *testing.T) {
	// Scenario: curves shifted in time still settle into anchor-sorted slots.
	grid := testkit.Grid([][]phases.PhaseVector{
		{sigmoidVector(0), sigmoidVector(2)},
		{sigmoidVector(4), sigmoidVector(1)},
	})
	session := NewSession(grid, nil, 40, DefaultOptions())
	tensor := session.Tensor()

	prev := math.Inf(-1)
	for i, slot := range tensor.Layout {
		if slot.Anchor < prev {
			t.Errorf("slot %d anchor %v below previous %v", i, slot.Anchor, prev)
		}
		prev = slot.Anchor
	}
}

func TestSession_MemberValuesLandInSlotBlocks(t *testing.T) {
	grid := testkit.UniformGrid(1, 2, sigmoidVector(0))
	session := NewSession(grid, nil, 30, DefaultOptions())
	tensor := session.Tensor()

	// Find the major impulse slot and check its doublings column.
	for i, slot := range tensor.Layout {
		if slot.Phase != phases.PhaseImpulse {
			continue
		}
		off := tensor.BlockOffset(i)
		for j, name := range slot.Phenotypes {
			if name != phases.PhenotypePopulationDoublings {
				continue
			}
			if got := tensor.Values[0][0][off+j]; got != 3.0 {
				t.Errorf("impulse doublings column = %v, want 3.0", got)
			}
			return
		}
	}
	t.Fatal("no impulse slot in layout")
}

// ============================================================================
// TEST: eligibility and exclusion
// ============================================================================

func TestSession_ExcludedCurveIsAllNaN(t *testing.T) {
	grid := testkit.UniformGrid(2, 2, sigmoidVector(0))
	filter := plates.NewFilter(2, 2)
	filter[1][1] = true

	session := NewSession(grid, filter, 30, DefaultOptions())
	if session.CurveCount() != 3 {
		t.Fatalf("curve count = %d, want 3", session.CurveCount())
	}

	tensor := session.Tensor()
	for _, v := range tensor.Values[1][1] {
		if !math.IsNaN(v) {
			t.Fatalf("excluded curve holds %v, want all NaN", v)
		}
	}
	for _, v := range tensor.Values[0][0] {
		if !math.IsNaN(v) {
			return
		}
	}
	t.Error("included curve is all NaN")
}

func TestSession_CurveWithoutImpulseIsIneligible(t *testing.T) {
	flatOnly := phases.PhaseVector{
		testkit.Entry(phases.PhaseFlat,
			phases.PhenotypeStart, 0.0,
			phases.PhenotypeDuration, 30.0,
			phases.PhenotypePopulationDoublings, 0.0),
	}
	grid := testkit.Grid([][]phases.PhaseVector{
		{sigmoidVector(0), flatOnly},
	})

	session := NewSession(grid, nil, 30, DefaultOptions())
	if session.CurveCount() != 1 {
		t.Errorf("curve count = %d, want 1 (flat-only curve excluded)", session.CurveCount())
	}
}

func TestSeed_RightSeedCountsDeterminedPhasesOnly(t *testing.T) {
	// Scenario: one curve drags a long undetermined tail behind its major
	// impulse. Undetermined entries never join slots, so the right side must
	// be seeded from the curve with the most determined post-impulse phases,
	// not the most entries.
	tail := phases.PhaseVector{
		testkit.Entry(phases.PhaseFlat,
			phases.PhenotypeStart, 0.0,
			phases.PhenotypeDuration, 10.0,
			phases.PhenotypePopulationDoublings, 0.0),
		testkit.Entry(phases.PhaseAcceleration,
			phases.PhenotypeStart, 10.0,
			phases.PhenotypeDuration, 2.0,
			phases.PhenotypeAsymptoteAngle, 0.4),
		testkit.Entry(phases.PhaseImpulse,
			phases.PhenotypeStart, 12.0,
			phases.PhenotypeDuration, 8.0,
			phases.PhenotypePopulationDoublings, 3.0,
			phases.PhenotypeLinearSlope, 0.4),
		testkit.Entry(phases.PhaseUndetermined,
			phases.PhenotypeStart, 20.0,
			phases.PhenotypeDuration, 2.0),
		testkit.Entry(phases.PhaseUndetermined,
			phases.PhenotypeStart, 22.0,
			phases.PhenotypeDuration, 4.0),
		testkit.Entry(phases.PhaseUndetermined,
			phases.PhenotypeStart, 26.0,
			phases.PhenotypeDuration, 4.0),
	}
	grid := testkit.Grid([][]phases.PhaseVector{
		{sigmoidVector(0), tail},
	})

	session := NewSession(grid, nil, 30, DefaultOptions())
	session.seed()

	want := []phases.Phase{
		phases.PhaseFlat,
		phases.PhaseAcceleration,
		phases.PhaseImpulse,
		phases.PhaseRetardation,
		phases.PhaseFlat,
	}
	if len(session.slots) != len(want) {
		t.Fatalf("seeded %d slots, want %d", len(session.slots), len(want))
	}
	for i, sl := range session.slots {
		if sl.phase != want[i] {
			t.Errorf("slot %d phase = %s, want %s", i, sl.phase, want[i])
		}
	}
}

// ============================================================================
// TEST: pruning
// ============================================================================

func TestSession_RareSlotSurvivesFinalPass(t *testing.T) {
	// Scenario: 30 standard curves plus one carrying an extra collapse. The
	// collapse slot stays below the 5% threshold on every ordinary pass but
	// the final pass keeps any slot with members.
	withCollapse := sigmoidVector(0)
	withCollapse = append(withCollapse, testkit.Entry(phases.PhaseCollapse,
		phases.PhenotypeStart, 28.0,
		phases.PhenotypeDuration, 2.0,
		phases.PhenotypePopulationDoublings, -1.0))

	cells := make([][]phases.PhaseVector, 1)
	cells[0] = make([]phases.PhaseVector, 31)
	for i := 0; i < 30; i++ {
		cells[0][i] = sigmoidVector(0)
	}
	cells[0][30] = withCollapse

	session := NewSession(testkit.Grid(cells), nil, 30, DefaultOptions())
	tensor := session.Tensor()

	found := false
	for _, slot := range tensor.Layout {
		if slot.Phase == phases.PhaseCollapse {
			found = true
		}
	}
	if !found {
		t.Errorf("collapse slot missing from final layout")
	}
}

func TestSession_RunIsIdempotent(t *testing.T) {
	grid := testkit.UniformGrid(2, 2, sigmoidVector(0))
	session := NewSession(grid, nil, 30, DefaultOptions())

	first := session.Tensor()
	second := session.Tensor()

	if len(first.Layout) != len(second.Layout) || first.Width != second.Width {
		t.Fatalf("repeated Tensor() differs: %d/%d slots, %d/%d width",
			len(first.Layout), len(second.Layout), first.Width, second.Width)
	}
}

func TestSession_EmptyGrid(t *testing.T) {
	grid, err := plates.NewPhaseGrid(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	session := NewSession(grid, nil, 30, DefaultOptions())
	tensor := session.Tensor()

	if len(tensor.Layout) != 0 || tensor.Width != 0 {
		t.Errorf("empty plate produced %d slots, width %d", len(tensor.Layout), tensor.Width)
	}
}
