package alignment

import (
	"math"
	"sort"

	"phasegrid/domain/phases"
	"phasegrid/domain/plates"
	"phasegrid/internal"
	"phasegrid/internal/extraction"
)

// Options bounds the refinement loop.
type Options struct {
	// Passes caps the refinement iterations. The cap is a fixed budget, not
	// a convergence proof; tune against real plates before trusting it.
	Passes int
	// PruneFraction is the minimum slot membership, as a fraction of
	// eligible curves, required to survive a non-final pass.
	PruneFraction float64
	// Smoothing is the weight kept on a slot's running anchor when a new
	// member joins.
	Smoothing float64
}

// DefaultOptions returns the standard refinement budget
func DefaultOptions() Options {
	return Options{Passes: 10, PruneFraction: 0.05, Smoothing: 0.9}
}

type memberRef struct {
	curve   int
	segment int
}

// slot is one shared phase position across curves: a phase type, a member
// set and an exponentially smoothed anchor estimate.
type slot struct {
	phase     phases.Phase
	members   map[memberRef]struct{}
	anchor    float64
	hasAnchor bool
	major     bool
}

func newSlot(phase phases.Phase) *slot {
	return &slot{phase: phase, members: make(map[memberRef]struct{})}
}

func (s *slot) has(ref memberRef) bool {
	_, ok := s.members[ref]
	return ok
}

// alignCurve is one eligible curve's alignment context: its phase vector,
// the major impulse position and the impulse's temporal midpoint used to
// normalize anchors.
type alignCurve struct {
	coord     plates.Coord
	pv        phases.PhaseVector
	majorIdx  int
	majorTime float64
}

// Session aligns the phase structures of all curves on one plate into shared
// slots. All state is scoped to the session; a session is single-use and not
// safe for concurrent access: refinement passes read and mutate shared slot
// membership and anchors across curves.
type Session struct {
	log     *internal.Logger
	opts    Options
	curves  []alignCurve
	endTime float64
	slots   []*slot
	rows    int
	cols    int
	done    bool
}

// NewSession gathers the eligible curves of a plate. Curves that are
// QC-excluded, empty, or lack a detectable major impulse are silently left
// out: they contribute nothing to slot formation and appear as all-NaN rows
// in the output tensor.
func NewSession(grid *plates.PhaseGrid, filter plates.Filter, endTime float64, opts Options) *Session {
	s := &Session{
		log:     internal.NewDefaultLogger("phase alignment"),
		opts:    opts,
		endTime: endTime,
		rows:    grid.Rows,
		cols:    grid.Cols,
	}
	if s.opts.Passes <= 0 {
		s.opts = DefaultOptions()
	}

	for r := 0; r < grid.Rows; r++ {
		for c := 0; c < grid.Cols; c++ {
			if filter.Excluded(r, c) {
				continue
			}
			pv := grid.Cells[r][c]
			if pv == nil {
				continue
			}
			mi := extraction.MajorImpulseIndex(pv)
			if mi < 0 || pv[mi].Phenotypes == nil {
				continue
			}
			start := pv[mi].Phenotypes.Get(phases.PhenotypeStart)
			duration := pv[mi].Phenotypes.Get(phases.PhenotypeDuration)
			if math.IsNaN(start) || math.IsNaN(duration) {
				continue
			}
			s.curves = append(s.curves, alignCurve{
				coord:     plates.Coord{Row: r, Col: c},
				pv:        pv,
				majorIdx:  mi,
				majorTime: start + 0.5*duration,
			})
		}
	}
	return s
}

// CurveCount returns the number of curves participating in alignment
func (s *Session) CurveCount() int {
	return len(s.curves)
}

// Run seeds the slots and executes the bounded refinement passes. Calling
// Run twice is a no-op.
func (s *Session) Run() {
	if s.done {
		return
	}
	s.done = true
	if len(s.curves) == 0 {
		return
	}

	s.seed()
	for pass := 0; pass < s.opts.Passes; pass++ {
		for ci := range s.curves {
			s.assignCurve(ci)
		}
		s.pruneSlots(pass == s.opts.Passes-1)
		s.sortSlots()
	}
	s.log.Debug("alignment settled on %d slots for %d curves", len(s.slots), len(s.curves))
}

// seed initializes the slot list: one slot per pre-impulse segment of the
// curve with the most segments left of its major impulse, the distinguished
// major-impulse slot, then one slot per post-impulse segment of the curve
// with the most segments right of its major impulse.
func (s *Session) seed() {
	leftSeed, rightSeed := 0, 0
	rightBest := s.curves[0].pv.DeterminedCount() - s.curves[0].majorIdx
	for ci, cur := range s.curves {
		if cur.majorIdx > s.curves[leftSeed].majorIdx {
			leftSeed = ci
		}
		// Undetermined entries never join slots, so the right seed is the
		// curve with the most determined phases past its major impulse.
		if n := cur.pv.DeterminedCount() - cur.majorIdx; n > rightBest {
			rightSeed, rightBest = ci, n
		}
	}

	left := s.curves[leftSeed]
	for si := 0; si < left.majorIdx; si++ {
		if left.pv[si].Phenotypes == nil || !left.pv[si].Phase.IsDetermined() {
			continue
		}
		sl := newSlot(left.pv[si].Phase)
		s.slots = append(s.slots, sl)
		s.join(sl, memberRef{leftSeed, si}, left)
	}

	major := newSlot(phases.PhaseImpulse)
	major.major = true
	s.slots = append(s.slots, major)
	s.join(major, memberRef{leftSeed, left.majorIdx}, left)

	right := s.curves[rightSeed]
	for si := right.majorIdx + 1; si < len(right.pv); si++ {
		if right.pv[si].Phenotypes == nil || !right.pv[si].Phase.IsDetermined() {
			continue
		}
		sl := newSlot(right.pv[si].Phase)
		s.slots = append(s.slots, sl)
		s.join(sl, memberRef{rightSeed, si}, right)
	}
}

// assignCurve walks one curve's segments in time order and (re)assigns each
// to its minimum-energy slot, respecting the ordering constraint: a segment
// never lands in a slot positioned before an already-assigned earlier
// segment of the same curve, and never crosses the major-impulse slot.
func (s *Session) assignCurve(ci int) {
	cur := s.curves[ci]
	prev := -1

	for si := range cur.pv {
		e := cur.pv[si]
		if e.Phenotypes == nil || !e.Phase.IsDetermined() {
			continue
		}
		ref := memberRef{ci, si}

		// The major impulse's slot membership is fixed.
		if si == cur.majorIdx {
			ms := s.majorSlotIndex()
			if !s.slots[ms].has(ref) {
				s.join(s.slots[ms], ref, cur)
			}
			prev = ms
			continue
		}

		current := s.findSlot(ref)
		if current >= 0 {
			if current > prev && s.energy(s.slots[current], e, cur) == 0 {
				prev = current
				continue
			}
			delete(s.slots[current].members, ref)
		}

		lo, hi := s.window(prev, si < cur.majorIdx)
		best, bestEnergy := -1, math.Inf(1)
		for i := lo; i < hi; i++ {
			en := s.energy(s.slots[i], e, cur)
			if en < 1 && en < bestEnergy {
				best, bestEnergy = i, en
			}
		}

		if best < 0 {
			best = s.insertSlot(e, ref, cur, lo, hi)
		} else {
			s.join(s.slots[best], ref, cur)
		}
		prev = best
	}
}

// window returns the searchable slot index range [lo, hi) for a segment on
// the given side of the major impulse
func (s *Session) window(prev int, left bool) (lo, hi int) {
	ms := s.majorSlotIndex()
	if left {
		lo, hi = 0, ms
	} else {
		lo, hi = ms+1, len(s.slots)
	}
	if prev+1 > lo {
		lo = prev + 1
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// insertSlot creates a new slot for the segment, placed by anchor order
// within [lo, hi], and returns its index
func (s *Session) insertSlot(e phases.Entry, ref memberRef, cur alignCurve, lo, hi int) int {
	_, _, anchor, ok := s.interval(e, cur)
	sl := newSlot(e.Phase)
	s.join(sl, ref, cur)

	pos := hi
	if ok {
		for i := lo; i < hi; i++ {
			if s.slots[i].hasAnchor && s.slots[i].anchor > anchor {
				pos = i
				break
			}
		}
	}

	s.slots = append(s.slots, nil)
	copy(s.slots[pos+1:], s.slots[pos:])
	s.slots[pos] = sl
	return pos
}

// join adds a member and folds its anchor into the slot's running average
// with exponential smoothing
func (s *Session) join(sl *slot, ref memberRef, cur alignCurve) {
	sl.members[ref] = struct{}{}
	_, _, anchor, ok := s.interval(cur.pv[ref.segment], cur)
	if !ok {
		return
	}
	if sl.hasAnchor {
		sl.anchor = s.opts.Smoothing*sl.anchor + (1-s.opts.Smoothing)*anchor
	} else {
		sl.anchor = anchor
		sl.hasAnchor = true
	}
}

// energy scores a segment against a slot: 0 when the phase matches and the
// slot anchor falls inside the segment's normalized interval (or the slot
// has no anchor yet); the normalized distance to the nearest interval edge
// otherwise; +Inf on a phase-type mismatch.
func (s *Session) energy(sl *slot, e phases.Entry, cur alignCurve) float64 {
	if sl.phase != e.Phase {
		return math.Inf(1)
	}
	start, end, _, ok := s.interval(e, cur)
	if !ok {
		return math.Inf(1)
	}
	if !sl.hasAnchor {
		return 0
	}
	if start <= sl.anchor && sl.anchor <= end {
		return 0
	}
	return math.Min(math.Abs(sl.anchor-end), math.Abs(sl.anchor-start)) / (end - start)
}

// interval normalizes a segment's temporal position against the curve's
// major-impulse midpoint and the experiment end time. Segments starting
// before the midpoint map into [-1, 0) fractions of the pre-impulse window;
// later segments map into fractions of the post-impulse window. The anchor
// is the normalized segment midpoint.
func (s *Session) interval(e phases.Entry, cur alignCurve) (start, end, anchor float64, ok bool) {
	t0 := e.Phenotypes.Get(phases.PhenotypeStart)
	duration := e.Phenotypes.Get(phases.PhenotypeDuration)
	if math.IsNaN(t0) || math.IsNaN(duration) || cur.majorTime <= 0 {
		return 0, 0, 0, false
	}

	var span float64
	if t0 < cur.majorTime {
		start = t0/cur.majorTime - 1
		span = cur.majorTime
	} else {
		start = (t0 - cur.majorTime) / (s.endTime - cur.majorTime)
		span = s.endTime - cur.majorTime
	}
	if span <= 0 || math.IsNaN(span) {
		return 0, 0, 0, false
	}

	end = start + duration/span
	anchor = start + 0.5*duration/span
	return start, end, anchor, true
}

// pruneSlots drops slots whose membership fell below the survival threshold:
// a fraction of the curve count on ordinary passes, any membership at all on
// the final pass. The major slot always survives.
func (s *Session) pruneSlots(final bool) {
	threshold := int(s.opts.PruneFraction * float64(len(s.curves)))
	if final {
		threshold = 0
	}
	kept := s.slots[:0]
	for _, sl := range s.slots {
		if sl.major || len(sl.members) > threshold {
			kept = append(kept, sl)
		}
	}
	s.slots = kept
}

// sortSlots orders slots by ascending anchor; anchorless slots sink to the end
func (s *Session) sortSlots() {
	sort.SliceStable(s.slots, func(a, b int) bool {
		av, bv := math.Inf(1), math.Inf(1)
		if s.slots[a].hasAnchor {
			av = s.slots[a].anchor
		}
		if s.slots[b].hasAnchor {
			bv = s.slots[b].anchor
		}
		return av < bv
	})
}

func (s *Session) majorSlotIndex() int {
	for i, sl := range s.slots {
		if sl.major {
			return i
		}
	}
	return -1
}

func (s *Session) findSlot(ref memberRef) int {
	for i, sl := range s.slots {
		if sl.has(ref) {
			return i
		}
	}
	return -1
}
