package phases

import (
	"fmt"
)

// Segment is a maximal contiguous run of curve indices sharing one phase.
// The range is half-open: [Start, End).
type Segment struct {
	Phase Phase `json:"phase"`
	Start int   `json:"start"`
	End   int   `json:"end"`
}

// Len returns the number of samples covered by the segment
func (s Segment) Len() int {
	return s.End - s.Start
}

// ValidateCoverage checks that segments tile [0, n) exactly once in order:
// no gaps, no overlaps, same-phase neighbors already merged.
func ValidateCoverage(segments []Segment, n int) error {
	if len(segments) == 0 {
		if n == 0 {
			return nil
		}
		return fmt.Errorf("no segments for %d samples", n)
	}
	if segments[0].Start != 0 {
		return fmt.Errorf("first segment starts at %d, want 0", segments[0].Start)
	}
	for i, s := range segments {
		if s.End <= s.Start {
			return fmt.Errorf("segment %d has non-positive length [%d, %d)", i, s.Start, s.End)
		}
		if i > 0 {
			prev := segments[i-1]
			if s.Start != prev.End {
				return fmt.Errorf("segment %d starts at %d, previous ends at %d", i, s.Start, prev.End)
			}
			if s.Phase == prev.Phase {
				return fmt.Errorf("segments %d and %d share phase %s", i-1, i, s.Phase)
			}
		}
	}
	if last := segments[len(segments)-1]; last.End != n {
		return fmt.Errorf("last segment ends at %d, want %d", last.End, n)
	}
	return nil
}

// ExpandLabels flattens a segment sequence back into the per-index phase
// labels it covers
func ExpandLabels(segments []Segment) []Phase {
	if len(segments) == 0 {
		return nil
	}
	labels := make([]Phase, segments[len(segments)-1].End)
	for _, s := range segments {
		for i := s.Start; i < s.End && i < len(labels); i++ {
			labels[i] = s.Phase
		}
	}
	return labels
}

// Entry pairs a segment's phase with its computed phenotypes. Phenotypes is
// nil when the segment is undetermined or its calculation was skipped.
type Entry struct {
	Phase      Phase             `json:"phase"`
	Phenotypes SegmentPhenotypes `json:"phenotypes,omitempty"`
}

// PhaseVector is the per-curve ordered sequence of segment entries, in time
// order. It is built once per curve and read-only afterward.
type PhaseVector []Entry

// Count returns the number of entries with the given phase
func (pv PhaseVector) Count(phase Phase) int {
	n := 0
	for _, e := range pv {
		if e.Phase == phase {
			n++
		}
	}
	return n
}

// Indices returns the entry indices carrying the given phase, in order
func (pv PhaseVector) Indices(phase Phase) []int {
	var out []int
	for i, e := range pv {
		if e.Phase == phase {
			out = append(out, i)
		}
	}
	return out
}

// DeterminedCount returns the number of entries with a determined phase
func (pv PhaseVector) DeterminedCount() int {
	n := 0
	for _, e := range pv {
		if e.Phase.IsDetermined() {
			n++
		}
	}
	return n
}

// IndexOfSequence scans the phase sequence for the given phases occurring in
// order (not necessarily adjacent) and returns the entry index where the last
// one matched, or -1. IndexOfSequence(Flat, Impulse) finds the first impulse
// following a flat phase.
func (pv PhaseVector) IndexOfSequence(seq ...Phase) int {
	if len(seq) == 0 {
		return -1
	}
	next := 0
	for i, e := range pv {
		if e.Phase == seq[next] {
			next++
			if next == len(seq) {
				return i
			}
		}
	}
	return -1
}
