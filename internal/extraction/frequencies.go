package extraction

import (
	"phasegrid/domain/phases"
)

// AssignmentFrequencies counts, for every time index, how many curves sit in
// each phase. Only label vectors matching the first observed length
// participate; shorter or longer vectors (partial curves) are skipped, as
// are nil ones.
func AssignmentFrequencies(labelVectors [][]phases.Phase) map[phases.Phase][]int {
	length := 0
	for _, v := range labelVectors {
		if len(v) > 0 {
			length = len(v)
			break
		}
	}
	if length == 0 {
		return nil
	}

	counts := make(map[phases.Phase][]int, len(phases.AllPhases()))
	for _, p := range phases.AllPhases() {
		counts[p] = make([]int, length)
	}

	for _, v := range labelVectors {
		if len(v) != length {
			continue
		}
		for i, p := range v {
			if row, ok := counts[p]; ok {
				row[i]++
			}
		}
	}
	return counts
}
