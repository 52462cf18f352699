package extraction

import (
	"math"

	"github.com/montanaflynn/stats"

	"phasegrid/domain/plates"
)

// PlateSummary is the NaN-aware descriptive summary of one meta-phenotype
// plate array, for reports and sanity checks.
type PlateSummary struct {
	Mean        float64 `json:"mean"`
	Median      float64 `json:"median"`
	StdDev      float64 `json:"std_dev"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Q25         float64 `json:"q25"`
	Q75         float64 `json:"q75"`
	FiniteCount int     `json:"finite_count"`
	TotalCount  int     `json:"total_count"`
}

// Summarize computes descriptive statistics over the finite cells of a plate
// array. A plate with no finite cells yields an all-NaN summary with counts.
func Summarize(grid *plates.FloatGrid) PlateSummary {
	all := grid.Flatten()
	finite := make([]float64, 0, len(all))
	for _, v := range all {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}

	summary := PlateSummary{
		Mean:        math.NaN(),
		Median:      math.NaN(),
		StdDev:      math.NaN(),
		Min:         math.NaN(),
		Max:         math.NaN(),
		Q25:         math.NaN(),
		Q75:         math.NaN(),
		FiniteCount: len(finite),
		TotalCount:  len(all),
	}
	if len(finite) == 0 {
		return summary
	}

	if v, err := stats.Mean(finite); err == nil {
		summary.Mean = v
	}
	if v, err := stats.Median(finite); err == nil {
		summary.Median = v
	}
	if v, err := stats.StandardDeviation(finite); err == nil {
		summary.StdDev = v
	}
	if v, err := stats.Min(finite); err == nil {
		summary.Min = v
	}
	if v, err := stats.Max(finite); err == nil {
		summary.Max = v
	}
	if v, err := stats.Percentile(finite, 25); err == nil {
		summary.Q25 = v
	}
	if v, err := stats.Percentile(finite, 75); err == nil {
		summary.Q75 = v
	}
	return summary
}
