package curves

import (
	"math"

	"phasegrid/domain/core"
)

// GrowthCurve is one colony position's smoothed growth record: log2 population
// size over time plus the first- and second-derivative estimates produced by
// the upstream preprocessing stage. All four sequences share one index space.
//
// INVARIANTS:
// - Times, Values, FirstDeriv and SecondDeriv have equal length
// - Times is strictly increasing
// - Values/derivatives may be NaN for excluded samples
type GrowthCurve struct {
	Times       []float64 `json:"times"`
	Values      []float64 `json:"values"`
	FirstDeriv  []float64 `json:"first_deriv"`
	SecondDeriv []float64 `json:"second_deriv"`
}

// NewGrowthCurve validates and constructs a growth curve
func NewGrowthCurve(times, values, firstDeriv, secondDeriv []float64) (*GrowthCurve, error) {
	n := len(times)
	if len(values) != n || len(firstDeriv) != n || len(secondDeriv) != n {
		return nil, core.ErrCurveShapeMismatch
	}
	for i := 1; i < n; i++ {
		if !(times[i] > times[i-1]) {
			return nil, core.ErrNonMonotonicTime
		}
	}
	return &GrowthCurve{
		Times:       times,
		Values:      values,
		FirstDeriv:  firstDeriv,
		SecondDeriv: secondDeriv,
	}, nil
}

// Len returns the number of samples
func (c *GrowthCurve) Len() int {
	return len(c.Times)
}

// EndTime returns the last sample time, or NaN for an empty curve
func (c *GrowthCurve) EndTime() float64 {
	if len(c.Times) == 0 {
		return math.NaN()
	}
	return c.Times[len(c.Times)-1]
}

// Span returns the time covered by the half-open index range [start, end)
func (c *GrowthCurve) Span(start, end int) float64 {
	if start < 0 || end > len(c.Times) || end <= start {
		return math.NaN()
	}
	return c.Times[end-1] - c.Times[start]
}

// Plate is the 2D grid of growth curves for one plate. A nil cell means the
// position was empty or rejected before this stage.
type Plate struct {
	Rows   int              `json:"rows"`
	Cols   int              `json:"cols"`
	Curves [][]*GrowthCurve `json:"curves"`
}

// NewPlate allocates an empty curve plate
func NewPlate(rows, cols int) (*Plate, error) {
	if rows <= 0 || cols <= 0 {
		return nil, core.ErrEmptyPlate
	}
	grid := make([][]*GrowthCurve, rows)
	for r := range grid {
		grid[r] = make([]*GrowthCurve, cols)
	}
	return &Plate{Rows: rows, Cols: cols, Curves: grid}, nil
}

// At returns the curve at (row, col), nil when out of range or unset
func (p *Plate) At(row, col int) *GrowthCurve {
	if row < 0 || row >= p.Rows || col < 0 || col >= p.Cols {
		return nil
	}
	return p.Curves[row][col]
}

// Set places a curve at (row, col); out-of-range coordinates are ignored
func (p *Plate) Set(row, col int, c *GrowthCurve) {
	if row < 0 || row >= p.Rows || col < 0 || col >= p.Cols {
		return
	}
	p.Curves[row][col] = c
}

// EndTime returns the maximum sample time across the plate (the experiment
// end time used by alignment anchor normalization)
func (p *Plate) EndTime() float64 {
	end := math.NaN()
	for r := 0; r < p.Rows; r++ {
		for c := 0; c < p.Cols; c++ {
			curve := p.Curves[r][c]
			if curve == nil {
				continue
			}
			t := curve.EndTime()
			if math.IsNaN(end) || t > end {
				end = t
			}
		}
	}
	return end
}
