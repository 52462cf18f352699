package testkit

import (
	"math"

	"phasegrid/domain/curves"
	"phasegrid/domain/phases"
	"phasegrid/domain/plates"
)

// Block describes one stretch of synthetic curve samples with constant
// derivative signals. Values are integrated from the slope, so a block
// sequence yields a curve whose classification is known by construction.
type Block struct {
	N         int
	Slope     float64
	Curvature float64
}

// Flat returns a zero-slope block
func Flat(n int) Block {
	return Block{N: n}
}

// Impulse returns a linear growth block with negligible curvature
func Impulse(n int, slope float64) Block {
	return Block{N: n, Slope: slope}
}

// Accel returns a positive-curvature block
func Accel(n int, slope, curvature float64) Block {
	return Block{N: n, Slope: slope, Curvature: math.Abs(curvature)}
}

// Retard returns a negative-curvature block with non-negative slope
func Retard(n int, slope, curvature float64) Block {
	return Block{N: n, Slope: math.Abs(slope), Curvature: -math.Abs(curvature)}
}

// Collapse returns a declining block with negligible curvature
func Collapse(n int, slope float64) Block {
	return Block{N: n, Slope: -math.Abs(slope)}
}

// Curve integrates a block sequence into a growth curve. Sampling starts at
// t=0 with the given step and initial log2 population size.
func Curve(dt, v0 float64, blocks ...Block) *curves.GrowthCurve {
	var times, values, d1, d2 []float64
	t, v := 0.0, v0
	for _, b := range blocks {
		for i := 0; i < b.N; i++ {
			times = append(times, t)
			values = append(values, v)
			d1 = append(d1, b.Slope)
			d2 = append(d2, b.Curvature)
			t += dt
			v += b.Slope * dt
		}
	}
	curve, err := curves.NewGrowthCurve(times, values, d1, d2)
	if err != nil {
		panic(err)
	}
	return curve
}

// Plate fills a plate with copies of the given curve
func Plate(rows, cols int, curve *curves.GrowthCurve) *curves.Plate {
	p, err := curves.NewPlate(rows, cols)
	if err != nil {
		panic(err)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			p.Set(r, c, curve)
		}
	}
	return p
}

// Entry builds a phase vector entry from phenotype key-value pairs
func Entry(phase phases.Phase, kv ...interface{}) phases.Entry {
	if len(kv) == 0 {
		return phases.Entry{Phase: phase}
	}
	sp := make(phases.SegmentPhenotypes, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		sp[kv[i].(phases.SegmentPhenotype)] = toFloat(kv[i+1])
	}
	return phases.Entry{Phase: phase, Phenotypes: sp}
}

// Grid builds a phase grid from a rectangular cell layout
func Grid(cells [][]phases.PhaseVector) *plates.PhaseGrid {
	grid, err := plates.NewPhaseGrid(len(cells), len(cells[0]))
	if err != nil {
		panic(err)
	}
	for r, row := range cells {
		for c, pv := range row {
			grid.Set(r, c, pv)
		}
	}
	return grid
}

// UniformGrid fills a rows x cols phase grid with one shared phase vector
func UniformGrid(rows, cols int, pv phases.PhaseVector) *plates.PhaseGrid {
	grid, err := plates.NewPhaseGrid(rows, cols)
	if err != nil {
		panic(err)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			grid.Set(r, c, pv)
		}
	}
	return grid
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	default:
		panic("phenotype values must be numeric")
	}
}
