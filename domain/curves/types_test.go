package curves

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phasegrid/domain/core"
)

func TestNewGrowthCurve_Validation(t *testing.T) {
	_, err := NewGrowthCurve(
		[]float64{0, 1, 2},
		[]float64{1, 2},
		[]float64{0, 0, 0},
		[]float64{0, 0, 0},
	)
	assert.ErrorIs(t, err, core.ErrCurveShapeMismatch)

	_, err = NewGrowthCurve(
		[]float64{0, 2, 1},
		[]float64{1, 2, 3},
		[]float64{0, 0, 0},
		[]float64{0, 0, 0},
	)
	assert.ErrorIs(t, err, core.ErrNonMonotonicTime)

	curve, err := NewGrowthCurve(
		[]float64{0, 1, 2},
		[]float64{1, math.NaN(), 3},
		[]float64{0, 0, 0},
		[]float64{0, 0, 0},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, curve.Len())
}

func TestGrowthCurve_Span(t *testing.T) {
	curve, err := NewGrowthCurve(
		[]float64{0, 0.5, 1.0, 1.5},
		[]float64{1, 1, 1, 1},
		[]float64{0, 0, 0, 0},
		[]float64{0, 0, 0, 0},
	)
	require.NoError(t, err)

	assert.Equal(t, 1.5, curve.Span(0, 4))
	assert.Equal(t, 0.5, curve.Span(1, 3))
	assert.True(t, math.IsNaN(curve.Span(2, 2)))
	assert.True(t, math.IsNaN(curve.Span(0, 9)))
	assert.Equal(t, 1.5, curve.EndTime())
}

func TestPlate_EndTime(t *testing.T) {
	plate, err := NewPlate(2, 2)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(plate.EndTime()))

	short, _ := NewGrowthCurve([]float64{0, 1}, []float64{1, 1}, []float64{0, 0}, []float64{0, 0})
	long, _ := NewGrowthCurve([]float64{0, 1, 5}, []float64{1, 1, 1}, []float64{0, 0, 0}, []float64{0, 0, 0})
	plate.Set(0, 0, short)
	plate.Set(1, 1, long)

	assert.Equal(t, 5.0, plate.EndTime())
	assert.Nil(t, plate.At(5, 5))

	_, err = NewPlate(0, 4)
	assert.ErrorIs(t, err, core.ErrEmptyPlate)
}
