package plates

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phasegrid/domain/phases"
)

func TestFloatGrid_JSONRoundTrip(t *testing.T) {
	grid := NewFloatGrid(2, 2)
	grid.Set(0, 0, 1.5)
	grid.Set(0, 1, math.Inf(1))
	grid.Set(1, 0, math.Inf(-1))
	// (1, 1) stays NaN

	data, err := json.Marshal(grid)
	require.NoError(t, err)

	var back FloatGrid
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, 1.5, back.At(0, 0))
	assert.True(t, math.IsInf(back.At(0, 1), 1))
	assert.True(t, math.IsInf(back.At(1, 0), -1))
	assert.True(t, math.IsNaN(back.At(1, 1)))
}

func TestAlignedTensor_JSONRoundTrip(t *testing.T) {
	layout := []SlotLayout{
		{Phase: phases.PhaseImpulse, Anchor: 0.0, Phenotypes: phases.PhenotypesFor(phases.PhaseImpulse)},
		{Phase: phases.PhaseRetardation, Anchor: 0.4, Phenotypes: phases.PhenotypesFor(phases.PhaseRetardation)},
	}
	tensor := NewAlignedTensor(1, 2, layout)
	tensor.Values[0][0][0] = 12.0

	data, err := json.Marshal(tensor)
	require.NoError(t, err)

	var back AlignedTensor
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, tensor.Width, back.Width)
	require.Len(t, back.Layout, 2)
	assert.Equal(t, phases.PhaseImpulse, back.Layout[0].Phase)
	assert.Equal(t, 12.0, back.Values[0][0][0])
	assert.True(t, math.IsNaN(back.Values[0][1][0]))
}

func TestNewAlignedTensor_WidthAndOffsets(t *testing.T) {
	layout := []SlotLayout{
		{Phase: phases.PhaseFlat, Phenotypes: phases.PhenotypesFor(phases.PhaseFlat)},
		{Phase: phases.PhaseAcceleration, Phenotypes: phases.PhenotypesFor(phases.PhaseAcceleration)},
		{Phase: phases.PhaseImpulse, Phenotypes: phases.PhenotypesFor(phases.PhaseImpulse)},
	}
	tensor := NewAlignedTensor(2, 2, layout)

	assert.Equal(t, 16, tensor.Width)
	assert.Equal(t, 0, tensor.BlockOffset(0))
	assert.Equal(t, 6, tensor.BlockOffset(1))
	assert.Equal(t, 10, tensor.BlockOffset(2))
}

func TestFilter_Excluded(t *testing.T) {
	var nilFilter Filter
	assert.False(t, nilFilter.Excluded(0, 0))

	f := NewFilter(2, 2)
	f[1][0] = true
	assert.True(t, f.Excluded(1, 0))
	assert.False(t, f.Excluded(0, 0))
	assert.False(t, f.Excluded(9, 9))
}
