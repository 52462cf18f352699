package plates

import (
	"math"

	"phasegrid/domain/core"
	"phasegrid/domain/phases"
)

// Coord addresses one colony position on a plate
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// PhaseGrid holds the per-cell phase vectors for a whole plate. A nil cell
// means curve quality control rejected the position or no curve was present.
type PhaseGrid struct {
	Rows  int                   `json:"rows"`
	Cols  int                   `json:"cols"`
	Cells [][]phases.PhaseVector `json:"cells"`
}

// NewPhaseGrid allocates an empty phase grid
func NewPhaseGrid(rows, cols int) (*PhaseGrid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, core.ErrEmptyPlate
	}
	cells := make([][]phases.PhaseVector, rows)
	for r := range cells {
		cells[r] = make([]phases.PhaseVector, cols)
	}
	return &PhaseGrid{Rows: rows, Cols: cols, Cells: cells}, nil
}

// At returns the phase vector at (row, col), nil when out of range or unset
func (g *PhaseGrid) At(row, col int) phases.PhaseVector {
	if row < 0 || row >= g.Rows || col < 0 || col >= g.Cols {
		return nil
	}
	return g.Cells[row][col]
}

// Set places a phase vector at (row, col); out-of-range coordinates are ignored
func (g *PhaseGrid) Set(row, col int, pv phases.PhaseVector) {
	if row < 0 || row >= g.Rows || col < 0 || col >= g.Cols {
		return
	}
	g.Cells[row][col] = pv
}

// Filter is the plate-wide quality-control mask. True marks a cell excluded
// from aggregation (the convention of the upstream QC stage).
type Filter [][]bool

// NewFilter allocates an all-included filter
func NewFilter(rows, cols int) Filter {
	f := make(Filter, rows)
	for r := range f {
		f[r] = make([]bool, cols)
	}
	return f
}

// Excluded reports whether (row, col) is masked out. Out-of-range
// coordinates and a nil filter are treated as included.
func (f Filter) Excluded(row, col int) bool {
	if f == nil || row < 0 || row >= len(f) || col < 0 || col >= len(f[row]) {
		return false
	}
	return f[row][col]
}

// FloatGrid is a plate-shaped scalar array. Unset cells hold NaN.
type FloatGrid struct {
	Rows   int         `json:"rows"`
	Cols   int         `json:"cols"`
	Values [][]float64 `json:"values"`
}

// NewFloatGrid allocates a NaN-filled grid
func NewFloatGrid(rows, cols int) *FloatGrid {
	values := make([][]float64, rows)
	for r := range values {
		values[r] = make([]float64, cols)
		for c := range values[r] {
			values[r][c] = math.NaN()
		}
	}
	return &FloatGrid{Rows: rows, Cols: cols, Values: values}
}

// At returns the value at (row, col), NaN when out of range
func (g *FloatGrid) At(row, col int) float64 {
	if row < 0 || row >= g.Rows || col < 0 || col >= g.Cols {
		return math.NaN()
	}
	return g.Values[row][col]
}

// Set writes a value at (row, col); out-of-range coordinates are ignored
func (g *FloatGrid) Set(row, col int, v float64) {
	if row < 0 || row >= g.Rows || col < 0 || col >= g.Cols {
		return
	}
	g.Values[row][col] = v
}

// Flatten returns all cell values in row-major order
func (g *FloatGrid) Flatten() []float64 {
	out := make([]float64, 0, g.Rows*g.Cols)
	for _, row := range g.Values {
		out = append(out, row...)
	}
	return out
}

// LowPoint carries the externally supplied experiment low-point phenotype:
// the minimum population size per cell in absolute units and the time it was
// observed. Used only by the alternative lag model.
type LowPoint struct {
	Value *FloatGrid `json:"value"`
	When  *FloatGrid `json:"when"`
}

// SlotLayout describes one aligned phase slot's block in the aligned tensor:
// its phase type and the phenotype columns it contributes, in registry order.
type SlotLayout struct {
	Phase      phases.Phase              `json:"phase"`
	Anchor     float64                   `json:"anchor"`
	Phenotypes []phases.SegmentPhenotype `json:"phenotypes"`
}

// AlignedTensor is the plate-aligned phenotype tensor: for every cell, a flat
// concatenation of per-slot phenotype blocks. Cells not participating in a
// slot hold NaN for that block; curves excluded from alignment are all-NaN.
type AlignedTensor struct {
	Rows   int           `json:"rows"`
	Cols   int           `json:"cols"`
	Width  int           `json:"width"`
	Values [][][]float64 `json:"values"`
	Layout []SlotLayout  `json:"layout"`
}

// NewAlignedTensor allocates a NaN-filled tensor for the given layout
func NewAlignedTensor(rows, cols int, layout []SlotLayout) *AlignedTensor {
	width := 0
	for _, slot := range layout {
		width += len(slot.Phenotypes)
	}
	values := make([][][]float64, rows)
	for r := range values {
		values[r] = make([][]float64, cols)
		for c := range values[r] {
			cell := make([]float64, width)
			for i := range cell {
				cell[i] = math.NaN()
			}
			values[r][c] = cell
		}
	}
	return &AlignedTensor{Rows: rows, Cols: cols, Width: width, Values: values, Layout: layout}
}

// BlockOffset returns the column offset of the i-th slot's block
func (t *AlignedTensor) BlockOffset(i int) int {
	off := 0
	for j := 0; j < i && j < len(t.Layout); j++ {
		off += len(t.Layout[j].Phenotypes)
	}
	return off
}
