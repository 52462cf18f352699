package plates

import (
	"encoding/json"

	"phasegrid/domain/core"
	"phasegrid/domain/phases"
)

// The scalar arrays here legitimately carry NaN and infinity sentinels, which
// encoding/json cannot represent as bare numbers. They marshal through
// core.Float instead.

type floatGridJSON struct {
	Rows   int            `json:"rows"`
	Cols   int            `json:"cols"`
	Values [][]core.Float `json:"values"`
}

// MarshalJSON implements json.Marshaler
func (g *FloatGrid) MarshalJSON() ([]byte, error) {
	out := floatGridJSON{Rows: g.Rows, Cols: g.Cols, Values: make([][]core.Float, len(g.Values))}
	for r, row := range g.Values {
		out.Values[r] = core.Floats(row)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler
func (g *FloatGrid) UnmarshalJSON(data []byte) error {
	var in floatGridJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	g.Rows, g.Cols = in.Rows, in.Cols
	g.Values = make([][]float64, len(in.Values))
	for r, row := range in.Values {
		g.Values[r] = core.Float64s(row)
	}
	return nil
}

type slotLayoutJSON struct {
	Phase      phases.Phase              `json:"phase"`
	Anchor     core.Float                `json:"anchor"`
	Phenotypes []phases.SegmentPhenotype `json:"phenotypes"`
}

type alignedTensorJSON struct {
	Rows   int              `json:"rows"`
	Cols   int              `json:"cols"`
	Width  int              `json:"width"`
	Values [][][]core.Float `json:"values"`
	Layout []slotLayoutJSON `json:"layout"`
}

// MarshalJSON implements json.Marshaler
func (t *AlignedTensor) MarshalJSON() ([]byte, error) {
	out := alignedTensorJSON{
		Rows:   t.Rows,
		Cols:   t.Cols,
		Width:  t.Width,
		Values: make([][][]core.Float, len(t.Values)),
		Layout: make([]slotLayoutJSON, len(t.Layout)),
	}
	for r, row := range t.Values {
		out.Values[r] = make([][]core.Float, len(row))
		for c, cell := range row {
			out.Values[r][c] = core.Floats(cell)
		}
	}
	for i, slot := range t.Layout {
		out.Layout[i] = slotLayoutJSON{Phase: slot.Phase, Anchor: core.Float(slot.Anchor), Phenotypes: slot.Phenotypes}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler
func (t *AlignedTensor) UnmarshalJSON(data []byte) error {
	var in alignedTensorJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	t.Rows, t.Cols, t.Width = in.Rows, in.Cols, in.Width
	t.Values = make([][][]float64, len(in.Values))
	for r, row := range in.Values {
		t.Values[r] = make([][]float64, len(row))
		for c, cell := range row {
			t.Values[r][c] = core.Float64s(cell)
		}
	}
	t.Layout = make([]SlotLayout, len(in.Layout))
	for i, slot := range in.Layout {
		t.Layout[i] = SlotLayout{Phase: slot.Phase, Anchor: float64(slot.Anchor), Phenotypes: slot.Phenotypes}
	}
	return nil
}
