package alignment

import (
	"phasegrid/domain/phases"
	"phasegrid/domain/plates"
)

// Tensor emits the aligned phenotype tensor for the plate: one block of
// phenotype columns per surviving slot, in slot order, with every curve's
// member segments written into their slot blocks. Cells that joined no slot
// and curves excluded from alignment stay NaN.
func (s *Session) Tensor() *plates.AlignedTensor {
	s.Run()

	layout := make([]plates.SlotLayout, len(s.slots))
	for i, sl := range s.slots {
		layout[i] = plates.SlotLayout{
			Phase:      sl.phase,
			Anchor:     sl.anchor,
			Phenotypes: phases.PhenotypesFor(sl.phase),
		}
	}

	tensor := plates.NewAlignedTensor(s.rows, s.cols, layout)
	for i, sl := range s.slots {
		off := tensor.BlockOffset(i)
		for ref := range sl.members {
			cur := s.curves[ref.curve]
			p := cur.pv[ref.segment].Phenotypes
			if p == nil {
				continue
			}
			cell := tensor.Values[cur.coord.Row][cur.coord.Col]
			for j, name := range layout[i].Phenotypes {
				cell[off+j] = p.Get(name)
			}
		}
	}
	return tensor
}

// Slots returns the settled slot layout without building the full tensor
func (s *Session) Slots() []plates.SlotLayout {
	s.Run()
	out := make([]plates.SlotLayout, len(s.slots))
	for i, sl := range s.slots {
		out[i] = plates.SlotLayout{
			Phase:      sl.phase,
			Anchor:     sl.anchor,
			Phenotypes: phases.PhenotypesFor(sl.phase),
		}
	}
	return out
}
