package ports

import (
	"context"

	"phasegrid/domain/curves"
	"phasegrid/domain/plates"
)

// CurveSource defines the interface for loading preprocessed growth curves.
// Implementations hand back plates whose curves already carry smoothed values
// and both derivative signals; segmentation never re-derives them.
type CurveSource interface {
	// LoadPlate reads one plate of curves by its position in the source
	LoadPlate(ctx context.Context, index int) (*curves.Plate, error)

	// LoadFilter reads the plate's quality-control mask, nil when the source
	// carries none
	LoadFilter(ctx context.Context, index int) (plates.Filter, error)

	// PlateCount reports how many plates the source holds
	PlateCount(ctx context.Context) (int, error)
}
