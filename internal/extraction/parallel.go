package extraction

import (
	"context"
	"math"
	"sync"

	"golang.org/x/sync/semaphore"

	"phasegrid/domain/plates"
)

// mapCells applies fn to every cell of the plate with bounded parallelism.
// Cells are independent and side-effect free, so no ordering is guaranteed;
// each goroutine writes only its own output cell. Excluded and empty cells
// stay NaN.
func (e *Extractor) mapCells(ctx context.Context, in Inputs, fn cellFunc) (*plates.FloatGrid, error) {
	grid := in.Grid
	out := plates.NewFloatGrid(grid.Rows, grid.Cols)

	sem := semaphore.NewWeighted(e.workers)
	var wg sync.WaitGroup

	for r := 0; r < grid.Rows; r++ {
		for c := 0; c < grid.Cols; c++ {
			if in.Filter.Excluded(r, c) {
				continue
			}
			pv := grid.Cells[r][c]
			if pv == nil {
				continue
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return nil, err
			}
			wg.Add(1)
			go func(r, c int) {
				defer wg.Done()
				defer sem.Release(1)
				// Malformed cell data degrades that cell to NaN, never
				// the whole plate.
				defer func() {
					if rec := recover(); rec != nil {
						e.log.Error("cell (%d, %d) degraded to NaN: %v", r, c, rec)
						out.Values[r][c] = math.NaN()
					}
				}()
				out.Values[r][c] = fn(grid.Cells[r][c], plates.Coord{Row: r, Col: c})
			}(r, c)
		}
	}

	wg.Wait()
	return out, nil
}
