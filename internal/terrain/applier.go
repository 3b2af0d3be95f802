// Package terrain writes generated grids into the live world, skipping
// unchanged columns and rolling back partially written grids.
package terrain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"worldgen/internal/biome"
	"worldgen/internal/sched"
)

const (
	DefaultBatchSize = 256
	DefaultEpsilon   = 1e-3
)

// Stats counts applier work.
type Stats struct {
	Applied    uint64 // grids fully applied
	Cleared    uint64 // grids cleared on eviction
	Written    uint64 // columns written
	Skipped    uint64 // columns left alone by the diff
	Batches    uint64
	Failures   uint64
	RolledBack uint64 // columns restored after a failure
	Deferred   uint64 // grids rolled back because the tick budget ran out
}

// Applier writes grids into a World.
type Applier struct {
	world     World
	batchSize int
	epsilon   float64
	yield     func(context.Context) error
	logger    *slog.Logger
	stats     Stats
}

// ApplierOption configures an Applier.
type ApplierOption func(*Applier)

// WithBatchSize sets how many cells are processed between yields.
func WithBatchSize(n int) ApplierOption {
	return func(a *Applier) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithEpsilon sets the height difference below which a write is skipped.
func WithEpsilon(eps float64) ApplierOption {
	return func(a *Applier) {
		if eps >= 0 {
			a.epsilon = eps
		}
	}
}

// WithYield installs the hook called after each batch. A non-nil error
// aborts and rolls back the current grid.
func WithYield(fn func(context.Context) error) ApplierOption {
	return func(a *Applier) { a.yield = fn }
}

func WithLogger(l *slog.Logger) ApplierOption {
	return func(a *Applier) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewApplier(w World, opts ...ApplierOption) *Applier {
	a := &Applier{
		world:     w,
		batchSize: DefaultBatchSize,
		epsilon:   DefaultEpsilon,
		yield:     func(ctx context.Context) error { return ctx.Err() },
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "terrain")
	return a
}

type undo struct {
	x, z    int
	prev    Surface
	hadPrev bool
}

// Apply writes every cell of g at (originX+i, originZ+j). Either all
// changed columns are written or none are.
//
// Every cell costs one operation of budget. A grid started on an unspent
// budget always completes. Otherwise, finding the budget exhausted at a
// batch boundary rolls the grid back and returns sched.ErrExhausted. A nil
// budget is unlimited.
func (a *Applier) Apply(ctx context.Context, g *biome.Grid, originX, originZ int, budget *sched.Budget) error {
	journal := make([]undo, 0, len(g.Cells))
	fresh := budget.Spent() == 0
	total := len(g.Cells)
	processed := 0
	for j := 0; j < g.Size; j++ {
		for i := 0; i < g.Size; i++ {
			cell := g.At(i, j)
			x, z := originX+i, originZ+j
			cur, ok := a.world.Surface(x, z)
			if ok && cur.Material == cell.Material && math.Abs(cur.Height-cell.Height) <= a.epsilon {
				a.stats.Skipped++
			} else {
				if err := a.world.SetSurface(x, z, Surface{Height: cell.Height, Material: cell.Material}); err != nil {
					a.rollback(journal)
					a.stats.Failures++
					return fmt.Errorf("apply (%d, %d): %w", x, z, err)
				}
				journal = append(journal, undo{x: x, z: z, prev: cur, hadPrev: ok})
				a.stats.Written++
			}
			processed++
			budget.Spend(1)
			if processed%a.batchSize == 0 {
				a.stats.Batches++
				err := a.yield(ctx)
				if err == nil && !fresh && processed < total && budget.Exhausted() {
					err = sched.ErrExhausted
				}
				if err != nil {
					a.rollback(journal)
					if errors.Is(err, sched.ErrExhausted) {
						a.stats.Deferred++
					} else {
						a.stats.Failures++
					}
					return fmt.Errorf("apply interrupted after %d of %d cells: %w", processed, total, err)
				}
			}
		}
	}
	a.stats.Applied++
	return nil
}

func (a *Applier) rollback(journal []undo) {
	for k := len(journal) - 1; k >= 0; k-- {
		u := journal[k]
		var err error
		if u.hadPrev {
			err = a.world.SetSurface(u.x, u.z, u.prev)
		} else {
			err = a.world.ClearSurface(u.x, u.z)
		}
		if err != nil {
			a.logger.Error("rollback failed", "x", u.x, "z", u.z, "err", err)
			continue
		}
		a.stats.RolledBack++
	}
}

// Clear removes the footprint of g, for worlds that do not keep terrain of
// evicted chunks. Columns whose content no longer matches g are left alone,
// as are columns for which keep returns true. keep may be nil.
func (a *Applier) Clear(ctx context.Context, g *biome.Grid, originX, originZ int, keep func(x, z int) bool) error {
	processed := 0
	for j := 0; j < g.Size; j++ {
		for i := 0; i < g.Size; i++ {
			cell := g.At(i, j)
			x, z := originX+i, originZ+j
			cur, ok := a.world.Surface(x, z)
			if ok && cur.Material == cell.Material && math.Abs(cur.Height-cell.Height) <= a.epsilon &&
				(keep == nil || !keep(x, z)) {
				if err := a.world.ClearSurface(x, z); err != nil {
					return fmt.Errorf("clear (%d, %d): %w", x, z, err)
				}
			}
			processed++
			if processed%a.batchSize == 0 {
				if err := a.yield(ctx); err != nil {
					return fmt.Errorf("clear interrupted: %w", err)
				}
			}
		}
	}
	a.stats.Cleared++
	return nil
}

// Stats returns a snapshot of the counters.
func (a *Applier) Stats() Stats {
	return a.stats
}
