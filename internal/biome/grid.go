package biome

import (
	"worldgen/internal/sched"
)

// Grid is a square block of terrain cells. Cell (i, j) sits at world
// (OriginX+i, OriginZ+j).
type Grid struct {
	OriginX, OriginZ int
	Size             int
	Cells            []Cell
}

func NewGrid(originX, originZ, size int) *Grid {
	return &Grid{
		OriginX: originX,
		OriginZ: originZ,
		Size:    size,
		Cells:   make([]Cell, size*size),
	}
}

// At returns the cell at local (i, j).
func (g *Grid) At(i, j int) *Cell {
	return &g.Cells[j*g.Size+i]
}

type buildPhase int

const (
	phaseLabels buildPhase = iota
	phaseSmooth
	phaseCells
	phaseDone
)

// GridBuilder generates a grid incrementally under a work budget.
//
// Labels are computed over a border of `iterations` extra cells on every
// side so smoothing near the edge sees the same neighbours a neighbouring
// grid would; only the interior is turned into cells.
type GridBuilder struct {
	field      *Field
	originX    int
	originZ    int
	size       int
	pad        int
	width      int
	iterations int

	phase   buildPhase
	row     int
	iter    int
	raw     []string
	labels  []string
	scratch []string
	grid    *Grid
}

// NewGridBuilder prepares a size×size grid at the given world origin.
func (f *Field) NewGridBuilder(originX, originZ, size, iterations int) *GridBuilder {
	if size <= 0 {
		return &GridBuilder{field: f, phase: phaseDone, grid: NewGrid(originX, originZ, 0)}
	}
	iterations = max(iterations, 0)
	w := size + 2*iterations
	return &GridBuilder{
		field:      f,
		originX:    originX,
		originZ:    originZ,
		size:       size,
		pad:        iterations,
		width:      w,
		iterations: iterations,
		raw:        make([]string, w*w),
		grid:       NewGrid(originX, originZ, size),
	}
}

// BuildGrid builds a grid in one go.
func (f *Field) BuildGrid(originX, originZ, size, iterations int) (*Grid, error) {
	b := f.NewGridBuilder(originX, originZ, size, iterations)
	if _, err := b.Step(nil); err != nil {
		return nil, err
	}
	return b.Grid(), nil
}

// Done reports whether the grid is complete.
func (b *GridBuilder) Done() bool { return b.phase == phaseDone }

// Grid returns the finished grid, or nil while building.
func (b *GridBuilder) Grid() *Grid {
	if b.phase != phaseDone {
		return nil
	}
	return b.grid
}

// Step advances generation until the budget is exhausted or the grid is
// complete. At least one row or smoothing pass is processed per call.
func (b *GridBuilder) Step(budget *sched.Budget) (bool, error) {
	for b.phase != phaseDone {
		switch b.phase {
		case phaseLabels:
			b.labelRow()
			if b.row == b.width {
				b.row = 0
				b.labels = append([]string(nil), b.raw...)
				b.scratch = make([]string, len(b.raw))
				b.phase = phaseSmooth
			}
			if !budget.Spend(b.width) {
				return b.Done(), nil
			}
		case phaseSmooth:
			if b.iter >= b.iterations {
				b.phase = phaseCells
				continue
			}
			smoothPass(b.labels, b.scratch, b.width, b.width)
			b.labels, b.scratch = b.scratch, b.labels
			b.iter++
			if !budget.Spend(b.width * b.width) {
				return b.Done(), nil
			}
		case phaseCells:
			if err := b.cellRow(); err != nil {
				return false, err
			}
			if b.row == b.size {
				b.phase = phaseDone
				b.labels, b.scratch, b.raw = nil, nil, nil
				return true, nil
			}
			if !budget.Spend(b.size) {
				return false, nil
			}
		}
	}
	return true, nil
}

func (b *GridBuilder) labelRow() {
	z := float64(b.originZ - b.pad + b.row)
	base := b.row * b.width
	for i := 0; i < b.width; i++ {
		b.raw[base+i] = b.field.Assign(float64(b.originX-b.pad+i), z)
	}
	b.row++
}

func (b *GridBuilder) cellRow() error {
	j := b.row
	z := float64(b.originZ + j)
	for i := 0; i < b.size; i++ {
		x := float64(b.originX + i)
		idx := (j+b.pad)*b.width + i + b.pad
		var (
			cell Cell
			err  error
		)
		if b.labels[idx] == b.raw[idx] {
			cell, err = b.field.TerrainAt(x, z)
		} else {
			cell, err = b.field.cellForName(b.labels[idx], x, z)
			b.field.smoothedCells++
		}
		if err != nil {
			return err
		}
		b.grid.Cells[j*b.size+i] = cell
	}
	b.field.cellsBuilt += uint64(b.size)
	b.row++
	return nil
}
