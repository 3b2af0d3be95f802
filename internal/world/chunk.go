package world

import (
	"errors"
	"fmt"
	"math"

	"worldgen/internal/biome"
)

// ErrIllegalTransition is returned when a chunk is moved between states
// out of order.
var ErrIllegalTransition = errors.New("world: illegal chunk state transition")

// Key addresses a chunk on the XZ plane.
type Key struct {
	X, Z int
}

func (k Key) String() string { return fmt.Sprintf("(%d, %d)", k.X, k.Z) }

// Origin returns the world column of the chunk's minimum corner.
func (k Key) Origin(chunkSize int) (int, int) {
	return k.X * chunkSize, k.Z * chunkSize
}

// chebyshev returns the Chebyshev distance between two keys.
func (k Key) chebyshev(o Key) int {
	return max(abs(k.X-o.X), abs(k.Z-o.Z))
}

func (k Key) distSq(o Key) int {
	dx, dz := k.X-o.X, k.Z-o.Z
	return dx*dx + dz*dz
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// KeyAt returns the chunk containing world position (x, z).
func KeyAt(x, z float64, chunkSize int) Key {
	s := float64(chunkSize)
	return Key{X: int(math.Floor(x / s)), Z: int(math.Floor(z / s))}
}

// State is the lifecycle stage of a chunk.
type State int

const (
	Unloaded State = iota
	Generated
	Loaded
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Generated:
		return "generated"
	case Loaded:
		return "loaded"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Chunk is one streamed square of terrain. Its grid is ChunkSize+1 cells
// wide so it shares an edge row and column with its neighbours.
type Chunk struct {
	Key             Key
	Grid            *biome.Grid
	State           State
	LastTouchedTick uint64
}

// Generate attaches a built grid to an unloaded chunk.
func (c *Chunk) Generate(g *biome.Grid) error {
	if c.State != Unloaded {
		return c.illegal(Generated)
	}
	c.Grid = g
	c.State = Generated
	return nil
}

// MarkLoaded records that the chunk's grid has been applied to the world.
func (c *Chunk) MarkLoaded() error {
	if c.State != Generated {
		return c.illegal(Loaded)
	}
	c.State = Loaded
	return nil
}

// Evict releases the chunk's grid.
func (c *Chunk) Evict() error {
	if c.State == Unloaded {
		return c.illegal(Unloaded)
	}
	c.Grid = nil
	c.State = Unloaded
	return nil
}

func (c *Chunk) illegal(to State) error {
	return fmt.Errorf("%w: chunk %s %s -> %s", ErrIllegalTransition, c.Key, c.State, to)
}
