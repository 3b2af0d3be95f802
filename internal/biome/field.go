// Package biome assigns named biome regions over the noise domain, blends
// their properties at region borders and builds smoothed terrain grids.
package biome

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"worldgen/internal/noise"
)

// Params tunes center scattering and height clamping.
type Params struct {
	MaxHeight  float64
	MinSpacing float64
	MinSize    float64
	MaxSize    float64
}

// Stats counts biome field work.
type Stats struct {
	Definitions   int
	Centers       int
	CellsBuilt    uint64
	SmoothedCells uint64
}

// Field maps world coordinates to biomes and terrain cells.
type Field struct {
	noise    *noise.Field
	defs     []Definition
	index    map[string]int
	fallback Definition
	centers  []Center
	params   Params
	logger   *slog.Logger

	cellsBuilt    uint64
	smoothedCells uint64
}

// NewField creates a biome field over nf. With no definitions every query
// resolves to DefaultDefinition.
func NewField(nf *noise.Field, defs []Definition, p Params, logger *slog.Logger) (*Field, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !(p.MaxHeight > 0) || math.IsInf(p.MaxHeight, 0) {
		return nil, fmt.Errorf("biome: max height must be positive, got %v", p.MaxHeight)
	}
	f := &Field{
		noise:    nf,
		index:    make(map[string]int, len(defs)),
		fallback: DefaultDefinition(),
		params:   p,
		logger:   logger.With("component", "biome"),
	}
	if len(defs) == 0 {
		f.logger.Warn("no biome definitions configured, using flat default", "biome", DefaultName)
		defs = []Definition{f.fallback}
	}
	for i, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("biome: definition %d has no name", i)
		}
		if _, dup := f.index[d.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBiome, d.Name)
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("biome: definition %s: %w", d.Name, err)
		}
		f.index[d.Name] = i
	}
	f.defs = defs
	return f, nil
}

// ScatterCenters places up to count centers at seeded random positions in
// [MinSpacing, worldSize-MinSpacing]. Each definition is used once before
// any repeats. Overlaps are allowed; Assign resolves them nearest-first.
func (f *Field) ScatterCenters(worldSize float64, count int) []Center {
	rng := rand.New(rand.NewSource(f.noise.Seed()))
	perm := rng.Perm(len(f.defs))

	lo, hi := f.params.MinSpacing, worldSize-f.params.MinSpacing
	if hi < lo {
		lo, hi = worldSize/2, worldSize/2
	}
	minSize, maxSize := f.params.MinSize, f.params.MaxSize
	if maxSize < minSize {
		maxSize = minSize
	}

	centers := make([]Center, 0, max(count, 0))
	for i := 0; i < count; i++ {
		def := f.defs[perm[i%len(perm)]]
		centers = append(centers, Center{
			Biome:  def.Name,
			X:      lo + rng.Float64()*(hi-lo),
			Z:      lo + rng.Float64()*(hi-lo),
			Radius: minSize + rng.Float64()*(maxSize-minSize),
		})
	}
	f.centers = centers
	if len(centers) == 0 {
		f.logger.Warn("no biome centers placed, world will use flat default", "biome", DefaultName)
	} else {
		f.logger.Info("biome centers scattered", "count", len(centers), "worldSize", worldSize, "seed", f.noise.Seed())
	}
	return centers
}

// SetCenters replaces the center list. Every center must name a known
// definition.
func (f *Field) SetCenters(centers []Center) error {
	for _, c := range centers {
		if _, ok := f.index[c.Biome]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownBiome, c.Biome)
		}
	}
	f.centers = append([]Center(nil), centers...)
	return nil
}

// Centers returns a copy of the current center list.
func (f *Field) Centers() []Center {
	return append([]Center(nil), f.centers...)
}

// Definition looks up a definition by name.
func (f *Field) Definition(name string) (Definition, error) {
	if i, ok := f.index[name]; ok {
		return f.defs[i], nil
	}
	if name == f.fallback.Name {
		return f.fallback, nil
	}
	return Definition{}, fmt.Errorf("%w: %s", ErrUnknownBiome, name)
}

// Assign returns the biome name owning (x, z). It never returns "".
func (f *Field) Assign(x, z float64) string {
	i, _ := f.locate(x, z)
	if i < 0 {
		return f.fallback.Name
	}
	return f.centers[i].Biome
}

// locate returns the index of the owning center and the distance to it, or
// -1 when there are no centers. A containing center (radius >= distance)
// wins over a nearer non-containing one.
func (f *Field) locate(x, z float64) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	nearest, nearestDist := -1, math.Inf(1)
	for i, c := range f.centers {
		d := c.distance(x, z)
		if d < nearestDist {
			nearest, nearestDist = i, d
		}
		if c.Radius >= d && d < bestDist {
			best, bestDist = i, d
		}
	}
	if best >= 0 {
		return best, bestDist
	}
	return nearest, nearestDist
}

// TerrainAt returns the blended terrain cell at (x, z).
func (f *Field) TerrainAt(x, z float64) (Cell, error) {
	a, da := f.locate(x, z)
	if a < 0 {
		return f.cellFor(f.fallback, x, z)
	}
	b, _ := f.locate(x+1, z+1)
	defA := f.defs[f.index[f.centers[a].Biome]]
	if f.centers[b].Biome == defA.Name {
		return f.cellFor(defA, x, z)
	}
	defB := f.defs[f.index[f.centers[b].Biome]]
	db := f.centers[b].distance(x, z)
	t := 0.0
	if sum := da + db; sum > 0 {
		t = clamp(da/sum, 0, 1)
	}
	return f.cellFor(blend(defA, defB, t), x, z)
}

// cellForName computes an unblended cell for a named biome.
func (f *Field) cellForName(name string, x, z float64) (Cell, error) {
	def, err := f.Definition(name)
	if err != nil {
		return Cell{}, err
	}
	return f.cellFor(def, x, z)
}

func (f *Field) cellFor(def Definition, x, z float64) (Cell, error) {
	n, err := f.noise.Sample(x, z, noise.ChannelTerrain)
	if err != nil {
		return Cell{}, err
	}
	return Cell{
		Height:     clamp(def.BaseHeight+n*def.HeightVariation, 0, f.params.MaxHeight),
		Material:   def.Material,
		Biome:      def.Name,
		Color:      def.Color,
		SpawnRate:  def.SpawnRate,
		Structures: def.Structures,
		Features:   def.Features,
	}, nil
}

// Stats returns counters for monitoring.
func (f *Field) Stats() Stats {
	return Stats{
		Definitions:   len(f.defs),
		Centers:       len(f.centers),
		CellsBuilt:    f.cellsBuilt,
		SmoothedCells: f.smoothedCells,
	}
}
