package biome

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrUnknownBiome   = errors.New("biome: unknown biome")
	ErrDuplicateBiome = errors.New("biome: duplicate biome name")
)

// Definition defines the properties of a terrain type.
type Definition struct {
	Name            string     `yaml:"name"`
	Color           mgl64.Vec3 `yaml:"color"` // linear RGB, 0..1
	Material        string     `yaml:"material"`
	BaseHeight      float64    `yaml:"baseHeight"`
	HeightVariation float64    `yaml:"heightVariation"`
	SpawnRate       float64    `yaml:"spawnRate"`
	Structures      []string   `yaml:"structures"`
	Features        []string   `yaml:"features"` // allowed feature tags
}

// Validate checks the numeric fields of d. Names are checked by the
// caller, which knows the rest of the table.
func (d Definition) Validate() error {
	var errs []error
	if !finite(d.BaseHeight) {
		errs = append(errs, fmt.Errorf("baseHeight must be finite, got %v", d.BaseHeight))
	}
	if !finite(d.HeightVariation) || d.HeightVariation < 0 {
		errs = append(errs, fmt.Errorf("heightVariation must be finite and not negative, got %v", d.HeightVariation))
	}
	if !(d.SpawnRate >= 0 && d.SpawnRate <= 1) {
		errs = append(errs, fmt.Errorf("spawnRate must be in [0, 1], got %v", d.SpawnRate))
	}
	for i, c := range d.Color {
		if !finite(c) {
			errs = append(errs, fmt.Errorf("color[%d] must be finite, got %v", i, c))
		}
	}
	return errors.Join(errs...)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// DefaultName is the name of the flat fallback biome.
const DefaultName = "plains"

// DefaultDefinition is the flat biome used when no definitions are
// configured or no centers exist.
func DefaultDefinition() Definition {
	return Definition{
		Name:            DefaultName,
		Color:           mgl64.Vec3{0.45, 0.68, 0.32},
		Material:        "Grass",
		BaseHeight:      32,
		HeightVariation: 0,
		SpawnRate:       0.1,
	}
}

// Center anchors one biome region.
type Center struct {
	Biome  string
	X, Z   float64
	Radius float64
}

// distance returns the Euclidean distance from (x, z) to the center.
func (c Center) distance(x, z float64) float64 {
	return mgl64.Vec2{x - c.X, z - c.Z}.Len()
}

// Cell is one generated terrain sample. Structures and Features alias the
// owning definition's slices and must not be modified.
type Cell struct {
	Height     float64
	Material   string
	Biome      string
	Color      mgl64.Vec3
	SpawnRate  float64
	Structures []string
	Features   []string
}

// blend interpolates numeric properties of a towards b by t; categorical
// properties come from the nearer side.
func blend(a, b Definition, t float64) Definition {
	out := a
	if t >= 0.5 {
		out = b
	}
	out.Color = a.Color.Mul(1 - t).Add(b.Color.Mul(t))
	out.BaseHeight = lerp(a.BaseHeight, b.BaseHeight, t)
	out.HeightVariation = lerp(a.HeightVariation, b.HeightVariation, t)
	out.SpawnRate = lerp(a.SpawnRate, b.SpawnRate, t)
	return out
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
