package noise

import (
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// Basis is a single-octave 2D gradient or value noise function returning
// values in [-1, 1].
type Basis interface {
	Eval2(x, z float64) float64
}

// BasisKind selects the single-octave function a Field sums.
type BasisKind string

const (
	BasisValue   BasisKind = "value"
	BasisSimplex BasisKind = "simplex"
	BasisPerlin  BasisKind = "perlin"
)

// NewBasis builds a seeded basis of the given kind. An empty kind selects
// hashed value noise.
func NewBasis(kind BasisKind, seed int64) (Basis, error) {
	switch kind {
	case "", BasisValue:
		return valueBasis{seed: seed}, nil
	case BasisSimplex:
		return simplexBasis{n: opensimplex.New(seed)}, nil
	case BasisPerlin:
		// alpha/beta only matter for n > 1; octaves are summed by Field.
		return perlinBasis{p: perlin.NewPerlin(2, 2, 1, seed)}, nil
	default:
		return nil, fmt.Errorf("noise: unknown basis %q", kind)
	}
}

// Simple deterministic 2D value noise; integer hashing for lattice values.

type valueBasis struct {
	seed int64
}

func (b valueBasis) Eval2(x, z float64) float64 {
	return valueNoise2D(x, z, b.seed)*2 - 1
}

type simplexBasis struct {
	n opensimplex.Noise
}

func (b simplexBasis) Eval2(x, z float64) float64 {
	return clampUnit(b.n.Eval2(x, z))
}

type perlinBasis struct {
	p *perlin.Perlin
}

func (b perlinBasis) Eval2(x, z float64) float64 {
	// Classic Perlin peaks near ±0.7; stretch towards the full range.
	return clampUnit(b.p.Noise2D(x, z) * math.Sqrt2)
}

// fade is the quintic smoothstep 6t^5 - 15t^4 + 10t^3.
func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func hash2(x int64, z int64, seed int64) uint64 {
	// SplitMix64 style integer hash, stable across runs for same inputs
	v := uint64(x) + (uint64(z) << 1) + uint64(seed)*0x9E3779B97F4A7C15
	v += 0x9E3779B97F4A7C15
	v = (v ^ (v >> 30)) * 0xBF58476D1CE4E5B9
	v = (v ^ (v >> 27)) * 0x94D049BB133111EB
	v = v ^ (v >> 31)
	return v
}

func latticeValue(x int64, z int64, seed int64) float64 {
	h := hash2(x, z, seed)
	return float64(h&0xFFFFFFFF) / float64(0xFFFFFFFF)
}

// valueNoise2D returns bilinearly faded lattice noise in [0, 1].
func valueNoise2D(x float64, z float64, seed int64) float64 {
	x0 := math.Floor(x)
	z0 := math.Floor(z)

	fx := fade(x - x0)
	fz := fade(z - z0)

	ix, iz := int64(x0), int64(z0)
	v00 := latticeValue(ix, iz, seed)
	v10 := latticeValue(ix+1, iz, seed)
	v01 := latticeValue(ix, iz+1, seed)
	v11 := latticeValue(ix+1, iz+1, seed)

	i0 := lerp(v00, v10, fx)
	i1 := lerp(v01, v11, fx)
	return lerp(i0, i1, fz)
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
