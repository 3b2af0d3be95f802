package noise

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// TestHash2Deterministic verifies hash2 produces identical results for same inputs
func TestHash2Deterministic(t *testing.T) {
	first := hash2(10, 20, 42)
	for i := 0; i < 100; i++ {
		if h := hash2(10, 20, 42); h != first {
			t.Fatalf("hash2 not deterministic: %d != %d", h, first)
		}
	}
}

// TestHash2DifferentInputs verifies hash2 separates axes and seeds
func TestHash2DifferentInputs(t *testing.T) {
	if hash2(1, 0, 42) == hash2(2, 0, 42) {
		t.Error("hash2 should differ for different X")
	}
	if hash2(0, 1, 42) == hash2(0, 2, 42) {
		t.Error("hash2 should differ for different Z")
	}
	if hash2(1, 1, 100) == hash2(1, 1, 200) {
		t.Error("hash2 should differ for different seed")
	}
}

// TestValueNoise2DRange verifies valueNoise2D outputs are in [0,1]
func TestValueNoise2DRange(t *testing.T) {
	rng := rand.New(rand.NewSource(12345))
	for i := 0; i < 1000; i++ {
		x := rng.Float64()*200 - 100
		z := rng.Float64()*200 - 100
		if v := valueNoise2D(x, z, 42); v < 0 || v > 1 {
			t.Fatalf("valueNoise2D(%f, %f) = %f, expected in [0,1]", x, z, v)
		}
	}
}

// TestValueNoise2DContinuity verifies smooth interpolation (no random jumps)
func TestValueNoise2DContinuity(t *testing.T) {
	v1 := valueNoise2D(1.0, 1.0, 42)
	v2 := valueNoise2D(1.01, 1.0, 42)
	if diff := math.Abs(v1 - v2); diff >= 0.1 {
		t.Errorf("valueNoise2D not continuous: diff=%f", diff)
	}
}

func TestUnknownBasis(t *testing.T) {
	if _, err := NewField(1, WithBasis("worley")); err == nil {
		t.Fatal("expected error for unknown basis")
	}
}

func TestSampleDeterministicAcrossInstances(t *testing.T) {
	for _, kind := range []BasisKind{BasisValue, BasisSimplex, BasisPerlin} {
		a, err := NewField(42, WithBasis(kind))
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		b, err := NewField(42, WithBasis(kind))
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 500; i++ {
			x := rng.Float64()*2000 - 1000
			z := rng.Float64()*2000 - 1000
			va, _ := a.Sample(x, z, ChannelTerrain)
			again, _ := a.Sample(x, z, ChannelTerrain)
			vb, _ := b.Sample(x, z, ChannelTerrain)
			if va != again {
				t.Fatalf("%s: repeated sample differs at (%f,%f): %f vs %f", kind, x, z, va, again)
			}
			if va != vb {
				t.Fatalf("%s: fresh instance differs at (%f,%f): %f vs %f", kind, x, z, va, vb)
			}
		}
	}
}

func TestSampleWithinAmplitude(t *testing.T) {
	for _, kind := range []BasisKind{BasisValue, BasisSimplex, BasisPerlin} {
		f, err := NewField(9, WithBasis(kind), WithChannels(map[Channel]ChannelConfig{
			ChannelTerrain: {Scale: 0.05, Octaves: 5, Persistence: 0.6, Lacunarity: 2.1, Amplitude: 3},
		}))
		if err != nil {
			t.Fatal(err)
		}
		for x := -100.0; x < 100; x += 3.7 {
			for z := -100.0; z < 100; z += 4.3 {
				v, err := f.Sample(x, z, ChannelTerrain)
				if err != nil {
					t.Fatal(err)
				}
				if v < -3 || v > 3 {
					t.Fatalf("%s: sample %f outside [-3,3]", kind, v)
				}
			}
		}
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a, _ := NewField(1)
	b, _ := NewField(2)
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		x := rng.Float64()*500 - 250
		z := rng.Float64()*500 - 250
		va, _ := a.Sample(x, z, ChannelTerrain)
		vb, _ := b.Sample(x, z, ChannelTerrain)
		if va == vb {
			t.Fatalf("seeds 1 and 2 agree at (%f,%f): %f", x, z, va)
		}
	}
}

func TestCacheHitsAndMisses(t *testing.T) {
	f, _ := NewField(5)
	if _, err := f.Sample(10.25, -3.5, ChannelTerrain); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Sample(10.25, -3.5, ChannelTerrain); err != nil {
		t.Fatal(err)
	}
	// Below the cache resolution: same key.
	if _, err := f.Sample(10.2500001, -3.5, ChannelTerrain); err != nil {
		t.Fatal(err)
	}
	// Same coordinates on another channel is a different key.
	if _, err := f.Sample(10.25, -3.5, ChannelHumidity); err != nil {
		t.Fatal(err)
	}
	s := f.Stats()
	if s.Misses != 2 || s.Hits != 2 {
		t.Fatalf("expected 2 misses and 2 hits, got %+v", s)
	}
	if s.Entries != 2 {
		t.Fatalf("expected 2 entries, got %d", s.Entries)
	}

	f.ClearCache()
	if f.Stats().Entries != 0 {
		t.Fatal("ClearCache left entries behind")
	}
}

func TestSetSeedInvalidatesCache(t *testing.T) {
	f, _ := NewField(5)
	before, _ := f.Sample(12, 34, ChannelTerrain)
	if err := f.SetSeed(6); err != nil {
		t.Fatal(err)
	}
	if f.Stats().Entries != 0 {
		t.Fatal("SetSeed must drop cached values")
	}
	after, _ := f.Sample(12, 34, ChannelTerrain)
	fresh, _ := NewField(6)
	want, _ := fresh.Sample(12, 34, ChannelTerrain)
	if after != want {
		t.Fatalf("re-seeded field returned %f, fresh field %f", after, want)
	}
	if after == before {
		t.Fatalf("re-seeded field returned the stale value %f", before)
	}
}

func TestInvalidInputRejected(t *testing.T) {
	f, _ := NewField(5)
	inputs := [][2]float64{
		{math.NaN(), 0},
		{0, math.NaN()},
		{math.Inf(1), 0},
		{0, math.Inf(-1)},
		{2e12, 0},
	}
	for _, in := range inputs {
		if _, err := f.Sample(in[0], in[1], ChannelTerrain); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Sample(%v, %v) err = %v, want ErrInvalidInput", in[0], in[1], err)
		}
	}
	if s := f.Stats(); s.Entries != 0 || s.Misses != 0 {
		t.Fatalf("invalid input touched the cache: %+v", s)
	}
}

func TestLRUCacheBound(t *testing.T) {
	c, err := NewLRUCache(4)
	if err != nil {
		t.Fatal(err)
	}
	f, _ := NewField(5, WithCache(c))
	for i := 0; i < 10; i++ {
		if _, err := f.Sample(float64(i), 0, ChannelTerrain); err != nil {
			t.Fatal(err)
		}
	}
	s := f.Stats()
	if s.Entries != 4 || s.Capacity != 4 {
		t.Fatalf("expected 4 entries of capacity 4, got %+v", s)
	}
	if s.Evictions != 6 {
		t.Fatalf("expected 6 evictions, got %d", s.Evictions)
	}
}

func TestMapCacheUnbounded(t *testing.T) {
	f, _ := NewField(5, WithCache(NewMapCache()))
	for i := 0; i < 100; i++ {
		_, _ = f.Sample(float64(i), 1, ChannelTerrain)
	}
	if s := f.Stats(); s.Entries != 100 || s.Capacity != 0 || s.Evictions != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestUnconfiguredChannelFallsBack(t *testing.T) {
	f, _ := NewField(5)
	v, err := f.Sample(1, 2, Channel("rivers"))
	if err != nil {
		t.Fatal(err)
	}
	if v < -1 || v > 1 {
		t.Fatalf("fallback sample %f outside [-1,1]", v)
	}
	if f.Config(Channel("rivers")) != fallbackConfig {
		t.Fatal("expected fallback config")
	}
}

func TestInvalidChannelConfigRejected(t *testing.T) {
	_, err := NewField(5, WithChannels(map[Channel]ChannelConfig{
		ChannelTerrain: {Scale: 0, Octaves: 1, Persistence: 0.5, Lacunarity: 2},
	}))
	if err == nil {
		t.Fatal("expected zero scale to be rejected")
	}
}

func TestNonFiniteChannelConfigRejected(t *testing.T) {
	base := ChannelConfig{Scale: 0.01, Octaves: 2, Persistence: 0.5, Lacunarity: 2, Amplitude: 1}
	cases := map[string]func(*ChannelConfig){
		"nan scale":         func(c *ChannelConfig) { c.Scale = math.NaN() },
		"inf persistence":   func(c *ChannelConfig) { c.Persistence = math.Inf(1) },
		"nan lacunarity":    func(c *ChannelConfig) { c.Lacunarity = math.NaN() },
		"nan amplitude":     func(c *ChannelConfig) { c.Amplitude = math.NaN() },
		"neg inf amplitude": func(c *ChannelConfig) { c.Amplitude = math.Inf(-1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("%+v accepted", cfg)
			}
			if _, err := NewField(5, WithChannels(map[Channel]ChannelConfig{ChannelTerrain: cfg})); err == nil {
				t.Fatalf("NewField accepted %+v", cfg)
			}
		})
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func BenchmarkSampleCold(b *testing.B) {
	f, _ := NewField(42, WithCache(NewMapCache()))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = f.Sample(float64(i), float64(i*31), ChannelTerrain)
	}
}

func BenchmarkSampleCached(b *testing.B) {
	f, _ := NewField(42)
	for i := 0; i < 1024; i++ {
		_, _ = f.Sample(float64(i), 0, ChannelTerrain)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = f.Sample(float64(i%1024), 0, ChannelTerrain)
	}
}
