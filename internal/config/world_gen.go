package config

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"worldgen/internal/biome"
	"worldgen/internal/noise"
)

// Default returns the built-in configuration: 32-column chunks, load
// radius 3 and unload radius 5.
func Default() *Config {
	return &Config{
		Seed: 1,
		World: WorldConfig{
			ChunkSize:       32,
			MaxHeight:       256,
			WorldSize:       4096,
			LoadDistance:    3,
			UnloadDistance:  5,
			MaxLoadsPerTick: 4,
		},
		Budget: BudgetConfig{
			MaxOps:        1 << 16,
			MaxDuration:   8 * time.Millisecond,
			BatchSize:     256,
			HeightEpsilon: 1e-3,
		},
		Noise: NoiseConfig{
			Basis:         noise.BasisValue,
			CacheCapacity: noise.DefaultCacheCapacity,
			Channels:      noise.DefaultChannels(),
		},
		Biomes: BiomeConfig{
			Count:            12,
			MinSpacing:       64,
			MinSize:          96,
			MaxSize:          320,
			SmoothIterations: 2,
			Definitions:      DefaultBiomes(),
		},
	}
}

// DefaultBiomes is the stock biome table.
func DefaultBiomes() []biome.Definition {
	return []biome.Definition{
		{
			Name: "grassland", Color: mgl64.Vec3{0.45, 0.68, 0.32}, Material: "Grass",
			BaseHeight: 40, HeightVariation: 6, SpawnRate: 0.3,
			Structures: []string{"village"}, Features: []string{"flowers", "tall_grass"},
		},
		{
			Name: "desert", Color: mgl64.Vec3{0.86, 0.80, 0.52}, Material: "Sand",
			BaseHeight: 36, HeightVariation: 10, SpawnRate: 0.05,
			Structures: []string{"temple"}, Features: []string{"cactus", "dead_bush"},
		},
		{
			Name: "forest", Color: mgl64.Vec3{0.18, 0.45, 0.16}, Material: "Grass",
			BaseHeight: 46, HeightVariation: 12, SpawnRate: 0.4,
			Structures: []string{"cabin"}, Features: []string{"oak", "birch", "mushroom"},
		},
		{
			Name: "mountains", Color: mgl64.Vec3{0.52, 0.52, 0.55}, Material: "Stone",
			BaseHeight: 110, HeightVariation: 70, SpawnRate: 0.1,
			Structures: []string{"mine"}, Features: []string{"boulder", "ore"},
		},
		{
			Name: "tundra", Color: mgl64.Vec3{0.88, 0.92, 0.95}, Material: "Snow",
			BaseHeight: 44, HeightVariation: 8, SpawnRate: 0.08,
			Features: []string{"ice_spike"},
		},
		{
			Name: "swamp", Color: mgl64.Vec3{0.30, 0.36, 0.22}, Material: "Mud",
			BaseHeight: 30, HeightVariation: 3, SpawnRate: 0.25,
			Structures: []string{"hut"}, Features: []string{"reeds", "lily_pad"},
		},
	}
}
