// Package config loads and validates engine settings from YAML.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"worldgen/internal/biome"
	"worldgen/internal/noise"
)

// ErrThrash is returned when the unload radius does not exceed the load
// radius, which would make chunks load and unload on alternate ticks.
var ErrThrash = errors.New("config: unloadDistance must be greater than loadDistance")

// Config holds every engine tunable.
type Config struct {
	Seed   int64        `yaml:"seed"`
	World  WorldConfig  `yaml:"world"`
	Budget BudgetConfig `yaml:"budget"`
	Noise  NoiseConfig  `yaml:"noise"`
	Biomes BiomeConfig  `yaml:"biomes"`
}

// WorldConfig sizes the world and its streaming radii, in chunks.
type WorldConfig struct {
	ChunkSize       int     `yaml:"chunkSize"`
	MaxHeight       float64 `yaml:"maxHeight"`
	WorldSize       float64 `yaml:"worldSize"`
	LoadDistance    int     `yaml:"loadDistance"`
	UnloadDistance  int     `yaml:"unloadDistance"`
	MaxLoadsPerTick int     `yaml:"maxLoadsPerTick"`
	IdleEvictTicks  int     `yaml:"idleEvictTicks"`
	ClearOnEvict    bool    `yaml:"clearOnEvict"`
}

// BudgetConfig bounds the work done per tick.
type BudgetConfig struct {
	MaxOps        int           `yaml:"maxOps"`
	MaxDuration   time.Duration `yaml:"maxDuration"`
	BatchSize     int           `yaml:"batchSize"`
	HeightEpsilon float64       `yaml:"heightEpsilon"`
}

type NoiseConfig struct {
	Basis         noise.BasisKind                       `yaml:"basis"`
	CacheCapacity int                                   `yaml:"cacheCapacity"` // < 0 means unbounded
	Channels      map[noise.Channel]noise.ChannelConfig `yaml:"channels"`
}

type BiomeConfig struct {
	Count            int                `yaml:"count"`
	MinSpacing       float64            `yaml:"minSpacing"`
	MinSize          float64            `yaml:"minSize"`
	MaxSize          float64            `yaml:"maxSize"`
	SmoothIterations int                `yaml:"smoothIterations"`
	Definitions      []biome.Definition `yaml:"definitions"`
}

// Load reads and validates a YAML config file. Fields absent from the file
// keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config and reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	w := c.World
	if w.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("world.chunkSize must be positive"))
	}
	if !positive(w.MaxHeight) {
		errs = append(errs, fmt.Errorf("world.maxHeight must be positive and finite, got %v", w.MaxHeight))
	}
	if !positive(w.WorldSize) {
		errs = append(errs, fmt.Errorf("world.worldSize must be positive and finite, got %v", w.WorldSize))
	}
	if w.LoadDistance <= 0 {
		errs = append(errs, fmt.Errorf("world.loadDistance must be positive"))
	}
	if w.UnloadDistance <= w.LoadDistance {
		errs = append(errs, fmt.Errorf("%w (got %d <= %d)", ErrThrash, w.UnloadDistance, w.LoadDistance))
	}
	if w.MaxLoadsPerTick <= 0 {
		errs = append(errs, fmt.Errorf("world.maxLoadsPerTick must be positive"))
	}
	if w.IdleEvictTicks < 0 {
		errs = append(errs, fmt.Errorf("world.idleEvictTicks must not be negative"))
	}

	b := c.Budget
	if b.MaxOps < 0 {
		errs = append(errs, fmt.Errorf("budget.maxOps must not be negative"))
	}
	if b.MaxDuration < 0 {
		errs = append(errs, fmt.Errorf("budget.maxDuration must not be negative"))
	}
	if b.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("budget.batchSize must be positive"))
	}
	if !(b.HeightEpsilon >= 0) || math.IsInf(b.HeightEpsilon, 0) {
		errs = append(errs, fmt.Errorf("budget.heightEpsilon must not be negative"))
	}

	switch c.Noise.Basis {
	case "", noise.BasisValue, noise.BasisSimplex, noise.BasisPerlin:
	default:
		errs = append(errs, fmt.Errorf("noise.basis %q is not one of value, simplex, perlin", c.Noise.Basis))
	}
	for ch, cc := range c.Noise.Channels {
		if err := cc.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("noise.channels.%s: %w", ch, err))
		}
	}

	bc := c.Biomes
	if bc.Count < 0 {
		errs = append(errs, fmt.Errorf("biomes.count must not be negative"))
	}
	if !(bc.MinSpacing >= 0) || math.IsInf(bc.MinSpacing, 0) {
		errs = append(errs, fmt.Errorf("biomes.minSpacing must not be negative"))
	}
	if !positive(bc.MinSize) || !positive(bc.MaxSize) || bc.MaxSize < bc.MinSize {
		errs = append(errs, fmt.Errorf("biomes: need 0 < minSize <= maxSize, got %v and %v", bc.MinSize, bc.MaxSize))
	}
	if bc.SmoothIterations < 0 {
		errs = append(errs, fmt.Errorf("biomes.smoothIterations must not be negative"))
	}
	seen := make(map[string]bool, len(bc.Definitions))
	for i, d := range bc.Definitions {
		switch {
		case d.Name == "":
			errs = append(errs, fmt.Errorf("biomes.definitions[%d].name is required", i))
		case seen[d.Name]:
			errs = append(errs, fmt.Errorf("biomes.definitions[%d]: %w: %s", i, biome.ErrDuplicateBiome, d.Name))
		}
		seen[d.Name] = true
		if err := d.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("biomes.definitions[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// positive reports whether v is finite and greater than zero.
func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
