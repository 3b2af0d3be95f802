package noise

import (
	"fmt"
	"math"
)

// Channel names an independent noise layer.
type Channel string

const (
	ChannelTerrain     Channel = "terrain"
	ChannelBiome       Channel = "biome"
	ChannelFeature     Channel = "feature"
	ChannelHumidity    Channel = "humidity"
	ChannelTemperature Channel = "temperature"
)

// ChannelConfig describes one fractal noise layer. It is part of the cache
// key, so a config must not change once values have been sampled with it.
type ChannelConfig struct {
	Scale       float64 `yaml:"scale"`
	Octaves     int     `yaml:"octaves"`
	Persistence float64 `yaml:"persistence"`
	Lacunarity  float64 `yaml:"lacunarity"`
	Amplitude   float64 `yaml:"amplitude"`
}

// Validate reports configs that would produce degenerate noise.
func (c ChannelConfig) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"scale", c.Scale},
		{"persistence", c.Persistence},
		{"lacunarity", c.Lacunarity},
		{"amplitude", c.Amplitude},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s must be finite, got %v", f.name, f.v)
		}
	}
	switch {
	case c.Scale <= 0:
		return fmt.Errorf("scale must be positive")
	case c.Octaves <= 0:
		return fmt.Errorf("octaves must be positive")
	case c.Persistence <= 0:
		return fmt.Errorf("persistence must be positive")
	case c.Lacunarity <= 0:
		return fmt.Errorf("lacunarity must be positive")
	}
	return nil
}

// DefaultChannels returns the built-in layer settings. They are also the
// fallback for a channel the caller never configured.
func DefaultChannels() map[Channel]ChannelConfig {
	return map[Channel]ChannelConfig{
		ChannelTerrain:     {Scale: 1.0 / 64.0, Octaves: 4, Persistence: 0.5, Lacunarity: 2.0, Amplitude: 1.0},
		ChannelBiome:       {Scale: 1.0 / 400.0, Octaves: 2, Persistence: 0.5, Lacunarity: 2.0, Amplitude: 1.0},
		ChannelFeature:     {Scale: 1.0 / 16.0, Octaves: 2, Persistence: 0.5, Lacunarity: 2.0, Amplitude: 1.0},
		ChannelHumidity:    {Scale: 1.0 / 256.0, Octaves: 3, Persistence: 0.5, Lacunarity: 2.0, Amplitude: 1.0},
		ChannelTemperature: {Scale: 1.0 / 512.0, Octaves: 3, Persistence: 0.5, Lacunarity: 2.0, Amplitude: 1.0},
	}
}

// fallbackConfig is used for channels absent from both the field's table
// and DefaultChannels.
var fallbackConfig = ChannelConfig{Scale: 1.0 / 64.0, Octaves: 1, Persistence: 0.5, Lacunarity: 2.0, Amplitude: 1.0}
