// Package noise evaluates deterministic multi-octave fractal noise with a
// value cache keyed by quantized coordinates and channel configuration.
package noise

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// ErrInvalidInput is returned for NaN, infinite or out-of-range coordinates.
var ErrInvalidInput = errors.New("noise: invalid input")

const (
	// quantum is the coordinate resolution of the cache; samples are
	// evaluated at the quantized position.
	quantum = 1000.0
	// maxCoord keeps quantized coordinates inside int64.
	maxCoord = 1e12
)

// Field samples fractal noise for named channels. It is not safe for
// concurrent use.
type Field struct {
	seed     int64
	kind     BasisKind
	basis    Basis
	offset   float64
	channels map[Channel]ChannelConfig
	cache    Cache
	logger   *slog.Logger

	hits      uint64
	misses    uint64
	evictions uint64
	warned    map[Channel]bool
}

// Stats reports cache behaviour.
type Stats struct {
	Seed      int64
	Basis     BasisKind
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
	Capacity  int
}

// Option configures a Field.
type Option func(*Field)

// WithCache injects the cache implementation.
func WithCache(c Cache) Option {
	return func(f *Field) { f.cache = c }
}

// WithBasis selects the single-octave basis function.
func WithBasis(kind BasisKind) Option {
	return func(f *Field) { f.kind = kind }
}

// WithChannels overrides channel configs. Channels absent from m keep
// their defaults.
func WithChannels(m map[Channel]ChannelConfig) Option {
	return func(f *Field) {
		for ch, cfg := range m {
			f.channels[ch] = cfg
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Field) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewField creates a field for seed. Without WithCache it uses a bounded
// LRU of DefaultCacheCapacity entries.
func NewField(seed int64, opts ...Option) (*Field, error) {
	f := &Field{
		channels: DefaultChannels(),
		logger:   slog.Default(),
		warned:   make(map[Channel]bool),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "noise")
	if f.cache == nil {
		c, err := NewLRUCache(DefaultCacheCapacity)
		if err != nil {
			return nil, err
		}
		f.cache = c
	}
	for ch, cfg := range f.channels {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("noise: channel %s: %w", ch, err)
		}
	}
	if err := f.reseed(seed); err != nil {
		return nil, err
	}
	return f, nil
}

// Seed returns the current seed.
func (f *Field) Seed() int64 { return f.seed }

// SetSeed switches the field to a new seed and drops every cached value.
func (f *Field) SetSeed(seed int64) error {
	if err := f.reseed(seed); err != nil {
		return err
	}
	f.ClearCache()
	return nil
}

func (f *Field) reseed(seed int64) error {
	b, err := NewBasis(f.kind, seed)
	if err != nil {
		return err
	}
	f.seed = seed
	f.basis = b
	// Fold the seed into the sampled coordinates as a bounded offset so
	// precision is kept for large seeds.
	f.offset = float64(uint64(seed)%65521) * 1.618033988749895
	return nil
}

// ClearCache empties the value cache.
func (f *Field) ClearCache() {
	f.cache.Purge()
}

// Config returns the config used for ch, falling back to the defaults.
func (f *Field) Config(ch Channel) ChannelConfig {
	if cfg, ok := f.channels[ch]; ok {
		return cfg
	}
	if !f.warned[ch] {
		f.warned[ch] = true
		f.logger.Warn("noise channel not configured, using fallback", "channel", string(ch))
	}
	return fallbackConfig
}

// Sample returns the noise value for ch at (x, z), in
// [-amplitude, amplitude].
func (f *Field) Sample(x, z float64, ch Channel) (float64, error) {
	return f.SampleConfig(x, z, f.Config(ch))
}

// SampleConfig samples with an explicit channel configuration.
func (f *Field) SampleConfig(x, z float64, cfg ChannelConfig) (float64, error) {
	if !validCoord(x) || !validCoord(z) {
		return 0, fmt.Errorf("%w: (%v, %v)", ErrInvalidInput, x, z)
	}
	key := Key{
		QX:     int64(math.Round(x * quantum)),
		QZ:     int64(math.Round(z * quantum)),
		Config: cfg,
	}
	if v, ok := f.cache.Get(key); ok {
		f.hits++
		return v, nil
	}
	f.misses++
	v := f.fractal(float64(key.QX)/quantum, float64(key.QZ)/quantum, cfg)
	if f.cache.Add(key, v) {
		f.evictions++
	}
	return v, nil
}

func (f *Field) fractal(x, z float64, cfg ChannelConfig) float64 {
	octaves := max(cfg.Octaves, 1)
	amplitude := 1.0
	frequency := cfg.Scale
	sum := 0.0
	norm := 0.0
	for i := 0; i < octaves; i++ {
		sum += f.basis.Eval2(x*frequency+f.offset, z*frequency+f.offset) * amplitude
		norm += amplitude
		amplitude *= cfg.Persistence
		frequency *= cfg.Lacunarity
	}
	if norm == 0 {
		return 0
	}
	return clampUnit(sum/norm) * cfg.Amplitude
}

// Stats returns a snapshot of cache counters.
func (f *Field) Stats() Stats {
	return Stats{
		Seed:      f.seed,
		Basis:     f.basisKind(),
		Hits:      f.hits,
		Misses:    f.misses,
		Evictions: f.evictions,
		Entries:   f.cache.Len(),
		Capacity:  f.cache.Cap(),
	}
}

func (f *Field) basisKind() BasisKind {
	if f.kind == "" {
		return BasisValue
	}
	return f.kind
}

func validCoord(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= maxCoord
}
