package world

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"worldgen/internal/biome"
	"worldgen/internal/config"
	"worldgen/internal/noise"
	"worldgen/internal/profiling"
	"worldgen/internal/terrain"
)

// EngineStats gathers the counters of every stage.
type EngineStats struct {
	Noise    noise.Stats
	Biome    biome.Stats
	Terrain  terrain.Stats
	Streamer Stats
	Timings  []profiling.Entry
}

// Engine wires noise, biomes, terrain application and streaming together
// from a Config. Its methods are safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	cfg      config.Config
	world    terrain.World
	noise    *noise.Field
	biomes   *biome.Field
	applier  *terrain.Applier
	streamer *ChunkStreamer
	timings  *profiling.Timings
	logger   *slog.Logger
}

// NewEngine validates cfg and builds an engine writing into host. A nil
// host gets an in-memory terrain.Store.
func NewEngine(cfg *config.Config, host terrain.World, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("world: invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if host == nil {
		host = terrain.NewStore()
	}

	var cache noise.Cache
	switch capacity := cfg.Noise.CacheCapacity; {
	case capacity < 0:
		cache = noise.NewMapCache()
	default:
		if capacity == 0 {
			capacity = noise.DefaultCacheCapacity
		}
		c, err := noise.NewLRUCache(capacity)
		if err != nil {
			return nil, fmt.Errorf("world: noise cache: %w", err)
		}
		cache = c
	}
	nf, err := noise.NewField(cfg.Seed,
		noise.WithCache(cache),
		noise.WithBasis(cfg.Noise.Basis),
		noise.WithChannels(cfg.Noise.Channels),
		noise.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}

	bf, err := biome.NewField(nf, cfg.Biomes.Definitions, biome.Params{
		MaxHeight:  cfg.World.MaxHeight,
		MinSpacing: cfg.Biomes.MinSpacing,
		MinSize:    cfg.Biomes.MinSize,
		MaxSize:    cfg.Biomes.MaxSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	bf.ScatterCenters(cfg.World.WorldSize, cfg.Biomes.Count)

	applier := terrain.NewApplier(host,
		terrain.WithBatchSize(cfg.Budget.BatchSize),
		terrain.WithEpsilon(cfg.Budget.HeightEpsilon),
		terrain.WithLogger(logger),
	)
	timings := profiling.NewTimings()
	streamer, err := NewChunkStreamer(FieldGenerator(bf, cfg.Biomes.SmoothIterations), applier, Options{
		ChunkSize:       cfg.World.ChunkSize,
		LoadDistance:    cfg.World.LoadDistance,
		UnloadDistance:  cfg.World.UnloadDistance,
		MaxLoadsPerTick: cfg.World.MaxLoadsPerTick,
		IdleEvictTicks:  cfg.World.IdleEvictTicks,
		ClearOnEvict:    cfg.World.ClearOnEvict,
		MaxOps:          cfg.Budget.MaxOps,
		MaxDuration:     cfg.Budget.MaxDuration,
	}, timings, logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:      *cfg,
		world:    host,
		noise:    nf,
		biomes:   bf,
		applier:  applier,
		streamer: streamer,
		timings:  timings,
		logger:   logger.With("component", "engine"),
	}, nil
}

// Tick runs one streaming update for the given observer positions.
func (e *Engine) Tick(ctx context.Context, observers []mgl64.Vec3) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streamer.Update(ctx, observers)
}

// TerrainAt samples the terrain at a world position without touching the
// chunk table.
func (e *Engine) TerrainAt(x, z float64) (biome.Cell, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.biomes.TerrainAt(x, z)
}

// Assign returns the biome name at a world position.
func (e *Engine) Assign(x, z float64) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.biomes.Assign(x, z)
}

func (e *Engine) LoadedChunks() []Key {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streamer.LoadedChunks()
}

func (e *Engine) ChunkState(k Key) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streamer.State(k)
}

// Centers returns the current biome centers.
func (e *Engine) Centers() []biome.Center {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.biomes.Centers()
}

// Definition looks up a biome definition by name.
func (e *Engine) Definition(name string) (biome.Definition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.biomes.Definition(name)
}

// World returns the host world the engine writes into.
func (e *Engine) World() terrain.World { return e.world }

// Config returns a copy of the engine configuration.
func (e *Engine) Config() config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EngineStats{
		Noise:    e.noise.Stats(),
		Biome:    e.biomes.Stats(),
		Terrain:  e.applier.Stats(),
		Streamer: e.streamer.Stats(),
		Timings:  e.timings.Snapshot(),
	}
}

// TimingSummary formats the n most expensive timing buckets.
func (e *Engine) TimingSummary(n int) string {
	return e.timings.TopN(n)
}

// SetSeed regenerates the world for a new seed: the noise cache is
// cleared, biome centers are scattered again and every chunk is evicted
// so the next ticks rebuild them.
func (e *Engine) SetSeed(ctx context.Context, seed int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.noise.SetSeed(seed); err != nil {
		return fmt.Errorf("world: set seed: %w", err)
	}
	e.cfg.Seed = seed
	e.biomes.ScatterCenters(e.cfg.World.WorldSize, e.cfg.Biomes.Count)
	n := e.streamer.Reset(ctx)
	e.logger.Info("seed changed", "seed", seed, "evicted", n)
	return nil
}
