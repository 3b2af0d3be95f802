package main

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/time/rate"

	"worldgen/internal/telemetry"
	"worldgen/internal/world"
)

// observerHeight is the Y coordinate of simulated observers; streaming
// only looks at X and Z.
const observerHeight = 80

type LoopOptions struct {
	Observers   int
	Speed       float64 // blocks per tick
	TickRate    float64 // ticks per second, <= 0 for no limit
	ReportEvery int
}

// walker moves in a straight line and reflects off the world edge.
type walker struct {
	pos mgl64.Vec3
	vel mgl64.Vec3
}

// Loop ticks the engine with a set of moving observers.
type Loop struct {
	engine  *world.Engine
	tracer  *telemetry.Tracer
	limiter *rate.Limiter
	walkers []walker
	bound   float64
	opts    LoopOptions
	logger  *slog.Logger

	ticks   int
	started time.Time
}

// NewLoop places the observers at the middle of the world, heading out
// at evenly spaced angles. tracer may be nil.
func NewLoop(e *world.Engine, tracer *telemetry.Tracer, opts LoopOptions, logger *slog.Logger) *Loop {
	limit := rate.Inf
	if opts.TickRate > 0 {
		limit = rate.Limit(opts.TickRate)
	}
	n := max(opts.Observers, 1)
	size := e.Config().World.WorldSize
	walkers := make([]walker, n)
	for i := range walkers {
		angle := 2 * math.Pi * float64(i) / float64(n)
		walkers[i] = walker{
			pos: mgl64.Vec3{size / 2, observerHeight, size / 2},
			vel: mgl64.Vec3{math.Cos(angle), 0, math.Sin(angle)}.Mul(opts.Speed),
		}
	}
	return &Loop{
		engine:  e,
		tracer:  tracer,
		limiter: rate.NewLimiter(limit, 1),
		walkers: walkers,
		bound:   size,
		opts:    opts,
		logger:  logger,
	}
}

// Observers returns the current observer positions.
func (l *Loop) Observers() []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(l.walkers))
	for i, w := range l.walkers {
		out[i] = w.pos
	}
	return out
}

// Run executes n ticks, paced by the tick rate.
func (l *Loop) Run(ctx context.Context, n int) error {
	l.started = time.Now()
	for i := 0; i < n; i++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := l.tick(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) tick(ctx context.Context) error {
	if err := l.engine.Tick(ctx, l.Observers()); err != nil {
		return err
	}
	l.ticks++
	l.move()

	if l.tracer != nil {
		if err := l.tracer.Record(l.engine.Config().Seed, l.engine.Stats()); err != nil {
			l.logger.Warn("trace write failed", "err", err)
		}
	}
	if l.opts.ReportEvery > 0 && l.ticks%l.opts.ReportEvery == 0 {
		st := l.engine.Stats()
		l.logger.Info("tick",
			"tick", l.ticks,
			"loaded", len(l.engine.LoadedChunks()),
			"pending", st.Streamer.Pending,
			"generated", st.Streamer.Generated,
			"evicted", st.Streamer.Unloaded,
			"columnsWritten", st.Terrain.Written,
			"noiseEntries", st.Noise.Entries,
		)
	}
	return nil
}

func (l *Loop) move() {
	for i := range l.walkers {
		w := &l.walkers[i]
		w.pos = w.pos.Add(w.vel)
		for _, axis := range [2]int{0, 2} {
			switch {
			case w.pos[axis] < 0:
				w.pos[axis] = -w.pos[axis]
				w.vel[axis] = -w.vel[axis]
			case w.pos[axis] > l.bound:
				w.pos[axis] = 2*l.bound - w.pos[axis]
				w.vel[axis] = -w.vel[axis]
			}
		}
	}
}

// Summary logs totals and the slowest timing buckets.
func (l *Loop) Summary() {
	st := l.engine.Stats()
	l.logger.Info("run finished",
		"ticks", l.ticks,
		"elapsed", time.Since(l.started).Round(time.Millisecond),
		"loaded", len(l.engine.LoadedChunks()),
		"generated", st.Streamer.Generated,
		"unloaded", st.Streamer.Unloaded,
		"applyFailures", st.Streamer.ApplyFailures,
		"generateFailures", st.Streamer.GenerateFailures,
		"noiseHits", st.Noise.Hits,
		"noiseMisses", st.Noise.Misses,
		"cellsBuilt", st.Biome.CellsBuilt,
		"smoothedCells", st.Biome.SmoothedCells,
		"slowest", l.engine.TimingSummary(3),
	)
}
