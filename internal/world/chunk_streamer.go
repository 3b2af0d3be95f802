package world

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"worldgen/internal/biome"
	"worldgen/internal/config"
	"worldgen/internal/profiling"
	"worldgen/internal/sched"
	"worldgen/internal/terrain"
)

// maxObserverCoord bounds observer positions so chunk keys stay exact.
const maxObserverCoord = 1e12

// Builder produces one chunk grid over one or more budgeted steps.
type Builder interface {
	Step(budget *sched.Budget) (bool, error)
	Grid() *biome.Grid
}

// Generator creates builders for chunk grids.
type Generator interface {
	NewBuilder(originX, originZ, size int) Builder
}

type fieldGenerator struct {
	field      *biome.Field
	iterations int
}

// FieldGenerator builds chunk grids from a biome field, smoothing each grid
// for the given number of iterations.
func FieldGenerator(f *biome.Field, iterations int) Generator {
	return fieldGenerator{field: f, iterations: iterations}
}

func (g fieldGenerator) NewBuilder(originX, originZ, size int) Builder {
	return g.field.NewGridBuilder(originX, originZ, size, g.iterations)
}

// Applier writes and clears chunk grids in the live world. Apply charges
// its work to budget and returns sched.ErrExhausted when it gave up for
// lack of it. Clear leaves alone the columns keep reports.
type Applier interface {
	Apply(ctx context.Context, g *biome.Grid, originX, originZ int, budget *sched.Budget) error
	Clear(ctx context.Context, g *biome.Grid, originX, originZ int, keep func(x, z int) bool) error
}

// ErrInvalidOptions is returned by NewChunkStreamer for unusable Options.
var ErrInvalidOptions = errors.New("world: invalid streamer options")

var _ Applier = (*terrain.Applier)(nil)

// Options tunes a ChunkStreamer. Distances are in chunks.
type Options struct {
	ChunkSize       int
	LoadDistance    int
	UnloadDistance  int
	MaxLoadsPerTick int
	// IdleEvictTicks evicts every chunk after this many consecutive ticks
	// without observers. Zero keeps chunks indefinitely.
	IdleEvictTicks int
	// ClearOnEvict removes a chunk's terrain from the world on eviction.
	ClearOnEvict bool
	// Per-tick generation budget; zero values mean unlimited.
	MaxOps      int
	MaxDuration time.Duration
}

// TickReport summarises one Update call.
type TickReport struct {
	Tick        uint64
	Observers   int
	Candidates  int
	Attempted   int
	Loaded      int
	Deferred    int // applies postponed for lack of budget
	Evicted     int
	BudgetSpent int
	Duration    time.Duration
}

// Stats reports streamer counters.
type Stats struct {
	Ticks            uint64
	Generated        uint64
	Loaded           uint64
	Unloaded         uint64
	ApplyFailures    uint64
	GenerateFailures uint64
	ClearFailures    uint64
	Pending          int // chunks with generation in progress
	Tracked          int // chunks generated or loaded
	PendingClears    int // evicted footprints still to be cleared
	GenerateTime     time.Duration
	ApplyTime        time.Duration
	LastTick         TickReport
}

// ChunkStreamer keeps the chunks around a set of observers generated and
// applied, a bounded number per tick, and evicts chunks that fall behind.
// It is driven by Update and is not safe for concurrent use.
type ChunkStreamer struct {
	opts    Options
	gen     Generator
	applier Applier
	logger  *slog.Logger
	timings *profiling.Timings

	chunks   map[Key]*Chunk
	builders map[Key]Builder
	clearing map[Key]*biome.Grid

	tick      uint64
	idleTicks int
	stats     Stats
	newBudget func() *sched.Budget
}

// NewChunkStreamer creates a streamer. timings may be nil.
func NewChunkStreamer(gen Generator, applier Applier, opts Options, timings *profiling.Timings, logger *slog.Logger) (*ChunkStreamer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if gen == nil || applier == nil {
		return nil, fmt.Errorf("%w: generator and applier are required", ErrInvalidOptions)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timings == nil {
		timings = profiling.NewTimings()
	}
	cs := &ChunkStreamer{
		opts:     opts,
		gen:      gen,
		applier:  applier,
		logger:   logger.With("component", "streamer"),
		timings:  timings,
		chunks:   make(map[Key]*Chunk),
		builders: make(map[Key]Builder),
		clearing: make(map[Key]*biome.Grid),
	}
	cs.newBudget = func() *sched.Budget {
		if opts.MaxOps <= 0 && opts.MaxDuration <= 0 {
			return sched.Unlimited()
		}
		return sched.NewBudget(opts.MaxOps, opts.MaxDuration)
	}
	return cs, nil
}

func (o Options) validate() error {
	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidOptions, o.ChunkSize))
	}
	if o.LoadDistance < 0 {
		errs = append(errs, fmt.Errorf("%w: load distance must not be negative, got %d", ErrInvalidOptions, o.LoadDistance))
	}
	if o.UnloadDistance <= o.LoadDistance {
		errs = append(errs, fmt.Errorf("world: %w (got %d <= %d)", config.ErrThrash, o.UnloadDistance, o.LoadDistance))
	}
	if o.MaxLoadsPerTick <= 0 {
		errs = append(errs, fmt.Errorf("%w: max loads per tick must be positive, got %d", ErrInvalidOptions, o.MaxLoadsPerTick))
	}
	if o.IdleEvictTicks < 0 || o.MaxOps < 0 || o.MaxDuration < 0 {
		errs = append(errs, fmt.Errorf("%w: idle ticks and budget limits must not be negative", ErrInvalidOptions))
	}
	return errors.Join(errs...)
}

type candidate struct {
	key    Key
	cheb   int
	distSq int
}

// Update runs one tick: load the nearest missing chunks around the
// observers, then evict chunks beyond the unload distance.
func (cs *ChunkStreamer) Update(ctx context.Context, observers []mgl64.Vec3) error {
	defer cs.timings.Track("world.Update")()
	start := time.Now()
	cs.tick++
	cs.stats.Ticks++
	report := TickReport{Tick: cs.tick}
	defer func() {
		report.Duration = time.Since(start)
		cs.stats.LastTick = report
	}()
	cs.retryClears(ctx)

	centers := cs.observerChunks(observers)
	report.Observers = len(centers)
	if len(centers) == 0 {
		cs.idleTicks++
		if cs.opts.IdleEvictTicks > 0 && cs.idleTicks >= cs.opts.IdleEvictTicks && len(cs.chunks)+len(cs.builders) > 0 {
			cs.logger.Info("no observers, evicting all chunks", "idleTicks", cs.idleTicks)
			clear(cs.builders)
			report.Evicted = cs.evictWhere(ctx, func(*Chunk) bool { return true })
		}
		return nil
	}
	cs.idleTicks = 0

	cands := cs.candidates(centers)
	report.Candidates = len(cands)
	budget := cs.newBudget()
	for _, c := range cands {
		if report.Attempted >= cs.opts.MaxLoadsPerTick || budget.Exhausted() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Attempted++
		switch cs.load(ctx, c.key, budget) {
		case loadDone:
			report.Loaded++
		case loadDeferred:
			report.Deferred++
		}
	}
	report.BudgetSpent = budget.Spent()

	wanted := make(map[Key]struct{}, len(cands))
	for _, c := range cands {
		wanted[c.key] = struct{}{}
	}
	for k := range cs.builders {
		if _, ok := wanted[k]; !ok {
			delete(cs.builders, k)
		}
	}

	report.Evicted = cs.evictWhere(ctx, func(c *Chunk) bool {
		return nearest(c.Key, centers) > cs.opts.UnloadDistance
	})
	return ctx.Err()
}

func (cs *ChunkStreamer) observerChunks(observers []mgl64.Vec3) []Key {
	keys := make([]Key, 0, len(observers))
	for i, o := range observers {
		if !validCoord(o.X()) || !validCoord(o.Z()) {
			cs.logger.Warn("skipping observer with invalid position", "index", i, "x", o.X(), "z", o.Z())
			continue
		}
		keys = append(keys, KeyAt(o.X(), o.Z(), cs.opts.ChunkSize))
	}
	return keys
}

func validCoord(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= maxObserverCoord
}

// candidates lists the chunks within LoadDistance of any observer that are
// not yet loaded, nearest first.
func (cs *ChunkStreamer) candidates(centers []Key) []candidate {
	r := cs.opts.LoadDistance
	seen := make(map[Key]struct{})
	var out []candidate
	for _, center := range centers {
		for dx := -r; dx <= r; dx++ {
			for dz := -r; dz <= r; dz++ {
				k := Key{X: center.X + dx, Z: center.Z + dz}
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
				if cs.State(k) == Loaded {
					continue
				}
				c := candidate{key: k, cheb: math.MaxInt, distSq: math.MaxInt}
				for _, o := range centers {
					c.cheb = min(c.cheb, k.chebyshev(o))
					c.distSq = min(c.distSq, k.distSq(o))
				}
				out = append(out, c)
			}
		}
	}
	slices.SortStableFunc(out, func(a, b candidate) int {
		if c := cmp.Compare(a.cheb, b.cheb); c != 0 {
			return c
		}
		return cmp.Compare(a.distSq, b.distSq)
	})
	return out
}

func nearest(k Key, centers []Key) int {
	d := math.MaxInt
	for _, o := range centers {
		d = min(d, k.chebyshev(o))
	}
	return d
}

type loadResult int

const (
	loadPending  loadResult = iota // generation continues next tick
	loadFailed                     // logged and counted, retried later
	loadDeferred                   // generated, apply waits for budget
	loadDone
)

// load advances one chunk as far as the budget allows. Failures leave the
// chunk in its last consistent state.
func (cs *ChunkStreamer) load(ctx context.Context, k Key, budget *sched.Budget) loadResult {
	ox, oz := k.Origin(cs.opts.ChunkSize)
	ch, ok := cs.chunks[k]
	if !ok {
		b, ok := cs.builders[k]
		if !ok {
			b = cs.gen.NewBuilder(ox, oz, cs.opts.ChunkSize+1)
			cs.builders[k] = b
		}
		stop := cs.timings.Track("world.generate")
		done, err := b.Step(budget)
		stop()
		if err != nil {
			delete(cs.builders, k)
			cs.stats.GenerateFailures++
			cs.logger.Error("chunk generation failed", "chunk", k.String(), "err", err)
			return loadFailed
		}
		if !done {
			return loadPending
		}
		delete(cs.builders, k)
		ch = &Chunk{Key: k}
		if err := ch.Generate(b.Grid()); err != nil {
			cs.logger.Error("chunk generation failed", "chunk", k.String(), "err", err)
			return loadFailed
		}
		cs.chunks[k] = ch
		cs.stats.Generated++
	}
	ch.LastTouchedTick = cs.tick

	// Work already done this tick leaves room only for a grid that fits.
	if budget.Exhausted() || (budget.Spent() > 0 && budget.Remaining() < len(ch.Grid.Cells)) {
		cs.logger.Debug("chunk apply deferred", "chunk", k.String(), "spent", budget.Spent())
		return loadDeferred
	}
	stop := cs.timings.Track("world.apply")
	err := cs.applier.Apply(ctx, ch.Grid, ox, oz, budget)
	stop()
	if errors.Is(err, sched.ErrExhausted) {
		cs.logger.Debug("chunk apply deferred", "chunk", k.String(), "err", err)
		return loadDeferred
	}
	if err != nil {
		cs.stats.ApplyFailures++
		cs.logger.Error("chunk apply failed", "chunk", k.String(), "err", err)
		return loadFailed
	}
	if err := ch.MarkLoaded(); err != nil {
		cs.logger.Error("chunk apply failed", "chunk", k.String(), "err", err)
		return loadFailed
	}
	delete(cs.clearing, k)
	cs.stats.Loaded++
	return loadDone
}

// evictWhere evicts every tracked chunk matching pred in key order and
// returns how many were evicted.
func (cs *ChunkStreamer) evictWhere(ctx context.Context, pred func(*Chunk) bool) int {
	keys := make([]Key, 0, len(cs.chunks))
	for k := range cs.chunks {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	n := 0
	for _, k := range keys {
		ch := cs.chunks[k]
		if !pred(ch) {
			continue
		}
		if cs.opts.ClearOnEvict && ch.State == Loaded {
			cs.clearFootprint(ctx, k, ch.Grid)
		}
		if err := ch.Evict(); err != nil {
			cs.logger.Error("chunk eviction failed", "chunk", k.String(), "err", err)
			continue
		}
		delete(cs.chunks, k)
		cs.stats.Unloaded++
		n++
		cs.logger.Debug("chunk evicted", "chunk", k.String())
	}
	return n
}

// clearFootprint removes an evicted chunk's terrain, sparing columns a
// loaded neighbour also covers. A failed clear is queued and retried at
// the start of each tick until it succeeds or the chunk is loaded again.
func (cs *ChunkStreamer) clearFootprint(ctx context.Context, k Key, g *biome.Grid) {
	ox, oz := k.Origin(cs.opts.ChunkSize)
	if err := cs.applier.Clear(ctx, g, ox, oz, cs.coveredByOthers(k)); err != nil {
		cs.stats.ClearFailures++
		cs.clearing[k] = g
		cs.logger.Warn("clearing evicted chunk failed, will retry", "chunk", k.String(), "err", err)
		return
	}
	delete(cs.clearing, k)
}

func (cs *ChunkStreamer) retryClears(ctx context.Context) {
	if len(cs.clearing) == 0 || ctx.Err() != nil {
		return
	}
	pending := make([]Key, 0, len(cs.clearing))
	for k := range cs.clearing {
		pending = append(pending, k)
	}
	slices.SortFunc(pending, compareKeys)
	for _, k := range pending {
		if cs.State(k) == Loaded {
			delete(cs.clearing, k)
			continue
		}
		cs.clearFootprint(ctx, k, cs.clearing[k])
	}
}

// coveredByOthers reports, for a column, whether a loaded chunk other than
// self covers it. Grids overlap on shared edges, so a column on a chunk
// boundary belongs to up to four chunks.
func (cs *ChunkStreamer) coveredByOthers(self Key) func(x, z int) bool {
	size := cs.opts.ChunkSize
	owners := func(v int) []int {
		c := floorDiv(v, size)
		if v == c*size {
			return []int{c, c - 1}
		}
		return []int{c}
	}
	return func(x, z int) bool {
		for _, kx := range owners(x) {
			for _, kz := range owners(z) {
				k := Key{X: kx, Z: kz}
				if k != self && cs.State(k) == Loaded {
					return true
				}
			}
		}
		return false
	}
}

// Reset evicts every chunk and drops generation in progress.
func (cs *ChunkStreamer) Reset(ctx context.Context) int {
	clear(cs.builders)
	return cs.evictWhere(ctx, func(*Chunk) bool { return true })
}

func compareKeys(a, b Key) int {
	if c := cmp.Compare(a.X, b.X); c != 0 {
		return c
	}
	return cmp.Compare(a.Z, b.Z)
}

// LoadedChunks returns the keys of loaded chunks sorted by X then Z.
func (cs *ChunkStreamer) LoadedChunks() []Key {
	keys := make([]Key, 0, len(cs.chunks))
	for k, ch := range cs.chunks {
		if ch.State == Loaded {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// State returns the state of chunk k. Untracked chunks are Unloaded.
func (cs *ChunkStreamer) State(k Key) State {
	if ch, ok := cs.chunks[k]; ok {
		return ch.State
	}
	return Unloaded
}

// Chunk returns the tracked chunk at k, if any.
func (cs *ChunkStreamer) Chunk(k Key) (*Chunk, bool) {
	ch, ok := cs.chunks[k]
	return ch, ok
}

// Stats returns a snapshot of the streamer counters.
func (cs *ChunkStreamer) Stats() Stats {
	s := cs.stats
	s.Pending = len(cs.builders)
	s.Tracked = len(cs.chunks)
	s.PendingClears = len(cs.clearing)
	s.GenerateTime = cs.timings.Get("world.generate").Total
	s.ApplyTime = cs.timings.Get("world.apply").Total
	return s
}
