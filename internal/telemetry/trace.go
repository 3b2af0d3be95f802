// Package telemetry records per-tick engine statistics as zstd-compressed
// JSON lines, one file per UTC hour.
package telemetry

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"worldgen/internal/world"
)

// TickRecord is one trace line.
type TickRecord struct {
	Session    string    `json:"session"`
	Time       time.Time `json:"time"`
	Tick       uint64    `json:"tick"`
	Seed       int64     `json:"seed"`
	Observers  int       `json:"observers"`
	Candidates int       `json:"candidates"`
	Attempted  int       `json:"attempted"`
	Loaded     int       `json:"loaded"`
	Evicted    int       `json:"evicted"`
	Resident   int       `json:"resident"`
	Pending    int       `json:"pending"`
	Spent      int       `json:"budgetSpent"`
	DurationUS int64     `json:"durationUs"`

	NoiseHits   uint64 `json:"noiseHits"`
	NoiseMisses uint64 `json:"noiseMisses"`
	Written     uint64 `json:"columnsWritten"`
	Skipped     uint64 `json:"columnsSkipped"`
	Failures    uint64 `json:"failures"`
}

// Tracer writes one TickRecord per engine tick, stamped with a session id.
// Records go to dir/ticks-YYYY-MM-DD-HH.jsonl.zst, one file per UTC hour.
type Tracer struct {
	dir     string
	session string
	now     func() time.Time

	mu    sync.Mutex
	hour  time.Time
	file  *os.File
	zw    *zstd.Encoder
	buf   *bufio.Writer
	enc   *json.Encoder
	lines int
}

func NewTracer(dir string) *Tracer {
	return &Tracer{dir: dir, session: uuid.NewString(), now: time.Now}
}

func (t *Tracer) Session() string { return t.session }

// Lines returns how many records have been written.
func (t *Tracer) Lines() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lines
}

// Record converts engine stats into a trace line and writes it. Each line
// is flushed through the compressor so a crash loses at most the current
// zstd frame.
func (t *Tracer) Record(seed int64, st world.EngineStats) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	if err := t.rollLocked(now); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	last := st.Streamer.LastTick
	rec := TickRecord{
		Session:     t.session,
		Time:        now,
		Tick:        last.Tick,
		Seed:        seed,
		Observers:   last.Observers,
		Candidates:  last.Candidates,
		Attempted:   last.Attempted,
		Loaded:      last.Loaded,
		Evicted:     last.Evicted,
		Resident:    st.Streamer.Tracked,
		Pending:     st.Streamer.Pending,
		Spent:       last.BudgetSpent,
		DurationUS:  last.Duration.Microseconds(),
		NoiseHits:   st.Noise.Hits,
		NoiseMisses: st.Noise.Misses,
		Written:     st.Terrain.Written,
		Skipped:     st.Terrain.Skipped,
		Failures:    st.Streamer.ApplyFailures + st.Streamer.GenerateFailures + st.Streamer.ClearFailures,
	}
	if err := t.enc.Encode(rec); err != nil {
		return fmt.Errorf("telemetry: tick %d: %w", rec.Tick, err)
	}
	if err := t.buf.Flush(); err != nil {
		return fmt.Errorf("telemetry: tick %d: %w", rec.Tick, err)
	}
	t.lines++
	return nil
}

// rollLocked makes sure the open file covers the hour of now.
func (t *Tracer) rollLocked(now time.Time) error {
	hour := now.Truncate(time.Hour)
	if t.file != nil && hour.Equal(t.hour) {
		return nil
	}
	if err := t.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(t.dir, "ticks-"+hour.Format("2006-01-02-15")+".jsonl.zst")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return errors.Join(err, f.Close())
	}
	t.hour = hour
	t.file = f
	t.zw = zw
	t.buf = bufio.NewWriter(zw)
	t.enc = json.NewEncoder(t.buf)
	return nil
}

// closeLocked finishes the current file, reporting every failure on the
// way down.
func (t *Tracer) closeLocked() error {
	if t.file == nil {
		return nil
	}
	err := errors.Join(t.buf.Flush(), t.zw.Close(), t.file.Close())
	t.file, t.zw, t.buf, t.enc = nil, nil, nil, nil
	t.hour = time.Time{}
	return err
}

func (t *Tracer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.closeLocked(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}
