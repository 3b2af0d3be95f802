package profiling

import (
	"testing"
	"time"
)

func TestTrackRecordsElapsed(t *testing.T) {
	tm := NewTimings()
	now := time.Unix(0, 0)
	tm.now = func() time.Time { return now }

	stop := tm.Track("streamer.generate")
	now = now.Add(3 * time.Millisecond)
	stop()

	stop = tm.Track("streamer.generate")
	now = now.Add(1 * time.Millisecond)
	stop()

	e := tm.Get("streamer.generate")
	if e.Count != 2 {
		t.Fatalf("expected 2 calls, got %d", e.Count)
	}
	if e.Total != 4*time.Millisecond {
		t.Fatalf("expected 4ms total, got %v", e.Total)
	}
	if e.Average() != 2*time.Millisecond {
		t.Fatalf("expected 2ms average, got %v", e.Average())
	}
}

func TestTopNOrdersByTotal(t *testing.T) {
	tm := NewTimings()
	tm.Add("a", 1*time.Millisecond)
	tm.Add("b", 5*time.Millisecond)
	tm.Add("c", 3*time.Millisecond)

	if got, want := tm.TopN(2), "b:5.0ms, c:3.0ms"; got != want {
		t.Fatalf("TopN(2) = %q, want %q", got, want)
	}
	if got := tm.TopN(10); got != "b:5.0ms, c:3.0ms, a:1.0ms" {
		t.Fatalf("TopN(10) = %q", got)
	}
	for _, n := range []int{0, -1} {
		if got := tm.TopN(n); got != "" {
			t.Fatalf("TopN(%d) = %q, want empty", n, got)
		}
	}

	tm.Reset()
	if got := tm.TopN(3); got != "" {
		t.Fatalf("TopN after reset = %q, want empty", got)
	}
}
