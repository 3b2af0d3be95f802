package sched

import (
	"errors"
	"math"
	"time"
)

// ErrExhausted is returned by routines that give up their work because the
// tick budget ran out. The work is expected to be retried on a later tick.
var ErrExhausted = errors.New("sched: budget exhausted")

// Budget bounds the work a single scheduler tick may perform. Long-running
// routines spend operations against it and hand control back once it is
// exhausted, resuming on the next tick.
//
// A zero MaxOps means no operation limit; a zero deadline means no time
// limit. The zero Budget is unlimited.
type Budget struct {
	maxOps   int
	spent    int
	deadline time.Time
	now      func() time.Time
}

// NewBudget returns a budget allowing maxOps operations and lasting d from now.
func NewBudget(maxOps int, d time.Duration) *Budget {
	b := &Budget{maxOps: maxOps, now: time.Now}
	if d > 0 {
		b.deadline = b.now().Add(d)
	}
	return b
}

// Unlimited returns a budget that is never exhausted.
func Unlimited() *Budget {
	return &Budget{now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (b *Budget) WithClock(now func() time.Time, d time.Duration) *Budget {
	b.now = now
	if d > 0 {
		b.deadline = now().Add(d)
	} else {
		b.deadline = time.Time{}
	}
	return b
}

// Spend records n operations and reports whether the budget still has room.
func (b *Budget) Spend(n int) bool {
	if b == nil {
		return true
	}
	b.spent += n
	return !b.Exhausted()
}

// Exhausted reports whether either limit has been reached.
func (b *Budget) Exhausted() bool {
	if b == nil {
		return false
	}
	if b.maxOps > 0 && b.spent >= b.maxOps {
		return true
	}
	if !b.deadline.IsZero() && b.clock().After(b.deadline) {
		return true
	}
	return false
}

// Remaining returns the operations left, or math.MaxInt without an
// operation limit.
func (b *Budget) Remaining() int {
	if b == nil || b.maxOps <= 0 {
		return math.MaxInt
	}
	return max(b.maxOps-b.spent, 0)
}

// Spent returns the number of operations recorded so far.
func (b *Budget) Spent() int {
	if b == nil {
		return 0
	}
	return b.spent
}

func (b *Budget) clock() time.Time {
	if b.now == nil {
		return time.Now()
	}
	return b.now()
}
