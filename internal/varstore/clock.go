package varstore

import "sync/atomic"

// SeqSource issues the logical sequence numbers stamped on journaled writes.
// Implemented by Clock; tests pin seqs by giving every run a fresh one.
type SeqSource interface {
	Next() int64
	Current() int64
}

// Clock is a monotonic logical clock.
//
// Journal writes are ordered by seq rather than wall time, so replay applies
// them in exactly the order they were made.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start.
// Used to continue a session's numbering after its last journaled write.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued value.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
