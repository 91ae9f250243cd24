package engine

import "sync/atomic"

// SeqSource stamps rule firings. Each call to Next must return a value
// greater than every value it returned before.
type SeqSource interface {
	Next() int64
}

// Clock is the default SeqSource: a lock-free counter. A fresh Clock per
// run numbers firings 1, 2, 3; one Clock passed to WithClock numbers the
// firings of every run, including runs executed by OptimizeAll in
// parallel, without gaps or repeats.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first seq is 1.
func NewClock() *Clock {
	return new(Clock)
}

// Next advances the clock and returns the new seq.
func (c *Clock) Next() int64 { return c.last.Add(1) }

// Current is the most recently issued seq.
func (c *Clock) Current() int64 { return c.last.Load() }
