package testutil

import "sync"

// DeterministicClock is a resettable firing-seq source for tests. It
// satisfies engine.SeqSource.
//
// Sharing one clock between runs (engine.WithClock) makes their firing
// seqs continue from each other; Reset makes a rerun of the same scenario
// produce the same seqs as the first run.
type DeterministicClock struct {
	mu     sync.Mutex
	start  int64
	seq    int64
	issued []int64
}

// NewDeterministicClock returns a clock whose first seq is 1.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(0)
}

// NewDeterministicClockAt returns a clock whose first seq is start+1.
// Reset returns it to start.
func NewDeterministicClockAt(start int64) *DeterministicClock {
	return &DeterministicClock{start: start, seq: start}
}

// Next issues the next seq.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.issued = append(c.issued, c.seq)
	return c.seq
}

// Current returns the last issued seq, or the start value if none.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Issued returns every seq handed out since construction or the last
// Reset, in issue order. The count equals the number of rule firings
// stamped by this clock.
func (c *DeterministicClock) Issued() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, len(c.issued))
	copy(out, c.issued)
	return out
}

// Reset rewinds the clock to its start value and forgets issued seqs.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = c.start
	c.issued = nil
}
