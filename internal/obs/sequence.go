package obs

import (
	"strconv"
	"sync/atomic"
)

// Sequence hands out monotonically increasing numbers. Each owner keeps its own
// instance so no process-wide counter exists.
type Sequence struct {
	next uint64
}

// NewSequence returns a sequence whose first value is seed+1.
func NewSequence(seed uint64) *Sequence {
	return &Sequence{next: seed}
}

// Next returns the next value.
func (s *Sequence) Next() uint64 {
	if s == nil {
		return 0
	}
	return atomic.AddUint64(&s.next, 1)
}

// Last returns the most recently issued value, zero when none was issued.
func (s *Sequence) Last() uint64 {
	if s == nil {
		return 0
	}
	return atomic.LoadUint64(&s.next)
}

// IDGenerator formats sequence values as prefixed string ids, e.g. BT_1, BT_2.
type IDGenerator struct {
	prefix string
	seq    *Sequence
}

// NewIDGenerator creates a generator for the given prefix starting at 1.
func NewIDGenerator(prefix string) *IDGenerator {
	return &IDGenerator{prefix: prefix, seq: NewSequence(0)}
}

// Next returns the next id.
func (g *IDGenerator) Next() string {
	return g.prefix + strconv.FormatUint(g.seq.Next(), 10)
}
