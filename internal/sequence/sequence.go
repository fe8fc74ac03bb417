// Package sequence hands out monotonically increasing sequence numbers used
// to order writes and to recognise superseded ones.
package sequence

import "sync/atomic"

// Sequencer provides monotonically increasing sequence numbers.
type Sequencer struct{ n atomic.Uint64 }

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 { return s.n.Add(1) }

// Current returns the most recently issued sequence number, or 0.
func (s *Sequencer) Current() uint64 { return s.n.Load() }

// IsCurrent reports whether n is still the latest issued number, i.e. no
// newer request has superseded it.
func (s *Sequencer) IsCurrent(n uint64) bool { return n != 0 && s.n.Load() == n }
