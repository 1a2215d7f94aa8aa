package matcher

import (
	"iter"

	"github.com/praetorian-inc/kwmatch/pkg/automaton"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// Stream consumes input in chunks of any size and reports hits once they
// are final. Offsets count from the first byte of the first chunk.
type Stream interface {
	// Push feeds the next chunk and returns the hits it confirmed.
	Push(chunk []byte) []types.Hit
	// Close ends the input and returns the remaining hits. Pushing after
	// Close returns nothing.
	Close() []types.Hit
	// Offset is the number of bytes consumed so far.
	Offset() int
}

// NewStream returns a Stream producing the hits FindAll (ModeAll) or
// FindGreedy (ModeGreedy) would produce over the concatenated input.
func NewStream(a *automaton.Automaton, mode Mode) Stream {
	if mode == ModeGreedy {
		return NewSession(a)
	}
	return newOccurrenceSession(a)
}

// Session is a greedy leftmost-longest stream. Memory is bounded by the
// longest keyword: only hits that a later byte could still displace are
// held back.
//
// A Session must not be used from multiple goroutines.
type Session struct {
	g      greedy
	closed bool
}

// NewSession starts a greedy stream over a.
func NewSession(a *automaton.Automaton) *Session {
	return &Session{g: newGreedy(a)}
}

func (s *Session) Push(chunk []byte) []types.Hit {
	if s.closed {
		return nil
	}
	var hits []types.Hit
	s.g.feed(chunk, func(h types.Hit) { hits = append(hits, h) })
	return hits
}

func (s *Session) Close() []types.Hit {
	if s.closed {
		return nil
	}
	s.closed = true
	var hits []types.Hit
	s.g.finish(func(h types.Hit) { hits = append(hits, h) })
	return hits
}

func (s *Session) Offset() int {
	return s.g.offset
}

// Pending is the number of hits held back waiting for more input.
func (s *Session) Pending() int {
	return len(s.g.window)
}

// StreamGreedy yields the greedy hits of the concatenated chunks as they
// become final.
func StreamGreedy(a *automaton.Automaton, chunks iter.Seq[[]byte]) iter.Seq[types.Hit] {
	return func(yield func(types.Hit) bool) {
		s := NewSession(a)
		for chunk := range chunks {
			for _, h := range s.Push(chunk) {
				if !yield(h) {
					return
				}
			}
		}
		for _, h := range s.Close() {
			if !yield(h) {
				return
			}
		}
	}
}
