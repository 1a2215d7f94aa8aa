package matcher

import (
	"github.com/praetorian-inc/kwmatch/pkg/automaton"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// FindAll reports every occurrence of every keyword in text, nested and
// overlapping ones included. Hits are ordered by end offset, longest first
// among hits sharing an end.
func FindAll(a *automaton.Automaton, text []byte) []types.Hit {
	var hits []types.Hit
	EachOccurrence(a, text, func(h types.Hit) bool {
		hits = append(hits, h)
		return true
	})
	return hits
}

// EachOccurrence calls fn for every occurrence in the order FindAll returns
// them, stopping early when fn returns false.
func EachOccurrence(a *automaton.Automaton, text []byte, fn func(types.Hit) bool) {
	s := automaton.Root
	for i, c := range text {
		s = a.Step(s, c)
		for t := range a.Matches(s) {
			if !fn(types.Hit{Begin: i + 1 - a.Depth(t), End: i + 1, Keyword: a.Keyword(t)}) {
				return
			}
		}
	}
}

// HasMatch reports whether any keyword occurs in text.
func HasMatch(a *automaton.Automaton, text []byte) bool {
	s := automaton.Root
	for _, c := range text {
		s = a.Step(s, c)
		if a.Match(s) != automaton.NoState {
			return true
		}
	}
	return false
}

// occurrenceSession is the chunked form of FindAll. Every occurrence is
// final as soon as its last byte is seen, so nothing is held back.
type occurrenceSession struct {
	a      *automaton.Automaton
	state  automaton.State
	offset int
	closed bool
}

func newOccurrenceSession(a *automaton.Automaton) *occurrenceSession {
	return &occurrenceSession{a: a, state: automaton.Root}
}

func (s *occurrenceSession) Push(chunk []byte) []types.Hit {
	if s.closed {
		return nil
	}
	var hits []types.Hit
	for _, c := range chunk {
		s.state = s.a.Step(s.state, c)
		s.offset++
		for t := range s.a.Matches(s.state) {
			hits = append(hits, types.Hit{Begin: s.offset - s.a.Depth(t), End: s.offset, Keyword: s.a.Keyword(t)})
		}
	}
	return hits
}

func (s *occurrenceSession) Close() []types.Hit {
	s.closed = true
	return nil
}

func (s *occurrenceSession) Offset() int {
	return s.offset
}
