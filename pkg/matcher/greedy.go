package matcher

import (
	"github.com/praetorian-inc/kwmatch/pkg/automaton"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// FindGreedy selects non-overlapping occurrences left to right, taking at
// each step the occurrence with the smallest begin and, among those, the
// largest end. Hits are sorted by Begin.
func FindGreedy(a *automaton.Automaton, text []byte) []types.Hit {
	g := newGreedy(a)
	var hits []types.Hit
	emit := func(h types.Hit) { hits = append(hits, h) }
	g.feed(text, emit)
	g.finish(emit)
	return hits
}

// greedy is the incremental selection state shared by Session and Replacer.
//
// window is the greedy chain over every occurrence seen so far that begins
// at or after floor. An occurrence that begins before confirmed (the start
// of the longest keyword prefix that is a suffix of the input so far) can no
// longer be displaced by anything still to come, so the front of the window
// is emitted as soon as it begins before confirmed.
type greedy struct {
	a      *automaton.Automaton
	state  automaton.State
	offset int // absolute offset of the next byte
	floor  int // end of the last emitted hit
	window []types.Hit
}

func newGreedy(a *automaton.Automaton) greedy {
	return greedy{a: a, state: automaton.Root}
}

// confirmed is the smallest begin any future occurrence can have.
func (g *greedy) confirmed() int {
	return g.offset - g.a.Depth(g.state)
}

func (g *greedy) feed(chunk []byte, emit func(types.Hit)) {
	for _, c := range chunk {
		g.state = g.a.Step(g.state, c)
		g.offset++
		if t := g.a.Match(g.state); t != automaton.NoState {
			g.insert(t, g.offset)
		}
		g.flush(g.confirmed(), emit)
	}
}

// insert merges the occurrences ending at end, starting from the longest
// (terminal t), into the window. They all end after every pending hit, so
// each one can only replace a window suffix.
func (g *greedy) insert(t automaton.State, end int) {
	pos := g.floor
	for k := 0; ; k++ {
		for t != automaton.NoState && end-g.a.Depth(t) < pos {
			t = g.a.NextMatch(t)
		}
		if t == automaton.NoState {
			return
		}
		begin := end - g.a.Depth(t)
		if k == len(g.window) || begin <= g.window[k].Begin {
			g.window = append(g.window[:k], types.Hit{Begin: begin, End: end, Keyword: g.a.Keyword(t)})
			return
		}
		pos = g.window[k].End
	}
}

func (g *greedy) flush(confirmed int, emit func(types.Hit)) {
	n := 0
	for n < len(g.window) && g.window[n].Begin < confirmed {
		emit(g.window[n])
		g.floor = g.window[n].End
		n++
	}
	if n > 0 {
		g.window = append(g.window[:0], g.window[n:]...)
	}
}

func (g *greedy) finish(emit func(types.Hit)) {
	for _, h := range g.window {
		emit(h)
		g.floor = h.End
	}
	g.window = g.window[:0]
	g.state = automaton.Root
}
