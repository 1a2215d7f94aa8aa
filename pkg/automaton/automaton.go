// Package automaton implements an Aho-Corasick keyword automaton that can
// be built from a dictionary in one pass and then edited one keyword at a
// time.
//
// Nodes live in an arena and refer to each other by State. Every node
// records the nearest terminal on its failure chain (its output link), which
// yields both the longest keyword ending at a position and, by following the
// chain, every keyword ending there.
//
// An Automaton is not safe for concurrent mutation. Concurrent readers are
// fine as long as no Add or Delete runs alongside them.
package automaton

import (
	"iter"
	"slices"
)

// Automaton is a trie of keywords with failure and output links.
type Automaton struct {
	nodes []node
	free  []State
	count int
	gen   uint64
}

func newEmpty() *Automaton {
	return &Automaton{
		nodes: []node{{
			parent: NoState,
			fail:   Root,
			out:    NoState,
			live:   true,
		}},
	}
}

// Step returns the state reached from s on byte c, following failure links
// until a transition exists or the root is reached.
func (a *Automaton) Step(s State, c byte) State {
	for {
		if next := a.child(s, c); next != NoState {
			return next
		}
		if s == Root {
			return Root
		}
		s = a.nodes[s].fail
	}
}

// Depth is the length of the path spelled from the root to s.
func (a *Automaton) Depth(s State) int {
	return int(a.nodes[s].depth)
}

// Fail returns the failure link of s.
func (a *Automaton) Fail(s State) State {
	return a.nodes[s].fail
}

// Match returns the terminal of the longest keyword that is a suffix of the
// path of s, or NoState.
func (a *Automaton) Match(s State) State {
	return a.nodes[s].out
}

// NextMatch returns the terminal of the next shorter keyword after terminal
// t that ends at the same position, or NoState.
func (a *Automaton) NextMatch(t State) State {
	return a.nodes[a.nodes[t].fail].out
}

// Matches yields the terminals of every keyword that is a suffix of the
// path of s, longest first.
func (a *Automaton) Matches(s State) iter.Seq[State] {
	return func(yield func(State) bool) {
		for t := a.nodes[s].out; t != NoState; t = a.NextMatch(t) {
			if !yield(t) {
				return
			}
		}
	}
}

// Keyword returns the keyword owned by terminal t.
func (a *Automaton) Keyword(t State) string {
	return a.nodes[t].keyword
}

// Terminal reports whether s ends a keyword.
func (a *Automaton) Terminal(s State) bool {
	return a.nodes[s].terminal
}

// Contains reports whether keyword is in the dictionary.
func (a *Automaton) Contains(keyword string) bool {
	s := a.lookup(keyword)
	return s != NoState && a.nodes[s].terminal
}

// Len returns the number of keywords.
func (a *Automaton) Len() int {
	return a.count
}

// Size returns the number of live nodes, root included.
func (a *Automaton) Size() int {
	return len(a.nodes) - len(a.free)
}

// Generation increases every time Add or Delete changes the dictionary.
func (a *Automaton) Generation() uint64 {
	return a.gen
}

// Keywords returns the dictionary in sorted order.
func (a *Automaton) Keywords() []string {
	out := make([]string, 0, a.count)
	for i := range a.nodes {
		if a.nodes[i].live && a.nodes[i].terminal {
			out = append(out, a.nodes[i].keyword)
		}
	}
	slices.Sort(out)
	return out
}

// lookup follows edges only and returns NoState if the path is absent.
func (a *Automaton) lookup(keyword string) State {
	s := Root
	for i := 0; i < len(keyword); i++ {
		if s = a.child(s, keyword[i]); s == NoState {
			return NoState
		}
	}
	return s
}
