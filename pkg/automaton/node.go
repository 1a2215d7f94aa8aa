package automaton

import "slices"

// State addresses a node of the automaton. States are stable for the
// lifetime of the node; a pruned node's State may be reused by a later
// insertion.
type State int32

const (
	// Root is the start state. Its path is the empty string.
	Root State = 0

	// NoState marks an absent transition or an empty output.
	NoState State = -1
)

type edge struct {
	label byte
	child State
}

// node is one arena slot. edges is the only owning relation; every other
// State field is a plain index.
type node struct {
	edges    []edge // sorted by label
	parent   State
	label    byte
	depth    int32
	fail     State
	inverse  []State // nodes whose fail is this node
	terminal bool
	keyword  string
	out      State // nearest terminal on the fail chain, self included
	live     bool
}

func (a *Automaton) child(s State, c byte) State {
	edges := a.nodes[s].edges
	i, ok := slices.BinarySearchFunc(edges, c, func(e edge, c byte) int {
		return int(e.label) - int(c)
	})
	if !ok {
		return NoState
	}
	return edges[i].child
}

// alloc creates a leaf under parent on label c, reusing a freed slot when
// one is available.
func (a *Automaton) alloc(parent State, c byte) State {
	n := node{
		parent: parent,
		label:  c,
		depth:  a.nodes[parent].depth + 1,
		fail:   Root,
		out:    NoState,
		live:   true,
	}

	var s State
	if k := len(a.free); k > 0 {
		s = a.free[k-1]
		a.free = a.free[:k-1]
		a.nodes[s] = n
	} else {
		s = State(len(a.nodes))
		a.nodes = append(a.nodes, n)
	}

	edges := a.nodes[parent].edges
	i, _ := slices.BinarySearchFunc(edges, c, func(e edge, c byte) int {
		return int(e.label) - int(c)
	})
	a.nodes[parent].edges = slices.Insert(edges, i, edge{label: c, child: s})
	return s
}

// release unlinks s from its parent and returns the slot to the free list.
// The caller must already have detached s from the failure graph.
func (a *Automaton) release(s State) {
	n := &a.nodes[s]
	p := &a.nodes[n.parent]
	p.edges = slices.DeleteFunc(p.edges, func(e edge) bool { return e.child == s })
	a.nodes[s] = node{fail: NoState, parent: NoState, out: NoState}
	a.free = append(a.free, s)
}

func (a *Automaton) addInverse(target, s State) {
	a.nodes[target].inverse = append(a.nodes[target].inverse, s)
}

func (a *Automaton) removeInverse(target, s State) {
	inv := a.nodes[target].inverse
	if i := slices.Index(inv, s); i >= 0 {
		inv[i] = inv[len(inv)-1]
		a.nodes[target].inverse = inv[:len(inv)-1]
	}
}

// endsWith reports whether the path of y ends with the path of v.
func (a *Automaton) endsWith(y, v State) bool {
	if a.nodes[y].depth < a.nodes[v].depth {
		return false
	}
	for v != Root {
		if a.nodes[y].label != a.nodes[v].label {
			return false
		}
		y, v = a.nodes[y].parent, a.nodes[v].parent
	}
	return true
}
