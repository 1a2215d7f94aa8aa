package automaton

// New builds an automaton for keywords. Duplicates collapse and empty
// keywords are ignored.
func New(keywords ...string) *Automaton {
	a := newEmpty()
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		s := Root
		for i := 0; i < len(kw); i++ {
			next := a.child(s, kw[i])
			if next == NoState {
				next = a.alloc(s, kw[i])
			}
			s = next
		}
		if !a.nodes[s].terminal {
			a.nodes[s].terminal = true
			a.nodes[s].keyword = kw
			a.count++
		}
	}

	// Breadth first, so fail targets and their outputs are final before
	// any deeper node reads them.
	queue := make([]State, 0, len(a.nodes))
	for _, e := range a.nodes[Root].edges {
		queue = append(queue, e.child)
	}
	for i := 0; i < len(queue); i++ {
		v := queue[i]
		a.link(v, a.failTarget(v))
		for _, e := range a.nodes[v].edges {
			queue = append(queue, e.child)
		}
	}
	return a
}

// failTarget finds the deepest existing node whose path is a proper suffix
// of the path of v. The parent of v must already be linked.
func (a *Automaton) failTarget(v State) State {
	p, c := a.nodes[v].parent, a.nodes[v].label
	if p == Root {
		return Root
	}
	for cand := a.nodes[p].fail; ; cand = a.nodes[cand].fail {
		if next := a.child(cand, c); next != NoState {
			return next
		}
		if cand == Root {
			return Root
		}
	}
}

// link sets the fail of v to f, registers v in the inverse set of f and
// derives the output of v.
func (a *Automaton) link(v, f State) {
	n := &a.nodes[v]
	n.fail = f
	if n.terminal {
		n.out = v
	} else {
		n.out = a.nodes[f].out
	}
	a.addInverse(f, v)
}
