package automaton

// Add inserts keyword and repairs failure and output links so the automaton
// is indistinguishable from one built from scratch. It reports whether the
// dictionary changed; adding an existing or empty keyword is a no-op.
func (a *Automaton) Add(keyword string) bool {
	if keyword == "" {
		return false
	}

	s := Root
	for i := 0; i < len(keyword); i++ {
		next := a.child(s, keyword[i])
		if next == NoState {
			next = a.alloc(s, keyword[i])
			a.attach(next)
		}
		s = next
	}

	n := &a.nodes[s]
	if n.terminal {
		return false
	}
	n.terminal = true
	n.keyword = keyword
	n.out = s
	a.count++
	a.gen++
	a.refresh(s)
	return true
}

// Delete removes keyword, recomputes outputs that referred to it and prunes
// nodes that no longer lead to any keyword. It reports whether the
// dictionary changed.
func (a *Automaton) Delete(keyword string) bool {
	if keyword == "" {
		return false
	}
	s := a.lookup(keyword)
	if s == NoState || !a.nodes[s].terminal {
		return false
	}

	n := &a.nodes[s]
	n.terminal = false
	n.keyword = ""
	n.out = a.nodes[n.fail].out
	a.count--
	a.gen++
	a.refresh(s)
	a.prune(s)
	return true
}

// attach links a freshly allocated leaf v into the failure graph. Nodes that
// used to fail to fail(v) but whose path ends with the path of v now fail to
// v instead.
func (a *Automaton) attach(v State) {
	f := a.failTarget(v)

	inv := a.nodes[f].inverse
	kept := inv[:0]
	var moved []State
	for _, y := range inv {
		if a.endsWith(y, v) {
			moved = append(moved, y)
		} else {
			kept = append(kept, y)
		}
	}
	a.nodes[f].inverse = kept

	a.link(v, f)
	for _, y := range moved {
		a.nodes[y].fail = v
		a.addInverse(v, y)
	}
}

// refresh re-derives the output of every non-terminal node whose failure
// chain reaches s, stopping at terminals which shadow s.
func (a *Automaton) refresh(s State) {
	queue := append([]State(nil), a.nodes[s].inverse...)
	for i := 0; i < len(queue); i++ {
		u := queue[i]
		n := &a.nodes[u]
		if n.terminal {
			continue
		}
		n.out = a.nodes[n.fail].out
		queue = append(queue, n.inverse...)
	}
}

// prune walks up from s removing childless non-terminal nodes. Anything
// that failed to a removed node fails to that node's own fail target.
func (a *Automaton) prune(s State) {
	for s != Root {
		n := &a.nodes[s]
		if n.terminal || len(n.edges) > 0 {
			return
		}
		parent, f := n.parent, n.fail

		a.removeInverse(f, s)
		for _, y := range n.inverse {
			a.nodes[y].fail = f
			a.addInverse(f, y)
		}
		a.release(s)
		s = parent
	}
}
