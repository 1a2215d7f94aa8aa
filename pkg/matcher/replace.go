package matcher

import (
	"iter"
	"strings"

	"github.com/praetorian-inc/kwmatch/pkg/automaton"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// ReplaceFunc returns the text that replaces one greedy hit of keyword.
type ReplaceFunc func(keyword string) string

// Identity leaves every keyword as it is.
func Identity(keyword string) string { return keyword }

// Mask replaces every byte of the keyword with c.
func Mask(c byte) ReplaceFunc {
	return func(keyword string) string {
		return strings.Repeat(string(c), len(keyword))
	}
}

// Constant replaces every keyword with s.
func Constant(s string) ReplaceFunc {
	return func(string) string { return s }
}

// Replacer rewrites a stream, substituting each greedy hit. It buffers only
// the unconfirmed tail of the input.
type Replacer struct {
	g      greedy
	fn     ReplaceFunc
	buf    []byte // input from base onward
	base   int
	cursor int // input before cursor has been written out
	closed bool
	out    []string
}

// NewReplacer starts a replacing stream over a.
func NewReplacer(a *automaton.Automaton, fn ReplaceFunc) *Replacer {
	if fn == nil {
		fn = Identity
	}
	return &Replacer{g: newGreedy(a), fn: fn}
}

// Push feeds the next chunk and returns the output pieces that are now
// final: literal spans and replacements, in order.
func (r *Replacer) Push(chunk []byte) []string {
	if r.closed {
		return nil
	}
	r.out = nil
	r.buf = append(r.buf, chunk...)
	r.g.feed(chunk, r.replace)
	if c := r.g.confirmed(); c > r.cursor {
		r.literal(c)
	}
	r.compact()
	return r.out
}

// Close flushes the remaining hits and the buffered tail.
func (r *Replacer) Close() []string {
	if r.closed {
		return nil
	}
	r.closed = true
	r.out = nil
	r.g.finish(r.replace)
	r.literal(r.g.offset)
	r.buf = nil
	return r.out
}

// Buffered is the number of input bytes held back.
func (r *Replacer) Buffered() int {
	return len(r.buf)
}

func (r *Replacer) replace(h types.Hit) {
	r.literal(h.Begin)
	if s := r.fn(h.Keyword); s != "" {
		r.out = append(r.out, s)
	}
	r.cursor = h.End
}

func (r *Replacer) literal(upto int) {
	if upto > r.cursor {
		r.out = append(r.out, string(r.buf[r.cursor-r.base:upto-r.base]))
		r.cursor = upto
	}
}

// compact drops consumed input from the front of buf.
func (r *Replacer) compact() {
	n := r.cursor - r.base
	if n <= 0 {
		return
	}
	r.buf = append(r.buf[:0], r.buf[n:]...)
	r.base = r.cursor
}

// Replace yields the rewritten stream piece by piece.
func Replace(a *automaton.Automaton, chunks iter.Seq[[]byte], fn ReplaceFunc) iter.Seq[string] {
	return func(yield func(string) bool) {
		r := NewReplacer(a, fn)
		for chunk := range chunks {
			for _, s := range r.Push(chunk) {
				if !yield(s) {
					return
				}
			}
		}
		for _, s := range r.Close() {
			if !yield(s) {
				return
			}
		}
	}
}

// ReplaceAll rewrites text in one call.
func ReplaceAll(a *automaton.Automaton, text []byte, fn ReplaceFunc) string {
	r := NewReplacer(a, fn)
	var sb strings.Builder
	for _, s := range r.Push(text) {
		sb.WriteString(s)
	}
	for _, s := range r.Close() {
		sb.WriteString(s)
	}
	return sb.String()
}
