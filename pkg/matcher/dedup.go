package matcher

import (
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// DedupeMode controls how matches are deduplicated.
type DedupeMode int

const (
	// DedupeByLocation keeps one match per location (dictionary + blob + span).
	DedupeByLocation DedupeMode = iota

	// DedupeByContent keeps the first match of each keyword per dictionary.
	DedupeByContent
)

// Deduplicator remembers which matches have been seen.
type Deduplicator struct {
	seen map[string]struct{}
	mode DedupeMode
}

// NewDeduplicator creates a location-based deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{}), mode: DedupeByLocation}
}

// NewContentDeduplicator creates a deduplicator keyed by keyword.
func NewContentDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{}), mode: DedupeByContent}
}

// IsDuplicate returns true if match was already seen.
func (d *Deduplicator) IsDuplicate(m *types.Match) bool {
	_, ok := d.seen[d.key(m)]
	return ok
}

// Add marks a match as seen.
func (d *Deduplicator) Add(m *types.Match) {
	d.seen[d.key(m)] = struct{}{}
}

// Check adds m and reports whether it was new.
func (d *Deduplicator) Check(m *types.Match) bool {
	k := d.key(m)
	if _, ok := d.seen[k]; ok {
		return false
	}
	d.seen[k] = struct{}{}
	return true
}

// Reset clears the deduplicator for reuse.
func (d *Deduplicator) Reset() {
	clear(d.seen)
}

func (d *Deduplicator) key(m *types.Match) string {
	if d.mode == DedupeByContent {
		return m.DictionaryID + "\x00" + m.Keyword
	}
	return m.StructuralID
}
