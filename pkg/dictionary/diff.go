package dictionary

import (
	"cmp"
	"slices"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// Diff returns the keywords present only in next (added) and only in prev
// (removed), each sorted.
func Diff(prev, next []string) (added, removed []string) {
	old := make(map[string]bool, len(prev))
	for _, kw := range prev {
		old[kw] = true
	}
	cur := make(map[string]bool, len(next))
	for _, kw := range next {
		cur[kw] = true
		if !old[kw] {
			added = append(added, kw)
		}
	}
	for kw := range old {
		if !cur[kw] {
			removed = append(removed, kw)
		}
	}
	slices.Sort(added)
	added = slices.Compact(added)
	slices.Sort(removed)
	return added, removed
}

// Change is the difference for one dictionary. A change with no added or
// removed keywords carries new metadata.
type Change struct {
	DictionaryID string
	Added        []string
	Removed      []string
	Dictionary   *types.Dictionary // nil when the dictionary disappeared
}

// DiffSets compares two loads of the same sources by dictionary ID. A
// dictionary that is new or whose metadata changed yields a change even
// when its keywords did not.
func DiffSets(prev, next []*types.Dictionary) []Change {
	byID := make(map[string]*types.Dictionary, len(prev))
	for _, d := range prev {
		byID[d.ID] = d
	}

	var changes []Change
	for _, d := range next {
		var before []string
		p, seen := byID[d.ID]
		if seen {
			before = p.Keywords
			delete(byID, d.ID)
		}
		added, removed := Diff(before, d.Keywords)
		if len(added) > 0 || len(removed) > 0 || !seen || !sameMetadata(p, d) {
			changes = append(changes, Change{DictionaryID: d.ID, Added: added, Removed: removed, Dictionary: d})
		}
	}
	for id, d := range byID {
		_, removed := Diff(d.Keywords, nil)
		changes = append(changes, Change{DictionaryID: id, Removed: removed})
	}
	slices.SortFunc(changes, func(a, b Change) int {
		return cmp.Compare(a.DictionaryID, b.DictionaryID)
	})
	return changes
}

func sameMetadata(a, b *types.Dictionary) bool {
	return a.Name == b.Name &&
		a.Description == b.Description &&
		a.Replacement == b.Replacement &&
		slices.Equal(a.Categories, b.Categories) &&
		slices.Equal(a.References, b.References)
}
