package explore

import (
	"sort"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// facetID identifies a facet category.
type facetID int

const (
	facetDictionary facetID = iota
	facetCategory
	facetSource
)

// facetDef defines a facet category.
type facetDef struct {
	ID    facetID
	Label string
}

var facetDefs = []facetDef{
	{facetDictionary, "Dictionary"},
	{facetCategory, "Category"},
	{facetSource, "Source"},
}

// facetValue is a single selectable value within a facet.
type facetValue struct {
	FacetID  facetID
	Value    string
	Count    int
	Selected bool
}

// facetState holds the complete filter state.
type facetState struct {
	Values map[facetID][]*facetValue
}

func newFacetState() *facetState {
	return &facetState{
		Values: make(map[facetID][]*facetValue),
	}
}

// facetValues lists the values a finding contributes to a facet.
func facetValues(id facetID, f *findingRow) []string {
	switch id {
	case facetDictionary:
		return []string{f.DictionaryName}
	case facetCategory:
		return f.Categories
	case facetSource:
		if len(f.SourceKinds) == 0 {
			return []string{"-"}
		}
		return f.SourceKinds
	}
	return nil
}

// buildFacets builds facet values from findings data.
func buildFacets(findings []*findingRow) *facetState {
	fs := newFacetState()
	for _, def := range facetDefs {
		counts := make(map[string]int)
		for _, f := range findings {
			for _, v := range facetValues(def.ID, f) {
				counts[v]++
			}
		}
		fs.Values[def.ID] = mapToFacetValues(def.ID, counts)
	}
	return fs
}

func mapToFacetValues(id facetID, counts map[string]int) []*facetValue {
	values := make([]*facetValue, 0, len(counts))
	for v, c := range counts {
		values = append(values, &facetValue{FacetID: id, Value: v, Count: c})
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].Value < values[j].Value
	})
	return values
}

// selectedValues returns the set of selected values for a facet.
func (fs *facetState) selectedValues(id facetID) map[string]bool {
	selected := make(map[string]bool)
	for _, v := range fs.Values[id] {
		if v.Selected {
			selected[v.Value] = true
		}
	}
	return selected
}

// hasActiveFilters returns true if any facet has selections.
func (fs *facetState) hasActiveFilters() bool {
	for _, values := range fs.Values {
		for _, v := range values {
			if v.Selected {
				return true
			}
		}
	}
	return false
}

// resetAll deselects all facet values.
func (fs *facetState) resetAll() {
	for _, values := range fs.Values {
		for _, v := range values {
			v.Selected = false
		}
	}
}

// matchesFinding returns true if a finding passes all active filters.
// Within a facet: OR (union). Across facets: AND (intersection).
func (fs *facetState) matchesFinding(f *findingRow) bool {
	for _, def := range facetDefs {
		selected := fs.selectedValues(def.ID)
		if len(selected) == 0 {
			continue
		}
		found := false
		for _, v := range facetValues(def.ID, f) {
			if selected[v] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// updateCounts recounts facet values over the findings that pass the filters.
func (fs *facetState) updateCounts(findings []*findingRow) {
	for _, values := range fs.Values {
		for _, v := range values {
			v.Count = 0
		}
	}

	for _, f := range findings {
		if !fs.matchesFinding(f) {
			continue
		}
		for _, def := range facetDefs {
			own := facetValues(def.ID, f)
			for _, v := range fs.Values[def.ID] {
				for _, o := range own {
					if v.Value == o {
						v.Count++
						break
					}
				}
			}
		}
	}
}

// findingRow is the denormalized view model for a finding in the TUI.
type findingRow struct {
	FindingID      string
	DictionaryID   string
	DictionaryName string
	Categories     []string
	Keyword        string
	MatchCount     int
	BlobCount      int
	SourceKinds    []string // provenance kinds in first-seen order
	Matches        []*matchRow
}

// matchRow is the denormalized view model for a match.
type matchRow struct {
	StructuralID string
	BlobID       types.BlobID
	Location     types.Location
	Snippet      types.Snippet
	Provenance   []types.Provenance
}
