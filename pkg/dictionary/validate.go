package dictionary

import (
	"fmt"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// Validate checks dictionary consistency and required fields.
func Validate(d *types.Dictionary) error {
	if d == nil {
		return fmt.Errorf("dictionary is nil")
	}
	if d.ID == "" {
		return fmt.Errorf("dictionary ID is required")
	}
	if d.Name == "" {
		return fmt.Errorf("dictionary %s: name is required", d.ID)
	}
	if len(d.Keywords) == 0 {
		return fmt.Errorf("dictionary %s must list at least one keyword", d.ID)
	}

	seen := make(map[string]bool, len(d.Keywords))
	for i, kw := range d.Keywords {
		if kw == "" {
			return fmt.Errorf("dictionary %s, keyword %d: %w", d.ID, i, ErrEmptyKeyword)
		}
		if seen[kw] {
			return fmt.Errorf("dictionary %s contains duplicate keyword %q", d.ID, kw)
		}
		seen[kw] = true
	}

	if want := d.ComputeStructuralID(); d.StructuralID != "" && d.StructuralID != want {
		return fmt.Errorf("dictionary %s has inconsistent StructuralID: got %s, expected %s",
			d.ID, d.StructuralID, want)
	}
	return nil
}

// ValidateAll validates each dictionary and rejects duplicate IDs.
func ValidateAll(dicts []*types.Dictionary) error {
	ids := make(map[string]bool, len(dicts))
	for _, d := range dicts {
		if err := Validate(d); err != nil {
			return err
		}
		if ids[d.ID] {
			return fmt.Errorf("duplicate dictionary ID: %s", d.ID)
		}
		ids[d.ID] = true
	}
	return nil
}
