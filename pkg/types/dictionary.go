package types

import (
	"crypto/sha1"
	"encoding/hex"
	"slices"
)

// Dictionary is a named set of keywords with metadata.
type Dictionary struct {
	ID           string   `json:"id" yaml:"id"`                     // e.g., "kw.credentials"
	Name         string   `json:"name" yaml:"name"`                 // human-readable name
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Keywords     []string `json:"keywords" yaml:"keywords"`
	Replacement  string   `json:"replacement,omitempty" yaml:"replacement,omitempty"` // used by replace when no override is given
	Categories   []string `json:"categories,omitempty" yaml:"categories,omitempty"`
	References   []string `json:"references,omitempty" yaml:"references,omitempty"`
	StructuralID string   `json:"structural_id,omitempty" yaml:"-"` // SHA-1 of the keyword set (computed)
}

// ComputeStructuralID hashes the sorted, de-duplicated keyword set, so two
// dictionaries with the same keywords share an ID regardless of order.
// Empty keywords never reach an automaton and are not part of the set.
func (d *Dictionary) ComputeStructuralID() string {
	kws := slices.DeleteFunc(slices.Clone(d.Keywords), func(kw string) bool { return kw == "" })
	slices.Sort(kws)
	kws = slices.Compact(kws)

	h := sha1.New()
	for _, kw := range kws {
		h.Write([]byte(kw))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
