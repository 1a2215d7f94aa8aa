package types

import (
	"crypto/sha1"
	"encoding/hex"
)

// Finding groups every match of one keyword from one dictionary.
type Finding struct {
	ID           string   `json:"id"` // SHA-1(dictionary_structural_id + '\0' + keyword)
	DictionaryID string   `json:"dictionary_id"`
	Keyword      string   `json:"keyword"`
	Matches      []*Match `json:"matches,omitempty"`
}

// ComputeFindingID computes the content-based finding ID.
func ComputeFindingID(dictStructuralID, keyword string) string {
	h := sha1.New()
	h.Write([]byte(dictStructuralID))
	h.Write([]byte{0})
	h.Write([]byte(keyword))
	return hex.EncodeToString(h.Sum(nil))
}
