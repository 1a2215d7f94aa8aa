package types

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// Match is a keyword hit inside a scanned blob.
type Match struct {
	BlobID       BlobID   `json:"blob_id"`
	StructuralID string   `json:"structural_id"` // SHA-1(dictionary_structural_id + '\0' + blob_id + '\0' + start + '\0' + end)
	FindingID    string   `json:"finding_id"`    // SHA-1(dictionary_structural_id + '\0' + keyword)
	DictionaryID string   `json:"dictionary_id"`
	Keyword      string   `json:"keyword"`
	Location     Location `json:"location"`
	Snippet      Snippet  `json:"snippet"`
}

// ComputeStructuralID identifies this occurrence of the keyword.
// Format: SHA-1(dictionary_structural_id + '\0' + blob_id + '\0' + start + '\0' + end)
func (m *Match) ComputeStructuralID(dictStructuralID string) string {
	h := sha1.New()
	h.Write([]byte(dictStructuralID))
	h.Write([]byte{0})
	h.Write(m.BlobID[:])
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(m.Location.Offset.Start, 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(m.Location.Offset.End, 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// Hit returns the bare occurrence.
func (m *Match) Hit() Hit {
	return Hit{
		Begin:   int(m.Location.Offset.Start),
		End:     int(m.Location.Offset.End),
		Keyword: m.Keyword,
	}
}
