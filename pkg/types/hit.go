package types

import "fmt"

// Hit is one keyword occurrence: Keyword equals text[Begin:End].
// Offsets are byte offsets; in a stream they count from the first byte of
// the first chunk.
type Hit struct {
	Begin   int    `json:"begin"`
	End     int    `json:"end"`
	Keyword string `json:"keyword"`
}

// Len returns the length of the occurrence in bytes.
func (h Hit) Len() int {
	return h.End - h.Begin
}

// Overlaps reports whether h and o share at least one byte.
func (h Hit) Overlaps(o Hit) bool {
	return h.Begin < o.End && o.Begin < h.End
}

func (h Hit) String() string {
	return fmt.Sprintf("%q@[%d,%d)", h.Keyword, h.Begin, h.End)
}
