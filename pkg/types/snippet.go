package types

// Snippet contains context around a match.
type Snippet struct {
	Before   []byte `json:"before,omitempty"`
	Matching []byte `json:"matching"`
	After    []byte `json:"after,omitempty"`
}

// Text joins the three parts back together.
func (s Snippet) Text() string {
	return string(s.Before) + string(s.Matching) + string(s.After)
}
