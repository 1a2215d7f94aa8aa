package scanner

import (
	"github.com/praetorian-inc/kwmatch/pkg/matcher"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// ContentItem represents a content item to scan
type ContentItem struct {
	Source   string            `json:"source"`             // e.g., "ticket:1234", "stdin"
	Content  string            `json:"content"`            // the actual content to scan
	Metadata map[string]string `json:"metadata,omitempty"` // optional metadata
}

// ScanResult represents scan results for a single item
type ScanResult struct {
	Source  string         `json:"source"`
	BlobID  types.BlobID   `json:"blob_id"`
	Matches []*types.Match `json:"matches"`
}

// BatchScanResult represents batch scan results
type BatchScanResult struct {
	Results []ScanResult `json:"results"`
	Total   int          `json:"total"`
}

// StreamOutput is what a stream push or close produces: hits for scanning
// streams, output pieces for replacing streams.
type StreamOutput struct {
	Hits   []types.Hit `json:"hits,omitempty"`
	Output []string    `json:"output,omitempty"`
	Offset int         `json:"offset"`
}

// StreamOptions configures a stream session.
type StreamOptions struct {
	Mode matcher.Mode
	// Replace turns the session into a find-and-replace stream.
	Replace bool
	// With replaces every keyword (replacing streams only).
	With *string
	// Mask replaces each keyword byte with this character.
	Mask string
}
