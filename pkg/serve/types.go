package serve

import (
	"encoding/json"

	"github.com/praetorian-inc/kwmatch/pkg/scanner"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// Request represents an incoming NDJSON request
type Request struct {
	Type    string          `json:"type"` // "scan" | "scan_batch" | "has_match" | "replace" | "add" | "delete" | "keywords" | "stream_*" | "close"
	Payload json.RawMessage `json:"payload"`
}

// ScanPayload is the payload for "scan" requests
type ScanPayload struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	// Mode "all" or "greedy" returns bare hits instead of stored matches.
	Mode string `json:"mode,omitempty"`
}

// ScanBatchPayload is the payload for "scan_batch" requests
type ScanBatchPayload struct {
	Items []scanner.ContentItem `json:"items"`
}

// HasMatchPayload is the payload for "has_match" requests
type HasMatchPayload struct {
	Content string `json:"content"`
}

// ReplacePayload is the payload for "replace" requests
type ReplacePayload struct {
	Content string  `json:"content"`
	With    *string `json:"with,omitempty"`
	Mask    string  `json:"mask,omitempty"`
}

// KeywordsPayload is the payload for "add" and "delete" requests. An
// empty dictionary on delete removes the keywords everywhere.
type KeywordsPayload struct {
	Dictionary string   `json:"dictionary"`
	Keywords   []string `json:"keywords"`
}

// StreamOpenPayload is the payload for "stream_open" requests
type StreamOpenPayload struct {
	Mode    string  `json:"mode,omitempty"`
	Replace bool    `json:"replace,omitempty"`
	With    *string `json:"with,omitempty"`
	Mask    string  `json:"mask,omitempty"`
}

// StreamPushPayload is the payload for "stream_push" requests
type StreamPushPayload struct {
	Stream string `json:"stream"`
	Chunk  string `json:"chunk"`
}

// StreamClosePayload is the payload for "stream_close" requests
type StreamClosePayload struct {
	Stream string `json:"stream"`
}

// Response represents an outgoing NDJSON response
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"` // request type, "ready", or "decode"
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadyData is the data field for "ready" responses
type ReadyData struct {
	Version  string `json:"version"`
	Keywords int    `json:"keywords"`
}

// HitsData answers a moded "scan"
type HitsData struct {
	Source string      `json:"source"`
	Hits   []types.Hit `json:"hits"`
}

// HasMatchData answers "has_match"
type HasMatchData struct {
	Match bool `json:"match"`
}

// ReplaceData answers "replace"
type ReplaceData struct {
	Output string `json:"output"`
}

// MutationData answers "add" and "delete"
type MutationData struct {
	Changed  int `json:"changed"`
	Keywords int `json:"keywords"`
}

// KeywordsData answers "keywords"
type KeywordsData struct {
	Keywords []string `json:"keywords"`
}

// StreamData answers the stream requests
type StreamData struct {
	Stream string `json:"stream"`
	scanner.StreamOutput
}
