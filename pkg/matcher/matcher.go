// Package matcher finds dictionary keywords in content using an
// Aho-Corasick automaton, either reporting every occurrence or selecting
// greedy leftmost-longest non-overlapping hits, over whole buffers or
// chunked streams.
package matcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/praetorian-inc/kwmatch/pkg/logging"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

var (
	// ErrStaleSession is returned by an engine stream after the keyword set
	// it was opened against has changed.
	ErrStaleSession = errors.New("keyword set changed since the stream was opened")

	// ErrSessionClosed is returned when pushing to a closed engine stream.
	ErrSessionClosed = errors.New("stream is closed")
)

// Matcher scans content for keyword matches.
type Matcher interface {
	// Match scans content against all loaded dictionaries.
	Match(content []byte) ([]*types.Match, error)

	// MatchWithBlobID scans content with a known BlobID.
	MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error)

	// Close releases resources.
	Close() error
}

// Mode selects which hits a scan reports.
type Mode int

const (
	// ModeAll reports every occurrence, nested and overlapping included.
	ModeAll Mode = iota
	// ModeGreedy reports leftmost-longest non-overlapping occurrences.
	ModeGreedy
)

func (m Mode) String() string {
	switch m {
	case ModeAll:
		return "all"
	case ModeGreedy:
		return "greedy"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "all" or "greedy".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "":
		return ModeAll, nil
	case "greedy", "longest":
		return ModeGreedy, nil
	default:
		return 0, fmt.Errorf("unknown match mode %q (expected all or greedy)", s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Config for engine initialization.
type Config struct {
	// Dictionaries to load. Keywords shared between dictionaries are
	// attributed to the first dictionary that lists them.
	Dictionaries []*types.Dictionary

	// Mode used by Match and MatchWithBlobID.
	Mode Mode

	// ContextLines of snippet context captured around each match (0 = none).
	ContextLines int

	// Dedupe drops repeated matches within one blob.
	Dedupe DedupeMode

	// Chunk controls how large content is fed through the automaton.
	Chunk ChunkConfig

	// MaxMatchesPerBlob limits matches returned per blob (0 = unlimited).
	MaxMatchesPerBlob int

	Logger *logging.Logger
}

// New creates an Engine with the given config.
func New(cfg Config) (*Engine, error) {
	return NewEngine(cfg)
}
