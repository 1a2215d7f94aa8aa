// Package kwmatch finds keywords in text with an Aho-Corasick automaton
// that can grow and shrink while it is in use.
//
// # Basic Usage
//
// Build a matcher from a keyword list and look for occurrences:
//
//	m, err := kwmatch.New(kwmatch.WithKeywords("he", "she", "his", "hers"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	for _, hit := range m.FindAll("ushers") {
//	    fmt.Printf("%s at [%d,%d)\n", hit.Keyword, hit.Begin, hit.End)
//	}
//
// FindGreedy selects leftmost-longest non-overlapping hits instead, and
// Replace substitutes them:
//
//	m.Replace("ushers", kwmatch.Mask('*')) // "u***rs"
//
// # Streaming
//
// Sessions accept text in chunks of any size and report hits once no later
// byte can change them. Hit offsets count from the start of the stream:
//
//	s := m.NewSession(kwmatch.ModeGreedy)
//	hits, _ := s.Push([]byte("ush"))
//	more, _ := s.Push([]byte("ers"))
//	rest := s.Close()
//
// # Dynamic Keywords
//
// Add and Delete change the keyword set in place. Open sessions are bound
// to the keyword set they started with and fail with ErrStaleSession after
// a change.
package kwmatch

import (
	"context"
	"fmt"
	"io"

	"github.com/praetorian-inc/kwmatch/pkg/dictionary"
	"github.com/praetorian-inc/kwmatch/pkg/logging"
	"github.com/praetorian-inc/kwmatch/pkg/matcher"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// Re-export commonly used types for convenience.
// Users can import just "github.com/praetorian-inc/kwmatch" without subpackages.
type (
	// Hit is one keyword occurrence: Keyword equals text[Begin:End].
	Hit = types.Hit

	// Match is a hit attributed to a dictionary, with location and snippet.
	Match = types.Match

	// Dictionary is a named set of keywords.
	Dictionary = types.Dictionary

	// Mode selects all occurrences or greedy leftmost-longest hits.
	Mode = matcher.Mode

	// ReplaceFunc maps a matched keyword to its replacement.
	ReplaceFunc = matcher.ReplaceFunc

	// Session is a chunked matching stream.
	Session = matcher.EngineStream
)

const (
	ModeAll    = matcher.ModeAll
	ModeGreedy = matcher.ModeGreedy
)

// DefaultDictionary receives keywords given with WithKeywords or Add.
const DefaultDictionary = "kw.default"

var (
	// ErrStaleSession is returned by a session after the keyword set changed.
	ErrStaleSession = matcher.ErrStaleSession

	// ErrEmptyKeyword rejects the empty keyword, which would match everywhere.
	ErrEmptyKeyword = dictionary.ErrEmptyKeyword
)

// Identity, Mask and Constant build common ReplaceFuncs.
var (
	Identity = matcher.Identity
	Mask     = matcher.Mask
	Constant = matcher.Constant
)

// Matcher finds keywords in text. It is safe for concurrent use.
type Matcher struct {
	engine *matcher.Engine
}

// config holds matcher configuration.
type config struct {
	keywords     []string
	dictionaries []*types.Dictionary
	builtin      bool
	contextLines int
	mode         Mode
	logger       *logging.Logger
}

// Option configures a Matcher.
type Option func(*config)

// WithKeywords adds keywords to DefaultDictionary.
func WithKeywords(keywords ...string) Option {
	return func(c *config) {
		c.keywords = append(c.keywords, keywords...)
	}
}

// WithDictionaries loads dictionaries. A keyword listed by several of them
// is attributed to the first.
func WithDictionaries(dicts ...*Dictionary) Option {
	return func(c *config) {
		c.dictionaries = append(c.dictionaries, dicts...)
	}
}

// WithBuiltinDictionaries loads the embedded dictionaries.
func WithBuiltinDictionaries() Option {
	return func(c *config) {
		c.builtin = true
	}
}

// WithContextLines sets the lines of context Scan captures around each
// match. Default is 2.
func WithContextLines(lines int) Option {
	return func(c *config) {
		c.contextLines = lines
	}
}

// WithMode sets the mode Scan uses. Default is ModeAll.
func WithMode(m Mode) Option {
	return func(c *config) {
		c.mode = m
	}
}

// WithLogger logs builds and keyword changes.
func WithLogger(l *logging.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// New creates a Matcher. Without options it holds no keywords and matches
// nothing until Add is called.
func New(opts ...Option) (*Matcher, error) {
	cfg := &config{contextLines: 2}
	for _, opt := range opts {
		opt(cfg)
	}

	dicts := cfg.dictionaries
	if cfg.builtin {
		builtin, err := LoadBuiltinDictionaries()
		if err != nil {
			return nil, err
		}
		dicts = append(dicts, builtin...)
	}
	if len(cfg.keywords) > 0 {
		dicts = append([]*types.Dictionary{{
			ID:       DefaultDictionary,
			Name:     "Default",
			Keywords: cfg.keywords,
		}}, dicts...)
	}

	e, err := matcher.NewEngine(matcher.Config{
		Dictionaries: dicts,
		Mode:         cfg.mode,
		ContextLines: cfg.contextLines,
		Logger:       cfg.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating matcher: %w", err)
	}
	return &Matcher{engine: e}, nil
}

// HasMatch reports whether any keyword occurs in text.
func (m *Matcher) HasMatch(text string) bool {
	return m.engine.HasMatch([]byte(text))
}

// FindAll returns every occurrence, nested and overlapping ones included,
// ordered by end offset and, within one end, longest first.
func (m *Matcher) FindAll(text string) []Hit {
	return m.engine.Hits([]byte(text), ModeAll)
}

// FindGreedy returns leftmost-longest non-overlapping occurrences, sorted
// by begin offset.
func (m *Matcher) FindGreedy(text string) []Hit {
	return m.engine.Hits([]byte(text), ModeGreedy)
}

// Replace substitutes each greedy hit with fn(keyword).
func (m *Matcher) Replace(text string, fn ReplaceFunc) string {
	return m.engine.Replace([]byte(text), fn)
}

// ReplaceStream copies r to w, substituting greedy hits, with memory bounded
// by the longest keyword. It returns the bytes written.
func (m *Matcher) ReplaceStream(ctx context.Context, w io.Writer, r io.Reader, fn ReplaceFunc) (int64, error) {
	return m.engine.ReplaceReader(ctx, w, r, fn)
}

// ScanStream reads r in chunks and calls fn for each hit as it becomes
// final.
func (m *Matcher) ScanStream(ctx context.Context, r io.Reader, mode Mode, fn func(Hit) error) error {
	return m.engine.ScanReader(ctx, r, fn, matcher.WithMode(mode))
}

// NewSession opens a chunked matching stream.
func (m *Matcher) NewSession(mode Mode) *Session {
	return m.engine.OpenStream(mode)
}

// Add inserts keyword into DefaultDictionary. It reports whether the
// keyword set changed; adding a present keyword is a no-op.
func (m *Matcher) Add(keyword string) (bool, error) {
	return m.engine.Add(DefaultDictionary, keyword)
}

// Delete removes keyword from every dictionary. It reports whether the
// keyword set changed; deleting an absent keyword is a no-op.
func (m *Matcher) Delete(keyword string) bool {
	return m.engine.Delete(keyword)
}

// Keywords returns the current keyword set, sorted.
func (m *Matcher) Keywords() []string {
	return m.engine.Keywords()
}

// Dictionaries returns copies of the loaded dictionaries.
func (m *Matcher) Dictionaries() []*Dictionary {
	return m.engine.Dictionaries()
}

// Scan returns dictionary-attributed matches with locations and snippets.
func (m *Matcher) Scan(content []byte) ([]*Match, error) {
	return m.engine.Match(content)
}

// Close releases resources.
func (m *Matcher) Close() error {
	return m.engine.Close()
}

// LoadDictionaryFile reads dictionaries from a YAML file or a keyword list
// with one keyword per line.
func LoadDictionaryFile(path string) ([]*Dictionary, error) {
	return dictionary.NewLoader().LoadFile(path)
}

// LoadBuiltinDictionaries returns the embedded dictionaries.
func LoadBuiltinDictionaries() ([]*Dictionary, error) {
	dicts, err := dictionary.NewLoader().LoadBuiltin()
	if err != nil {
		return nil, fmt.Errorf("loading builtin dictionaries: %w", err)
	}
	return dicts, nil
}
