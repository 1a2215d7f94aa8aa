// Package scanner binds a keyword engine to result storage, the persistent
// keyword store and stream sessions. It backs the serve protocol and the
// library facade.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/praetorian-inc/kwmatch/pkg/dictionary"
	"github.com/praetorian-inc/kwmatch/pkg/logging"
	"github.com/praetorian-inc/kwmatch/pkg/matcher"
	"github.com/praetorian-inc/kwmatch/pkg/store"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// ErrUnknownSession is returned for a stream ID that is not open.
var ErrUnknownSession = errors.New("unknown stream session")

var (
	// cachedBuiltin holds builtin dictionaries loaded once per process
	cachedBuiltin    []*types.Dictionary
	cachedBuiltinErr error
	cacheOnce        sync.Once
)

// BuiltinDictionaries loads the embedded dictionaries once and caches them.
func BuiltinDictionaries() ([]*types.Dictionary, error) {
	cacheOnce.Do(func() {
		cachedBuiltin, cachedBuiltinErr = dictionary.NewLoader().LoadBuiltin()
	})
	return cachedBuiltin, cachedBuiltinErr
}

// Config configures a Core.
type Config struct {
	// Dictionaries to load.
	Dictionaries []*types.Dictionary

	// Mode used by Scan.
	Mode matcher.Mode

	// ContextLines of snippet context per match.
	ContextLines int

	// Store receives scan results. Nil uses an in-memory store owned by
	// the Core.
	Store store.Store

	// Keywords persists runtime keyword changes. Dictionaries it already
	// holds take precedence over Config.Dictionaries with the same ID;
	// the rest are written to it.
	Keywords *store.KeywordStore

	Logger *logging.Logger
}

// Core wraps the engine and stores for scanning operations.
type Core struct {
	engine   *matcher.Engine
	store    store.Store
	ownStore bool
	keywords *store.KeywordStore
	logger   *logging.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// session is one open stream.
type session struct {
	mu       sync.Mutex
	stream   *matcher.EngineStream
	replacer *matcher.EngineReplacer
}

// NewCore creates a Core from cfg.
func NewCore(cfg Config) (*Core, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}

	dicts, err := mergePersisted(cfg.Dictionaries, cfg.Keywords)
	if err != nil {
		return nil, err
	}

	engine, err := matcher.NewEngine(matcher.Config{
		Dictionaries: dicts,
		Mode:         cfg.Mode,
		ContextLines: cfg.ContextLines,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("building engine: %w", err)
	}

	c := &Core{
		engine:   engine,
		store:    cfg.Store,
		keywords: cfg.Keywords,
		logger:   cfg.Logger,
		sessions: make(map[string]*session),
	}
	if c.store == nil {
		c.store = store.NewMemory()
		c.ownStore = true
	}
	for _, d := range engine.Dictionaries() {
		if err := c.store.AddDictionary(d); err != nil {
			c.Close()
			return nil, fmt.Errorf("storing dictionary %s: %w", d.ID, err)
		}
	}
	return c, nil
}

// mergePersisted overlays the keyword store's dictionaries on dicts and
// writes the ones it lacks.
func mergePersisted(dicts []*types.Dictionary, ks *store.KeywordStore) ([]*types.Dictionary, error) {
	if ks == nil {
		return dicts, nil
	}
	persisted, err := ks.Dictionaries()
	if err != nil {
		return nil, fmt.Errorf("loading keyword store: %w", err)
	}
	byID := make(map[string]*types.Dictionary, len(persisted))
	for _, d := range persisted {
		byID[d.ID] = d
	}

	out := make([]*types.Dictionary, 0, len(dicts)+len(persisted))
	for _, d := range dicts {
		if p, ok := byID[d.ID]; ok {
			out = append(out, p)
			delete(byID, d.ID)
			continue
		}
		if err := ks.PutDictionary(d); err != nil {
			return nil, fmt.Errorf("persisting dictionary %s: %w", d.ID, err)
		}
		out = append(out, d)
	}
	for _, d := range persisted {
		if _, ok := byID[d.ID]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// Engine exposes the underlying engine.
func (c *Core) Engine() *matcher.Engine {
	return c.engine
}

// Store exposes the result store.
func (c *Core) Store() store.Store {
	return c.store
}

// Scan scans a single content string and records the results.
func (c *Core) Scan(content, source string) (*ScanResult, error) {
	data := []byte(content)
	blobID := types.ComputeBlobID(data)

	var prov types.Provenance
	if source != "" {
		prov = types.StreamProvenance{Name: source}
	}
	matches, err := c.ScanBlob(data, blobID, prov)
	c.logger.LogScan(context.Background(), source, len(data), len(matches), err)
	if err != nil {
		return nil, err
	}

	if matches == nil {
		matches = []*types.Match{}
	}
	return &ScanResult{Source: source, BlobID: blobID, Matches: matches}, nil
}

// ScanBlob matches content and records the blob, its provenance (when
// non-nil) and the matches. It is safe for concurrent use.
func (c *Core) ScanBlob(content []byte, blobID types.BlobID, prov types.Provenance) ([]*types.Match, error) {
	matches, err := c.engine.MatchWithBlobID(content, blobID)
	if err != nil {
		return nil, fmt.Errorf("matching content: %w", err)
	}
	if err := store.Record(c.store, store.Blob{ID: blobID, Size: int64(len(content))}, prov, matches); err != nil {
		return nil, fmt.Errorf("recording results: %w", err)
	}
	return matches, nil
}

// ScanBatch scans multiple content items. Items that fail are skipped.
func (c *Core) ScanBatch(items []ContentItem) (*BatchScanResult, error) {
	results := make([]ScanResult, 0, len(items))
	total := 0

	for _, item := range items {
		res, err := c.Scan(item.Content, item.Source)
		if err != nil {
			c.logger.Warn("skipping batch item", "source", item.Source, "error", err)
			continue
		}
		results = append(results, *res)
		total += len(res.Matches)
	}

	return &BatchScanResult{Results: results, Total: total}, nil
}

// HasMatch reports whether content contains any keyword.
func (c *Core) HasMatch(content string) bool {
	return c.engine.HasMatch([]byte(content))
}

// Hits returns bare hits in the given mode without recording anything.
func (c *Core) Hits(content string, mode matcher.Mode) []types.Hit {
	return c.engine.Hits([]byte(content), mode)
}

// ReplaceFunc builds the substitution for a replace request: with wins,
// then a one-character mask, then each dictionary's replacement with the
// keyword itself as the last resort.
func (c *Core) ReplaceFunc(with *string, mask string) (matcher.ReplaceFunc, error) {
	switch {
	case with != nil:
		return matcher.Constant(*with), nil
	case mask != "":
		if len(mask) != 1 {
			return nil, fmt.Errorf("mask must be a single byte, got %q", mask)
		}
		return matcher.Mask(mask[0]), nil
	default:
		return c.engine.Replacement(matcher.Identity), nil
	}
}

// Replace rewrites content, substituting every greedy hit.
func (c *Core) Replace(content string, fn matcher.ReplaceFunc) string {
	return c.engine.Replace([]byte(content), fn)
}

// AddKeywords adds keywords to dictionary dictID (created on demand) and
// returns how many changed the keyword set.
func (c *Core) AddKeywords(dictID string, keywords []string) (int, error) {
	added := 0
	for _, kw := range keywords {
		changed, err := c.engine.Add(dictID, kw)
		if err != nil {
			return added, err
		}
		if changed {
			added++
		}
		if err := c.persistAdd(dictID, kw); err != nil {
			return added, err
		}
	}
	if err := c.syncStoredDictionary(dictID); err != nil {
		return added, err
	}
	return added, nil
}

func (c *Core) persistAdd(dictID, kw string) error {
	if c.keywords == nil {
		return nil
	}
	_, err := c.keywords.AddKeyword(dictID, kw)
	if errors.Is(err, store.ErrNotFound) {
		err = c.keywords.PutDictionary(&types.Dictionary{ID: dictID, Name: dictID, Keywords: []string{kw}})
	}
	if err != nil {
		return fmt.Errorf("persisting keyword: %w", err)
	}
	return nil
}

// DeleteKeywords removes keywords from dictionary dictID, or from every
// dictionary when dictID is empty. It returns how many changed the
// keyword set.
func (c *Core) DeleteKeywords(dictID string, keywords []string) (int, error) {
	removed := 0
	var affected []string
	for _, kw := range keywords {
		owners := []string{dictID}
		if dictID == "" {
			owners = c.listing(kw)
		}
		for _, id := range owners {
			if !slices.Contains(affected, id) {
				affected = append(affected, id)
			}
		}

		var changed bool
		if dictID == "" {
			changed = c.engine.Delete(kw)
		} else {
			changed = c.engine.DeleteFrom(dictID, kw)
		}
		if changed {
			removed++
		}

		if c.keywords != nil {
			for _, id := range owners {
				if _, err := c.keywords.DeleteKeyword(id, kw); err != nil && !errors.Is(err, store.ErrNotFound) {
					return removed, fmt.Errorf("persisting keyword deletion: %w", err)
				}
			}
		}
	}
	for _, id := range affected {
		if err := c.syncStoredDictionary(id); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// listing returns the IDs of the dictionaries that list kw.
func (c *Core) listing(kw string) []string {
	var ids []string
	for _, d := range c.engine.Dictionaries() {
		if slices.Contains(d.Keywords, kw) {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Keywords returns the current keyword set, sorted.
func (c *Core) Keywords() []string {
	return c.engine.Keywords()
}

// Dictionaries returns copies of the loaded dictionaries.
func (c *Core) Dictionaries() []*types.Dictionary {
	return c.engine.Dictionaries()
}

// SyncDictionary replaces dictionary d.ID with d.
func (c *Core) SyncDictionary(d *types.Dictionary) (added, removed int, err error) {
	added, removed, err = c.engine.SyncDictionary(d)
	if err != nil {
		return added, removed, err
	}
	if c.keywords != nil {
		if err := c.keywords.PutDictionary(d); err != nil {
			return added, removed, fmt.Errorf("persisting dictionary: %w", err)
		}
	}
	return added, removed, c.syncStoredDictionary(d.ID)
}

// RemoveDictionary drops a dictionary and the keywords only it lists.
func (c *Core) RemoveDictionary(dictID string) (int, error) {
	removed := c.engine.RemoveDictionary(dictID)
	if c.keywords != nil {
		if err := c.keywords.DeleteDictionary(dictID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return removed, fmt.Errorf("persisting dictionary removal: %w", err)
		}
	}
	return removed, nil
}

// ApplyChanges applies reloaded dictionary differences, as reported by
// dictionary.Watcher.
func (c *Core) ApplyChanges(changes []dictionary.Change) error {
	var errs []error
	for _, ch := range changes {
		if ch.Dictionary == nil {
			if _, err := c.RemoveDictionary(ch.DictionaryID); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		added, removed, err := c.SyncDictionary(ch.Dictionary)
		if err != nil {
			errs = append(errs, fmt.Errorf("syncing %s: %w", ch.DictionaryID, err))
			continue
		}
		c.logger.WithDictionary(ch.DictionaryID).Info("dictionary synced", "added", added, "removed", removed)
	}
	return errors.Join(errs...)
}

// syncStoredDictionary refreshes the result store's copy of dictID.
func (c *Core) syncStoredDictionary(dictID string) error {
	for _, d := range c.engine.Dictionaries() {
		if d.ID == dictID {
			return c.store.AddDictionary(d)
		}
	}
	return nil
}

// OpenStream starts a stream session and returns its ID.
func (c *Core) OpenStream(opts StreamOptions) (string, error) {
	s := &session{}
	if opts.Replace {
		fn, err := c.ReplaceFunc(opts.With, opts.Mask)
		if err != nil {
			return "", err
		}
		s.replacer = c.engine.OpenReplaceStream(fn)
	} else {
		s.stream = c.engine.OpenStream(opts.Mode)
	}

	id := uuid.NewString()
	c.mu.Lock()
	c.sessions[id] = s
	c.mu.Unlock()

	c.logger.WithSession(id).LogSession(context.Background(), "open", 0, 0)
	return id, nil
}

func (c *Core) session(id string) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s, nil
}

// PushStream feeds the next chunk of a stream.
func (c *Core) PushStream(id, chunk string) (*StreamOutput, error) {
	s, err := c.session(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replacer != nil {
		out, err := s.replacer.Push([]byte(chunk))
		if err != nil {
			return nil, err
		}
		return &StreamOutput{Output: out}, nil
	}
	hits, err := s.stream.Push([]byte(chunk))
	if err != nil {
		return nil, err
	}
	return &StreamOutput{Hits: hits, Offset: s.stream.Offset()}, nil
}

// CloseStream ends a stream, returning whatever it still held.
func (c *Core) CloseStream(id string) (*StreamOutput, error) {
	c.mu.Lock()
	s, ok := c.sessions[id]
	delete(c.sessions, id)
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out StreamOutput
	if s.replacer != nil {
		out.Output = s.replacer.Close()
	} else {
		out.Hits = s.stream.Close()
		out.Offset = s.stream.Offset()
	}
	c.logger.WithSession(id).LogSession(context.Background(), "close", out.Offset, len(out.Hits))
	return &out, nil
}

// Sessions is the number of open stream sessions.
func (c *Core) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Close releases scanner resources. Open sessions are dropped.
func (c *Core) Close() error {
	c.mu.Lock()
	c.sessions = make(map[string]*session)
	c.mu.Unlock()

	var errs []error
	errs = append(errs, c.engine.Close())
	if c.ownStore {
		errs = append(errs, c.store.Close())
	}
	return errors.Join(errs...)
}
