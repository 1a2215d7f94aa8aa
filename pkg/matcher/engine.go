package matcher

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/praetorian-inc/kwmatch/pkg/automaton"
	"github.com/praetorian-inc/kwmatch/pkg/dictionary"
	"github.com/praetorian-inc/kwmatch/pkg/logging"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// Engine matches content against a set of dictionaries and supports
// adding and deleting keywords while it is in use.
//
// Thread Safety: Engine is safe for concurrent use. Scans share a read
// lock; mutations take the write lock and bump the automaton generation,
// which invalidates open streams.
type Engine struct {
	mu      sync.RWMutex
	ac      *automaton.Automaton
	dicts   map[string]*types.Dictionary
	order   []string            // dictionary IDs in load order
	members map[string][]string // keyword -> dictionaries listing it; the first owns hits
	cfg     Config
	logger  *logging.Logger
}

var _ Matcher = (*Engine)(nil)

// NewEngine builds the automaton for cfg.Dictionaries.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}
	if cfg.Chunk.MaxChunkSize <= 0 {
		cfg.Chunk = DefaultChunkConfig()
	}

	e := &Engine{
		dicts:   make(map[string]*types.Dictionary, len(cfg.Dictionaries)),
		members: make(map[string][]string),
		cfg:     cfg,
		logger:  cfg.Logger,
	}

	var keywords []string
	for _, d := range cfg.Dictionaries {
		if d == nil || d.ID == "" {
			return nil, fmt.Errorf("dictionary ID is required")
		}
		if _, dup := e.dicts[d.ID]; dup {
			return nil, fmt.Errorf("duplicate dictionary ID: %s", d.ID)
		}
		own := cloneDictionary(d)
		for _, kw := range own.Keywords {
			if kw == "" {
				return nil, fmt.Errorf("dictionary %s: %w", d.ID, dictionary.ErrEmptyKeyword)
			}
			if e.join(kw, d.ID) && len(e.members[kw]) == 1 {
				keywords = append(keywords, kw)
			}
		}
		e.dicts[d.ID] = own
		e.order = append(e.order, d.ID)
	}
	e.cfg.Dictionaries = nil

	e.ac = automaton.New(keywords...)
	e.logger.LogBuild(context.Background(), e.ac.Len(), e.ac.Size())
	return e, nil
}

func cloneDictionary(d *types.Dictionary) *types.Dictionary {
	c := *d
	c.Keywords = slices.Clone(d.Keywords)
	c.Categories = slices.Clone(d.Categories)
	c.References = slices.Clone(d.References)
	c.StructuralID = c.ComputeStructuralID()
	return &c
}

// join records that dictionary id lists kw and reports whether it is new.
func (e *Engine) join(kw, id string) bool {
	if slices.Contains(e.members[kw], id) {
		return false
	}
	e.members[kw] = append(e.members[kw], id)
	return true
}

// leave undoes join and reports whether kw is now unlisted.
func (e *Engine) leave(kw, id string) bool {
	ids := slices.DeleteFunc(e.members[kw], func(x string) bool { return x == id })
	if len(ids) == 0 {
		delete(e.members, kw)
		return true
	}
	e.members[kw] = ids
	return false
}

// Match scans content against all loaded dictionaries.
func (e *Engine) Match(content []byte) ([]*types.Match, error) {
	return e.MatchWithBlobID(content, types.ComputeBlobID(content))
}

// MatchWithBlobID scans content with a known BlobID.
func (e *Engine) MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error) {
	res, err := e.MatchDetailed(content, blobID)
	if err != nil {
		return nil, err
	}
	return res.Matches, nil
}

// MatchDetailed scans content in the configured mode and returns matches
// with per-dictionary statistics.
func (e *Engine) MatchDetailed(content []byte, blobID types.BlobID) (*MatchResult, error) {
	start := time.Now()

	e.mu.RLock()
	chunks := ChunkContent(content, e.cfg.Chunk)
	s := NewStream(e.ac, e.cfg.Mode)
	var hits []types.Hit
	for _, c := range chunks {
		hits = append(hits, s.Push(c.Content)...)
	}
	hits = append(hits, s.Close()...)

	// Owner lookups must see the same keyword set as the automaton.
	owners := make(map[string]*types.Dictionary)
	for _, h := range hits {
		if _, ok := owners[h.Keyword]; !ok {
			owners[h.Keyword] = e.ownerLocked(h.Keyword)
		}
	}
	loaded := len(e.dicts)
	e.mu.RUnlock()

	dedup := NewDeduplicator()
	if e.cfg.Dedupe == DedupeByContent {
		dedup = NewContentDeduplicator()
	}

	lines := types.NewLineIndex(content)
	result := &MatchResult{
		Matches:         make([]*types.Match, 0, len(hits)),
		DictionaryStats: make(map[string]DictionaryStat),
	}
	for _, h := range hits {
		d := owners[h.Keyword]
		if d == nil {
			continue
		}
		m := buildMatch(blobID, d, h, content, lines, e.cfg.ContextLines)
		if !dedup.Check(m) {
			continue
		}
		result.Matches = append(result.Matches, m)
		stat := result.DictionaryStats[d.ID]
		stat.DictionaryID = d.ID
		stat.Matches++
		result.DictionaryStats[d.ID] = stat
		if e.cfg.MaxMatchesPerBlob > 0 && len(result.Matches) >= e.cfg.MaxMatchesPerBlob {
			break
		}
	}

	result.Summary = ResultSummary{
		Dictionaries:        loaded,
		MatchedDictionaries: len(result.DictionaryStats),
		Chunks:              len(chunks),
		Bytes:               len(content),
		Duration:            time.Since(start),
	}
	return result, nil
}

func buildMatch(blobID types.BlobID, d *types.Dictionary, h types.Hit, content []byte, lines *types.LineIndex, contextLines int) *types.Match {
	m := &types.Match{
		BlobID:       blobID,
		DictionaryID: d.ID,
		Keyword:      h.Keyword,
		Location:     lines.Location(h.Begin, h.End),
		FindingID:    types.ComputeFindingID(d.StructuralID, h.Keyword),
	}
	m.Snippet.Matching = slices.Clone(content[h.Begin:h.End])
	if contextLines > 0 {
		m.Snippet.Before, m.Snippet.After = ExtractContext(content, h.Begin, h.End, contextLines)
	}
	m.StructuralID = m.ComputeStructuralID(d.StructuralID)
	return m
}

// Hits returns the bare hits of content in the given mode.
func (e *Engine) Hits(content []byte, mode Mode) []types.Hit {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if mode == ModeGreedy {
		return FindGreedy(e.ac, content)
	}
	return FindAll(e.ac, content)
}

// HasMatch reports whether any keyword occurs in content.
func (e *Engine) HasMatch(content []byte) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return HasMatch(e.ac, content)
}

// Replace substitutes every greedy hit in content with fn(keyword).
func (e *Engine) Replace(content []byte, fn ReplaceFunc) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ReplaceAll(e.ac, content, fn)
}

// Replacement returns a ReplaceFunc that substitutes each keyword with its
// owning dictionary's Replacement, or fallback when that is empty. The
// mapping is a snapshot: later mutations do not affect it.
func (e *Engine) Replacement(fallback ReplaceFunc) ReplaceFunc {
	if fallback == nil {
		fallback = Identity
	}
	e.mu.RLock()
	subst := make(map[string]string)
	for kw := range e.members {
		if d := e.ownerLocked(kw); d != nil && d.Replacement != "" {
			subst[kw] = d.Replacement
		}
	}
	e.mu.RUnlock()

	return func(keyword string) string {
		if r, ok := subst[keyword]; ok {
			return r
		}
		return fallback(keyword)
	}
}

// Add inserts keyword into dictionary dictID, creating the dictionary if
// needed. It reports whether the automaton changed.
func (e *Engine) Add(dictID, keyword string) (bool, error) {
	if dictID == "" {
		return false, fmt.Errorf("dictionary ID is required")
	}
	if keyword == "" {
		return false, dictionary.ErrEmptyKeyword
	}

	e.mu.Lock()
	d, ok := e.dicts[dictID]
	if !ok {
		d = &types.Dictionary{ID: dictID, Name: dictID}
		e.dicts[dictID] = d
		e.order = append(e.order, dictID)
	}
	if e.join(keyword, dictID) {
		d.Keywords = append(d.Keywords, keyword)
		d.StructuralID = d.ComputeStructuralID()
	}
	changed := e.ac.Add(keyword)
	gen := e.ac.Generation()
	e.mu.Unlock()

	e.logger.WithDictionary(dictID).LogMutation(context.Background(), "add", keyword, changed, gen)
	return changed, nil
}

// Delete removes keyword from every dictionary and from the automaton. It
// reports whether the automaton changed.
func (e *Engine) Delete(keyword string) bool {
	e.mu.Lock()
	for _, id := range slices.Clone(e.members[keyword]) {
		e.dropKeyword(e.dicts[id], keyword)
	}
	delete(e.members, keyword)
	changed := e.ac.Delete(keyword)
	gen := e.ac.Generation()
	e.mu.Unlock()

	e.logger.LogMutation(context.Background(), "delete", keyword, changed, gen)
	return changed
}

// DeleteFrom removes keyword from one dictionary. The automaton keeps the
// keyword while another dictionary still lists it.
func (e *Engine) DeleteFrom(dictID, keyword string) bool {
	e.mu.Lock()
	d, ok := e.dicts[dictID]
	if !ok || !slices.Contains(e.members[keyword], dictID) {
		e.mu.Unlock()
		return false
	}
	e.dropKeyword(d, keyword)
	changed := false
	if e.leave(keyword, dictID) {
		changed = e.ac.Delete(keyword)
	}
	gen := e.ac.Generation()
	e.mu.Unlock()

	e.logger.WithDictionary(dictID).LogMutation(context.Background(), "delete", keyword, changed, gen)
	return changed
}

func (e *Engine) dropKeyword(d *types.Dictionary, keyword string) {
	if d == nil {
		return
	}
	d.Keywords = slices.DeleteFunc(d.Keywords, func(kw string) bool { return kw == keyword })
	d.StructuralID = d.ComputeStructuralID()
}

// SyncDictionary makes dictionary d.ID list exactly d.Keywords, applying
// the difference as individual adds and deletes. Metadata is replaced.
func (e *Engine) SyncDictionary(d *types.Dictionary) (added, removed int, err error) {
	if d == nil || d.ID == "" {
		return 0, 0, fmt.Errorf("dictionary ID is required")
	}
	if slices.Contains(d.Keywords, "") {
		return 0, 0, fmt.Errorf("dictionary %s: %w", d.ID, dictionary.ErrEmptyKeyword)
	}

	e.mu.RLock()
	var prev []string
	if cur, ok := e.dicts[d.ID]; ok {
		prev = slices.Clone(cur.Keywords)
	}
	e.mu.RUnlock()

	plus, minus := dictionary.Diff(prev, d.Keywords)
	for _, kw := range minus {
		if e.DeleteFrom(d.ID, kw) {
			removed++
		}
	}
	for _, kw := range plus {
		changed, err := e.Add(d.ID, kw)
		if err != nil {
			return added, removed, err
		}
		if changed {
			added++
		}
	}

	e.mu.Lock()
	if cur, ok := e.dicts[d.ID]; ok {
		cur.Name = d.Name
		cur.Description = d.Description
		cur.Replacement = d.Replacement
		cur.Categories = slices.Clone(d.Categories)
		cur.References = slices.Clone(d.References)
	}
	e.mu.Unlock()
	return added, removed, nil
}

// RemoveDictionary deletes a dictionary and every keyword only it lists.
func (e *Engine) RemoveDictionary(dictID string) (removed int) {
	e.mu.RLock()
	d, ok := e.dicts[dictID]
	var kws []string
	if ok {
		kws = slices.Clone(d.Keywords)
	}
	e.mu.RUnlock()
	if !ok {
		return 0
	}

	for _, kw := range kws {
		if e.DeleteFrom(dictID, kw) {
			removed++
		}
	}

	e.mu.Lock()
	delete(e.dicts, dictID)
	e.order = slices.DeleteFunc(e.order, func(id string) bool { return id == dictID })
	e.mu.Unlock()
	return removed
}

func (e *Engine) ownerLocked(keyword string) *types.Dictionary {
	ids := e.members[keyword]
	if len(ids) == 0 {
		return nil
	}
	return e.dicts[ids[0]]
}

// DictionaryOf returns the ID of the dictionary that owns keyword's hits.
func (e *Engine) DictionaryOf(keyword string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if d := e.ownerLocked(keyword); d != nil {
		return d.ID, true
	}
	return "", false
}

// Keywords returns the current keyword set, sorted.
func (e *Engine) Keywords() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ac.Keywords()
}

// Dictionaries returns copies of the loaded dictionaries in load order.
func (e *Engine) Dictionaries() []*types.Dictionary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*types.Dictionary, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, cloneDictionary(e.dicts[id]))
	}
	return out
}

// Generation changes whenever the keyword set does.
func (e *Engine) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ac.Generation()
}

// Len is the number of distinct keywords.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ac.Len()
}

// Mode is the mode used by Match.
func (e *Engine) Mode() Mode {
	return e.cfg.Mode
}

// Close releases resources.
func (e *Engine) Close() error {
	return nil
}

// EngineStream is a Stream bound to an Engine. It fails with
// ErrStaleSession once the engine's keyword set changes.
//
// An EngineStream must not be used from multiple goroutines.
type EngineStream struct {
	e      *Engine
	s      Stream
	gen    uint64
	closed bool
}

// OpenStream starts a stream over the current keyword set.
func (e *Engine) OpenStream(mode Mode) *EngineStream {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &EngineStream{e: e, s: NewStream(e.ac, mode), gen: e.ac.Generation()}
}

// Push feeds the next chunk and returns the hits it confirmed.
func (es *EngineStream) Push(chunk []byte) ([]types.Hit, error) {
	if es.closed {
		return nil, ErrSessionClosed
	}
	es.e.mu.RLock()
	defer es.e.mu.RUnlock()
	if es.e.ac.Generation() != es.gen {
		return nil, ErrStaleSession
	}
	return es.s.Push(chunk), nil
}

// Close ends the input and returns the remaining hits. Held-back hits
// were confirmed against the keyword set the stream opened with, so Close
// does not check for staleness. Closing twice returns nothing.
func (es *EngineStream) Close() []types.Hit {
	if es.closed {
		return nil
	}
	es.closed = true
	es.e.mu.RLock()
	defer es.e.mu.RUnlock()
	return es.s.Close()
}

// Offset is the number of bytes consumed so far.
func (es *EngineStream) Offset() int {
	return es.s.Offset()
}

// EngineReplacer is a Replacer bound to an Engine, with the same staleness
// rules as EngineStream.
type EngineReplacer struct {
	e      *Engine
	r      *Replacer
	gen    uint64
	closed bool
}

// OpenReplaceStream starts a replacing stream over the current keyword set.
func (e *Engine) OpenReplaceStream(fn ReplaceFunc) *EngineReplacer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &EngineReplacer{e: e, r: NewReplacer(e.ac, fn), gen: e.ac.Generation()}
}

// Push feeds the next chunk and returns the output that is now final.
func (er *EngineReplacer) Push(chunk []byte) ([]string, error) {
	if er.closed {
		return nil, ErrSessionClosed
	}
	er.e.mu.RLock()
	defer er.e.mu.RUnlock()
	if er.e.ac.Generation() != er.gen {
		return nil, ErrStaleSession
	}
	return er.r.Push(chunk), nil
}

// Close flushes the remaining output.
func (er *EngineReplacer) Close() []string {
	if er.closed {
		return nil
	}
	er.closed = true
	er.e.mu.RLock()
	defer er.e.mu.RUnlock()
	return er.r.Close()
}

// ScanReader streams r through the engine, calling fn for each hit as it
// becomes final. It fails with ErrStaleSession if the keyword set changes
// mid-read.
func (e *Engine) ScanReader(ctx context.Context, r io.Reader, fn func(types.Hit) error, opts ...ReaderOption) error {
	cfg := newReaderConfig(opts)
	s := e.OpenStream(cfg.mode)
	deliver := func(hits []types.Hit) error {
		for _, h := range hits {
			if err := fn(h); err != nil {
				return err
			}
		}
		return nil
	}
	if err := pump(ctx, r, cfg.chunkSize, func(chunk []byte) error {
		hits, err := s.Push(chunk)
		if err != nil {
			return err
		}
		return deliver(hits)
	}); err != nil {
		return err
	}
	return deliver(s.Close())
}

// ReplaceReader copies r to w through the engine, replacing greedy hits.
func (e *Engine) ReplaceReader(ctx context.Context, w io.Writer, r io.Reader, fn ReplaceFunc, opts ...ReaderOption) (int64, error) {
	cfg := newReaderConfig(opts)
	rep := e.OpenReplaceStream(fn)
	var written int64
	write := func(pieces []string) error {
		for _, p := range pieces {
			n, err := io.WriteString(w, p)
			written += int64(n)
			if err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
		}
		return nil
	}
	if err := pump(ctx, r, cfg.chunkSize, func(chunk []byte) error {
		pieces, err := rep.Push(chunk)
		if err != nil {
			return err
		}
		return write(pieces)
	}); err != nil {
		return written, err
	}
	return written, write(rep.Close())
}
