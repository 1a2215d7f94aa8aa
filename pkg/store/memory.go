package store

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// MemoryStore implements Store using in-memory data structures.
type MemoryStore struct {
	mu           sync.RWMutex
	blobs        map[types.BlobID]int64
	dictionaries map[string]*types.Dictionary
	matches      []*types.Match
	matchIDs     map[string]bool                    // match structural IDs
	findings     map[string]*types.Finding          // keyed by finding ID
	provenance   map[types.BlobID][]types.Provenance
}

var _ Store = (*MemoryStore)(nil)

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		blobs:        make(map[types.BlobID]int64),
		dictionaries: make(map[string]*types.Dictionary),
		matchIDs:     make(map[string]bool),
		findings:     make(map[string]*types.Finding),
		provenance:   make(map[types.BlobID][]types.Provenance),
	}
}

// AddBlob stores a blob record.
func (m *MemoryStore) AddBlob(id types.BlobID, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.blobs[id]; !exists {
		m.blobs[id] = size
	}
	return nil
}

// AddDictionary stores or refreshes a dictionary.
func (m *MemoryStore) AddDictionary(d *types.Dictionary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *d
	c.Keywords = slices.Clone(d.Keywords)
	m.dictionaries[d.ID] = &c
	return nil
}

// AddMatch stores a match record. Matches are unique by structural ID.
func (m *MemoryStore) AddMatch(match *types.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.matchIDs[match.StructuralID] {
		return nil
	}
	m.matchIDs[match.StructuralID] = true
	m.matches = append(m.matches, match)
	return nil
}

// AddFinding stores a finding (deduplicated).
func (m *MemoryStore) AddFinding(f *types.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.findings[f.ID]; !exists {
		m.findings[f.ID] = &types.Finding{ID: f.ID, DictionaryID: f.DictionaryID, Keyword: f.Keyword}
	}
	return nil
}

// AddProvenance associates provenance with a blob.
func (m *MemoryStore) AddProvenance(blobID types.BlobID, prov types.Provenance) error {
	if _, _, _, err := encodeProvenance(prov); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.provenance[blobID] {
		if reflect.DeepEqual(p, prov) {
			return nil
		}
	}
	m.provenance[blobID] = append(m.provenance[blobID], prov)
	return nil
}

// GetBlobs retrieves every blob record.
func (m *MemoryStore) GetBlobs() ([]Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blobs := make([]Blob, 0, len(m.blobs))
	for id, size := range m.blobs {
		blobs = append(blobs, Blob{ID: id, Size: size})
	}
	slices.SortFunc(blobs, func(a, b Blob) int { return cmp.Compare(a.ID.Hex(), b.ID.Hex()) })
	return blobs, nil
}

// GetDictionaries retrieves the stored dictionaries.
func (m *MemoryStore) GetDictionaries() ([]*types.Dictionary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dicts := make([]*types.Dictionary, 0, len(m.dictionaries))
	for _, d := range m.dictionaries {
		c := *d
		dicts = append(dicts, &c)
	}
	slices.SortFunc(dicts, func(a, b *types.Dictionary) int { return cmp.Compare(a.ID, b.ID) })
	return dicts, nil
}

// GetMatches retrieves matches for a blob.
func (m *MemoryStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*types.Match{}
	for _, match := range m.matches {
		if match.BlobID == blobID {
			result = append(result, match)
		}
	}
	return result, nil
}

// GetAllMatches retrieves all matches (for JSON export).
func (m *MemoryStore) GetAllMatches() ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to avoid external modifications
	return slices.Clone(m.matches), nil
}

// GetFindings retrieves all findings with their matches attached.
func (m *MemoryStore) GetFindings() ([]*types.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID := make(map[string]*types.Finding, len(m.findings))
	result := make([]*types.Finding, 0, len(m.findings))
	for _, f := range m.findings {
		c := &types.Finding{ID: f.ID, DictionaryID: f.DictionaryID, Keyword: f.Keyword}
		byID[f.ID] = c
		result = append(result, c)
	}
	for _, match := range m.matches {
		if f, ok := byID[match.FindingID]; ok {
			f.Matches = append(f.Matches, match)
		}
	}
	slices.SortFunc(result, func(a, b *types.Finding) int {
		return cmp.Or(cmp.Compare(a.DictionaryID, b.DictionaryID), cmp.Compare(a.Keyword, b.Keyword))
	})
	return result, nil
}

// GetProvenance retrieves every provenance record of a blob.
func (m *MemoryStore) GetProvenance(blobID types.BlobID) ([]types.Provenance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	provs := m.provenance[blobID]
	if len(provs) == 0 {
		return nil, fmt.Errorf("provenance for blob %s: %w", blobID.Hex(), ErrNotFound)
	}
	return slices.Clone(provs), nil
}

// FindingExists checks if a finding with this ID exists.
func (m *MemoryStore) FindingExists(id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.findings[id]
	return exists, nil
}

// BlobExists checks if a blob has already been scanned.
func (m *MemoryStore) BlobExists(id types.BlobID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.blobs[id]
	return exists, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
