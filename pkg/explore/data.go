package explore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/praetorian-inc/kwmatch/pkg/datastore"
	"github.com/praetorian-inc/kwmatch/pkg/store"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// exploreData holds all loaded data for the TUI.
type exploreData struct {
	store    store.Store
	blobs    *datastore.BlobStore // nil unless the scan kept content
	findings []*findingRow
}

// loadData opens a datastore and loads all findings, matches and provenance.
// storePath is a datastore directory or a direct .db file path.
func loadData(storePath string) (*exploreData, error) {
	info, err := os.Stat(storePath)
	if err != nil {
		return nil, fmt.Errorf("datastore not found: %s", storePath)
	}

	var blobs *datastore.BlobStore
	dbPath := storePath
	if info.IsDir() {
		dbPath = filepath.Join(storePath, "datastore.db")
		blobDir := filepath.Join(storePath, "blobs")
		if _, err := os.Stat(blobDir); err == nil {
			if blobs, err = datastore.NewBlobStore(blobDir); err != nil {
				return nil, err
			}
		}
	}

	s, err := store.New(store.Config{Path: dbPath})
	if err != nil {
		if blobs != nil {
			blobs.Close()
		}
		return nil, fmt.Errorf("opening datastore: %w", err)
	}

	data := &exploreData{store: s, blobs: blobs}
	if err := data.load(); err != nil {
		data.close()
		return nil, err
	}
	return data, nil
}

func (d *exploreData) load() error {
	dicts, err := d.store.GetDictionaries()
	if err != nil {
		return fmt.Errorf("retrieving dictionaries: %w", err)
	}
	dictMap := make(map[string]*types.Dictionary, len(dicts))
	for _, dict := range dicts {
		dictMap[dict.ID] = dict
	}

	findings, err := d.store.GetFindings()
	if err != nil {
		return fmt.Errorf("retrieving findings: %w", err)
	}
	matches, err := d.store.GetAllMatches()
	if err != nil {
		return fmt.Errorf("retrieving matches: %w", err)
	}

	matchesByFinding := make(map[string][]*types.Match)
	for _, m := range matches {
		matchesByFinding[m.FindingID] = append(matchesByFinding[m.FindingID], m)
	}

	provCache := make(map[types.BlobID][]types.Provenance)
	d.findings = make([]*findingRow, 0, len(findings))
	for _, f := range findings {
		d.findings = append(d.findings, buildFindingRow(f, matchesByFinding[f.ID], dictMap, d.provenance(provCache)))
	}
	return nil
}

// provenance returns a lookup that reads each blob's provenance once.
func (d *exploreData) provenance(cache map[types.BlobID][]types.Provenance) func(types.BlobID) []types.Provenance {
	return func(id types.BlobID) []types.Provenance {
		if provs, ok := cache[id]; ok {
			return provs
		}
		provs, _ := d.store.GetProvenance(id)
		cache[id] = provs
		return provs
	}
}

// buildFindingRow creates a findingRow from a Finding and its matches.
// provs may be nil.
func buildFindingRow(f *types.Finding, matches []*types.Match, dictMap map[string]*types.Dictionary, provs func(types.BlobID) []types.Provenance) *findingRow {
	row := &findingRow{
		FindingID:      f.ID,
		DictionaryID:   f.DictionaryID,
		DictionaryName: f.DictionaryID, // fallback
		Keyword:        f.Keyword,
		MatchCount:     len(matches),
	}

	if d, ok := dictMap[f.DictionaryID]; ok {
		if d.Name != "" {
			row.DictionaryName = d.Name
		}
		row.Categories = d.Categories
	}

	blobs := make(map[types.BlobID]bool)
	kinds := make(map[string]bool)
	row.Matches = make([]*matchRow, 0, len(matches))
	for _, m := range matches {
		mr := buildMatchRow(m, provs)
		row.Matches = append(row.Matches, mr)
		blobs[m.BlobID] = true
		for _, p := range mr.Provenance {
			if !kinds[p.Kind()] {
				kinds[p.Kind()] = true
				row.SourceKinds = append(row.SourceKinds, p.Kind())
			}
		}
	}
	row.BlobCount = len(blobs)

	return row
}

// buildMatchRow creates a matchRow from a Match.
func buildMatchRow(m *types.Match, provs func(types.BlobID) []types.Provenance) *matchRow {
	mr := &matchRow{
		StructuralID: m.StructuralID,
		BlobID:       m.BlobID,
		Location:     m.Location,
		Snippet:      m.Snippet,
	}
	if provs != nil {
		mr.Provenance = provs(m.BlobID)
	}
	return mr
}

// content returns the stored blob content, or nil when the scan did not keep it.
func (d *exploreData) content(id types.BlobID) []byte {
	if d.blobs == nil {
		return nil
	}
	data, err := d.blobs.Get(id)
	if err != nil {
		return nil
	}
	return data
}

// close closes the underlying stores.
func (d *exploreData) close() error {
	if d.blobs != nil {
		d.blobs.Close()
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
