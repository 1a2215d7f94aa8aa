package explore

import (
	"path/filepath"
	"testing"

	"github.com/praetorian-inc/kwmatch/pkg/datastore"
	"github.com/praetorian-inc/kwmatch/pkg/scanner"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

func TestBuildFindingRow(t *testing.T) {
	dict := &types.Dictionary{
		ID:         "kw.credentials",
		Name:       "Credential field names",
		Categories: []string{"secret", "config"},
		Keywords:   []string{"password"},
	}
	dict.StructuralID = dict.ComputeStructuralID()
	dictMap := map[string]*types.Dictionary{dict.ID: dict}

	finding := &types.Finding{
		ID:           types.ComputeFindingID(dict.StructuralID, "password"),
		DictionaryID: dict.ID,
		Keyword:      "password",
	}

	blobA := types.ComputeBlobID([]byte("a"))
	blobB := types.ComputeBlobID([]byte("b"))
	matches := []*types.Match{
		{StructuralID: "m1", BlobID: blobA, Snippet: types.Snippet{Matching: []byte("password")}},
		{StructuralID: "m2", BlobID: blobA, Snippet: types.Snippet{Matching: []byte("password")}},
		{StructuralID: "m3", BlobID: blobB, Snippet: types.Snippet{Matching: []byte("password")}},
	}
	provs := func(id types.BlobID) []types.Provenance {
		if id == blobA {
			return []types.Provenance{types.FileProvenance{FilePath: "a.txt"}}
		}
		return []types.Provenance{types.GitProvenance{RepoPath: "repo", BlobPath: "b.txt"}}
	}

	row := buildFindingRow(finding, matches, dictMap, provs)

	if row.DictionaryName != "Credential field names" {
		t.Errorf("expected dictionary name, got %q", row.DictionaryName)
	}
	if row.MatchCount != 3 {
		t.Errorf("expected 3 matches, got %d", row.MatchCount)
	}
	if row.BlobCount != 2 {
		t.Errorf("expected 2 blobs, got %d", row.BlobCount)
	}
	if len(row.SourceKinds) != 2 || row.SourceKinds[0] != "file" || row.SourceKinds[1] != "git" {
		t.Errorf("expected source kinds [file git], got %v", row.SourceKinds)
	}
	if len(row.Categories) != 2 {
		t.Errorf("expected 2 categories, got %d", len(row.Categories))
	}
	if len(row.Matches) != 3 || len(row.Matches[0].Provenance) != 1 {
		t.Errorf("expected match rows with provenance, got %+v", row.Matches)
	}
}

func TestBuildFindingRow_UnknownDictionary(t *testing.T) {
	row := buildFindingRow(&types.Finding{ID: "f", DictionaryID: "kw.gone", Keyword: "x"}, nil, nil, nil)

	if row.DictionaryName != "kw.gone" {
		t.Errorf("expected ID fallback, got %q", row.DictionaryName)
	}
	if row.MatchCount != 0 || row.BlobCount != 0 {
		t.Errorf("expected empty counts, got %d/%d", row.MatchCount, row.BlobCount)
	}
}

func TestBuildMatchRow(t *testing.T) {
	match := &types.Match{
		StructuralID: "match-1",
		Location: types.Location{
			Offset: types.OffsetSpan{Start: 12, End: 20},
			Source: types.SourceSpan{
				Start: types.SourcePoint{Line: 2, Column: 1},
				End:   types.SourcePoint{Line: 2, Column: 9},
			},
		},
		Snippet: types.Snippet{Before: []byte("user=admin\n"), Matching: []byte("password")},
	}

	mr := buildMatchRow(match, nil)

	if mr.StructuralID != "match-1" {
		t.Errorf("expected structural ID match-1, got %s", mr.StructuralID)
	}
	if mr.Location.Source.Start.Line != 2 {
		t.Errorf("expected line 2, got %d", mr.Location.Source.Start.Line)
	}
	if mr.Provenance != nil {
		t.Errorf("expected no provenance without a lookup")
	}
}

// writeDatastore scans content into a datastore that keeps blobs.
func writeDatastore(t *testing.T, content string) (string, types.BlobID) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "kwmatch.ds")
	ds, err := datastore.Open(dir, datastore.Options{StoreBlobs: true})
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()

	dict := &types.Dictionary{ID: "kw.test", Name: "Test", Categories: []string{"secret"}, Keywords: []string{"password", "token"}}
	core, err := scanner.NewCore(scanner.Config{Dictionaries: []*types.Dictionary{dict}, ContextLines: 1, Store: ds.Store})
	if err != nil {
		t.Fatal(err)
	}
	defer core.Close()

	id, err := ds.BlobStore.Store([]byte(content))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := core.ScanBlob([]byte(content), id, types.FileProvenance{FilePath: "config.env"}); err != nil {
		t.Fatal(err)
	}
	return dir, id
}

func TestLoadData(t *testing.T) {
	dir, id := writeDatastore(t, "password=1\ntoken=2\npassword=3\n")

	data, err := loadData(dir)
	if err != nil {
		t.Fatalf("loadData: %v", err)
	}
	defer data.close()

	if len(data.findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(data.findings))
	}
	counts := map[string]int{}
	for _, f := range data.findings {
		counts[f.Keyword] = f.MatchCount
		if f.DictionaryName != "Test" {
			t.Errorf("expected dictionary name Test, got %q", f.DictionaryName)
		}
		if len(f.SourceKinds) != 1 || f.SourceKinds[0] != "file" {
			t.Errorf("expected file provenance, got %v", f.SourceKinds)
		}
	}
	if counts["password"] != 2 || counts["token"] != 1 {
		t.Errorf("unexpected match counts %v", counts)
	}

	if got := string(data.content(id)); got != "password=1\ntoken=2\npassword=3\n" {
		t.Errorf("expected stored blob content, got %q", got)
	}
}

func TestLoadData_Missing(t *testing.T) {
	if _, err := loadData(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for a missing datastore")
	}
}
