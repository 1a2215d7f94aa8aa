package scanner

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/kwmatch/pkg/dictionary"
	"github.com/praetorian-inc/kwmatch/pkg/matcher"
	"github.com/praetorian-inc/kwmatch/pkg/store"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

func testDictionaries() []*types.Dictionary {
	return []*types.Dictionary{
		{ID: "kw.secrets", Name: "Secrets", Keywords: []string{"secret", "password"}},
		{ID: "kw.names", Name: "Names", Keywords: []string{"he", "she", "his", "hers"}},
	}
}

func newCore(t *testing.T, cfg Config) *Core {
	t.Helper()
	if cfg.Dictionaries == nil {
		cfg.Dictionaries = testDictionaries()
	}
	c, err := NewCore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func hitWords(hits []types.Hit) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Keyword)
	}
	return out
}

func TestCore_Scan(t *testing.T) {
	c := newCore(t, Config{})

	res, err := c.Scan("a secret password", "ticket:1")
	require.NoError(t, err)
	assert.Equal(t, "ticket:1", res.Source)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "kw.secrets", res.Matches[0].DictionaryID)
	assert.Equal(t, types.ComputeBlobID([]byte("a secret password")), res.BlobID)

	provs, err := c.Store().GetProvenance(res.BlobID)
	require.NoError(t, err)
	require.Len(t, provs, 1)
	assert.Equal(t, types.StreamProvenance{Name: "ticket:1"}, provs[0])
}

func TestCore_Scan_NoMatches(t *testing.T) {
	c := newCore(t, Config{})

	res, err := c.Scan("nothing to see", "")
	require.NoError(t, err)
	assert.NotNil(t, res.Matches)
	assert.Empty(t, res.Matches)
}

func TestCore_ScanBatch(t *testing.T) {
	c := newCore(t, Config{})

	res, err := c.ScanBatch([]ContentItem{
		{Source: "a", Content: "ushers"},
		{Source: "b", Content: "clean"},
		{Source: "c", Content: "secret"},
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 3)
	assert.Len(t, res.Results[0].Matches, 3) // she, he, hers
	assert.Empty(t, res.Results[1].Matches)
	assert.Equal(t, 4, res.Total)
}

func TestCore_HitsAndHasMatch(t *testing.T) {
	c := newCore(t, Config{})

	assert.True(t, c.HasMatch("ushers"))
	assert.False(t, c.HasMatch("xyz"))
	assert.Equal(t, []string{"she", "he", "hers"}, hitWords(c.Hits("ushers", matcher.ModeAll)))
	assert.Equal(t, []string{"she"}, hitWords(c.Hits("ushers", matcher.ModeGreedy)))
}

func TestCore_ReplaceFunc(t *testing.T) {
	c := newCore(t, Config{
		Dictionaries: []*types.Dictionary{{ID: "kw.r", Keywords: []string{"secret"}, Replacement: "[R]"}},
	})
	with := "X"

	fn, err := c.ReplaceFunc(&with, "#")
	require.NoError(t, err)
	assert.Equal(t, "a X b", c.Replace("a secret b", fn))

	fn, err = c.ReplaceFunc(nil, "#")
	require.NoError(t, err)
	assert.Equal(t, "a ###### b", c.Replace("a secret b", fn))

	fn, err = c.ReplaceFunc(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "a [R] b", c.Replace("a secret b", fn))

	_, err = c.ReplaceFunc(nil, "ab")
	assert.Error(t, err)
}

func TestCore_AddDeleteKeywords(t *testing.T) {
	c := newCore(t, Config{})

	n, err := c.AddKeywords("kw.extra", []string{"token", "token", "secret"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, c.HasMatch("my token"))

	dicts, err := c.Store().GetDictionaries()
	require.NoError(t, err)
	ids := make([]string, 0, len(dicts))
	for _, d := range dicts {
		ids = append(ids, d.ID)
	}
	assert.Contains(t, ids, "kw.extra")

	// secret is still listed by kw.secrets
	n, err = c.DeleteKeywords("kw.extra", []string{"secret"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, c.HasMatch("secret"))

	n, err = c.DeleteKeywords("", []string{"secret", "absent"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, c.HasMatch("secret"))

	_, err = c.AddKeywords("kw.extra", []string{""})
	assert.ErrorIs(t, err, dictionary.ErrEmptyKeyword)
}

func TestCore_DeleteKeywords_UpdatesStoredDictionaries(t *testing.T) {
	c := newCore(t, Config{})
	_, err := c.AddKeywords("kw.extra", []string{"token", "password"})
	require.NoError(t, err)

	stored := func() map[string][]string {
		dicts, err := c.Store().GetDictionaries()
		require.NoError(t, err)
		out := make(map[string][]string, len(dicts))
		for _, d := range dicts {
			out[d.ID] = d.Keywords
		}
		return out
	}

	_, err = c.DeleteKeywords("kw.extra", []string{"token"})
	require.NoError(t, err)
	assert.Equal(t, []string{"password"}, stored()["kw.extra"])

	// without a dictionary every owner is updated
	_, err = c.DeleteKeywords("", []string{"password"})
	require.NoError(t, err)
	after := stored()
	assert.Equal(t, []string{"secret"}, after["kw.secrets"])
	assert.Empty(t, after["kw.extra"])
}

func TestCore_KeywordStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.db")

	ks, err := store.OpenKeywordStore(path)
	require.NoError(t, err)
	c, err := NewCore(Config{Dictionaries: testDictionaries(), Keywords: ks})
	require.NoError(t, err)

	_, err = c.AddKeywords("kw.secrets", []string{"apikey"})
	require.NoError(t, err)
	_, err = c.AddKeywords("kw.new", []string{"zebra"})
	require.NoError(t, err)
	_, err = c.DeleteKeywords("", []string{"password"})
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, ks.Close())

	ks, err = store.OpenKeywordStore(path)
	require.NoError(t, err)
	defer ks.Close()

	// stored dictionaries take precedence over the configured ones
	c = newCore(t, Config{Dictionaries: testDictionaries(), Keywords: ks})
	assert.True(t, c.HasMatch("apikey"))
	assert.True(t, c.HasMatch("zebra"))
	assert.False(t, c.HasMatch("password"))
	assert.True(t, c.HasMatch("secret"))
}

func TestCore_ApplyChanges(t *testing.T) {
	c := newCore(t, Config{})

	next := []*types.Dictionary{
		{ID: "kw.secrets", Keywords: []string{"secret", "credential"}},
	}
	changes := dictionary.DiffSets(c.Dictionaries(), next)
	require.NoError(t, c.ApplyChanges(changes))

	assert.True(t, c.HasMatch("credential"))
	assert.False(t, c.HasMatch("password"))
	// kw.names disappeared from the set
	assert.False(t, c.HasMatch("hers"))
	assert.Equal(t, []string{"credential", "secret"}, c.Keywords())
}

func TestCore_ApplyChanges_MetadataOnly(t *testing.T) {
	c := newCore(t, Config{})

	next := testDictionaries()
	next[0].Replacement = "[SECRET]"
	changes := dictionary.DiffSets(c.Dictionaries(), next)
	require.Len(t, changes, 1)
	require.NoError(t, c.ApplyChanges(changes))

	for _, d := range c.Dictionaries() {
		if d.ID == "kw.secrets" {
			assert.Equal(t, "[SECRET]", d.Replacement)
		}
	}
	fn, err := c.ReplaceFunc(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "a [SECRET]", c.Replace("a secret", fn))
}

func TestCore_ScanStream(t *testing.T) {
	c := newCore(t, Config{})

	id, err := c.OpenStream(StreamOptions{Mode: matcher.ModeAll})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Sessions())

	out, err := c.PushStream(id, "sec")
	require.NoError(t, err)
	assert.Empty(t, out.Hits)
	assert.Equal(t, 3, out.Offset)

	out, err = c.PushStream(id, "ret")
	require.NoError(t, err)
	require.Len(t, out.Hits, 1)
	assert.Equal(t, types.Hit{Begin: 0, End: 6, Keyword: "secret"}, out.Hits[0])

	_, err = c.CloseStream(id)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Sessions())

	_, err = c.PushStream(id, "x")
	assert.ErrorIs(t, err, ErrUnknownSession)
	_, err = c.CloseStream(id)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestCore_ReplaceStream(t *testing.T) {
	c := newCore(t, Config{})
	with := "***"

	id, err := c.OpenStream(StreamOptions{Replace: true, With: &with})
	require.NoError(t, err)

	var got string
	for _, chunk := range []string{"my sec", "ret is", " safe"} {
		out, err := c.PushStream(id, chunk)
		require.NoError(t, err)
		for _, s := range out.Output {
			got += s
		}
	}
	out, err := c.CloseStream(id)
	require.NoError(t, err)
	for _, s := range out.Output {
		got += s
	}
	assert.Equal(t, "my *** is safe", got)
}

func TestCore_StaleStream(t *testing.T) {
	c := newCore(t, Config{})

	id, err := c.OpenStream(StreamOptions{})
	require.NoError(t, err)
	_, err = c.AddKeywords("kw.extra", []string{"token"})
	require.NoError(t, err)

	_, err = c.PushStream(id, "token")
	assert.ErrorIs(t, err, matcher.ErrStaleSession)
}

func TestCore_ConcurrentScans(t *testing.T) {
	c := newCore(t, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				res, err := c.Scan("secret ushers", "concurrent")
				assert.NoError(t, err)
				assert.Len(t, res.Matches, 4)
			}
		}()
	}
	wg.Wait()
}

func TestBuiltinDictionaries(t *testing.T) {
	first, err := BuiltinDictionaries()
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := BuiltinDictionaries()
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
}
