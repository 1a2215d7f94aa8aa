package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

func TestDictionariesList_Builtin(t *testing.T) {
	dictionariesPaths = nil
	dictionariesFormat = "table"

	cmd, buf := newTestCommand()
	require.NoError(t, runDictionariesList(cmd, nil))
	assert.Contains(t, buf.String(), "kw.credentials")
}

func TestDictionariesList_JSON(t *testing.T) {
	dictionariesPaths = []string{writeTestDictionary(t)}
	dictionariesFormat = "json"

	cmd, buf := newTestCommand()
	require.NoError(t, runDictionariesList(cmd, nil))

	var dicts []*types.Dictionary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &dicts))
	require.Len(t, dicts, 1)
	assert.Equal(t, "kw.test", dicts[0].ID)
	assert.Equal(t, []string{"password", "secret"}, dicts[0].Keywords)
}

func TestLoadDictionaries_FilterAndKeywords(t *testing.T) {
	dicts, err := loadDictionaries(nil, "credentials", "", []string{"extra"})
	require.NoError(t, err)
	require.Len(t, dicts, 2)
	assert.Equal(t, "kw.credentials", dicts[0].ID)
	assert.Equal(t, cliDictionary, dicts[1].ID)
	assert.Equal(t, []string{"extra"}, dicts[1].Keywords)
}

func TestLoadDictionaries_KeywordsOnly(t *testing.T) {
	dicts, err := loadDictionaries(nil, "", "", []string{"one"})
	require.NoError(t, err)
	require.Len(t, dicts, 1, "builtin dictionaries are skipped when keywords are given")
	assert.Equal(t, cliDictionary, dicts[0].ID)
}

func TestLoadDictionaries_ExcludeKeepsBuiltin(t *testing.T) {
	dicts, err := loadDictionaries(nil, "", "placeholders", []string{"extra"})
	require.NoError(t, err)

	var ids []string
	for _, d := range dicts {
		ids = append(ids, d.ID)
	}
	assert.Contains(t, ids, "kw.credentials")
	assert.NotContains(t, ids, "kw.placeholders")
	assert.Equal(t, cliDictionary, ids[len(ids)-1])
}

func TestLoadDictionaries_DuplicateKeyword(t *testing.T) {
	_, err := loadDictionaries(nil, "", "", []string{"dup", "dup"})
	assert.Error(t, err)
}
