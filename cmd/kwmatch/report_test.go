package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/kwmatch/pkg/sarif"
	"github.com/praetorian-inc/kwmatch/pkg/store"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// scannedDatastore scans a small target and returns the datastore path.
func scannedDatastore(t *testing.T) string {
	t.Helper()
	target := writeTarget(t, "config.txt", "user=admin\npassword=a\npassword=b\nsecret=c\n")
	resetScanFlags(t, writeTestDictionary(t))

	cmd, _ := newTestCommand()
	require.NoError(t, runScan(cmd, []string{target}))
	return scanDatastore
}

func resetReportFlags(path, format string) {
	reportDatastore = path
	reportFormat = format
	reportColor = "never"
	reportMaxShown = 3
}

func TestReportCommand_HumanFormat(t *testing.T) {
	resetReportFlags(scannedDatastore(t), "human")

	cmd, buf := newTestCommand()
	require.NoError(t, runReport(cmd, nil))

	out := buf.String()
	assert.Contains(t, out, "=== kwmatch Report ===")
	assert.Contains(t, out, "Total findings: 2")
	assert.Contains(t, out, "kw.test: 3 match(es)")
	assert.Contains(t, out, "Dictionary: Test keywords (kw.test)")
	assert.Contains(t, out, "Keyword: password")
	assert.Contains(t, out, "Match 2/2")
	assert.Contains(t, out, "config.txt")
	assert.Contains(t, out, "Lines: 2:1-2:9")
	assert.NotContains(t, out, "\x1b[", "color disabled")
}

func TestReportCommand_JSONFormat(t *testing.T) {
	resetReportFlags(scannedDatastore(t), "json")

	cmd, buf := newTestCommand()
	require.NoError(t, runReport(cmd, nil))

	var findings []*types.Finding
	require.NoError(t, json.Unmarshal(buf.Bytes(), &findings))
	require.Len(t, findings, 2)

	byKeyword := make(map[string]*types.Finding)
	for _, f := range findings {
		byKeyword[f.Keyword] = f
	}
	require.Contains(t, byKeyword, "password")
	assert.Len(t, byKeyword["password"].Matches, 2)
	assert.Len(t, byKeyword["secret"].Matches, 1)
}

func TestReportCommand_SARIFFormat(t *testing.T) {
	resetReportFlags(scannedDatastore(t), "sarif")

	cmd, buf := newTestCommand()
	require.NoError(t, runReport(cmd, nil))

	var report sarif.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	require.Len(t, report.Runs, 1)
	assert.Len(t, report.Runs[0].Results, 3)
	require.Len(t, report.Runs[0].Tool.Driver.Rules, 1)
	assert.Equal(t, "kw.test", report.Runs[0].Tool.Driver.Rules[0].ID)
}

func TestReportCommand_EmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	s, err := store.New(store.Config{Path: dbPath})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	resetReportFlags(dbPath, "json")
	cmd, buf := newTestCommand()
	require.NoError(t, runReport(cmd, nil))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestReportCommand_NonexistentDatastore(t *testing.T) {
	resetReportFlags("/nonexistent/kwmatch.ds", "human")

	cmd, _ := newTestCommand()
	err := runReport(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "datastore not found")
}

func TestReportCommand_MaxMatches(t *testing.T) {
	resetReportFlags(scannedDatastore(t), "human")
	reportMaxShown = 1

	cmd, buf := newTestCommand()
	require.NoError(t, runReport(cmd, nil))
	assert.Contains(t, buf.String(), "Showing 1/2 matches:")
}

func TestFormatSnippetWithParts(t *testing.T) {
	t.Run("fits", func(t *testing.T) {
		p := formatSnippetWithParts([]byte("a "), []byte("key"), []byte(" b"), 100)
		assert.Equal(t, snippetParts{before: "a ", matching: "key", after: " b"}, p)
	})

	t.Run("truncated around match", func(t *testing.T) {
		before := []byte(strings.Repeat("x", 50))
		after := []byte(strings.Repeat("y", 50))
		p := formatSnippetWithParts(before, []byte("key"), after, 21)
		assert.Equal(t, "...", p.prefix)
		assert.Equal(t, "...", p.suffix)
		assert.Equal(t, "key", p.matching)
		assert.Equal(t, "xxxxxx", p.before)
		assert.Equal(t, "yyyyyy", p.after)
	})

	t.Run("match longer than limit", func(t *testing.T) {
		p := formatSnippetWithParts(nil, []byte(strings.Repeat("k", 40)), nil, 20)
		assert.Equal(t, strings.Repeat("k", 14), p.matching)
		assert.Equal(t, "...", p.prefix)
	})
}

func TestColorEnabled(t *testing.T) {
	assert.True(t, colorEnabled("always", nil))
	assert.False(t, colorEnabled("never", nil))
	var sb strings.Builder
	assert.False(t, colorEnabled("auto", &sb), "non-terminal writers get no color")
}
