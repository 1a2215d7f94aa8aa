package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testDictionaryYAML = `dictionaries:
  - id: kw.test
    name: Test keywords
    replacement: "[REDACTED]"
    keywords:
      - password
      - secret
`

// newTestCommand returns a bare command whose stdout is captured.
func newTestCommand() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, &buf
}

// writeTestDictionary writes testDictionaryYAML into its own directory so
// scans of other temp directories do not pick it up.
func writeTestDictionary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yml")
	require.NoError(t, os.WriteFile(path, []byte(testDictionaryYAML), 0644))
	return path
}

// writeTarget creates a directory holding one file with content.
func writeTarget(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	return dir
}
