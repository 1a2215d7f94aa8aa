package dictionary

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReportsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\nbeta\n"), 0o644))

	w, err := NewWatcher(nil, nil)
	require.NoError(t, err)
	defer w.Stop()
	w.SetDebounce(10 * time.Millisecond)

	got := make(chan []Change, 4)
	initial, err := w.Watch(context.Background(), []string{dir}, func(c []Change) { got <- c })
	require.NoError(t, err)
	require.Len(t, initial, 1)
	assert.Equal(t, []string{"alpha", "beta"}, initial[0].Keywords)

	require.NoError(t, os.WriteFile(path, []byte("beta\ngamma\n"), 0o644))

	select {
	case changes := <-got:
		require.Len(t, changes, 1)
		assert.Equal(t, "kw.words", changes[0].DictionaryID)
		assert.Equal(t, []string{"gamma"}, changes[0].Added)
		assert.Equal(t, []string{"alpha"}, changes[0].Removed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcher_SingleFileIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\n"), 0o644))

	w, err := NewWatcher(nil, nil)
	require.NoError(t, err)
	defer w.Stop()
	w.SetDebounce(10 * time.Millisecond)

	got := make(chan []Change, 4)
	_, err = w.Watch(context.Background(), []string{path}, func(c []Change) { got <- c })
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("zzz\n"), 0o644))
	select {
	case c := <-got:
		t.Fatalf("unexpected change %v", c)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_MissingPath(t *testing.T) {
	w, err := NewWatcher(nil, nil)
	require.NoError(t, err)
	defer w.Stop()

	_, err = w.Watch(context.Background(), []string{filepath.Join(t.TempDir(), "nope")}, func([]Change) {})
	assert.Error(t, err)
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w, err := NewWatcher(nil, nil)
	require.NoError(t, err)
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
