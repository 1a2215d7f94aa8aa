package enum

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// collector gathers blobs from concurrent callbacks.
type collector struct {
	mu    sync.Mutex
	blobs []Blob
}

func (c *collector) add(b Blob) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs = append(c.blobs, b)
	return nil
}

// paths returns the sorted provenance paths.
func (c *collector) paths() []string {
	var out []string
	for _, b := range c.blobs {
		out = append(out, b.Provenance.Path())
	}
	sort.Strings(out)
	return out
}

func (c *collector) contents() map[string]string {
	out := make(map[string]string)
	for _, b := range c.blobs {
		out[b.Provenance.Path()] = string(b.Content)
	}
	return out
}

func enumerate(t *testing.T, e Enumerator) *collector {
	t.Helper()
	c := &collector{}
	require.NoError(t, e.Enumerate(context.Background(), c.add))
	return c
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// testRepo is a git repository built with go-git.
type testRepo struct {
	t    *testing.T
	dir  string
	repo *git.Repository
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return &testRepo{t: t, dir: dir, repo: repo}
}

// commit writes files (path -> content) and commits them.
func (r *testRepo) commit(msg string, files map[string]string) {
	r.t.Helper()
	wt, err := r.repo.Worktree()
	require.NoError(r.t, err)
	for path, content := range files {
		writeFile(r.t, filepath.Join(r.dir, path), content)
		_, err := wt.Add(path)
		require.NoError(r.t, err)
	}
	_, err = wt.Commit(msg, &git.CommitOptions{Author: &object.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}})
	require.NoError(r.t, err)
}
