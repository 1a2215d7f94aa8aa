package enum

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// GitEnumerator enumerates blobs from a git repository.
type GitEnumerator struct {
	config Config
	// CommitRef optionally specifies a specific commit to enumerate (defaults to HEAD)
	CommitRef string
	// WalkAll visits every commit reachable from any ref instead of one tree.
	WalkAll bool
	// Native reads the WalkAll history through the git binary when it is
	// installed. Faster on large histories; blobs are not attributed to a commit.
	Native bool
}

// NewGitEnumerator creates a new git enumerator.
func NewGitEnumerator(config Config) *GitEnumerator {
	return &GitEnumerator{
		config:    config,
		CommitRef: "HEAD",
	}
}

// Enumerate yields each unique blob once, attributed to the first commit
// it is seen in.
func (e *GitEnumerator) Enumerate(ctx context.Context, fn Callback) error {
	repo, err := git.PlainOpen(e.config.Root)
	if err != nil {
		return fmt.Errorf("failed to open git repository: %w", err)
	}
	if e.WalkAll && e.Native && gitBinaryAvailable() {
		return e.enumerateHistoryNative(ctx, fn)
	}

	seen := make(map[plumbing.Hash]bool)

	if !e.WalkAll {
		ref, err := repo.ResolveRevision(plumbing.Revision(e.CommitRef))
		if err != nil {
			return fmt.Errorf("failed to resolve ref %s: %w", e.CommitRef, err)
		}
		commit, err := repo.CommitObject(*ref)
		if err != nil {
			return fmt.Errorf("failed to get commit: %w", err)
		}
		return e.enumerateCommit(ctx, commit, seen, fn)
	}

	iter, err := repo.Log(&git.LogOptions{All: true, Order: git.LogOrderCommitterTime})
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil // empty repository
		}
		return fmt.Errorf("failed to walk history: %w", err)
	}
	defer iter.Close()

	return iter.ForEach(func(c *object.Commit) error {
		return e.enumerateCommit(ctx, c, seen, fn)
	})
}

func (e *GitEnumerator) enumerateCommit(ctx context.Context, commit *object.Commit, seen map[plumbing.Hash]bool, fn Callback) error {
	tree, err := commit.Tree()
	if err != nil {
		return fmt.Errorf("failed to get tree: %w", err)
	}

	meta := &types.CommitMetadata{
		CommitID:        commit.Hash.String(),
		AuthorName:      commit.Author.Name,
		AuthorEmail:     commit.Author.Email,
		AuthorTimestamp: commit.Author.When,
		Message:         commit.Message,
	}

	err = tree.Files().ForEach(func(f *object.File) error {
		if err := canceled(ctx); err != nil {
			return err
		}
		if seen[f.Hash] {
			return nil
		}
		seen[f.Hash] = true

		if e.config.MaxFileSize > 0 && f.Size > e.config.MaxFileSize {
			return nil
		}

		content, err := f.Contents()
		if err != nil {
			return fmt.Errorf("failed to get contents of %s: %w", f.Name, err)
		}
		if isBinary([]byte(content)) {
			return nil
		}

		return fn(NewBlob([]byte(content), types.GitProvenance{
			RepoPath: e.config.Root,
			Commit:   meta,
			BlobPath: f.Name,
		}))
	})
	if err != nil {
		return fmt.Errorf("failed to walk tree: %w", err)
	}
	return nil
}
