package enum

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/praetorian-inc/kwmatch/pkg/logging"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// RepoInfo holds basic repository information for clone-based scanning.
type RepoInfo struct {
	Name          string // Full name (e.g., "kubernetes/kubernetes")
	CloneURL      string // HTTPS clone URL or local path
	DefaultBranch string
}

// CloneEnumerator clones repositories and scans them.
// By default it clones the default branch and scans the working tree.
// Set History to walk every commit instead.
type CloneEnumerator struct {
	repos   []RepoInfo
	config  Config
	History bool   // walk all history instead of the checked-out tree
	Depth   int    // clone depth (0 = full)
	Token   string // HTTP basic auth password for private repositories
	Logger  *logging.Logger
}

// NewCloneEnumerator creates a new clone-based enumerator.
func NewCloneEnumerator(repos []RepoInfo, config Config) *CloneEnumerator {
	return &CloneEnumerator{repos: repos, config: config, Logger: logging.Noop()}
}

// Enumerate clones each repository, scans it, and cleans up. A repository
// that fails to clone is logged and skipped.
func (e *CloneEnumerator) Enumerate(ctx context.Context, fn Callback) error {
	for _, repo := range e.repos {
		if err := canceled(ctx); err != nil {
			return err
		}
		if err := e.cloneAndScan(ctx, repo, fn); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.Logger.WarnContext(ctx, "skipping repository", "repo", repo.Name, "error", err)
		}
	}
	return nil
}

func (e *CloneEnumerator) cloneAndScan(ctx context.Context, repo RepoInfo, fn Callback) error {
	tmpDir, err := os.MkdirTemp("", "kwmatch-clone-*")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	clonePath := filepath.Join(tmpDir, "repo")
	opts := &git.CloneOptions{URL: repo.CloneURL, Depth: e.Depth}
	if e.Token != "" {
		opts.Auth = &githttp.BasicAuth{Username: "oauth2", Password: e.Token}
	}

	e.Logger.InfoContext(ctx, "cloning", "repo", repo.Name)
	if _, err := git.PlainCloneContext(ctx, clonePath, false, opts); err != nil {
		return fmt.Errorf("cloning %s: %w", repo.Name, err)
	}

	cloneConfig := e.config
	cloneConfig.Root = clonePath

	if e.History {
		g := NewGitEnumerator(cloneConfig)
		g.WalkAll = true
		return g.Enumerate(ctx, func(b Blob) error {
			if gp, ok := b.Provenance.(types.GitProvenance); ok {
				gp.RepoPath = repo.Name
				b.Provenance = gp
			}
			return fn(b)
		})
	}

	return NewFilesystemEnumerator(cloneConfig).Enumerate(ctx, func(b Blob) error {
		if fp, ok := b.Provenance.(types.FileProvenance); ok {
			relPath, err := filepath.Rel(clonePath, fp.FilePath)
			if err != nil {
				relPath = fp.FilePath
			}
			b.Provenance = types.GitProvenance{RepoPath: repo.Name, BlobPath: relPath}
		}
		return fn(b)
	})
}
