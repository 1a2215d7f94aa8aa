package enum

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// FilesystemEnumerator enumerates files from a filesystem directory or a
// single file.
type FilesystemEnumerator struct {
	config Config
}

// NewFilesystemEnumerator creates a new filesystem enumerator.
func NewFilesystemEnumerator(config Config) *FilesystemEnumerator {
	return &FilesystemEnumerator{config: config}
}

// Enumerate walks the filesystem and yields file blobs.
// Phase 1: Walk directory tree and collect eligible file paths (fast, sequential).
// Phase 2: Read files and invoke fn in parallel.
func (e *FilesystemEnumerator) Enumerate(ctx context.Context, fn Callback) error {
	info, err := os.Stat(e.config.Root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return e.processFile(ctx, e.config.Root, fn)
	}

	files, err := e.walk(ctx)
	if err != nil {
		return err
	}

	numReaders := max(runtime.NumCPU(), 1)

	origCtx := ctx
	g, ctx := errgroup.WithContext(ctx)
	pathsCh := make(chan string, numReaders*2)

	g.Go(func() error {
		defer close(pathsCh)
		for _, f := range files {
			select {
			case pathsCh <- f:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for range numReaders {
		g.Go(func() error {
			for path := range pathsCh {
				if err := e.processFile(ctx, path, fn); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// The readers may all finish before noticing a cancellation.
	return origCtx.Err()
}

// walk collects the eligible file paths under the root.
func (e *FilesystemEnumerator) walk(ctx context.Context) ([]string, error) {
	var ignore *gitignore.GitIgnore
	gitignorePath := filepath.Join(e.config.Root, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		ignore, _ = gitignore.CompileIgnoreFile(gitignorePath)
	}

	var files []string
	err := filepath.WalkDir(e.config.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := canceled(ctx); err != nil {
			return err
		}

		if d.IsDir() && d.Name() == ".git" && path != e.config.Root {
			return filepath.SkipDir
		}
		if path != e.config.Root && !e.config.IncludeHidden && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if ignore != nil && path != e.config.Root {
			relPath, err := filepath.Rel(e.config.Root, path)
			if err != nil {
				return err
			}
			if ignore.MatchesPath(relPath) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if d.IsDir() {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !e.config.FollowSymlinks {
				return nil
			}
			// Only regular file targets; directory links are not walked.
			target, err := os.Stat(path)
			if err != nil || !target.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		if e.config.MaxFileSize > 0 {
			info, err := os.Stat(path)
			if err != nil || info.Size() > e.config.MaxFileSize {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	return files, err
}

// processFile reads a single file and invokes fn for its content.
func (e *FilesystemEnumerator) processFile(ctx context.Context, path string, fn Callback) error {
	if err := canceled(ctx); err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}

	return emit(e.config, path, content, types.FileProvenance{FilePath: path}, fn)
}

// shouldExtract checks if a file type should be extracted based on config.
func shouldExtract(config Config, ext string) bool {
	if config.ExtractArchives == "" || !extractable[ext] {
		return false
	}
	if config.ExtractArchives == "all" {
		return true
	}
	for _, t := range strings.Split(strings.ToLower(config.ExtractArchives), ",") {
		if strings.TrimSpace(t) == strings.TrimPrefix(ext, ".") {
			return true
		}
	}
	return false
}

// isHidden checks if a filename is hidden (starts with .).
// The special entries "." and ".." are NOT considered hidden.
func isHidden(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}
