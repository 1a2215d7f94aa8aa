package enum

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// historyEntry is a unique blob from the history and the first path it was seen at.
type historyEntry struct {
	id   types.BlobID
	path string
}

// gitBinaryAvailable returns true if the git binary is on PATH.
func gitBinaryAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// enumerateHistoryNative lists every blob with `git rev-list --all --objects`
// and streams the contents through one `git cat-file --batch` process.
// Blobs carry no commit attribution.
func (e *GitEnumerator) enumerateHistoryNative(ctx context.Context, fn Callback) error {
	entries, err := e.historyEntries(ctx)
	if err != nil {
		return err
	}
	return e.catBlobs(ctx, entries, fn)
}

// historyEntries returns the deduplicated blobs reachable from any ref.
func (e *GitEnumerator) historyEntries(ctx context.Context) ([]historyEntry, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-list", "--all", "--objects")
	cmd.Dir = e.config.Root

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("git rev-list: pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("git rev-list: start: %w", err)
	}

	seen := make(map[types.BlobID]bool)
	var entries []historyEntry

	sc := bufio.NewScanner(stdout)
	for sc.Scan() {
		line := sc.Text()
		// "<40-hex> <path>"; commits and root trees have no path
		if strings.IndexByte(line, ' ') != 40 {
			continue
		}
		id, err := types.ParseBlobID(line[:40])
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		entries = append(entries, historyEntry{id: id, path: line[41:]})
	}

	if err := sc.Err(); err != nil {
		_ = cmd.Wait()
		return nil, fmt.Errorf("git rev-list: scan: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("git rev-list: %w", err)
	}
	return entries, nil
}

// catBlobs feeds object names to git cat-file --batch and yields text blobs.
// Trees listed by rev-list are read and discarded.
func (e *GitEnumerator) catBlobs(ctx context.Context, entries []historyEntry, fn Callback) (err error) {
	if len(entries) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, "git", "cat-file", "--batch")
	cmd.Dir = e.config.Root

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("git cat-file: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("git cat-file: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("git cat-file: start: %w", err)
	}

	done := false
	defer func() {
		if done {
			return
		}
		stdin.Close()
		_ = cmd.Wait()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
	}()

	reader := bufio.NewReaderSize(stdout, 256*1024)

	// One request, one response: writes and reads alternate so neither pipe fills.
	for i, entry := range entries {
		if i%1000 == 0 {
			if err := canceled(ctx); err != nil {
				return err
			}
		}

		if _, err := fmt.Fprintf(stdin, "%s\n", hex.EncodeToString(entry.id[:])); err != nil {
			return fmt.Errorf("git cat-file: write: %w", err)
		}

		// "<hash> <type> <size>" or "<hash> missing"
		header, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("git cat-file: read header: %w", err)
		}
		parts := strings.SplitN(strings.TrimSuffix(header, "\n"), " ", 3)
		if len(parts) < 3 || parts[1] == "missing" {
			continue
		}
		size, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return fmt.Errorf("git cat-file: parse size %q: %w", parts[2], err)
		}

		if parts[1] != "blob" || (e.config.MaxFileSize > 0 && size > e.config.MaxFileSize) {
			if _, err := io.CopyN(io.Discard, reader, size+1); err != nil {
				return fmt.Errorf("git cat-file: discard %s: %w", parts[1], err)
			}
			continue
		}

		content := make([]byte, size+1)
		if _, err := io.ReadFull(reader, content); err != nil {
			return fmt.Errorf("git cat-file: read content: %w", err)
		}
		content = content[:size] // trailing newline

		if isBinary(content) {
			continue
		}

		// the git object name is the blob ID
		blob := Blob{
			ID:         entry.id,
			Content:    content,
			Provenance: types.GitProvenance{RepoPath: e.config.Root, BlobPath: entry.path},
		}
		if err := fn(blob); err != nil {
			return err
		}
	}

	done = true
	stdin.Close()
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("git cat-file: %w", err)
	}
	return nil
}
