package dictionary

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/praetorian-inc/kwmatch/pkg/logging"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// DefaultDebounce coalesces the burst of events editors emit per save.
const DefaultDebounce = 50 * time.Millisecond

// Watcher reloads dictionary sources when they change on disk and reports
// the keyword-level differences.
type Watcher struct {
	fw       *fsnotify.Watcher
	loader   *Loader
	logger   *logging.Logger
	debounce time.Duration

	done    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// NewWatcher creates a watcher. A nil logger discards output.
func NewWatcher(loader *Loader, logger *logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if loader == nil {
		loader = NewLoader()
	}
	if logger == nil {
		logger = logging.Noop()
	}
	return &Watcher{
		fw:       fw,
		loader:   loader,
		logger:   logger,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce overrides the quiet period before a reload. Call before Watch.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Watch loads paths once and then monitors them. Each time the sources
// settle after a change, they are reloaded and onChange receives the
// differences against the previous load. A reload that fails is logged and
// the previous load is kept. Watch returns the initial load.
func (w *Watcher) Watch(ctx context.Context, paths []string, onChange func([]Change)) ([]*types.Dictionary, error) {
	current, err := w.load(paths)
	if err != nil {
		return nil, err
	}

	files := make(map[string]bool)
	var roots []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			// Editors replace files by rename, so watch the directory.
			files[abs] = true
			if err := w.fw.Add(filepath.Dir(abs)); err != nil {
				return nil, fmt.Errorf("watch %s: %w", abs, err)
			}
			continue
		}
		roots = append(roots, abs)
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip inaccessible paths
			}
			if d.IsDir() {
				return w.fw.Add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", abs, err)
		}
	}

	relevant := func(path string) bool {
		if files[path] {
			return true
		}
		if !IsDictionaryFile(path) {
			return false
		}
		for _, root := range roots {
			if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
				return true
			}
		}
		return false
	}

	go func() {
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case event, ok := <-w.fw.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = w.fw.Add(event.Name)
						continue
					}
				}
				if !relevant(event.Name) {
					continue
				}
				if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(w.debounce)
				} else {
					timer.Reset(w.debounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				next, err := w.load(paths)
				if err != nil {
					w.logger.WarnContext(ctx, "dictionary reload failed", "error", err)
					continue
				}
				changes := DiffSets(current, next)
				current = next
				if len(changes) == 0 {
					continue
				}
				w.logger.InfoContext(ctx, "dictionaries reloaded", "changed", len(changes))
				onChange(changes)

			case err, ok := <-w.fw.Errors:
				if !ok {
					return
				}
				w.logger.DebugContext(ctx, "watch error", "error", err)

			case <-ctx.Done():
				_ = w.Stop()
				return

			case <-w.done:
				if timer != nil {
					timer.Stop()
				}
				return
			}
		}
	}()

	return current, nil
}

// Stop ends monitoring and releases all resources.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	return w.fw.Close()
}

func (w *Watcher) load(paths []string) ([]*types.Dictionary, error) {
	var out []*types.Dictionary
	for _, p := range paths {
		dicts, err := w.loader.LoadPath(p)
		if err != nil {
			return nil, err
		}
		out = append(out, dicts...)
	}
	if err := ValidateAll(out); err != nil {
		return nil, err
	}
	return out, nil
}
