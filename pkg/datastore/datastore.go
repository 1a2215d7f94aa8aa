// Package datastore manages a scan datastore directory: the result
// database, the persistent keyword store and optional blob storage.
package datastore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/praetorian-inc/kwmatch/pkg/store"
)

// Datastore manages a directory-based datastore.
type Datastore struct {
	Path      string              // Directory path (e.g., "kwmatch.ds")
	Store     store.Store         // Results (SQLite file, or Postgres when Options.StoreURL is set)
	Keywords  *store.KeywordStore // Live dictionaries
	BlobStore *BlobStore          // Optional blob storage (nil if StoreBlobs not set)
}

// Options configures datastore behavior.
type Options struct {
	StoreBlobs bool   // Keep scanned content under blobs/ (--store-blobs flag)
	StoreURL   string // Result database DSN overriding datastore.db
}

// Open opens or creates a datastore directory.
func Open(path string, opts Options) (*Datastore, error) {
	if path == "" {
		return nil, fmt.Errorf("datastore path is required")
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating datastore directory: %w", err)
	}

	gitignorePath := filepath.Join(path, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("*\n"), 0644); err != nil {
		return nil, fmt.Errorf("writing .gitignore: %w", err)
	}

	dsn := opts.StoreURL
	if dsn == "" {
		dsn = filepath.Join(path, "datastore.db")
	}
	s, err := store.New(store.Config{Path: dsn})
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	kw, err := store.OpenKeywordStore(filepath.Join(path, "keywords.db"))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("opening keyword store: %w", err)
	}

	ds := &Datastore{Path: path, Store: s, Keywords: kw}

	if opts.StoreBlobs {
		ds.BlobStore, err = NewBlobStore(filepath.Join(path, "blobs"))
		if err != nil {
			ds.Close()
			return nil, err
		}
	}

	return ds, nil
}

// Close closes the datastore and releases resources.
func (d *Datastore) Close() error {
	var errs []error
	if d.Store != nil {
		errs = append(errs, d.Store.Close())
	}
	if d.Keywords != nil {
		errs = append(errs, d.Keywords.Close())
	}
	if d.BlobStore != nil {
		d.BlobStore.Close()
	}
	return errors.Join(errs...)
}
