// Package store persists scan results: blobs, dictionaries, matches,
// findings and provenance.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store provides persistence for scan results.
// This interface abstracts the underlying storage implementation,
// allowing for different backends (SQLite, PostgreSQL, memory).
type Store interface {
	// AddBlob stores a blob record.
	AddBlob(id types.BlobID, size int64) error

	// AddDictionary stores the dictionary that produced matches.
	AddDictionary(d *types.Dictionary) error

	// AddMatch stores a match record.
	AddMatch(m *types.Match) error

	// AddFinding stores a finding (deduplicated).
	AddFinding(f *types.Finding) error

	// AddProvenance associates provenance with a blob.
	AddProvenance(blobID types.BlobID, prov types.Provenance) error

	// GetBlobs retrieves every blob record.
	GetBlobs() ([]Blob, error)

	// GetDictionaries retrieves the stored dictionaries.
	GetDictionaries() ([]*types.Dictionary, error)

	// GetMatches retrieves matches for a blob.
	GetMatches(blobID types.BlobID) ([]*types.Match, error)

	// GetAllMatches retrieves all matches (for JSON export).
	GetAllMatches() ([]*types.Match, error)

	// GetFindings retrieves all findings (for reporting).
	GetFindings() ([]*types.Finding, error)

	// GetProvenance retrieves every provenance record of a blob.
	GetProvenance(blobID types.BlobID) ([]types.Provenance, error)

	// FindingExists checks if a finding with this ID exists.
	FindingExists(id string) (bool, error)

	// BlobExists checks if a blob has already been scanned.
	BlobExists(id types.BlobID) (bool, error)

	// Close closes the database connection.
	Close() error
}

// Blob is a scanned blob record.
type Blob struct {
	ID   types.BlobID `json:"id"`
	Size int64        `json:"size"`
}

// Config for store initialization.
type Config struct {
	// Path is the database file path or a postgres:// DSN.
	// Use ":memory:" for an in-memory store (useful for testing).
	Path string

	// Driver forces a backend: "sqlite", "postgres" or "memory".
	// Empty selects one from Path.
	Driver string
}

// New creates a new Store.
func New(cfg Config) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	driver := cfg.Driver
	if driver == "" {
		switch {
		case cfg.Path == ":memory:":
			driver = "memory"
		case IsPostgresDSN(cfg.Path):
			driver = "postgres"
		default:
			driver = "sqlite"
		}
	}

	switch driver {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(cfg.Path)
	case "postgres":
		return NewPostgres(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// IsPostgresDSN reports whether path is a postgres connection URL.
func IsPostgresDSN(path string) bool {
	return strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://")
}

// Record stores one scanned blob with its provenance and matches, creating
// a finding for every match whose finding is new.
func Record(s Store, blob Blob, prov types.Provenance, matches []*types.Match) error {
	if err := s.AddBlob(blob.ID, blob.Size); err != nil {
		return err
	}
	if prov != nil {
		if err := s.AddProvenance(blob.ID, prov); err != nil {
			return err
		}
	}
	for _, m := range matches {
		if err := s.AddMatch(m); err != nil {
			return err
		}
		if err := s.AddFinding(&types.Finding{
			ID:           m.FindingID,
			DictionaryID: m.DictionaryID,
			Keyword:      m.Keyword,
		}); err != nil {
			return err
		}
	}
	return nil
}
