package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/praetorian-inc/kwmatch/pkg/types"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLStore implements Store on database/sql for SQLite and PostgreSQL.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

// NewSQLite creates a SQLite-based store.
// Use ":memory:" for in-memory database (useful for testing).
func NewSQLite(path string) (*SQLStore, error) {
	s, err := openSQL(sqliteDialect, path)
	if err != nil {
		return nil, err
	}
	// One connection: every new connection to ":memory:" is a new database,
	// and SQLite serializes writers anyway.
	s.db.SetMaxOpenConns(1)
	return s, nil
}

// NewPostgres creates a PostgreSQL-based store from a DSN.
func NewPostgres(dsn string) (*SQLStore, error) {
	return openSQL(postgresDialect, dsn)
}

func openSQL(d dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", d.name, err)
	}
	if err := CreateSchema(db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLStore{db: db, d: d}, nil
}

// Dialect names the SQL backend ("sqlite" or "postgres").
func (s *SQLStore) Dialect() string {
	return s.d.name
}

func (s *SQLStore) exec(query string, args ...any) error {
	_, err := s.db.Exec(s.d.rebind(query), args...)
	return err
}

// AddBlob stores a blob record.
func (s *SQLStore) AddBlob(id types.BlobID, size int64) error {
	if err := s.exec("INSERT INTO blobs (id, size) VALUES (?, ?) ON CONFLICT DO NOTHING", id.Hex(), size); err != nil {
		return fmt.Errorf("inserting blob: %w", err)
	}
	return nil
}

// AddDictionary stores or refreshes a dictionary.
func (s *SQLStore) AddDictionary(d *types.Dictionary) error {
	keywords, err := json.Marshal(d.Keywords)
	if err != nil {
		return fmt.Errorf("marshaling keywords: %w", err)
	}
	err = s.exec(`
		INSERT INTO dictionaries (id, name, structural_id, replacement, keywords_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			structural_id = excluded.structural_id,
			replacement = excluded.replacement,
			keywords_json = excluded.keywords_json
	`, d.ID, d.Name, d.StructuralID, d.Replacement, string(keywords))
	if err != nil {
		return fmt.Errorf("inserting dictionary: %w", err)
	}
	return nil
}

// AddMatch stores a match record.
func (s *SQLStore) AddMatch(m *types.Match) error {
	err := s.exec(`
		INSERT INTO matches (
			blob_id, dictionary_id, keyword, structural_id, finding_id,
			offset_start, offset_end, start_line, start_column, end_line, end_column,
			snippet_before, snippet_matching, snippet_after
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		m.BlobID.Hex(),
		m.DictionaryID,
		m.Keyword,
		m.StructuralID,
		m.FindingID,
		m.Location.Offset.Start,
		m.Location.Offset.End,
		m.Location.Source.Start.Line,
		m.Location.Source.Start.Column,
		m.Location.Source.End.Line,
		m.Location.Source.End.Column,
		m.Snippet.Before,
		m.Snippet.Matching,
		m.Snippet.After,
	)
	if err != nil {
		return fmt.Errorf("inserting match: %w", err)
	}
	return nil
}

// AddFinding stores a finding (deduplicated).
func (s *SQLStore) AddFinding(f *types.Finding) error {
	err := s.exec(`
		INSERT INTO findings (id, dictionary_id, keyword)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, f.ID, f.DictionaryID, f.Keyword)
	if err != nil {
		return fmt.Errorf("inserting finding: %w", err)
	}
	return nil
}

// AddProvenance associates provenance with a blob.
func (s *SQLStore) AddProvenance(blobID types.BlobID, prov types.Provenance) error {
	kind, path, payload, err := encodeProvenance(prov)
	if err != nil {
		return err
	}
	err = s.exec(`
		INSERT INTO provenance (blob_id, kind, path, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, blobID.Hex(), kind, path, string(payload))
	if err != nil {
		return fmt.Errorf("inserting provenance: %w", err)
	}
	return nil
}

// GetBlobs retrieves every blob record.
func (s *SQLStore) GetBlobs() ([]Blob, error) {
	rows, err := s.db.Query("SELECT id, size FROM blobs ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying blobs: %w", err)
	}
	defer rows.Close()

	var blobs []Blob
	for rows.Next() {
		var hex string
		var b Blob
		if err := rows.Scan(&hex, &b.Size); err != nil {
			return nil, fmt.Errorf("scanning blob: %w", err)
		}
		if b.ID, err = types.ParseBlobID(hex); err != nil {
			return nil, fmt.Errorf("parsing blob ID: %w", err)
		}
		blobs = append(blobs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating blobs: %w", err)
	}
	return blobs, nil
}

// GetDictionaries retrieves the stored dictionaries.
func (s *SQLStore) GetDictionaries() ([]*types.Dictionary, error) {
	rows, err := s.db.Query("SELECT id, name, structural_id, replacement, keywords_json FROM dictionaries ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying dictionaries: %w", err)
	}
	defer rows.Close()

	var dicts []*types.Dictionary
	for rows.Next() {
		var d types.Dictionary
		var keywords string
		if err := rows.Scan(&d.ID, &d.Name, &d.StructuralID, &d.Replacement, &keywords); err != nil {
			return nil, fmt.Errorf("scanning dictionary: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &d.Keywords); err != nil {
			return nil, fmt.Errorf("unmarshaling keywords: %w", err)
		}
		dicts = append(dicts, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dictionaries: %w", err)
	}
	return dicts, nil
}

const matchColumns = `
	blob_id, dictionary_id, keyword, structural_id, finding_id,
	offset_start, offset_end, start_line, start_column, end_line, end_column,
	snippet_before, snippet_matching, snippet_after`

// GetMatches retrieves matches for a blob.
func (s *SQLStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	return s.queryMatches("SELECT "+matchColumns+" FROM matches WHERE blob_id = ? ORDER BY offset_start, id", blobID.Hex())
}

// GetAllMatches retrieves all matches (for JSON export).
func (s *SQLStore) GetAllMatches() ([]*types.Match, error) {
	return s.queryMatches("SELECT " + matchColumns + " FROM matches ORDER BY id")
}

func (s *SQLStore) queryMatches(query string, args ...any) ([]*types.Match, error) {
	rows, err := s.db.Query(s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	var matches []*types.Match
	for rows.Next() {
		var m types.Match
		var blobIDHex string
		var startLine, startCol, endLine, endCol sql.NullInt64

		err := rows.Scan(
			&blobIDHex,
			&m.DictionaryID,
			&m.Keyword,
			&m.StructuralID,
			&m.FindingID,
			&m.Location.Offset.Start,
			&m.Location.Offset.End,
			&startLine,
			&startCol,
			&endLine,
			&endCol,
			&m.Snippet.Before,
			&m.Snippet.Matching,
			&m.Snippet.After,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}

		if m.BlobID, err = types.ParseBlobID(blobIDHex); err != nil {
			return nil, fmt.Errorf("parsing blob ID: %w", err)
		}
		m.Location.Source.Start = types.SourcePoint{Line: int(startLine.Int64), Column: int(startCol.Int64)}
		m.Location.Source.End = types.SourcePoint{Line: int(endLine.Int64), Column: int(endCol.Int64)}

		matches = append(matches, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	return matches, nil
}

// GetFindings retrieves all findings with their matches attached.
func (s *SQLStore) GetFindings() ([]*types.Finding, error) {
	rows, err := s.db.Query("SELECT id, dictionary_id, keyword FROM findings ORDER BY dictionary_id, keyword")
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}
	defer rows.Close()

	var findings []*types.Finding
	byID := make(map[string]*types.Finding)
	for rows.Next() {
		var f types.Finding
		if err := rows.Scan(&f.ID, &f.DictionaryID, &f.Keyword); err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		findings = append(findings, &f)
		byID[f.ID] = &f
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating findings: %w", err)
	}
	rows.Close()

	matches, err := s.GetAllMatches()
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		if f, ok := byID[m.FindingID]; ok {
			f.Matches = append(f.Matches, m)
		}
	}
	return findings, nil
}

// GetProvenance retrieves every provenance record of a blob.
func (s *SQLStore) GetProvenance(blobID types.BlobID) ([]types.Provenance, error) {
	rows, err := s.db.Query(s.d.rebind("SELECT kind, payload FROM provenance WHERE blob_id = ? ORDER BY id"), blobID.Hex())
	if err != nil {
		return nil, fmt.Errorf("querying provenance: %w", err)
	}
	defer rows.Close()

	var provs []types.Provenance
	for rows.Next() {
		var kind, payload string
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, fmt.Errorf("scanning provenance: %w", err)
		}
		p, err := decodeProvenance(kind, []byte(payload))
		if err != nil {
			return nil, err
		}
		provs = append(provs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating provenance: %w", err)
	}
	if len(provs) == 0 {
		return nil, fmt.Errorf("provenance for blob %s: %w", blobID.Hex(), ErrNotFound)
	}
	return provs, nil
}

// FindingExists checks if a finding with this ID exists.
func (s *SQLStore) FindingExists(id string) (bool, error) {
	return s.exists("SELECT 1 FROM findings WHERE id = ?", id)
}

// BlobExists checks if a blob has already been scanned.
func (s *SQLStore) BlobExists(id types.BlobID) (bool, error) {
	return s.exists("SELECT 1 FROM blobs WHERE id = ?", id.Hex())
}

func (s *SQLStore) exists(query string, arg any) (bool, error) {
	var one int
	err := s.db.QueryRow(s.d.rebind(query), arg).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking existence: %w", err)
	}
	return true, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
