package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// dialect captures the differences between the SQL backends.
type dialect struct {
	name   string
	driver string
	autoID string // surrogate key column definition
	bytes  string // binary column type
}

var (
	sqliteDialect = dialect{
		name:   "sqlite",
		driver: "sqlite",
		autoID: "INTEGER PRIMARY KEY AUTOINCREMENT",
		bytes:  "BLOB",
	}
	postgresDialect = dialect{
		name:   "postgres",
		driver: "pgx",
		autoID: "BIGSERIAL PRIMARY KEY",
		bytes:  "BYTEA",
	}
)

// rebind rewrites ? placeholders into the dialect's form.
func (d dialect) rebind(query string) string {
	if d.name != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// CreateSchema creates the database schema if it doesn't exist.
func CreateSchema(db *sql.DB, d dialect) error {
	if err := createSchemaVersionTable(db, d); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	tables := []struct {
		name string
		ddl  string
	}{
		{"blobs", `
			CREATE TABLE IF NOT EXISTS blobs (
				id TEXT PRIMARY KEY NOT NULL,
				size BIGINT NOT NULL
			)`},
		{"dictionaries", `
			CREATE TABLE IF NOT EXISTS dictionaries (
				id TEXT PRIMARY KEY NOT NULL,
				name TEXT NOT NULL,
				structural_id TEXT NOT NULL,
				replacement TEXT NOT NULL DEFAULT '',
				keywords_json TEXT NOT NULL
			)`},
		{"matches", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS matches (
				id %s,
				blob_id TEXT NOT NULL REFERENCES blobs(id),
				dictionary_id TEXT NOT NULL,
				keyword TEXT NOT NULL,
				structural_id TEXT NOT NULL UNIQUE,
				finding_id TEXT NOT NULL,
				offset_start BIGINT NOT NULL,
				offset_end BIGINT NOT NULL,
				start_line INTEGER,
				start_column INTEGER,
				end_line INTEGER,
				end_column INTEGER,
				snippet_before %s,
				snippet_matching %s,
				snippet_after %s
			)`, d.autoID, d.bytes, d.bytes, d.bytes)},
		{"findings", `
			CREATE TABLE IF NOT EXISTS findings (
				id TEXT PRIMARY KEY NOT NULL,
				dictionary_id TEXT NOT NULL,
				keyword TEXT NOT NULL
			)`},
		{"provenance", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS provenance (
				id %s,
				blob_id TEXT NOT NULL REFERENCES blobs(id),
				kind TEXT NOT NULL,
				path TEXT NOT NULL,
				payload TEXT NOT NULL,
				UNIQUE(blob_id, kind, path)
			)`, d.autoID)},
	}
	for _, tbl := range tables {
		if _, err := db.Exec(tbl.ddl); err != nil {
			return fmt.Errorf("creating %s table: %w", tbl.name, err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_matches_blob_id ON matches(blob_id)`,
		`CREATE INDEX IF NOT EXISTS idx_provenance_blob_id ON provenance(blob_id)`,
	}
	for _, ddl := range indexes {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}

func createSchemaVersionTable(db *sql.DB, d dialect) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Insert version if table is empty
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		_, err = db.Exec(d.rebind("INSERT INTO schema_version (version) VALUES (?)"), SchemaVersion)
		return err
	}
	return nil
}
