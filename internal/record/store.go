package record

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"
	_ "modernc.org/sqlite"
)

var ErrStore = errors.New("record store error")

// The last successful build of a unit.
type Record struct {
	Fingerprint digest.Digest // Fingerprint at the time of the build.
	BuiltAt     time.Time     // When the build succeeded.
}

// Persists per-unit build records in a SQLite database.
//
// Each unit owns one row keyed by name, so concurrent writers for different
// units never contend on the same record. Records survive across
// invocations; a missing row means the unit was never built.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS records (
	unit        TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	built_at    INTEGER NOT NULL
);`

// Opens the record store at the given path, creating the database and its
// parent directories when absent.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	return &Store{db: db}, nil
}

// Closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Returns the record for a unit, or ok=false when the unit was never built.
func (s *Store) Get(name string) (Record, bool, error) {
	var fp string
	var builtAt int64
	err := s.db.QueryRow(
		`SELECT fingerprint, built_at FROM records WHERE unit = ?`, name,
	).Scan(&fp, &builtAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return Record{Fingerprint: digest.Digest(fp), BuiltAt: time.Unix(builtAt, 0)}, true, nil
}

// Writes the record for a unit, replacing any previous one.
//
// The write is a single-row upsert: it either lands fully or leaves the
// prior record untouched, and writes for different units never interfere.
func (s *Store) Put(name string, fp digest.Digest, builtAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO records (unit, fingerprint, built_at) VALUES (?, ?, ?)
		 ON CONFLICT(unit) DO UPDATE SET fingerprint = excluded.fingerprint, built_at = excluded.built_at`,
		name, fp.String(), builtAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

// Returns a snapshot of every record keyed by unit name.
func (s *Store) All() (map[string]Record, error) {
	rows, err := s.db.Query(`SELECT unit, fingerprint, built_at FROM records`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	defer rows.Close()

	records := make(map[string]Record)
	for rows.Next() {
		var name, fp string
		var builtAt int64
		if err := rows.Scan(&name, &fp, &builtAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		records[name] = Record{Fingerprint: digest.Digest(fp), BuiltAt: time.Unix(builtAt, 0)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return records, nil
}
