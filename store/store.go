// Package store records the source of installed methods in a sqlite
// database, keyed by content fingerprint.
//
// The store is a consumer of the public compiler APIs only: it never
// touches VM state. The CLI wires it to the VM's install hook when
// recording is enabled.
package store

import (
	"database/sql"
	"encoding/hex"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chazu/loom/compiler"
	"github.com/chazu/loom/compiler/hash"
)

const schema = `
CREATE TABLE IF NOT EXISTS methods (
	fingerprint TEXT PRIMARY KEY,
	class       TEXT NOT NULL,
	selector    TEXT NOT NULL,
	class_side  INTEGER NOT NULL DEFAULT 0,
	source      TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS methods_by_selector ON methods (class, selector);
`

// Store is an open method-source database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record fingerprints a method definition and stores its source text.
// Re-recording the same body is idempotent: the fingerprint is the
// primary key.
func (s *Store) Record(className string, def *compiler.MethodDef, source string) (string, error) {
	sum, err := hash.HashMethod(def)
	if err != nil {
		return "", err
	}
	fp := hex.EncodeToString(sum[:])

	classSide := 0
	if def.ClassSide {
		classSide = 1
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO methods (fingerprint, class, selector, class_side, source, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		fp, className, def.Selector, classSide, source, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", err
	}
	return fp, nil
}

// MethodRow is one recorded method.
type MethodRow struct {
	Fingerprint string
	Class       string
	Selector    string
	ClassSide   bool
	Source      string
}

// Lookup returns the recorded method with the given fingerprint, or
// nil.
func (s *Store) Lookup(fingerprint string) (*MethodRow, error) {
	row := s.db.QueryRow(
		`SELECT fingerprint, class, selector, class_side, source FROM methods WHERE fingerprint = ?`,
		fingerprint,
	)
	var m MethodRow
	var classSide int
	if err := row.Scan(&m.Fingerprint, &m.Class, &m.Selector, &classSide, &m.Source); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	m.ClassSide = classSide != 0
	return &m, nil
}

// BySelector returns every recorded version of class>>selector.
func (s *Store) BySelector(className, selector string) ([]MethodRow, error) {
	rows, err := s.db.Query(
		`SELECT fingerprint, class, selector, class_side, source FROM methods
		 WHERE class = ? AND selector = ? ORDER BY recorded_at`,
		className, selector,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MethodRow
	for rows.Next() {
		var m MethodRow
		var classSide int
		if err := rows.Scan(&m.Fingerprint, &m.Class, &m.Selector, &classSide, &m.Source); err != nil {
			return nil, err
		}
		m.ClassSide = classSide != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count returns the number of recorded methods.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM methods`).Scan(&n)
	return n, err
}
