// Package store persists built book structures in a SQLite database so a
// book is tokenized once and reloaded on later runs. Payloads are stored as
// xz-compressed JSON keyed by (resource, book), alongside a BLAKE3 hash of
// the raw source markup used for staleness checks.
//
// Two SQLite drivers are supported:
//   - Default (CGO_ENABLED=0): pure Go modernc.org/sqlite
//   - CGO mode (-tags cgo_sqlite): mattn/go-sqlite3
//
// Use Open() instead of sql.Open() to ensure the correct driver is used.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"io"
	"time"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/CedarAlign/core/errors"
	"github.com/FocuswithJustin/CedarAlign/core/structure"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	resource    TEXT NOT NULL,
	book        TEXT NOT NULL,
	source_hash TEXT NOT NULL,
	payload     BLOB NOT NULL,
	built_at    TEXT NOT NULL,
	PRIMARY KEY (resource, book)
);
`

// DriverType returns "cgo" for mattn/go-sqlite3, "purego" for
// modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// Store is a SQLite-backed cache of built book structures. Safe for
// concurrent use; database/sql serializes access per connection.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at path using the appropriate driver.
func Open(path string) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, errors.NewIO("pragma", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewIO("migrate", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// HashSource computes the BLAKE3 hash of raw source markup. Stored next to
// each payload so callers can detect stale builds without decompressing.
func HashSource(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// PutBook stores a built book, replacing any previous build for the same
// (resource, book) pair.
func (s *Store) PutBook(ctx context.Context, resource, sourceHash string, book *structure.Book) error {
	payload, err := encodePayload(book)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO books (resource, book, source_hash, payload, built_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (resource, book) DO UPDATE SET
			source_hash = excluded.source_hash,
			payload     = excluded.payload,
			built_at    = excluded.built_at`,
		resource, book.ID, sourceHash, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return errors.NewIO("put", resource+"/"+book.ID, err)
	}
	return nil
}

// GetBook loads a built book. Returns a not-found error (matching
// errors.ErrNotFound) when no build exists for the pair.
func (s *Store) GetBook(ctx context.Context, resource, book string) (*structure.Book, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM books WHERE resource = ? AND book = ?`,
		resource, book).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("book", resource+"/"+book)
	}
	if err != nil {
		return nil, errors.NewIO("get", resource+"/"+book, err)
	}
	return decodePayload(payload)
}

// SourceHash returns the stored source hash for a build, or a not-found
// error when the pair has never been built.
func (s *Store) SourceHash(ctx context.Context, resource, book string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT source_hash FROM books WHERE resource = ? AND book = ?`,
		resource, book).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", errors.NewNotFound("book", resource+"/"+book)
	}
	if err != nil {
		return "", errors.NewIO("hash", resource+"/"+book, err)
	}
	return hash, nil
}

// ListBooks returns the book codes stored for a resource, sorted.
func (s *Store) ListBooks(ctx context.Context, resource string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT book FROM books WHERE resource = ? ORDER BY book`, resource)
	if err != nil {
		return nil, errors.NewIO("list", resource, err)
	}
	defer rows.Close()

	var books []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, errors.NewIO("list", resource, err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// DeleteBook removes a stored build. Deleting a missing pair is not an error.
func (s *Store) DeleteBook(ctx context.Context, resource, book string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM books WHERE resource = ? AND book = ?`, resource, book)
	if err != nil {
		return errors.NewIO("delete", resource+"/"+book, err)
	}
	return nil
}

func encodePayload(book *structure.Book) ([]byte, error) {
	raw, err := json.Marshal(book)
	if err != nil {
		return nil, errors.Wrap(err, "store: marshal book")
	}
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, errors.Wrap(err, "store: xz writer")
	}
	if _, err := w.Write(raw); err != nil {
		return nil, errors.Wrap(err, "store: compress")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "store: compress")
	}
	return buf.Bytes(), nil
}

func decodePayload(payload []byte) (*structure.Book, error) {
	r, err := xz.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "store: xz reader")
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "store: decompress")
	}
	var book structure.Book
	if err := json.Unmarshal(raw, &book); err != nil {
		return nil, errors.Wrap(err, "store: unmarshal book")
	}
	return &book, nil
}
