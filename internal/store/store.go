// Package store persists the three object stores the search core reads
// from: SearchIndexMetaDataOS, SearchIndexOS, and ElementDataOS, over a
// single modernc.org/sqlite (pure Go, no cgo) database file in WAL mode,
// the way the teacher's SQLiteBM25Index backs its FTS5 table.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	searcherrors "github.com/tutao/search-core/internal/errors"
)

// beginReadRetry governs how many times BeginRead retries a transient
// "database is locked" failure beyond what PRAGMA busy_timeout already
// absorbs, the way the teacher's retry helper backs off store operations.
var beginReadRetry = searcherrors.RetryConfig{
	MaxRetries:   3,
	InitialDelay: 5 * time.Millisecond,
	MaxDelay:     50 * time.Millisecond,
	Multiplier:   2,
	Jitter:       true,
}

// ObjectStore names one of the three stores the persistent-store contract
// (spec §6) exposes: SearchIndexMetaDataOS, SearchIndexOS, ElementDataOS.
type ObjectStore string

const (
	SearchIndexMetaDataOS ObjectStore = "search_index_metadata"
	SearchIndexOS         ObjectStore = "search_index"
	ElementDataOS         ObjectStore = "element_data"
)

// Store owns the sqlite connection backing all three object stores.
type Store struct {
	db *sql.DB
}

// Config controls how the backing database file is opened.
type Config struct {
	// Path is the database file; empty means an in-memory database (tests).
	Path string
	// BusyTimeoutMs bounds how long a reader waits on a write lock.
	BusyTimeoutMs int
	// CacheSizeKB is the sqlite page cache size in KB, given as a positive
	// number; Open passes it negated, which sqlite reads as KB.
	CacheSizeKB int
}

// DefaultConfig mirrors the teacher's pragma choices for its SQLite index.
func DefaultConfig(path string) Config {
	return Config{Path: path, BusyTimeoutMs: 5000, CacheSizeKB: 65536}
}

// Open creates or opens the database file, applying the same WAL/pragma
// setup the teacher's SQLiteBM25Index uses, then ensures the schema exists.
func Open(cfg Config) (*Store, error) {
	dsn := ":memory:"
	if cfg.Path != "" {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, searcherrors.Store(searcherrors.ErrCodeStoreWrite, fmt.Sprintf("create store directory %s", dir), err)
		}
		dsn = cfg.Path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, searcherrors.Store(searcherrors.ErrCodeStoreRead, "open database", err)
	}

	// Single connection: sqlite has one writer at a time, and the core only
	// ever opens one read transaction per page on top of it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeoutMs),
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", cfg.CacheSizeKB),
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, searcherrors.Store(searcherrors.ErrCodeStoreWrite, "apply pragma "+p, err)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_index_metadata (
		index_key   TEXT PRIMARY KEY,
		ciphertext  BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS search_index_words_index ON search_index_metadata(index_key);

	CREATE TABLE IF NOT EXISTS search_index (
		chunk_key   INTEGER PRIMARY KEY,
		ciphertext  BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS element_data (
		encrypted_id TEXT PRIMARY KEY,
		list_id      TEXT NOT NULL,
		ciphertext   BLOB NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return searcherrors.Store(searcherrors.ErrCodeStoreWrite, "initialize schema", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx is a read-only snapshot over one or more object stores, matching the
// spec's `tx.get(store, key[, secondaryIndex])` contract. The core never
// opens write transactions (§5).
type Tx struct {
	tx *sql.Tx
}

// BeginRead opens one read transaction. The orchestrator opens one per page
// and uses it for the C2/C3 posting reads and C8's element lookups alike.
func (s *Store) BeginRead(ctx context.Context) (*Tx, error) {
	tx, err := searcherrors.RetryWithResult(ctx, beginReadRetry, func() (*sql.Tx, error) {
		return s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	})
	if err != nil {
		return nil, searcherrors.Store(searcherrors.ErrCodeStoreTransaction, "begin read transaction", err)
	}
	return &Tx{tx: tx}, nil
}

// Rollback releases the transaction snapshot. Since the core never writes,
// every transaction ends in Rollback rather than Commit.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// GetMetadata looks up a MetaRow by IndexKey via the SearchIndexWordsIndex.
// Absent ⇒ (nil, nil), per §4.2: a store read miss is empty, not an error.
func (t *Tx) GetMetadata(ctx context.Context, indexKey string) ([]byte, error) {
	var ciphertext []byte
	err := t.tx.QueryRowContext(ctx, `SELECT ciphertext FROM search_index_metadata WHERE index_key = ?`, indexKey).Scan(&ciphertext)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, searcherrors.Store(searcherrors.ErrCodeStoreRead, "read metadata row", err)
	}
	return ciphertext, nil
}

// GetChunk looks up a PostingChunk by ChunkKey. Absent ⇒ (nil, nil), per §4.3.
func (t *Tx) GetChunk(ctx context.Context, chunkKey uint64) ([]byte, error) {
	var ciphertext []byte
	err := t.tx.QueryRowContext(ctx, `SELECT ciphertext FROM search_index WHERE chunk_key = ?`, chunkKey).Scan(&ciphertext)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, searcherrors.Store(searcherrors.ErrCodeStoreRead, "read posting chunk", err)
	}
	return ciphertext, nil
}

// ElementRow is one row of the ElementDataOS: a tuple whose value begins
// with listId, per the persistent-store contract.
type ElementRow struct {
	ListID     string
	Ciphertext []byte
}

// GetElement looks up an ElementData row by its base64-encoded encrypted id.
// Absent returns (nil, false, nil) so callers can translate it into the
// entity loader's NotFound per §4.13.
func (t *Tx) GetElement(ctx context.Context, encryptedID string) (ElementRow, bool, error) {
	var row ElementRow
	err := t.tx.QueryRowContext(ctx, `SELECT list_id, ciphertext FROM element_data WHERE encrypted_id = ?`, encryptedID).Scan(&row.ListID, &row.Ciphertext)
	if err == sql.ErrNoRows {
		return ElementRow{}, false, nil
	}
	if err != nil {
		return ElementRow{}, false, searcherrors.Store(searcherrors.ErrCodeStoreRead, "read element row", err)
	}
	return row, true, nil
}

// Seed is a fixture-loading API used by the demo indexer and by tests to
// populate the three object stores; the core itself never writes.
type Seed struct {
	db *sql.DB
}

// Writer returns a write handle for seeding fixtures outside of a search page.
func (s *Store) Writer() *Seed {
	return &Seed{db: s.db}
}

func (w *Seed) PutMetadata(ctx context.Context, indexKey string, ciphertext []byte) error {
	_, err := w.db.ExecContext(ctx, `INSERT INTO search_index_metadata(index_key, ciphertext) VALUES (?, ?)
		ON CONFLICT(index_key) DO UPDATE SET ciphertext = excluded.ciphertext`, indexKey, ciphertext)
	if err != nil {
		return searcherrors.Store(searcherrors.ErrCodeStoreWrite, "write metadata row", err)
	}
	return nil
}

func (w *Seed) PutChunk(ctx context.Context, chunkKey uint64, ciphertext []byte) error {
	_, err := w.db.ExecContext(ctx, `INSERT INTO search_index(chunk_key, ciphertext) VALUES (?, ?)
		ON CONFLICT(chunk_key) DO UPDATE SET ciphertext = excluded.ciphertext`, chunkKey, ciphertext)
	if err != nil {
		return searcherrors.Store(searcherrors.ErrCodeStoreWrite, "write posting chunk", err)
	}
	return nil
}

func (w *Seed) PutElement(ctx context.Context, encryptedID, listID string, ciphertext []byte) error {
	_, err := w.db.ExecContext(ctx, `INSERT INTO element_data(encrypted_id, list_id, ciphertext) VALUES (?, ?, ?)
		ON CONFLICT(encrypted_id) DO UPDATE SET list_id = excluded.list_id, ciphertext = excluded.ciphertext`,
		encryptedID, listID, ciphertext)
	if err != nil {
		return searcherrors.Store(searcherrors.ErrCodeStoreWrite, "write element row", err)
	}
	return nil
}
