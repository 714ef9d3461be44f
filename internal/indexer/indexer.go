// Package indexer supplies a demo Indexer collaborator: the real mailbox
// sync engine is out of scope (spec §1's non-goals), so integration tests
// and the CLI demo mode exercise the Index Extension Protocol against a
// directory of plaintext fixture documents instead, grounded on the
// teacher's internal/async.BackgroundIndexer lock-file and progress-tracking
// shape.
package indexer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"github.com/tutao/search-core/internal/cryptoindex"
	searcherrors "github.com/tutao/search-core/internal/errors"
	"github.com/tutao/search-core/internal/model"
	"github.com/tutao/search-core/internal/postings"
	"github.com/tutao/search-core/internal/store"
)

// Document is one fixture "mail" to index: its timestamp becomes its
// EntityID (model.TimestampToID) and its text is tokenized into postings.
type Document struct {
	TimestampMs int64  `json:"timestampMs"`
	Text        string `json:"text"`
	Attribute   uint8  `json:"attribute"`
	List        string `json:"list"`
}

// TermObserver receives every distinct term written to a posting as the
// indexer writes it, so a suggestion collaborator's prefix index stays in
// sync with what's actually searchable.
type TermObserver interface {
	Observe(term model.Term) error
}

// DemoIndexer implements search.Indexer over a directory of JSON Document
// fixtures, one file per document. It tracks how far back in time indexing
// currently reaches and writes postings for newly-covered documents using
// the same codec and chunk format the core reads.
type DemoIndexer struct {
	dir      string
	lockPath string
	store    *store.Store
	codec    *cryptoindex.Codec
	tokenize func(string) []model.Term
	typeInfo model.TypeInfo
	observer TermObserver

	mu      sync.Mutex
	horizon time.Time
	nextKey uint64

	progress *Progress
}

// Config configures a DemoIndexer.
type Config struct {
	FixtureDir string
	Store      *store.Store
	Codec      *cryptoindex.Codec
	Tokenize   func(string) []model.Term
	TypeInfo   model.TypeInfo
	// Observer is notified of every distinct term as it's written. Optional;
	// a nil Observer just means suggestions never learn from indexing.
	Observer TermObserver
}

// New builds a DemoIndexer with nothing indexed yet (§9's
// NothingIndexedTimestamp, resolved by callers to "now").
func New(cfg Config) *DemoIndexer {
	return &DemoIndexer{
		dir:      cfg.FixtureDir,
		lockPath: filepath.Join(cfg.FixtureDir, ".indexing.lock"),
		store:    cfg.Store,
		codec:    cfg.Codec,
		tokenize: cfg.Tokenize,
		typeInfo: cfg.TypeInfo,
		observer: cfg.Observer,
		horizon:  model.NothingIndexedTimestamp,
		progress: NewProgress(),
	}
}

// Progress returns the tracker for this indexer's most recent run.
func (d *DemoIndexer) Progress() *Progress { return d.progress }

// CurrentIndexTimestamp returns how far back coverage currently reaches.
func (d *DemoIndexer) CurrentIndexTimestamp() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.horizon
}

// IndexMailboxes implements §4.10: extends coverage back to sinceEpochMs,
// reading every fixture document not yet covered and writing its postings.
// A single-writer lock file (gofrs/flock) guards against two concurrent
// extension requests racing the same chunk-key sequence; ctx cancellation
// while waiting for the lock, or between documents, surfaces as a
// searcherrors.Cancelled error the orchestrator logs and swallows.
func (d *DemoIndexer) IndexMailboxes(ctx context.Context, sinceEpochMs int64) error {
	if err := ctx.Err(); err != nil {
		return searcherrors.Cancelled("index extension cancelled", err)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return searcherrors.Store(searcherrors.ErrCodeStoreWrite, "create fixture dir", err)
	}

	lock := flock.New(d.lockPath)
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		if ctx.Err() != nil {
			return searcherrors.Cancelled("index extension cancelled waiting for lock", ctx.Err())
		}
		return searcherrors.Store(searcherrors.ErrCodeStoreWrite, "acquire indexing lock", err)
	}
	if !locked {
		return searcherrors.Cancelled("index extension already in progress", nil)
	}
	defer lock.Unlock()

	d.mu.Lock()
	currentHorizon := model.ResolveIndexHorizon(d.horizon)
	d.mu.Unlock()
	currentMs := currentHorizon.UnixMilli()

	docs, err := d.loadFixtures()
	if err != nil {
		return err
	}
	d.progress.SetTotal(len(docs))

	indexed := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return searcherrors.Cancelled("index extension cancelled", err)
		}
		if doc.TimestampMs >= currentMs || doc.TimestampMs < sinceEpochMs {
			continue
		}
		if err := d.writeDocument(ctx, doc); err != nil {
			return err
		}
		indexed++
		d.progress.UpdateIndexed(indexed)
	}

	d.mu.Lock()
	d.horizon = time.UnixMilli(sinceEpochMs).UTC()
	d.mu.Unlock()
	d.progress.SetDone()
	return nil
}

// Watch indexes newly created fixture files as they appear, grounded on the
// teacher's fsnotify direct dependency, until ctx is cancelled. The first
// document processed (nothing indexed before) anchors the horizon to its own
// timestamp: coverage starts from "whatever arrived first", matching the
// single-tenant demo's lack of a historical backfill on startup.
func (d *DemoIndexer) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return searcherrors.Internal("create fixture watcher", err)
	}
	defer watcher.Close()

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return searcherrors.Store(searcherrors.ErrCodeStoreWrite, "create fixture dir", err)
	}
	if err := watcher.Add(d.dir); err != nil {
		return searcherrors.Internal("watch fixture dir", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			doc, err := readFixture(ev.Name)
			if err != nil {
				continue
			}
			if err := d.writeDocument(ctx, doc); err != nil {
				return err
			}
			d.mu.Lock()
			if d.horizon.IsZero() {
				d.horizon = time.UnixMilli(doc.TimestampMs).UTC()
			}
			d.mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return searcherrors.Internal("fixture watcher error", err)
		}
	}
}

func (d *DemoIndexer) loadFixtures() ([]Document, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, searcherrors.Store(searcherrors.ErrCodeStoreRead, "list fixture dir", err)
	}
	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		doc, err := readFixture(filepath.Join(d.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].TimestampMs > docs[j].TimestampMs })
	return docs, nil
}

func readFixture(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, searcherrors.Store(searcherrors.ErrCodeStoreRead, "read fixture", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, searcherrors.Corruption(searcherrors.ErrCodeCorruptEntry, "malformed fixture document", err)
	}
	return doc, nil
}

// writeDocument tokenizes doc.Text and appends one posting per distinct term
// to that term's metadata and a freshly written chunk, the same wire format
// internal/search's pipeline reads back (one chunk per document keeps the
// demo simple; a production indexer would batch many documents per chunk).
func (d *DemoIndexer) writeDocument(ctx context.Context, doc Document) error {
	id := model.TimestampToID(time.UnixMilli(doc.TimestampMs).UTC())
	terms := d.tokenize(doc.Text)
	seen := make(map[model.Term]struct{}, len(terms))

	if err := d.store.Writer().PutElement(ctx, d.codec.EncryptID(id), doc.List, []byte(doc.Text)); err != nil {
		return searcherrors.Store(searcherrors.ErrCodeStoreWrite, "write element", err)
	}

	for i, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		if err := d.appendPosting(ctx, term, model.Entry{ID: id, Attribute: doc.Attribute, Positions: positionsOf(terms, term, i)}); err != nil {
			return err
		}
		if d.observer != nil {
			if err := d.observer.Observe(term); err != nil {
				return searcherrors.Internal("observe indexed term", err)
			}
		}
	}
	return nil
}

func positionsOf(terms []model.Term, term model.Term, firstSeenAt int) []uint32 {
	positions := make([]uint32, 0, 1)
	for i, t := range terms {
		if t == term {
			positions = append(positions, uint32(i))
		}
	}
	if len(positions) == 0 {
		positions = append(positions, uint32(firstSeenAt))
	}
	return positions
}

func (d *DemoIndexer) appendPosting(ctx context.Context, term model.Term, entry model.Entry) error {
	key := d.codec.IndexKey(term)
	plain := cryptoindex.EncodeEntry(entry)
	ciphertext, err := d.codec.Seal(plain, entry.ID)
	if err != nil {
		return searcherrors.Crypto(searcherrors.ErrCodeKeyDerivation, "seal posting entry", err)
	}
	chunk := postings.EncodeChunk([][]byte{ciphertext})

	d.mu.Lock()
	d.nextKey++
	chunkKey := d.nextKey
	d.mu.Unlock()

	if err := d.store.Writer().PutChunk(ctx, chunkKey, chunk); err != nil {
		return searcherrors.Store(searcherrors.ErrCodeStoreWrite, "write posting chunk", err)
	}

	existing, err := d.readMetadata(ctx, key)
	if err != nil {
		return err
	}
	existing.Rows = append(existing.Rows, model.ChunkDescriptor{
		// Size counts entries encoded in the chunk, not bytes; this demo
		// indexer always writes exactly one entry per chunk.
		Key: model.ChunkKey(chunkKey), Size: 1, App: d.typeInfo.App, Type: d.typeInfo.Type,
	})
	plainMeta := cryptoindex.EncodeMetadata(existing)
	ciphertextMeta, err := d.codec.Seal(plainMeta, []byte(key))
	if err != nil {
		return searcherrors.Crypto(searcherrors.ErrCodeKeyDerivation, "seal metadata", err)
	}
	if err := d.store.Writer().PutMetadata(ctx, string(key), ciphertextMeta); err != nil {
		return searcherrors.Store(searcherrors.ErrCodeStoreWrite, "write metadata", err)
	}
	return nil
}

func (d *DemoIndexer) readMetadata(ctx context.Context, key model.IndexKey) (model.Metadata, error) {
	tx, err := d.store.BeginRead(ctx)
	if err != nil {
		return model.Metadata{}, searcherrors.Store(searcherrors.ErrCodeStoreRead, "begin read", err)
	}
	defer tx.Rollback()

	raw, err := tx.GetMetadata(ctx, string(key))
	if err != nil {
		return model.Metadata{}, searcherrors.Store(searcherrors.ErrCodeStoreRead, "read metadata", err)
	}
	if raw == nil {
		return model.Metadata{}, nil
	}
	plain, err := d.codec.DecryptMetadata(raw)
	if err != nil {
		return model.Metadata{}, searcherrors.Crypto(searcherrors.ErrCodeDecryptFailed, "decrypt metadata", err)
	}
	meta, err := cryptoindex.DecodeMetadata(plain)
	if err != nil {
		return model.Metadata{}, searcherrors.Corruption(searcherrors.ErrCodeCorruptMetadata, "decode metadata", err)
	}
	return meta, nil
}
