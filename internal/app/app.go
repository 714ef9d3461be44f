// Package app composes the search core's collaborators into one
// Orchestrator, the way the teacher's cmd/amanmcp/cmd root wires its BM25
// index, vector index, and embedder into a single search.Engine before
// handing it to the CLI commands and the MCP server.
package app

import (
	"crypto/sha256"
	"fmt"

	"github.com/tutao/search-core/internal/assemble"
	"github.com/tutao/search-core/internal/config"
	"github.com/tutao/search-core/internal/cryptoindex"
	"github.com/tutao/search-core/internal/indexer"
	"github.com/tutao/search-core/internal/metareader"
	"github.com/tutao/search-core/internal/model"
	"github.com/tutao/search-core/internal/postings"
	"github.com/tutao/search-core/internal/search"
	"github.com/tutao/search-core/internal/store"
	"github.com/tutao/search-core/internal/suggest"
	"github.com/tutao/search-core/internal/telemetry"
	"github.com/tutao/search-core/internal/tokenizer"
)

// mailTypeRef is the type reference the demo's single entity kind, Mail,
// registers under with the suggestion path's type model registry.
const mailTypeRef = "Mail"

// mailTextAttribute is the one whitelisted, prefix-searchable attribute the
// demo entity model exposes.
const mailTextAttribute = "text"

// App bundles one process's composed search core: the store, the C1-C8
// pipeline wired into an Orchestrator, and the demo indexer collaborator.
type App struct {
	Config       *config.Config
	Store        *store.Store
	Codec        *cryptoindex.Codec
	Tokenizer    *tokenizer.Tokenizer
	Indexer      *indexer.DemoIndexer
	Orchestrator *search.Orchestrator
	Suggestions  *suggest.BleveCollaborator
	Telemetry    *telemetry.PageRecorder
}

// Close releases resources the App owns.
func (a *App) Close() error {
	var errs []error
	if a.Suggestions != nil {
		if err := a.Suggestions.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close app: %v", errs)
	}
	return nil
}

// New wires a full App from cfg. The returned App owns the store and must
// be Close()d by the caller.
func New(cfg *config.Config) (*App, error) {
	st, err := store.Open(store.Config{
		Path:          cfg.Store.Path,
		BusyTimeoutMs: cfg.Store.BusyTimeoutMs,
		CacheSizeKB:   65536,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	codec := cryptoindex.New(demoKeys(cfg.Store.Path))
	tok := tokenizer.New(tokenizer.WithMinLength(1))

	typeInfo := model.TypeInfo{App: 0, Type: uint8(model.Mail)}

	collab, err := suggest.NewBleveCollaborator()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build suggestion collaborator: %w", err)
	}

	idx := indexer.New(indexer.Config{
		FixtureDir: cfg.Indexer.FixtureDir,
		Store:      st,
		Codec:      codec,
		Tokenize:   tok.Tokenize,
		TypeInfo:   typeInfo,
		Observer:   collab,
	})

	metaReader, err := metareader.New(codec, cfg.Store.MetadataCacheSize)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build metadata reader: %w", err)
	}
	fetcher := postings.New(codec)
	assembler := assemble.New(assemble.NewElementLookup(codec.EncryptID), cfg.Assembler.ElementLookupConcurrency)

	pipeline := search.Pipeline{
		KeyEncoder: codec,
		MetaReader: metaReader,
		Fetcher:    fetcher,
		Assembler:  assembler,
	}

	recorder := telemetry.NewPageRecorder(200)

	opts := []search.Option{
		search.WithChunkBudget(uint32(cfg.Pagination.MaxEntriesPerTermPerPage)),
		search.WithTelemetry(recorder),
		search.WithSuggestions(search.Suggestions{
			Collaborators: map[model.RestrictionType]suggest.Collaborator{
				model.Mail: collab,
			},
			Loader:   newDemoEntityLoader(st, codec),
			Registry: newDemoTypeModelRegistry(),
			TypeRef: func(model.RestrictionType) string {
				return mailTypeRef
			},
			Whitelist: map[model.RestrictionType]map[string]struct{}{
				model.Mail: {mailTextAttribute: {}},
			},
			MaxDepth: cfg.Suggestion.MaxTypeModelDepth,
		}),
	}

	orch := search.New(st, pipeline, idx, tok.Tokenize, opts...)

	return &App{
		Config:       cfg,
		Store:        st,
		Codec:        codec,
		Tokenizer:    tok,
		Indexer:      idx,
		Orchestrator: orch,
		Suggestions:  collab,
		Telemetry:    recorder,
	}, nil
}

// demoKeys derives fixed mailbox keys from a passphrase for the demo/CLI
// binaries. Real per-mailbox key provisioning lives client-side and is out
// of the search core's scope (spec §1 non-goals); this stands in for it.
func demoKeys(passphrase string) cryptoindex.Keys {
	dbKey := sha256.Sum256([]byte("tuta-search-dbkey:" + passphrase))
	ivSeed := sha256.Sum256([]byte("tuta-search-iv:" + passphrase))
	var keys cryptoindex.Keys
	copy(keys.DBKey[:], dbKey[:])
	copy(keys.IV[:], ivSeed[:12])
	return keys
}
