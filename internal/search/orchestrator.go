// Package search implements the Search Orchestrator (C10): tokenization,
// path selection, the index extension protocol, and the C1→C8 pipeline that
// produces and pages through a SearchResult, grounded on the teacher's
// internal/search.Engine composition-root shape (functional options over a
// mutex-free struct of collaborators).
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	searcherrors "github.com/tutao/search-core/internal/errors"
	"github.com/tutao/search-core/internal/model"
	"github.com/tutao/search-core/internal/store"
)

// ChunkBudgetPerTermPerPage bounds how many entries (summed descriptor
// sizes) C2's caller reads per term per page, per §4.11.
const ChunkBudgetPerTermPerPage uint32 = 1000

// Pipeline bundles the per-page collaborators C1-C8 are built from.
type Pipeline struct {
	KeyEncoder KeyEncoder
	MetaReader MetaReader
	Fetcher    Fetcher
	Assembler  Assembler
}

// KeyEncoder is C1's contract: a pure, deterministic term-to-key function.
type KeyEncoder interface {
	IndexKey(term model.Term) model.IndexKey
}

// MetaReader is C2's contract.
type MetaReader interface {
	ReadMeta(ctx context.Context, tx *store.Tx, key model.IndexKey, typeInfo model.TypeInfo) ([]model.ChunkDescriptor, error)
}

// Fetcher is C3+C4's contract.
type Fetcher interface {
	FetchChunk(ctx context.Context, tx *store.Tx, desc model.ChunkDescriptor) ([]model.EncryptedEntry, error)
	DecryptEntry(enc model.EncryptedEntry) (model.Entry, error)
}

// Assembler is C8's contract.
type Assembler interface {
	Assemble(ctx context.Context, tx *store.Tx, candidates []model.Entry, result *model.SearchResult, maxResults *int) error
}

// Recorder receives one telemetry record per completed Search or
// GetMoreSearchResults call. internal/telemetry.PageRecorder implements it.
type Recorder interface {
	Record(query string, timing *model.Timing, resultCount int)
}

// Orchestrator is C10. Its zero value is not usable; build one with New.
type Orchestrator struct {
	store    *store.Store
	pipeline Pipeline
	tokenize func(string) []model.Term
	indexer  Indexer

	typeInfo func(model.SearchRestriction) model.TypeInfo

	suggestions Suggestions

	chunkBudget uint32
	logger      *slog.Logger
	recorder    Recorder
	extendCB    *searcherrors.CircuitBreaker
}

// Option configures an Orchestrator, following the teacher's EngineOption
// functional-options pattern.
type Option func(*Orchestrator)

// WithSuggestions wires the Suggestion Path (C9) collaborators. Omitting it,
// a single-term minSuggestionCount > 0 query searches the term alone and a
// multi-term one fails with an internal error.
func WithSuggestions(s Suggestions) Option {
	return func(o *Orchestrator) { o.suggestions = s }
}

// WithTypeInfoResolver overrides how a SearchRestriction maps to the
// (app, type) pair the Metadata Reader filters on. The default maps every
// restriction to TypeInfo{App: 0, Type: uint8(restriction.Type)}.
func WithTypeInfoResolver(fn func(model.SearchRestriction) model.TypeInfo) Option {
	return func(o *Orchestrator) { o.typeInfo = fn }
}

// WithChunkBudget overrides ChunkBudgetPerTermPerPage, mostly for tests that
// want to force multiple pages with small fixtures.
func WithChunkBudget(budget uint32) Option {
	return func(o *Orchestrator) { o.chunkBudget = budget }
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithTelemetry attaches a Recorder that observes one record per completed
// page. Omitting it disables telemetry entirely.
func WithTelemetry(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// New builds an Orchestrator. tokenize must be the same tokenizer the
// indexer used to write postings (§6's determinism constraint on C1).
func New(st *store.Store, pipeline Pipeline, indexer Indexer, tokenize func(string) []model.Term, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       st,
		pipeline:    pipeline,
		tokenize:    tokenize,
		indexer:     indexer,
		chunkBudget: ChunkBudgetPerTermPerPage,
		logger:      slog.Default(),
		extendCB: searcherrors.NewCircuitBreaker("index-extension",
			searcherrors.WithMaxFailures(3),
			searcherrors.WithResetTimeout(30*time.Second)),
	}
	o.typeInfo = defaultTypeInfo
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func defaultTypeInfo(r model.SearchRestriction) model.TypeInfo {
	return model.TypeInfo{App: 0, Type: uint8(r.Type)}
}

// Search implements C10 step 1-5: tokenize, initialize the cursor, decide
// the search path, extend the index if required, run the pipeline, sort and
// attach timing.
func (o *Orchestrator) Search(ctx context.Context, query string, restriction model.SearchRestriction, minSuggestionCount int, maxResults *int) (*model.SearchResult, error) {
	timing := &model.Timing{}
	start := time.Now()
	var result *model.SearchResult
	defer func() {
		timing.TotalNs = time.Since(start).Nanoseconds()
		if o.recorder != nil && result != nil {
			o.recorder.Record(query, timing, len(result.Results))
		}
	}()

	tokenizeStart := time.Now()
	terms := o.tokenize(query)
	timing.TokenizeNs = time.Since(tokenizeStart).Nanoseconds()

	horizon := o.currentIndexHorizon()
	result = &model.SearchResult{
		Query:                 query,
		Restriction:           restriction,
		CurrentIndexTimestamp: horizon,
		MatchWordOrder:        matchWordOrder(query, terms),
		Debug:                 timing,
	}
	if len(terms) == 0 {
		return result, nil
	}
	for _, t := range terms {
		result.LastReadSearchIndexRow = append(result.LastReadSearchIndexRow, model.Cursor{Term: t})
	}

	if err := o.maybeExtendIndex(ctx, restriction); err != nil {
		return nil, err
	}

	typeInfo := o.typeInfo(restriction)

	if minSuggestionCount > 0 {
		if err := o.runSuggestionPath(ctx, terms, restriction, typeInfo, minSuggestionCount, maxResults, result, timing); err != nil {
			return nil, err
		}
	} else {
		if err := o.runAndSearch(ctx, terms, restriction, typeInfo, maxResults, result, timing); err != nil {
			return nil, err
		}
	}

	sortNewestFirst(result.Results)
	return result, nil
}

// GetMoreSearchResults implements §4.11: re-invokes the C1-C8 sub-pipeline
// with result as the existing cursor, paging moreResultCount additional
// entries into result.Results in place.
func (o *Orchestrator) GetMoreSearchResults(ctx context.Context, result *model.SearchResult, moreResultCount int) error {
	timing := &model.Timing{}
	start := time.Now()
	defer func() {
		timing.TotalNs = time.Since(start).Nanoseconds()
		if o.recorder != nil {
			o.recorder.Record(result.Query, timing, len(result.Results))
		}
	}()
	result.Debug = timing

	terms := make([]model.Term, 0, len(result.LastReadSearchIndexRow))
	for _, c := range result.LastReadSearchIndexRow {
		terms = append(terms, c.Term)
	}
	if len(terms) == 0 {
		return nil
	}

	typeInfo := o.typeInfo(result.Restriction)
	target := len(result.Results) + moreResultCount

	if err := o.runAndSearch(ctx, terms, result.Restriction, typeInfo, &target, result, timing); err != nil {
		return err
	}
	sortNewestFirst(result.Results)
	return nil
}

func (o *Orchestrator) currentIndexHorizon() time.Time {
	if o.indexer == nil {
		return model.FullIndexedTimestamp
	}
	return model.ResolveIndexHorizon(o.indexer.CurrentIndexTimestamp())
}

// matchWordOrder is set iff the query is fully enclosed in double quotes and
// has two or more terms, per §4.9 step 3.
func matchWordOrder(query string, terms []model.Term) bool {
	trimmed := strings.TrimSpace(query)
	quoted := len(trimmed) >= 2 && strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\"")
	return quoted && len(terms) >= 2
}

func sortNewestFirst(results []model.ResultEntry) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ID.Compare(results[j].ID) > 0
	})
}

// maybeExtendIndex implements §4.10: only Mail restrictions with an explicit
// end that falls before the current coverage trigger an extension request.
func (o *Orchestrator) maybeExtendIndex(ctx context.Context, restriction model.SearchRestriction) error {
	if o.indexer == nil || restriction.Type != model.Mail || restriction.End == nil {
		return nil
	}
	horizon := o.currentIndexHorizon()
	if !horizon.After(model.FullIndexedTimestamp) {
		return nil
	}
	if !horizon.After(*restriction.End) {
		return nil
	}

	target := startOfDay(*restriction.End)
	err := o.extendCB.Execute(func() error {
		return o.indexer.IndexMailboxes(ctx, target.UnixMilli())
	})
	if err != nil {
		if err == searcherrors.ErrCircuitOpen {
			o.logger.WarnContext(ctx, "index extension circuit open, searching with partial coverage",
				"target", target)
			return nil
		}
		if searcherrors.IsKind(err, searcherrors.KindCancelled) {
			o.logger.InfoContext(ctx, "index extension cancelled, searching with partial coverage",
				"target", target)
			return nil
		}
		return err
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
