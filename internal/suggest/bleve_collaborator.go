package suggest

import (
	"context"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/tutao/search-core/internal/model"
)

// BleveCollaborator is the default, in-process implementation of the
// suggestion collaborator contract: a small bleve index over previously
// seen terms, queried by prefix, the way the teacher's BleveBM25Index
// builds and queries an in-process index over document content.
type BleveCollaborator struct {
	mu    sync.RWMutex
	index bleve.Index
	field string
}

// seenTerm is the document shape indexed for each observed term.
type seenTerm struct {
	Term string `json:"term"`
}

// NewBleveCollaborator builds an in-memory bleve index for term suggestions.
func NewBleveCollaborator() (*BleveCollaborator, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, err
	}
	return &BleveCollaborator{index: idx, field: "term"}, nil
}

// Observe records a term as having been indexed, so future prefix queries
// can surface it as a completion. Grounded on the indexer relationship: the
// real indexer collaborator is expected to call this as it writes postings.
func (b *BleveCollaborator) Observe(term model.Term) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Index(string(term), seenTerm{Term: string(term)})
}

// GetSuggestions implements Collaborator: completions of term via a prefix
// query over observed terms, excluding the term itself.
func (b *BleveCollaborator) GetSuggestions(ctx context.Context, term model.Term) ([]model.Term, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	query := bleve.NewPrefixQuery(string(term))
	query.SetField(b.field)
	req := bleve.NewSearchRequest(query)
	req.Size = 50

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make([]model.Term, 0, len(result.Hits))
	for _, hit := range result.Hits {
		if model.Term(hit.ID) == term {
			continue
		}
		out = append(out, model.Term(hit.ID))
	}
	return out, nil
}

// Close releases the underlying bleve index.
func (b *BleveCollaborator) Close() error {
	return b.index.Close()
}
