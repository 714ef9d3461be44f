package search

import (
	"context"
	"sort"
	"time"

	searcherrors "github.com/tutao/search-core/internal/errors"
	"github.com/tutao/search-core/internal/model"
	"github.com/tutao/search-core/internal/suggest"
)

// Suggestions bundles C9's external collaborators, at most one
// Collaborator/TypeRef pair per registered entity type per §6.
type Suggestions struct {
	Collaborators map[model.RestrictionType]suggest.Collaborator
	Loader        suggest.EntityLoader
	Registry      suggest.TypeModelRegistry
	TypeRef       func(model.RestrictionType) string
	Whitelist     map[model.RestrictionType]map[string]struct{}
	MaxDepth      int
}

// runSuggestionPath implements C9: activated when minSuggestionCount > 0.
func (o *Orchestrator) runSuggestionPath(ctx context.Context, terms []model.Term, restriction model.SearchRestriction, typeInfo model.TypeInfo, minSuggestionCount int, maxResults *int, result *model.SearchResult, timing *model.Timing) error {
	if len(terms) == 1 {
		return o.runSingleTermSuggestion(ctx, terms[0], restriction, typeInfo, maxResults, result, timing)
	}
	return o.runMultiTermSuggestion(ctx, terms, restriction, typeInfo, minSuggestionCount, maxResults, result, timing)
}

// runSingleTermSuggestion expands the sole term into itself plus its
// collaborator completions and unions their postings (S5): each expansion is
// searched independently and the surviving entries are merged by id, the
// first entry seen for an id being kept, before assembly.
func (o *Orchestrator) runSingleTermSuggestion(ctx context.Context, term model.Term, restriction model.SearchRestriction, typeInfo model.TypeInfo, maxResults *int, result *model.SearchResult, timing *model.Timing) error {
	collab := o.suggestions.Collaborators[restriction.Type]
	var expanded []model.Term
	if collab != nil {
		suggestStart := time.Now()
		var err error
		expanded, err = suggest.ExpandSingleTerm(ctx, collab, term)
		timing.SuggestNs += time.Since(suggestStart).Nanoseconds()
		if err != nil {
			return err
		}
	} else {
		expanded = []model.Term{term}
	}

	tx, err := o.store.BeginRead(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	union := make(map[string]model.Entry)
	for _, t := range expanded {
		reads, err := o.readTermChunks(ctx, tx, []model.Term{t}, typeInfo, nil, timing)
		if err != nil {
			return err
		}
		entries, err := o.decryptFilterIntersect(reads, restriction, false, timing)
		if err != nil {
			return err
		}
		for _, e := range entries {
			idStr := e.ID.String()
			if existing, ok := union[idStr]; !ok || e.ID.Compare(existing.ID) > 0 {
				union[idStr] = e
			}
		}
	}

	candidates := make([]model.Entry, 0, len(union))
	for _, e := range union {
		candidates = append(candidates, e)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID.Compare(candidates[j].ID) > 0 })

	assembleStart := time.Now()
	err = o.pipeline.Assembler.Assemble(ctx, tx, candidates, result, maxResults)
	timing.AssembleNs += time.Since(assembleStart).Nanoseconds()
	return err
}

// runMultiTermSuggestion implements S6: a normal AND-search on every term
// but the last, then a per-entity prefix post-filter on the last term,
// stopping once minSuggestionCount candidates pass.
func (o *Orchestrator) runMultiTermSuggestion(ctx context.Context, terms []model.Term, restriction model.SearchRestriction, typeInfo model.TypeInfo, minSuggestionCount int, maxResults *int, result *model.SearchResult, timing *model.Timing) error {
	lastTerm := terms[len(terms)-1]
	leading := terms[:len(terms)-1]

	tx, err := o.store.BeginRead(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	reads, err := o.readTermChunks(ctx, tx, leading, typeInfo, nil, timing)
	if err != nil {
		return err
	}
	candidates, err := o.decryptFilterIntersect(reads, restriction, false, timing)
	if err != nil {
		return err
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID.Compare(candidates[j].ID) > 0 })

	if o.suggestions.Loader == nil || o.suggestions.Registry == nil {
		return searcherrors.Internal("suggestion path requires an entity loader and type model registry", nil)
	}
	typeRef := restriction.Type.String()
	if o.suggestions.TypeRef != nil {
		typeRef = o.suggestions.TypeRef(restriction.Type)
	}
	whitelist := o.suggestions.Whitelist[restriction.Type]
	checker := suggest.NewPrefixChecker(o.suggestions.Registry, o.tokenize, o.suggestions.MaxDepth)

	passing := make([]model.Entry, 0, minSuggestionCount)
	suggestStart := time.Now()
	for _, candidate := range candidates {
		if len(passing) >= minSuggestionCount {
			break
		}
		ok, skip, err := suggest.PassesMultiTermFilter(ctx, o.suggestions.Loader, checker, typeRef, candidate.ID, lastTerm, whitelist)
		if err != nil {
			return err
		}
		if skip || !ok {
			continue
		}
		passing = append(passing, candidate)
	}
	timing.SuggestNs += time.Since(suggestStart).Nanoseconds()

	assembleStart := time.Now()
	err = o.pipeline.Assembler.Assemble(ctx, tx, passing, result, maxResults)
	timing.AssembleNs += time.Since(assembleStart).Nanoseconds()
	return err
}
