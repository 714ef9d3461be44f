// Package assemble implements the Result Assembler (C8): resolves
// list-id, de-duplicates against previously returned results, sorts
// newest-first, and honors maxResults and cursor advancement.
package assemble

import (
	"context"
	"encoding/base64"
	"sort"

	"golang.org/x/sync/errgroup"

	searcherrors "github.com/tutao/search-core/internal/errors"
	"github.com/tutao/search-core/internal/model"
	"github.com/tutao/search-core/internal/store"
)

// EntityLookup resolves one entry's ElementData from the element store,
// used to derive the entry's ListID. It returns only the ListID; the
// suggestion path loads full entities through suggest.EntityLoader instead.
type EntityLookup interface {
	Lookup(ctx context.Context, tx *store.Tx, id model.EntityID) (model.ListID, bool, error)
}

// Assembler runs C8's bounded-concurrency element lookups and result paging.
type Assembler struct {
	lookup      EntityLookup
	concurrency int
}

// New builds an Assembler with the given bounded concurrency cap (§4.7
// suggests 5 in-flight lookups).
func New(lookup EntityLookup, concurrency int) *Assembler {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Assembler{lookup: lookup, concurrency: concurrency}
}

// resolved pairs a candidate entry with its resolved list id, or marks it
// skip when the lookup failed in a swallowable way; it carries no error.
type resolved struct {
	entry  model.Entry
	listID model.ListID
	skip   bool
}

// Assemble implements C8. candidates must already be sorted/filtered by
// C5-C7; Assemble re-sorts by id descending per the ordering guarantee,
// resolves list ids with bounded parallelism inside one transaction,
// de-duplicates against result.Results, applies an optional ListID
// restriction, and splits the overflow into moreResultsEntries.
func (a *Assembler) Assemble(ctx context.Context, tx *store.Tx, candidates []model.Entry, result *model.SearchResult, maxResults *int) error {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID.Compare(candidates[j].ID) > 0
	})

	already := make(map[string]struct{}, len(result.Results))
	for _, r := range result.Results {
		already[r.ID.String()] = struct{}{}
	}

	toResolve := make([]model.Entry, 0, len(candidates))
	for _, e := range candidates {
		if _, dup := already[e.ID.String()]; dup {
			continue
		}
		toResolve = append(toResolve, e)
	}

	resolvedEntries, err := a.resolveAll(ctx, tx, toResolve)
	if err != nil {
		return err
	}

	for _, r := range resolvedEntries {
		if r.skip {
			continue
		}
		if result.Restriction.ListID != nil && r.listID != *result.Restriction.ListID {
			continue
		}
		if maxResults != nil && len(result.Results) >= *maxResults {
			result.MoreResultsEntries = append(result.MoreResultsEntries, model.PendingEntry{Entry: r.entry})
			continue
		}
		idStr := r.entry.ID.String()
		if _, dup := already[idStr]; dup {
			continue
		}
		already[idStr] = struct{}{}
		result.Results = append(result.Results, model.ResultEntry{ListID: r.listID, ID: r.entry.ID})
	}
	return nil
}

// resolveAll issues bounded-parallel lookups, preserving candidate order in
// the returned slice so later de-duplication/restriction stays deterministic.
func (a *Assembler) resolveAll(ctx context.Context, tx *store.Tx, candidates []model.Entry) ([]resolved, error) {
	out := make([]resolved, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, a.concurrency)

	for i, e := range candidates {
		i, e := i, e
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			listID, ok, err := a.lookup.Lookup(gctx, tx, e.ID)
			if err != nil {
				if searcherrors.IsKind(err, searcherrors.KindNotFound) || searcherrors.IsKind(err, searcherrors.KindNotAuthorized) {
					out[i] = resolved{skip: true}
					return nil
				}
				return err
			}
			if !ok {
				out[i] = resolved{skip: true}
				return nil
			}
			out[i] = resolved{entry: e, listID: listID}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// elementLookup is the default EntityLookup, reading ElementData directly
// from the store, keyed by the base64-encoded encrypted id.
type elementLookup struct {
	encryptID func(model.EntityID) string
}

// NewElementLookup builds the default lookup used by the orchestrator: the
// element store is keyed by base64(encrypted id), so the caller supplies
// the same encryption the indexer used to write it.
func NewElementLookup(encryptID func(model.EntityID) string) EntityLookup {
	return &elementLookup{encryptID: encryptID}
}

func (l *elementLookup) Lookup(ctx context.Context, tx *store.Tx, id model.EntityID) (model.ListID, bool, error) {
	key := l.encryptID(id)
	row, ok, err := tx.GetElement(ctx, key)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, searcherrors.NotFound(searcherrors.ErrCodeEntityNotFound, "element not found", nil)
	}
	return model.ListID(row.ListID), true, nil
}

// Base64EncryptedID is an id encoder for NewElementLookup for a store whose
// element keys are simply base64 of the raw id bytes (no encryption step).
// The app and the search test harness wire Codec.EncryptID instead.
func Base64EncryptedID(id model.EntityID) string {
	return base64.StdEncoding.EncodeToString(id)
}
