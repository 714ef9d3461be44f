package search

import (
	"context"
	"time"

	"github.com/tutao/search-core/internal/constraint"
	"github.com/tutao/search-core/internal/intersect"
	"github.com/tutao/search-core/internal/model"
	"github.com/tutao/search-core/internal/phrase"
	"github.com/tutao/search-core/internal/store"
)

// termRead is one term's raw contribution to a single page: the encrypted
// entries read from the selected chunks, and the cursor it advanced to.
type termRead struct {
	term     model.Term
	chunks   []model.EncryptedEntry
	nextRead *model.ChunkKey
}

// runAndSearch implements the non-suggestion branch of C10 step 4: read one
// page per term, intersect, phrase-reduce, and assemble into result. Pending
// entries from a prior page's overflow are promoted ahead of freshly merged
// candidates so they never require re-reading postings (§4.7).
func (o *Orchestrator) runAndSearch(ctx context.Context, terms []model.Term, restriction model.SearchRestriction, typeInfo model.TypeInfo, maxResults *int, result *model.SearchResult, timing *model.Timing) error {
	tx, err := o.store.BeginRead(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	reads, err := o.readTermChunks(ctx, tx, terms, typeInfo, result.LastReadSearchIndexRow, timing)
	if err != nil {
		return err
	}
	o.advanceCursors(result, reads)

	fresh, err := o.decryptFilterIntersect(reads, restriction, result.MatchWordOrder, timing)
	if err != nil {
		return err
	}

	candidates := promotePending(result, fresh)

	assembleStart := time.Now()
	err = o.pipeline.Assembler.Assemble(ctx, tx, candidates, result, maxResults)
	timing.AssembleNs += time.Since(assembleStart).Nanoseconds()
	return err
}

// promotePending prepends entries carried over in result.MoreResultsEntries
// (sorted newer-first, like fresh candidates) ahead of newly merged ones,
// then clears the pending list: Assemble will either place them or re-queue
// whatever still overflows maxResults.
func promotePending(result *model.SearchResult, fresh []model.Entry) []model.Entry {
	if len(result.MoreResultsEntries) == 0 {
		return fresh
	}
	candidates := make([]model.Entry, 0, len(result.MoreResultsEntries)+len(fresh))
	for _, p := range result.MoreResultsEntries {
		candidates = append(candidates, p.Entry)
	}
	candidates = append(candidates, fresh...)
	result.MoreResultsEntries = nil
	return candidates
}

// readTermChunks runs C1→C2→C3 for each term, bounded by the per-term chunk
// budget, using each term's existing cursor as the read-below bound. It
// stops short of decryption so C5's Phase A can filter on IdHash first.
func (o *Orchestrator) readTermChunks(ctx context.Context, tx *store.Tx, terms []model.Term, typeInfo model.TypeInfo, cursors []model.Cursor, timing *model.Timing) ([]termRead, error) {
	lastRead := make(map[model.Term]*model.ChunkKey, len(cursors))
	for _, c := range cursors {
		lastRead[c.Term] = c.LastReadChunkKey
	}

	reads := make([]termRead, len(terms))
	for i, term := range terms {
		key := o.pipeline.KeyEncoder.IndexKey(term)

		metaStart := time.Now()
		descs, err := o.pipeline.MetaReader.ReadMeta(ctx, tx, key, typeInfo)
		timing.MetaReadNs += time.Since(metaStart).Nanoseconds()
		if err != nil {
			return nil, err
		}

		selected, next := selectPage(descs, lastRead[term], o.chunkBudget)

		var chunks []model.EncryptedEntry
		for _, desc := range selected {
			fetchStart := time.Now()
			enc, err := o.pipeline.Fetcher.FetchChunk(ctx, tx, desc)
			timing.PostingFetchNs += time.Since(fetchStart).Nanoseconds()
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, enc...)
		}

		reads[i] = termRead{term: term, chunks: chunks, nextRead: next}
	}
	return reads, nil
}

// selectPage implements §4.11's page-selection rule: only descriptors with
// key < lastRead, accumulated while the summed size stays under budget.
// Returns the selection and the chunk key the cursor should advance to.
func selectPage(descs []model.ChunkDescriptor, lastRead *model.ChunkKey, budget uint32) ([]model.ChunkDescriptor, *model.ChunkKey) {
	var selected []model.ChunkDescriptor
	var cumulative uint32
	for _, d := range descs {
		if lastRead != nil && d.Key >= *lastRead {
			continue
		}
		if len(selected) > 0 && cumulative+d.Size >= budget {
			break
		}
		selected = append(selected, d)
		cumulative += d.Size
	}
	if len(selected) == 0 {
		return selected, lastRead
	}
	next := selected[len(selected)-1].Key
	return selected, &next
}

// advanceCursors writes each term's new lastReadChunkKey back into result,
// the only direction a cursor may move (§4.12).
func (o *Orchestrator) advanceCursors(result *model.SearchResult, reads []termRead) {
	byTerm := make(map[model.Term]*model.ChunkKey, len(reads))
	for _, r := range reads {
		byTerm[r.term] = r.nextRead
	}
	for i, c := range result.LastReadSearchIndexRow {
		if next, ok := byTerm[c.Term]; ok && next != nil {
			result.LastReadSearchIndexRow[i] = model.Cursor{Term: c.Term, LastReadChunkKey: next}
		}
	}
}

// decryptFilterIntersect runs C5 Phase A (hash intersection, before
// decryption), C4 (decrypt survivors), C6 (constraint filter), C5 Phase B
// (id intersection), and C7 (phrase reduction), in that order.
func (o *Orchestrator) decryptFilterIntersect(reads []termRead, restriction model.SearchRestriction, matchWordOrder bool, timing *model.Timing) ([]model.Entry, error) {
	encPerTerm := make([][]model.EncryptedEntry, len(reads))
	for i, r := range reads {
		encPerTerm[i] = r.chunks
	}

	intersectStart := time.Now()
	hashFiltered := intersect.PhaseA(encPerTerm)
	timing.IntersectNs += time.Since(intersectStart).Nanoseconds()

	bounds := constraint.ResolveBounds(restriction, o.currentIndexHorizon())
	filter := constraint.New(restriction, bounds)

	idSets := make([]map[string]model.Entry, len(reads))
	for i, enc := range hashFiltered {
		var entries []model.Entry
		for _, e := range enc {
			decryptStart := time.Now()
			entry, err := o.pipeline.Fetcher.DecryptEntry(e)
			timing.DecryptNs += time.Since(decryptStart).Nanoseconds()
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
		filterStart := time.Now()
		entries = filter.Apply(entries)
		timing.FilterNs += time.Since(filterStart).Nanoseconds()
		idSets[i] = intersect.AllByID(entries)
	}

	intersectStart = time.Now()
	intersected := intersect.PhaseB(idSets)
	timing.IntersectNs += time.Since(intersectStart).Nanoseconds()

	phraseStart := time.Now()
	out := phrase.Reduce(matchWordOrder, intersected)
	timing.PhraseNs += time.Since(phraseStart).Nanoseconds()
	return out, nil
}
