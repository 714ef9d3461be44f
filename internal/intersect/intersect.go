// Package intersect implements the Intersector (C5): a two-phase AND-merge
// across per-term posting sets, first on the cheap 32-bit IdHash (via a
// roaring bitmap, avoiding unnecessary decryption), then on the decrypted
// plaintext id after filtering.
package intersect

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/tutao/search-core/internal/model"
)

// PhaseA computes H = ⋂_t { idHash(e) | e ∈ encEntriesForTerm_t } and
// returns, per term, only the encrypted entries whose hash survived the
// intersection. Collisions on IdHash are expected and tolerated here;
// Phase B (after decryption) eliminates the false positives.
func PhaseA(perTerm [][]model.EncryptedEntry) [][]model.EncryptedEntry {
	if len(perTerm) == 0 {
		return nil
	}

	bitmaps := make([]*roaring.Bitmap, len(perTerm))
	for i, entries := range perTerm {
		bm := roaring.New()
		for _, e := range entries {
			bm.Add(uint32(e.Hash))
		}
		bitmaps[i] = bm
	}

	intersection := bitmaps[0].Clone()
	for _, bm := range bitmaps[1:] {
		intersection.And(bm)
	}

	out := make([][]model.EncryptedEntry, len(perTerm))
	for i, entries := range perTerm {
		kept := make([]model.EncryptedEntry, 0, len(entries))
		for _, e := range entries {
			if intersection.Contains(uint32(e.Hash)) {
				kept = append(kept, e)
			}
		}
		out[i] = kept
	}
	return out
}

// PhaseB computes I = ⋂_t { id(e) } over decrypted, already-filtered
// entries indexed by id (see AllByID), keeping only ids present in every
// term's set. Unlike PhaseA it returns one map per term rather than
// collapsing to a single list: the Phrase Reducer (C7) needs each term's
// own surviving Entry, since positions differ per term for the same id.
func PhaseB(perTerm []map[string]model.Entry) []map[string]model.Entry {
	if len(perTerm) == 0 {
		return nil
	}

	common := make(map[string]struct{}, len(perTerm[0]))
	for id := range perTerm[0] {
		common[id] = struct{}{}
	}
	for _, set := range perTerm[1:] {
		for id := range common {
			if _, ok := set[id]; !ok {
				delete(common, id)
			}
		}
	}

	out := make([]map[string]model.Entry, len(perTerm))
	for i, set := range perTerm {
		m := make(map[string]model.Entry, len(common))
		for id := range common {
			if e, ok := set[id]; ok {
				m[id] = e
			}
		}
		out[i] = m
	}
	return out
}

// AllByID indexes every term's decrypted entries by id, used by the Phrase
// Reducer (C7) to look up term i's entry for a given id without re-scanning.
func AllByID(entries []model.Entry) map[string]model.Entry {
	out := make(map[string]model.Entry, len(entries))
	for _, e := range entries {
		out[e.ID.String()] = e
	}
	return out
}
