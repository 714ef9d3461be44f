// Package constraint implements the Constraint Filter (C6): the
// attribute-id whitelist and id-range (time-window) filter applied to
// decrypted entries before phrase reduction and assembly.
package constraint

import (
	"time"

	"github.com/tutao/search-core/internal/model"
)

// Bounds is the resolved [minId, maxId) window a Filter accepts, derived
// from a SearchRestriction's Start/End per §4.5 and the open question in
// Design Notes §9 (endTimestamp falls back to the index horizon for Mail,
// or FULL_INDEXED_TIMESTAMP otherwise; NOTHING_INDEXED_TIMESTAMP means now).
type Bounds struct {
	MinID model.EntityID
	MaxID model.EntityID // nil means unbounded
}

// ResolveBounds computes minId/maxId the way §4.5 and §9 specify:
//
//	minId = ts→id(endTimestamp)
//	maxId = ts→id(startTimestamp + 1ms)   if start is set
//
// endTimestamp defaults to currentIndexHorizon for Mail restrictions when
// End is unset, or to "full history" (no lower bound) otherwise.
func ResolveBounds(r model.SearchRestriction, currentIndexHorizon time.Time) Bounds {
	var minID model.EntityID
	if r.End != nil {
		minID = model.TimestampToID(*r.End)
	} else if r.Type == model.Mail {
		minID = model.TimestampToID(currentIndexHorizon)
	}
	// else: full history, minID stays nil (unbounded below).

	var maxID model.EntityID
	if r.Start != nil {
		maxID = model.TimestampToID(r.Start.Add(time.Millisecond))
	}
	return Bounds{MinID: minID, MaxID: maxID}
}

// Filter holds the resolved bounds and attribute whitelist for one search page.
type Filter struct {
	restriction model.SearchRestriction
	bounds      Bounds
}

// New builds a Filter for the given restriction and resolved bounds.
func New(restriction model.SearchRestriction, bounds Bounds) Filter {
	return Filter{restriction: restriction, bounds: bounds}
}

// Accept implements C6:
//
//	accept(entry) := (attributeIds is none ∨ entry.attribute ∈ attributeIds)
//	              ∧ entry.id ≥ minId
//	              ∧ (maxId is none ∨ entry.id < maxId)
func (f Filter) Accept(e model.Entry) bool {
	if !f.restriction.HasAttribute(e.Attribute) {
		return false
	}
	if f.bounds.MinID != nil && e.ID.Compare(f.bounds.MinID) < 0 {
		return false
	}
	if f.bounds.MaxID != nil && e.ID.Compare(f.bounds.MaxID) >= 0 {
		return false
	}
	return true
}

// Apply filters a slice of entries in place, returning only accepted ones.
func (f Filter) Apply(entries []model.Entry) []model.Entry {
	out := entries[:0]
	for _, e := range entries {
		if f.Accept(e) {
			out = append(out, e)
		}
	}
	return out
}
