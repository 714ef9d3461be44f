// Package suggest implements the Suggestion Path (C9): prefix completion of
// the last query term, either by union-searching completions (single-term
// query) or by post-filtering an AND-search result set against a prefix
// check over whitelisted attributes (multi-term query).
package suggest

import (
	"context"
	"strings"

	searcherrors "github.com/tutao/search-core/internal/errors"
	"github.com/tutao/search-core/internal/model"
)

// Collaborator is the external suggestion/prefix-trie maintainer contract
// from §6: getSuggestions(term) per entity type, at most one per type.
type Collaborator interface {
	GetSuggestions(ctx context.Context, term model.Term) ([]model.Term, error)
}

// EntityLoader is the external entity loader contract from §6.
type EntityLoader interface {
	Load(ctx context.Context, typeRef string, id model.EntityID) (Entity, error)
}

// Entity is a tagged value tree read via the type model (Design Notes:
// "dynamic entity shape"), rather than through ambient reflection.
type Entity struct {
	Values       map[string]Value
	Associations map[string]AssocValue
}

// Value is one scalar or aggregate attribute value.
type Value struct {
	IsAggregate bool
	String      string
	Aggregates  []Entity
}

// AssocValue is one association's resolved targets, recursively walkable.
type AssocValue struct {
	RefType string
	Targets []model.EntityID
}

// TypeModel exposes the value/association shape of one entity type, per the
// type model registry contract in §6.
type TypeModel struct {
	Values       map[string]AttributeInfo
	Associations map[string]AssociationInfo
}

// AttributeKind enumerates the attribute-value kinds the type model can report.
type AttributeKind uint8

const (
	KindString AttributeKind = iota
	KindAggregation
)

// AttributeInfo describes one scalar or aggregate value attribute.
type AttributeInfo struct {
	ID   int
	Kind AttributeKind
}

// Cardinality enumerates association cardinalities; Any matches §6's "Any".
type Cardinality uint8

const (
	CardinalityOne Cardinality = iota
	CardinalityAny
)

// AssociationInfo describes one association, potentially cyclic via RefType.
type AssociationInfo struct {
	ID          int
	RefType     string
	Cardinality Cardinality
}

// TypeModelRegistry resolves a type reference to its TypeModel.
type TypeModelRegistry interface {
	ResolveTypeReference(typeRef string) (TypeModel, error)
}

// PrefixChecker recursively descends an entity's whitelisted attributes and
// aggregation associations looking for a tokenized word with the given
// prefix, bounding recursion with a visited-type set to tolerate cyclic
// type models (Design Notes: "cyclic type models").
type PrefixChecker struct {
	registry  TypeModelRegistry
	tokenize  func(string) []model.Term
	maxDepth  int
}

// NewPrefixChecker builds a checker bound to a type model registry and
// tokenizer. maxDepth bounds recursion depth as a fallback alongside the
// visited-type set.
func NewPrefixChecker(registry TypeModelRegistry, tokenize func(string) []model.Term, maxDepth int) *PrefixChecker {
	if maxDepth <= 0 {
		maxDepth = 8
	}
	return &PrefixChecker{registry: registry, tokenize: tokenize, maxDepth: maxDepth}
}

// HasPrefixMatch reports whether any whitelisted attribute of entity
// (resolved via typeRef) contains a tokenized word with prefix lastTerm.
func (c *PrefixChecker) HasPrefixMatch(entity Entity, typeRef string, lastTerm model.Term, whitelist map[string]struct{}) (bool, error) {
	return c.descend(entity, typeRef, lastTerm, whitelist, make(map[string]struct{}), 0)
}

func (c *PrefixChecker) descend(entity Entity, typeRef string, lastTerm model.Term, whitelist, visited map[string]struct{}, depth int) (bool, error) {
	if depth > c.maxDepth {
		return false, nil
	}
	if _, seen := visited[typeRef]; seen {
		return false, nil
	}
	visited[typeRef] = struct{}{}
	defer delete(visited, typeRef)

	tm, err := c.registry.ResolveTypeReference(typeRef)
	if err != nil {
		return false, err
	}

	for name, v := range entity.Values {
		if len(whitelist) > 0 {
			if _, ok := whitelist[name]; !ok {
				continue
			}
		}
		info, known := tm.Values[name]
		if !known || info.Kind != KindString {
			continue
		}
		for _, word := range c.tokenize(v.String) {
			if strings.HasPrefix(string(word), string(lastTerm)) {
				return true, nil
			}
		}
	}

	for name, av := range entity.Associations {
		assocInfo, known := tm.Associations[name]
		if !known {
			continue
		}
		_ = assocInfo
		val, hasValue := entity.Values[name]
		if !hasValue || !val.IsAggregate {
			continue
		}
		for _, agg := range val.Aggregates {
			match, err := c.descend(agg, av.RefType, lastTerm, whitelist, visited, depth+1)
			if err != nil {
				return false, err
			}
			if match {
				return true, nil
			}
		}
	}
	return false, nil
}

// ExpandSingleTerm implements the single-term branch of C9: asks the
// collaborator for completions and returns the sole term plus its
// completions, to be searched as a union (synonyms), not an intersection.
func ExpandSingleTerm(ctx context.Context, collab Collaborator, term model.Term) ([]model.Term, error) {
	completions, err := collab.GetSuggestions(ctx, term)
	if err != nil {
		return nil, err
	}
	out := make([]model.Term, 0, len(completions)+1)
	out = append(out, term)
	out = append(out, completions...)
	return out, nil
}

// PassesMultiTermFilter implements the multi-term branch's per-entity check:
// NotFound/NotAuthorized on load are treated as "skip" per §4.8 and §7.
func PassesMultiTermFilter(ctx context.Context, loader EntityLoader, checker *PrefixChecker, typeRef string, id model.EntityID, lastTerm model.Term, whitelist map[string]struct{}) (pass bool, skip bool, err error) {
	entity, err := loader.Load(ctx, typeRef, id)
	if err != nil {
		if searcherrors.IsKind(err, searcherrors.KindNotFound) || searcherrors.IsKind(err, searcherrors.KindNotAuthorized) {
			return false, true, nil
		}
		return false, false, err
	}
	ok, err := checker.HasPrefixMatch(entity, typeRef, lastTerm, whitelist)
	if err != nil {
		return false, false, err
	}
	return ok, false, nil
}
