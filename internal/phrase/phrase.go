// Package phrase implements the Phrase Reducer (C7): collapses per-term
// positions to entries that occur in strictly consecutive positions within
// the same attribute, when the query requested strict word order.
package phrase

import "github.com/tutao/search-core/internal/model"

// Reduce implements C7. When matchWordOrder is false, term 0's filtered
// entries are already the answer set (any term's list works by convention;
// the first is chosen). When true, for each entry of term 0, every
// subsequent term i must have an entry for the same (id, attribute) whose
// positions are offset by exactly i from some surviving position in term 0.
func Reduce(matchWordOrder bool, perTerm []map[string]model.Entry) []model.Entry {
	if len(perTerm) == 0 {
		return nil
	}
	if !matchWordOrder || len(perTerm) == 1 {
		return values(perTerm[0])
	}

	out := make([]model.Entry, 0, len(perTerm[0]))
	for id, e1 := range perTerm[0] {
		positions := append([]uint32(nil), e1.Positions...)
		ok := true
		for i := 1; i < len(perTerm); i++ {
			ei, found := perTerm[i][id]
			if !found || ei.Attribute != e1.Attribute {
				ok = false
				break
			}
			positions = reducePositions(positions, ei.Positions, i)
			if len(positions) == 0 {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, e1)
		}
	}
	return out
}

// reducePositions keeps p ∈ P iff (p + offset) ∈ next.
func reducePositions(p []uint32, next []uint32, offset int) []uint32 {
	set := make(map[uint32]struct{}, len(next))
	for _, n := range next {
		set[n] = struct{}{}
	}
	out := p[:0]
	for _, v := range p {
		if _, ok := set[v+uint32(offset)]; ok {
			out = append(out, v)
		}
	}
	return out
}

func values(m map[string]model.Entry) []model.Entry {
	out := make([]model.Entry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	return out
}
