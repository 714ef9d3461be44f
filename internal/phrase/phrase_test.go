package phrase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tutao/search-core/internal/model"
)

func idx(entries ...model.Entry) map[string]model.Entry {
	m := make(map[string]model.Entry)
	for _, e := range entries {
		m[e.ID.String()] = e
	}
	return m
}

func TestReduce_NoWordOrderReturnsFirstTermEntries(t *testing.T) {
	term0 := idx(model.Entry{ID: model.EntityID{1}}, model.Entry{ID: model.EntityID{2}})

	got := Reduce(false, []map[string]model.Entry{term0})

	assert.Len(t, got, 2)
}

func TestReduce_WordOrder_KeepsOnlyConsecutivePositionsSameAttribute(t *testing.T) {
	// id 100: alpha pos [3], beta pos [4] -> consecutive, kept.
	// id 80: alpha pos [2], beta pos [7] -> not consecutive, dropped.
	alpha := idx(
		model.Entry{ID: model.EntityID{100}, Attribute: 1, Positions: []uint32{3}},
		model.Entry{ID: model.EntityID{80}, Attribute: 1, Positions: []uint32{2}},
	)
	beta := idx(
		model.Entry{ID: model.EntityID{100}, Attribute: 1, Positions: []uint32{4}},
		model.Entry{ID: model.EntityID{80}, Attribute: 1, Positions: []uint32{7}},
	)

	got := Reduce(true, []map[string]model.Entry{alpha, beta})

	assert.Len(t, got, 1)
	assert.Equal(t, model.EntityID{100}, got[0].ID)
}

func TestReduce_WordOrder_DropsWhenAttributeDiffers(t *testing.T) {
	alpha := idx(model.Entry{ID: model.EntityID{1}, Attribute: 1, Positions: []uint32{3}})
	beta := idx(model.Entry{ID: model.EntityID{1}, Attribute: 2, Positions: []uint32{4}})

	got := Reduce(true, []map[string]model.Entry{alpha, beta})

	assert.Empty(t, got)
}

func TestReduce_WordOrder_MissingEntryInSecondTermDrops(t *testing.T) {
	alpha := idx(model.Entry{ID: model.EntityID{1}, Attribute: 1, Positions: []uint32{1}})
	beta := idx(model.Entry{ID: model.EntityID{2}, Attribute: 1, Positions: []uint32{2}})

	got := Reduce(true, []map[string]model.Entry{alpha, beta})

	assert.Empty(t, got)
}

func TestReduce_WordOrder_ThreeTerms(t *testing.T) {
	a := idx(model.Entry{ID: model.EntityID{1}, Attribute: 1, Positions: []uint32{1, 5}})
	b := idx(model.Entry{ID: model.EntityID{1}, Attribute: 1, Positions: []uint32{2, 9}})
	c := idx(model.Entry{ID: model.EntityID{1}, Attribute: 1, Positions: []uint32{3}})

	got := Reduce(true, []map[string]model.Entry{a, b, c})

	assert.Len(t, got, 1)
}
