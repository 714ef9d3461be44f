package constraint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tutao/search-core/internal/model"
)

func TestAccept_AttributeWhitelist(t *testing.T) {
	r := model.SearchRestriction{AttributeIDs: []uint8{1, 2}}
	f := New(r, Bounds{})

	assert.True(t, f.Accept(model.Entry{Attribute: 1}))
	assert.False(t, f.Accept(model.Entry{Attribute: 3}))
}

func TestAccept_NoWhitelistAcceptsAnyAttribute(t *testing.T) {
	f := New(model.SearchRestriction{}, Bounds{})

	assert.True(t, f.Accept(model.Entry{Attribute: 9}))
}

func TestAccept_TimeWindow(t *testing.T) {
	minID := model.EntityID{0, 0, 0, 0, 0, 0, 0, 50}
	maxID := model.EntityID{0, 0, 0, 0, 0, 0, 0, 100}
	f := New(model.SearchRestriction{}, Bounds{MinID: minID, MaxID: maxID})

	assert.False(t, f.Accept(model.Entry{ID: model.EntityID{0, 0, 0, 0, 0, 0, 0, 40}}))
	assert.True(t, f.Accept(model.Entry{ID: model.EntityID{0, 0, 0, 0, 0, 0, 0, 60}}))
	assert.False(t, f.Accept(model.Entry{ID: model.EntityID{0, 0, 0, 0, 0, 0, 0, 100}}))
}

func TestResolveBounds_EndSetBecomesMinID(t *testing.T) {
	end := time.UnixMilli(1000)
	r := model.SearchRestriction{End: &end}

	b := ResolveBounds(r, time.UnixMilli(9999))

	assert.Equal(t, model.TimestampToID(end), b.MinID)
}

func TestResolveBounds_MailWithoutEndUsesHorizon(t *testing.T) {
	horizon := time.UnixMilli(5000)
	r := model.SearchRestriction{Type: model.Mail}

	b := ResolveBounds(r, horizon)

	assert.Equal(t, model.TimestampToID(horizon), b.MinID)
}

func TestResolveBounds_StartSetBecomesExclusiveMaxID(t *testing.T) {
	start := time.UnixMilli(2000)
	r := model.SearchRestriction{Start: &start}

	b := ResolveBounds(r, time.Time{})

	assert.Equal(t, model.TimestampToID(start.Add(time.Millisecond)), b.MaxID)
}

func TestApply_FiltersInPlace(t *testing.T) {
	f := New(model.SearchRestriction{AttributeIDs: []uint8{1}}, Bounds{})
	entries := []model.Entry{{Attribute: 1}, {Attribute: 2}, {Attribute: 1}}

	got := f.Apply(entries)

	assert.Len(t, got, 2)
}
