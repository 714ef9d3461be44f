package app

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tutao/search-core/internal/model"
)

// ResultEntryState is the JSON-transportable form of model.ResultEntry.
type ResultEntryState struct {
	ListID string `json:"listId"`
	ID     string `json:"id"`
}

// EntryState is the JSON-transportable form of model.Entry, as carried in
// SearchResultState.MoreResultsEntries.
type EntryState struct {
	ID        string   `json:"id"`
	Attribute uint8    `json:"attribute"`
	Positions []uint32 `json:"positions"`
	Hash      uint32   `json:"hash"`
}

// CursorState is the JSON-transportable form of model.Cursor.
type CursorState struct {
	Term             string  `json:"term"`
	LastReadChunkKey *uint64 `json:"lastReadChunkKey,omitempty"`
}

// RestrictionState is the JSON-transportable form of model.SearchRestriction.
type RestrictionState struct {
	Type         string  `json:"type"`
	AttributeIDs []uint8 `json:"attributeIds,omitempty"`
	ListID       *string `json:"listId,omitempty"`
	Start        *string `json:"start,omitempty"`
	End          *string `json:"end,omitempty"`
}

// SearchResultState is the wire-transportable mirror of model.SearchResult.
// A search tool call returns it and a get-more call takes it back: since
// model.SearchResult is itself the pagination cursor, round-tripping this
// state is all a stateless caller (a CLI process, an MCP tool client) needs
// to resume paging without the server keeping per-session state.
type SearchResultState struct {
	Query                 string             `json:"query"`
	Restriction           RestrictionState   `json:"restriction"`
	Results               []ResultEntryState `json:"results"`
	CurrentIndexTimestamp string             `json:"currentIndexTimestamp"`
	MoreResultsEntries    []EntryState       `json:"moreResultsEntries,omitempty"`
	Cursor                []CursorState      `json:"cursor"`
	MatchWordOrder        bool               `json:"matchWordOrder"`
}

// ToState converts a model.SearchResult into its JSON-transportable mirror.
func ToState(r *model.SearchResult) SearchResultState {
	state := SearchResultState{
		Query:                 r.Query,
		Restriction:           restrictionToState(r.Restriction),
		Results:               make([]ResultEntryState, len(r.Results)),
		CurrentIndexTimestamp: r.CurrentIndexTimestamp.Format(time.RFC3339Nano),
		Cursor:                make([]CursorState, len(r.LastReadSearchIndexRow)),
		MatchWordOrder:        r.MatchWordOrder,
	}
	for i, e := range r.Results {
		state.Results[i] = ResultEntryState{ListID: string(e.ListID), ID: base64.StdEncoding.EncodeToString(e.ID)}
	}
	for i, c := range r.LastReadSearchIndexRow {
		state.Cursor[i] = cursorToState(c)
	}
	if len(r.MoreResultsEntries) > 0 {
		state.MoreResultsEntries = make([]EntryState, len(r.MoreResultsEntries))
		for i, p := range r.MoreResultsEntries {
			state.MoreResultsEntries[i] = entryToState(p.Entry)
		}
	}
	return state
}

// FromState reconstructs a model.SearchResult from its wire form.
func FromState(s SearchResultState) (*model.SearchResult, error) {
	horizon, err := time.Parse(time.RFC3339Nano, s.CurrentIndexTimestamp)
	if err != nil {
		return nil, fmt.Errorf("parse currentIndexTimestamp: %w", err)
	}
	restriction, err := restrictionFromState(s.Restriction)
	if err != nil {
		return nil, fmt.Errorf("parse restriction: %w", err)
	}

	r := &model.SearchResult{
		Query:                 s.Query,
		Restriction:           restriction,
		CurrentIndexTimestamp: horizon,
		MatchWordOrder:        s.MatchWordOrder,
		Results:               make([]model.ResultEntry, len(s.Results)),
	}
	for i, e := range s.Results {
		id, err := base64.StdEncoding.DecodeString(e.ID)
		if err != nil {
			return nil, fmt.Errorf("decode result id: %w", err)
		}
		r.Results[i] = model.ResultEntry{ListID: model.ListID(e.ListID), ID: id}
	}
	r.LastReadSearchIndexRow = make([]model.Cursor, len(s.Cursor))
	for i, c := range s.Cursor {
		r.LastReadSearchIndexRow[i] = model.Cursor{Term: model.Term(c.Term), LastReadChunkKey: chunkKeyPtr(c.LastReadChunkKey)}
	}
	for _, p := range s.MoreResultsEntries {
		entry, err := entryFromState(p)
		if err != nil {
			return nil, fmt.Errorf("parse pending entry: %w", err)
		}
		r.MoreResultsEntries = append(r.MoreResultsEntries, model.PendingEntry{Entry: entry})
	}
	return r, nil
}

func cursorToState(c model.Cursor) CursorState {
	out := CursorState{Term: string(c.Term)}
	if c.LastReadChunkKey != nil {
		v := uint64(*c.LastReadChunkKey)
		out.LastReadChunkKey = &v
	}
	return out
}

func chunkKeyPtr(v *uint64) *model.ChunkKey {
	if v == nil {
		return nil
	}
	k := model.ChunkKey(*v)
	return &k
}

func entryToState(e model.Entry) EntryState {
	return EntryState{
		ID:        base64.StdEncoding.EncodeToString(e.ID),
		Attribute: e.Attribute,
		Positions: e.Positions,
		Hash:      uint32(e.Hash),
	}
}

func entryFromState(s EntryState) (model.Entry, error) {
	id, err := base64.StdEncoding.DecodeString(s.ID)
	if err != nil {
		return model.Entry{}, err
	}
	return model.Entry{ID: id, Attribute: s.Attribute, Positions: s.Positions, Hash: model.IdHash(s.Hash)}, nil
}

func restrictionToState(r model.SearchRestriction) RestrictionState {
	out := RestrictionState{Type: r.Type.String(), AttributeIDs: r.AttributeIDs}
	if r.ListID != nil {
		v := string(*r.ListID)
		out.ListID = &v
	}
	if r.Start != nil {
		v := r.Start.Format(time.RFC3339Nano)
		out.Start = &v
	}
	if r.End != nil {
		v := r.End.Format(time.RFC3339Nano)
		out.End = &v
	}
	return out
}

func restrictionFromState(s RestrictionState) (model.SearchRestriction, error) {
	out := model.SearchRestriction{Type: ParseRestrictionType(s.Type), AttributeIDs: s.AttributeIDs}
	if s.ListID != nil {
		v := model.ListID(*s.ListID)
		out.ListID = &v
	}
	if s.Start != nil {
		t, err := time.Parse(time.RFC3339Nano, *s.Start)
		if err != nil {
			return out, fmt.Errorf("parse start: %w", err)
		}
		out.Start = &t
	}
	if s.End != nil {
		t, err := time.Parse(time.RFC3339Nano, *s.End)
		if err != nil {
			return out, fmt.Errorf("parse end: %w", err)
		}
		out.End = &t
	}
	return out, nil
}

// ParseRestrictionType maps a restriction type name or numeric string to a
// model.RestrictionType, defaulting to Mail (the only type the Index
// Extension Protocol and demo entity model register).
func ParseRestrictionType(s string) model.RestrictionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mail":
		return model.Mail
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 255 {
		return model.RestrictionType(n)
	}
	return model.Mail
}

// ParseTime parses an RFC3339 timestamp for the --start/--end CLI flags and
// the search tool's start/end input fields.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
