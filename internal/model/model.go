// Package model defines the shared data types that flow through the search
// pipeline: terms and keys (C1), metadata and postings (C2-C4), restrictions
// (C6), and the search result / pagination cursor (C8, C10).
package model

import "time"

// Term is a normalized unicode substring produced by the tokenizer:
// case-folded, punctuation-stripped. It is never raw user input.
type Term string

// IndexKey is the opaque, fixed-width output of the deterministic keyed
// encoding over (dbKey, iv, term). Equal terms always produce equal
// IndexKeys; it is the lookup key into the metadata store.
type IndexKey string

// ChunkKey addresses one PostingChunk in the posting store. Chunk ordering
// is significant: larger keys were written more recently.
type ChunkKey uint64

// ChunkDescriptor is one row of a decrypted Metadata: it points at a
// PostingChunk and restricts it to one entity kind.
type ChunkDescriptor struct {
	Key  ChunkKey
	Size uint32
	App  uint8
	Type uint8
}

// Metadata is the decrypted form of a MetaRow: an ordered sequence of
// ChunkDescriptor, stored ascending by Key, more-recent data at larger keys.
type Metadata struct {
	Rows []ChunkDescriptor
}

// TypeInfo identifies an entity kind by its (app, type) pair, matching the
// ChunkDescriptor.App/Type fields a Metadata Reader filters against.
type TypeInfo struct {
	App  uint8
	Type uint8
}

// EntityID is bytewise comparable; a larger value means a newer entity.
type EntityID []byte

// String renders the id as a stable, comparable hex string for use as a map key.
func (id EntityID) String() string {
	const hex = "0123456789abcdef"
	buf := make([]byte, len(id)*2)
	for i, b := range id {
		buf[i*2] = hex[b>>4]
		buf[i*2+1] = hex[b&0x0f]
	}
	return string(buf)
}

// Compare returns -1, 0, or 1 comparing two ids bytewise, the ordering the
// index relies on to mean "larger id, newer entity".
func (id EntityID) Compare(other EntityID) int {
	n := len(id)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if id[i] != other[i] {
			if id[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(id) < len(other):
		return -1
	case len(id) > len(other):
		return 1
	default:
		return 0
	}
}

// IdHash is a 32-bit hash of the ciphertext of the encrypted id prefix, used
// as a cheap pre-intersect key before paying the cost of decrypting an entry.
type IdHash uint32

// EncryptedEntry is one framed block of a PostingChunk, not yet decrypted.
type EncryptedEntry struct {
	Hash       IdHash
	Ciphertext []byte
}

// Entry is the decrypted form of an EncryptedEntry.
type Entry struct {
	ID         EntityID
	Attribute  uint8
	Positions  []uint32
	Hash       IdHash
}

// ListID identifies the container (e.g. a mail folder) an entity belongs to.
type ListID string

// RestrictionType selects the entity kind a search is scoped to.
type RestrictionType uint8

// Mail is the one RestrictionType the Index Extension Protocol treats specially.
const Mail RestrictionType = 1

// String renders a RestrictionType as the type reference name the type
// model registry and entity loader expect.
func (t RestrictionType) String() string {
	switch t {
	case Mail:
		return "Mail"
	default:
		return "Unknown"
	}
}

// SearchRestriction scopes a search to an entity kind, optionally narrowing
// by attribute whitelist, container, and a time window translated to ids.
type SearchRestriction struct {
	Type         RestrictionType
	AttributeIDs []uint8
	ListID       *ListID
	Start        *time.Time
	End          *time.Time
}

// HasAttribute reports whether attr is in the whitelist, or there is none.
func (r SearchRestriction) HasAttribute(attr uint8) bool {
	if len(r.AttributeIDs) == 0 {
		return true
	}
	for _, a := range r.AttributeIDs {
		if a == attr {
			return true
		}
	}
	return false
}

// Cursor is the explicit per-term resume position for pagination, replacing
// the source's in-place-mutated [term, lastRead] pair (see Design Notes).
type Cursor struct {
	Term             Term
	LastReadChunkKey *ChunkKey
}

// Advanced returns the cursor moved to a strictly smaller chunk key, the
// only direction a cursor may move (see the per-term cursor state machine).
func (c Cursor) Advanced(to ChunkKey) Cursor {
	return Cursor{Term: c.Term, LastReadChunkKey: &to}
}

// ResultEntry is one (listId, id) pair in a SearchResult, ordered newest first.
type ResultEntry struct {
	ListID ListID
	ID     EntityID
}

// PendingEntry is a fully-merged, fully-filtered Entry waiting for C8 to
// resolve it against the element store; it is what moreResultsEntries carries
// across pages so C8 never has to re-read postings for already-merged ids.
type PendingEntry struct {
	Entry Entry
}

// SearchResult is both the user-facing answer and, across pagination calls,
// the cursor: the orchestrator mutates it in place on getMoreSearchResults.
type SearchResult struct {
	Query       string
	Restriction SearchRestriction

	Results []ResultEntry

	// CurrentIndexTimestamp is the effective index horizon as of this page.
	CurrentIndexTimestamp time.Time

	// MoreResultsEntries are intersected-and-filtered entries from a prior
	// page not yet consumed into Results; C8 promotes from here first.
	MoreResultsEntries []PendingEntry

	// LastReadSearchIndexRow is the per-term resume cursor.
	LastReadSearchIndexRow []Cursor

	// MatchWordOrder is set iff the query was fully double-quoted and has
	// two or more terms; it switches C7's phrase reduction on.
	MatchWordOrder bool

	// Debug carries the per-page timing record; never consulted by the
	// pipeline itself, only attached for observability.
	Debug *Timing
}

// TimestampToID implements the deterministic timestamp→id mapping the
// Constraint Filter (C6) and Index Extension Protocol rely on: ids are
// bytewise comparable, so encoding the timestamp as big-endian millis
// produces an id whose ordering matches its time.
func TimestampToID(t time.Time) EntityID {
	ms := uint64(t.UnixMilli())
	id := make(EntityID, 8)
	for i := 7; i >= 0; i-- {
		id[i] = byte(ms)
		ms >>= 8
	}
	return id
}

// FullIndexedTimestamp is the indexer's sentinel for "all history covered":
// the index horizon cannot move any further back in time.
var FullIndexedTimestamp = time.Unix(0, 0).UTC()

// NothingIndexedTimestamp is the indexer's sentinel for "nothing indexed
// yet". Per Design Notes §9 it is treated as "now" wherever it is compared.
var NothingIndexedTimestamp = time.Time{}

// ResolveIndexHorizon applies the NOTHING_INDEXED_TIMESTAMP convention.
func ResolveIndexHorizon(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

// Timing is a per-page record of where time went, owned solely by the
// orchestrator for the duration of one Search or GetMoreSearchResults call
// (see Design Notes: replaces the source's process-wide span counters).
type Timing struct {
	TokenizeNs     int64
	MetaReadNs     int64
	PostingFetchNs int64
	DecryptNs      int64
	IntersectNs    int64
	FilterNs       int64
	PhraseNs       int64
	AssembleNs     int64
	SuggestNs      int64
	TotalNs        int64
}
