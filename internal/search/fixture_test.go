package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tutao/search-core/internal/assemble"
	"github.com/tutao/search-core/internal/cryptoindex"
	"github.com/tutao/search-core/internal/metareader"
	"github.com/tutao/search-core/internal/model"
	"github.com/tutao/search-core/internal/postings"
	"github.com/tutao/search-core/internal/store"
)

// posting is one entry a fixture writes under a given term, identified by a
// single trailing id byte for readability in small scenario tests.
type posting struct {
	id        byte
	attribute uint8
	positions []uint32
}

// idPosting is a posting with a caller-supplied full EntityID, used by
// fixtures that need realistic timestamp-derived ids.
type idPosting struct {
	id        model.EntityID
	attribute uint8
	positions []uint32
}

// testHarness wires a real store + codec + pipeline, the way the demo
// indexer and the orchestrator's production wiring would, so pipeline tests
// exercise the real C1-C8 codecs instead of fakes.
type testHarness struct {
	t     *testing.T
	store *store.Store
	codec *cryptoindex.Codec
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	st, err := store.Open(store.DefaultConfig(""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	var keys cryptoindex.Keys
	copy(keys.DBKey[:], []byte("0123456789abcdef0123456789abcdef"))
	copy(keys.IV[:], []byte("abcdef012345"))
	codec := cryptoindex.New(keys)

	return &testHarness{t: t, store: st, codec: codec}
}

func (h *testHarness) orchestrator(indexer Indexer, opts ...Option) *Orchestrator {
	metaReader, err := metareader.New(h.codec, 0)
	require.NoError(h.t, err)
	fetcher := postings.New(h.codec)
	lookup := assemble.NewElementLookup(h.codec.EncryptID)
	assembler := assemble.New(lookup, 5)

	pipeline := Pipeline{
		KeyEncoder: h.codec,
		MetaReader: metaReader,
		Fetcher:    fetcher,
		Assembler:  assembler,
	}
	return New(h.store, pipeline, indexer, lowercaseTokenize, opts...)
}

func lowercaseTokenize(q string) []model.Term {
	out := make([]model.Term, 0)
	word := ""
	flush := func() {
		if word != "" {
			out = append(out, model.Term(word))
			word = ""
		}
	}
	for _, r := range q {
		switch r {
		case ' ', '"':
			flush()
		default:
			if r >= 'A' && r <= 'Z' {
				r = r - 'A' + 'a'
			}
			word += string(r)
		}
	}
	flush()
	return out
}

// seedTerm writes one chunk of postings for term under typeInfo, with the
// given chunk key, and registers the element so C8 can resolve a listId.
// Each posting's id is a single trailing byte in an otherwise-zero 8-byte id.
func (h *testHarness) seedTerm(typeInfo model.TypeInfo, term model.Term, chunkKey uint64, list model.ListID, ps []posting) {
	h.t.Helper()
	withIDs := make([]idPosting, len(ps))
	for i, p := range ps {
		withIDs[i] = idPosting{id: model.EntityID{0, 0, 0, 0, 0, 0, 0, p.id}, attribute: p.attribute, positions: p.positions}
	}
	h.seedTermWithIDs(typeInfo, term, chunkKey, list, withIDs)
}

// seedTermWithIDs is seedTerm generalized to caller-supplied EntityIDs.
func (h *testHarness) seedTermWithIDs(typeInfo model.TypeInfo, term model.Term, chunkKey uint64, list model.ListID, ps []idPosting) {
	h.t.Helper()
	ctx := context.Background()
	key := h.codec.IndexKey(term)

	blocks := make([][]byte, 0, len(ps))
	for _, p := range ps {
		plain := cryptoindex.EncodeEntry(model.Entry{ID: p.id, Attribute: p.attribute, Positions: p.positions})
		ciphertext, err := h.codec.Seal(plain, p.id)
		require.NoError(h.t, err)
		blocks = append(blocks, ciphertext)

		require.NoError(h.t, h.store.Writer().PutElement(ctx, h.codec.EncryptID(p.id), string(list), []byte("payload")))
	}
	chunk := postings.EncodeChunk(blocks)
	require.NoError(h.t, h.store.Writer().PutChunk(ctx, chunkKey, chunk))

	meta := model.Metadata{Rows: []model.ChunkDescriptor{{
		Key: model.ChunkKey(chunkKey), Size: uint32(len(blocks)), App: typeInfo.App, Type: typeInfo.Type,
	}}}
	existing := h.readRawMetadata(key)
	existing.Rows = append(existing.Rows, meta.Rows...)
	plainMeta := cryptoindex.EncodeMetadata(existing)
	ciphertextMeta, err := h.codec.Seal(plainMeta, []byte(key))
	require.NoError(h.t, err)
	require.NoError(h.t, h.store.Writer().PutMetadata(ctx, string(key), ciphertextMeta))
}

func (h *testHarness) readRawMetadata(key model.IndexKey) model.Metadata {
	ctx := context.Background()
	tx, err := h.store.BeginRead(ctx)
	require.NoError(h.t, err)
	defer tx.Rollback()

	raw, err := tx.GetMetadata(ctx, string(key))
	require.NoError(h.t, err)
	if raw == nil {
		return model.Metadata{}
	}
	plain, err := h.codec.DecryptMetadata(raw)
	require.NoError(h.t, err)
	meta, err := cryptoindex.DecodeMetadata(plain)
	require.NoError(h.t, err)
	return meta
}
