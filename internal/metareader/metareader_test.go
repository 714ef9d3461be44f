package metareader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tutao/search-core/internal/cryptoindex"
	"github.com/tutao/search-core/internal/model"
	"github.com/tutao/search-core/internal/store"
)

func testCodec() *cryptoindex.Codec {
	var keys cryptoindex.Keys
	for i := range keys.DBKey {
		keys.DBKey[i] = byte(i + 1)
	}
	for i := range keys.IV {
		keys.IV[i] = byte(i + 50)
	}
	return cryptoindex.New(keys)
}

func seedMetadata(t *testing.T, s *store.Store, codec *cryptoindex.Codec, key model.IndexKey, meta model.Metadata) {
	t.Helper()
	plain := cryptoindex.EncodeMetadata(meta)
	ciphertext, err := codec.Seal(plain, []byte(key))
	require.NoError(t, err)
	require.NoError(t, s.Writer().PutMetadata(context.Background(), string(key), ciphertext))
}

func TestReadMeta_FiltersByTypeAndOrdersDescending(t *testing.T) {
	s, err := store.Open(store.DefaultConfig(""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	codec := testCodec()
	meta := model.Metadata{Rows: []model.ChunkDescriptor{
		{Key: 5, Size: 1, App: 1, Type: 1},
		{Key: 10, Size: 1, App: 1, Type: 1},
		{Key: 20, Size: 1, App: 1, Type: 2}, // different type, excluded
	}}
	seedMetadata(t, s, codec, "term-key", meta)

	r, err := New(codec, 16)
	require.NoError(t, err)

	tx, err := s.BeginRead(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	got, err := r.ReadMeta(context.Background(), tx, "term-key", model.TypeInfo{App: 1, Type: 1})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, model.ChunkKey(10), got[0].Key)
	require.Equal(t, model.ChunkKey(5), got[1].Key)
}

func TestReadMeta_MissingKeyReturnsEmpty(t *testing.T) {
	s, err := store.Open(store.DefaultConfig(""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	r, err := New(testCodec(), 16)
	require.NoError(t, err)

	tx, err := s.BeginRead(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	got, err := r.ReadMeta(context.Background(), tx, "absent", model.TypeInfo{App: 1, Type: 1})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReadMeta_UsesCacheOnSecondRead(t *testing.T) {
	s, err := store.Open(store.DefaultConfig(""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	codec := testCodec()
	seedMetadata(t, s, codec, "k", model.Metadata{Rows: []model.ChunkDescriptor{{Key: 1, Size: 1, App: 1, Type: 1}}})

	r, err := New(codec, 16)
	require.NoError(t, err)

	tx, err := s.BeginRead(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	first, err := r.ReadMeta(context.Background(), tx, "k", model.TypeInfo{App: 1, Type: 1})
	require.NoError(t, err)

	second, err := r.ReadMeta(context.Background(), tx, "k", model.TypeInfo{App: 1, Type: 1})
	require.NoError(t, err)
	require.Equal(t, first, second)
}
