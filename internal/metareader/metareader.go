// Package metareader implements the Metadata Reader (C2): looks up a term's
// metadata row, decrypts it, filters by type, and orders it newest-first.
package metareader

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tutao/search-core/internal/cryptoindex"
	"github.com/tutao/search-core/internal/model"
	"github.com/tutao/search-core/internal/store"
)

// Reader reads and decrypts metadata rows, caching decrypted Metadata by
// IndexKey so a hot term re-read across pagination pages skips the
// store+decrypt path.
type Reader struct {
	codec *cryptoindex.Codec
	cache *lru.Cache[model.IndexKey, model.Metadata]
}

// New builds a Reader with an LRU cache of the given size. A size of 0
// disables caching.
func New(codec *cryptoindex.Codec, cacheSize int) (*Reader, error) {
	r := &Reader{codec: codec}
	if cacheSize > 0 {
		c, err := lru.New[model.IndexKey, model.Metadata](cacheSize)
		if err != nil {
			return nil, err
		}
		r.cache = c
	}
	return r, nil
}

// ReadMeta implements C2: readMeta(tx, indexKey, typeInfo) -> descriptors,
// ordered by key descending, restricted to the given (app, type).
func (r *Reader) ReadMeta(ctx context.Context, tx *store.Tx, key model.IndexKey, typeInfo model.TypeInfo) ([]model.ChunkDescriptor, error) {
	meta, cached := r.lookupCache(key)
	if !cached {
		ciphertext, err := tx.GetMetadata(ctx, string(key))
		if err != nil {
			return nil, err
		}
		if ciphertext == nil {
			return nil, nil
		}
		plain, err := r.codec.DecryptMetadata(ciphertext)
		if err != nil {
			return nil, err
		}
		decoded, err := cryptoindex.DecodeMetadata(plain)
		if err != nil {
			return nil, err
		}
		meta = decoded
		r.storeCache(key, meta)
	}

	filtered := make([]model.ChunkDescriptor, 0, len(meta.Rows))
	for _, d := range meta.Rows {
		if d.App == typeInfo.App && d.Type == typeInfo.Type {
			filtered = append(filtered, d)
		}
	}
	reverse(filtered)
	return filtered, nil
}

func (r *Reader) lookupCache(key model.IndexKey) (model.Metadata, bool) {
	if r.cache == nil {
		return model.Metadata{}, false
	}
	return r.cache.Get(key)
}

func (r *Reader) storeCache(key model.IndexKey, meta model.Metadata) {
	if r.cache == nil {
		return
	}
	r.cache.Add(key, meta)
}

func reverse(d []model.ChunkDescriptor) {
	for i, j := 0, len(d)-1; i < j; i, j = i+1, j-1 {
		d[i], d[j] = d[j], d[i]
	}
}
