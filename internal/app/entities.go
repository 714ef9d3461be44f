package app

import (
	"context"

	"github.com/tutao/search-core/internal/cryptoindex"
	searcherrors "github.com/tutao/search-core/internal/errors"
	"github.com/tutao/search-core/internal/model"
	"github.com/tutao/search-core/internal/store"
	"github.com/tutao/search-core/internal/suggest"
)

// demoEntityLoader implements suggest.EntityLoader over the element store:
// the demo's only entity kind, Mail, exposes its indexed text as the single
// string attribute mailTextAttribute.
type demoEntityLoader struct {
	store *store.Store
	codec *cryptoindex.Codec
}

func newDemoEntityLoader(st *store.Store, codec *cryptoindex.Codec) *demoEntityLoader {
	return &demoEntityLoader{store: st, codec: codec}
}

// Load reads the element row for id and wraps its stored bytes as text in a
// single-attribute Entity; no decryption is applied (the demo indexer stores
// the fixture text as is). typeRef is ignored: the demo has one entity kind.
func (l *demoEntityLoader) Load(ctx context.Context, typeRef string, id model.EntityID) (suggest.Entity, error) {
	tx, err := l.store.BeginRead(ctx)
	if err != nil {
		return suggest.Entity{}, searcherrors.Store(searcherrors.ErrCodeStoreRead, "begin read for entity load", err)
	}
	defer tx.Rollback()

	row, ok, err := tx.GetElement(ctx, l.codec.EncryptID(id))
	if err != nil {
		return suggest.Entity{}, searcherrors.Store(searcherrors.ErrCodeStoreRead, "read element", err)
	}
	if !ok {
		return suggest.Entity{}, searcherrors.NotFound(searcherrors.ErrCodeEntityNotFound, "entity not found", nil)
	}

	return suggest.Entity{
		Values: map[string]suggest.Value{
			mailTextAttribute: {String: string(row.Ciphertext)},
		},
	}, nil
}

// demoTypeModelRegistry implements suggest.TypeModelRegistry with the
// demo's one registered type, Mail, and its one whitelisted string attribute.
type demoTypeModelRegistry struct {
	models map[string]suggest.TypeModel
}

func newDemoTypeModelRegistry() *demoTypeModelRegistry {
	return &demoTypeModelRegistry{
		models: map[string]suggest.TypeModel{
			mailTypeRef: {
				Values: map[string]suggest.AttributeInfo{
					mailTextAttribute: {ID: 1, Kind: suggest.KindString},
				},
			},
		},
	}
}

func (r *demoTypeModelRegistry) ResolveTypeReference(typeRef string) (suggest.TypeModel, error) {
	tm, ok := r.models[typeRef]
	if !ok {
		return suggest.TypeModel{}, searcherrors.NotFound(searcherrors.ErrCodeEntityNotFound, "unknown type reference "+typeRef, nil)
	}
	return tm, nil
}
