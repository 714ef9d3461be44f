// Package postings implements the Posting Fetcher (C3): reads a posting
// chunk by descriptor key and iterates its framed binary blocks in stored
// order, decrypting each into a structured Entry (C4).
package postings

import (
	"context"
	"encoding/binary"

	"github.com/tutao/search-core/internal/cryptoindex"
	searcherrors "github.com/tutao/search-core/internal/errors"
	"github.com/tutao/search-core/internal/model"
	"github.com/tutao/search-core/internal/store"
)

// Block is one length-prefixed frame of a PostingChunk, reported by the
// framing iterator in encoded order.
type Block struct {
	Bytes      []byte
	Start      int
	End        int
	Index      int
}

// Frame iterates the length-prefixed blocks of a raw chunk. Each frame is
// a 4-byte big-endian length followed by that many ciphertext bytes.
func Frame(chunk []byte) ([]Block, error) {
	blocks := make([]Block, 0)
	off := 0
	idx := 0
	for off < len(chunk) {
		if off+4 > len(chunk) {
			return nil, searcherrors.Corruption(searcherrors.ErrCodeCorruptPosting, "chunk truncated before frame length", nil)
		}
		n := int(binary.BigEndian.Uint32(chunk[off : off+4]))
		start := off + 4
		end := start + n
		if end > len(chunk) {
			return nil, searcherrors.Corruption(searcherrors.ErrCodeCorruptPosting, "chunk frame exceeds chunk bounds", nil)
		}
		blocks = append(blocks, Block{Bytes: chunk[start:end], Start: start, End: end, Index: idx})
		off = end
		idx++
	}
	return blocks, nil
}

// EncodeChunk is the inverse of Frame, used by fixtures and the demo
// indexer to build a chunk's raw bytes from a sequence of block payloads.
func EncodeChunk(blocks [][]byte) []byte {
	out := make([]byte, 0)
	for _, b := range blocks {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
		out = append(out, lenBuf[:]...)
		out = append(out, b...)
	}
	return out
}

// Fetcher reads chunks and decrypts their blocks into EncryptedEntry/Entry pairs.
type Fetcher struct {
	codec *cryptoindex.Codec
}

// New builds a Fetcher bound to the given codec.
func New(codec *cryptoindex.Codec) *Fetcher {
	return &Fetcher{codec: codec}
}

// FetchChunk implements C3: fetchChunk(tx, desc) -> encrypted entries, in
// stored order. Absent chunk ⇒ empty, per §4.3.
func (f *Fetcher) FetchChunk(ctx context.Context, tx *store.Tx, desc model.ChunkDescriptor) ([]model.EncryptedEntry, error) {
	raw, err := tx.GetChunk(ctx, uint64(desc.Key))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	blocks, err := Frame(raw)
	if err != nil {
		return nil, err
	}
	entries := make([]model.EncryptedEntry, 0, len(blocks))
	for _, b := range blocks {
		entries = append(entries, model.EncryptedEntry{
			Hash:       cryptoindex.IdHash(idPrefix(b.Bytes)),
			Ciphertext: b.Bytes,
		})
	}
	return entries, nil
}

// idPrefix is the slice of ciphertext bytes IdHash is computed over: the
// nonce-prefixed AEAD header plus a fixed number of leading ciphertext
// bytes, stable without requiring decryption.
func idPrefix(ciphertext []byte) []byte {
	const prefixLen = 16
	if len(ciphertext) < prefixLen {
		return ciphertext
	}
	return ciphertext[:prefixLen]
}

// DecryptEntry implements C4 for one encrypted entry fetched by FetchChunk.
// Malformed framing is caught upstream by Frame; a decryption failure here
// is Crypto, and a decrypted entry that fails to decode is Corruption.
func (f *Fetcher) DecryptEntry(enc model.EncryptedEntry) (model.Entry, error) {
	plain, err := f.codec.DecryptEntry(enc)
	if err != nil {
		return model.Entry{}, err
	}
	entry, err := cryptoindex.DecodeEntry(plain)
	if err != nil {
		return model.Entry{}, err
	}
	entry.Hash = enc.Hash
	return entry, nil
}
