// Package cryptoindex implements the Key Encoder (C1) and Entry Decryptor
// (C4): deterministic index-key derivation and entry/metadata decryption
// over a per-mailbox database key and IV.
package cryptoindex

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"

	searcherrors "github.com/tutao/search-core/internal/errors"
	"github.com/tutao/search-core/internal/model"
)

// Keys bundles the per-mailbox secret material the search core treats as
// read-only for the duration of a search (see Concurrency & Resource Model).
type Keys struct {
	DBKey [chacha20poly1305.KeySize]byte
	IV    [12]byte
}

// Codec derives index keys and decrypts entries/metadata using one set of
// mailbox keys. It is stateless beyond the keys and safe for concurrent use.
type Codec struct {
	keys Keys
}

// New returns a Codec bound to the given mailbox keys.
func New(keys Keys) *Codec {
	return &Codec{keys: keys}
}

// deterministicNonce derives a 12-byte AEAD nonce from the IV and an
// arbitrary associated value; equal (iv, value) pairs always produce the
// same nonce, which is what makes IndexKey a pure function of its inputs.
func (c *Codec) deterministicNonce(associated []byte) [chacha20poly1305.NonceSize]byte {
	mac := hmac.New(sha256.New, c.keys.IV[:])
	mac.Write(associated)
	sum := mac.Sum(nil)
	var nonce [chacha20poly1305.NonceSize]byte
	copy(nonce[:], sum[:chacha20poly1305.NonceSize])
	return nonce
}

// IndexKey implements C1: indexKey(term) = base64(keyed_encrypt(dbKey, iv, term)).
// Deterministic, no randomization, and pure — it never returns an error.
func (c *Codec) IndexKey(term model.Term) model.IndexKey {
	return model.IndexKey(c.deterministicSeal([]byte(term)))
}

// EncryptID deterministically encrypts an EntityID the same way IndexKey
// encrypts a term, so the element store's base64-encrypted-id key can be
// recomputed from a decrypted Entry.ID without needing a reverse mapping.
func (c *Codec) EncryptID(id model.EntityID) string {
	return c.deterministicSeal(id)
}

func (c *Codec) deterministicSeal(plaintext []byte) string {
	aead, err := chacha20poly1305.New(c.keys.DBKey[:])
	if err != nil {
		// Key size is fixed at compile time via [chacha20poly1305.KeySize]byte;
		// chacha20poly1305.New only fails on bad key length.
		panic("cryptoindex: invalid key size")
	}
	nonce := c.deterministicNonce(plaintext)
	ct := aead.Seal(nil, nonce[:], plaintext, nil)
	return base64.StdEncoding.EncodeToString(ct)
}

// DecryptMetadata decrypts a stored MetaRow ciphertext into the wire
// encoding of a Metadata row list. Malformed ciphertext is a Crypto error,
// not Corruption: the ciphertext itself failed authentication, as opposed to
// a structurally invalid plaintext (see errors design in §7).
func (c *Codec) DecryptMetadata(ciphertext []byte) ([]byte, error) {
	return c.open(ciphertext, "metadata")
}

// DecryptEntry implements C4: decrypts a framed block's ciphertext into the
// wire encoding of an Entry. A failed AEAD tag here is Crypto, not
// Corruption; malformed framing is caught by the caller before this runs.
func (c *Codec) DecryptEntry(enc model.EncryptedEntry) ([]byte, error) {
	return c.open(enc.Ciphertext, "entry")
}

func (c *Codec) open(ciphertext []byte, what string) ([]byte, error) {
	aead, err := chacha20poly1305.New(c.keys.DBKey[:])
	if err != nil {
		panic("cryptoindex: invalid key size")
	}
	if len(ciphertext) < chacha20poly1305.NonceSize {
		return nil, searcherrors.Crypto(searcherrors.ErrCodeDecryptFailed, what+" ciphertext shorter than nonce", nil)
	}
	nonce := ciphertext[:chacha20poly1305.NonceSize]
	body := ciphertext[chacha20poly1305.NonceSize:]
	plain, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, searcherrors.Crypto(searcherrors.ErrCodeDecryptFailed, what+" failed to decrypt", err).
			WithDetail("what", what)
	}
	return plain, nil
}

// Seal encrypts plaintext the way the core's own fixtures and tests produce
// ciphertext to seed the store: nonce-prefixed AEAD output whose nonce is
// derived from associated, so equal (plaintext, associated) pairs always seal
// to the same bytes. Production ciphertext is written by the indexer collaborator,
// out of this package's scope; this exists for tests and fixture seeding.
func (c *Codec) Seal(plaintext []byte, associated []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(c.keys.DBKey[:])
	if err != nil {
		return nil, err
	}
	nonce := c.deterministicNonce(associated)
	out := make([]byte, 0, chacha20poly1305.NonceSize+len(plaintext)+aead.Overhead())
	out = append(out, nonce[:]...)
	return aead.Seal(out, nonce[:], plaintext, nil), nil
}

// IdHash computes the 32-bit pre-intersect hash of an encrypted id prefix
// (C5's IdHash), a cheap filter applied before paying to decrypt the entry.
func IdHash(ciphertextIDPrefix []byte) model.IdHash {
	sum := sha256.Sum256(ciphertextIDPrefix)
	return model.IdHash(binary.BigEndian.Uint32(sum[:4]))
}
