package cryptoindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutao/search-core/internal/model"
)

func testKeys() Keys {
	var k Keys
	for i := range k.DBKey {
		k.DBKey[i] = byte(i + 1)
	}
	for i := range k.IV {
		k.IV[i] = byte(i + 100)
	}
	return k
}

func TestIndexKey_DeterministicForEqualTerms(t *testing.T) {
	c := New(testKeys())

	k1 := c.IndexKey(model.Term("invoice"))
	k2 := c.IndexKey(model.Term("invoice"))

	assert.Equal(t, k1, k2)
}

func TestIndexKey_DiffersForDifferentTerms(t *testing.T) {
	c := New(testKeys())

	assert.NotEqual(t, c.IndexKey("alpha"), c.IndexKey("beta"))
}

func TestIndexKey_DiffersAcrossKeySets(t *testing.T) {
	c1 := New(testKeys())
	other := testKeys()
	other.DBKey[0] ^= 0xff
	c2 := New(other)

	assert.NotEqual(t, c1.IndexKey("alpha"), c2.IndexKey("alpha"))
}

func TestSealAndDecryptEntry_RoundTrip(t *testing.T) {
	c := New(testKeys())
	entry := model.Entry{ID: []byte{1, 2, 3}, Attribute: 2, Positions: []uint32{3, 7}}
	plain := EncodeEntry(entry)

	ciphertext, err := c.Seal(plain, []byte("assoc"))
	require.NoError(t, err)

	decrypted, err := c.DecryptEntry(model.EncryptedEntry{Ciphertext: ciphertext})
	require.NoError(t, err)

	got, err := DecodeEntry(decrypted)
	require.NoError(t, err)
	assert.Equal(t, entry, got)
}

func TestDecryptEntry_TamperedCiphertextIsCryptoError(t *testing.T) {
	c := New(testKeys())
	plain := EncodeEntry(model.Entry{ID: []byte{9}, Attribute: 1})
	ciphertext, err := c.Seal(plain, []byte("x"))
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0xff

	_, err = c.DecryptEntry(model.EncryptedEntry{Ciphertext: ciphertext})
	require.Error(t, err)
}

func TestMetadataRoundTrip(t *testing.T) {
	meta := model.Metadata{Rows: []model.ChunkDescriptor{
		{Key: 10, Size: 3, App: 1, Type: 2},
		{Key: 5, Size: 1, App: 1, Type: 2},
	}}
	plain := EncodeMetadata(meta)

	got, err := DecodeMetadata(plain)
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestDecodeMetadata_TruncatedIsCorruption(t *testing.T) {
	_, err := DecodeMetadata([]byte{0, 0, 0, 2, 1, 2})
	require.Error(t, err)
}

func TestIdHash_SameInputSameHash(t *testing.T) {
	assert.Equal(t, IdHash([]byte("abc")), IdHash([]byte("abc")))
	assert.NotEqual(t, IdHash([]byte("abc")), IdHash([]byte("abd")))
}
