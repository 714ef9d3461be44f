package cryptoindex

import (
	"encoding/binary"
	"fmt"

	searcherrors "github.com/tutao/search-core/internal/errors"
	"github.com/tutao/search-core/internal/model"
)

// EncodeMetadata serializes a Metadata row list into the plaintext bytes
// that get encrypted and stored as a MetaRow.
func EncodeMetadata(meta model.Metadata) []byte {
	buf := make([]byte, 4, 4+len(meta.Rows)*14)
	binary.BigEndian.PutUint32(buf, uint32(len(meta.Rows)))
	for _, d := range meta.Rows {
		var row [14]byte
		binary.BigEndian.PutUint64(row[0:8], uint64(d.Key))
		binary.BigEndian.PutUint32(row[8:12], d.Size)
		row[12] = d.App
		row[13] = d.Type
		buf = append(buf, row[:]...)
	}
	return buf
}

// DecodeMetadata parses the plaintext produced by EncodeMetadata. A short or
// truncated buffer is Corruption: the ciphertext authenticated correctly but
// the plaintext violates the wire format's structural invariant.
func DecodeMetadata(plain []byte) (model.Metadata, error) {
	if len(plain) < 4 {
		return model.Metadata{}, searcherrors.Corruption(searcherrors.ErrCodeCorruptMetadata, "metadata plaintext too short", nil)
	}
	count := binary.BigEndian.Uint32(plain[0:4])
	want := 4 + int(count)*14
	if len(plain) < want {
		return model.Metadata{}, searcherrors.Corruption(searcherrors.ErrCodeCorruptMetadata, fmt.Sprintf("metadata plaintext truncated: want %d bytes, have %d", want, len(plain)), nil)
	}
	rows := make([]model.ChunkDescriptor, 0, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		row := plain[off : off+14]
		rows = append(rows, model.ChunkDescriptor{
			Key:  model.ChunkKey(binary.BigEndian.Uint64(row[0:8])),
			Size: binary.BigEndian.Uint32(row[8:12]),
			App:  row[12],
			Type: row[13],
		})
		off += 14
	}
	return model.Metadata{Rows: rows}, nil
}

// EncodeEntry serializes an Entry into the plaintext bytes that get
// encrypted and stored inside a framed posting block.
func EncodeEntry(e model.Entry) []byte {
	buf := make([]byte, 0, 2+len(e.ID)+4*len(e.Positions))
	var idLen [2]byte
	binary.BigEndian.PutUint16(idLen[:], uint16(len(e.ID)))
	buf = append(buf, idLen[:]...)
	buf = append(buf, e.ID...)
	buf = append(buf, e.Attribute)
	var posCount [4]byte
	binary.BigEndian.PutUint32(posCount[:], uint32(len(e.Positions)))
	buf = append(buf, posCount[:]...)
	for _, p := range e.Positions {
		var pb [4]byte
		binary.BigEndian.PutUint32(pb[:], p)
		buf = append(buf, pb[:]...)
	}
	return buf
}

// DecodeEntry parses the plaintext produced by EncodeEntry. Structural
// violations (truncation, length mismatch) are Corruption per §4.3: malformed
// framing/encoding indicates store corruption, not a key mismatch.
func DecodeEntry(plain []byte) (model.Entry, error) {
	if len(plain) < 2 {
		return model.Entry{}, searcherrors.Corruption(searcherrors.ErrCodeCorruptEntry, "entry plaintext too short for id length", nil)
	}
	idLen := int(binary.BigEndian.Uint16(plain[0:2]))
	off := 2
	if len(plain) < off+idLen+1+4 {
		return model.Entry{}, searcherrors.Corruption(searcherrors.ErrCodeCorruptEntry, "entry plaintext truncated", nil)
	}
	id := append(model.EntityID(nil), plain[off:off+idLen]...)
	off += idLen
	attr := plain[off]
	off++
	posCount := binary.BigEndian.Uint32(plain[off : off+4])
	off += 4
	if len(plain) < off+int(posCount)*4 {
		return model.Entry{}, searcherrors.Corruption(searcherrors.ErrCodeCorruptEntry, "entry plaintext truncated in positions", nil)
	}
	positions := make([]uint32, posCount)
	for i := range positions {
		positions[i] = binary.BigEndian.Uint32(plain[off : off+4])
		off += 4
	}
	return model.Entry{ID: id, Attribute: attr, Positions: positions}, nil
}
