package block

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/shurium/shurium-node/pkg/crypto"
	"github.com/shurium/shurium-node/pkg/types"
)

// HeaderSize is the fixed wire size of a Header: the proof-of-work only
// commits to these 80 bytes, never to the transactions directly (that's the
// merkle root's job) or to height (the block index derives that from
// position in the chain, not from header content).
const HeaderSize = 80

// Header is a block header in its wire layout:
// version:i32 LE | prev_hash:32 | merkle_root:32 | time:u32 LE | bits:u32 LE | nonce:u32 LE.
type Header struct {
	Version    int32      `json:"version"`
	PrevHash   types.Hash `json:"prev_hash"`
	MerkleRoot types.Hash `json:"merkle_root"`
	Time       uint32     `json:"time"`
	Bits       uint32     `json:"bits"`
	Nonce      uint32     `json:"nonce"`
}

// Hash computes the header's double hash — the value proof-of-work compares
// against the bits-derived target.
func (h *Header) Hash() types.Hash {
	return crypto.DoubleHash(h.Serialize())
}

// Serialize encodes the header in its exact 80-byte wire layout.
func (h *Header) Serialize() []byte {
	buf := make([]byte, 0, HeaderSize)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.Version))
	buf = append(buf, h.PrevHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, h.Time)
	buf = binary.LittleEndian.AppendUint32(buf, h.Bits)
	buf = binary.LittleEndian.AppendUint32(buf, h.Nonce)
	return buf
}

// DeserializeHeader decodes a header from its exact 80-byte wire encoding.
func DeserializeHeader(data []byte) (*Header, error) {
	if len(data) != HeaderSize {
		return nil, fmt.Errorf("header: expected %d bytes, got %d", HeaderSize, len(data))
	}
	return ReadHeader(bytes.NewReader(data))
}

// ReadHeader decodes a header from r without requiring it to be the only
// content (used when reading a block's header followed by its transactions).
func ReadHeader(r io.Reader) (*Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := &Header{
		Version: int32(binary.LittleEndian.Uint32(buf[0:4])),
	}
	copy(h.PrevHash[:], buf[4:36])
	copy(h.MerkleRoot[:], buf[36:68])
	h.Time = binary.LittleEndian.Uint32(buf[68:72])
	h.Bits = binary.LittleEndian.Uint32(buf[72:76])
	h.Nonce = binary.LittleEndian.Uint32(buf[76:80])
	return h, nil
}
