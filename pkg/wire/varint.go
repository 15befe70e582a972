// Package wire implements the compact-size variable-length integer and
// byte-slice encodings shared by the block and transaction wire formats.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	varIntFD = 0xfd
	varIntFE = 0xfe
	varIntFF = 0xff
)

// WriteVarInt appends the compact-size encoding of n to buf and returns it.
//
//	< 0xfd:        1 byte
//	== 0xfd:       0xfd + u16 LE
//	== 0xfe:       0xfe + u32 LE
//	== 0xff:       0xff + u64 LE
func WriteVarInt(buf []byte, n uint64) []byte {
	switch {
	case n < varIntFD:
		return append(buf, byte(n))
	case n <= 0xffff:
		buf = append(buf, varIntFD)
		return binary.LittleEndian.AppendUint16(buf, uint16(n))
	case n <= 0xffffffff:
		buf = append(buf, varIntFE)
		return binary.LittleEndian.AppendUint32(buf, uint32(n))
	default:
		buf = append(buf, varIntFF)
		return binary.LittleEndian.AppendUint64(buf, n)
	}
}

// ReadVarInt decodes a compact-size integer from r.
func ReadVarInt(r io.Reader) (uint64, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, fmt.Errorf("read varint prefix: %w", err)
	}
	switch prefix[0] {
	case varIntFD:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, fmt.Errorf("read varint u16: %w", err)
		}
		return uint64(binary.LittleEndian.Uint16(b[:])), nil
	case varIntFE:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, fmt.Errorf("read varint u32: %w", err)
		}
		return uint64(binary.LittleEndian.Uint32(b[:])), nil
	case varIntFF:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, fmt.Errorf("read varint u64: %w", err)
		}
		return binary.LittleEndian.Uint64(b[:]), nil
	default:
		return uint64(prefix[0]), nil
	}
}

// WriteVarBytes appends a varint-prefixed byte slice to buf.
func WriteVarBytes(buf []byte, data []byte) []byte {
	buf = WriteVarInt(buf, uint64(len(data)))
	return append(buf, data...)
}

// ReadVarBytes reads a varint-prefixed byte slice from r. maxSize bounds the
// declared length to guard against a corrupt or adversarial length prefix.
func ReadVarBytes(r io.Reader, maxSize uint64) ([]byte, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n > maxSize {
		return nil, fmt.Errorf("var bytes length %d exceeds max %d", n, maxSize)
	}
	if n == 0 {
		return nil, nil
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read var bytes: %w", err)
	}
	return data, nil
}
