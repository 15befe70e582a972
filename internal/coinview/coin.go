// Package coinview implements the unspent-output set: a persistent base
// store plus a stack of flushable in-memory caches used while connecting
// and validating blocks.
package coinview

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/shurium/shurium-node/pkg/tx"
	"github.com/shurium/shurium-node/pkg/types"
	"github.com/shurium/shurium-node/pkg/wire"
)

// maxCoinScriptSize bounds a script read back off a coin record.
const maxCoinScriptSize = 1 << 20

// Coin is an unspent output: it exists in the view iff the output it
// describes is unspent as of the view's best block.
type Coin struct {
	Out        tx.TxOut
	Height     uint32
	IsCoinbase bool
}

// NewCoin builds a Coin from a transaction's output at the given height.
func NewCoin(out tx.TxOut, height uint32, isCoinbase bool) Coin {
	return Coin{Out: out, Height: height, IsCoinbase: isCoinbase}
}

// Serialize encodes a coin as:
//
//	height:u32 LE ‖ coinbase:u8 ‖ value:i64 LE ‖ varint(len) ‖ script
func (c Coin) Serialize() []byte {
	buf := make([]byte, 0, 13+len(c.Out.Script))
	buf = binary.LittleEndian.AppendUint32(buf, c.Height)
	if c.IsCoinbase {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.LittleEndian.AppendUint64(buf, uint64(c.Out.Value))
	buf = wire.WriteVarBytes(buf, c.Out.Script)
	return buf
}

// DeserializeCoin decodes a coin record produced by Serialize.
func DeserializeCoin(data []byte) (Coin, error) {
	r := bytes.NewReader(data)

	var heightBuf [4]byte
	if _, err := io.ReadFull(r, heightBuf[:]); err != nil {
		return Coin{}, fmt.Errorf("coin: read height: %w", err)
	}

	var cbBuf [1]byte
	if _, err := io.ReadFull(r, cbBuf[:]); err != nil {
		return Coin{}, fmt.Errorf("coin: read coinbase flag: %w", err)
	}

	var valBuf [8]byte
	if _, err := io.ReadFull(r, valBuf[:]); err != nil {
		return Coin{}, fmt.Errorf("coin: read value: %w", err)
	}

	script, err := wire.ReadVarBytes(r, maxCoinScriptSize)
	if err != nil {
		return Coin{}, fmt.Errorf("coin: read script: %w", err)
	}

	if r.Len() != 0 {
		return Coin{}, fmt.Errorf("coin: %d trailing bytes", r.Len())
	}

	return Coin{
		Out: tx.TxOut{
			Value:  int64(binary.LittleEndian.Uint64(valBuf[:])),
			Script: types.Script(script),
		},
		Height:     binary.LittleEndian.Uint32(heightBuf[:]),
		IsCoinbase: cbBuf[0] != 0,
	}, nil
}
