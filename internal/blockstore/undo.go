package blockstore

import (
	"bytes"
	"fmt"
	"io"

	"github.com/shurium/shurium-node/internal/coinview"
	"github.com/shurium/shurium-node/pkg/types"
	"github.com/shurium/shurium-node/pkg/wire"
)

// maxCoinRecordSize bounds a single serialized coin's length prefix against
// a corrupt or adversarial undo file; comfortably above any real coin
// (13-byte height/flag/value header plus a generously sized script).
const maxCoinRecordSize = 1 << 20

// SpentCoin pairs an outpoint with the coin it used to hold, in the order
// its input consumed it. Disconnecting a block restores these in reverse
// order, the mirror image of how connecting it spent them.
type SpentCoin struct {
	OutPoint types.OutPoint
	Coin     coinview.Coin
}

// UndoBlock is everything needed to revert one block's coin-view effects:
// every non-coinbase input's previous coin, recorded in spend order.
// Reconstructing which outputs the block itself created needs no undo data
// — they're read straight back off the block's own transactions.
type UndoBlock struct {
	Spent []SpentCoin
}

// Serialize encodes an undo block as varint(count) followed by each spent
// coin's outpoint and coin bytes, length-prefixed.
func (u *UndoBlock) Serialize() []byte {
	buf := wire.WriteVarInt(nil, uint64(len(u.Spent)))
	for _, sc := range u.Spent {
		buf = append(buf, sc.OutPoint.TxID[:]...)
		var idx [4]byte
		idx[0] = byte(sc.OutPoint.Index >> 24)
		idx[1] = byte(sc.OutPoint.Index >> 16)
		idx[2] = byte(sc.OutPoint.Index >> 8)
		idx[3] = byte(sc.OutPoint.Index)
		buf = append(buf, idx[:]...)
		coinBytes := sc.Coin.Serialize()
		buf = wire.WriteVarBytes(buf, coinBytes)
	}
	return buf
}

// DeserializeUndoBlock decodes the output of Serialize.
func DeserializeUndoBlock(data []byte) (*UndoBlock, error) {
	r := bytes.NewReader(data)
	count, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("undo: read count: %w", err)
	}

	u := &UndoBlock{Spent: make([]SpentCoin, 0, count)}
	for i := uint64(0); i < count; i++ {
		var op types.OutPoint
		if _, err := io.ReadFull(r, op.TxID[:]); err != nil {
			return nil, fmt.Errorf("undo: entry %d txid: %w", i, err)
		}
		var idx [4]byte
		if _, err := io.ReadFull(r, idx[:]); err != nil {
			return nil, fmt.Errorf("undo: entry %d index: %w", i, err)
		}
		op.Index = uint32(idx[0])<<24 | uint32(idx[1])<<16 | uint32(idx[2])<<8 | uint32(idx[3])

		coinBytes, err := wire.ReadVarBytes(r, maxCoinRecordSize)
		if err != nil {
			return nil, fmt.Errorf("undo: entry %d coin: %w", i, err)
		}
		c, err := coinview.DeserializeCoin(coinBytes)
		if err != nil {
			return nil, fmt.Errorf("undo: entry %d decode coin: %w", i, err)
		}
		u.Spent = append(u.Spent, SpentCoin{OutPoint: op, Coin: c})
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("undo: %d trailing bytes", r.Len())
	}
	return u, nil
}
