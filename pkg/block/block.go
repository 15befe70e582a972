// Package block defines block types, wire (de)serialization, and
// structural validation.
package block

import (
	"bytes"
	"fmt"
	"io"

	"github.com/shurium/shurium-node/pkg/tx"
	"github.com/shurium/shurium-node/pkg/types"
	"github.com/shurium/shurium-node/pkg/wire"
)

// Block represents a block in the chain: a header plus its transactions,
// with txs[0] always the coinbase.
type Block struct {
	Header       *Header           `json:"header"`
	Transactions []*tx.Transaction `json:"transactions"`
}

// NewBlock creates a new block with the given header and transactions.
func NewBlock(header *Header, txs []*tx.Transaction) *Block {
	return &Block{
		Header:       header,
		Transactions: txs,
	}
}

// Hash returns the block's identifying hash — its header hash.
func (b *Block) Hash() types.Hash {
	if b.Header == nil {
		return types.Hash{}
	}
	return b.Header.Hash()
}

// Coinbase returns the block's first transaction, or nil if the block has
// none (never true for a connected block, but possible mid-construction).
func (b *Block) Coinbase() *tx.Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	return b.Transactions[0]
}

// Serialize encodes the block as its 80-byte header followed by
// varint(tx_count) and each transaction's wire encoding.
func (b *Block) Serialize() []byte {
	buf := make([]byte, 0, HeaderSize+64*len(b.Transactions))
	buf = append(buf, b.Header.Serialize()...)
	buf = wire.WriteVarInt(buf, uint64(len(b.Transactions)))
	for _, t := range b.Transactions {
		buf = append(buf, t.Serialize()...)
	}
	return buf
}

// DeserializeBlock decodes a block from its wire encoding.
func DeserializeBlock(data []byte) (*Block, error) {
	r := bytes.NewReader(data)
	blk, err := ReadBlock(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("block: %d trailing bytes", r.Len())
	}
	return blk, nil
}

// ReadBlock decodes a block from r.
func ReadBlock(r io.Reader) (*Block, error) {
	header, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	txCount, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("read tx count: %w", err)
	}
	txs := make([]*tx.Transaction, txCount)
	for i := range txs {
		t, err := tx.ReadTransaction(r)
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		txs[i] = t
	}
	return &Block{Header: header, Transactions: txs}, nil
}
