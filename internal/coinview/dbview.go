package coinview

import (
	"encoding/binary"
	"fmt"

	"github.com/shurium/shurium-node/internal/storage"
	"github.com/shurium/shurium-node/pkg/types"
)

// coinPrefix/bestBlockKey key every unspent coin under a single "c" +
// outpoint prefix, plus a dedicated best-block marker key.
var (
	coinPrefix   = []byte("c")
	bestBlockKey = []byte("B")
)

// DBView is the persistent coin store: every coin that is unspent as of
// GetBestBlock() is present under coinPrefix.
type DBView struct {
	db storage.DB
}

// NewDBView wraps a storage.DB as a persistent coin view.
func NewDBView(db storage.DB) *DBView {
	return &DBView{db: db}
}

func coinKey(op types.OutPoint) []byte {
	key := make([]byte, len(coinPrefix)+types.HashSize+4)
	n := copy(key, coinPrefix)
	copy(key[n:], op.TxID[:])
	binary.BigEndian.PutUint32(key[n+types.HashSize:], op.Index)
	return key
}

// GetCoin implements CoinView.
func (v *DBView) GetCoin(op types.OutPoint) (Coin, bool, error) {
	data, err := v.db.Get(coinKey(op))
	if err != nil {
		return Coin{}, false, nil
	}
	c, err := DeserializeCoin(data)
	if err != nil {
		return Coin{}, false, fmt.Errorf("dbview: decode coin %s: %w", op, err)
	}
	return c, true, nil
}

// HaveCoin implements CoinView.
func (v *DBView) HaveCoin(op types.OutPoint) (bool, error) {
	ok, err := v.db.Has(coinKey(op))
	if err != nil {
		return false, fmt.Errorf("dbview: have coin %s: %w", op, err)
	}
	return ok, nil
}

// GetBestBlock implements CoinView. Returns the zero hash if the store has
// never recorded one (a freshly initialized chainstate).
func (v *DBView) GetBestBlock() (types.Hash, error) {
	data, err := v.db.Get(bestBlockKey)
	if err != nil {
		return types.Hash{}, nil
	}
	var h types.Hash
	copy(h[:], data)
	return h, nil
}

// BatchWrite implements CoinView. It requires the underlying database to
// support storage.Batcher so the coin mutations and the best-block pointer
// commit as a single atomic write: on crash mid-write, the store's
// transaction either never happened or happened completely, so the
// best-block read on restart is always authoritative.
func (v *DBView) BatchWrite(changes map[types.OutPoint]Change, best types.Hash) error {
	batcher, ok := v.db.(storage.Batcher)
	if !ok {
		return fmt.Errorf("dbview: underlying store does not support atomic batches")
	}

	batch := batcher.NewBatch()
	for op, change := range changes {
		key := coinKey(op)
		if !change.Exists {
			if err := batch.Delete(key); err != nil {
				return fmt.Errorf("dbview: batch delete %s: %w", op, err)
			}
			continue
		}
		if err := batch.Put(key, change.Coin.Serialize()); err != nil {
			return fmt.Errorf("dbview: batch put %s: %w", op, err)
		}
	}
	if err := batch.Put(bestBlockKey, best[:]); err != nil {
		return fmt.Errorf("dbview: batch put best block: %w", err)
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("dbview: commit batch: %w", err)
	}
	return nil
}
