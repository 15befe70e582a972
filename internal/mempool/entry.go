package mempool

import (
	"github.com/shurium/shurium-node/pkg/tx"
	"github.com/shurium/shurium-node/pkg/types"
)

// Entry wraps a pooled transaction with its fee and the aggregates kept
// over its in-pool ancestor/descendant closure — maintained incrementally
// on insert and removal rather than recomputed to keep eviction and
// ancestor-limit checks cheap regardless of pool size.
type Entry struct {
	Tx    *tx.Transaction
	TxID  types.Hash
	Fee   uint64
	VSize uint64 // serialized byte size, the fee-rate denominator.
	Added int64  // unix seconds.

	Ancestors   map[types.Hash]struct{} // in-pool transactions this one spends from, transitively.
	Descendants map[types.Hash]struct{} // in-pool transactions that spend from this one, transitively.

	AncestorCount int
	AncestorSize  uint64
	AncestorFee   uint64

	DescendantCount int
	DescendantSize  uint64
	DescendantFee   uint64
}

// FeeRate is this single transaction's own fee per byte.
func (e *Entry) FeeRate() float64 {
	if e.VSize == 0 {
		return 0
	}
	return float64(e.Fee) / float64(e.VSize)
}

// AncestorFeeRate is the package fee-rate of this entry and everything it
// depends on — the figure greedy block assembly and eviction both sort by.
func (e *Entry) AncestorFeeRate() float64 {
	if e.AncestorSize == 0 {
		return 0
	}
	return float64(e.AncestorFee) / float64(e.AncestorSize)
}

// DescendantFeeRate is the package fee-rate of this entry and everything
// that spends from it — what eviction ranks a package root by, since
// evicting a root also evicts its whole descendant set.
func (e *Entry) DescendantFeeRate() float64 {
	if e.DescendantSize == 0 {
		return 0
	}
	return float64(e.DescendantFee) / float64(e.DescendantSize)
}

func newEntry(t *tx.Transaction, fee uint64, vsize uint64, addedAt int64) *Entry {
	e := &Entry{
		Tx:          t,
		TxID:        t.Hash(),
		Fee:         fee,
		VSize:       vsize,
		Added:       addedAt,
		Ancestors:   make(map[types.Hash]struct{}),
		Descendants: make(map[types.Hash]struct{}),
	}
	e.AncestorCount = 1
	e.AncestorSize = vsize
	e.AncestorFee = fee
	e.DescendantCount = 1
	e.DescendantSize = vsize
	e.DescendantFee = fee
	return e
}
