// Package blockindex tracks every known block header — main chain and
// forks alike — along with its validation progress and cumulative work,
// independent of whether the block has actually been connected to the
// active chain.
package blockindex

import (
	"math/big"

	"github.com/shurium/shurium-node/pkg/block"
	"github.com/shurium/shurium-node/pkg/types"
)

// Status is a point in the block validation lattice. Each level implies
// every level before it has already passed.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusHeaderValid
	StatusTreeValid
	StatusTransactionsValid
	StatusChainValid
	StatusScriptsValid
)

// String renders a status for logging.
func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusHeaderValid:
		return "header-valid"
	case StatusTreeValid:
		return "tree-valid"
	case StatusTransactionsValid:
		return "transactions-valid"
	case StatusChainValid:
		return "chain-valid"
	case StatusScriptsValid:
		return "scripts-valid"
	default:
		return "invalid-status"
	}
}

// Entry is one node in the block index: a header plus everything derived
// from its position in the tree.
type Entry struct {
	Header *block.Header
	Hash   types.Hash
	Height uint64

	// ChainWork is the cumulative proof-of-work of this block and all of
	// its ancestors back to genesis.
	ChainWork *big.Int

	Status Status
	// Failed is sticky: once a block (or an ancestor) fails validation at
	// any level, this stays set forever and so does every descendant's.
	Failed bool

	TxCount uint32

	// FileNum/DataPos/UndoPos locate the block and its undo record in the
	// flat-file block store. Zero until the block has actually been
	// written (a header-only entry has no file reference yet).
	FileNum uint32
	DataPos uint32
	UndoPos uint32

	Parent *Entry
	// Skip points at an ancestor farther back than Parent, to make
	// GetAncestor sub-linear; see skip.go.
	Skip *Entry
}

// IsValid reports whether this entry has reached at least the given
// status and has not been marked failed.
func (e *Entry) IsValid(status Status) bool {
	return !e.Failed && e.Status >= status
}
