package coinview

import "github.com/shurium/shurium-node/pkg/types"

// CoinView is the interface both the persistent base and every in-memory
// cache layer implement, so a cache can stack transparently over either.
type CoinView interface {
	// GetCoin returns the coin at op and true, or false if it does not
	// exist (unknown or already spent).
	GetCoin(op types.OutPoint) (Coin, bool, error)
	// HaveCoin reports whether op has a live coin without deserializing it.
	HaveCoin(op types.OutPoint) (bool, error)
	// GetBestBlock returns the hash of the block this view reflects.
	GetBestBlock() (types.Hash, error)
	// BatchWrite merges a change set into this view and advances its best
	// block in one atomic step. On the persistent base this is a single
	// store write batch so the coin mutations and the best-block pointer
	// can never land separately.
	BatchWrite(changes map[types.OutPoint]Change, best types.Hash) error
}

// Change describes one outpoint's mutation in a batch. Exists is false for
// a spend (the coin is removed); true with Coin set for a new or restored
// coin.
type Change struct {
	Coin   Coin
	Exists bool
}
