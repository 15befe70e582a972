package chainstate

import (
	"github.com/shurium/shurium-node/pkg/types"
)

// Event handler types, one per chain-lifecycle event kind. A single
// function-pointer field per event (in the style of the registration and
// reverted-tx callbacks this package's manager is descended from) rather
// than a generic pub-sub bus: only one subscriber per event is ever needed.
type (
	// NewTipHandler fires after the active chain's tip changes.
	NewTipHandler func(hash types.Hash, height uint64)
	// BlockInvalidHandler fires when a block fails validation.
	BlockInvalidHandler func(hash types.Hash, reason Reason)
	// TxAcceptedHandler fires when a transaction enters the mempool.
	TxAcceptedHandler func(txid types.Hash)
	// TxRemovedHandler fires when a transaction leaves the mempool
	// without being confirmed (conflict, eviction, expiry).
	TxRemovedHandler func(txid types.Hash, reason string)
)

// SetNewTipHandler registers the callback invoked on every tip change.
func (m *Manager) SetNewTipHandler(fn NewTipHandler) { m.onNewTip = fn }

// SetBlockInvalidHandler registers the callback invoked when a submitted
// block fails validation.
func (m *Manager) SetBlockInvalidHandler(fn BlockInvalidHandler) { m.onBlockInvalid = fn }

// SetTxAcceptedHandler stores a callback for transactions accepted into the
// mempool. Manager only stores it; neither Manager nor the mempool invokes it.
func (m *Manager) SetTxAcceptedHandler(fn TxAcceptedHandler) { m.onTxAccepted = fn }

// SetTxRemovedHandler stores a callback for transactions leaving the
// mempool. Manager only stores it; neither Manager nor the mempool invokes it.
func (m *Manager) SetTxRemovedHandler(fn TxRemovedHandler) { m.onTxRemoved = fn }

func (m *Manager) emitNewTip(hash types.Hash, height uint64) {
	if m.onNewTip != nil {
		m.onNewTip(hash, height)
	}
}

func (m *Manager) emitBlockInvalid(hash types.Hash, reason Reason) {
	if m.onBlockInvalid != nil {
		m.onBlockInvalid(hash, reason)
	}
}
