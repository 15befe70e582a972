// Package chainstate owns the active chain: connecting and disconnecting
// blocks, reorganizing onto a heavier fork, and keeping the coin cache,
// block index, and block store in lock-step under one coarse lock.
package chainstate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shurium/shurium-node/internal/blockindex"
	"github.com/shurium/shurium-node/internal/blockstore"
	"github.com/shurium/shurium-node/internal/coinview"
	"github.com/shurium/shurium-node/internal/consensus"
	"github.com/shurium/shurium-node/pkg/block"
	"github.com/shurium/shurium-node/pkg/tx"
	"github.com/shurium/shurium-node/pkg/types"
)

// Mempool is the slice of mempool behavior chainstate needs. Defined here
// (rather than importing internal/mempool directly) so the two packages
// don't form an import cycle — internal/mempool reacts to chainstate
// events, chainstate drives the mempool's reorg response.
type Mempool interface {
	// RemoveConfirmed drops transactions that just landed in a connected
	// block from the pool.
	RemoveConfirmed(txids []types.Hash)
	// Resubmit offers transactions from a disconnected block back to the
	// pool, best-effort: a tx that no longer validates is silently
	// dropped, not reported as an error.
	Resubmit(txs []*tx.Transaction)
}

// Config holds the tunable knobs a Manager enforces without a single
// hardcoded production value — callers choose what fits their deployment.
type Config struct {
	// MaxReorgDepth bounds how many blocks a reorganization may disconnect.
	MaxReorgDepth uint64
	// CoinCacheMaxBytes is the soft cap that triggers a cache flush to the
	// persistent base during block connection.
	CoinCacheMaxBytes int
	// BaseSubsidy and HalvingInterval parameterize consensus.Subsidy.
	BaseSubsidy     uint64
	HalvingInterval uint64
}

// Manager is the chainstate engine: the coin view cache, the block index,
// the active chain, and the single coarse lock guarding all three, plus
// the block store and consensus engine it coordinates between.
type Manager struct {
	mu sync.Mutex

	index     *blockindex.Index
	cache     *coinview.CacheView // long-lived cache stacked over the DB
	store     *blockstore.Store
	engine    consensus.Engine
	validator *consensus.Validator
	cfg       Config
	mempool   Mempool

	// activeChain holds entries genesis..tip, giving height-indexed chain
	// access without needing a DB round trip to answer "what's at height
	// h on the active chain".
	activeChain []*blockindex.Entry

	onNewTip       NewTipHandler
	onBlockInvalid BlockInvalidHandler
	onTxAccepted   TxAcceptedHandler
	onTxRemoved    TxRemovedHandler
}

// New creates a Manager. base is the persistent coin view (normally a
// coinview.DBView); idx and st must already exist (the caller owns their
// lifetime). If idx is empty, call InitGenesis before anything else.
func New(idx *blockindex.Index, base coinview.CoinView, st *blockstore.Store, engine consensus.Engine, cfg Config) *Manager {
	if cfg.MaxReorgDepth == 0 {
		cfg.MaxReorgDepth = 100
	}
	if cfg.CoinCacheMaxBytes == 0 {
		cfg.CoinCacheMaxBytes = 64 << 20
	}
	return &Manager{
		index:     idx,
		cache:     coinview.NewCacheView(base),
		store:     st,
		engine:    engine,
		validator: consensus.NewValidator(engine),
		cfg:       cfg,
	}
}

// SetMempool wires the mempool this Manager notifies on connect/disconnect.
// Optional: a nil mempool just means reorg'd transactions aren't
// resubmitted anywhere.
func (m *Manager) SetMempool(mp Mempool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mempool = mp
}

// Coins returns the coin cache backing the active chain, for callers (the
// mempool, an RPC layer) that need read access to confirmed UTXOs without
// going through Manager's own locking for every lookup. The returned view
// has no locking of its own (a read that misses fills its map), so reads
// through it must not run concurrently with Manager connecting or
// disconnecting blocks.
func (m *Manager) Coins() *coinview.CacheView {
	return m.cache
}

// Tip returns the current active-chain tip entry, or nil if the chain is
// empty (no genesis connected yet).
func (m *Manager) Tip() *blockindex.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tipLocked()
}

func (m *Manager) tipLocked() *blockindex.Entry {
	if len(m.activeChain) == 0 {
		return nil
	}
	return m.activeChain[len(m.activeChain)-1]
}

// Height returns the active chain's tip height, or (0, false) if empty.
func (m *Manager) Height() (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tip := m.tipLocked()
	if tip == nil {
		return 0, false
	}
	return tip.Height, true
}

// EntryAt returns the active-chain entry at height h.
func (m *Manager) EntryAt(h uint64) (*blockindex.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h >= uint64(len(m.activeChain)) {
		return nil, false
	}
	return m.activeChain[h], true
}

// InitGenesis seeds an empty chainstate with the genesis block. It must be
// the first block ever accepted.
func (m *Manager) InitGenesis(genesis *block.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.activeChain) != 0 {
		return fmt.Errorf("chainstate: genesis already connected")
	}
	if !genesis.Header.PrevHash.IsZero() {
		return fmt.Errorf("chainstate: genesis header must have a zero prev_hash")
	}

	entry, err := m.index.InsertHeader(genesis.Header)
	if err != nil {
		return fmt.Errorf("chainstate: index genesis: %w", err)
	}
	if _, err := m.store.StoreBlock(genesis); err != nil {
		return fmt.Errorf("chainstate: store genesis: %w", err)
	}
	return m.connectBlock(genesis, entry)
}

// Restore rebuilds the in-memory header index and active-chain slice from
// an already-populated block store and coin view, for a node resuming
// against an existing data directory. The coin view is never touched here
// — it already holds the final state left by the previous run, so this
// only needs to replay headers, not transactions. Returns (false, nil) with
// nothing rebuilt if the store has no best block yet (fresh start; the
// caller should call InitGenesis instead).
func (m *Manager) Restore() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.activeChain) != 0 {
		return false, fmt.Errorf("chainstate: chain already initialized")
	}

	best, err := m.cache.GetBestBlock()
	if err != nil {
		return false, fmt.Errorf("chainstate: read best block: %w", err)
	}
	if best.IsZero() {
		return false, nil
	}

	for height := uint64(0); ; height++ {
		blk, err := m.store.GetBlockByHeight(height)
		if err != nil {
			break
		}
		entry, err := m.index.InsertHeader(blk.Header)
		if err != nil {
			return false, fmt.Errorf("chainstate: restore height %d: %w", height, err)
		}
		if err := m.index.SetStatus(entry.Hash, blockindex.StatusScriptsValid); err != nil {
			return false, fmt.Errorf("chainstate: restore height %d: %w", height, err)
		}
		m.activeChain = append(m.activeChain, entry)
	}

	tip := m.tipLocked()
	if tip == nil || tip.Hash != best {
		return false, fmt.Errorf("chainstate: restored tip %s does not match persisted best block %s", tipHashString(tip), best)
	}
	return true, nil
}

func tipHashString(e *blockindex.Entry) string {
	if e == nil {
		return "<none>"
	}
	return e.Hash.String()
}

// AcceptBlock validates and connects a fully-formed block, switching the
// active chain to it (or a fork through it) when it extends the tip or
// out-weighs it. Returns a *ChainError classifying any rejection.
func (m *Manager) AcceptBlock(blk *block.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if blk == nil || blk.Header == nil {
		return newErr(ReasonInternal, "", fmt.Errorf("nil block or header"))
	}
	hash := blk.Hash()

	if existing, ok := m.index.Get(hash); ok && existing.IsValid(blockindex.StatusTransactionsValid) {
		return newErr(ReasonBadConsensus, SubDuplicate, fmt.Errorf("block %s already known", hash))
	}

	if err := m.validator.ValidateBlock(blk); err != nil {
		m.emitBlockInvalid(hash, ReasonBadConsensus)
		sub := SubBadTx
		if errors.Is(err, consensus.ErrBadProofOfWork) {
			sub = SubBadPoW
		}
		return consensusErr(sub, err)
	}

	entry, err := m.index.InsertHeader(blk.Header)
	if err != nil {
		return newErr(ReasonMissingInputs, "", fmt.Errorf("chainstate: unknown parent for %s: %w", hash, err))
	}

	if _, err := m.store.StoreBlock(blk); err != nil {
		return newErr(ReasonStorageIO, "", err)
	}

	tip := m.tipLocked()
	switch {
	case tip != nil && blk.Header.PrevHash == tip.Hash:
		if err := m.connectBlock(blk, entry); err != nil {
			m.index.MarkFailed(hash)
			m.emitBlockInvalid(hash, reasonOf(err))
			return err
		}
		return nil
	case tip == nil:
		return m.connectBlock(blk, entry)
	case entry.ChainWork.Cmp(tip.ChainWork) > 0:
		return m.reorgTo(entry)
	default:
		// A known, valid, but lighter fork: indexed for later but not
		// connected. Nothing more to do until it — or a descendant —
		// outweighs the active tip.
		return nil
	}
}

func reasonOf(err error) Reason {
	var ce *ChainError
	if e, ok := err.(*ChainError); ok {
		ce = e
	}
	if ce != nil {
		return ce.Reason
	}
	return ReasonInternal
}
