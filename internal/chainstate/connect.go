package chainstate

import (
	"context"
	"fmt"
	"sort"

	"github.com/shurium/shurium-node/config"
	"github.com/shurium/shurium-node/internal/blockindex"
	"github.com/shurium/shurium-node/internal/blockstore"
	"github.com/shurium/shurium-node/internal/coinview"
	"github.com/shurium/shurium-node/internal/consensus"
	"github.com/shurium/shurium-node/internal/script"
	"github.com/shurium/shurium-node/pkg/block"
	"github.com/shurium/shurium-node/pkg/types"
)

// difficultyChecker is implemented by consensus engines that can validate a
// header's bits field against chain history, not just the header's own
// proof of work. Only *consensus.PoW satisfies it today; an engine that
// doesn't is treated as having no retargeting to verify.
type difficultyChecker interface {
	VerifyDifficulty(header *block.Header, height uint64, prevBits uint32, getTimestamp func(uint64) (uint32, error)) error
}

// getTimestampFn returns a height lookup closed over the active chain as it
// stands right now, for consensus.ExpectedBits/VerifyDifficulty.
func (m *Manager) getTimestampFn() func(uint64) (uint32, error) {
	return func(height uint64) (uint32, error) {
		if height >= uint64(len(m.activeChain)) {
			return 0, fmt.Errorf("chainstate: height %d not on active chain", height)
		}
		return m.activeChain[height].Header.Time, nil
	}
}

// medianTimePast returns the median timestamp of the MedianTimeSpan blocks
// ending at entry (inclusive), walking parent links.
func medianTimePast(entry *blockindex.Entry) uint32 {
	var times []uint32
	e := entry
	for i := 0; i < config.MedianTimeSpan && e != nil; i++ {
		times = append(times, e.Header.Time)
		e = e.Parent
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times[len(times)/2]
}

// checkContextual validates everything about a header that depends on its
// position in the chain rather than its own bytes: median-time-past,
// future-timestamp skew, and (when the engine supports it) the retarget
// bits value.
func (m *Manager) checkContextual(entry *blockindex.Entry, now uint32) error {
	if entry.Parent != nil {
		mtp := medianTimePast(entry.Parent)
		if entry.Header.Time <= mtp {
			return consensusErr(SubBadTime, fmt.Errorf("timestamp %d not after median-time-past %d", entry.Header.Time, mtp))
		}
	}
	if int64(entry.Header.Time) > int64(now)+config.MaxFutureSkew {
		return consensusErr(SubBadTime, fmt.Errorf("timestamp %d too far in the future", entry.Header.Time))
	}

	if dc, ok := m.engine.(difficultyChecker); ok && entry.Parent != nil {
		if err := dc.VerifyDifficulty(entry.Header, entry.Height, entry.Parent.Header.Bits, m.getTimestampFn()); err != nil {
			return consensusErr(SubBadTime, err)
		}
	}
	return nil
}

// connectBlock applies blk's transactions to the coin cache, extends the
// active chain by one, and persists the block and its undo record. entry
// must already be indexed and must be the child of the current tip (or the
// first block ever, for genesis). Follows the connect-block steps: context
// checks, maturity/double-spend checks via the coin view, script
// verification, coinbase value check, then commit.
func (m *Manager) connectBlock(blk *block.Block, entry *blockindex.Entry) error {
	if err := m.checkContextual(entry, nowSeconds()); err != nil {
		return err
	}

	sigOps, err := script.CountBlockSigOps(blk.Transactions)
	if err != nil {
		return consensusErr(SubBadScript, err)
	}
	if sigOps > config.MaxBlockSigops {
		return consensusErr(SubBadSigops, fmt.Errorf("block has %d sigops, max allowed is %d", sigOps, config.MaxBlockSigops))
	}

	child := coinview.NewCacheView(m.cache)
	undo := &blockstore.UndoBlock{}

	var totalFees int64
	var sigJobs []script.Job

	for _, t := range blk.Transactions {
		isCoinbase := t.IsCoinbase()
		var inputSum int64

		if !isCoinbase {
			for inIdx, in := range t.Inputs {
				coin, found, err := child.GetCoin(in.PrevOut)
				if err != nil {
					return newErr(ReasonStorageIO, "", err)
				}
				if !found {
					return newErr(ReasonMissingInputs, SubDuplicate, fmt.Errorf("prevout %s missing or already spent", in.PrevOut))
				}
				if coin.IsCoinbase && entry.Height < uint64(coin.Height)+config.CoinbaseMaturity {
					return consensusErr(SubPrematureSpend, fmt.Errorf("coinbase at height %d not yet mature at %d", coin.Height, entry.Height))
				}
				inputSum += coin.Out.Value
				sigJobs = append(sigJobs, script.Job{Tx: t, InputIdx: inIdx, PrevScript: coin.Out.Script, PrevValue: coin.Out.Value})

				spent, found, err := child.SpendCoin(in.PrevOut)
				if err != nil {
					return newErr(ReasonStorageIO, "", err)
				}
				if !found {
					return newErr(ReasonInternal, "", fmt.Errorf("coin disappeared between read and spend for %s", in.PrevOut))
				}
				undo.Spent = append(undo.Spent, blockstore.SpentCoin{OutPoint: in.PrevOut, Coin: spent})
			}

			outputSum, err := t.TotalOutputValue()
			if err != nil {
				return consensusErr(SubBadTx, err)
			}
			if inputSum < outputSum {
				return consensusErr(SubBadTx, fmt.Errorf("tx %s spends more than its inputs", t.Hash()))
			}
			totalFees += inputSum - outputSum
		}

		for outIdx, out := range t.Outputs {
			op := types.OutPoint{TxID: t.Hash(), Index: uint32(outIdx)}
			child.AddCoin(op, coinview.NewCoin(out, uint32(entry.Height), isCoinbase), true)
		}
	}

	if err := script.VerifyAll(context.Background(), sigJobs); err != nil {
		return consensusErr(SubBadScript, err)
	}

	coinbase := blk.Coinbase()
	if coinbase == nil {
		return consensusErr(SubBadCoinbase, fmt.Errorf("block has no coinbase transaction"))
	}
	coinbaseValue, err := coinbase.TotalOutputValue()
	if err != nil {
		return consensusErr(SubBadCoinbase, err)
	}
	subsidy := consensus.Subsidy(entry.Height, m.cfg.BaseSubsidy, m.cfg.HalvingInterval)
	if coinbaseValue > int64(subsidy)+totalFees {
		return consensusErr(SubBadCoinbase, fmt.Errorf("coinbase pays %d, max allowed is %d", coinbaseValue, int64(subsidy)+totalFees))
	}

	child.SetBestBlock(entry.Hash)
	if err := child.Flush(); err != nil {
		return newErr(ReasonStorageIO, "", err)
	}

	if err := m.store.CommitBlock(blk, entry.Height, undo); err != nil {
		return newErr(ReasonStorageIO, "", err)
	}
	if err := m.index.SetStatus(entry.Hash, blockindex.StatusScriptsValid); err != nil {
		return newErr(ReasonInternal, "", err)
	}

	m.activeChain = append(m.activeChain, entry)
	if m.cache.ShouldFlush(m.cfg.CoinCacheMaxBytes) {
		if err := m.cache.Flush(); err != nil {
			return newErr(ReasonStorageIO, "", err)
		}
	}

	var confirmed []types.Hash
	for _, t := range blk.Transactions {
		confirmed = append(confirmed, t.Hash())
	}
	if m.mempool != nil {
		m.mempool.RemoveConfirmed(confirmed)
	}

	m.emitNewTip(entry.Hash, entry.Height)
	return nil
}

// disconnectTip reverts the current tip using its stored undo record,
// restoring every coin it spent and removing every coin it created, then
// shrinks the active chain by one.
func (m *Manager) disconnectTip() (*block.Block, error) {
	tip := m.tipLocked()
	if tip == nil {
		return nil, fmt.Errorf("chainstate: no tip to disconnect")
	}

	blk, err := m.store.GetBlock(tip.Hash)
	if err != nil {
		return nil, newErr(ReasonStorageIO, "", err)
	}
	undo, err := m.store.GetUndo(tip.Hash)
	if err != nil {
		return nil, newErr(ReasonStorageIO, "", err)
	}

	spentIdx := len(undo.Spent)
	for i := len(blk.Transactions) - 1; i >= 0; i-- {
		t := blk.Transactions[i]
		for outIdx := range t.Outputs {
			m.cache.SpendCoin(types.OutPoint{TxID: t.Hash(), Index: uint32(outIdx)})
		}
		if t.IsCoinbase() {
			continue
		}
		for j := len(t.Inputs) - 1; j >= 0 && spentIdx > 0; j-- {
			spentIdx--
			m.cache.RestoreCoin(undo.Spent[spentIdx].OutPoint, undo.Spent[spentIdx].Coin)
		}
	}

	parentHash := types.Hash{}
	if tip.Parent != nil {
		parentHash = tip.Parent.Hash
	}
	m.cache.SetBestBlock(parentHash)

	if err := m.store.RemoveConnected(blk, tip.Height); err != nil {
		return nil, newErr(ReasonStorageIO, "", err)
	}
	m.activeChain = m.activeChain[:len(m.activeChain)-1]

	if m.mempool != nil {
		m.mempool.Resubmit(blk.Transactions)
	}
	return blk, nil
}

// reorgTo switches the active chain to target's branch, which must carry
// strictly more cumulative work than the current tip. Disconnects down to
// the fork point, then connects target's branch block by block; if
// connecting any new block fails partway, already-connected blocks from the
// new branch are rolled back and the original tip is restored.
func (m *Manager) reorgTo(target *blockindex.Entry) error {
	tip := m.tipLocked()
	fork, err := m.index.FindFork(tip, target)
	if err != nil {
		return newErr(ReasonInternal, "", err)
	}

	depth := tip.Height - fork.Height
	if depth > m.cfg.MaxReorgDepth {
		return newErr(ReasonReorgTooDeep, "", fmt.Errorf("reorg would disconnect %d blocks, limit is %d", depth, m.cfg.MaxReorgDepth))
	}

	var connectPath []*blockindex.Entry
	for e := target; e != nil && e != fork; e = e.Parent {
		connectPath = append([]*blockindex.Entry{e}, connectPath...)
	}

	var disconnected []*block.Block
	for m.tipLocked() != nil && m.tipLocked() != fork {
		blk, err := m.disconnectTip()
		if err != nil {
			return newErr(ReasonInternal, "", err)
		}
		disconnected = append(disconnected, blk)
	}

	for _, entry := range connectPath {
		blk, err := m.store.GetBlock(entry.Hash)
		if err != nil {
			return newErr(ReasonStorageIO, "", err)
		}
		if err := m.connectBlock(blk, entry); err != nil {
			// The block (and anything indexed under it) never validated on
			// this branch; mark it failed so a later AcceptBlock doesn't
			// try to reorg onto it again.
			m.index.MarkFailed(entry.Hash)

			// Roll back: unwind whatever of the new branch connected so
			// far, then restore every block the old branch had.
			for m.tipLocked() != nil && m.tipLocked() != fork {
				m.disconnectTip()
			}
			for i := len(disconnected) - 1; i >= 0; i-- {
				oldEntry, _ := m.index.Get(disconnected[i].Hash())
				if oldEntry == nil {
					return newErr(ReasonInternal, "", fmt.Errorf("chainstate: lost index entry during reorg rollback"))
				}
				if rerr := m.connectBlock(disconnected[i], oldEntry); rerr != nil {
					return newErr(ReasonInternal, "", fmt.Errorf("chainstate: reorg rollback failed: %w", rerr))
				}
			}
			return err
		}
	}

	return nil
}
