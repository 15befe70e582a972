// Package assembler builds candidate blocks from the active chain tip and
// the mempool: package-aware greedy transaction selection by ancestor
// fee-rate, a coinbase sized to the subsidy schedule plus collected fees,
// and proof-of-work sealing.
package assembler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shurium/shurium-node/config"
	"github.com/shurium/shurium-node/internal/chainstate"
	"github.com/shurium/shurium-node/internal/consensus"
	"github.com/shurium/shurium-node/internal/mempool"
	"github.com/shurium/shurium-node/internal/script"
	"github.com/shurium/shurium-node/pkg/block"
	"github.com/shurium/shurium-node/pkg/tx"
	"github.com/shurium/shurium-node/pkg/types"
)

// Config bounds how large an assembled block may be.
type Config struct {
	MaxBlockTxs     int // including the coinbase; default config.MaxBlockTxs
	MaxBlockSize    int // serialized bytes; default config.MaxBlockSize
	MaxBlockSigops  int // legacy-counted sigops; default config.MaxBlockSigops
	BaseSubsidy     uint64
	HalvingInterval uint64
}

// DefaultConfig mirrors the consensus-level block limits.
func DefaultConfig(baseSubsidy, halvingInterval uint64) Config {
	return Config{
		MaxBlockTxs:     config.MaxBlockTxs,
		MaxBlockSize:    config.MaxBlockSize,
		MaxBlockSigops:  config.MaxBlockSigops,
		BaseSubsidy:     baseSubsidy,
		HalvingInterval: halvingInterval,
	}
}

// Assembler produces candidate blocks extending the chainstate's active tip.
type Assembler struct {
	chain        *chainstate.Manager
	engine       consensus.Engine
	pool         *mempool.Pool
	coinbaseAddr types.Address
	cfg          Config
}

// New creates an Assembler. pool may be nil, in which case every block is
// coinbase-only.
func New(chain *chainstate.Manager, engine consensus.Engine, pool *mempool.Pool, coinbaseAddr types.Address, cfg Config) *Assembler {
	if cfg.MaxBlockTxs == 0 {
		cfg.MaxBlockTxs = config.MaxBlockTxs
	}
	if cfg.MaxBlockSize == 0 {
		cfg.MaxBlockSize = config.MaxBlockSize
	}
	if cfg.MaxBlockSigops == 0 {
		cfg.MaxBlockSigops = config.MaxBlockSigops
	}
	return &Assembler{chain: chain, engine: engine, pool: pool, coinbaseAddr: coinbaseAddr, cfg: cfg}
}

// AssembleBlock builds, seals, and returns a new block extending the
// current tip. The block is not submitted to chainstate — callers pass it
// to Manager.AcceptBlock themselves. ctx cancels proof-of-work sealing.
func (a *Assembler) AssembleBlock(ctx context.Context) (*block.Block, error) {
	tip := a.chain.Tip()
	if tip == nil {
		return nil, fmt.Errorf("assembler: no active tip; connect a genesis block first")
	}
	height := tip.Height + 1

	timestamp := uint32(time.Now().Unix())
	if timestamp <= tip.Header.Time {
		timestamp = tip.Header.Time + 1
	}

	selected, totalFees := a.selectTransactions()

	reward := consensus.Subsidy(height, a.cfg.BaseSubsidy, a.cfg.HalvingInterval)
	coinbase := buildCoinbase(a.coinbaseAddr, int64(reward+totalFees), height)

	txs := make([]*tx.Transaction, 0, 1+len(selected))
	txs = append(txs, coinbase)
	txs = append(txs, selected...)

	hashes := make([]types.Hash, len(txs))
	for i, t := range txs {
		hashes[i] = t.Hash()
	}

	header := &block.Header{
		Version:    block.CurrentVersion,
		PrevHash:   tip.Hash,
		MerkleRoot: block.ComputeMerkleRoot(hashes),
		Time:       timestamp,
	}

	if err := a.engine.Prepare(header, height, tip.Header.Bits); err != nil {
		return nil, fmt.Errorf("assembler: prepare header: %w", err)
	}

	blk := block.NewBlock(header, txs)

	if pow, ok := a.engine.(*consensus.PoW); ok {
		if err := pow.SealWithCancel(ctx, blk); err != nil {
			return nil, fmt.Errorf("assembler: seal block: %w", err)
		}
	} else if err := a.engine.Seal(blk); err != nil {
		return nil, fmt.Errorf("assembler: seal block: %w", err)
	}

	return blk, nil
}

// selectTransactions greedily fills a block by descending package
// (ancestor) fee-rate: the pool entry with the richest in-pool ancestor
// package goes first, pulling its unselected ancestors in with it in
// dependency order, skipped wholesale if it would not fit — by transaction
// count, serialized size, or legacy sigop count.
func (a *Assembler) selectTransactions() ([]*tx.Transaction, uint64) {
	if a.pool == nil {
		return nil, 0
	}

	candidates := a.pool.Snapshot()
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].AncestorFeeRate() > candidates[j].AncestorFeeRate()
	})

	byID := make(map[types.Hash]*mempool.Entry, len(candidates))
	for _, e := range candidates {
		byID[e.TxID] = e
	}

	included := make(map[types.Hash]struct{})
	var selected []*tx.Transaction
	var totalFees uint64

	slotsLeft := a.cfg.MaxBlockTxs - 1 // reserve the coinbase slot
	sizeLeft := a.cfg.MaxBlockSize - block.HeaderSize
	sigopsLeft := a.cfg.MaxBlockSigops

	for _, e := range candidates {
		if _, done := included[e.TxID]; done {
			continue
		}

		pkg := packageOf(e, byID, included)
		if len(pkg) == 0 {
			continue
		}
		ordered := topoOrder(pkg)

		pkgSize, pkgFee, pkgSigops := 0, uint64(0), 0
		skip := false
		for _, m := range ordered {
			pkgSize += int(m.VSize)
			pkgFee += m.Fee
			n, err := script.CountTxSigOps(m.Tx)
			if err != nil {
				skip = true
				break
			}
			pkgSigops += n
		}
		if skip {
			continue
		}
		if len(ordered) > slotsLeft || pkgSize > sizeLeft || pkgSigops > sigopsLeft {
			continue
		}

		for _, m := range ordered {
			included[m.TxID] = struct{}{}
			selected = append(selected, m.Tx)
		}
		slotsLeft -= len(ordered)
		sizeLeft -= pkgSize
		sigopsLeft -= pkgSigops
		totalFees += pkgFee
	}

	return selected, totalFees
}

// packageOf returns e and every one of its in-pool ancestors not already
// included, as an unordered set keyed by txid.
func packageOf(e *mempool.Entry, byID map[types.Hash]*mempool.Entry, included map[types.Hash]struct{}) map[types.Hash]*mempool.Entry {
	pkg := map[types.Hash]*mempool.Entry{e.TxID: e}
	for a := range e.Ancestors {
		if _, done := included[a]; done {
			continue
		}
		if ae, ok := byID[a]; ok {
			pkg[a] = ae
		}
	}
	return pkg
}

// topoOrder returns pkg's entries ordered so that every ancestor appears
// before its descendants — the order a block's transactions must follow.
func topoOrder(pkg map[types.Hash]*mempool.Entry) []*mempool.Entry {
	placed := make(map[types.Hash]struct{}, len(pkg))
	ordered := make([]*mempool.Entry, 0, len(pkg))

	for len(ordered) < len(pkg) {
		progressed := false
		for id, e := range pkg {
			if _, done := placed[id]; done {
				continue
			}
			ready := true
			for a := range e.Ancestors {
				if _, inPkg := pkg[a]; !inPkg {
					continue
				}
				if _, done := placed[a]; !done {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			placed[id] = struct{}{}
			ordered = append(ordered, e)
			progressed = true
		}
		if !progressed {
			break // defensive: a cycle should never exist in a DAG.
		}
	}
	return ordered
}

// buildCoinbase creates a coinbase transaction paying reward to addr. The
// block height is encoded in the input's script_sig so that distinct
// heights never collide on the same coinbase hash.
func buildCoinbase(addr types.Address, reward int64, height uint64) *tx.Transaction {
	heightTag := make([]byte, 8)
	for i := 0; i < 8; i++ {
		heightTag[i] = byte(height >> (8 * i))
	}
	return &tx.Transaction{
		Version: 1,
		Inputs: []tx.TxIn{{
			PrevOut:   types.OutPoint{},
			ScriptSig: heightTag,
			Sequence:  0xffffffff,
		}},
		Outputs: []tx.TxOut{{
			Value:  reward,
			Script: types.NewP2PKHScript(addr),
		}},
	}
}
