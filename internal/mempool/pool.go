// Package mempool manages pending transactions waiting for block inclusion:
// dependency-aware admission, ancestor/descendant limit enforcement,
// replace-by-fee, and fee-rate/size eviction under pressure.
package mempool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shurium/shurium-node/config"
	"github.com/shurium/shurium-node/internal/coinview"
	"github.com/shurium/shurium-node/pkg/tx"
	"github.com/shurium/shurium-node/pkg/types"
)

// Mempool errors.
var (
	ErrAlreadyExists      = errors.New("transaction already in mempool")
	ErrConflict           = errors.New("transaction conflicts with existing mempool entry")
	ErrValidation         = errors.New("transaction failed validation")
	ErrFeeTooLow          = errors.New("transaction fee below minimum")
	ErrCoinbaseNotMature  = errors.New("coinbase output not mature")
	ErrTooManyAncestors   = errors.New("transaction has too many in-mempool ancestors")
	ErrAncestorTooLarge   = errors.New("in-mempool ancestor package exceeds the size limit")
	ErrTooManyDescendants = errors.New("an ancestor already has too many in-mempool descendants")
	ErrDescendantTooLarge = errors.New("an ancestor's descendant package would exceed the size limit")
)

// CoinLookup is the slice of chainstate's coin view the mempool needs: read
// access to confirmed, unspent outputs. Satisfied directly by
// *coinview.CacheView or *coinview.DBView.
type CoinLookup interface {
	GetCoin(op types.OutPoint) (coinview.Coin, bool, error)
}

// Config bounds pool admission limits.
type Config struct {
	MaxAncestors      int    // default 25
	MaxAncestorSize   uint64 // default 101_000 bytes
	MaxDescendants    int    // default 25
	MaxDescendantSize uint64 // default 101_000 bytes
	MaxMempoolBytes   uint64 // default 300_000_000
	MaxTxSize         int    // default config.MaxTxSize
	MaxReplacements   int    // default 100, RBF replaced-tx cap
}

// DefaultConfig returns sensible concrete default limits.
func DefaultConfig() Config {
	return Config{
		MaxAncestors:      25,
		MaxAncestorSize:   101_000,
		MaxDescendants:    25,
		MaxDescendantSize: 101_000,
		MaxMempoolBytes:   300_000_000,
		MaxTxSize:         config.MaxTxSize,
		MaxReplacements:   100,
	}
}

// Pool holds unconfirmed transactions as a dependency DAG, keyed by txid.
type Pool struct {
	mu      sync.RWMutex
	entries map[types.Hash]*Entry
	spends  map[types.OutPoint]types.Hash // conflict index

	coins    CoinLookup
	heightFn func() uint64
	cfg      Config
	policy   *Policy

	totalBytes uint64
	minFeeRate float64 // dynamic floor, base units per byte
}

// New creates a mempool backed by coins for confirmed-UTXO lookups and
// heightFn for coinbase maturity checks.
func New(coins CoinLookup, heightFn func() uint64, cfg Config) *Pool {
	if cfg.MaxAncestors == 0 {
		cfg = DefaultConfig()
	}
	return &Pool{
		entries:  make(map[types.Hash]*Entry),
		spends:   make(map[types.OutPoint]types.Hash),
		coins:    coins,
		heightFn: heightFn,
		cfg:      cfg,
		policy:   &Policy{MaxTxSize: cfg.MaxTxSize},
	}
}

// MinFeeRate returns the current dynamic fee-rate floor.
func (p *Pool) MinFeeRate() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.minFeeRate
}

// SetMinFeeRate overrides the dynamic floor directly — used by tests and by
// a node operator's policy configuration.
func (p *Pool) SetMinFeeRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minFeeRate = rate
}

// Has reports whether a transaction is pooled.
func (p *Pool) Has(txid types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.entries[txid]
	return ok
}

// Get retrieves a pooled transaction.
func (p *Pool) Get(txid types.Hash) *tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[txid]
	if !ok {
		return nil
	}
	return e.Tx
}

// Count returns the number of pooled transactions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Snapshot returns every pooled entry for read-only inspection (block
// assembly, RPC reporting). The returned entries are the pool's own —
// callers must not mutate them.
func (p *Pool) Snapshot() []*Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Entry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	return out
}

// Hashes returns every pooled transaction's hash.
func (p *Pool) Hashes() []types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]types.Hash, 0, len(p.entries))
	for h := range p.entries {
		out = append(out, h)
	}
	return out
}

// Add validates and admits a transaction: reject duplicates and
// unreplaceable conflicts, run structural and policy checks, enforce the
// fee-rate floor, check ancestor/descendant limits, then insert and
// update the DAG aggregates, finally evicting under size pressure if the
// pool is now over its byte cap.
func (p *Pool) Add(t *tx.Transaction) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t.IsCoinbase() {
		return 0, fmt.Errorf("%w: coinbase transactions are not relayed standalone", ErrValidation)
	}

	txid := t.Hash()
	if _, exists := p.entries[txid]; exists {
		return 0, ErrAlreadyExists
	}

	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := p.policy.Check(t); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	vsize := uint64(len(t.Serialize()))

	conflicts := p.findConflicts(t)

	fee, err := p.computeFee(t)
	if err != nil {
		return 0, err
	}

	feeRate := float64(fee) / float64(vsize)
	if len(conflicts) == 0 && p.minFeeRate > 0 && feeRate < p.minFeeRate {
		return 0, fmt.Errorf("%w: rate %.4f below floor %.4f", ErrFeeTooLow, feeRate, p.minFeeRate)
	}

	if len(conflicts) > 0 {
		if err := p.checkReplacement(conflicts, fee, feeRate); err != nil {
			return 0, err
		}
	}

	ancestors, ancestorSize, ancestorFee := p.ancestorPackage(t, vsize, fee)
	if len(ancestors)+1 > p.cfg.MaxAncestors {
		return 0, fmt.Errorf("%w: %d, max %d", ErrTooManyAncestors, len(ancestors)+1, p.cfg.MaxAncestors)
	}
	if ancestorSize > p.cfg.MaxAncestorSize {
		return 0, fmt.Errorf("%w: %d bytes, max %d", ErrAncestorTooLarge, ancestorSize, p.cfg.MaxAncestorSize)
	}
	for anc := range ancestors {
		ae := p.entries[anc]
		if ae.DescendantCount+1 > p.cfg.MaxDescendants {
			return 0, fmt.Errorf("%w: ancestor %s", ErrTooManyDescendants, anc)
		}
		if ae.DescendantSize+vsize > p.cfg.MaxDescendantSize {
			return 0, fmt.Errorf("%w: ancestor %s", ErrDescendantTooLarge, anc)
		}
	}

	if len(conflicts) > 0 {
		for _, c := range conflicts {
			p.removeWithDescendants(c)
		}
	}

	e := newEntry(t, fee, vsize, time.Now().Unix())
	e.Ancestors = ancestors
	e.AncestorCount = len(ancestors) + 1
	e.AncestorSize = ancestorSize
	e.AncestorFee = ancestorFee
	p.entries[txid] = e

	for anc := range ancestors {
		ae := p.entries[anc]
		ae.Descendants[txid] = struct{}{}
		ae.DescendantCount++
		ae.DescendantSize += vsize
		ae.DescendantFee += fee
	}
	for _, in := range t.Inputs {
		if !in.PrevOut.IsZero() {
			p.spends[in.PrevOut] = txid
		}
	}
	p.totalBytes += vsize

	if p.totalBytes > p.cfg.MaxMempoolBytes {
		p.evictUnderPressure()
	}

	return fee, nil
}

// findConflicts returns the distinct pool entries whose outputs t's inputs
// already spend. A non-empty result means t is a replacement candidate,
// not a plain double-spend.
func (p *Pool) findConflicts(t *tx.Transaction) []types.Hash {
	seen := make(map[types.Hash]struct{})
	var out []types.Hash
	for _, in := range t.Inputs {
		if in.PrevOut.IsZero() {
			continue
		}
		if conflictID, exists := p.spends[in.PrevOut]; exists {
			if _, dup := seen[conflictID]; !dup {
				seen[conflictID] = struct{}{}
				out = append(out, conflictID)
			}
		}
	}
	return out
}

// computeFee sums confirmed and in-pool input values and subtracts total
// output value, rejecting premature coinbase spends and overspends.
func (p *Pool) computeFee(t *tx.Transaction) (uint64, error) {
	var inputSum int64
	height := p.heightFn()

	for _, in := range t.Inputs {
		if parentEntry, ok := p.entries[in.PrevOut.TxID]; ok {
			if int(in.PrevOut.Index) >= len(parentEntry.Tx.Outputs) {
				return 0, fmt.Errorf("%w: prevout index out of range", ErrValidation)
			}
			inputSum += parentEntry.Tx.Outputs[in.PrevOut.Index].Value
			continue
		}

		coin, found, err := p.coins.GetCoin(in.PrevOut)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if !found {
			return 0, fmt.Errorf("%w: prevout %s unknown", ErrValidation, in.PrevOut)
		}
		if coin.IsCoinbase && height < uint64(coin.Height)+config.CoinbaseMaturity {
			return 0, fmt.Errorf("%w: need height %d, have %d", ErrCoinbaseNotMature, uint64(coin.Height)+config.CoinbaseMaturity, height)
		}
		inputSum += coin.Out.Value
	}

	outputSum, err := t.TotalOutputValue()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if inputSum < outputSum {
		return 0, fmt.Errorf("%w: inputs %d < outputs %d", ErrValidation, inputSum, outputSum)
	}
	return uint64(inputSum - outputSum), nil
}

// ancestorPackage returns the full transitive set of in-pool ancestors for
// t, plus the package size/fee including t itself.
func (p *Pool) ancestorPackage(t *tx.Transaction, vsize, fee uint64) (map[types.Hash]struct{}, uint64, uint64) {
	ancestors := make(map[types.Hash]struct{})
	size, totalFee := vsize, fee

	for _, in := range t.Inputs {
		parent, ok := p.entries[in.PrevOut.TxID]
		if !ok {
			continue
		}
		if _, already := ancestors[parent.TxID]; !already {
			ancestors[parent.TxID] = struct{}{}
			size += parent.VSize
			totalFee += parent.Fee
		}
		for a := range parent.Ancestors {
			if _, already := ancestors[a]; already {
				continue
			}
			ae, ok := p.entries[a]
			if !ok {
				continue
			}
			ancestors[a] = struct{}{}
			size += ae.VSize
			totalFee += ae.Fee
		}
	}
	return ancestors, size, totalFee
}

// checkReplacement enforces the replace-by-fee rule: the replacement must pay
// a strictly higher absolute fee and a strictly higher fee-rate than the
// union of everything it replaces, and the replaced set must be small.
func (p *Pool) checkReplacement(conflicts []types.Hash, newFee uint64, newFeeRate float64) error {
	replaced := make(map[types.Hash]struct{})
	for _, c := range conflicts {
		replaced[c] = struct{}{}
		if e, ok := p.entries[c]; ok {
			for d := range e.Descendants {
				replaced[d] = struct{}{}
			}
		}
	}
	if len(replaced) > p.cfg.MaxReplacements {
		return fmt.Errorf("%w: replacement set of %d exceeds limit %d", ErrConflict, len(replaced), p.cfg.MaxReplacements)
	}

	var replacedFee uint64
	var replacedSize uint64
	for h := range replaced {
		e, ok := p.entries[h]
		if !ok {
			continue
		}
		replacedFee += e.Fee
		replacedSize += e.VSize
	}
	replacedRate := 0.0
	if replacedSize > 0 {
		replacedRate = float64(replacedFee) / float64(replacedSize)
	}
	if newFee <= replacedFee || newFeeRate <= replacedRate {
		return fmt.Errorf("%w: replacement must pay strictly more (fee %d vs %d, rate %.4f vs %.4f)",
			ErrConflict, newFee, replacedFee, newFeeRate, replacedRate)
	}
	return nil
}

// removeWithDescendants removes root and every transaction that descends
// from it, leaf-first so each removal's aggregate bookkeeping stays
// consistent. Used for RBF replacement and confirmed-block conflicts.
func (p *Pool) removeWithDescendants(root types.Hash) {
	e, ok := p.entries[root]
	if !ok {
		return
	}
	set := map[types.Hash]struct{}{root: {}}
	for d := range e.Descendants {
		set[d] = struct{}{}
	}
	for len(set) > 0 {
		removedOne := false
		for h := range set {
			he, ok := p.entries[h]
			if !ok {
				delete(set, h)
				removedOne = true
				continue
			}
			leaf := true
			for d := range he.Descendants {
				if _, stillPending := set[d]; stillPending {
					leaf = false
					break
				}
			}
			if !leaf {
				continue
			}
			p.removeLocked(h)
			delete(set, h)
			removedOne = true
		}
		if !removedOne {
			break // defensive: a cycle should never exist in a DAG.
		}
	}
}

// Remove drops a single transaction from the pool without touching its
// descendants — used for confirmed-block removal, where descendants simply
// lose one ancestor rather than being invalidated.
func (p *Pool) Remove(txid types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txid)
}

func (p *Pool) removeLocked(txid types.Hash) {
	e, ok := p.entries[txid]
	if !ok {
		return
	}
	for _, in := range e.Tx.Inputs {
		if !in.PrevOut.IsZero() {
			if spender, exists := p.spends[in.PrevOut]; exists && spender == txid {
				delete(p.spends, in.PrevOut)
			}
		}
	}
	for anc := range e.Ancestors {
		if ae, ok := p.entries[anc]; ok {
			delete(ae.Descendants, txid)
			ae.DescendantCount--
			ae.DescendantSize -= e.VSize
			ae.DescendantFee -= e.Fee
		}
	}
	for d := range e.Descendants {
		if de, ok := p.entries[d]; ok {
			delete(de.Ancestors, txid)
			de.AncestorCount--
			de.AncestorSize -= e.VSize
			de.AncestorFee -= e.Fee
		}
	}
	delete(p.entries, txid)
	p.totalBytes -= e.VSize
}

// RemoveConfirmed drops every transaction that just landed in a connected
// block. Descendants left in the pool keep their remaining ancestors;
// parent/child links into confirmed transactions are simply severed.
func (p *Pool) RemoveConfirmed(txids []types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range txids {
		p.removeLocked(id)
	}
}

// Resubmit offers every transaction from a disconnected block back to the
// pool. A transaction that no longer validates (its inputs were spent by
// something else already, or it's now a duplicate) is silently dropped:
// losing a reorg'd transaction is expected behavior, not an error.
func (p *Pool) Resubmit(txs []*tx.Transaction) {
	for _, t := range txs {
		if t.IsCoinbase() {
			continue
		}
		p.Add(t)
	}
}
