package coinview

import "github.com/shurium/shurium-node/pkg/types"

// entryFlags tracks how a cached coin relates to the layer beneath it,
// mirroring the packed-flags scheme of a classic UTXO viewpoint cache:
// dirty entries need to be written on flush, fresh entries don't exist in
// any lower layer at all (so a spent-and-fresh entry can just be dropped
// instead of written as a tombstone), and spent entries shadow a live coin
// below without deleting it from this layer's bookkeeping until flush.
type entryFlags uint8

const (
	flagDirty entryFlags = 1 << iota
	flagFresh
	flagSpent
)

// approxEntryOverhead estimates the fixed per-entry cost (outpoint key,
// map bucket, struct fields) on top of a coin's script bytes, for the
// cache's soft memory cap.
const approxEntryOverhead = 96

type cacheEntry struct {
	coin  Coin
	flags entryFlags
}

func (e *cacheEntry) size() int {
	return approxEntryOverhead + len(e.coin.Out.Script)
}

// CacheView is a flushable in-memory layer stacked over a parent CoinView
// (another cache, or the persistent DBView). Multiple layers can stack —
// ephemeral per-block views sit atop the chainstate's long-lived cache,
// which sits atop the database.
type CacheView struct {
	parent     CoinView
	entries    map[types.OutPoint]*cacheEntry
	best       types.Hash
	bestKnown  bool
	approxSize int
}

// NewCacheView creates an empty cache layered over parent. parent may be
// nil for a view used purely as a standalone scratch space in tests.
func NewCacheView(parent CoinView) *CacheView {
	return &CacheView{
		parent:  parent,
		entries: make(map[types.OutPoint]*cacheEntry),
	}
}

// GetCoin implements CoinView, pulling from the parent and caching on miss.
func (v *CacheView) GetCoin(op types.OutPoint) (Coin, bool, error) {
	if e, ok := v.entries[op]; ok {
		if e.flags&flagSpent != 0 {
			return Coin{}, false, nil
		}
		return e.coin, true, nil
	}
	if v.parent == nil {
		return Coin{}, false, nil
	}
	coin, found, err := v.parent.GetCoin(op)
	if err != nil {
		return Coin{}, false, err
	}
	if !found {
		return Coin{}, false, nil
	}
	e := &cacheEntry{coin: coin}
	v.entries[op] = e
	v.approxSize += e.size()
	return coin, true, nil
}

// HaveCoin implements CoinView.
func (v *CacheView) HaveCoin(op types.OutPoint) (bool, error) {
	_, found, err := v.GetCoin(op)
	return found, err
}

// GetBestBlock implements CoinView.
func (v *CacheView) GetBestBlock() (types.Hash, error) {
	if v.bestKnown {
		return v.best, nil
	}
	if v.parent == nil {
		return types.Hash{}, nil
	}
	best, err := v.parent.GetBestBlock()
	if err != nil {
		return types.Hash{}, err
	}
	v.best = best
	v.bestKnown = true
	return best, nil
}

// SetBestBlock updates the view's notion of the best block without
// touching any coin entries. Used while connecting a block's transactions,
// ahead of the final Flush/BatchWrite.
func (v *CacheView) SetBestBlock(h types.Hash) {
	v.best = h
	v.bestKnown = true
}

// AddCoin records a newly created output. fresh should be true when the
// caller knows no layer below this one can possibly already hold a live
// coin at op (the ordinary case: a transaction's output did not exist
// before this block connected it). fresh=false is for a coin a lower layer
// may already hold (RestoreCoin uses it for such coins).
func (v *CacheView) AddCoin(op types.OutPoint, coin Coin, fresh bool) {
	e, ok := v.entries[op]
	if !ok {
		e = &cacheEntry{}
		v.entries[op] = e
	} else {
		v.approxSize -= e.size()
	}
	e.coin = coin
	e.flags = flagDirty
	if fresh {
		e.flags |= flagFresh
	}
	v.approxSize += e.size()
}

// SpendCoin marks the coin at op as spent in this layer, returning it so
// the caller can build an undo record. Returns found=false if no live coin
// exists at op in this view or any parent.
func (v *CacheView) SpendCoin(op types.OutPoint) (coin Coin, found bool, err error) {
	coin, found, err = v.GetCoin(op)
	if err != nil || !found {
		return Coin{}, false, err
	}

	e := v.entries[op]
	if e.flags&flagFresh != 0 {
		// Nothing below this layer has ever seen the coin — dropping the
		// entry entirely is equivalent to recording and later flushing a
		// delete, so skip the round trip.
		v.approxSize -= e.size()
		delete(v.entries, op)
		return coin, true, nil
	}

	e.flags |= flagSpent | flagDirty
	return coin, true, nil
}

// RestoreCoin re-adds a coin removed by a block being disconnected. The
// restored coin is marked fresh only when this layer holds no entry for op
// (its spend was already flushed below, so nothing below holds it). A
// non-fresh spent entry means the layer below may still hold the coin, so
// the restored coin is written back as an ordinary dirty entry.
func (v *CacheView) RestoreCoin(op types.OutPoint, coin Coin) {
	fresh := true
	if e, ok := v.entries[op]; ok && e.flags&flagFresh == 0 {
		fresh = false
	}
	v.AddCoin(op, coin, fresh)
}

// Uncache drops a clean (non-dirty) entry from the cache. Used to bound
// memory for entries touched only for a read.
func (v *CacheView) Uncache(op types.OutPoint) {
	e, ok := v.entries[op]
	if !ok || e.flags&flagDirty != 0 {
		return
	}
	v.approxSize -= e.size()
	delete(v.entries, op)
}

// ShouldFlush reports whether the cache's approximate byte size has
// crossed the given soft cap.
func (v *CacheView) ShouldFlush(maxBytes int) bool {
	return v.approxSize > maxBytes
}

// ApproxSize returns the cache's estimated byte footprint.
func (v *CacheView) ApproxSize() int {
	return v.approxSize
}

// changes builds the pending write set for every dirty entry.
func (v *CacheView) changes() map[types.OutPoint]Change {
	changes := make(map[types.OutPoint]Change, len(v.entries))
	for op, e := range v.entries {
		if e.flags&flagDirty == 0 {
			continue
		}
		if e.flags&flagSpent != 0 {
			changes[op] = Change{Exists: false}
		} else {
			changes[op] = Change{Coin: e.coin, Exists: true}
		}
	}
	return changes
}

// BatchWrite implements CoinView by merging an externally supplied change
// set into this layer, as a parent cache absorbing a child's flush.
func (v *CacheView) BatchWrite(changes map[types.OutPoint]Change, best types.Hash) error {
	for op, change := range changes {
		e, ok := v.entries[op]
		if ok {
			v.approxSize -= e.size()
		} else {
			e = &cacheEntry{}
			v.entries[op] = e
		}
		if change.Exists {
			e.coin = change.Coin
			e.flags = flagDirty
		} else {
			e.flags = flagDirty | flagSpent
		}
		v.approxSize += e.size()
	}
	v.best = best
	v.bestKnown = true
	return nil
}

// Flush pushes every dirty entry down into the parent view in one atomic
// batch and clears this cache, so the parent becomes authoritative again.
// With a nil parent there is nowhere to flush to: Flush does nothing,
// returns nil and leaves the entries cached.
func (v *CacheView) Flush() error {
	if v.parent == nil {
		return nil
	}
	if err := v.parent.BatchWrite(v.changes(), v.best); err != nil {
		return err
	}
	v.entries = make(map[types.OutPoint]*cacheEntry)
	v.approxSize = 0
	return nil
}
