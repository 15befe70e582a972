package blockindex

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/shurium/shurium-node/internal/consensus"
	"github.com/shurium/shurium-node/pkg/block"
	"github.com/shurium/shurium-node/pkg/types"
)

// Index holds every known header and the tree structure between them.
// Callers outside this package are expected to hold their own coarser
// lock around sequences of calls (chainstate's single lock); Index's own
// mutex only protects its internal maps against concurrent readers.
type Index struct {
	mu       sync.RWMutex
	entries  map[types.Hash]*Entry
	children map[types.Hash][]types.Hash
}

// NewIndex creates an empty block index.
func NewIndex() *Index {
	return &Index{
		entries:  make(map[types.Hash]*Entry),
		children: make(map[types.Hash][]types.Hash),
	}
}

// InsertHeader adds a new header to the index. The header's parent must
// already be indexed, unless this is the genesis header (PrevHash is
// zero and no entry exists yet). Returns the existing entry without
// modification if the header's hash is already indexed.
func (idx *Index) InsertHeader(header *block.Header) (*Entry, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	hash := header.Hash()
	if e, ok := idx.entries[hash]; ok {
		return e, nil
	}

	var parent *Entry
	var height uint64
	var chainWork *big.Int

	if header.PrevHash.IsZero() {
		height = 0
		chainWork = consensus.Work(header.Bits)
	} else {
		p, ok := idx.entries[header.PrevHash]
		if !ok {
			return nil, fmt.Errorf("blockindex: parent %s not indexed", header.PrevHash)
		}
		if p.Failed {
			return nil, fmt.Errorf("blockindex: parent %s is marked failed", header.PrevHash)
		}
		parent = p
		height = parent.Height + 1
		chainWork = new(big.Int).Add(parent.ChainWork, consensus.Work(header.Bits))
	}

	e := &Entry{
		Header:    header,
		Hash:      hash,
		Height:    height,
		ChainWork: chainWork,
		Status:    StatusHeaderValid,
		Parent:    parent,
	}
	if parent != nil {
		e.Skip = getAncestor(parent, skipHeight(height))
	}

	idx.entries[hash] = e
	if parent != nil {
		idx.children[header.PrevHash] = append(idx.children[header.PrevHash], hash)
	}
	return e, nil
}

// Get looks up an entry by block hash.
func (idx *Index) Get(hash types.Hash) (*Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[hash]
	return e, ok
}

// Children returns the direct descendants of a block, if any.
func (idx *Index) Children(hash types.Hash) []types.Hash {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]types.Hash(nil), idx.children[hash]...)
}

// SetStatus raises an entry's validation status. It is an error to lower
// it; use MarkFailed to record a validation failure instead.
func (idx *Index) SetStatus(hash types.Hash, status Status) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	e, ok := idx.entries[hash]
	if !ok {
		return fmt.Errorf("blockindex: %s not indexed", hash)
	}
	if status < e.Status {
		return fmt.Errorf("blockindex: status %s is lower than current %s for %s", status, e.Status, hash)
	}
	e.Status = status
	return nil
}

// SetFileRef records where a connected block and its undo data live in
// the flat-file store.
func (idx *Index) SetFileRef(hash types.Hash, txCount, fileNum, dataPos, undoPos uint32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	e, ok := idx.entries[hash]
	if !ok {
		return fmt.Errorf("blockindex: %s not indexed", hash)
	}
	e.TxCount = txCount
	e.FileNum = fileNum
	e.DataPos = dataPos
	e.UndoPos = undoPos
	return nil
}

// MarkFailed marks hash and every descendant already indexed as failed.
// Sticky: nothing un-sets Failed once applied.
func (idx *Index) MarkFailed(hash types.Hash) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.markFailedLocked(hash)
}

func (idx *Index) markFailedLocked(hash types.Hash) {
	e, ok := idx.entries[hash]
	if !ok || e.Failed {
		return
	}
	e.Failed = true
	for _, child := range idx.children[hash] {
		idx.markFailedLocked(child)
	}
}

// GetAncestor returns the entry on e's chain at the given height, or
// (nil, false) if height is out of range.
func (idx *Index) GetAncestor(e *Entry, height uint64) (*Entry, bool) {
	a := getAncestor(e, height)
	return a, a != nil
}

// FindFork returns the highest entry common to both a's and b's chains.
func (idx *Index) FindFork(a, b *Entry) (*Entry, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("blockindex: cannot find fork with a nil entry")
	}
	if a.Height > b.Height {
		a = getAncestor(a, b.Height)
	} else if b.Height > a.Height {
		b = getAncestor(b, a.Height)
	}
	for a != b {
		if a == nil || b == nil {
			return nil, fmt.Errorf("blockindex: no common ancestor")
		}
		a = a.Parent
		b = b.Parent
	}
	return a, nil
}

// SelectBestCandidate returns the indexed entry with the greatest
// cumulative work among entries that are not failed and have reached at
// least minStatus, or (nil, false) if none qualify.
func (idx *Index) SelectBestCandidate(minStatus Status) (*Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var best *Entry
	for _, e := range idx.entries {
		if e.Failed || e.Status < minStatus {
			continue
		}
		if best == nil || e.ChainWork.Cmp(best.ChainWork) > 0 {
			best = e
		}
	}
	return best, best != nil
}

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}
