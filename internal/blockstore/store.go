// Package blockstore persists raw blocks and their undo records to
// append-only flat files, with a small key-value index (hash/height ->
// file location) backed by internal/storage, rather than keeping whole
// blocks as key-value blobs.
package blockstore

import (
	"encoding/binary"
	"fmt"

	"github.com/shurium/shurium-node/internal/storage"
	"github.com/shurium/shurium-node/pkg/block"
	"github.com/shurium/shurium-node/pkg/types"
)

// Key prefixes for the index DB: a b/h/x/d layout storing flat-file
// locations rather than JSON blobs.
var (
	prefixBlockLoc  = []byte("b/") // b/<hash(32)> -> Ref (block)
	prefixHeightIdx = []byte("h/") // h/<height(8)> -> hash(32)
	prefixTxLoc     = []byte("x/") // x/<txhash(32)> -> height(8) + hash(32)
	prefixUndoLoc   = []byte("d/") // d/<hash(32)> -> Ref (undo)
)

// Store persists blocks and undo records in blk*.dat/rev*.dat flat files,
// indexing them by hash, height, and transaction hash in a storage.DB.
type Store struct {
	index  storage.DB
	blocks *fileSet
	undo   *fileSet
}

// Open creates a Store rooted at dir, using index for hash/height/tx
// lookups. dir must already exist.
func Open(dir string, index storage.DB) (*Store, error) {
	blocks, err := openFileSet(dir, "blk", defaultMaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("blockstore: open block files: %w", err)
	}
	undo, err := openFileSet(dir, "rev", defaultMaxFileSize)
	if err != nil {
		blocks.Close()
		return nil, fmt.Errorf("blockstore: open undo files: %w", err)
	}
	return &Store{index: index, blocks: blocks, undo: undo}, nil
}

// StoreBlock appends blk to the block flat file and indexes it by hash
// only, returning where it landed. Use this for a block that is merely
// known (downloaded, structurally checked) but not yet — or no longer —
// part of the active chain; a competing fork's blocks get stored this way
// without disturbing the height/tx indexes the active chain owns.
func (s *Store) StoreBlock(blk *block.Block) (Ref, error) {
	hash := blk.Hash()
	ref, err := s.blocks.Append(blk.Serialize())
	if err != nil {
		return Ref{}, fmt.Errorf("blockstore: append block: %w", err)
	}
	if err := s.index.Put(blockLocKey(hash), encodeRef(ref)); err != nil {
		return Ref{}, fmt.Errorf("blockstore: index block location: %w", err)
	}
	return ref, nil
}

// RemoveConnected undoes CommitBlock's height/tx entries for a block being
// disconnected. The block itself stays in the flat file and its hash index
// entry is untouched — it's still a known block, just no longer on the
// active chain.
func (s *Store) RemoveConnected(blk *block.Block, height uint64) error {
	if err := s.index.Delete(heightKey(height)); err != nil {
		return fmt.Errorf("blockstore: remove height index: %w", err)
	}
	for _, t := range blk.Transactions {
		if err := s.index.Delete(txLocKey(t.Hash())); err != nil {
			return fmt.Errorf("blockstore: remove tx index %s: %w", t.Hash(), err)
		}
	}
	return nil
}

// CommitBlock finalizes a block that the caller has already passed to
// StoreBlock: it appends the undo record (if any) to the undo flat file,
// then atomically indexes the undo location, the height entry, and every
// transaction location as a single storage.Batcher batch on the index DB.
// Unlike StoreBlock, this never re-appends the block itself — calling it
// on a block that was never stored leaves the height/tx indexes pointing
// at nothing.
func (s *Store) CommitBlock(blk *block.Block, height uint64, undo *UndoBlock) error {
	batcher, ok := s.index.(storage.Batcher)
	if !ok {
		return fmt.Errorf("blockstore: index store does not support atomic batches")
	}
	batch := batcher.NewBatch()
	hash := blk.Hash()

	if undo != nil {
		ref, err := s.undo.Append(undo.Serialize())
		if err != nil {
			return fmt.Errorf("blockstore: append undo: %w", err)
		}
		if err := batch.Put(undoLocKey(hash), encodeRef(ref)); err != nil {
			return fmt.Errorf("blockstore: batch undo location: %w", err)
		}
	}
	if err := batch.Put(heightKey(height), hash[:]); err != nil {
		return fmt.Errorf("blockstore: batch height index: %w", err)
	}
	for _, t := range blk.Transactions {
		txHash := t.Hash()
		val := make([]byte, 8+types.HashSize)
		binary.BigEndian.PutUint64(val[:8], height)
		copy(val[8:], hash[:])
		if err := batch.Put(txLocKey(txHash), val); err != nil {
			return fmt.Errorf("blockstore: batch tx location %s: %w", txHash, err)
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("blockstore: commit batch: %w", err)
	}
	return nil
}

// GetBlock retrieves a block by hash.
func (s *Store) GetBlock(hash types.Hash) (*block.Block, error) {
	ref, err := s.blockRef(hash)
	if err != nil {
		return nil, err
	}
	payload, err := s.blocks.Read(ref)
	if err != nil {
		return nil, fmt.Errorf("blockstore: read block %s: %w", hash, err)
	}
	blk, err := block.DeserializeBlock(payload)
	if err != nil {
		return nil, fmt.Errorf("blockstore: decode block %s: %w", hash, err)
	}
	return blk, nil
}

// GetBlockByHeight retrieves a block by its height on whatever chain it was
// indexed under — callers are responsible for only calling this with
// heights on the active chain.
func (s *Store) GetBlockByHeight(height uint64) (*block.Block, error) {
	hashBytes, err := s.index.Get(heightKey(height))
	if err != nil {
		return nil, fmt.Errorf("blockstore: height index: %w", err)
	}
	if len(hashBytes) != types.HashSize {
		return nil, fmt.Errorf("blockstore: corrupt height index at %d", height)
	}
	var hash types.Hash
	copy(hash[:], hashBytes)
	return s.GetBlock(hash)
}

// GetUndo retrieves the undo record for a block.
func (s *Store) GetUndo(hash types.Hash) (*UndoBlock, error) {
	data, err := s.index.Get(undoLocKey(hash))
	if err != nil {
		return nil, fmt.Errorf("blockstore: undo index: %w", err)
	}
	ref, err := decodeRef(data)
	if err != nil {
		return nil, fmt.Errorf("blockstore: undo ref: %w", err)
	}
	payload, err := s.undo.Read(ref)
	if err != nil {
		return nil, fmt.Errorf("blockstore: read undo %s: %w", hash, err)
	}
	return DeserializeUndoBlock(payload)
}

// HasBlock reports whether a block is indexed by hash.
func (s *Store) HasBlock(hash types.Hash) (bool, error) {
	return s.index.Has(blockLocKey(hash))
}

// GetTxLocation returns the height and containing block hash for a
// previously indexed transaction.
func (s *Store) GetTxLocation(txHash types.Hash) (uint64, types.Hash, error) {
	data, err := s.index.Get(txLocKey(txHash))
	if err != nil {
		return 0, types.Hash{}, fmt.Errorf("blockstore: tx index: %w", err)
	}
	if len(data) != 8+types.HashSize {
		return 0, types.Hash{}, fmt.Errorf("blockstore: corrupt tx index for %s", txHash)
	}
	height := binary.BigEndian.Uint64(data[:8])
	var blockHash types.Hash
	copy(blockHash[:], data[8:])
	return height, blockHash, nil
}

// Close closes the underlying flat files. The index DB is owned by the
// caller and is not closed here.
func (s *Store) Close() error {
	err1 := s.blocks.Close()
	err2 := s.undo.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (s *Store) blockRef(hash types.Hash) (Ref, error) {
	data, err := s.index.Get(blockLocKey(hash))
	if err != nil {
		return Ref{}, fmt.Errorf("blockstore: block index: %w", err)
	}
	return decodeRef(data)
}

func blockLocKey(hash types.Hash) []byte {
	key := make([]byte, len(prefixBlockLoc)+types.HashSize)
	n := copy(key, prefixBlockLoc)
	copy(key[n:], hash[:])
	return key
}

func undoLocKey(hash types.Hash) []byte {
	key := make([]byte, len(prefixUndoLoc)+types.HashSize)
	n := copy(key, prefixUndoLoc)
	copy(key[n:], hash[:])
	return key
}

func heightKey(height uint64) []byte {
	key := make([]byte, len(prefixHeightIdx)+8)
	n := copy(key, prefixHeightIdx)
	binary.BigEndian.PutUint64(key[n:], height)
	return key
}

func txLocKey(hash types.Hash) []byte {
	key := make([]byte, len(prefixTxLoc)+types.HashSize)
	n := copy(key, prefixTxLoc)
	copy(key[n:], hash[:])
	return key
}

// encodeRef/decodeRef give Ref a fixed 12-byte on-disk form for the index DB.
func encodeRef(r Ref) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[0:4], r.FileNum)
	binary.BigEndian.PutUint32(buf[4:8], r.Offset)
	binary.BigEndian.PutUint32(buf[8:12], r.Size)
	return buf
}

func decodeRef(data []byte) (Ref, error) {
	if len(data) != 12 {
		return Ref{}, fmt.Errorf("blockstore: corrupt ref (%d bytes)", len(data))
	}
	return Ref{
		FileNum: binary.BigEndian.Uint32(data[0:4]),
		Offset:  binary.BigEndian.Uint32(data[4:8]),
		Size:    binary.BigEndian.Uint32(data[8:12]),
	}, nil
}
