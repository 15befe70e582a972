package consensus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/shurium/shurium-node/config"
	"github.com/shurium/shurium-node/pkg/block"
	"github.com/shurium/shurium-node/pkg/crypto"
)

// PoW errors.
var (
	ErrInsufficientWork = errors.New("hash does not meet difficulty target")
	ErrZeroBits         = errors.New("bits must encode a positive target")
	ErrBadBits          = errors.New("block bits does not match expected retarget value")
	ErrTargetAboveLimit = errors.New("target exceeds the proof-of-work limit")
)

// PoW implements proof-of-work consensus over the header's compact-bits
// target field. The engine holds no mutable difficulty state — every
// target is derived from chain history and encoded in the header itself.
type PoW struct {
	// Threads controls the number of parallel mining goroutines used by
	// Seal. 0 or 1 means single-threaded. Each goroutine searches a
	// strided partition of the nonce space.
	Threads int

	// BitsFn computes the expected bits value for a new block at the given
	// height, given the previous block's bits and a height-indexed
	// timestamp lookup. Set by the node operator; if nil, Prepare carries
	// the previous block's bits forward, or uses PowLimit when those are
	// zero (useful for tests and regtest-style setups).
	BitsFn func(height uint64, prevBits uint32, getTimestamp func(uint64) (uint32, error)) uint32

	// GetTimestamp retrieves a connected block's header timestamp by
	// height, used for both retargeting and VerifyDifficulty.
	GetTimestamp func(height uint64) (uint32, error)
}

// NewPoW creates a proof-of-work engine.
func NewPoW(threads int) *PoW {
	return &PoW{Threads: threads}
}

// VerifyHeader checks that the header hash meets the target its own bits
// field encodes.
func (p *PoW) VerifyHeader(header *block.Header) error {
	target := CompactToTarget(header.Bits)
	if target.Sign() <= 0 {
		return ErrZeroBits
	}
	if target.Cmp(powLimitTarget) > 0 {
		return ErrTargetAboveLimit
	}

	hash := header.Hash()
	hashInt := new(big.Int).SetBytes(hash[:])
	if hashInt.Cmp(target) > 0 {
		return ErrInsufficientWork
	}
	return nil
}

// Prepare sets the header's Bits field for mining, computing the expected
// retarget value when BitsFn is configured.
func (p *PoW) Prepare(header *block.Header, height uint64, prevBits uint32) error {
	if p.BitsFn != nil {
		header.Bits = p.BitsFn(height, prevBits, p.GetTimestamp)
		return nil
	}
	if prevBits != 0 {
		header.Bits = prevBits
		return nil
	}
	header.Bits = PowLimit
	return nil
}

// Seal mines the block by iterating the nonce until the header hash meets
// the target implied by its Bits field.
func (p *PoW) Seal(blk *block.Block) error {
	return p.SealWithCancel(context.Background(), blk)
}

// SealWithCancel mines with cancellation support. When ctx is cancelled,
// mining stops and ctx.Err() is returned. If Threads > 1, mining runs in
// parallel goroutines with strided nonce partitioning.
func (p *PoW) SealWithCancel(ctx context.Context, blk *block.Block) error {
	if blk == nil || blk.Header == nil {
		return fmt.Errorf("nil block or header")
	}
	target := CompactToTarget(blk.Header.Bits)
	if target.Sign() <= 0 {
		return ErrZeroBits
	}

	threads := p.Threads
	if threads <= 1 {
		return p.sealSingle(ctx, blk, target)
	}
	return p.sealParallel(ctx, blk, target, threads)
}

// headerPrefix returns the header's serialized bytes WITHOUT the trailing
// 4-byte nonce, so each mining goroutine pre-computes the 76-byte prefix
// once and only appends+hashes the nonce per iteration.
func headerPrefix(h *block.Header) []byte {
	buf := make([]byte, 0, block.HeaderSize-4)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.Version))
	buf = append(buf, h.PrevHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, h.Time)
	buf = binary.LittleEndian.AppendUint32(buf, h.Bits)
	return buf
}

func (p *PoW) sealSingle(ctx context.Context, blk *block.Block, target *big.Int) error {
	prefix := headerPrefix(blk.Header)
	buf := make([]byte, len(prefix)+4)
	copy(buf, prefix)
	hashInt := new(big.Int)

	for nonce := uint32(0); ; nonce++ {
		if nonce&0xFFFF == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		binary.LittleEndian.PutUint32(buf[len(prefix):], nonce)
		hash := crypto.DoubleHash(buf)
		hashInt.SetBytes(hash[:])
		if hashInt.Cmp(target) <= 0 {
			blk.Header.Nonce = nonce
			return nil
		}
		if nonce == ^uint32(0) {
			return fmt.Errorf("nonce space exhausted")
		}
	}
}

func (p *PoW) sealParallel(ctx context.Context, blk *block.Block, target *big.Int, threads int) error {
	prefix := headerPrefix(blk.Header)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		nonce uint32
		err   error
	}
	found := make(chan result, 1)

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		startNonce := uint32(i)
		stride := uint32(threads)
		go func() {
			defer wg.Done()
			buf := make([]byte, len(prefix)+4)
			copy(buf, prefix)
			hashInt := new(big.Int)

			for nonce := startNonce; ; nonce += stride {
				if (nonce/stride)&0xFFFF == 0 && nonce > 0 {
					select {
					case <-ctx.Done():
						return
					default:
					}
				}

				binary.LittleEndian.PutUint32(buf[len(prefix):], nonce)
				hash := crypto.DoubleHash(buf)
				hashInt.SetBytes(hash[:])
				if hashInt.Cmp(target) <= 0 {
					select {
					case found <- result{nonce: nonce}:
					default:
					}
					cancel()
					return
				}

				if nonce > ^uint32(0)-stride {
					select {
					case found <- result{err: fmt.Errorf("nonce space exhausted")}:
					default:
					}
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(found)
	}()

	select {
	case r, ok := <-found:
		if !ok {
			return fmt.Errorf("nonce space exhausted")
		}
		if r.err != nil {
			return r.err
		}
		blk.Header.Nonce = r.nonce
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExpectedBits computes the correct bits value for a block at the given
// height, given the previous block's bits. At a non-retarget height this is
// simply prevBits; at a retarget boundary it recomputes the target from the
// elapsed time over the last DifficultyInterval blocks.
func ExpectedBits(height uint64, prevBits uint32, getTimestamp func(uint64) (uint32, error)) uint32 {
	if height == 0 {
		return PowLimit
	}
	if !ShouldRetarget(height) {
		return prevBits
	}

	interval := config.DifficultyInterval
	startTS, err := getTimestamp(height - interval)
	if err != nil {
		return prevBits
	}
	endTS, err := getTimestamp(height - 1)
	if err != nil {
		return prevBits
	}

	actualSpan := int64(endTS) - int64(startTS)
	nominalSpan := int64(interval) * config.TargetSpacing
	return CalcNextBits(prevBits, actualSpan, nominalSpan)
}

// ShouldRetarget reports whether height is a difficulty-retarget boundary.
func ShouldRetarget(height uint64) bool {
	return height > 0 && height%config.DifficultyInterval == 0
}

// VerifyDifficulty checks that a header's bits match the expected retarget
// value derived from chain history.
func (p *PoW) VerifyDifficulty(header *block.Header, height uint64, prevBits uint32, getTimestamp func(uint64) (uint32, error)) error {
	expected := ExpectedBits(height, prevBits, getTimestamp)
	if header.Bits != expected {
		return fmt.Errorf("%w: height %d has bits %#x, want %#x", ErrBadBits, height, header.Bits, expected)
	}
	return nil
}

// CalcNextBits computes the new compact-bits target after a retarget
// period. actualTimeSpan is the elapsed seconds across the interval;
// nominalTimeSpan is interval*TargetSpacing. The actual span is clamped to
// [nominal/4, nominal*4] and the resulting target clipped to PowLimit.
func CalcNextBits(currentBits uint32, actualTimeSpan, nominalTimeSpan int64) uint32 {
	if actualTimeSpan <= 0 {
		actualTimeSpan = 1
	}
	if nominalTimeSpan <= 0 {
		nominalTimeSpan = 1
	}

	minSpan := nominalTimeSpan / 4
	maxSpan := nominalTimeSpan * 4
	if minSpan == 0 {
		minSpan = 1
	}
	if actualTimeSpan < minSpan {
		actualTimeSpan = minSpan
	}
	if actualTimeSpan > maxSpan {
		actualTimeSpan = maxSpan
	}

	oldTarget := CompactToTarget(currentBits)
	if oldTarget.Sign() <= 0 {
		oldTarget = new(big.Int).Set(powLimitTarget)
	}

	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(actualTimeSpan))
	newTarget.Div(newTarget, big.NewInt(nominalTimeSpan))
	newTarget = ClampTarget(newTarget)

	return TargetToCompact(newTarget)
}
