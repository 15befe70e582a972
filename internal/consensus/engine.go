// Package consensus implements proof-of-work consensus: compact-bits
// target math, difficulty retargeting, and header validation/mining.
package consensus

import "github.com/shurium/shurium-node/pkg/block"

// Engine is the interface consumed by chainstate and the block assembler.
// PoW is the only implementation — proof-of-authority and staking engines
// do not apply to a proof-of-work chain and are not implemented here.
type Engine interface {
	VerifyHeader(header *block.Header) error
	Prepare(header *block.Header, height uint64, prevBits uint32) error
	Seal(blk *block.Block) error
}
