package consensus

import (
	"errors"
	"fmt"

	"github.com/shurium/shurium-node/pkg/block"
)

// ErrBadStructure and ErrBadProofOfWork mark which stage of ValidateBlock
// rejected a block, so a caller that needs to classify the rejection (a
// stable sub-reason for logging, say) can errors.Is against them instead of
// inspecting the wrapped message.
var (
	ErrBadStructure   = errors.New("consensus: invalid block structure")
	ErrBadProofOfWork = errors.New("consensus: invalid proof of work")
)

// Validator validates blocks against consensus rules, independent of any
// particular chain position — it never touches a block index or active
// chain, so it can run before a header is even inserted.
type Validator struct {
	engine Engine
}

// NewValidator creates a block validator with the given consensus engine.
func NewValidator(engine Engine) *Validator {
	return &Validator{engine: engine}
}

// ValidateBlock checks a block's structure, then (only if that passes) its
// header's proof of work. Both checks are position-independent: neither
// needs the block to already be indexed.
func (v *Validator) ValidateBlock(blk *block.Block) error {
	if err := blk.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadStructure, err)
	}
	if err := v.engine.VerifyHeader(blk.Header); err != nil {
		return fmt.Errorf("%w: %v", ErrBadProofOfWork, err)
	}
	return nil
}
