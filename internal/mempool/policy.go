package mempool

import (
	"fmt"

	"github.com/shurium/shurium-node/config"
	"github.com/shurium/shurium-node/pkg/tx"
)

// Policy defines standardness rules applied before a transaction ever
// reaches ancestor/descendant accounting — cheap structural rejects.
type Policy struct {
	MaxTxSize int // maximum serialized transaction size, in bytes.
}

// DefaultPolicy returns a policy with sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxTxSize: config.MaxTxSize,
	}
}

// Check validates a transaction against policy rules. This is separate from
// consensus validation: policy rules can vary per node and reject things
// that would still be consensus-valid.
func (p *Policy) Check(transaction *tx.Transaction) error {
	size := len(transaction.Serialize())
	if p.MaxTxSize > 0 && size > p.MaxTxSize {
		return fmt.Errorf("transaction too large: %d bytes, max %d", size, p.MaxTxSize)
	}
	if len(transaction.Inputs) > config.MaxTxInputs {
		return fmt.Errorf("too many inputs: %d, max %d", len(transaction.Inputs), config.MaxTxInputs)
	}
	if len(transaction.Outputs) > config.MaxTxOutputs {
		return fmt.Errorf("too many outputs: %d, max %d", len(transaction.Outputs), config.MaxTxOutputs)
	}
	for i, out := range transaction.Outputs {
		if len(out.Script) > config.MaxScriptData {
			return fmt.Errorf("output %d script too large: %d bytes, max %d", i, len(out.Script), config.MaxScriptData)
		}
	}
	return nil
}
