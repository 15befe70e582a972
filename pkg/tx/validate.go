package tx

import (
	"errors"
	"fmt"

	"github.com/shurium/shurium-node/config"
	"github.com/shurium/shurium-node/pkg/types"
)

// Structural validation errors. These are checked without access to the
// coin set — UTXO existence, script correctness and fee sufficiency are
// the chainstate's and script verifier's job, not this package's.
var (
	ErrNoInputs       = errors.New("transaction has no inputs")
	ErrNoOutputs      = errors.New("transaction has no outputs")
	ErrDuplicateInput = errors.New("duplicate input")
	ErrNegativeOutput = errors.New("output value is negative")
	ErrOutputTooLarge = errors.New("output value exceeds MAX_MONEY")
	ErrOutputOverflow = errors.New("output values overflow")
	ErrTooManyInputs  = errors.New("too many inputs")
	ErrTooManyOutputs = errors.New("too many outputs")
	ErrScriptTooLarge = errors.New("script too large")
	ErrTxTooLarge     = errors.New("transaction too large")
)

// Validate checks transaction structure and basic consensus rules.
// This does NOT check UTXO existence or script validity — those require
// the coin view and the script verifier, respectively.
func (t *Transaction) Validate() error {
	if len(t.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(t.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(t.Inputs) > config.MaxTxInputs {
		return fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, len(t.Inputs), config.MaxTxInputs)
	}
	if len(t.Outputs) > config.MaxTxOutputs {
		return fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, len(t.Outputs), config.MaxTxOutputs)
	}

	size := len(t.Serialize())
	if size > config.MaxTxSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrTxTooLarge, size, config.MaxTxSize)
	}

	// No duplicate prevouts.
	seen := make(map[types.OutPoint]bool, len(t.Inputs))
	for i, in := range t.Inputs {
		if seen[in.PrevOut] {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[in.PrevOut] = true
	}

	// A coinbase transaction has exactly one input with a null prevout and
	// an arbitrary-length script_sig (height push, extra nonce).
	isCoinbase := t.IsCoinbase()
	if !isCoinbase {
		for i, in := range t.Inputs {
			if in.PrevOut.IsZero() {
				return fmt.Errorf("input %d: null prevout in non-coinbase transaction", i)
			}
			if len(in.ScriptSig) > config.MaxScriptData {
				return fmt.Errorf("input %d: %w: %d bytes, max %d", i, ErrScriptTooLarge, len(in.ScriptSig), config.MaxScriptData)
			}
		}
	}

	for i, out := range t.Outputs {
		if out.Value < 0 {
			return fmt.Errorf("output %d: %w", i, ErrNegativeOutput)
		}
		if out.Value > MaxMoney {
			return fmt.Errorf("output %d: %w", i, ErrOutputTooLarge)
		}
		if len(out.Script) > config.MaxScriptData {
			return fmt.Errorf("output %d: %w: %d bytes, max %d", i, ErrScriptTooLarge, len(out.Script), config.MaxScriptData)
		}
	}

	if _, err := t.TotalOutputValue(); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputOverflow, err)
	}

	return nil
}
