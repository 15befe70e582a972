package tx

import (
	"github.com/shurium/shurium-node/pkg/types"
)

// Builder constructs unsigned transactions incrementally. Signing a
// transaction requires the locking script of each coin being spent, which
// this package does not resolve — see internal/script for the signer that
// produces each input's script_sig.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{
		tx: &Transaction{Version: 1},
	}
}

// AddInput adds an input referencing a previous output, with the default
// (final) sequence number.
func (b *Builder) AddInput(prevOut types.OutPoint) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, TxIn{PrevOut: prevOut, Sequence: 0xffffffff})
	return b
}

// AddInputWithSequence adds an input with an explicit sequence number, for
// building transactions that rely on OP_CHECKSEQUENCEVERIFY or opt into
// replace-by-fee signaling.
func (b *Builder) AddInputWithSequence(prevOut types.OutPoint, sequence uint32) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, TxIn{PrevOut: prevOut, Sequence: sequence})
	return b
}

// AddOutput adds an output with a value and locking script.
func (b *Builder) AddOutput(value int64, script types.Script) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, TxOut{Value: value, Script: script})
	return b
}

// SetLockTime sets the transaction lock time.
func (b *Builder) SetLockTime(lockTime uint32) *Builder {
	b.tx.LockTime = lockTime
	return b
}

// Build returns the constructed transaction. Does NOT validate — call
// tx.Validate() separately.
func (b *Builder) Build() *Transaction {
	return b.tx
}
