package script

import (
	"encoding/binary"
	"fmt"

	"github.com/shurium/shurium-node/pkg/crypto"
	"github.com/shurium/shurium-node/pkg/tx"
	"github.com/shurium/shurium-node/pkg/types"
)

// SigHashType selects which parts of the transaction a signature commits to.
type SigHashType byte

const (
	SigHashAll          SigHashType = 0x01
	SigHashNone         SigHashType = 0x02
	SigHashSingle       SigHashType = 0x03
	SigHashAnyOneCanPay SigHashType = 0x80

	sigHashMask = 0x1f
)

// sigHashOneFallback is the hash used for SIGHASH_SINGLE when the signed
// input has no corresponding output — a documented quirk carried forward
// from the original Bitcoin serialization bug so existing signers keep
// producing the same sighash rather than being "fixed" into a fork.
var sigHashOneFallback = types.Hash{1}

// ComputeSigHash computes the signature hash for input index idx of txn,
// substituting scriptCode for that input's script_sig and applying the
// output/input pruning the hashType calls for, per the canonical
// serialize-then-double-hash scheme.
func ComputeSigHash(txn *tx.Transaction, idx int, scriptCode types.Script, hashType SigHashType) (types.Hash, error) {
	if idx < 0 || idx >= len(txn.Inputs) {
		return types.Hash{}, fmt.Errorf("sighash: input index %d out of range", idx)
	}

	base := hashType & sigHashMask
	if base == SigHashSingle && idx >= len(txn.Outputs) {
		return sigHashOneFallback, nil
	}

	work := &tx.Transaction{
		Version:  txn.Version,
		LockTime: txn.LockTime,
	}

	if hashType&SigHashAnyOneCanPay != 0 {
		work.Inputs = []tx.TxIn{{
			PrevOut:   txn.Inputs[idx].PrevOut,
			ScriptSig: scriptCode,
			Sequence:  txn.Inputs[idx].Sequence,
		}}
	} else {
		work.Inputs = make([]tx.TxIn, len(txn.Inputs))
		for i, in := range txn.Inputs {
			seq := in.Sequence
			var script types.Script
			if i == idx {
				script = scriptCode
			}
			if (base == SigHashNone || base == SigHashSingle) && i != idx {
				seq = 0
			}
			work.Inputs[i] = tx.TxIn{PrevOut: in.PrevOut, ScriptSig: script, Sequence: seq}
		}
	}

	switch base {
	case SigHashNone:
		work.Outputs = nil
	case SigHashSingle:
		work.Outputs = make([]tx.TxOut, idx+1)
		for i := 0; i < idx; i++ {
			work.Outputs[i] = tx.TxOut{Value: -1}
		}
		work.Outputs[idx] = txn.Outputs[idx]
	default: // SigHashAll
		work.Outputs = txn.Outputs
	}

	buf := work.Serialize()
	buf = binary.LittleEndian.AppendUint32(buf, uint32(hashType))
	return crypto.DoubleHash(buf), nil
}
