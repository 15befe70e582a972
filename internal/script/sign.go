package script

import (
	"fmt"

	"github.com/shurium/shurium-node/pkg/crypto"
	"github.com/shurium/shurium-node/pkg/tx"
	"github.com/shurium/shurium-node/pkg/types"
)

// SignP2PKHInput computes the sighash for input idx against prevScript (the
// spent coin's locking script) and writes a standard
// <signature><pubkey> script_sig into the transaction.
func SignP2PKHInput(txn *tx.Transaction, idx int, prevScript types.Script, key *crypto.PrivateKey, hashType SigHashType) error {
	if idx < 0 || idx >= len(txn.Inputs) {
		return fmt.Errorf("script: input index %d out of range", idx)
	}
	hash, err := ComputeSigHash(txn, idx, prevScript, hashType)
	if err != nil {
		return fmt.Errorf("sign input %d: %w", idx, err)
	}
	sig, err := key.Sign(hash[:])
	if err != nil {
		return fmt.Errorf("sign input %d: %w", idx, err)
	}
	sig = append(sig, byte(hashType))
	pubKey := key.PublicKey()

	txn.Inputs[idx].ScriptSig = pushData(pushData(nil, sig), pubKey)
	return nil
}

// SignMultiInput signs every non-coinbase input whose spent coin is a
// standard P2PKH script, using ownerOf to find who owns each outpoint and
// signers to find that owner's key. Inputs with no mapping are left
// untouched — callers that mix script kinds sign the rest themselves.
func SignMultiInput(
	txn *tx.Transaction,
	signers map[types.Address]*crypto.PrivateKey,
	prevScripts map[types.OutPoint]types.Script,
	hashType SigHashType,
) error {
	for i, in := range txn.Inputs {
		if in.PrevOut.IsZero() {
			continue
		}
		prevScript, ok := prevScripts[in.PrevOut]
		if !ok {
			continue
		}
		addr, ok := prevScript.IsP2PKH()
		if !ok {
			continue
		}
		key, ok := signers[addr]
		if !ok {
			return fmt.Errorf("no signer for address %s (input %d)", addr, i)
		}
		if err := SignP2PKHInput(txn, i, prevScript, key, hashType); err != nil {
			return err
		}
	}
	return nil
}

// pushData appends a minimal push opcode for data onto buf.
func pushData(buf []byte, data []byte) []byte {
	switch {
	case len(data) <= 0x4b:
		buf = append(buf, byte(len(data)))
	case len(data) <= 0xff:
		buf = append(buf, OpPushData1, byte(len(data)))
	default:
		buf = append(buf, OpPushData2, byte(len(data)), byte(len(data)>>8))
	}
	return append(buf, data...)
}
