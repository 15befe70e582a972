package script

import (
	"testing"

	"github.com/shurium/shurium-node/pkg/crypto"
	"github.com/shurium/shurium-node/pkg/tx"
	"github.com/shurium/shurium-node/pkg/types"
)

func buildSpend(t *testing.T, prevScript types.Script, value int64) *tx.Transaction {
	t.Helper()
	return tx.NewBuilder().
		AddInput(types.OutPoint{TxID: types.Hash{0x01}, Index: 0}).
		AddOutput(value-100, types.NewP2PKHScript(types.Address{0x09})).
		Build()
}

func TestVerifyInput_P2PKH_Valid(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	addr := crypto.AddressFromPubKey(key.PublicKey())
	prevScript := types.NewP2PKHScript(addr)

	txn := buildSpend(t, prevScript, 10000)
	if err := SignP2PKHInput(txn, 0, prevScript, key, SigHashAll); err != nil {
		t.Fatalf("SignP2PKHInput() error: %v", err)
	}

	if err := VerifyInput(txn, 0, prevScript, 10000); err != nil {
		t.Errorf("VerifyInput() error: %v", err)
	}
}

func TestVerifyInput_P2PKH_WrongKey(t *testing.T) {
	key1, _ := crypto.GenerateKey()
	key2, _ := crypto.GenerateKey()
	addr1 := crypto.AddressFromPubKey(key1.PublicKey())
	prevScript := types.NewP2PKHScript(addr1)

	txn := buildSpend(t, prevScript, 10000)
	if err := SignP2PKHInput(txn, 0, prevScript, key2, SigHashAll); err != nil {
		t.Fatalf("SignP2PKHInput() error: %v", err)
	}

	if err := VerifyInput(txn, 0, prevScript, 10000); err == nil {
		t.Error("expected verification failure for signature from the wrong key")
	}
}

func TestVerifyInput_P2PKH_TamperedOutput(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.AddressFromPubKey(key.PublicKey())
	prevScript := types.NewP2PKHScript(addr)

	txn := buildSpend(t, prevScript, 10000)
	if err := SignP2PKHInput(txn, 0, prevScript, key, SigHashAll); err != nil {
		t.Fatalf("SignP2PKHInput() error: %v", err)
	}

	txn.Outputs[0].Value += 1

	if err := VerifyInput(txn, 0, prevScript, 10000); err == nil {
		t.Error("expected verification failure after tampering with a SIGHASH_ALL output")
	}
}

func TestVerifyInput_P2PKH_WrongPubKeyHash(t *testing.T) {
	key, _ := crypto.GenerateKey()
	prevScript := types.NewP2PKHScript(types.Address{0xff}) // does not match key

	txn := buildSpend(t, prevScript, 10000)
	if err := SignP2PKHInput(txn, 0, prevScript, key, SigHashAll); err != nil {
		t.Fatalf("SignP2PKHInput() error: %v", err)
	}

	if err := VerifyInput(txn, 0, prevScript, 10000); err == nil {
		t.Error("expected failure: script_sig pubkey does not hash to the locking script's hash")
	}
}

func TestVerifyInput_P2SH_TrivialRedeem(t *testing.T) {
	// Redeem script: OP_1 (always succeeds, no signature required).
	redeem := types.Script{Op1}
	redeemHash := crypto.Hash160(redeem)
	prevScript := types.NewP2SHScript(types.Address(redeemHash))

	txn := buildSpend(t, prevScript, 10000)
	// script_sig pushes only the redeem script; no signature needed for OP_1.
	txn.Inputs[0].ScriptSig = pushData(nil, redeem)

	if err := VerifyInput(txn, 0, prevScript, 10000); err != nil {
		t.Errorf("VerifyInput() for trivial P2SH redeem error: %v", err)
	}
}

func TestVerifyInput_P2SH_EmptyStackFails(t *testing.T) {
	redeem := types.Script{Op1}
	redeemHash := crypto.Hash160(redeem)
	prevScript := types.NewP2SHScript(types.Address(redeemHash))

	txn := buildSpend(t, prevScript, 10000)
	txn.Inputs[0].ScriptSig = nil

	if err := VerifyInput(txn, 0, prevScript, 10000); err == nil {
		t.Error("expected failure: empty script_sig cannot satisfy a P2SH spend")
	}
}

func TestVerifyInput_NonPushOnlyScriptSigRejected(t *testing.T) {
	prevScript := types.NewP2PKHScript(types.Address{0x01})
	txn := buildSpend(t, prevScript, 10000)
	txn.Inputs[0].ScriptSig = types.Script{OpCheckSig}

	if err := VerifyInput(txn, 0, prevScript, 10000); err != ErrScriptSigNotPushOnly {
		t.Errorf("VerifyInput() = %v, want ErrScriptSigNotPushOnly", err)
	}
}
