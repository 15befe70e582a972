package script

import (
	"testing"

	"github.com/shurium/shurium-node/pkg/tx"
	"github.com/shurium/shurium-node/pkg/types"
)

func sampleTx() *tx.Transaction {
	return tx.NewBuilder().
		AddInput(types.OutPoint{TxID: types.Hash{0x01}, Index: 0}).
		AddInput(types.OutPoint{TxID: types.Hash{0x02}, Index: 1}).
		AddOutput(1000, types.NewP2PKHScript(types.Address{0x01})).
		AddOutput(2000, types.NewP2PKHScript(types.Address{0x02})).
		Build()
}

func TestComputeSigHash_Deterministic(t *testing.T) {
	txn := sampleTx()
	scriptCode := types.NewP2PKHScript(types.Address{0x09})

	h1, err := ComputeSigHash(txn, 0, scriptCode, SigHashAll)
	if err != nil {
		t.Fatalf("ComputeSigHash() error: %v", err)
	}
	h2, err := ComputeSigHash(txn, 0, scriptCode, SigHashAll)
	if err != nil {
		t.Fatalf("ComputeSigHash() error: %v", err)
	}
	if h1 != h2 {
		t.Error("ComputeSigHash() should be deterministic")
	}
}

func TestComputeSigHash_DiffersByInputIndex(t *testing.T) {
	txn := sampleTx()
	scriptCode := types.NewP2PKHScript(types.Address{0x09})

	h0, _ := ComputeSigHash(txn, 0, scriptCode, SigHashAll)
	h1, _ := ComputeSigHash(txn, 1, scriptCode, SigHashAll)
	if h0 == h1 {
		t.Error("sighash for different input indexes should differ")
	}
}

func TestComputeSigHash_NoneIgnoresOutputChanges(t *testing.T) {
	txn := sampleTx()
	scriptCode := types.NewP2PKHScript(types.Address{0x09})

	before, err := ComputeSigHash(txn, 0, scriptCode, SigHashNone)
	if err != nil {
		t.Fatalf("ComputeSigHash() error: %v", err)
	}
	txn.Outputs[0].Value = 999999
	after, err := ComputeSigHash(txn, 0, scriptCode, SigHashNone)
	if err != nil {
		t.Fatalf("ComputeSigHash() error: %v", err)
	}
	if before != after {
		t.Error("SIGHASH_NONE should be insensitive to output changes")
	}
}

func TestComputeSigHash_SingleOutOfRangeFallback(t *testing.T) {
	txn := sampleTx()
	txn.Outputs = txn.Outputs[:1] // only one output, but signing input 1

	h, err := ComputeSigHash(txn, 1, types.NewP2PKHScript(types.Address{0x09}), SigHashSingle)
	if err != nil {
		t.Fatalf("ComputeSigHash() error: %v", err)
	}
	if h != sigHashOneFallback {
		t.Errorf("ComputeSigHash() = %x, want the SIGHASH_SINGLE fallback hash", h)
	}
}

func TestComputeSigHash_AnyOneCanPayIgnoresOtherInputs(t *testing.T) {
	txn := sampleTx()
	scriptCode := types.NewP2PKHScript(types.Address{0x09})

	before, _ := ComputeSigHash(txn, 0, scriptCode, SigHashAll|SigHashAnyOneCanPay)
	txn.Inputs[1].PrevOut.Index = 99
	after, _ := ComputeSigHash(txn, 0, scriptCode, SigHashAll|SigHashAnyOneCanPay)
	if before != after {
		t.Error("ANYONECANPAY sighash should be insensitive to other inputs")
	}
}

func TestComputeSigHash_InvalidIndex(t *testing.T) {
	txn := sampleTx()
	if _, err := ComputeSigHash(txn, 5, nil, SigHashAll); err == nil {
		t.Error("expected error for out-of-range input index")
	}
}
