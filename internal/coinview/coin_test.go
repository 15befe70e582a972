package coinview

import (
	"testing"

	"github.com/shurium/shurium-node/pkg/tx"
	"github.com/shurium/shurium-node/pkg/types"
)

func testOutPoint(b byte, index uint32) types.OutPoint {
	return types.OutPoint{TxID: types.Hash{b}, Index: index}
}

func TestCoin_SerializeRoundTrip(t *testing.T) {
	c := NewCoin(tx.TxOut{Value: 5000, Script: types.NewP2PKHScript(types.Address{0x01})}, 42, true)

	data := c.Serialize()
	got, err := DeserializeCoin(data)
	if err != nil {
		t.Fatalf("DeserializeCoin() error: %v", err)
	}

	if got.Out.Value != c.Out.Value {
		t.Errorf("Value = %d, want %d", got.Out.Value, c.Out.Value)
	}
	if got.Height != c.Height {
		t.Errorf("Height = %d, want %d", got.Height, c.Height)
	}
	if got.IsCoinbase != c.IsCoinbase {
		t.Errorf("IsCoinbase = %v, want %v", got.IsCoinbase, c.IsCoinbase)
	}
	if got.Out.Script.String() != c.Out.Script.String() {
		t.Error("Script mismatch")
	}
}

func TestCoin_SerializeRoundTrip_NonCoinbase(t *testing.T) {
	c := NewCoin(tx.TxOut{Value: 1, Script: types.Script{}}, 0, false)

	got, err := DeserializeCoin(c.Serialize())
	if err != nil {
		t.Fatalf("DeserializeCoin() error: %v", err)
	}
	if got.IsCoinbase {
		t.Error("expected IsCoinbase = false")
	}
	if len(got.Out.Script) != 0 {
		t.Error("expected empty script")
	}
}

func TestDeserializeCoin_Truncated(t *testing.T) {
	if _, err := DeserializeCoin([]byte{0x01, 0x02}); err == nil {
		t.Error("expected error for truncated coin data")
	}
}

func TestDeserializeCoin_TrailingBytes(t *testing.T) {
	c := NewCoin(tx.TxOut{Value: 1, Script: types.Script{}}, 1, false)
	data := append(c.Serialize(), 0xff)
	if _, err := DeserializeCoin(data); err == nil {
		t.Error("expected error for trailing bytes")
	}
}
