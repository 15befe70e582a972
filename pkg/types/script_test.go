package types

import (
	"bytes"
	"testing"
)

func TestNewP2PKHScript_Roundtrip(t *testing.T) {
	var hash Address
	copy(hash[:], bytes.Repeat([]byte{0xab}, AddressSize))

	s := NewP2PKHScript(hash)
	if len(s) != 25 {
		t.Fatalf("P2PKH script length = %d, want 25", len(s))
	}

	got, ok := s.IsP2PKH()
	if !ok {
		t.Fatal("IsP2PKH() = false, want true")
	}
	if got != hash {
		t.Errorf("IsP2PKH() hash = %x, want %x", got, hash)
	}
	if _, ok := s.IsP2SH(); ok {
		t.Error("P2PKH script misclassified as P2SH")
	}
}

func TestNewP2SHScript_Roundtrip(t *testing.T) {
	var hash Address
	copy(hash[:], bytes.Repeat([]byte{0xcd}, AddressSize))

	s := NewP2SHScript(hash)
	if len(s) != 23 {
		t.Fatalf("P2SH script length = %d, want 23", len(s))
	}

	got, ok := s.IsP2SH()
	if !ok {
		t.Fatal("IsP2SH() = false, want true")
	}
	if got != hash {
		t.Errorf("IsP2SH() hash = %x, want %x", got, hash)
	}
	if _, ok := s.IsP2PKH(); ok {
		t.Error("P2SH script misclassified as P2PKH")
	}
}

func TestScript_NotStandard(t *testing.T) {
	s := Script{0x51, 0x52} // arbitrary non-template bytes
	if _, ok := s.IsP2PKH(); ok {
		t.Error("arbitrary script misclassified as P2PKH")
	}
	if _, ok := s.IsP2SH(); ok {
		t.Error("arbitrary script misclassified as P2SH")
	}
}

func TestScript_JSONRoundtrip(t *testing.T) {
	s := Script{0x01, 0x02, 0x03}
	data, err := s.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var got Script
	if err := got.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if !bytes.Equal(got, s) {
		t.Errorf("roundtrip = %x, want %x", got, s)
	}
}
