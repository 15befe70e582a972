package types

import "encoding/hex"

// Script is an opaque byte program: a sequence of opcodes and pushed data
// interpreted by the stack machine in internal/script. Primitives only know
// it as bytes; op semantics live with the verifier.
type Script []byte

// Opcode bytes used by the standard script templates below and recognized
// by the stack machine's Standard() classification. The full opcode table
// used during execution lives in internal/script; these are just the handful
// needed to build and recognize P2PKH/P2SH locking scripts.
const (
	OpDup         = 0x76
	OpHash160     = 0xa9
	OpEqualVerify = 0x88
	OpEqual       = 0x87
	OpCheckSig    = 0xac
	OpPushData20  = 0x14 // push the next 20 bytes
)

// String returns the hex encoding of the script bytes.
func (s Script) String() string {
	return hex.EncodeToString(s)
}

// Bytes returns the raw script bytes.
func (s Script) Bytes() []byte {
	return []byte(s)
}

// MarshalJSON encodes the script as a hex string.
func (s Script) MarshalJSON() ([]byte, error) {
	return marshalHexString(s)
}

// UnmarshalJSON decodes a hex string into script bytes.
func (s *Script) UnmarshalJSON(data []byte) error {
	b, err := unmarshalHexString(data)
	if err != nil {
		return err
	}
	*s = b
	return nil
}

// NewP2PKHScript builds a standard pay-to-pubkey-hash locking script:
// OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG.
func NewP2PKHScript(pubKeyHash Address) Script {
	s := make(Script, 0, 25)
	s = append(s, OpDup, OpHash160, OpPushData20)
	s = append(s, pubKeyHash[:]...)
	s = append(s, OpEqualVerify, OpCheckSig)
	return s
}

// NewP2SHScript builds a standard pay-to-script-hash locking script:
// OP_HASH160 <20-byte hash> OP_EQUAL.
func NewP2SHScript(scriptHash Address) Script {
	s := make(Script, 0, 23)
	s = append(s, OpHash160, OpPushData20)
	s = append(s, scriptHash[:]...)
	s = append(s, OpEqual)
	return s
}

// IsP2PKH reports whether the script matches the standard P2PKH template
// and, if so, returns the embedded public key hash.
func (s Script) IsP2PKH() (Address, bool) {
	if len(s) != 25 || s[0] != OpDup || s[1] != OpHash160 || s[2] != OpPushData20 ||
		s[23] != OpEqualVerify || s[24] != OpCheckSig {
		return Address{}, false
	}
	var addr Address
	copy(addr[:], s[3:23])
	return addr, true
}

// IsP2SH reports whether the script matches the standard P2SH template
// and, if so, returns the embedded script hash.
func (s Script) IsP2SH() (Address, bool) {
	if len(s) != 23 || s[0] != OpHash160 || s[1] != OpPushData20 || s[22] != OpEqual {
		return Address{}, false
	}
	var addr Address
	copy(addr[:], s[2:22])
	return addr, true
}
