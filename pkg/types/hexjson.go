package types

import (
	"encoding/hex"
	"encoding/json"
)

// marshalHexString is a shared helper for byte-slice types that marshal to
// a hex-encoded JSON string (Script, raw signature/pubkey wrappers).
func marshalHexString(b []byte) ([]byte, error) {
	return json.Marshal(hex.EncodeToString(b))
}

// unmarshalHexString decodes a hex-encoded JSON string into bytes. An empty
// string decodes to nil.
func unmarshalHexString(data []byte) ([]byte, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}
