// Package tx defines transaction types, wire (de)serialization, and
// structural validation.
package tx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/shurium/shurium-node/pkg/crypto"
	"github.com/shurium/shurium-node/pkg/types"
	"github.com/shurium/shurium-node/pkg/wire"
)

// MaxMoney is the maximum possible value of a single output or the sum of
// any set of outputs: 21e6 whole coins at 1e8 base units each.
const MaxMoney = 21_000_000 * 1e8

// maxScriptSize bounds an individual script read off the wire; it is well
// above any script the verifier accepts; the real limit is policy-level
// (config.MaxScriptData).
const maxScriptSize = 1 << 20

// Transaction represents a blockchain transaction.
type Transaction struct {
	Version  int32   `json:"version"`
	Inputs   []TxIn  `json:"inputs"`
	Outputs  []TxOut `json:"outputs"`
	LockTime uint32  `json:"locktime"`
}

// TxIn references a coin being spent.
type TxIn struct {
	PrevOut   types.OutPoint `json:"prevout"`
	ScriptSig types.Script   `json:"script_sig"`
	Sequence  uint32         `json:"sequence"`
}

// TxOut defines a new coin.
type TxOut struct {
	Value  int64        `json:"value"`
	Script types.Script `json:"script"`
}

// IsCoinbase returns true if this is the single zero-outpoint input marking
// a coinbase transaction.
func (t *Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 1 && t.Inputs[0].PrevOut.IsZero()
}

// Hash computes the transaction ID: a double hash of the full wire
// serialization (including script_sig — unlike the per-input sighash, the
// txid commits to everything).
func (t *Transaction) Hash() types.Hash {
	return crypto.DoubleHash(t.Serialize())
}

// Serialize encodes the transaction in the exact wire format:
//
//	version:i32 LE ‖ varint(in_count) ‖ inputs ‖ varint(out_count) ‖ outputs ‖ locktime:u32 LE
//
// TxIn  = outpoint(32+4) ‖ varint(len) ‖ script_sig ‖ sequence:u32 LE
// TxOut = value:i64 LE ‖ varint(len) ‖ script
func (t *Transaction) Serialize() []byte {
	buf := make([]byte, 0, 64+64*len(t.Inputs)+64*len(t.Outputs))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(t.Version))

	buf = wire.WriteVarInt(buf, uint64(len(t.Inputs)))
	for _, in := range t.Inputs {
		buf = append(buf, in.PrevOut.TxID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevOut.Index)
		buf = wire.WriteVarBytes(buf, in.ScriptSig)
		buf = binary.LittleEndian.AppendUint32(buf, in.Sequence)
	}

	buf = wire.WriteVarInt(buf, uint64(len(t.Outputs)))
	for _, out := range t.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(out.Value))
		buf = wire.WriteVarBytes(buf, out.Script)
	}

	buf = binary.LittleEndian.AppendUint32(buf, t.LockTime)
	return buf
}

// DeserializeTransaction decodes a transaction from its wire encoding.
func DeserializeTransaction(data []byte) (*Transaction, error) {
	r := bytes.NewReader(data)
	t, err := ReadTransaction(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("transaction: %d trailing bytes", r.Len())
	}
	return t, nil
}

// ReadTransaction decodes a transaction from r without requiring it to be
// the only content (used when reading a block's transaction list).
func ReadTransaction(r io.Reader) (*Transaction, error) {
	var versionBuf [4]byte
	if _, err := io.ReadFull(r, versionBuf[:]); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	t := &Transaction{Version: int32(binary.LittleEndian.Uint32(versionBuf[:]))}

	inCount, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("read input count: %w", err)
	}
	t.Inputs = make([]TxIn, inCount)
	for i := range t.Inputs {
		var txid [32]byte
		if _, err := io.ReadFull(r, txid[:]); err != nil {
			return nil, fmt.Errorf("input %d: read txid: %w", i, err)
		}
		var idxBuf [4]byte
		if _, err := io.ReadFull(r, idxBuf[:]); err != nil {
			return nil, fmt.Errorf("input %d: read index: %w", i, err)
		}
		script, err := wire.ReadVarBytes(r, maxScriptSize)
		if err != nil {
			return nil, fmt.Errorf("input %d: read script_sig: %w", i, err)
		}
		var seqBuf [4]byte
		if _, err := io.ReadFull(r, seqBuf[:]); err != nil {
			return nil, fmt.Errorf("input %d: read sequence: %w", i, err)
		}
		t.Inputs[i] = TxIn{
			PrevOut:   types.OutPoint{TxID: txid, Index: binary.LittleEndian.Uint32(idxBuf[:])},
			ScriptSig: script,
			Sequence:  binary.LittleEndian.Uint32(seqBuf[:]),
		}
	}

	outCount, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("read output count: %w", err)
	}
	t.Outputs = make([]TxOut, outCount)
	for i := range t.Outputs {
		var valBuf [8]byte
		if _, err := io.ReadFull(r, valBuf[:]); err != nil {
			return nil, fmt.Errorf("output %d: read value: %w", i, err)
		}
		script, err := wire.ReadVarBytes(r, maxScriptSize)
		if err != nil {
			return nil, fmt.Errorf("output %d: read script: %w", i, err)
		}
		t.Outputs[i] = TxOut{
			Value:  int64(binary.LittleEndian.Uint64(valBuf[:])),
			Script: script,
		}
	}

	var lockBuf [4]byte
	if _, err := io.ReadFull(r, lockBuf[:]); err != nil {
		return nil, fmt.Errorf("read locktime: %w", err)
	}
	t.LockTime = binary.LittleEndian.Uint32(lockBuf[:])

	return t, nil
}

// TotalOutputValue returns the sum of all output values.
// Returns an error if the sum overflows or exceeds MaxMoney.
func (t *Transaction) TotalOutputValue() (int64, error) {
	var total int64
	for _, out := range t.Outputs {
		if out.Value < 0 || out.Value > MaxMoney {
			return 0, fmt.Errorf("output value %d out of range", out.Value)
		}
		if total > math.MaxInt64-out.Value {
			return 0, fmt.Errorf("output value overflow")
		}
		total += out.Value
		if total > MaxMoney {
			return 0, fmt.Errorf("total output value exceeds max money")
		}
	}
	return total, nil
}
