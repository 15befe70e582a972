package script

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/shurium/shurium-node/pkg/crypto"
	"github.com/shurium/shurium-node/pkg/tx"
)

var (
	ErrInvalidScript         = errors.New("script: truncated push or malformed opcode")
	ErrUnbalancedConditional = errors.New("script: unbalanced IF/ELSE/ENDIF")
	ErrVerifyFailed          = errors.New("script: OP_VERIFY failed")
	ErrReturnEncountered     = errors.New("script: OP_RETURN encountered")
	ErrScriptFailed          = errors.New("script: final stack value is false")
	ErrScriptSigNotPushOnly  = errors.New("script: script_sig contains non-push opcodes")
	ErrP2SHEmptyStack        = errors.New("script: P2SH spend left no redeem script on the stack")
	ErrLockTimeNotSatisfied  = errors.New("script: OP_CHECKLOCKTIMEVERIFY not satisfied")
	ErrSequenceNotSatisfied  = errors.New("script: OP_CHECKSEQUENCEVERIFY not satisfied")
	ErrMultiSigBounds        = errors.New("script: OP_CHECKMULTISIG key/sig count out of range")
)

const locktimeThreshold = 500000000 // values below this are block heights, above are unix times
const sequenceDisableFlag = 1 << 31

// engine executes one script against a fixed transaction context. It has no
// exported surface — callers go through VerifyInput.
type engine struct {
	tx         *tx.Transaction
	inputIdx   int
	prevValue  int64
	scriptCode []byte
	main       stack
}

// run interprets data as a sequence of opcodes against e's stacks.
func (e *engine) run(data []byte) error {
	var branches []bool
	i := 0
	for i < len(data) {
		op := data[i]
		i++
		executing := allTrue(branches)

		switch op {
		case OpIf, OpNotIf:
			cond := false
			if executing {
				v, err := e.main.pop()
				if err != nil {
					return err
				}
				cond = isTruthy(v)
				if op == OpNotIf {
					cond = !cond
				}
			}
			branches = append(branches, cond)
			continue
		case OpElse:
			if len(branches) == 0 {
				return ErrUnbalancedConditional
			}
			branches[len(branches)-1] = !branches[len(branches)-1]
			continue
		case OpEndIf:
			if len(branches) == 0 {
				return ErrUnbalancedConditional
			}
			branches = branches[:len(branches)-1]
			continue
		}

		if !executing {
			adv, err := skipLen(op, data[i:])
			if err != nil {
				return err
			}
			i += adv
			continue
		}

		switch {
		case op <= 0x4b:
			if i+int(op) > len(data) {
				return ErrInvalidScript
			}
			if err := e.main.push(data[i : i+int(op)]); err != nil {
				return err
			}
			i += int(op)

		case op == OpPushData1:
			if i >= len(data) {
				return ErrInvalidScript
			}
			n := int(data[i])
			i++
			if i+n > len(data) {
				return ErrInvalidScript
			}
			if err := e.main.push(data[i : i+n]); err != nil {
				return err
			}
			i += n

		case op == OpPushData2:
			if i+2 > len(data) {
				return ErrInvalidScript
			}
			n := int(binary.LittleEndian.Uint16(data[i : i+2]))
			i += 2
			if i+n > len(data) {
				return ErrInvalidScript
			}
			if err := e.main.push(data[i : i+n]); err != nil {
				return err
			}
			i += n

		case op == Op1Negate:
			if err := e.main.push(intToBytes(-1)); err != nil {
				return err
			}

		case isSmallInt(op):
			if err := e.main.push(intToBytes(int64(smallIntValue(op)))); err != nil {
				return err
			}

		case op == OpDup:
			v, err := e.main.peek()
			if err != nil {
				return err
			}
			if err := e.main.push(v); err != nil {
				return err
			}

		case op == OpHash160:
			v, err := e.main.pop()
			if err != nil {
				return err
			}
			h := crypto.Hash160(v)
			if err := e.main.push(h[:]); err != nil {
				return err
			}

		case op == OpHash256:
			v, err := e.main.pop()
			if err != nil {
				return err
			}
			h := crypto.DoubleHash(v)
			if err := e.main.push(h[:]); err != nil {
				return err
			}

		case op == OpEqual || op == OpEqualVerify:
			a, err := e.main.pop()
			if err != nil {
				return err
			}
			b, err := e.main.pop()
			if err != nil {
				return err
			}
			eq := bytes.Equal(a, b)
			if op == OpEqualVerify {
				if !eq {
					return ErrVerifyFailed
				}
				continue
			}
			if err := e.main.push(boolBytes(eq)); err != nil {
				return err
			}

		case op == OpVerify:
			v, err := e.main.pop()
			if err != nil {
				return err
			}
			if !isTruthy(v) {
				return ErrVerifyFailed
			}

		case op == OpReturn:
			return ErrReturnEncountered

		case op == OpNumEqual || op == OpNumEqualVerify:
			b, err := e.main.popInt()
			if err != nil {
				return err
			}
			a, err := e.main.popInt()
			if err != nil {
				return err
			}
			eq := a == b
			if op == OpNumEqualVerify {
				if !eq {
					return ErrVerifyFailed
				}
				continue
			}
			if err := e.main.push(boolBytes(eq)); err != nil {
				return err
			}

		case op == OpCheckSig:
			if err := e.execCheckSig(); err != nil {
				return err
			}

		case op == OpCheckMultiSig:
			if err := e.execCheckMultiSig(); err != nil {
				return err
			}

		case op == OpCheckLockTimeVerify:
			if err := e.execCheckLockTimeVerify(); err != nil {
				return err
			}

		case op == OpCheckSequenceVerify:
			if err := e.execCheckSequenceVerify(); err != nil {
				return err
			}

		default:
			return fmt.Errorf("script: unsupported opcode 0x%02x", op)
		}
	}
	if len(branches) != 0 {
		return ErrUnbalancedConditional
	}
	return nil
}

func (e *engine) execCheckSig() error {
	pubKey, err := e.main.pop()
	if err != nil {
		return err
	}
	sig, err := e.main.pop()
	if err != nil {
		return err
	}
	ok := e.verifyOne(sig, pubKey)
	return e.main.push(boolBytes(ok))
}

// verifyOne checks a single (signature, pubkey) pair against this input's
// sighash. The last byte of sig is the hash type; the rest is the DER
// signature.
func (e *engine) verifyOne(sig, pubKey []byte) bool {
	if len(sig) < 2 {
		return false
	}
	hashType := SigHashType(sig[len(sig)-1])
	rawSig := sig[:len(sig)-1]

	hash, err := ComputeSigHash(e.tx, e.inputIdx, e.scriptCode, hashType)
	if err != nil {
		return false
	}
	return crypto.VerifySignature(hash[:], rawSig, pubKey)
}

func (e *engine) execCheckMultiSig() error {
	n, err := e.main.popInt()
	if err != nil {
		return err
	}
	if n < 0 || n > 20 {
		return ErrMultiSigBounds
	}
	pubKeys := make([][]byte, n)
	for i := int64(0); i < n; i++ {
		pk, err := e.main.pop()
		if err != nil {
			return err
		}
		pubKeys[n-1-i] = pk
	}

	m, err := e.main.popInt()
	if err != nil {
		return err
	}
	if m < 0 || m > n {
		return ErrMultiSigBounds
	}
	sigs := make([][]byte, m)
	for i := int64(0); i < m; i++ {
		s, err := e.main.pop()
		if err != nil {
			return err
		}
		sigs[m-1-i] = s
	}

	// Historic off-by-one: CHECKMULTISIG pops one extra (unused) stack item.
	if _, err := e.main.pop(); err != nil {
		return err
	}

	keyIdx := 0
	matched := 0
	for _, s := range sigs {
		found := false
		for keyIdx < len(pubKeys) {
			if e.verifyOne(s, pubKeys[keyIdx]) {
				keyIdx++
				found = true
				matched++
				break
			}
			keyIdx++
		}
		if !found {
			break
		}
	}
	return e.main.push(boolBytes(int64(matched) == m))
}

func (e *engine) execCheckLockTimeVerify() error {
	v, err := e.main.peekN(0)
	if err != nil {
		return err
	}
	locktime := bytesToInt(v)
	if locktime < 0 {
		return ErrLockTimeNotSatisfied
	}
	txLock := int64(e.tx.LockTime)

	if (locktime < locktimeThreshold) != (txLock < locktimeThreshold) {
		return ErrLockTimeNotSatisfied
	}
	if locktime > txLock {
		return ErrLockTimeNotSatisfied
	}
	if e.tx.Inputs[e.inputIdx].Sequence == 0xffffffff {
		return ErrLockTimeNotSatisfied
	}
	return nil
}

func (e *engine) execCheckSequenceVerify() error {
	v, err := e.main.peekN(0)
	if err != nil {
		return err
	}
	want := bytesToInt(v)
	if want < 0 {
		return ErrSequenceNotSatisfied
	}
	if want&sequenceDisableFlag != 0 {
		return nil
	}
	seq := int64(e.tx.Inputs[e.inputIdx].Sequence)
	if seq&sequenceDisableFlag != 0 {
		return ErrSequenceNotSatisfied
	}
	const typeFlag = 1 << 22
	const valueMask = 0xffff
	if (want&typeFlag) != (seq & typeFlag) {
		return ErrSequenceNotSatisfied
	}
	if want&valueMask > seq&valueMask {
		return ErrSequenceNotSatisfied
	}
	return nil
}

// skipLen returns how many bytes to advance past op's payload when the
// enclosing branch is not executing — pushes still need their length
// skipped so later opcodes stay aligned.
func skipLen(op byte, rest []byte) (int, error) {
	switch {
	case op <= 0x4b:
		if int(op) > len(rest) {
			return 0, ErrInvalidScript
		}
		return int(op), nil
	case op == OpPushData1:
		if len(rest) == 0 {
			return 0, ErrInvalidScript
		}
		n := int(rest[0])
		if 1+n > len(rest) {
			return 0, ErrInvalidScript
		}
		return 1 + n, nil
	case op == OpPushData2:
		if len(rest) < 2 {
			return 0, ErrInvalidScript
		}
		n := int(binary.LittleEndian.Uint16(rest[:2]))
		if 2+n > len(rest) {
			return 0, ErrInvalidScript
		}
		return 2 + n, nil
	default:
		return 0, nil
	}
}

func allTrue(branches []bool) bool {
	for _, b := range branches {
		if !b {
			return false
		}
	}
	return true
}

func boolBytes(b bool) []byte {
	if b {
		return []byte{1}
	}
	return nil
}

// isPushOnly reports whether data contains only push opcodes, the rule a
// script_sig must follow.
func isPushOnly(data []byte) bool {
	i := 0
	for i < len(data) {
		op := data[i]
		i++
		switch {
		case op <= 0x4b:
			i += int(op)
		case op == OpPushData1:
			if i >= len(data) {
				return false
			}
			i += 1 + int(data[i])
		case op == OpPushData2:
			if i+2 > len(data) {
				return false
			}
			i += 2 + int(binary.LittleEndian.Uint16(data[i:i+2]))
		case op == Op1Negate || isSmallInt(op):
			// no payload
		default:
			return false
		}
	}
	return i == len(data)
}
