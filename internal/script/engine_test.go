package script

import (
	"testing"

	"github.com/shurium/shurium-node/pkg/tx"
)

func newTestEngine() *engine {
	return &engine{tx: &tx.Transaction{Inputs: []tx.TxIn{{Sequence: 0xffffffff}}}}
}

func runScript(t *testing.T, script []byte) *engine {
	t.Helper()
	e := newTestEngine()
	if err := e.run(script); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	return e
}

func TestEngine_PushData(t *testing.T) {
	e := runScript(t, []byte{0x02, 0xAB, 0xCD})
	v, err := e.main.pop()
	if err != nil || len(v) != 2 || v[0] != 0xAB || v[1] != 0xCD {
		t.Errorf("pop() = %v, %v, want [0xAB 0xCD]", v, err)
	}
}

func TestEngine_PushData1(t *testing.T) {
	data := make([]byte, 80)
	script := append([]byte{OpPushData1, byte(len(data))}, data...)
	e := runScript(t, script)
	if e.main.size() != 1 {
		t.Fatalf("stack size = %d, want 1", e.main.size())
	}
}

func TestEngine_SmallInts(t *testing.T) {
	e := runScript(t, []byte{Op0, Op1, Op16, Op1Negate})
	if e.main.size() != 4 {
		t.Fatalf("stack size = %d, want 4", e.main.size())
	}
	v, _ := e.main.popInt()
	if v != -1 {
		t.Errorf("OP_1NEGATE = %d, want -1", v)
	}
	v, _ = e.main.popInt()
	if v != 16 {
		t.Errorf("OP_16 = %d, want 16", v)
	}
}

func TestEngine_DupEqual(t *testing.T) {
	e := runScript(t, []byte{0x01, 0x05, OpDup, OpEqual})
	v, err := e.main.pop()
	if err != nil || !isTruthy(v) {
		t.Errorf("DUP then EQUAL should leave true on the stack: %v %v", v, err)
	}
}

func TestEngine_EqualVerifyFails(t *testing.T) {
	e := newTestEngine()
	err := e.run([]byte{0x01, 0x05, 0x01, 0x06, OpEqualVerify})
	if err != ErrVerifyFailed {
		t.Errorf("run() = %v, want ErrVerifyFailed", err)
	}
}

func TestEngine_IfElseEndIf_TrueBranch(t *testing.T) {
	// push 1, IF push 0x42 ELSE push 0x43 ENDIF
	e := runScript(t, []byte{Op1, OpIf, 0x01, 0x42, OpElse, 0x01, 0x43, OpEndIf})
	v, _ := e.main.pop()
	if len(v) != 1 || v[0] != 0x42 {
		t.Errorf("true branch result = %v, want [0x42]", v)
	}
}

func TestEngine_IfElseEndIf_FalseBranch(t *testing.T) {
	e := runScript(t, []byte{Op0, OpIf, 0x01, 0x42, OpElse, 0x01, 0x43, OpEndIf})
	v, _ := e.main.pop()
	if len(v) != 1 || v[0] != 0x43 {
		t.Errorf("false branch result = %v, want [0x43]", v)
	}
}

func TestEngine_NestedIf(t *testing.T) {
	// OP_1 OP_IF OP_1 OP_IF <0x11> OP_ELSE <0x22> OP_ENDIF OP_ENDIF
	e := runScript(t, []byte{
		Op1, OpIf,
		Op1, OpIf, 0x01, 0x11, OpElse, 0x01, 0x22, OpEndIf,
		OpEndIf,
	})
	v, _ := e.main.pop()
	if len(v) != 1 || v[0] != 0x11 {
		t.Errorf("nested IF result = %v, want [0x11]", v)
	}
}

func TestEngine_UnbalancedConditional(t *testing.T) {
	e := newTestEngine()
	if err := e.run([]byte{Op1, OpIf, 0x01, 0x01}); err != ErrUnbalancedConditional {
		t.Errorf("run() with missing ENDIF = %v, want ErrUnbalancedConditional", err)
	}
}

func TestEngine_ElseWithoutIf(t *testing.T) {
	e := newTestEngine()
	if err := e.run([]byte{OpElse}); err != ErrUnbalancedConditional {
		t.Errorf("run() = %v, want ErrUnbalancedConditional", err)
	}
}

func TestEngine_OpReturn(t *testing.T) {
	e := newTestEngine()
	if err := e.run([]byte{OpReturn}); err != ErrReturnEncountered {
		t.Errorf("run() = %v, want ErrReturnEncountered", err)
	}
}

func TestEngine_NumEqual(t *testing.T) {
	e := runScript(t, []byte{Op16, Op16, OpNumEqual})
	v, _ := e.main.pop()
	if !isTruthy(v) {
		t.Error("OP_NUMEQUAL of equal values should be true")
	}
}

func TestEngine_CheckLockTimeVerify_Satisfied(t *testing.T) {
	e := newTestEngine()
	e.tx.LockTime = 600000
	err := e.run([]byte{0x03, 0xc0, 0x27, 0x09, OpCheckLockTimeVerify}) // push 600000 LE
	if err != nil {
		t.Errorf("CHECKLOCKTIMEVERIFY should pass when locktime >= pushed value: %v", err)
	}
}

func TestEngine_CheckLockTimeVerify_NotSatisfied(t *testing.T) {
	e := newTestEngine()
	e.tx.LockTime = 100
	err := e.run([]byte{0x03, 0xc0, 0x27, 0x09, OpCheckLockTimeVerify})
	if err != ErrLockTimeNotSatisfied {
		t.Errorf("run() = %v, want ErrLockTimeNotSatisfied", err)
	}
}

func TestEngine_CheckLockTimeVerify_FinalSequenceDisables(t *testing.T) {
	e := newTestEngine()
	e.tx.LockTime = 600000
	e.tx.Inputs[0].Sequence = 0xffffffff
	err := e.run([]byte{0x03, 0xc0, 0x27, 0x09, OpCheckLockTimeVerify})
	if err != ErrLockTimeNotSatisfied {
		t.Errorf("final sequence should disable CHECKLOCKTIMEVERIFY: %v", err)
	}
}

func TestEngine_CheckSequenceVerify_Satisfied(t *testing.T) {
	e := newTestEngine()
	e.tx.Inputs[0].Sequence = 10
	err := e.run([]byte{0x01, 0x05, OpCheckSequenceVerify}) // require >= 5
	if err != nil {
		t.Errorf("CHECKSEQUENCEVERIFY should pass when sequence satisfies the requirement: %v", err)
	}
}

func TestEngine_CheckSequenceVerify_NotSatisfied(t *testing.T) {
	e := newTestEngine()
	e.tx.Inputs[0].Sequence = 2
	err := e.run([]byte{0x01, 0x05, OpCheckSequenceVerify})
	if err != ErrSequenceNotSatisfied {
		t.Errorf("run() = %v, want ErrSequenceNotSatisfied", err)
	}
}

func TestIsPushOnly(t *testing.T) {
	if !isPushOnly([]byte{0x01, 0xAB, Op1, Op1Negate}) {
		t.Error("push-only script misclassified as not push-only")
	}
	if isPushOnly([]byte{OpCheckSig}) {
		t.Error("OP_CHECKSIG should not be classified as push-only")
	}
	if isPushOnly([]byte{0x05, 0xAB}) {
		t.Error("truncated push should not be classified as push-only")
	}
}
