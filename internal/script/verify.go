package script

import (
	"fmt"

	"github.com/shurium/shurium-node/pkg/tx"
	"github.com/shurium/shurium-node/pkg/types"
)

// VerifyInput executes input idx of txn's script_sig against prevScript, the
// locking script of the coin it spends, and reports whether the spend is
// authorized. prevValue is the spent coin's value, needed for future
// amount-committing sighash variants even though this interpreter does not
// implement any yet.
func VerifyInput(txn *tx.Transaction, idx int, prevScript types.Script, prevValue int64) error {
	if idx < 0 || idx >= len(txn.Inputs) {
		return fmt.Errorf("script: input index %d out of range", idx)
	}
	scriptSig := txn.Inputs[idx].ScriptSig
	if !isPushOnly(scriptSig) {
		return ErrScriptSigNotPushOnly
	}

	e := &engine{tx: txn, inputIdx: idx, prevValue: prevValue, scriptCode: prevScript}
	if err := e.run(scriptSig); err != nil {
		return fmt.Errorf("script_sig: %w", err)
	}

	savedStack := make([][]byte, len(e.main.items))
	copy(savedStack, e.main.items)

	if err := e.run(prevScript); err != nil {
		return fmt.Errorf("script_pubkey: %w", err)
	}
	top, err := e.main.peek()
	if err != nil || !isTruthy(top) {
		return ErrScriptFailed
	}

	if _, isP2SH := prevScript.IsP2SH(); !isP2SH {
		return nil
	}

	if len(savedStack) == 0 {
		return ErrP2SHEmptyStack
	}
	redeem := types.Script(savedStack[len(savedStack)-1])

	re := &engine{tx: txn, inputIdx: idx, prevValue: prevValue, scriptCode: redeem}
	re.main.items = append([][]byte{}, savedStack[:len(savedStack)-1]...)
	if err := re.run(redeem); err != nil {
		return fmt.Errorf("redeem_script: %w", err)
	}
	top2, err := re.main.peek()
	if err != nil || !isTruthy(top2) {
		return ErrScriptFailed
	}
	return nil
}
