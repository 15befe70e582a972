package script

import "github.com/shurium/shurium-node/pkg/tx"

// CountTxSigOps returns txn's legacy sigop count: SigOpCount summed across
// every output's locking script, plus every input's script_sig (skipped for
// a coinbase, whose single input carries arbitrary height-tag data rather
// than a script and would otherwise be misread as opcodes).
func CountTxSigOps(txn *tx.Transaction) (int, error) {
	total := 0
	if !txn.IsCoinbase() {
		for _, in := range txn.Inputs {
			n, err := SigOpCount(in.ScriptSig)
			if err != nil {
				return 0, err
			}
			total += n
		}
	}
	for _, out := range txn.Outputs {
		n, err := SigOpCount(out.Script)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// CountBlockSigOps sums CountTxSigOps across every transaction in txs.
func CountBlockSigOps(txs []*tx.Transaction) (int, error) {
	total := 0
	for _, t := range txs {
		n, err := CountTxSigOps(t)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
