package script

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/shurium/shurium-node/pkg/tx"
	"github.com/shurium/shurium-node/pkg/types"
)

// Job describes one input whose script needs verifying.
type Job struct {
	Tx        *tx.Transaction
	InputIdx  int
	PrevScript types.Script
	PrevValue int64
}

// VerifyAll checks every job concurrently across a bounded worker pool,
// mirroring the strided-goroutine fan-out the miner uses for nonce search:
// a fixed set of workers pull from a shared channel, and the first failure
// cancels the rest rather than waiting for the whole batch to finish.
func VerifyAll(ctx context.Context, jobs []Job) error {
	if len(jobs) == 0 {
		return nil
	}

	workers := runtime.NumCPU()
	if workers > len(jobs) {
		workers = len(jobs)
	}
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	indices := make(chan int, len(jobs))
	for i := range jobs {
		indices <- i
	}
	close(indices)

	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				select {
				case <-ctx.Done():
					return
				default:
				}
				j := jobs[i]
				if err := VerifyInput(j.Tx, j.InputIdx, j.PrevScript, j.PrevValue); err != nil {
					errs[i] = fmt.Errorf("input %d: %w", j.InputIdx, err)
					cancel()
					return
				}
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
