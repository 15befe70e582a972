// Command shuriumd runs a Shurium node: chain state, mempool, and
// (optionally) its own block assembly, against a local data directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/shurium/shurium-node/config"
	"github.com/shurium/shurium-node/internal/assembler"
	"github.com/shurium/shurium-node/internal/blockindex"
	"github.com/shurium/shurium-node/internal/blockstore"
	"github.com/shurium/shurium-node/internal/chainstate"
	"github.com/shurium/shurium-node/internal/coinview"
	"github.com/shurium/shurium-node/internal/consensus"
	"github.com/shurium/shurium-node/internal/log"
	"github.com/shurium/shurium-node/internal/mempool"
	"github.com/shurium/shurium-node/internal/storage"
	"github.com/shurium/shurium-node/pkg/types"
)

func main() {
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "shuriumd: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "shuriumd: init logging: %v\n", err)
		os.Exit(1)
	}

	if cfg.Network == config.Testnet {
		types.SetAddressHRP(types.TestnetHRP)
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("shuriumd exiting")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	genesis := config.GenesisFor(cfg.Network)
	log.Info().Str("chain_id", genesis.ChainID).Str("network", string(cfg.Network)).
		Str("datadir", cfg.DataDir).Msg("starting shurium node")

	coinDB, err := storage.NewBadger(cfg.UTXODir())
	if err != nil {
		return fmt.Errorf("open coin database: %w", err)
	}
	defer coinDB.Close()

	blockIndexDB, err := storage.NewBadger(filepath.Join(cfg.BlocksDir(), "index"))
	if err != nil {
		return fmt.Errorf("open block index database: %w", err)
	}
	defer blockIndexDB.Close()

	store, err := blockstore.Open(cfg.BlocksDir(), blockIndexDB)
	if err != nil {
		return fmt.Errorf("open block store: %w", err)
	}
	defer store.Close()

	engine := consensus.NewPoW(cfg.Mining.Threads)
	engine.BitsFn = consensus.ExpectedBits
	engine.GetTimestamp = nil // wired to the chain below, once it exists

	idx := blockindex.NewIndex()
	dbView := coinview.NewDBView(coinDB)
	chain := chainstate.New(idx, dbView, store, engine, chainstate.Config{
		MaxReorgDepth:   config.MaxReorgDepth,
		BaseSubsidy:     genesis.Protocol.Consensus.BlockReward,
		HalvingInterval: genesis.Protocol.Consensus.HalvingInterval,
	})
	engine.GetTimestamp = chainTimestampFn(chain)

	resumed, err := chain.Restore()
	if err != nil {
		return fmt.Errorf("restore chain state: %w", err)
	}
	if !resumed {
		genesisBlock, err := genesis.GenesisBlock()
		if err != nil {
			return fmt.Errorf("build genesis block: %w", err)
		}
		if err := chain.InitGenesis(genesisBlock); err != nil {
			return fmt.Errorf("connect genesis block: %w", err)
		}
		log.Info().Str("hash", genesisBlock.Hash().String()).Msg("genesis block connected")
	} else {
		height, _ := chain.Height()
		log.Info().Uint64("height", height).Msg("resumed chain state")
	}

	pool := mempool.New(chain.Coins(), func() uint64 {
		h, _ := chain.Height()
		return h
	}, mempool.DefaultConfig())
	chain.SetMempool(pool)

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	if cfg.Mining.Enabled {
		coinbaseAddr, err := types.ParseAddress(cfg.Mining.Coinbase)
		if err != nil {
			cancel()
			return fmt.Errorf("invalid mining.coinbase address: %w", err)
		}
		asm := assembler.New(chain, engine, pool, coinbaseAddr,
			assembler.DefaultConfig(genesis.Protocol.Consensus.BlockReward, genesis.Protocol.Consensus.HalvingInterval))

		wg.Add(1)
		go func() {
			defer wg.Done()
			mine(ctx, chain, asm)
		}()
		log.Info().Str("coinbase", cfg.Mining.Coinbase).Msg("mining enabled")
	}

	<-sig
	log.Info().Msg("shutdown signal received")
	cancel()
	wg.Wait()
	log.Info().Msg("shurium node stopped")
	return nil
}

// mine repeatedly assembles and connects candidate blocks against the
// current tip until ctx is canceled. AssembleBlock's own proof-of-work
// search respects ctx, so a shutdown mid-search returns promptly.
func mine(ctx context.Context, chain *chainstate.Manager, asm *assembler.Assembler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		blk, err := asm.AssembleBlock(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("assemble block")
			time.Sleep(time.Second)
			continue
		}

		if err := chain.AcceptBlock(blk); err != nil {
			log.Error().Err(err).Str("hash", blk.Hash().String()).Msg("reject mined block")
			continue
		}

		height, _ := chain.Height()
		log.Info().Str("hash", blk.Hash().String()).Uint64("height", height).
			Int("txs", len(blk.Transactions)).Msg("mined block")
	}
}

// chainTimestampFn exposes a height's header timestamp for retarget math,
// closed over the live chain so it always reflects the active tip.
func chainTimestampFn(chain *chainstate.Manager) func(uint64) (uint32, error) {
	return func(height uint64) (uint32, error) {
		entry, ok := chain.EntryAt(height)
		if !ok {
			return 0, fmt.Errorf("height %d not on active chain", height)
		}
		return entry.Header.Time, nil
	}
}
