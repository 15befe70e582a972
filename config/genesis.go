package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/shurium/shurium-node/pkg/block"
	"github.com/shurium/shurium-node/pkg/crypto"
	"github.com/shurium/shurium-node/pkg/tx"
	"github.com/shurium/shurium-node/pkg/types"
)

// =============================================================================
// Protocol Rules (immutable, defined in genesis)
// These MUST match across all nodes or consensus breaks.
// =============================================================================

// Denomination constants.
// 1 coin = 10^12 base units. All on-chain values are in base units.
const (
	Decimals  = 12
	Coin      = 1_000_000_000_000 // 10^12 base units per coin
	MilliCoin = 1_000_000_000     // 10^9
	MicroCoin = 1_000_000         // 10^6
)

// CoinbaseMaturity is the number of blocks a coinbase output must wait
// before it can be spent. Prevents issues during reorgs.
const CoinbaseMaturity uint64 = 100

// DifficultyInterval is the number of blocks between proof-of-work
// retargets.
const DifficultyInterval uint64 = 2016

// TargetSpacing is the desired number of seconds between blocks.
const TargetSpacing int64 = 600

// MaxFutureSkew bounds how far into the future a block's timestamp may sit
// relative to the node's adjusted clock.
const MaxFutureSkew int64 = 2 * 60 * 60

// MedianTimeSpan is the number of preceding blocks examined to compute a
// block's median-time-past for timestamp validation.
const MedianTimeSpan = 11

// MaxReorgDepth is the default conservative depth beyond which a
// reorganization is refused as too deep to be a legitimate fork resolution.
// Callers that want a different finality depth set chainstate.Config.MaxReorgDepth
// instead of relying on this default.
const MaxReorgDepth uint64 = 1000

// Block and transaction size limits (consensus-critical).
const (
	MaxBlockSize   = 2_000_000 // 2 MB max block size (header + all tx signing bytes)
	MaxBlockTxs    = 500       // Max transactions per block (including coinbase)
	MaxBlockSigops = 20_000    // Max legacy-counted signature operations per block
	MaxTxInputs    = 2500      // Max inputs per transaction
	MaxTxOutputs   = 2500      // Max outputs per transaction
	MaxScriptData  = 65_536    // 64 KB max script data per input/output
	MaxTxSize      = 1_000_000 // 1 MB max serialized transaction size
)

// Genesis holds the genesis block configuration and protocol rules.
// This is immutable after chain launch - changes require a hard fork.
type Genesis struct {
	// Chain identity
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name"`
	Symbol    string `json:"symbol,omitempty"` // Native coin symbol

	// Genesis block
	Timestamp uint64 `json:"timestamp"`
	ExtraData string `json:"extra_data,omitempty"`

	// Initial allocations (address -> balance in base units)
	Alloc map[string]uint64 `json:"alloc"`

	// Protocol rules
	Protocol ProtocolConfig `json:"protocol"`
}

// ForkSchedule defines block heights at which protocol upgrades activate.
// A zero value means the fork is not scheduled.
type ForkSchedule struct {
	// Future forks are added here as fields. Example:
	// ScriptEngineHeight uint64 `json:"script_engine_height,omitempty"`
}

// IsActive returns true if a fork at forkHeight has activated at currentHeight.
// Returns false if forkHeight is 0 (not scheduled).
func (f *ForkSchedule) IsActive(forkHeight, currentHeight uint64) bool {
	return forkHeight > 0 && currentHeight >= forkHeight
}

// ProtocolConfig holds consensus-critical rules.
// All nodes MUST agree on these values.
type ProtocolConfig struct {
	Consensus ConsensusRules `json:"consensus"`
	Forks     ForkSchedule   `json:"forks,omitempty"`
}

// ConsensusRules defines how proof-of-work blocks are produced and validated.
type ConsensusRules struct {
	// Block timing
	BlockTime int `json:"block_time"` // Target seconds between blocks

	// Difficulty retargeting
	InitialDifficulty uint64 `json:"initial_difficulty"`
	DifficultyAdjust  int    `json:"difficulty_adjust"` // Blocks between adjustments

	// Economics
	BlockReward     uint64 `json:"block_reward"`               // Base units for the first block's subsidy
	HalvingInterval uint64 `json:"halving_interval,omitempty"` // Blocks between reward halvings (0 = no halving)
	MinFeeRate      uint64 `json:"min_fee_rate"`               // Minimum relay fee rate, base units per byte
}

// =============================================================================
// Testnet Identity
//
// Derived from the well-known BIP-39 test mnemonic (DO NOT use on mainnet):
//
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon art
//
// Derivation path: m/44'/8888'/0'/0/0 (no passphrase)
// =============================================================================

const (
	// TestnetMnemonic is the well-known seed phrase for the testnet genesis allocation.
	TestnetMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

	// TestnetAddress is the address derived from TestnetMnemonic.
	TestnetAddress = "tshr13uayfwq9djh7cd5dagxtuzk3mx7r7sc9xv4h52"
)

// =============================================================================
// Pre-defined genesis configurations
// =============================================================================

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	return &Genesis{
		ChainID:   "shurium-mainnet-1",
		ChainName: "Shurium Mainnet",
		Symbol:    "SHR",
		Timestamp: 1770734103, // 2026-02-10
		ExtraData: "Shurium Genesis",
		Alloc:     map[string]uint64{},
		Protocol: ProtocolConfig{
			Consensus: ConsensusRules{
				BlockTime:         600, // 10 minute blocks
				InitialDifficulty: 1,
				DifficultyAdjust:  int(DifficultyInterval),
				BlockReward:       50 * Coin,
				HalvingInterval:   210_000,
				MinFeeRate:        10_000, // 10,000 base units per byte
			},
		},
	}
}

// TestnetGenesis returns the testnet genesis configuration.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.ChainID = "shurium-testnet-1"
	g.ChainName = "Shurium Testnet"
	g.ExtraData = "Shurium Testnet Genesis"

	// More relaxed rules for testnet.
	g.Protocol.Consensus.MinFeeRate = 10 // very low for testing
	g.Protocol.Consensus.BlockTime = 30  // faster blocks for local testing

	// Testnet allocation: 200,000 coins to the well-known testnet address.
	g.Alloc = map[string]uint64{
		TestnetAddress: 200_000 * Coin,
	}

	return g
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// =============================================================================
// Genesis file I/O
// =============================================================================

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

// Validate checks that the genesis configuration is valid.
func (g *Genesis) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if g.Protocol.Consensus.BlockTime <= 0 {
		return fmt.Errorf("block_time must be positive")
	}
	if g.Protocol.Consensus.InitialDifficulty == 0 {
		return fmt.Errorf("initial_difficulty must be positive")
	}
	if g.Protocol.Consensus.BlockReward == 0 {
		return fmt.Errorf("block_reward must be positive")
	}

	for addrStr := range g.Alloc {
		if _, err := types.ParseAddress(addrStr); err != nil {
			return fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
	}

	return nil
}

// Hash returns a BLAKE3 hash of the genesis configuration.
// Used to identify the chain and detect genesis mismatches.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}

// genesisBits is the easiest possible proof-of-work target in its
// compact-bits encoding (the same value internal/consensus.PoW calls
// PowLimit). The genesis block is seeded directly by chainstate.InitGenesis,
// which never runs it through header verification, so no nonce search is
// needed to produce it.
const genesisBits uint32 = 0x1d00ffff

// GenesisBlock builds the single coinbase-only block this genesis
// configuration describes: one output per Alloc entry, a script_sig
// carrying ExtraData the way a launch block commits to its provenance, and
// a header carrying genesisBits with a zero nonce (not sealed; see
// genesisBits). Deterministic for a
// given Genesis, so every node that starts from the same configuration
// arrives at the same genesis hash without needing to exchange it.
func (g *Genesis) GenesisBlock() (*block.Block, error) {
	addrs := make([]string, 0, len(g.Alloc))
	for addr := range g.Alloc {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	outputs := make([]tx.TxOut, 0, len(addrs))
	for _, addrStr := range addrs {
		addr, err := types.ParseAddress(addrStr)
		if err != nil {
			return nil, fmt.Errorf("genesis block: alloc address %q: %w", addrStr, err)
		}
		outputs = append(outputs, tx.TxOut{
			Value:  int64(g.Alloc[addrStr]),
			Script: types.NewP2PKHScript(addr),
		})
	}

	coinbase := &tx.Transaction{
		Version: 1,
		Inputs: []tx.TxIn{{
			PrevOut:   types.OutPoint{},
			ScriptSig: []byte(g.ExtraData),
			Sequence:  0xffffffff,
		}},
		Outputs: outputs,
	}

	header := &block.Header{
		Version:    block.CurrentVersion,
		PrevHash:   types.Hash{},
		MerkleRoot: block.ComputeMerkleRoot([]types.Hash{coinbase.Hash()}),
		Time:       uint32(g.Timestamp),
		Bits:       genesisBits,
		Nonce:      0,
	}

	return block.NewBlock(header, []*tx.Transaction{coinbase}), nil
}
