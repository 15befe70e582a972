package consensus

import (
	"math/big"
	"testing"

	"github.com/shurium/shurium-node/config"
	"github.com/shurium/shurium-node/pkg/block"
	"github.com/shurium/shurium-node/pkg/types"
)

func TestCompactToTarget_PowLimit(t *testing.T) {
	target := CompactToTarget(PowLimit)
	if target.Sign() <= 0 {
		t.Fatalf("CompactToTarget(PowLimit) = %s, want positive", target)
	}
}

func TestCompactToTarget_RoundTrip(t *testing.T) {
	for _, bits := range []uint32{0x1d00ffff, 0x1b0404cb, 0x207fffff, 0x1c00ffff} {
		target := CompactToTarget(bits)
		got := TargetToCompact(target)
		if got != bits {
			t.Errorf("round-trip %#x -> target -> %#x", bits, got)
		}
	}
}

func TestCompactToTarget_NegativeBitRejected(t *testing.T) {
	// Mantissa with the sign bit set is treated as zero.
	target := CompactToTarget(0x01800000)
	if target.Sign() != 0 {
		t.Fatalf("CompactToTarget with sign bit set = %s, want 0", target)
	}
}

func TestWork_HigherForSmallerTarget(t *testing.T) {
	easy := Work(PowLimit)
	hard := Work(0x1c00ffff) // Smaller target, more work.
	if hard.Cmp(easy) <= 0 {
		t.Fatalf("Work(harder bits) = %s, want > Work(easier bits) = %s", hard, easy)
	}
}

func TestClampTarget(t *testing.T) {
	tooHigh := new(big.Int).Mul(powLimitTarget, big.NewInt(2))
	if ClampTarget(tooHigh).Cmp(powLimitTarget) != 0 {
		t.Fatal("ClampTarget should clip targets above PowLimit")
	}
	if ClampTarget(big.NewInt(0)).Cmp(big.NewInt(1)) != 0 {
		t.Fatal("ClampTarget should floor non-positive targets to 1")
	}
}

func TestPoW_SealAndVerify(t *testing.T) {
	pow := NewPoW(0)

	header := &block.Header{
		Version:    1,
		PrevHash:   types.Hash{},
		MerkleRoot: types.Hash{1, 2, 3},
		Time:       1000,
		Bits:       PowLimit,
	}

	blk := block.NewBlock(header, nil)
	if err := pow.Seal(blk); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if err := pow.VerifyHeader(blk.Header); err != nil {
		t.Fatalf("VerifyHeader after Seal: %v", err)
	}
}

func TestPoW_SealParallel(t *testing.T) {
	pow := NewPoW(4)

	header := &block.Header{
		Version:    1,
		MerkleRoot: types.Hash{9, 9},
		Time:       2000,
		Bits:       PowLimit,
	}
	blk := block.NewBlock(header, nil)

	if err := pow.Seal(blk); err != nil {
		t.Fatalf("Seal (parallel): %v", err)
	}
	if err := pow.VerifyHeader(blk.Header); err != nil {
		t.Fatalf("VerifyHeader after parallel Seal: %v", err)
	}
}

func TestPoW_VerifyHeader_Rejects(t *testing.T) {
	pow := NewPoW(0)

	// Tiny target — a random nonce almost never satisfies it.
	header := &block.Header{
		Version:    1,
		MerkleRoot: types.Hash{1, 2, 3},
		Time:       1000,
		Bits:       0x1b0404cb,
		Nonce:      42,
	}

	err := pow.VerifyHeader(header)
	if err != ErrInsufficientWork {
		t.Fatalf("VerifyHeader with tight target = %v, want ErrInsufficientWork", err)
	}
}

func TestPoW_VerifyHeader_ZeroBits(t *testing.T) {
	pow := NewPoW(0)

	header := &block.Header{Version: 1, Bits: 0}
	err := pow.VerifyHeader(header)
	if err != ErrZeroBits {
		t.Fatalf("VerifyHeader(bits=0) = %v, want ErrZeroBits", err)
	}
}

func TestPoW_VerifyHeader_TargetAboveLimit(t *testing.T) {
	pow := NewPoW(0)

	// Exponent large enough to push the target above PowLimit.
	header := &block.Header{Version: 1, Bits: 0x21000001}
	err := pow.VerifyHeader(header)
	if err != ErrTargetAboveLimit {
		t.Fatalf("VerifyHeader(bits above limit) = %v, want ErrTargetAboveLimit", err)
	}
}

func TestPoW_Prepare_DefaultsToPowLimit(t *testing.T) {
	pow := NewPoW(0)
	header := &block.Header{Version: 1, Time: 1}
	if err := pow.Prepare(header, 1, 0); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if header.Bits != PowLimit {
		t.Fatalf("Prepare with no prevBits set Bits = %#x, want PowLimit", header.Bits)
	}
}

func TestPoW_Prepare_CarriesPrevBits(t *testing.T) {
	pow := NewPoW(0)
	header := &block.Header{Version: 1, Time: 1}
	if err := pow.Prepare(header, 5, 0x1c00ffff); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if header.Bits != 0x1c00ffff {
		t.Fatalf("Prepare at non-retarget height = %#x, want carried-forward bits", header.Bits)
	}
}

func TestPoW_Prepare_UsesBitsFn(t *testing.T) {
	pow := NewPoW(0)
	pow.BitsFn = func(height uint64, prevBits uint32, getTimestamp func(uint64) (uint32, error)) uint32 {
		return 0x1d00aaaa
	}
	header := &block.Header{Version: 1, Time: 1}
	if err := pow.Prepare(header, 5, 0x1c00ffff); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if header.Bits != 0x1d00aaaa {
		t.Fatalf("Prepare with BitsFn set Bits = %#x, want 0x1d00aaaa", header.Bits)
	}
}

// ── Retarget tests ──────────────────────────────────────────────────────

func TestCalcNextBits_ExactTarget(t *testing.T) {
	nominal := int64(config.DifficultyInterval) * config.TargetSpacing
	got := CalcNextBits(0x1c00ffff, nominal, nominal)
	if got != 0x1c00ffff {
		t.Fatalf("CalcNextBits(exact) = %#x, want unchanged %#x", got, 0x1c00ffff)
	}
}

func TestCalcNextBits_TooFast(t *testing.T) {
	// Blocks twice as fast → target should roughly halve (more work required).
	nominal := int64(1200)
	got := CalcNextBits(0x1c00ffff, 600, nominal)
	gotTarget := CompactToTarget(got)
	oldTarget := CompactToTarget(0x1c00ffff)
	if gotTarget.Cmp(oldTarget) >= 0 {
		t.Fatalf("CalcNextBits(2x fast) target %s should be smaller than old target %s", gotTarget, oldTarget)
	}
}

func TestCalcNextBits_TooSlow(t *testing.T) {
	// Blocks twice as slow → target should roughly double (easier).
	nominal := int64(600)
	got := CalcNextBits(0x1c00ffff, 1200, nominal)
	gotTarget := CompactToTarget(got)
	oldTarget := CompactToTarget(0x1c00ffff)
	if gotTarget.Cmp(oldTarget) <= 0 {
		t.Fatalf("CalcNextBits(2x slow) target %s should be larger than old target %s", gotTarget, oldTarget)
	}
}

func TestCalcNextBits_ClampsToPowLimit(t *testing.T) {
	// Extremely slow blocks starting from a near-limit target must clip to PowLimit.
	got := CalcNextBits(PowLimit, 100000, 600)
	if got != PowLimit {
		t.Fatalf("CalcNextBits should clip to PowLimit, got %#x", got)
	}
}

func TestShouldRetarget(t *testing.T) {
	tests := []struct {
		height uint64
		want   bool
	}{
		{0, false},
		{1, false},
		{config.DifficultyInterval - 1, false},
		{config.DifficultyInterval, true},
		{config.DifficultyInterval + 1, false},
		{config.DifficultyInterval * 2, true},
	}
	for _, tt := range tests {
		if got := ShouldRetarget(tt.height); got != tt.want {
			t.Errorf("ShouldRetarget(%d) = %v, want %v", tt.height, got, tt.want)
		}
	}
}

func TestExpectedBits_Genesis(t *testing.T) {
	if got := ExpectedBits(0, 0, nil); got != PowLimit {
		t.Fatalf("ExpectedBits(0) = %#x, want PowLimit", got)
	}
}

func TestExpectedBits_NonBoundaryCarriesForward(t *testing.T) {
	if got := ExpectedBits(5, 0x1c00ffff, nil); got != 0x1c00ffff {
		t.Fatalf("ExpectedBits(non-boundary) = %#x, want carried-forward", got)
	}
}

func TestExpectedBits_Retarget(t *testing.T) {
	interval := config.DifficultyInterval
	nominal := int64(interval) * config.TargetSpacing

	getTS := func(h uint64) (uint32, error) {
		if h == 0 {
			return 0, nil
		}
		return uint32(nominal), nil
	}
	got := ExpectedBits(interval, 0x1c00ffff, getTS)
	if got != 0x1c00ffff {
		t.Fatalf("ExpectedBits(exact retarget) = %#x, want unchanged", got)
	}
}

func TestPoW_VerifyDifficulty(t *testing.T) {
	pow := NewPoW(0)

	header := &block.Header{Bits: PowLimit}
	if err := pow.VerifyDifficulty(header, 0, 0, nil); err != nil {
		t.Fatalf("VerifyDifficulty(genesis) = %v, want nil", err)
	}

	badHeader := &block.Header{Bits: 0x1c00ffff}
	if err := pow.VerifyDifficulty(badHeader, 0, 0, nil); err == nil {
		t.Fatal("VerifyDifficulty(wrong genesis bits) = nil, want error")
	}

	nonBoundary := &block.Header{Bits: 0x1c00ffff}
	if err := pow.VerifyDifficulty(nonBoundary, 5, 0x1c00ffff, nil); err != nil {
		t.Fatalf("VerifyDifficulty(non-boundary, matching) = %v, want nil", err)
	}
}
