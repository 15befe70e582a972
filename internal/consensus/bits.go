package consensus

import (
	"math/big"
)

// PowLimit is the highest (easiest) target the chain will ever accept,
// expressed in compact form. Equivalent to the classic Bitcoin mainnet
// genesis target (a 256-bit number whose top four bytes are 0x00, followed
// by two 0xff bytes and then zeros).
const PowLimit uint32 = 0x1d00ffff

// powLimitTarget is PowLimit expanded to a 256-bit integer, cached once.
var powLimitTarget = CompactToTarget(PowLimit)

// CompactToTarget expands a compact-bits encoding into a 256-bit target.
//
// Encoding: the top byte is an exponent `e`, the bottom three bytes are a
// mantissa `m` (sign-magnitude: if bit 0x00800000 of the mantissa is set the
// target is negative, which this implementation treats as zero since
// negative targets have no meaning for proof-of-work). The target is
// `m × 256^(e-3)`.
func CompactToTarget(bits uint32) *big.Int {
	exp := bits >> 24
	mantissa := bits & 0x007fffff

	if bits&0x00800000 != 0 {
		return big.NewInt(0)
	}
	if mantissa == 0 {
		return big.NewInt(0)
	}

	m := new(big.Int).SetUint64(uint64(mantissa))
	if exp <= 3 {
		shift := uint((3 - exp) * 8)
		return m.Rsh(m, shift)
	}
	shift := uint((exp - 3) * 8)
	return m.Lsh(m, shift)
}

// TargetToCompact packs a 256-bit target into its compact-bits encoding,
// rounding down mantissa precision to 3 bytes as needed.
func TargetToCompact(target *big.Int) uint32 {
	if target.Sign() <= 0 {
		return 0
	}

	// No clamping here: the exponent is derived from the target's byte length.
	bitLen := target.BitLen()
	nbytes := (bitLen + 7) / 8

	t := new(big.Int).Set(target)
	var mantissa uint32
	if nbytes <= 3 {
		mantissa = uint32(t.Uint64()) << (uint(3-nbytes) * 8)
	} else {
		shift := uint((nbytes - 3) * 8)
		m := new(big.Int).Rsh(t, shift)
		mantissa = uint32(m.Uint64())
	}

	// If the high bit of the mantissa's top byte is set, the sign-magnitude
	// encoding would read it as negative — shift right one more byte and
	// bump the exponent to keep the sign bit clear.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		nbytes++
	}

	return uint32(nbytes)<<24 | mantissa
}

// ClampTarget clips a target to the inclusive [1, PowLimit] range.
func ClampTarget(target *big.Int) *big.Int {
	if target.Sign() <= 0 {
		return big.NewInt(1)
	}
	if target.Cmp(powLimitTarget) > 0 {
		return new(big.Int).Set(powLimitTarget)
	}
	return target
}

// Work returns a header's proof-of-work contribution: 2^256 / (target+1).
// Higher work means more accumulated proof-of-work backing the chain tip
// that includes this header.
func Work(bits uint32) *big.Int {
	target := CompactToTarget(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	denom := new(big.Int).Add(target, big.NewInt(1))
	return new(big.Int).Div(maxUint256Plus1, denom)
}

var maxUint256Plus1 = new(big.Int).Lsh(big.NewInt(1), 256)
