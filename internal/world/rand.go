package world

import "math"

// Positional RNG used by feature placement. Must be bit-stable so the
// generation workers and the main task agree on every placement decision.
// All arithmetic stays in 32-bit space.

const (
	posRandMulX    uint32 = 0x85EBCA6B
	posRandMulZ    uint32 = 0xC2B2AE35
	posRandMulSalt uint32 = 0x27D4EB2F
	posRandMixA    uint32 = 0x7FEB352D
	posRandMixB    uint32 = 0x846CA68B
)

// PositionRandom returns a deterministic value in [0,1) for a seed and a
// position/salt tuple.
func PositionRandom(seed int64, x, z, salt int64) float64 {
	h := uint32(x)*posRandMulX ^ uint32(z)*posRandMulZ ^ uint32(salt)*posRandMulSalt ^ uint32(uint64(seed))
	h ^= h >> 16
	h *= posRandMixA
	h ^= h >> 13
	h *= posRandMixB
	h ^= h >> 16
	h &= 0x7FFFFFFF
	return float64(h) / float64(1<<31)
}

// PositionRandomGaussian returns a normally distributed value (mean 0,
// stddev 1) via the Box-Muller transform over two positional draws.
func PositionRandomGaussian(seed int64, x, z, salt int64) float64 {
	u1 := PositionRandom(seed, x, z, salt)
	u2 := PositionRandom(seed, x, z, salt+0x5D1CE)
	if u1 < 1e-12 {
		u1 = 1e-12
	}
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
