package agent

import "math/rand/v2"

// Rand is the source of randomness an agent draws from. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	NormFloat64() float64 // standard normal
	Float64() float64     // uniform in [0, 1)
}

// NewRand returns a PCG-backed Rand. Agents sharing a process each get their
// own, since *rand.Rand is not safe for concurrent use.
func NewRand(seed1, seed2 uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed1, seed2))
}

// NewRandomRand returns a Rand seeded from the runtime's entropy.
func NewRandomRand() *rand.Rand {
	return NewRand(rand.Uint64(), rand.Uint64())
}
