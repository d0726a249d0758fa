package markov

import "math/rand/v2"

// Rand is a source of uniformly distributed values in [0, 1).
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
}

// globalRand draws from the process-wide math/rand/v2 generator.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// DefaultRand is the Rand used when none has been injected.
var DefaultRand Rand = globalRand{}

// NewSeededRand returns a deterministic Rand backed by a PCG source.
func NewSeededRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
