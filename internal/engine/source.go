package engine

import (
	"math/rand/v2"
	"time"
)

// Source is the pseudo-random stream consumed by the scanners.
// *rand.Rand from math/rand/v2 satisfies it. Implementations need not be
// safe for concurrent use; the loop owns its source.
type Source interface {
	Float64() float64 // uniform in [0,1)
	IntN(n int) int   // uniform in [0,n)
}

const seedMix = 0x9E3779B97F4A7C15

// NewSource returns a source seeded from the clock.
func NewSource() *rand.Rand {
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
}

// NewSeededSource returns a deterministic source. Equal seeds yield equal streams.
func NewSeededSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^seedMix))
}
