package genetics

import "math/rand/v2"

// Rng is the seeded random source shared by a simulation's stochastic steps.
// Runs with the same seed replay identically.
type Rng struct {
	*rand.Rand
	seed uint64
}

// NewRng creates a PCG-backed source from seed.
func NewRng(seed uint64) *Rng {
	return &Rng{
		Rand: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		seed: seed,
	}
}

// Seed returns the seed the source was created with.
func (r *Rng) Seed() uint64 {
	return r.seed
}

// Range returns a uniform value in [lo, hi).
func (r *Rng) Range(lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// Chance reports true with probability p. p <= 0 never succeeds, p >= 1 always does.
func (r *Rng) Chance(p float64) bool {
	return r.Float64() < p
}
