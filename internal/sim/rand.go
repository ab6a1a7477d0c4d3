// Package sim provides the shared random source used by the simulated backends.
package sim

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is a goroutine-safe random source. A fixed seed makes simulations
// reproducible in tests.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a source seeded with seed, or with the clock when seed is 0.
func NewRand(seed uint64) *Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec // simulation only
	}
	return &Rand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))} //nolint:gosec // simulation only
}

// Float64 returns a value in [0, 1).
func (r *Rand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Float64()
}

// Gauss returns a normally distributed value.
func (r *Rand) Gauss(mean, stddev float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return mean + r.r.NormFloat64()*stddev
}

// Normal fills a slice of n normally distributed values.
func (r *Rand) Normal(mean, stddev float64, n int) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, n)
	for i := range out {
		out[i] = mean + r.r.NormFloat64()*stddev
	}
	return out
}

// Uniform returns a value in [lo, hi).
func (r *Rand) Uniform(lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// IntRange returns an int in [lo, hi].
func (r *Rand) IntRange(lo, hi int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo + r.r.IntN(hi-lo+1)
}

// Pick returns a random index in [0, n).
func (r *Rand) Pick(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.IntN(n)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
