// Package rng provides the seeded linear-congruential generator shared by the
// mutation and growth engines.
package rng

import "time"

const (
	multiplier = 1664525
	increment  = 1013904223
	modulus    = 1 << 32
)

// Source is the sampling surface both simulation cores consume.
type Source interface {
	Float64() float64
	Intn(n int) int
}

type LCG struct {
	seed  int64
	state uint32
}

// New returns a generator seeded with seed. A seed of 0 picks one from the
// wall clock; Seed reports the value actually used.
func New(seed int64) *LCG {
	if seed == 0 {
		seed = time.Now().UnixNano()
		if seed == 0 {
			seed = 1
		}
	}
	g := &LCG{}
	g.Reseed(seed)
	return g
}

func (g *LCG) Seed() int64 {
	return g.seed
}

func (g *LCG) Reseed(seed int64) {
	g.seed = seed
	g.state = uint32(uint64(seed) ^ uint64(seed)>>32)
}

func (g *LCG) next() uint32 {
	g.state = g.state*multiplier + increment
	return g.state
}

// Float64 returns a sample in [0, 1).
func (g *LCG) Float64() float64 {
	return float64(g.next()) / modulus
}

// Intn returns a sample in [0, n). It panics if n <= 0.
func (g *LCG) Intn(n int) int {
	if n <= 0 {
		panic("rng: invalid argument to Intn")
	}
	return int(g.Float64() * float64(n))
}

// GenerationSeed derives the per-generation seed used when a run reseeds at
// every generation instead of drawing from one stream.
func GenerationSeed(runSeed int64, generation int) int64 {
	mixed := uint64(runSeed) + uint64(generation)*0x9E3779B97F4A7C15
	mixed ^= mixed >> 31
	mixed *= 0xBF58476D1CE4E5B9
	mixed ^= mixed >> 29
	seed := int64(mixed)
	if seed == 0 {
		seed = 1
	}
	return seed
}
