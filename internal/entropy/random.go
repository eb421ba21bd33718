// Package entropy provides the seeded random stream shared by every stochastic
// decision in a simulation run. Falls back to crypto/rand only for picking a
// seed when none was configured.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
)

// pcgStream selects the PCG increment. Fixed so a seed alone determines the stream.
const pcgStream = 0x9e3779b97f4a7c15

// Source is one seeded PCG stream. Graph generation, agent spawning,
// scheduling and interactions all draw from the same Source, in that order.
type Source struct {
	seed int64
	pcg  *mrand.PCG
	rng  *mrand.Rand
}

// New creates a Source seeded with seed.
func New(seed int64) *Source {
	pcg := mrand.NewPCG(uint64(seed), pcgStream)
	return &Source{
		seed: seed,
		pcg:  pcg,
		rng:  mrand.New(pcg),
	}
}

// Seed returns the seed the Source was created with.
func (s *Source) Seed() int64 {
	return s.seed
}

// Float64 returns a uniform float64 in [0, 1).
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// IntN returns a uniform int in [0, n). Panics if n <= 0.
func (s *Source) IntN(n int) int {
	return s.rng.IntN(n)
}

// Perm returns a uniform permutation of [0, n).
func (s *Source) Perm(n int) []int {
	return s.rng.Perm(n)
}

// Stream exposes the underlying generator for libraries that build their own
// *rand.Rand over a rand.Source (gonum's graph generators). Draws made through
// the returned value advance the same state as draws made through s.
func (s *Source) Stream() mrand.Source {
	return s.pcg
}

// CryptoSeed returns a seed read from crypto/rand. Used when a run is started
// without an explicit seed; the chosen value is logged and stored so the run
// can still be reproduced.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		return 1
	}
	// Keep it positive so it reads naturally in logs and flags.
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}
