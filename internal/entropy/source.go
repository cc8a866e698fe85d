package entropy

import (
	"fmt"
	"math/rand/v2"
)

// Source is the random stream every stochastic rule draws from.
type Source interface {
	Float64() float64 // [0, 1)
	IntN(n int) int   // [0, n)
}

// Seeded is a PCG-backed Source whose position in the stream can be saved
// and restored, so a loaded game replays exactly like the original.
type Seeded struct {
	seed uint64
	pcg  *rand.PCG
	rng  *rand.Rand
}

// NewSeeded creates a deterministic source for seed.
func NewSeeded(seed uint64) *Seeded {
	pcg := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Seeded{seed: seed, pcg: pcg, rng: rand.New(pcg)}
}

func (s *Seeded) Float64() float64 { return s.rng.Float64() }

func (s *Seeded) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return s.rng.IntN(n)
}

// Seed returns the seed the source was created with.
func (s *Seeded) Seed() uint64 { return s.seed }

// State captures the current stream position.
func (s *Seeded) State() ([]byte, error) {
	b, err := s.pcg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal rng state: %w", err)
	}
	return b, nil
}

// Restore rewinds or fast-forwards the stream to a captured position.
func (s *Seeded) Restore(state []byte) error {
	if err := s.pcg.UnmarshalBinary(state); err != nil {
		return fmt.Errorf("restore rng state: %w", err)
	}
	return nil
}

// Between returns a uniform value in [lo, hi).
func Between(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Chance reports whether an event with probability p happens.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}
