package dice

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
)

type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand for unseeded play.
func NewCryptoSource() Source {
	return cryptoSource{}
}

// Intn panics if n <= 0 or crypto/rand fails.
func (cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// Seeded is a deterministic Source. Two Seeded sources built from the same
// seed produce the same sequence, which is what battle replay relies on.
type Seeded struct {
	seed  uint64
	rng   *mrand.Rand
	draws int
}

// NewSeeded returns a deterministic PCG source.
//
// Postcondition: Seed() == seed and Draws() == 0.
func NewSeeded(seed uint64) *Seeded {
	return &Seeded{seed: seed, rng: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Intn panics if n <= 0.
func (s *Seeded) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	s.draws++
	return s.rng.IntN(n)
}

// Seed returns the seed the source was built from.
func (s *Seeded) Seed() uint64 { return s.seed }

// Draws returns how many values have been drawn.
func (s *Seeded) Draws() int { return s.draws }

// Fixed always returns min(Val, n-1). Used to force outcomes in tests and
// scripted demonstrations.
type Fixed struct{ Val int }

// Intn returns the clamped fixed value.
func (f Fixed) Intn(n int) int {
	if f.Val >= n {
		return n - 1
	}
	if f.Val < 0 {
		return 0
	}
	return f.Val
}

// Sequence replays Vals in order, then repeats the last value.
type Sequence struct {
	Vals []int
	pos  int
}

// Intn returns the next queued value clamped to [0, n).
func (s *Sequence) Intn(n int) int {
	if len(s.Vals) == 0 {
		return 0
	}
	v := s.Vals[len(s.Vals)-1]
	if s.pos < len(s.Vals) {
		v = s.Vals[s.pos]
		s.pos++
	}
	return Fixed{Val: v}.Intn(n)
}
