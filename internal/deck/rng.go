package deck

import (
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand/v2"
)

// Source supplies uniform random integers for shuffling. The production
// implementation is backed by crypto/rand; tests inject a seeded source
// for reproducible decks.
type Source interface {
	// Intn returns a uniform integer in [0, n). n must be > 0.
	Intn(n int) int
}

// CryptoSource draws entropy from crypto/rand. A failed read panics:
// the process must never deal a hand without cryptographic entropy.
type CryptoSource struct{}

// Intn returns a uniform integer in [0, n) using rejection sampling so
// the result carries no modulo bias.
func (CryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("deck: Intn with non-positive bound")
	}

	max := uint64(n)
	// Largest multiple of max that fits in a uint64; values at or above
	// it are rejected and redrawn.
	limit := (^uint64(0) / max) * max

	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			panic("deck: crypto entropy unavailable: " + err.Error())
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v < limit {
			return int(v % max)
		}
	}
}

const goldenRatio64 = 0x9e3779b97f4a7c15

// SeededSource is a deterministic source for tests. It derives the two
// 64-bit PCG seeds from a single int64 so all call sites get
// reproducible sequences.
type SeededSource struct {
	rng *mathrand.Rand
}

// NewSeededSource returns a deterministic source for the given seed.
func NewSeededSource(seed int64) *SeededSource {
	u := uint64(seed)
	return &SeededSource{rng: mathrand.New(mathrand.NewPCG(mix(u), mix(u+goldenRatio64)))}
}

func (s *SeededSource) Intn(n int) int {
	return s.rng.IntN(n)
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
