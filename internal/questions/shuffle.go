package questions

import (
	"math/rand"
	"sync"
	"time"
)

// Shuffler is the single permutation source used for choice order and
// queue order. rand.Rand is not goroutine-safe, so access is serialized.
type Shuffler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewShuffler returns a Shuffler seeded from the given source. A nil
// source seeds from the clock.
func NewShuffler(src rand.Source) *Shuffler {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Shuffler{rng: rand.New(src)}
}

// defaultShuffler is used when callers don't inject their own.
var defaultShuffler = NewShuffler(nil)

// Perm returns a uniformly random permutation of [0, n) using Fisher–Yates.
func (s *Shuffler) Perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	s.mu.Lock()
	s.rng.Shuffle(n, func(i, j int) { p[i], p[j] = p[j], p[i] })
	s.mu.Unlock()
	return p
}

// ShuffleSlice returns a shuffled copy of items; the input is left untouched.
func ShuffleSlice[T any](s *Shuffler, items []T) []T {
	if s == nil {
		s = defaultShuffler
	}
	out := make([]T, len(items))
	for i, idx := range s.Perm(len(items)) {
		out[i] = items[idx]
	}
	return out
}

// Intn returns a uniform int in [0, n).
func (s *Shuffler) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}
