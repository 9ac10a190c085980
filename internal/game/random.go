package game

import (
	"math/rand/v2"
	"sync"
)

// lockedSource serialises a rand.Source so one generator can be shared by
// every session in the process.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

// NewRand returns the process-wide random source. A zero seed picks a random
// one; any other seed makes draw order, side assignment and tips reproducible.
func NewRand(seed uint64) *rand.Rand {
	hi, lo := seed, seed^0x9e3779b97f4a7c15
	if seed == 0 {
		hi, lo = rand.Uint64(), rand.Uint64()
	}
	return rand.New(&lockedSource{src: rand.NewPCG(hi, lo)})
}
