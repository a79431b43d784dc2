package services

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// drawRNG serializes access to the shuffle source
type drawRNG struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSeededRNG(seed uint64) *drawRNG {
	return &drawRNG{rng: rand.New(rand.NewPCG(seed, seed))}
}

func newSecureRNG() *drawRNG {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		// crypto/rand never fails on supported platforms
		binary.LittleEndian.PutUint64(seed[:], rand.Uint64())
	}
	return &drawRNG{rng: rand.New(rand.NewChaCha8(seed))}
}

func (d *drawRNG) pick(ids []string, k int) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return selectWinners(d.rng, ids, k)
}

// selectWinners returns the first k entries of a Fisher-Yates permutation
// of ids. ids is not modified.
func selectWinners(r *rand.Rand, ids []string, k int) []string {
	pool := make([]string, len(ids))
	copy(pool, ids)

	for i := len(pool) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}

	if k > len(pool) {
		k = len(pool)
	}
	return pool[:k]
}
