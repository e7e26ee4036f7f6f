package pooling

import (
	"hash/fnv"
	"math/rand"
)

// sampleRand returns the generator that places the reads of one sample.
// Its seed is the run seed XOR fnv1a64(sample name), so a sample's draws do
// not depend on which samples ran before it or alongside it.
func sampleRand(seed int64, s Sample) *rand.Rand {
	return rand.New(rand.NewSource(seed ^ fnv1a64(s.Name)))
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
