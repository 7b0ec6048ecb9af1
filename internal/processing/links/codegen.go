package links

import (
	"crypto/rand"
	"io"
	mrand "math/rand/v2"
	"sync"
)

const (
	Alphabet          = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultCodeLength = 6

	// Random bytes at or above this value are discarded so every symbol is
	// equally likely (256 is not a multiple of 62).
	rejectionBound = 256 - 256%len(Alphabet)
)

// CryptoGenerator draws codes from crypto/rand.
type CryptoGenerator struct {
	src io.Reader
}

func NewCryptoGenerator() *CryptoGenerator { return &CryptoGenerator{src: rand.Reader} }

func (g *CryptoGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/2)
	for len(out) < length {
		if _, err := io.ReadFull(g.src, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= rejectionBound {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}

// SeededGenerator is deterministic for a given seed. Safe for concurrent use.
type SeededGenerator struct {
	mu  sync.Mutex
	rnd *mrand.Rand
}

func NewSeededGenerator(seed uint64) *SeededGenerator {
	return &SeededGenerator{rnd: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *SeededGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]byte, length)
	for i := range out {
		out[i] = Alphabet[g.rnd.IntN(len(Alphabet))]
	}
	return string(out), nil
}
