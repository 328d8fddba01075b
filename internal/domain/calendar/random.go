package calendar

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Generator maps a string key to a stable value in [0, 1).
// Implementations must be pure: the same key always yields the same value.
type Generator interface {
	Float(key string) float64
}

// HashGenerator is a seeded xxhash-based Generator.
type HashGenerator struct {
	Seed uint64
}

func NewHashGenerator(seed uint64) HashGenerator {
	return HashGenerator{Seed: seed}
}

func (g HashGenerator) Float(key string) float64 {
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], g.Seed)

	d := xxhash.New()
	_, _ = d.Write(seed[:])
	_, _ = d.WriteString(key)

	// Top 53 bits give a uniformly spread float64 mantissa.
	return float64(d.Sum64()>>11) / float64(uint64(1)<<53)
}

// intBetween maps a [0,1) value onto the inclusive integer range [lo, hi].
func intBetween(f float64, lo, hi int) int {
	n := hi - lo + 1
	v := lo + int(math.Floor(f*float64(n)))
	if v > hi {
		v = hi
	}
	return v
}
