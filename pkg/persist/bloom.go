package persist

import "github.com/cespare/xxhash/v2"

// countingFilter is an approximate membership set over currently-live keys.
// It must never false-negate a live key; false positives only cost one
// extra trie lookup. The original C++ store used a single hash lane with
// plain int counters (lib/bloomfilter.h), which the spec's redesign notes
// flag as collision-prone on both contains and remove (a shared slot can
// be double-decremented by two different keys). This implementation uses
// k independent lanes derived by double-hashing a single xxhash.Sum64
// (h1 + i*h2, the standard Kirsch-Mitzenmacher construction) with
// saturating uint8 counters per lane, so no single lane's count can
// silently underflow on a colliding remove.
type countingFilter struct {
	lanes   [][]uint8
	size    uint64
	k       int
}

const filterLanes = 4

func newCountingFilter(size int) *countingFilter {
	if size <= 0 {
		size = 10000
	}
	f := &countingFilter{size: uint64(size), k: filterLanes}
	f.lanes = make([][]uint8, f.k)
	for i := range f.lanes {
		f.lanes[i] = make([]uint8, size)
	}
	return f
}

func (f *countingFilter) positions(key string) []uint64 {
	sum := xxhash.Sum64String(key)
	h1 := sum >> 32
	h2 := sum & 0xFFFFFFFF
	if h2 == 0 {
		h2 = 1
	}
	pos := make([]uint64, f.k)
	for i := 0; i < f.k; i++ {
		pos[i] = (h1 + uint64(i)*h2) % f.size
	}
	return pos
}

func (f *countingFilter) insert(key string) {
	for i, p := range f.positions(key) {
		if f.lanes[i][p] < 255 {
			f.lanes[i][p]++
		}
	}
}

func (f *countingFilter) remove(key string) {
	for i, p := range f.positions(key) {
		if f.lanes[i][p] > 0 {
			f.lanes[i][p]--
		}
	}
}

// contains reports whether key is possibly live. It never returns false
// for a key that has an outstanding insert without a matching remove:
// Store calls remove only for a key whose index entry is live, so every
// decrement of a counter is preceded by an insert of the same key at the
// same position (as long as no counter has hit its 255 ceiling).
func (f *countingFilter) contains(key string) bool {
	for i, p := range f.positions(key) {
		if f.lanes[i][p] == 0 {
			return false
		}
	}
	return true
}
