package jimage

// hashMultiplier matches the FNV-like multiplier the real jimage format
// uses for its perfect-hash redirect table.
const hashMultiplier = 0x01000193

// hashSeeded is the jimage string hash with an explicit seed: seed 0 is the
// primary bucket hash, any other seed is a secondary per-bucket rehash used
// to resolve collisions during index construction.
func hashSeeded(s string, seed int32) int32 {
	h := seed
	for _, r := range s {
		h = (h*hashMultiplier)&0x7fffffff ^ int32(r)
	}
	return h & 0x7fffffff
}

// index is the decoded redirect+offsets tables: a two-level perfect hash
// from resource name to an index into the locations table.
type index struct {
	redirect []int32 // per bucket: 0 = empty, >0 = rehash seed, <0 = direct entry (offset in offsets)
	offsets  []int32 // per bucket: byte offset into the locations table, valid when redirect < 0
}

func decodeIndex(b []byte, tableLength uint32) (index, int, error) {
	n := int(tableLength)
	need := n * 4 * 2
	if len(b) < need {
		return index{}, 0, &ErrTruncated{Where: "index"}
	}
	idx := index{redirect: make([]int32, n), offsets: make([]int32, n)}
	for i := 0; i < n; i++ {
		idx.redirect[i] = int32(be32(b[i*4:]))
	}
	base := n * 4
	for i := 0; i < n; i++ {
		idx.offsets[i] = int32(be32(b[base+i*4:]))
	}
	return idx, need, nil
}

func (idx index) encode() []byte {
	n := len(idx.redirect)
	out := make([]byte, n*4*2)
	for i, v := range idx.redirect {
		putBE32(out[i*4:], uint32(v))
	}
	base := n * 4
	for i, v := range idx.offsets {
		putBE32(out[base+i*4:], uint32(v))
	}
	return out
}

// locate resolves name to an offset into the locations table, following the
// two-level perfect hash exactly as a reader with no access to the
// locations table yet would: first the unseeded bucket, then (on
// collision) the per-bucket seeded rehash.
func (idx index) locate(name string) (offset int32, ok bool) {
	n := int32(len(idx.redirect))
	if n == 0 {
		return 0, false
	}
	bucket := hashSeeded(name, 0) % n
	r := idx.redirect[bucket]
	switch {
	case r == 0:
		return 0, false
	case r < 0:
		return idx.offsets[bucket], true
	default: // r > 0: a seed for a secondary hash
		bucket2 := hashSeeded(name, r) % n
		return idx.offsets[bucket2], true
	}
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putBE32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
