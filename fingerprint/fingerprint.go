// Package fingerprint computes stable, process-independent hashes for
// split conditions and decision forests. It wraps xxhash rather than
// hand-rolling a combinator: the algorithm has no seed, so the same forest
// hashes identically across runs and across machines, which is what
// DecisionForest.Fingerprint promises its callers.
package fingerprint

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Builder accumulates typed fields into a single deterministic hash. Fields
// must be written in a fixed order by the caller; Builder never reorders.
type Builder struct {
	digest *xxhash.Digest
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{digest: xxhash.New()}
}

// WriteString mixes in a length-prefixed string so that "ab"+"c" and "a"+"bc"
// never collide.
func (b *Builder) WriteString(s string) *Builder {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s)))
	_, _ = b.digest.Write(lenBuf[:])
	_, _ = b.digest.Write([]byte(s))
	return b
}

// WriteBytes mixes in a length-prefixed byte string.
func (b *Builder) WriteBytes(v []byte) *Builder {
	return b.WriteString(string(v))
}

// WriteUint64 mixes in a fixed-width integer.
func (b *Builder) WriteUint64(v uint64) *Builder {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = b.digest.Write(buf[:])
	return b
}

// WriteInt64 mixes in a signed integer via its bit pattern.
func (b *Builder) WriteInt64(v int64) *Builder {
	return b.WriteUint64(uint64(v))
}

// WriteFloat32 mixes in a float via its bit pattern, so -0 and +0 hash
// differently even though they compare equal with ==.
func (b *Builder) WriteFloat32(v float32) *Builder {
	return b.WriteUint64(uint64(math.Float32bits(v)))
}

// WriteBool mixes in a boolean.
func (b *Builder) WriteBool(v bool) *Builder {
	if v {
		return b.WriteUint64(1)
	}
	return b.WriteUint64(0)
}

// Sum64 finalizes and returns the accumulated hash.
func (b *Builder) Sum64() uint64 {
	return b.digest.Sum64()
}

// Combine hashes a sequence of already-computed hashes into one, used to
// fold per-tree fingerprints into a forest-level fingerprint.
func Combine(parts ...uint64) uint64 {
	b := New()
	for _, p := range parts {
		b.WriteUint64(p)
	}
	return b.Sum64()
}
