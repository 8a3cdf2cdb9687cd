package binstream

import (
	"fmt"

	"github.com/spaolacci/murmur3"
)

// GUID is a 128-bit opaque identifier, used for an assembly's module
// unique id and for a type descriptor's structural fingerprint. Go has
// no runtime module-GUID equivalent, so GUIDs here are derived
// deterministically from a seed via a single murmur3 128-bit digest,
// split across both halves: an assembly's module id from its package
// path, a type's fingerprint from its structural shape (typedesc.go).
type GUID [16]byte

// deriveGUID computes a stable 128-bit digest of seed.
// structuralFingerprint passes a type's shape (its AQN, then each
// non-transient field's declaring type, name and field type AQN,
// base-first); assemblyFor passes the package path. Two distinct field
// layouts producing the same GUID would defeat the comparator's
// fast-path equality check; murmur3's native
// 128-bit digest keeps collisions astronomically unlikely for the
// layouts a Go program can actually declare.
func deriveGUID(seed []byte) GUID {
	var g GUID
	hi, lo := murmur3.Sum128(seed)
	for i := 0; i < 8; i++ {
		g[i] = byte(hi >> (8 * i))
		g[8+i] = byte(lo >> (8 * i))
	}
	return g
}

func (g GUID) String() string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", g[0:4], g[4:6], g[6:8], g[8:10], g[10:16])
}

func (w *Writer) WriteGUID(g GUID) { w.WriteRaw(g[:]) }

func (r *Reader) ReadGUID() GUID {
	var g GUID
	copy(g[:], r.ReadRaw(16))
	return g
}
