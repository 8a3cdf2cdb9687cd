package binstream

// ReferencePreservation controls how the identity table behaves across
// a traversal and, for open-stream sessions, across operations.
type ReferencePreservation int

const (
	// DoNotPreserve disables identity tracking entirely: every value
	// is written inline and aliasing/cycles are not reconstructed.
	DoNotPreserve ReferencePreservation = iota
	// UseWeakReference tracks identity within a traversal but allows
	// entries to be dropped between operations on an open stream; a
	// dropped identity is simply re-stamped on next sight.
	UseWeakReference
	// Preserve forces strong references: identities survive for the
	// lifetime of the owning writer/reader across every operation on
	// an open stream.
	Preserve
)

// SerializationMethod chooses between an interpreted reflect-based walk
// and a monomorphized walker selected once per type at registration.
type SerializationMethod int

const (
	Reflection SerializationMethod = iota
	Generated
)

// VersionTolerance is a bitset of schema-drift permissions consulted by
// the stamp comparator (see stamp.go).
type VersionTolerance uint8

const (
	AllowGuidChange VersionTolerance = 1 << iota
	AllowAssemblyVersionChange
	AllowFieldAddition
	AllowFieldRemoval
	AllowInheritanceChainChange
)

func (v VersionTolerance) has(flag VersionTolerance) bool {
	return v&flag != 0
}

// Settings is the configuration surface the external entry layer
// consumes to build a writer or reader. The core never reads process
// state or environment variables; every knob arrives through Settings.
type Settings struct {
	ReferencePreservation ReferencePreservation
	SerializationMethod   SerializationMethod
	DeserializationMethod SerializationMethod

	// TreatCollectionAsUserObject writes a map as a count-prefixed key
	// sequence followed by a count-prefixed value sequence instead of
	// interleaved key/value pairs. Slices and arrays are written as one
	// count-prefixed element sequence, the same bytes as without the
	// flag; no collection is walked field by field.
	TreatCollectionAsUserObject bool

	// UseBuffering enables fixed-block buffering with explicit
	// padding to a block boundary between open-stream operations.
	UseBuffering bool
	BlockSize    int

	VersionTolerance VersionTolerance

	SupportForISerializable    bool
	SupportForIXmlSerializable bool
}

// DefaultSettings returns the settings the thin entry layer uses when
// the caller supplies none: strong reference preservation, reflection
// based walking both ways, no buffering, no version tolerance.
func DefaultSettings() Settings {
	return Settings{
		ReferencePreservation: Preserve,
		SerializationMethod:   Reflection,
		DeserializationMethod: Reflection,
		BlockSize:             4096,
	}
}
