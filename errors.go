package binstream

import "fmt"

// WrongMagicError is returned when a stream's leading magic bytes do
// not match the expected sequence.
type WrongMagicError struct {
	Got [3]byte
}

func (e *WrongMagicError) Error() string {
	return fmt.Sprintf("binstream: wrong magic bytes %x", e.Got)
}

// WrongVersionError is returned when a stream's version byte is not
// one this build understands.
type WrongVersionError struct {
	Got byte
}

func (e *WrongVersionError) Error() string {
	return fmt.Sprintf("binstream: wrong stream version %d, want %d", e.Got, streamVersion)
}

// StreamCorruptedError wraps any condition where the byte stream does
// not match the shape the reader expects: an impossible length
// prefix, an unknown type tag, a reference to an id never assigned,
// or unexpected EOF.
type StreamCorruptedError struct {
	Reason string
}

func (e *StreamCorruptedError) Error() string {
	return fmt.Sprintf("binstream: stream corrupted: %s", e.Reason)
}

// FieldDriftKind names the kind of schema drift TypeStructureChangedError
// reports.
type FieldDriftKind int

const (
	_ FieldDriftKind = iota
	FieldAdded
	FieldRemoved
	FieldChanged
	BaseTypeChanged
	AssemblyVersionChanged
	StructureHashChanged
)

func (k FieldDriftKind) String() string {
	switch k {
	case FieldAdded:
		return "field added"
	case FieldRemoved:
		return "field removed"
	case FieldChanged:
		return "field changed"
	case BaseTypeChanged:
		return "base type changed"
	case AssemblyVersionChanged:
		return "assembly version changed"
	case StructureHashChanged:
		return "structure hash changed"
	default:
		return "unknown drift"
	}
}

// TypeStructureChangedError is returned by the stamp comparator when it
// finds a schema drift the caller's VersionTolerance flags do not
// permit. It carries the first offending field name and the drift kind.
type TypeStructureChangedError struct {
	TypeName string
	Field    string
	Kind     FieldDriftKind
}

func (e *TypeStructureChangedError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("binstream: type %q structure changed: %s", e.TypeName, e.Kind)
	}
	return fmt.Sprintf("binstream: type %q structure changed: %s %q", e.TypeName, e.Kind, e.Field)
}

// AssemblyResolveError is returned when a stamp names an assembly that
// cannot be located in the running process.
type AssemblyResolveError struct {
	AssemblyName string
}

func (e *AssemblyResolveError) Error() string {
	return fmt.Sprintf("binstream: cannot resolve assembly %q", e.AssemblyName)
}

// IllegalStateAfterUseError is returned when a swap table is mutated
// after the owning serializer has already performed its first
// operation.
type IllegalStateAfterUseError struct {
	Table string
}

func (e *IllegalStateAfterUseError) Error() string {
	return fmt.Sprintf("binstream: %s swap table modified after first use", e.Table)
}

// InvariantViolationError marks an internal self-check failure, such
// as a deep-clone round trip consuming a different number of bytes
// than were produced.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("binstream: invariant violated: %s", e.Reason)
}

// UnsupportedTypeError is returned when a value's runtime type cannot
// be represented on the stream at all (functions, channels, unsafe
// pointers).
type UnsupportedTypeError struct {
	TypeName string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("binstream: type %q cannot be serialized", e.TypeName)
}
