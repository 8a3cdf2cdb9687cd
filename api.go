package binstream

import (
	"bytes"
	"io"
	"reflect"
)

// Serialize writes root to sink as a single operation: header, then the
// value itself. This and the rest of this file are a thin external
// entry layer deliberately kept outside the core, small enough only to
// make the core exercisable end to end.
func Serialize(sink io.Writer, root interface{}, settings Settings) error {
	w := NewWriter(sink, bufferBlockSize(settings))
	writeHeader(w, settings.ReferencePreservation != DoNotPreserve)
	ow := NewObjectWriter(w, settings)
	if err := ow.WriteRoot(root); err != nil {
		return err
	}
	if err := ow.EndOperation(); err != nil {
		return err
	}
	return w.Err()
}

// Deserialize reads one operation's worth of bytes from source into
// target, which must be a non-nil pointer to the expected root type.
func Deserialize(source io.Reader, target interface{}, settings Settings) error {
	r := NewReader(source, bufferBlockSize(settings))
	preserveReferences, err := readHeader(r)
	if err != nil {
		return err
	}
	if preserveReferences && settings.ReferencePreservation == DoNotPreserve {
		settings.ReferencePreservation = UseWeakReference
	}
	or := NewObjectReader(r, settings)
	if err := or.ReadRoot(target); err != nil {
		return err
	}
	return or.EndOperation()
}

// StreamWriter is an open-stream session: one writer, many operations,
// sharing identity and type tables across all of them.
type StreamWriter struct {
	out *Writer
	ow  *ObjectWriter
}

// OpenWriter attaches a long-lived writer to sink, writing the stream
// header once up front.
func OpenWriter(sink io.Writer, settings Settings) *StreamWriter {
	w := NewWriter(sink, bufferBlockSize(settings))
	writeHeader(w, settings.ReferencePreservation != DoNotPreserve)
	return &StreamWriter{out: w, ow: NewObjectWriter(w, settings)}
}

// Write performs one operation on the open stream: write root, then
// flush/reset per the session's ReferencePreservation mode.
func (s *StreamWriter) Write(root interface{}) error {
	if err := s.ow.WriteRoot(root); err != nil {
		return err
	}
	if err := s.ow.EndOperation(); err != nil {
		return err
	}
	return s.out.Err()
}

// Close flushes any buffered bytes. The underlying sink is the
// caller's to close.
func (s *StreamWriter) Close() error { return s.out.Flush() }

// StreamReader mirrors StreamWriter on the read side.
type StreamReader struct {
	in *Reader
	or *ObjectReader
}

// OpenReader attaches a long-lived reader to source, validating the
// stream header once up front.
func OpenReader(source io.Reader, settings Settings) (*StreamReader, error) {
	r := NewReader(source, bufferBlockSize(settings))
	preserveReferences, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if preserveReferences && settings.ReferencePreservation == DoNotPreserve {
		settings.ReferencePreservation = UseWeakReference
	}
	return &StreamReader{in: r, or: NewObjectReader(r, settings)}, nil
}

// Read performs one operation on the open stream, decoding into
// target (a non-nil pointer to the expected root type).
func (s *StreamReader) Read(target interface{}) error {
	if err := s.or.ReadRoot(target); err != nil {
		return err
	}
	return s.or.EndOperation()
}

func bufferBlockSize(settings Settings) int {
	if !settings.UseBuffering {
		return 0
	}
	if settings.BlockSize <= 0 {
		return DefaultSettings().BlockSize
	}
	return settings.BlockSize
}

// Clone deep-copies v by serializing it with DefaultSettings (Preserve,
// so cycles round-trip) and deserializing the result into a new value
// of the same type, failing with InvariantViolationError if the read
// does not consume every byte the write produced — a round-trip clone
// helper built on top of the core, not part of it.
func Clone(v interface{}) (interface{}, error) {
	settings := DefaultSettings()
	var buf bytes.Buffer
	if err := Serialize(&buf, v, settings); err != nil {
		return nil, err
	}
	out := reflect.New(reflect.TypeOf(v))
	if err := Deserialize(&buf, out.Interface(), settings); err != nil {
		return nil, err
	}
	if buf.Len() != 0 {
		return nil, &InvariantViolationError{Reason: "clone round trip left bytes unconsumed"}
	}
	return out.Elem().Interface(), nil
}

// RegisterSurrogate wires a declared object type to a replacement
// surrogate type symmetrically: an instance of declaredType is
// replaced by toSurrogate at write time, and the resulting wire value
// is converted back by fromSurrogate whenever declaredType is the
// expected type at read time.
func RegisterSurrogate(
	declaredType reflect.Type, toSurrogate func(interface{}) (interface{}, error),
	surrogateType reflect.Type, fromSurrogate func(interface{}) (interface{}, error),
) error {
	if err := globalObjectSwapTable.AddOrReplace(declaredType, toSurrogate); err != nil {
		return err
	}
	globalSurrogatePairs.register(declaredType, surrogateType, fromSurrogate)
	return nil
}
