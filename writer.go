package binstream

import "reflect"

// ObjectWriter drives the graph traversal: for every value reached
// from a root, decide null/identity/surrogate, emit a type stamp the
// first time a type is seen, and dispatch the body by wire kind. One
// ObjectWriter is built per Serialize call, or lives for the whole
// session of an open-stream writer, sharing identity and type tables
// across operations the way type.go's resolver state outlives any one
// Marshal call.
type ObjectWriter struct {
	out      *Writer
	settings Settings
	ids      *identityWriter
	types    *typeWriteTable
	objects  *swapTable // declared type -> surrogate, object side
}

// NewObjectWriter builds a writer over out using settings and its own
// snapshot of the process-wide object swap table, taken now. The
// writer's first lookup freezes that snapshot, not the process-wide
// table.
func NewObjectWriter(out *Writer, settings Settings) *ObjectWriter {
	objects := newSwapTable("object")
	globalObjectSwapTable.mu.Lock()
	for _, typ := range globalObjectSwapTable.order {
		objects.order = append(objects.order, typ)
		objects.byType[typ] = globalObjectSwapTable.byType[typ]
	}
	globalObjectSwapTable.mu.Unlock()
	return &ObjectWriter{
		out:      out,
		settings: settings,
		ids:      newIdentityWriter(settings.ReferencePreservation),
		types:    newTypeWriteTable(),
		objects:  objects,
	}
}

// WriteRoot serializes one root value as one operation: header is the
// caller's responsibility (api.go), this only writes the value.
func (w *ObjectWriter) WriteRoot(v interface{}) error {
	return w.writeValue(reflect.ValueOf(v))
}

// EndOperation resets whatever identity state ReferencePreservation
// says should not survive across operations on an open stream, and
// flushes any buffered bytes to a block boundary.
func (w *ObjectWriter) EndOperation() error {
	w.ids.resetForNextOperation()
	return w.out.Flush()
}

// WriteValue recurses into the ordinary id/type/body machinery for a
// nested value. A Walker's WriteBody calls this for every field it
// owns, exactly as the reflective writeStructBody does internally.
func (w *ObjectWriter) WriteValue(v reflect.Value) error {
	return w.writeValue(v)
}

// writeValue is the single recursive entry point every nested field,
// slice element and map entry goes through: the traversal makes no
// distinction between a root and any value reached from it.
func (w *ObjectWriter) writeValue(v reflect.Value) error {
	if !v.IsValid() {
		w.out.WriteVarUint64(NullObjectID)
		return w.out.Err()
	}
	for v.Kind() == reflect.Interface {
		if v.IsNil() {
			w.out.WriteVarUint64(NullObjectID)
			return w.out.Err()
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.Ptr && v.IsNil() {
		w.out.WriteVarUint64(NullObjectID)
		return w.out.Err()
	}
	switch v.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return &UnsupportedTypeError{TypeName: v.Type().String()}
	}

	if fn, ok := w.objects.Find(v.Type()); ok {
		replacement, err := fn(v.Interface())
		if err != nil {
			return err
		}
		return w.writeValue(reflect.ValueOf(replacement))
	}
	if replacement, handled, err := writeCapabilitySurrogate(w.settings, v); handled {
		if err != nil {
			return err
		}
		return w.writeValue(reflect.ValueOf(replacement))
	}

	id, seen, trackable := w.ids.idFor(v)
	w.out.WriteVarUint64(id)
	if trackable && seen {
		return w.out.Err() // back reference: id alone is the whole record
	}
	return w.writeTypedBody(v)
}

// writeTypedBody stamps v's type (once per writer lifetime) and writes
// its body. v has already been unwrapped from any interface and its
// identity has already been allocated; a pointer is dereferenced here.
func (w *ObjectWriter) writeTypedBody(v reflect.Value) error {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	typ := v.Type()

	id, isNew := w.types.typeID(typ)
	w.out.WriteVarUint64(uint64(id))
	if isNew {
		if err := w.writeTypeStamp(typ); err != nil {
			return err
		}
	}

	hooks, hasHooks := globalHooks.lookup(typ)
	if hasHooks && hooks.PreSerialize != nil {
		hooks.PreSerialize(v.Interface())
	}

	if err := w.dispatchBody(typ, v); err != nil {
		return err
	}

	if hasHooks && hooks.PostSerialize != nil {
		hooks.PostSerialize(v.Interface())
	}
	return w.out.Err()
}

// writeTypeStamp emits the self-describing record a type needs the
// first time it is seen on this writer: its owning assembly (also
// stamped the first time), its full name, its wire kind, and whatever
// shape information that kind requires to be walked generically later
//.
func (w *ObjectWriter) writeTypeStamp(typ reflect.Type) error {
	desc := describeType(typ)

	aID, aIsNew := w.types.assemblyID(desc.Assembly)
	w.out.WriteVarUint64(uint64(aID))
	if aIsNew {
		w.out.writeAssemblyStamp(desc.Assembly)
	}
	w.out.WriteString(desc.FullName)
	w.out.WriteByte_(byte(desc.Wire))

	switch desc.Wire {
	case reflect.Struct:
		return w.writeStructShape(desc)
	case reflect.Slice:
		return w.writeTypeRef(desc.Elem)
	case reflect.Array:
		w.out.WriteVarUint64(uint64(desc.FixedLen))
		return w.writeTypeRef(desc.Elem)
	case reflect.Map:
		if err := w.writeTypeRef(desc.Key); err != nil {
			return err
		}
		return w.writeTypeRef(desc.Elem)
	default:
		// primitives, strings, wireBinaryMarshaled: name + wire kind is
		// the whole shape.
		return w.out.Err()
	}
}

func (w *ObjectWriter) writeStructShape(desc *TypeDescriptor) error {
	if desc.Base != nil {
		if err := w.writeTypeRef(desc.Base); err != nil {
			return err
		}
	} else {
		w.out.WriteVarInt64(-1)
	}
	// Own fields only, excluding transient ones (never written) and
	// excluding Base's fields (Base is a separate stamped type, walked
	// recursively by NonTransientFields on the read side).
	var fields []*FieldDescriptor
	for _, f := range desc.Fields {
		if !f.Transient {
			fields = append(fields, f)
		}
	}
	w.out.WriteVarUint64(uint64(len(fields)))
	for _, f := range fields {
		w.out.WriteString(f.DeclaringType)
		w.out.WriteString(f.Name)
		if err := w.writeTypeRef(f.FieldType); err != nil {
			return err
		}
	}
	return w.out.Err()
}

// writeTypeRef writes a reference to a type descriptor built from a
// live runtime type (a field type, a base type, a collection's element
// or key type), stamping it on first sight just like any value's type.
// desc.Base with no runtime type never occurs here since writeTypeRef
// is only called from the write side, where every descriptor still
// carries its runtimeType.
func (w *ObjectWriter) writeTypeRef(desc *TypeDescriptor) error {
	if desc == nil {
		w.out.WriteVarInt64(-1)
		return w.out.Err()
	}
	id, isNew := w.types.typeID(desc.runtimeType)
	w.out.WriteVarInt64(int64(id))
	if isNew {
		return w.writeTypeStamp(desc.runtimeType)
	}
	return w.out.Err()
}

// dispatchBody prefers a registered Walker over the reflective field
// walk when Settings.SerializationMethod asks for Generated, falling
// back to writeBody when typ has no registered Walker.
func (w *ObjectWriter) dispatchBody(typ reflect.Type, v reflect.Value) error {
	if w.settings.SerializationMethod == Generated {
		if walker, ok := lookupWalker(typ); ok {
			return walker.WriteBody(w, v)
		}
	}
	return w.writeBody(v)
}

// writeBody writes v's payload, having already written its id and type
// stamp. Dispatch mirrors writeTypeStamp's wire-kind switch.
func (w *ObjectWriter) writeBody(v reflect.Value) error {
	switch v.Kind() {
	case reflect.Bool:
		w.out.WriteBool(v.Bool())
	case reflect.Int8:
		w.out.WriteByte_(byte(int8(v.Int())))
	case reflect.Uint8:
		w.out.WriteByte_(byte(v.Uint()))
	case reflect.Int16:
		w.out.WriteInt16(int16(v.Int()))
	case reflect.Uint16:
		w.out.WriteInt16(int16(v.Uint()))
	case reflect.Int32, reflect.Int:
		w.out.WriteVarInt64(v.Int())
	case reflect.Uint32, reflect.Uint:
		w.out.WriteVarUint64(v.Uint())
	case reflect.Int64:
		w.out.WriteVarInt64(v.Int())
	case reflect.Uint64:
		w.out.WriteVarUint64(v.Uint())
	case reflect.Float32:
		w.out.WriteFloat32(float32(v.Float()))
	case reflect.Float64:
		w.out.WriteFloat64(v.Float())
	case reflect.String:
		w.out.WriteString(v.String())
	case reflect.Struct:
		return w.writeStructBody(v)
	case reflect.Slice:
		return w.writeSliceBody(v)
	case reflect.Array:
		return w.writeArrayBody(v)
	case reflect.Map:
		return w.writeMapBody(v)
	default:
		return &UnsupportedTypeError{TypeName: v.Type().String()}
	}
	return w.out.Err()
}

func (w *ObjectWriter) writeStructBody(v reflect.Value) error {
	if isBinaryMarshaled(v.Type()) {
		m := v.Interface().(interface{ MarshalBinary() ([]byte, error) })
		b, err := m.MarshalBinary()
		if err != nil {
			return err
		}
		w.out.WriteBinary(b)
		return w.out.Err()
	}
	desc := describeType(v.Type())
	for _, f := range desc.NonTransientFields() {
		fv := v.FieldByIndex(f.index)
		if err := w.writeValue(fv); err != nil {
			return err
		}
	}
	return w.out.Err()
}

// writeSliceBody and writeArrayBody write a count (redundant for
// arrays, whose length is already on the wire in the type stamp, but
// kept so both shapes share one read routine) followed by each element
// run through the ordinary writeValue recursion: array bodies are
// element-by-element, using the same id+type+body machinery applied
// per element rather than a bespoke fixed-width encoding.
func (w *ObjectWriter) writeSliceBody(v reflect.Value) error {
	if w.settings.TreatCollectionAsUserObject {
		return w.writeCollectionAsFields(v)
	}
	n := v.Len()
	w.out.WriteVarUint64(uint64(n))
	for i := 0; i < n; i++ {
		if err := w.writeValue(v.Index(i)); err != nil {
			return err
		}
	}
	return w.out.Err()
}

func (w *ObjectWriter) writeArrayBody(v reflect.Value) error {
	if w.settings.TreatCollectionAsUserObject {
		return w.writeCollectionAsFields(v)
	}
	n := v.Len()
	w.out.WriteVarUint64(uint64(n))
	for i := 0; i < n; i++ {
		if err := w.writeValue(v.Index(i)); err != nil {
			return err
		}
	}
	return w.out.Err()
}

func (w *ObjectWriter) writeMapBody(v reflect.Value) error {
	if w.settings.TreatCollectionAsUserObject {
		return w.writeCollectionAsFields(v)
	}
	keys := v.MapKeys()
	w.out.WriteVarUint64(uint64(len(keys)))
	for _, k := range keys {
		if err := w.writeValue(k); err != nil {
			return err
		}
		if err := w.writeValue(v.MapIndex(k)); err != nil {
			return err
		}
	}
	return w.out.Err()
}

// writeCollectionAsFields is used when
// Settings.TreatCollectionAsUserObject is set. A map is written as two
// count-prefixed sequences, all keys and then all values, in place of
// interleaved key/value pairs; a slice or array is written as one
// count-prefixed element sequence, the same bytes as without the flag.
// The collection's internal fields are not walked.
func (w *ObjectWriter) writeCollectionAsFields(v reflect.Value) error {
	switch v.Kind() {
	case reflect.Map:
		keys := v.MapKeys()
		values := make([]reflect.Value, len(keys))
		for i, k := range keys {
			values[i] = v.MapIndex(k)
		}
		if err := w.writeValueSequence(keys); err != nil {
			return err
		}
		return w.writeValueSequence(values)
	default:
		n := v.Len()
		elems := make([]reflect.Value, n)
		for i := 0; i < n; i++ {
			elems[i] = v.Index(i)
		}
		return w.writeValueSequence(elems)
	}
}

func (w *ObjectWriter) writeValueSequence(vs []reflect.Value) error {
	w.out.WriteVarUint64(uint64(len(vs)))
	for _, v := range vs {
		if err := w.writeValue(v); err != nil {
			return err
		}
	}
	return w.out.Err()
}

// globalObjectSwapTable is the process-wide declared-type -> surrogate
// registry that every ObjectWriter copies at construction (see
// NewObjectWriter). RegisterSurrogate is its public entry point (api.go).
var globalObjectSwapTable = newSwapTable("object")
