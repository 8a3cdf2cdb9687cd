package binstream

import (
	"encoding"
	"reflect"
)

// ObjectReader mirrors ObjectWriter: materializes instances, threads
// identities through a slot table, applies the read plan the stamp
// comparator produced for each type, and hands completed instances
// through any registered surrogate-for-object conversion and post-
// deserialization hook.
type ObjectReader struct {
	in       *Reader
	settings Settings
	ids      *identityReader
	types    *typeReadTable
}

func NewObjectReader(in *Reader, settings Settings) *ObjectReader {
	return &ObjectReader{
		in:       in,
		settings: settings,
		ids:      newIdentityReader(settings.ReferencePreservation),
		types:    newTypeReadTable(),
	}
}

// ReadRoot decodes one operation's worth of bytes into target, which
// must be a non-nil pointer to the expected root type.
func (r *ObjectReader) ReadRoot(target interface{}) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return &InvariantViolationError{Reason: "ReadRoot target must be a non-nil pointer"}
	}
	v, err := r.readValue(rv.Elem().Type())
	if err != nil {
		return err
	}
	if v.IsValid() && v.Type().AssignableTo(rv.Elem().Type()) {
		rv.Elem().Set(v)
	}
	return r.in.Err()
}

// EndOperation resets whatever identity state ReferencePreservation
// says should not survive across operations, and realigns the source
// to the next block boundary.
func (r *ObjectReader) EndOperation() error {
	r.ids.resetForNextOperation()
	r.in.Align()
	return r.in.Err()
}

// ReadValue recurses into the ordinary id/type/body machinery for a
// nested value of the given expected type. A Walker's ReadBody calls
// this for every field it owns, exactly as the reflective
// populateStruct does internally.
func (r *ObjectReader) ReadValue(expected reflect.Type) (reflect.Value, error) {
	return r.readValue(expected)
}

// skippedPlaceholder fills an identity slot reached only through a
// field the current type no longer has. If the same object is shared
// through a surviving field elsewhere in the graph, the later sighting
// resolves to this placeholder rather than the real instance: a
// limitation rather than a crash, since cross-
// referencing into a field-removal branch has no principled
// reconstruction without the field that named its type.
var skippedPlaceholder = reflect.ValueOf(struct{ binstreamSkipped bool }{true})

// readValue is the mirror of writeValue: every nested field, slice
// element and map entry is read through this one recursive entry
// point. expected is nil exactly when the caller only wants the value
// consumed and discarded (a PlanSkip descent).
func (r *ObjectReader) readValue(expected reflect.Type) (reflect.Value, error) {
	if expected != nil {
		if wireType, convert, ok := resolveReadSurrogate(r.settings, expected); ok {
			return r.readSurrogateValue(wireType, convert, expected)
		}
	}
	id := r.in.ReadVarUint64()
	if err := r.in.Err(); err != nil {
		return reflect.Value{}, err
	}
	if id == NullObjectID {
		if expected != nil {
			return reflect.Zero(expected), nil
		}
		return reflect.Value{}, nil
	}
	if v, ok := r.ids.get(id); ok {
		return v, nil
	}
	reserved := r.ids.reserve()
	if reserved != id {
		return reflect.Value{}, &StreamCorruptedError{Reason: "object id out of sequence"}
	}
	return r.readTypedBody(id, expected)
}

// readSurrogateValue decodes the wire's surrogate-shaped value (the
// same id/type/body tuple writeValue's matching surrogate branch wrote
// in place of the original object, see writer.go), then converts it
// back to expected via convert. This mirrors the write side exactly:
// the object itself never occupies an id of its own, only the
// surrogate instance does.
func (r *ObjectReader) readSurrogateValue(wireType reflect.Type, convert func(interface{}) (interface{}, error), expected reflect.Type) (reflect.Value, error) {
	v, err := r.readValue(wireType)
	if err != nil {
		return reflect.Value{}, err
	}
	if !v.IsValid() {
		return reflect.Zero(expected), nil
	}
	obj, err := convert(v.Interface())
	if err != nil {
		return reflect.Value{}, err
	}
	rv := reflect.ValueOf(obj)
	if rv.IsValid() && rv.Type().AssignableTo(expected) {
		return rv, nil
	}
	return reflect.Zero(expected), nil
}

// readTypedBody reads the type reference (stamping it if this is the
// first sighting on this reader) and the value's body, returning a
// value shaped like expected (or an invalid Value in skip mode).
func (r *ObjectReader) readTypedBody(id uint64, expected reflect.Type) (reflect.Value, error) {
	typeID := r.in.ReadVarUint64()
	if err := r.in.Err(); err != nil {
		return reflect.Value{}, err
	}

	isPtr := expected != nil && expected.Kind() == reflect.Ptr
	effectiveExpected := expected
	if isPtr {
		effectiveExpected = expected.Elem()
	}

	rt, err := r.resolveTypeID(int32(typeID), effectiveExpected)
	if err != nil {
		return reflect.Value{}, err
	}

	if effectiveExpected == nil {
		r.ids.fill(id, skippedPlaceholder)
		return reflect.Value{}, r.skipBody(rt)
	}

	if isPtr {
		ptr := reflect.New(effectiveExpected)
		r.ids.fill(id, ptr)
		if err := r.populate(rt, ptr.Elem()); err != nil {
			return reflect.Value{}, err
		}
		r.finalize(rt, effectiveExpected, ptr.Elem())
		return ptr, nil
	}

	switch effectiveExpected.Kind() {
	case reflect.Map:
		m := reflect.MakeMap(effectiveExpected)
		r.ids.fill(id, m)
		if err := r.populateMap(rt, effectiveExpected, m); err != nil {
			return reflect.Value{}, err
		}
		return m, nil
	case reflect.Slice:
		n := r.in.ReadVarUint64()
		s := reflect.MakeSlice(effectiveExpected, int(n), int(n))
		r.ids.fill(id, s)
		if err := r.populateSequence(effectiveExpected.Elem(), n, func(i int, v reflect.Value) {
			s.Index(i).Set(v)
		}); err != nil {
			return reflect.Value{}, err
		}
		return s, nil
	default:
		holder := reflect.New(effectiveExpected).Elem()
		r.ids.fill(id, holder) // untracked kind; bookkeeping only
		if err := r.populate(rt, holder); err != nil {
			return reflect.Value{}, err
		}
		r.finalize(rt, effectiveExpected, holder)
		return holder, nil
	}
}

// populate fills target's body once identity (if any) is already
// registered. target is addressable.
func (r *ObjectReader) populate(rt *readType, target reflect.Value) error {
	if r.settings.DeserializationMethod == Generated {
		if walker, ok := lookupWalker(target.Type()); ok {
			return walker.ReadBody(r, target)
		}
	}
	switch rt.Descriptor.Wire {
	case reflect.Bool:
		target.SetBool(r.in.ReadBool())
	case reflect.Int8:
		target.SetInt(int64(int8(r.in.ReadByte_())))
	case reflect.Uint8:
		target.SetUint(uint64(r.in.ReadByte_()))
	case reflect.Int16:
		target.SetInt(int64(r.in.ReadInt16()))
	case reflect.Uint16:
		target.SetUint(uint64(uint16(r.in.ReadInt16())))
	case reflect.Int32, reflect.Int, reflect.Int64:
		target.SetInt(r.in.ReadVarInt64())
	case reflect.Uint32, reflect.Uint, reflect.Uint64:
		target.SetUint(r.in.ReadVarUint64())
	case reflect.Float32:
		target.SetFloat(float64(r.in.ReadFloat32()))
	case reflect.Float64:
		target.SetFloat(r.in.ReadFloat64())
	case reflect.String:
		target.SetString(r.in.ReadString())
	case wireBinaryMarshaled:
		b := r.in.ReadBinary()
		um, ok := target.Addr().Interface().(encoding.BinaryUnmarshaler)
		if !ok {
			return &UnsupportedTypeError{TypeName: target.Type().String()}
		}
		return um.UnmarshalBinary(b)
	case reflect.Struct:
		return r.populateStruct(rt, target)
	case reflect.Array:
		n := r.in.ReadVarUint64()
		elemType := target.Type().Elem()
		return r.populateSequence(elemType, n, func(i int, v reflect.Value) {
			if i < target.Len() {
				target.Index(i).Set(v)
			}
		})
	default:
		return &UnsupportedTypeError{TypeName: target.Type().String()}
	}
	return r.in.Err()
}

func (r *ObjectReader) populateStruct(rt *readType, target reflect.Value) error {
	for _, entry := range rt.Plan {
		switch entry.Tag {
		case PlanRead:
			fv := target.FieldByIndex(entry.Field.index)
			v, err := r.readValue(entry.Field.DeclaredType)
			if err != nil {
				return err
			}
			if v.IsValid() && v.Type().AssignableTo(fv.Type()) {
				fv.Set(v)
			}
		case PlanSkip:
			if _, err := r.readValue(nil); err != nil {
				return err
			}
		case PlanConstructorInit:
			// No bytes on the wire; the field is left at its
			// zero value. Go has no constructor-invocation
			// convention to re-run here.
		}
	}
	return r.in.Err()
}

// populateSequence reads n values of elemType and calls assign(i, v)
// for each one that decoded to an assignable value, used by both
// slices and arrays.
func (r *ObjectReader) populateSequence(elemType reflect.Type, n uint64, assign func(int, reflect.Value)) error {
	for i := 0; i < int(n); i++ {
		v, err := r.readValue(elemType)
		if err != nil {
			return err
		}
		if v.IsValid() && v.Type().AssignableTo(elemType) {
			assign(i, v)
		}
	}
	return r.in.Err()
}

func (r *ObjectReader) populateMap(rt *readType, mapType reflect.Type, m reflect.Value) error {
	keyType := mapType.Key()
	valType := mapType.Elem()
	if r.settings.TreatCollectionAsUserObject {
		keys, err := r.readSequence(keyType)
		if err != nil {
			return err
		}
		values, err := r.readSequence(valType)
		if err != nil {
			return err
		}
		for i := range keys {
			if i < len(values) && keys[i].IsValid() && values[i].IsValid() {
				m.SetMapIndex(keys[i], values[i])
			}
		}
		return r.in.Err()
	}
	n := r.in.ReadVarUint64()
	for i := 0; i < int(n); i++ {
		k, err := r.readValue(keyType)
		if err != nil {
			return err
		}
		v, err := r.readValue(valType)
		if err != nil {
			return err
		}
		if k.IsValid() && v.IsValid() {
			m.SetMapIndex(k, v)
		}
	}
	return r.in.Err()
}

func (r *ObjectReader) readSequence(elemType reflect.Type) ([]reflect.Value, error) {
	n := r.in.ReadVarUint64()
	out := make([]reflect.Value, 0, n)
	for i := 0; i < int(n); i++ {
		v, err := r.readValue(elemType)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, r.in.Err()
}

// finalize runs the post-deserialization hook for a freshly populated
// struct, replacing target's contents in place when the hook supplies
// a different value of the same assignable type (object<->surrogate
// substitution happens earlier, in readValue, before target was ever
// allocated — see resolveReadSurrogate).
func (r *ObjectReader) finalize(rt *readType, typ reflect.Type, target reflect.Value) {
	if typ.Kind() != reflect.Struct {
		return
	}
	hooks, hasHooks := globalHooks.lookup(typ)
	if !hasHooks || hooks.PostDeserialize == nil {
		return
	}
	result := hooks.PostDeserialize(target.Interface())
	rv := reflect.ValueOf(result)
	if rv.IsValid() && rv.Type().AssignableTo(typ) {
		target.Set(rv)
	}
}

// skipBody consumes rt's body using only its stream-resolved
// Descriptor, with no live Go type in hand: primitives by fixed width,
// strings/binary blobs by length prefix, collections by recursing
// readValue(nil) over their element shape, structs by recursing over
// the descriptor's base-first (stream-order) field list.
func (r *ObjectReader) skipBody(rt *readType) error {
	switch rt.Descriptor.Wire {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		r.in.ReadByte_()
	case reflect.Int16, reflect.Uint16:
		r.in.ReadInt16()
	case reflect.Int32, reflect.Int, reflect.Uint32, reflect.Uint, reflect.Int64, reflect.Uint64:
		r.in.ReadVarUint64()
	case reflect.Float32:
		r.in.ReadFloat32()
	case reflect.Float64:
		r.in.ReadFloat64()
	case reflect.String:
		r.in.ReadString()
	case wireBinaryMarshaled:
		r.in.ReadBinary()
	case reflect.Struct:
		for range rt.Descriptor.NonTransientFields() {
			if _, err := r.readValue(nil); err != nil {
				return err
			}
		}
	case reflect.Slice:
		n := r.in.ReadVarUint64()
		for i := 0; i < int(n); i++ {
			if _, err := r.readValue(nil); err != nil {
				return err
			}
		}
	case reflect.Array:
		n := r.in.ReadVarUint64()
		for i := 0; i < int(n); i++ {
			if _, err := r.readValue(nil); err != nil {
				return err
			}
		}
	case reflect.Map:
		if r.settings.TreatCollectionAsUserObject {
			// keys sequence, then values sequence (writeCollectionAsFields)
			for seq := 0; seq < 2; seq++ {
				n := r.in.ReadVarUint64()
				for i := 0; i < int(n); i++ {
					if _, err := r.readValue(nil); err != nil {
						return err
					}
				}
			}
			break
		}
		n := r.in.ReadVarUint64()
		for i := 0; i < int(n); i++ {
			if _, err := r.readValue(nil); err != nil {
				return err
			}
			if _, err := r.readValue(nil); err != nil {
				return err
			}
		}
	default:
		return &UnsupportedTypeError{TypeName: rt.Descriptor.FullName}
	}
	return r.in.Err()
}

// resolveTypeID returns the readType for id, reading its stamp off the
// wire the first time id is seen (the same first-appearance dense-id
// trick as object identities: id equal to the table's current size
// means "never stamped before"). If expected is non-nil and the type
// has not yet been resolved against a runtime type, it is resolved now
// via the stamp comparator.
func (r *ObjectReader) resolveTypeID(id int32, expected reflect.Type) (*readType, error) {
	if existing, ok := r.types.typeByID(id); ok {
		if expected != nil && existing.Runtime == nil {
			if err := r.resolveAgainstExpected(existing, expected); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}
	if id != r.types.nextTypeID() {
		return nil, &StreamCorruptedError{Reason: "type id out of sequence"}
	}
	rt := &readType{}
	r.types.addType(rt) // reserved before population: supports self-referential types
	if err := r.readTypeStamp(rt); err != nil {
		return nil, err
	}
	if expected != nil {
		if err := r.resolveAgainstExpected(rt, expected); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

func (r *ObjectReader) resolveAgainstExpected(rt *readType, expected reflect.Type) error {
	if rt.Runtime != nil {
		return nil
	}
	cur := describeType(expected)
	plan, err := CompareTypes(rt.Descriptor, cur, r.settings.VersionTolerance)
	if err != nil {
		return err
	}
	rt.Runtime = expected
	rt.Plan = plan
	return nil
}

// readTypeStamp reads one type's self-description: its assembly
// (stamped the first time, same dense-id trick), full name, wire kind,
// and whatever shape the wire kind requires.
func (r *ObjectReader) readTypeStamp(rt *readType) error {
	assemblyID := r.in.ReadVarUint64()
	a, err := r.resolveAssemblyID(int32(assemblyID))
	if err != nil {
		return err
	}
	fullName := r.in.ReadString()
	wire := reflect.Kind(r.in.ReadByte_())
	if err := r.in.Err(); err != nil {
		return err
	}
	desc := &TypeDescriptor{FullName: fullName, Assembly: a, Wire: wire, fromStream: true}
	// Set before the shape is read, so a field or element type that
	// refers back to this type resolves to this same descriptor.
	rt.Descriptor = desc

	switch wire {
	case reflect.Struct:
		baseID := r.in.ReadVarInt64()
		if baseID >= 0 {
			baseRT, err := r.resolveTypeID(int32(baseID), nil)
			if err != nil {
				return err
			}
			desc.Base = baseRT.Descriptor
		}
		n := r.in.ReadVarUint64()
		for i := 0; i < int(n); i++ {
			declType := r.in.ReadString()
			fname := r.in.ReadString()
			ftypeID := r.in.ReadVarInt64()
			var ftype *TypeDescriptor
			if ftypeID >= 0 {
				ft, err := r.resolveTypeID(int32(ftypeID), nil)
				if err != nil {
					return err
				}
				ftype = ft.Descriptor
			}
			desc.Fields = append(desc.Fields, &FieldDescriptor{DeclaringType: declType, Name: fname, FieldType: ftype})
		}
	case reflect.Slice:
		elemID := r.in.ReadVarInt64()
		elemRT, err := r.resolveTypeID(int32(elemID), nil)
		if err != nil {
			return err
		}
		desc.Elem = elemRT.Descriptor
	case reflect.Array:
		desc.FixedLen = int(r.in.ReadVarUint64())
		elemID := r.in.ReadVarInt64()
		elemRT, err := r.resolveTypeID(int32(elemID), nil)
		if err != nil {
			return err
		}
		desc.Elem = elemRT.Descriptor
	case reflect.Map:
		keyID := r.in.ReadVarInt64()
		keyRT, err := r.resolveTypeID(int32(keyID), nil)
		if err != nil {
			return err
		}
		desc.Key = keyRT.Descriptor
		valID := r.in.ReadVarInt64()
		valRT, err := r.resolveTypeID(int32(valID), nil)
		if err != nil {
			return err
		}
		desc.Elem = valRT.Descriptor
	}

	return r.in.Err()
}

func (r *ObjectReader) resolveAssemblyID(id int32) (*AssemblyDescriptor, error) {
	if a, ok := r.types.assemblyByID(id); ok {
		return a, nil
	}
	if id != r.types.nextAssemblyID() {
		return nil, &StreamCorruptedError{Reason: "assembly id out of sequence"}
	}
	a, err := r.in.readAssemblyStamp()
	if err != nil {
		return nil, err
	}
	r.types.addAssembly(a)
	return a, nil
}
