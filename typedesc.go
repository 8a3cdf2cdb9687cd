package binstream

import (
	"encoding"
	"reflect"
	"strings"
	"sync"
)

// TypeRef models a type as a tree of concrete names and generic
// instantiations, so equality and
// hashing can use the canonical string form and resolution can walk
// bottom-up. Grounded on type.go's encodeType/decodeType recursive
// descent over *T/[]T/map[K]V, generalized to named generic arguments.
type TypeRef interface {
	aqn() string
}

// ConcreteRef names a non-generic type by its owning assembly and full
// name.
type ConcreteRef struct {
	Assembly *AssemblyDescriptor
	FullName string
}

func (c *ConcreteRef) aqn() string {
	return c.FullName + ", " + c.Assembly.AssemblyQualifiedName()
}

// InstantiatedRef names a closed generic instantiation: a base type
// plus its ordered generic arguments, each independently resolvable.
type InstantiatedRef struct {
	Base TypeRef
	Args []TypeRef
}

func (g *InstantiatedRef) aqn() string {
	parts := make([]string, len(g.Args))
	for i, a := range g.Args {
		parts[i] = a.aqn()
	}
	return g.Base.aqn() + "[" + strings.Join(parts, ",") + "]"
}

// FieldDescriptor describes one field of a user type: its declaring
// type's name (so base-first shadowing resolves unambiguously), its
// own name, its declared field type, and two behavioral bits:
// Transient (not written to the stream) and
// ConstructorRecreated (transient, and listed in the read plan with a
// ConstructorInit entry; the reader consumes no bytes for it and
// leaves it at its zero value).
type FieldDescriptor struct {
	DeclaringType        string
	Name                 string
	FieldType            *TypeDescriptor
	Transient            bool
	ConstructorRecreated bool

	// DeclaredType is the field's exact Go type as declared (pointer-
	// ness included), used to drive reading; FieldType above describes
	// the pointee's shape and is what the comparator compares, since a
	// field's pointer-ness is not itself part of its structural
	// identity (only the pointee's fields are). Unset for stream-
	// resolved descriptors, which have no live Go type at all.
	DeclaredType reflect.Type

	// index is the reflect.FieldByIndex path, relative to the type that
	// directly owns this FieldDescriptor (i.e. relative to Base, not to
	// whatever type embeds Base) — rebased() composes it with an
	// embedding field's own index when a base type's fields are
	// flattened into a derived type's field list. Unset for stream-
	// resolved descriptors, which have no live Go type at all.
	index []int
}

// rebased returns a copy of f with its index path prefixed by
// prefixIndex, translating a field access relative to a base type into
// one relative to the type that embeds that base at prefixIndex.
func (f *FieldDescriptor) rebased(prefixIndex int) *FieldDescriptor {
	rebasedIndex := make([]int, 0, len(f.index)+1)
	rebasedIndex = append(rebasedIndex, prefixIndex)
	rebasedIndex = append(rebasedIndex, f.index...)
	cp := *f
	cp.index = rebasedIndex
	return &cp
}

// wireBinaryMarshaled is a synthetic reflect.Kind value (reflect.Kind is
// just a defined uint) marking a type whose wire body is an opaque
// length-prefixed blob produced by encoding.BinaryMarshaler, rather than
// a field-by-field struct walk. time.Time is the motivating case: its
// fields are unexported and reflection cannot walk them at all.
const wireBinaryMarshaled reflect.Kind = reflect.UnsafePointer + 1

// TypeDescriptor is either resolved-from-runtime
// (built by introspection, backed by a live reflect.Type) or
// resolved-from-stream (built from a type stamp, with no live type
// handle; the reader pairs it with a runtime type in its readType
// entry, see reader.go's resolveAgainstExpected). Wire/Elem/Key/FixedLen make every
// descriptor self-describing enough to be walked generically (read and
// discard) even when no live Go type backs it, which is what lets a
// removed struct field be skipped using only the stream's own stamp.
type TypeDescriptor struct {
	FullName    string
	Assembly    *AssemblyDescriptor
	GenericArgs []*TypeDescriptor
	Base        *TypeDescriptor // nullable
	// BaseFieldIndex is the index, within this type's own reflect.Type,
	// of the anonymous field that embeds Base. Meaningful only when
	// Base != nil; used to rebase Base's (Base-relative) field indices
	// onto this type when flattening, since Base's descriptor is the
	// same shared, cached instance obtained for Base standalone.
	BaseFieldIndex int
	Fields         []*FieldDescriptor

	Wire     reflect.Kind
	Elem     *TypeDescriptor // slice/array element, or map value
	Key      *TypeDescriptor // map key
	FixedLen int             // array length; 0 for slices

	runtimeType reflect.Type // nil until resolved

	// stream-resolved bookkeeping
	fromStream bool
	resolved   bool

	structuralHash GUID
	hashed         bool
}

// AssemblyQualifiedName is a pure function of the descriptor tree; two
// descriptors compare Equal iff their AQNs are equal.
func (t *TypeDescriptor) AssemblyQualifiedName() string {
	name := t.FullName
	if len(t.GenericArgs) > 0 {
		parts := make([]string, len(t.GenericArgs))
		for i, a := range t.GenericArgs {
			parts[i] = a.AssemblyQualifiedName()
		}
		name = name + "[" + strings.Join(parts, ",") + "]"
	}
	return name + ", " + t.Assembly.AssemblyQualifiedName()
}

func (t *TypeDescriptor) Equal(o *TypeDescriptor) bool {
	if o == nil {
		return false
	}
	return t.AssemblyQualifiedName() == o.AssemblyQualifiedName()
}

// NonTransientFields returns fields in declared wire order: base
// type's declared fields first (recursively), then this type's own
// declared fields in reflection-reported order, excluding transient
// fields. This is the normative serialization order.
func (t *TypeDescriptor) NonTransientFields() []*FieldDescriptor {
	var out []*FieldDescriptor
	if t.Base != nil {
		for _, f := range t.Base.NonTransientFields() {
			out = append(out, f.rebased(t.BaseFieldIndex))
		}
	}
	for _, f := range t.Fields {
		if !f.Transient {
			out = append(out, f)
		}
	}
	return out
}

// AllFieldsBaseFirst returns every declared field (transient or not)
// in base-first, declaration order; the stamp comparator uses it to
// find the ConstructorRecreated fields for the read plan.
func (t *TypeDescriptor) AllFieldsBaseFirst() []*FieldDescriptor {
	var out []*FieldDescriptor
	if t.Base != nil {
		for _, f := range t.Base.AllFieldsBaseFirst() {
			out = append(out, f.rebased(t.BaseFieldIndex))
		}
	}
	out = append(out, t.Fields...)
	return out
}

// structuralFingerprint returns a 128-bit hash over the type's AQN and
// its non-transient fields' declaring types, names and field type AQNs
// (base-first), used by the stamp comparator as a fast equality path.
// Only non-transient fields are hashed because they are the only ones
// a type stamp carries, so a stream-resolved descriptor and the
// runtime descriptor of an unchanged type hash the same.
func (t *TypeDescriptor) structuralFingerprint() GUID {
	if t.hashed {
		return t.structuralHash
	}
	var sb strings.Builder
	sb.WriteString(t.AssemblyQualifiedName())
	for _, f := range t.NonTransientFields() {
		sb.WriteByte('|')
		sb.WriteString(f.DeclaringType)
		sb.WriteByte('.')
		sb.WriteString(f.Name)
		sb.WriteByte(':')
		if f.FieldType != nil {
			sb.WriteString(f.FieldType.AssemblyQualifiedName())
		}
	}
	t.structuralHash = deriveGUID([]byte(sb.String()))
	t.hashed = true
	return t.structuralHash
}

// typeDescriptorCache is the process-wide, insert-only, concurrent
// cache of resolved-from-runtime descriptors, keyed by reflect.Type
//. Grounded on
// type.go's typeResolver.typesInfo.
type typeDescriptorCache struct {
	mu   sync.RWMutex
	byRT map[reflect.Type]*TypeDescriptor
}

var globalTypeDescriptorCache = &typeDescriptorCache{byRT: make(map[reflect.Type]*TypeDescriptor)}

// describeType returns the (possibly newly built and cached)
// TypeDescriptor for a live Go type.
func describeType(typ reflect.Type) *TypeDescriptor {
	globalTypeDescriptorCache.mu.RLock()
	if d, ok := globalTypeDescriptorCache.byRT[typ]; ok {
		globalTypeDescriptorCache.mu.RUnlock()
		return d
	}
	globalTypeDescriptorCache.mu.RUnlock()

	d := buildDescriptor(typ)

	globalTypeDescriptorCache.mu.Lock()
	if existing, ok := globalTypeDescriptorCache.byRT[typ]; ok {
		globalTypeDescriptorCache.mu.Unlock()
		return existing
	}
	globalTypeDescriptorCache.byRT[typ] = d
	globalTypeDescriptorCache.mu.Unlock()
	return d
}

// buildDescriptor introspects typ into a TypeDescriptor, branching on
// its wire kind: struct types get a base pointer and field list, slices
// and arrays get an element descriptor, maps get key and value
// descriptors, everything else (primitives, strings, binary-marshaled
// opaque structs) is a leaf. Named generic instantiations keep their
// bracketed Go name (e.g. "Pair[int,string]") verbatim in FullName,
// mirroring type.go's encodeType/decodeType textual approach to
// composite type names.
func buildDescriptor(typ reflect.Type) *TypeDescriptor {
	fullName := typ.String()
	if typ.Name() != "" {
		fullName = typ.Name() // see note on GenericArgs below
	}
	d := &TypeDescriptor{
		FullName:    fullName,
		Assembly:    assemblyFor(typ),
		runtimeType: typ,
		resolved:    true,
		Wire:        wireKindOf(typ),
	}
	// d is published in the cache before its fields are walked, so a
	// self-referential type (a field of type *T inside T) resolves to
	// this same descriptor instead of rebuilding it without end. Other
	// callers can therefore see d before its fields are filled in.
	globalTypeDescriptorCache.mu.Lock()
	if existing, ok := globalTypeDescriptorCache.byRT[typ]; ok {
		globalTypeDescriptorCache.mu.Unlock()
		return existing
	}
	globalTypeDescriptorCache.byRT[typ] = d
	globalTypeDescriptorCache.mu.Unlock()
	// Go reflect exposes no handle to a generic instantiation's type
	// arguments (no typeparams support via reflect pre-1.18 and none
	// added since for *instances*), so GenericArgs stays empty and the
	// bracketed name is carried verbatim in FullName instead; equality
	// and hashing still work since AssemblyQualifiedName is textual.

	switch d.Wire {
	case reflect.Struct:
		if isBinaryMarshaled(typ) {
			d.Wire = wireBinaryMarshaled
			return d
		}
		var base *TypeDescriptor
		var baseFieldIndex int
		var ownFields []*FieldDescriptor
		for i := 0; i < typ.NumField(); i++ {
			sf := typ.Field(i)
			if sf.Anonymous && sf.Type.Kind() == reflect.Struct && base == nil {
				base = describeType(sf.Type)
				baseFieldIndex = i
				continue
			}
			if sf.PkgPath != "" {
				continue // unexported fields are unreachable by reflection and never stamped
			}
			fd := fieldDescriptorFor(d.FullName, sf, []int{i})
			ownFields = append(ownFields, fd)
		}
		d.Base = base
		d.BaseFieldIndex = baseFieldIndex
		d.Fields = ownFields
	case reflect.Slice:
		d.Elem = describeFieldType(typ.Elem())
	case reflect.Array:
		d.Elem = describeFieldType(typ.Elem())
		d.FixedLen = typ.Len()
	case reflect.Map:
		d.Key = describeFieldType(typ.Key())
		d.Elem = describeFieldType(typ.Elem())
	}
	return d
}

// wireKindOf is the dispatch kind stamped onto the wire for typ: what
// the object writer/reader need to know to walk an instance's body
// without necessarily having typ itself in hand.
func wireKindOf(typ reflect.Type) reflect.Kind {
	if isBinaryMarshaled(typ) {
		return wireBinaryMarshaled
	}
	return typ.Kind()
}

var binaryMarshalerType = reflect.TypeOf((*encoding.BinaryMarshaler)(nil)).Elem()
var binaryUnmarshalerType = reflect.TypeOf((*encoding.BinaryUnmarshaler)(nil)).Elem()

// isBinaryMarshaled reports whether typ's value/pointer pair implements
// the standard library's encoding.BinaryMarshaler/BinaryUnmarshaler
// pair, the idiomatic escape hatch for opaque types reflection cannot
// walk field-by-field (time.Time being the prototypical example: its
// fields are unexported).
func isBinaryMarshaled(typ reflect.Type) bool {
	if typ.Kind() != reflect.Struct {
		return false
	}
	return typ.Implements(binaryMarshalerType) && reflect.PtrTo(typ).Implements(binaryUnmarshalerType)
}

func fieldDescriptorFor(declaringType string, sf reflect.StructField, index []int) *FieldDescriptor {
	transient, constructorInit := parseFieldTag(sf.Tag.Get("bin"))
	return &FieldDescriptor{
		DeclaringType:        declaringType,
		Name:                 sf.Name,
		FieldType:            describeFieldType(sf.Type),
		Transient:            transient,
		ConstructorRecreated: constructorInit,
		DeclaredType:         sf.Type,
		index:                index,
	}
}

// describeFieldType resolves a field's declared type the same way any
// other type is resolved, after unwrapping one level of pointer (a
// pointer field's own pointer-ness is not part of its declared type's
// identity; only the pointee's shape is).
func describeFieldType(typ reflect.Type) *TypeDescriptor {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return describeType(typ)
}

func parseFieldTag(tag string) (transient, constructorInit bool) {
	if tag == "" {
		return false, false
	}
	for _, part := range strings.Split(tag, ",") {
		switch strings.TrimSpace(part) {
		case "-", "transient":
			transient = true
		case "init":
			transient = true
			constructorInit = true
		}
	}
	return transient, constructorInit
}

func splitGenericName(name string) (base string, args []string) {
	i := strings.IndexByte(name, '[')
	if i < 0 || !strings.HasSuffix(name, "]") {
		return name, nil
	}
	inner := name[i+1 : len(name)-1]
	depth := 0
	start := 0
	for pos, r := range inner {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, inner[start:pos])
				start = pos + 1
			}
		}
	}
	args = append(args, inner[start:])
	return name[:i], args
}
