package binstream

import "reflect"

// typeWriteTable assigns dense, first-appearance-order ids to types
// and assemblies for a single writer's lifetime (one traversal for a
// single-shot Serialize call, or the whole session for an open-stream
// writer that shares it across operations). A type's id equals the
// table's size *before* it is inserted; the reader exploits that to
// tell "never seen before" from "already stamped" without a separate
// flag byte (see writer.go / reader.go).
type typeWriteTable struct {
	typeOrder []reflect.Type
	typeIDs   map[reflect.Type]int32

	assemblyOrder []*AssemblyDescriptor
	assemblyIDs   map[*AssemblyDescriptor]int32
}

func newTypeWriteTable() *typeWriteTable {
	return &typeWriteTable{
		typeIDs:     make(map[reflect.Type]int32),
		assemblyIDs: make(map[*AssemblyDescriptor]int32),
	}
}

// assemblyID returns the id for a, allocating one (and reporting
// isNew) if this writer has never stamped it before.
func (t *typeWriteTable) assemblyID(a *AssemblyDescriptor) (id int32, isNew bool) {
	if id, ok := t.assemblyIDs[a]; ok {
		return id, false
	}
	id = int32(len(t.assemblyOrder))
	t.assemblyOrder = append(t.assemblyOrder, a)
	t.assemblyIDs[a] = id
	return id, true
}

// typeID returns the id for typ, allocating one (and reporting isNew)
// if this writer has never stamped it before.
func (t *typeWriteTable) typeID(typ reflect.Type) (id int32, isNew bool) {
	if id, ok := t.typeIDs[typ]; ok {
		return id, false
	}
	id = int32(len(t.typeOrder))
	t.typeOrder = append(t.typeOrder, typ)
	t.typeIDs[typ] = id
	return id, true
}

// typeReadTable mirrors typeWriteTable on the read side: dense vectors
// of assemblies and resolved type descriptors indexed by the id they
// were assigned in stream order.
type typeReadTable struct {
	assemblies []*AssemblyDescriptor
	types      []*readType
}

// readType bundles a stream-resolved TypeDescriptor with the runtime
// type it resolves to and the ReadPlan the comparator produced for it.
type readType struct {
	Descriptor *TypeDescriptor
	Runtime    reflect.Type // nil until a value of this type is read against an expected Go type
	Plan       ReadPlan
}

func newTypeReadTable() *typeReadTable {
	return &typeReadTable{}
}

func (t *typeReadTable) nextAssemblyID() int32 { return int32(len(t.assemblies)) }
func (t *typeReadTable) nextTypeID() int32     { return int32(len(t.types)) }

func (t *typeReadTable) addAssembly(a *AssemblyDescriptor) int32 {
	id := t.nextAssemblyID()
	t.assemblies = append(t.assemblies, a)
	return id
}

func (t *typeReadTable) assemblyByID(id int32) (*AssemblyDescriptor, bool) {
	if id < 0 || int(id) >= len(t.assemblies) {
		return nil, false
	}
	return t.assemblies[id], true
}

func (t *typeReadTable) addType(rt *readType) int32 {
	id := t.nextTypeID()
	t.types = append(t.types, rt)
	return id
}

func (t *typeReadTable) typeByID(id int32) (*readType, bool) {
	if id < 0 || int(id) >= len(t.types) {
		return nil, false
	}
	return t.types[id], true
}

