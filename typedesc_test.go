package binstream

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type typedescPerson struct {
	Name   string
	Age    int32
	Secret string `bin:"-"`
}

type typedescEmployee struct {
	typedescPerson
	Badge int32
}

func TestDescribeTypeStructFields(t *testing.T) {
	desc := describeType(reflect.TypeOf(typedescPerson{}))
	require.Equal(t, reflect.Struct, desc.Wire)
	require.Len(t, desc.Fields, 3)
	names := map[string]*FieldDescriptor{}
	for _, f := range desc.Fields {
		names[f.Name] = f
	}
	assert.False(t, names["Name"].Transient)
	assert.False(t, names["Age"].Transient)
	assert.True(t, names["Secret"].Transient)
	assert.Equal(t, []*FieldDescriptor{names["Name"], names["Age"]}, desc.NonTransientFields())
}

func TestDescribeTypeBaseFirstFields(t *testing.T) {
	desc := describeType(reflect.TypeOf(typedescEmployee{}))
	require.NotNil(t, desc.Base)
	assert.Equal(t, "typedescPerson", desc.Base.FullName)
	fields := desc.NonTransientFields()
	require.Len(t, fields, 3, DumpType(desc))
	assert.Equal(t, "Name", fields[0].Name, DumpType(desc))
	assert.Equal(t, "Age", fields[1].Name, DumpType(desc))
	assert.Equal(t, "Badge", fields[2].Name, DumpType(desc))

	// Base fields' index paths must be rebased through the embedding
	// field (index 0: typedescEmployee's anonymous typedescPerson),
	// not left as the base type's own standalone indices.
	employee := typedescEmployee{typedescPerson: typedescPerson{Name: "Ada", Age: 30}, Badge: 7}
	v := reflect.ValueOf(employee)
	assert.Equal(t, "Ada", v.FieldByIndex(fields[0].index).Interface(), DumpType(desc))
	assert.Equal(t, int32(30), v.FieldByIndex(fields[1].index).Interface(), DumpType(desc))
	assert.Equal(t, int32(7), v.FieldByIndex(fields[2].index).Interface(), DumpType(desc))
}

func TestDescribeTypeSliceArrayMap(t *testing.T) {
	sliceDesc := describeType(reflect.TypeOf([]int32(nil)))
	require.Equal(t, reflect.Slice, sliceDesc.Wire)
	require.NotNil(t, sliceDesc.Elem)
	assert.Equal(t, reflect.Int32, sliceDesc.Elem.Wire)

	arrDesc := describeType(reflect.TypeOf([3]string{}))
	require.Equal(t, reflect.Array, arrDesc.Wire)
	assert.Equal(t, 3, arrDesc.FixedLen)
	assert.Equal(t, reflect.String, arrDesc.Elem.Wire)

	mapDesc := describeType(reflect.TypeOf(map[string]int32{}))
	require.Equal(t, reflect.Map, mapDesc.Wire)
	require.NotNil(t, mapDesc.Key)
	require.NotNil(t, mapDesc.Elem)
	assert.Equal(t, reflect.String, mapDesc.Key.Wire)
	assert.Equal(t, reflect.Int32, mapDesc.Elem.Wire)
}

func TestDescribeTypeBinaryMarshaledOpaque(t *testing.T) {
	desc := describeType(reflect.TypeOf(time.Time{}))
	assert.Equal(t, wireBinaryMarshaled, desc.Wire)
	assert.Empty(t, desc.Fields)
}

func TestAssemblyQualifiedNameIgnoresPointerness(t *testing.T) {
	ptrDesc := describeFieldType(reflect.TypeOf(&typedescPerson{}))
	valDesc := describeFieldType(reflect.TypeOf(typedescPerson{}))
	assert.Equal(t, ptrDesc.AssemblyQualifiedName(), valDesc.AssemblyQualifiedName())
}

func TestDescribeTypeCachesByReflectType(t *testing.T) {
	a := describeType(reflect.TypeOf(typedescPerson{}))
	b := describeType(reflect.TypeOf(typedescPerson{}))
	assert.Same(t, a, b)
}
