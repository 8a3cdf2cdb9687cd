package binstream

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stampV1 struct {
	A int32
	B string
}

type stampV2Added struct {
	A int32
	B string
	C int32
}

type stampV2Removed struct {
	A int32
}

type stampV2Changed struct {
	A int32
	B int32
}

func TestCompareTypesIdenticalProducesReadPlan(t *testing.T) {
	prev := describeType(reflect.TypeOf(stampV1{}))
	cur := describeType(reflect.TypeOf(stampV1{}))
	plan, err := CompareTypes(prev, cur, 0)
	require.NoError(t, err)
	require.Len(t, plan, 2, DumpReadPlan(plan))
	assert.Equal(t, PlanRead, plan[0].Tag, DumpReadPlan(plan))
	assert.Equal(t, "A", plan[0].Field.Name, DumpReadPlan(plan))
	assert.Equal(t, PlanRead, plan[1].Tag, DumpReadPlan(plan))
	assert.Equal(t, "B", plan[1].Field.Name, DumpReadPlan(plan))
}

func TestCompareTypesFieldAdditionRequiresTolerance(t *testing.T) {
	prev := describeType(reflect.TypeOf(stampV1{}))
	cur := describeType(reflect.TypeOf(stampV2Added{}))

	_, err := CompareTypes(prev, cur, 0)
	require.Error(t, err)
	var structErr *TypeStructureChangedError
	require.ErrorAs(t, err, &structErr)
	assert.Equal(t, StructureHashChanged, structErr.Kind)

	plan, err := CompareTypes(prev, cur, AllowGuidChange|AllowFieldAddition)
	require.NoError(t, err)
	require.Len(t, plan, 2, DumpReadPlan(plan))
	assert.Equal(t, "A", plan[0].Field.Name, DumpReadPlan(plan))
	assert.Equal(t, "B", plan[1].Field.Name, DumpReadPlan(plan))
}

func TestCompareTypesFieldRemovalProducesSkipInStreamOrder(t *testing.T) {
	prev := describeType(reflect.TypeOf(stampV1{}))
	cur := describeType(reflect.TypeOf(stampV2Removed{}))

	plan, err := CompareTypes(prev, cur, AllowGuidChange|AllowFieldRemoval)
	require.NoError(t, err)
	require.Len(t, plan, 2, DumpReadPlan(plan))
	assert.Equal(t, PlanRead, plan[0].Tag, DumpReadPlan(plan))
	assert.Equal(t, "A", plan[0].Field.Name, DumpReadPlan(plan))
	assert.Equal(t, PlanSkip, plan[1].Tag, DumpReadPlan(plan))
	assert.NotNil(t, plan[1].SkipType, DumpReadPlan(plan))
}

func TestCompareTypesFieldTypeChangeIsAlwaysFatal(t *testing.T) {
	prev := describeType(reflect.TypeOf(stampV1{}))
	cur := describeType(reflect.TypeOf(stampV2Changed{}))

	_, err := CompareTypes(prev, cur, AllowGuidChange|AllowFieldAddition|AllowFieldRemoval)
	require.Error(t, err)
	var structErr *TypeStructureChangedError
	require.ErrorAs(t, err, &structErr)
	assert.Equal(t, FieldChanged, structErr.Kind)
	assert.Equal(t, "B", structErr.Field)
}
