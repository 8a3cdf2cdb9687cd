package binstream

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type swaptableWidget struct{ N int }
type swaptableWidgetSurrogate struct{ N int }

func TestSwapTableExactMatchFind(t *testing.T) {
	s := newSwapTable("test")
	called := false
	err := s.AddOrReplace(reflect.TypeOf(swaptableWidget{}), func(obj interface{}) (interface{}, error) {
		called = true
		w := obj.(swaptableWidget)
		return swaptableWidgetSurrogate{N: w.N}, nil
	})
	require.NoError(t, err)

	fn, ok := s.Find(reflect.TypeOf(swaptableWidget{}))
	require.True(t, ok)
	out, err := fn(swaptableWidget{N: 7})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, swaptableWidgetSurrogate{N: 7}, out)
}

func TestSwapTableNoMatchReturnsFalse(t *testing.T) {
	s := newSwapTable("test")
	_, ok := s.Find(reflect.TypeOf(swaptableWidget{}))
	assert.False(t, ok)
}

func TestSwapTableReplaceInPlaceKeepsInsertionOrder(t *testing.T) {
	s := newSwapTable("test")
	require.NoError(t, s.AddOrReplace(reflect.TypeOf(swaptableWidget{}), func(obj interface{}) (interface{}, error) {
		return "first", nil
	}))
	require.NoError(t, s.AddOrReplace(reflect.TypeOf(swaptableWidget{}), func(obj interface{}) (interface{}, error) {
		return "second", nil
	}))
	fn, ok := s.Find(reflect.TypeOf(swaptableWidget{}))
	require.True(t, ok)
	out, _ := fn(swaptableWidget{})
	assert.Equal(t, "second", out)
}

func TestSwapTableInterfaceMatchByAssignability(t *testing.T) {
	s := newSwapTable("test")
	errType := reflect.TypeOf((*error)(nil)).Elem()
	require.NoError(t, s.AddOrReplace(errType, func(obj interface{}) (interface{}, error) {
		return obj.(error).Error(), nil
	}))
	fn, ok := s.Find(reflect.TypeOf(&swaptableUnsupportedError{}))
	require.True(t, ok)
	out, err := fn(&swaptableUnsupportedError{})
	require.NoError(t, err)
	assert.Equal(t, "boom", out)
}

type swaptableUnsupportedError struct{}

func (e *swaptableUnsupportedError) Error() string { return "boom" }

func TestSwapTableIllegalStateAfterUse(t *testing.T) {
	s := newSwapTable("test")
	require.NoError(t, s.AddOrReplace(reflect.TypeOf(swaptableWidget{}), func(obj interface{}) (interface{}, error) {
		return obj, nil
	}))
	s.Find(reflect.TypeOf(swaptableWidget{}))

	err := s.AddOrReplace(reflect.TypeOf(swaptableWidgetSurrogate{}), func(obj interface{}) (interface{}, error) {
		return obj, nil
	})
	require.Error(t, err)
	var illegalErr *IllegalStateAfterUseError
	require.ErrorAs(t, err, &illegalErr)
}
