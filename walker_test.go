package binstream

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wrGenPoint struct {
	X int32
	Y int32
}

type wrGenPointWalker struct{}

func (wrGenPointWalker) WriteBody(w *ObjectWriter, v reflect.Value) error {
	if err := w.WriteValue(v.FieldByName("X")); err != nil {
		return err
	}
	return w.WriteValue(v.FieldByName("Y"))
}

func (wrGenPointWalker) ReadBody(r *ObjectReader, target reflect.Value) error {
	int32Type := reflect.TypeOf(int32(0))
	x, err := r.ReadValue(int32Type)
	if err != nil {
		return err
	}
	if x.IsValid() {
		target.FieldByName("X").Set(x)
	}
	y, err := r.ReadValue(int32Type)
	if err != nil {
		return err
	}
	if y.IsValid() {
		target.FieldByName("Y").Set(y)
	}
	return nil
}

func TestGeneratedWalkerRoundTrip(t *testing.T) {
	RegisterGeneratedWalker(reflect.TypeOf(wrGenPoint{}), wrGenPointWalker{})

	settings := DefaultSettings()
	settings.SerializationMethod = Generated
	settings.DeserializationMethod = Generated

	var buf bytes.Buffer
	require.NoError(t, Serialize(&buf, &wrGenPoint{X: 3, Y: 4}, settings))

	var got wrGenPoint
	require.NoError(t, Deserialize(&buf, &got, settings))
	assert.Equal(t, wrGenPoint{X: 3, Y: 4}, got)
}

func TestGeneratedWalkerFallsBackToReflectionWhenUnregistered(t *testing.T) {
	settings := DefaultSettings()
	settings.SerializationMethod = Generated
	settings.DeserializationMethod = Generated

	var buf bytes.Buffer
	require.NoError(t, Serialize(&buf, &wrPair{X: 1, Y: "one"}, settings))

	var got wrPair
	require.NoError(t, Deserialize(&buf, &got, settings))
	assert.Equal(t, wrPair{X: 1, Y: "one"}, got)
}
