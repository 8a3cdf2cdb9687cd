package binstream

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wrPair struct {
	X int32
	Y string
}

type wrBag struct {
	Nums []int32
	Meta map[string]int32
}

type wrNode struct {
	Name string
	Next *wrNode
}

type wrItem struct {
	N int32
}

type wrMoney struct {
	Cents int64
}

type wrMoneySurrogate struct {
	Formatted string
}

type wrWallet struct {
	Balance wrMoney
}

type wrPerson struct {
	Name string
	Age  int32
}

type wrEmployee struct {
	wrPerson
	Badge int32
}

func roundTrip(t *testing.T, settings Settings, root interface{}, target interface{}) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Serialize(&buf, root, settings))
	require.NoError(t, Deserialize(&buf, target, settings))
}

func TestRoundTripPrimitivePair(t *testing.T) {
	settings := DefaultSettings()
	var got wrPair
	roundTrip(t, settings, &wrPair{X: 7, Y: "seven"}, &got)
	assert.Equal(t, wrPair{X: 7, Y: "seven"}, got)
}

func TestRoundTripSliceAndMap(t *testing.T) {
	settings := DefaultSettings()
	src := &wrBag{Nums: []int32{1, 2, 3}, Meta: map[string]int32{"a": 1, "b": 2}}
	var got wrBag
	roundTrip(t, settings, src, &got)
	assert.Equal(t, src.Nums, got.Nums)
	assert.Equal(t, src.Meta, got.Meta)
}

func TestRoundTripCyclePreservesIdentity(t *testing.T) {
	settings := DefaultSettings()
	a := &wrNode{Name: "a"}
	b := &wrNode{Name: "b", Next: a}
	a.Next = b

	var got *wrNode
	roundTrip(t, settings, a, &got)

	require.NotNil(t, got)
	assert.Equal(t, "a", got.Name)
	require.NotNil(t, got.Next)
	assert.Equal(t, "b", got.Next.Name)
	require.NotNil(t, got.Next.Next)
	assert.Same(t, got, got.Next.Next) // cycle closes on the same materialized instance
}

func TestRoundTripEmbeddedBaseFields(t *testing.T) {
	settings := DefaultSettings()
	src := &wrEmployee{wrPerson: wrPerson{Name: "Ada", Age: 30}, Badge: 42}
	var got wrEmployee
	roundTrip(t, settings, src, &got)
	assert.Equal(t, "Ada", got.Name, DumpValue(got))
	assert.Equal(t, int32(30), got.Age, DumpValue(got))
	assert.Equal(t, int32(42), got.Badge, DumpValue(got))
}

func TestRoundTripSchemaFieldAddition(t *testing.T) {
	settings := DefaultSettings()
	settings.VersionTolerance = AllowGuidChange | AllowFieldAddition

	var buf bytes.Buffer
	require.NoError(t, Serialize(&buf, &stampV1{A: 1, B: "x"}, settings))

	var got stampV2Added
	require.NoError(t, Deserialize(&buf, &got, settings))
	assert.Equal(t, int32(1), got.A)
	assert.Equal(t, "x", got.B)
	assert.Equal(t, int32(0), got.C) // never on the wire, stays zero
}

func TestRoundTripSchemaFieldRemoval(t *testing.T) {
	settings := DefaultSettings()
	settings.VersionTolerance = AllowGuidChange | AllowFieldRemoval

	var buf bytes.Buffer
	require.NoError(t, Serialize(&buf, &stampV1{A: 1, B: "dropped"}, settings))

	var got stampV2Removed
	require.NoError(t, Deserialize(&buf, &got, settings))
	assert.Equal(t, int32(1), got.A)
}

func TestRoundTripSchemaChangeWithoutToleranceFails(t *testing.T) {
	settings := DefaultSettings()

	var buf bytes.Buffer
	require.NoError(t, Serialize(&buf, &stampV1{A: 1, B: "x"}, settings))

	var got stampV2Added
	err := Deserialize(&buf, &got, settings)
	require.Error(t, err)
	var structErr *TypeStructureChangedError
	require.ErrorAs(t, err, &structErr)
}

func TestRoundTripSurrogatePair(t *testing.T) {
	require.NoError(t, RegisterSurrogate(
		reflect.TypeOf(wrMoney{}),
		func(obj interface{}) (interface{}, error) {
			m := obj.(wrMoney)
			return wrMoneySurrogate{Formatted: centsToDollars(m.Cents)}, nil
		},
		reflect.TypeOf(wrMoneySurrogate{}),
		func(raw interface{}) (interface{}, error) {
			s := raw.(wrMoneySurrogate)
			return wrMoney{Cents: dollarsToCents(s.Formatted)}, nil
		},
	))

	settings := DefaultSettings()
	src := &wrWallet{Balance: wrMoney{Cents: 1234}}
	var got wrWallet
	roundTrip(t, settings, src, &got)
	assert.Equal(t, src.Balance, got.Balance)
}

func centsToDollars(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func dollarsToCents(s string) int64 {
	var whole, frac int64
	dot := 0
	for i, r := range s {
		if r == '.' {
			dot = i
			break
		}
	}
	whole, _ = strconv.ParseInt(s[:dot], 10, 64)
	frac, _ = strconv.ParseInt(s[dot+1:], 10, 64)
	return whole*100 + frac
}

type wrAudited struct {
	N int32
}

func TestRoundTripLifecycleHooksInvokedOncePerInstance(t *testing.T) {
	var preCount, postSerCount, postDeserCount int
	RegisterHooks(reflect.TypeOf(wrAudited{}), LifecycleHooks{
		PreSerialize: func(obj interface{}) {
			preCount++
		},
		PostSerialize: func(obj interface{}) {
			postSerCount++
		},
		PostDeserialize: func(obj interface{}) interface{} {
			postDeserCount++
			a := obj.(wrAudited)
			a.N *= 10
			return a
		},
	})

	settings := DefaultSettings()
	var got wrAudited
	roundTrip(t, settings, &wrAudited{N: 3}, &got)

	assert.Equal(t, 1, preCount)
	assert.Equal(t, 1, postSerCount)
	assert.Equal(t, 1, postDeserCount)
	assert.Equal(t, int32(30), got.N) // PostDeserialize's replacement value wins
}

func TestOpenStreamSharesIdentityAndTypeTablesAcrossOperations(t *testing.T) {
	settings := DefaultSettings()
	settings.ReferencePreservation = Preserve

	var buf bytes.Buffer
	sw := OpenWriter(&buf, settings)
	require.NoError(t, sw.Write(&wrItem{N: 1}))
	require.NoError(t, sw.Write(&wrItem{N: 2}))
	require.NoError(t, sw.Close())

	sr, err := OpenReader(&buf, settings)
	require.NoError(t, err)

	var first, second wrItem
	require.NoError(t, sr.Read(&first))
	require.NoError(t, sr.Read(&second))
	assert.Equal(t, int32(1), first.N)
	assert.Equal(t, int32(2), second.N)
}

func TestOpenStreamWeakReferenceRestampsBetweenOperations(t *testing.T) {
	settings := DefaultSettings()
	settings.ReferencePreservation = UseWeakReference

	shared := &wrItem{N: 9}

	var buf bytes.Buffer
	sw := OpenWriter(&buf, settings)
	require.NoError(t, sw.Write(shared))
	require.NoError(t, sw.Write(shared))
	require.NoError(t, sw.Close())

	sr, err := OpenReader(&buf, settings)
	require.NoError(t, err)

	var first, second wrItem
	require.NoError(t, sr.Read(&first))
	require.NoError(t, sr.Read(&second))
	assert.Equal(t, int32(9), first.N)
	assert.Equal(t, int32(9), second.N)
}
