package binstream

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReaderPrimitivesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	w.WriteBool(true)
	w.WriteByte_(0xAB)
	w.WriteInt16(-1234)
	w.WriteInt32(987654)
	w.WriteInt64(-1 << 40)
	w.WriteFloat32(3.5)
	w.WriteFloat64(-2.25)
	w.WriteVarUint64(300)
	w.WriteVarInt64(-300)
	w.WriteString("héllo")
	w.WriteBinary([]byte{1, 2, 3})
	require.NoError(t, w.Err())
	require.NoError(t, w.Flush())

	r := NewReader(&buf, 0)
	assert.Equal(t, true, r.ReadBool())
	assert.Equal(t, byte(0xAB), r.ReadByte_())
	assert.Equal(t, int16(-1234), r.ReadInt16())
	assert.Equal(t, int32(987654), r.ReadInt32())
	assert.Equal(t, int64(-1<<40), r.ReadInt64())
	assert.Equal(t, float32(3.5), r.ReadFloat32())
	assert.Equal(t, float64(-2.25), r.ReadFloat64())
	assert.Equal(t, uint64(300), r.ReadVarUint64())
	assert.Equal(t, int64(-300), r.ReadVarInt64())
	assert.Equal(t, "héllo", r.ReadString())
	assert.Equal(t, []byte{1, 2, 3}, r.ReadBinary())
	require.NoError(t, r.Err())
}

func TestWriterBlockBufferingPadsToBoundary(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 8)
	w.WriteString("ab") // 1 length byte + 2 bytes = 3 bytes
	require.NoError(t, w.Flush())
	assert.Equal(t, 8, buf.Len())

	r := NewReader(bytes.NewReader(buf.Bytes()), 8)
	assert.Equal(t, "ab", r.ReadString())
	r.Align()
	assert.Equal(t, int64(8), r.BytesRead())
}

func TestVarUint64RoundTripsLargeValues(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40, ^uint64(0)}
	for _, v := range values {
		w.WriteVarUint64(v)
	}
	require.NoError(t, w.Flush())

	r := NewReader(&buf, 0)
	for _, want := range values {
		assert.Equal(t, want, r.ReadVarUint64())
	}
}

func TestReaderErrOnTruncatedStream(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x01}), 0)
	r.ReadInt64()
	assert.Error(t, r.Err())
}
