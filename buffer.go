package binstream

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
)

// Writer is the primitive codec's write side. It buffers writes into a
// fixed block when UseBuffering is set, wrapping the underlying sink
// so that many consecutive operations on an open stream pack tightly;
// Flush pads any partially filled block with zero bytes so the next
// operation starts at a block boundary.
//
// Grounded on the call surface type.go drives against its ByteBuffer
// (WriteVarUint32, WriteInt64, WriteBinary, WriteByte_, ...); the
// buffering/padding behaviour is new, needed for open-stream reuse.
type Writer struct {
	sink      io.Writer
	buffered  *bufio.Writer
	blockSize int
	inBlock   int
	written   int64
	err       error
}

// NewWriter wraps sink for primitive writes. If blockSize > 0, writes
// are buffered in blockSize-byte chunks and Flush pads to the next
// boundary.
func NewWriter(sink io.Writer, blockSize int) *Writer {
	w := &Writer{sink: sink, blockSize: blockSize}
	if blockSize > 0 {
		w.buffered = bufio.NewWriterSize(sink, blockSize)
	}
	return w
}

func (w *Writer) out() io.Writer {
	if w.buffered != nil {
		return w.buffered
	}
	return w.sink
}

// BytesWritten reports the total number of logical bytes written,
// excluding any padding emitted by Flush.
func (w *Writer) BytesWritten() int64 { return w.written }

func (w *Writer) Err() error { return w.err }

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	n, err := w.out().Write(p)
	w.written += int64(n)
	if w.blockSize > 0 {
		w.inBlock = (w.inBlock + n) % w.blockSize
	}
	if err != nil {
		w.fail(err)
	}
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.write([]byte{1})
	} else {
		w.write([]byte{0})
	}
}

func (w *Writer) WriteByte_(v byte) { w.write([]byte{v}) }

func (w *Writer) WriteInt16(v int16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(v))
	w.write(b[:])
}

func (w *Writer) WriteInt32(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	w.write(b[:])
}

func (w *Writer) WriteInt64(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	w.write(b[:])
}

func (w *Writer) WriteFloat32(v float32) { w.WriteInt32(int32(math.Float32bits(v))) }
func (w *Writer) WriteFloat64(v float64) { w.WriteInt64(int64(math.Float64bits(v))) }

// WriteVarUint64 writes v as a 7-bit-per-byte little-endian varint
// with a continuation bit in the high bit of each byte.
func (w *Writer) WriteVarUint64(v uint64) {
	var buf [10]byte
	n := 0
	for v >= 0x80 {
		buf[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	buf[n] = byte(v)
	n++
	w.write(buf[:n])
}

func (w *Writer) WriteVarUint32(v uint32) { w.WriteVarUint64(uint64(v)) }

// WriteVarInt64 zigzag-encodes v so small magnitude negative numbers
// stay small on the wire, then writes it as a var uint.
func (w *Writer) WriteVarInt64(v int64) {
	w.WriteVarUint64(zigzagEncode64(v))
}

func (w *Writer) WriteVarInt32(v int32) { w.WriteVarInt64(int64(v)) }

// WriteString writes a UTF-8 string as a var-uint byte length followed
// by the raw bytes.
func (w *Writer) WriteString(s string) {
	w.WriteVarUint64(uint64(len(s)))
	w.write([]byte(s))
}

// WriteBinary writes a length-prefixed opaque byte blob.
func (w *Writer) WriteBinary(b []byte) {
	w.WriteVarUint64(uint64(len(b)))
	w.write(b)
}

// WriteRaw writes bytes with no length prefix, for callers that manage
// their own framing (e.g. a fixed-size GUID).
func (w *Writer) WriteRaw(b []byte) { w.write(b) }

// Flush flushes any buffered bytes and, if block buffering is enabled,
// pads the final partial block with zero bytes so the stream position
// lands on a block boundary for the next open-stream operation.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if w.buffered != nil && w.blockSize > 0 && w.inBlock != 0 {
		pad := w.blockSize - w.inBlock
		w.write(make([]byte, pad))
		w.written -= int64(pad) // padding is not a logical byte
	}
	if w.buffered != nil {
		if err := w.buffered.Flush(); err != nil {
			w.fail(err)
		}
	}
	return w.err
}

// Reader is the primitive codec's read side, mirroring Writer.
type Reader struct {
	source    io.Reader
	buffered  *bufio.Reader
	blockSize int
	inBlock   int
	read      int64
	err       error
}

func NewReader(source io.Reader, blockSize int) *Reader {
	r := &Reader{source: source, blockSize: blockSize}
	if blockSize > 0 {
		r.buffered = bufio.NewReaderSize(source, blockSize)
	}
	return r
}

func (r *Reader) in() io.Reader {
	if r.buffered != nil {
		return r.buffered
	}
	return r.source
}

func (r *Reader) BytesRead() int64 { return r.read }
func (r *Reader) Err() error       { return r.err }

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) readFull(p []byte) {
	if r.err != nil {
		return
	}
	n, err := io.ReadFull(r.in(), p)
	r.read += int64(n)
	if r.blockSize > 0 {
		r.inBlock = (r.inBlock + n) % r.blockSize
	}
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = &StreamCorruptedError{Reason: "unexpected end of stream"}
		}
		r.fail(err)
	}
}

func (r *Reader) ReadBool() bool {
	var b [1]byte
	r.readFull(b[:])
	return b[0] != 0
}

func (r *Reader) ReadByte_() byte {
	var b [1]byte
	r.readFull(b[:])
	return b[0]
}

func (r *Reader) ReadInt16() int16 {
	var b [2]byte
	r.readFull(b[:])
	return int16(binary.LittleEndian.Uint16(b[:]))
}

func (r *Reader) ReadInt32() int32 {
	var b [4]byte
	r.readFull(b[:])
	return int32(binary.LittleEndian.Uint32(b[:]))
}

func (r *Reader) ReadInt64() int64 {
	var b [8]byte
	r.readFull(b[:])
	return int64(binary.LittleEndian.Uint64(b[:]))
}

func (r *Reader) ReadFloat32() float32 { return math.Float32frombits(uint32(r.ReadInt32())) }
func (r *Reader) ReadFloat64() float64 { return math.Float64frombits(uint64(r.ReadInt64())) }

func (r *Reader) ReadVarUint64() uint64 {
	var result uint64
	var shift uint
	for {
		b := r.ReadByte_()
		if r.err != nil {
			return 0
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift > 63 {
			r.fail(&StreamCorruptedError{Reason: "varint too long"})
			return 0
		}
	}
	return result
}

func (r *Reader) ReadVarUint32() uint32 { return uint32(r.ReadVarUint64()) }

func (r *Reader) ReadVarInt64() int64 { return zigzagDecode64(r.ReadVarUint64()) }
func (r *Reader) ReadVarInt32() int32 { return int32(r.ReadVarInt64()) }

func (r *Reader) ReadString() string {
	n := r.ReadVarUint64()
	if r.err != nil {
		return ""
	}
	b := make([]byte, n)
	r.readFull(b)
	return string(b)
}

func (r *Reader) ReadBinary() []byte {
	n := r.ReadVarUint64()
	if r.err != nil {
		return nil
	}
	b := make([]byte, n)
	r.readFull(b)
	return b
}

func (r *Reader) ReadRaw(n int) []byte {
	b := make([]byte, n)
	r.readFull(b)
	return b
}

// Skip consumes and discards n raw bytes; Align uses it to reach the
// next block boundary.
func (r *Reader) Skip(n int) {
	if n <= 0 {
		return
	}
	r.readFull(make([]byte, n))
}

// Align discards bytes up to the next block boundary, mirroring
// Writer.Flush's padding on the read side of an open-stream session.
func (r *Reader) Align() {
	if r.blockSize == 0 || r.inBlock == 0 {
		return
	}
	r.Skip(r.blockSize - r.inBlock)
}

func zigzagEncode64(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode64(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}
