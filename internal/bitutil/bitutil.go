// Package bitutil provides small helpers for decoding sub-byte fields
// packed into a run of bytes, built on top of icza/bitio.
package bitutil

import (
	"bytes"

	"github.com/icza/bitio"
)

// Reader reads big-endian, MSB-first sub-byte fields from a byte slice.
type Reader struct {
	br  *bitio.Reader
	err error
}

// NewReader wraps buf for bit-level reads.
func NewReader(buf []byte) *Reader {
	return &Reader{br: bitio.NewReader(bytes.NewReader(buf))}
}

// Uint64 reads n bits (0 < n <= 64) and returns them as a uint64.
func (r *Reader) Uint64(n uint8) uint64 {
	if r.err != nil || n == 0 {
		return 0
	}
	v, err := r.br.ReadBits(n)
	if err != nil {
		r.err = err
		return 0
	}
	return v
}

// Uint32 reads n bits (0 < n <= 32) and returns them as a uint32.
func (r *Reader) Uint32(n uint8) uint32 { return uint32(r.Uint64(n)) }

// Uint8 reads n bits (0 < n <= 8) and returns them as a uint8.
func (r *Reader) Uint8(n uint8) uint8 { return uint8(r.Uint64(n)) }

// Bool reads a single bit as a boolean.
func (r *Reader) Bool() bool { return r.Uint64(1) != 0 }

// Err returns the first error encountered, if any.
func (r *Reader) Err() error { return r.err }

// Writer accumulates sub-byte fields MSB-first into a byte slice.
type Writer struct {
	buf  bytes.Buffer
	bw   *bitio.Writer
	err  error
}

// NewWriter returns an empty bit writer.
func NewWriter() *Writer {
	w := &Writer{}
	w.bw = bitio.NewWriter(&w.buf)
	return w
}

// WriteUint64 writes the low n bits of v.
func (w *Writer) WriteUint64(v uint64, n uint8) {
	if w.err != nil || n == 0 {
		return
	}
	if err := w.bw.WriteBits(v, n); err != nil {
		w.err = err
	}
}

// WriteUint32 writes the low n bits of v.
func (w *Writer) WriteUint32(v uint32, n uint8) { w.WriteUint64(uint64(v), n) }

// WriteUint8 writes the low n bits of v.
func (w *Writer) WriteUint8(v uint8, n uint8) { w.WriteUint64(uint64(v), n) }

// WriteBool writes a single bit.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint64(1, 1)
	} else {
		w.WriteUint64(0, 1)
	}
}

// Bytes flushes any partial byte (zero-padded) and returns the result.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if err := w.bw.Close(); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}
