// Package codec reads and writes the fixed-width integers and
// length-prefixed byte strings that make up a trace file.
//
// Every multi-byte integer is big-endian on the wire regardless of the
// host byte order. Strings are prefixed with their length as a 32-bit
// integer and are not terminated.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
)

// ByteOrder is the canonical byte order of the trace format.
var ByteOrder = binary.BigEndian

var (
	// ErrTruncatedInput is returned when the input ends in the middle of an
	// item.
	ErrTruncatedInput = errors.New("truncated input")
	// ErrOverBound is returned, along with ErrTruncatedInput, when a
	// length prefix exceeds the bound given by the caller.
	ErrOverBound = errors.New("length exceeds bound")
)

// chunkSize bounds how much Full allocates ahead of the bytes it has
// actually read.
const chunkSize = 64 << 10

// AppendU32 appends v to dst.
func AppendU32(dst []byte, v uint32) []byte {
	return ByteOrder.AppendUint32(dst, v)
}

// AppendU64 appends v to dst.
func AppendU64(dst []byte, v uint64) []byte {
	return ByteOrder.AppendUint64(dst, v)
}

// AppendBytes appends the length of b as a 32-bit integer, followed by b.
func AppendBytes(dst []byte, b []byte) []byte {
	dst = AppendU32(dst, uint32(len(b)))
	return append(dst, b...)
}

// WriteU32 writes v to w.
func WriteU32(w io.Writer, v uint32) error {
	_, err := w.Write(AppendU32(make([]byte, 0, 4), v))
	return err
}

// WriteU64 writes v to w.
func WriteU64(w io.Writer, v uint64) error {
	_, err := w.Write(AppendU64(make([]byte, 0, 8), v))
	return err
}

// WriteBytes writes b to w, prefixed with its length.
func WriteBytes(w io.Writer, b []byte) error {
	_, err := w.Write(AppendBytes(make([]byte, 0, 4+len(b)), b))
	return err
}

// Reader decodes items from an underlying io.Reader and keeps track of how
// many bytes it consumed.
type Reader struct {
	r   io.Reader
	off int64
	buf [8]byte
}

// NewReader returns a Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int64 {
	return r.off
}

// Read implements io.Reader, so that a window of the input can be handed
// to another Reader while the offset stays accurate.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.off += int64(n)
	return n, err
}

// fill reads exactly len(p) bytes. If no byte at all is available and
// cleanEOF is set it returns io.EOF, otherwise a short read is
// ErrTruncatedInput.
func (r *Reader) fill(p []byte, cleanEOF bool) error {
	n, err := io.ReadFull(r.r, p)
	r.off += int64(n)
	switch {
	case err == nil:
		return nil
	case err == io.EOF && cleanEOF:
		return io.EOF
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		return fmt.Errorf("%w: needed %d bytes at offset %d, got %d", ErrTruncatedInput, len(p), r.off-int64(n), n)
	}
	return err
}

// U32 reads a 32-bit integer. It returns io.EOF, unwrapped, if the input
// is exhausted before the first byte.
func (r *Reader) U32() (uint32, error) {
	if err := r.fill(r.buf[:4], true); err != nil {
		return 0, err
	}
	return ByteOrder.Uint32(r.buf[:4]), nil
}

// U64 reads a 64-bit integer.
func (r *Reader) U64() (uint64, error) {
	if err := r.fill(r.buf[:8], false); err != nil {
		return 0, err
	}
	return ByteOrder.Uint64(r.buf[:8]), nil
}

// Full reads exactly n bytes. The result grows as the input is read, so a
// large n on a short input fails without allocating n bytes.
func (r *Reader) Full(n int) ([]byte, error) {
	if n <= chunkSize {
		p := make([]byte, n)
		if err := r.fill(p, false); err != nil {
			return nil, err
		}
		return p, nil
	}
	start := r.off
	p := make([]byte, 0, chunkSize)
	for len(p) < n {
		if len(p) == cap(p) {
			p = slices.Grow(p, min(n-len(p), cap(p)))
		}
		m, err := io.ReadFull(r.r, p[len(p):min(n, cap(p))])
		r.off += int64(m)
		p = p[:len(p)+m]
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: needed %d bytes at offset %d, got %d", ErrTruncatedInput, n, start, len(p))
		}
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Bytes reads a length-prefixed byte string. A declared length larger than
// max, which does not count the prefix, fails with ErrOverBound before
// anything is allocated; a max less than zero means no bound.
func (r *Reader) Bytes(max int64) ([]byte, error) {
	n, err := r.U32()
	if err != nil {
		if err == io.EOF {
			err = fmt.Errorf("%w: missing length prefix at offset %d", ErrTruncatedInput, r.off)
		}
		return nil, err
	}
	if max >= 0 && int64(n) > max {
		return nil, fmt.Errorf("%w: %w: string of %d bytes at offset %d, only %d allowed", ErrTruncatedInput, ErrOverBound, n, r.off, max)
	}
	return r.Full(int(n))
}

// Skip discards n bytes.
func (r *Reader) Skip(n int64) error {
	m, err := io.CopyN(io.Discard, r.r, n)
	r.off += m
	if err == io.EOF {
		return fmt.Errorf("%w: skipping %d bytes at offset %d, got %d", ErrTruncatedInput, n, r.off-m, m)
	}
	return err
}
