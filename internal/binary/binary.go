// Package binary decodes and encodes the little-endian, variable-width
// integers HDF5 uses for on-disk structures.
//
// Addresses ("offsets") and lengths have a per-file width fixed by the
// superblock; [Sizes] carries it to every decoder and encoder.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Undefined is the all-ones address HDF5 uses for "no address".
const Undefined = ^uint64(0)

// ErrTruncated is returned when a structure ends before its fields do.
var ErrTruncated = errors.New("truncated structure")

// Sizes holds the byte widths of file addresses and lengths.
type Sizes struct {
	Offset int
	Length int
}

// Default is the width pair written by this module.
var Default = Sizes{Offset: 8, Length: 8}

// Valid reports whether both widths are ones HDF5 allows.
func (s Sizes) Valid() bool {
	ok := func(n int) bool { return n == 2 || n == 4 || n == 8 }
	return ok(s.Offset) && ok(s.Length)
}

// IsUndefined reports whether addr is the undefined address for an offset
// of the given width.
func IsUndefined(addr uint64, width int) bool {
	if width >= 8 {
		return addr == Undefined
	}
	return addr == (uint64(1)<<(8*uint(width)))-1
}

// Decoder reads fields from a byte slice. The first failure sticks: later
// calls return zero values and Err reports what went wrong.
type Decoder struct {
	buf []byte
	pos int
	sz  Sizes
	err error
}

// NewDecoder returns a Decoder positioned at the start of buf.
func NewDecoder(buf []byte, sz Sizes) *Decoder {
	return &Decoder{buf: buf, sz: sz}
}

// Err returns the first error encountered.
func (d *Decoder) Err() error { return d.err }

// Sizes returns the widths the decoder was built with.
func (d *Decoder) Sizes() Sizes { return d.sz }

// Pos returns the current read position.
func (d *Decoder) Pos() int { return d.pos }

// Len returns the number of unread bytes.
func (d *Decoder) Len() int {
	if d.err != nil {
		return 0
	}
	return len(d.buf) - d.pos
}

// Seek moves the read position to pos.
func (d *Decoder) Seek(pos int) {
	if d.err == nil && (pos < 0 || pos > len(d.buf)) {
		d.err = fmt.Errorf("seek to %d of %d bytes: %w", pos, len(d.buf), ErrTruncated)
		return
	}
	d.pos = pos
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.pos+n > len(d.buf) {
		d.err = fmt.Errorf("need %d bytes at %d, have %d: %w", n, d.pos, len(d.buf)-d.pos, ErrTruncated)
		return nil
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b
}

// Skip advances past n bytes.
func (d *Decoder) Skip(n int) { d.take(n) }

// Align skips forward to the next multiple of n relative to the slice start.
func (d *Decoder) Align(n int) {
	if r := d.pos % n; r != 0 {
		d.Skip(n - r)
	}
}

// Bytes returns the next n bytes. The result aliases the decoder's buffer.
func (d *Decoder) Bytes(n int) []byte { return d.take(n) }

// U8 reads one byte.
func (d *Decoder) U8() uint8 {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *Decoder) U16() uint16 {
	if b := d.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (d *Decoder) U32() uint32 {
	if b := d.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *Decoder) U64() uint64 {
	if b := d.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// Uint reads an n-byte little-endian unsigned integer, 1 <= n <= 8.
func (d *Decoder) Uint(n int) uint64 {
	if n < 1 || n > 8 {
		if d.err == nil {
			d.err = fmt.Errorf("unsupported integer width %d", n)
		}
		return 0
	}
	return Uint(d.take(n))
}

// Offset reads a file address. Undefined addresses of narrow files are
// widened to [Undefined].
func (d *Decoder) Offset() uint64 {
	v := d.Uint(d.sz.Offset)
	if d.err == nil && IsUndefined(v, d.sz.Offset) {
		return Undefined
	}
	return v
}

// Length reads a file length.
func (d *Decoder) Length() uint64 { return d.Uint(d.sz.Length) }

// Signature consumes a 4- or 8-byte magic value and fails if it differs.
func (d *Decoder) Signature(want string) {
	got := d.take(len(want))
	if got != nil && string(got) != want {
		d.err = fmt.Errorf("bad signature %q, want %q", got, want)
	}
}

// CString reads a NUL-terminated string and consumes the terminator.
func (d *Decoder) CString() string {
	if d.err != nil {
		return ""
	}
	for i := d.pos; i < len(d.buf); i++ {
		if d.buf[i] == 0 {
			s := string(d.buf[d.pos:i])
			d.pos = i + 1
			return s
		}
	}
	d.err = fmt.Errorf("unterminated string at %d: %w", d.pos, ErrTruncated)
	return ""
}

// Uint decodes a little-endian unsigned integer of len(b) <= 8 bytes.
func Uint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// Encoder appends fields to a growing byte slice.
type Encoder struct {
	buf []byte
	sz  Sizes
}

// NewEncoder returns an empty Encoder.
func NewEncoder(sz Sizes) *Encoder {
	return &Encoder{sz: sz}
}

// Sizes returns the widths the encoder was built with.
func (e *Encoder) Sizes() Sizes { return e.sz }

// Bytes returns the encoded data. The slice aliases the encoder's buffer.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len returns the number of bytes encoded so far.
func (e *Encoder) Len() int { return len(e.buf) }

func (e *Encoder) U8(v uint8) { e.buf = append(e.buf, v) }

func (e *Encoder) U16(v uint16) { e.buf = binary.LittleEndian.AppendUint16(e.buf, v) }

func (e *Encoder) U32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }

func (e *Encoder) U64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }

// Uint appends the low n bytes of v.
func (e *Encoder) Uint(v uint64, n int) {
	for i := 0; i < n; i++ {
		e.buf = append(e.buf, byte(v>>(8*uint(i))))
	}
}

// Offset appends a file address at the configured width.
func (e *Encoder) Offset(v uint64) { e.Uint(v, e.sz.Offset) }

// Length appends a length at the configured width.
func (e *Encoder) Length(v uint64) { e.Uint(v, e.sz.Length) }

func (e *Encoder) Raw(b []byte) { e.buf = append(e.buf, b...) }

// CString appends s and a NUL terminator.
func (e *Encoder) CString(s string) {
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
}

// Zeros appends n zero bytes.
func (e *Encoder) Zeros(n int) {
	for i := 0; i < n; i++ {
		e.buf = append(e.buf, 0)
	}
}

// Pad appends zeros until Len is a multiple of n.
func (e *Encoder) Pad(n int) {
	if r := len(e.buf) % n; r != 0 {
		e.Zeros(n - r)
	}
}

// PutU32 overwrites four bytes at pos, for sizes known only after encoding.
func (e *Encoder) PutU32(pos int, v uint32) {
	binary.LittleEndian.PutUint32(e.buf[pos:], v)
}

// Checksum appends the lookup3 checksum of everything encoded from start.
func (e *Encoder) Checksum(start int) {
	e.U32(Lookup3(e.buf[start:]))
}

// ReadAt reads exactly n bytes at off.
func ReadAt(r io.ReaderAt, off uint64, n int) ([]byte, error) {
	if off == Undefined {
		return nil, errors.New("read at undefined address")
	}
	buf := make([]byte, n)
	if _, err := r.ReadAt(buf, int64(off)); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read %d bytes at %d: %w", n, off, ErrTruncated)
		}
		return nil, err
	}
	return buf, nil
}

// ReadUpTo reads at most n bytes at off, stopping early at end of file.
func ReadUpTo(r io.ReaderAt, off uint64, n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := r.ReadAt(buf, int64(off))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:got], nil
}
