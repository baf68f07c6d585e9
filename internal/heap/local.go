// Package heap reads and writes the two heaps that hold variable-size data
// in snapshot archives: the local heap holding an old-style group's member
// names, and global heap collections holding variable-length strings.
package heap

import (
	"fmt"
	"io"

	"github.com/robert-malhotra/h5export/internal/binary"
)

// localFreeNone is the free-list offset the HDF5 library writes when a
// local heap has no free block.
const localFreeNone = 1

// Local is a loaded local heap data segment.
type Local struct {
	data []byte
}

// ReadLocal loads the local heap whose header is at addr.
func ReadLocal(r io.ReaderAt, addr uint64, sz binary.Sizes) (*Local, error) {
	head, err := binary.ReadAt(r, addr, LocalHeaderSize(sz))
	if err != nil {
		return nil, fmt.Errorf("local heap at %d: %w", addr, err)
	}
	d := binary.NewDecoder(head, sz)
	d.Signature("HEAP")
	if v := d.U8(); d.Err() == nil && v != 0 {
		return nil, fmt.Errorf("local heap at %d: unsupported version %d", addr, v)
	}
	d.Skip(3)
	size := d.Length()
	d.Length() // free list head
	dataAddr := d.Offset()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("local heap at %d: %w", addr, err)
	}
	data, err := binary.ReadAt(r, dataAddr, int(size))
	if err != nil {
		return nil, fmt.Errorf("local heap data at %d: %w", dataAddr, err)
	}
	return &Local{data: data}, nil
}

// String returns the NUL-terminated string at off.
func (h *Local) String(off uint64) (string, error) {
	if off >= uint64(len(h.data)) {
		return "", fmt.Errorf("local heap offset %d beyond %d bytes", off, len(h.data))
	}
	d := binary.NewDecoder(h.data[off:], binary.Default)
	s := d.CString()
	return s, d.Err()
}

// LocalHeaderSize is the encoded size of a local heap header.
func LocalHeaderSize(sz binary.Sizes) int {
	return 8 + 2*sz.Length + sz.Offset
}

// LocalBuilder accumulates names for a new local heap. Offset 0 always
// holds the empty string.
type LocalBuilder struct {
	data []byte
}

// NewLocalBuilder returns a builder holding only the empty name.
func NewLocalBuilder() *LocalBuilder {
	return &LocalBuilder{data: make([]byte, 8)}
}

// Add stores name and returns its offset.
func (b *LocalBuilder) Add(name string) uint64 {
	off := uint64(len(b.data))
	b.data = append(b.data, name...)
	b.data = append(b.data, 0)
	for len(b.data)%8 != 0 {
		b.data = append(b.data, 0)
	}
	return off
}

// Data returns the data segment.
func (b *LocalBuilder) Data() []byte { return b.data }

// Header encodes a heap header whose data segment is stored at dataAddr.
func (b *LocalBuilder) Header(dataAddr uint64, sz binary.Sizes) []byte {
	e := binary.NewEncoder(sz)
	e.Raw([]byte("HEAP"))
	e.U8(0)
	e.Zeros(3)
	e.Length(uint64(len(b.data)))
	e.Length(localFreeNone)
	e.Offset(dataAddr)
	return e.Bytes()
}
