package heap

import (
	"fmt"
	"io"

	"github.com/robert-malhotra/h5export/internal/binary"
)

// minCollection is the smallest collection the HDF5 library writes.
const minCollection = 4096

// ID addresses one object in a global heap collection.
type ID struct {
	Collection uint64
	Index      uint32
}

// VarLen is the in-file form of one variable-length element: its length
// and where its bytes live.
type VarLen struct {
	Len uint32
	ID  ID
}

// DecodeVarLen splits b, one element of a variable-length type, into its
// fields.
func DecodeVarLen(b []byte, sz binary.Sizes) (VarLen, error) {
	d := binary.NewDecoder(b, sz)
	v := VarLen{Len: d.U32()}
	v.ID.Collection = d.Offset()
	v.ID.Index = d.U32()
	return v, d.Err()
}

// Encode appends the in-file form of v.
func (v VarLen) Encode(e *binary.Encoder) {
	e.U32(v.Len)
	e.Offset(v.ID.Collection)
	e.U32(v.ID.Index)
}

// Collection is a loaded global heap collection.
type Collection struct {
	objects map[uint16][]byte
}

// ReadCollection loads the collection at addr.
func ReadCollection(r io.ReaderAt, addr uint64, sz binary.Sizes) (*Collection, error) {
	head, err := binary.ReadAt(r, addr, 8+sz.Length)
	if err != nil {
		return nil, fmt.Errorf("global heap at %d: %w", addr, err)
	}
	d := binary.NewDecoder(head, sz)
	d.Signature("GCOL")
	if v := d.U8(); d.Err() == nil && v != 1 {
		return nil, fmt.Errorf("global heap at %d: unsupported version %d", addr, v)
	}
	d.Skip(3)
	size := d.Length()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("global heap at %d: %w", addr, err)
	}
	buf, err := binary.ReadAt(r, addr, int(size))
	if err != nil {
		return nil, fmt.Errorf("global heap at %d: %w", addr, err)
	}

	c := &Collection{objects: make(map[uint16][]byte)}
	d = binary.NewDecoder(buf, sz)
	d.Seek(len(head))
	for d.Len() >= 8+sz.Length {
		idx := d.U16()
		d.Skip(6) // reference count, reserved
		n := d.Length()
		if idx == 0 {
			break // free space runs to the end
		}
		c.objects[idx] = d.Bytes(int(n))
		d.Align(8)
	}
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("global heap at %d: %w", addr, err)
	}
	return c, nil
}

// Object returns the bytes of object idx.
func (c *Collection) Object(idx uint32) ([]byte, error) {
	b, ok := c.objects[uint16(idx)]
	if !ok || idx > 0xffff {
		return nil, fmt.Errorf("global heap object %d not found", idx)
	}
	return b, nil
}

// CollectionBuilder accumulates objects for a new collection.
type CollectionBuilder struct {
	objects [][]byte
}

// Add stores data and returns its index.
func (b *CollectionBuilder) Add(data []byte) uint32 {
	b.objects = append(b.objects, data)
	return uint32(len(b.objects))
}

// Len returns the number of stored objects.
func (b *CollectionBuilder) Len() int { return len(b.objects) }

// Encode serializes the collection, padded with free space to at least
// 4096 bytes.
func (b *CollectionBuilder) Encode(sz binary.Sizes) []byte {
	e := binary.NewEncoder(sz)
	e.Raw([]byte("GCOL"))
	e.U8(1)
	e.Zeros(3)
	sizeAt := e.Len()
	e.Length(0)
	for i, obj := range b.objects {
		e.U16(uint16(i + 1))
		e.U16(0) // reference count; libhdf5 writes 0 for variable-length data
		e.U32(0)
		e.Length(uint64(len(obj)))
		e.Raw(obj)
		e.Pad(8)
	}

	total := max(e.Len()+8+sz.Length, minCollection)
	free := total - e.Len()
	e.U16(0)
	e.Zeros(6)
	e.Length(uint64(free))
	e.Zeros(total - e.Len())

	out := e.Bytes()
	fix := binary.NewEncoder(sz)
	fix.Length(uint64(total))
	copy(out[sizeAt:], fix.Bytes())
	return out
}
