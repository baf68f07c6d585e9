// Package superblock locates and decodes the HDF5 superblock, the fixed
// structure that gives address widths and the root group's location.
//
// Versions 0 and 1 (written by h5py's default "earliest" format, which is
// what Dedalus produces) describe the root group with a symbol table entry.
// Versions 2 and 3 point at the root object header directly and carry a
// lookup3 checksum.
package superblock

import (
	"errors"
	"fmt"
	"io"

	"github.com/robert-malhotra/h5export/internal/binary"
)

// Signature opens every superblock.
const Signature = "\x89HDF\r\n\x1a\n"

// ErrNotHDF5 is returned when no signature is found at any search offset.
var ErrNotHDF5 = errors.New("not an HDF5 file")

// Default B-tree ranks of the HDF5 library.
const (
	DefaultLeafK     = 4
	DefaultInternalK = 16
)

// Superblock is the decoded subset needed to walk a file.
type Superblock struct {
	Version uint8
	Sizes   binary.Sizes
	// Offset is where the signature was found; all addresses are relative to it.
	Offset int64
	EOF    uint64
	// Root is the root group's object header address.
	Root uint64

	// Version 0/1 only.
	LeafK     uint16
	InternalK uint16
	// RootBTree and RootHeap are cached from the root symbol table entry
	// scratch pad, or Undefined.
	RootBTree uint64
	RootHeap  uint64
}

// Read searches r for a superblock at byte 0 and then at successive
// powers of two starting at 512.
func Read(r io.ReaderAt) (*Superblock, error) {
	for off := int64(0); off <= 1<<30; off = next(off) {
		head, err := binary.ReadUpTo(r, uint64(off), 256)
		if err != nil {
			return nil, err
		}
		if len(head) < len(Signature) {
			break
		}
		if string(head[:len(Signature)]) != Signature {
			continue
		}
		sb, err := decode(head)
		if err != nil {
			return nil, fmt.Errorf("superblock at %d: %w", off, err)
		}
		sb.Offset = off
		return sb, nil
	}
	return nil, ErrNotHDF5
}

func next(off int64) int64 {
	if off == 0 {
		return 512
	}
	return off * 2
}

func decode(buf []byte) (*Superblock, error) {
	if len(buf) < 9 {
		return nil, binary.ErrTruncated
	}
	switch v := buf[8]; v {
	case 0, 1:
		return decodeV0(buf, v)
	case 2, 3:
		return decodeV2(buf, v)
	default:
		return nil, fmt.Errorf("unsupported superblock version %d", v)
	}
}

func decodeV0(buf []byte, version uint8) (*Superblock, error) {
	if len(buf) < 16 {
		return nil, binary.ErrTruncated
	}
	sz := binary.Sizes{Offset: int(buf[13]), Length: int(buf[14])}
	if !sz.Valid() {
		return nil, fmt.Errorf("invalid address widths %d/%d", sz.Offset, sz.Length)
	}
	d := binary.NewDecoder(buf, sz)
	d.Skip(16)
	sb := &Superblock{Version: version, Sizes: sz}
	sb.LeafK = d.U16()
	sb.InternalK = d.U16()
	d.Skip(4) // consistency flags
	if version == 1 {
		d.Skip(4) // indexed storage K, reserved
	}
	d.Offset() // base address; Offset covers user blocks
	d.Offset() // free space info
	sb.EOF = d.Offset()
	d.Offset() // driver info

	// Root group symbol table entry.
	d.Offset() // link name offset
	sb.Root = d.Offset()
	cache := d.U32()
	d.Skip(4)
	scratch := d.Bytes(16)
	if err := d.Err(); err != nil {
		return nil, err
	}
	sb.RootBTree, sb.RootHeap = binary.Undefined, binary.Undefined
	if cache == 1 {
		sd := binary.NewDecoder(scratch, sz)
		sb.RootBTree = sd.Offset()
		sb.RootHeap = sd.Offset()
	}
	return sb, nil
}

func decodeV2(buf []byte, version uint8) (*Superblock, error) {
	if len(buf) < 12 {
		return nil, binary.ErrTruncated
	}
	sz := binary.Sizes{Offset: int(buf[9]), Length: int(buf[10])}
	if !sz.Valid() {
		return nil, fmt.Errorf("invalid address widths %d/%d", sz.Offset, sz.Length)
	}
	d := binary.NewDecoder(buf, sz)
	d.Skip(12)
	d.Offset() // base address
	d.Offset() // superblock extension
	sb := &Superblock{
		Version:   version,
		Sizes:     sz,
		EOF:       d.Offset(),
		Root:      d.Offset(),
		RootBTree: binary.Undefined,
		RootHeap:  binary.Undefined,
	}
	end := d.Pos()
	sum := d.U32()
	if err := d.Err(); err != nil {
		return nil, err
	}
	if got := binary.Lookup3(buf[:end]); got != sum {
		return nil, fmt.Errorf("superblock checksum %#08x, stored %#08x", got, sum)
	}
	return sb, nil
}

// Size returns the encoded size of a superblock of the given version.
func Size(version uint8, sz binary.Sizes) int {
	if version >= 2 {
		return 12 + 4*sz.Offset + 4
	}
	// Fixed part, four addresses, then the root symbol table entry.
	return 24 + 4*sz.Offset + 2*sz.Offset + 8 + 16
}

// Encode serializes sb as version 0 or version 3.
func (sb *Superblock) Encode() []byte {
	e := binary.NewEncoder(sb.Sizes)
	e.Raw([]byte(Signature))
	if sb.Version >= 2 {
		e.U8(3)
		e.U8(uint8(sb.Sizes.Offset))
		e.U8(uint8(sb.Sizes.Length))
		e.U8(0)
		e.Offset(0)
		e.Offset(binary.Undefined)
		e.Offset(sb.EOF)
		e.Offset(sb.Root)
		e.Checksum(0)
		return e.Bytes()
	}

	e.Raw([]byte{0, 0, 0, 0, 0})
	e.U8(uint8(sb.Sizes.Offset))
	e.U8(uint8(sb.Sizes.Length))
	e.U8(0)
	e.U16(sb.LeafK)
	e.U16(sb.InternalK)
	e.U32(0)
	e.Offset(0)
	e.Offset(binary.Undefined)
	e.Offset(sb.EOF)
	e.Offset(binary.Undefined)

	e.Offset(0)
	e.Offset(sb.Root)
	e.U32(1)
	e.U32(0)
	e.Offset(sb.RootBTree)
	e.Offset(sb.RootHeap)
	e.Zeros(16 - 2*sb.Sizes.Offset)
	return e.Bytes()
}
