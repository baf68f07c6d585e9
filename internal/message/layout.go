package message

import (
	"fmt"

	"github.com/robert-malhotra/h5export/internal/binary"
)

// LayoutClass says where a dataset's raw data lives.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

func (c LayoutClass) String() string {
	switch c {
	case LayoutCompact:
		return "compact"
	case LayoutContiguous:
		return "contiguous"
	case LayoutChunked:
		return "chunked"
	case LayoutVirtual:
		return "virtual"
	}
	return fmt.Sprintf("layout class %d", uint8(c))
}

// ChunkIndex is the structure that maps chunk coordinates to addresses.
type ChunkIndex uint8

const (
	// IndexBTreeV1 is implied by layout versions 1 to 3.
	IndexBTreeV1         ChunkIndex = 0
	IndexSingle          ChunkIndex = 1
	IndexImplicit        ChunkIndex = 2
	IndexFixedArray      ChunkIndex = 3
	IndexExtensibleArray ChunkIndex = 4
	IndexBTreeV2         ChunkIndex = 5
)

func (i ChunkIndex) String() string {
	switch i {
	case IndexBTreeV1:
		return "v1 B-tree"
	case IndexSingle:
		return "single chunk"
	case IndexImplicit:
		return "implicit"
	case IndexFixedArray:
		return "fixed array"
	case IndexExtensibleArray:
		return "extensible array"
	case IndexBTreeV2:
		return "v2 B-tree"
	}
	return fmt.Sprintf("chunk index %d", uint8(i))
}

// Layout is the data layout message.
type Layout struct {
	Version uint8
	Class   LayoutClass

	// Compact.
	Data []byte

	// Contiguous. Versions 1 and 2 do not store Size; it is zero.
	Address uint64
	Size    uint64

	// Chunked. Chunk excludes the trailing element-size dimension, which is
	// kept in ElemSize.
	Chunk     []uint32
	ElemSize  uint32
	Index     ChunkIndex
	IndexAddr uint64
	// Single-chunk index with filters applied.
	FilteredSize uint64
	FilterMask   uint32
	// Fixed array page bits.
	PageBits uint8
}

func (*Layout) Type() Type { return TypeLayout }

func decodeLayout(d *binary.Decoder) (*Layout, error) {
	m := &Layout{Version: d.U8()}
	switch m.Version {
	case 1, 2:
		return m, m.decodeV1(d)
	case 3, 4:
		return m, m.decodeV3(d)
	}
	return nil, fmt.Errorf("unsupported layout version %d", m.Version)
}

func (m *Layout) decodeV1(d *binary.Decoder) error {
	ndims := int(d.U8())
	m.Class = LayoutClass(d.U8())
	d.Skip(5)
	if m.Class != LayoutCompact {
		m.Address = d.Offset()
	}
	dims := make([]uint32, ndims)
	for i := range dims {
		dims[i] = d.U32()
	}
	switch m.Class {
	case LayoutChunked:
		m.IndexAddr = m.Address
		m.Address = 0
		m.splitChunk(dims)
	case LayoutCompact:
		m.Data = d.Bytes(int(d.U32()))
	case LayoutContiguous:
	default:
		return fmt.Errorf("unsupported %s in layout version %d", m.Class, m.Version)
	}
	return nil
}

func (m *Layout) decodeV3(d *binary.Decoder) error {
	m.Class = LayoutClass(d.U8())
	switch m.Class {
	case LayoutCompact:
		m.Data = d.Bytes(int(d.U16()))
	case LayoutContiguous:
		m.Address = d.Offset()
		m.Size = d.Length()
	case LayoutChunked:
		if m.Version == 3 {
			ndims := int(d.U8())
			m.IndexAddr = d.Offset()
			dims := make([]uint32, ndims)
			for i := range dims {
				dims[i] = d.U32()
			}
			m.splitChunk(dims)
			return nil
		}
		return m.decodeV4Chunked(d)
	default:
		return fmt.Errorf("%s datasets are not supported", m.Class)
	}
	return nil
}

func (m *Layout) decodeV4Chunked(d *binary.Decoder) error {
	flags := d.U8()
	ndims := int(d.U8())
	width := int(d.U8())
	dims := make([]uint32, ndims)
	for i := range dims {
		dims[i] = uint32(d.Uint(width))
	}
	m.splitChunk(dims)
	m.Index = ChunkIndex(d.U8())
	switch m.Index {
	case IndexSingle:
		if flags&0x02 != 0 {
			m.FilteredSize = d.Length()
			m.FilterMask = d.U32()
		}
	case IndexImplicit:
	case IndexFixedArray:
		m.PageBits = d.U8()
	case IndexExtensibleArray:
		d.Skip(5)
	case IndexBTreeV2:
		d.Skip(6)
	default:
		return fmt.Errorf("unknown chunk index type %d", m.Index)
	}
	m.IndexAddr = d.Offset()
	return nil
}

func (m *Layout) splitChunk(dims []uint32) {
	if len(dims) == 0 {
		return
	}
	m.Chunk = dims[:len(dims)-1]
	m.ElemSize = dims[len(dims)-1]
}

// Encode writes version 3, except chunked layouts with a non-B-tree index,
// which need version 4.
func (m *Layout) Encode(e *binary.Encoder) {
	v4 := m.Class == LayoutChunked && m.Index != IndexBTreeV1
	if v4 {
		e.U8(4)
	} else {
		e.U8(3)
	}
	e.U8(uint8(m.Class))
	switch m.Class {
	case LayoutCompact:
		e.U16(uint16(len(m.Data)))
		e.Raw(m.Data)
	case LayoutContiguous:
		e.Offset(m.Address)
		e.Length(m.Size)
	case LayoutChunked:
		dims := append(append([]uint32(nil), m.Chunk...), m.ElemSize)
		if !v4 {
			e.U8(uint8(len(dims)))
			e.Offset(m.IndexAddr)
			for _, v := range dims {
				e.U32(v)
			}
			return
		}
		var flags uint8
		if m.Index == IndexSingle && m.FilteredSize > 0 {
			flags |= 0x02
		}
		width := dimWidth(dims)
		e.U8(flags)
		e.U8(uint8(len(dims)))
		e.U8(uint8(width))
		for _, v := range dims {
			e.Uint(uint64(v), width)
		}
		e.U8(uint8(m.Index))
		switch m.Index {
		case IndexSingle:
			if flags&0x02 != 0 {
				e.Length(m.FilteredSize)
				e.U32(m.FilterMask)
			}
		case IndexFixedArray:
			e.U8(m.PageBits)
		}
		e.Offset(m.IndexAddr)
	}
}

// dimWidth is the smallest byte width that holds every dimension.
func dimWidth(dims []uint32) int {
	w := 1
	for _, v := range dims {
		for v>>(8*uint(w)) != 0 {
			w++
		}
	}
	return w
}
