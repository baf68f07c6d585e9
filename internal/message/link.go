package message

import (
	"fmt"

	"github.com/robert-malhotra/h5export/internal/binary"
)

// LinkKind is the target kind of a link message.
type LinkKind uint8

const (
	LinkHard     LinkKind = 0
	LinkSoft     LinkKind = 1
	LinkExternal LinkKind = 64
)

func (k LinkKind) String() string {
	switch k {
	case LinkHard:
		return "hard"
	case LinkSoft:
		return "soft"
	case LinkExternal:
		return "external"
	}
	return fmt.Sprintf("link type %d", uint8(k))
}

// Link names one member of a new-style group.
type Link struct {
	Kind LinkKind
	Name string
	// Address of the target object header, for hard links.
	Address uint64
	// Target path, for soft links.
	Target string
}

func (*Link) Type() Type { return TypeLink }

func decodeLink(d *binary.Decoder) (*Link, error) {
	if v := d.U8(); v != 1 {
		return nil, fmt.Errorf("unsupported link version %d", v)
	}
	flags := d.U8()
	m := &Link{}
	if flags&0x08 != 0 {
		m.Kind = LinkKind(d.U8())
	}
	if flags&0x04 != 0 {
		d.Skip(8) // creation order
	}
	if flags&0x10 != 0 {
		d.Skip(1) // name charset
	}
	nameLen := int(d.Uint(1 << (flags & 0x03)))
	m.Name = string(d.Bytes(nameLen))

	switch m.Kind {
	case LinkHard:
		m.Address = d.Offset()
	case LinkSoft:
		m.Target = string(d.Bytes(int(d.U16())))
	default:
		// External and user-defined links carry opaque data.
		d.Skip(int(d.U16()))
	}
	return m, nil
}

// Encode writes a hard or soft link.
func (m *Link) Encode(e *binary.Encoder) {
	var flags uint8
	width := 1
	for len(m.Name)>>(8*uint(width)) != 0 && width < 8 {
		width *= 2
		flags++
	}
	if m.Kind != LinkHard {
		flags |= 0x08
	}
	e.U8(1)
	e.U8(flags)
	if m.Kind != LinkHard {
		e.U8(uint8(m.Kind))
	}
	e.Uint(uint64(len(m.Name)), width)
	e.Raw([]byte(m.Name))
	switch m.Kind {
	case LinkHard:
		e.Offset(m.Address)
	case LinkSoft:
		e.U16(uint16(len(m.Target)))
		e.Raw([]byte(m.Target))
	}
}

// LinkInfo accompanies link messages in a new-style group. A defined
// Heap means links are in dense storage rather than in the header.
type LinkInfo struct {
	Heap      uint64
	NameIndex uint64
}

func (*LinkInfo) Type() Type { return TypeLinkInfo }

// Dense reports whether the group's links live in a fractal heap.
func (m *LinkInfo) Dense() bool { return m.Heap != binary.Undefined }

func decodeLinkInfo(d *binary.Decoder) *LinkInfo {
	d.U8() // version
	flags := d.U8()
	if flags&0x01 != 0 {
		d.Skip(8) // max creation index
	}
	return &LinkInfo{Heap: d.Offset(), NameIndex: d.Offset()}
}

// Encode writes a link info message without creation order.
func (m *LinkInfo) Encode(e *binary.Encoder) {
	e.U8(0)
	e.U8(0)
	e.Offset(m.Heap)
	e.Offset(m.NameIndex)
}

// EmptyLinkInfo is the link info of a group whose links are all compact.
func EmptyLinkInfo() *LinkInfo {
	return &LinkInfo{Heap: binary.Undefined, NameIndex: binary.Undefined}
}

// GroupInfo is written with default settings; readers only need its presence.
type GroupInfo struct{}

func (*GroupInfo) Type() Type { return TypeGroupInfo }

// Encode writes a group info message that stores no optional fields.
func (*GroupInfo) Encode(e *binary.Encoder) {
	e.U8(0)
	e.U8(0)
}
