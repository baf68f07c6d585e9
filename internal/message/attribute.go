package message

import (
	"fmt"

	"github.com/robert-malhotra/h5export/internal/binary"
)

// Attribute is a small named value stored in an object header.
type Attribute struct {
	// Version selects the encoding: 1 pads fields to eight bytes, 3 does not.
	Version   uint8
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	// Data is the raw value; variable-length strings hold global heap IDs.
	Data []byte
}

func (*Attribute) Type() Type { return TypeAttribute }

func decodeAttribute(d *binary.Decoder) (*Attribute, error) {
	m := &Attribute{Version: d.U8()}
	if m.Version < 1 || m.Version > 3 {
		return nil, fmt.Errorf("unsupported attribute version %d", m.Version)
	}
	flags := d.U8()
	if flags&0x03 != 0 && m.Version > 1 {
		return nil, fmt.Errorf("shared attribute datatypes are not supported")
	}
	nameLen := int(d.U16())
	typeLen := int(d.U16())
	spaceLen := int(d.U16())
	if m.Version == 3 {
		d.U8() // name charset
	}

	field := func(n int) []byte {
		b := d.Bytes(n)
		if m.Version == 1 {
			d.Skip(pad8(n))
		}
		return b
	}
	m.Name = trimNUL(field(nameLen))
	typeBuf := field(typeLen)
	spaceBuf := field(spaceLen)
	if err := d.Err(); err != nil {
		return nil, err
	}

	var err error
	if m.Datatype, err = DecodeDatatype(binary.NewDecoder(typeBuf, d.Sizes())); err != nil {
		return nil, fmt.Errorf("attribute %q datatype: %w", m.Name, err)
	}
	if m.Dataspace, err = decodeDataspace(binary.NewDecoder(spaceBuf, d.Sizes())); err != nil {
		return nil, fmt.Errorf("attribute %q dataspace: %w", m.Name, err)
	}

	size := int(m.Dataspace.NumElements()) * int(m.Datatype.Size)
	m.Data = d.Bytes(size)
	return m, nil
}

// Encode writes the version set in m.Version, 1 or 3.
func (m *Attribute) Encode(e *binary.Encoder) {
	sub := func(enc Encoder) []byte {
		se := binary.NewEncoder(e.Sizes())
		enc.Encode(se)
		return se.Bytes()
	}
	typeBuf := sub(m.Datatype)
	spaceBuf := sub(m.Dataspace)
	name := append([]byte(m.Name), 0)

	legacy := m.Version == 1
	if legacy {
		e.U8(1)
	} else {
		e.U8(3)
	}
	e.U8(0)
	e.U16(uint16(len(name)))
	e.U16(uint16(len(typeBuf)))
	e.U16(uint16(len(spaceBuf)))
	if !legacy {
		e.U8(CharsetASCII)
	}
	for _, b := range [][]byte{name, typeBuf, spaceBuf} {
		e.Raw(b)
		if legacy {
			e.Zeros(pad8(len(b)))
		}
	}
	e.Raw(m.Data)
}
