package message

import (
	"fmt"

	"github.com/robert-malhotra/h5export/internal/binary"
)

// SpaceKind distinguishes scalar, simple and null dataspaces.
type SpaceKind uint8

const (
	SpaceScalar SpaceKind = 0
	SpaceSimple SpaceKind = 1
	SpaceNull   SpaceKind = 2
)

// Dataspace gives the shape of a dataset or attribute.
type Dataspace struct {
	// Version selects the encoding: 1 for legacy files, 2 otherwise.
	Version uint8
	Kind    SpaceKind
	Dims    []uint64
	MaxDims []uint64
}

func (*Dataspace) Type() Type { return TypeDataspace }

// NumElements returns the element count: 1 for scalars, 0 for null spaces.
func (m *Dataspace) NumElements() uint64 {
	switch m.Kind {
	case SpaceNull:
		return 0
	case SpaceScalar:
		return 1
	}
	n := uint64(1)
	for _, d := range m.Dims {
		n *= d
	}
	return n
}

// Simple returns a version 2 dataspace with the given dimensions.
func Simple(dims ...uint64) *Dataspace {
	return &Dataspace{Version: 2, Kind: SpaceSimple, Dims: dims}
}

// Scalar returns a version 2 scalar dataspace.
func Scalar() *Dataspace {
	return &Dataspace{Version: 2, Kind: SpaceScalar}
}

func decodeDataspace(d *binary.Decoder) (*Dataspace, error) {
	m := &Dataspace{Version: d.U8()}
	rank := int(d.U8())
	flags := d.U8()
	switch m.Version {
	case 1:
		d.Skip(5)
		m.Kind = SpaceSimple
		if rank == 0 {
			m.Kind = SpaceScalar
		}
	case 2:
		m.Kind = SpaceKind(d.U8())
		if m.Kind > SpaceNull {
			return nil, fmt.Errorf("unknown dataspace type %d", m.Kind)
		}
	default:
		return nil, fmt.Errorf("unsupported dataspace version %d", m.Version)
	}
	if rank > 32 {
		return nil, fmt.Errorf("dataspace rank %d exceeds 32", rank)
	}
	if rank > 0 {
		m.Dims = make([]uint64, rank)
		for i := range m.Dims {
			m.Dims[i] = d.Length()
		}
		if flags&0x01 != 0 {
			m.MaxDims = make([]uint64, rank)
			for i := range m.MaxDims {
				m.MaxDims[i] = d.Length()
			}
		}
	}
	return m, nil
}

// Encode writes version 1 or 2 by m.Version.
func (m *Dataspace) Encode(e *binary.Encoder) {
	var flags uint8
	if len(m.MaxDims) > 0 {
		flags = 0x01
	}
	if m.Version == 1 {
		e.U8(1)
		e.U8(uint8(len(m.Dims)))
		e.U8(flags)
		e.Zeros(5)
	} else {
		e.U8(2)
		e.U8(uint8(len(m.Dims)))
		e.U8(flags)
		e.U8(uint8(m.Kind))
	}
	for _, v := range m.Dims {
		e.Length(v)
	}
	if flags != 0 {
		for _, v := range m.MaxDims {
			e.Length(v)
		}
	}
}
