package message

import (
	"fmt"

	"github.com/robert-malhotra/h5export/internal/binary"
)

// Registered filter identifiers.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6
	FilterLZ4         uint16 = 32004
	FilterZstd        uint16 = 32015
)

// FilterInfo is one stage of a filter pipeline.
type FilterInfo struct {
	ID         uint16
	Name       string
	Flags      uint16
	ClientData []uint32
}

// FilterOptional marks a stage that may be skipped when it fails or is
// unavailable.
const FilterOptional uint16 = 0x01

func (f FilterInfo) IsOptional() bool { return f.Flags&FilterOptional != 0 }

// FilterPipeline lists the filters applied to every chunk, in write order.
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (*FilterPipeline) Type() Type { return TypeFilterPipeline }

func decodeFilterPipeline(d *binary.Decoder) (*FilterPipeline, error) {
	m := &FilterPipeline{Version: d.U8()}
	n := int(d.U8())
	switch m.Version {
	case 1:
		d.Skip(6)
	case 2:
	default:
		return nil, fmt.Errorf("unsupported filter pipeline version %d", m.Version)
	}
	for i := 0; i < n && d.Err() == nil; i++ {
		f := FilterInfo{ID: d.U16()}
		nameLen := 0
		if m.Version == 1 || f.ID >= 256 {
			nameLen = int(d.U16())
		}
		f.Flags = d.U16()
		nvals := int(d.U16())
		if nameLen > 0 {
			name := d.Bytes(nameLen)
			f.Name = trimNUL(name)
			if m.Version == 1 {
				d.Skip(pad8(nameLen))
			}
		}
		f.ClientData = make([]uint32, nvals)
		for j := range f.ClientData {
			f.ClientData[j] = d.U32()
		}
		if m.Version == 1 && nvals%2 == 1 {
			d.Skip(4)
		}
		m.Filters = append(m.Filters, f)
	}
	return m, nil
}

// Encode writes version 1 when Version is 1 and version 2 otherwise.
func (m *FilterPipeline) Encode(e *binary.Encoder) {
	if m.Version == 1 {
		e.U8(1)
		e.U8(uint8(len(m.Filters)))
		e.Zeros(6)
	} else {
		e.U8(2)
		e.U8(uint8(len(m.Filters)))
	}
	for _, f := range m.Filters {
		e.U16(f.ID)
		withName := f.Name != "" && (m.Version == 1 || f.ID >= 256)
		if m.Version == 1 || f.ID >= 256 {
			n := 0
			if withName {
				n = len(f.Name) + 1
				if m.Version == 1 {
					n += pad8(n)
				}
			}
			e.U16(uint16(n))
		}
		e.U16(f.Flags)
		e.U16(uint16(len(f.ClientData)))
		if withName {
			start := e.Len()
			e.CString(f.Name)
			if m.Version == 1 {
				e.Zeros(pad8(e.Len() - start))
			}
		}
		for _, v := range f.ClientData {
			e.U32(v)
		}
		if m.Version == 1 && len(f.ClientData)%2 == 1 {
			e.U32(0)
		}
	}
}

// pad8 is the padding that brings n up to a multiple of eight.
func pad8(n int) int {
	return (8 - n%8) % 8
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
