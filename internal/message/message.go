// Package message decodes and encodes the header messages that describe
// HDF5 objects: dataspaces, datatypes, layouts, filter pipelines,
// attributes, links and the group bookkeeping messages.
//
// Object headers hand messages over as [Raw] values. [Decode] turns the
// kinds this module understands into typed values and ignores the rest.
package message

import (
	"fmt"

	"github.com/robert-malhotra/h5export/internal/binary"
)

// Type identifies a header message.
type Type uint16

const (
	TypeNil            Type = 0x00
	TypeDataspace      Type = 0x01
	TypeLinkInfo       Type = 0x02
	TypeDatatype       Type = 0x03
	TypeFillValueOld   Type = 0x04
	TypeFillValue      Type = 0x05
	TypeLink           Type = 0x06
	TypeExternalFiles  Type = 0x07
	TypeLayout         Type = 0x08
	TypeGroupInfo      Type = 0x0A
	TypeFilterPipeline Type = 0x0B
	TypeAttribute      Type = 0x0C
	TypeComment        Type = 0x0D
	TypeContinuation   Type = 0x10
	TypeSymbolTable    Type = 0x11
	TypeModTime        Type = 0x12
	TypeAttributeInfo  Type = 0x15
)

var typeNames = map[Type]string{
	TypeNil:            "nil",
	TypeDataspace:      "dataspace",
	TypeLinkInfo:       "link info",
	TypeDatatype:       "datatype",
	TypeFillValueOld:   "fill value (old)",
	TypeFillValue:      "fill value",
	TypeLink:           "link",
	TypeExternalFiles:  "external files",
	TypeLayout:         "layout",
	TypeGroupInfo:      "group info",
	TypeFilterPipeline: "filter pipeline",
	TypeAttribute:      "attribute",
	TypeComment:        "comment",
	TypeContinuation:   "continuation",
	TypeSymbolTable:    "symbol table",
	TypeModTime:        "modification time",
	TypeAttributeInfo:  "attribute info",
}

// String names the message type.
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("message 0x%04x", uint16(t))
}

// FlagShared marks a message stored in the shared message heap or another
// object header.
const FlagShared = 0x02

// Raw is an undecoded message as it appears in an object header.
type Raw struct {
	Type  Type
	Flags uint8
	Data  []byte
}

// Message is a decoded header message.
type Message interface {
	Type() Type
}

// Encoder is a message that can be written into a header.
type Encoder interface {
	Message
	Encode(e *binary.Encoder)
}

// Decode converts raw into a typed message. Types this package does not
// model decode to nil without error.
func Decode(raw Raw, sz binary.Sizes) (Message, error) {
	if raw.Flags&FlagShared != 0 {
		return nil, fmt.Errorf("%s: shared messages are not supported", raw.Type)
	}
	d := binary.NewDecoder(raw.Data, sz)
	var (
		m   Message
		err error
	)
	switch raw.Type {
	case TypeDataspace:
		m, err = decodeDataspace(d)
	case TypeDatatype:
		m, err = DecodeDatatype(d)
	case TypeLayout:
		m, err = decodeLayout(d)
	case TypeFilterPipeline:
		m, err = decodeFilterPipeline(d)
	case TypeAttribute:
		m, err = decodeAttribute(d)
	case TypeLink:
		m, err = decodeLink(d)
	case TypeLinkInfo:
		m = decodeLinkInfo(d)
	case TypeSymbolTable:
		m = &SymbolTable{BTree: d.Offset(), Heap: d.Offset()}
	case TypeContinuation:
		m = &Continuation{Address: d.Offset(), Length: d.Length()}
	default:
		return nil, nil
	}
	if err == nil {
		err = d.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", raw.Type, err)
	}
	return m, nil
}

// Encode serializes m into a raw message.
func Encode(m Encoder, sz binary.Sizes) Raw {
	e := binary.NewEncoder(sz)
	m.Encode(e)
	return Raw{Type: m.Type(), Data: e.Bytes()}
}

// Continuation points at another chunk of the same object header.
type Continuation struct {
	Address uint64
	Length  uint64
}

func (*Continuation) Type() Type { return TypeContinuation }

// Encode writes the block address and length.
func (m *Continuation) Encode(e *binary.Encoder) {
	e.Offset(m.Address)
	e.Length(m.Length)
}

// SymbolTable marks an old-style group: its members live in a v1 B-tree
// whose keys are names in a local heap.
type SymbolTable struct {
	BTree uint64
	Heap  uint64
}

func (*SymbolTable) Type() Type { return TypeSymbolTable }

// Encode writes the B-tree and local heap addresses.
func (m *SymbolTable) Encode(e *binary.Encoder) {
	e.Offset(m.BTree)
	e.Offset(m.Heap)
}
