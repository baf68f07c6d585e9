package message

import (
	"fmt"

	"github.com/robert-malhotra/h5export/internal/binary"
)

// Class is a datatype class.
type Class uint8

const (
	ClassFixed Class = iota
	ClassFloat
	ClassTime
	ClassString
	ClassBitfield
	ClassOpaque
	ClassCompound
	ClassReference
	ClassEnum
	ClassVarLen
	ClassArray
)

var classNames = [...]string{
	"integer", "float", "time", "string", "bitfield", "opaque",
	"compound", "reference", "enum", "vlen", "array",
}

// String returns the class name used in errors and reports.
func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class %d", uint8(c))
}

// String padding.
const (
	PadNullTerm  = 0
	PadNullPad   = 1
	PadSpacePad  = 2
	CharsetASCII = 0
	CharsetUTF8  = 1
)

// Datatype describes the element type of a dataset or attribute. Only the
// numeric and string classes are modelled in detail; other classes keep
// their class and size so they can be named and skipped.
type Datatype struct {
	Version   uint8
	Class     Class
	Size      uint32
	BigEndian bool
	Signed    bool
	// Strings.
	Padding   uint8
	Charset   uint8
	VarString bool
	// Base is the parent type of variable-length, enum and array types.
	Base *Datatype
}

func (*Datatype) Type() Type { return TypeDatatype }

// Name is a short numpy-like label: int32, uint8, float64, string, ...
func (t *Datatype) Name() string {
	switch t.Class {
	case ClassFixed:
		if t.Signed {
			return fmt.Sprintf("int%d", t.Size*8)
		}
		return fmt.Sprintf("uint%d", t.Size*8)
	case ClassFloat:
		return fmt.Sprintf("float%d", t.Size*8)
	case ClassString:
		return "string"
	case ClassVarLen:
		if t.VarString {
			return "string"
		}
	}
	return t.Class.String()
}

// IsNumeric reports whether values can be widened to float64.
func (t *Datatype) IsNumeric() bool {
	switch t.Class {
	case ClassFixed:
		return t.Size == 1 || t.Size == 2 || t.Size == 4 || t.Size == 8
	case ClassFloat:
		return t.Size == 4 || t.Size == 8
	}
	return false
}

// IsString reports whether values decode to Go strings.
func (t *Datatype) IsString() bool {
	return t.Class == ClassString || (t.Class == ClassVarLen && t.VarString)
}

// DecodeDatatype reads one datatype, including any nested base type, from d.
func DecodeDatatype(d *binary.Decoder) (*Datatype, error) {
	head := d.U8()
	bits := uint32(d.Uint(3))
	t := &Datatype{
		Version: head >> 4,
		Class:   Class(head & 0x0f),
		Size:    d.U32(),
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	if t.Version < 1 || t.Version > 4 {
		return nil, fmt.Errorf("unsupported datatype version %d", t.Version)
	}

	switch t.Class {
	case ClassFixed:
		t.BigEndian = bits&0x01 != 0
		t.Signed = bits&0x08 != 0
		d.Skip(4) // bit offset, precision
	case ClassFloat:
		t.BigEndian = bits&0x01 != 0
		if bits&0x40 != 0 {
			return nil, fmt.Errorf("VAX floating point is not supported")
		}
		d.Skip(12)
	case ClassString:
		t.Padding = uint8(bits & 0x0f)
		t.Charset = uint8(bits >> 4 & 0x0f)
	case ClassVarLen:
		t.VarString = bits&0x0f == 1
		t.Padding = uint8(bits >> 4 & 0x0f)
		t.Charset = uint8(bits >> 8 & 0x0f)
		base, err := DecodeDatatype(d)
		if err != nil {
			return nil, fmt.Errorf("vlen base: %w", err)
		}
		t.Base = base
	case ClassEnum:
		base, err := DecodeDatatype(d)
		if err != nil {
			return nil, fmt.Errorf("enum base: %w", err)
		}
		t.Base = base
	}
	// Remaining classes carry properties this package does not read. Their
	// messages are size-delimited, so leaving them unconsumed is safe.
	return t, d.Err()
}

// Int returns a little-endian integer type of size bytes.
func Int(size uint32, signed bool) *Datatype {
	return &Datatype{Version: 1, Class: ClassFixed, Size: size, Signed: signed}
}

// Float returns a little-endian IEEE float type of 4 or 8 bytes.
func Float(size uint32) *Datatype {
	return &Datatype{Version: 1, Class: ClassFloat, Size: size}
}

// FixedString returns a NUL-terminated ASCII string type of n bytes.
func FixedString(n uint32) *Datatype {
	return &Datatype{Version: 1, Class: ClassString, Size: n, Padding: PadNullTerm}
}

// VarString returns the variable-length UTF-8 string type h5py uses for
// Python str attributes.
func VarString(sz binary.Sizes) *Datatype {
	return &Datatype{
		Version:   1,
		Class:     ClassVarLen,
		Size:      uint32(4 + sz.Offset + 4),
		VarString: true,
		Padding:   PadNullTerm,
		Charset:   CharsetUTF8,
		Base:      Int(1, false),
	}
}

// IEEE layouts: bit offset, precision, exponent location and size,
// mantissa location and size, exponent bias.
var floatProps = map[uint32][]byte{
	4: {0, 0, 32, 0, 23, 8, 0, 23, 127, 0, 0, 0},
	8: {0, 0, 64, 0, 52, 11, 0, 52, 0xff, 0x03, 0, 0},
}

// Encode writes fixed-point, float, string and variable-length types.
func (t *Datatype) Encode(e *binary.Encoder) {
	var bits uint32
	if t.BigEndian {
		bits |= 0x01
	}
	switch t.Class {
	case ClassFixed:
		if t.Signed {
			bits |= 0x08
		}
	case ClassFloat:
		// Implied mantissa MSB, sign bit position in the second byte.
		bits |= 0x20 | (t.Size*8-1)<<8
	case ClassString:
		bits = uint32(t.Padding) | uint32(t.Charset)<<4
	case ClassVarLen:
		bits = uint32(t.Padding)<<4 | uint32(t.Charset)<<8
		if t.VarString {
			bits |= 0x01
		}
	}
	version := t.Version
	if version == 0 {
		version = 1
	}
	e.U8(version<<4 | uint8(t.Class))
	e.Uint(uint64(bits), 3)
	e.U32(t.Size)

	switch t.Class {
	case ClassFixed:
		e.U16(0)
		e.U16(uint16(t.Size * 8))
	case ClassFloat:
		props, ok := floatProps[t.Size]
		if !ok {
			props = make([]byte, 12)
		}
		e.Raw(props)
	case ClassVarLen:
		base := t.Base
		if base == nil {
			base = Int(1, false)
		}
		base.Encode(e)
	}
}
