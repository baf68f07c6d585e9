package hdf5

import (
	"bytes"
	"fmt"
	"math"

	h5bin "github.com/robert-malhotra/h5export/internal/binary"
	"github.com/robert-malhotra/h5export/internal/heap"
	"github.com/robert-malhotra/h5export/internal/message"
	"github.com/robert-malhotra/h5export/internal/object"
)

// Attribute is a small named value attached to a group or dataset.
type Attribute struct {
	f   *File
	msg *message.Attribute
}

// Name returns the attribute name.
func (a *Attribute) Name() string { return a.msg.Name }

// DtypeName labels the attribute's element type like Dataset.DtypeName.
func (a *Attribute) DtypeName() string { return a.msg.Datatype.Name() }

// Shape is nil for scalar attributes.
func (a *Attribute) Shape() []uint64 {
	if a.msg.Dataspace.Kind != message.SpaceSimple {
		return nil
	}
	return append([]uint64(nil), a.msg.Dataspace.Dims...)
}

// Value decodes the attribute. Scalars decode to string, int64, uint64 or
// float64; arrays to slices of those. A null dataspace yields nil.
func (a *Attribute) Value() (any, error) {
	m := a.msg
	t, space := m.Datatype, m.Dataspace
	if space.Kind == message.SpaceNull {
		return nil, nil
	}
	n, size := int(space.NumElements()), int(t.Size)
	if len(m.Data) < n*size {
		return nil, fmt.Errorf("attribute %q holds %d bytes for %d elements of %d", m.Name, len(m.Data), n, size)
	}
	scalar := space.Kind == message.SpaceScalar

	switch {
	case t.Class == message.ClassString:
		out := make([]string, n)
		for i := range out {
			out[i] = fixedString(m.Data[i*size:(i+1)*size], t.Padding)
		}
		return pick(out, scalar), nil
	case t.IsString():
		out, err := a.varStrings(n, size)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", m.Name, err)
		}
		return pick(out, scalar), nil
	case t.IsNumeric() && t.Class == message.ClassFloat:
		out := make([]float64, n)
		for i := range out {
			out[i] = floatAt(m.Data[i*size:(i+1)*size], t.BigEndian)
		}
		return pick(out, scalar), nil
	case t.IsNumeric() && t.Signed:
		out := make([]int64, n)
		for i := range out {
			out[i] = intAt(m.Data[i*size:(i+1)*size], t.BigEndian)
		}
		return pick(out, scalar), nil
	case t.IsNumeric():
		out := make([]uint64, n)
		for i := range out {
			out[i] = word(m.Data[i*size:(i+1)*size], t.BigEndian)
		}
		return pick(out, scalar), nil
	}
	return nil, fmt.Errorf("attribute %q of type %s: %w", m.Name, t.Name(), ErrUnsupported)
}

// ReadScalarString decodes a scalar string attribute.
func (a *Attribute) ReadScalarString() (string, error) {
	v, err := a.Value()
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("attribute %q is %T, not a scalar string", a.Name(), v)
	}
	return s, nil
}

func (a *Attribute) varStrings(n, size int) ([]string, error) {
	sz := a.f.sizes()
	out := make([]string, n)
	for i := range out {
		v, err := heap.DecodeVarLen(a.msg.Data[i*size:(i+1)*size], sz)
		if err != nil {
			return nil, err
		}
		if v.Len == 0 || v.ID.Collection == 0 || v.ID.Collection == h5bin.Undefined {
			continue
		}
		c, err := a.f.collection(v.ID.Collection)
		if err != nil {
			return nil, err
		}
		obj, err := c.Object(v.ID.Index)
		if err != nil {
			return nil, err
		}
		if uint32(len(obj)) < v.Len {
			return nil, fmt.Errorf("global heap object %d holds %d bytes, want %d", v.ID.Index, len(obj), v.Len)
		}
		out[i] = string(obj[:v.Len])
	}
	return out, nil
}

func pick[T any](vals []T, scalar bool) any {
	if scalar {
		return vals[0]
	}
	return vals
}

func fixedString(b []byte, padding uint8) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if padding == message.PadSpacePad {
		b = bytes.TrimRight(b, " ")
	}
	return string(b)
}

// word reads an unsigned integer of len(b) bytes.
func word(b []byte, big bool) uint64 {
	var v uint64
	for i := range b {
		j := len(b) - 1 - i
		if big {
			j = i
		}
		v = v<<8 | uint64(b[j])
	}
	return v
}

func intAt(b []byte, big bool) int64 {
	shift := 64 - 8*len(b)
	return int64(word(b, big)<<shift) >> shift
}

func floatAt(b []byte, big bool) float64 {
	if len(b) == 4 {
		return float64(math.Float32frombits(uint32(word(b, big))))
	}
	return math.Float64frombits(word(b, big))
}

// attrList is the attribute set of an object, in header order.
type attrList []*Attribute

// Attrs lists attribute names.
func (l attrList) Attrs() []string {
	out := make([]string, len(l))
	for i, a := range l {
		out[i] = a.Name()
	}
	return out
}

// HasAttr reports whether the object carries the named attribute.
func (l attrList) HasAttr(name string) bool { return l.Attr(name) != nil }

// Attr returns the named attribute, or nil.
func (l attrList) Attr(name string) *Attribute {
	for _, a := range l {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

func (f *File) attributes(hdr *object.Header) (attrList, error) {
	sz := f.sizes()
	for _, raw := range hdr.Find(message.TypeAttributeInfo) {
		if denseAttributes(raw.Data, sz) {
			return nil, fmt.Errorf("dense attribute storage: %w", ErrUnsupported)
		}
	}
	msgs, err := hdr.Decoded(message.TypeAttribute, sz)
	if err != nil {
		return nil, err
	}
	out := make(attrList, len(msgs))
	for i, m := range msgs {
		out[i] = &Attribute{f: f, msg: m.(*message.Attribute)}
	}
	return out, nil
}

// denseAttributes reports whether an attribute info message points at a
// fractal heap, which holds attributes outside the header.
func denseAttributes(b []byte, sz h5bin.Sizes) bool {
	d := h5bin.NewDecoder(b, sz)
	d.U8()
	if flags := d.U8(); flags&0x01 != 0 {
		d.U16()
	}
	addr := d.Offset()
	return d.Err() == nil && addr != h5bin.Undefined
}
