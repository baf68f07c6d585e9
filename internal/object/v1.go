package object

import (
	"fmt"
	"io"

	"github.com/robert-malhotra/h5export/internal/binary"
	"github.com/robert-malhotra/h5export/internal/message"
)

// v1PrefixSize covers version, reserved, message count, reference count,
// chunk size and the padding that aligns the first message.
const v1PrefixSize = 16

func (h *Header) readPrefixV1(r io.ReaderAt) (chunk, error) {
	buf, err := binary.ReadAt(r, h.Address, v1PrefixSize)
	if err != nil {
		return chunk{}, err
	}
	d := binary.NewDecoder(buf, binary.Default)
	d.Skip(8)
	size := d.U32()
	return chunk{addr: h.Address + v1PrefixSize, size: uint64(size)}, d.Err()
}

func parseV1(buf []byte, sz binary.Sizes) ([]message.Raw, error) {
	d := binary.NewDecoder(buf, sz)
	var out []message.Raw
	for d.Len() >= 8 {
		raw := message.Raw{Type: message.Type(d.U16())}
		n := int(d.U16())
		raw.Flags = d.U8()
		d.Skip(3)
		raw.Data = d.Bytes(n)
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("%s message: %w", raw.Type, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// EncodeV1 serializes a version 1 header holding msgs in one chunk.
func EncodeV1(msgs []message.Raw, sz binary.Sizes) []byte {
	body := binary.NewEncoder(sz)
	for _, m := range msgs {
		n := len(m.Data) + (8-len(m.Data)%8)%8
		body.U16(uint16(m.Type))
		body.U16(uint16(n))
		body.U8(m.Flags)
		body.Zeros(3)
		body.Raw(m.Data)
		body.Pad(8)
	}

	e := binary.NewEncoder(sz)
	e.U8(1)
	e.U8(0)
	e.U16(uint16(len(msgs)))
	e.U32(1)
	e.U32(uint32(body.Len()))
	e.Zeros(4)
	e.Raw(body.Bytes())
	return e.Bytes()
}
