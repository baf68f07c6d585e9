package object

import (
	"fmt"
	"io"

	"github.com/robert-malhotra/h5export/internal/binary"
	"github.com/robert-malhotra/h5export/internal/message"
)

// Version 2 header flags.
const (
	flagSizeMask      = 0x03
	flagTrackOrder    = 0x04
	flagPhaseChange   = 0x10
	flagStoreTimes    = 0x20
	maxV2PrefixLength = 4 + 1 + 1 + 16 + 4 + 8
)

func (h *Header) readPrefixV2(r io.ReaderAt, sz binary.Sizes) (chunk, error) {
	buf, err := binary.ReadUpTo(r, h.Address, maxV2PrefixLength)
	if err != nil {
		return chunk{}, err
	}
	d := binary.NewDecoder(buf, sz)
	d.Signature("OHDR")
	if v := d.U8(); d.Err() == nil && v != 2 {
		return chunk{}, fmt.Errorf("unsupported object header version %d", v)
	}
	h.flags = d.U8()
	if h.flags&flagStoreTimes != 0 {
		d.Skip(16)
	}
	if h.flags&flagPhaseChange != 0 {
		d.Skip(4)
	}
	size := d.Uint(1 << (h.flags & flagSizeMask))
	if err := d.Err(); err != nil {
		return chunk{}, err
	}
	skip := d.Pos()
	return chunk{addr: h.Address, size: uint64(skip) + size + 4, skip: skip}, nil
}

func parseV2(buf []byte, sz binary.Sizes, skip int, flags uint8) ([]message.Raw, error) {
	if len(buf) < skip+4 {
		return nil, binary.ErrTruncated
	}
	body := len(buf) - 4
	d := binary.NewDecoder(buf, sz)
	if skip == 4 {
		d.Signature("OCHK")
	}
	d.Seek(body)
	stored := d.U32()
	if err := d.Err(); err != nil {
		return nil, err
	}
	if got := binary.Lookup3(buf[:body]); got != stored {
		return nil, fmt.Errorf("header checksum %#08x, stored %#08x", got, stored)
	}

	head := 4
	if flags&flagTrackOrder != 0 {
		head = 6
	}
	d = binary.NewDecoder(buf[:body], sz)
	d.Seek(skip)
	var out []message.Raw
	// Fewer bytes than a message header left over is a gap.
	for d.Len() >= head {
		raw := message.Raw{Type: message.Type(d.U8())}
		n := int(d.U16())
		raw.Flags = d.U8()
		if head == 6 {
			d.Skip(2)
		}
		raw.Data = d.Bytes(n)
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("%s message: %w", raw.Type, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// EncodeV2 serializes a version 2 header holding msgs in one chunk.
func EncodeV2(msgs []message.Raw, sz binary.Sizes) []byte {
	body := binary.NewEncoder(sz)
	for _, m := range msgs {
		body.U8(uint8(m.Type))
		body.U16(uint16(len(m.Data)))
		body.U8(m.Flags)
		body.Raw(m.Data)
	}

	var flags uint8
	width := 1
	for body.Len()>>(8*uint(width)) != 0 {
		width *= 2
		flags++
	}
	e := binary.NewEncoder(sz)
	e.Raw([]byte("OHDR"))
	e.U8(2)
	e.U8(flags)
	e.Uint(uint64(body.Len()), width)
	e.Raw(body.Bytes())
	e.Checksum(0)
	return e.Bytes()
}
