// Package object reads and writes HDF5 object headers: the message lists
// that describe every group and dataset.
//
// Version 1 headers (legacy files) start with a version byte and keep
// messages 8-byte aligned. Version 2 headers start with "OHDR" and end each
// chunk with a lookup3 checksum. Both may spill into continuation chunks.
package object

import (
	"fmt"
	"io"

	"github.com/robert-malhotra/h5export/internal/binary"
	"github.com/robert-malhotra/h5export/internal/message"
)

// maxChunks bounds continuation chasing in corrupt files.
const maxChunks = 4096

// Header is a decoded object header.
type Header struct {
	Address  uint64
	Version  uint8
	Messages []message.Raw

	flags uint8 // version 2 header flags
}

// Find returns the raw messages of type t, in header order.
func (h *Header) Find(t message.Type) []message.Raw {
	var out []message.Raw
	for _, m := range h.Messages {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Decoded decodes every message of type t. Types the message package does
// not model are skipped.
func (h *Header) Decoded(t message.Type, sz binary.Sizes) ([]message.Message, error) {
	var out []message.Message
	for _, raw := range h.Find(t) {
		m, err := message.Decode(raw, sz)
		if err != nil {
			return nil, fmt.Errorf("object at %d: %w", h.Address, err)
		}
		if m != nil {
			out = append(out, m)
		}
	}
	return out, nil
}

// First decodes the first message of type t, or returns nil if none.
func (h *Header) First(t message.Type, sz binary.Sizes) (message.Message, error) {
	raws := h.Find(t)
	if len(raws) == 0 {
		return nil, nil
	}
	m, err := message.Decode(raws[0], sz)
	if err != nil {
		return nil, fmt.Errorf("object at %d: %w", h.Address, err)
	}
	return m, nil
}

// chunk is one contiguous piece of a header. skip is the length of the
// prefix before the first message.
type chunk struct {
	addr, size uint64
	skip       int
}

// Read loads the object header at addr, following continuations.
func Read(r io.ReaderAt, addr uint64, sz binary.Sizes) (*Header, error) {
	prefix, err := binary.ReadUpTo(r, addr, 4)
	if err != nil {
		return nil, err
	}
	h := &Header{Address: addr}
	var first chunk
	switch {
	case string(prefix) == "OHDR":
		h.Version = 2
		first, err = h.readPrefixV2(r, sz)
	case len(prefix) > 0 && prefix[0] == 1:
		h.Version = 1
		first, err = h.readPrefixV1(r)
	default:
		err = fmt.Errorf("no object header")
	}
	if err != nil {
		return nil, fmt.Errorf("object at %d: %w", addr, err)
	}

	queue := []chunk{first}
	seen := map[uint64]bool{}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if seen[c.addr] || len(seen) >= maxChunks {
			return nil, fmt.Errorf("object at %d: continuation loop at %d", addr, c.addr)
		}
		seen[c.addr] = true

		buf, err := binary.ReadAt(r, c.addr, int(c.size))
		if err != nil {
			return nil, fmt.Errorf("object at %d: chunk at %d: %w", addr, c.addr, err)
		}
		var raws []message.Raw
		if h.Version == 1 {
			raws, err = parseV1(buf, sz)
		} else {
			raws, err = parseV2(buf, sz, c.skip, h.flags)
		}
		if err != nil {
			return nil, fmt.Errorf("object at %d: chunk at %d: %w", addr, c.addr, err)
		}
		for _, raw := range raws {
			switch raw.Type {
			case message.TypeContinuation:
				m, err := message.Decode(raw, sz)
				if err != nil {
					return nil, fmt.Errorf("object at %d: %w", addr, err)
				}
				cont := m.(*message.Continuation)
				next := chunk{addr: cont.Address, size: cont.Length}
				if h.Version == 2 {
					next.skip = 4
				}
				queue = append(queue, next)
			case message.TypeNil:
			default:
				h.Messages = append(h.Messages, raw)
			}
		}
	}
	return h, nil
}
