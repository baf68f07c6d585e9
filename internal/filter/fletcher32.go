package filter

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	binpkg "github.com/robert-malhotra/h5export/internal/binary"
	"github.com/robert-malhotra/h5export/internal/message"
)

// Fletcher32 appends a checksum to each chunk and verifies it on read.
type Fletcher32 struct{}

// NewFletcher32 takes no client data.
func NewFletcher32([]uint32) *Fletcher32 { return &Fletcher32{} }

func (*Fletcher32) ID() uint16 { return message.FilterFletcher32 }

func (*Fletcher32) Encode(input []byte) ([]byte, error) {
	out := append([]byte(nil), input...)
	return binary.LittleEndian.AppendUint32(out, binpkg.Fletcher32(input)), nil
}

// Decode verifies and strips the trailing checksum.
func (*Fletcher32) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("fletcher32: chunk of %d bytes has no checksum", len(input))
	}
	data := input[:len(input)-4]
	stored := binary.LittleEndian.Uint32(input[len(input)-4:])
	sum := binpkg.Fletcher32(data)
	// Files from HDF5 1.6 store the checksum with each 16-bit half swapped.
	swapped := uint32(bits.ReverseBytes16(uint16(sum>>16)))<<16 | uint32(bits.ReverseBytes16(uint16(sum)))
	if stored != sum && stored != swapped {
		return nil, fmt.Errorf("fletcher32: checksum %#08x, stored %#08x", sum, stored)
	}
	return data, nil
}
