// Package filter implements the HDF5 chunk filters found in snapshot
// archives: deflate, shuffle and Fletcher32 from the core library, plus
// the LZ4 and Zstandard plugins that hdf5plugin installs for h5py.
//
// Writers apply a pipeline's filters in order; readers undo them in
// reverse, skipping any filter whose bit is set in the chunk's mask.
package filter

import (
	"fmt"

	"github.com/robert-malhotra/h5export/internal/message"
)

// Filter transforms chunk bytes in both directions.
type Filter interface {
	ID() uint16
	Encode(input []byte) ([]byte, error)
	Decode(input []byte) ([]byte, error)
}

// Registry maps filter IDs to constructors taking the client data.
var Registry = map[uint16]func([]uint32) Filter{
	message.FilterDeflate:    func(cd []uint32) Filter { return NewDeflate(cd) },
	message.FilterShuffle:    func(cd []uint32) Filter { return NewShuffle(cd) },
	message.FilterFletcher32: func(cd []uint32) Filter { return NewFletcher32(cd) },
	message.FilterLZ4:        func(cd []uint32) Filter { return NewLZ4(cd) },
	message.FilterZstd:       func(cd []uint32) Filter { return NewZstd(cd) },
}

var names = map[uint16]string{
	message.FilterDeflate:     "deflate",
	message.FilterShuffle:     "shuffle",
	message.FilterFletcher32:  "fletcher32",
	message.FilterSZIP:        "SZIP",
	message.FilterNBit:        "N-bit",
	message.FilterScaleOffset: "scale-offset",
	message.FilterLZ4:         "lz4",
	message.FilterZstd:        "zstd",
}

// Name returns a readable name for a filter ID.
func Name(id uint16) string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("filter %d", id)
}

// New builds the filter described by info. An unknown optional filter
// yields nil and no error.
func New(info message.FilterInfo) (Filter, error) {
	ctor, ok := Registry[info.ID]
	if !ok {
		if info.IsOptional() {
			return nil, nil
		}
		return nil, fmt.Errorf("%s (ID %d) is not supported", Name(info.ID), info.ID)
	}
	return ctor(info.ClientData), nil
}
