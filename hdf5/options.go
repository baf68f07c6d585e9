package hdf5

import (
	h5bin "github.com/robert-malhotra/h5export/internal/binary"
	"github.com/robert-malhotra/h5export/internal/message"
)

// FileOption configures Create.
type FileOption func(*fileOptions)

type fileOptions struct {
	legacy bool
	sizes  h5bin.Sizes
}

// WithLegacyFormat writes a version 0 superblock with symbol-table groups,
// version 1 B-tree chunk indexes and variable-length string attributes,
// the layout h5py produces unless told to use the latest format.
func WithLegacyFormat() FileOption {
	return func(o *fileOptions) { o.legacy = true }
}

// WithOffsetSize sets the width of file addresses to 2, 4 or 8 bytes.
// Other widths are ignored. Narrow addresses limit the file size.
func WithOffsetSize(size int) FileOption {
	return func(o *fileOptions) {
		if validWidth(size) {
			o.sizes.Offset = size
		}
	}
}

// WithLengthSize sets the width of lengths to 2, 4 or 8 bytes.
func WithLengthSize(size int) FileOption {
	return func(o *fileOptions) {
		if validWidth(size) {
			o.sizes.Length = size
		}
	}
}

func validWidth(n int) bool { return n == 2 || n == 4 || n == 8 }

// DatasetOption configures CreateDataset.
type DatasetOption func(*datasetOptions)

type attrDef struct {
	name  string
	value any
}

type datasetOptions struct {
	shape   []uint64
	chunks  []uint64
	filters []filterDef
	attrs   []attrDef
}

// filterDef is a requested filter; client data that depends on the
// element size is filled in when the dataset is created.
type filterDef struct {
	id       uint16
	optional bool
	level    uint32
}

// WithShape stores a flat slice under an N-dimensional shape in row-major
// order. The product of dims must equal the slice length.
func WithShape(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) { o.shape = dims }
}

// WithChunks stores the dataset in chunks of the given shape. Filters
// without WithChunks store the whole dataset as one chunk.
func WithChunks(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) { o.chunks = dims }
}

// WithAttribute attaches an attribute. The value may be a string, a
// []string, or a numeric scalar or slice.
func WithAttribute(name string, value any) DatasetOption {
	return func(o *datasetOptions) {
		o.attrs = append(o.attrs, attrDef{name: name, value: value})
	}
}

// WithDeflate compresses chunks with zlib at level 0 to 9.
func WithDeflate(level int) DatasetOption {
	return withFilter(message.FilterDeflate, true, uint32(min(max(level, 0), 9)))
}

// WithShuffle reorders element bytes before compression.
func WithShuffle() DatasetOption {
	return withFilter(message.FilterShuffle, true, 0)
}

// WithFletcher32 appends a checksum to every chunk.
func WithFletcher32() DatasetOption {
	return withFilter(message.FilterFletcher32, false, 0)
}

// WithLZ4 compresses chunks with the LZ4 plugin filter.
func WithLZ4() DatasetOption {
	return withFilter(message.FilterLZ4, true, 0)
}

// WithZstd compresses chunks with the Zstandard plugin filter. Level 0
// selects the library default.
func WithZstd(level int) DatasetOption {
	return withFilter(message.FilterZstd, true, uint32(max(level, 0)))
}

func withFilter(id uint16, optional bool, level uint32) DatasetOption {
	return func(o *datasetOptions) {
		o.filters = append(o.filters, filterDef{id: id, optional: optional, level: level})
	}
}
