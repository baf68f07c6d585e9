package layout

import (
	"fmt"

	"github.com/robert-malhotra/h5export/internal/alloc"
	"github.com/robert-malhotra/h5export/internal/binary"
	"github.com/robert-malhotra/h5export/internal/btree"
	"github.com/robert-malhotra/h5export/internal/filter"
	"github.com/robert-malhotra/h5export/internal/message"
)

// WriteContiguous stores data in one block. An empty dataset has no
// storage.
func WriteContiguous(space *alloc.Space, data []byte) *message.Layout {
	l := &message.Layout{Class: message.LayoutContiguous, Address: binary.Undefined, Size: uint64(len(data))}
	if len(data) > 0 {
		l.Address = space.Place(data)
	}
	return l
}

// Chunking describes chunked storage for a dataset.
type Chunking struct {
	Chunk    []uint32
	Pipeline *filter.Pipeline
	// Legacy indexes chunks with a version 1 B-tree, which every HDF5
	// release reads. Otherwise a single-chunk or fixed array index is used.
	Legacy bool
}

// Split cuts row-major data into full-size chunks in row-major chunk
// order. Chunks overhanging the dataset edge are zero-padded.
func Split(data []byte, dims []uint64, chunk []uint32, elemSize int) ([][]uint64, [][]byte) {
	offsets := grid(dims, chunk)
	full := chunkBytes(chunk, elemSize)
	parts := make([][]byte, len(offsets))
	for i, off := range offsets {
		parts[i] = make([]byte, full)
		gather(parts[i], data, dims, chunk, off, elemSize)
	}
	return offsets, parts
}

// WriteChunked stores data in chunks, filtering each one through the
// pipeline, and returns the layout message describing them.
func WriteChunked(space *alloc.Space, sz binary.Sizes, data []byte, dims []uint64, elemSize int, c Chunking) (*message.Layout, error) {
	if len(c.Chunk) != len(dims) || len(dims) == 0 {
		return nil, fmt.Errorf("chunk shape %v does not fit dataset shape %v", c.Chunk, dims)
	}
	for _, v := range c.Chunk {
		if v == 0 {
			return nil, fmt.Errorf("zero chunk dimension in %v", c.Chunk)
		}
	}
	l := &message.Layout{
		Class:     message.LayoutChunked,
		Chunk:     append([]uint32(nil), c.Chunk...),
		ElemSize:  uint32(elemSize),
		IndexAddr: binary.Undefined,
	}
	if c.Legacy {
		l.Index = message.IndexBTreeV1
	}
	if len(data) == 0 {
		if !c.Legacy {
			l.Index = message.IndexSingle
		}
		return l, nil
	}

	offsets, parts := Split(data, dims, c.Chunk, elemSize)
	filtered := c.Pipeline != nil && !c.Pipeline.Empty()
	chunks := make([]btree.Chunk, len(parts))
	for i, raw := range parts {
		stored, mask := raw, uint32(0)
		if filtered {
			var err error
			if stored, mask, err = c.Pipeline.Encode(raw); err != nil {
				return nil, fmt.Errorf("chunk %v: %w", offsets[i], err)
			}
		}
		chunks[i] = btree.Chunk{Offset: offsets[i], Size: uint32(len(stored)), Mask: mask, Address: space.Place(stored)}
	}

	switch {
	case c.Legacy:
		end := make([]uint64, len(dims))
		last := offsets[len(offsets)-1]
		for i := range end {
			end[i] = last[i] + uint64(c.Chunk[i])
		}
		l.IndexAddr = btree.WriteChunks(chunks, end, btree.DefaultChunkK, sz, space.Place)
	case len(chunks) == 1:
		l.Index = message.IndexSingle
		l.IndexAddr = chunks[0].Address
		if filtered {
			l.FilteredSize, l.FilterMask = uint64(chunks[0].Size), chunks[0].Mask
		}
	default:
		l.Index = message.IndexFixedArray
		l.IndexAddr, l.PageBits = writeFixedArray(space, sz, chunks, filtered, chunkBytes(c.Chunk, elemSize))
	}
	return l, nil
}
