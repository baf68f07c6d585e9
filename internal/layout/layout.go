// Package layout reads a dataset's raw bytes according to its data layout
// message, and writes raw bytes in contiguous or chunked form.
//
// Chunked data may be indexed by a version 1 B-tree (legacy files), a
// single-chunk index, an implicit index or a fixed array. Extensible array
// and version 2 B-tree indexes only appear in resizable datasets, which
// snapshot archives do not use.
package layout

import (
	"fmt"
	"io"

	"github.com/robert-malhotra/h5export/internal/binary"
	"github.com/robert-malhotra/h5export/internal/btree"
	"github.com/robert-malhotra/h5export/internal/filter"
	"github.com/robert-malhotra/h5export/internal/message"
)

// Dataset carries what is needed to read one dataset's raw bytes.
type Dataset struct {
	Layout   *message.Layout
	Dims     []uint64
	ElemSize int
	Pipeline *filter.Pipeline
}

func (ds *Dataset) numElements() uint64 {
	n := uint64(1)
	for _, d := range ds.Dims {
		n *= d
	}
	return n
}

// Read returns the dataset's elements in row-major order. Unallocated
// storage reads as zeros.
func Read(r io.ReaderAt, sz binary.Sizes, ds *Dataset) ([]byte, error) {
	size := ds.numElements() * uint64(ds.ElemSize)
	l := ds.Layout
	switch l.Class {
	case message.LayoutCompact:
		if uint64(len(l.Data)) < size {
			return nil, fmt.Errorf("compact data has %d bytes, need %d", len(l.Data), size)
		}
		return l.Data[:size], nil
	case message.LayoutContiguous:
		if l.Address == binary.Undefined || size == 0 {
			return make([]byte, size), nil
		}
		if l.Size != 0 && l.Size < size {
			return nil, fmt.Errorf("contiguous storage has %d bytes, need %d", l.Size, size)
		}
		return binary.ReadAt(r, l.Address, int(size))
	case message.LayoutChunked:
		return readChunked(r, sz, ds, size)
	}
	return nil, fmt.Errorf("%s layout is not supported", l.Class)
}

func readChunked(r io.ReaderAt, sz binary.Sizes, ds *Dataset, size uint64) ([]byte, error) {
	l := ds.Layout
	if len(l.Chunk) != len(ds.Dims) {
		return nil, fmt.Errorf("chunk rank %d does not match dataset rank %d", len(l.Chunk), len(ds.Dims))
	}
	for _, c := range l.Chunk {
		if c == 0 {
			return nil, fmt.Errorf("zero chunk dimension in %v", l.Chunk)
		}
	}
	out := make([]byte, size)
	if size == 0 || l.IndexAddr == binary.Undefined {
		return out, nil
	}

	chunks, err := index(r, sz, ds)
	if err != nil {
		return nil, fmt.Errorf("%s index: %w", l.Index, err)
	}
	full := chunkBytes(l.Chunk, ds.ElemSize)
	for _, c := range chunks {
		if c.Address == binary.Undefined {
			continue
		}
		raw, err := binary.ReadAt(r, c.Address, int(c.Size))
		if err != nil {
			return nil, fmt.Errorf("chunk %v: %w", c.Offset, err)
		}
		if ds.Pipeline != nil {
			if raw, err = ds.Pipeline.Decode(raw, c.Mask); err != nil {
				return nil, fmt.Errorf("chunk %v: %w", c.Offset, err)
			}
		}
		if len(raw) < full {
			return nil, fmt.Errorf("chunk %v decoded to %d bytes, want %d", c.Offset, len(raw), full)
		}
		scatter(out, raw, ds.Dims, l.Chunk, c.Offset, ds.ElemSize)
	}
	return out, nil
}

// index lists the stored chunks of ds.
func index(r io.ReaderAt, sz binary.Sizes, ds *Dataset) ([]btree.Chunk, error) {
	l := ds.Layout
	full := uint32(chunkBytes(l.Chunk, ds.ElemSize))
	switch l.Index {
	case message.IndexBTreeV1:
		return btree.Chunks(r, l.IndexAddr, len(ds.Dims), sz)
	case message.IndexSingle:
		c := btree.Chunk{Offset: make([]uint64, len(ds.Dims)), Size: full, Address: l.IndexAddr}
		if l.FilteredSize > 0 {
			c.Size, c.Mask = uint32(l.FilteredSize), l.FilterMask
		}
		return []btree.Chunk{c}, nil
	case message.IndexImplicit:
		offsets := grid(ds.Dims, l.Chunk)
		out := make([]btree.Chunk, len(offsets))
		for i, off := range offsets {
			out[i] = btree.Chunk{Offset: off, Size: full, Address: l.IndexAddr + uint64(i)*uint64(full)}
		}
		return out, nil
	case message.IndexFixedArray:
		return readFixedArray(r, sz, ds)
	}
	return nil, fmt.Errorf("not supported")
}

func chunkBytes(chunk []uint32, elemSize int) int {
	n := elemSize
	for _, c := range chunk {
		n *= int(c)
	}
	return n
}

// grid returns the offset of every chunk covering dims, in row-major
// chunk order.
func grid(dims []uint64, chunk []uint32) [][]uint64 {
	counts := make([]uint64, len(dims))
	total := uint64(1)
	for i, d := range dims {
		counts[i] = (d + uint64(chunk[i]) - 1) / uint64(chunk[i])
		total *= counts[i]
	}
	out := make([][]uint64, 0, total)
	idx := make([]uint64, len(dims))
	for n := uint64(0); n < total; n++ {
		off := make([]uint64, len(dims))
		for i := range idx {
			off[i] = idx[i] * uint64(chunk[i])
		}
		out = append(out, off)
		for i := len(idx) - 1; i >= 0; i-- {
			if idx[i]++; idx[i] < counts[i] {
				break
			}
			idx[i] = 0
		}
	}
	return out
}

// scatter copies a full chunk at offset into the row-major dataset buffer,
// clipping at the dataset edges. Rows run along the last dimension.
func scatter(dst, chunk []byte, dims []uint64, shape []uint32, offset []uint64, elem int) {
	walkRows(dims, shape, offset, elem, func(dstAt, chunkAt, n int) {
		copy(dst[dstAt:dstAt+n], chunk[chunkAt:chunkAt+n])
	})
}

// gather is the inverse of scatter: it fills a zeroed full chunk from the
// dataset buffer.
func gather(chunk, src []byte, dims []uint64, shape []uint32, offset []uint64, elem int) {
	walkRows(dims, shape, offset, elem, func(srcAt, chunkAt, n int) {
		copy(chunk[chunkAt:chunkAt+n], src[srcAt:srcAt+n])
	})
}

func walkRows(dims []uint64, shape []uint32, offset []uint64, elem int, row func(dataAt, chunkAt, n int)) {
	rank := len(dims)
	if rank == 0 {
		row(0, 0, elem)
		return
	}
	last := rank - 1
	if offset[last] >= dims[last] {
		return
	}
	width := min(uint64(shape[last]), dims[last]-offset[last])

	idx := make([]uint64, last)
	for {
		inside := true
		dataAt, chunkAt := uint64(0), uint64(0)
		for i := 0; i < rank; i++ {
			var ci uint64
			if i < last {
				ci = idx[i]
			}
			pos := offset[i] + ci
			if pos >= dims[i] {
				inside = false
				break
			}
			dataAt = dataAt*dims[i] + pos
			chunkAt = chunkAt*uint64(shape[i]) + ci
		}
		if inside {
			row(int(dataAt)*elem, int(chunkAt)*elem, int(width)*elem)
		}

		i := last - 1
		for ; i >= 0; i-- {
			if idx[i]++; idx[i] < uint64(shape[i]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}
