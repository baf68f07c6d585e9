package layout

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5export/internal/alloc"
	h5bin "github.com/robert-malhotra/h5export/internal/binary"
	"github.com/robert-malhotra/h5export/internal/filter"
	"github.com/robert-malhotra/h5export/internal/message"
)

func seq(n int) []byte {
	out := make([]byte, 0, 4*n)
	for i := 0; i < n; i++ {
		out = binary.LittleEndian.AppendUint32(out, uint32(i*7+1))
	}
	return out
}

func readBack(t *testing.T, space *alloc.Space, l *message.Layout, dims []uint64, p *filter.Pipeline) []byte {
	t.Helper()
	got, err := Read(bytes.NewReader(space.Bytes()), h5bin.Default, &Dataset{Layout: l, Dims: dims, ElemSize: 4, Pipeline: p})
	require.NoError(t, err)
	return got
}

func TestContiguous(t *testing.T) {
	space := alloc.New(64)
	data := seq(10)
	l := WriteContiguous(space, data)
	assert.Equal(t, uint64(40), l.Size)
	assert.Equal(t, data, readBack(t, space, l, []uint64{10}, nil))
}

func TestContiguousUnallocated(t *testing.T) {
	space := alloc.New(64)
	l := WriteContiguous(space, nil)
	assert.Equal(t, h5bin.Undefined, l.Address)
	assert.Equal(t, make([]byte, 12), readBack(t, space, l, []uint64{3}, nil))
}

func TestCompact(t *testing.T) {
	l := &message.Layout{Class: message.LayoutCompact, Data: seq(3)}
	got, err := Read(nil, h5bin.Default, &Dataset{Layout: l, Dims: []uint64{3}, ElemSize: 4})
	require.NoError(t, err)
	assert.Equal(t, seq(3), got)

	_, err = Read(nil, h5bin.Default, &Dataset{Layout: l, Dims: []uint64{4}, ElemSize: 4})
	assert.Error(t, err)
}

func TestSplitPadsEdges(t *testing.T) {
	// 3x3 of single bytes in 2x2 chunks.
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	offsets, parts := Split(data, []uint64{3, 3}, []uint32{2, 2}, 1)
	assert.Equal(t, [][]uint64{{0, 0}, {0, 2}, {2, 0}, {2, 2}}, offsets)
	assert.Equal(t, [][]byte{
		{1, 2, 4, 5},
		{3, 0, 6, 0},
		{7, 8, 0, 0},
		{9, 0, 0, 0},
	}, parts)
}

func TestChunkedRoundTrip(t *testing.T) {
	deflate, err := filter.NewPipeline(&message.FilterPipeline{Filters: []message.FilterInfo{
		{ID: message.FilterShuffle, ClientData: []uint32{4}},
		{ID: message.FilterDeflate, ClientData: []uint32{6}},
		{ID: message.FilterFletcher32},
	}})
	require.NoError(t, err)

	tests := []struct {
		name     string
		dims     []uint64
		chunk    []uint32
		legacy   bool
		pipeline *filter.Pipeline
		index    message.ChunkIndex
	}{
		{"single", []uint64{4, 5}, []uint32{4, 5}, false, nil, message.IndexSingle},
		{"single filtered", []uint64{4, 5}, []uint32{8, 8}, false, deflate, message.IndexSingle},
		{"fixed array", []uint64{7, 5}, []uint32{2, 3}, false, nil, message.IndexFixedArray},
		{"fixed array filtered", []uint64{7, 5}, []uint32{2, 3}, false, deflate, message.IndexFixedArray},
		{"btree", []uint64{7, 5}, []uint32{2, 3}, true, nil, message.IndexBTreeV1},
		{"btree filtered", []uint64{3, 4, 9}, []uint32{1, 2, 2}, true, deflate, message.IndexBTreeV1},
		{"many chunks", []uint64{3000}, []uint32{2}, false, deflate, message.IndexFixedArray},
		{"many btree chunks", []uint64{3000}, []uint32{2}, true, nil, message.IndexBTreeV1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := 1
			for _, d := range tt.dims {
				n *= int(d)
			}
			data := seq(n)
			space := alloc.New(64)
			l, err := WriteChunked(space, h5bin.Default, data, tt.dims, 4,
				Chunking{Chunk: tt.chunk, Pipeline: tt.pipeline, Legacy: tt.legacy})
			require.NoError(t, err)
			assert.Equal(t, tt.index, l.Index)

			// Through the message codec, as a reader would see it.
			decoded, err := message.Decode(message.Encode(l, h5bin.Default), h5bin.Default)
			require.NoError(t, err)
			assert.Equal(t, data, readBack(t, space, decoded.(*message.Layout), tt.dims, tt.pipeline))
		})
	}
}

func TestChunkedEmpty(t *testing.T) {
	space := alloc.New(64)
	l, err := WriteChunked(space, h5bin.Default, nil, []uint64{0}, 4, Chunking{Chunk: []uint32{4}})
	require.NoError(t, err)
	assert.Equal(t, h5bin.Undefined, l.IndexAddr)
	assert.Empty(t, readBack(t, space, l, []uint64{0}, nil))
}

func TestChunkedRejectsBadShape(t *testing.T) {
	space := alloc.New(64)
	_, err := WriteChunked(space, h5bin.Default, seq(4), []uint64{4}, 4, Chunking{Chunk: []uint32{2, 2}})
	assert.Error(t, err)
	_, err = WriteChunked(space, h5bin.Default, seq(4), []uint64{4}, 4, Chunking{Chunk: []uint32{0}})
	assert.Error(t, err)
}

func TestImplicitIndex(t *testing.T) {
	data := seq(6)
	offsets, parts := Split(data, []uint64{6}, []uint32{4}, 4)
	require.Len(t, offsets, 2)
	space := alloc.New(64)
	addr := space.Place(append(append([]byte(nil), parts[0]...), parts[1]...))
	l := &message.Layout{Class: message.LayoutChunked, Chunk: []uint32{4}, ElemSize: 4, Index: message.IndexImplicit, IndexAddr: addr}
	assert.Equal(t, data, readBack(t, space, l, []uint64{6}, nil))
}

func TestFixedArrayChecksum(t *testing.T) {
	space := alloc.New(64)
	l, err := WriteChunked(space, h5bin.Default, seq(8), []uint64{8}, 4, Chunking{Chunk: []uint32{2}})
	require.NoError(t, err)
	space.Bytes()[l.IndexAddr+5] ^= 0xff

	_, err = Read(bytes.NewReader(space.Bytes()), h5bin.Default, &Dataset{Layout: l, Dims: []uint64{8}, ElemSize: 4})
	assert.ErrorContains(t, err, "checksum")
}

func TestUnallocatedChunks(t *testing.T) {
	l := &message.Layout{Class: message.LayoutChunked, Chunk: []uint32{2}, ElemSize: 4, IndexAddr: h5bin.Undefined}
	got, err := Read(nil, h5bin.Default, &Dataset{Layout: l, Dims: []uint64{5}, ElemSize: 4})
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 20), got)
}

func TestFilteredSizeWidth(t *testing.T) {
	assert.Equal(t, 2, filteredSizeWidth(1))
	assert.Equal(t, 2, filteredSizeWidth(255))
	assert.Equal(t, 3, filteredSizeWidth(256))
	assert.Equal(t, 4, filteredSizeWidth(1<<20))
	assert.Equal(t, 8, filteredSizeWidth(1<<62))
}
