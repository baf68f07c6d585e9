package heap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5export/internal/binary"
)

// image places blobs at fixed addresses of an in-memory file.
type image []byte

func (im *image) put(addr int, b []byte) {
	if need := addr + len(b); need > len(*im) {
		*im = append(*im, make([]byte, need-len(*im))...)
	}
	copy((*im)[addr:], b)
}

func (im image) reader() *bytes.Reader { return bytes.NewReader(im) }

func TestLocalHeap(t *testing.T) {
	b := NewLocalBuilder()
	scales := b.Add("scales")
	tasks := b.Add("tasks")
	assert.Equal(t, uint64(8), scales)
	assert.Equal(t, uint64(16), tasks)
	assert.Zero(t, len(b.Data())%8)

	var im image
	im.put(0, b.Header(64, binary.Default))
	im.put(64, b.Data())
	assert.Len(t, b.Header(64, binary.Default), LocalHeaderSize(binary.Default))

	h, err := ReadLocal(im.reader(), 0, binary.Default)
	require.NoError(t, err)

	for off, want := range map[uint64]string{0: "", scales: "scales", tasks: "tasks"} {
		got, err := h.String(off)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err = h.String(1000)
	assert.Error(t, err)
}

func TestLocalHeapBadSignature(t *testing.T) {
	var im image
	im.put(0, []byte("TREE\x00\x00\x00\x00"))
	im.put(8, make([]byte, 32))
	_, err := ReadLocal(im.reader(), 0, binary.Default)
	assert.Error(t, err)
}

func TestGlobalCollection(t *testing.T) {
	var b CollectionBuilder
	x := b.Add([]byte("x"))
	long := bytes.Repeat([]byte("abc"), 10)
	y := b.Add(long)
	assert.Equal(t, uint32(1), x)
	assert.Equal(t, uint32(2), y)
	assert.Equal(t, 2, b.Len())

	raw := b.Encode(binary.Default)
	assert.Len(t, raw, minCollection)

	var im image
	im.put(128, raw)
	c, err := ReadCollection(im.reader(), 128, binary.Default)
	require.NoError(t, err)

	got, err := c.Object(x)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
	got, err = c.Object(y)
	require.NoError(t, err)
	assert.Equal(t, long, got)

	_, err = c.Object(3)
	assert.Error(t, err)
}

func TestLargeCollection(t *testing.T) {
	var b CollectionBuilder
	big := bytes.Repeat([]byte{7}, 5000)
	idx := b.Add(big)

	raw := b.Encode(binary.Default)
	assert.Greater(t, len(raw), minCollection)

	c, err := ReadCollection(bytes.NewReader(raw), 0, binary.Default)
	require.NoError(t, err)
	got, err := c.Object(idx)
	require.NoError(t, err)
	assert.Equal(t, big, got)
}

func TestVarLen(t *testing.T) {
	v := VarLen{Len: 5, ID: ID{Collection: 4096, Index: 3}}
	e := binary.NewEncoder(binary.Default)
	v.Encode(e)
	assert.Len(t, e.Bytes(), 16)

	got, err := DecodeVarLen(e.Bytes(), binary.Default)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = DecodeVarLen([]byte{1, 2}, binary.Default)
	assert.Error(t, err)
}

func TestCollectionObjectHeaders(t *testing.T) {
	var b CollectionBuilder
	b.Add([]byte("x"))
	b.Add([]byte("velocity"))
	out := b.Encode(binary.Default)

	// Header is signature, version, reserved and the collection size.
	d := binary.NewDecoder(out[16:], binary.Default)
	for i := uint16(1); i <= 2; i++ {
		assert.Equal(t, i, d.U16(), "index")
		assert.Equal(t, uint16(0), d.U16(), "reference count")
		d.Skip(4)
		n := d.Length()
		d.Skip(int((n + 7) &^ 7))
	}
	require.NoError(t, d.Err())
}
