package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5export/internal/binary"
)

func roundTrip[T Message](t *testing.T, m Encoder, sz binary.Sizes) T {
	t.Helper()
	got, err := Decode(Encode(m, sz), sz)
	require.NoError(t, err)
	require.IsType(t, *new(T), got)
	return got.(T)
}

func TestDataspace(t *testing.T) {
	simple := roundTrip[*Dataspace](t, Simple(5, 2, 4, 3), binary.Default)
	assert.Equal(t, SpaceSimple, simple.Kind)
	assert.Equal(t, []uint64{5, 2, 4, 3}, simple.Dims)
	assert.Equal(t, uint64(120), simple.NumElements())

	scalar := roundTrip[*Dataspace](t, Scalar(), binary.Default)
	assert.Equal(t, SpaceScalar, scalar.Kind)
	assert.Equal(t, uint64(1), scalar.NumElements())

	legacy := &Dataspace{Version: 1, Kind: SpaceSimple, Dims: []uint64{7}, MaxDims: []uint64{binary.Undefined}}
	got := roundTrip[*Dataspace](t, legacy, binary.Sizes{Offset: 8, Length: 4})
	assert.Equal(t, uint8(1), got.Version)
	assert.Equal(t, []uint64{7}, got.Dims)
	assert.Len(t, got.MaxDims, 1)

	legacyScalar := roundTrip[*Dataspace](t, &Dataspace{Version: 1}, binary.Default)
	assert.Equal(t, SpaceScalar, legacyScalar.Kind)

	assert.Zero(t, (&Dataspace{Kind: SpaceNull}).NumElements())
}

func TestDatatypeNames(t *testing.T) {
	cases := []struct {
		dt   *Datatype
		name string
	}{
		{Float(8), "float64"},
		{Float(4), "float32"},
		{Int(4, true), "int32"},
		{Int(1, false), "uint8"},
		{FixedString(12), "string"},
		{VarString(binary.Default), "string"},
	}
	for _, c := range cases {
		got := roundTrip[*Datatype](t, c.dt, binary.Default)
		assert.Equal(t, c.name, got.Name())
		assert.Equal(t, c.dt.Size, got.Size)
		assert.Equal(t, c.dt.Signed, got.Signed)
		assert.Equal(t, c.dt.IsNumeric(), got.IsNumeric(), c.name)
		assert.Equal(t, c.dt.IsString(), got.IsString(), c.name)
	}

	vs := roundTrip[*Datatype](t, VarString(binary.Default), binary.Default)
	assert.True(t, vs.VarString)
	require.NotNil(t, vs.Base)
	assert.Equal(t, uint32(16), vs.Size)
	assert.Equal(t, uint8(CharsetUTF8), vs.Charset)
}

func TestDatatypeBigEndian(t *testing.T) {
	be := &Datatype{Version: 1, Class: ClassFloat, Size: 8, BigEndian: true}
	got := roundTrip[*Datatype](t, be, binary.Default)
	assert.True(t, got.BigEndian)
}

func TestDatatypeOtherClass(t *testing.T) {
	e := binary.NewEncoder(binary.Default)
	e.U8(1<<4 | uint8(ClassCompound))
	e.Uint(2, 3)
	e.U32(16)
	e.Zeros(20)

	dt, err := DecodeDatatype(binary.NewDecoder(e.Bytes(), binary.Default))
	require.NoError(t, err)
	assert.Equal(t, "compound", dt.Name())
	assert.False(t, dt.IsNumeric())
	assert.False(t, dt.IsString())
}

func TestLayout(t *testing.T) {
	contig := roundTrip[*Layout](t, &Layout{Class: LayoutContiguous, Address: 800, Size: 96}, binary.Default)
	assert.Equal(t, uint8(3), contig.Version)
	assert.Equal(t, uint64(800), contig.Address)
	assert.Equal(t, uint64(96), contig.Size)

	compact := roundTrip[*Layout](t, &Layout{Class: LayoutCompact, Data: []byte{1, 2, 3}}, binary.Default)
	assert.Equal(t, []byte{1, 2, 3}, compact.Data)

	btree := roundTrip[*Layout](t, &Layout{Class: LayoutChunked, Chunk: []uint32{1, 8, 4}, ElemSize: 8, IndexAddr: 4096}, binary.Default)
	assert.Equal(t, uint8(3), btree.Version)
	assert.Equal(t, IndexBTreeV1, btree.Index)
	assert.Equal(t, []uint32{1, 8, 4}, btree.Chunk)
	assert.Equal(t, uint32(8), btree.ElemSize)
	assert.Equal(t, uint64(4096), btree.IndexAddr)

	single := roundTrip[*Layout](t, &Layout{
		Class: LayoutChunked, Chunk: []uint32{300, 2}, ElemSize: 4,
		Index: IndexSingle, IndexAddr: 512, FilteredSize: 77, FilterMask: 1,
	}, binary.Default)
	assert.Equal(t, uint8(4), single.Version)
	assert.Equal(t, IndexSingle, single.Index)
	assert.Equal(t, []uint32{300, 2}, single.Chunk)
	assert.Equal(t, uint64(77), single.FilteredSize)
	assert.Equal(t, uint32(1), single.FilterMask)

	fa := roundTrip[*Layout](t, &Layout{
		Class: LayoutChunked, Chunk: []uint32{2, 2}, ElemSize: 8,
		Index: IndexFixedArray, PageBits: 10, IndexAddr: 1024,
	}, binary.Default)
	assert.Equal(t, IndexFixedArray, fa.Index)
	assert.Equal(t, uint8(10), fa.PageBits)
	assert.Equal(t, uint64(1024), fa.IndexAddr)
}

func TestLayoutV1(t *testing.T) {
	e := binary.NewEncoder(binary.Default)
	e.U8(1)
	e.U8(3) // rank + 1
	e.U8(uint8(LayoutChunked))
	e.Zeros(5)
	e.Offset(2048)
	for _, v := range []uint32{4, 4, 8} {
		e.U32(v)
	}

	m, err := Decode(Raw{Type: TypeLayout, Data: e.Bytes()}, binary.Default)
	require.NoError(t, err)
	l := m.(*Layout)
	assert.Equal(t, LayoutChunked, l.Class)
	assert.Equal(t, uint64(2048), l.IndexAddr)
	assert.Equal(t, []uint32{4, 4}, l.Chunk)
	assert.Equal(t, uint32(8), l.ElemSize)
}

func TestFilterPipeline(t *testing.T) {
	for _, version := range []uint8{1, 2} {
		in := &FilterPipeline{Version: version, Filters: []FilterInfo{
			{ID: FilterShuffle, ClientData: []uint32{8}},
			{ID: FilterDeflate, Name: "deflate", ClientData: []uint32{4}},
			{ID: FilterLZ4, Name: "lz4", Flags: 1, ClientData: []uint32{0, 0, 4096}},
		}}
		got := roundTrip[*FilterPipeline](t, in, binary.Default)
		require.Len(t, got.Filters, 3)
		assert.Equal(t, []uint32{8}, got.Filters[0].ClientData)
		assert.Equal(t, FilterDeflate, got.Filters[1].ID)
		assert.Equal(t, FilterLZ4, got.Filters[2].ID)
		assert.Equal(t, "lz4", got.Filters[2].Name)
		assert.True(t, got.Filters[2].IsOptional())
		assert.Equal(t, []uint32{0, 0, 4096}, got.Filters[2].ClientData)
		if version == 1 {
			assert.Equal(t, "deflate", got.Filters[1].Name)
		}
	}
}

func TestAttribute(t *testing.T) {
	for _, version := range []uint8{1, 3} {
		in := &Attribute{
			Version:   version,
			Name:      "NAME",
			Datatype:  FixedString(2),
			Dataspace: &Dataspace{Version: 2, Kind: SpaceScalar},
			Data:      []byte{'x', 0},
		}
		got := roundTrip[*Attribute](t, in, binary.Default)
		assert.Equal(t, "NAME", got.Name)
		assert.Equal(t, "string", got.Datatype.Name())
		assert.Equal(t, []byte{'x', 0}, got.Data)
	}

	arr := &Attribute{Name: "bounds", Datatype: Float(8), Dataspace: Simple(2), Data: make([]byte, 16)}
	got := roundTrip[*Attribute](t, arr, binary.Default)
	assert.Equal(t, []uint64{2}, got.Dataspace.Dims)
	assert.Len(t, got.Data, 16)
}

func TestLink(t *testing.T) {
	hard := roundTrip[*Link](t, &Link{Name: "tasks", Address: 1234}, binary.Default)
	assert.Equal(t, LinkHard, hard.Kind)
	assert.Equal(t, "tasks", hard.Name)
	assert.Equal(t, uint64(1234), hard.Address)

	soft := roundTrip[*Link](t, &Link{Kind: LinkSoft, Name: "latest", Target: "/tasks/b"}, binary.Default)
	assert.Equal(t, LinkSoft, soft.Kind)
	assert.Equal(t, "/tasks/b", soft.Target)

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	got := roundTrip[*Link](t, &Link{Name: string(long), Address: 8}, binary.Default)
	assert.Len(t, got.Name, 300)
}

func TestGroupMessages(t *testing.T) {
	li := roundTrip[*LinkInfo](t, EmptyLinkInfo(), binary.Default)
	assert.False(t, li.Dense())

	st := roundTrip[*SymbolTable](t, &SymbolTable{BTree: 136, Heap: 680}, binary.Default)
	assert.Equal(t, uint64(136), st.BTree)
	assert.Equal(t, uint64(680), st.Heap)

	c := roundTrip[*Continuation](t, &Continuation{Address: 4000, Length: 256}, binary.Default)
	assert.Equal(t, uint64(256), c.Length)

	raw := Encode(&GroupInfo{}, binary.Default)
	assert.Equal(t, TypeGroupInfo, raw.Type)
}

func TestDecodeDispatch(t *testing.T) {
	m, err := Decode(Raw{Type: TypeModTime, Data: []byte{1, 0, 0, 0, 0, 0, 0, 0}}, binary.Default)
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = Decode(Raw{Type: TypeDatatype, Flags: FlagShared}, binary.Default)
	assert.Error(t, err)

	_, err = Decode(Raw{Type: TypeDataspace, Data: []byte{2, 1}}, binary.Default)
	assert.Error(t, err)

	assert.Equal(t, "layout", TypeLayout.String())
	assert.Equal(t, "message 0x00ff", Type(0xff).String())
}
