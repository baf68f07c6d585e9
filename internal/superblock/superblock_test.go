package superblock

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5export/internal/binary"
)

func TestRoundTripV3(t *testing.T) {
	in := &Superblock{Version: 3, Sizes: binary.Default, EOF: 4096, Root: 48}
	raw := in.Encode()
	assert.Len(t, raw, Size(3, binary.Default))

	sb, err := Read(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, uint8(3), sb.Version)
	assert.Equal(t, uint64(4096), sb.EOF)
	assert.Equal(t, uint64(48), sb.Root)
	assert.Equal(t, binary.Undefined, sb.RootBTree)
}

func TestRoundTripV0(t *testing.T) {
	in := &Superblock{
		Sizes:     binary.Default,
		LeafK:     DefaultLeafK,
		InternalK: DefaultInternalK,
		EOF:       2048,
		Root:      96,
		RootBTree: 136,
		RootHeap:  680,
	}
	raw := in.Encode()
	assert.Len(t, raw, Size(0, binary.Default))

	sb, err := Read(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, uint8(0), sb.Version)
	assert.Equal(t, uint16(DefaultLeafK), sb.LeafK)
	assert.Equal(t, uint16(DefaultInternalK), sb.InternalK)
	assert.Equal(t, uint64(96), sb.Root)
	assert.Equal(t, uint64(136), sb.RootBTree)
	assert.Equal(t, uint64(680), sb.RootHeap)
}

func TestNarrowOffsets(t *testing.T) {
	sz := binary.Sizes{Offset: 4, Length: 4}
	in := &Superblock{Sizes: sz, LeafK: 4, InternalK: 16, Root: 72, RootBTree: binary.Undefined, RootHeap: binary.Undefined}
	raw := in.Encode()
	assert.Len(t, raw, Size(0, sz))

	sb, err := Read(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, sz, sb.Sizes)
	assert.Equal(t, binary.Undefined, sb.RootBTree)
}

func TestUserBlock(t *testing.T) {
	raw := (&Superblock{Version: 3, Sizes: binary.Default, Root: 48}).Encode()
	file := append(make([]byte, 512), raw...)

	sb, err := Read(bytes.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, int64(512), sb.Offset)
}

func TestChecksumMismatch(t *testing.T) {
	raw := (&Superblock{Version: 3, Sizes: binary.Default, Root: 48}).Encode()
	raw[len(raw)-1] ^= 0xff

	_, err := Read(bytes.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
}

func TestNotHDF5(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("plain text, long enough to search")))
	assert.True(t, errors.Is(err, ErrNotHDF5))

	_, err = Read(bytes.NewReader(nil))
	assert.True(t, errors.Is(err, ErrNotHDF5))
}

func TestUnsupportedVersion(t *testing.T) {
	raw := (&Superblock{Version: 3, Sizes: binary.Default}).Encode()
	raw[8] = 7
	_, err := Read(bytes.NewReader(raw))
	assert.Error(t, err)
}
