package btree

import (
	"io"

	"github.com/robert-malhotra/h5export/internal/binary"
)

// DefaultChunkK is the library's default rank for chunk B-trees.
const DefaultChunkK = 32

// Chunk locates one stored chunk.
type Chunk struct {
	// Offset is the chunk's first element in dataset coordinates.
	Offset []uint64
	// Size is the stored (possibly filtered) byte count.
	Size uint32
	// Mask has bit i set when filter i was skipped for this chunk.
	Mask    uint32
	Address uint64
}

func chunkKeySize(rank int) int { return 8 + 8*(rank+1) }

func decodeChunkKey(key []byte, rank int) Chunk {
	d := binary.NewDecoder(key, binary.Default)
	c := Chunk{Size: d.U32(), Mask: d.U32(), Offset: make([]uint64, rank)}
	for i := range c.Offset {
		c.Offset[i] = d.U64()
	}
	return c
}

func encodeChunkKey(size, mask uint32, offset []uint64) []byte {
	e := binary.NewEncoder(binary.Default)
	e.U32(size)
	e.U32(mask)
	for _, v := range offset {
		e.U64(v)
	}
	e.U64(0)
	return e.Bytes()
}

// Chunks lists every chunk indexed by the tree at addr for a dataset of
// the given rank.
func Chunks(r io.ReaderAt, addr uint64, rank int, sz binary.Sizes) ([]Chunk, error) {
	var out []Chunk
	err := walk(r, addr, TypeChunk, chunkKeySize(rank), sz, 0, func(key []byte, child uint64) error {
		c := decodeChunkKey(key, rank)
		c.Address = child
		out = append(out, c)
		return nil
	})
	return out, err
}

// WriteChunks indexes chunks, sorted by offset, under a chunk B-tree with
// rank k and returns the root address. end is the offset just past the
// last chunk, used as the final key.
func WriteChunks(chunks []Chunk, end []uint64, k int, sz binary.Sizes, place Place) uint64 {
	leaves := make([]uint64, len(chunks))
	keys := make([][]byte, 0, len(chunks)+1)
	for i, c := range chunks {
		leaves[i] = c.Address
		keys = append(keys, encodeChunkKey(c.Size, c.Mask, c.Offset))
	}
	keys = append(keys, encodeChunkKey(0, 0, end))
	return build(leaves, keys, TypeChunk, k, chunkKeySize(len(end)), sz, place)
}
