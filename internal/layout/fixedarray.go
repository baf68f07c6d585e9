package layout

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/robert-malhotra/h5export/internal/alloc"
	"github.com/robert-malhotra/h5export/internal/binary"
	"github.com/robert-malhotra/h5export/internal/btree"
)

const (
	faHeaderSig = "FAHD"
	faBlockSig  = "FADB"

	faClientRaw      = 0
	faClientFiltered = 1

	// minPageBits is the library default; arrays no larger than a page are
	// stored unpaged.
	minPageBits = 10
)

type faHeader struct {
	client    uint8
	entrySize int
	pageBits  uint8
	entries   uint64
	block     uint64
}

func faHeaderSize(sz binary.Sizes) int { return 4 + 4 + sz.Length + sz.Offset + 4 }

func readFAHeader(r io.ReaderAt, addr uint64, sz binary.Sizes) (*faHeader, error) {
	buf, err := binary.ReadAt(r, addr, faHeaderSize(sz))
	if err != nil {
		return nil, err
	}
	if got, want := binary.Lookup3(buf[:len(buf)-4]), uint32(binary.Uint(buf[len(buf)-4:])); got != want {
		return nil, fmt.Errorf("fixed array header checksum %#08x, stored %#08x", got, want)
	}
	d := binary.NewDecoder(buf, sz)
	d.Signature(faHeaderSig)
	if v := d.U8(); v != 0 {
		return nil, fmt.Errorf("fixed array header version %d", v)
	}
	h := &faHeader{client: d.U8(), entrySize: int(d.U8()), pageBits: d.U8()}
	h.entries = d.Length()
	h.block = d.Offset()
	return h, d.Err()
}

// readFixedArray lists chunks from a fixed array index. Entries are in
// row-major chunk order.
func readFixedArray(r io.ReaderAt, sz binary.Sizes, ds *Dataset) ([]btree.Chunk, error) {
	l := ds.Layout
	h, err := readFAHeader(r, l.IndexAddr, sz)
	if err != nil {
		return nil, err
	}
	offsets := grid(ds.Dims, l.Chunk)
	if h.entries < uint64(len(offsets)) {
		return nil, fmt.Errorf("fixed array holds %d entries for %d chunks", h.entries, len(offsets))
	}
	if h.entries > 1<<h.pageBits {
		return nil, fmt.Errorf("paged fixed array data blocks are not supported")
	}
	filtered := h.client == faClientFiltered
	sizeWidth := h.entrySize - sz.Offset - 4
	if filtered && (sizeWidth < 1 || sizeWidth > 8) || !filtered && h.entrySize != sz.Offset {
		return nil, fmt.Errorf("fixed array entry size %d", h.entrySize)
	}
	if h.block == binary.Undefined {
		return nil, nil
	}

	prefix := 4 + 2 + sz.Offset
	buf, err := binary.ReadAt(r, h.block, prefix+int(h.entries)*h.entrySize+4)
	if err != nil {
		return nil, err
	}
	if got, want := binary.Lookup3(buf[:len(buf)-4]), uint32(binary.Uint(buf[len(buf)-4:])); got != want {
		return nil, fmt.Errorf("fixed array data block checksum %#08x, stored %#08x", got, want)
	}
	d := binary.NewDecoder(buf, sz)
	d.Signature(faBlockSig)
	d.Skip(2)
	if owner := d.Offset(); owner != l.IndexAddr {
		return nil, fmt.Errorf("fixed array data block belongs to header %d", owner)
	}

	full := uint32(chunkBytes(l.Chunk, ds.ElemSize))
	out := make([]btree.Chunk, 0, len(offsets))
	for _, off := range offsets {
		c := btree.Chunk{Offset: off, Size: full, Address: d.Offset()}
		if filtered {
			c.Size = uint32(d.Uint(sizeWidth))
			c.Mask = d.U32()
		}
		out = append(out, c)
	}
	return out, d.Err()
}

// filteredSizeWidth is the byte width of the stored chunk size in a
// filtered fixed array entry, sized so a chunk that grows slightly under
// filtering still fits.
func filteredSizeWidth(chunkBytes int) int {
	w := 1 + (bits.Len(uint(chunkBytes))-1+8)/8
	return min(w, 8)
}

// writeFixedArray stores the index for chunks, given in row-major chunk
// order, and returns the header address and page bits.
func writeFixedArray(space *alloc.Space, sz binary.Sizes, chunks []btree.Chunk, filtered bool, chunkBytes int) (uint64, uint8) {
	pageBits := uint8(max(minPageBits, bits.Len(uint(len(chunks)-1))))
	client, entrySize, sizeWidth := uint8(faClientRaw), sz.Offset, 0
	if filtered {
		sizeWidth = filteredSizeWidth(chunkBytes)
		client, entrySize = faClientFiltered, sz.Offset+sizeWidth+4
	}

	hdr := space.Alloc(faHeaderSize(sz))

	b := binary.NewEncoder(sz)
	b.Raw([]byte(faBlockSig))
	b.U8(0)
	b.U8(client)
	b.Offset(hdr)
	for _, c := range chunks {
		b.Offset(c.Address)
		if filtered {
			b.Uint(uint64(c.Size), sizeWidth)
			b.U32(c.Mask)
		}
	}
	b.Checksum(0)
	block := space.Place(b.Bytes())

	h := binary.NewEncoder(sz)
	h.Raw([]byte(faHeaderSig))
	h.U8(0)
	h.U8(client)
	h.U8(uint8(entrySize))
	h.U8(pageBits)
	h.Length(uint64(len(chunks)))
	h.Offset(block)
	h.Checksum(0)
	space.WriteAt(h.Bytes(), hdr)
	return hdr, pageBits
}
