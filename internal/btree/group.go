package btree

import (
	"fmt"
	"io"

	"github.com/robert-malhotra/h5export/internal/binary"
)

// Entry is a symbol table entry: one member of an old-style group.
type Entry struct {
	// NameOffset locates the member's name in the group's local heap.
	NameOffset uint64
	Header     uint64
	// CacheType 1 means Scratch holds the member's own B-tree and heap
	// addresses (the member is a group).
	CacheType uint32
	BTree     uint64
	Heap      uint64
}

func entrySize(sz binary.Sizes) int { return 2*sz.Offset + 8 + 16 }

func decodeEntry(d *binary.Decoder) Entry {
	sz := d.Sizes()
	e := Entry{NameOffset: d.Offset(), Header: d.Offset(), CacheType: d.U32()}
	d.Skip(4)
	scratch := d.Bytes(16)
	if e.CacheType == 1 && scratch != nil {
		sd := binary.NewDecoder(scratch, sz)
		e.BTree, e.Heap = sd.Offset(), sd.Offset()
	}
	return e
}

func (en Entry) encode(e *binary.Encoder) {
	start := e.Len()
	e.Offset(en.NameOffset)
	e.Offset(en.Header)
	e.U32(en.CacheType)
	e.U32(0)
	if en.CacheType == 1 {
		e.Offset(en.BTree)
		e.Offset(en.Heap)
	}
	e.Zeros(entrySize(e.Sizes()) - (e.Len() - start))
}

// symbolNodeSize is the full size of a symbol node holding 2*leafK entries.
func symbolNodeSize(leafK int, sz binary.Sizes) int {
	return 8 + 2*leafK*entrySize(sz)
}

func readSymbolNode(r io.ReaderAt, addr uint64, sz binary.Sizes) ([]Entry, error) {
	head, err := binary.ReadAt(r, addr, 8)
	if err != nil {
		return nil, fmt.Errorf("symbol node at %d: %w", addr, err)
	}
	d := binary.NewDecoder(head, sz)
	d.Signature("SNOD")
	if v := d.U8(); d.Err() == nil && v != 1 {
		return nil, fmt.Errorf("symbol node at %d: unsupported version %d", addr, v)
	}
	d.Skip(1)
	count := int(d.U16())
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("symbol node at %d: %w", addr, err)
	}

	body, err := binary.ReadAt(r, addr+8, count*entrySize(sz))
	if err != nil {
		return nil, fmt.Errorf("symbol node at %d: %w", addr, err)
	}
	d = binary.NewDecoder(body, sz)
	entries := make([]Entry, count)
	for i := range entries {
		entries[i] = decodeEntry(d)
	}
	return entries, d.Err()
}

// GroupEntries lists every member of the old-style group whose B-tree is
// at addr, in name order.
func GroupEntries(r io.ReaderAt, addr uint64, sz binary.Sizes) ([]Entry, error) {
	var out []Entry
	err := walk(r, addr, TypeGroup, sz.Length, sz, 0, func(_ []byte, child uint64) error {
		entries, err := readSymbolNode(r, child, sz)
		out = append(out, entries...)
		return err
	})
	return out, err
}

// WriteGroup stores entries, already sorted by name, as symbol nodes under
// a group B-tree and returns the tree's address.
func WriteGroup(entries []Entry, leafK, internalK int, sz binary.Sizes, place Place) uint64 {
	perNode := 2 * leafK
	var (
		nodes []uint64
		keys  = [][]byte{lengthKey(0, sz)}
	)
	for start := 0; start < len(entries); start += perNode {
		chunk := entries[start:min(start+perNode, len(entries))]
		e := binary.NewEncoder(sz)
		e.Raw([]byte("SNOD"))
		e.U8(1)
		e.U8(0)
		e.U16(uint16(len(chunk)))
		for _, en := range chunk {
			en.encode(e)
		}
		e.Zeros(symbolNodeSize(leafK, sz) - e.Len())
		nodes = append(nodes, place(e.Bytes()))
		keys = append(keys, lengthKey(chunk[len(chunk)-1].NameOffset, sz))
	}
	return build(nodes, keys, TypeGroup, internalK, sz.Length, sz, place)
}

func lengthKey(v uint64, sz binary.Sizes) []byte {
	e := binary.NewEncoder(sz)
	e.Length(v)
	return e.Bytes()
}
