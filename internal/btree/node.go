// Package btree reads and writes version 1 B-trees, which index the
// members of old-style groups and the chunks of datasets in legacy files.
//
// A node holds N children between N+1 keys. Group keys are local heap
// offsets of member names; chunk keys give a chunk's stored size, filter
// mask and logical offset.
package btree

import (
	"fmt"
	"io"

	"github.com/robert-malhotra/h5export/internal/binary"
)

// Node types.
const (
	TypeGroup = 0
	TypeChunk = 1
)

// maxDepth bounds recursion in corrupt trees.
const maxDepth = 64

// Place stores b somewhere in the file being written and returns its address.
type Place func(b []byte) uint64

type node struct {
	level    uint8
	keys     [][]byte
	children []uint64
}

func headerSize(sz binary.Sizes) int { return 8 + 2*sz.Offset }

// nodeSize is the full on-disk size of a node with room for 2k children.
func nodeSize(k, keySize int, sz binary.Sizes) int {
	return headerSize(sz) + (2*k+1)*keySize + 2*k*sz.Offset
}

func readNode(r io.ReaderAt, addr uint64, typ uint8, keySize int, sz binary.Sizes) (*node, error) {
	head, err := binary.ReadAt(r, addr, headerSize(sz))
	if err != nil {
		return nil, fmt.Errorf("b-tree node at %d: %w", addr, err)
	}
	d := binary.NewDecoder(head, sz)
	d.Signature("TREE")
	if got := d.U8(); d.Err() == nil && got != typ {
		return nil, fmt.Errorf("b-tree node at %d: type %d, want %d", addr, got, typ)
	}
	n := &node{level: d.U8()}
	used := int(d.U16())
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("b-tree node at %d: %w", addr, err)
	}

	body, err := binary.ReadAt(r, addr+uint64(len(head)), used*(keySize+sz.Offset)+keySize)
	if err != nil {
		return nil, fmt.Errorf("b-tree node at %d: %w", addr, err)
	}
	d = binary.NewDecoder(body, sz)
	for i := 0; i < used; i++ {
		n.keys = append(n.keys, d.Bytes(keySize))
		n.children = append(n.children, d.Offset())
	}
	n.keys = append(n.keys, d.Bytes(keySize))
	return n, d.Err()
}

func (n *node) encode(typ uint8, k, keySize int, sz binary.Sizes) []byte {
	e := binary.NewEncoder(sz)
	e.Raw([]byte("TREE"))
	e.U8(typ)
	e.U8(n.level)
	e.U16(uint16(len(n.children)))
	e.Offset(binary.Undefined)
	e.Offset(binary.Undefined)
	for i, child := range n.children {
		e.Raw(n.keys[i])
		e.Offset(child)
	}
	e.Raw(n.keys[len(n.children)])
	e.Zeros(nodeSize(k, keySize, sz) - e.Len())
	return e.Bytes()
}

// walk visits the level-0 children of the tree at addr with the key to
// their left.
func walk(r io.ReaderAt, addr uint64, typ uint8, keySize int, sz binary.Sizes, depth int, visit func(key []byte, child uint64) error) error {
	if depth > maxDepth {
		return fmt.Errorf("b-tree deeper than %d levels", maxDepth)
	}
	n, err := readNode(r, addr, typ, keySize, sz)
	if err != nil {
		return err
	}
	for i, child := range n.children {
		if n.level == 0 {
			err = visit(n.keys[i], child)
		} else {
			err = walk(r, child, typ, keySize, sz, depth+1, visit)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// build writes a tree over leaves with at most 2k children per node and
// returns the root address. keys has one more element than leaves.
func build(leaves []uint64, keys [][]byte, typ uint8, k, keySize int, sz binary.Sizes, place Place) uint64 {
	level := uint8(0)
	for {
		var (
			nextLeaves []uint64
			nextKeys   [][]byte
		)
		for start := 0; start < len(leaves) || start == 0; start += 2 * k {
			end := min(start+2*k, len(leaves))
			n := &node{level: level, children: leaves[start:end], keys: keys[start : end+1]}
			nextLeaves = append(nextLeaves, place(n.encode(typ, k, keySize, sz)))
			nextKeys = append(nextKeys, keys[start])
			if end == len(leaves) {
				break
			}
		}
		if len(nextLeaves) == 1 {
			return nextLeaves[0]
		}
		leaves = nextLeaves
		keys = append(nextKeys, keys[len(keys)-1])
		level++
	}
}
