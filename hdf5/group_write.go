package hdf5

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/robert-malhotra/h5export/internal/alloc"
	h5bin "github.com/robert-malhotra/h5export/internal/binary"
	"github.com/robert-malhotra/h5export/internal/btree"
	"github.com/robert-malhotra/h5export/internal/heap"
	"github.com/robert-malhotra/h5export/internal/message"
	"github.com/robert-malhotra/h5export/internal/object"
	"github.com/robert-malhotra/h5export/internal/superblock"
)

// groupNode is a group under construction. Children keep creation order.
type groupNode struct {
	children []*childNode
	attrs    []*attrEntry
}

type childNode struct {
	name    string
	group   *groupNode
	dataset *datasetNode
}

type attrEntry struct {
	name string
	v    *values
	// ids locate string values in the global heap of a legacy file.
	ids []uint32
}

// groupRef is where a written group lives. btree and heap are set for
// symbol-table groups.
type groupRef struct {
	header, btree, heap uint64
}

func (g *Group) writable() error {
	switch {
	case g.f.closed:
		return ErrClosed
	case g.node == nil:
		return ErrReadOnly
	}
	return nil
}

func (g *Group) addChild(name string) (*childNode, error) {
	if err := g.writable(); err != nil {
		return nil, err
	}
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid link name %q", name)
	}
	for _, c := range g.node.children {
		if c.name == name {
			return nil, fmt.Errorf("%s already exists", path.Join(g.path, name))
		}
	}
	c := &childNode{name: name}
	g.node.children = append(g.node.children, c)
	return c, nil
}

// CreateGroup adds an empty group.
func (g *Group) CreateGroup(name string) (*Group, error) {
	c, err := g.addChild(name)
	if err != nil {
		return nil, err
	}
	c.group = &groupNode{}
	return &Group{f: g.f, path: path.Join(g.path, name), node: c.group}, nil
}

// SetAttr attaches an attribute to a group being written, replacing any
// earlier value of the same name.
func (g *Group) SetAttr(name string, value any) error {
	if err := g.writable(); err != nil {
		return err
	}
	a, err := newAttr(name, value)
	if err != nil {
		return err
	}
	for i, old := range g.node.attrs {
		if old.name == name {
			g.node.attrs[i] = a
			return nil
		}
	}
	g.node.attrs = append(g.node.attrs, a)
	return nil
}

func newAttr(name string, value any) (*attrEntry, error) {
	if name == "" {
		return nil, fmt.Errorf("empty attribute name")
	}
	v, err := encodeValues(value)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}
	return &attrEntry{name: name, v: v}, nil
}

// writeGroup stores the subtree under n, children first, and returns where
// the group's header landed.
func (w *writer) writeGroup(space *alloc.Space, n *groupNode) (groupRef, error) {
	type placed struct {
		name string
		addr uint64
		sub  *groupRef
	}
	kids := make([]placed, 0, len(n.children))
	for _, c := range n.children {
		p := placed{name: c.name}
		if c.group != nil {
			ref, err := w.writeGroup(space, c.group)
			if err != nil {
				return groupRef{}, err
			}
			p.addr, p.sub = ref.header, &ref
		} else {
			addr, err := w.writeDataset(space, c.dataset)
			if err != nil {
				return groupRef{}, fmt.Errorf("%s: %w", c.name, err)
			}
			p.addr = addr
		}
		kids = append(kids, p)
	}

	ref := groupRef{btree: h5bin.Undefined, heap: h5bin.Undefined}
	var msgs []message.Raw
	if w.legacy {
		// Symbol tables are searched by name, so entries are sorted.
		slices.SortFunc(kids, func(a, b placed) int { return strings.Compare(a.name, b.name) })
		names := heap.NewLocalBuilder()
		entries := make([]btree.Entry, len(kids))
		for i, k := range kids {
			entries[i] = btree.Entry{NameOffset: names.Add(k.name), Header: k.addr}
			if k.sub != nil {
				entries[i].CacheType = 1
				entries[i].BTree, entries[i].Heap = k.sub.btree, k.sub.heap
			}
		}
		data := space.Place(names.Data())
		ref.heap = space.Place(names.Header(data, w.sz))
		ref.btree = btree.WriteGroup(entries, superblock.DefaultLeafK, superblock.DefaultInternalK, w.sz, space.Place)
		msgs = append(msgs, message.Encode(&message.SymbolTable{BTree: ref.btree, Heap: ref.heap}, w.sz))
	} else {
		msgs = append(msgs,
			message.Encode(message.EmptyLinkInfo(), w.sz),
			message.Encode(&message.GroupInfo{}, w.sz))
		for _, k := range kids {
			msgs = append(msgs, message.Encode(&message.Link{Kind: message.LinkHard, Name: k.name, Address: k.addr}, w.sz))
		}
	}
	for _, a := range n.attrs {
		msgs = append(msgs, w.attribute(a))
	}
	ref.header = space.Place(w.header(msgs))
	return ref, nil
}

func (w *writer) header(msgs []message.Raw) []byte {
	if w.legacy {
		return object.EncodeV1(msgs, w.sz)
	}
	return object.EncodeV2(msgs, w.sz)
}
