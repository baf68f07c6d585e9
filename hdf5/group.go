package hdf5

import (
	"fmt"
	"path"

	h5bin "github.com/robert-malhotra/h5export/internal/binary"
	"github.com/robert-malhotra/h5export/internal/btree"
	"github.com/robert-malhotra/h5export/internal/heap"
	"github.com/robert-malhotra/h5export/internal/message"
	"github.com/robert-malhotra/h5export/internal/object"
)

// Group is a group in an open file, or a group being built in a file made
// by Create.
type Group struct {
	f    *File
	path string
	attrList

	// Read side. Old-style groups keep members in a symbol table; newer
	// ones hold link messages in the header.
	hdr   *object.Header
	stab  *message.SymbolTable
	links []*message.Link

	// Write side.
	node *groupNode
}

type member struct {
	name string
	kind message.LinkKind
	addr uint64
}

func (f *File) group(hdr *object.Header, p string) (*Group, error) {
	g := &Group{f: f, path: p, hdr: hdr}
	var err error
	if g.attrList, err = f.attributes(hdr); err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	sz := f.sizes()

	st, err := hdr.First(message.TypeSymbolTable, sz)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	if st != nil {
		g.stab = st.(*message.SymbolTable)
		return g, nil
	}

	li, err := hdr.First(message.TypeLinkInfo, sz)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	if li != nil && li.(*message.LinkInfo).Dense() {
		return nil, fmt.Errorf("%s: dense link storage: %w", p, ErrUnsupported)
	}
	msgs, err := hdr.Decoded(message.TypeLink, sz)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	g.links = make([]*message.Link, len(msgs))
	for i, m := range msgs {
		g.links[i] = m.(*message.Link)
	}
	return g, nil
}

// Path returns the absolute path of the group.
func (g *Group) Path() string { return g.path }

// Name is the last path component; the root group is "/".
func (g *Group) Name() string { return path.Base(g.path) }

func (g *Group) members() ([]member, error) {
	if g.stab == nil {
		out := make([]member, len(g.links))
		for i, l := range g.links {
			out[i] = member{name: l.Name, kind: l.Kind, addr: l.Address}
		}
		return out, nil
	}

	sz := g.f.sizes()
	entries, err := btree.GroupEntries(g.f.r, g.stab.BTree, sz)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.path, err)
	}
	names, err := heap.ReadLocal(g.f.r, g.stab.Heap, sz)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.path, err)
	}
	out := make([]member, len(entries))
	for i, e := range entries {
		name, err := names.String(e.NameOffset)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", g.path, err)
		}
		out[i] = member{name: name, kind: message.LinkHard, addr: e.Header}
	}
	return out, nil
}

// Members lists the names linked from the group.
func (g *Group) Members() ([]string, error) {
	if g.node != nil {
		out := make([]string, len(g.node.children))
		for i, c := range g.node.children {
			out[i] = c.name
		}
		return out, nil
	}
	ms, err := g.members()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.name
	}
	return out, nil
}

// lookup returns the object header address linked as name.
func (g *Group) lookup(name string) (uint64, error) {
	ms, err := g.members()
	if err != nil {
		return 0, err
	}
	for _, m := range ms {
		if m.name != name {
			continue
		}
		if m.kind != message.LinkHard || m.addr == h5bin.Undefined {
			return 0, fmt.Errorf("%s: %s link: %w", path.Join(g.path, name), m.kind, ErrUnsupported)
		}
		return m.addr, nil
	}
	return 0, fmt.Errorf("%s: %w", path.Join(g.path, name), ErrNotFound)
}

// OpenGroup opens a group by path relative to g.
func (g *Group) OpenGroup(rel string) (*Group, error) {
	return g.f.OpenGroup(path.Join(g.path, rel))
}

// OpenDataset opens a dataset by path relative to g.
func (g *Group) OpenDataset(rel string) (*Dataset, error) {
	return g.f.OpenDataset(path.Join(g.path, rel))
}
