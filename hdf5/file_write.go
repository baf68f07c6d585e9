package hdf5

import (
	"fmt"
	"os"

	"github.com/robert-malhotra/h5export/internal/alloc"
	h5bin "github.com/robert-malhotra/h5export/internal/binary"
	"github.com/robert-malhotra/h5export/internal/heap"
	"github.com/robert-malhotra/h5export/internal/message"
	"github.com/robert-malhotra/h5export/internal/superblock"
)

// maxHeapObjects is the most objects one global heap collection indexes.
const maxHeapObjects = 0xffff

// writer holds the format choices of a file made by Create.
type writer struct {
	legacy bool
	sz     h5bin.Sizes

	// Variable-length strings of legacy files share one collection.
	strings     heap.CollectionBuilder
	stringsAddr uint64
}

// Create makes a new file, truncating any existing one. Nothing is written
// until Close.
func Create(name string, opts ...FileOption) (*File, error) {
	o := fileOptions{sizes: h5bin.Default}
	for _, opt := range opts {
		opt(&o)
	}
	osf, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	sb := &superblock.Superblock{Version: 3, Sizes: o.sizes, RootBTree: h5bin.Undefined, RootHeap: h5bin.Undefined}
	if o.legacy {
		sb.Version = 0
		sb.LeafK, sb.InternalK = superblock.DefaultLeafK, superblock.DefaultInternalK
	}
	f := &File{path: name, file: osf, sb: sb, w: &writer{legacy: o.legacy, sz: sb.Sizes}}
	f.root = &Group{f: f, path: "/", node: &groupNode{}}
	return f, nil
}

// flush lays the whole file out in memory and writes it.
func (f *File) flush() error {
	w, sb := f.w, f.sb
	space := alloc.New(superblock.Size(sb.Version, sb.Sizes))
	if err := w.placeStrings(space, f.root.node); err != nil {
		return err
	}
	ref, err := w.writeGroup(space, f.root.node)
	if err != nil {
		return err
	}
	sb.Root = ref.header
	if w.legacy {
		sb.RootBTree, sb.RootHeap = ref.btree, ref.heap
	}
	sb.EOF = space.EOF()
	if w.sz.Offset < 8 && sb.EOF >= 1<<(8*uint(w.sz.Offset))-1 {
		return fmt.Errorf("%s: %d bytes do not fit %d-byte addresses", f.path, sb.EOF, w.sz.Offset)
	}
	space.WriteAt(sb.Encode(), 0)

	if _, err := f.file.WriteAt(space.Bytes(), 0); err != nil {
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	return nil
}

// placeStrings stores every string attribute value of a legacy file in a
// global heap collection ahead of the headers that point into it.
func (w *writer) placeStrings(space *alloc.Space, root *groupNode) error {
	if !w.legacy {
		return nil
	}
	var visit func(n *groupNode)
	add := func(attrs []*attrEntry) {
		for _, a := range attrs {
			if a.v.strs == nil {
				continue
			}
			a.ids = make([]uint32, len(a.v.strs))
			for i, s := range a.v.strs {
				a.ids[i] = w.strings.Add([]byte(s))
			}
		}
	}
	visit = func(n *groupNode) {
		add(n.attrs)
		for _, c := range n.children {
			if c.group != nil {
				visit(c.group)
			} else {
				add(c.dataset.attrs)
			}
		}
	}
	visit(root)

	if w.strings.Len() > maxHeapObjects {
		return fmt.Errorf("%d string attribute values exceed one global heap collection: %w", w.strings.Len(), ErrUnsupported)
	}
	if w.strings.Len() > 0 {
		w.stringsAddr = space.Place(w.strings.Encode(w.sz))
	}
	return nil
}

// attribute encodes one attribute message in the file's format.
func (w *writer) attribute(a *attrEntry) message.Raw {
	m := &message.Attribute{Version: 3, Name: a.name, Datatype: a.v.dtype, Dataspace: w.dataspace(a.v.dims), Data: a.v.data}
	if w.legacy {
		m.Version = 1
	}
	if a.v.strs != nil {
		m.Datatype, m.Data = w.stringData(a)
	}
	return message.Encode(m, w.sz)
}

// stringData picks the string representation: variable-length strings in
// the global heap for legacy files, NUL-padded fixed strings otherwise.
func (w *writer) stringData(a *attrEntry) (*message.Datatype, []byte) {
	strs := a.v.strs
	if w.legacy {
		e := h5bin.NewEncoder(w.sz)
		for i, s := range strs {
			heap.VarLen{Len: uint32(len(s)), ID: heap.ID{Collection: w.stringsAddr, Index: a.ids[i]}}.Encode(e)
		}
		return message.VarString(w.sz), e.Bytes()
	}

	width := 1
	for _, s := range strs {
		width = max(width, len(s))
	}
	t := message.FixedString(uint32(width))
	t.Padding = message.PadNullPad
	data := make([]byte, width*len(strs))
	for i, s := range strs {
		copy(data[i*width:], s)
	}
	return t, data
}

func (w *writer) dataspace(dims []uint64) *message.Dataspace {
	s := message.Scalar()
	if dims != nil {
		s = message.Simple(dims...)
	}
	if w.legacy {
		s.Version = 1
	}
	return s
}
