package hdf5

import (
	"fmt"
	"io"
	"math"
	"os"
	"path"

	h5bin "github.com/robert-malhotra/h5export/internal/binary"
	"github.com/robert-malhotra/h5export/internal/heap"
	"github.com/robert-malhotra/h5export/internal/message"
	"github.com/robert-malhotra/h5export/internal/object"
	"github.com/robert-malhotra/h5export/internal/superblock"
)

// File is an HDF5 file opened by Open or Create.
type File struct {
	path   string
	file   *os.File
	r      io.ReaderAt
	sb     *superblock.Superblock
	root   *Group
	closed bool

	collections map[uint64]*heap.Collection

	// w is set for files made by Create.
	w *writer
}

// Open opens an HDF5 file for reading.
func Open(name string) (*File, error) {
	osf, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	f, err := load(name, osf)
	if err != nil {
		osf.Close()
		return nil, err
	}
	return f, nil
}

func load(name string, osf *os.File) (*File, error) {
	sb, err := superblock.Read(osf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	f := &File{path: name, file: osf, r: osf, sb: sb, collections: map[uint64]*heap.Collection{}}
	if sb.Offset != 0 {
		// Addresses are relative to the superblock when a user block precedes it.
		f.r = io.NewSectionReader(osf, sb.Offset, math.MaxInt64-sb.Offset)
	}

	hdr, err := f.header(sb.Root)
	if err != nil {
		return nil, fmt.Errorf("root group: %w", err)
	}
	if f.root, err = f.group(hdr, "/"); err != nil {
		return nil, fmt.Errorf("root group: %w", err)
	}
	if f.root.stab == nil && len(f.root.links) == 0 && sb.RootBTree != h5bin.Undefined {
		f.root.stab = &message.SymbolTable{BTree: sb.RootBTree, Heap: sb.RootHeap}
	}
	return f, nil
}

// Close releases the file. A file made by Create is written out first.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if f.w != nil {
		if err := f.flush(); err != nil {
			f.file.Close()
			return err
		}
	}
	return f.file.Close()
}

// Root returns the root group.
func (f *File) Root() *Group { return f.root }

// Path returns the name the file was opened or created with.
func (f *File) Path() string { return f.path }

// Version returns the superblock version.
func (f *File) Version() int { return int(f.sb.Version) }

func (f *File) sizes() h5bin.Sizes { return f.sb.Sizes }

func (f *File) readable() error {
	switch {
	case f.closed:
		return ErrClosed
	case f.w != nil:
		return ErrWriteOnly
	}
	return nil
}

// OpenGroup opens the group at an absolute path.
func (f *File) OpenGroup(p string) (*Group, error) {
	hdr, p, err := f.resolve(p)
	if err != nil {
		return nil, err
	}
	if isDataset(hdr) {
		return nil, fmt.Errorf("%s: %w", p, ErrNotGroup)
	}
	if p == "/" {
		return f.root, nil
	}
	return f.group(hdr, p)
}

// OpenDataset opens the dataset at an absolute path.
func (f *File) OpenDataset(p string) (*Dataset, error) {
	hdr, p, err := f.resolve(p)
	if err != nil {
		return nil, err
	}
	if !isDataset(hdr) {
		return nil, fmt.Errorf("%s: %w", p, ErrNotDataset)
	}
	return f.dataset(hdr, p)
}

// GetAttr returns the attribute named by an "object@name" path.
func (f *File) GetAttr(attrPath string) (*Attribute, error) {
	obj, name, err := ParseAttrPath(attrPath)
	if err != nil {
		return nil, err
	}
	hdr, obj, err := f.resolve(obj)
	if err != nil {
		return nil, err
	}
	attrs, err := f.attributes(hdr)
	if err != nil {
		return nil, err
	}
	if a := attrs.Attr(name); a != nil {
		return a, nil
	}
	return nil, fmt.Errorf("%s: %w", JoinAttrPath(obj, name), ErrNotFound)
}

// resolve walks p from the root and returns the object header it names
// with the cleaned path.
func (f *File) resolve(p string) (*object.Header, string, error) {
	if err := f.readable(); err != nil {
		return nil, "", err
	}
	g, cur := f.root, "/"
	names := splitPath(p)
	if len(names) == 0 {
		return g.hdr, cur, nil
	}
	for i, name := range names {
		cur = path.Join(cur, name)
		addr, err := g.lookup(name)
		if err != nil {
			return nil, "", err
		}
		hdr, err := f.header(addr)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", cur, err)
		}
		if i == len(names)-1 {
			return hdr, cur, nil
		}
		if isDataset(hdr) {
			return nil, "", fmt.Errorf("%s: %w", cur, ErrNotGroup)
		}
		if g, err = f.group(hdr, cur); err != nil {
			return nil, "", err
		}
	}
	panic("unreachable")
}

func (f *File) header(addr uint64) (*object.Header, error) {
	return object.Read(f.r, addr, f.sizes())
}

// collection loads and caches a global heap collection.
func (f *File) collection(addr uint64) (*heap.Collection, error) {
	if c, ok := f.collections[addr]; ok {
		return c, nil
	}
	c, err := heap.ReadCollection(f.r, addr, f.sizes())
	if err != nil {
		return nil, err
	}
	f.collections[addr] = c
	return c, nil
}

func isDataset(hdr *object.Header) bool {
	return len(hdr.Find(message.TypeLayout)) > 0
}
