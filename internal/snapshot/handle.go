package snapshot

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/robert-malhotra/h5export/hdf5"
)

// Fixed archive layout.
const (
	ScalesGroup = "scales"
	TasksGroup  = "tasks"
	TimePath    = "scales/sim_time"
	NameAttr    = "NAME"
)

// Handle is the read-only view of one archive used by the resolver, the
// classifier, the exporters and the inspector.
type Handle interface {
	// Name is the archive's file path.
	Name() string
	OpenGroup(path string) (Group, error)
	Stat(path string) (Info, error)
	ReadDataset(path string) (*Array, error)
	// Attributes lists attribute names of the group or dataset at path, sorted.
	Attributes(path string) ([]string, error)
	// Attribute decodes one attribute value. Missing attributes wrap
	// ErrNoAttribute.
	Attribute(path, name string) (any, error)
	Close() error
}

// Group is a listed group. Children are sorted.
type Group struct {
	Path     string
	Children []string
}

// Info describes a dataset without reading its data.
type Info struct {
	Path  string
	Shape []int
	Dtype string // "float64", "int32", "string", ...
	Size  int    // bytes per element
}

// Array is a dataset read as float64 in row-major order.
type Array struct {
	Shape []int
	Data  []float64
}

// Stem returns the archive file name without directory or extension.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// File is a Handle backed by an HDF5 file.
type File struct {
	name string
	f    *hdf5.File
}

// Open opens an archive read-only. Failures are input-side IOErrors.
func Open(name string) (*File, error) {
	f, err := hdf5.Open(name)
	if err != nil {
		return nil, &IOError{Op: "open", Path: name, Err: err}
	}
	return &File{name: name, f: f}, nil
}

// Name returns the path the archive was opened from.
func (a *File) Name() string { return a.name }

// Close releases the underlying file.
func (a *File) Close() error { return a.f.Close() }

// OpenGroup lists the group at p with its children sorted.
func (a *File) OpenGroup(p string) (Group, error) {
	g, err := a.f.OpenGroup(p)
	if err != nil {
		return Group{}, a.wrap(p, err)
	}
	names, err := g.Members()
	if err != nil {
		return Group{}, a.wrap(p, err)
	}
	sort.Strings(names)
	return Group{Path: g.Path(), Children: names}, nil
}

// Stat describes the dataset at p without reading it.
func (a *File) Stat(p string) (Info, error) {
	ds, err := a.f.OpenDataset(p)
	if err != nil {
		return Info{}, a.wrap(p, err)
	}
	return Info{
		Path:  ds.Path(),
		Shape: ints(ds.Shape()),
		Dtype: ds.DtypeName(),
		Size:  ds.DtypeSize(),
	}, nil
}

// ReadDataset reads the dataset at p as float64.
func (a *File) ReadDataset(p string) (*Array, error) {
	ds, err := a.f.OpenDataset(p)
	if err != nil {
		return nil, a.wrap(p, err)
	}
	data, err := ds.ReadFloat64()
	if err != nil {
		return nil, a.wrap(p, err)
	}
	shape := ints(ds.Shape())
	if n := product(shape); n != len(data) {
		return nil, a.wrap(p, fmt.Errorf("read %d values, shape %v holds %d", len(data), shape, n))
	}
	return &Array{Shape: shape, Data: data}, nil
}

type attrHolder interface {
	Attrs() []string
	Attr(name string) *hdf5.Attribute
}

func (a *File) holder(p string) (attrHolder, error) {
	g, err := a.f.OpenGroup(p)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, hdf5.ErrNotGroup) {
		return nil, a.wrap(p, err)
	}
	ds, err := a.f.OpenDataset(p)
	if err != nil {
		return nil, a.wrap(p, err)
	}
	return ds, nil
}

// Attributes lists the attribute names of the object at p, sorted.
func (a *File) Attributes(p string) ([]string, error) {
	h, err := a.holder(p)
	if err != nil {
		return nil, err
	}
	names := h.Attrs()
	sort.Strings(names)
	return names, nil
}

// Attribute decodes the named attribute of the object at p.
func (a *File) Attribute(p, name string) (any, error) {
	h, err := a.holder(p)
	if err != nil {
		return nil, err
	}
	attr := h.Attr(name)
	if attr == nil {
		return nil, fmt.Errorf("%s@%s: %w", p, name, ErrNoAttribute)
	}
	v, err := attr.Value()
	if err != nil {
		return nil, a.wrap(hdf5.JoinAttrPath(p, name), err)
	}
	return v, nil
}

// wrap maps codec errors onto the package sentinels; anything else is an
// input IOError.
func (a *File) wrap(p string, err error) error {
	switch {
	case errors.Is(err, hdf5.ErrNotFound):
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	case errors.Is(err, hdf5.ErrNotDataset):
		return fmt.Errorf("%s: %w", p, ErrNotDataset)
	case errors.Is(err, hdf5.ErrNotGroup):
		return fmt.Errorf("%s: %w", p, ErrNotGroup)
	}
	return &IOError{Op: "read", Path: a.name + ":" + path.Join("/", p), Err: err}
}

func ints(dims []uint64) []int {
	out := make([]int, len(dims))
	for i, d := range dims {
		out[i] = int(d)
	}
	return out
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
