package hdf5

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/h5export/internal/filter"
	"github.com/robert-malhotra/h5export/internal/layout"
	"github.com/robert-malhotra/h5export/internal/message"
	"github.com/robert-malhotra/h5export/internal/object"
)

// Dataset is a dataset in an open file, or one just written to a file
// made by Create.
type Dataset struct {
	f    *File
	path string
	attrList

	space   *message.Dataspace
	dtype   *message.Datatype
	layout  *message.Layout
	filters *message.FilterPipeline
}

func (f *File) dataset(hdr *object.Header, p string) (*Dataset, error) {
	ds := &Dataset{f: f, path: p}
	var err error
	if ds.attrList, err = f.attributes(hdr); err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	sz := f.sizes()
	required := []struct {
		t   message.Type
		set func(message.Message)
	}{
		{message.TypeDataspace, func(m message.Message) { ds.space = m.(*message.Dataspace) }},
		{message.TypeDatatype, func(m message.Message) { ds.dtype = m.(*message.Datatype) }},
		{message.TypeLayout, func(m message.Message) { ds.layout = m.(*message.Layout) }},
	}
	for _, r := range required {
		m, err := hdr.First(r.t, sz)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if m == nil {
			return nil, fmt.Errorf("%s: no %s message", p, r.t)
		}
		r.set(m)
	}
	fp, err := hdr.First(message.TypeFilterPipeline, sz)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	if fp != nil {
		ds.filters = fp.(*message.FilterPipeline)
	}
	return ds, nil
}

// Name returns the last path element.
func (ds *Dataset) Name() string { return path.Base(ds.path) }

// Path returns the absolute path.
func (ds *Dataset) Path() string { return ds.path }

// Shape returns the dimensions; a scalar dataset has none.
func (ds *Dataset) Shape() []uint64 {
	if ds.space.Kind != message.SpaceSimple {
		return []uint64{}
	}
	return append([]uint64(nil), ds.space.Dims...)
}

// Rank returns the number of dimensions; 0 for a scalar.
func (ds *Dataset) Rank() int { return len(ds.Shape()) }

// NumElements returns the product of the dimensions.
func (ds *Dataset) NumElements() uint64 { return ds.space.NumElements() }

// DtypeName is a numpy-like label such as "float64", "int32" or "string".
func (ds *Dataset) DtypeName() string { return ds.dtype.Name() }

// DtypeSize is the size of one element in bytes.
func (ds *Dataset) DtypeSize() int { return int(ds.dtype.Size) }

// Chunks returns the chunk shape, or nil when the dataset is not chunked.
func (ds *Dataset) Chunks() []uint64 {
	if ds.layout == nil || ds.layout.Class != message.LayoutChunked {
		return nil
	}
	out := make([]uint64, len(ds.layout.Chunk))
	for i, c := range ds.layout.Chunk {
		out[i] = uint64(c)
	}
	return out
}

// Filters names the filters applied to each chunk, in write order.
func (ds *Dataset) Filters() []string {
	if ds.filters == nil {
		return nil
	}
	out := make([]string, len(ds.filters.Filters))
	for i, fi := range ds.filters.Filters {
		out[i] = filter.Name(fi.ID)
	}
	return out
}

// ReadRaw returns the stored bytes of every element in row-major order.
func (ds *Dataset) ReadRaw() ([]byte, error) {
	if err := ds.f.readable(); err != nil {
		return nil, err
	}
	if ds.space.Kind == message.SpaceNull {
		return nil, nil
	}
	p, err := filter.NewPipeline(ds.filters)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ds.path, err)
	}
	raw, err := layout.Read(ds.f.r, ds.f.sizes(), &layout.Dataset{
		Layout:   ds.layout,
		Dims:     ds.Shape(),
		ElemSize: ds.DtypeSize(),
		Pipeline: p,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ds.path, err)
	}
	return raw, nil
}

// ReadFloat64 reads every element widened to float64.
func (ds *Dataset) ReadFloat64() ([]float64, error) {
	t := ds.dtype
	if !t.IsNumeric() {
		return nil, fmt.Errorf("%s: %s values as float64: %w", ds.path, t.Name(), ErrUnsupported)
	}
	raw, err := ds.ReadRaw()
	if err != nil {
		return nil, err
	}
	size := int(t.Size)
	out := make([]float64, len(raw)/size)
	for i := range out {
		b := raw[i*size : (i+1)*size]
		switch {
		case t.Class == message.ClassFloat:
			out[i] = floatAt(b, t.BigEndian)
		case t.Signed:
			out[i] = float64(intAt(b, t.BigEndian))
		default:
			out[i] = float64(word(b, t.BigEndian))
		}
	}
	return out, nil
}
