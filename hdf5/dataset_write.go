package hdf5

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/h5export/internal/alloc"
	"github.com/robert-malhotra/h5export/internal/filter"
	"github.com/robert-malhotra/h5export/internal/layout"
	"github.com/robert-malhotra/h5export/internal/message"
)

// datasetNode is a dataset waiting to be written.
type datasetNode struct {
	v       *values
	chunks  []uint32
	filters []message.FilterInfo
	attrs   []*attrEntry
}

// CreateDataset adds a dataset holding data, a numeric scalar or slice.
// Slices are one-dimensional unless WithShape gives another shape.
func (g *Group) CreateDataset(name string, data any, opts ...DatasetOption) (*Dataset, error) {
	if err := g.writable(); err != nil {
		return nil, err
	}
	var o datasetOptions
	for _, opt := range opts {
		opt(&o)
	}
	p := path.Join(g.path, name)

	v, err := encodeValues(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	if v.strs != nil {
		return nil, fmt.Errorf("%s: string datasets: %w", p, ErrUnsupported)
	}
	if o.shape != nil {
		want := v.count()
		v.dims = append([]uint64{}, o.shape...)
		if got := v.count(); got != want {
			return nil, fmt.Errorf("%s: shape %v holds %d elements, data has %d", p, o.shape, got, want)
		}
	}

	n := &datasetNode{v: v}
	if n.chunks, err = chunkShape(o, v.dims); err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	for _, fd := range o.filters {
		info := message.FilterInfo{ID: fd.id, Name: filter.Name(fd.id)}
		if fd.optional {
			info.Flags = message.FilterOptional
		}
		switch fd.id {
		case message.FilterShuffle:
			info.ClientData = []uint32{v.dtype.Size}
		case message.FilterDeflate, message.FilterZstd:
			info.ClientData = []uint32{fd.level}
		}
		n.filters = append(n.filters, info)
	}
	for _, ad := range o.attrs {
		a, err := newAttr(ad.name, ad.value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		n.attrs = append(n.attrs, a)
	}

	c, err := g.addChild(name)
	if err != nil {
		return nil, err
	}
	c.dataset = n

	return &Dataset{f: g.f, path: p, space: g.f.w.dataspace(v.dims), dtype: v.dtype}, nil
}

// chunkShape validates WithChunks. Filters need chunked storage, so a
// filtered dataset without chunks is stored as a single chunk.
func chunkShape(o datasetOptions, dims []uint64) ([]uint32, error) {
	chunks := o.chunks
	if chunks == nil && len(o.filters) > 0 {
		chunks = make([]uint64, len(dims))
		for i, d := range dims {
			chunks[i] = max(d, 1)
		}
	}
	if chunks == nil {
		return nil, nil
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("scalar datasets cannot be chunked")
	}
	if len(chunks) != len(dims) {
		return nil, fmt.Errorf("chunk shape %v does not match rank %d", chunks, len(dims))
	}
	out := make([]uint32, len(chunks))
	for i, c := range chunks {
		if c == 0 || c > 1<<32-1 {
			return nil, fmt.Errorf("chunk dimension %d out of range", c)
		}
		out[i] = uint32(c)
	}
	return out, nil
}

// writeDataset stores the data, then the header, and returns the header
// address.
func (w *writer) writeDataset(space *alloc.Space, n *datasetNode) (uint64, error) {
	var (
		l   *message.Layout
		fp  *message.FilterPipeline
		err error
	)
	if n.chunks == nil {
		l = layout.WriteContiguous(space, n.v.data)
	} else {
		var p *filter.Pipeline
		if len(n.filters) > 0 {
			fp = &message.FilterPipeline{Version: 2, Filters: n.filters}
			if w.legacy {
				fp.Version = 1
			}
			if p, err = filter.NewPipeline(fp); err != nil {
				return 0, err
			}
		}
		l, err = layout.WriteChunked(space, w.sz, n.v.data, n.v.dims, int(n.v.dtype.Size),
			layout.Chunking{Chunk: n.chunks, Pipeline: p, Legacy: w.legacy})
		if err != nil {
			return 0, err
		}
	}

	msgs := []message.Raw{
		message.Encode(w.dataspace(n.v.dims), w.sz),
		message.Encode(n.v.dtype, w.sz),
		message.Encode(l, w.sz),
	}
	if fp != nil {
		msgs = append(msgs, message.Encode(fp, w.sz))
	}
	for _, a := range n.attrs {
		msgs = append(msgs, w.attribute(a))
	}
	return space.Place(w.header(msgs)), nil
}
