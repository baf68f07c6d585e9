// Package snapshottest builds snapshot archives for tests, either as real
// HDF5 files written through the hdf5 package or as in-memory handles.
package snapshottest

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5export/hdf5"
	"github.com/robert-malhotra/h5export/internal/snapshot"
)

// Axis is one dataset under scales. Name is the NAME attribute value; nil
// leaves the attribute off.
type Axis struct {
	Key    string
	Name   any
	Values []float64
}

// Task is one dataset under tasks, with its full shape and row-major data.
type Task struct {
	Name  string
	Shape []int
	Data  []float64
}

// Archive describes the content of a snapshot archive.
type Archive struct {
	Axes  []Axis
	Time  []float64
	Tasks []Task

	// Legacy writes the file layout h5py uses by default.
	Legacy bool
	// Compress stores each task write as its own shuffled, deflated chunk,
	// like a Dedalus file handler with compression enabled.
	Compress bool
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// ScalarData fills a (steps, nx, nz) array from f.
func ScalarData(steps, nx, nz int, f func(t, i, j int) float64) []float64 {
	out := make([]float64, 0, steps*nx*nz)
	for t := 0; t < steps; t++ {
		for i := 0; i < nx; i++ {
			for j := 0; j < nz; j++ {
				out = append(out, f(t, i, j))
			}
		}
	}
	return out
}

// VectorData fills a (steps, 2, nx, nz) array from f.
func VectorData(steps, nx, nz int, f func(t, c, i, j int) float64) []float64 {
	out := make([]float64, 0, steps*2*nx*nz)
	for t := 0; t < steps; t++ {
		for c := 0; c < 2; c++ {
			for i := 0; i < nx; i++ {
				for j := 0; j < nz; j++ {
					out = append(out, f(t, c, i, j))
				}
			}
		}
	}
	return out
}

// Scalar returns the value ScalarData stores at (t, i, j) for KelvinHelmholtz.
func Scalar(t, i, j int) float64 { return float64(i*10 + j + 1000*t) }

// Velocity returns the vector value for KelvinHelmholtz.
func Velocity(t, c, i, j int) float64 {
	if c == 0 {
		return float64(i) + 0.25*float64(t)
	}
	return -float64(j) - 0.5*float64(t)
}

// KelvinHelmholtz returns an archive shaped like the Dedalus shear flow
// example: scalar, velocity and vorticity tasks on an (nx, nz) grid. The x
// axis key sorts after the z axis key.
func KelvinHelmholtz(nx, nz, steps int) *Archive {
	return &Archive{
		Axes: []Axis{
			{Key: "x_hash_f00d", Name: "x", Values: Linspace(0, 4, nx)},
			{Key: "z_hash_beef", Name: "z", Values: Linspace(-0.5, 0.5, nz)},
		},
		Time: Linspace(0, 0.1*float64(steps-1), steps),
		Tasks: []Task{
			{Name: "scalar", Shape: []int{steps, nx, nz}, Data: ScalarData(steps, nx, nz, Scalar)},
			{Name: "velocity", Shape: []int{steps, 2, nx, nz}, Data: VectorData(steps, nx, nz, Velocity)},
			{Name: "vorticity", Shape: []int{steps, nx, nz}, Data: ScalarData(steps, nx, nz, func(t, i, j int) float64 {
				return float64(i-j) * 0.01 * float64(t+1)
			})},
		},
	}
}

// Write stores the archive as an HDF5 file at name.
func (a *Archive) Write(name string) error {
	var fopts []hdf5.FileOption
	if a.Legacy {
		fopts = append(fopts, hdf5.WithLegacyFormat())
	}
	f, err := hdf5.Create(name, fopts...)
	if err != nil {
		return err
	}

	scales, err := f.Root().CreateGroup(snapshot.ScalesGroup)
	if err != nil {
		f.Close()
		return err
	}
	if _, err := scales.CreateDataset("sim_time", a.Time); err != nil {
		f.Close()
		return err
	}
	writes := make([]int32, len(a.Time))
	for i := range writes {
		writes[i] = int32(i + 1)
	}
	if _, err := scales.CreateDataset("write_number", writes); err != nil {
		f.Close()
		return err
	}
	for _, ax := range a.Axes {
		var opts []hdf5.DatasetOption
		if ax.Name != nil {
			opts = append(opts, hdf5.WithAttribute(snapshot.NameAttr, fileAttr(ax.Name)))
		}
		if _, err := scales.CreateDataset(ax.Key, ax.Values, opts...); err != nil {
			f.Close()
			return fmt.Errorf("axis %s: %w", ax.Key, err)
		}
	}

	tasks, err := f.Root().CreateGroup(snapshot.TasksGroup)
	if err != nil {
		f.Close()
		return err
	}
	for _, t := range a.Tasks {
		shape := make([]uint64, len(t.Shape))
		for i, d := range t.Shape {
			shape[i] = uint64(d)
		}
		opts := []hdf5.DatasetOption{hdf5.WithShape(shape...)}
		if a.Compress && len(shape) > 0 {
			chunk := append([]uint64{1}, shape[1:]...)
			opts = append(opts, hdf5.WithChunks(chunk...), hdf5.WithShuffle(), hdf5.WithDeflate(4))
		}
		if _, err := tasks.CreateDataset(t.Name, t.Data, opts...); err != nil {
			f.Close()
			return fmt.Errorf("task %s: %w", t.Name, err)
		}
	}
	return f.Close()
}

// fileAttr converts byte strings to str, which is what the writer stores as
// a fixed-length string attribute.
func fileAttr(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// WriteFile writes the archive to dir/name and fails the test on error.
func (a *Archive) WriteFile(tb testing.TB, dir, name string) string {
	tb.Helper()
	p := filepath.Join(dir, name)
	require.NoError(tb, a.Write(p))
	return p
}

type node struct {
	group bool
	attrs map[string]any
	arr   *snapshot.Array
}

// Memory is an in-memory snapshot.Handle.
type Memory struct {
	name   string
	nodes  map[string]*node
	closed bool
}

var _ snapshot.Handle = (*Memory)(nil)

// Memory returns an in-memory handle over the archive named name.
func (a *Archive) Memory(name string) *Memory {
	m := &Memory{name: name, nodes: map[string]*node{}}
	m.nodes[""] = &node{group: true}
	m.nodes[snapshot.ScalesGroup] = &node{group: true}
	m.nodes[snapshot.TasksGroup] = &node{group: true}
	m.put(snapshot.TimePath, []int{len(a.Time)}, a.Time, nil)
	for _, ax := range a.Axes {
		var attrs map[string]any
		if ax.Name != nil {
			attrs = map[string]any{snapshot.NameAttr: ax.Name}
		}
		m.put(path.Join(snapshot.ScalesGroup, ax.Key), []int{len(ax.Values)}, ax.Values, attrs)
	}
	for _, t := range a.Tasks {
		m.put(path.Join(snapshot.TasksGroup, t.Name), t.Shape, t.Data, nil)
	}
	return m
}

func (m *Memory) put(p string, shape []int, data []float64, attrs map[string]any) {
	m.nodes[p] = &node{attrs: attrs, arr: &snapshot.Array{Shape: shape, Data: data}}
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool { return m.closed }

// Name returns the name given to Memory.
func (m *Memory) Name() string { return m.name }

// Close marks the handle closed; Closed reports it.
func (m *Memory) Close() error {
	m.closed = true
	return nil
}

func clean(p string) string {
	return strings.Trim(path.Clean("/"+p), "/")
}

func (m *Memory) lookup(p string) (*node, error) {
	n, ok := m.nodes[clean(p)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, snapshot.ErrNotFound)
	}
	return n, nil
}

// OpenGroup lists the children of the group at p.
func (m *Memory) OpenGroup(p string) (snapshot.Group, error) {
	n, err := m.lookup(p)
	if err != nil {
		return snapshot.Group{}, err
	}
	if !n.group {
		return snapshot.Group{}, fmt.Errorf("%s: %w", p, snapshot.ErrNotGroup)
	}
	dir := clean(p)
	var children []string
	for k := range m.nodes {
		if k != "" && k != dir && path.Dir("/"+k) == "/"+dir {
			children = append(children, path.Base(k))
		}
	}
	sort.Strings(children)
	return snapshot.Group{Path: "/" + dir, Children: children}, nil
}

// Stat describes the dataset at p. Every dataset is float64.
func (m *Memory) Stat(p string) (snapshot.Info, error) {
	n, err := m.lookup(p)
	if err != nil {
		return snapshot.Info{}, err
	}
	if n.group {
		return snapshot.Info{}, fmt.Errorf("%s: %w", p, snapshot.ErrNotDataset)
	}
	return snapshot.Info{Path: "/" + clean(p), Shape: n.arr.Shape, Dtype: "float64", Size: 8}, nil
}

// ReadDataset returns a copy of the dataset at p.
func (m *Memory) ReadDataset(p string) (*snapshot.Array, error) {
	n, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	if n.group {
		return nil, fmt.Errorf("%s: %w", p, snapshot.ErrNotDataset)
	}
	return &snapshot.Array{
		Shape: append([]int(nil), n.arr.Shape...),
		Data:  append([]float64(nil), n.arr.Data...),
	}, nil
}

// Attributes lists the attribute names at p, sorted.
func (m *Memory) Attributes(p string) ([]string, error) {
	n, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(n.attrs))
	for k := range n.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

// Attribute returns the stored attribute value.
func (m *Memory) Attribute(p, name string) (any, error) {
	n, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	v, ok := n.attrs[name]
	if !ok {
		return nil, fmt.Errorf("%s@%s: %w", p, name, snapshot.ErrNoAttribute)
	}
	return v, nil
}
