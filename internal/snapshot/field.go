package snapshot

import (
	"errors"
	"fmt"
	"path"
)

// Kind tags a field as scalar or vector.
type Kind int

const (
	Scalar Kind = iota
	Vector
)

// String returns "scalar" or "vector".
func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Vector:
		return "vector"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// SpatialDims is the number of archive axes, and the component count of a
// vector field.
const SpatialDims = 2

// Classify decides the kind of a field from its per-frame shape.
func Classify(name string, frameShape []int, nx, nz int) (Kind, error) {
	switch {
	case len(frameShape) == 2 && frameShape[0] == nx && frameShape[1] == nz:
		return Scalar, nil
	case len(frameShape) == 3 && frameShape[0] == SpatialDims && frameShape[1] == nx && frameShape[2] == nz:
		return Vector, nil
	}
	return 0, &SchemaError{
		Field:  name,
		Shape:  frameShape,
		Reason: fmt.Sprintf("want [%d %d] or [%d %d %d] per frame", nx, nz, SpatialDims, nx, nz),
	}
}

// Task is a classified field, known from its shape alone.
type Task struct {
	Name  string
	Kind  Kind
	Shape []int // full dataset shape, time first
	Dtype string
	Size  int
}

// Path returns the archive-relative dataset path.
func (t Task) Path() string { return path.Join(TasksGroup, t.Name) }

// Components returns 1 for scalars and SpatialDims for vectors.
func (t Task) Components() int {
	if t.Kind == Vector {
		return SpatialDims
	}
	return 1
}

// componentLetters maps output vector slots to channel prefixes. Archive
// component 0 is x and component 1 is z; y is synthesized.
var componentLetters = [3]string{"u", "v", "w"}

// Channel names the scalar channel of archive component c, e.g. u_velocity.
func (t Task) Channel(c int) string {
	return componentLetters[slot(c)] + "_" + t.Name
}

// slot maps an archive component to its x/y/z position.
func slot(c int) int {
	if c == 0 {
		return 0
	}
	return 2
}

// ScanTasks stats and classifies every dataset under the tasks group, in
// sorted order. No field data is read.
func ScanTasks(h Handle, c *Coordinates) ([]Task, error) {
	g, err := h.OpenGroup(TasksGroup)
	if err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(g.Children))
	for _, name := range g.Children {
		info, err := h.Stat(path.Join(TasksGroup, name))
		if err != nil {
			return nil, err
		}
		t, err := classifyTask(name, info, c)
		if err != nil {
			var se *SchemaError
			if errors.As(err, &se) {
				se.Archive = h.Name()
			}
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func classifyTask(name string, info Info, c *Coordinates) (Task, error) {
	if len(info.Shape) == 0 || info.Shape[0] != c.Steps() {
		return Task{}, &SchemaError{
			Field:  name,
			Shape:  info.Shape,
			Reason: fmt.Sprintf("leading dimension must match %d time values", c.Steps()),
		}
	}
	kind, err := Classify(name, info.Shape[1:], c.X.Len(), c.Z.Len())
	if err != nil {
		return Task{}, err
	}
	return Task{Name: name, Kind: kind, Shape: info.Shape, Dtype: info.Dtype, Size: info.Size}, nil
}

// Field is a classified task with its data loaded. Slabs returned by its
// accessors alias the loaded array and must not be modified.
type Field struct {
	Task
	nx, nz int
	data   []float64
}

// ReadField loads the data of a classified task.
func ReadField(h Handle, t Task) (*Field, error) {
	arr, err := h.ReadDataset(t.Path())
	if err != nil {
		return nil, err
	}
	if len(arr.Data) != product(t.Shape) {
		return nil, &SchemaError{Archive: h.Name(), Field: t.Name, Shape: arr.Shape, Reason: "dataset changed since classification"}
	}
	n := len(t.Shape)
	return &Field{Task: t, nx: t.Shape[n-2], nz: t.Shape[n-1], data: arr.Data}, nil
}

// Steps returns the number of frames.
func (f *Field) Steps() int { return f.Shape[0] }

func (f *Field) slab() int { return f.nx * f.nz }

// Frame returns the (nx, nz) row-major slab of a scalar field at step i.
func (f *Field) Frame(i int) []float64 {
	return f.Component(i, 0)
}

// Component returns archive component c of the field at step i. For a
// scalar only c == 0 is valid.
func (f *Field) Component(i, c int) []float64 {
	n := f.slab()
	off := (i*f.Components() + c) * n
	return f.data[off : off+n]
}

// Vector3 returns the x, y and z slabs of a vector field at step i. The y
// slab is all zeros.
func (f *Field) Vector3(i int) [3][]float64 {
	var v [3][]float64
	v[1] = make([]float64, f.slab())
	for c := 0; c < f.Components(); c++ {
		v[slot(c)] = f.Component(i, c)
	}
	return v
}
