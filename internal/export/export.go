// Package export turns snapshot archives into visualization artifacts: one
// VTK StructuredGrid file per timestep ([GridExporter]) or one XDMF document
// per archive that points back into it ([MetadataExporter]).
package export

import (
	"context"
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/h5export/internal/fsutil"
	"github.com/robert-malhotra/h5export/internal/mesh"
	"github.com/robert-malhotra/h5export/internal/snapshot"
	"github.com/robert-malhotra/h5export/internal/vtk"
	"github.com/robert-malhotra/h5export/internal/xdmf"
)

// Exporter converts one open archive and returns the number of frames it
// produced.
type Exporter interface {
	Format() string
	Export(ctx context.Context, h snapshot.Handle) (int, error)
}

const filePerm = 0o644

func logger(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return logrus.StandardLogger()
	}
	return l
}

// GridExporter writes <OutputDir>/<stem>_t_<index>.vts for every timestep.
type GridExporter struct {
	OutputDir string
	Attach    vtk.Attachment
	Encoding  vtk.Encoding
	Log       logrus.FieldLogger
}

// Format names the output format.
func (e *GridExporter) Format() string { return "vtk" }

// Export classifies every task before writing anything, so a schema problem
// leaves no files behind. Frames already written stay in place when ctx is
// cancelled.
func (e *GridExporter) Export(ctx context.Context, h snapshot.Handle) (int, error) {
	log := logger(e.Log).WithField("archive", h.Name())

	a, err := snapshot.Scan(h)
	if err != nil {
		return 0, err
	}
	fields := make([]*snapshot.Field, len(a.Tasks))
	for k, t := range a.Tasks {
		if fields[k], err = snapshot.ReadField(h, t); err != nil {
			return 0, err
		}
	}

	m := mesh.Build(a.X.Values, a.Z.Values)
	if e.Attach == vtk.Cell {
		m = mesh.BuildCells(a.X.Values, a.Z.Values)
	}
	nx, nz := a.X.Len(), a.Z.Len()
	width := vtk.FrameWidth(a.Steps())
	log.WithFields(logrus.Fields{
		"coords": a.Coordinates.String(),
		"tasks":  len(a.Tasks),
		"attach": e.Attach,
	}).Debug("exporting frames")

	for i := 0; i < a.Steps(); i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		g := &vtk.Grid{
			Mesh:   m,
			Time:   a.Time[i],
			Attach: e.Attach,
			Arrays: frameArrays(fields, i, nx, nz),
		}
		if err := g.Validate(); err != nil {
			return i, err
		}

		name := filepath.Join(e.OutputDir, vtk.FrameName(a.Stem(), i, width))
		written, err := fsutil.Render(name, filePerm, func(w io.Writer) error {
			return vtk.Encode(w, g, e.Encoding)
		})
		if err != nil {
			return i, snapshot.OutputError("write", name, err)
		}
		if !written {
			log.WithField("file", name).Debug("unchanged")
		}
	}
	return a.Steps(), nil
}

// frameArrays lays out every field at step i in mesh order. A vector gives a
// 3-component array with a zero y component, then one scalar channel per
// archive component.
func frameArrays(fields []*snapshot.Field, i, nx, nz int) []vtk.Array {
	var arrays []vtk.Array
	for _, f := range fields {
		if f.Kind == snapshot.Scalar {
			arrays = append(arrays, vtk.Array{
				Name:       f.Name,
				Components: 1,
				Data:       mesh.Flatten(f.Frame(i), nx, nz),
			})
			continue
		}

		var flat [3][]float64
		for k, slab := range f.Vector3(i) {
			flat[k] = mesh.Flatten(slab, nx, nz)
		}
		tuples := make([]float64, 0, 3*nx*nz)
		for p := 0; p < nx*nz; p++ {
			tuples = append(tuples, flat[0][p], flat[1][p], flat[2][p])
		}
		arrays = append(arrays, vtk.Array{Name: f.Name, Components: 3, Data: tuples})
		arrays = append(arrays,
			vtk.Array{Name: f.Channel(0), Components: 1, Data: flat[0]},
			vtk.Array{Name: f.Channel(1), Components: 1, Data: flat[2]},
		)
	}
	return arrays
}

// MetadataExporter writes one <stem>.xmf per archive, next to the archive or
// in OutputDir when set.
type MetadataExporter struct {
	OutputDir string
	Log       logrus.FieldLogger
}

// Format names the output format.
func (e *MetadataExporter) Format() string { return "xdmf" }

// Path returns where the document for archive name goes.
func (e *MetadataExporter) Path(name string) string {
	dir := e.OutputDir
	if dir == "" {
		dir = filepath.Dir(name)
	}
	return filepath.Join(dir, snapshot.Stem(name)+xdmf.Ext)
}

// Export writes the document. A resolution failure aborts before any output
// exists.
func (e *MetadataExporter) Export(ctx context.Context, h snapshot.Handle) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a, err := snapshot.Scan(h)
	if err != nil {
		return 0, err
	}

	xi, err := h.Stat(a.X.Path())
	if err != nil {
		return 0, err
	}
	zi, err := h.Stat(a.Z.Path())
	if err != nil {
		return 0, err
	}
	src := xdmf.Source{
		Archive: a,
		XType:   xdmf.NumberOf(xi.Dtype, xi.Size),
		ZType:   xdmf.NumberOf(zi.Dtype, zi.Size),
	}

	out := e.Path(h.Name())
	src.Ref = reference(filepath.Dir(out), h.Name())

	written, err := fsutil.Render(out, filePerm, func(w io.Writer) error {
		return xdmf.Encode(w, xdmf.Build(src))
	})
	if err != nil {
		return 0, snapshot.OutputError("write", out, err)
	}
	logger(e.Log).WithFields(logrus.Fields{
		"archive": h.Name(),
		"file":    out,
		"written": written,
	}).Debug("metadata document")
	return a.Steps(), nil
}

// reference names archive relative to dir, falling back to an absolute path.
func reference(dir, archive string) string {
	if rel, err := filepath.Rel(dir, archive); err == nil {
		return filepath.ToSlash(rel)
	}
	if abs, err := filepath.Abs(archive); err == nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(archive)
}
