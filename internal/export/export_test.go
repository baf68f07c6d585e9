package export

import (
	"context"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5export/internal/mesh"
	"github.com/robert-malhotra/h5export/internal/snapshot"
	"github.com/robert-malhotra/h5export/internal/snapshot/snapshottest"
	"github.com/robert-malhotra/h5export/internal/vtk"
)

type dataArray struct {
	Name       string `xml:"Name,attr"`
	Components int    `xml:"NumberOfComponents,attr"`
	Text       string `xml:",chardata"`
}

type vts struct {
	Piece struct {
		PointData []dataArray `xml:"PointData>DataArray"`
		CellData  []dataArray `xml:"CellData>DataArray"`
		Points    dataArray   `xml:"Points>DataArray"`
	} `xml:"StructuredGrid>Piece"`
}

func (d dataArray) values(t *testing.T) []float64 {
	t.Helper()
	var out []float64
	for _, tok := range strings.Fields(d.Text) {
		v, err := strconv.ParseFloat(tok, 64)
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func readVTS(t *testing.T, name string) vts {
	t.Helper()
	b, err := os.ReadFile(name)
	require.NoError(t, err)
	var f vts
	require.NoError(t, xml.Unmarshal(b, &f))
	return f
}

func openArchive(t *testing.T, a *snapshottest.Archive, dir string) *snapshot.File {
	t.Helper()
	h, err := snapshot.Open(a.WriteFile(t, dir, "snapshots_s1.h5"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestGridExporterPoints(t *testing.T) {
	const nx, nz, steps = 4, 3, 3
	h := openArchive(t, snapshottest.KelvinHelmholtz(nx, nz, steps), t.TempDir())
	out := filepath.Join(t.TempDir(), "vtk_output")

	e := &GridExporter{OutputDir: out, Log: quietLogger()}
	n, err := e.Export(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, steps, n)
	assert.Equal(t, []string{
		"snapshots_s1_t_000000.vts",
		"snapshots_s1_t_000001.vts",
		"snapshots_s1_t_000002.vts",
	}, listDir(t, out))

	f := readVTS(t, filepath.Join(out, "snapshots_s1_t_000002.vts"))
	assert.Empty(t, f.Piece.CellData)

	var names []string
	byName := map[string]dataArray{}
	for _, d := range f.Piece.PointData {
		names = append(names, d.Name)
		byName[d.Name] = d
	}
	assert.Equal(t, []string{"scalar", "velocity", "u_velocity", "w_velocity", "vorticity"}, names)

	points := f.Piece.Points.values(t)
	scalar := byName["scalar"].values(t)
	vel := byName["velocity"].values(t)
	u := byName["u_velocity"].values(t)
	w := byName["w_velocity"].values(t)
	require.Len(t, scalar, nx*nz)
	require.Len(t, vel, 3*nx*nz)
	assert.Equal(t, 3, byName["velocity"].Components)

	x := snapshottest.Linspace(0, 4, nx)
	for j := 0; j < nz; j++ {
		for i := 0; i < nx; i++ {
			k := mesh.Index(i, j, nx)
			assert.InDelta(t, x[i], points[3*k], 1e-12)
			assert.Equal(t, snapshottest.Scalar(2, i, j), scalar[k])
			assert.Equal(t, snapshottest.Velocity(2, 0, i, j), vel[3*k])
			assert.Zero(t, vel[3*k+1])
			assert.Equal(t, snapshottest.Velocity(2, 1, i, j), vel[3*k+2])
			assert.Equal(t, vel[3*k], u[k])
			assert.Equal(t, vel[3*k+2], w[k])
		}
	}
}

func TestGridExporterCellsBinary(t *testing.T) {
	h := openArchive(t, snapshottest.KelvinHelmholtz(4, 3, 1), t.TempDir())
	out := t.TempDir()

	e := &GridExporter{OutputDir: out, Attach: vtk.Cell, Encoding: vtk.Binary, Log: quietLogger()}
	_, err := e.Export(context.Background(), h)
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(out, "snapshots_s1_t_000000.vts"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `WholeExtent="0 4 0 0 0 3"`)
	assert.Contains(t, string(b), `format="binary"`)

	var f vts
	require.NoError(t, xml.Unmarshal(b, &f))
	assert.Empty(t, f.Piece.PointData)
	assert.Len(t, f.Piece.CellData, 5)
}

func TestGridExporterResolutionFailure(t *testing.T) {
	a := snapshottest.KelvinHelmholtz(4, 3, 2)
	for i := range a.Axes {
		a.Axes[i].Name = nil
	}
	h := openArchive(t, a, t.TempDir())
	out := filepath.Join(t.TempDir(), "vtk")

	n, err := (&GridExporter{OutputDir: out, Log: quietLogger()}).Export(context.Background(), h)
	assert.Zero(t, n)
	assert.True(t, errors.Is(err, snapshot.ErrResolution))
	assert.False(t, snapshot.IsOutputError(err))
	assert.Empty(t, listDir(t, out))
}

func TestGridExporterSchemaFailure(t *testing.T) {
	a := snapshottest.KelvinHelmholtz(4, 3, 2)
	a.Tasks = append(a.Tasks, snapshottest.Task{Name: "zz", Shape: []int{2, 5, 3}, Data: make([]float64, 30)})
	out := t.TempDir()

	n, err := (&GridExporter{OutputDir: out, Log: quietLogger()}).Export(context.Background(), a.Memory("m.h5"))
	assert.Zero(t, n)
	assert.True(t, errors.Is(err, snapshot.ErrSchema))
	assert.Contains(t, err.Error(), `"zz"`)
	assert.Empty(t, listDir(t, out))
}

func TestGridExporterOutputError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	a := snapshottest.KelvinHelmholtz(4, 3, 2)
	_, err := (&GridExporter{OutputDir: blocker, Log: quietLogger()}).Export(context.Background(), a.Memory("m.h5"))
	require.Error(t, err)
	assert.True(t, snapshot.IsOutputError(err))
}

func TestGridExporterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := t.TempDir()
	a := snapshottest.KelvinHelmholtz(4, 3, 2)
	n, err := (&GridExporter{OutputDir: out, Log: quietLogger()}).Export(ctx, a.Memory("m.h5"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
	assert.Empty(t, listDir(t, out))
}

func TestMetadataExporterSibling(t *testing.T) {
	dir := t.TempDir()
	h := openArchive(t, snapshottest.KelvinHelmholtz(4, 3, 3), dir)

	e := &MetadataExporter{Log: quietLogger()}
	n, err := e.Export(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	out := filepath.Join(dir, "snapshots_s1.xmf")
	assert.Equal(t, out, e.Path(h.Name()))
	first, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(first), `>snapshots_s1.h5:/tasks/velocity[2,1,:,:]<`)
	assert.Contains(t, string(first), `Dimensions="3 4"`)

	_, err = e.Export(context.Background(), h)
	require.NoError(t, err)
	second, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMetadataExporterOutputDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "snapshots"), 0o755))
	h := openArchive(t, snapshottest.KelvinHelmholtz(4, 3, 1), filepath.Join(root, "snapshots"))

	e := &MetadataExporter{OutputDir: filepath.Join(root, "xdmf"), Log: quietLogger()}
	_, err := e.Export(context.Background(), h)
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(root, "xdmf", "snapshots_s1.xmf"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `>../snapshots/snapshots_s1.h5:/scales/x_hash_f00d<`)
	assert.Contains(t, string(b), `NumberType="Float" Precision="8"`)
}

func TestMetadataExporterResolutionFailure(t *testing.T) {
	dir := t.TempDir()
	a := snapshottest.KelvinHelmholtz(4, 3, 2)
	a.Axes[1].Name = "y"
	h := openArchive(t, a, dir)

	_, err := (&MetadataExporter{Log: quietLogger()}).Export(context.Background(), h)
	var re *snapshot.ResolutionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "z", re.Axis)
	assert.Contains(t, err.Error(), "snapshots_s1.h5")
	assert.NoFileExists(t, filepath.Join(dir, "snapshots_s1.xmf"))
}

// statFails hides the axis datasets from Stat.
type statFails struct {
	snapshot.Handle
}

func (h statFails) Stat(p string) (snapshot.Info, error) {
	if strings.HasPrefix(strings.TrimPrefix(p, "/"), snapshot.ScalesGroup+"/") {
		return snapshot.Info{}, errors.New("stat failed")
	}
	return h.Handle.Stat(p)
}

func TestMetadataExporterAxisStatError(t *testing.T) {
	out := t.TempDir()
	h := statFails{snapshottest.KelvinHelmholtz(4, 3, 2).Memory("m.h5")}

	_, err := (&MetadataExporter{OutputDir: out, Log: quietLogger()}).Export(context.Background(), h)
	require.ErrorContains(t, err, "stat failed")
	assert.Empty(t, listDir(t, out))
}

func TestExporterFormats(t *testing.T) {
	var e Exporter = &GridExporter{}
	assert.Equal(t, "vtk", e.Format())
	e = &MetadataExporter{}
	assert.Equal(t, "xdmf", e.Format())
}
