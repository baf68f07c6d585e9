package batch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5export/internal/export"
	"github.com/robert-malhotra/h5export/internal/snapshot"
	"github.com/robert-malhotra/h5export/internal/snapshot/snapshottest"
)

func writeArchives(t *testing.T, dir string, bad ...string) []string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	var names []string
	for _, n := range []string{"snapshots_s1.h5", "snapshots_s2.h5", "snapshots_s3.h5"} {
		a := snapshottest.KelvinHelmholtz(4, 3, 2)
		for _, b := range bad {
			if b == n {
				a.Axes[0].Name = "y"
			}
		}
		names = append(names, a.WriteFile(t, dir, n))
	}
	return names
}

func outputs(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestGlob(t *testing.T) {
	dir := t.TempDir()
	writeArchives(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.h5"), nil, 0o644))

	files, err := Glob(dir, "snapshots_s*.h5")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, filepath.Join(dir, "snapshots_s1.h5"), files[0])

	none, err := Glob(dir, "nothing_*.h5")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = Glob(filepath.Join(dir, "absent"), "*.h5")
	assert.ErrorIs(t, err, ErrInput)

	_, err = Glob(files[0], "*.h5")
	assert.ErrorIs(t, err, ErrInput)

	_, err = Glob(dir, "[")
	assert.ErrorIs(t, err, ErrInput)
}

func TestRunSkipsUnresolvedArchive(t *testing.T) {
	for _, workers := range []int{1, 3} {
		root := t.TempDir()
		in := filepath.Join(root, "snapshots")
		out := filepath.Join(root, "vtk")
		writeArchives(t, in, "snapshots_s2.h5")

		log, hook := test.NewNullLogger()
		e := &export.GridExporter{OutputDir: out, Log: log}
		sum, err := Run(context.Background(), in, "snapshots_s*.h5", workers, e, log)
		require.NoError(t, err)

		require.Len(t, sum.Results, 3)
		assert.Equal(t, 2, sum.Succeeded)
		assert.Equal(t, 1, sum.Failed)
		assert.Equal(t, 4, sum.Frames())
		assert.ErrorIs(t, sum.Results[1].Err, snapshot.ErrResolution)

		assert.Equal(t, []string{
			"snapshots_s1_t_000000.vts",
			"snapshots_s1_t_000001.vts",
			"snapshots_s3_t_000000.vts",
			"snapshots_s3_t_000001.vts",
		}, outputs(t, out))

		var skipped []string
		for _, entry := range hook.AllEntries() {
			if entry.Level == logrus.ErrorLevel {
				skipped = append(skipped, entry.Data["archive"].(string))
			}
		}
		assert.Equal(t, []string{"snapshots_s2.h5"}, skipped)
	}
}

func TestRunStopsOnOutputError(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "snapshots")
	files := writeArchives(t, in)

	blocked := filepath.Join(root, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("file, not dir"), 0o644))

	var opened []string
	open := func(name string) (snapshot.Handle, error) {
		opened = append(opened, filepath.Base(name))
		return OpenFile(name)
	}

	log, _ := test.NewNullLogger()
	r := &Runner{
		Exporter: &export.GridExporter{OutputDir: blocked, Log: log},
		Open:     open,
		Workers:  1,
		Log:      log,
	}
	for range 20 {
		opened = nil
		sum, err := r.Run(context.Background(), files)
		require.Error(t, err)
		assert.True(t, snapshot.IsOutputError(err))
		require.Len(t, sum.Results, 1)
		assert.Equal(t, 1, sum.Failed)
		// Nothing is opened once the output has failed.
		assert.Equal(t, []string{"snapshots_s1.h5"}, opened)
	}
}

func TestRunMetadataFormat(t *testing.T) {
	in := t.TempDir()
	writeArchives(t, in, "snapshots_s3.h5")

	log, _ := test.NewNullLogger()
	sum, err := Run(context.Background(), in, "*.h5", 2, &export.MetadataExporter{Log: log}, log)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)

	assert.FileExists(t, filepath.Join(in, "snapshots_s1.xmf"))
	assert.FileExists(t, filepath.Join(in, "snapshots_s2.xmf"))
	assert.NoFileExists(t, filepath.Join(in, "snapshots_s3.xmf"))
}

func TestRunClosesHandles(t *testing.T) {
	var (
		mu      sync.Mutex
		handles []*snapshottest.Memory
	)
	open := func(name string) (snapshot.Handle, error) {
		a := snapshottest.KelvinHelmholtz(3, 2, 1)
		if name == "broken.h5" {
			a.Axes[1].Name = nil
		}
		m := a.Memory(name)
		mu.Lock()
		handles = append(handles, m)
		mu.Unlock()
		return m, nil
	}

	log, _ := test.NewNullLogger()
	r := &Runner{
		Exporter: &export.GridExporter{OutputDir: t.TempDir(), Log: log},
		Open:     open,
		Workers:  2,
		Log:      log,
	}
	sum, err := r.Run(context.Background(), []string{"a.h5", "broken.h5", "c.h5"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)

	require.Len(t, handles, 3)
	for _, h := range handles {
		assert.True(t, h.Closed(), h.Name())
	}
}

func TestRunOpenFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshots_s1.h5"), []byte("junk"), 0o644))

	log, _ := test.NewNullLogger()
	sum, err := Run(context.Background(), dir, "*.h5", 1, &export.GridExporter{OutputDir: t.TempDir(), Log: log}, log)
	require.NoError(t, err)
	require.Len(t, sum.Results, 1)
	assert.False(t, snapshot.IsOutputError(sum.Results[0].Err))
	assert.Equal(t, 1, sum.Failed)
}

func TestRunCancelled(t *testing.T) {
	files := writeArchives(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log, _ := test.NewNullLogger()
	r := &Runner{Exporter: &export.GridExporter{OutputDir: t.TempDir(), Log: log}, Log: log}
	_, err := r.Run(ctx, files)
	assert.ErrorIs(t, err, context.Canceled)
}
