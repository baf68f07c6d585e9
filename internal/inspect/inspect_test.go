package inspect

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5export/internal/snapshot"
	"github.com/robert-malhotra/h5export/internal/snapshot/snapshottest"
)

func openFile(t *testing.T, a *snapshottest.Archive) snapshot.Handle {
	t.Helper()
	h, err := snapshot.Open(a.WriteFile(t, t.TempDir(), "snapshots_s1.h5"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func item(t *testing.T, r *Report, p string) Item {
	t.Helper()
	for _, it := range r.Items {
		if it.Path == p {
			return it
		}
	}
	t.Fatalf("no item %s", p)
	return Item{}
}

func TestInspect(t *testing.T) {
	a := snapshottest.KelvinHelmholtz(4, 3, 2)
	for name, h := range map[string]snapshot.Handle{
		"file":   openFile(t, a),
		"memory": a.Memory("snapshots_s1.h5"),
	} {
		t.Run(name, func(t *testing.T) {
			r, err := Inspect(h)
			require.NoError(t, err)
			assert.Equal(t, []string{"scales", "tasks"}, r.Root)

			scales := item(t, r, "/scales")
			assert.Equal(t, KindGroup, scales.Kind)
			assert.Contains(t, scales.Children, "x_hash_f00d")

			x := item(t, r, "/scales/x_hash_f00d")
			assert.Equal(t, KindDataset, x.Kind)
			assert.Equal(t, []int{4}, x.Shape)
			assert.Equal(t, "float64", x.Dtype)
			require.Len(t, x.Attrs, 1)
			assert.Equal(t, Attr{Name: "NAME", Value: "x"}, x.Attrs[0])

			vel := item(t, r, "/tasks/velocity")
			assert.Equal(t, []int{2, 2, 4, 3}, vel.Shape)

			// Groups come before their children.
			var order []string
			for _, it := range r.Items {
				order = append(order, it.Path)
			}
			assert.Less(t, indexOf(order, "/scales"), indexOf(order, "/scales/sim_time"))
			assert.Less(t, indexOf(order, "/tasks"), indexOf(order, "/tasks/scalar"))

			found := map[string]bool{}
			for _, p := range r.Probes {
				found[p.Path] = p.Found
			}
			assert.Equal(t, map[string]bool{
				"scales":          true,
				"scales/sim_time": true,
				"scales/x":        false,
				"scales/z":        false,
				"tasks":           true,
			}, found)
		})
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func TestWriteText(t *testing.T) {
	a := snapshottest.KelvinHelmholtz(4, 3, 2)
	r, err := Inspect(a.Memory("snapshots_s1.h5"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r, false))
	out := buf.String()

	assert.Contains(t, out, "Archive: snapshots_s1.h5")
	assert.Contains(t, out, "Dataset /tasks/velocity shape=[2 2 4 3] dtype=float64")
	assert.Contains(t, out, "@NAME = z")
	assert.Regexp(t, `scales/x\s+NOT FOUND`, out)
	assert.Regexp(t, `scales/sim_time\s+FOUND dataset shape=\[2\]`, out)
	assert.NotContains(t, out, "\x1b[")

	buf.Reset()
	require.NoError(t, WriteText(&buf, r, true))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestWriteYAML(t *testing.T) {
	a := snapshottest.KelvinHelmholtz(2, 2, 1)
	r, err := Inspect(a.Memory("snapshots_s1.h5"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, r))

	var back Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, r.Archive, back.Archive)
	assert.Equal(t, r.Root, back.Root)
	assert.Len(t, back.Items, len(r.Items))
	assert.Len(t, back.Probes, len(Probes))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "x", Format([]byte("x\x00\x00")))
	assert.Equal(t, "z", Format("z"))
	assert.Equal(t, "[a b]", Format([][]byte{[]byte("a"), []byte("b")}))
	assert.Equal(t, "3", Format(int32(3)))
	assert.Equal(t, "0.5", Format(0.5))
	assert.Equal(t, "[1 2]", Format([]int64{1, 2}))
}

func TestSampleSteps(t *testing.T) {
	assert.Nil(t, SampleSteps(0))
	assert.Equal(t, []int{0}, SampleSteps(1))
	assert.Equal(t, []int{0, 1}, SampleSteps(2))
	assert.Equal(t, []int{0, 1, 2, 4}, SampleSteps(5))
	assert.Equal(t, []int{0, 25, 50, 99}, SampleSteps(100))
}

func TestStats(t *testing.T) {
	a := snapshottest.KelvinHelmholtz(4, 3, 5)
	stats, err := Stats(a.Memory("snapshots_s1.h5"), nil)
	require.NoError(t, err)

	byKey := map[string]Stat{}
	for _, s := range stats {
		byKey[s.Component+"@"+string(rune('0'+s.Step))] = s
	}
	// scalar, u_velocity, w_velocity, vorticity at 4 steps each
	assert.Len(t, stats, 16)

	s := byKey["scalar@0"]
	assert.Equal(t, "scalar", s.Task)
	assert.Equal(t, 0.0, s.Min)
	assert.Equal(t, 32.0, s.Max)
	assert.InDelta(t, 16.0, s.Mean, 1e-12)

	u := byKey["u_velocity@4"]
	assert.Equal(t, "velocity", u.Task)
	assert.InDelta(t, 1.0, u.Min, 1e-12)
	assert.InDelta(t, 4.0, u.Max, 1e-12)
	assert.InDelta(t, 0.4, u.Time, 1e-12)

	w := byKey["w_velocity@2"]
	assert.InDelta(t, -3.0, w.Min, 1e-12)
	assert.InDelta(t, -1.0, w.Max, 1e-12)
	// w at a fixed step is -j - c over j in {0,1,2}, four times each
	assert.InDelta(t, 0.816496580927726, w.Std, 1e-9)

	_, err = Stats(a.Memory("snapshots_s1.h5"), []int{5})
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteStats(&buf, stats))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 17)
	assert.True(t, strings.HasPrefix(lines[0], "TASK"))
}
