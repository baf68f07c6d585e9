package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5export/internal/vtk"
)

func TestDecode(t *testing.T) {
	c, err := Decode(strings.NewReader(`
input_dir = "runs/kh/snapshots"
output_dir = "runs/kh/vtk"
attachment = "cell"
encoding = "binary"
workers = 4

[log]
level = "debug"
`))
	require.NoError(t, err)
	assert.Equal(t, "runs/kh/snapshots", c.InputDir)
	assert.Equal(t, "runs/kh/vtk", c.OutputDir)
	assert.Equal(t, "snapshots_s*.h5", c.Pattern)
	assert.Equal(t, vtk.Cell, c.Attach)
	assert.Equal(t, vtk.Binary, c.Encoding)
	assert.Equal(t, 4, c.Workers)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "text", c.Log.Format)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(strings.NewReader(`attachment = "face"`))
	assert.ErrorContains(t, err, "face")

	_, err = Decode(strings.NewReader("output = \"x\"\nworkerz = 2\n"))
	assert.ErrorContains(t, err, "unknown keys output, workerz")

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	name := filepath.Join(t.TempDir(), "h5export.toml")
	require.NoError(t, os.WriteFile(name, []byte(`glob_pattern = "*.h5"`), 0o644))

	c, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, "*.h5", c.Pattern)
	assert.Equal(t, "snapshots", c.InputDir)
}

func TestBindFlags(t *testing.T) {
	c := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.BindFlags(fs)

	require.NoError(t, fs.Parse([]string{"-i", "in", "--attach", "cell", "--encoding=binary", "-j", "3"}))
	assert.Equal(t, "in", c.InputDir)
	assert.Equal(t, vtk.Cell, c.Attach)
	assert.Equal(t, vtk.Binary, c.Encoding)
	assert.Equal(t, 3, c.Workers)
	assert.Equal(t, "vtk_output", c.OutputDir)

	assert.Error(t, fs.Parse([]string{"--attach", "edge"}))
}

func TestValidate(t *testing.T) {
	c := Default()
	c.InputDir = t.TempDir()
	require.NoError(t, c.Validate())

	bad := c
	bad.InputDir = filepath.Join(c.InputDir, "absent")
	bad.Pattern = "snap[shots"
	bad.Workers = 0
	bad.Log.Format = "xml"
	err := bad.Validate()
	require.Error(t, err)
	for _, want := range []string{"input_dir", "glob_pattern", "workers", "log.format"} {
		assert.Contains(t, err.Error(), want)
	}

	bad = c
	bad.Pattern = "a/b*.h5"
	assert.ErrorContains(t, bad.Validate(), "separator")

	file := filepath.Join(c.InputDir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	bad = c
	bad.InputDir = file
	assert.ErrorContains(t, bad.Validate(), "not a directory")
}
