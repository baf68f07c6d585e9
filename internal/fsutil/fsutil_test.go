package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "nested", "out.vts")

	written, err := WriteFile(name, []byte("frame 0"), 0o644)
	require.NoError(t, err)
	assert.True(t, written)

	got, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "frame 0", string(got))

	entries, err := os.ReadDir(filepath.Dir(name))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestWriteFileUnchanged(t *testing.T) {
	name := filepath.Join(t.TempDir(), "doc.xmf")
	_, err := WriteFile(name, []byte("<Xdmf/>"), 0o644)
	require.NoError(t, err)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(name, old, old))

	written, err := WriteFile(name, []byte("<Xdmf/>"), 0o644)
	require.NoError(t, err)
	assert.False(t, written)

	st, err := os.Stat(name)
	require.NoError(t, err)
	assert.WithinDuration(t, old, st.ModTime(), time.Second)

	written, err = WriteFile(name, []byte("<Xdmf></Xdmf>"), 0o644)
	require.NoError(t, err)
	assert.True(t, written)
}

func TestWriteFileUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := WriteFile(filepath.Join(blocker, "out.vts"), []byte("x"), 0o644)
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	sum, err := Fingerprint(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, xxhash.Sum64String("abc"), sum)
}

func TestRender(t *testing.T) {
	name := filepath.Join(t.TempDir(), "r.txt")
	written, err := Render(name, 0o644, func(w io.Writer) error {
		_, err := io.WriteString(w, "rendered")
		return err
	})
	require.NoError(t, err)
	assert.True(t, written)

	boom := errors.New("boom")
	_, err = Render(filepath.Join(t.TempDir(), "n.txt"), 0o644, func(io.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)
}
