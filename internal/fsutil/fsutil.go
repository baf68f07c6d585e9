// Package fsutil writes output artifacts atomically.
package fsutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// WriteFile writes data to name through a temporary file in the same
// directory followed by a rename, so readers never see a partial file. The
// directory is created if needed. When name already holds exactly data, the
// file is left alone and WriteFile reports false.
func WriteFile(name string, data []byte, perm os.FileMode) (bool, error) {
	if Same(name, data) {
		return false, nil
	}

	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return false, err
	}
	if err := os.Rename(tmp.Name(), name); err != nil {
		return false, fmt.Errorf("rename %s: %w", filepath.Base(name), err)
	}
	return true, nil
}

// Same reports whether name exists with the same size and xxhash digest as
// data.
func Same(name string, data []byte) bool {
	f, err := os.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil || !st.Mode().IsRegular() || st.Size() != int64(len(data)) {
		return false
	}
	sum, err := Fingerprint(f)
	if err != nil {
		return false
	}
	return sum == xxhash.Sum64(data)
}

// Fingerprint returns the xxhash digest of everything read from r.
func Fingerprint(r io.Reader) (uint64, error) {
	d := xxhash.New()
	if _, err := io.Copy(d, r); err != nil {
		return 0, err
	}
	return d.Sum64(), nil
}

// Render runs encode into a buffer and writes the result with WriteFile.
func Render(name string, perm os.FileMode, encode func(w io.Writer) error) (bool, error) {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return false, err
	}
	return WriteFile(name, buf.Bytes(), perm)
}
