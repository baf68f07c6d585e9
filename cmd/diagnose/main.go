// Diagnostic tool for snapshot archives
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-malhotra/h5export/internal/inspect"
	"github.com/robert-malhotra/h5export/internal/snapshot"
)

func main() {
	filename, err := target(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		fmt.Fprintln(os.Stderr, "Usage: go run cmd/diagnose/main.go [file.h5]")
		os.Exit(1)
	}
	if err := diagnose(filename); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func diagnose(filename string) error {
	h, err := snapshot.Open(filename)
	if err != nil {
		return err
	}
	defer h.Close()

	r, err := inspect.Inspect(h)
	if err != nil {
		return err
	}
	return inspect.WriteText(os.Stdout, r, inspect.Colored(os.Stdout))
}

// target is the named file, or else the first snapshots/snapshots_s*.h5, or
// else the first *.h5 in the working directory.
func target(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	for _, pattern := range []string{filepath.Join("snapshots", "snapshots_s*.h5"), "*.h5"} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return "", err
		}
		if len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", fmt.Errorf("no snapshot files found in snapshots/ or the current directory")
}
