package snapshot

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrResolution  = errors.New("axis resolution failed")
	ErrSchema      = errors.New("unexpected archive layout")
	ErrNotFound    = errors.New("path not found")
	ErrNotDataset  = errors.New("path is not a dataset")
	ErrNotGroup    = errors.New("path is not a group")
	ErrNoAttribute = errors.New("attribute not found")
)

// ResolutionError reports a logical axis name that no dataset under the
// scales group declares, or that more than one declares.
type ResolutionError struct {
	Archive string
	Axis    string
	Keys    []string // every key declaring Axis when ambiguous
}

// Error names the archive and the axis.
func (e *ResolutionError) Error() string {
	if len(e.Keys) > 1 {
		return fmt.Sprintf("%s: axis %q declared by several datasets %v", e.Archive, e.Axis, e.Keys)
	}
	return fmt.Sprintf("%s: no dataset in %s declares %s=%q", e.Archive, ScalesGroup, NameAttr, e.Axis)
}

func (e *ResolutionError) Unwrap() error { return ErrResolution }

// SchemaError reports a dataset whose shape does not fit the archive layout.
type SchemaError struct {
	Archive string
	Field   string
	Shape   []int
	Reason  string
}

// Error names the archive, the field and its shape.
func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("field %q shape %v: %s", e.Field, e.Shape, e.Reason)
	if e.Archive != "" {
		return e.Archive + ": " + msg
	}
	return msg
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// IOError wraps a failure to read an archive or write an output artifact.
// Output failures stop a whole batch; input failures only skip the archive.
type IOError struct {
	Op     string
	Path   string
	Output bool
	Err    error
}

// Error names the failed operation and path.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// OutputError tags err as a failure to produce the artifact at path.
func OutputError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Output: true, Err: err}
}

// IsOutputError reports whether err carries an output-side IOError.
func IsOutputError(err error) bool {
	var e *IOError
	return errors.As(err, &e) && e.Output
}
