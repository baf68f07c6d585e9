package snapshot

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/cast"
)

// Axis is a coordinate axis identified by its logical name.
type Axis struct {
	Name   string
	Key    string // storage key under the scales group
	Values []float64
}

// Len returns the number of coordinate values.
func (a Axis) Len() int { return len(a.Values) }

// Path returns the archive-relative dataset path, e.g. "scales/x_hash_1".
func (a Axis) Path() string { return path.Join(ScalesGroup, a.Key) }

// ResolveAxis returns the key of the dataset under group whose NAME
// attribute equals name. Children are visited in sorted order; children
// without the attribute are skipped.
func ResolveAxis(h Handle, group, name string) (string, error) {
	g, err := h.OpenGroup(group)
	if err != nil {
		return "", err
	}

	var keys []string
	for _, key := range g.Children {
		v, err := h.Attribute(path.Join(group, key), NameAttr)
		if errors.Is(err, ErrNoAttribute) {
			continue
		}
		if err != nil {
			return "", err
		}
		if s, ok := LogicalName(v); ok && s == name {
			keys = append(keys, key)
		}
	}
	if len(keys) != 1 {
		return "", &ResolutionError{Archive: h.Name(), Axis: name, Keys: keys}
	}
	return keys[0], nil
}

// LogicalName decodes a NAME attribute value. h5py writes it as a str, a
// fixed-length byte string or a one-element array of either.
func LogicalName(v any) (string, bool) {
	switch t := v.(type) {
	case []string:
		if len(t) != 1 {
			return "", false
		}
		v = t[0]
	case [][]byte:
		if len(t) != 1 {
			return "", false
		}
		v = t[0]
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return strings.Trim(s, "\x00 "), true
}

// Coordinates holds the resolved axes and the time series of one archive.
type Coordinates struct {
	X, Z Axis
	Time []float64
}

// Steps returns the number of timesteps.
func (c *Coordinates) Steps() int { return len(c.Time) }

// LoadCoordinates resolves x then z and reads both axes and the time series.
func LoadCoordinates(h Handle) (*Coordinates, error) {
	var axes [2]Axis
	for i, name := range []string{"x", "z"} {
		key, err := ResolveAxis(h, ScalesGroup, name)
		if err != nil {
			return nil, err
		}
		values, err := read1D(h, path.Join(ScalesGroup, key))
		if err != nil {
			return nil, err
		}
		axes[i] = Axis{Name: name, Key: key, Values: values}
	}

	time, err := read1D(h, TimePath)
	if err != nil {
		return nil, err
	}
	return &Coordinates{X: axes[0], Z: axes[1], Time: time}, nil
}

func read1D(h Handle, p string) ([]float64, error) {
	arr, err := h.ReadDataset(p)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotDataset) {
			return nil, &SchemaError{Archive: h.Name(), Field: p, Reason: err.Error()}
		}
		return nil, err
	}
	if len(arr.Shape) != 1 {
		return nil, &SchemaError{Archive: h.Name(), Field: p, Shape: arr.Shape, Reason: "expected a 1-D dataset"}
	}
	if len(arr.Data) == 0 {
		return nil, &SchemaError{Archive: h.Name(), Field: p, Shape: arr.Shape, Reason: "empty"}
	}
	return arr.Data, nil
}

// String is used in log fields.
func (c *Coordinates) String() string {
	return fmt.Sprintf("x=%s[%d] z=%s[%d] t[%d]", c.X.Key, c.X.Len(), c.Z.Key, c.Z.Len(), c.Steps())
}
