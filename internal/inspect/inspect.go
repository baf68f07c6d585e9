// Package inspect reports the structure of a snapshot archive and summary
// statistics of its fields.
package inspect

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/cast"

	"github.com/robert-malhotra/h5export/internal/snapshot"
)

// Probes are the paths every report checks for explicitly.
var Probes = []string{
	snapshot.ScalesGroup,
	snapshot.TimePath,
	"scales/x",
	"scales/z",
	snapshot.TasksGroup,
}

// maxDepth bounds the walk in case of cyclic links.
const maxDepth = 20

// Item kinds.
const (
	KindGroup   = "group"
	KindDataset = "dataset"
)

// Attr is one decoded attribute. Error is set instead of Value when the
// attribute cannot be decoded.
type Attr struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value,omitempty"`
	Error string `yaml:"error,omitempty"`
}

// Item is one group or dataset found by the walk.
type Item struct {
	Path     string   `yaml:"path"`
	Kind     string   `yaml:"kind"`
	Shape    []int    `yaml:"shape,omitempty"`
	Dtype    string   `yaml:"dtype,omitempty"`
	Children []string `yaml:"children,omitempty"`
	Attrs    []Attr   `yaml:"attrs,omitempty"`
	Error    string   `yaml:"error,omitempty"`
}

// Probe records whether a well-known path exists.
type Probe struct {
	Path  string `yaml:"path"`
	Found bool   `yaml:"found"`
	Kind  string `yaml:"kind,omitempty"`
	Shape []int  `yaml:"shape,omitempty"`
}

// Report is the structure of one archive.
type Report struct {
	Archive string   `yaml:"archive"`
	Root    []string `yaml:"root"`
	Items   []Item   `yaml:"items"`
	Probes  []Probe  `yaml:"probes"`
}

// Inspect walks h depth first in name order. Only a failure to list the root
// group is returned; anything deeper is recorded on the item.
func Inspect(h snapshot.Handle) (*Report, error) {
	root, err := h.OpenGroup("/")
	if err != nil {
		return nil, err
	}
	r := &Report{Archive: h.Name(), Root: root.Children}
	for _, name := range root.Children {
		r.walk(h, name, 0)
	}
	for _, p := range Probes {
		r.Probes = append(r.Probes, probe(h, p))
	}
	return r, nil
}

func (r *Report) walk(h snapshot.Handle, p string, depth int) {
	item := Item{Path: "/" + p}

	g, err := h.OpenGroup(p)
	switch {
	case err == nil:
		item.Kind = KindGroup
		item.Children = g.Children
		item.Attrs = attrs(h, p)
		if depth >= maxDepth {
			item.Error = "maximum depth reached"
			r.Items = append(r.Items, item)
			return
		}
		r.Items = append(r.Items, item)
		for _, c := range g.Children {
			r.walk(h, path.Join(p, c), depth+1)
		}
		return
	case !errors.Is(err, snapshot.ErrNotGroup):
		item.Error = err.Error()
		r.Items = append(r.Items, item)
		return
	}

	if info, err := h.Stat(p); err != nil {
		item.Error = err.Error()
	} else {
		item.Kind = KindDataset
		item.Shape = info.Shape
		item.Dtype = info.Dtype
		item.Attrs = attrs(h, p)
	}
	r.Items = append(r.Items, item)
}

func attrs(h snapshot.Handle, p string) []Attr {
	names, err := h.Attributes(p)
	if err != nil {
		return []Attr{{Name: "*", Error: err.Error()}}
	}
	var out []Attr
	for _, n := range names {
		a := Attr{Name: n}
		v, err := h.Attribute(p, n)
		if err != nil {
			a.Error = err.Error()
		} else {
			a.Value = Format(v)
		}
		out = append(out, a)
	}
	return out
}

func probe(h snapshot.Handle, p string) Probe {
	pr := Probe{Path: p}
	if _, err := h.OpenGroup(p); err == nil {
		pr.Found, pr.Kind = true, KindGroup
		return pr
	}
	if info, err := h.Stat(p); err == nil {
		pr.Found, pr.Kind, pr.Shape = true, KindDataset, info.Shape
	}
	return pr
}

// Format renders an attribute value for display. Byte strings print as text
// and trailing NUL padding is dropped.
func Format(v any) string {
	switch x := v.(type) {
	case []byte:
		return strings.TrimRight(string(x), "\x00")
	case [][]byte:
		parts := make([]string, len(x))
		for i, b := range x {
			parts[i] = strings.TrimRight(string(b), "\x00")
		}
		return "[" + strings.Join(parts, " ") + "]"
	}
	if s, err := cast.ToStringE(v); err == nil {
		return strings.TrimRight(s, "\x00")
	}
	return fmt.Sprint(v)
}
