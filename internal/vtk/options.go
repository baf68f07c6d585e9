package vtk

import (
	"fmt"
	"strings"
)

// Attachment selects whether arrays live on mesh points or cells.
type Attachment int

const (
	Point Attachment = iota
	Cell
)

var attachmentNames = []string{"point", "cell"}

// String returns the config spelling.
func (a Attachment) String() string {
	if int(a) < len(attachmentNames) {
		return attachmentNames[a]
	}
	return fmt.Sprintf("Attachment(%d)", int(a))
}

// Set parses "point" or "cell"; it makes Attachment a pflag.Value.
func (a *Attachment) Set(s string) error {
	for i, n := range attachmentNames {
		if strings.EqualFold(s, n) {
			*a = Attachment(i)
			return nil
		}
	}
	return fmt.Errorf("unknown attachment %q (want point or cell)", s)
}

func (a Attachment) Type() string { return "attachment" }

func (a *Attachment) UnmarshalText(b []byte) error { return a.Set(string(b)) }

func (a Attachment) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// Encoding selects how DataArray contents are written.
type Encoding int

const (
	ASCII Encoding = iota
	Binary
)

var encodingNames = []string{"ascii", "binary"}

// String returns the config spelling.
func (e Encoding) String() string {
	if int(e) < len(encodingNames) {
		return encodingNames[e]
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

// Set parses "ascii" or "binary".
func (e *Encoding) Set(s string) error {
	for i, n := range encodingNames {
		if strings.EqualFold(s, n) {
			*e = Encoding(i)
			return nil
		}
	}
	return fmt.Errorf("unknown encoding %q (want ascii or binary)", s)
}

func (e Encoding) Type() string { return "encoding" }

func (e *Encoding) UnmarshalText(b []byte) error { return e.Set(string(b)) }

func (e Encoding) MarshalText() ([]byte, error) { return []byte(e.String()), nil }
