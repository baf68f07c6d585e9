// Package vtk writes VTK XML StructuredGrid (.vts) files.
//
// Each file holds one piece covering the whole mesh, a TimeValue field array
// and either point or cell arrays, never both. All arrays are Float64. ASCII
// data is written with the shortest round-tripping decimal form. Binary data
// is inline base64: a UInt64 byte count and the payload, each encoded on its
// own.
package vtk

import (
	"bufio"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"html"
	"io"
	"math"
	"strconv"

	"github.com/robert-malhotra/h5export/internal/mesh"
)

// Ext is the file extension of a StructuredGrid file.
const Ext = ".vts"

// valuesPerLine bounds ASCII line length.
const valuesPerLine = 9

// Array is a named data array of tuples stored back to back.
type Array struct {
	Name       string
	Components int
	Data       []float64
}

// Tuples returns the number of tuples in the array.
func (a Array) Tuples() int {
	if a.Components <= 0 {
		return 0
	}
	return len(a.Data) / a.Components
}

// Grid is one timestep ready to encode.
type Grid struct {
	Mesh   *mesh.Mesh
	Time   float64
	Attach Attachment
	Arrays []Array
}

// Validate checks that every array has one tuple per point, or per cell in
// Cell mode.
func (g *Grid) Validate() error {
	if g.Mesh == nil {
		return fmt.Errorf("vtk: grid has no mesh")
	}
	want := g.Mesh.Len()
	if g.Attach == Cell {
		want = g.Mesh.Cells()
	}
	for _, a := range g.Arrays {
		if a.Components < 1 || len(a.Data) != want*a.Components {
			return fmt.Errorf("vtk: array %q has %d values, want %d tuples of %d", a.Name, len(a.Data), want, a.Components)
		}
	}
	return nil
}

// Encode writes g as a StructuredGrid document.
func Encode(w io.Writer, g *Grid, enc Encoding) error {
	if err := g.Validate(); err != nil {
		return err
	}
	e := &encoder{w: bufio.NewWriter(w), enc: enc}

	ext := g.Mesh.Extent()
	extent := fmt.Sprintf("%d %d %d %d %d %d", ext[0], ext[1], ext[2], ext[3], ext[4], ext[5])

	e.line(0, `<?xml version="1.0"?>`)
	e.line(0, `<VTKFile type="StructuredGrid" version="1.0" byte_order="LittleEndian" header_type="UInt64">`)
	e.line(1, fmt.Sprintf(`<StructuredGrid WholeExtent="%s">`, extent))
	e.line(2, `<FieldData>`)
	e.array(3, Array{Name: "TimeValue", Components: 1, Data: []float64{g.Time}}, ` NumberOfTuples="1"`)
	e.line(2, `</FieldData>`)
	e.line(2, fmt.Sprintf(`<Piece Extent="%s">`, extent))

	section := "PointData"
	if g.Attach == Cell {
		section = "CellData"
	}
	e.line(3, "<"+section+defaults(g.Arrays)+">")
	for _, a := range g.Arrays {
		e.array(4, a, "")
	}
	e.line(3, "</"+section+">")

	e.line(3, `<Points>`)
	e.array(4, Array{Components: 3, Data: g.Mesh.Points}, "")
	e.line(3, `</Points>`)
	e.line(2, `</Piece>`)
	e.line(1, `</StructuredGrid>`)
	e.line(0, `</VTKFile>`)

	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

// defaults names the first scalar and first vector array as the active ones.
func defaults(arrays []Array) string {
	var scalars, vectors string
	for _, a := range arrays {
		if a.Components == 1 && scalars == "" {
			scalars = a.Name
		}
		if a.Components == 3 && vectors == "" {
			vectors = a.Name
		}
	}
	s := ""
	if scalars != "" {
		s += fmt.Sprintf(` Scalars="%s"`, html.EscapeString(scalars))
	}
	if vectors != "" {
		s += fmt.Sprintf(` Vectors="%s"`, html.EscapeString(vectors))
	}
	return s
}

type encoder struct {
	w   *bufio.Writer
	enc Encoding
	err error
	buf []byte
}

func (e *encoder) indent(depth int) {
	for i := 0; i < depth; i++ {
		e.w.WriteString("  ")
	}
}

func (e *encoder) line(depth int, s string) {
	if e.err != nil {
		return
	}
	e.indent(depth)
	e.w.WriteString(s)
	if err := e.w.WriteByte('\n'); err != nil {
		e.err = err
	}
}

func (e *encoder) array(depth int, a Array, extra string) {
	if e.err != nil {
		return
	}
	name := ""
	if a.Name != "" {
		name = fmt.Sprintf(` Name="%s"`, html.EscapeString(a.Name))
	}
	comps := ""
	if a.Components > 1 {
		comps = fmt.Sprintf(` NumberOfComponents="%d"`, a.Components)
	}
	e.line(depth, fmt.Sprintf(`<DataArray type="Float64"%s%s%s format="%s">`, name, comps, extra, e.enc))

	switch e.enc {
	case Binary:
		e.indent(depth + 1)
		e.binary(a.Data)
		e.w.WriteByte('\n')
	default:
		e.ascii(depth+1, a.Data)
	}
	e.line(depth, `</DataArray>`)
}

func (e *encoder) ascii(depth int, data []float64) {
	for k := 0; k < len(data); k += valuesPerLine {
		e.indent(depth)
		e.buf = e.buf[:0]
		for n, v := range data[k:min(k+valuesPerLine, len(data))] {
			if n > 0 {
				e.buf = append(e.buf, ' ')
			}
			e.buf = strconv.AppendFloat(e.buf, v, 'g', -1, 64)
		}
		e.buf = append(e.buf, '\n')
		if _, err := e.w.Write(e.buf); err != nil {
			e.err = err
			return
		}
	}
}

func (e *encoder) binary(data []float64) {
	var header [8]byte
	binary.LittleEndian.PutUint64(header[:], uint64(8*len(data)))

	raw := make([]byte, 8*len(data))
	for k, v := range data {
		binary.LittleEndian.PutUint64(raw[8*k:], math.Float64bits(v))
	}

	b64 := base64.NewEncoder(base64.StdEncoding, e.w)
	b64.Write(header[:])
	b64.Close()
	b64 = base64.NewEncoder(base64.StdEncoding, e.w)
	if _, err := b64.Write(raw); err != nil {
		e.err = err
		return
	}
	if err := b64.Close(); err != nil {
		e.err = err
	}
}

// FrameWidth returns the zero-padding width for frame indices of a series
// of steps frames: at least 6, and enough for the largest index.
func FrameWidth(steps int) int {
	w := len(strconv.Itoa(max(steps-1, 0)))
	return max(w, 6)
}

// FrameName returns "<stem>_t_<index>.vts" with index zero padded to width.
func FrameName(stem string, index, width int) string {
	return fmt.Sprintf("%s_t_%0*d%s", stem, width, index, Ext)
}
