// Package xdmf builds XDMF 3 documents that describe a snapshot archive as a
// temporal collection of 2-D rectilinear grids. Every heavy data item is a
// reference into the archive; no values are copied.
package xdmf

import (
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/robert-malhotra/h5export/internal/snapshot"
)

// Ext is the file extension of a metadata document.
const Ext = ".xmf"

// Version is the declared XDMF version.
const Version = "3.0"

// Document is the root <Xdmf> element.
type Document struct {
	XMLName xml.Name `xml:"Xdmf"`
	Version string   `xml:"Version,attr"`
	Domain  Domain   `xml:"Domain"`
}

// Domain holds the top-level grids.
type Domain struct {
	Grids []Grid `xml:"Grid"`
}

// Grid is either the temporal collection or one uniform timestep.
type Grid struct {
	Name           string      `xml:"Name,attr"`
	GridType       string      `xml:"GridType,attr"`
	CollectionType string      `xml:"CollectionType,attr,omitempty"`
	Time           *Time       `xml:"Time"`
	Topology       *Topology   `xml:"Topology"`
	Geometry       *Geometry   `xml:"Geometry"`
	Attributes     []Attribute `xml:"Attribute"`
	Grids          []Grid      `xml:"Grid"`
}

// Time is the simulation time of a timestep grid.
type Time struct {
	Value string `xml:"Value,attr"`
}

// Topology describes the mesh connectivity.
type Topology struct {
	TopologyType string `xml:"TopologyType,attr"`
	Dimensions   string `xml:"Dimensions,attr"`
}

// Geometry holds the coordinate arrays.
type Geometry struct {
	GeometryType string     `xml:"GeometryType,attr"`
	Items        []DataItem `xml:"DataItem"`
}

// Attribute is one field attached to the grid.
type Attribute struct {
	Name          string   `xml:"Name,attr"`
	AttributeType string   `xml:"AttributeType,attr"`
	Center        string   `xml:"Center,attr"`
	Item          DataItem `xml:"DataItem"`
}

// DataItem points at an HDF5 dataset or hyperslab.
type DataItem struct {
	Dimensions string `xml:"Dimensions,attr"`
	NumberType string `xml:"NumberType,attr"`
	Precision  string `xml:"Precision,attr"`
	Format     string `xml:"Format,attr"`
	Ref        string `xml:",chardata"`
}

// Number is an XDMF NumberType and Precision pair.
type Number struct {
	Type      string
	Precision int
}

// Float64 is the number type of Dedalus output.
var Float64 = Number{Type: "Float", Precision: 8}

// NumberOf maps a dataset dtype name and element size to an XDMF number
// type. Anything unrecognized is described as Float64.
func NumberOf(dtype string, size int) Number {
	switch {
	case strings.HasPrefix(dtype, "float"):
		return Number{Type: "Float", Precision: size}
	case strings.HasPrefix(dtype, "uint"):
		return Number{Type: "UInt", Precision: size}
	case strings.HasPrefix(dtype, "int"):
		return Number{Type: "Int", Precision: size}
	}
	return Float64
}

func item(dims string, n Number, ref string) DataItem {
	return DataItem{
		Dimensions: dims,
		NumberType: n.Type,
		Precision:  strconv.Itoa(n.Precision),
		Format:     "HDF",
		Ref:        ref,
	}
}

// Source is what a document is built from.
type Source struct {
	Archive *snapshot.Archive
	// Ref is how the document names the archive file, relative to the
	// document's own directory.
	Ref string
	// XType and ZType describe the axis datasets.
	XType, ZType Number
}

// Build returns the temporal collection document for src. Tasks keep the
// archive's sorted order; a vector task becomes one scalar attribute per
// component.
func Build(src Source) *Document {
	a := src.Archive
	nx, nz := a.X.Len(), a.Z.Len()
	// Slowest-varying axis first.
	dims := fmt.Sprintf("%d %d", nz, nx)

	collection := Grid{
		Name:           "Temporal_Grid",
		GridType:       "Collection",
		CollectionType: "Temporal",
		Grids:          make([]Grid, 0, a.Steps()),
	}
	for i, t := range a.Time {
		g := Grid{
			Name:     fmt.Sprintf("Grid_t_%.6f", t),
			GridType: "Uniform",
			Time:     &Time{Value: strconv.FormatFloat(t, 'g', -1, 64)},
			Topology: &Topology{TopologyType: "2DRectMesh", Dimensions: dims},
			Geometry: &Geometry{
				GeometryType: "VXVY",
				Items: []DataItem{
					item(strconv.Itoa(nx), src.XType, src.ref(a.X.Path())),
					item(strconv.Itoa(nz), src.ZType, src.ref(a.Z.Path())),
				},
			},
		}
		for _, task := range a.Tasks {
			n := NumberOf(task.Dtype, task.Size)
			if task.Kind == snapshot.Scalar {
				g.Attributes = append(g.Attributes, attribute(task.Name, dims, n,
					src.ref(task.Path())+fmt.Sprintf("[%d,:,:]", i)))
				continue
			}
			for c := 0; c < task.Components(); c++ {
				g.Attributes = append(g.Attributes, attribute(task.Channel(c), dims, n,
					src.ref(task.Path())+fmt.Sprintf("[%d,%d,:,:]", i, c)))
			}
		}
		collection.Grids = append(collection.Grids, g)
	}

	return &Document{
		Version: Version,
		Domain:  Domain{Grids: []Grid{collection}},
	}
}

func attribute(name, dims string, n Number, ref string) Attribute {
	return Attribute{
		Name:          name,
		AttributeType: "Scalar",
		Center:        "Node",
		Item:          item(dims, n, ref),
	}
}

func (s Source) ref(datasetPath string) string {
	return s.Ref + ":" + path.Join("/", datasetPath)
}

// Encode writes the document with an XML declaration and two-space
// indentation. Output is a pure function of the document.
func Encode(w io.Writer, d *Document) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
