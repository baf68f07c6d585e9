// Package mesh builds the 3-D structured point mesh of a two-axis archive and
// fixes the linearization shared by the mesh and every field array.
//
// The mesh has dimensions (nx, 1, nz): the missing y axis is a single plane at
// y = 0. Points and values are listed with the first axis varying fastest, so
// point (i, j) sits at [Index](i, j, nx) = i + nx*j. Archive arrays are stored
// row-major as (nx, nz), with z fastest; [Flatten] converts them and
// [Unflatten] inverts it.
package mesh

// Mesh is a structured grid of points.
type Mesh struct {
	Dims   [3]int
	Points []float64 // x, y, z triples in Index order
}

// Build takes the outer product of x and z with a single y = 0 plane.
func Build(x, z []float64) *Mesh {
	nx, nz := len(x), len(z)
	m := &Mesh{
		Dims:   [3]int{nx, 1, nz},
		Points: make([]float64, 0, 3*nx*nz),
	}
	for j := 0; j < nz; j++ {
		for i := 0; i < nx; i++ {
			m.Points = append(m.Points, x[i], 0, z[j])
		}
	}
	return m
}

// BuildCells builds the mesh whose cells are centered on the x and z values.
// Its point dimensions are (nx+1, 1, nz+1) and it has nx*nz cells in Index
// order.
func BuildCells(x, z []float64) *Mesh {
	return Build(Edges(x), Edges(z))
}

// Len returns the number of points.
func (m *Mesh) Len() int { return m.Dims[0] * m.Dims[1] * m.Dims[2] }

// Cells returns the number of cells. A dimension with a single point
// contributes one layer of cells.
func (m *Mesh) Cells() int {
	n := 1
	for _, d := range m.Dims {
		if d > 1 {
			n *= d - 1
		}
	}
	return n
}

// Extent returns the VTK whole extent "0 nx-1 0 0 0 nz-1" as integers.
func (m *Mesh) Extent() [6]int {
	return [6]int{0, m.Dims[0] - 1, 0, m.Dims[1] - 1, 0, m.Dims[2] - 1}
}

// Index returns the linear position of grid point (i, j).
func Index(i, j, nx int) int { return i + nx*j }

// Edges returns the n+1 cell boundaries around n centers: midpoints inside,
// half a spacing beyond each end. A single center gets edges at +-0.5.
func Edges(c []float64) []float64 {
	n := len(c)
	switch n {
	case 0:
		return nil
	case 1:
		return []float64{c[0] - 0.5, c[0] + 0.5}
	}
	e := make([]float64, n+1)
	e[0] = c[0] - (c[1]-c[0])/2
	for k := 1; k < n; k++ {
		e[k] = (c[k-1] + c[k]) / 2
	}
	e[n] = c[n-1] + (c[n-1]-c[n-2])/2
	return e
}

// Flatten reorders a row-major (nx, nz) slab into Index order.
func Flatten(rowMajor []float64, nx, nz int) []float64 {
	out := make([]float64, nx*nz)
	FlattenInto(out, rowMajor, nx, nz)
	return out
}

// FlattenInto is Flatten writing into dst, which must hold nx*nz values.
func FlattenInto(dst, rowMajor []float64, nx, nz int) {
	for i := 0; i < nx; i++ {
		row := rowMajor[i*nz : (i+1)*nz]
		for j, v := range row {
			dst[Index(i, j, nx)] = v
		}
	}
}

// Unflatten is the inverse of Flatten.
func Unflatten(flat []float64, nx, nz int) []float64 {
	out := make([]float64, nx*nz)
	for i := 0; i < nx; i++ {
		for j := 0; j < nz; j++ {
			out[i*nz+j] = flat[Index(i, j, nx)]
		}
	}
	return out
}
