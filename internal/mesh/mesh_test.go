package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	z := []float64{-1, 0, 1}
	m := Build(x, z)

	assert.Equal(t, [3]int{4, 1, 3}, m.Dims)
	assert.Equal(t, 12, m.Len())
	assert.Equal(t, 6, m.Cells())
	assert.Equal(t, [6]int{0, 3, 0, 0, 0, 2}, m.Extent())
	require.Len(t, m.Points, 36)

	for j := range z {
		for i := range x {
			p := m.Points[3*Index(i, j, len(x)):]
			assert.Equal(t, []float64{x[i], 0, z[j]}, p[:3], "point (%d,%d)", i, j)
		}
	}
}

func TestBuildCells(t *testing.T) {
	m := BuildCells([]float64{0, 1, 2, 3}, []float64{0, 1, 2})
	assert.Equal(t, [3]int{5, 1, 4}, m.Dims)
	assert.Equal(t, 12, m.Cells())
	assert.Equal(t, []float64{-0.5, 0, -0.5}, m.Points[:3])
}

func TestEdges(t *testing.T) {
	assert.Nil(t, Edges(nil))
	assert.Equal(t, []float64{1.5, 2.5}, Edges([]float64{2}))
	assert.Equal(t, []float64{-0.5, 0.5, 1.5, 2.5}, Edges([]float64{0, 1, 2}))
	assert.InDeltaSlice(t, []float64{-0.25, 0.25, 1, 2}, Edges([]float64{0, 0.5, 1.5}), 1e-12)
}

// Values f[t,i,j] = i*10 + j must survive Flatten then Unflatten at every
// step, and Flatten must place (i, j) where Build placed its point.
func TestFlattenRoundTrip(t *testing.T) {
	const nx, nz, steps = 4, 3, 3
	x := []float64{0, 1, 2, 3}
	z := []float64{0, 1, 2}
	m := Build(x, z)

	for step := 0; step < steps; step++ {
		slab := make([]float64, 0, nx*nz)
		for i := 0; i < nx; i++ {
			for j := 0; j < nz; j++ {
				slab = append(slab, float64(i*10+j+100*step))
			}
		}

		flat := Flatten(slab, nx, nz)
		assert.Equal(t, slab, Unflatten(flat, nx, nz))

		for k, v := range flat {
			i := int(m.Points[3*k])
			j := int(m.Points[3*k+2])
			assert.Equal(t, float64(i*10+j+100*step), v, "index %d", k)
		}
	}
}

func TestFlattenOrder(t *testing.T) {
	// (2, 3) row-major [[a b c] [d e f]] lists x fastest: a d b e c f.
	got := Flatten([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, got)
}
