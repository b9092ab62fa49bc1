package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/meshstat/internal/errors"
)

// quad is a unit square in the z=0 plane split into two triangles.
func quad() *Mesh {
	return &Mesh{
		Vertices: []float64{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0},
		Indices:  []uint32{0, 1, 2, 2, 3, 0},
	}
}

func TestMeshCounts(t *testing.T) {
	tests := []struct {
		name      string
		mesh      *Mesh
		verts     int
		triangles int
		empty     bool
	}{
		{"empty", &Mesh{}, 0, 0, true},
		{"vertices only", &Mesh{Vertices: []float64{1, 2, 3}}, 1, 0, true},
		{"quad", quad(), 4, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.verts, tt.mesh.VertexCount())
			assert.Equal(t, tt.triangles, tt.mesh.TriangleCount())
			assert.Equal(t, tt.empty, tt.mesh.IsEmpty())
		})
	}
}

func TestMeshTriangleAndNormal(t *testing.T) {
	m := quad()
	p := m.Triangle(1)
	assert.Equal(t, 1.0, p[0].X)
	assert.Equal(t, 1.0, p[0].Y)
	assert.Equal(t, 0.0, p[2].X)

	n := m.Normal(0)
	assert.InDelta(t, 0, n.X, 1e-12)
	assert.InDelta(t, 0, n.Y, 1e-12)
	assert.InDelta(t, 1, n.Z, 1e-12)

	flat := &Mesh{Vertices: []float64{0, 0, 0, 1, 0, 0, 2, 0, 0}, Indices: []uint32{0, 1, 2}}
	assert.Zero(t, flat.Normal(0).Length())
}

func TestMeshValidate(t *testing.T) {
	require.NoError(t, quad().Validate())

	tests := []struct {
		name string
		mesh *Mesh
	}{
		{"ragged vertices", &Mesh{Vertices: []float64{0, 0}}},
		{"ragged indices", &Mesh{Vertices: []float64{0, 0, 0}, Indices: []uint32{0, 0}}},
		{"index out of range", &Mesh{Vertices: []float64{0, 0, 0}, Indices: []uint32{0, 0, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mesh.Validate()
			assert.True(t, errors.Is(err, errors.ErrMalformedGeometry))
		})
	}
}
