package kernel

import (
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/meshstat/internal/errors"
)

// Mesh is an indexed triangle mesh. Vertices holds 3 floats per vertex
// (x,y,z); Indices holds 3 vertex indices per triangle. Vertices may be
// repeated: a kernel is free to emit a triangle soup.
type Mesh struct {
	Vertices []float64 `json:"vertices"`
	Indices  []uint32  `json:"indices"`
	Name     string    `json:"name,omitempty"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no triangles.
func (m *Mesh) IsEmpty() bool {
	return len(m.Indices) == 0
}

// Vertex returns vertex i.
func (m *Mesh) Vertex(i int) v3.Vec {
	return v3.Vec{X: m.Vertices[3*i], Y: m.Vertices[3*i+1], Z: m.Vertices[3*i+2]}
}

// Triangle returns the corner positions of triangle i.
func (m *Mesh) Triangle(i int) [3]v3.Vec {
	return [3]v3.Vec{
		m.Vertex(int(m.Indices[3*i])),
		m.Vertex(int(m.Indices[3*i+1])),
		m.Vertex(int(m.Indices[3*i+2])),
	}
}

// Normal returns the unit face normal of triangle i following the
// right-hand rule, or the zero vector for a triangle without area.
func (m *Mesh) Normal(i int) v3.Vec {
	p := m.Triangle(i)
	n := p[1].Sub(p[0]).Cross(p[2].Sub(p[0]))
	l := n.Length()
	if l == 0 {
		return v3.Vec{}
	}
	return n.DivScalar(l)
}

// Validate checks array lengths and index bounds.
func (m *Mesh) Validate() error {
	if len(m.Vertices)%3 != 0 {
		return errors.Wrapf(errors.ErrMalformedGeometry, "vertex array length %d is not a multiple of 3", len(m.Vertices))
	}
	if len(m.Indices)%3 != 0 {
		return errors.Wrapf(errors.ErrMalformedGeometry, "index array length %d is not a multiple of 3", len(m.Indices))
	}
	n := uint32(m.VertexCount())
	for i, idx := range m.Indices {
		if idx >= n {
			return errors.Wrapf(errors.ErrMalformedGeometry, "index %d refers to vertex %d of %d", i, idx, n)
		}
	}
	return nil
}
