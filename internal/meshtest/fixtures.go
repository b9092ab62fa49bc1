// Package meshtest builds small reference meshes shared by package tests.
package meshtest

import (
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/require"

	"github.com/chazu/meshstat/pkg/meshdb"
)

// Model is a store plus the geometry sets created for it.
type Model struct {
	Store    *meshdb.Store
	Tags     meshdb.GeomTags
	Volumes  []meshdb.Handle
	Surfaces []meshdb.Handle
	// SurfacesOf maps a volume to its surfaces in creation order.
	SurfacesOf map[meshdb.Handle][]meshdb.Handle
}

// NewModel returns an empty model with geometry tags defined.
func NewModel(t testing.TB) *Model {
	t.Helper()
	s := meshdb.New()
	gt, err := meshdb.LoadGeomTags(s, true)
	require.NoError(t, err)
	return &Model{Store: s, Tags: gt, SurfacesOf: map[meshdb.Handle][]meshdb.Handle{}}
}

// Face is a list of corner indices triangulated as a fan from the first.
type Face []int

// cubeFaces triangulates each face as (a,b,c),(a,c,d). Four corners end up
// with four incident triangles and four with five.
var cubeFaces = []Face{
	{0, 1, 3, 2}, // z=0
	{4, 5, 7, 6}, // z=1
	{0, 1, 5, 4}, // y=0
	{3, 7, 6, 2}, // y=1
	{2, 6, 4, 0}, // x=0
	{1, 3, 7, 5}, // x=1
}

// cubeCorner returns corner i of an axis-aligned cube: bit 0 is x, bit 1 is
// y, bit 2 is z.
func cubeCorner(origin v3.Vec, side float64, i int) v3.Vec {
	return v3.Vec{
		X: origin.X + side*float64(i&1),
		Y: origin.Y + side*float64((i>>1)&1),
		Z: origin.Z + side*float64((i>>2)&1),
	}
}

// AddCube adds a closed cube volume of the given side with its minimum
// corner at origin: 8 vertices, 6 surfaces, 12 triangles.
func (m *Model) AddCube(t testing.TB, origin v3.Vec, side float64) meshdb.Handle {
	t.Helper()
	corners := make([]v3.Vec, 8)
	for i := range corners {
		corners[i] = cubeCorner(origin, side, i)
	}
	return m.AddPolyhedron(t, corners, cubeFaces)
}

// AddPolyhedron adds a volume with one surface per face.
func (m *Model) AddPolyhedron(t testing.TB, corners []v3.Vec, faces []Face) meshdb.Handle {
	t.Helper()
	s := m.Store
	verts := make([]meshdb.Handle, len(corners))
	for i, c := range corners {
		verts[i] = s.AddVertex(c)
	}

	var surfaces []meshdb.Handle
	for _, f := range faces {
		var tris []meshdb.Handle
		for k := 1; k+1 < len(f); k++ {
			tri, err := s.AddTriangle(verts[f[0]], verts[f[k]], verts[f[k+1]])
			require.NoError(t, err)
			tris = append(tris, tri)
		}
		surf, err := s.NewSurface(m.Tags, len(m.Surfaces)+1, tris)
		require.NoError(t, err)
		m.Surfaces = append(m.Surfaces, surf)
		surfaces = append(surfaces, surf)
	}

	vol, err := s.NewVolume(m.Tags, len(m.Volumes)+1, surfaces)
	require.NoError(t, err)
	m.Volumes = append(m.Volumes, vol)
	m.SurfacesOf[vol] = surfaces
	return vol
}

// AddPointSet adds a set tagged as a geometric vertex (dimension 0).
func (m *Model) AddPointSet(t testing.TB) meshdb.Handle {
	t.Helper()
	set, err := meshdb.NewGeomSet(m.Store, m.Tags, 0, 1)
	require.NoError(t, err)
	return set
}

// Cube returns a model holding one cube of side 10 at the origin.
func Cube(t testing.TB) *Model {
	t.Helper()
	m := NewModel(t)
	m.AddCube(t, v3.Vec{}, 10)
	return m
}

// ThreeVolumes returns a model with three disjoint cubes of side 10.
func ThreeVolumes(t testing.TB) *Model {
	t.Helper()
	m := NewModel(t)
	for i := 0; i < 3; i++ {
		m.AddCube(t, v3.Vec{X: 20 * float64(i)}, 10)
	}
	return m
}

// Square pyramid with a 5x5 base and equilateral sides. The base is split
// along its 0-2 diagonal.
var (
	pyramidCorners = []v3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 5, Y: 0, Z: 0},
		{X: 5, Y: 5, Z: 0},
		{X: 0, Y: 5, Z: 0},
		{X: 2.5, Y: 2.5, Z: 5 / math.Sqrt2},
	}
	pyramidFaces = []Face{
		{0, 1, 4},
		{1, 2, 4},
		{2, 3, 4},
		{3, 0, 4},
		{0, 1, 2, 3},
	}
)

// Pyramid returns a model holding the square pyramid as one volume with
// four side surfaces and one base surface of two triangles. Corner vertices
// come first in creation order, the apex last.
func Pyramid(t testing.TB) *Model {
	t.Helper()
	m := NewModel(t)
	m.AddPolyhedron(t, pyramidCorners, pyramidFaces)
	return m
}

// Reference values for Pyramid, curvature in radians.
const (
	PyramidApexCurvature   = 2*math.Pi - 4*math.Pi/3
	PyramidCornerCurvature = 2*math.Pi - 2*math.Pi/3 - math.Pi/2

	PyramidApexRoughness    = 0.5235987755982991
	PyramidCornerRoughness  = 0.14029786907948916
	PyramidSideTriRoughness = 0.26806483791909247
	PyramidBaseTriRoughness = PyramidCornerRoughness
	PyramidAverageRoughness = 0.2212988815592629
)
