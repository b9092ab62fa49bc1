package meshdb

import (
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/meshstat/internal/errors"
)

// buildQuad creates a unit square split into two triangles.
func buildQuad(t *testing.T) (*Store, []Handle, []Handle) {
	t.Helper()
	s := New()
	verts := []Handle{
		s.AddVertex(v3.Vec{X: 0, Y: 0, Z: 0}),
		s.AddVertex(v3.Vec{X: 1, Y: 0, Z: 0}),
		s.AddVertex(v3.Vec{X: 1, Y: 1, Z: 0}),
		s.AddVertex(v3.Vec{X: 0, Y: 1, Z: 0}),
	}
	t0, err := s.AddTriangle(verts[0], verts[1], verts[2])
	require.NoError(t, err)
	t1, err := s.AddTriangle(verts[0], verts[2], verts[3])
	require.NoError(t, err)
	return s, verts, []Handle{t0, t1}
}

func TestNewStore(t *testing.T) {
	s := New()
	assert.False(t, s.Root().IsZero())
	assert.Equal(t, 0, s.Len())

	typ, err := s.Type(s.Root())
	require.NoError(t, err)
	assert.Equal(t, TypeEntitySet, typ)
}

func TestAddTriangle(t *testing.T) {
	s, verts, tris := buildQuad(t)

	adj, err := s.Adjacencies(tris[1], DimVertex)
	require.NoError(t, err)
	assert.Equal(t, []Handle{verts[0], verts[2], verts[3]}, adj)

	fan, err := s.Adjacencies(verts[0], DimTriangle)
	require.NoError(t, err)
	assert.Equal(t, tris, fan)

	fan, err = s.Adjacencies(verts[1], DimTriangle)
	require.NoError(t, err)
	assert.Equal(t, []Handle{tris[0]}, fan)
}

func TestAddTriangleRejectsBadInput(t *testing.T) {
	s, verts, tris := buildQuad(t)

	_, err := s.AddTriangle(verts[0], verts[0], verts[1])
	assert.True(t, errors.Is(err, errors.ErrMalformedGeometry))

	_, err = s.AddTriangle(verts[0], verts[1], tris[0])
	assert.True(t, errors.Is(err, errors.ErrInvalidHandle))

	_, err = s.AddTriangle(verts[0], verts[1], Handle(999))
	assert.True(t, errors.Is(err, errors.ErrInvalidHandle))
}

func TestAdjacenciesUnsupported(t *testing.T) {
	s, verts, _ := buildQuad(t)

	_, err := s.Adjacencies(verts[0], DimVertex)
	assert.Error(t, err)

	_, err = s.Adjacencies(Handle(999), DimVertex)
	assert.True(t, errors.Is(err, errors.ErrInvalidHandle))
}

func TestEntitiesByType(t *testing.T) {
	s, verts, tris := buildQuad(t)

	got, err := s.EntitiesByType(s.Root(), TypeVertex)
	require.NoError(t, err)
	assert.Equal(t, verts, got)

	got, err = s.EntitiesByType(s.Root(), TypeTriangle)
	require.NoError(t, err)
	assert.Equal(t, tris, got)

	set := s.CreateSet()
	require.NoError(t, s.AddEntities(set, []Handle{tris[1], tris[1]}))

	got, err = s.EntitiesByType(set, TypeTriangle)
	require.NoError(t, err)
	assert.Equal(t, []Handle{tris[1]}, got)

	// Vertices of a set come from its triangles.
	got, err = s.EntitiesByType(set, TypeVertex)
	require.NoError(t, err)
	assert.Equal(t, []Handle{verts[0], verts[2], verts[3]}, got)

	_, err = s.EntitiesByType(verts[0], TypeVertex)
	assert.True(t, errors.Is(err, errors.ErrInvalidHandle))
}

func TestSetHierarchy(t *testing.T) {
	s := New()
	parent := s.CreateSet()
	a := s.CreateSet()
	b := s.CreateSet()

	require.NoError(t, s.AddChild(parent, a))
	require.NoError(t, s.AddChild(parent, b))
	require.NoError(t, s.AddChild(parent, a))

	children, err := s.ChildSets(parent)
	require.NoError(t, err)
	assert.Equal(t, []Handle{a, b}, children)

	parents, err := s.ParentSets(b)
	require.NoError(t, err)
	assert.Equal(t, []Handle{parent}, parents)

	assert.Error(t, s.AddChild(parent, parent))
}

func TestNames(t *testing.T) {
	s := New()
	set := s.CreateSet()
	require.NoError(t, s.SetName(set, "shell"))

	h, ok := s.Lookup("shell")
	require.True(t, ok)
	assert.Equal(t, set, h)

	_, ok = s.Lookup("core")
	assert.False(t, ok)

	assert.Error(t, s.SetName(Handle(999), "ghost"))

	require.NoError(t, s.SetName(set, "shell"))
	assert.Error(t, s.SetName(s.CreateSet(), "shell"))
}

// ---------------------------------------------------------------------------
// Tags
// ---------------------------------------------------------------------------

func TestTagHandle(t *testing.T) {
	s := New()

	_, err := s.TagHandle("density", 1, TypeDouble, StorageDense, false)
	assert.True(t, errors.IsNotFound(err))

	tag, err := s.TagHandle("density", 1, TypeDouble, StorageDense, true)
	require.NoError(t, err)

	again, err := s.TagHandle("density", 1, TypeDouble, StorageDense, false)
	require.NoError(t, err)
	assert.Same(t, tag, again)

	_, err = s.TagHandle("density", 3, TypeDouble, StorageDense, true)
	assert.True(t, errors.Is(err, errors.ErrTagMismatch))

	_, err = s.TagHandle("bad", 0, TypeInteger, StorageSparse, true)
	assert.Error(t, err)
}

func TestTagDataRoundTrip(t *testing.T) {
	s, _, tris := buildQuad(t)

	tag, err := s.TagHandle("material", 1, TypeInteger, StorageSparse, true)
	require.NoError(t, err)

	// Tag defined but no values written.
	_, err = s.TagData(tag, tris)
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, s.SetTagData(tag, tris, []any{7, int64(9)}))
	vals, err := s.TagData(tag, tris)
	require.NoError(t, err)
	assert.Equal(t, []any{[]int32{7}, []int32{9}}, vals)

	vec, err := s.TagHandle("normal", 3, TypeDouble, StorageDense, true)
	require.NoError(t, err)
	require.NoError(t, s.SetTagData(vec, tris[:1], []any{[]float64{0, 0, 1}}))
	vals, err = s.TagData(vec, tris[:1])
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1}, vals[0])
}

func TestSetTagDataIsAtomic(t *testing.T) {
	s, _, tris := buildQuad(t)
	tag, err := s.TagHandle("normal", 3, TypeDouble, StorageSparse, true)
	require.NoError(t, err)

	err = s.SetTagData(tag, tris, []any{[]float64{1, 2, 3}, []float64{1, 2}})
	require.Error(t, err)

	_, err = s.TagData(tag, tris[:1])
	assert.True(t, errors.IsNotFound(err), "first value must not be written")

	err = s.SetTagData(tag, tris, []any{[]float64{1, 2, 3}})
	assert.Error(t, err)
}

func TestIntegralTagsRejectInexactValues(t *testing.T) {
	tests := []struct {
		name  string
		typ   DataType
		value any
	}{
		{"nan", TypeInteger, math.NaN()},
		{"infinity", TypeInteger, math.Inf(1)},
		{"fraction", TypeInteger, 2.7},
		{"above int32", TypeInteger, int64(math.MaxInt32) + 1},
		{"below int32", TypeInteger, float64(math.MinInt32) - 1},
		{"large unsigned", TypeInteger, uint64(1) << 40},
		{"negative handle", TypeHandle, -1},
		{"fractional handle", TypeHandle, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, tris := buildQuad(t)
			tag, err := s.TagHandle("value", 1, tt.typ, StorageSparse, true)
			require.NoError(t, err)

			err = s.SetTagData(tag, tris, []any{1, tt.value})
			assert.True(t, errors.Is(err, errors.ErrTagValueRange), "got %v", err)

			_, err = s.TagData(tag, tris[:1])
			assert.True(t, errors.IsNotFound(err))
		})
	}
}

func TestIntegralTagsAcceptWholeFloats(t *testing.T) {
	s, _, tris := buildQuad(t)
	tag, err := s.TagHandle("count", 1, TypeInteger, StorageSparse, true)
	require.NoError(t, err)

	require.NoError(t, s.SetTagData(tag, tris, []any{4.0, float64(math.MinInt32)}))
	vals, err := s.TagData(tag, tris)
	require.NoError(t, err)
	assert.Equal(t, []any{[]int32{4}, []int32{math.MinInt32}}, vals)
}

func TestOpaqueTagPadding(t *testing.T) {
	s := New()
	set := s.CreateSet()
	tag, err := s.TagHandle("label", 8, TypeOpaque, StorageSparse, true)
	require.NoError(t, err)

	require.NoError(t, s.SetTagData(tag, []Handle{set}, []any{"abc"}))
	vals, err := s.TagData(tag, []Handle{set})
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 'c', 0, 0, 0, 0, 0}, vals[0])

	err = s.SetTagData(tag, []Handle{set}, []any{"much too long"})
	assert.Error(t, err)
}

func TestDeleteTag(t *testing.T) {
	s, _, tris := buildQuad(t)
	tag, err := s.TagHandle("material", 1, TypeInteger, StorageSparse, true)
	require.NoError(t, err)
	require.NoError(t, s.SetTagData(tag, tris, []any{1, 1}))

	require.NoError(t, s.DeleteTag(tag))
	_, err = s.TagByName("material")
	assert.True(t, errors.IsNotFound(err))

	// The stale handle no longer resolves.
	_, err = s.TagData(tag, tris)
	assert.True(t, errors.IsNotFound(err))
	assert.Error(t, s.DeleteTag(tag))
}

func TestEntitiesByTypeAndTag(t *testing.T) {
	s, _, tris := buildQuad(t)
	tag, err := s.TagHandle("material", 1, TypeInteger, StorageSparse, true)
	require.NoError(t, err)
	require.NoError(t, s.SetTagData(tag, tris, []any{1, 2}))

	got, err := s.EntitiesByTypeAndTag(s.Root(), TypeTriangle, tag, 2)
	require.NoError(t, err)
	assert.Equal(t, []Handle{tris[1]}, got)

	got, err = s.EntitiesByTypeAndTag(s.Root(), TypeTriangle, tag, []int{3})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestValueShape(t *testing.T) {
	tests := []struct {
		name string
		in   any
		n    int
		seq  bool
		ok   bool
	}{
		{"int", 4, 1, false, true},
		{"float", 2.5, 1, false, true},
		{"slice", []float64{1, 2, 3}, 3, true, true},
		{"single element slice", []int{1}, 1, true, true},
		{"string", "Surface", 7, true, true},
		{"nil", nil, 0, false, false},
		{"map", map[string]int{}, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, seq, ok := ValueShape(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.seq, seq)
			assert.Equal(t, tt.n, n)
		})
	}
}

// ---------------------------------------------------------------------------
// Geometry schema
// ---------------------------------------------------------------------------

func TestGeomSets(t *testing.T) {
	s, _, tris := buildQuad(t)

	_, err := LoadGeomTags(s, false)
	assert.True(t, errors.IsNotFound(err))

	gt, err := LoadGeomTags(s, true)
	require.NoError(t, err)

	surf, err := s.NewSurface(gt, 1, tris)
	require.NoError(t, err)
	vol, err := s.NewVolume(gt, 1, []Handle{surf})
	require.NoError(t, err)

	dim, ok, err := gt.DimensionOf(s, surf)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, dim)

	cat, err := gt.CategoryOf(s, vol)
	require.NoError(t, err)
	assert.Equal(t, "Volume", cat)

	gid, err := gt.GlobalIDOf(s, vol)
	require.NoError(t, err)
	assert.Equal(t, 1, gid)

	_, ok, err = gt.DimensionOf(s, s.CreateSet())
	require.NoError(t, err)
	assert.False(t, ok)

	surfaces, err := gt.SetsOfDimension(s, 2)
	require.NoError(t, err)
	assert.Equal(t, []Handle{surf}, surfaces)

	children, err := s.ChildSets(vol)
	require.NoError(t, err)
	assert.Equal(t, []Handle{surf}, children)

	_, err = NewGeomSet(s, gt, 7, 1)
	assert.Error(t, err)
}
