package metrics

import (
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/meshstat/internal/errors"
	"github.com/chazu/meshstat/internal/meshtest"
	"github.com/chazu/meshstat/pkg/diag"
	"github.com/chazu/meshstat/pkg/meshdb"
)

const tol = 1e-9

func newQuery(t *testing.T, m *meshtest.Model, sel ...meshdb.Handle) *Query {
	t.Helper()
	q, err := New(m.Store, DefaultOptions(), sel...)
	require.NoError(t, err)
	return q
}

func TestNewWithoutGeometryTags(t *testing.T) {
	_, err := New(meshdb.New(), DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestUnknownMetric(t *testing.T) {
	q := newQuery(t, meshtest.Cube(t))
	assert.Error(t, q.Calc(Metric("volume_fraction")))
}

// ---------------------------------------------------------------------------
// Cube
// ---------------------------------------------------------------------------

func TestCubeTrisPerVert(t *testing.T) {
	q := newQuery(t, meshtest.Cube(t))
	require.NoError(t, q.CalcTrisPerVert())

	got := q.Table(VertexTable).Sorted(ColTrisPerVert)
	assert.Equal(t, []float64{4, 4, 4, 4, 5, 5, 5, 5}, got)
	assert.Equal(t, Computed, q.Status(TrisPerVert))

	ave, ok := q.Global("tri_per_vert_ave")
	require.True(t, ok)
	assert.InDelta(t, 4.5, ave, tol)
}

func TestCubeSurfaceCounts(t *testing.T) {
	m := meshtest.Cube(t)
	q := newQuery(t, m)
	require.NoError(t, q.CalcAll(TrisPerSurf, SurfsPerVol))

	surf := q.Table(SurfaceTable)
	assert.Equal(t, m.Surfaces, surf.Handles())
	assert.Equal(t, []float64{2, 2, 2, 2, 2, 2}, surf.Sorted(ColTrisPerSurf))

	vol := q.Table(VolumeTable)
	assert.Equal(t, []float64{6}, vol.Sorted(ColSurfsPerVol))
	assert.Equal(t, 0, q.Diagnostics().Len())
}

func TestCubeTriangleShape(t *testing.T) {
	q := newQuery(t, meshtest.Cube(t))
	require.NoError(t, q.CalcAll(Area, AspectRatio, SideLength, Angle))

	tri := q.Table(TriangleTable)
	require.Equal(t, 12, tri.Len())

	r2 := math.Sqrt2
	wantAspect := (10 * 10 * 10 * r2) / (8 * 5 * r2 * 5 * r2 * (10 - 5*r2))
	areas, _ := tri.Column(ColArea)
	aspects, _ := tri.Column(ColAspectRatio)
	for i := range areas {
		assert.InDelta(t, 50, areas[i], tol)
		assert.InDelta(t, wantAspect, aspects[i], tol)
	}

	total, ok := q.Global("area_total")
	require.True(t, ok)
	assert.InDelta(t, 600, total, tol)

	// Every cube triangle is a right isosceles triangle.
	for _, h := range tri.Handles() {
		var angles []float64
		for k := 0; k < 3; k++ {
			a, ok := tri.Value(h, AngleColumn(k))
			require.True(t, ok)
			angles = append(angles, a)
		}
		assert.InDelta(t, 180, angles[0]+angles[1]+angles[2], tol)
		assert.Contains(t, roundAll(angles), 90.0)
	}

	ave, ok := q.Global("side_length_ave")
	require.True(t, ok)
	assert.InDelta(t, (20+10*r2)/3, ave, tol)
}

func roundAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = math.Round(x*1e6) / 1e6
	}
	return out
}

func TestCubeCoarseness(t *testing.T) {
	q := newQuery(t, meshtest.Cube(t))
	require.NoError(t, q.CalcCoarseness())

	// Area is computed on demand without a warning.
	assert.Equal(t, Computed, q.Status(Area))
	assert.Equal(t, 0, q.Diagnostics().Len())

	values, ok := q.Table(SurfaceTable).Column(ColCoarseness)
	require.True(t, ok)
	require.Len(t, values, 6)
	for _, v := range values {
		assert.InDelta(t, 0.02, v, tol)
	}
	ave, _ := q.Global("coarseness_ave")
	assert.InDelta(t, 0.02, ave, tol)
}

// ---------------------------------------------------------------------------
// Duplicate guard
// ---------------------------------------------------------------------------

func TestCalcTwiceWarnsOnce(t *testing.T) {
	for _, m := range Metrics() {
		t.Run(string(m), func(t *testing.T) {
			q := newQuery(t, meshtest.Cube(t))
			require.NoError(t, q.Calc(m))
			table, _, _ := Lookup(m)
			before := snapshot(q.Table(table))

			require.NoError(t, q.Calc(m))
			items := q.Diagnostics().Items()
			require.Len(t, items, 1)
			assert.Equal(t, diag.DuplicateComputation, items[0].Code)
			assert.Contains(t, items[0].Message, string(m))
			assert.Contains(t, items[0].Message, table.String())

			assert.Equal(t, before, snapshot(q.Table(table)))
		})
	}
}

func snapshot(t *Table) map[string]map[meshdb.Handle]float64 {
	out := map[string]map[meshdb.Handle]float64{}
	for _, c := range t.Columns() {
		out[c], _ = t.ColumnMap(c)
	}
	return out
}

func TestDependencyThenExplicitCalcWarns(t *testing.T) {
	q := newQuery(t, meshtest.Cube(t))
	require.NoError(t, q.CalcCoarseness())
	require.NoError(t, q.CalcArea())
	assert.Equal(t, 1, q.Diagnostics().Count(diag.DuplicateComputation))
}

// ---------------------------------------------------------------------------
// Scoped queries
// ---------------------------------------------------------------------------

func TestSurfaceScopeHasNoVolumes(t *testing.T) {
	m := meshtest.ThreeVolumes(t)
	q := newQuery(t, m, m.Surfaces[0])

	require.NoError(t, q.CalcSurfsPerVol())
	assert.Equal(t, 0, q.Table(VolumeTable).Len())
	assert.Equal(t, NotComputed, q.Status(SurfsPerVol))

	items := q.Diagnostics().Items()
	require.Len(t, items, 1)
	assert.Equal(t, diag.EmptyScope, items[0].Code)
	assert.Equal(t, "volume list is empty", items[0].Message)

	require.NoError(t, q.CalcVolRoughness())
	assert.Equal(t, 2, q.Diagnostics().Count(diag.EmptyScope))
}

func TestVolumeScope(t *testing.T) {
	m := meshtest.ThreeVolumes(t)
	vol := m.Volumes[1]
	q := newQuery(t, m, vol)

	require.NoError(t, q.CalcAll(TrisPerVert, TrisPerSurf, SurfsPerVol, Area))
	assert.Equal(t, 8, q.Table(VertexTable).Len())
	assert.Equal(t, m.SurfacesOf[vol], q.Table(SurfaceTable).Handles())
	assert.Equal(t, []meshdb.Handle{vol}, q.Table(VolumeTable).Handles())
	assert.Equal(t, 12, q.Table(TriangleTable).Len())
}

func TestEmptySurfaceCoarseness(t *testing.T) {
	m := meshtest.Cube(t)
	empty, err := m.Store.NewSurface(m.Tags, 99, nil)
	require.NoError(t, err)
	q := newQuery(t, m, m.Surfaces[0], empty)

	require.NoError(t, q.CalcCoarseness())
	assert.Equal(t, []meshdb.Handle{m.Surfaces[0]}, q.Table(SurfaceTable).Handles())

	items := q.Diagnostics().Items()
	require.Len(t, items, 1)
	assert.Equal(t, diag.EmptyScope, items[0].Code)
	assert.Equal(t, empty, items[0].Entity)
}

func TestIgnoreZero(t *testing.T) {
	m := meshtest.Cube(t)
	m.Store.AddVertex(v3.Vec{X: 100, Y: 100, Z: 100})

	q := newQuery(t, m)
	require.NoError(t, q.CalcTrisPerVert())
	assert.Equal(t, 8, q.Table(VertexTable).Len())

	opts := DefaultOptions()
	opts.IgnoreZero = false
	q, err := New(m.Store, opts)
	require.NoError(t, err)
	require.NoError(t, q.CalcTrisPerVert())
	assert.Equal(t, []float64{0, 4, 4, 4, 4, 5, 5, 5, 5}, q.Table(VertexTable).Sorted(ColTrisPerVert))
}

// ---------------------------------------------------------------------------
// Roughness
// ---------------------------------------------------------------------------

func TestPyramidRoughness(t *testing.T) {
	m := meshtest.Pyramid(t)
	q := newQuery(t, m)
	require.NoError(t, q.CalcAll(Roughness, TriRoughness, SurfRough, VolRough))

	verts := q.Table(VertexTable)
	handles := verts.Handles()
	require.Len(t, handles, 5)
	for i, h := range handles {
		r, ok := verts.Value(h, ColRoughness)
		require.True(t, ok)
		want := meshtest.PyramidCornerRoughness
		if i == 4 {
			want = meshtest.PyramidApexRoughness
		}
		assert.InDelta(t, want, r, tol)
	}

	tris, ok := q.Table(TriangleTable).Column(ColRoughness)
	require.True(t, ok)
	want := []float64{
		meshtest.PyramidSideTriRoughness, meshtest.PyramidSideTriRoughness,
		meshtest.PyramidSideTriRoughness, meshtest.PyramidSideTriRoughness,
		meshtest.PyramidBaseTriRoughness, meshtest.PyramidBaseTriRoughness,
	}
	assert.InDeltaSlice(t, want, tris, tol)

	ave, ok := q.Global(GlobalRoughness)
	require.True(t, ok)
	assert.InDelta(t, meshtest.PyramidAverageRoughness, ave, tol)

	// The single volume holds every triangle.
	vol, ok := q.Table(VolumeTable).Column(ColRoughness)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{meshtest.PyramidAverageRoughness}, vol, tol)

	surf, ok := q.Table(SurfaceTable).Column(ColRoughness)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{
		meshtest.PyramidSideTriRoughness, meshtest.PyramidSideTriRoughness,
		meshtest.PyramidSideTriRoughness, meshtest.PyramidSideTriRoughness,
		meshtest.PyramidBaseTriRoughness,
	}, surf, tol)
}

func TestRoughnessUsesWholeFan(t *testing.T) {
	m := meshtest.Pyramid(t)
	base := m.Surfaces[4]
	q := newQuery(t, m, base)
	require.NoError(t, q.CalcRoughness())

	// Base corners still see the side triangles outside the selection.
	values, ok := q.Table(VertexTable).Column(ColRoughness)
	require.True(t, ok)
	require.Len(t, values, 4)
	for _, v := range values {
		assert.InDelta(t, meshtest.PyramidCornerRoughness, v, tol)
	}
}

func TestDegenerateWeightsPropagateNaN(t *testing.T) {
	m := meshtest.Cube(t)
	lone := m.Store.AddVertex(v3.Vec{X: 100, Y: 100, Z: 100})

	opts := DefaultOptions()
	opts.IgnoreZero = false
	q, err := New(m.Store, opts)
	require.NoError(t, err)
	require.NoError(t, q.CalcTriRoughness())

	r, ok := q.Table(VertexTable).Value(lone, ColRoughness)
	require.True(t, ok)
	assert.True(t, math.IsNaN(r))

	items := q.Diagnostics().Items()
	require.Len(t, items, 1)
	assert.Equal(t, diag.DegenerateGeometry, items[0].Code)
	assert.Equal(t, lone, items[0].Entity)

	ave, ok := q.Global(GlobalVertexRoughness)
	require.True(t, ok)
	assert.True(t, math.IsNaN(ave))

	// Triangles do not touch the lone vertex.
	tri, ok := q.Global(GlobalRoughness)
	require.True(t, ok)
	assert.InDelta(t, 0, tri, tol)
}

func TestIgnoreZeroSkipsIsolatedRoughness(t *testing.T) {
	m := meshtest.Cube(t)
	lone := m.Store.AddVertex(v3.Vec{X: 100, Y: 100, Z: 100})

	q := newQuery(t, m)
	require.NoError(t, q.CalcRoughness())

	_, ok := q.Table(VertexTable).Value(lone, ColRoughness)
	assert.False(t, ok)
	assert.Equal(t, 8, q.Table(VertexTable).Len())
	assert.Zero(t, q.Diagnostics().Count(diag.DegenerateGeometry))

	ave, ok := q.Global(GlobalVertexRoughness)
	require.True(t, ok)
	assert.InDelta(t, 0, ave, tol)
}

func TestSkippedMetricStaysNotComputed(t *testing.T) {
	m := meshtest.ThreeVolumes(t)
	q := newQuery(t, m, m.Surfaces[0])

	require.NoError(t, q.CalcSurfsPerVol())
	require.NoError(t, q.CalcSurfsPerVol())
	assert.Equal(t, NotComputed, q.Status(SurfsPerVol))
	assert.Equal(t, 2, q.Diagnostics().Count(diag.EmptyScope))
	assert.Zero(t, q.Diagnostics().Count(diag.DuplicateComputation))
}

func TestDegenerateTriangle(t *testing.T) {
	m := meshtest.NewModel(t)
	s := m.Store
	a := s.AddVertex(v3.Vec{X: 0, Y: 0, Z: 0})
	b := s.AddVertex(v3.Vec{X: 1, Y: 0, Z: 0})
	c := s.AddVertex(v3.Vec{X: 2, Y: 0, Z: 0})
	tri, err := s.AddTriangle(a, b, c)
	require.NoError(t, err)
	surf, err := s.NewSurface(m.Tags, 1, []meshdb.Handle{tri})
	require.NoError(t, err)

	q := newQuery(t, m)
	require.NoError(t, q.CalcAll(Area, AspectRatio, Coarseness))

	area, _ := q.Table(TriangleTable).Value(tri, ColArea)
	assert.Equal(t, 0.0, area)
	ratio, _ := q.Table(TriangleTable).Value(tri, ColAspectRatio)
	assert.True(t, math.IsInf(ratio, 1))

	items := q.Diagnostics().Items()
	require.Len(t, items, 2)
	assert.Equal(t, diag.DegenerateGeometry, items[0].Code)
	assert.Equal(t, tri, items[0].Entity)
	assert.Equal(t, diag.EmptyScope, items[1].Code)
	assert.Equal(t, surf, items[1].Entity)
}

// shortStore reports only two vertices for one triangle.
type shortStore struct {
	*meshdb.Store
	bad meshdb.Handle
}

func (s shortStore) Adjacencies(h meshdb.Handle, dim int) ([]meshdb.Handle, error) {
	adj, err := s.Store.Adjacencies(h, dim)
	if err == nil && h == s.bad && dim == meshdb.DimVertex {
		adj = adj[:2]
	}
	return adj, err
}

func TestMalformedTriangleIsFatal(t *testing.T) {
	m := meshtest.Cube(t)
	tris, err := m.Store.EntitiesByType(m.Store.Root(), meshdb.TypeTriangle)
	require.NoError(t, err)

	q, err := New(shortStore{Store: m.Store, bad: tris[3]}, DefaultOptions())
	require.NoError(t, err)

	err = q.CalcArea()
	assert.True(t, errors.Is(err, errors.ErrMalformedGeometry))
	assert.Equal(t, NotComputed, q.Status(Area))
	assert.Equal(t, 0, q.Table(TriangleTable).Len())
}
