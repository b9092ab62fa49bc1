package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/chazu/meshstat/internal/errors"
	"github.com/chazu/meshstat/pkg/curvature"
	"github.com/chazu/meshstat/pkg/diag"
	"github.com/chazu/meshstat/pkg/geom"
	"github.com/chazu/meshstat/pkg/meshdb"
)

const msgNoVolumes = "volume list is empty"

func averageName(column string) string { return column + "_ave" }

// single builds a one-column result with the column's plain mean as its
// global.
func single(column string, hs []meshdb.Handle, values []float64) *result {
	res := &result{
		handles: hs,
		cols:    map[string][]float64{column: values},
		globals: map[string]float64{},
	}
	if len(values) > 0 {
		res.globals[averageName(column)] = stat.Mean(values, nil)
	}
	return res
}

func (q *Query) computeTrisPerVert() (*result, error) {
	verts, err := q.Vertices()
	if err != nil {
		return nil, err
	}
	hs := make([]meshdb.Handle, 0, len(verts))
	counts := make([]float64, 0, len(verts))
	for _, v := range verts {
		adj, err := q.store.Adjacencies(v, meshdb.DimTriangle)
		if err != nil {
			return nil, errors.Wrapf(err, "triangles of vertex %s", v)
		}
		if q.opts.IgnoreZero && len(adj) == 0 {
			continue
		}
		hs = append(hs, v)
		counts = append(counts, float64(len(adj)))
	}
	return single(ColTrisPerVert, hs, counts), nil
}

func (q *Query) computeTrisPerSurf() (*result, error) {
	surfs := q.scope.Surfaces
	counts := make([]float64, len(surfs))
	for i, surf := range surfs {
		tris, err := q.resolver.SurfaceTriangles(surf)
		if err != nil {
			return nil, err
		}
		counts[i] = float64(len(tris))
	}
	return single(ColTrisPerSurf, surfs, counts), nil
}

func (q *Query) computeSurfsPerVol() (*result, error) {
	vols := q.scope.Volumes
	if len(vols) == 0 {
		q.diags.Add(diag.EmptyScope, 0, msgNoVolumes)
		return nil, nil
	}
	counts := make([]float64, len(vols))
	for i, vol := range vols {
		children, err := q.store.ChildSets(vol)
		if err != nil {
			return nil, errors.Wrapf(err, "surfaces of volume %s", vol)
		}
		counts[i] = float64(len(children))
	}
	return single(ColSurfsPerVol, vols, counts), nil
}

// measured returns the scope triangles with their measures.
func (q *Query) measured() ([]meshdb.Handle, []curvature.Triangle, error) {
	tris, err := q.Triangles()
	if err != nil {
		return nil, nil, err
	}
	out := make([]curvature.Triangle, len(tris))
	for i, t := range tris {
		if out[i], err = q.curv.Triangle(t); err != nil {
			return nil, nil, err
		}
	}
	return tris, out, nil
}

func (q *Query) computeArea() (*result, error) {
	tris, m, err := q.measured()
	if err != nil {
		return nil, err
	}
	areas := make([]float64, len(m))
	for i := range m {
		areas[i] = m[i].Area
	}
	res := single(ColArea, tris, areas)
	res.globals["area_total"] = floats.Sum(areas)
	return res, nil
}

func (q *Query) computeAspectRatio() (*result, error) {
	tris, m, err := q.measured()
	if err != nil {
		return nil, err
	}
	ratios := make([]float64, len(m))
	for i := range m {
		ratios[i] = m[i].AspectRatio
		if m[i].Degenerate() {
			q.diags.Add(diag.DegenerateGeometry, tris[i],
				"degenerate triangle, aspect ratio is %v", ratios[i])
		}
	}
	return single(ColAspectRatio, tris, ratios), nil
}

func (q *Query) computeSideLength() (*result, error) {
	tris, m, err := q.measured()
	if err != nil {
		return nil, err
	}
	res := &result{handles: tris, cols: map[string][]float64{}, globals: map[string]float64{}}
	var all []float64
	for k := 0; k < 3; k++ {
		col := make([]float64, len(m))
		for i := range m {
			col[i] = m[i].Sides[k]
		}
		res.cols[SideColumn(k)] = col
		all = append(all, col...)
	}
	if len(all) > 0 {
		res.globals[averageName(string(SideLength))] = stat.Mean(all, nil)
	}
	return res, nil
}

func (q *Query) computeAngle() (*result, error) {
	tris, m, err := q.measured()
	if err != nil {
		return nil, err
	}
	res := &result{handles: tris, cols: map[string][]float64{}}
	for k := 0; k < 3; k++ {
		col := make([]float64, len(m))
		for i := range m {
			col[i] = geom.Degrees(m[i].AngleAt(k))
		}
		res.cols[AngleColumn(k)] = col
	}
	return res, nil
}

func (q *Query) computeCoarseness() (*result, error) {
	area, _ := q.tables[TriangleTable].ColumnMap(ColArea)
	var hs []meshdb.Handle
	var values []float64
	var totalTris, totalArea float64
	for _, surf := range q.scope.Surfaces {
		tris, err := q.resolver.SurfaceTriangles(surf)
		if err != nil {
			return nil, err
		}
		a := make([]float64, 0, len(tris))
		for _, t := range tris {
			a = append(a, area[t])
		}
		sum := floats.Sum(a)
		if len(tris) == 0 || sum == 0 {
			q.diags.Add(diag.EmptyScope, surf, "surface has no triangle area, coarseness skipped")
			continue
		}
		hs = append(hs, surf)
		values = append(values, float64(len(tris))/sum)
		totalTris += float64(len(tris))
		totalArea += sum
	}
	res := &result{
		handles: hs,
		cols:    map[string][]float64{ColCoarseness: values},
		globals: map[string]float64{},
	}
	if totalArea > 0 {
		res.globals[averageName(ColCoarseness)] = totalTris / totalArea
	}
	return res, nil
}

func (q *Query) computeRoughness() (*result, error) {
	verts, err := q.Vertices()
	if err != nil {
		return nil, err
	}
	hs := make([]meshdb.Handle, 0, len(verts))
	values := make([]float64, 0, len(verts))
	for _, v := range verts {
		if q.opts.IgnoreZero {
			adj, err := q.store.Adjacencies(v, meshdb.DimTriangle)
			if err != nil {
				return nil, errors.Wrapf(err, "triangles of vertex %s", v)
			}
			if len(adj) == 0 {
				continue
			}
		}
		r, err := q.curv.Roughness(v)
		if errors.Is(err, errors.ErrDegenerateWeights) {
			q.diags.Add(diag.DegenerateGeometry, v, "roughness undefined: neighbour weights sum to zero")
			r = math.NaN()
		} else if err != nil {
			return nil, err
		}
		hs = append(hs, v)
		values = append(values, r)
	}
	res := &result{
		handles: hs,
		cols:    map[string][]float64{ColRoughness: values},
		globals: map[string]float64{},
	}
	if len(values) > 0 {
		res.globals[GlobalVertexRoughness] = stat.Mean(values, nil)
	}
	return res, nil
}

func (q *Query) computeTriRoughness() (*result, error) {
	vertex, _ := q.tables[VertexTable].ColumnMap(ColRoughness)
	area, _ := q.tables[TriangleTable].ColumnMap(ColArea)
	tris, err := q.Triangles()
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(tris))
	weights := make([]float64, len(tris))
	for i, t := range tris {
		if values[i], err = q.curv.TriangleRoughness(t, vertex); err != nil {
			return nil, err
		}
		weights[i] = area[t]
	}
	res := &result{
		handles: tris,
		cols:    map[string][]float64{ColRoughness: values},
		globals: map[string]float64{},
	}
	if floats.Sum(weights) > 0 {
		res.globals[GlobalRoughness] = stat.Mean(values, weights)
	}
	return res, nil
}

// areaWeighted returns the area-weighted mean roughness of tris. ok is
// false when the triangles have no area.
func (q *Query) areaWeighted(tris []meshdb.Handle) (mean float64, ok bool) {
	rough, _ := q.tables[TriangleTable].ColumnMap(ColRoughness)
	area, _ := q.tables[TriangleTable].ColumnMap(ColArea)
	x := make([]float64, 0, len(tris))
	w := make([]float64, 0, len(tris))
	for _, t := range tris {
		r, found := rough[t]
		if !found {
			continue
		}
		x = append(x, r)
		w = append(w, area[t])
	}
	if floats.Sum(w) == 0 {
		return 0, false
	}
	return stat.Mean(x, w), true
}

func (q *Query) computeSurfRoughness() (*result, error) {
	var hs []meshdb.Handle
	var values []float64
	for _, surf := range q.scope.Surfaces {
		tris, err := q.resolver.SurfaceTriangles(surf)
		if err != nil {
			return nil, err
		}
		r, ok := q.areaWeighted(tris)
		if !ok {
			q.diags.Add(diag.EmptyScope, surf, "surface has no triangle area, roughness skipped")
			continue
		}
		hs = append(hs, surf)
		values = append(values, r)
	}
	return &result{handles: hs, cols: map[string][]float64{ColRoughness: values}}, nil
}

func (q *Query) computeVolRoughness() (*result, error) {
	vols := q.scope.Volumes
	if len(vols) == 0 {
		q.diags.Add(diag.EmptyScope, 0, msgNoVolumes)
		return nil, nil
	}
	var hs []meshdb.Handle
	var values []float64
	for _, vol := range vols {
		surfs, err := q.store.ChildSets(vol)
		if err != nil {
			return nil, errors.Wrapf(err, "surfaces of volume %s", vol)
		}
		var tris []meshdb.Handle
		for _, surf := range surfs {
			st, err := q.resolver.SurfaceTriangles(surf)
			if err != nil {
				return nil, err
			}
			tris = append(tris, st...)
		}
		r, ok := q.areaWeighted(tris)
		if !ok {
			q.diags.Add(diag.EmptyScope, vol, "volume has no triangle area, roughness skipped")
			continue
		}
		hs = append(hs, vol)
		values = append(values, r)
	}
	return &result{handles: hs, cols: map[string][]float64{ColRoughness: values}}, nil
}
