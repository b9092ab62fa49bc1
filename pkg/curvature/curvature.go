// Package curvature computes discrete Gaussian curvature by angle deficit
// and local roughness as the deviation of a vertex's curvature from the
// cotangent-weighted mean of its neighbours.
//
// All angles are radians. Curvature at a vertex always uses the vertex's
// complete triangle fan from the store, whatever region is being measured.
package curvature

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.uber.org/zap"

	"github.com/chazu/meshstat/internal/errors"
	"github.com/chazu/meshstat/internal/logger"
	"github.com/chazu/meshstat/pkg/geom"
	"github.com/chazu/meshstat/pkg/meshdb"
)

// BoundaryMode selects the deficit reference for vertices with an open fan.
type BoundaryMode int

const (
	// Classify uses pi for boundary vertices and 2*pi for interior ones.
	Classify BoundaryMode = iota
	// Ignore uses 2*pi everywhere.
	Ignore
)

// ParseBoundaryMode maps "classify" and "ignore" to a mode.
func ParseBoundaryMode(s string) (BoundaryMode, error) {
	switch s {
	case "", "classify":
		return Classify, nil
	case "ignore":
		return Ignore, nil
	}
	return Classify, errors.Newf("unknown boundary mode %q", s)
}

// Triangle is a measured triangle with its vertices in store order.
type Triangle struct {
	Verts [3]meshdb.Handle
	geom.Triangle
}

// Corner returns the index of v within the triangle, or -1.
func (t Triangle) Corner(v meshdb.Handle) int {
	for i, h := range t.Verts {
		if h == v {
			return i
		}
	}
	return -1
}

// Neighbor is a vertex sharing an edge with the centre vertex and the
// cotangent weight of that edge.
type Neighbor struct {
	Vertex meshdb.Handle
	Weight float64
}

// Engine computes and memoizes per-triangle measures and per-vertex
// curvature over a store. It is not safe for concurrent use.
type Engine struct {
	store    meshdb.MeshStore
	boundary BoundaryMode
	log      *zap.SugaredLogger

	tris map[meshdb.Handle]Triangle
	gc   map[meshdb.Handle]float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithBoundaryMode sets how boundary vertices are treated.
func WithBoundaryMode(m BoundaryMode) Option {
	return func(e *Engine) { e.boundary = m }
}

// New creates an engine over store.
func New(store meshdb.MeshStore, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		log:   logger.Named("curvature"),
		tris:  make(map[meshdb.Handle]Triangle),
		gc:    make(map[meshdb.Handle]float64),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Triangle measures triangle t. A triangle without exactly three vertices
// fails with ErrMalformedGeometry.
func (e *Engine) Triangle(t meshdb.Handle) (Triangle, error) {
	if tri, ok := e.tris[t]; ok {
		return tri, nil
	}
	verts, err := e.store.Adjacencies(t, meshdb.DimVertex)
	if err != nil {
		return Triangle{}, errors.Wrapf(err, "vertices of triangle %s", t)
	}
	if len(verts) != 3 {
		return Triangle{}, errors.Wrapf(errors.ErrMalformedGeometry,
			"triangle %s has %d vertices", t, len(verts))
	}
	var tri Triangle
	var pts [3]v3.Vec
	for i, v := range verts {
		p, err := e.store.Coords(v)
		if err != nil {
			return Triangle{}, errors.Wrapf(err, "triangle %s", t)
		}
		tri.Verts[i] = v
		pts[i] = p
	}
	tri.Triangle = geom.Measure(pts)
	e.tris[t] = tri
	return tri, nil
}

// Fan returns the measured triangles incident to v.
func (e *Engine) Fan(v meshdb.Handle) ([]Triangle, error) {
	hs, err := e.store.Adjacencies(v, meshdb.DimTriangle)
	if err != nil {
		return nil, errors.Wrapf(err, "fan of %s", v)
	}
	fan := make([]Triangle, 0, len(hs))
	for _, h := range hs {
		tri, err := e.Triangle(h)
		if err != nil {
			return nil, err
		}
		if tri.Corner(v) < 0 {
			return nil, errors.Wrapf(errors.ErrMalformedGeometry,
				"triangle %s listed in fan of %s does not contain it", h, v)
		}
		fan = append(fan, tri)
	}
	return fan, nil
}

// IsBoundary reports whether v's fan is open, that is some edge from v is
// used by other than exactly two fan triangles. An empty fan is closed.
func IsBoundary(v meshdb.Handle, fan []Triangle) bool {
	uses := make(map[meshdb.Handle]int)
	for _, tri := range fan {
		for _, u := range tri.Verts {
			if u != v {
				uses[u]++
			}
		}
	}
	for _, n := range uses {
		if n != 2 {
			return true
		}
	}
	return false
}

// Curvature returns the angle-deficit Gaussian curvature at v:
// |ref - sum of fan angles at v|, ref being 2*pi, or pi on the boundary.
func (e *Engine) Curvature(v meshdb.Handle) (float64, error) {
	if gc, ok := e.gc[v]; ok {
		return gc, nil
	}
	fan, err := e.Fan(v)
	if err != nil {
		return 0, err
	}
	ref := 2 * math.Pi
	if e.boundary == Classify && IsBoundary(v, fan) {
		ref = math.Pi
	}
	sum := 0.0
	for _, tri := range fan {
		sum += tri.AngleAt(tri.Corner(v))
	}
	gc := math.Abs(ref - sum)
	e.gc[v] = gc
	return gc, nil
}

// Neighbors returns the vertices sharing an edge with v, in fan order, each
// weighted by half the sum of the cotangents of the angles opposite that
// edge in the one or two triangles containing it.
func (e *Engine) Neighbors(v meshdb.Handle) ([]Neighbor, error) {
	fan, err := e.Fan(v)
	if err != nil {
		return nil, err
	}
	var out []Neighbor
	index := make(map[meshdb.Handle]int)
	for _, tri := range fan {
		c := tri.Corner(v)
		for k := 1; k <= 2; k++ {
			u := tri.Verts[(c+k)%3]
			// The third vertex faces edge (v,u).
			w := (c + 3 - k) % 3
			cot := 1 / math.Tan(tri.AngleAt(w))
			i, ok := index[u]
			if !ok {
				i = len(out)
				index[u] = i
				out = append(out, Neighbor{Vertex: u})
			}
			out[i].Weight += 0.5 * cot
		}
	}
	return out, nil
}

// Roughness returns |GC(v) - sum(d_u*GC(u)) / sum(d_u)| over v's neighbours.
// A zero weight sum fails with ErrDegenerateWeights.
func (e *Engine) Roughness(v meshdb.Handle) (float64, error) {
	gc, err := e.Curvature(v)
	if err != nil {
		return 0, err
	}
	nbrs, err := e.Neighbors(v)
	if err != nil {
		return 0, err
	}
	var wsum, acc float64
	for _, n := range nbrs {
		gu, err := e.Curvature(n.Vertex)
		if err != nil {
			return 0, err
		}
		wsum += n.Weight
		acc += n.Weight * gu
	}
	if wsum == 0 {
		return math.NaN(), errors.Wrapf(errors.ErrDegenerateWeights,
			"vertex %s has %d neighbours with zero total weight", v, len(nbrs))
	}
	return math.Abs(gc - acc/wsum), nil
}

// TriangleRoughness returns the mean roughness of t's vertices taken from
// vertex. A vertex missing from vertex is computed on demand.
func (e *Engine) TriangleRoughness(t meshdb.Handle, vertex map[meshdb.Handle]float64) (float64, error) {
	tri, err := e.Triangle(t)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range tri.Verts {
		r, ok := vertex[v]
		if !ok {
			r, err = e.Roughness(v)
			if err != nil && !errors.Is(err, errors.ErrDegenerateWeights) {
				return 0, err
			}
		}
		sum += r
	}
	return sum / 3, nil
}

// Reset drops all memoized values.
func (e *Engine) Reset() {
	e.tris = make(map[meshdb.Handle]Triangle)
	e.gc = make(map[meshdb.Handle]float64)
	e.log.Debug("curvature cache reset")
}
