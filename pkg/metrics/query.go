// Package metrics computes and caches mesh quality metrics over one
// resolved selection.
//
// A Query owns four tables (vertex, triangle, surface, volume). Each metric
// is computed at most once per query; asking again records a
// DuplicateComputation diagnostic and leaves the tables untouched.
// Dependencies between metrics are computed silently on demand.
package metrics

import (
	"go.uber.org/zap"

	"github.com/chazu/meshstat/internal/errors"
	"github.com/chazu/meshstat/internal/logger"
	"github.com/chazu/meshstat/pkg/curvature"
	"github.com/chazu/meshstat/pkg/diag"
	"github.com/chazu/meshstat/pkg/meshdb"
	"github.com/chazu/meshstat/pkg/region"
)

// Options tune a query.
type Options struct {
	// IgnoreZero drops vertices without incident triangles from
	// triangles-per-vertex and vertex roughness.
	IgnoreZero bool

	// Boundary selects the curvature reference for open fans.
	Boundary curvature.BoundaryMode
}

// DefaultOptions matches the behaviour of a plain query.
func DefaultOptions() Options {
	return Options{IgnoreZero: true, Boundary: curvature.Classify}
}

// Query is one metrics session over a resolved selection. It is not safe
// for concurrent use; independent selections need independent queries.
type Query struct {
	store    meshdb.MeshStore
	tags     meshdb.GeomTags
	opts     Options
	resolver *region.Resolver
	scope    region.Scope
	curv     *curvature.Engine
	diags    *diag.List
	log      *zap.SugaredLogger

	tables  map[Kind]*Table
	globals map[string]float64
	status  map[Metric]Status

	tris  []meshdb.Handle
	verts []meshdb.Handle
}

// New resolves sel against store and returns an empty query over it. The
// store must carry the geometry tags.
func New(store meshdb.MeshStore, opts Options, sel ...meshdb.Handle) (*Query, error) {
	tags, err := meshdb.LoadGeomTags(store, false)
	if err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "new query"),
			"the mesh store has no geometry tags; build it with meshdb.NewSurface and NewVolume")
	}

	log := logger.Named("metrics")
	diags := diag.NewList(log)
	resolver := region.NewResolver(store, tags, diags)
	scope, err := resolver.Resolve(sel...)
	if err != nil {
		return nil, errors.Wrap(err, "new query")
	}

	q := &Query{
		store:    store,
		tags:     tags,
		opts:     opts,
		resolver: resolver,
		scope:    scope,
		curv:     curvature.New(store, curvature.WithBoundaryMode(opts.Boundary)),
		diags:    diags,
		log:      log,
		tables:   make(map[Kind]*Table, len(Kinds)),
		globals:  make(map[string]float64),
		status:   make(map[Metric]Status),
	}
	for _, k := range Kinds {
		q.tables[k] = newTable(k)
	}
	log.Debugw("query created", "root", scope.Root, "surfaces", len(scope.Surfaces), "volumes", len(scope.Volumes))
	return q, nil
}

// Scope returns the resolved selection.
func (q *Query) Scope() region.Scope { return q.scope }

// Diagnostics returns the warnings recorded so far.
func (q *Query) Diagnostics() *diag.List { return q.diags }

// Table returns the table of kind k.
func (q *Query) Table(k Kind) *Table { return q.tables[k] }

// Status reports whether m has been computed.
func (q *Query) Status(m Metric) Status { return q.status[m] }

// Global returns a global aggregate by name.
func (q *Query) Global(name string) (float64, bool) {
	v, ok := q.globals[name]
	return v, ok
}

// Globals returns a copy of all global aggregates.
func (q *Query) Globals() map[string]float64 {
	out := make(map[string]float64, len(q.globals))
	for k, v := range q.globals {
		out[k] = v
	}
	return out
}

// Calc computes m. A metric already computed in this query records one
// DuplicateComputation diagnostic and returns without touching any table.
// A metric skipped for an empty scope, such as surfaces per volume with no
// volume selected, stays NotComputed: each later call skips again and
// records EmptyScope rather than DuplicateComputation.
func (q *Query) Calc(m Metric) error {
	def, ok := registry[m]
	if !ok {
		return errors.Newf("unknown metric %q", m)
	}
	if q.status[m] == Computed {
		q.diags.Add(diag.DuplicateComputation, 0,
			"metric %s already computed on %s table", m, def.table)
		return nil
	}
	return q.ensure(m, def)
}

// CalcAll computes each metric in turn, stopping at the first error.
func (q *Query) CalcAll(ms ...Metric) error {
	for _, m := range ms {
		if err := q.Calc(m); err != nil {
			return err
		}
	}
	return nil
}

func (q *Query) ensure(m Metric, def definition) error {
	if q.status[m] == Computed {
		return nil
	}
	for _, req := range def.requires {
		if err := q.ensure(req, registry[req]); err != nil {
			return err
		}
	}

	q.log.Debugw("computing metric", "metric", string(m), "table", def.table.String())
	res, err := def.compute(q)
	if err != nil {
		return errors.Wrapf(err, "calc %s", m)
	}
	if res == nil {
		return nil
	}

	t := q.tables[def.table]
	for name, values := range res.cols {
		t.set(name, res.handles, values)
	}
	for name, v := range res.globals {
		q.globals[name] = v
	}
	q.status[m] = Computed
	return nil
}

// Entry points, one per metric.

func (q *Query) CalcTrisPerVert() error   { return q.Calc(TrisPerVert) }
func (q *Query) CalcTrisPerSurf() error   { return q.Calc(TrisPerSurf) }
func (q *Query) CalcSurfsPerVol() error   { return q.Calc(SurfsPerVol) }
func (q *Query) CalcArea() error          { return q.Calc(Area) }
func (q *Query) CalcAspectRatio() error   { return q.Calc(AspectRatio) }
func (q *Query) CalcSideLength() error    { return q.Calc(SideLength) }
func (q *Query) CalcAngle() error         { return q.Calc(Angle) }
func (q *Query) CalcCoarseness() error    { return q.Calc(Coarseness) }
func (q *Query) CalcRoughness() error     { return q.Calc(Roughness) }
func (q *Query) CalcTriRoughness() error  { return q.Calc(TriRoughness) }
func (q *Query) CalcSurfRoughness() error { return q.Calc(SurfRough) }
func (q *Query) CalcVolRoughness() error  { return q.Calc(VolRough) }

// Triangles returns the triangles of the scope.
func (q *Query) Triangles() ([]meshdb.Handle, error) {
	if q.tris == nil {
		tris, err := q.resolver.Triangles(q.scope)
		if err != nil {
			return nil, err
		}
		q.tris = append([]meshdb.Handle{}, tris...)
	}
	return q.tris, nil
}

// Vertices returns the vertices of the scope.
func (q *Query) Vertices() ([]meshdb.Handle, error) {
	if q.verts == nil {
		verts, err := q.resolver.Vertices(q.scope)
		if err != nil {
			return nil, err
		}
		q.verts = append([]meshdb.Handle{}, verts...)
	}
	return q.verts, nil
}
