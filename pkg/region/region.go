// Package region resolves a user selection of entity sets into the ordered
// list of surfaces that metrics are computed over.
package region

import (
	"go.uber.org/zap"

	"github.com/chazu/meshstat/internal/errors"
	"github.com/chazu/meshstat/internal/logger"
	"github.com/chazu/meshstat/pkg/diag"
	"github.com/chazu/meshstat/pkg/meshdb"
)

// Geometric dimensions of entity sets.
const (
	DimSurface = 2
	DimVolume  = 3
)

// Warning messages recorded as InvalidSelection diagnostics.
const (
	MsgNotVolumeOrSurface = "selected entity is neither a volume nor a surface"
	MsgRootFallback       = "selected sets are not surfaces or volumes; root set used"
)

// Scope is a resolved selection.
type Scope struct {
	// Root is set when the whole model is selected. Triangles and vertices
	// are then queried from the root set directly.
	Root bool

	// Surfaces in resolution order, without duplicates.
	Surfaces []meshdb.Handle

	// Volumes selected directly, or every volume for a root scope.
	Volumes []meshdb.Handle
}

// Resolver turns selections into scopes.
type Resolver struct {
	store meshdb.MeshStore
	tags  meshdb.GeomTags
	diags *diag.List
	log   *zap.SugaredLogger
}

// NewResolver creates a resolver recording warnings on diags. A nil diags
// gets a private list.
func NewResolver(store meshdb.MeshStore, tags meshdb.GeomTags, diags *diag.List) *Resolver {
	if diags == nil {
		diags = &diag.List{}
	}
	return &Resolver{
		store: store,
		tags:  tags,
		diags: diags,
		log:   logger.Named("region"),
	}
}

// Resolve resolves a selection. No handles, or the root handle anywhere in
// the list, selects the whole model. Volumes expand to their direct child
// surfaces and surfaces select themselves, in input order. Every other
// handle records one InvalidSelection warning and contributes nothing; when
// nothing valid is left a second warning is recorded and the root is used.
func (r *Resolver) Resolve(sel ...meshdb.Handle) (Scope, error) {
	root := r.store.Root()
	if len(sel) == 0 {
		return r.rootScope()
	}
	for _, h := range sel {
		if h == root {
			return r.rootScope()
		}
	}

	var sc Scope
	seenSurf := make(map[meshdb.Handle]bool)
	seenVol := make(map[meshdb.Handle]bool)
	addSurface := func(h meshdb.Handle) {
		if !seenSurf[h] {
			seenSurf[h] = true
			sc.Surfaces = append(sc.Surfaces, h)
		}
	}

	valid := 0
	for _, h := range sel {
		dim, ok, err := r.tags.DimensionOf(r.store, h)
		if err != nil {
			return Scope{}, errors.Wrapf(err, "resolve %s", h)
		}
		switch {
		case ok && dim == DimVolume:
			children, err := r.store.ChildSets(h)
			if err != nil {
				return Scope{}, errors.Wrapf(err, "resolve volume %s", h)
			}
			for _, c := range children {
				addSurface(c)
			}
			if !seenVol[h] {
				seenVol[h] = true
				sc.Volumes = append(sc.Volumes, h)
			}
			valid++
		case ok && dim == DimSurface:
			addSurface(h)
			valid++
		default:
			r.diags.Add(diag.InvalidSelection, h, MsgNotVolumeOrSurface)
		}
	}

	if valid == 0 {
		r.diags.Add(diag.InvalidSelection, 0, MsgRootFallback)
		return r.rootScope()
	}
	r.log.Debugw("resolved selection", "selected", len(sel), "surfaces", len(sc.Surfaces), "volumes", len(sc.Volumes))
	return sc, nil
}

func (r *Resolver) rootScope() (Scope, error) {
	surfaces, err := r.tags.SetsOfDimension(r.store, DimSurface)
	if err != nil {
		return Scope{}, errors.Wrap(err, "root surfaces")
	}
	volumes, err := r.tags.SetsOfDimension(r.store, DimVolume)
	if err != nil {
		return Scope{}, errors.Wrap(err, "root volumes")
	}
	return Scope{Root: true, Surfaces: surfaces, Volumes: volumes}, nil
}

// Triangles returns the triangles of the scope, each once, in surface order.
func (r *Resolver) Triangles(sc Scope) ([]meshdb.Handle, error) {
	return r.entities(sc, meshdb.TypeTriangle)
}

// Vertices returns the vertices of the scope's triangles, each once.
func (r *Resolver) Vertices(sc Scope) ([]meshdb.Handle, error) {
	return r.entities(sc, meshdb.TypeVertex)
}

// SurfaceTriangles returns the triangles directly classified in surf.
func (r *Resolver) SurfaceTriangles(surf meshdb.Handle) ([]meshdb.Handle, error) {
	return r.store.EntitiesByType(surf, meshdb.TypeTriangle)
}

func (r *Resolver) entities(sc Scope, t meshdb.EntityType) ([]meshdb.Handle, error) {
	if sc.Root {
		return r.store.EntitiesByType(r.store.Root(), t)
	}
	var out []meshdb.Handle
	seen := make(map[meshdb.Handle]bool)
	for _, surf := range sc.Surfaces {
		hs, err := r.store.EntitiesByType(surf, t)
		if err != nil {
			return nil, errors.Wrapf(err, "%s entities of surface %s", t, surf)
		}
		for _, h := range hs {
			if !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	return out, nil
}
