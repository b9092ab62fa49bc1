// Package tessellate imports kernel meshes into a mesh store as geometry:
// one volume whose surfaces are the planar patches of the mesh.
package tessellate

import (
	"math"
	"sort"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/meshstat/internal/errors"
	"github.com/chazu/meshstat/internal/logger"
	"github.com/chazu/meshstat/pkg/kernel"
	"github.com/chazu/meshstat/pkg/meshdb"
)

// Options controls Import.
type Options struct {
	// WeldTolerance is the grid spacing used to merge coincident vertices.
	WeldTolerance float64
	// NormalTolerance is the largest angle in degrees between a triangle's
	// normal and the normal of the first triangle of its surface.
	NormalTolerance float64
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{WeldTolerance: 1e-6, NormalTolerance: 10}
}

// Result describes what Import added to the store.
type Result struct {
	Volume    meshdb.Handle
	Surfaces  []meshdb.Handle
	Vertices  int
	Triangles int
	// Dropped counts triangles that collapsed when vertices were welded.
	Dropped int
}

type weldKey [3]int64

type face struct {
	v [3]int
	n v3.Vec
}

type edgeKey [2]int

func edgeOf(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// Import welds m into shared vertices, splits its triangles into surfaces
// of near-parallel normals connected by edges, and wraps those surfaces in
// a new volume. Global IDs continue after the sets already in the store.
// A named mesh names the volume.
func Import(store *meshdb.Store, gt meshdb.GeomTags, m *kernel.Mesh, opts Options) (*Result, error) {
	log := logger.Named("tessellate")
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "import mesh")
	}
	if m.IsEmpty() {
		return nil, errors.Wrap(errors.ErrMalformedGeometry, "import mesh: no triangles")
	}
	def := DefaultOptions()
	if opts.WeldTolerance <= 0 {
		opts.WeldTolerance = def.WeldTolerance
	}
	if opts.NormalTolerance <= 0 {
		opts.NormalTolerance = def.NormalTolerance
	}

	points, remap := weld(m, opts.WeldTolerance)

	res := &Result{}
	faces := make([]face, 0, m.TriangleCount())
	for i := 0; i < m.TriangleCount(); i++ {
		f := face{v: [3]int{remap[m.Indices[3*i]], remap[m.Indices[3*i+1]], remap[m.Indices[3*i+2]]}}
		if f.v[0] == f.v[1] || f.v[1] == f.v[2] || f.v[2] == f.v[0] {
			res.Dropped++
			continue
		}
		n := points[f.v[1]].Sub(points[f.v[0]]).Cross(points[f.v[2]].Sub(points[f.v[0]]))
		if l := n.Length(); l > 0 {
			f.n = n.DivScalar(l)
		}
		faces = append(faces, f)
	}
	if len(faces) == 0 {
		return nil, errors.Wrap(errors.ErrMalformedGeometry, "import mesh: every triangle collapsed")
	}

	groups := planarGroups(faces, math.Cos(opts.NormalTolerance*math.Pi/180))

	surfaces, err := gt.SetsOfDimension(store, 2)
	if err != nil {
		return nil, errors.Wrap(err, "import mesh")
	}
	volumes, err := gt.SetsOfDimension(store, 3)
	if err != nil {
		return nil, errors.Wrap(err, "import mesh")
	}
	nextSurf := len(surfaces) + 1

	handles := make([]meshdb.Handle, len(points))
	vertex := func(i int) meshdb.Handle {
		if handles[i].IsZero() {
			handles[i] = store.AddVertex(points[i])
			res.Vertices++
		}
		return handles[i]
	}

	for _, g := range groups {
		tris := make([]meshdb.Handle, 0, len(g))
		for _, fi := range g {
			f := faces[fi]
			t, err := store.AddTriangle(vertex(f.v[0]), vertex(f.v[1]), vertex(f.v[2]))
			if err != nil {
				return nil, errors.Wrap(err, "import mesh")
			}
			tris = append(tris, t)
		}
		surf, err := store.NewSurface(gt, nextSurf, tris)
		if err != nil {
			return nil, errors.Wrap(err, "import mesh")
		}
		nextSurf++
		res.Surfaces = append(res.Surfaces, surf)
		res.Triangles += len(tris)
	}

	res.Volume, err = store.NewVolume(gt, len(volumes)+1, res.Surfaces)
	if err != nil {
		return nil, errors.Wrap(err, "import mesh")
	}
	if m.Name != "" {
		if err := store.SetName(res.Volume, m.Name); err != nil {
			return nil, errors.Wrap(err, "import mesh")
		}
	}

	log.Debugw("mesh imported",
		"name", m.Name,
		"vertices", res.Vertices,
		"triangles", res.Triangles,
		"surfaces", len(res.Surfaces),
		"dropped", res.Dropped,
	)
	return res, nil
}

// weld merges vertices that round to the same grid cell. It returns the
// merged positions and the merged index of every mesh vertex.
func weld(m *kernel.Mesh, tol float64) ([]v3.Vec, []int) {
	index := make(map[weldKey]int, m.VertexCount())
	remap := make([]int, m.VertexCount())
	var points []v3.Vec
	for i := range remap {
		p := m.Vertex(i)
		k := weldKey{
			int64(math.Round(p.X / tol)),
			int64(math.Round(p.Y / tol)),
			int64(math.Round(p.Z / tol)),
		}
		j, ok := index[k]
		if !ok {
			j = len(points)
			index[k] = j
			points = append(points, p)
		}
		remap[i] = j
	}
	return points, remap
}

// planarGroups partitions faces into edge-connected groups whose normals
// lie within minDot of the group's seed normal. Groups and their members
// keep mesh order.
func planarGroups(faces []face, minDot float64) [][]int {
	edges := make(map[edgeKey][]int, len(faces)*3/2)
	for i, f := range faces {
		for k := 0; k < 3; k++ {
			e := edgeOf(f.v[k], f.v[(k+1)%3])
			edges[e] = append(edges[e], i)
		}
	}

	group := make([]int, len(faces))
	for i := range group {
		group[i] = -1
	}
	var groups [][]int
	for seed := range faces {
		if group[seed] >= 0 {
			continue
		}
		id := len(groups)
		members := []int{seed}
		group[seed] = id
		for q := 0; q < len(members); q++ {
			f := faces[members[q]]
			for k := 0; k < 3; k++ {
				for _, nb := range edges[edgeOf(f.v[k], f.v[(k+1)%3])] {
					if group[nb] >= 0 || faces[nb].n.Dot(faces[seed].n) < minDot {
						continue
					}
					group[nb] = id
					members = append(members, nb)
				}
			}
		}
		groups = append(groups, members)
	}
	for _, g := range groups {
		sort.Ints(g)
	}
	return groups
}
