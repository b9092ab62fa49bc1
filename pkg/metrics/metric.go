package metrics

import (
	"fmt"
	"sort"

	"github.com/chazu/meshstat/pkg/meshdb"
)

// Metric names one computation. Each metric fills columns of exactly one
// table and may publish global averages.
type Metric string

const (
	TrisPerVert  Metric = "tri_per_vert"
	TrisPerSurf  Metric = "tri_per_surf"
	SurfsPerVol  Metric = "surf_per_vol"
	Area         Metric = "area"
	AspectRatio  Metric = "aspect_ratio"
	SideLength   Metric = "side_length"
	Angle        Metric = "angle"
	Coarseness   Metric = "coarseness"
	Roughness    Metric = "roughness"
	TriRoughness Metric = "tri_roughness"
	SurfRough    Metric = "surf_roughness"
	VolRough     Metric = "vol_roughness"
)

// Column names.
const (
	ColTrisPerVert = "tri_per_vert"
	ColTrisPerSurf = "tri_per_surf"
	ColSurfsPerVol = "surf_per_vol"
	ColArea        = "area"
	ColAspectRatio = "aspect_ratio"
	ColCoarseness  = "coarseness"
	ColRoughness   = "roughness"
)

// Global average names.
const (
	GlobalRoughness       = "roughness_ave"
	GlobalVertexRoughness = "vertex_roughness_ave"
)

// SideColumn and AngleColumn name the per-side columns. Side i joins
// vertex i and i+1; angle i lies at vertex i.
func SideColumn(i int) string  { return fmt.Sprintf("side_%d", i) }
func AngleColumn(i int) string { return fmt.Sprintf("angle_%d", i) }

// Status is the computation state of a metric within one query.
type Status int

const (
	NotComputed Status = iota
	Computed
)

func (s Status) String() string {
	if s == Computed {
		return "computed"
	}
	return "not_computed"
}

// result is what a compute function produces: columns aligned with
// handles, plus global scalars. A nil result means the metric was skipped.
type result struct {
	handles []meshdb.Handle
	cols    map[string][]float64
	globals map[string]float64
}

// definition registers one metric.
type definition struct {
	table    Kind
	requires []Metric
	compute  func(q *Query) (*result, error)
	help     string
}

var registry = map[Metric]definition{
	TrisPerVert: {
		table:   VertexTable,
		compute: (*Query).computeTrisPerVert,
		help:    "number of triangles incident to each vertex",
	},
	TrisPerSurf: {
		table:   SurfaceTable,
		compute: (*Query).computeTrisPerSurf,
		help:    "number of triangles in each surface",
	},
	SurfsPerVol: {
		table:   VolumeTable,
		compute: (*Query).computeSurfsPerVol,
		help:    "number of child surfaces of each volume",
	},
	Area: {
		table:   TriangleTable,
		compute: (*Query).computeArea,
		help:    "triangle area by Heron's formula",
	},
	AspectRatio: {
		table:   TriangleTable,
		compute: (*Query).computeAspectRatio,
		help:    "triangle aspect ratio, 1 for equilateral",
	},
	SideLength: {
		table:   TriangleTable,
		compute: (*Query).computeSideLength,
		help:    "triangle side lengths",
	},
	Angle: {
		table:   TriangleTable,
		compute: (*Query).computeAngle,
		help:    "triangle interior angles in degrees",
	},
	Coarseness: {
		table:    SurfaceTable,
		requires: []Metric{Area},
		compute:  (*Query).computeCoarseness,
		help:     "triangles per unit area of each surface",
	},
	Roughness: {
		table:   VertexTable,
		compute: (*Query).computeRoughness,
		help:    "local roughness at each vertex",
	},
	TriRoughness: {
		table:    TriangleTable,
		requires: []Metric{Roughness, Area},
		compute:  (*Query).computeTriRoughness,
		help:     "mean vertex roughness of each triangle",
	},
	SurfRough: {
		table:    SurfaceTable,
		requires: []Metric{TriRoughness, Area},
		compute:  (*Query).computeSurfRoughness,
		help:     "area-weighted roughness of each surface",
	},
	VolRough: {
		table:    VolumeTable,
		requires: []Metric{TriRoughness, Area},
		compute:  (*Query).computeVolRoughness,
		help:     "area-weighted roughness of each volume",
	},
}

// Metrics returns every registered metric name, sorted.
func Metrics() []Metric {
	out := make([]Metric, 0, len(registry))
	for m := range registry {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Lookup returns the table and description of m.
func Lookup(m Metric) (table Kind, help string, ok bool) {
	def, ok := registry[m]
	return def.table, def.help, ok
}
