package engine

import (
	"fmt"
	"math"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/meshstat/internal/errors"
	"github.com/chazu/meshstat/pkg/kernel"
	"github.com/chazu/meshstat/pkg/meshdb"
	"github.com/chazu/meshstat/pkg/tessellate"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// Handle kinds carried by sexpHandle.
const (
	kindVertex   = "vertex"
	kindTriangle = "tri"
	kindSurface  = "surface"
	kindVolume   = "volume"
)

// sexpHandle wraps a store handle so it can be passed between builtins.
type sexpHandle struct {
	h    meshdb.Handle
	kind string
}

func (s *sexpHandle) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %s)", s.kind, s.h)
}
func (s *sexpHandle) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a v3.Vec.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpSolid wraps a kernel.Solid until (solid ...) tessellates it.
type sexpSolid struct {
	s kernel.Solid
}

func (s *sexpSolid) SexpString(ps *zygo.PrintState) string {
	min, max := s.s.BoundingBox()
	return fmt.Sprintf("(solid %v %v)", min, max)
}
func (s *sexpSolid) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i += 2
		} else {
			// Keyword at end with no value: a flag.
			result.kw[name] = zygo.SexpNull
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func describe(s zygo.Sexp) string {
	return fmt.Sprintf("%T (%s)", s, s.SexpString(nil))
}

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, errors.Newf("expected number, got %s", describe(s))
}

// toInt extracts a whole number.
func toInt(s zygo.Sexp) (int, error) {
	f, err := toFloat64(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, errors.Newf("expected integer, got %g", f)
	}
	return int(f), nil
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", errors.Newf("expected string, got %s", describe(s))
}

// toVec3 extracts a Vec from a sexpVec3.
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, errors.Newf("expected vec3, got %s", describe(s))
}

// toSolid extracts a kernel.Solid from a sexpSolid.
func toSolid(s zygo.Sexp) (kernel.Solid, error) {
	if v, ok := s.(*sexpSolid); ok {
		return v.s, nil
	}
	return nil, errors.Newf("expected solid, got %s", describe(s))
}

// toHandle extracts a handle of the given kind.
func toHandle(s zygo.Sexp, kind string) (meshdb.Handle, error) {
	if v, ok := s.(*sexpHandle); ok && v.kind == kind {
		return v.h, nil
	}
	return 0, errors.Newf("expected %s, got %s", kind, describe(s))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, errors.Newf("expected list or array, got %T", s)
}

// toHandles collects handles of one kind from args, flattening lists and
// arrays one level deep.
func toHandles(args []zygo.Sexp, kind string) ([]meshdb.Handle, error) {
	var hs []meshdb.Handle
	for _, a := range args {
		if _, ok := a.(*sexpHandle); !ok {
			items, err := sexpListToSlice(a)
			if err != nil {
				return nil, errors.Newf("expected %s or list, got %s", kind, describe(a))
			}
			inner, err := toHandles(items, kind)
			if err != nil {
				return nil, err
			}
			hs = append(hs, inner...)
			continue
		}
		h, err := toHandle(a, kind)
		if err != nil {
			return nil, err
		}
		hs = append(hs, h)
	}
	return hs, nil
}

// vecArgs reads either one vec3 or three numbers.
func vecArgs(args []zygo.Sexp) (v3.Vec, error) {
	switch len(args) {
	case 1:
		return toVec3(args[0])
	case 3:
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return v3.Vec{}, errors.Wrapf(err, "%c", "xyz"[i])
			}
			c[i] = f
		}
		return v3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
	}
	return v3.Vec{}, errors.Newf("expected a vec3 or 3 numbers, got %d arguments", len(args))
}

// ---------------------------------------------------------------------------
// Store building
// ---------------------------------------------------------------------------

// builder owns the store a script populates.
type builder struct {
	store  *meshdb.Store
	tags   meshdb.GeomTags
	kernel kernel.Kernel
	cells  int
	tess   tessellate.Options
}

// nextGlobalID returns one more than the largest global ID among sets of
// dimension dim.
func (b *builder) nextGlobalID(dim int) (int, error) {
	sets, err := b.tags.SetsOfDimension(b.store, dim)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, s := range sets {
		gid, err := b.tags.GlobalIDOf(b.store, s)
		if err != nil {
			return 0, err
		}
		if gid > max {
			max = gid
		}
	}
	return max + 1, nil
}

// globalID reads :id or allocates the next free one.
func (b *builder) globalID(pa kwArgs, dim int) (int, error) {
	if v, ok := pa.kw["id"]; ok {
		return toInt(v)
	}
	return b.nextGlobalID(dim)
}

// name applies :name to h.
func (b *builder) name(pa kwArgs, h meshdb.Handle) error {
	v, ok := pa.kw["name"]
	if !ok {
		return nil
	}
	n, err := toString(v)
	if err != nil {
		return err
	}
	return b.store.SetName(h, n)
}

// geomSet resolves a name or global ID to a set of dimension dim.
func (b *builder) geomSet(ref zygo.Sexp, dim int) (meshdb.Handle, error) {
	if n, err := toString(ref); err == nil {
		h, ok := b.store.Lookup(n)
		if !ok {
			return 0, errors.Newf("no set named %q", n)
		}
		got, ok, err := b.tags.DimensionOf(b.store, h)
		if err != nil {
			return 0, err
		}
		if !ok || got != dim {
			return 0, errors.Newf("%q is not of dimension %d", n, dim)
		}
		return h, nil
	}

	gid, err := toInt(ref)
	if err != nil {
		return 0, errors.Newf("expected name or global id, got %s", describe(ref))
	}
	sets, err := b.tags.SetsOfDimension(b.store, dim)
	if err != nil {
		return 0, err
	}
	for _, s := range sets {
		id, err := b.tags.GlobalIDOf(b.store, s)
		if err != nil {
			return 0, err
		}
		if id == gid {
			return s, nil
		}
	}
	return 0, errors.Newf("no set of dimension %d with global id %d", dim, gid)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// builtinFunc is the zygomys user function signature.
type builtinFunc = func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)

// wrapErr prefixes builtin errors with the builtin's name.
func wrapErr(name string, f builtinFunc) builtinFunc {
	return func(env *zygo.Zlisp, n string, args []zygo.Sexp) (zygo.Sexp, error) {
		res, err := f(env, n, args)
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, name)
		}
		return res, nil
	}
}

// registerBuiltins installs the mesh builtins into a zygomys environment.
// Keyword arguments only arrive as preprocessSource output.
func registerBuiltins(env *zygo.Zlisp, b *builder) {
	add := func(name string, f builtinFunc) {
		env.AddFunction(name, wrapErr(name, f))
	}

	// (vec3 1 2 3)
	add("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, errors.Newf("requires exactly 3 arguments, got %d", len(args))
		}
		v, err := vecArgs(args)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpVec3{vec: v}, nil
	})

	// (vertex 0 0 0) or (vertex (vec3 0 0 0))
	add("vertex", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		p, err := vecArgs(args)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpHandle{h: b.store.AddVertex(p), kind: kindVertex}, nil
	})

	// (tri a b c)
	add("tri", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		vs, err := toHandles(args, kindVertex)
		if err != nil {
			return zygo.SexpNull, err
		}
		if len(vs) != 3 {
			return zygo.SexpNull, errors.Newf("requires 3 vertices, got %d", len(vs))
		}
		t, err := b.store.AddTriangle(vs[0], vs[1], vs[2])
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpHandle{h: t, kind: kindTriangle}, nil
	})

	// (surface :id 1 :name "top" t1 t2 ...) ; lists of triangles are flattened
	add("surface", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		tris, err := toHandles(pa.positional, kindTriangle)
		if err != nil {
			return zygo.SexpNull, err
		}
		gid, err := b.globalID(pa, 2)
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "id")
		}
		surf, err := b.store.NewSurface(b.tags, gid, tris)
		if err != nil {
			return zygo.SexpNull, err
		}
		if err := b.name(pa, surf); err != nil {
			return zygo.SexpNull, errors.Wrap(err, "name")
		}
		return &sexpHandle{h: surf, kind: kindSurface}, nil
	})

	// (volume :id 1 :name "cube" s1 s2 ...)
	add("volume", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		surfs, err := toHandles(pa.positional, kindSurface)
		if err != nil {
			return zygo.SexpNull, err
		}
		gid, err := b.globalID(pa, 3)
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "id")
		}
		vol, err := b.store.NewVolume(b.tags, gid, surfs)
		if err != nil {
			return zygo.SexpNull, err
		}
		if err := b.name(pa, vol); err != nil {
			return zygo.SexpNull, errors.Wrap(err, "name")
		}
		return &sexpHandle{h: vol, kind: kindVolume}, nil
	})

	// (surf "top") or (surf 3)
	add("surf", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.New("requires a name or global id")
		}
		h, err := b.geomSet(args[0], 2)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpHandle{h: h, kind: kindSurface}, nil
	})

	// (vol "cube") or (vol 1)
	add("vol", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.New("requires a name or global id")
		}
		h, err := b.geomSet(args[0], 3)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpHandle{h: h, kind: kindVolume}, nil
	})

	registerSolidBuiltins(add, b)
}

// registerSolidBuiltins installs the solid modelling builtins.
func registerSolidBuiltins(add func(string, builtinFunc), b *builder) {
	// (box 10 20 30) or (box (vec3 10 20 30)), minimum corner at the origin
	add("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		size, err := vecArgs(args)
		if err != nil {
			return zygo.SexpNull, err
		}
		s, err := b.kernel.Box(size.X, size.Y, size.Z)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpSolid{s: s}, nil
	})

	// (sphere 5)
	add("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.New("requires a radius")
		}
		r, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		s, err := b.kernel.Sphere(r)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpSolid{s: s}, nil
	})

	// (cylinder 20 5) height then radius
	add("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, errors.New("requires a height and a radius")
		}
		h, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "height")
		}
		r, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "radius")
		}
		s, err := b.kernel.Cylinder(h, r)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpSolid{s: s}, nil
	})

	boolean := func(op func(a, b kernel.Solid) kernel.Solid) builtinFunc {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) < 2 {
				return zygo.SexpNull, errors.Newf("requires at least 2 solids, got %d", len(args))
			}
			acc, err := toSolid(args[0])
			if err != nil {
				return zygo.SexpNull, err
			}
			for _, a := range args[1:] {
				s, err := toSolid(a)
				if err != nil {
					return zygo.SexpNull, err
				}
				acc = op(acc, s)
			}
			return &sexpSolid{s: acc}, nil
		}
	}
	add("union", boolean(b.kernel.Union))
	add("difference", boolean(b.kernel.Difference))
	add("intersection", boolean(b.kernel.Intersection))

	transform := func(op func(s kernel.Solid, x, y, z float64) kernel.Solid) builtinFunc {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) < 2 {
				return zygo.SexpNull, errors.New("requires a solid and an offset")
			}
			s, err := toSolid(args[0])
			if err != nil {
				return zygo.SexpNull, err
			}
			v, err := vecArgs(args[1:])
			if err != nil {
				return zygo.SexpNull, err
			}
			return &sexpSolid{s: op(s, v.X, v.Y, v.Z)}, nil
		}
	}
	// (translate s (vec3 1 2 3))
	add("translate", transform(b.kernel.Translate))
	// (rotate s (vec3 0 0 90)) Euler angles in degrees
	add("rotate", transform(b.kernel.Rotate))

	// (solid s :name "part" :cells 64) tessellates s into a new volume
	add("solid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, errors.New("requires one solid")
		}
		s, err := toSolid(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		cells := b.cells
		if v, ok := pa.kw["cells"]; ok {
			if cells, err = toInt(v); err != nil {
				return zygo.SexpNull, errors.Wrap(err, "cells")
			}
		}
		mesh, err := b.kernel.ToMesh(s, cells)
		if err != nil {
			return zygo.SexpNull, err
		}
		if v, ok := pa.kw["name"]; ok {
			if mesh.Name, err = toString(v); err != nil {
				return zygo.SexpNull, errors.Wrap(err, "name")
			}
		}
		res, err := tessellate.Import(b.store, b.tags, mesh, b.tess)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpHandle{h: res.Volume, kind: kindVolume}, nil
	})
}
