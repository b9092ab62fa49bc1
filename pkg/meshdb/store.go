package meshdb

import (
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/meshstat/internal/errors"
)

// Make sure the in-memory store fulfills the interface.
var _ MeshStore = (*Store)(nil)

// entity is one arena slot. Only the fields for its type are populated.
type entity struct {
	typ EntityType

	coord v3.Vec   // vertex
	tris  []Handle // vertex: incident triangles

	verts [3]Handle // triangle

	members  []Handle // set
	memberOf map[Handle]bool
	children []Handle // set
	parents  []Handle // set
}

// Store is an in-memory mesh database. It is not safe for concurrent
// mutation; concurrent readers are fine once the mesh is built.
type Store struct {
	entities map[Handle]*entity
	order    []Handle
	next     Handle
	root     Handle
	names    map[string]Handle
	tags     map[string]*tagData
}

// New creates an empty store holding only its root set.
func New() *Store {
	s := &Store{
		entities: make(map[Handle]*entity),
		names:    make(map[string]Handle),
		tags:     make(map[string]*tagData),
	}
	s.root = s.alloc(&entity{typ: TypeEntitySet, memberOf: map[Handle]bool{}})
	return s
}

func (s *Store) alloc(e *entity) Handle {
	s.next++
	h := s.next
	s.entities[h] = e
	if h != 1 {
		s.order = append(s.order, h)
	}
	return h
}

// Root returns the root set.
func (s *Store) Root() Handle { return s.root }

// Len returns the number of entities, excluding the root set.
func (s *Store) Len() int { return len(s.order) }

// Type returns the type of h.
func (s *Store) Type(h Handle) (EntityType, error) {
	e, ok := s.entities[h]
	if !ok {
		return 0, errors.Wrapf(errors.ErrInvalidHandle, "handle %s", h)
	}
	return e.typ, nil
}

// AddVertex creates a vertex at p.
func (s *Store) AddVertex(p v3.Vec) Handle {
	return s.alloc(&entity{typ: TypeVertex, coord: p})
}

// AddTriangle creates a triangle over three distinct vertices. The vertex
// order is kept as given and returned unchanged by Adjacencies.
func (s *Store) AddTriangle(a, b, c Handle) (Handle, error) {
	verts := [3]Handle{a, b, c}
	for _, v := range verts {
		if err := s.expect(v, TypeVertex); err != nil {
			return 0, errors.Wrap(err, "add triangle")
		}
	}
	if a == b || b == c || a == c {
		return 0, errors.Wrapf(errors.ErrMalformedGeometry, "add triangle: repeated vertex in (%s, %s, %s)", a, b, c)
	}
	h := s.alloc(&entity{typ: TypeTriangle, verts: verts})
	for _, v := range verts {
		ve := s.entities[v]
		ve.tris = append(ve.tris, h)
	}
	return h, nil
}

// CreateSet creates an empty entity set.
func (s *Store) CreateSet() Handle {
	return s.alloc(&entity{typ: TypeEntitySet, memberOf: map[Handle]bool{}})
}

// AddEntities adds members to a set. Members already present are skipped.
func (s *Store) AddEntities(set Handle, hs []Handle) error {
	if err := s.expect(set, TypeEntitySet); err != nil {
		return errors.Wrap(err, "add entities")
	}
	if set == s.root {
		// Everything already belongs to the root.
		return nil
	}
	se := s.entities[set]
	for _, h := range hs {
		if _, ok := s.entities[h]; !ok {
			return errors.Wrapf(errors.ErrInvalidHandle, "add entities: member %s", h)
		}
		if se.memberOf[h] {
			continue
		}
		se.memberOf[h] = true
		se.members = append(se.members, h)
	}
	return nil
}

// AddChild links child under parent in the set hierarchy.
func (s *Store) AddChild(parent, child Handle) error {
	if err := s.expect(parent, TypeEntitySet); err != nil {
		return errors.Wrap(err, "add child: parent")
	}
	if err := s.expect(child, TypeEntitySet); err != nil {
		return errors.Wrap(err, "add child: child")
	}
	if parent == child {
		return errors.Wrapf(errors.ErrInvalidHandle, "add child: set %s cannot be its own child", parent)
	}
	pe, ce := s.entities[parent], s.entities[child]
	for _, c := range pe.children {
		if c == child {
			return nil
		}
	}
	pe.children = append(pe.children, child)
	ce.parents = append(ce.parents, parent)
	return nil
}

// SetName registers a user-facing name for h. A name already bound to
// another entity is rejected.
func (s *Store) SetName(h Handle, name string) error {
	if _, ok := s.entities[h]; !ok {
		return errors.Wrapf(errors.ErrInvalidHandle, "set name %q", name)
	}
	if prev, ok := s.names[name]; ok && prev != h {
		return errors.Newf("name %q already refers to %s", name, prev)
	}
	s.names[name] = h
	return nil
}

// Lookup returns the handle registered under name.
func (s *Store) Lookup(name string) (Handle, bool) {
	h, ok := s.names[name]
	return h, ok
}

// EntitiesByType returns the entities of type t in set. The root set holds
// every entity; vertices of a non-root set include the vertices of its
// member triangles.
func (s *Store) EntitiesByType(set Handle, t EntityType) ([]Handle, error) {
	if err := s.expect(set, TypeEntitySet); err != nil {
		return nil, errors.Wrap(err, "entities by type")
	}
	var out []Handle
	if set == s.root {
		for _, h := range s.order {
			if s.entities[h].typ == t {
				out = append(out, h)
			}
		}
		return out, nil
	}

	se := s.entities[set]
	seen := make(map[Handle]bool)
	for _, h := range se.members {
		e := s.entities[h]
		switch {
		case e.typ == t:
			if !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		case t == TypeVertex && e.typ == TypeTriangle:
			for _, v := range e.verts {
				if !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			}
		}
	}
	return out, nil
}

// EntitiesByTypeAndTag returns the entities of type t in set whose value
// for tag equals value. Scalars compare against single-valued tags.
func (s *Store) EntitiesByTypeAndTag(set Handle, t EntityType, tag *Tag, value any) ([]Handle, error) {
	td, err := s.lookupTag(tag)
	if err != nil {
		return nil, errors.Wrap(err, "entities by type and tag")
	}
	want, err := normalize(td.def, value)
	if err != nil {
		return nil, errors.Wrap(err, "entities by type and tag")
	}
	all, err := s.EntitiesByType(set, t)
	if err != nil {
		return nil, err
	}
	var out []Handle
	for _, h := range all {
		got, ok := td.values[h]
		if ok && valuesEqual(got, want) {
			out = append(out, h)
		}
	}
	return out, nil
}

// ChildSets returns the direct children of set.
func (s *Store) ChildSets(set Handle) ([]Handle, error) {
	if err := s.expect(set, TypeEntitySet); err != nil {
		return nil, errors.Wrap(err, "child sets")
	}
	children := s.entities[set].children
	out := make([]Handle, len(children))
	copy(out, children)
	return out, nil
}

// ParentSets returns the direct parents of set.
func (s *Store) ParentSets(set Handle) ([]Handle, error) {
	if err := s.expect(set, TypeEntitySet); err != nil {
		return nil, errors.Wrap(err, "parent sets")
	}
	parents := s.entities[set].parents
	out := make([]Handle, len(parents))
	copy(out, parents)
	return out, nil
}

// Adjacencies returns the vertices of a triangle (dim 0) or the triangles
// incident to a vertex (dim 2).
func (s *Store) Adjacencies(h Handle, dim int) ([]Handle, error) {
	e, ok := s.entities[h]
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidHandle, "adjacencies of %s", h)
	}
	switch {
	case e.typ == TypeTriangle && dim == DimVertex:
		return []Handle{e.verts[0], e.verts[1], e.verts[2]}, nil
	case e.typ == TypeVertex && dim == DimTriangle:
		out := make([]Handle, len(e.tris))
		copy(out, e.tris)
		return out, nil
	}
	return nil, errors.Newf("adjacencies: unsupported query from %s to dimension %d", e.typ, dim)
}

// Coords returns the position of vertex v.
func (s *Store) Coords(v Handle) (v3.Vec, error) {
	if err := s.expect(v, TypeVertex); err != nil {
		return v3.Vec{}, errors.Wrap(err, "coords")
	}
	return s.entities[v].coord, nil
}

func (s *Store) expect(h Handle, t EntityType) error {
	e, ok := s.entities[h]
	if !ok {
		return errors.Wrapf(errors.ErrInvalidHandle, "unknown handle %s", h)
	}
	if e.typ != t {
		return errors.Wrapf(errors.ErrInvalidHandle, "handle %s is a %s, want %s", h, e.typ, t)
	}
	return nil
}
