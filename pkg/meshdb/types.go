package meshdb

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Handle is an opaque reference to a mesh entity. The zero handle is never
// issued.
type Handle uint64

// IsZero reports whether h is the unset handle.
func (h Handle) IsZero() bool { return h == 0 }

func (h Handle) String() string { return fmt.Sprintf("#%d", uint64(h)) }

// EntityType enumerates the kinds of entities held by a store.
type EntityType int

const (
	TypeVertex    EntityType = iota // point with coordinates
	TypeTriangle                    // three vertices
	TypeEntitySet                   // meshset: members + children
)

func (t EntityType) String() string {
	switch t {
	case TypeVertex:
		return "vertex"
	case TypeTriangle:
		return "triangle"
	case TypeEntitySet:
		return "entityset"
	default:
		return "unknown"
	}
}

// Adjacency dimensions accepted by Adjacencies.
const (
	DimVertex   = 0
	DimTriangle = 2
)

// MeshStore is the capability set the metrics engine needs from a mesh
// database. Ordered results follow entity creation order.
type MeshStore interface {
	// Root returns the root set, which implicitly contains every entity.
	Root() Handle

	// EntitiesByType returns the entities of type t contained in set.
	EntitiesByType(set Handle, t EntityType) ([]Handle, error)

	// EntitiesByTypeAndTag filters EntitiesByType by a tag value.
	EntitiesByTypeAndTag(set Handle, t EntityType, tag *Tag, value any) ([]Handle, error)

	// ChildSets returns the direct children of set.
	ChildSets(set Handle) ([]Handle, error)

	// Adjacencies returns the entities of dimension dim adjacent to h:
	// the vertices of a triangle (dim 0) or the triangles incident to a
	// vertex (dim 2).
	Adjacencies(h Handle, dim int) ([]Handle, error)

	// Coords returns the position of a vertex.
	Coords(v Handle) (v3.Vec, error)

	// TagHandle returns the tag with the given definition, creating it when
	// create is set. A missing tag without create fails with ErrNotFound.
	TagHandle(name string, size int, typ DataType, storage StorageClass, create bool) (*Tag, error)

	// TagByName returns an existing tag.
	TagByName(name string) (*Tag, error)

	// TagData reads one value per handle; a handle with no value fails
	// with ErrNotFound.
	TagData(tag *Tag, hs []Handle) ([]any, error)

	// SetTagData writes one value per handle.
	SetTagData(tag *Tag, hs []Handle, values []any) error

	// DeleteTag removes a tag definition and all of its values.
	DeleteTag(tag *Tag) error

	// CreateSet creates an empty entity set.
	CreateSet() Handle

	// AddEntities adds members to a set.
	AddEntities(set Handle, hs []Handle) error
}
