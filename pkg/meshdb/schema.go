package meshdb

import (
	"bytes"

	"github.com/chazu/meshstat/internal/errors"
)

// Names and sizes of the geometry tags every DAGMC-style model carries.
const (
	GeomDimensionTag = "GEOM_DIMENSION"
	CategoryTag      = "CATEGORY"
	GlobalIDTag      = "GLOBAL_ID"

	CategorySize = 32
)

// Category names stored in the CATEGORY tag, indexed by dimension.
var Categories = [...]string{"Vertex", "Curve", "Surface", "Volume", "Group"}

// GeomTags holds the handles of the geometry tags.
type GeomTags struct {
	Dimension *Tag
	Category  *Tag
	GlobalID  *Tag
}

// LoadGeomTags fetches the geometry tags, creating them when create is set.
func LoadGeomTags(store MeshStore, create bool) (GeomTags, error) {
	var gt GeomTags
	var err error
	if gt.Dimension, err = store.TagHandle(GeomDimensionTag, 1, TypeInteger, StorageSparse, create); err != nil {
		return GeomTags{}, errors.Wrap(err, "load geometry tags")
	}
	if gt.Category, err = store.TagHandle(CategoryTag, CategorySize, TypeOpaque, StorageSparse, create); err != nil {
		return GeomTags{}, errors.Wrap(err, "load geometry tags")
	}
	if gt.GlobalID, err = store.TagHandle(GlobalIDTag, 1, TypeInteger, StorageDense, create); err != nil {
		return GeomTags{}, errors.Wrap(err, "load geometry tags")
	}
	return gt, nil
}

// DimensionOf returns the GEOM_DIMENSION of set. ok is false when the set has
// no dimension tag value.
func (gt GeomTags) DimensionOf(store MeshStore, set Handle) (dim int, ok bool, err error) {
	vals, err := store.TagData(gt.Dimension, []Handle{set})
	if err != nil {
		if errors.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return int(vals[0].([]int32)[0]), true, nil
}

// CategoryOf returns the CATEGORY string of set, trimmed of padding.
func (gt GeomTags) CategoryOf(store MeshStore, set Handle) (string, error) {
	vals, err := store.TagData(gt.Category, []Handle{set})
	if err != nil {
		return "", err
	}
	return string(bytes.TrimRight(vals[0].([]byte), "\x00")), nil
}

// GlobalIDOf returns the GLOBAL_ID of set.
func (gt GeomTags) GlobalIDOf(store MeshStore, set Handle) (int, error) {
	vals, err := store.TagData(gt.GlobalID, []Handle{set})
	if err != nil {
		return 0, err
	}
	return int(vals[0].([]int32)[0]), nil
}

// SetsOfDimension returns every set under root tagged with dim.
func (gt GeomTags) SetsOfDimension(store MeshStore, dim int) ([]Handle, error) {
	return store.EntitiesByTypeAndTag(store.Root(), TypeEntitySet, gt.Dimension, dim)
}

// NewGeomSet creates a set tagged with dim, its category and gid.
func NewGeomSet(store MeshStore, gt GeomTags, dim, gid int) (Handle, error) {
	if dim < 0 || dim >= len(Categories) {
		return 0, errors.Newf("new geometry set: dimension %d out of range", dim)
	}
	set := store.CreateSet()
	hs := []Handle{set}
	if err := store.SetTagData(gt.Dimension, hs, []any{dim}); err != nil {
		return 0, errors.Wrap(err, "new geometry set")
	}
	if err := store.SetTagData(gt.Category, hs, []any{Categories[dim]}); err != nil {
		return 0, errors.Wrap(err, "new geometry set")
	}
	if err := store.SetTagData(gt.GlobalID, hs, []any{gid}); err != nil {
		return 0, errors.Wrap(err, "new geometry set")
	}
	return set, nil
}

// NewSurface creates a surface set holding tris.
func (s *Store) NewSurface(gt GeomTags, gid int, tris []Handle) (Handle, error) {
	set, err := NewGeomSet(s, gt, 2, gid)
	if err != nil {
		return 0, err
	}
	if err := s.AddEntities(set, tris); err != nil {
		return 0, errors.Wrapf(err, "surface %d", gid)
	}
	return set, nil
}

// NewVolume creates a volume set whose children are surfaces.
func (s *Store) NewVolume(gt GeomTags, gid int, surfaces []Handle) (Handle, error) {
	set, err := NewGeomSet(s, gt, 3, gid)
	if err != nil {
		return 0, err
	}
	for _, surf := range surfaces {
		if err := s.AddChild(set, surf); err != nil {
			return 0, errors.Wrapf(err, "volume %d", gid)
		}
	}
	return set, nil
}
