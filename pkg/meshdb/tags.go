package meshdb

import (
	"fmt"
	"math"
	"reflect"

	"github.com/chazu/meshstat/internal/errors"
)

// DataType is the element type of a tag.
type DataType int

const (
	TypeInteger DataType = iota // int32 elements
	TypeDouble                  // float64 elements
	TypeOpaque                  // raw bytes, zero padded to Size
	TypeHandle                  // entity handles
)

func (t DataType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeDouble:
		return "double"
	case TypeOpaque:
		return "opaque"
	case TypeHandle:
		return "handle"
	default:
		return fmt.Sprintf("DataType(%d)", int(t))
	}
}

// StorageClass mirrors sparse/dense tag storage. The in-memory store keeps
// both sparse; the class is part of the tag definition only.
type StorageClass int

const (
	StorageSparse StorageClass = iota
	StorageDense
)

// Tag is a named, typed, fixed-size attribute attached to entities.
// The *Tag pointer returned by the store acts as the tag handle.
type Tag struct {
	Name    string
	Size    int
	Type    DataType
	Storage StorageClass
}

type tagData struct {
	def    *Tag
	values map[Handle]any
}

// TagHandle returns the tag called name, creating it when create is set.
// An existing tag must match size and type.
func (s *Store) TagHandle(name string, size int, typ DataType, storage StorageClass, create bool) (*Tag, error) {
	if td, ok := s.tags[name]; ok {
		if td.def.Size != size || td.def.Type != typ {
			return nil, errors.Wrapf(errors.ErrTagMismatch,
				"tag %q is %s[%d], requested %s[%d]", name, td.def.Type, td.def.Size, typ, size)
		}
		return td.def, nil
	}
	if !create {
		return nil, errors.Wrapf(errors.ErrNotFound, "tag %q", name)
	}
	if size < 1 {
		return nil, errors.Newf("tag %q: size must be positive, got %d", name, size)
	}
	def := &Tag{Name: name, Size: size, Type: typ, Storage: storage}
	s.tags[name] = &tagData{def: def, values: make(map[Handle]any)}
	return def, nil
}

// TagByName returns an existing tag.
func (s *Store) TagByName(name string) (*Tag, error) {
	td, ok := s.tags[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "tag %q", name)
	}
	return td.def, nil
}

// TagNames returns the names of all defined tags.
func (s *Store) TagNames() []string {
	names := make([]string, 0, len(s.tags))
	for n := range s.tags {
		names = append(names, n)
	}
	return names
}

// TagData reads the value of tag for each handle. Values come back in the
// tag's storage representation: []int32, []float64, []byte or []Handle.
func (s *Store) TagData(tag *Tag, hs []Handle) ([]any, error) {
	td, err := s.lookupTag(tag)
	if err != nil {
		return nil, errors.Wrap(err, "tag data")
	}
	out := make([]any, len(hs))
	for i, h := range hs {
		v, ok := td.values[h]
		if !ok {
			return nil, errors.Wrapf(errors.ErrNotFound, "tag %q has no value for %s", tag.Name, h)
		}
		out[i] = cloneValue(v)
	}
	return out, nil
}

// SetTagData writes values[i] for hs[i]. Every value is validated before any
// is stored, so a failed call leaves the tag unchanged.
func (s *Store) SetTagData(tag *Tag, hs []Handle, values []any) error {
	td, err := s.lookupTag(tag)
	if err != nil {
		return errors.Wrap(err, "set tag data")
	}
	if len(hs) != len(values) {
		return errors.Newf("set tag data: %d handles but %d values", len(hs), len(values))
	}
	normalized := make([]any, len(values))
	for i, h := range hs {
		if _, ok := s.entities[h]; !ok {
			return errors.Wrapf(errors.ErrInvalidHandle, "set tag data %q: handle %s", tag.Name, h)
		}
		nv, err := normalize(td.def, values[i])
		if err != nil {
			return errors.Wrapf(err, "set tag data %q for %s", tag.Name, h)
		}
		normalized[i] = nv
	}
	for i, h := range hs {
		td.values[h] = normalized[i]
	}
	return nil
}

// DeleteTag removes a tag and all of its values.
func (s *Store) DeleteTag(tag *Tag) error {
	if _, err := s.lookupTag(tag); err != nil {
		return errors.Wrap(err, "delete tag")
	}
	delete(s.tags, tag.Name)
	return nil
}

func (s *Store) lookupTag(tag *Tag) (*tagData, error) {
	if tag == nil {
		return nil, errors.Wrap(errors.ErrNotFound, "nil tag")
	}
	td, ok := s.tags[tag.Name]
	if !ok || td.def != tag {
		return nil, errors.Wrapf(errors.ErrNotFound, "tag %q", tag.Name)
	}
	return td, nil
}

// ValueShape describes a tag value: n elements, seq set for a slice or
// string and clear for a numeric scalar. ok is false for unsupported kinds.
func ValueShape(v any) (n int, seq bool, ok bool) {
	if v == nil {
		return 0, false, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		return rv.Len(), true, true
	}
	if isNumeric(rv) {
		return 1, false, true
	}
	return 0, false, false
}

// normalize converts v into the storage representation for def.
func normalize(def *Tag, v any) (any, error) {
	elems, err := elements(v)
	if err != nil {
		return nil, err
	}
	if def.Type == TypeOpaque {
		if len(elems) > def.Size {
			return nil, errors.Newf("opaque value of %d bytes exceeds tag size %d", len(elems), def.Size)
		}
	} else if len(elems) != def.Size {
		return nil, errors.Newf("value has %d elements, tag size is %d", len(elems), def.Size)
	}

	switch def.Type {
	case TypeInteger:
		out := make([]int32, len(elems))
		for i, e := range elems {
			n, err := toIntegral(e, math.MinInt32, math.MaxInt32)
			if err != nil {
				return nil, err
			}
			out[i] = int32(n)
		}
		return out, nil
	case TypeDouble:
		out := make([]float64, len(elems))
		for i, e := range elems {
			out[i] = toFloat(e)
		}
		return out, nil
	case TypeOpaque:
		out := make([]byte, def.Size)
		for i, e := range elems {
			n, err := toIntegral(e, 0, math.MaxUint8)
			if err != nil {
				return nil, err
			}
			out[i] = byte(n)
		}
		return out, nil
	case TypeHandle:
		out := make([]Handle, len(elems))
		for i, e := range elems {
			n, err := toIntegral(e, 0, math.MaxInt64)
			if err != nil {
				return nil, err
			}
			out[i] = Handle(n)
		}
		return out, nil
	}
	return nil, errors.Newf("unsupported tag type %s", def.Type)
}

// elements flattens a scalar, string, or slice into reflect values of
// numeric kind.
func elements(v any) ([]reflect.Value, error) {
	if v == nil {
		return nil, errors.New("nil tag value")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		b := []byte(rv.String())
		out := make([]reflect.Value, len(b))
		for i := range b {
			out[i] = reflect.ValueOf(b[i])
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		out := make([]reflect.Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			e := rv.Index(i)
			if e.Kind() == reflect.Interface {
				e = e.Elem()
			}
			if !isNumeric(e) {
				return nil, errors.Newf("tag value element %d has unsupported type %s", i, e.Type())
			}
			out[i] = e
		}
		return out, nil
	}
	if !isNumeric(rv) {
		return nil, errors.Newf("unsupported tag value type %T", v)
	}
	return []reflect.Value{rv}, nil
}

func isNumeric(rv reflect.Value) bool {
	if !rv.IsValid() {
		return false
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// toIntegral returns rv as an integer in [lo, hi]. Floats must be finite
// and whole; nothing is truncated or wrapped.
func toIntegral(rv reflect.Value, lo, hi int64) (int64, error) {
	var n int64
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n = rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > uint64(hi) {
			return 0, errors.Wrapf(errors.ErrTagValueRange, "%d exceeds %d", u, hi)
		}
		n = int64(u)
	default:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return 0, errors.Wrapf(errors.ErrTagValueRange, "%v is not an integer", f)
		}
		if f < float64(lo) || f >= float64(hi)+1 {
			return 0, errors.Wrapf(errors.ErrTagValueRange, "%v outside [%d, %d]", f, lo, hi)
		}
		n = int64(f)
	}
	if n < lo || n > hi {
		return 0, errors.Wrapf(errors.ErrTagValueRange, "%d outside [%d, %d]", n, lo, hi)
	}
	return n, nil
}

func toFloat(rv reflect.Value) float64 {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	default:
		return rv.Float()
	}
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []int32:
		return append([]int32(nil), t...)
	case []float64:
		return append([]float64(nil), t...)
	case []byte:
		return append([]byte(nil), t...)
	case []Handle:
		return append([]Handle(nil), t...)
	}
	return v
}
