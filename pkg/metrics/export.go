package metrics

import (
	"math"
	"sort"

	"github.com/chazu/meshstat/internal/errors"
	"github.com/chazu/meshstat/pkg/diag"
	"github.com/chazu/meshstat/pkg/meshdb"
)

const msgInconsistentTag = "lengths in tag values are not consistent"

// AddTag creates tag name of type typ on the store and writes values.
//
// The tag must not exist yet. With no values only the definition is
// created, so reads of it fail with ErrNotFound. Values must share one
// shape: all scalars, or all sequences of one length. Otherwise an
// InconsistentTagData diagnostic is recorded, ErrInconsistentTagData is
// returned and no tag is created. A failed write removes the tag again.
func (q *Query) AddTag(name string, typ meshdb.DataType, values map[meshdb.Handle]any) (*meshdb.Tag, error) {
	if _, err := q.store.TagByName(name); err == nil {
		q.diags.Add(diag.InconsistentTagData, 0, "tag %s already exists", name)
		return nil, errors.Wrapf(errors.ErrTagMismatch, "add tag %q: already exists", name)
	}
	if len(values) == 0 {
		tag, err := q.store.TagHandle(name, 1, typ, meshdb.StorageSparse, true)
		if err != nil {
			return nil, errors.Wrapf(err, "add tag %q", name)
		}
		return tag, nil
	}

	hs := make([]meshdb.Handle, 0, len(values))
	for h := range values {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })

	size, err := uniformShape(hs, values)
	if err != nil {
		q.diags.Add(diag.InconsistentTagData, 0, "%s: %s", msgInconsistentTag, name)
		return nil, errors.Wrapf(err, "add tag %q", name)
	}

	tag, err := q.store.TagHandle(name, size, typ, meshdb.StorageSparse, true)
	if err != nil {
		return nil, errors.Wrapf(err, "add tag %q", name)
	}
	vals := make([]any, len(hs))
	for i, h := range hs {
		vals[i] = values[h]
	}
	if err := q.store.SetTagData(tag, hs, vals); err != nil {
		if derr := q.store.DeleteTag(tag); derr != nil {
			q.log.Warnw("could not remove partially written tag", "tag", name, "error", derr)
		}
		return nil, errors.Wrapf(err, "add tag %q", name)
	}
	q.log.Debugw("tag written", "tag", name, "entities", len(hs), "size", size)
	return tag, nil
}

// uniformShape returns the common element count of values.
func uniformShape(hs []meshdb.Handle, values map[meshdb.Handle]any) (int, error) {
	var size int
	var seq bool
	for i, h := range hs {
		n, isSeq, ok := meshdb.ValueShape(values[h])
		if !ok {
			return 0, errors.Wrapf(errors.ErrInconsistentTagData, "unsupported value %T for %s", values[h], h)
		}
		if i == 0 {
			size, seq = n, isSeq
			continue
		}
		if n != size || isSeq != seq {
			return 0, errors.Wrapf(errors.ErrInconsistentTagData,
				"%s has %d elements, expected %d", h, n, size)
		}
	}
	if size == 0 {
		return 0, errors.Wrap(errors.ErrInconsistentTagData, "empty tag values")
	}
	return size, nil
}

// ExportTagName is the tag name ExportColumn uses for column of table k.
func ExportTagName(k Kind, column string) string {
	return k.String() + "_" + column
}

// ExportColumn writes a computed column to the store as a new tag named
// ExportTagName(k, column). Rows the column never populated are left
// without a value.
func (q *Query) ExportColumn(k Kind, column string, typ meshdb.DataType) (*meshdb.Tag, error) {
	col, ok := q.tables[k].ColumnMap(column)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "%s table has no column %q", k, column)
	}
	values := make(map[meshdb.Handle]any, len(col))
	for h, v := range col {
		if math.IsNaN(v) {
			continue
		}
		values[h] = v
	}
	if len(values) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "%s table column %q has no values", k, column)
	}
	return q.AddTag(ExportTagName(k, column), typ, values)
}
