package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/chazu/meshstat/pkg/meshdb"
)

// Kind names one of the four metric tables.
type Kind int

const (
	VertexTable Kind = iota
	TriangleTable
	SurfaceTable
	VolumeTable
)

// Kinds lists the tables in report order.
var Kinds = []Kind{VertexTable, TriangleTable, SurfaceTable, VolumeTable}

func (k Kind) String() string {
	switch k {
	case VertexTable:
		return "vertex"
	case TriangleTable:
		return "triangle"
	case SurfaceTable:
		return "surface"
	case VolumeTable:
		return "volume"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a table name to its Kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Table holds computed columns keyed by entity handle. Each handle has at
// most one row; cells never written read as NaN.
type Table struct {
	kind    Kind
	handles []meshdb.Handle
	rows    map[meshdb.Handle]int
	cols    map[string][]float64
	order   []string
}

func newTable(k Kind) *Table {
	return &Table{
		kind: k,
		rows: make(map[meshdb.Handle]int),
		cols: make(map[string][]float64),
	}
}

// Kind returns the table kind.
func (t *Table) Kind() Kind { return t.kind }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.handles) }

// Handles returns the row handles in insertion order.
func (t *Table) Handles() []meshdb.Handle {
	out := make([]meshdb.Handle, len(t.handles))
	copy(out, t.handles)
	return out
}

// Columns returns the column names in the order they were added.
func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Has reports whether column exists.
func (t *Table) Has(column string) bool {
	_, ok := t.cols[column]
	return ok
}

// Value returns the cell at (h, column).
func (t *Table) Value(h meshdb.Handle, column string) (float64, bool) {
	col, ok := t.cols[column]
	if !ok {
		return 0, false
	}
	i, ok := t.rows[h]
	if !ok {
		return 0, false
	}
	return col[i], true
}

// Column returns a copy of column aligned with Handles.
func (t *Table) Column(column string) ([]float64, bool) {
	col, ok := t.cols[column]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(col))
	copy(out, col)
	return out, true
}

// ColumnMap returns column keyed by handle.
func (t *Table) ColumnMap(column string) (map[meshdb.Handle]float64, bool) {
	col, ok := t.cols[column]
	if !ok {
		return nil, false
	}
	out := make(map[meshdb.Handle]float64, len(col))
	for i, h := range t.handles {
		out[h] = col[i]
	}
	return out, true
}

// Sorted returns the values of column in ascending order.
func (t *Table) Sorted(column string) []float64 {
	col, _ := t.Column(column)
	sort.Float64s(col)
	return col
}

func (t *Table) row(h meshdb.Handle) int {
	if i, ok := t.rows[h]; ok {
		return i
	}
	i := len(t.handles)
	t.rows[h] = i
	t.handles = append(t.handles, h)
	for name, col := range t.cols {
		t.cols[name] = append(col, math.NaN())
	}
	return i
}

func (t *Table) addColumn(column string) {
	if _, ok := t.cols[column]; ok {
		return
	}
	col := make([]float64, len(t.handles))
	for i := range col {
		col[i] = math.NaN()
	}
	t.cols[column] = col
	t.order = append(t.order, column)
}

// set writes values[i] at (hs[i], column), adding rows and the column as
// needed.
func (t *Table) set(column string, hs []meshdb.Handle, values []float64) {
	t.addColumn(column)
	for i, h := range hs {
		r := t.row(h)
		t.cols[column][r] = values[i]
	}
}
