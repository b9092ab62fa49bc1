// Package report renders metric tables, global averages and diagnostics of
// a query as text tables, JSON or CSV.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/chazu/meshstat/internal/config"
	"github.com/chazu/meshstat/internal/errors"
	"github.com/chazu/meshstat/pkg/diag"
	"github.com/chazu/meshstat/pkg/meshdb"
	"github.com/chazu/meshstat/pkg/metrics"
)

// Table is one non-empty metric table.
type Table struct {
	Kind    string   `json:"kind"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Row holds one entity's values in column order.
type Row struct {
	Handle meshdb.Handle `json:"handle"`
	Values []float64     `json:"-"`
}

// MarshalJSON writes NaN as null and infinities as "+Inf"/"-Inf".
func (r Row) MarshalJSON() ([]byte, error) {
	vals := make([]any, len(r.Values))
	for i, v := range r.Values {
		vals[i] = jsonValue(v)
	}
	return json.Marshal(struct {
		Handle meshdb.Handle `json:"handle"`
		Values []any         `json:"values"`
	}{r.Handle, vals})
}

// Global is a named scalar.
type Global struct {
	Name  string  `json:"name"`
	Value float64 `json:"-"`
}

func (g Global) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name  string `json:"name"`
		Value any    `json:"value"`
	}{g.Name, jsonValue(g.Value)})
}

// Diagnostic is a flattened diag.Diagnostic.
type Diagnostic struct {
	Code    string        `json:"code"`
	Entity  meshdb.Handle `json:"entity,omitempty"`
	Message string        `json:"message"`
}

// Report is everything a query computed.
type Report struct {
	Tables      []Table      `json:"tables"`
	Globals     []Global     `json:"globals"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

func jsonValue(v float64) any {
	switch {
	case math.IsNaN(v):
		return nil
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return v
}

// FromQuery collects the computed tables (in Kinds order, empty tables
// skipped), the globals sorted by name and the diagnostics of q.
func FromQuery(q *metrics.Query) *Report {
	r := &Report{
		Tables:      []Table{},
		Globals:     []Global{},
		Diagnostics: []Diagnostic{},
	}
	for _, k := range metrics.Kinds {
		tb := q.Table(k)
		if tb == nil || tb.Len() == 0 {
			continue
		}
		out := Table{Kind: k.String(), Columns: tb.Columns()}
		for _, h := range tb.Handles() {
			row := Row{Handle: h, Values: make([]float64, len(out.Columns))}
			for i, c := range out.Columns {
				row.Values[i], _ = tb.Value(h, c)
			}
			out.Rows = append(out.Rows, row)
		}
		r.Tables = append(r.Tables, out)
	}

	globals := q.Globals()
	names := make([]string, 0, len(globals))
	for n := range globals {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		r.Globals = append(r.Globals, Global{Name: n, Value: globals[n]})
	}

	for _, d := range q.Diagnostics().Items() {
		r.Diagnostics = append(r.Diagnostics, fromDiag(d))
	}
	return r
}

func fromDiag(d diag.Diagnostic) Diagnostic {
	return Diagnostic{Code: d.Code.String(), Entity: d.Entity, Message: d.Message}
}

// Render writes r to w in format (config.FormatTable, FormatJSON or
// FormatCSV).
func Render(w io.Writer, r *Report, format string) error {
	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case config.FormatCSV:
		renderSections(w, r, func(t table.Writer) { t.RenderCSV() })
		return nil
	case config.FormatTable, "":
		renderSections(w, r, func(t table.Writer) { t.Render() })
		return nil
	}
	return errors.Newf("unknown report format %q", format)
}

// renderSections writes one go-pretty table per metric table, then the
// globals and diagnostics, separated by blank lines.
func renderSections(w io.Writer, r *Report, render func(table.Writer)) {
	first := true
	section := func(title string, header table.Row, rows []table.Row) {
		if len(rows) == 0 {
			return
		}
		if !first {
			_, _ = fmt.Fprintln(w)
		}
		first = false
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.SetTitle(title)
		t.AppendHeader(header)
		t.AppendRows(rows)
		render(t)
	}

	for _, tb := range r.Tables {
		header := table.Row{"handle"}
		for _, c := range tb.Columns {
			header = append(header, c)
		}
		rows := make([]table.Row, len(tb.Rows))
		for i, row := range tb.Rows {
			rows[i] = table.Row{uint64(row.Handle)}
			for _, v := range row.Values {
				rows[i] = append(rows[i], formatValue(v))
			}
		}
		section(tb.Kind, header, rows)
	}

	rows := make([]table.Row, len(r.Globals))
	for i, g := range r.Globals {
		rows[i] = table.Row{g.Name, formatValue(g.Value)}
	}
	section("globals", table.Row{"name", "value"}, rows)

	rows = make([]table.Row, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		entity := ""
		if !d.Entity.IsZero() {
			entity = strconv.FormatUint(uint64(d.Entity), 10)
		}
		rows[i] = table.Row{d.Code, entity, d.Message}
	}
	section("diagnostics", table.Row{"code", "entity", "message"}, rows)
}

// formatValue prints v with enough digits to round-trip.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
