// Package diag collects the recoverable conditions raised while resolving a
// selection or computing metrics. A List is owned by one query session and
// is inspected by callers instead of an ambient warning stream.
package diag

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/chazu/meshstat/internal/logger"
	"github.com/chazu/meshstat/pkg/meshdb"
)

// Code classifies a diagnostic.
type Code int

const (
	InvalidSelection Code = iota
	EmptyScope
	DuplicateComputation
	InconsistentTagData
	DegenerateGeometry
)

func (c Code) String() string {
	switch c {
	case InvalidSelection:
		return "invalid_selection"
	case EmptyScope:
		return "empty_scope"
	case DuplicateComputation:
		return "duplicate_computation"
	case InconsistentTagData:
		return "inconsistent_tag_data"
	case DegenerateGeometry:
		return "degenerate_geometry"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Diagnostic is one recorded warning. Entity is zero when the condition is
// not tied to a single entity.
type Diagnostic struct {
	Code    Code
	Entity  meshdb.Handle
	Message string
}

func (d Diagnostic) String() string {
	if d.Entity.IsZero() {
		return fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", d.Code, d.Message, d.Entity)
}

// List accumulates diagnostics in the order they were raised. The zero
// value is ready to use.
type List struct {
	items []Diagnostic
	log   *zap.SugaredLogger
}

// NewList returns a list that also logs every diagnostic at warn level.
func NewList(log *zap.SugaredLogger) *List {
	return &List{log: log}
}

// Add records a diagnostic.
func (l *List) Add(code Code, entity meshdb.Handle, format string, args ...any) {
	d := Diagnostic{Code: code, Entity: entity, Message: fmt.Sprintf(format, args...)}
	l.items = append(l.items, d)

	log := l.log
	if log == nil {
		log = logger.Logger
	}
	if log == nil {
		return
	}
	if entity.IsZero() {
		log.Warnw(d.Message, "code", code.String())
	} else {
		log.Warnw(d.Message, "code", code.String(), "entity", entity.String())
	}
}

// Items returns a copy of the recorded diagnostics.
func (l *List) Items() []Diagnostic {
	out := make([]Diagnostic, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of diagnostics.
func (l *List) Len() int { return len(l.items) }

// Count returns the number of diagnostics with the given code.
func (l *List) Count(code Code) int {
	n := 0
	for _, d := range l.items {
		if d.Code == code {
			n++
		}
	}
	return n
}

// Since returns the diagnostics recorded after the first n.
func (l *List) Since(n int) []Diagnostic {
	if n >= len(l.items) {
		return nil
	}
	out := make([]Diagnostic, len(l.items)-n)
	copy(out, l.items[n:])
	return out
}

// Reset drops all recorded diagnostics.
func (l *List) Reset() { l.items = nil }
