// Package errors provides error handling for meshstat.
//
// This package re-exports github.com/cockroachdb/errors so callers get
// stack traces, wrapping and hints from one import, and defines the
// sentinel errors shared by the mesh store and the metrics engine.
//
// Usage:
//
//	if err := store.SetTagData(tag, hs, vals); err != nil {
//	    return errors.Wrap(err, "export roughness")
//	}
//
//	if errors.Is(err, errors.ErrNotFound) {
//	    // no value written for that entity
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is           = crdb.Is
	IsAny        = crdb.IsAny
	As           = crdb.As
	Unwrap       = crdb.Unwrap
	UnwrapAll    = crdb.UnwrapAll
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

// Sentinel errors. Wrap them with Wrap/Wrapf to add context; callers match
// with Is.
var (
	// ErrNotFound indicates a tag, entity or tag value does not exist.
	ErrNotFound = New("not found")

	// ErrInvalidHandle indicates a handle that is unknown to the store or of
	// the wrong entity type for the call.
	ErrInvalidHandle = New("invalid handle")

	// ErrMalformedGeometry indicates input that cannot be measured at all,
	// such as a triangle without exactly three vertices.
	ErrMalformedGeometry = New("malformed geometry")

	// ErrDegenerateWeights indicates a vertex whose neighbour weights sum to
	// zero, which leaves the roughness average undefined.
	ErrDegenerateWeights = New("degenerate roughness weights")

	// ErrInconsistentTagData indicates tag values of differing shapes.
	ErrInconsistentTagData = New("inconsistent tag data")

	// ErrTagMismatch indicates an existing tag whose definition differs from
	// the one requested.
	ErrTagMismatch = New("tag definition mismatch")

	// ErrTagValueRange indicates a value the tag type cannot represent
	// exactly: NaN, an infinity, a fraction or an out of range number.
	ErrTagValueRange = New("tag value out of range")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}
