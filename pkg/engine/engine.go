// Package engine evaluates mesh description scripts. A script is Lisp
// source run in a sandboxed zygomys environment whose builtins create
// vertices, triangles, surfaces and volumes in a fresh meshdb.Store, or
// build solids and tessellate them into one.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/meshstat/internal/errors"
	"github.com/chazu/meshstat/internal/logger"
	"github.com/chazu/meshstat/pkg/kernel"
	"github.com/chazu/meshstat/pkg/kernel/sdfx"
	"github.com/chazu/meshstat/pkg/meshdb"
	"github.com/chazu/meshstat/pkg/tessellate"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine wraps the zygomys interpreter.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment and a fresh store.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	timeout    time.Duration

	kernel kernel.Kernel
	cells  int
	tess   tessellate.Options
}

// Option configures an Engine.
type Option func(*Engine)

// WithKernel sets the solid kernel used by the solid builtins.
func WithKernel(k kernel.Kernel) Option {
	return func(e *Engine) { e.kernel = k }
}

// WithCells sets the default marching cubes resolution for (solid ...).
func WithCells(n int) Option {
	return func(e *Engine) { e.cells = n }
}

// WithTessellation sets the options used to import solids.
func WithTessellation(o tessellate.Options) Option {
	return func(e *Engine) { e.tess = o }
}

// NewEngine creates a new Engine instance backed by the sdfx kernel.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		kernel: sdfx.New(),
		tess:   tessellate.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*meshdb.Store, []EvalError, error) {
	log := logger.Named("engine")

	store := meshdb.New()
	tags, err := meshdb.LoadGeomTags(store, true)
	if err != nil {
		return nil, nil, errors.Wrap(err, "define geometry tags")
	}

	// Empty source is a valid program that produces an empty store.
	if strings.TrimSpace(source) == "" {
		return store, nil, nil
	}

	src, kwErrs := preprocessSource(source)
	if len(kwErrs) > 0 {
		log.Debugw("keywords rejected", "errors", len(kwErrs))
		return nil, kwErrs, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	b := &builder{
		store:  store,
		tags:   tags,
		kernel: e.kernel,
		cells:  e.cells,
		tess:   e.tess,
	}
	registerBuiltins(env, b)

	if err := env.LoadString(src); err != nil {
		evalErrs := parseZygomysError(err)
		log.Debugw("parse failed", "errors", len(evalErrs))
		return nil, evalErrs, nil
	}

	if _, err := env.Run(); err != nil {
		evalErrs := parseZygomysError(err)
		log.Debugw("evaluation failed", "errors", len(evalErrs))
		return nil, evalErrs, nil
	}

	log.Debugw("script evaluated", "entities", store.Len())
	return store, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
