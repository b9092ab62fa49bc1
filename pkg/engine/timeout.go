package engine

import (
	"context"
	"time"

	"github.com/chazu/meshstat/internal/errors"
	"github.com/chazu/meshstat/pkg/meshdb"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// WithTimeout bounds each evaluation. Zero or less means EvalTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// outcome is what an evaluation goroutine hands back.
type outcome struct {
	store *meshdb.Store
	errs  []EvalError
	err   error
}

func (e *Engine) limit() time.Duration {
	if e.timeout <= 0 {
		return EvalTimeout
	}
	return e.timeout
}

// begin starts a new generation. Only the newest generation's result is
// ever returned.
func (e *Engine) begin() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	return e.generation
}

func (e *Engine) isCurrent(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen == e.generation
}

// Evaluate runs source and returns the store it built.
//
// Return semantics:
//   - On success: returns store + nil errors + nil error
//   - On parse/eval failure: returns nil store + eval errors + nil error
//   - On fatal failure (timeout, cancellation, panic, superseded):
//     returns nil + nil + error
func (e *Engine) Evaluate(source string) (*meshdb.Store, []EvalError, error) {
	return e.EvaluateContext(context.Background(), source)
}

// EvaluateContext is Evaluate bounded by ctx as well as the engine limit.
// A script still running when ctx ends is abandoned and its store dropped.
func (e *Engine) EvaluateContext(ctx context.Context, source string) (*meshdb.Store, []EvalError, error) {
	gen := e.begin()
	ctx, cancel := context.WithTimeout(ctx, e.limit())
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: errors.Newf("panic during evaluation: %v", r)}
			}
		}()
		s, errs, err := e.evaluate(source)
		done <- outcome{store: s, errs: errs, err: err}
	}()

	return e.await(ctx, gen, done)
}

func (e *Engine) await(ctx context.Context, gen uint64, done <-chan outcome) (*meshdb.Store, []EvalError, error) {
	select {
	case o := <-done:
		if !e.isCurrent(gen) {
			return nil, nil, errors.Newf("evaluation %d superseded by a newer request", gen)
		}
		return o.store, o.errs, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil, errors.Wrapf(ctx.Err(), "evaluation timed out after %s", e.limit())
		}
		return nil, nil, errors.Wrap(ctx.Err(), "evaluation cancelled")
	}
}
