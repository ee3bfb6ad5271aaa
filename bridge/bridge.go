package bridge

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/wippyai/sqlite-runtime/engine"
	"github.com/wippyai/sqlite-runtime/errors"
	"github.com/wippyai/sqlite-runtime/gate"
	"github.com/wippyai/sqlite-runtime/marshal"
)

// Bridge produces callback wrappers bound to one connection's gate.
// Captured failures accumulate until Drain, which the connection calls
// after each potentially callback-invoking engine call.
type Bridge struct {
	gate *gate.Gate

	mu      sync.Mutex
	pending []*errors.CallbackError
}

func New(g *gate.Gate) *Bridge {
	return &Bridge{gate: g}
}

// Capture records a callback failure for later re-raise. Safe to call
// from any wrapped callback.
func (b *Bridge) Capture(site string, err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	b.pending = append(b.pending, &errors.CallbackError{Cause: err, Site: site})
	b.mu.Unlock()
}

// Drain returns every failure captured since the last call, joined in
// capture order, or nil.
func (b *Bridge) Drain() error {
	b.mu.Lock()
	captured := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(captured) == 0 {
		return nil
	}
	if len(captured) == 1 {
		return captured[0]
	}
	var merr *multierror.Error
	for _, ce := range captured {
		merr = multierror.Append(merr, ce)
	}
	return merr.ErrorOrNil()
}

// guard runs fn with gate re-entry and panic containment. A panic is
// converted to an error and, like any returned error, captured against
// site. The returned error only carries the abort code.
func (b *Bridge) guard(site string, fn func() error) (err error) {
	release := b.gate.Reenter()
	defer release()
	defer func() {
		if p := recover(); p != nil {
			Logger().Error("callback panic",
				zap.String("site", site),
				zap.Any("panic", p))
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil {
			b.Capture(site, err)
			err = engine.CodeForError(err)
		}
	}()
	return fn()
}

// Scalar wraps a scalar function implementation for registration.
func (b *Bridge) Scalar(name string, fn func(args []marshal.Value) (marshal.Value, error)) func([]marshal.Value) (marshal.Value, error) {
	site := "function " + name
	return func(args []marshal.Value) (marshal.Value, error) {
		var out marshal.Value
		err := b.guard(site, func() error {
			var inner error
			out, inner = fn(args)
			return inner
		})
		return out, err
	}
}

// Aggregate wraps an aggregate state constructor. Every state method
// runs under the same guard as a scalar call.
func (b *Bridge) Aggregate(name string, newState func() engine.AggregateState) func() engine.AggregateState {
	site := "aggregate " + name
	return func() engine.AggregateState {
		return &guardedAggregate{b: b, site: site, state: newState()}
	}
}

// Window wraps a window aggregate state constructor.
func (b *Bridge) Window(name string, newState func() engine.WindowState) func() engine.WindowState {
	site := "window " + name
	return func() engine.WindowState {
		state := newState()
		return &guardedWindow{guardedAggregate{b: b, site: site, state: state}, state}
	}
}

type guardedAggregate struct {
	b     *Bridge
	site  string
	state engine.AggregateState
}

func (g *guardedAggregate) Step(args []marshal.Value) error {
	return g.b.guard(g.site+": Step", func() error {
		return g.state.Step(args)
	})
}

func (g *guardedAggregate) Final() (marshal.Value, error) {
	var out marshal.Value
	err := g.b.guard(g.site+": Final", func() error {
		var inner error
		out, inner = g.state.Final()
		return inner
	})
	return out, err
}

type guardedWindow struct {
	guardedAggregate
	win engine.WindowState
}

func (g *guardedWindow) Value() (marshal.Value, error) {
	var out marshal.Value
	err := g.b.guard(g.site+": Value", func() error {
		var inner error
		out, inner = g.win.Value()
		return inner
	})
	return out, err
}

func (g *guardedWindow) Inverse(args []marshal.Value) error {
	return g.b.guard(g.site+": Inverse", func() error {
		return g.win.Inverse(args)
	})
}

// Hooks wraps the per-connection hook funcs. Hook shapes that cannot
// report failure swallow errors after capture; abort-capable hooks
// degrade to their abort value.

func (b *Bridge) Progress(fn engine.ProgressFunc) engine.ProgressFunc {
	if fn == nil {
		return nil
	}
	return func() bool {
		var interrupt bool
		b.guard("progress handler", func() error {
			interrupt = fn()
			return nil
		})
		return interrupt
	}
}

func (b *Bridge) Authorizer(fn engine.AuthorizerFunc) engine.AuthorizerFunc {
	if fn == nil {
		return nil
	}
	return func(action engine.AuthAction, arg1, arg2, database, trigger string) engine.AuthResult {
		res := engine.AuthDeny
		b.guard("authorizer", func() error {
			res = fn(action, arg1, arg2, database, trigger)
			return nil
		})
		return res
	}
}

func (b *Bridge) Trace(fn engine.TraceFunc) engine.TraceFunc {
	if fn == nil {
		return nil
	}
	return func(sql string) {
		b.guard("trace", func() error {
			fn(sql)
			return nil
		})
	}
}

func (b *Bridge) Busy(fn engine.BusyFunc) engine.BusyFunc {
	if fn == nil {
		return nil
	}
	return func(count int) bool {
		var retry bool
		b.guard("busy handler", func() error {
			retry = fn(count)
			return nil
		})
		return retry
	}
}

func (b *Bridge) CommitHook(fn engine.CommitHookFunc) engine.CommitHookFunc {
	if fn == nil {
		return nil
	}
	return func() bool {
		// A panicking commit hook rolls the transaction back.
		abort := true
		b.guard("commit hook", func() error {
			abort = fn()
			return nil
		})
		return abort
	}
}

func (b *Bridge) RollbackHook(fn engine.RollbackHookFunc) engine.RollbackHookFunc {
	if fn == nil {
		return nil
	}
	return func() {
		b.guard("rollback hook", func() error {
			fn()
			return nil
		})
	}
}

func (b *Bridge) UpdateHook(fn engine.UpdateHookFunc) engine.UpdateHookFunc {
	if fn == nil {
		return nil
	}
	return func(op engine.UpdateOp, database, table string, rowid int64) {
		b.guard("update hook", func() error {
			fn(op, database, table, rowid)
			return nil
		})
	}
}
