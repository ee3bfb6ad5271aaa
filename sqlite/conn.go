package sqlite

import (
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/wippyai/sqlite-runtime/bridge"
	"github.com/wippyai/sqlite-runtime/engine"
	"github.com/wippyai/sqlite-runtime/errors"
	"github.com/wippyai/sqlite-runtime/gate"
	"github.com/wippyai/sqlite-runtime/marshal"
)

// Conn is one open database connection. A Conn and everything derived
// from it (statements, rows, blobs, backups) must be used by one
// goroutine at a time; Interrupt is the only exception. Distinct Conns
// are independent.
type Conn struct {
	api    engine.API
	db     engine.Conn
	gate   *gate.Gate
	bridge *bridge.Bridge
	cache  *stmtCache
	id     string

	// teardown hook for the owning engine instance, nil under test.
	closeInst func() error

	// live tracks statements currently handed out, for teardown.
	live map[*Stmt]struct{}

	closed bool
}

// open binds a fresh connection over api. Exposed through
// Runtime.Open; tests drive it directly with an engine double.
func open(api engine.API, path string, o openOptions, closeInst func() error) (*Conn, error) {
	db, code := api.OpenV2(path, o.flags, o.vfs)
	if code != errors.CodeOK {
		if db != 0 {
			// The engine returns a handle even on failure so the
			// message can be read; it still must be closed.
			err := errors.TranslateAt(errors.PhaseOpen, code, api.ExtendedErrCode(db), api.ErrMsg(db))
			api.Close(db)
			return nil, err
		}
		return nil, codeError(errors.PhaseOpen, code)
	}

	g := gate.New()
	c := &Conn{
		api:       api,
		db:        db,
		gate:      g,
		bridge:    bridge.New(g),
		cache:     newStmtCache(o.cacheSize),
		id:        uuid.NewString(),
		closeInst: closeInst,
		live:      make(map[*Stmt]struct{}),
	}
	if o.busyTimeout > 0 {
		if code := api.BusyTimeout(db, o.busyTimeout); code != errors.CodeOK {
			c.Close()
			return nil, codeError(errors.PhaseOpen, code)
		}
	}
	return c, nil
}

// ID returns the connection's correlation ID as used in logs.
func (c *Conn) ID() string {
	return c.id
}

// Close finalizes every outstanding statement, closes the connection
// and tears down its engine instance. Errors along the way are
// collected; teardown always runs to completion. Closing twice is a
// no-op.
func (c *Conn) Close() error {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return nil
	}
	c.closed = true

	var merr *multierror.Error
	for stmt := range c.live {
		if code := c.finalize(stmt.h); code != errors.CodeOK {
			merr = multierror.Append(merr, codeError(errors.PhaseClose, code))
		}
		stmt.closed = true
	}
	c.live = nil
	c.cache.drop(func(h engine.Stmt) {
		if code := c.finalize(h); code != errors.CodeOK {
			merr = multierror.Append(merr, codeError(errors.PhaseClose, code))
		}
	})

	// Closing the handle disconnects virtual tables, which re-enters
	// host code.
	var code errors.Code
	c.gate.Reentrant(func() error {
		code = c.api.Close(c.db)
		return nil
	})
	if cbErr := c.bridge.Drain(); cbErr != nil {
		merr = multierror.Append(merr, cbErr)
	}
	if code != errors.CodeOK {
		merr = multierror.Append(merr,
			errors.TranslateAt(errors.PhaseClose, code, c.api.ExtendedErrCode(c.db), c.api.ErrMsg(c.db)))
	}
	if c.closeInst != nil {
		if err := c.closeInst(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	err := merr.ErrorOrNil()
	if err != nil {
		Logger().Warn("connection teardown reported errors",
			zap.String("conn", c.id),
			zap.Error(err))
	} else {
		Logger().Debug("connection closed", zap.String("conn", c.id))
	}
	return err
}

// Interrupt requests cooperative cancellation of the operation in
// flight on this connection. Safe to call from any goroutine. The
// interrupted operation reports an interrupt error; the statement it
// was driving stays resettable.
func (c *Conn) Interrupt() {
	c.api.Interrupt(c.db)
}

// BusyTimeout retries locked operations for ms milliseconds.
func (c *Conn) BusyTimeout(ms int) error {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return errors.Closed(errors.PhaseRuntime, "connection")
	}
	return codeError(errors.PhaseRuntime, c.api.BusyTimeout(c.db, ms))
}

// AutoCommit reports whether the connection is outside an explicit
// transaction.
func (c *Conn) AutoCommit() bool {
	c.gate.Enter()
	defer c.gate.Exit()
	return !c.closed && c.api.GetAutocommit(c.db)
}

// Changes returns the number of rows changed by the most recent
// statement.
func (c *Conn) Changes() int64 {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return 0
	}
	return c.api.Changes(c.db)
}

// TotalChanges returns the number of rows changed since open.
func (c *Conn) TotalChanges() int64 {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return 0
	}
	return c.api.TotalChanges(c.db)
}

// LastInsertRowID returns the rowid of the most recent insert.
func (c *Conn) LastInsertRowID() int64 {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return 0
	}
	return c.api.LastInsertRowID(c.db)
}

// Prepare compiles sql, or returns the cached statement for it. sql
// must hold exactly one statement. The returned Stmt is pinned: it is
// exclusively the caller's until Close, and preparing the same text
// meanwhile compiles a fresh instance.
func (c *Conn) Prepare(sql string) (*Stmt, error) {
	c.gate.Enter()
	defer c.gate.Exit()
	return c.prepareLocked(sql)
}

func (c *Conn) prepareLocked(sql string) (*Stmt, error) {
	if c.closed {
		return nil, errors.Closed(errors.PhasePrepare, "connection")
	}

	if stmt := c.cache.get(sql); stmt != nil {
		stmt.closed = false
		stmt.state = stateUnstarted
		c.live[stmt] = struct{}{}
		return stmt, nil
	}

	stmt, tail, err := c.compile(sql)
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		return nil, errors.InvalidInput(errors.PhasePrepare, "empty statement")
	}
	if strings.TrimSpace(tail) != "" {
		c.discard(stmt.h)
		return nil, errors.Misuse(errors.PhasePrepare, "multiple statements in Prepare; use Exec")
	}
	stmt.cached = c.cache.admit(sql, stmt, func(old engine.Stmt) {
		c.discard(old)
	})
	c.live[stmt] = struct{}{}
	return stmt, nil
}

// compile runs one PrepareV2. A nil Stmt with nil error means sql held
// only whitespace or comments.
func (c *Conn) compile(sql string) (*Stmt, string, error) {
	var (
		h    engine.Stmt
		tail string
		code errors.Code
	)
	// Preparation can invoke the authorizer.
	c.gate.Reentrant(func() error {
		h, tail, code = c.api.PrepareV2(c.db, sql)
		return nil
	})
	if err := c.afterEngineCall(errors.PhasePrepare, code); err != nil {
		return nil, "", err
	}
	if h == 0 {
		return nil, tail, nil
	}
	return &Stmt{conn: c, h: h, sql: c.api.SQL(h)}, tail, nil
}

// Exec runs every statement in sql in order. Args, when given, bind to
// the single statement sql must then consist of.
func (c *Conn) Exec(sql string, args ...any) error {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return errors.Closed(errors.PhaseStep, "connection")
	}

	rest := sql
	first := true
	for strings.TrimSpace(rest) != "" {
		stmt, tail, err := c.compile(rest)
		if err != nil {
			return err
		}
		if stmt == nil {
			break
		}
		if len(args) > 0 {
			if !first || strings.TrimSpace(tail) != "" {
				c.discard(stmt.h)
				return errors.Misuse(errors.PhaseBind, "arguments require a single statement")
			}
			if err := stmt.bindAllLocked(args); err != nil {
				c.discard(stmt.h)
				return err
			}
		}
		err = c.stepToDone(stmt)
		code := c.finalize(stmt.h)
		if err == nil {
			if cbErr := c.bridge.Drain(); cbErr != nil {
				err = cbErr
			} else if code != errors.CodeOK {
				err = codeError(errors.PhaseStep, code)
			}
		}
		if err != nil {
			return err
		}
		rest = tail
		first = false
	}
	return nil
}

func (c *Conn) stepToDone(stmt *Stmt) error {
	for {
		var code errors.Code
		c.gate.Reentrant(func() error {
			code = c.api.Step(stmt.h)
			return nil
		})
		// Settle every step, successful ones included: a hook that
		// failed during this step must surface here, not against a
		// later call.
		err := c.afterEngineCall(errors.PhaseStep, code)
		switch {
		case err != nil:
			return err
		case code == errors.CodeDone:
			return nil
		case code == errors.CodeRow:
			continue
		}
		return codeError(errors.PhaseStep, code)
	}
}

// Query prepares sql, binds args positionally and returns a row
// cursor. Closing the Rows releases the statement.
func (c *Conn) Query(sql string, args ...any) (*Rows, error) {
	c.gate.Enter()
	defer c.gate.Exit()
	stmt, err := c.prepareLocked(sql)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		if err := stmt.bindAllLocked(args); err != nil {
			stmt.closeLocked()
			return nil, err
		}
	}
	return &Rows{stmt: stmt}, nil
}

// Begin opens an explicit transaction.
func (c *Conn) Begin() error {
	return c.Exec("BEGIN")
}

// BeginImmediate opens a transaction that takes the write lock up
// front.
func (c *Conn) BeginImmediate() error {
	return c.Exec("BEGIN IMMEDIATE")
}

// Commit commits the open transaction.
func (c *Conn) Commit() error {
	return c.Exec("COMMIT")
}

// Rollback rolls the open transaction back.
func (c *Conn) Rollback() error {
	return c.Exec("ROLLBACK")
}

// Savepoint opens a named savepoint.
func (c *Conn) Savepoint(name string) error {
	return c.Exec("SAVEPOINT " + quoteIdent(name))
}

// Release releases a named savepoint.
func (c *Conn) Release(name string) error {
	return c.Exec("RELEASE " + quoteIdent(name))
}

// RollbackTo rolls back to a named savepoint without releasing it.
func (c *Conn) RollbackTo(name string) error {
	return c.Exec("ROLLBACK TO " + quoteIdent(name))
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// finalize runs Finalize under re-entry. Finalizing a statement can
// close virtual table cursors, which calls back into host code.
func (c *Conn) finalize(h engine.Stmt) errors.Code {
	var code errors.Code
	c.gate.Reentrant(func() error {
		code = c.api.Finalize(h)
		return nil
	})
	return code
}

// reset runs Reset under re-entry, for the same reason as finalize.
func (c *Conn) reset(h engine.Stmt) {
	c.gate.Reentrant(func() error {
		c.api.Reset(h)
		return nil
	})
}

// discard finalizes a statement the caller is abandoning while
// reporting some other error. A callback failure captured during the
// teardown is logged rather than allowed to linger against the next
// engine call.
func (c *Conn) discard(h engine.Stmt) {
	c.finalize(h)
	if cbErr := c.bridge.Drain(); cbErr != nil {
		Logger().Warn("statement discard",
			zap.String("conn", c.id),
			zap.Error(cbErr))
	}
}

// afterEngineCall settles one engine call's outcome: callback failures
// captured during the call take precedence, then the result code is
// translated against the connection's error state. Returns nil on OK,
// row and done.
func (c *Conn) afterEngineCall(phase errors.Phase, code errors.Code) error {
	if cbErr := c.bridge.Drain(); cbErr != nil {
		return cbErr
	}
	switch code {
	case errors.CodeOK, errors.CodeRow, errors.CodeDone:
		return nil
	}
	return errors.TranslateAt(phase, code, c.api.ExtendedErrCode(c.db), c.api.ErrMsg(c.db))
}

// ScalarFunc computes one scalar SQL function invocation. The returned
// value passes through marshalling, so any marshallable Go type works.
type ScalarFunc func(args []marshal.Value) (any, error)

// Aggregate accumulates one group of an aggregate SQL function.
type Aggregate interface {
	Step(args []marshal.Value) error
	Final() (any, error)
}

// WindowAggregate extends Aggregate for window function registration.
type WindowAggregate interface {
	Aggregate
	Value() (any, error)
	Inverse(args []marshal.Value) error
}

// CreateFunction registers a scalar SQL function. nArg of -1 accepts
// any arity. A nil fn removes the function.
func (c *Conn) CreateFunction(name string, nArg int, deterministic bool, fn ScalarFunc) error {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return errors.Closed(errors.PhaseCallback, "connection")
	}

	var cb engine.FunctionCallbacks
	if fn != nil {
		cb.Scalar = c.bridge.Scalar(name, func(args []marshal.Value) (marshal.Value, error) {
			out, err := fn(args)
			if err != nil {
				return marshal.Value{}, err
			}
			return marshal.ToEngine(out)
		})
	}
	code := c.api.CreateFunction(c.db, name, nArg, funcFlags(deterministic), cb)
	if code != errors.CodeOK {
		return errors.Registration("function", name, codeError(errors.PhaseCallback, code))
	}
	return nil
}

// CreateAggregate registers an aggregate SQL function. Use
// CreateWindowAggregate for states that can slide a window frame. A
// nil newState removes the function.
func (c *Conn) CreateAggregate(name string, nArg int, deterministic bool, newState func() Aggregate) error {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return errors.Closed(errors.PhaseCallback, "connection")
	}

	var cb engine.FunctionCallbacks
	if newState != nil {
		cb.NewAggregate = c.bridge.Aggregate(name, func() engine.AggregateState {
			return &aggregateAdapter{newState()}
		})
	}
	code := c.api.CreateFunction(c.db, name, nArg, funcFlags(deterministic), cb)
	if code != errors.CodeOK {
		return errors.Registration("aggregate", name, codeError(errors.PhaseCallback, code))
	}
	return nil
}

// CreateWindowAggregate registers a window SQL function. The
// constructor runs per group at execution time, never at registration.
// A nil newState removes the function.
func (c *Conn) CreateWindowAggregate(name string, nArg int, deterministic bool, newState func() WindowAggregate) error {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return errors.Closed(errors.PhaseCallback, "connection")
	}

	var cb engine.FunctionCallbacks
	if newState != nil {
		if !c.api.Supports(engine.FeatureWindowFunc) {
			return errors.Unsupported("window function registration")
		}
		cb.NewWindow = c.bridge.Window(name, func() engine.WindowState {
			state := newState()
			return &windowAdapter{aggregateAdapter{state}, state}
		})
	}
	code := c.api.CreateFunction(c.db, name, nArg, funcFlags(deterministic), cb)
	if code != errors.CodeOK {
		return errors.Registration("window aggregate", name, codeError(errors.PhaseCallback, code))
	}
	return nil
}

func funcFlags(deterministic bool) engine.FuncFlags {
	if deterministic {
		return engine.FuncDeterministic
	}
	return 0
}

type aggregateAdapter struct {
	state Aggregate
}

func (a *aggregateAdapter) Step(args []marshal.Value) error {
	return a.state.Step(args)
}

func (a *aggregateAdapter) Final() (marshal.Value, error) {
	out, err := a.state.Final()
	if err != nil {
		return marshal.Value{}, err
	}
	return marshal.ToEngine(out)
}

type windowAdapter struct {
	aggregateAdapter
	win WindowAggregate
}

func (w *windowAdapter) Value() (marshal.Value, error) {
	out, err := w.win.Value()
	if err != nil {
		return marshal.Value{}, err
	}
	return marshal.ToEngine(out)
}

func (w *windowAdapter) Inverse(args []marshal.Value) error {
	return w.win.Inverse(args)
}

// CreateModule registers a virtual table module. The callbacks' shapes
// are the engine package's vocabulary types. A nil Connect removes the
// module.
func (c *Conn) CreateModule(name string, mod engine.ModuleCallbacks) error {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return errors.Closed(errors.PhaseCallback, "connection")
	}
	if !c.api.Supports(engine.FeatureVTab) {
		return errors.Unsupported("virtual table registration")
	}

	if mod.Connect == nil {
		code := c.api.CreateModule(c.db, name, nil)
		return errorOrNil(errors.PhaseCallback, code)
	}
	wrapped := c.bridge.Module(name, mod)
	code := c.api.CreateModule(c.db, name, &wrapped)
	if code != errors.CodeOK {
		return errors.Registration("module", name, codeError(errors.PhaseCallback, code))
	}
	return nil
}

// RegisterVFS registers a host file system under name for subsequent
// opens on this connection's instance.
func (c *Conn) RegisterVFS(name string, vfs engine.VFSCallbacks, makeDefault bool) error {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return errors.Closed(errors.PhaseCallback, "connection")
	}
	if !c.api.Supports(engine.FeatureVFS) {
		return errors.Unsupported("vfs registration")
	}

	wrapped := c.bridge.VFS(name, vfs)
	code := c.api.RegisterVFS(name, &wrapped, makeDefault)
	if code != errors.CodeOK {
		return errors.Registration("vfs", name, codeError(errors.PhaseCallback, code))
	}
	return nil
}

// UnregisterVFS removes a previously registered file system.
func (c *Conn) UnregisterVFS(name string) error {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return errors.Closed(errors.PhaseCallback, "connection")
	}
	return errorOrNil(errors.PhaseCallback, c.api.UnregisterVFS(name))
}

// SetAuthorizer installs fn to vet operations during preparation. A
// panicking authorizer denies.
func (c *Conn) SetAuthorizer(fn engine.AuthorizerFunc) error {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return errors.Closed(errors.PhaseCallback, "connection")
	}
	return errorOrNil(errors.PhaseCallback, c.api.SetAuthorizer(c.db, c.bridge.Authorizer(fn)))
}

// SetTrace installs fn to observe statements as they start running.
func (c *Conn) SetTrace(fn engine.TraceFunc) error {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return errors.Closed(errors.PhaseCallback, "connection")
	}
	return errorOrNil(errors.PhaseCallback, c.api.SetTrace(c.db, c.bridge.Trace(fn)))
}

// SetProgressHandler installs fn at the given opcode interval.
// Returning true from fn interrupts the running operation.
func (c *Conn) SetProgressHandler(ops int, fn engine.ProgressFunc) error {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return errors.Closed(errors.PhaseCallback, "connection")
	}
	c.api.SetProgressHandler(c.db, ops, c.bridge.Progress(fn))
	return nil
}

// SetBusyHandler installs fn to decide whether locked operations
// retry. Overrides any busy timeout.
func (c *Conn) SetBusyHandler(fn engine.BusyFunc) error {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return errors.Closed(errors.PhaseCallback, "connection")
	}
	return errorOrNil(errors.PhaseCallback, c.api.SetBusyHandler(c.db, c.bridge.Busy(fn)))
}

// SetCommitHook installs fn to run before each commit; returning true
// converts the commit into a rollback.
func (c *Conn) SetCommitHook(fn engine.CommitHookFunc) error {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return errors.Closed(errors.PhaseCallback, "connection")
	}
	c.api.SetCommitHook(c.db, c.bridge.CommitHook(fn))
	return nil
}

// SetRollbackHook installs fn to run after each rollback.
func (c *Conn) SetRollbackHook(fn engine.RollbackHookFunc) error {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return errors.Closed(errors.PhaseCallback, "connection")
	}
	c.api.SetRollbackHook(c.db, c.bridge.RollbackHook(fn))
	return nil
}

// SetUpdateHook installs fn to observe row changes on rowid tables.
func (c *Conn) SetUpdateHook(fn engine.UpdateHookFunc) error {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return errors.Closed(errors.PhaseCallback, "connection")
	}
	c.api.SetUpdateHook(c.db, c.bridge.UpdateHook(fn))
	return nil
}

func errorOrNil(phase errors.Phase, code errors.Code) error {
	if code == errors.CodeOK {
		return nil
	}
	return codeError(phase, code)
}
