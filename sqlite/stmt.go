package sqlite

import (
	"github.com/wippyai/sqlite-runtime/engine"
	"github.com/wippyai/sqlite-runtime/errors"
	"github.com/wippyai/sqlite-runtime/marshal"
)

type stmtState uint8

const (
	stateUnstarted stmtState = iota
	stateRow
	stateDone
	stateFailed
)

// Stmt is a prepared statement. It stays valid until Close or until
// the owning connection closes. Bindings persist across Reset;
// ClearBindings drops them explicitly.
type Stmt struct {
	conn *Conn
	h    engine.Stmt
	sql  string

	state  stmtState
	cached bool
	closed bool
}

// SQL returns the statement's original text.
func (s *Stmt) SQL() string {
	return s.sql
}

// ReadOnly reports whether the statement cannot write the database.
func (s *Stmt) ReadOnly() bool {
	s.conn.gate.Enter()
	defer s.conn.gate.Exit()
	return !s.closed && s.conn.api.StmtReadOnly(s.h)
}

// Close releases the statement. Cached statements return to the
// connection's cache for reuse; others are finalized. Closing twice is
// a no-op.
func (s *Stmt) Close() error {
	s.conn.gate.Enter()
	defer s.conn.gate.Exit()
	return s.closeLocked()
}

func (s *Stmt) closeLocked() error {
	if s.closed {
		return nil
	}
	s.closed = true
	delete(s.conn.live, s)
	if s.cached {
		s.conn.reset(s.h)
		s.conn.api.ClearBindings(s.h)
		s.conn.cache.release(s)
		return s.conn.bridge.Drain()
	}
	code := s.conn.finalize(s.h)
	if err := s.conn.bridge.Drain(); err != nil {
		return err
	}
	return errorOrNil(errors.PhaseClose, code)
}

// Step advances execution one row. It returns (true, nil) on a row,
// (false, nil) when the statement has run to completion, and
// (false, err) on failure. After completion or failure the statement
// must be Reset before stepping again.
func (s *Stmt) Step() (bool, error) {
	s.conn.gate.Enter()
	defer s.conn.gate.Exit()
	return s.stepLocked()
}

func (s *Stmt) stepLocked() (bool, error) {
	if s.closed {
		return false, errors.Closed(errors.PhaseStep, "statement")
	}
	switch s.state {
	case stateDone:
		return false, errors.Misuse(errors.PhaseStep, "step after completion without reset")
	case stateFailed:
		return false, errors.Misuse(errors.PhaseStep, "step after failure without reset")
	}

	var code errors.Code
	s.conn.gate.Reentrant(func() error {
		code = s.conn.api.Step(s.h)
		return nil
	})
	// A row or done result still settles the call: a hook failure
	// captured during this step belongs to it, not to whatever engine
	// call the connection makes next.
	err := s.conn.afterEngineCall(errors.PhaseStep, code)
	switch {
	case err != nil:
		s.state = stateFailed
		return false, err
	case code == errors.CodeRow:
		s.state = stateRow
		return true, nil
	case code == errors.CodeDone:
		s.state = stateDone
		return false, nil
	}
	// Translated to nothing; surface the bare code rather than
	// swallowing the failure.
	s.state = stateFailed
	return false, codeError(errors.PhaseStep, code)
}

// Reset rearms the statement for re-execution. Bindings are kept.
func (s *Stmt) Reset() error {
	s.conn.gate.Enter()
	defer s.conn.gate.Exit()
	if s.closed {
		return errors.Closed(errors.PhaseStep, "statement")
	}
	// Reset repeats the error code of the preceding failed step; the
	// caller already saw it, so only the rearm matters here.
	s.conn.reset(s.h)
	s.state = stateUnstarted
	return s.conn.bridge.Drain()
}

// ClearBindings sets every parameter back to null.
func (s *Stmt) ClearBindings() error {
	s.conn.gate.Enter()
	defer s.conn.gate.Exit()
	if s.closed {
		return errors.Closed(errors.PhaseBind, "statement")
	}
	return errorOrNil(errors.PhaseBind, s.conn.api.ClearBindings(s.h))
}

// BindCount returns the number of parameters in the statement.
func (s *Stmt) BindCount() int {
	s.conn.gate.Enter()
	defer s.conn.gate.Exit()
	if s.closed {
		return 0
	}
	return s.conn.api.BindParameterCount(s.h)
}

// Bind sets the i-th parameter, 1-based. Values pass through
// marshalling; see the package documentation for the accepted types.
func (s *Stmt) Bind(i int, arg any) error {
	s.conn.gate.Enter()
	defer s.conn.gate.Exit()
	return s.bindLocked(i, arg)
}

func (s *Stmt) bindLocked(i int, arg any) error {
	if s.closed {
		return errors.Closed(errors.PhaseBind, "statement")
	}
	v, err := marshal.ToEngine(arg)
	if err != nil {
		return err
	}
	return errorOrNil(errors.PhaseBind, s.conn.api.BindValue(s.h, i, v))
}

// BindName sets a named parameter such as ":id" or "@id". The name
// must match the statement text exactly, prefix included.
func (s *Stmt) BindName(name string, arg any) error {
	s.conn.gate.Enter()
	defer s.conn.gate.Exit()
	if s.closed {
		return errors.Closed(errors.PhaseBind, "statement")
	}
	i := s.conn.api.BindParameterIndex(s.h, name)
	if i == 0 {
		return errors.NotFound(errors.PhaseBind, "parameter", name)
	}
	return s.bindLocked(i, arg)
}

func (s *Stmt) bindAllLocked(args []any) error {
	if n := s.conn.api.BindParameterCount(s.h); n != len(args) {
		return errors.Misuse(errors.PhaseBind, "got %d arguments for %d parameters", len(args), n)
	}
	for i, arg := range args {
		if err := s.bindLocked(i+1, arg); err != nil {
			return err
		}
	}
	return nil
}

// ColumnCount returns the number of result columns.
func (s *Stmt) ColumnCount() int {
	s.conn.gate.Enter()
	defer s.conn.gate.Exit()
	if s.closed {
		return 0
	}
	return s.conn.api.ColumnCount(s.h)
}

// ColumnName returns the i-th result column's name, 0-based.
func (s *Stmt) ColumnName(i int) string {
	s.conn.gate.Enter()
	defer s.conn.gate.Exit()
	if s.closed {
		return ""
	}
	return s.conn.api.ColumnName(s.h, i)
}

// ColumnDeclType returns the declared type of the i-th result column,
// empty for expressions.
func (s *Stmt) ColumnDeclType(i int) string {
	s.conn.gate.Enter()
	defer s.conn.gate.Exit()
	if s.closed {
		return ""
	}
	return s.conn.api.ColumnDeclType(s.h, i)
}

// ColumnType returns the storage class of the i-th column of the
// current row.
func (s *Stmt) ColumnType(i int) marshal.Type {
	s.conn.gate.Enter()
	defer s.conn.gate.Exit()
	if s.closed || s.state != stateRow {
		return marshal.TypeNull
	}
	return s.conn.api.ColumnType(s.h, i)
}

// ColumnValue returns the i-th column of the current row. The value's
// text and blob content is copied out, so it stays valid across
// subsequent steps.
func (s *Stmt) ColumnValue(i int) marshal.Value {
	s.conn.gate.Enter()
	defer s.conn.gate.Exit()
	if s.closed || s.state != stateRow {
		return marshal.Null()
	}
	return s.conn.api.ColumnValue(s.h, i)
}

// ColumnInt64 returns the i-th column coerced to an integer.
func (s *Stmt) ColumnInt64(i int) int64 {
	return s.ColumnValue(i).Int64()
}

// ColumnFloat64 returns the i-th column coerced to a float.
func (s *Stmt) ColumnFloat64(i int) float64 {
	return s.ColumnValue(i).Float64()
}

// ColumnText returns the i-th column coerced to text.
func (s *Stmt) ColumnText(i int) string {
	return s.ColumnValue(i).Text()
}

// ColumnBytes returns the i-th column as a blob.
func (s *Stmt) ColumnBytes(i int) []byte {
	return s.ColumnValue(i).Bytes()
}

// ColumnIsNull reports whether the i-th column of the current row is
// null.
func (s *Stmt) ColumnIsNull(i int) bool {
	return s.ColumnType(i) == marshal.TypeNull
}
