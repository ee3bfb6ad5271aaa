package engine

import (
	goerrors "errors"

	"github.com/wippyai/sqlite-runtime/errors"
	"github.com/wippyai/sqlite-runtime/marshal"
)

// FunctionCallbacks bundles the Go closures backing one registered SQL
// function. Exactly one of Scalar, NewAggregate or NewWindow must be
// set.
type FunctionCallbacks struct {
	// Scalar computes a scalar function invocation.
	Scalar func(args []marshal.Value) (marshal.Value, error)

	// NewAggregate creates fresh per-group state for a plain aggregate
	// function.
	NewAggregate func() AggregateState

	// NewWindow creates fresh per-group state for a window function.
	// Constructors are never invoked at registration time; the first
	// call happens when the engine starts a group.
	NewWindow func() WindowState
}

// newState builds per-group state from whichever constructor is set.
func (fn FunctionCallbacks) newState() AggregateState {
	if fn.NewWindow != nil {
		return fn.NewWindow()
	}
	return fn.NewAggregate()
}

// hasAggregate reports whether the callbacks carry any per-group
// constructor.
func (fn FunctionCallbacks) hasAggregate() bool {
	return fn.NewAggregate != nil || fn.NewWindow != nil
}

// AggregateState accumulates one group of an aggregate function.
type AggregateState interface {
	Step(args []marshal.Value) error
	Final() (marshal.Value, error)
}

// WindowState extends AggregateState with the inverse/value pair the
// engine needs to slide a window frame.
type WindowState interface {
	AggregateState
	Value() (marshal.Value, error)
	Inverse(args []marshal.Value) error
}

// VTabConstructor builds a virtual table instance. declare must be
// called with the CREATE TABLE statement describing the table's shape
// before the constructor returns.
type VTabConstructor func(args []string, declare func(schema string) error) (VTab, error)

// ModuleCallbacks bundles the constructors for one virtual table
// module. A nil Create makes the module eponymous-conservative: Connect
// serves both slots.
type ModuleCallbacks struct {
	Create  VTabConstructor
	Connect VTabConstructor
}

// VTab is a connected virtual table. Optional capabilities are
// expressed as extension interfaces (VTabUpdater, VTabRenamer, VTabTx,
// VTabSavepointer); a table that does not implement one simply does not
// support the operation.
type VTab interface {
	// BestIndex negotiates a query plan. Inputs arrive in info;
	// outputs are written into it. The constraint array's order and
	// indices are exactly as the engine proposed them.
	BestIndex(info *IndexInfo) error
	Open() (VTabCursor, error)
	Disconnect() error
	Destroy() error
}

// VTabUpdater supports INSERT, UPDATE and DELETE.
type VTabUpdater interface {
	VTab
	// Update applies a row change per the engine's xUpdate argument
	// convention and returns the rowid of an inserted row.
	Update(args []marshal.Value) (int64, error)
}

// VTabRenamer supports ALTER TABLE ... RENAME.
type VTabRenamer interface {
	VTab
	Rename(name string) error
}

// VTabTx supports two-phase transactions on the table.
type VTabTx interface {
	VTab
	Begin() error
	Sync() error
	Commit() error
	Rollback() error
}

// VTabSavepointer supports savepoints on the table.
type VTabSavepointer interface {
	VTabTx
	Savepoint(n int) error
	Release(n int) error
	RollbackTo(n int) error
}

// VTabCursor iterates one scan of a virtual table.
type VTabCursor interface {
	Filter(idxNum int32, idxStr string, args []marshal.Value) error
	Next() error
	EOF() bool
	Column(i int) (marshal.Value, error)
	RowID() (int64, error)
	Close() error
}

// IndexInfo carries one best-index negotiation. Constraints, OrderBy
// and ColumnsUsed are inputs from the engine; the remaining fields are
// outputs from the table. ConstraintUsage entries correspond to
// Constraints by position.
type IndexInfo struct {
	Constraints []IndexConstraint
	OrderBy     []IndexOrderBy
	ColumnsUsed uint64

	ConstraintUsage []IndexConstraintUsage
	IdxNum          int32
	IdxStr          string
	OrderByConsumed bool
	EstimatedCost   float64
	EstimatedRows   int64
	IdxFlags        IndexScanFlags
}

// IndexConstraint is one WHERE-clause term proposed by the engine.
type IndexConstraint struct {
	Column int
	Op     IndexConstraintOp
	Usable bool
}

// IndexOrderBy is one ORDER BY term.
type IndexOrderBy struct {
	Column int
	Desc   bool
}

// IndexConstraintUsage tells the engine how the table consumes the
// matching constraint. ArgvIndex is the 1-based Filter argument slot,
// zero meaning unused.
type IndexConstraintUsage struct {
	ArgvIndex int
	Omit      bool
}

// VFSCallbacks bundles the host file-system operations backing one
// registered VFS name.
type VFSCallbacks struct {
	Open         func(name string, flags OpenFlags) (VFSFile, OpenFlags, error)
	Delete       func(name string, syncDir bool) error
	Access       func(name string, flags AccessFlags) (bool, error)
	FullPathname func(name string) (string, error)
}

// VFSFile is one open file under a registered VFS.
type VFSFile interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Truncate(size int64) error
	Sync(flags SyncFlags) error
	Size() (int64, error)
	Lock(level LockLevel) error
	Unlock(level LockLevel) error
	CheckReservedLock() (bool, error)
	SectorSize() int
	DeviceCharacteristics() uint32
	Close() error
}

// Hook callback shapes.
type (
	// AuthorizerFunc vets one operation during statement compilation.
	AuthorizerFunc func(action AuthAction, arg1, arg2, database, trigger string) AuthResult
	// TraceFunc observes each statement as it begins running.
	TraceFunc func(sql string)
	// ProgressFunc runs at engine checkpoints; returning true
	// interrupts the current operation.
	ProgressFunc func() bool
	// BusyFunc decides whether a locked operation retries.
	BusyFunc func(count int) bool
	// CommitHookFunc runs before commit; returning true converts the
	// commit into a rollback.
	CommitHookFunc func() bool
	// RollbackHookFunc runs after a rollback completes.
	RollbackHookFunc func()
	// UpdateHookFunc observes row changes on rowid tables.
	UpdateHookFunc func(op UpdateOp, database, table string, rowid int64)
)

// CodeForError maps a callback failure to the abort code reported to
// the engine at that call site. Structured errors carrying an engine
// code keep it; anything else degrades to the generic failure code.
func CodeForError(err error) errors.Code {
	if err == nil {
		return errors.CodeOK
	}
	var structured *errors.Error
	if goerrors.As(err, &structured) && structured.Code != errors.CodeOK {
		return structured.Code
	}
	var code errors.Code
	if goerrors.As(err, &code) {
		return code
	}
	return errors.CodeError
}
