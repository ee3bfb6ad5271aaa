package engine

import (
	"github.com/wippyai/sqlite-runtime/errors"
	"github.com/wippyai/sqlite-runtime/marshal"
)

// Conn is an opaque engine database handle (a guest pointer in the
// wazero implementation). The zero value is invalid.
type Conn uint32

// Stmt is an opaque prepared-statement handle.
type Stmt uint32

// Blob is an opaque incremental-I/O handle.
type Blob uint32

// Backup is an opaque backup-session handle.
type Backup uint32

// Feature names an optional part of the engine surface whose entry
// points may be absent in older builds.
type Feature string

const (
	FeatureBackup     Feature = "backup"
	FeatureBlob       Feature = "blob"
	FeatureVTab       Feature = "vtab"
	FeatureVFS        Feature = "vfs"
	FeatureWindowFunc Feature = "window_functions"
	FeatureTrace      Feature = "trace"
	FeatureProgress   Feature = "progress"
	FeatureAuthorizer Feature = "authorizer"
	FeatureHooks      Feature = "hooks"
)

// API is the engine's entry-point surface. One implementation binds a
// real wasm engine build ([New]); enginetest provides a scriptable
// double. Methods the C API defines as returning a result code return
// errors.Code; CodeOK means success, CodeRow/CodeDone are step flow
// signals.
//
// A Conn and the handles derived from it must be used by one goroutine
// at a time, except Interrupt which is safe to call concurrently.
type API interface {
	// Connection lifecycle.
	OpenV2(path string, flags OpenFlags, vfs string) (Conn, errors.Code)
	Close(db Conn) errors.Code
	ErrCode(db Conn) errors.Code
	ExtendedErrCode(db Conn) errors.Code
	ErrMsg(db Conn) string
	Interrupt(db Conn)
	BusyTimeout(db Conn, ms int) errors.Code
	GetAutocommit(db Conn) bool
	Changes(db Conn) int64
	TotalChanges(db Conn) int64
	LastInsertRowID(db Conn) int64

	// Statement lifecycle. PrepareV2 compiles the first statement of
	// sql and returns the remaining tail. A Stmt of zero with CodeOK
	// means sql held nothing but whitespace or comments.
	PrepareV2(db Conn, sql string) (stmt Stmt, tail string, code errors.Code)
	Step(stmt Stmt) errors.Code
	Reset(stmt Stmt) errors.Code
	Finalize(stmt Stmt) errors.Code
	ClearBindings(stmt Stmt) errors.Code
	StmtBusy(stmt Stmt) bool
	StmtReadOnly(stmt Stmt) bool
	SQL(stmt Stmt) string

	// Parameter binding, 1-based per engine convention.
	BindParameterCount(stmt Stmt) int
	BindParameterIndex(stmt Stmt, name string) int
	BindParameterName(stmt Stmt, i int) string
	BindValue(stmt Stmt, i int, v marshal.Value) errors.Code

	// Result columns, 0-based. ColumnValue copies text and blob
	// content out of engine memory before returning.
	ColumnCount(stmt Stmt) int
	ColumnName(stmt Stmt, i int) string
	ColumnDeclType(stmt Stmt, i int) string
	ColumnType(stmt Stmt, i int) marshal.Type
	ColumnValue(stmt Stmt, i int) marshal.Value

	// Callback registration. Passing zero-valued callback bundles or
	// nil funcs clears the slot.
	CreateFunction(db Conn, name string, nArg int, flags FuncFlags, fn FunctionCallbacks) errors.Code
	CreateModule(db Conn, name string, mod *ModuleCallbacks) errors.Code
	DeclareVTab(db Conn, schema string) errors.Code
	RegisterVFS(name string, vfs *VFSCallbacks, makeDefault bool) errors.Code
	UnregisterVFS(name string) errors.Code
	SetAuthorizer(db Conn, fn AuthorizerFunc) errors.Code
	SetTrace(db Conn, fn TraceFunc) errors.Code
	SetProgressHandler(db Conn, ops int, fn ProgressFunc)
	SetBusyHandler(db Conn, fn BusyFunc) errors.Code
	SetCommitHook(db Conn, fn CommitHookFunc)
	SetRollbackHook(db Conn, fn RollbackHookFunc)
	SetUpdateHook(db Conn, fn UpdateHookFunc)

	// Backup API.
	BackupInit(dst Conn, dstName string, src Conn, srcName string) (Backup, errors.Code)
	BackupStep(b Backup, pages int) errors.Code
	BackupRemaining(b Backup) int
	BackupPageCount(b Backup) int
	BackupFinish(b Backup) errors.Code

	// Incremental blob I/O.
	BlobOpen(db Conn, dbName, table, column string, row int64, write bool) (Blob, errors.Code)
	BlobBytes(b Blob) int
	BlobRead(b Blob, off int, p []byte) errors.Code
	BlobWrite(b Blob, off int, p []byte) errors.Code
	BlobReopen(b Blob, row int64) errors.Code
	BlobClose(b Blob) errors.Code

	// Build inspection.
	Supports(f Feature) bool
	Version() string
}
