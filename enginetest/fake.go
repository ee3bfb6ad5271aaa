package enginetest

import (
	"strings"
	"sync"

	"github.com/wippyai/sqlite-runtime/engine"
	"github.com/wippyai/sqlite-runtime/errors"
	"github.com/wippyai/sqlite-runtime/marshal"
)

// Script defines canned behavior for one SQL text. The zero value is a
// statement that steps straight to done, like DML touching no rows.
type Script struct {
	// Columns names the result columns; its length is the column count.
	Columns []string

	// DeclTypes optionally gives declared types per column.
	DeclTypes []string

	// Rows holds the result rows returned by successive steps.
	Rows [][]marshal.Value

	// StepCodes, when set, overrides the code of each Step call in
	// order. After the list is exhausted Step returns done.
	StepCodes []errors.Code

	// BindNames gives 1-based parameter names; empty entries are
	// positional. NumParams defaults to len(BindNames).
	BindNames []string

	// NumParams is the parameter count when BindNames is not set.
	NumParams int

	// PrepareCode, when not OK, fails preparation with this code.
	PrepareCode errors.Code

	// ReadOnly marks the statement as writing nothing.
	ReadOnly bool

	// Changes and LastInsertID are reported on the connection after
	// this statement steps to done.
	Changes      int64
	LastInsertID int64
}

// ConnState is the observable per-connection state of a Fake,
// including every hook a test registered through the API.
type ConnState struct {
	Interrupted bool
	BusyTimeout int
	Autocommit  bool

	Progress   engine.ProgressFunc
	Authorizer engine.AuthorizerFunc
	Trace      engine.TraceFunc
	Busy       engine.BusyFunc
	Commit     engine.CommitHookFunc
	Rollback   engine.RollbackHookFunc
	Update     engine.UpdateHookFunc

	changes      int64
	totalChanges int64
	lastInsertID int64
}

type stmtState struct {
	script   *Script
	sql      string
	conn     engine.Conn
	row      int
	steps    int
	busy     bool
	bindings map[int]marshal.Value
}

type blobState struct {
	data  []byte
	write bool
	row   int64
}

type backupState struct {
	remaining int
	total     int
}

// Fake implements engine.API with scripted statements. The zero value
// is not usable; call New.
type Fake struct {
	mu sync.Mutex

	// Scripts maps SQL text (first statement, whitespace-trimmed, no
	// trailing semicolon) to its canned behavior.
	Scripts map[string]*Script

	// Calls counts invocations by method name.
	Calls map[string]int

	// OpenCode fails OpenV2 when not OK.
	OpenCode errors.Code

	// CloseCode fails Close when not OK, leaving the connection live.
	CloseCode errors.Code

	// ErrMessage is returned by ErrMsg alongside LastError.
	ErrMessage string

	// LastError and LastExtended back ErrCode and ExtendedErrCode.
	LastError    errors.Code
	LastExtended errors.Code

	// Disabled features report false from Supports.
	Disabled map[engine.Feature]bool

	// LibVersion backs Version.
	LibVersion string

	// BlobSeed is the initial content of every opened blob.
	BlobSeed []byte

	// BackupPages is the page total of every backup session.
	BackupPages int

	// Functions, Modules and VFSes record registrations by name.
	Functions map[string]engine.FunctionCallbacks
	Modules   map[string]*engine.ModuleCallbacks
	VFSes     map[string]*engine.VFSCallbacks

	// Schemas records every DeclareVTab call in order.
	Schemas []string

	conns    map[engine.Conn]*ConnState
	stmts    map[engine.Stmt]*stmtState
	blobs    map[engine.Blob]*blobState
	backups  map[engine.Backup]*backupState
	nextConn engine.Conn
	nextStmt engine.Stmt
	nextBlob engine.Blob
	nextBkp  engine.Backup
}

var _ engine.API = (*Fake)(nil)

// New creates an empty fake. Add scripts before preparing statements.
func New() *Fake {
	return &Fake{
		Scripts:    make(map[string]*Script),
		Calls:      make(map[string]int),
		Disabled:   make(map[engine.Feature]bool),
		Functions:  make(map[string]engine.FunctionCallbacks),
		Modules:    make(map[string]*engine.ModuleCallbacks),
		VFSes:      make(map[string]*engine.VFSCallbacks),
		conns:      make(map[engine.Conn]*ConnState),
		stmts:      make(map[engine.Stmt]*stmtState),
		blobs:      make(map[engine.Blob]*blobState),
		backups:    make(map[engine.Backup]*backupState),
		LibVersion: "3.46.0",
	}
}

// Script registers canned behavior for one SQL text.
func (f *Fake) Script(sql string, s *Script) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Scripts[normalizeSQL(sql)] = s
}

// Conn returns the observable state of an open connection, or nil.
func (f *Fake) Conn(db engine.Conn) *ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[db]
}

// CallCount returns how many times the named method ran.
func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[method]
}

func (f *Fake) count(method string) {
	f.Calls[method]++
}

func normalizeSQL(sql string) string {
	return strings.TrimSuffix(strings.TrimSpace(sql), ";")
}

// splitSQL cuts sql at the first semicolon, returning the head
// statement text and the uncompiled tail.
func splitSQL(sql string) (string, string) {
	if i := strings.IndexByte(sql, ';'); i >= 0 {
		return sql[:i], sql[i+1:]
	}
	return sql, ""
}

func (f *Fake) OpenV2(path string, flags engine.OpenFlags, vfs string) (engine.Conn, errors.Code) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("OpenV2")
	if f.OpenCode != errors.CodeOK {
		return 0, f.OpenCode
	}
	f.nextConn++
	f.conns[f.nextConn] = &ConnState{Autocommit: true}
	return f.nextConn, errors.CodeOK
}

func (f *Fake) Close(db engine.Conn) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Close")
	if f.CloseCode != errors.CodeOK {
		return f.CloseCode
	}
	if _, ok := f.conns[db]; !ok {
		return errors.CodeMisuse
	}
	delete(f.conns, db)
	return errors.CodeOK
}

func (f *Fake) ErrCode(db engine.Conn) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LastError
}

func (f *Fake) ExtendedErrCode(db engine.Conn) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LastExtended != errors.CodeOK {
		return f.LastExtended
	}
	return f.LastError
}

func (f *Fake) ErrMsg(db engine.Conn) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ErrMessage
}

func (f *Fake) Interrupt(db engine.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Interrupt")
	if cs, ok := f.conns[db]; ok {
		cs.Interrupted = true
	}
}

func (f *Fake) BusyTimeout(db engine.Conn, ms int) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("BusyTimeout")
	cs, ok := f.conns[db]
	if !ok {
		return errors.CodeMisuse
	}
	cs.BusyTimeout = ms
	return errors.CodeOK
}

func (f *Fake) GetAutocommit(db engine.Conn) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	cs, ok := f.conns[db]
	return ok && cs.Autocommit
}

// SetAutocommit adjusts what GetAutocommit reports, for transaction
// state tests.
func (f *Fake) SetAutocommit(db engine.Conn, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cs, ok := f.conns[db]; ok {
		cs.Autocommit = v
	}
}

func (f *Fake) Changes(db engine.Conn) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cs, ok := f.conns[db]; ok {
		return cs.changes
	}
	return 0
}

func (f *Fake) TotalChanges(db engine.Conn) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cs, ok := f.conns[db]; ok {
		return cs.totalChanges
	}
	return 0
}

func (f *Fake) LastInsertRowID(db engine.Conn) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cs, ok := f.conns[db]; ok {
		return cs.lastInsertID
	}
	return 0
}

func (f *Fake) PrepareV2(db engine.Conn, sql string) (engine.Stmt, string, errors.Code) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("PrepareV2")
	if _, ok := f.conns[db]; !ok {
		return 0, "", errors.CodeMisuse
	}

	head, tail := splitSQL(sql)
	text := normalizeSQL(head)
	if text == "" {
		return 0, tail, errors.CodeOK
	}

	script, ok := f.Scripts[text]
	if !ok {
		script = &Script{}
	}
	if script.PrepareCode != errors.CodeOK {
		f.LastError = script.PrepareCode
		return 0, "", script.PrepareCode
	}

	f.nextStmt++
	f.stmts[f.nextStmt] = &stmtState{
		script:   script,
		sql:      text,
		conn:     db,
		row:      -1,
		bindings: make(map[int]marshal.Value),
	}
	return f.nextStmt, tail, errors.CodeOK
}

func (f *Fake) Step(stmt engine.Stmt) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Step")
	st, ok := f.stmts[stmt]
	if !ok {
		return errors.CodeMisuse
	}
	cs := f.conns[st.conn]
	if cs != nil && cs.Interrupted {
		cs.Interrupted = false
		f.LastError = errors.CodeInterrupt
		return errors.CodeInterrupt
	}

	st.steps++
	if n := st.steps - 1; n < len(st.script.StepCodes) {
		code := st.script.StepCodes[n]
		if code == errors.CodeRow {
			st.row++
			st.busy = true
		}
		if code != errors.CodeOK && code != errors.CodeRow && code != errors.CodeDone {
			f.LastError = code
		}
		return code
	}

	if st.row+1 < len(st.script.Rows) {
		st.row++
		st.busy = true
		return errors.CodeRow
	}
	st.busy = false
	if cs != nil {
		cs.changes = st.script.Changes
		cs.totalChanges += st.script.Changes
		if st.script.LastInsertID != 0 {
			cs.lastInsertID = st.script.LastInsertID
		}
	}
	return errors.CodeDone
}

func (f *Fake) Reset(stmt engine.Stmt) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Reset")
	st, ok := f.stmts[stmt]
	if !ok {
		return errors.CodeMisuse
	}
	// The StepCodes cursor stays put: each entry overrides exactly one
	// Step call for the statement's lifetime, reset or not.
	st.row = -1
	st.busy = false
	return errors.CodeOK
}

func (f *Fake) Finalize(stmt engine.Stmt) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Finalize")
	if _, ok := f.stmts[stmt]; !ok {
		return errors.CodeMisuse
	}
	delete(f.stmts, stmt)
	return errors.CodeOK
}

func (f *Fake) ClearBindings(stmt engine.Stmt) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ClearBindings")
	st, ok := f.stmts[stmt]
	if !ok {
		return errors.CodeMisuse
	}
	st.bindings = make(map[int]marshal.Value)
	return errors.CodeOK
}

func (f *Fake) StmtBusy(stmt engine.Stmt) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stmts[stmt]
	return ok && st.busy
}

func (f *Fake) StmtReadOnly(stmt engine.Stmt) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stmts[stmt]
	return ok && st.script.ReadOnly
}

func (f *Fake) SQL(stmt engine.Stmt) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.stmts[stmt]; ok {
		return st.sql
	}
	return ""
}

func (f *Fake) BindParameterCount(stmt engine.Stmt) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stmts[stmt]
	if !ok {
		return 0
	}
	if len(st.script.BindNames) > 0 {
		return len(st.script.BindNames)
	}
	return st.script.NumParams
}

func (f *Fake) BindParameterIndex(stmt engine.Stmt, name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stmts[stmt]
	if !ok {
		return 0
	}
	for i, n := range st.script.BindNames {
		if n == name {
			return i + 1
		}
	}
	return 0
}

func (f *Fake) BindParameterName(stmt engine.Stmt, i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stmts[stmt]
	if !ok || i < 1 || i > len(st.script.BindNames) {
		return ""
	}
	return st.script.BindNames[i-1]
}

func (f *Fake) BindValue(stmt engine.Stmt, i int, v marshal.Value) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("BindValue")
	st, ok := f.stmts[stmt]
	if !ok {
		return errors.CodeMisuse
	}
	n := len(st.script.BindNames)
	if n == 0 {
		n = st.script.NumParams
	}
	if i < 1 || i > n {
		return errors.CodeRange
	}
	st.bindings[i] = v
	return errors.CodeOK
}

// Binding returns the value bound at 1-based index i, for assertions.
func (f *Fake) Binding(stmt engine.Stmt, i int) (marshal.Value, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stmts[stmt]
	if !ok {
		return marshal.Value{}, false
	}
	v, ok := st.bindings[i]
	return v, ok
}

func (f *Fake) ColumnCount(stmt engine.Stmt) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.stmts[stmt]; ok {
		return len(st.script.Columns)
	}
	return 0
}

func (f *Fake) ColumnName(stmt engine.Stmt, i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stmts[stmt]
	if !ok || i < 0 || i >= len(st.script.Columns) {
		return ""
	}
	return st.script.Columns[i]
}

func (f *Fake) ColumnDeclType(stmt engine.Stmt, i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stmts[stmt]
	if !ok || i < 0 || i >= len(st.script.DeclTypes) {
		return ""
	}
	return st.script.DeclTypes[i]
}

func (f *Fake) ColumnType(stmt engine.Stmt, i int) marshal.Type {
	return f.ColumnValue(stmt, i).Type()
}

func (f *Fake) ColumnValue(stmt engine.Stmt, i int) marshal.Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stmts[stmt]
	if !ok || st.row < 0 || st.row >= len(st.script.Rows) {
		return marshal.Null()
	}
	row := st.script.Rows[st.row]
	if i < 0 || i >= len(row) {
		return marshal.Null()
	}
	return row[i]
}

func (f *Fake) CreateFunction(db engine.Conn, name string, nArg int, flags engine.FuncFlags, fn engine.FunctionCallbacks) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("CreateFunction")
	if _, ok := f.conns[db]; !ok {
		return errors.CodeMisuse
	}
	if fn.Scalar == nil && fn.NewAggregate == nil && fn.NewWindow == nil {
		delete(f.Functions, name)
		return errors.CodeOK
	}
	f.Functions[name] = fn
	return errors.CodeOK
}

func (f *Fake) CreateModule(db engine.Conn, name string, mod *engine.ModuleCallbacks) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("CreateModule")
	if _, ok := f.conns[db]; !ok {
		return errors.CodeMisuse
	}
	if mod == nil {
		delete(f.Modules, name)
		return errors.CodeOK
	}
	f.Modules[name] = mod
	return errors.CodeOK
}

func (f *Fake) DeclareVTab(db engine.Conn, schema string) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("DeclareVTab")
	f.Schemas = append(f.Schemas, schema)
	return errors.CodeOK
}

func (f *Fake) RegisterVFS(name string, vfs *engine.VFSCallbacks, makeDefault bool) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("RegisterVFS")
	if _, ok := f.VFSes[name]; ok {
		return errors.CodeMisuse
	}
	f.VFSes[name] = vfs
	return errors.CodeOK
}

func (f *Fake) UnregisterVFS(name string) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("UnregisterVFS")
	if _, ok := f.VFSes[name]; !ok {
		return errors.CodeNotFound
	}
	delete(f.VFSes, name)
	return errors.CodeOK
}

func (f *Fake) SetAuthorizer(db engine.Conn, fn engine.AuthorizerFunc) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SetAuthorizer")
	cs, ok := f.conns[db]
	if !ok {
		return errors.CodeMisuse
	}
	cs.Authorizer = fn
	return errors.CodeOK
}

func (f *Fake) SetTrace(db engine.Conn, fn engine.TraceFunc) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SetTrace")
	cs, ok := f.conns[db]
	if !ok {
		return errors.CodeMisuse
	}
	cs.Trace = fn
	return errors.CodeOK
}

func (f *Fake) SetProgressHandler(db engine.Conn, ops int, fn engine.ProgressFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SetProgressHandler")
	if cs, ok := f.conns[db]; ok {
		cs.Progress = fn
	}
}

func (f *Fake) SetBusyHandler(db engine.Conn, fn engine.BusyFunc) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SetBusyHandler")
	cs, ok := f.conns[db]
	if !ok {
		return errors.CodeMisuse
	}
	cs.Busy = fn
	return errors.CodeOK
}

func (f *Fake) SetCommitHook(db engine.Conn, fn engine.CommitHookFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SetCommitHook")
	if cs, ok := f.conns[db]; ok {
		cs.Commit = fn
	}
}

func (f *Fake) SetRollbackHook(db engine.Conn, fn engine.RollbackHookFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SetRollbackHook")
	if cs, ok := f.conns[db]; ok {
		cs.Rollback = fn
	}
}

func (f *Fake) SetUpdateHook(db engine.Conn, fn engine.UpdateHookFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SetUpdateHook")
	if cs, ok := f.conns[db]; ok {
		cs.Update = fn
	}
}

func (f *Fake) BackupInit(dst engine.Conn, dstName string, src engine.Conn, srcName string) (engine.Backup, errors.Code) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("BackupInit")
	if _, ok := f.conns[dst]; !ok {
		return 0, errors.CodeMisuse
	}
	if _, ok := f.conns[src]; !ok {
		return 0, errors.CodeMisuse
	}
	pages := f.BackupPages
	if pages <= 0 {
		pages = 1
	}
	f.nextBkp++
	f.backups[f.nextBkp] = &backupState{remaining: pages, total: pages}
	return f.nextBkp, errors.CodeOK
}

func (f *Fake) BackupStep(b engine.Backup, pages int) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("BackupStep")
	bk, ok := f.backups[b]
	if !ok {
		return errors.CodeMisuse
	}
	if pages < 0 {
		bk.remaining = 0
	} else {
		bk.remaining -= pages
		if bk.remaining < 0 {
			bk.remaining = 0
		}
	}
	if bk.remaining == 0 {
		return errors.CodeDone
	}
	return errors.CodeOK
}

func (f *Fake) BackupRemaining(b engine.Backup) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bk, ok := f.backups[b]; ok {
		return bk.remaining
	}
	return 0
}

func (f *Fake) BackupPageCount(b engine.Backup) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bk, ok := f.backups[b]; ok {
		return bk.total
	}
	return 0
}

func (f *Fake) BackupFinish(b engine.Backup) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("BackupFinish")
	if _, ok := f.backups[b]; !ok {
		return errors.CodeMisuse
	}
	delete(f.backups, b)
	return errors.CodeOK
}

func (f *Fake) BlobOpen(db engine.Conn, dbName, table, column string, row int64, write bool) (engine.Blob, errors.Code) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("BlobOpen")
	if _, ok := f.conns[db]; !ok {
		return 0, errors.CodeMisuse
	}
	data := make([]byte, len(f.BlobSeed))
	copy(data, f.BlobSeed)
	f.nextBlob++
	f.blobs[f.nextBlob] = &blobState{data: data, write: write, row: row}
	return f.nextBlob, errors.CodeOK
}

func (f *Fake) BlobBytes(b engine.Blob) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bl, ok := f.blobs[b]; ok {
		return len(bl.data)
	}
	return 0
}

func (f *Fake) BlobRead(b engine.Blob, off int, p []byte) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("BlobRead")
	bl, ok := f.blobs[b]
	if !ok {
		return errors.CodeMisuse
	}
	if off < 0 || off+len(p) > len(bl.data) {
		return errors.CodeError
	}
	copy(p, bl.data[off:])
	return errors.CodeOK
}

func (f *Fake) BlobWrite(b engine.Blob, off int, p []byte) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("BlobWrite")
	bl, ok := f.blobs[b]
	if !ok {
		return errors.CodeMisuse
	}
	if !bl.write {
		return errors.CodeReadOnly
	}
	if off < 0 || off+len(p) > len(bl.data) {
		return errors.CodeError
	}
	copy(bl.data[off:], p)
	return errors.CodeOK
}

func (f *Fake) BlobReopen(b engine.Blob, row int64) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("BlobReopen")
	bl, ok := f.blobs[b]
	if !ok {
		return errors.CodeMisuse
	}
	bl.row = row
	data := make([]byte, len(f.BlobSeed))
	copy(data, f.BlobSeed)
	bl.data = data
	return errors.CodeOK
}

func (f *Fake) BlobClose(b engine.Blob) errors.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("BlobClose")
	if _, ok := f.blobs[b]; !ok {
		return errors.CodeMisuse
	}
	delete(f.blobs, b)
	return errors.CodeOK
}

func (f *Fake) Supports(feature engine.Feature) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.Disabled[feature]
}

func (f *Fake) Version() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LibVersion
}
