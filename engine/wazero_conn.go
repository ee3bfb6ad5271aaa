package engine

import (
	"math"

	"github.com/wippyai/sqlite-runtime/errors"
	"github.com/wippyai/sqlite-runtime/marshal"
)

// transient is the engine's SQLITE_TRANSIENT destructor sentinel: the
// engine copies the buffer during the bind call, so the arena may free
// it immediately after.
const transient = uint64(0xffffffff)

// progressOpcodeInterval is how often the engine polls the progress
// trampoline installed for cooperative interrupts.
const progressOpcodeInterval = 1000

func (i *Instance) OpenV2(path string, flags OpenFlags, vfs string) (Conn, errors.Code) {
	a := i.arena()
	defer a.release()

	pathPtr := a.cstring(path)
	ppDb := a.out4()
	if pathPtr == 0 || ppDb == 0 {
		return 0, errors.CodeNoMem
	}
	var vfsPtr uint32
	if vfs != "" {
		if vfsPtr = a.cstring(vfs); vfsPtr == 0 {
			return 0, errors.CodeNoMem
		}
	}

	rc := i.code("sqlite3_open_v2", uint64(pathPtr), uint64(ppDb), uint64(flags), uint64(vfsPtr))
	dbv, _ := i.mod.Memory().ReadUint32Le(ppDb)
	db := Conn(dbv)

	if rc == errors.CodeOK && db != 0 {
		cs := i.stateFor(db)
		// Cooperative interrupt delivery rides on the progress
		// trampoline; without the shim, Interrupt degrades to a no-op.
		if i.has("sqlite3_progress_handler_go") {
			i.call("sqlite3_progress_handler_go",
				uint64(db), uint64(progressOpcodeInterval), uint64(cs.handle))
		}
	}
	return db, rc
}

func (i *Instance) Close(db Conn) errors.Code {
	if db == 0 {
		return errors.CodeOK
	}
	rc := i.code("sqlite3_close", uint64(db))
	if rc == errors.CodeOK {
		i.dropState(db)
	}
	return rc
}

func (i *Instance) ErrCode(db Conn) errors.Code {
	return i.code("sqlite3_errcode", uint64(db))
}

func (i *Instance) ExtendedErrCode(db Conn) errors.Code {
	return i.code("sqlite3_extended_errcode", uint64(db))
}

func (i *Instance) ErrMsg(db Conn) string {
	ptr, ok := i.call("sqlite3_errmsg", uint64(db))
	if !ok {
		return ""
	}
	return readCString(i.mod.Memory(), uint32(ptr))
}

// Interrupt requests cooperative cancellation. It only raises a flag;
// the engine observes it at its next progress checkpoint, so delivery
// is prompt but not preemptive. Safe to call from any goroutine.
func (i *Instance) Interrupt(db Conn) {
	i.stateFor(db).interrupted.Store(true)
}

func (i *Instance) BusyTimeout(db Conn, ms int) errors.Code {
	return i.code("sqlite3_busy_timeout", uint64(db), uint64(uint32(int32(ms))))
}

func (i *Instance) GetAutocommit(db Conn) bool {
	return i.i32("sqlite3_get_autocommit", uint64(db)) != 0
}

func (i *Instance) Changes(db Conn) int64 {
	if i.has("sqlite3_changes64") {
		return i.i64("sqlite3_changes64", uint64(db))
	}
	return int64(i.i32("sqlite3_changes", uint64(db)))
}

func (i *Instance) TotalChanges(db Conn) int64 {
	if i.has("sqlite3_total_changes64") {
		return i.i64("sqlite3_total_changes64", uint64(db))
	}
	return int64(i.i32("sqlite3_total_changes", uint64(db)))
}

func (i *Instance) LastInsertRowID(db Conn) int64 {
	return i.i64("sqlite3_last_insert_rowid", uint64(db))
}

func (i *Instance) PrepareV2(db Conn, sql string) (Stmt, string, errors.Code) {
	a := i.arena()
	defer a.release()

	sqlPtr := a.cstring(sql)
	ppStmt := a.out4()
	pzTail := a.out4()
	if sqlPtr == 0 || ppStmt == 0 || pzTail == 0 {
		return 0, "", errors.CodeNoMem
	}

	rc := i.code("sqlite3_prepare_v2",
		uint64(db), uint64(sqlPtr), uint64(uint32(len(sql)+1)), uint64(ppStmt), uint64(pzTail))

	mem := i.mod.Memory()
	stmtv, _ := mem.ReadUint32Le(ppStmt)
	tailPtr, _ := mem.ReadUint32Le(pzTail)

	// The tail pointer lands inside the buffer we copied in, so the
	// remainder is sliced from the original Go string.
	var tail string
	if off := int(tailPtr) - int(sqlPtr); off >= 0 && off <= len(sql) {
		tail = sql[off:]
	}
	return Stmt(stmtv), tail, rc
}

func (i *Instance) Step(stmt Stmt) errors.Code {
	rc := i.code("sqlite3_step", uint64(stmt))
	if rc.Primary() == errors.CodeInterrupt {
		// The cooperative flag served its purpose; clear it so the
		// statement is resettable and a fresh step proceeds.
		if db := Conn(i.i32("sqlite3_db_handle", uint64(stmt))); db != 0 {
			i.stateFor(db).interrupted.Store(false)
		}
	}
	return rc
}

func (i *Instance) Reset(stmt Stmt) errors.Code {
	return i.code("sqlite3_reset", uint64(stmt))
}

func (i *Instance) Finalize(stmt Stmt) errors.Code {
	return i.code("sqlite3_finalize", uint64(stmt))
}

func (i *Instance) ClearBindings(stmt Stmt) errors.Code {
	return i.code("sqlite3_clear_bindings", uint64(stmt))
}

func (i *Instance) StmtBusy(stmt Stmt) bool {
	return i.i32("sqlite3_stmt_busy", uint64(stmt)) != 0
}

func (i *Instance) StmtReadOnly(stmt Stmt) bool {
	return i.i32("sqlite3_stmt_readonly", uint64(stmt)) != 0
}

func (i *Instance) SQL(stmt Stmt) string {
	ptr, ok := i.call("sqlite3_sql", uint64(stmt))
	if !ok {
		return ""
	}
	return readCString(i.mod.Memory(), uint32(ptr))
}

func (i *Instance) BindParameterCount(stmt Stmt) int {
	return int(i.i32("sqlite3_bind_parameter_count", uint64(stmt)))
}

func (i *Instance) BindParameterIndex(stmt Stmt, name string) int {
	a := i.arena()
	defer a.release()
	namePtr := a.cstring(name)
	if namePtr == 0 {
		return 0
	}
	return int(i.i32("sqlite3_bind_parameter_index", uint64(stmt), uint64(namePtr)))
}

func (i *Instance) BindParameterName(stmt Stmt, idx int) string {
	ptr, ok := i.call("sqlite3_bind_parameter_name", uint64(stmt), uint64(uint32(int32(idx))))
	if !ok {
		return ""
	}
	return readCString(i.mod.Memory(), uint32(ptr))
}

func (i *Instance) BindValue(stmt Stmt, idx int, v marshal.Value) errors.Code {
	s, n := uint64(stmt), uint64(uint32(int32(idx)))
	switch v.Type() {
	case marshal.TypeInteger:
		return i.code("sqlite3_bind_int64", s, n, uint64(v.Int64()))
	case marshal.TypeFloat:
		return i.code("sqlite3_bind_double", s, n, math.Float64bits(v.Float64()))
	case marshal.TypeText:
		return i.bindBytes("sqlite3_bind_text", s, n, v.Bytes())
	case marshal.TypeBlob:
		return i.bindBytes("sqlite3_bind_blob", s, n, v.Bytes())
	default:
		return i.code("sqlite3_bind_null", s, n)
	}
}

func (i *Instance) bindBytes(entry string, stmt, idx uint64, b []byte) errors.Code {
	a := i.arena()
	defer a.release()
	ptr := a.bytes(b)
	if ptr == 0 {
		return errors.CodeNoMem
	}
	return i.code(entry, stmt, idx, uint64(ptr), uint64(uint32(len(b))), transient)
}

// Engine column type tags.
const (
	colInteger = 1
	colFloat   = 2
	colText    = 3
	colBlob    = 4
	colNull    = 5
)

func (i *Instance) ColumnCount(stmt Stmt) int {
	return int(i.i32("sqlite3_column_count", uint64(stmt)))
}

func (i *Instance) ColumnName(stmt Stmt, idx int) string {
	ptr, ok := i.call("sqlite3_column_name", uint64(stmt), uint64(uint32(int32(idx))))
	if !ok {
		return ""
	}
	return readCString(i.mod.Memory(), uint32(ptr))
}

func (i *Instance) ColumnDeclType(stmt Stmt, idx int) string {
	ptr, ok := i.call("sqlite3_column_decltype", uint64(stmt), uint64(uint32(int32(idx))))
	if !ok {
		return ""
	}
	return readCString(i.mod.Memory(), uint32(ptr))
}

func (i *Instance) ColumnType(stmt Stmt, idx int) marshal.Type {
	switch i.i32("sqlite3_column_type", uint64(stmt), uint64(uint32(int32(idx)))) {
	case colInteger:
		return marshal.TypeInteger
	case colFloat:
		return marshal.TypeFloat
	case colText:
		return marshal.TypeText
	case colBlob:
		return marshal.TypeBlob
	default:
		return marshal.TypeNull
	}
}

// ColumnValue reads one result value, copying text and blob content out
// of engine memory: the engine's buffer is only valid until the next
// step, reset or finalize on the statement.
func (i *Instance) ColumnValue(stmt Stmt, idx int) marshal.Value {
	s, n := uint64(stmt), uint64(uint32(int32(idx)))
	switch i.ColumnType(stmt, idx) {
	case marshal.TypeInteger:
		return marshal.Integer(i.i64("sqlite3_column_int64", s, n))
	case marshal.TypeFloat:
		bits, _ := i.call("sqlite3_column_double", s, n)
		return marshal.Float(math.Float64frombits(bits))
	case marshal.TypeText:
		ptr, _ := i.call("sqlite3_column_text", s, n)
		size := i.i32("sqlite3_column_bytes", s, n)
		b, _ := i.mod.Memory().Read(uint32(ptr), uint32(size))
		return marshal.Text(string(b))
	case marshal.TypeBlob:
		ptr, _ := i.call("sqlite3_column_blob", s, n)
		size := i.i32("sqlite3_column_bytes", s, n)
		b, ok := i.mod.Memory().Read(uint32(ptr), uint32(size))
		if !ok {
			return marshal.Blob(nil)
		}
		dup := make([]byte, len(b))
		copy(dup, b)
		return marshal.Blob(dup)
	default:
		return marshal.Null()
	}
}
