package engine

import (
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/sqlite-runtime/errors"
	"github.com/wippyai/sqlite-runtime/marshal"
	"github.com/wippyai/sqlite-runtime/registry"
)

// Function kinds passed to the create-function shim.
const (
	funcKindScalar    = 0
	funcKindAggregate = 1
	funcKindWindow    = 2
)

// funcReg is the registered state behind one SQL function name.
type funcReg struct {
	fn   FunctionCallbacks
	name string
}

func (i *Instance) CreateFunction(db Conn, name string, nArg int, flags FuncFlags, fn FunctionCallbacks) errors.Code {
	if !i.has("sqlite3_create_function_go") {
		Logger().Warn("engine build lacks function registration shim")
		return errors.CodeError
	}

	a := i.arena()
	defer a.release()
	namePtr := a.cstring(name)
	if namePtr == 0 {
		return errors.CodeNoMem
	}

	if fn.Scalar == nil && !fn.hasAggregate() {
		// Clear the slot.
		return i.code("sqlite3_create_function_go",
			uint64(db), uint64(namePtr), uint64(uint32(int32(nArg))), uint64(flags), 0, funcKindScalar)
	}
	if fn.Scalar != nil && fn.hasAggregate() {
		return errors.CodeMisuse
	}
	if fn.NewAggregate != nil && fn.NewWindow != nil {
		return errors.CodeMisuse
	}

	kind := funcKindScalar
	switch {
	case fn.NewWindow != nil:
		kind = funcKindWindow
	case fn.NewAggregate != nil:
		kind = funcKindAggregate
	}

	h := i.callbacks.Insert(registry.TypeFunction, &funcReg{fn: fn, name: name})
	if h == registry.Zero {
		return errors.CodeMisuse
	}

	rc := i.code("sqlite3_create_function_go",
		uint64(db), uint64(namePtr), uint64(uint32(int32(nArg))), uint64(flags),
		uint64(h), uint64(uint32(kind)))
	if rc != errors.CodeOK {
		i.callbacks.Remove(h)
	}
	return rc
}

func (i *Instance) SetAuthorizer(db Conn, fn AuthorizerFunc) errors.Code {
	if !i.has("sqlite3_set_authorizer_go") {
		return errors.CodeError
	}
	cs := i.stateFor(db)
	cs.authorizer = fn
	ctxID := uint64(cs.handle)
	if fn == nil {
		ctxID = 0
	}
	return i.code("sqlite3_set_authorizer_go", uint64(db), ctxID)
}

func (i *Instance) SetTrace(db Conn, fn TraceFunc) errors.Code {
	if !i.has("sqlite3_trace_go") {
		return errors.CodeError
	}
	cs := i.stateFor(db)
	cs.trace = fn
	ctxID := uint64(cs.handle)
	if fn == nil {
		ctxID = 0
	}
	return i.code("sqlite3_trace_go", uint64(db), ctxID)
}

// SetProgressHandler installs fn at the given opcode interval. The
// progress trampoline stays installed even with a nil fn: cooperative
// interrupt delivery depends on it.
func (i *Instance) SetProgressHandler(db Conn, ops int, fn ProgressFunc) {
	if !i.has("sqlite3_progress_handler_go") {
		return
	}
	cs := i.stateFor(db)
	cs.progress = fn
	if ops <= 0 {
		ops = progressOpcodeInterval
	}
	i.call("sqlite3_progress_handler_go", uint64(db), uint64(uint32(ops)), uint64(cs.handle))
}

func (i *Instance) SetBusyHandler(db Conn, fn BusyFunc) errors.Code {
	if !i.has("sqlite3_busy_handler_go") {
		return errors.CodeError
	}
	cs := i.stateFor(db)
	cs.busy = fn
	ctxID := uint64(cs.handle)
	if fn == nil {
		ctxID = 0
	}
	return i.code("sqlite3_busy_handler_go", uint64(db), ctxID)
}

func (i *Instance) SetCommitHook(db Conn, fn CommitHookFunc) {
	if !i.has("sqlite3_commit_hook_go") {
		return
	}
	cs := i.stateFor(db)
	cs.commit = fn
	ctxID := uint64(cs.handle)
	if fn == nil {
		ctxID = 0
	}
	i.call("sqlite3_commit_hook_go", uint64(db), ctxID)
}

func (i *Instance) SetRollbackHook(db Conn, fn RollbackHookFunc) {
	if !i.has("sqlite3_rollback_hook_go") {
		return
	}
	cs := i.stateFor(db)
	cs.rollback = fn
	ctxID := uint64(cs.handle)
	if fn == nil {
		ctxID = 0
	}
	i.call("sqlite3_rollback_hook_go", uint64(db), ctxID)
}

func (i *Instance) SetUpdateHook(db Conn, fn UpdateHookFunc) {
	if !i.has("sqlite3_update_hook_go") {
		return
	}
	cs := i.stateFor(db)
	cs.update = fn
	ctxID := uint64(cs.handle)
	if fn == nil {
		ctxID = 0
	}
	i.call("sqlite3_update_hook_go", uint64(db), ctxID)
}

// resolveFunc maps a replayed function context handle to its registration.
func (i *Instance) resolveFunc(ctxID uint64) *funcReg {
	v, ok := i.callbacks.GetTyped(registry.Handle(ctxID), registry.TypeFunction)
	if !ok {
		Logger().Error("stale function context", zap.Uint64("ctx", ctxID))
		return nil
	}
	return v.(*funcReg)
}

// valueArgs reads an engine value array (argc pointers at argv) and
// marshals each element, copying text and blob content out of engine
// memory: the engine's buffers are only valid for the callback's scope.
func (i *Instance) valueArgs(argc, argv uint32) []marshal.Value {
	mem := i.mod.Memory()
	args := make([]marshal.Value, argc)
	for n := uint32(0); n < argc; n++ {
		ptr, _ := mem.ReadUint32Le(argv + 4*n)
		args[n] = i.valueAt(ptr)
	}
	return args
}

func (i *Instance) valueAt(ptr uint32) marshal.Value {
	p := uint64(ptr)
	switch i.i32("sqlite3_value_type", p) {
	case colInteger:
		return marshal.Integer(i.i64("sqlite3_value_int64", p))
	case colFloat:
		bits, _ := i.call("sqlite3_value_double", p)
		return marshal.Float(math.Float64frombits(bits))
	case colText:
		tp, _ := i.call("sqlite3_value_text", p)
		size := i.i32("sqlite3_value_bytes", p)
		b, _ := i.mod.Memory().Read(uint32(tp), uint32(size))
		return marshal.Text(string(b))
	case colBlob:
		bp, _ := i.call("sqlite3_value_blob", p)
		size := i.i32("sqlite3_value_bytes", p)
		b, ok := i.mod.Memory().Read(uint32(bp), uint32(size))
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

// resultValue writes a function result into the engine's result slot.
func (i *Instance) resultValue(cCtx uint32, v marshal.Value) {
	c := uint64(cCtx)
	switch v.Type() {
	case marshal.TypeInteger:
		i.call("sqlite3_result_int64", c, uint64(v.Int64()))
	case marshal.TypeFloat:
		i.call("sqlite3_result_double", c, math.Float64bits(v.Float64()))
	case marshal.TypeText:
		i.resultBytes("sqlite3_result_text", c, v.Bytes())
	case marshal.TypeBlob:
		i.resultBytes("sqlite3_result_blob", c, v.Bytes())
	default:
		i.call("sqlite3_result_null", c)
	}
}

func (i *Instance) resultBytes(entry string, cCtx uint64, b []byte) {
	a := i.arena()
	defer a.release()
	ptr := a.bytes(b)
	if ptr == 0 {
		i.call("sqlite3_result_error_nomem", cCtx)
		return
	}
	i.call(entry, cCtx, uint64(ptr), uint64(uint32(len(b))), transient)
}

// resultError reports a captured callback failure to the engine,
// converting it to the abort code expected at a function call site.
func (i *Instance) resultError(cCtx uint32, err error) {
	c := uint64(cCtx)
	a := i.arena()
	defer a.release()
	msg := err.Error()
	if ptr := a.bytes([]byte(msg)); ptr != 0 {
		i.call("sqlite3_result_error", c, uint64(ptr), uint64(uint32(len(msg))))
	}
	if code := CodeForError(err); code != errors.CodeError {
		i.call("sqlite3_result_error_code", c, uint64(uint32(int32(code))))
	}
}

// aggState fetches or creates the per-group aggregate state. The engine
// hands out a stable 8-byte scratch slot per group; the host keeps the
// real state behind a handle stored there.
func (i *Instance) aggState(reg *funcReg, cCtx uint32, create bool) (AggregateState, registry.Handle) {
	slot, ok := i.call("sqlite3_aggregate_context", uint64(cCtx), 8)
	if !ok || slot == 0 {
		return nil, registry.Zero
	}
	mem := i.mod.Memory()
	id, _ := mem.ReadUint64Le(uint32(slot))
	if id != 0 {
		if v, ok := i.callbacks.GetTyped(registry.Handle(id), registry.TypeAggregate); ok {
			return v.(AggregateState), registry.Handle(id)
		}
		return nil, registry.Zero
	}
	if !create {
		return nil, registry.Zero
	}
	state := reg.fn.newState()
	h := i.callbacks.Insert(registry.TypeAggregate, state)
	mem.WriteUint64Le(uint32(slot), uint64(h))
	return state, h
}
