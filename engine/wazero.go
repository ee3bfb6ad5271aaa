package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	sqliteruntime "github.com/wippyai/sqlite-runtime"
	"github.com/wippyai/sqlite-runtime/errors"
	"github.com/wippyai/sqlite-runtime/registry"
)

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages
	// (64KB each). 0 means the wazero default.
	MemoryLimitPages uint32
}

// Engine compiles one engine wasm build and instantiates it per
// connection owner. Engine is safe for concurrent use.
type Engine struct {
	runtime   wazero.Runtime
	compiled  wazero.CompiledModule
	exports   map[string]struct{}
	instances sync.Map // api.Module -> *Instance
	seq       atomic.Uint64
}

// New compiles an engine build with default configuration.
func New(ctx context.Context, wasm []byte) (*Engine, error) {
	return NewWithConfig(ctx, wasm, nil)
}

// NewWithConfig compiles an engine build. The wasm bytes must be a
// build exporting the standard entry points; see the package docs for
// the expected Go bridge shims.
func NewWithConfig(ctx context.Context, wasm []byte, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	e := &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		exports: make(map[string]struct{}),
	}

	if err := e.instantiateEnv(ctx); err != nil {
		e.runtime.Close(ctx)
		return nil, errors.New(errors.PhaseRuntime, errors.KindRegistration).
			Cause(err).
			Detail("register env host module").
			Build()
	}

	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		e.runtime.Close(ctx)
		return nil, errors.New(errors.PhaseRuntime, errors.KindInstantiation).
			Cause(err).
			Detail("compile engine build").
			Build()
	}
	e.compiled = compiled

	for name := range compiled.ExportedFunctions() {
		e.exports[name] = struct{}{}
	}
	for _, required := range requiredExports {
		if _, ok := e.exports[required]; !ok {
			e.runtime.Close(ctx)
			return nil, errors.Unsupported(required)
		}
	}

	return e, nil
}

// requiredExports is the minimal surface every supported build carries.
var requiredExports = []string{
	"sqlite3_open_v2",
	"sqlite3_close",
	"sqlite3_prepare_v2",
	"sqlite3_step",
	"sqlite3_reset",
	"sqlite3_finalize",
	"sqlite3_errcode",
	"sqlite3_extended_errcode",
	"sqlite3_errmsg",
	"sqlite3_malloc",
	"sqlite3_free",
}

// featureExports lists the entry points behind each optional Feature.
var featureExports = map[Feature][]string{
	FeatureBackup:     {"sqlite3_backup_init", "sqlite3_backup_step", "sqlite3_backup_remaining", "sqlite3_backup_pagecount", "sqlite3_backup_finish"},
	FeatureBlob:       {"sqlite3_blob_open", "sqlite3_blob_bytes", "sqlite3_blob_read", "sqlite3_blob_write", "sqlite3_blob_close"},
	FeatureVTab:       {"sqlite3_create_module_go", "sqlite3_declare_vtab"},
	FeatureVFS:        {"sqlite3_vfs_register_go", "sqlite3_vfs_unregister_go"},
	FeatureWindowFunc: {"sqlite3_create_function_go", "sqlite3_aggregate_context"},
	FeatureTrace:      {"sqlite3_trace_go"},
	FeatureProgress:   {"sqlite3_progress_handler_go"},
	FeatureAuthorizer: {"sqlite3_set_authorizer_go"},
	FeatureHooks:      {"sqlite3_commit_hook_go", "sqlite3_rollback_hook_go", "sqlite3_update_hook_go"},
}

// Instantiate creates a fresh engine instance. Each instance has its
// own linear memory and serves one connection owner at a time.
func (e *Engine) Instantiate(ctx context.Context) (*Instance, error) {
	modCfg := wazero.NewModuleConfig().
		WithName(fmt.Sprintf("sqlite-%d", e.seq.Add(1)))
	if _, ok := e.exports["_initialize"]; ok {
		modCfg = modCfg.WithStartFunctions("_initialize")
	}

	mod, err := e.runtime.InstantiateModule(ctx, e.compiled, modCfg)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	inst := &Instance{
		eng:       e,
		mod:       mod,
		ctx:       ctx,
		callbacks: registry.NewTable(),
		conns:     make(map[Conn]*connState),
		vfsNames:  make(map[string]registry.Handle),
	}
	e.instances.Store(mod, inst)
	return inst, nil
}

// Close releases the engine and every instance created from it.
func (e *Engine) Close(ctx context.Context) error {
	e.instances.Range(func(key, value any) bool {
		value.(*Instance).Shutdown(ctx)
		return true
	})
	return e.runtime.Close(ctx)
}

func (e *Engine) instanceOf(mod api.Module) *Instance {
	if v, ok := e.instances.Load(mod); ok {
		return v.(*Instance)
	}
	return nil
}

// Instance is one instantiation of the engine build, implementing API.
// An Instance must be used by one goroutine at a time; Interrupt is the
// only exception.
type Instance struct {
	eng       *Engine
	mod       api.Module
	ctx       context.Context
	callbacks *registry.Table
	conns     map[Conn]*connState
	connMu    sync.Mutex
	vfsNames  map[string]registry.Handle
	vfsMu     sync.Mutex
	closed    atomic.Bool
}

var _ API = (*Instance)(nil)

// connState is the per-connection host-side state the env dispatch
// needs: the cooperative interrupt flag and the installed hook funcs.
type connState struct {
	interrupted atomic.Bool
	handle      registry.Handle
	progress    ProgressFunc
	authorizer  AuthorizerFunc
	trace       TraceFunc
	busy        BusyFunc
	commit      CommitHookFunc
	rollback    RollbackHookFunc
	update      UpdateHookFunc
}

// Shutdown tears down the instance. Registered callback state is
// released through the handle table; shutting down twice is a no-op.
func (i *Instance) Shutdown(ctx context.Context) error {
	if i.closed.Swap(true) {
		return nil
	}
	i.eng.instances.Delete(i.mod)
	i.callbacks.Close()
	return i.mod.Close(ctx)
}

// Supports reports whether the loaded build carries every entry point
// behind the feature.
func (i *Instance) Supports(f Feature) bool {
	names, ok := featureExports[f]
	if !ok {
		return false
	}
	for _, name := range names {
		if _, ok := i.eng.exports[name]; !ok {
			return false
		}
	}
	return true
}

// Memory exposes the instance's linear memory through the root Memory
// interface, for callers that need to inspect guest state directly.
func (i *Instance) Memory() sqliteruntime.Memory {
	return guestMemory{mem: i.mod.Memory()}
}

// Allocator exposes the engine's own malloc/free pair, for callers
// that place buffers in guest memory themselves.
func (i *Instance) Allocator() sqliteruntime.Allocator {
	return instanceAllocator{inst: i}
}

// Version returns the engine's library version string.
func (i *Instance) Version() string {
	ptr, ok := i.call("sqlite3_libversion")
	if !ok {
		return ""
	}
	return readCString(i.mod.Memory(), uint32(ptr))
}

// call invokes an exported entry point. A trap is terminal for the
// instance: it is logged and reported as failure to the caller.
func (i *Instance) call(name string, args ...uint64) (uint64, bool) {
	fn := i.mod.ExportedFunction(name)
	if fn == nil {
		Logger().Warn("missing engine export", zap.String("entry", name))
		return 0, false
	}
	rets, err := fn.Call(i.ctx, args...)
	if err != nil {
		Logger().Error("engine trap",
			zap.String("entry", name),
			zap.Error(err))
		return 0, false
	}
	if len(rets) == 0 {
		return 0, true
	}
	return rets[0], true
}

// code invokes an entry point that returns a result code.
func (i *Instance) code(name string, args ...uint64) errors.Code {
	v, ok := i.call(name, args...)
	if !ok {
		return errors.CodeInternal
	}
	return errors.Code(int32(uint32(v)))
}

// i32 invokes an entry point that returns a plain int32.
func (i *Instance) i32(name string, args ...uint64) int32 {
	v, _ := i.call(name, args...)
	return int32(uint32(v))
}

// i64 invokes an entry point that returns an int64.
func (i *Instance) i64(name string, args ...uint64) int64 {
	v, _ := i.call(name, args...)
	return int64(v)
}

func (i *Instance) has(name string) bool {
	_, ok := i.eng.exports[name]
	return ok
}

func (i *Instance) malloc(size uint32) uint32 {
	v, ok := i.call("sqlite3_malloc", uint64(size))
	if !ok || v == 0 {
		Logger().Error("guest allocation failed", zap.Uint32("size", size))
		return 0
	}
	return uint32(v)
}

func (i *Instance) free(ptr uint32) {
	if ptr != 0 {
		i.call("sqlite3_free", uint64(ptr))
	}
}

func (i *Instance) arena() *arena {
	return &arena{inst: i}
}

// stateFor resolves per-connection state, creating it on first use.
func (i *Instance) stateFor(db Conn) *connState {
	i.connMu.Lock()
	defer i.connMu.Unlock()
	cs, ok := i.conns[db]
	if !ok {
		cs = &connState{}
		cs.handle = i.callbacks.Insert(registry.TypeConn, cs)
		i.conns[db] = cs
	}
	return cs
}

func (i *Instance) dropState(db Conn) {
	i.connMu.Lock()
	cs, ok := i.conns[db]
	if ok {
		delete(i.conns, db)
	}
	i.connMu.Unlock()
	if ok {
		i.callbacks.Remove(cs.handle)
	}
}

// resolveState maps a replayed context handle back to connection state.
func (i *Instance) resolveState(ctxID uint64) *connState {
	v, ok := i.callbacks.GetTyped(registry.Handle(ctxID), registry.TypeConn)
	if !ok {
		return nil
	}
	return v.(*connState)
}
