// Package engine exposes the SQL engine's C-ABI entry points to Go.
//
// The engine is consumed as an opaque wasm build executed under wazero.
// Package engine owns exactly the boundary: calling exported entry
// points, moving bytes in and out of guest linear memory, and routing
// the engine's callback slots to Go closures. No policy lives here;
// lifecycle, caching, locking and error capture belong to the layers
// above (sqlite, bridge, gate).
//
// # The API interface
//
// API mirrors the engine's C surface one method per entry point:
// open/close, prepare/step/finalize/reset, the bind and column
// families, result-code accessors, callback registration, backup,
// incremental blob I/O. Methods that the C API defines as returning a
// result code return errors.Code; translation to Go errors happens in
// the callers, which also have the message and extended code at hand.
//
// # Engine builds
//
// The wasm build must export the standard entry points plus the Go
// bridge shims (sqlite3_create_function_go and friends) that install C
// trampolines forwarding to functions imported from the "env" host
// module. Optional entry points may be absent in older builds; the
// implementation feature-detects on the export table rather than
// assuming, and Supports reports what the loaded build can do.
//
// # Callbacks
//
// Callback registration takes plain Go closures bundled per slot
// (FunctionCallbacks, ModuleCallbacks, VFSCallbacks, hook funcs). The
// closures run on the goroutine executing the enclosing engine call.
// They are expected to be pre-wrapped by the bridge layer, which adds
// gate re-entry and capture-and-defer error handling; package engine
// invokes them as given and converts their result into the abort code
// the engine expects at that slot.
package engine
