// Package sqliteruntime provides a Go binding layer for a wasm-compiled
// SQLite engine executed under wazero.
//
// The engine itself is consumed as an opaque library through its exported
// C-ABI entry points; this module owns everything on the host side of that
// boundary: handle lifecycle, two-way value marshalling, bridging of
// host-defined callbacks back into engine callback slots, and the lock
// discipline around blocking engine calls.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	sqliteruntime/       Root package with core Memory and Allocator interfaces
//	├── sqlite/          High-level API: Runtime, Conn, Stmt, Rows, Blob, Backup
//	├── engine/          Low-level engine entry points and the wazero implementation
//	├── enginetest/      Scriptable engine test double with call accounting
//	├── bridge/          Host callback capability sets and trampolines
//	├── gate/            Runtime lock discipline around blocking engine calls
//	├── registry/        Generation-checked handle table
//	├── marshal/         Host value <-> engine value conversion
//	└── errors/          Structured error types and result-code translation
//
// # Quick Start
//
// Load the engine build once, then open connections against it:
//
//	rt, err := sqlite.NewRuntime(ctx, engineWasm)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	conn, err := rt.Open(ctx, "app.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	rows, err := conn.Query("SELECT id, name FROM users WHERE age > ?", 21)
//
// # Host Callbacks
//
// Register Go behavior the engine calls back into:
//
//	conn.CreateFunction("upper_trim", 1, true,
//	    func(args []marshal.Value) (any, error) {
//	        return strings.ToUpper(strings.TrimSpace(args[0].Text())), nil
//	    })
//
// # Thread Safety
//
// Runtime is safe for concurrent use. A Conn and everything derived from it
// (Stmt, Rows, Blob, Backup) belongs to one logical owner at a time; distinct
// Conns may be used from distinct goroutines concurrently.
//
// # Memory Model
//
// Text and blob data returned by the engine lives in guest linear memory and
// is only valid until the owning statement is stepped, reset, or finalized.
// The binding copies such data out before returning it to the host, so values
// handed to callers never alias guest memory.
package sqliteruntime
