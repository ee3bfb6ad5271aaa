// Package sqlite is the host-facing surface of the binding: open
// connections, prepare and step statements, iterate rows, register Go
// functions and virtual tables, and move blobs and backups.
//
// A Runtime compiles one engine wasm build and opens connections
// against it. Each Conn owns a dedicated engine instance and a gate
// serializing its use, so distinct Conns on distinct goroutines run
// concurrently while one Conn is always single-owner. Interrupt is the
// only method safe to call on a Conn from another goroutine.
//
// Prepared statements go through a per-connection LRU cache keyed by
// exact SQL text. A statement handed out by Prepare is pinned: it is
// never evicted and never handed out again until closed; preparing the
// same text meanwhile compiles a fresh instance.
//
// Failures inside registered callbacks never unwind through the
// engine. They are captured at the boundary and re-raised, with their
// cause chain intact, from the engine call that triggered them.
package sqlite
