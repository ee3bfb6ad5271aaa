// Package registry provides the handle table mapping opaque handles the
// engine stores and replays back to live host wrapper objects.
//
// The engine sees only integer context values. A bare index would be
// unsafe: slots get reused, and a stale value replayed by the engine
// would silently resolve to the wrong wrapper. Handles here carry a
// generation tag alongside the slot index, so a stale or reused slot is
// detected and resolution fails instead.
//
// # Handle Table
//
//	table := registry.NewTable()
//
//	// Insert a wrapper, get a handle the engine can hold
//	h := table.Insert(registry.TypeStmt, stmt)
//
//	// Inside a callback, resolve the replayed handle
//	value, ok := table.GetTyped(h, registry.TypeStmt)
//
//	// On close, remove exactly once; double remove is a no-op
//	value, ok := table.Remove(h)
//
// # Pinning
//
// A pinned entry cannot be removed. Pin an entry for the span of a
// borrow when removal could race it, and Unpin when the borrow ends;
// Remove on a pinned entry is refused rather than deferred.
//
// # Concurrency
//
// The table carries its own mutex, distinct from any gate serializing
// engine calls: callback resolution happens while a gate is being
// re-entered, and must not deadlock against it.
//
// # Finalization
//
// Values implementing Finalizer get their Finalize method called exactly
// once, when they are removed or when the table closes. Closed entries
// are unreachable atomically with the close, so resolution never returns
// a wrapper whose engine handle has already been released.
package registry
