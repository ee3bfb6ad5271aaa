// Package bridge wraps user callbacks for execution inside engine
// calls.
//
// A callback runs on the goroutine that is already holding the
// connection gate partway through an engine call, so it must re-enter
// the gate rather than acquire it, and it must never panic across the
// boundary. Every wrapper produced here does both: it marks gate
// re-entry for the callback's duration, converts panics to errors, and
// captures the original failure so the enclosing operation can report
// it once the engine call unwinds. The engine only sees a result code;
// the Go error, with its full cause chain, surfaces from the outer
// call via Drain.
package bridge
