// Package gate implements the lock discipline around engine calls.
//
// One Gate serializes all use of one engine instance. The protocol has
// three kinds of sections, entered while the gate is held:
//
//   - Blocking: an engine call that may take long (step, open, backup
//     step, blob I/O) and never calls back into host code. The gate is
//     released for the duration so other goroutines may run, and is
//     reacquired on return, including on the error path.
//
//   - Reentrant: an engine call that may invoke registered host
//     callbacks. The gate stays held across the call; a depth counter
//     records that callbacks arriving during it are nested.
//
//   - Reenter: the trampoline side. A callback invoked while the gate's
//     depth is nonzero runs on the goroutine that already holds the
//     gate and must not attempt to acquire it again; at depth zero it
//     takes the gate like any other caller.
//
// Sections release on every exit path: Blocking and Reentrant restore
// gate state via defer, so a panicking callback cannot leave the gate
// in a torn state.
package gate
