// Package enginetest provides a scriptable in-memory implementation of
// engine.API for testing the layers above the engine boundary without a
// wasm build.
//
// A Fake serves canned statements: each SQL text maps to a Script
// holding its columns, rows and step behavior. Unscripted statements
// behave like DML that touches no rows. The fake records every call by
// method name and keeps registered callbacks reachable so tests can
// fire them by hand.
package enginetest
