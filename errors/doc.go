// Package errors provides structured error types for the sqlite-runtime library.
//
// Errors are categorized by Phase (where in the binding the error occurred)
// and Kind (error category). The Error type includes rich context: the engine
// result code pair, the SQL or object involved, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBind, errors.KindOverflow).
//		Detail("uint64 value %d exceeds engine integer range", v).
//		Build()
//
// Engine result codes are translated with Translate:
//
//	if rc != errors.CodeOK {
//		return errors.Translate(rc, extended, msg)
//	}
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
