package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the binding layer the error occurred
type Phase string

const (
	PhaseOpen     Phase = "open"     // connection open/configure
	PhasePrepare  Phase = "prepare"  // statement compilation
	PhaseBind     Phase = "bind"     // parameter binding
	PhaseStep     Phase = "step"     // statement execution
	PhaseColumn   Phase = "column"   // result column access
	PhaseMarshal  Phase = "marshal"  // host <-> engine value conversion
	PhaseCallback Phase = "callback" // engine-invoked host code
	PhaseBlob     Phase = "blob"     // incremental blob I/O
	PhaseBackup   Phase = "backup"   // page-by-page backup
	PhaseClose    Phase = "close"    // handle teardown
	PhaseRuntime  Phase = "runtime"  // engine load/instantiate
)

// Kind categorizes the error
type Kind string

const (
	KindEngine        Kind = "engine"         // failure reported by the engine itself
	KindMisuse        Kind = "misuse"         // binding contract violated by the caller
	KindOverflow      Kind = "overflow"       // value exceeds representable range
	KindInvalidUTF8   Kind = "invalid_utf8"   // text is not valid UTF-8
	KindEmbeddedNul   Kind = "embedded_nul"   // NUL byte inside text value
	KindTypeMismatch  Kind = "type_mismatch"  // host value has no engine representation
	KindClosed        Kind = "closed"         // handle used after close
	KindInterrupted   Kind = "interrupted"    // cooperative cancellation observed
	KindNotFound      Kind = "not_found"      // named object missing
	KindUnsupported   Kind = "unsupported"    // optional engine entry point absent
	KindAllocation    Kind = "allocation"     // guest memory allocation failed
	KindRegistration  Kind = "registration"   // callback/module/VFS registration failed
	KindInstantiation Kind = "instantiation"  // engine instance creation failed
	KindInvalidInput  Kind = "invalid_input"  // malformed argument
	KindCallbackAbort Kind = "callback_abort" // host callback failed inside an engine call
)

// Error is the structured error type used throughout the binding
type Error struct {
	Cause    error
	Phase    Phase
	Kind     Kind
	Code     Code
	Extended Code
	Detail   string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Code != CodeOK {
		b.WriteString(": ")
		b.WriteString(e.Code.String())
		if e.Extended != CodeOK && e.Extended != e.Code {
			b.WriteString(" (")
			b.WriteString(e.Extended.String())
			b.WriteByte(')')
		}
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// Two structured errors match on Phase and Kind; a bare Code matches on
// the primary result code, so callers can write errors.Is(err, CodeBusy).
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case *Error:
		return e.Phase == t.Phase && e.Kind == t.Kind
	case Code:
		return e.Code.Primary() == t.Primary()
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Code sets the engine result code pair
func (b *Builder) Code(code, extended Code) *Builder {
	b.err.Code = code
	b.err.Extended = extended
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Misuse creates a binding-contract violation error.
// These are detected at the wrapper layer before the engine is reached.
func Misuse(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindMisuse).Detail(detail, args...).Build()
}

// Closed creates a handle-used-after-close error
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// Overflow creates a marshalling overflow error
func Overflow(value any, targetType string) *Error {
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindOverflow,
		Detail: fmt.Sprintf("value %v overflows %s", value, targetType),
	}
}

// TypeMismatch creates an unrepresentable-host-value error
func TypeMismatch(goType string) *Error {
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindTypeMismatch,
		Detail: fmt.Sprintf("Go type %s has no engine representation", goType),
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindInvalidUTF8,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// EmbeddedNul creates an embedded-NUL-in-text error.
// NUL bytes are preserved for blobs but rejected for text values.
func EmbeddedNul(offset int) *Error {
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindEmbeddedNul,
		Detail: fmt.Sprintf("text contains NUL byte at offset %d", offset),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Unsupported reports an optional engine entry point that is absent
// in the loaded engine build.
func Unsupported(entryPoint string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindUnsupported,
		Detail: fmt.Sprintf("engine build lacks %s", entryPoint),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a callback registration error
func Registration(what, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseCallback,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s %q", what, name),
		Cause:  cause,
	}
}

// Instantiation creates an engine instance creation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Detail: "instantiate engine",
		Cause:  cause,
	}
}

// Allocation creates a guest memory allocation failure error
func Allocation(size uint32) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes in engine memory", size),
	}
}

// CallbackError carries a host-side failure raised during a bridged
// callback. It is captured at the trampoline (never allowed to unwind
// through engine stack frames), converted to the engine abort signal for
// that call site, and re-raised once the enclosing engine call returns.
type CallbackError struct {
	// Cause is the original host-side error, identity preserved.
	Cause error
	// Site names the callback slot that failed, e.g. "function upper/1"
	// or "vtab module series: BestIndex".
	Site string
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("[callback] %s: %v", e.Site, e.Cause)
}

func (e *CallbackError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type
func (e *CallbackError) Is(target error) bool {
	_, ok := target.(*CallbackError)
	return ok
}
