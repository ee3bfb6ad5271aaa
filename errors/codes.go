package errors

import "fmt"

// Code is an engine result code. The low byte is the primary code; the
// high bits carry the extended code when the engine reports one.
type Code int32

// Primary result codes.
const (
	CodeOK         Code = 0
	CodeError      Code = 1
	CodeInternal   Code = 2
	CodePerm       Code = 3
	CodeAbort      Code = 4
	CodeBusy       Code = 5
	CodeLocked     Code = 6
	CodeNoMem      Code = 7
	CodeReadOnly   Code = 8
	CodeInterrupt  Code = 9
	CodeIOErr      Code = 10
	CodeCorrupt    Code = 11
	CodeNotFound   Code = 12
	CodeFull       Code = 13
	CodeCantOpen   Code = 14
	CodeProtocol   Code = 15
	CodeEmpty      Code = 16
	CodeSchema     Code = 17
	CodeTooBig     Code = 18
	CodeConstraint Code = 19
	CodeMismatch   Code = 20
	CodeMisuse     Code = 21
	CodeNoLFS      Code = 22
	CodeAuth       Code = 23
	CodeFormat     Code = 24
	CodeRange      Code = 25
	CodeNotADB     Code = 26
	CodeNotice     Code = 27
	CodeWarning    Code = 28
	CodeRow        Code = 100
	CodeDone       Code = 101
)

// Extended result codes the binding treats specially.
const (
	CodeBusyRecovered      Code = CodeBusy | 1<<8
	CodeBusySnapshot       Code = CodeBusy | 2<<8
	CodeBusyTimeout        Code = CodeBusy | 3<<8
	CodeLockedSharedCache  Code = CodeLocked | 1<<8
	CodeLockedVTab         Code = CodeLocked | 2<<8
	CodeReadOnlyRecovery   Code = CodeReadOnly | 1<<8
	CodeReadOnlyCantLock   Code = CodeReadOnly | 2<<8
	CodeIOErrRead          Code = CodeIOErr | 1<<8
	CodeIOErrShortRead     Code = CodeIOErr | 2<<8
	CodeIOErrWrite         Code = CodeIOErr | 3<<8
	CodeIOErrFsync         Code = CodeIOErr | 4<<8
	CodeIOErrTruncate      Code = CodeIOErr | 6<<8
	CodeIOErrDelete        Code = CodeIOErr | 10<<8
	CodeAbortRollback      Code = CodeAbort | 2<<8
	CodeConstraintCheck    Code = CodeConstraint | 1<<8
	CodeConstraintFK       Code = CodeConstraint | 3<<8
	CodeConstraintNotNull  Code = CodeConstraint | 5<<8
	CodeConstraintPrimary  Code = CodeConstraint | 6<<8
	CodeConstraintUnique   Code = CodeConstraint | 8<<8
	CodeConstraintRowID    Code = CodeConstraint | 10<<8
	CodeCantOpenNoTempDir  Code = CodeCantOpen | 1<<8
	CodeCorruptVTab        Code = CodeCorrupt | 1<<8
	CodeAuthUser           Code = CodeAuth | 1<<8
)

var codeNames = map[Code]string{
	CodeOK:         "OK",
	CodeError:      "generic error",
	CodeInternal:   "internal engine error",
	CodePerm:       "access permission denied",
	CodeAbort:      "callback requested abort",
	CodeBusy:       "database is locked",
	CodeLocked:     "database table is locked",
	CodeNoMem:      "out of memory",
	CodeReadOnly:   "attempt to write a readonly database",
	CodeInterrupt:  "interrupted",
	CodeIOErr:      "disk I/O error",
	CodeCorrupt:    "database disk image is malformed",
	CodeNotFound:   "unknown operation",
	CodeFull:       "database or disk is full",
	CodeCantOpen:   "unable to open database file",
	CodeProtocol:   "locking protocol",
	CodeEmpty:      "empty",
	CodeSchema:     "database schema has changed",
	CodeTooBig:     "string or blob too big",
	CodeConstraint: "constraint failed",
	CodeMismatch:   "datatype mismatch",
	CodeMisuse:     "library routine called out of sequence",
	CodeNoLFS:      "large file support is disabled",
	CodeAuth:       "authorization denied",
	CodeFormat:     "auxiliary database format error",
	CodeRange:      "bind or column index out of range",
	CodeNotADB:     "file is not a database",
	CodeNotice:     "notification message",
	CodeWarning:    "warning message",
	CodeRow:        "another row available",
	CodeDone:       "no more rows available",
}

// Primary strips the extended bits, leaving the primary result code.
func (c Code) Primary() Code {
	return c & 0xff
}

// String returns the engine's conventional message for the code.
func (c Code) String() string {
	if name, ok := codeNames[c.Primary()]; ok {
		if c != c.Primary() {
			return fmt.Sprintf("%s (extended %d)", name, int32(c))
		}
		return name
	}
	return fmt.Sprintf("unknown error code %d", int32(c))
}

// Error makes a bare Code usable as an errors.Is target.
func (c Code) Error() string {
	return c.String()
}

// kindFor maps a primary result code to the binding's error kind.
func kindFor(primary Code) Kind {
	switch primary {
	case CodeInterrupt:
		return KindInterrupted
	case CodeMisuse:
		return KindMisuse
	case CodeAbort:
		return KindCallbackAbort
	default:
		return KindEngine
	}
}

// phaseFor picks a phase for codes whose origin the caller did not supply.
func phaseFor(primary Code) Phase {
	switch primary {
	case CodeCantOpen, CodeNotADB:
		return PhaseOpen
	default:
		return PhaseStep
	}
}

// Translate converts an engine result code pair plus its message string
// into a structured error. CodeOK, CodeRow and CodeDone translate to nil:
// they are flow signals, not failures.
func Translate(code, extended Code, message string) error {
	return TranslateAt("", code, extended, message)
}

// TranslateAt is Translate with an explicit phase. The zero phase lets
// the code pick a sensible default.
func TranslateAt(phase Phase, code, extended Code, message string) error {
	primary := code.Primary()
	switch primary {
	case CodeOK, CodeRow, CodeDone:
		return nil
	}
	if phase == "" {
		phase = phaseFor(primary)
	}
	if extended == CodeOK {
		extended = code
	}
	detail := message
	if detail == codeNames[primary] {
		// The engine's default message restates the code name.
		detail = ""
	}
	return &Error{
		Phase:    phase,
		Kind:     kindFor(primary),
		Code:     primary,
		Extended: extended,
		Detail:   detail,
	}
}
