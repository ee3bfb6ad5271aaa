package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseStep,
				Kind:     KindEngine,
				Code:     CodeBusy,
				Extended: CodeBusySnapshot,
				Detail:   "write txn pending",
			},
			contains: []string{"[step]", "engine", "database is locked", "write txn pending"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseMarshal,
				Kind:  KindOverflow,
			},
			contains: []string{"[marshal]", "overflow"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseRuntime,
				Kind:   KindInstantiation,
				Detail: "instantiate engine",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[runtime]", "instantiation", "instantiate engine", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(PhaseOpen, KindEngine).Cause(cause).Build()

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestError_Is(t *testing.T) {
	a := New(PhaseStep, KindInterrupted).Code(CodeInterrupt, CodeInterrupt).Build()

	if !errors.Is(a, &Error{Phase: PhaseStep, Kind: KindInterrupted}) {
		t.Error("should match on phase and kind")
	}
	if errors.Is(a, &Error{Phase: PhaseStep, Kind: KindEngine}) {
		t.Error("should not match different kind")
	}
	if !errors.Is(a, CodeInterrupt) {
		t.Error("should match bare code target")
	}
	if errors.Is(a, CodeBusy) {
		t.Error("should not match different code")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("disk gone")
	err := New(PhaseBlob, KindEngine).
		Code(CodeIOErr, CodeIOErrRead).
		Detail("read %d bytes at offset %d", 16, 512).
		Cause(cause).
		Build()

	if err.Phase != PhaseBlob || err.Kind != KindEngine {
		t.Errorf("unexpected phase/kind: %s/%s", err.Phase, err.Kind)
	}
	if err.Code != CodeIOErr || err.Extended != CodeIOErrRead {
		t.Errorf("unexpected codes: %d/%d", err.Code, err.Extended)
	}
	if err.Detail != "read 16 bytes at offset 512" {
		t.Errorf("unexpected detail: %q", err.Detail)
	}
	if err.Cause != cause {
		t.Error("cause not set")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"misuse", Misuse(PhaseStep, "step after %s", "close"), KindMisuse},
		{"closed", Closed(PhasePrepare, "connection"), KindClosed},
		{"overflow", Overflow(uint64(1)<<63, "int64"), KindOverflow},
		{"type mismatch", TypeMismatch("chan int"), KindTypeMismatch},
		{"invalid utf8", InvalidUTF8([]byte{0xff, 0xfe}), KindInvalidUTF8},
		{"embedded nul", EmbeddedNul(3), KindEmbeddedNul},
		{"not found", NotFound(PhaseCallback, "function", "upper"), KindNotFound},
		{"unsupported", Unsupported("sqlite3_backup_init"), KindUnsupported},
		{"registration", Registration("module", "series", errors.New("dup")), KindRegistration},
		{"allocation", Allocation(4096), KindAllocation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", tt.err.Kind, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestCallbackError(t *testing.T) {
	cause := errors.New("host boom")
	err := &CallbackError{Site: "function upper/1", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("identity of the original error must be preserved")
	}
	if !errors.Is(err, &CallbackError{}) {
		t.Error("should match CallbackError target")
	}
	if !strings.Contains(err.Error(), "upper/1") {
		t.Errorf("message %q should name the call site", err.Error())
	}
}
