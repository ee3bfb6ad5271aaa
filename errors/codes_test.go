package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestCode_Primary(t *testing.T) {
	tests := []struct {
		code    Code
		primary Code
	}{
		{CodeOK, CodeOK},
		{CodeBusy, CodeBusy},
		{CodeBusySnapshot, CodeBusy},
		{CodeIOErrShortRead, CodeIOErr},
		{CodeConstraintUnique, CodeConstraint},
	}

	for _, tt := range tests {
		if got := tt.code.Primary(); got != tt.primary {
			t.Errorf("Primary(%d) = %d, want %d", int32(tt.code), got, tt.primary)
		}
	}
}

func TestCode_String(t *testing.T) {
	if s := CodeBusy.String(); s != "database is locked" {
		t.Errorf("CodeBusy = %q", s)
	}
	if s := CodeConstraintUnique.String(); !strings.Contains(s, "constraint failed") {
		t.Errorf("extended code should carry the primary message, got %q", s)
	}
	if s := Code(255).String(); !strings.Contains(s, "unknown") {
		t.Errorf("unknown code should say so, got %q", s)
	}
	// The low byte is the primary code, so an unrecognized extended
	// value still renders its primary message.
	if s := Code(9999).String(); !strings.Contains(s, "locking protocol") {
		t.Errorf("extended value should render by primary byte, got %q", s)
	}
}

func TestTranslate_FlowSignals(t *testing.T) {
	for _, code := range []Code{CodeOK, CodeRow, CodeDone} {
		if err := Translate(code, CodeOK, ""); err != nil {
			t.Errorf("Translate(%d) = %v, want nil", code, err)
		}
	}
}

func TestTranslate_Failures(t *testing.T) {
	tests := []struct {
		name     string
		code     Code
		extended Code
		kind     Kind
	}{
		{"generic", CodeError, CodeOK, KindEngine},
		{"interrupt", CodeInterrupt, CodeOK, KindInterrupted},
		{"misuse", CodeMisuse, CodeOK, KindMisuse},
		{"abort", CodeAbort, CodeAbortRollback, KindCallbackAbort},
		{"extended carried", CodeConstraint, CodeConstraintFK, KindEngine},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Translate(tt.code, tt.extended, "boom")
			var structured *Error
			if !errors.As(err, &structured) {
				t.Fatalf("Translate returned %T, want *Error", err)
			}
			if structured.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", structured.Kind, tt.kind)
			}
			if structured.Code != tt.code.Primary() {
				t.Errorf("code = %d, want %d", structured.Code, tt.code.Primary())
			}
			if tt.extended != CodeOK && structured.Extended != tt.extended {
				t.Errorf("extended = %d, want %d", structured.Extended, tt.extended)
			}
			if !errors.Is(err, tt.code.Primary()) {
				t.Error("translated error should match its primary code")
			}
		})
	}
}

func TestTranslate_RedundantMessageDropped(t *testing.T) {
	err := Translate(CodeBusy, CodeOK, "database is locked")
	var structured *Error
	if !errors.As(err, &structured) {
		t.Fatal("want *Error")
	}
	if structured.Detail != "" {
		t.Errorf("default engine message should be dropped, got %q", structured.Detail)
	}
	if !strings.Contains(err.Error(), "database is locked") {
		t.Errorf("code message still rendered: %q", err.Error())
	}
}

func TestTranslateAt_Phase(t *testing.T) {
	err := TranslateAt(PhaseBackup, CodeBusy, CodeOK, "")
	var structured *Error
	if !errors.As(err, &structured) {
		t.Fatal("want *Error")
	}
	if structured.Phase != PhaseBackup {
		t.Errorf("phase = %s, want %s", structured.Phase, PhaseBackup)
	}

	// Default phase selection when the caller does not supply one.
	err = Translate(CodeCantOpen, CodeOK, "")
	if !errors.As(err, &structured) {
		t.Fatal("want *Error")
	}
	if structured.Phase != PhaseOpen {
		t.Errorf("phase = %s, want %s", structured.Phase, PhaseOpen)
	}
}
