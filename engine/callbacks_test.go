package engine

import (
	"fmt"
	"testing"

	"github.com/wippyai/sqlite-runtime/errors"
)

func TestCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.Code
	}{
		{name: "nil", err: nil, want: errors.CodeOK},
		{name: "bare code", err: errors.CodeBusy, want: errors.CodeBusy},
		{name: "extended code", err: errors.CodeConstraintUnique, want: errors.CodeConstraintUnique},
		{
			name: "structured with code",
			err: errors.New(errors.PhaseCallback, errors.KindEngine).
				Code(errors.CodeFull, errors.CodeFull).Build(),
			want: errors.CodeFull,
		},
		{
			name: "structured without code",
			err:  errors.Misuse(errors.PhaseCallback, "bad call"),
			want: errors.CodeError,
		},
		{name: "plain error", err: fmt.Errorf("boom"), want: errors.CodeError},
		{
			name: "wrapped code",
			err:  fmt.Errorf("step failed: %w", errors.CodeInterrupt),
			want: errors.CodeInterrupt,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeForError(tt.err); got != tt.want {
				t.Errorf("CodeForError = %v, want %v", got, tt.want)
			}
		})
	}
}
