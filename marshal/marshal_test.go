package marshal

import (
	"bytes"
	"errors"
	"math"
	"math/big"
	"strings"
	"testing"

	sqerrors "github.com/wippyai/sqlite-runtime/errors"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		host any
	}{
		{"null", nil},
		{"integer", int64(42)},
		{"integer min", int64(math.MinInt64)},
		{"integer max", int64(math.MaxInt64)},
		{"float", 3.5},
		{"float negative zero", math.Copysign(0, -1)},
		{"text", "hello"},
		{"text empty", ""},
		{"text multibyte", "héllo wörld 日本"},
		{"blob", []byte{1, 2, 3}},
		{"blob with NULs", []byte{0, 1, 0, 2, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ToEngine(tt.host)
			if err != nil {
				t.Fatalf("ToEngine: %v", err)
			}
			got := FromEngine(ev)

			switch want := tt.host.(type) {
			case nil:
				if got != nil {
					t.Fatalf("round trip = %v, want nil", got)
				}
			case []byte:
				if !bytes.Equal(got.([]byte), want) {
					t.Fatalf("round trip = %x, want %x", got, want)
				}
			case float64:
				// Bit-for-bit, including -0.
				if math.Float64bits(got.(float64)) != math.Float64bits(want) {
					t.Fatalf("round trip = %v, want %v", got, want)
				}
			default:
				if got != want {
					t.Fatalf("round trip = %v, want %v", got, want)
				}
			}
		})
	}
}

func TestToEngine_Widening(t *testing.T) {
	tests := []struct {
		name string
		host any
		want Value
	}{
		{"bool true", true, Integer(1)},
		{"bool false", false, Integer(0)},
		{"int", int(7), Integer(7)},
		{"int8", int8(-8), Integer(-8)},
		{"uint32", uint32(9), Integer(9)},
		{"uint64 in range", uint64(math.MaxInt64), Integer(math.MaxInt64)},
		{"float32", float32(0.5), Float(0.5)},
		{"big.Int in range", big.NewInt(123), Integer(123)},
		{"nil bytes", []byte(nil), Null()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToEngine(tt.host)
			if err != nil {
				t.Fatalf("ToEngine: %v", err)
			}
			if got.Type() != tt.want.Type() || got.Int64() != tt.want.Int64() || got.Float64() != tt.want.Float64() {
				t.Fatalf("ToEngine = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToEngine_Overflow(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 64)

	tests := []struct {
		name string
		host any
	}{
		{"uint64 above range", uint64(math.MaxInt64) + 1},
		{"big.Int above range", huge},
		{"big.Int below range", new(big.Int).Neg(huge)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToEngine(tt.host)
			if err == nil {
				t.Fatal("expected overflow error")
			}
			var structured *sqerrors.Error
			if !errors.As(err, &structured) || structured.Kind != sqerrors.KindOverflow {
				t.Fatalf("error = %v, want overflow kind", err)
			}
		})
	}
}

func TestToEngine_TextConventions(t *testing.T) {
	if _, err := ToEngine("with\x00nul"); !errors.Is(err, &sqerrors.Error{Phase: sqerrors.PhaseMarshal, Kind: sqerrors.KindEmbeddedNul}) {
		t.Fatalf("embedded NUL should be rejected, got %v", err)
	}
	if _, err := ToEngine(string([]byte{0xff, 0xfe, 0xfd})); !errors.Is(err, &sqerrors.Error{Phase: sqerrors.PhaseMarshal, Kind: sqerrors.KindInvalidUTF8}) {
		t.Fatalf("invalid UTF-8 should be rejected, got %v", err)
	}

	// Blobs keep NULs.
	v, err := ToEngine([]byte("with\x00nul"))
	if err != nil {
		t.Fatalf("blob with NUL: %v", err)
	}
	if !bytes.Equal(v.Bytes(), []byte("with\x00nul")) {
		t.Fatal("blob bytes altered")
	}
}

func TestToEngine_Unrepresentable(t *testing.T) {
	_, err := ToEngine(struct{ X int }{1})
	var structured *sqerrors.Error
	if !errors.As(err, &structured) || structured.Kind != sqerrors.KindTypeMismatch {
		t.Fatalf("error = %v, want type mismatch", err)
	}
}

func TestToEngineAll_PositionInError(t *testing.T) {
	_, err := ToEngineAll([]any{1, "ok", make(chan int)})
	if err == nil {
		t.Fatal("expected error")
	}
	if want := "parameter 3"; !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q should name %q", err.Error(), want)
	}
}

func TestValue_Coercion(t *testing.T) {
	tests := []struct {
		name  string
		v     Value
		int64 int64
		float float64
		text  string
	}{
		{"integer", Integer(12), 12, 12, "12"},
		{"float", Float(2.5), 2, 2.5, "2.5"},
		{"numeric text", Text("33"), 33, 33, "33"},
		{"null", Null(), 0, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Int64(); got != tt.int64 {
				t.Errorf("Int64 = %d, want %d", got, tt.int64)
			}
			if got := tt.v.Float64(); got != tt.float {
				t.Errorf("Float64 = %v, want %v", got, tt.float)
			}
			if got := tt.v.Text(); got != tt.text {
				t.Errorf("Text = %q, want %q", got, tt.text)
			}
		})
	}
}

func TestValue_Clone(t *testing.T) {
	src := []byte{1, 2, 3}
	v := Blob(src).Clone()
	src[0] = 99

	if v.Bytes()[0] != 1 {
		t.Fatal("Clone must not alias the source blob")
	}

	// Clone of non-blob is the identity.
	if got := Integer(5).Clone(); got.Int64() != 5 {
		t.Fatal("Clone of integer changed value")
	}
}

func TestZeroValueIsNull(t *testing.T) {
	var v Value
	if !v.IsNull() || v.Type() != TypeNull {
		t.Fatal("zero Value must be NULL")
	}
	if FromEngine(v) != nil {
		t.Fatal("FromEngine(zero) must be nil")
	}
}
