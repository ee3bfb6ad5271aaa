package marshal

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/wippyai/sqlite-runtime/errors"
)

// ToEngine converts a Go host value into an engine value.
//
// Accepted: nil, bool, all signed and unsigned integer types, float32,
// float64, string, []byte, *big.Int, and Value itself (passed through).
// Unsigned and big integers that exceed the engine's signed 64-bit
// range produce an overflow error rather than a lossy float.
func ToEngine(host any) (Value, error) {
	switch v := host.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case bool:
		if v {
			return Integer(1), nil
		}
		return Integer(0), nil
	case int:
		return Integer(int64(v)), nil
	case int8:
		return Integer(int64(v)), nil
	case int16:
		return Integer(int64(v)), nil
	case int32:
		return Integer(int64(v)), nil
	case int64:
		return Integer(v), nil
	case uint:
		return uintValue(uint64(v))
	case uint8:
		return Integer(int64(v)), nil
	case uint16:
		return Integer(int64(v)), nil
	case uint32:
		return Integer(int64(v)), nil
	case uint64:
		return uintValue(v)
	case uintptr:
		return uintValue(uint64(v))
	case float32:
		return Float(float64(v)), nil
	case float64:
		return Float(v), nil
	case string:
		if err := checkText(v); err != nil {
			return Value{}, err
		}
		return Text(v), nil
	case []byte:
		if v == nil {
			return Null(), nil
		}
		return Blob(v), nil
	case *big.Int:
		if v == nil {
			return Null(), nil
		}
		if !v.IsInt64() {
			return Value{}, errors.Overflow(v.String(), "int64")
		}
		return Integer(v.Int64()), nil
	default:
		return Value{}, errors.TypeMismatch(fmt.Sprintf("%T", host))
	}
}

// FromEngine converts an engine value into its canonical Go host
// representation: nil, int64, float64, string or []byte. The mapping
// is total and, for the four non-null storage classes, lossless.
func FromEngine(v Value) any {
	switch v.Type() {
	case TypeInteger:
		return v.n
	case TypeFloat:
		return v.f
	case TypeText:
		return v.s
	case TypeBlob:
		return v.b
	default:
		return nil
	}
}

// ToEngineAll converts a parameter list, reporting the first failure
// with its one-based position.
func ToEngineAll(hosts []any) ([]Value, error) {
	vals := make([]Value, len(hosts))
	for i, h := range hosts {
		v, err := ToEngine(h)
		if err != nil {
			return nil, errors.New(errors.PhaseBind, errors.KindTypeMismatch).
				Cause(err).
				Detail("parameter %d", i+1).
				Build()
		}
		vals[i] = v
	}
	return vals, nil
}

func uintValue(v uint64) (Value, error) {
	if v > math.MaxInt64 {
		return Value{}, errors.Overflow(v, "int64")
	}
	return Integer(int64(v)), nil
}

// checkText enforces the engine's text conventions: valid UTF-8, no
// embedded NUL. NULs stay legal in blobs.
func checkText(s string) error {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return errors.EmbeddedNul(i)
	}
	if !utf8.ValidString(s) {
		return errors.InvalidUTF8([]byte(s))
	}
	return nil
}
