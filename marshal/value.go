package marshal

import (
	"fmt"
	"strconv"
)

// Type is an engine storage class.
type Type uint8

const (
	TypeNull Type = iota + 1
	TypeInteger
	TypeFloat
	TypeText
	TypeBlob
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeText:
		return "text"
	case TypeBlob:
		return "blob"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Value is a single engine value. The zero Value is Null.
type Value struct {
	s   string
	b   []byte
	n   int64
	f   float64
	typ Type
}

// Null returns the NULL value.
func Null() Value {
	return Value{typ: TypeNull}
}

// Integer returns a 64-bit integer value.
func Integer(n int64) Value {
	return Value{typ: TypeInteger, n: n}
}

// Float returns a double-precision float value.
func Float(f float64) Value {
	return Value{typ: TypeFloat, f: f}
}

// Text returns a text value.
func Text(s string) Value {
	return Value{typ: TypeText, s: s}
}

// Blob returns a blob value. The byte slice is not copied; use Clone
// if the caller keeps mutating it.
func Blob(b []byte) Value {
	return Value{typ: TypeBlob, b: b}
}

// Type returns the value's storage class.
func (v Value) Type() Type {
	if v.typ == 0 {
		return TypeNull
	}
	return v.typ
}

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool {
	return v.Type() == TypeNull
}

// Int64 returns the value as an integer, applying the engine's numeric
// coercion for floats and text.
func (v Value) Int64() int64 {
	switch v.typ {
	case TypeInteger:
		return v.n
	case TypeFloat:
		return int64(v.f)
	case TypeText:
		n, _ := strconv.ParseInt(v.s, 10, 64)
		return n
	default:
		return 0
	}
}

// Float64 returns the value as a float, applying numeric coercion.
func (v Value) Float64() float64 {
	switch v.typ {
	case TypeInteger:
		return float64(v.n)
	case TypeFloat:
		return v.f
	case TypeText:
		f, _ := strconv.ParseFloat(v.s, 64)
		return f
	default:
		return 0
	}
}

// Text returns the value as text. Integers and floats render the way
// the engine renders them; blobs return their bytes unchanged.
func (v Value) Text() string {
	switch v.typ {
	case TypeInteger:
		return strconv.FormatInt(v.n, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeText:
		return v.s
	case TypeBlob:
		return string(v.b)
	default:
		return ""
	}
}

// Bytes returns the raw bytes of a text or blob value, nil otherwise.
// Blob bytes are returned without copying.
func (v Value) Bytes() []byte {
	switch v.typ {
	case TypeText:
		return []byte(v.s)
	case TypeBlob:
		return v.b
	default:
		return nil
	}
}

// Clone returns a Value whose blob content is an independent copy.
// Non-blob values are returned unchanged (they are already immutable).
func (v Value) Clone() Value {
	if v.typ != TypeBlob || v.b == nil {
		return v
	}
	dup := make([]byte, len(v.b))
	copy(dup, v.b)
	v.b = dup
	return v
}

func (v Value) String() string {
	switch v.Type() {
	case TypeNull:
		return "NULL"
	case TypeBlob:
		return fmt.Sprintf("x'%x'", v.b)
	case TypeText:
		return strconv.Quote(v.s)
	default:
		return v.Text()
	}
}
