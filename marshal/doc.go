// Package marshal converts values between the engine's typed-value
// representation and Go host values.
//
// The engine knows five storage classes:
//
//	Type        Engine          Go
//	─────────────────────────────────────
//	Null        NULL            nil
//	Integer     64-bit signed   int64
//	Float       IEEE double     float64
//	Text        UTF-8 bytes     string
//	Blob        raw bytes       []byte
//
// ToEngine widens the accepted Go set (signed/unsigned integers, bool,
// float32, *big.Int) but every widening is checked: an unsigned or
// big value that does not fit the engine's signed 64-bit integer range
// is an overflow error, never a silent float. Text with embedded NUL
// bytes is rejected; blobs keep NULs byte-for-byte.
//
// FromEngine is total and lossless: round trips of the four non-null
// storage classes are bit-for-bit exact.
//
// # Borrowed memory
//
// Text and blob content read out of engine memory is only valid within
// the current row or callback scope. The engine layer copies it before
// constructing a Value, so Values never alias engine memory. Clone
// exists for the one direction where the host hands a blob in and wants
// to keep mutating the original.
package marshal
