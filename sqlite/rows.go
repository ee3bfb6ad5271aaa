package sqlite

import "github.com/wippyai/sqlite-runtime/marshal"

// Rows is a forward-only cursor over a query's results. It borrows the
// underlying statement; Close releases it.
type Rows struct {
	stmt *Stmt
	err  error
	done bool
}

// Next advances to the next row. It returns false at the end of the
// result set or on error; check Err afterwards.
func (r *Rows) Next() bool {
	if r.err != nil || r.done {
		return false
	}
	row, err := r.stmt.Step()
	if err != nil {
		r.err = err
		return false
	}
	if !row {
		r.done = true
	}
	return row
}

// Err returns the error that terminated iteration, if any.
func (r *Rows) Err() error {
	return r.err
}

// Close releases the cursor and its statement.
func (r *Rows) Close() error {
	return r.stmt.Close()
}

// ColumnCount returns the number of result columns.
func (r *Rows) ColumnCount() int {
	return r.stmt.ColumnCount()
}

// ColumnName returns the i-th column's name, 0-based.
func (r *Rows) ColumnName(i int) string {
	return r.stmt.ColumnName(i)
}

// Value returns the i-th column of the current row.
func (r *Rows) Value(i int) marshal.Value {
	return r.stmt.ColumnValue(i)
}

// Int64 returns the i-th column coerced to an integer.
func (r *Rows) Int64(i int) int64 {
	return r.stmt.ColumnInt64(i)
}

// Float64 returns the i-th column coerced to a float.
func (r *Rows) Float64(i int) float64 {
	return r.stmt.ColumnFloat64(i)
}

// Text returns the i-th column coerced to text.
func (r *Rows) Text(i int) string {
	return r.stmt.ColumnText(i)
}

// Bytes returns the i-th column as a blob.
func (r *Rows) Bytes(i int) []byte {
	return r.stmt.ColumnBytes(i)
}

// IsNull reports whether the i-th column of the current row is null.
func (r *Rows) IsNull(i int) bool {
	return r.stmt.ColumnIsNull(i)
}
