package sqlite

import (
	"io"

	"github.com/wippyai/sqlite-runtime/engine"
	"github.com/wippyai/sqlite-runtime/errors"
)

// Blob reads and writes one blob value incrementally, without loading
// it whole. The blob's size is fixed at open; writes cannot grow it.
type Blob struct {
	conn   *Conn
	h      engine.Blob
	size   int
	write  bool
	closed bool
}

// OpenBlob opens the blob stored at (dbName, table, column, row).
// dbName is "main" for the primary database. With write false the
// handle is read-only.
func (c *Conn) OpenBlob(dbName, table, column string, row int64, write bool) (*Blob, error) {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return nil, errors.Closed(errors.PhaseBlob, "connection")
	}
	if !c.api.Supports(engine.FeatureBlob) {
		return nil, errors.Unsupported("incremental blob io")
	}
	h, code := c.api.BlobOpen(c.db, dbName, table, column, row, write)
	if code != errors.CodeOK {
		return nil, errors.TranslateAt(errors.PhaseBlob, code, c.api.ExtendedErrCode(c.db), c.api.ErrMsg(c.db))
	}
	return &Blob{conn: c, h: h, size: c.api.BlobBytes(h), write: write}, nil
}

// Size returns the blob's length in bytes.
func (b *Blob) Size() int {
	return b.size
}

// ReadAt reads len(p) bytes starting at off. Reads crossing the end of
// the blob are truncated and return io.EOF.
func (b *Blob) ReadAt(p []byte, off int64) (int, error) {
	b.conn.gate.Enter()
	defer b.conn.gate.Exit()
	if b.closed {
		return 0, errors.Closed(errors.PhaseBlob, "blob")
	}
	if off < 0 || off > int64(b.size) {
		return 0, errors.InvalidInput(errors.PhaseBlob, "offset out of range")
	}
	n := len(p)
	eof := false
	if int64(n) > int64(b.size)-off {
		n = int(int64(b.size) - off)
		eof = true
	}
	if n > 0 {
		if code := b.conn.api.BlobRead(b.h, int(off), p[:n]); code != errors.CodeOK {
			return 0, codeError(errors.PhaseBlob, code)
		}
	}
	if eof {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt writes p starting at off. The write must fit inside the
// blob's current size.
func (b *Blob) WriteAt(p []byte, off int64) (int, error) {
	b.conn.gate.Enter()
	defer b.conn.gate.Exit()
	if b.closed {
		return 0, errors.Closed(errors.PhaseBlob, "blob")
	}
	if !b.write {
		return 0, codeError(errors.PhaseBlob, errors.CodeReadOnly)
	}
	if off < 0 || off+int64(len(p)) > int64(b.size) {
		return 0, errors.InvalidInput(errors.PhaseBlob, "write outside blob bounds")
	}
	if len(p) == 0 {
		return 0, nil
	}
	if code := b.conn.api.BlobWrite(b.h, int(off), p); code != errors.CodeOK {
		return 0, codeError(errors.PhaseBlob, code)
	}
	return len(p), nil
}

// Reopen moves the handle to another row of the same table and column.
// Cheaper than close and reopen.
func (b *Blob) Reopen(row int64) error {
	b.conn.gate.Enter()
	defer b.conn.gate.Exit()
	if b.closed {
		return errors.Closed(errors.PhaseBlob, "blob")
	}
	if code := b.conn.api.BlobReopen(b.h, row); code != errors.CodeOK {
		return codeError(errors.PhaseBlob, code)
	}
	b.size = b.conn.api.BlobBytes(b.h)
	return nil
}

// Close releases the handle. Closing twice is a no-op.
func (b *Blob) Close() error {
	b.conn.gate.Enter()
	defer b.conn.gate.Exit()
	if b.closed {
		return nil
	}
	b.closed = true
	return errorOrNil(errors.PhaseClose, b.conn.api.BlobClose(b.h))
}
