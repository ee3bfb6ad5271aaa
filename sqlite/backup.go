package sqlite

import (
	"github.com/wippyai/sqlite-runtime/engine"
	"github.com/wippyai/sqlite-runtime/errors"
)

// Backup copies a database between two connections page by page. Both
// connections must stay open for the backup's lifetime and belong to
// the same owner goroutine while the backup runs.
type Backup struct {
	dst    *Conn
	h      engine.Backup
	closed bool
}

// Backup starts copying srcName of src into dstName of c. Names are
// "main" for the primary database. The copy runs through Step.
func (c *Conn) Backup(dstName string, src *Conn, srcName string) (*Backup, error) {
	c.gate.Enter()
	defer c.gate.Exit()
	if c.closed {
		return nil, errors.Closed(errors.PhaseBackup, "connection")
	}
	if !c.api.Supports(engine.FeatureBackup) {
		return nil, errors.Unsupported("backup api")
	}
	h, code := c.api.BackupInit(c.db, dstName, src.db, srcName)
	if code != errors.CodeOK {
		return nil, errors.TranslateAt(errors.PhaseBackup, code, c.api.ExtendedErrCode(c.db), c.api.ErrMsg(c.db))
	}
	return &Backup{dst: c, h: h}, nil
}

// Step copies up to pages pages, all remaining pages when pages is
// negative. It returns done true once the source is fully copied.
// Busy and locked conditions are returned as errors but leave the
// backup resumable.
func (b *Backup) Step(pages int) (done bool, err error) {
	b.dst.gate.Enter()
	defer b.dst.gate.Exit()
	if b.closed {
		return false, errors.Closed(errors.PhaseBackup, "backup")
	}
	switch code := b.dst.api.BackupStep(b.h, pages); code {
	case errors.CodeOK:
		return false, nil
	case errors.CodeDone:
		return true, nil
	default:
		return false, codeError(errors.PhaseBackup, code)
	}
}

// Remaining returns the number of pages still to copy after the last
// Step.
func (b *Backup) Remaining() int {
	b.dst.gate.Enter()
	defer b.dst.gate.Exit()
	if b.closed {
		return 0
	}
	return b.dst.api.BackupRemaining(b.h)
}

// PageCount returns the source's total page count as of the last Step.
func (b *Backup) PageCount() int {
	b.dst.gate.Enter()
	defer b.dst.gate.Exit()
	if b.closed {
		return 0
	}
	return b.dst.api.BackupPageCount(b.h)
}

// Finish releases the backup. It returns the first error the backup
// encountered, if any. Finishing twice is a no-op.
func (b *Backup) Finish() error {
	b.dst.gate.Enter()
	defer b.dst.gate.Exit()
	if b.closed {
		return nil
	}
	b.closed = true
	return errorOrNil(errors.PhaseBackup, b.dst.api.BackupFinish(b.h))
}
