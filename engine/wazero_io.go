package engine

import (
	"github.com/wippyai/sqlite-runtime/errors"
)

func (i *Instance) BackupInit(dst Conn, dstName string, src Conn, srcName string) (Backup, errors.Code) {
	a := i.arena()
	defer a.release()

	dstPtr := a.cstring(dstName)
	srcPtr := a.cstring(srcName)
	if dstPtr == 0 || srcPtr == 0 {
		return 0, errors.CodeNoMem
	}

	ptr, ok := i.call("sqlite3_backup_init",
		uint64(dst), uint64(dstPtr), uint64(src), uint64(srcPtr))
	if !ok {
		return 0, errors.CodeInternal
	}
	if ptr == 0 {
		// The failure detail lives in the destination connection.
		return 0, i.ErrCode(dst)
	}
	return Backup(uint32(ptr)), errors.CodeOK
}

func (i *Instance) BackupStep(b Backup, pages int) errors.Code {
	return i.code("sqlite3_backup_step", uint64(b), uint64(uint32(int32(pages))))
}

func (i *Instance) BackupRemaining(b Backup) int {
	return int(i.i32("sqlite3_backup_remaining", uint64(b)))
}

func (i *Instance) BackupPageCount(b Backup) int {
	return int(i.i32("sqlite3_backup_pagecount", uint64(b)))
}

func (i *Instance) BackupFinish(b Backup) errors.Code {
	if b == 0 {
		return errors.CodeOK
	}
	return i.code("sqlite3_backup_finish", uint64(b))
}

func (i *Instance) BlobOpen(db Conn, dbName, table, column string, row int64, write bool) (Blob, errors.Code) {
	a := i.arena()
	defer a.release()

	dbPtr := a.cstring(dbName)
	tblPtr := a.cstring(table)
	colPtr := a.cstring(column)
	ppBlob := a.out4()
	if dbPtr == 0 || tblPtr == 0 || colPtr == 0 || ppBlob == 0 {
		return 0, errors.CodeNoMem
	}

	var flags uint64
	if write {
		flags = 1
	}
	rc := i.code("sqlite3_blob_open",
		uint64(db), uint64(dbPtr), uint64(tblPtr), uint64(colPtr),
		uint64(row), flags, uint64(ppBlob))

	blobv, _ := i.mod.Memory().ReadUint32Le(ppBlob)
	return Blob(blobv), rc
}

func (i *Instance) BlobBytes(b Blob) int {
	return int(i.i32("sqlite3_blob_bytes", uint64(b)))
}

func (i *Instance) BlobRead(b Blob, off int, p []byte) errors.Code {
	if len(p) == 0 {
		return errors.CodeOK
	}
	a := i.arena()
	defer a.release()

	ptr := a.alloc(uint32(len(p)))
	if ptr == 0 {
		return errors.CodeNoMem
	}
	rc := i.code("sqlite3_blob_read",
		uint64(b), uint64(ptr), uint64(uint32(len(p))), uint64(uint32(int32(off))))
	if rc == errors.CodeOK {
		data, ok := i.mod.Memory().Read(ptr, uint32(len(p)))
		if !ok {
			return errors.CodeInternal
		}
		copy(p, data)
	}
	return rc
}

func (i *Instance) BlobWrite(b Blob, off int, p []byte) errors.Code {
	if len(p) == 0 {
		return errors.CodeOK
	}
	a := i.arena()
	defer a.release()

	ptr := a.bytes(p)
	if ptr == 0 {
		return errors.CodeNoMem
	}
	return i.code("sqlite3_blob_write",
		uint64(b), uint64(ptr), uint64(uint32(len(p))), uint64(uint32(int32(off))))
}

func (i *Instance) BlobReopen(b Blob, row int64) errors.Code {
	return i.code("sqlite3_blob_reopen", uint64(b), uint64(row))
}

func (i *Instance) BlobClose(b Blob) errors.Code {
	if b == 0 {
		return errors.CodeOK
	}
	return i.code("sqlite3_blob_close", uint64(b))
}
