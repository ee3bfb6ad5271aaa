package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/wippyai/sqlite-runtime/errors"
	"github.com/wippyai/sqlite-runtime/registry"
)

// instantiateEnv registers the host side of the boundary: the go_*
// imports the engine build's trampolines call back into. Every import
// resolves the owning Instance from the calling module, then replays
// the opaque context handle through the handle table. WASI is
// instantiated alongside for the build's clock and entropy imports.
func (e *Engine) instantiateEnv(ctx context.Context) error {
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
		return err
	}

	b := e.runtime.NewHostModuleBuilder("env")
	export := func(name string, fn any) {
		b.NewFunctionBuilder().WithFunc(fn).Export(name)
	}

	// Function dispatch.
	export("go_func", e.envFunc)
	export("go_step", e.envStep)
	export("go_final", e.envFinal)
	export("go_value", e.envValue)
	export("go_inverse", e.envInverse)
	export("go_destroy", e.envDestroy)

	// Connection hook dispatch.
	export("go_progress", e.envProgress)
	export("go_busy", e.envBusy)
	export("go_authorizer", e.envAuthorizer)
	export("go_trace", e.envTrace)
	export("go_commit", e.envCommit)
	export("go_rollback", e.envRollback)
	export("go_update", e.envUpdate)

	// Virtual table dispatch.
	export("go_vtab_create", e.envVTabCreate)
	export("go_vtab_connect", e.envVTabConnect)
	export("go_vtab_best_index", e.envVTabBestIndex)
	export("go_vtab_disconnect", e.envVTabDisconnect)
	export("go_vtab_destroy", e.envVTabDestroy)
	export("go_vtab_open", e.envVTabOpen)
	export("go_vtab_close", e.envVTabClose)
	export("go_vtab_filter", e.envVTabFilter)
	export("go_vtab_next", e.envVTabNext)
	export("go_vtab_eof", e.envVTabEOF)
	export("go_vtab_column", e.envVTabColumn)
	export("go_vtab_rowid", e.envVTabRowID)
	export("go_vtab_update", e.envVTabUpdate)
	export("go_vtab_rename", e.envVTabRename)
	export("go_vtab_tx", e.envVTabTx)
	export("go_vtab_savepoint", e.envVTabSavepoint)

	// VFS dispatch.
	export("go_vfs_open", e.envVFSOpen)
	export("go_vfs_delete", e.envVFSDelete)
	export("go_vfs_access", e.envVFSAccess)
	export("go_vfs_fullpathname", e.envVFSFullPathname)
	export("go_file_read", e.envFileRead)
	export("go_file_write", e.envFileWrite)
	export("go_file_truncate", e.envFileTruncate)
	export("go_file_sync", e.envFileSync)
	export("go_file_size", e.envFileSize)
	export("go_file_lock", e.envFileLock)
	export("go_file_unlock", e.envFileUnlock)
	export("go_file_check_reserved_lock", e.envFileCheckReservedLock)
	export("go_file_sector_size", e.envFileSectorSize)
	export("go_file_device_characteristics", e.envFileDeviceCharacteristics)
	export("go_file_close", e.envFileClose)

	_, err := b.Instantiate(ctx)
	return err
}

// rc narrows a result code for the i32 return convention.
func rc(code errors.Code) uint32 {
	return uint32(int32(code))
}

// staleReg reports a replayed context handle with no live registration.
func staleReg(what string) *errors.Error {
	return errors.New(errors.PhaseCallback, errors.KindNotFound).
		Detail("no live %s registration", what).
		Build()
}

func (e *Engine) envFunc(_ context.Context, m api.Module, ctxID uint64, cCtx, argc, argv uint32) {
	i := e.instanceOf(m)
	if i == nil {
		return
	}
	reg := i.resolveFunc(ctxID)
	if reg == nil || reg.fn.Scalar == nil {
		i.resultError(cCtx, staleReg("function"))
		return
	}
	v, err := reg.fn.Scalar(i.valueArgs(argc, argv))
	if err != nil {
		i.resultError(cCtx, err)
		return
	}
	i.resultValue(cCtx, v)
}

func (e *Engine) envStep(_ context.Context, m api.Module, ctxID uint64, cCtx, argc, argv uint32) {
	i := e.instanceOf(m)
	if i == nil {
		return
	}
	reg := i.resolveFunc(ctxID)
	if reg == nil || !reg.fn.hasAggregate() {
		i.resultError(cCtx, staleReg("aggregate"))
		return
	}
	state, _ := i.aggState(reg, cCtx, true)
	if state == nil {
		i.call("sqlite3_result_error_nomem", uint64(cCtx))
		return
	}
	if err := state.Step(i.valueArgs(argc, argv)); err != nil {
		i.resultError(cCtx, err)
	}
}

func (e *Engine) envFinal(_ context.Context, m api.Module, ctxID uint64, cCtx uint32) {
	i := e.instanceOf(m)
	if i == nil {
		return
	}
	reg := i.resolveFunc(ctxID)
	if reg == nil || !reg.fn.hasAggregate() {
		i.resultError(cCtx, staleReg("aggregate"))
		return
	}
	// A group with no stepped rows still finalizes; fresh state gives
	// the function its identity value.
	state, h := i.aggState(reg, cCtx, true)
	if state == nil {
		i.call("sqlite3_result_error_nomem", uint64(cCtx))
		return
	}
	v, err := state.Final()
	i.callbacks.Remove(h)
	if err != nil {
		i.resultError(cCtx, err)
		return
	}
	i.resultValue(cCtx, v)
}

func (e *Engine) envValue(_ context.Context, m api.Module, ctxID uint64, cCtx uint32) {
	i := e.instanceOf(m)
	if i == nil {
		return
	}
	reg := i.resolveFunc(ctxID)
	if reg == nil {
		i.resultError(cCtx, staleReg("window function"))
		return
	}
	state, _ := i.aggState(reg, cCtx, true)
	win, ok := state.(WindowState)
	if !ok {
		i.resultError(cCtx, errors.Unsupported("xValue"))
		return
	}
	v, err := win.Value()
	if err != nil {
		i.resultError(cCtx, err)
		return
	}
	i.resultValue(cCtx, v)
}

func (e *Engine) envInverse(_ context.Context, m api.Module, ctxID uint64, cCtx, argc, argv uint32) {
	i := e.instanceOf(m)
	if i == nil {
		return
	}
	reg := i.resolveFunc(ctxID)
	if reg == nil {
		i.resultError(cCtx, staleReg("window function"))
		return
	}
	state, _ := i.aggState(reg, cCtx, false)
	win, ok := state.(WindowState)
	if !ok {
		i.resultError(cCtx, errors.Unsupported("xInverse"))
		return
	}
	if err := win.Inverse(i.valueArgs(argc, argv)); err != nil {
		i.resultError(cCtx, err)
	}
}

func (e *Engine) envDestroy(_ context.Context, m api.Module, ctxID uint64) {
	if i := e.instanceOf(m); i != nil {
		i.callbacks.Remove(registry.Handle(ctxID))
	}
}

func (e *Engine) envProgress(_ context.Context, m api.Module, ctxID uint64) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return 0
	}
	cs := i.resolveState(ctxID)
	if cs == nil {
		return 0
	}
	if cs.interrupted.Load() {
		return 1
	}
	if cs.progress != nil && cs.progress() {
		return 1
	}
	return 0
}

func (e *Engine) envBusy(_ context.Context, m api.Module, ctxID uint64, count uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return 0
	}
	cs := i.resolveState(ctxID)
	if cs == nil || cs.busy == nil {
		return 0
	}
	if cs.busy(int(int32(count))) {
		return 1
	}
	return 0
}

func (e *Engine) envAuthorizer(_ context.Context, m api.Module, ctxID uint64, action, p1, p2, p3, p4 uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeOK)
	}
	cs := i.resolveState(ctxID)
	if cs == nil || cs.authorizer == nil {
		return rc(errors.CodeOK)
	}
	mem := i.mod.Memory()
	str := func(ptr uint32) string {
		if ptr == 0 {
			return ""
		}
		return readCString(mem, ptr)
	}
	return uint32(cs.authorizer(AuthAction(action), str(p1), str(p2), str(p3), str(p4)))
}

func (e *Engine) envTrace(_ context.Context, m api.Module, ctxID uint64, sqlPtr uint32) {
	i := e.instanceOf(m)
	if i == nil {
		return
	}
	cs := i.resolveState(ctxID)
	if cs == nil || cs.trace == nil {
		return
	}
	cs.trace(readCString(i.mod.Memory(), sqlPtr))
}

func (e *Engine) envCommit(_ context.Context, m api.Module, ctxID uint64) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return 0
	}
	cs := i.resolveState(ctxID)
	if cs == nil || cs.commit == nil {
		return 0
	}
	if cs.commit() {
		return 1
	}
	return 0
}

func (e *Engine) envRollback(_ context.Context, m api.Module, ctxID uint64) {
	i := e.instanceOf(m)
	if i == nil {
		return
	}
	cs := i.resolveState(ctxID)
	if cs == nil || cs.rollback == nil {
		return
	}
	cs.rollback()
}

func (e *Engine) envUpdate(_ context.Context, m api.Module, ctxID uint64, op, dbPtr, tblPtr uint32, rowid uint64) {
	i := e.instanceOf(m)
	if i == nil {
		return
	}
	cs := i.resolveState(ctxID)
	if cs == nil || cs.update == nil {
		return
	}
	mem := i.mod.Memory()
	cs.update(UpdateOp(op), readCString(mem, dbPtr), readCString(mem, tblPtr), int64(rowid))
}

func (e *Engine) envVTabCreate(_ context.Context, m api.Module, modID uint64, argc, argv, outVTab uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeError)
	}
	return rc(i.vtabConstruct(modID, true, argc, argv, outVTab))
}

func (e *Engine) envVTabConnect(_ context.Context, m api.Module, modID uint64, argc, argv, outVTab uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeError)
	}
	return rc(i.vtabConstruct(modID, false, argc, argv, outVTab))
}

func (e *Engine) envVTabBestIndex(_ context.Context, m api.Module, vtabID uint64, infoPtr uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeError)
	}
	return rc(i.vtabBestIndex(vtabID, infoPtr))
}

func (e *Engine) envVTabDisconnect(_ context.Context, m api.Module, vtabID uint64) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeError)
	}
	return rc(i.vtabShutdown(vtabID, false))
}

func (e *Engine) envVTabDestroy(_ context.Context, m api.Module, vtabID uint64) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeError)
	}
	return rc(i.vtabShutdown(vtabID, true))
}

func (e *Engine) envVTabOpen(_ context.Context, m api.Module, vtabID uint64, outCursor uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeError)
	}
	return rc(i.vtabOpen(vtabID, outCursor))
}

func (e *Engine) envVTabClose(_ context.Context, m api.Module, curID uint64) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeError)
	}
	return rc(i.cursorClose(curID))
}

func (e *Engine) envVTabFilter(_ context.Context, m api.Module, curID uint64, idxNum, idxStrPtr, argc, argv uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeError)
	}
	return rc(i.cursorFilter(curID, int32(idxNum), idxStrPtr, argc, argv))
}

func (e *Engine) envVTabNext(_ context.Context, m api.Module, curID uint64) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeError)
	}
	cur := i.cursorResolve(curID)
	if cur == nil {
		return rc(errors.CodeError)
	}
	return rc(CodeForError(cur.Next()))
}

func (e *Engine) envVTabEOF(_ context.Context, m api.Module, curID uint64) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return 1
	}
	cur := i.cursorResolve(curID)
	if cur == nil || cur.EOF() {
		return 1
	}
	return 0
}

func (e *Engine) envVTabColumn(_ context.Context, m api.Module, curID uint64, cCtx, col uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeError)
	}
	return rc(i.cursorColumn(curID, cCtx, col))
}

func (e *Engine) envVTabRowID(_ context.Context, m api.Module, curID uint64, outRowid uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeError)
	}
	return rc(i.cursorRowID(curID, outRowid))
}

func (e *Engine) envVTabUpdate(_ context.Context, m api.Module, vtabID uint64, argc, argv, outRowid uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeError)
	}
	return rc(i.vtabUpdate(vtabID, argc, argv, outRowid))
}

func (e *Engine) envVTabRename(_ context.Context, m api.Module, vtabID uint64, namePtr uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeError)
	}
	return rc(i.vtabRename(vtabID, namePtr))
}

func (e *Engine) envVTabTx(_ context.Context, m api.Module, vtabID uint64, phase uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeError)
	}
	return rc(i.vtabTx(vtabID, phase))
}

func (e *Engine) envVTabSavepoint(_ context.Context, m api.Module, vtabID uint64, phase, n uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeError)
	}
	return rc(i.vtabSavepoint(vtabID, phase, n))
}

func (e *Engine) envVFSOpen(_ context.Context, m api.Module, vfsID uint64, namePtr, flags, outFile, outFlags uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeCantOpen)
	}
	return rc(i.vfsOpen(vfsID, namePtr, flags, outFile, outFlags))
}

func (e *Engine) envVFSDelete(_ context.Context, m api.Module, vfsID uint64, namePtr, syncDir uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeIOErrDelete)
	}
	return rc(i.vfsDelete(vfsID, namePtr, syncDir))
}

func (e *Engine) envVFSAccess(_ context.Context, m api.Module, vfsID uint64, namePtr, flags, outRes uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeIOErr)
	}
	return rc(i.vfsAccess(vfsID, namePtr, flags, outRes))
}

func (e *Engine) envVFSFullPathname(_ context.Context, m api.Module, vfsID uint64, namePtr, bufPtr, bufLen uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeCantOpen)
	}
	return rc(i.vfsFullPathname(vfsID, namePtr, bufPtr, bufLen))
}

func (e *Engine) envFileRead(_ context.Context, m api.Module, fileID uint64, bufPtr, amt uint32, off uint64) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeIOErrRead)
	}
	return rc(i.fileRead(fileID, bufPtr, amt, int64(off)))
}

func (e *Engine) envFileWrite(_ context.Context, m api.Module, fileID uint64, bufPtr, amt uint32, off uint64) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeIOErrWrite)
	}
	return rc(i.fileWrite(fileID, bufPtr, amt, int64(off)))
}

func (e *Engine) envFileTruncate(_ context.Context, m api.Module, fileID uint64, size uint64) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeIOErrTruncate)
	}
	return rc(i.fileTruncate(fileID, int64(size)))
}

func (e *Engine) envFileSync(_ context.Context, m api.Module, fileID uint64, flags uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeIOErrFsync)
	}
	return rc(i.fileSync(fileID, flags))
}

func (e *Engine) envFileSize(_ context.Context, m api.Module, fileID uint64, outPtr uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeIOErr)
	}
	return rc(i.fileSize(fileID, outPtr))
}

func (e *Engine) envFileLock(_ context.Context, m api.Module, fileID uint64, level uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeIOErr)
	}
	return rc(i.fileLock(fileID, level, true))
}

func (e *Engine) envFileUnlock(_ context.Context, m api.Module, fileID uint64, level uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeIOErr)
	}
	return rc(i.fileLock(fileID, level, false))
}

func (e *Engine) envFileCheckReservedLock(_ context.Context, m api.Module, fileID uint64, outPtr uint32) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeIOErr)
	}
	return rc(i.fileCheckReservedLock(fileID, outPtr))
}

func (e *Engine) envFileSectorSize(_ context.Context, m api.Module, fileID uint64) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return 0
	}
	file := i.fileResolve(fileID)
	if file == nil {
		return 0
	}
	return uint32(file.SectorSize())
}

func (e *Engine) envFileDeviceCharacteristics(_ context.Context, m api.Module, fileID uint64) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return 0
	}
	file := i.fileResolve(fileID)
	if file == nil {
		return 0
	}
	return file.DeviceCharacteristics()
}

func (e *Engine) envFileClose(_ context.Context, m api.Module, fileID uint64) uint32 {
	i := e.instanceOf(m)
	if i == nil {
		return rc(errors.CodeIOErr)
	}
	return rc(i.fileClose(fileID))
}
