package engine

import (
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/sqlite-runtime/errors"
	"github.com/wippyai/sqlite-runtime/registry"
)

func (i *Instance) RegisterVFS(name string, vfs *VFSCallbacks, makeDefault bool) errors.Code {
	if !i.has("sqlite3_vfs_register_go") {
		Logger().Warn("engine build lacks vfs registration shim")
		return errors.CodeError
	}
	if vfs == nil || vfs.Open == nil {
		return errors.CodeMisuse
	}

	i.vfsMu.Lock()
	defer i.vfsMu.Unlock()
	if _, ok := i.vfsNames[name]; ok {
		return errors.CodeMisuse
	}

	a := i.arena()
	defer a.release()
	namePtr := a.cstring(name)
	if namePtr == 0 {
		return errors.CodeNoMem
	}

	h := i.callbacks.Insert(registry.TypeVFS, vfs)
	if h == registry.Zero {
		return errors.CodeMisuse
	}
	var dflt uint64
	if makeDefault {
		dflt = 1
	}
	rc := i.code("sqlite3_vfs_register_go", uint64(namePtr), uint64(h), dflt)
	if rc != errors.CodeOK {
		i.callbacks.Remove(h)
		return rc
	}
	i.vfsNames[name] = h
	return rc
}

func (i *Instance) UnregisterVFS(name string) errors.Code {
	if !i.has("sqlite3_vfs_unregister_go") {
		return errors.CodeError
	}

	i.vfsMu.Lock()
	defer i.vfsMu.Unlock()
	h, ok := i.vfsNames[name]
	if !ok {
		return errors.CodeNotFound
	}

	a := i.arena()
	defer a.release()
	namePtr := a.cstring(name)
	if namePtr == 0 {
		return errors.CodeNoMem
	}
	rc := i.code("sqlite3_vfs_unregister_go", uint64(namePtr))
	if rc == errors.CodeOK {
		delete(i.vfsNames, name)
		i.callbacks.Remove(h)
	}
	return rc
}

func (i *Instance) vfsResolve(vfsID uint64) *VFSCallbacks {
	v, ok := i.callbacks.GetTyped(registry.Handle(vfsID), registry.TypeVFS)
	if !ok {
		Logger().Error("stale vfs handle", zap.Uint64("vfs", vfsID))
		return nil
	}
	return v.(*VFSCallbacks)
}

func (i *Instance) vfsOpen(vfsID uint64, namePtr, flags, outFile, outFlags uint32) errors.Code {
	vfs := i.vfsResolve(vfsID)
	if vfs == nil {
		return errors.CodeError
	}
	var name string
	if namePtr != 0 {
		name = readCString(i.mod.Memory(), namePtr)
	}
	file, openedFlags, err := vfs.Open(name, OpenFlags(flags))
	if err != nil {
		if code := CodeForError(err); code != errors.CodeError {
			return code
		}
		return errors.CodeCantOpen
	}
	h := i.callbacks.Insert(registry.TypeVFSFile, file)
	if h == registry.Zero {
		file.Close()
		return errors.CodeCantOpen
	}
	mem := i.mod.Memory()
	mem.WriteUint64Le(outFile, uint64(h))
	if outFlags != 0 {
		mem.WriteUint32Le(outFlags, uint32(openedFlags))
	}
	return errors.CodeOK
}

func (i *Instance) vfsDelete(vfsID uint64, namePtr, syncDir uint32) errors.Code {
	vfs := i.vfsResolve(vfsID)
	if vfs == nil {
		return errors.CodeError
	}
	if vfs.Delete == nil {
		return errors.CodeIOErrDelete
	}
	name := readCString(i.mod.Memory(), namePtr)
	if err := vfs.Delete(name, syncDir != 0); err != nil {
		if code := CodeForError(err); code != errors.CodeError {
			return code
		}
		return errors.CodeIOErrDelete
	}
	return errors.CodeOK
}

func (i *Instance) vfsAccess(vfsID uint64, namePtr, flags, outRes uint32) errors.Code {
	vfs := i.vfsResolve(vfsID)
	if vfs == nil {
		return errors.CodeError
	}
	var exists bool
	if vfs.Access != nil {
		name := readCString(i.mod.Memory(), namePtr)
		var err error
		exists, err = vfs.Access(name, AccessFlags(flags))
		if err != nil {
			return errors.CodeIOErr
		}
	}
	var res uint32
	if exists {
		res = 1
	}
	i.mod.Memory().WriteUint32Le(outRes, res)
	return errors.CodeOK
}

func (i *Instance) vfsFullPathname(vfsID uint64, namePtr, bufPtr, bufLen uint32) errors.Code {
	vfs := i.vfsResolve(vfsID)
	if vfs == nil {
		return errors.CodeError
	}
	name := readCString(i.mod.Memory(), namePtr)
	full := name
	if vfs.FullPathname != nil {
		var err error
		if full, err = vfs.FullPathname(name); err != nil {
			return errors.CodeCantOpen
		}
	}
	if uint32(len(full))+1 > bufLen {
		return errors.CodeCantOpen
	}
	mem := i.mod.Memory()
	mem.Write(bufPtr, []byte(full))
	mem.WriteByte(bufPtr+uint32(len(full)), 0)
	return errors.CodeOK
}

func (i *Instance) fileResolve(fileID uint64) VFSFile {
	v, ok := i.callbacks.GetTyped(registry.Handle(fileID), registry.TypeVFSFile)
	if !ok {
		Logger().Error("stale file handle", zap.Uint64("file", fileID))
		return nil
	}
	return v.(VFSFile)
}

// fileRead fills the engine's buffer from the file. A read past the end
// zero-fills the remainder and reports the short-read code, which the
// engine expects rather than a hard failure.
func (i *Instance) fileRead(fileID uint64, bufPtr, amt uint32, off int64) errors.Code {
	file := i.fileResolve(fileID)
	if file == nil {
		return errors.CodeIOErrRead
	}
	buf := make([]byte, amt)
	n, err := file.ReadAt(buf, off)
	mem := i.mod.Memory()
	if err != nil && err != io.EOF {
		return errors.CodeIOErrRead
	}
	mem.Write(bufPtr, buf)
	if uint32(n) < amt {
		return errors.CodeIOErrShortRead
	}
	return errors.CodeOK
}

func (i *Instance) fileWrite(fileID uint64, bufPtr, amt uint32, off int64) errors.Code {
	file := i.fileResolve(fileID)
	if file == nil {
		return errors.CodeIOErrWrite
	}
	buf, ok := i.mod.Memory().Read(bufPtr, amt)
	if !ok {
		return errors.CodeIOErrWrite
	}
	if _, err := file.WriteAt(buf, off); err != nil {
		if code := CodeForError(err); code != errors.CodeError {
			return code
		}
		return errors.CodeIOErrWrite
	}
	return errors.CodeOK
}

func (i *Instance) fileTruncate(fileID uint64, size int64) errors.Code {
	file := i.fileResolve(fileID)
	if file == nil {
		return errors.CodeIOErrTruncate
	}
	if err := file.Truncate(size); err != nil {
		return errors.CodeIOErrTruncate
	}
	return errors.CodeOK
}

func (i *Instance) fileSync(fileID uint64, flags uint32) errors.Code {
	file := i.fileResolve(fileID)
	if file == nil {
		return errors.CodeIOErrFsync
	}
	if err := file.Sync(SyncFlags(flags)); err != nil {
		return errors.CodeIOErrFsync
	}
	return errors.CodeOK
}

func (i *Instance) fileSize(fileID uint64, outPtr uint32) errors.Code {
	file := i.fileResolve(fileID)
	if file == nil {
		return errors.CodeIOErr
	}
	size, err := file.Size()
	if err != nil {
		return errors.CodeIOErr
	}
	i.mod.Memory().WriteUint64Le(outPtr, uint64(size))
	return errors.CodeOK
}

func (i *Instance) fileLock(fileID uint64, level uint32, acquire bool) errors.Code {
	file := i.fileResolve(fileID)
	if file == nil {
		return errors.CodeIOErr
	}
	var err error
	if acquire {
		err = file.Lock(LockLevel(level))
	} else {
		err = file.Unlock(LockLevel(level))
	}
	if err != nil {
		if code := CodeForError(err); code != errors.CodeError {
			return code
		}
		return errors.CodeBusy
	}
	return errors.CodeOK
}

func (i *Instance) fileCheckReservedLock(fileID uint64, outPtr uint32) errors.Code {
	file := i.fileResolve(fileID)
	if file == nil {
		return errors.CodeIOErr
	}
	held, err := file.CheckReservedLock()
	if err != nil {
		return errors.CodeIOErr
	}
	var res uint32
	if held {
		res = 1
	}
	i.mod.Memory().WriteUint32Le(outPtr, res)
	return errors.CodeOK
}

func (i *Instance) fileClose(fileID uint64) errors.Code {
	file := i.fileResolve(fileID)
	if file == nil {
		return errors.CodeIOErr
	}
	i.callbacks.Remove(registry.Handle(fileID))
	if err := file.Close(); err != nil {
		return errors.CodeIOErr
	}
	return errors.CodeOK
}
