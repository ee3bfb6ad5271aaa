package bridge

import (
	"github.com/wippyai/sqlite-runtime/engine"
)

// VFS wraps host file-system callbacks. File objects returned by Open
// are wrapped so their methods run under the same discipline.
func (b *Bridge) VFS(name string, vfs engine.VFSCallbacks) engine.VFSCallbacks {
	site := "vfs " + name
	out := engine.VFSCallbacks{}

	if vfs.Open != nil {
		out.Open = func(path string, flags engine.OpenFlags) (engine.VFSFile, engine.OpenFlags, error) {
			var (
				file   engine.VFSFile
				opened engine.OpenFlags
			)
			err := b.guard(site+": Open", func() error {
				var inner error
				file, opened, inner = vfs.Open(path, flags)
				return inner
			})
			if err != nil {
				return nil, 0, err
			}
			return &guardedFile{b: b, site: site, file: file}, opened, nil
		}
	}
	if vfs.Delete != nil {
		out.Delete = func(path string, syncDir bool) error {
			return b.guard(site+": Delete", func() error {
				return vfs.Delete(path, syncDir)
			})
		}
	}
	if vfs.Access != nil {
		out.Access = func(path string, flags engine.AccessFlags) (bool, error) {
			var exists bool
			err := b.guard(site+": Access", func() error {
				var inner error
				exists, inner = vfs.Access(path, flags)
				return inner
			})
			return exists, err
		}
	}
	if vfs.FullPathname != nil {
		out.FullPathname = func(path string) (string, error) {
			var full string
			err := b.guard(site+": FullPathname", func() error {
				var inner error
				full, inner = vfs.FullPathname(path)
				return inner
			})
			return full, err
		}
	}
	return out
}

type guardedFile struct {
	b    *Bridge
	site string
	file engine.VFSFile
}

func (g *guardedFile) ReadAt(p []byte, off int64) (int, error) {
	var n int
	err := g.b.guard(g.site+": ReadAt", func() error {
		var inner error
		n, inner = g.file.ReadAt(p, off)
		return inner
	})
	return n, err
}

func (g *guardedFile) WriteAt(p []byte, off int64) (int, error) {
	var n int
	err := g.b.guard(g.site+": WriteAt", func() error {
		var inner error
		n, inner = g.file.WriteAt(p, off)
		return inner
	})
	return n, err
}

func (g *guardedFile) Truncate(size int64) error {
	return g.b.guard(g.site+": Truncate", func() error {
		return g.file.Truncate(size)
	})
}

func (g *guardedFile) Sync(flags engine.SyncFlags) error {
	return g.b.guard(g.site+": Sync", func() error {
		return g.file.Sync(flags)
	})
}

func (g *guardedFile) Size() (int64, error) {
	var size int64
	err := g.b.guard(g.site+": Size", func() error {
		var inner error
		size, inner = g.file.Size()
		return inner
	})
	return size, err
}

func (g *guardedFile) Lock(level engine.LockLevel) error {
	return g.b.guard(g.site+": Lock", func() error {
		return g.file.Lock(level)
	})
}

func (g *guardedFile) Unlock(level engine.LockLevel) error {
	return g.b.guard(g.site+": Unlock", func() error {
		return g.file.Unlock(level)
	})
}

func (g *guardedFile) CheckReservedLock() (bool, error) {
	var held bool
	err := g.b.guard(g.site+": CheckReservedLock", func() error {
		var inner error
		held, inner = g.file.CheckReservedLock()
		return inner
	})
	return held, err
}

func (g *guardedFile) SectorSize() int {
	size := 0
	g.b.guard(g.site+": SectorSize", func() error {
		size = g.file.SectorSize()
		return nil
	})
	return size
}

func (g *guardedFile) DeviceCharacteristics() uint32 {
	var iocap uint32
	g.b.guard(g.site+": DeviceCharacteristics", func() error {
		iocap = g.file.DeviceCharacteristics()
		return nil
	})
	return iocap
}

func (g *guardedFile) Close() error {
	return g.b.guard(g.site+": Close", func() error {
		return g.file.Close()
	})
}
