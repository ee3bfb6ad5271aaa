package bridge

import (
	"github.com/wippyai/sqlite-runtime/engine"
	"github.com/wippyai/sqlite-runtime/errors"
	"github.com/wippyai/sqlite-runtime/marshal"
)

// Module wraps a virtual table module's constructors so every table
// and cursor they produce runs under the gate's re-entry discipline.
func (b *Bridge) Module(name string, mod engine.ModuleCallbacks) engine.ModuleCallbacks {
	site := "vtab module " + name
	wrap := func(ctor engine.VTabConstructor, slot string) engine.VTabConstructor {
		if ctor == nil {
			return nil
		}
		return func(args []string, declare func(schema string) error) (engine.VTab, error) {
			var vtab engine.VTab
			err := b.guard(site+": "+slot, func() error {
				var inner error
				vtab, inner = ctor(args, declare)
				return inner
			})
			if err != nil {
				return nil, err
			}
			return &guardedVTab{b: b, site: site, vtab: vtab}, nil
		}
	}
	return engine.ModuleCallbacks{
		Create:  wrap(mod.Create, "Create"),
		Connect: wrap(mod.Connect, "Connect"),
	}
}

// guardedVTab implements every table extension interface and delegates
// to whichever the wrapped table actually carries. Operations the table
// does not support behave the way the engine treats an absent slot:
// updates fail read-only, renames fail, transaction phases are no-ops.
type guardedVTab struct {
	b    *Bridge
	site string
	vtab engine.VTab
}

var (
	_ engine.VTabUpdater     = (*guardedVTab)(nil)
	_ engine.VTabRenamer     = (*guardedVTab)(nil)
	_ engine.VTabSavepointer = (*guardedVTab)(nil)
)

func (g *guardedVTab) BestIndex(info *engine.IndexInfo) error {
	return g.b.guard(g.site+": BestIndex", func() error {
		return g.vtab.BestIndex(info)
	})
}

func (g *guardedVTab) Open() (engine.VTabCursor, error) {
	var cur engine.VTabCursor
	err := g.b.guard(g.site+": Open", func() error {
		var inner error
		cur, inner = g.vtab.Open()
		return inner
	})
	if err != nil {
		return nil, err
	}
	return &guardedCursor{b: g.b, site: g.site, cur: cur}, nil
}

func (g *guardedVTab) Disconnect() error {
	return g.b.guard(g.site+": Disconnect", func() error {
		return g.vtab.Disconnect()
	})
}

func (g *guardedVTab) Destroy() error {
	return g.b.guard(g.site+": Destroy", func() error {
		return g.vtab.Destroy()
	})
}

func (g *guardedVTab) Update(args []marshal.Value) (int64, error) {
	up, ok := g.vtab.(engine.VTabUpdater)
	if !ok {
		return 0, errors.CodeReadOnly
	}
	var rowid int64
	err := g.b.guard(g.site+": Update", func() error {
		var inner error
		rowid, inner = up.Update(args)
		return inner
	})
	return rowid, err
}

func (g *guardedVTab) Rename(name string) error {
	rn, ok := g.vtab.(engine.VTabRenamer)
	if !ok {
		return errors.CodeError
	}
	return g.b.guard(g.site+": Rename", func() error {
		return rn.Rename(name)
	})
}

func (g *guardedVTab) Begin() error {
	tx, ok := g.vtab.(engine.VTabTx)
	if !ok {
		return nil
	}
	return g.b.guard(g.site+": Begin", func() error {
		return tx.Begin()
	})
}

func (g *guardedVTab) Sync() error {
	tx, ok := g.vtab.(engine.VTabTx)
	if !ok {
		return nil
	}
	return g.b.guard(g.site+": Sync", func() error {
		return tx.Sync()
	})
}

func (g *guardedVTab) Commit() error {
	tx, ok := g.vtab.(engine.VTabTx)
	if !ok {
		return nil
	}
	return g.b.guard(g.site+": Commit", func() error {
		return tx.Commit()
	})
}

func (g *guardedVTab) Rollback() error {
	tx, ok := g.vtab.(engine.VTabTx)
	if !ok {
		return nil
	}
	return g.b.guard(g.site+": Rollback", func() error {
		return tx.Rollback()
	})
}

func (g *guardedVTab) Savepoint(n int) error {
	sp, ok := g.vtab.(engine.VTabSavepointer)
	if !ok {
		return nil
	}
	return g.b.guard(g.site+": Savepoint", func() error {
		return sp.Savepoint(n)
	})
}

func (g *guardedVTab) Release(n int) error {
	sp, ok := g.vtab.(engine.VTabSavepointer)
	if !ok {
		return nil
	}
	return g.b.guard(g.site+": Release", func() error {
		return sp.Release(n)
	})
}

func (g *guardedVTab) RollbackTo(n int) error {
	sp, ok := g.vtab.(engine.VTabSavepointer)
	if !ok {
		return nil
	}
	return g.b.guard(g.site+": RollbackTo", func() error {
		return sp.RollbackTo(n)
	})
}

type guardedCursor struct {
	b    *Bridge
	site string
	cur  engine.VTabCursor
}

func (g *guardedCursor) Filter(idxNum int32, idxStr string, args []marshal.Value) error {
	return g.b.guard(g.site+": Filter", func() error {
		return g.cur.Filter(idxNum, idxStr, args)
	})
}

func (g *guardedCursor) Next() error {
	return g.b.guard(g.site+": Next", func() error {
		return g.cur.Next()
	})
}

func (g *guardedCursor) EOF() bool {
	// EOF cannot fail; a panicking cursor reads as exhausted.
	eof := true
	g.b.guard(g.site+": EOF", func() error {
		eof = g.cur.EOF()
		return nil
	})
	return eof
}

func (g *guardedCursor) Column(i int) (marshal.Value, error) {
	var out marshal.Value
	err := g.b.guard(g.site+": Column", func() error {
		var inner error
		out, inner = g.cur.Column(i)
		return inner
	})
	return out, err
}

func (g *guardedCursor) RowID() (int64, error) {
	var rowid int64
	err := g.b.guard(g.site+": RowID", func() error {
		var inner error
		rowid, inner = g.cur.RowID()
		return inner
	})
	return rowid, err
}

func (g *guardedCursor) Close() error {
	return g.b.guard(g.site+": Close", func() error {
		return g.cur.Close()
	})
}
