package engine

import (
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/sqlite-runtime/errors"
	"github.com/wippyai/sqlite-runtime/registry"
)

// moduleReg is the registered state behind one virtual table module.
type moduleReg struct {
	cb   ModuleCallbacks
	name string
	db   Conn
}

func (i *Instance) CreateModule(db Conn, name string, mod *ModuleCallbacks) errors.Code {
	if !i.has("sqlite3_create_module_go") {
		Logger().Warn("engine build lacks module registration shim")
		return errors.CodeError
	}

	a := i.arena()
	defer a.release()
	namePtr := a.cstring(name)
	if namePtr == 0 {
		return errors.CodeNoMem
	}

	if mod == nil {
		return i.code("sqlite3_create_module_go", uint64(db), uint64(namePtr), 0, 0)
	}
	if mod.Connect == nil {
		return errors.CodeMisuse
	}

	h := i.callbacks.Insert(registry.TypeModule, &moduleReg{cb: *mod, name: name, db: db})
	if h == registry.Zero {
		return errors.CodeMisuse
	}

	// Eponymous-only modules carry no xCreate on the engine side.
	var hasCreate uint64
	if mod.Create != nil {
		hasCreate = 1
	}
	rc := i.code("sqlite3_create_module_go", uint64(db), uint64(namePtr), uint64(h), hasCreate)
	if rc != errors.CodeOK {
		i.callbacks.Remove(h)
	}
	return rc
}

func (i *Instance) DeclareVTab(db Conn, schema string) errors.Code {
	a := i.arena()
	defer a.release()
	ptr := a.cstring(schema)
	if ptr == 0 {
		return errors.CodeNoMem
	}
	return i.code("sqlite3_declare_vtab", uint64(db), uint64(ptr))
}

// vtabConstruct serves both xCreate and xConnect. argv holds argc C
// string pointers; the constructed table's handle is written at outVTab.
func (i *Instance) vtabConstruct(modID uint64, create bool, argc, argv, outVTab uint32) errors.Code {
	v, ok := i.callbacks.GetTyped(registry.Handle(modID), registry.TypeModule)
	if !ok {
		Logger().Error("stale module handle", zap.Uint64("module", modID))
		return errors.CodeError
	}
	reg := v.(*moduleReg)

	mem := i.mod.Memory()
	args := make([]string, argc)
	for n := uint32(0); n < argc; n++ {
		ptr, _ := mem.ReadUint32Le(argv + 4*n)
		args[n] = readCString(mem, ptr)
	}

	ctor := reg.cb.Connect
	if create && reg.cb.Create != nil {
		ctor = reg.cb.Create
	}
	declare := func(schema string) error {
		if rc := i.DeclareVTab(reg.db, schema); rc != errors.CodeOK {
			return rc
		}
		return nil
	}

	vtab, err := ctor(args, declare)
	if err != nil {
		return CodeForError(err)
	}
	h := i.callbacks.Insert(registry.TypeVTab, vtab)
	if h == registry.Zero {
		vtab.Disconnect()
		return errors.CodeError
	}
	mem.WriteUint64Le(outVTab, uint64(h))
	return errors.CodeOK
}

func (i *Instance) vtabResolve(vtabID uint64) VTab {
	v, ok := i.callbacks.GetTyped(registry.Handle(vtabID), registry.TypeVTab)
	if !ok {
		Logger().Error("stale table handle", zap.Uint64("vtab", vtabID))
		return nil
	}
	return v.(VTab)
}

// sqlite3_index_info field offsets under the engine's 32-bit layout.
const (
	idxOffNConstraint      = 0
	idxOffAConstraint      = 4
	idxOffNOrderBy         = 8
	idxOffAOrderBy         = 12
	idxOffAConstraintUsage = 16
	idxOffIdxNum           = 20
	idxOffIdxStr           = 24
	idxOffNeedToFree       = 28
	idxOffOrderByConsumed  = 32
	idxOffEstimatedCost    = 40
	idxOffEstimatedRows    = 48
	idxOffIdxFlags         = 56
	idxOffColUsed          = 64

	idxConstraintSize = 12
	idxOrderBySize    = 8
	idxUsageSize      = 8
)

// vtabBestIndex decodes one sqlite3_index_info from guest memory,
// negotiates the plan, and writes the outputs back. Constraint order
// and indices are preserved exactly as the engine proposed them.
func (i *Instance) vtabBestIndex(vtabID uint64, infoPtr uint32) errors.Code {
	vtab := i.vtabResolve(vtabID)
	if vtab == nil {
		return errors.CodeError
	}
	mem := i.mod.Memory()

	nConstraint, _ := mem.ReadUint32Le(infoPtr + idxOffNConstraint)
	aConstraint, _ := mem.ReadUint32Le(infoPtr + idxOffAConstraint)
	nOrderBy, _ := mem.ReadUint32Le(infoPtr + idxOffNOrderBy)
	aOrderBy, _ := mem.ReadUint32Le(infoPtr + idxOffAOrderBy)
	aUsage, _ := mem.ReadUint32Le(infoPtr + idxOffAConstraintUsage)
	colUsed, _ := mem.ReadUint64Le(infoPtr + idxOffColUsed)
	cost, _ := mem.ReadUint64Le(infoPtr + idxOffEstimatedCost)
	rows, _ := mem.ReadUint64Le(infoPtr + idxOffEstimatedRows)

	info := &IndexInfo{
		Constraints:     make([]IndexConstraint, nConstraint),
		OrderBy:         make([]IndexOrderBy, nOrderBy),
		ConstraintUsage: make([]IndexConstraintUsage, nConstraint),
		ColumnsUsed:     colUsed,
		EstimatedCost:   math.Float64frombits(cost),
		EstimatedRows:   int64(rows),
	}
	for n := uint32(0); n < nConstraint; n++ {
		base := aConstraint + n*idxConstraintSize
		col, _ := mem.ReadUint32Le(base)
		op, _ := mem.ReadByte(base + 4)
		usable, _ := mem.ReadByte(base + 5)
		info.Constraints[n] = IndexConstraint{
			Column: int(int32(col)),
			Op:     IndexConstraintOp(op),
			Usable: usable != 0,
		}
	}
	for n := uint32(0); n < nOrderBy; n++ {
		base := aOrderBy + n*idxOrderBySize
		col, _ := mem.ReadUint32Le(base)
		desc, _ := mem.ReadByte(base + 4)
		info.OrderBy[n] = IndexOrderBy{Column: int(int32(col)), Desc: desc != 0}
	}

	if err := vtab.BestIndex(info); err != nil {
		return CodeForError(err)
	}

	for n := uint32(0); n < nConstraint; n++ {
		base := aUsage + n*idxUsageSize
		u := info.ConstraintUsage[n]
		mem.WriteUint32Le(base, uint32(int32(u.ArgvIndex)))
		var omit byte
		if u.Omit {
			omit = 1
		}
		mem.WriteByte(base+4, omit)
	}
	mem.WriteUint32Le(infoPtr+idxOffIdxNum, uint32(info.IdxNum))
	if info.IdxStr != "" {
		// The engine frees idxStr with sqlite3_free when flagged.
		ptr := i.malloc(uint32(len(info.IdxStr)) + 1)
		if ptr != 0 {
			mem.Write(ptr, []byte(info.IdxStr))
			mem.WriteByte(ptr+uint32(len(info.IdxStr)), 0)
			mem.WriteUint32Le(infoPtr+idxOffIdxStr, ptr)
			mem.WriteUint32Le(infoPtr+idxOffNeedToFree, 1)
		}
	}
	var consumed uint32
	if info.OrderByConsumed {
		consumed = 1
	}
	mem.WriteUint32Le(infoPtr+idxOffOrderByConsumed, consumed)
	mem.WriteUint64Le(infoPtr+idxOffEstimatedCost, math.Float64bits(info.EstimatedCost))
	mem.WriteUint64Le(infoPtr+idxOffEstimatedRows, uint64(info.EstimatedRows))
	mem.WriteUint32Le(infoPtr+idxOffIdxFlags, uint32(info.IdxFlags))
	return errors.CodeOK
}

func (i *Instance) vtabShutdown(vtabID uint64, destroy bool) errors.Code {
	vtab := i.vtabResolve(vtabID)
	if vtab == nil {
		return errors.CodeError
	}
	var err error
	if destroy {
		err = vtab.Destroy()
	} else {
		err = vtab.Disconnect()
	}
	i.callbacks.Remove(registry.Handle(vtabID))
	return CodeForError(err)
}

func (i *Instance) vtabOpen(vtabID uint64, outCursor uint32) errors.Code {
	vtab := i.vtabResolve(vtabID)
	if vtab == nil {
		return errors.CodeError
	}
	cur, err := vtab.Open()
	if err != nil {
		return CodeForError(err)
	}
	h := i.callbacks.Insert(registry.TypeVTabCursor, cur)
	if h == registry.Zero {
		cur.Close()
		return errors.CodeError
	}
	i.mod.Memory().WriteUint64Le(outCursor, uint64(h))
	return errors.CodeOK
}

func (i *Instance) cursorResolve(curID uint64) VTabCursor {
	v, ok := i.callbacks.GetTyped(registry.Handle(curID), registry.TypeVTabCursor)
	if !ok {
		Logger().Error("stale cursor handle", zap.Uint64("cursor", curID))
		return nil
	}
	return v.(VTabCursor)
}

func (i *Instance) cursorFilter(curID uint64, idxNum int32, idxStrPtr, argc, argv uint32) errors.Code {
	cur := i.cursorResolve(curID)
	if cur == nil {
		return errors.CodeError
	}
	var idxStr string
	if idxStrPtr != 0 {
		idxStr = readCString(i.mod.Memory(), idxStrPtr)
	}
	return CodeForError(cur.Filter(idxNum, idxStr, i.valueArgs(argc, argv)))
}

func (i *Instance) cursorColumn(curID uint64, cCtx, col uint32) errors.Code {
	cur := i.cursorResolve(curID)
	if cur == nil {
		return errors.CodeError
	}
	v, err := cur.Column(int(int32(col)))
	if err != nil {
		return CodeForError(err)
	}
	i.resultValue(cCtx, v)
	return errors.CodeOK
}

func (i *Instance) cursorRowID(curID uint64, outRowid uint32) errors.Code {
	cur := i.cursorResolve(curID)
	if cur == nil {
		return errors.CodeError
	}
	id, err := cur.RowID()
	if err != nil {
		return CodeForError(err)
	}
	i.mod.Memory().WriteUint64Le(outRowid, uint64(id))
	return errors.CodeOK
}

func (i *Instance) cursorClose(curID uint64) errors.Code {
	cur := i.cursorResolve(curID)
	if cur == nil {
		return errors.CodeError
	}
	i.callbacks.Remove(registry.Handle(curID))
	return CodeForError(cur.Close())
}

func (i *Instance) vtabUpdate(vtabID uint64, argc, argv, outRowid uint32) errors.Code {
	vtab := i.vtabResolve(vtabID)
	if vtab == nil {
		return errors.CodeError
	}
	up, ok := vtab.(VTabUpdater)
	if !ok {
		return errors.CodeReadOnly
	}
	rowid, err := up.Update(i.valueArgs(argc, argv))
	if err != nil {
		return CodeForError(err)
	}
	i.mod.Memory().WriteUint64Le(outRowid, uint64(rowid))
	return errors.CodeOK
}

func (i *Instance) vtabRename(vtabID uint64, namePtr uint32) errors.Code {
	vtab := i.vtabResolve(vtabID)
	if vtab == nil {
		return errors.CodeError
	}
	rn, ok := vtab.(VTabRenamer)
	if !ok {
		return errors.CodeError
	}
	return CodeForError(rn.Rename(readCString(i.mod.Memory(), namePtr)))
}

// Transaction phases dispatched through one entry.
const (
	vtabTxBegin = iota
	vtabTxSync
	vtabTxCommit
	vtabTxRollback
)

func (i *Instance) vtabTx(vtabID uint64, phase uint32) errors.Code {
	vtab := i.vtabResolve(vtabID)
	if vtab == nil {
		return errors.CodeError
	}
	tx, ok := vtab.(VTabTx)
	if !ok {
		// Tables without transaction support are still usable; the
		// engine treats the phases as no-ops.
		return errors.CodeOK
	}
	var err error
	switch phase {
	case vtabTxBegin:
		err = tx.Begin()
	case vtabTxSync:
		err = tx.Sync()
	case vtabTxCommit:
		err = tx.Commit()
	case vtabTxRollback:
		err = tx.Rollback()
	}
	return CodeForError(err)
}

// Savepoint phases dispatched through one entry.
const (
	vtabSavepointBegin = iota
	vtabSavepointRelease
	vtabSavepointRollbackTo
)

func (i *Instance) vtabSavepoint(vtabID uint64, phase, n uint32) errors.Code {
	vtab := i.vtabResolve(vtabID)
	if vtab == nil {
		return errors.CodeError
	}
	sp, ok := vtab.(VTabSavepointer)
	if !ok {
		return errors.CodeOK
	}
	var err error
	switch phase {
	case vtabSavepointBegin:
		err = sp.Savepoint(int(int32(n)))
	case vtabSavepointRelease:
		err = sp.Release(int(int32(n)))
	case vtabSavepointRollbackTo:
		err = sp.RollbackTo(int(int32(n)))
	}
	return CodeForError(err)
}
