package sqlite

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/wippyai/sqlite-runtime/engine"
	"github.com/wippyai/sqlite-runtime/enginetest"
	"github.com/wippyai/sqlite-runtime/errors"
	"github.com/wippyai/sqlite-runtime/marshal"
)

func TestCreateFunction_ScalarRoundTrip(t *testing.T) {
	f := enginetest.New()
	conn := newTestConn(t, f)
	defer conn.Close()

	err := conn.CreateFunction("upper2", 1, true, func(args []marshal.Value) (any, error) {
		return strings.ToUpper(args[0].Text()), nil
	})
	if err != nil {
		t.Fatalf("create function: %v", err)
	}

	cb, ok := f.Functions["upper2"]
	if !ok || cb.Scalar == nil {
		t.Fatal("scalar callback not registered")
	}
	got, err := cb.Scalar([]marshal.Value{marshal.Text("ada")})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got.Text() != "ADA" {
		t.Errorf("result = %q, want ADA", got.Text())
	}
}

func TestCreateFunction_ErrorSurfacesAsCallbackFailure(t *testing.T) {
	f := enginetest.New()
	conn := newTestConn(t, f)
	defer conn.Close()

	boom := fmt.Errorf("no such user")
	err := conn.CreateFunction("fail", 0, false, func([]marshal.Value) (any, error) {
		return nil, boom
	})
	if err != nil {
		t.Fatalf("create function: %v", err)
	}

	// The engine sees a bare result code from the callback.
	if _, err := f.Functions["fail"].Scalar(nil); !stderrors.Is(err, errors.CodeError) {
		t.Fatalf("wrapped scalar = %v, want bare error code", err)
	}

	// The original error resurfaces on the next engine call outcome.
	f.Script("SELECT fail()", &enginetest.Script{
		StepCodes: []errors.Code{errors.CodeError},
	})
	execErr := conn.Exec("SELECT fail()")
	var cbErr *errors.CallbackError
	if !stderrors.As(execErr, &cbErr) {
		t.Fatalf("exec error = %v, want *errors.CallbackError", execErr)
	}
	if !stderrors.Is(cbErr, boom) {
		t.Errorf("callback cause = %v, want original error", cbErr.Cause)
	}
}

func TestCreateFunction_NilRemoves(t *testing.T) {
	f := enginetest.New()
	conn := newTestConn(t, f)
	defer conn.Close()

	if err := conn.CreateFunction("gone", 0, false, func([]marshal.Value) (any, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := conn.CreateFunction("gone", 0, false, nil); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := f.Functions["gone"]; ok {
		t.Error("function should be removed")
	}
}

type sumAgg struct {
	total int64
}

func (a *sumAgg) Step(args []marshal.Value) error {
	a.total += args[0].Int64()
	return nil
}

func (a *sumAgg) Final() (any, error) {
	return a.total, nil
}

type windowSum struct {
	sumAgg
}

func (w *windowSum) Value() (any, error) {
	return w.total, nil
}

func (w *windowSum) Inverse(args []marshal.Value) error {
	w.total -= args[0].Int64()
	return nil
}

func TestCreateAggregate_StateAccumulates(t *testing.T) {
	f := enginetest.New()
	conn := newTestConn(t, f)
	defer conn.Close()

	err := conn.CreateAggregate("sum2", 1, false, func() Aggregate {
		return &sumAgg{}
	})
	if err != nil {
		t.Fatalf("create aggregate: %v", err)
	}

	state := f.Functions["sum2"].NewAggregate()
	for _, n := range []int64{1, 2, 3} {
		if err := state.Step([]marshal.Value{marshal.Integer(n)}); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	got, err := state.Final()
	if err != nil {
		t.Fatalf("final: %v", err)
	}
	if got.Int64() != 6 {
		t.Errorf("final = %d, want 6", got.Int64())
	}
}

func TestCreateWindowAggregate_SlidesFrame(t *testing.T) {
	f := enginetest.New()
	conn := newTestConn(t, f)
	defer conn.Close()

	err := conn.CreateWindowAggregate("wsum", 1, false, func() WindowAggregate {
		return &windowSum{}
	})
	if err != nil {
		t.Fatalf("create window aggregate: %v", err)
	}

	cb := f.Functions["wsum"]
	if cb.NewWindow == nil || cb.NewAggregate != nil {
		t.Fatal("window function should register its own constructor slot")
	}
	win := cb.NewWindow()
	if err := win.Step([]marshal.Value{marshal.Integer(5)}); err != nil {
		t.Fatalf("step: %v", err)
	}
	if err := win.Inverse([]marshal.Value{marshal.Integer(2)}); err != nil {
		t.Fatalf("inverse: %v", err)
	}
	v, err := win.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if v.Int64() != 3 {
		t.Errorf("value = %d, want 3", v.Int64())
	}
}

func TestCreateAggregate_ConstructorNotCalledAtRegistration(t *testing.T) {
	f := enginetest.New()
	conn := newTestConn(t, f)
	defer conn.Close()

	var built int
	err := conn.CreateAggregate("lazy", 1, false, func() Aggregate {
		built++
		return &sumAgg{}
	})
	if err != nil {
		t.Fatalf("create aggregate: %v", err)
	}
	err = conn.CreateWindowAggregate("lazywin", 1, false, func() WindowAggregate {
		built++
		return &windowSum{}
	})
	if err != nil {
		t.Fatalf("create window aggregate: %v", err)
	}
	if built != 0 {
		t.Fatalf("registration ran %d constructors, want 0", built)
	}

	f.Functions["lazy"].NewAggregate()
	f.Functions["lazywin"].NewWindow()
	if built != 2 {
		t.Errorf("group starts ran %d constructors, want 2", built)
	}
}

func TestHooks_InstallAndRemove(t *testing.T) {
	f := enginetest.New()
	conn := newTestConn(t, f)
	defer conn.Close()

	if err := conn.SetCommitHook(func() bool { return false }); err != nil {
		t.Fatalf("commit hook: %v", err)
	}
	if err := conn.SetUpdateHook(func(op engine.UpdateOp, db, table string, rowid int64) {}); err != nil {
		t.Fatalf("update hook: %v", err)
	}
	cs := f.Conn(conn.db)
	if cs.Commit == nil || cs.Update == nil {
		t.Fatal("hooks not installed")
	}

	if err := conn.SetCommitHook(nil); err != nil {
		t.Fatalf("remove commit hook: %v", err)
	}
	if cs := f.Conn(conn.db); cs.Commit != nil {
		t.Error("commit hook should be removed")
	}
}

func TestSetAuthorizer_DeniesOnPanic(t *testing.T) {
	f := enginetest.New()
	conn := newTestConn(t, f)
	defer conn.Close()

	err := conn.SetAuthorizer(func(action engine.AuthAction, arg1, arg2, db, trigger string) engine.AuthResult {
		panic("nope")
	})
	if err != nil {
		t.Fatalf("set authorizer: %v", err)
	}
	got := f.Conn(conn.db).Authorizer(engine.AuthRead, "t", "x", "main", "")
	if got != engine.AuthDeny {
		t.Errorf("panicking authorizer = %v, want deny", got)
	}
}

func TestCreateModule_RegistersAndRemoves(t *testing.T) {
	f := enginetest.New()
	conn := newTestConn(t, f)
	defer conn.Close()

	mod := engine.ModuleCallbacks{
		Connect: func(args []string, declare func(schema string) error) (engine.VTab, error) {
			return nil, fmt.Errorf("unused")
		},
	}
	if err := conn.CreateModule("series", mod); err != nil {
		t.Fatalf("create module: %v", err)
	}
	if _, ok := f.Modules["series"]; !ok {
		t.Fatal("module not recorded")
	}

	if err := conn.CreateModule("series", engine.ModuleCallbacks{}); err != nil {
		t.Fatalf("remove module: %v", err)
	}
	if _, ok := f.Modules["series"]; ok {
		t.Error("module should be removed")
	}
}

func TestRegisterVFS_RoundTrip(t *testing.T) {
	f := enginetest.New()
	conn := newTestConn(t, f)
	defer conn.Close()

	vfs := engine.VFSCallbacks{
		Open: func(name string, flags engine.OpenFlags) (engine.VFSFile, engine.OpenFlags, error) {
			return nil, flags, fmt.Errorf("unused")
		},
	}
	if err := conn.RegisterVFS("memfs", vfs, false); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := f.VFSes["memfs"]; !ok {
		t.Fatal("vfs not recorded")
	}

	// Duplicate names are refused by the engine and reported as a
	// registration failure.
	if err := conn.RegisterVFS("memfs", vfs, false); err == nil {
		t.Fatal("want error registering duplicate vfs name")
	}

	if err := conn.UnregisterVFS("memfs"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if _, ok := f.VFSes["memfs"]; ok {
		t.Error("vfs should be removed")
	}
}

func TestFeatureGates(t *testing.T) {
	f := enginetest.New()
	f.Disabled[engine.FeatureVTab] = true
	f.Disabled[engine.FeatureVFS] = true
	f.Disabled[engine.FeatureBlob] = true
	f.Disabled[engine.FeatureBackup] = true
	f.Disabled[engine.FeatureWindowFunc] = true
	conn := newTestConn(t, f)
	defer conn.Close()

	if err := conn.CreateWindowAggregate("w", 1, false, func() WindowAggregate {
		return &windowSum{}
	}); !stderrors.Is(err, errors.Unsupported("")) {
		t.Errorf("CreateWindowAggregate = %v, want unsupported", err)
	}
	if err := conn.CreateModule("m", engine.ModuleCallbacks{
		Connect: func([]string, func(string) error) (engine.VTab, error) { return nil, nil },
	}); !stderrors.Is(err, errors.Unsupported("")) {
		t.Errorf("CreateModule = %v, want unsupported", err)
	}
	if err := conn.RegisterVFS("v", engine.VFSCallbacks{
		Open: func(string, engine.OpenFlags) (engine.VFSFile, engine.OpenFlags, error) { return nil, 0, nil },
	}, false); !stderrors.Is(err, errors.Unsupported("")) {
		t.Errorf("RegisterVFS = %v, want unsupported", err)
	}
	if _, err := conn.OpenBlob("main", "t", "c", 1, false); !stderrors.Is(err, errors.Unsupported("")) {
		t.Errorf("OpenBlob = %v, want unsupported", err)
	}
	if _, err := conn.Backup("main", conn, "main"); !stderrors.Is(err, errors.Unsupported("")) {
		t.Errorf("Backup = %v, want unsupported", err)
	}
}
