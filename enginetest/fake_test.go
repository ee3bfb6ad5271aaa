package enginetest

import (
	"testing"

	"github.com/wippyai/sqlite-runtime/errors"
	"github.com/wippyai/sqlite-runtime/marshal"
)

func TestFake_ScriptedQuery(t *testing.T) {
	f := New()
	f.Script("SELECT id, name FROM users", &Script{
		Columns: []string{"id", "name"},
		Rows: [][]marshal.Value{
			{marshal.Integer(1), marshal.Text("ada")},
			{marshal.Integer(2), marshal.Text("grace")},
		},
		ReadOnly: true,
	})

	db, code := f.OpenV2(":memory:", 0, "")
	if code != errors.CodeOK {
		t.Fatalf("OpenV2 failed: %v", code)
	}

	stmt, tail, code := f.PrepareV2(db, "SELECT id, name FROM users; SELECT 1")
	if code != errors.CodeOK {
		t.Fatalf("PrepareV2 failed: %v", code)
	}
	if tail != " SELECT 1" {
		t.Errorf("tail = %q, want %q", tail, " SELECT 1")
	}
	if !f.StmtReadOnly(stmt) {
		t.Error("scripted statement should be read-only")
	}
	if n := f.ColumnCount(stmt); n != 2 {
		t.Fatalf("ColumnCount = %d, want 2", n)
	}

	var names []string
	for f.Step(stmt) == errors.CodeRow {
		names = append(names, f.ColumnValue(stmt, 1).Text())
	}
	if len(names) != 2 || names[0] != "ada" || names[1] != "grace" {
		t.Errorf("names = %v, want [ada grace]", names)
	}

	if code := f.Finalize(stmt); code != errors.CodeOK {
		t.Errorf("Finalize failed: %v", code)
	}
	if f.CallCount("Step") != 3 {
		t.Errorf("Step ran %d times, want 3", f.CallCount("Step"))
	}
}

func TestFake_UnscriptedStatementStepsDone(t *testing.T) {
	f := New()
	db, _ := f.OpenV2(":memory:", 0, "")
	stmt, _, code := f.PrepareV2(db, "DELETE FROM t")
	if code != errors.CodeOK {
		t.Fatalf("PrepareV2 failed: %v", code)
	}
	if got := f.Step(stmt); got != errors.CodeDone {
		t.Errorf("Step = %v, want done", got)
	}
}

func TestFake_InterruptFailsNextStep(t *testing.T) {
	f := New()
	f.Script("SELECT 1", &Script{
		Columns: []string{"1"},
		Rows:    [][]marshal.Value{{marshal.Integer(1)}},
	})
	db, _ := f.OpenV2(":memory:", 0, "")
	stmt, _, _ := f.PrepareV2(db, "SELECT 1")

	f.Interrupt(db)
	if got := f.Step(stmt); got != errors.CodeInterrupt {
		t.Fatalf("Step after Interrupt = %v, want interrupt", got)
	}
	// The flag is consumed; the statement works again after reset.
	f.Reset(stmt)
	if got := f.Step(stmt); got != errors.CodeRow {
		t.Errorf("Step after Reset = %v, want row", got)
	}
}

func TestFake_StepCodesAreOneShotAcrossReset(t *testing.T) {
	f := New()
	f.Script("INSERT INTO t DEFAULT VALUES", &Script{
		StepCodes: []errors.Code{errors.CodeBusy},
	})
	db, _ := f.OpenV2(":memory:", 0, "")
	stmt, _, _ := f.PrepareV2(db, "INSERT INTO t DEFAULT VALUES")

	if got := f.Step(stmt); got != errors.CodeBusy {
		t.Fatalf("first Step = %v, want busy", got)
	}
	f.Reset(stmt)
	if got := f.Step(stmt); got != errors.CodeDone {
		t.Errorf("Step after Reset = %v, want done", got)
	}
}

func TestFake_BindsOutOfRange(t *testing.T) {
	f := New()
	f.Script("SELECT ?", &Script{NumParams: 1})
	db, _ := f.OpenV2(":memory:", 0, "")
	stmt, _, _ := f.PrepareV2(db, "SELECT ?")

	if code := f.BindValue(stmt, 1, marshal.Integer(7)); code != errors.CodeOK {
		t.Fatalf("BindValue(1) = %v, want ok", code)
	}
	if code := f.BindValue(stmt, 2, marshal.Integer(7)); code != errors.CodeRange {
		t.Errorf("BindValue(2) = %v, want range", code)
	}
}

func TestFake_NamedParameters(t *testing.T) {
	f := New()
	f.Script("SELECT :a, :b", &Script{BindNames: []string{":a", ":b"}})
	db, _ := f.OpenV2(":memory:", 0, "")
	stmt, _, _ := f.PrepareV2(db, "SELECT :a, :b")

	if n := f.BindParameterCount(stmt); n != 2 {
		t.Errorf("BindParameterCount = %d, want 2", n)
	}
	if i := f.BindParameterIndex(stmt, ":b"); i != 2 {
		t.Errorf("BindParameterIndex(:b) = %d, want 2", i)
	}
	if name := f.BindParameterName(stmt, 1); name != ":a" {
		t.Errorf("BindParameterName(1) = %q, want :a", name)
	}
}

func TestFake_BackupCountsDown(t *testing.T) {
	f := New()
	f.BackupPages = 10
	dst, _ := f.OpenV2("dst", 0, "")
	src, _ := f.OpenV2("src", 0, "")

	b, code := f.BackupInit(dst, "main", src, "main")
	if code != errors.CodeOK {
		t.Fatalf("BackupInit failed: %v", code)
	}
	if got := f.BackupStep(b, 4); got != errors.CodeOK {
		t.Fatalf("BackupStep = %v, want ok", got)
	}
	if got := f.BackupRemaining(b); got != 6 {
		t.Errorf("BackupRemaining = %d, want 6", got)
	}
	if got := f.BackupStep(b, -1); got != errors.CodeDone {
		t.Errorf("BackupStep(-1) = %v, want done", got)
	}
	if code := f.BackupFinish(b); code != errors.CodeOK {
		t.Errorf("BackupFinish failed: %v", code)
	}
}

func TestFake_BlobReadWrite(t *testing.T) {
	f := New()
	f.BlobSeed = []byte("hello world")
	db, _ := f.OpenV2(":memory:", 0, "")

	b, code := f.BlobOpen(db, "main", "t", "c", 1, true)
	if code != errors.CodeOK {
		t.Fatalf("BlobOpen failed: %v", code)
	}
	if n := f.BlobBytes(b); n != 11 {
		t.Fatalf("BlobBytes = %d, want 11", n)
	}
	if code := f.BlobWrite(b, 6, []byte("there")); code != errors.CodeOK {
		t.Fatalf("BlobWrite failed: %v", code)
	}
	p := make([]byte, 11)
	if code := f.BlobRead(b, 0, p); code != errors.CodeOK {
		t.Fatalf("BlobRead failed: %v", code)
	}
	if string(p) != "hello there" {
		t.Errorf("blob content = %q, want %q", p, "hello there")
	}
	if code := f.BlobRead(b, 8, p); code != errors.CodeError {
		t.Errorf("out-of-range read = %v, want error", code)
	}
}
