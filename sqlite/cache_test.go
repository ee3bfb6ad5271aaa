package sqlite

import (
	"testing"

	"github.com/wippyai/sqlite-runtime/enginetest"
	"github.com/wippyai/sqlite-runtime/marshal"
)

func cacheConn(t *testing.T, f *enginetest.Fake, size int) *Conn {
	t.Helper()
	o := defaultOpenOptions()
	o.cacheSize = size
	conn, err := open(f, "file:test.db", o, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return conn
}

func TestCache_ReusesStatementAfterClose(t *testing.T) {
	f := enginetest.New()
	f.Script("SELECT 1", &enginetest.Script{Columns: []string{"1"}})
	conn := cacheConn(t, f, 4)
	defer conn.Close()

	stmt, err := conn.Prepare("SELECT 1")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := stmt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	again, err := conn.Prepare("SELECT 1")
	if err != nil {
		t.Fatalf("second prepare: %v", err)
	}
	defer again.Close()

	if n := f.CallCount("PrepareV2"); n != 1 {
		t.Errorf("PrepareV2 calls = %d, want 1 (cache hit)", n)
	}
	if again != stmt {
		t.Error("second prepare should hand back the cached statement")
	}
}

func TestCache_PinnedStatementForcesFreshCompile(t *testing.T) {
	f := enginetest.New()
	f.Script("SELECT 1", &enginetest.Script{Columns: []string{"1"}})
	conn := cacheConn(t, f, 4)
	defer conn.Close()

	first, err := conn.Prepare("SELECT 1")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	defer first.Close()

	// Same text while the cached statement is still out: a distinct
	// compilation, not an alias.
	second, err := conn.Prepare("SELECT 1")
	if err != nil {
		t.Fatalf("second prepare: %v", err)
	}

	if first == second {
		t.Fatal("pinned statement must not be handed out twice")
	}
	if n := f.CallCount("PrepareV2"); n != 2 {
		t.Errorf("PrepareV2 calls = %d, want 2", n)
	}

	// The duplicate is not cache managed; closing it finalizes.
	if err := second.Close(); err != nil {
		t.Fatalf("close duplicate: %v", err)
	}
	if n := f.CallCount("Finalize"); n != 1 {
		t.Errorf("Finalize calls = %d, want 1", n)
	}
}

func TestCache_ReleasedStatementComesBackClean(t *testing.T) {
	f := enginetest.New()
	f.Script("SELECT ?", &enginetest.Script{
		Columns:   []string{"?"},
		NumParams: 1,
		Rows:      [][]marshal.Value{{marshal.Integer(1)}},
	})
	conn := cacheConn(t, f, 4)
	defer conn.Close()

	stmt, err := conn.Prepare("SELECT ?")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := stmt.Bind(1, int64(42)); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if _, err := stmt.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if err := stmt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	again, err := conn.Prepare("SELECT ?")
	if err != nil {
		t.Fatalf("reprepare: %v", err)
	}
	defer again.Close()

	if _, ok := f.Binding(again.h, 1); ok {
		t.Error("bindings should be cleared on return to cache")
	}
	// The rearmed statement steps from the top.
	row, err := again.Step()
	if err != nil || !row {
		t.Fatalf("step on reused statement = (%v, %v), want row", row, err)
	}
}

func TestCache_CapacityZeroDisablesCaching(t *testing.T) {
	f := enginetest.New()
	f.Script("SELECT 1", &enginetest.Script{Columns: []string{"1"}})
	conn := cacheConn(t, f, 0)
	defer conn.Close()

	stmt, err := conn.Prepare("SELECT 1")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := stmt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := f.CallCount("Finalize"); n != 1 {
		t.Errorf("Finalize calls = %d, want 1 (no caching)", n)
	}

	if _, err := conn.Prepare("SELECT 1"); err != nil {
		t.Fatalf("reprepare: %v", err)
	}
	if n := f.CallCount("PrepareV2"); n != 2 {
		t.Errorf("PrepareV2 calls = %d, want 2", n)
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	f := enginetest.New()
	texts := []string{"SELECT 1", "SELECT 2", "SELECT 3"}
	for _, sql := range texts {
		f.Script(sql, &enginetest.Script{Columns: []string{"c"}})
	}
	conn := cacheConn(t, f, 2)
	defer conn.Close()

	for _, sql := range texts {
		stmt, err := conn.Prepare(sql)
		if err != nil {
			t.Fatalf("prepare %q: %v", sql, err)
		}
		if err := stmt.Close(); err != nil {
			t.Fatalf("close %q: %v", sql, err)
		}
	}

	// Capacity 2: the oldest entry was finalized on the third admit.
	if n := f.CallCount("Finalize"); n != 1 {
		t.Errorf("Finalize calls = %d, want 1", n)
	}

	// The survivor is still a cache hit.
	if _, err := conn.Prepare("SELECT 3"); err != nil {
		t.Fatalf("reprepare: %v", err)
	}
	if n := f.CallCount("PrepareV2"); n != 3 {
		t.Errorf("PrepareV2 calls = %d, want 3", n)
	}
}
