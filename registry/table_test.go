package registry

import (
	"sync"
	"testing"
)

type testObserver struct {
	mu     sync.Mutex
	events []Event
}

func (o *testObserver) OnRegistryEvent(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

type countingFinalizer struct {
	calls int
}

func (f *countingFinalizer) Finalize() {
	f.calls++
}

func TestTable_Basic(t *testing.T) {
	table := NewTable()

	h := table.Insert(TypeStmt, "stmt-1")
	if h == Zero {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := table.Get(h)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "stmt-1" {
		t.Fatalf("Expected 'stmt-1', got %v", val)
	}

	// GetTyped with correct type
	if _, ok := table.GetTyped(h, TypeStmt); !ok {
		t.Fatal("GetTyped with correct type failed")
	}

	// GetTyped with wrong type
	if _, ok := table.GetTyped(h, TypeConn); ok {
		t.Fatal("GetTyped with wrong type should fail")
	}

	val, ok = table.Remove(h)
	if !ok {
		t.Fatal("Remove failed")
	}
	if val != "stmt-1" {
		t.Fatalf("Expected 'stmt-1', got %v", val)
	}

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}
}

func TestTable_StaleHandleDetected(t *testing.T) {
	table := NewTable()

	h1 := table.Insert(TypeConn, "first")
	table.Remove(h1)

	// Slot is reused but the generation advances.
	h2 := table.Insert(TypeConn, "second")

	if _, ok := table.Get(h1); ok {
		t.Fatal("stale handle must not resolve after slot reuse")
	}
	val, ok := table.Get(h2)
	if !ok || val != "second" {
		t.Fatalf("fresh handle should resolve, got %v %v", val, ok)
	}
	if h1 == h2 {
		t.Fatal("reused slot must yield a distinct handle")
	}
}

func TestTable_DoubleRemoveIsNoOp(t *testing.T) {
	table := NewTable()
	fin := &countingFinalizer{}

	h := table.Insert(TypeStmt, fin)

	if _, ok := table.Remove(h); !ok {
		t.Fatal("first Remove should succeed")
	}
	if _, ok := table.Remove(h); ok {
		t.Fatal("second Remove should be a no-op")
	}
	if fin.calls != 1 {
		t.Fatalf("Finalize called %d times, want exactly 1", fin.calls)
	}
}

func TestTable_Pinning(t *testing.T) {
	table := NewTable()
	fin := &countingFinalizer{}

	h := table.Insert(TypeStmt, fin)
	if !table.Pin(h) {
		t.Fatal("Pin failed")
	}

	if _, ok := table.Remove(h); ok {
		t.Fatal("pinned entry must not be removable")
	}
	if fin.calls != 0 {
		t.Fatal("pinned entry must not be finalized")
	}
	if !table.Pinned(h) {
		t.Fatal("Pinned should report true")
	}

	if !table.Unpin(h) {
		t.Fatal("Unpin failed")
	}
	if _, ok := table.Remove(h); !ok {
		t.Fatal("Remove after Unpin should succeed")
	}
	if fin.calls != 1 {
		t.Fatalf("Finalize called %d times, want 1", fin.calls)
	}

	// Unpin of a dead handle fails.
	if table.Unpin(h) {
		t.Fatal("Unpin of removed handle should fail")
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h := table.Insert(TypeBlob, "blob")
	table.Remove(h)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventInserted || obs.events[1].Type != EventRemoved {
		t.Fatal("unexpected event sequence")
	}
	if obs.events[0].Handle != h {
		t.Fatal("wrong handle in event")
	}
}

func TestTable_CloseFinalizesEverything(t *testing.T) {
	table := NewTable()

	fins := []*countingFinalizer{{}, {}, {}}
	for _, f := range fins {
		table.Insert(TypeStmt, f)
	}

	if err := table.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for i, f := range fins {
		if f.calls != 1 {
			t.Errorf("entry %d finalized %d times, want 1", i, f.calls)
		}
	}

	// Closed table rejects inserts and double close is a no-op.
	if h := table.Insert(TypeStmt, "late"); h != Zero {
		t.Fatal("Insert after Close should return Zero")
	}
	if err := table.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	for i, f := range fins {
		if f.calls != 1 {
			t.Errorf("entry %d finalized %d times after double close, want 1", i, f.calls)
		}
	}
}

func TestTable_ConcurrentAccess(t *testing.T) {
	table := NewTable()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				h := table.Insert(TypeVTab, j)
				if _, ok := table.Get(h); !ok {
					t.Error("Get of live handle failed")
					return
				}
				table.Remove(h)
			}
		}()
	}
	wg.Wait()

	if table.Len() != 0 {
		t.Fatalf("expected empty table, have %d entries", table.Len())
	}
}
