package gate

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGate_EnterExit(t *testing.T) {
	g := New()
	g.Enter()
	if g.Depth() != 0 {
		t.Fatal("depth should be 0 outside reentrant sections")
	}
	g.Exit()
}

func TestGate_BlockingReleases(t *testing.T) {
	g := New()
	g.Enter()

	acquired := make(chan struct{})
	release := make(chan struct{})

	var inBlocking atomic.Bool
	go func() {
		// This goroutine must be able to take the gate while the
		// first holder sits inside a Blocking section.
		<-acquired
		g.Enter()
		if !inBlocking.Load() {
			t.Error("gate acquired outside the blocking window")
		}
		g.Exit()
		close(release)
	}()

	err := g.Blocking(func() error {
		inBlocking.Store(true)
		close(acquired)
		<-release
		inBlocking.Store(false)
		return nil
	})
	if err != nil {
		t.Fatalf("Blocking: %v", err)
	}

	// Gate must be held again after Blocking returns.
	if g.mu.TryLock() {
		t.Fatal("gate not reacquired after Blocking")
	}
	g.Exit()
}

func TestGate_BlockingReacquiresOnError(t *testing.T) {
	g := New()
	g.Enter()

	wantErr := errors.New("step failed")
	if err := g.Blocking(func() error { return wantErr }); err != wantErr {
		t.Fatalf("error not propagated: %v", err)
	}
	if g.mu.TryLock() {
		t.Fatal("gate not reacquired on the error path")
	}
	g.Exit()
}

func TestGate_BlockingReacquiresOnPanic(t *testing.T) {
	g := New()
	g.Enter()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		g.Blocking(func() error { panic("callback went wrong") })
	}()

	if g.mu.TryLock() {
		t.Fatal("gate not reacquired after panic")
	}
	g.Exit()
}

func TestGate_ReentrantDepth(t *testing.T) {
	g := New()
	g.Enter()
	defer g.Exit()

	err := g.Reentrant(func() error {
		if g.Depth() != 1 {
			t.Errorf("depth = %d, want 1", g.Depth())
		}
		// Nested reentrant call, as when a callback runs SQL that
		// triggers another callback.
		return g.Reentrant(func() error {
			if g.Depth() != 2 {
				t.Errorf("nested depth = %d, want 2", g.Depth())
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("Reentrant: %v", err)
	}
	if g.Depth() != 0 {
		t.Fatalf("depth = %d after sections closed, want 0", g.Depth())
	}
}

func TestGate_ReenterInsideReentrantDoesNotDeadlock(t *testing.T) {
	g := New()
	g.Enter()
	defer g.Exit()

	// Simulates the engine invoking a trampoline synchronously inside
	// a Reentrant section. The test deadlocks if Reenter tries to lock.
	err := g.Reentrant(func() error {
		release := g.Reenter()
		defer release()
		if g.Depth() != 2 {
			t.Errorf("depth inside trampoline = %d, want 2", g.Depth())
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestGate_ReenterAtTopLevelLocks(t *testing.T) {
	g := New()

	release := g.Reenter()
	if g.mu.TryLock() {
		t.Fatal("Reenter at depth 0 should hold the gate")
	}
	release()

	g.Enter()
	g.Exit()
}

func TestGate_SerializesConcurrentHolders(t *testing.T) {
	g := New()
	var counter int
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				g.Enter()
				counter++
				g.Exit()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("timeout, likely deadlock")
	}

	if counter != 1600 {
		t.Fatalf("counter = %d, want 1600", counter)
	}
}
