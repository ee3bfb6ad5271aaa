package sqlite

import (
	"testing"

	"github.com/wippyai/sqlite-runtime/engine"
	"github.com/wippyai/sqlite-runtime/enginetest"
	"github.com/wippyai/sqlite-runtime/errors"
)

func TestOpenOptions_Defaults(t *testing.T) {
	o := defaultOpenOptions()
	if o.flags != engine.OpenReadWrite|engine.OpenCreate {
		t.Errorf("flags = %v, want read-write create", o.flags)
	}
	if o.cacheSize != defaultCacheSize {
		t.Errorf("cache size = %d, want %d", o.cacheSize, defaultCacheSize)
	}
	if o.busyTimeout != 0 || o.vfs != "" {
		t.Errorf("unexpected non-zero defaults: %+v", o)
	}
}

func TestOpenOptions_Apply(t *testing.T) {
	o := defaultOpenOptions()
	for _, opt := range []OpenOption{
		WithReadOnly(),
		WithVFS("memfs"),
		WithCacheSize(0),
		WithBusyTimeout(250),
	} {
		opt(&o)
	}
	if o.flags != engine.OpenReadOnly {
		t.Errorf("flags = %v, want read-only", o.flags)
	}
	if o.vfs != "memfs" {
		t.Errorf("vfs = %q, want memfs", o.vfs)
	}
	if o.cacheSize != 0 {
		t.Errorf("cache size = %d, want 0", o.cacheSize)
	}
	if o.busyTimeout != 250 {
		t.Errorf("busy timeout = %d, want 250", o.busyTimeout)
	}
}

func TestOpen_FailureCode(t *testing.T) {
	f := enginetest.New()
	f.OpenCode = errors.CodeCantOpen
	if _, err := open(f, "file:missing.db", defaultOpenOptions(), nil); err == nil {
		t.Fatal("want open failure")
	}
}

func TestOpen_BusyTimeoutApplied(t *testing.T) {
	f := enginetest.New()
	o := defaultOpenOptions()
	o.busyTimeout = 500
	conn, err := open(f, "file:test.db", o, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	if cs := f.Conn(conn.db); cs.BusyTimeout != 500 {
		t.Errorf("busy timeout = %d, want 500", cs.BusyTimeout)
	}
}

func TestOpen_TeardownHookRunsOnClose(t *testing.T) {
	f := enginetest.New()
	torn := false
	conn, err := open(f, "file:test.db", defaultOpenOptions(), func() error {
		torn = true
		return nil
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !torn {
		t.Error("instance teardown hook did not run")
	}
}
