package sqlite

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/sqlite-runtime/engine"
	"github.com/wippyai/sqlite-runtime/errors"
)

// Runtime compiles one engine wasm build and opens connections against
// it. Safe for concurrent use; each opened Conn gets its own engine
// instance with its own linear memory.
type Runtime struct {
	eng *engine.Engine
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*engine.Config)

// WithMemoryLimitPages caps each connection's linear memory, in 64KB
// pages.
func WithMemoryLimitPages(pages uint32) RuntimeOption {
	return func(cfg *engine.Config) {
		cfg.MemoryLimitPages = pages
	}
}

// NewRuntime compiles the engine build. The wasm bytes are the caller's
// to provide; the runtime never ships or fabricates an engine.
func NewRuntime(ctx context.Context, wasm []byte, opts ...RuntimeOption) (*Runtime, error) {
	cfg := &engine.Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	eng, err := engine.NewWithConfig(ctx, wasm, cfg)
	if err != nil {
		return nil, err
	}
	return &Runtime{eng: eng}, nil
}

// Open creates a connection to the database at path. The empty path and
// ":memory:" both open an in-memory database.
func (r *Runtime) Open(ctx context.Context, path string, opts ...OpenOption) (*Conn, error) {
	o := defaultOpenOptions()
	for _, opt := range opts {
		opt(&o)
	}

	inst, err := r.eng.Instantiate(ctx)
	if err != nil {
		return nil, err
	}
	conn, err := open(inst, path, o, func() error {
		return inst.Shutdown(ctx)
	})
	if err != nil {
		if cerr := inst.Shutdown(ctx); cerr != nil {
			Logger().Warn("instance teardown after failed open",
				zap.Error(cerr))
		}
		return nil, err
	}
	Logger().Debug("connection opened",
		zap.String("conn", conn.id),
		zap.String("path", path),
		zap.String("engine_version", inst.Version()))
	return conn, nil
}

// Close releases the runtime and every instance opened from it. Open
// connections become unusable.
func (r *Runtime) Close(ctx context.Context) error {
	return r.eng.Close(ctx)
}

// OpenOption configures one connection.
type OpenOption func(*openOptions)

type openOptions struct {
	flags       engine.OpenFlags
	vfs         string
	cacheSize   int
	busyTimeout int
}

func defaultOpenOptions() openOptions {
	return openOptions{
		flags:     engine.OpenReadWrite | engine.OpenCreate,
		cacheSize: defaultCacheSize,
	}
}

// WithReadOnly opens the database read-only; it must already exist.
func WithReadOnly() OpenOption {
	return func(o *openOptions) {
		o.flags = engine.OpenReadOnly
	}
}

// WithFlags replaces the open flags entirely.
func WithFlags(flags engine.OpenFlags) OpenOption {
	return func(o *openOptions) {
		o.flags = flags
	}
}

// WithVFS opens the database through the named VFS.
func WithVFS(name string) OpenOption {
	return func(o *openOptions) {
		o.vfs = name
	}
}

// WithCacheSize bounds the prepared-statement cache. Zero disables
// caching; the default is 16.
func WithCacheSize(n int) OpenOption {
	return func(o *openOptions) {
		o.cacheSize = n
	}
}

// WithBusyTimeout retries locked operations for the given number of
// milliseconds before reporting busy.
func WithBusyTimeout(ms int) OpenOption {
	return func(o *openOptions) {
		o.busyTimeout = ms
	}
}

// codeError converts a bare result code into an error, for call sites
// without a live connection to consult for message and extended code.
func codeError(phase errors.Phase, code errors.Code) error {
	return errors.TranslateAt(phase, code, code, "")
}
