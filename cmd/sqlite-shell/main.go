package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/wippyai/sqlite-runtime/marshal"
	"github.com/wippyai/sqlite-runtime/sqlite"
)

func main() {
	var (
		engineFile  = flag.String("engine", "", "Path to engine wasm build")
		dbPath      = flag.String("db", ":memory:", "Database path")
		sqlText     = flag.String("sql", "", "SQL to execute (reads stdin when omitted and piped)")
		readOnly    = flag.Bool("readonly", false, "Open the database read-only")
		busyTimeout = flag.Int("timeout", 0, "Busy timeout in milliseconds")
		cacheSize   = flag.Int("cache", 16, "Prepared statement cache size")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *engineFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: sqlite-shell -engine <sqlite.wasm> [-db path] -sql <stmt>")
		fmt.Fprintln(os.Stderr, "       sqlite-shell -engine <sqlite.wasm> [-db path] -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(*engineFile, *dbPath, *readOnly); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*engineFile, *dbPath, *sqlText, *readOnly, *busyTimeout, *cacheSize); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openConn(ctx context.Context, engineFile, dbPath string, readOnly bool, opts ...sqlite.OpenOption) (*sqlite.Runtime, *sqlite.Conn, error) {
	data, err := os.ReadFile(engineFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read engine: %w", err)
	}

	rt, err := sqlite.NewRuntime(ctx, data)
	if err != nil {
		return nil, nil, fmt.Errorf("compile engine: %w", err)
	}

	if readOnly {
		opts = append(opts, sqlite.WithReadOnly())
	}
	conn, err := rt.Open(ctx, dbPath, opts...)
	if err != nil {
		rt.Close(ctx)
		return nil, nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	return rt, conn, nil
}

func run(engineFile, dbPath, sqlText string, readOnly bool, busyTimeout, cacheSize int) error {
	ctx := context.Background()

	if sqlText == "" {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("no SQL given; use -sql, pipe stdin, or -i")
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		sqlText = string(data)
	}

	opts := []sqlite.OpenOption{sqlite.WithCacheSize(cacheSize)}
	if busyTimeout > 0 {
		opts = append(opts, sqlite.WithBusyTimeout(busyTimeout))
	}
	rt, conn, err := openConn(ctx, engineFile, dbPath, readOnly, opts...)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)
	defer conn.Close()

	for _, stmt := range splitStatements(sqlText) {
		if err := runStatement(conn, stmt, os.Stdout); err != nil {
			return err
		}
	}
	return nil
}

// splitStatements cuts a script at semicolons. Good enough for shell
// input; quoted semicolons belong in -i mode one statement at a time.
func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		if strings.TrimSpace(part) != "" {
			out = append(out, part)
		}
	}
	return out
}

func runStatement(conn *sqlite.Conn, stmt string, w io.Writer) error {
	rows, err := conn.Query(stmt)
	if err != nil {
		return err
	}
	defer rows.Close()

	n := rows.ColumnCount()
	if n == 0 {
		for rows.Next() {
		}
		if err := rows.Err(); err != nil {
			return err
		}
		fmt.Fprintf(w, "ok (%d rows changed)\n", conn.Changes())
		return nil
	}

	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	names := make([]string, n)
	for i := range names {
		names[i] = rows.ColumnName(i)
	}
	fmt.Fprintln(tw, strings.Join(names, "\t"))

	count := 0
	for rows.Next() {
		cells := make([]string, n)
		for i := range cells {
			cells[i] = renderValue(rows, i)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "(%d rows)\n", count)
	return nil
}

func renderValue(rows *sqlite.Rows, i int) string {
	v := rows.Value(i)
	if v.Type() == marshal.TypeText {
		// Text cells print raw; String would quote them.
		return v.Text()
	}
	return v.String()
}
