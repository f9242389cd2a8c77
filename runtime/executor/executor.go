// Package executor runs commands against a connection, wrapping each call
// with the before/after trace hooks and materializing the rows.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/satishbabariya/dbkit/runtime/trace"
)

// Conn is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Command is one statement ready to run.
type Command struct {
	// Key names the operation for traces, e.g. "BatchQuery".
	Key  string
	Text string
	Args []any
	// Trace overrides the executor's trace for this command.
	Trace trace.Trace
}

// Executor runs commands.
type Executor struct {
	trace  trace.Trace
	logger *slog.Logger
}

// New returns an executor. Both arguments may be nil.
func New(t trace.Trace, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{trace: t, logger: logger}
}

// Logger returns the executor's logger.
func (e *Executor) Logger() *slog.Logger { return e.logger }

// run is the trampoline shared by every operation. It reports cancelled as
// true when the trace cancelled without asking for an error.
func (e *Executor) run(ctx context.Context, cmd Command, exec func(text string, args []any) (any, error)) (result any, cancelled bool, err error) {
	t := cmd.Trace
	if t == nil {
		t = e.trace
	}

	if t == nil {
		e.logger.DebugContext(ctx, "Executing statement", "key", cmd.Key, "sql", cmd.Text, "args", len(cmd.Args))
		result, err = exec(cmd.Text, cmd.Args)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", cmd.Key, err)
		}
		return result, false, nil
	}

	before := trace.NewCancellableLog(cmd.Key, cmd.Text, cmd.Args)
	t.BeforeExecution(ctx, before)
	if before.IsCancelled() {
		e.logger.DebugContext(ctx, "Statement cancelled by trace", "key", cmd.Key, "session", before.SessionID)
		if err := before.Err(); err != nil {
			return nil, true, err
		}
		return nil, true, nil
	}

	e.logger.DebugContext(ctx, "Executing statement", "key", cmd.Key, "sql", before.Statement, "args", len(before.Parameters))
	result, err = exec(before.Statement, before.Parameters)
	t.AfterExecution(ctx, trace.NewResultLog(before, result, err))
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", cmd.Key, err)
	}
	return result, false, nil
}

// Query runs cmd and scans every row into a T. T is a struct, mapped by
// column name, or a single column type such as int64.
func Query[T any](ctx context.Context, e *Executor, conn Conn, cmd Command) ([]T, error) {
	v, _, err := e.run(ctx, cmd, func(text string, args []any) (any, error) {
		rows, err := conn.QueryContext(ctx, text, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanAll[T](rows)
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.([]T), nil
}

// QueryMaps runs cmd and returns every row as a column to value map.
// []byte values are returned as strings.
func (e *Executor) QueryMaps(ctx context.Context, conn Conn, cmd Command) ([]map[string]any, error) {
	v, _, err := e.run(ctx, cmd, func(text string, args []any) (any, error) {
		rows, err := conn.QueryContext(ctx, text, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanMaps(rows)
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.([]map[string]any), nil
}

// Scalar runs cmd and returns the first column of the first row, or nil
// when there is no row.
func (e *Executor) Scalar(ctx context.Context, conn Conn, cmd Command) (any, error) {
	v, _, err := e.run(ctx, cmd, func(text string, args []any) (any, error) {
		rows, err := conn.QueryContext(ctx, text, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanScalar(rows)
	})
	return v, err
}

// NonQuery runs cmd and returns the number of affected rows.
func (e *Executor) NonQuery(ctx context.Context, conn Conn, cmd Command) (int64, error) {
	v, _, err := e.run(ctx, cmd, func(text string, args []any) (any, error) {
		res, err := conn.ExecContext(ctx, text, args...)
		if err != nil {
			return nil, err
		}
		return res.RowsAffected()
	})
	if err != nil || v == nil {
		return 0, err
	}
	return v.(int64), nil
}

// Exec runs cmd and returns the driver result. The result is nil when a
// trace cancelled the call.
func (e *Executor) Exec(ctx context.Context, conn Conn, cmd Command) (sql.Result, error) {
	v, _, err := e.run(ctx, cmd, func(text string, args []any) (any, error) {
		return conn.ExecContext(ctx, text, args...)
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(sql.Result), nil
}
