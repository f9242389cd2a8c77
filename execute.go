package dbkit

import (
	"context"

	"github.com/satishbabariya/dbkit/runtime/executor"
	"github.com/satishbabariya/dbkit/runtime/trace"
)

// ExecuteQuery runs raw SQL and scans the rows into T.
//
// param is nil, a []any of "?" positional values, a single positional
// value, or a map[string]any or struct for ":name" parameters. Slice
// values expand "IN (?)".
func ExecuteQuery[T any](ctx context.Context, db *DB, text string, param any, opts ...Option) ([]T, error) {
	o := newOptions(opts)
	cmd, err := db.raw(o, trace.KeyExecuteQuery, text, param)
	if err != nil {
		return nil, err
	}
	return executor.Query[T](ctx, db.exec, db.connFor(o), cmd)
}

// ExecuteQueryMaps is ExecuteQuery returning rows as maps.
func ExecuteQueryMaps(ctx context.Context, db *DB, text string, param any, opts ...Option) ([]map[string]any, error) {
	o := newOptions(opts)
	cmd, err := db.raw(o, trace.KeyExecuteQuery, text, param)
	if err != nil {
		return nil, err
	}
	return db.exec.QueryMaps(ctx, db.connFor(o), cmd)
}

// ExecuteNonQuery runs raw SQL and returns the number of affected rows.
func ExecuteNonQuery(ctx context.Context, db *DB, text string, param any, opts ...Option) (int64, error) {
	o := newOptions(opts)
	cmd, err := db.raw(o, trace.KeyExecuteNonQuery, text, param)
	if err != nil {
		return 0, err
	}
	return db.exec.NonQuery(ctx, db.connFor(o), cmd)
}

// ExecuteScalar runs raw SQL and returns the first column of the first row.
func ExecuteScalar(ctx context.Context, db *DB, text string, param any, opts ...Option) (any, error) {
	o := newOptions(opts)
	cmd, err := db.raw(o, trace.KeyExecuteScalar, text, param)
	if err != nil {
		return nil, err
	}
	return db.exec.Scalar(ctx, db.connFor(o), cmd)
}

func (db *DB) raw(o *options, key, text string, param any) (executor.Command, error) {
	var args []any
	switch p := param.(type) {
	case nil:
	case []any:
		args = p
	default:
		args = []any{p}
	}
	bound, args, err := executor.Bind(db.dialect, text, args...)
	if err != nil {
		return executor.Command{}, err
	}
	return executor.Command{
		Key:   o.key(key),
		Text:  bound,
		Args:  args,
		Trace: o.trace,
	}, nil
}
