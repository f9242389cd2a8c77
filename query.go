package dbkit

import (
	"context"

	"github.com/satishbabariya/dbkit/query/request"
	"github.com/satishbabariya/dbkit/runtime/executor"
	"github.com/satishbabariya/dbkit/runtime/trace"
)

// Query returns the rows of T matching where. WithOrder and WithTop shape
// the result.
func Query[T any](ctx context.Context, db *DB, where any, opts ...Option) ([]T, error) {
	o := newOptions(opts)
	t, err := entityTarget[T](o)
	if err != nil {
		return nil, err
	}
	cmd, err := db.queryCommand(t, o, where)
	if err != nil {
		return nil, err
	}
	return executor.Query[T](ctx, db.exec, db.connFor(o), cmd)
}

// QueryAll returns every row of T.
func QueryAll[T any](ctx context.Context, db *DB, opts ...Option) ([]T, error) {
	return Query[T](ctx, db, nil, opts...)
}

// QueryTable is Query on a table name, returning rows as maps.
func QueryTable(ctx context.Context, db *DB, table string, where any, opts ...Option) ([]map[string]any, error) {
	o := newOptions(opts)
	cmd, err := db.queryCommand(tableTarget(table, o), o, where)
	if err != nil {
		return nil, err
	}
	return db.exec.QueryMaps(ctx, db.connFor(o), cmd)
}

func (db *DB) queryCommand(t target, o *options, where any) (executor.Command, error) {
	group, err := t.where(where)
	if err != nil {
		return executor.Command{}, err
	}
	req := request.QueryRequest{
		Common: t.common(o, group, o.order),
		Top:    o.top,
	}
	return db.command(o, trace.KeyQuery, req, group.Values())
}

// Exists reports whether any row of T matches where.
func Exists[T any](ctx context.Context, db *DB, where any, opts ...Option) (bool, error) {
	o := newOptions(opts)
	t, err := entityTarget[T](o)
	if err != nil {
		return false, err
	}
	return db.exists(ctx, t, o, where)
}

// ExistsTable is Exists on a table name.
func ExistsTable(ctx context.Context, db *DB, table string, where any, opts ...Option) (bool, error) {
	o := newOptions(opts)
	return db.exists(ctx, tableTarget(table, o), o, where)
}

func (db *DB) exists(ctx context.Context, t target, o *options, where any) (bool, error) {
	group, err := t.where(where)
	if err != nil {
		return false, err
	}
	req := request.ExistsRequest{Common: t.common(o, group, nil)}
	req.Fields = nil
	cmd, err := db.command(o, trace.KeyExists, req, group.Values())
	if err != nil {
		return false, err
	}
	v, err := db.exec.Scalar(ctx, db.connFor(o), cmd)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}
