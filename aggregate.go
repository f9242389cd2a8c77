package dbkit

import (
	"context"

	"github.com/satishbabariya/dbkit/query/request"
	"github.com/satishbabariya/dbkit/runtime/trace"
)

// Count counts the rows of T matching where.
func Count[T any](ctx context.Context, db *DB, where any, opts ...Option) (int64, error) {
	o := newOptions(opts)
	t, err := entityTarget[T](o)
	if err != nil {
		return 0, err
	}
	return db.count(ctx, t, o, where)
}

// CountAll counts every row of T.
func CountAll[T any](ctx context.Context, db *DB, opts ...Option) (int64, error) {
	return Count[T](ctx, db, nil, opts...)
}

// CountTable counts the rows of table matching where.
func CountTable(ctx context.Context, db *DB, table string, where any, opts ...Option) (int64, error) {
	o := newOptions(opts)
	return db.count(ctx, tableTarget(table, o), o, where)
}

// CountAllTable counts every row of table.
func CountAllTable(ctx context.Context, db *DB, table string, opts ...Option) (int64, error) {
	return CountTable(ctx, db, table, nil, opts...)
}

func (db *DB) count(ctx context.Context, t target, o *options, where any) (int64, error) {
	group, err := t.where(where)
	if err != nil {
		return 0, err
	}
	req := request.CountRequest{Common: t.common(o, group, nil)}
	req.Fields = nil
	cmd, err := db.command(o, trace.KeyCount, req, group.Values())
	if err != nil {
		return 0, err
	}
	v, err := db.exec.Scalar(ctx, db.connFor(o), cmd)
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

// Min returns the smallest value of column over the rows of T matching
// where, or nil when no row matches.
func Min[T any](ctx context.Context, db *DB, column string, where any, opts ...Option) (any, error) {
	return aggregate[T](ctx, db, request.Min, column, where, opts)
}

// Max returns the largest value of column.
func Max[T any](ctx context.Context, db *DB, column string, where any, opts ...Option) (any, error) {
	return aggregate[T](ctx, db, request.Max, column, where, opts)
}

// Sum returns the sum of column.
func Sum[T any](ctx context.Context, db *DB, column string, where any, opts ...Option) (any, error) {
	return aggregate[T](ctx, db, request.Sum, column, where, opts)
}

// Average returns the average of column.
func Average[T any](ctx context.Context, db *DB, column string, where any, opts ...Option) (any, error) {
	return aggregate[T](ctx, db, request.Average, column, where, opts)
}

// MinTable is Min on a table name.
func MinTable(ctx context.Context, db *DB, table, column string, where any, opts ...Option) (any, error) {
	o := newOptions(opts)
	return db.aggregate(ctx, tableTarget(table, o), o, request.Min, column, where)
}

// MaxTable is Max on a table name.
func MaxTable(ctx context.Context, db *DB, table, column string, where any, opts ...Option) (any, error) {
	o := newOptions(opts)
	return db.aggregate(ctx, tableTarget(table, o), o, request.Max, column, where)
}

// SumTable is Sum on a table name.
func SumTable(ctx context.Context, db *DB, table, column string, where any, opts ...Option) (any, error) {
	o := newOptions(opts)
	return db.aggregate(ctx, tableTarget(table, o), o, request.Sum, column, where)
}

// AverageTable is Average on a table name.
func AverageTable(ctx context.Context, db *DB, table, column string, where any, opts ...Option) (any, error) {
	o := newOptions(opts)
	return db.aggregate(ctx, tableTarget(table, o), o, request.Average, column, where)
}

func aggregate[T any](ctx context.Context, db *DB, fn request.Function, column string, where any, opts []Option) (any, error) {
	o := newOptions(opts)
	t, err := entityTarget[T](o)
	if err != nil {
		return nil, err
	}
	return db.aggregate(ctx, t, o, fn, column, where)
}

func (db *DB) aggregate(ctx context.Context, t target, o *options, fn request.Function, column string, where any) (any, error) {
	group, err := t.where(where)
	if err != nil {
		return nil, err
	}
	req := request.AggregateRequest{
		Common:   t.common(o, group, nil),
		Function: fn,
		Field:    t.resolve(column),
	}
	req.Fields = nil
	cmd, err := db.command(o, fn.Name(), req, group.Values())
	if err != nil {
		return nil, err
	}
	return db.exec.Scalar(ctx, db.connFor(o), cmd)
}
