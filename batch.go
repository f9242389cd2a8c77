package dbkit

import (
	"context"

	"github.com/satishbabariya/dbkit/query/field"
	"github.com/satishbabariya/dbkit/query/filter"
	"github.com/satishbabariya/dbkit/query/request"
	"github.com/satishbabariya/dbkit/runtime/executor"
	"github.com/satishbabariya/dbkit/runtime/trace"
)

// BatchQuery returns page page (starting at 0) of rowsPerBatch rows of T,
// ordered by orderBy.
func BatchQuery[T any](ctx context.Context, db *DB, page, rowsPerBatch int, orderBy []field.OrderField, where any, opts ...Option) ([]T, error) {
	o := newOptions(opts)
	t, err := entityTarget[T](o)
	if err != nil {
		return nil, err
	}
	cmd, err := db.batchCommand(t, o, page, rowsPerBatch, orderBy, where)
	if err != nil {
		return nil, err
	}
	return executor.Query[T](ctx, db.exec, db.connFor(o), cmd)
}

// BatchQueryTable is BatchQuery on a table name, returning rows as maps.
func BatchQueryTable(ctx context.Context, db *DB, table string, page, rowsPerBatch int, orderBy []field.OrderField, where any, opts ...Option) ([]map[string]any, error) {
	o := newOptions(opts)
	cmd, err := db.batchCommand(tableTarget(table, o), o, page, rowsPerBatch, orderBy, where)
	if err != nil {
		return nil, err
	}
	return db.exec.QueryMaps(ctx, db.connFor(o), cmd)
}

func (db *DB) batchCommand(t target, o *options, page, rowsPerBatch int, orderBy []field.OrderField, where any) (executor.Command, error) {
	group, err := t.where(where)
	if err != nil {
		return executor.Command{}, err
	}
	req := request.BatchQueryRequest{
		Common:       t.common(o, group, orderBy),
		Page:         page,
		RowsPerBatch: rowsPerBatch,
	}
	skip, take := req.Window()
	return db.command(o, trace.KeyBatchQuery, req, pagingArgs(db, group, skip, take))
}

// SkipQuery skips skip rows of T ordered by orderBy and returns the next take.
func SkipQuery[T any](ctx context.Context, db *DB, skip, take int, orderBy []field.OrderField, where any, opts ...Option) ([]T, error) {
	o := newOptions(opts)
	t, err := entityTarget[T](o)
	if err != nil {
		return nil, err
	}
	cmd, err := db.skipCommand(t, o, skip, take, orderBy, where)
	if err != nil {
		return nil, err
	}
	return executor.Query[T](ctx, db.exec, db.connFor(o), cmd)
}

// SkipQueryTable is SkipQuery on a table name, returning rows as maps.
func SkipQueryTable(ctx context.Context, db *DB, table string, skip, take int, orderBy []field.OrderField, where any, opts ...Option) ([]map[string]any, error) {
	o := newOptions(opts)
	cmd, err := db.skipCommand(tableTarget(table, o), o, skip, take, orderBy, where)
	if err != nil {
		return nil, err
	}
	return db.exec.QueryMaps(ctx, db.connFor(o), cmd)
}

func (db *DB) skipCommand(t target, o *options, skip, take int, orderBy []field.OrderField, where any) (executor.Command, error) {
	group, err := t.where(where)
	if err != nil {
		return executor.Command{}, err
	}
	req := request.SkipQueryRequest{
		Common: t.common(o, group, orderBy),
		Skip:   skip,
		Take:   take,
	}
	return db.command(o, trace.KeySkipQuery, req, pagingArgs(db, group, skip, take))
}

// pagingArgs binds the WHERE values followed by the paging window.
func pagingArgs(db *DB, group *filter.Group, skip, take int) []any {
	return append(group.Values(), db.builder.PagingArgs(skip, take)...)
}
