package dbkit

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/satishbabariya/dbkit/query/dialect"
	"github.com/satishbabariya/dbkit/query/filter"
	"github.com/satishbabariya/dbkit/query/request"
	"github.com/satishbabariya/dbkit/runtime/mapper"
	"github.com/satishbabariya/dbkit/runtime/trace"
)

// Update writes entity to the rows matching where. A nil where updates the
// row with the entity's primary key. The primary key and identity columns
// are never written; WithFields limits the columns further.
func Update[T any](ctx context.Context, db *DB, entity T, where any, opts ...Option) (int64, error) {
	o := newOptions(opts)
	t, err := entityTarget[T](o)
	if err != nil {
		return 0, err
	}
	values, err := t.class.Values(entity)
	if err != nil {
		return 0, err
	}
	return db.update(ctx, t, o, values, where)
}

// UpdateTable writes entity, a map[string]any or a struct, to the rows of
// table matching where. A nil where needs WithPrimaryKey, or a struct
// entity with a primary key.
func UpdateTable(ctx context.Context, db *DB, table string, entity any, where any, opts ...Option) (int64, error) {
	o := newOptions(opts)
	t := tableTarget(table, o)
	values, class, err := entityValues(entity)
	if err != nil {
		return 0, err
	}
	if class != nil {
		t.class = class
		if pk, ok := class.PrimaryKey(); ok && t.key == "" {
			t.key = pk.Column
		}
	}
	return db.update(ctx, t, o, values, where)
}

func (db *DB) update(ctx context.Context, t target, o *options, values []mapper.Value, where any) (int64, error) {
	var (
		group *filter.Group
		err   error
	)
	if where == nil {
		if t.key == "" {
			return 0, fmt.Errorf("%w: update of %s without where", ErrPrimaryKeyRequired, t.table)
		}
		v, ok := lookup(values, t.key)
		if !ok {
			return 0, fmt.Errorf("%w: entity has no %s value", ErrPrimaryKeyRequired, t.key)
		}
		group = filter.All(filter.Eq(t.key, v))
	} else if group, err = t.where(where); err != nil {
		return 0, err
	}

	set := t.writable(o, values, true)
	columns := make([]string, len(set))
	args := make([]any, 0, len(set))
	for i, v := range set {
		columns[i] = v.Column
		args = append(args, v.Value)
	}

	req := request.UpdateRequest{
		Common: request.Common{
			Table:       t.table,
			Fields:      columns,
			Where:       group,
			Transaction: o.tx != nil,
		},
	}
	cmd, err := db.command(o, trace.KeyUpdate, req, append(args, group.Values()...))
	if err != nil {
		return 0, err
	}
	return db.exec.NonQuery(ctx, db.connFor(o), cmd)
}

// Delete removes the rows of T matching where. A scalar where is a primary
// key value. A where that filters nothing, such as nil or an empty map, is
// refused; use DeleteAll.
func Delete[T any](ctx context.Context, db *DB, where any, opts ...Option) (int64, error) {
	o := newOptions(opts)
	t, err := entityTarget[T](o)
	if err != nil {
		return 0, err
	}
	return db.delete(ctx, t, o, where, false)
}

// DeleteAll removes every row of T.
func DeleteAll[T any](ctx context.Context, db *DB, opts ...Option) (int64, error) {
	o := newOptions(opts)
	t, err := entityTarget[T](o)
	if err != nil {
		return 0, err
	}
	return db.delete(ctx, t, o, nil, true)
}

// DeleteTable removes the rows of table matching where.
func DeleteTable(ctx context.Context, db *DB, table string, where any, opts ...Option) (int64, error) {
	o := newOptions(opts)
	return db.delete(ctx, tableTarget(table, o), o, where, false)
}

// DeleteAllTable removes every row of table.
func DeleteAllTable(ctx context.Context, db *DB, table string, opts ...Option) (int64, error) {
	o := newOptions(opts)
	return db.delete(ctx, tableTarget(table, o), o, nil, true)
}

// delete refuses a where that filters nothing unless all is set.
func (db *DB) delete(ctx context.Context, t target, o *options, where any, all bool) (int64, error) {
	group, err := t.where(where)
	if err != nil {
		return 0, err
	}
	if !all && group.IsEmpty() {
		return 0, ErrWhereRequired
	}
	req := request.DeleteRequest{Common: t.common(o, group, nil)}
	req.Fields = nil
	cmd, err := db.command(o, trace.KeyDelete, req, group.Values())
	if err != nil {
		return 0, err
	}
	return db.exec.NonQuery(ctx, db.connFor(o), cmd)
}

// Insert adds entity and returns the generated identity value, or nil when
// T has no identity column.
func Insert[T any](ctx context.Context, db *DB, entity T, opts ...Option) (any, error) {
	o := newOptions(opts)
	t, err := entityTarget[T](o)
	if err != nil {
		return nil, err
	}
	values, err := t.class.Values(entity)
	if err != nil {
		return nil, err
	}
	return db.insert(ctx, t, o, values)
}

// InsertTable adds entity, a map[string]any or a struct, to table.
func InsertTable(ctx context.Context, db *DB, table string, entity any, opts ...Option) (any, error) {
	o := newOptions(opts)
	t := tableTarget(table, o)
	values, class, err := entityValues(entity)
	if err != nil {
		return nil, err
	}
	t.class = class
	return db.insert(ctx, t, o, values)
}

func (db *DB) insert(ctx context.Context, t target, o *options, values []mapper.Value) (any, error) {
	set := t.writable(o, values, false)
	columns := make([]string, len(set))
	args := make([]any, len(set))
	for i, v := range set {
		columns[i] = v.Column
		args[i] = v.Value
	}

	var identity string
	if t.class != nil {
		if f, ok := t.class.Identity(); ok {
			identity = f.Column
		}
	}

	req := request.InsertRequest{
		Common: request.Common{
			Table:       t.table,
			Fields:      columns,
			Transaction: o.tx != nil,
		},
		Identity: identity,
	}
	cmd, err := db.command(o, trace.KeyInsert, req, args)
	if err != nil {
		return nil, err
	}

	if identity != "" && db.dialect.Identity() != dialect.LastInsertID {
		return db.exec.Scalar(ctx, db.connFor(o), cmd)
	}
	res, err := db.exec.Exec(ctx, db.connFor(o), cmd)
	if err != nil || res == nil || identity == "" {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read identity of %s: %w", t.table, err)
	}
	return id, nil
}

// writable filters values down to the columns an insert or update writes.
// The identity column is always skipped; updates also skip the key.
func (t target) writable(o *options, values []mapper.Value, skipKey bool) []mapper.Value {
	skip := map[string]bool{}
	if t.class != nil {
		if f, ok := t.class.Identity(); ok {
			skip[strings.ToLower(f.Column)] = true
		}
		if f, ok := t.class.PrimaryKey(); ok && skipKey {
			skip[strings.ToLower(f.Column)] = true
		}
	}
	if skipKey && t.key != "" {
		skip[strings.ToLower(t.key)] = true
	}

	var only map[string]bool
	if len(o.fields) > 0 {
		only = make(map[string]bool, len(o.fields))
		for _, f := range o.fields {
			only[strings.ToLower(t.resolve(f))] = true
		}
	}

	out := make([]mapper.Value, 0, len(values))
	for _, v := range values {
		col := strings.ToLower(v.Column)
		if skip[col] || (only != nil && !only[col]) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// entityValues reads column values from a map or struct entity. Map keys
// are sorted so equal maps share a statement.
func entityValues(entity any) ([]mapper.Value, *mapper.Class, error) {
	if m, ok := entity.(map[string]any); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		values := make([]mapper.Value, len(keys))
		for i, k := range keys {
			values[i] = mapper.Value{Column: k, Value: m[k]}
		}
		return values, nil, nil
	}
	if entity == nil {
		return nil, nil, fmt.Errorf("dbkit: nil entity")
	}

	class, err := mapper.Of(reflect.TypeOf(entity))
	if err != nil {
		return nil, nil, fmt.Errorf("dbkit: entity must be a map[string]any or struct: %w", err)
	}
	values, err := class.Values(entity)
	if err != nil {
		return nil, nil, err
	}
	return values, class, nil
}

func lookup(values []mapper.Value, column string) (any, bool) {
	for _, v := range values {
		if strings.EqualFold(v.Column, column) {
			return v.Value, true
		}
	}
	return nil, false
}
