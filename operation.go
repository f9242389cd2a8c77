package dbkit

import (
	"fmt"
	"strconv"

	"github.com/satishbabariya/dbkit/query/dialect"
	"github.com/satishbabariya/dbkit/query/field"
	"github.com/satishbabariya/dbkit/query/filter"
	"github.com/satishbabariya/dbkit/query/request"
	"github.com/satishbabariya/dbkit/runtime/executor"
	"github.com/satishbabariya/dbkit/runtime/mapper"
)

// target is the table an operation works on. class is nil for the
// table-name variants.
type target struct {
	table string
	class *mapper.Class
	key   string
}

func entityTarget[T any](o *options) (target, error) {
	class, err := mapper.For[T]()
	if err != nil {
		return target{}, err
	}
	t := target{table: class.Table, class: class}
	if o.table != "" {
		t.table = o.table
	}
	if pk, ok := class.PrimaryKey(); ok {
		t.key = pk.Column
	}
	if o.primaryKey != "" {
		t.key = o.primaryKey
	}
	return t, nil
}

func tableTarget(table string, o *options) target {
	return target{table: table, key: o.primaryKey}
}

// resolve maps Go field names onto column names for entity targets.
func (t target) resolve(name string) string {
	if t.class == nil {
		return name
	}
	return t.class.Resolve(name)
}

func (t target) where(where any) (*filter.Group, error) {
	g, err := filter.NormalizeWithKey(where, t.key)
	if err != nil {
		return nil, err
	}
	if g != nil && t.class != nil {
		g = g.MapNames(t.resolve)
	}
	return g, nil
}

func (t target) fields(o *options) []string {
	if len(o.fields) > 0 {
		names := make([]string, len(o.fields))
		for i, f := range o.fields {
			names[i] = t.resolve(f)
		}
		return field.Distinct(names)
	}
	if t.class != nil {
		return t.class.Columns()
	}
	return nil
}

func (t target) order(order []field.OrderField) []field.OrderField {
	if len(order) == 0 {
		return nil
	}
	out := make([]field.OrderField, len(order))
	for i, o := range order {
		out[i] = field.OrderField{Name: t.resolve(o.Name), Direction: o.Direction}
	}
	return out
}

func (t target) common(o *options, where *filter.Group, order []field.OrderField) request.Common {
	return request.Common{
		Table:       t.table,
		Fields:      t.fields(o),
		Where:       where,
		Order:       t.order(order),
		Hints:       o.hints,
		Transaction: o.tx != nil,
	}
}

func (db *DB) connFor(o *options) executor.Conn {
	if o.tx != nil {
		return o.tx
	}
	return db.conn
}

// command validates req, fetches its text from the cache and pairs it with args.
func (db *DB) command(o *options, key string, req request.Request, args []any) (executor.Command, error) {
	if err := req.Validate(); err != nil {
		return executor.Command{}, err
	}
	text, err := db.cache.Get(dialect.CacheName(db.dialect), req, func() (string, error) {
		return db.builder.Build(req)
	})
	if err != nil {
		return executor.Command{}, err
	}
	return executor.Command{
		Key:   o.key(key),
		Text:  text,
		Args:  args,
		Trace: o.trace,
	}, nil
}

// toInt64 converts a scalar read by the driver. nil converts to 0.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	}
	return 0, fmt.Errorf("dbkit: cannot convert %T to int64", v)
}
