package executor

import (
	"fmt"
	"reflect"

	"github.com/jmoiron/sqlx"

	"github.com/satishbabariya/dbkit/query/dialect"
	"github.com/satishbabariya/dbkit/query/filter"
	"github.com/satishbabariya/dbkit/runtime/mapper"
)

// Bind prepares raw text for d.
//
// With a single map or struct argument the text uses ":name" parameters,
// resolved through the map keys or the struct's column names ("::" is a
// literal colon). Otherwise the text uses "?" positional parameters. Slice
// arguments are expanded for "IN (?)" and the markers are rebound to the
// dialect's placeholder style.
func Bind(d dialect.Dialect, text string, args ...any) (string, []any, error) {
	var err error
	if len(args) == 1 {
		if named, ok := namedArg(args[0]); ok {
			text, args, err = sqlx.Named(text, named)
			if err != nil {
				return "", nil, fmt.Errorf("bind named parameters: %w", err)
			}
		}
	}

	if len(args) > 0 {
		text, args, err = sqlx.In(text, args...)
		if err != nil {
			return "", nil, fmt.Errorf("expand parameters: %w", err)
		}
	}
	return sqlx.Rebind(sqlx.BindType(dialect.DriverName(d.Name())), text), args, nil
}

// namedArg returns arg as a parameter map when it is a map or struct.
func namedArg(arg any) (map[string]any, bool) {
	if arg == nil || filter.IsScalar(arg) {
		return nil, false
	}
	if m, ok := arg.(map[string]any); ok {
		return m, true
	}

	rv := reflect.ValueOf(arg)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}

	class, err := mapper.Of(rv.Type())
	if err != nil {
		return nil, false
	}
	values, err := class.Values(rv.Interface())
	if err != nil {
		return nil, false
	}
	m := make(map[string]any, len(values))
	for _, v := range values {
		m[v.Column] = v.Value
	}
	return m, true
}
