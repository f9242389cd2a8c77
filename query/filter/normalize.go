package filter

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/satishbabariya/dbkit/runtime/mapper"
)

// Normalize turns any supported where value into a group.
//
// Accepted shapes are map[string]any and structs (every entry becomes an
// equality), *Expression, Field, *Field, []Field, []*Field, Group and
// *Group. A nil where yields a nil group, which callers read as "no
// filter". Scalars are primary key values and need NormalizeWithKey. A
// struct without mapped columns is rejected with ErrUnsupportedWhere.
func Normalize(where any) (*Group, error) {
	switch w := where.(type) {
	case nil:
		return nil, nil
	case *Group:
		return w, nil
	case Group:
		return w.clone(), nil
	case Field:
		return All(w), nil
	case *Field:
		if w == nil {
			return nil, nil
		}
		return All(*w), nil
	case []Field:
		return All(w...), nil
	case []*Field:
		fields := make([]Field, 0, len(w))
		for _, f := range w {
			if f != nil {
				fields = append(fields, *f)
			}
		}
		return All(fields...), nil
	case *Expression:
		if w == nil {
			return nil, nil
		}
		return w.Group()
	case Expression:
		return w.Group()
	case map[string]any:
		return fromMap(w), nil
	}

	if IsScalar(where) {
		return nil, fmt.Errorf("%w: got %T", ErrPrimaryKeyRequired, where)
	}

	rv := reflect.ValueOf(where)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		return fromStruct(rv.Interface())
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			m := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = iter.Value().Interface()
			}
			return fromMap(m), nil
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedWhere, where)
}

// NormalizeWithKey is Normalize that binds a scalar where to key, as in
// "WHERE key = where".
func NormalizeWithKey(where any, key string) (*Group, error) {
	if where != nil && IsScalar(where) {
		if key == "" {
			return nil, fmt.Errorf("%w: got %T", ErrPrimaryKeyRequired, where)
		}
		return All(Eq(key, where)), nil
	}
	return Normalize(where)
}

var (
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	timeType   = reflect.TypeOf(time.Time{})
)

// IsScalar reports whether v is a single column value rather than an object.
func IsScalar(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	if t.Implements(valuerType) || t == timeType {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice, reflect.Array:
		return t.Elem().Kind() == reflect.Uint8
	}
	return false
}

// fromMap builds an AND group with keys in sorted order, so equal maps
// share a shape. A Field value is used as is.
func fromMap(m map[string]any) *Group {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		switch v := m[k].(type) {
		case Field:
			fields = append(fields, v)
		default:
			fields = append(fields, Eq(k, v))
		}
	}
	return All(fields...)
}

func fromStruct(v any) (*Group, error) {
	class, err := mapper.Of(reflect.TypeOf(v))
	if err != nil {
		return nil, err
	}
	if len(class.Columns()) == 0 {
		return nil, fmt.Errorf("%w: %T has no mapped columns", ErrUnsupportedWhere, v)
	}
	values, err := class.Values(v)
	if err != nil {
		return nil, err
	}
	fields := make([]Field, len(values))
	for i, cv := range values {
		fields[i] = Eq(cv.Column, cv.Value)
	}
	return All(fields...), nil
}
