// Package filter holds the canonical WHERE representation: immutable trees of
// field comparisons joined by AND/OR.
package filter

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

var (
	// ErrInvalidField is returned when a field cannot be rendered.
	ErrInvalidField = errors.New("filter: invalid field")
	// ErrUnsupportedWhere is returned for a where value of unknown shape.
	ErrUnsupportedWhere = errors.New("filter: unsupported where type")
	// ErrPrimaryKeyRequired is returned when a scalar where has no key column to bind to.
	ErrPrimaryKeyRequired = errors.New("filter: primary key required")
)

// Operation is a comparison operator.
type Operation int

const (
	Equal Operation = iota
	NotEqual
	LessThan
	GreaterThan
	LessThanOrEqual
	GreaterThanOrEqual
	Like
	NotLike
	Between
	NotBetween
	In
	NotIn
)

var operationText = [...]string{
	Equal:              "=",
	NotEqual:           "<>",
	LessThan:           "<",
	GreaterThan:        ">",
	LessThanOrEqual:    "<=",
	GreaterThanOrEqual: ">=",
	Like:               "LIKE",
	NotLike:            "NOT LIKE",
	Between:            "BETWEEN",
	NotBetween:         "NOT BETWEEN",
	In:                 "IN",
	NotIn:              "NOT IN",
}

// String returns the SQL operator.
func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationText) {
		return "Operation(" + strconv.Itoa(int(o)) + ")"
	}
	return operationText[o]
}

// Conjunction joins the members of a group.
type Conjunction int

const (
	And Conjunction = iota
	Or
)

// String returns "AND" or "OR".
func (c Conjunction) String() string {
	if c == Or {
		return "OR"
	}
	return "AND"
}

// Field is one comparison leaf. The zero value is not valid; build fields
// with Eq, Ne, InList and friends.
type Field struct {
	name string
	op   Operation
	args []any
	null bool
}

// NewField builds a field for any operation. In and NotIn flatten a slice
// value; Between and NotBetween expect a two element slice.
func NewField(name string, op Operation, value any) Field {
	f := Field{name: name, op: op}
	switch op {
	case In, NotIn, Between, NotBetween:
		f.args = flatten(value)
	case Equal, NotEqual:
		if isNil(value) {
			f.null = true
			return f
		}
		f.args = []any{value}
	default:
		f.args = []any{value}
	}
	return f
}

// Eq matches name = value, or name IS NULL for a nil value.
func Eq(name string, value any) Field { return NewField(name, Equal, value) }

// Ne matches name <> value, or name IS NOT NULL for a nil value.
func Ne(name string, value any) Field { return NewField(name, NotEqual, value) }

func Lt(name string, value any) Field { return NewField(name, LessThan, value) }
func Gt(name string, value any) Field { return NewField(name, GreaterThan, value) }
func Le(name string, value any) Field { return NewField(name, LessThanOrEqual, value) }
func Ge(name string, value any) Field { return NewField(name, GreaterThanOrEqual, value) }

// Matches is name LIKE pattern.
func Matches(name string, pattern any) Field { return NewField(name, Like, pattern) }

// NotMatches is name NOT LIKE pattern.
func NotMatches(name string, pattern any) Field { return NewField(name, NotLike, pattern) }

// Range matches name BETWEEN lo AND hi.
func Range(name string, lo, hi any) Field {
	return Field{name: name, op: Between, args: []any{lo, hi}}
}

// NotRange matches name NOT BETWEEN lo AND hi.
func NotRange(name string, lo, hi any) Field {
	return Field{name: name, op: NotBetween, args: []any{lo, hi}}
}

// InList matches name IN (values...).
func InList(name string, values ...any) Field {
	return Field{name: name, op: In, args: flattenAll(values)}
}

// NotInList matches name NOT IN (values...).
func NotInList(name string, values ...any) Field {
	return Field{name: name, op: NotIn, args: flattenAll(values)}
}

// Name returns the column name.
func (f Field) Name() string { return f.name }

// Operation returns the comparison operator.
func (f Field) Operation() Operation { return f.op }

// IsNull reports whether the field renders as IS [NOT] NULL.
func (f Field) IsNull() bool { return f.null }

// Values returns the bound arguments of the field.
func (f Field) Values() []any {
	if len(f.args) == 0 {
		return nil
	}
	return append([]any(nil), f.args...)
}

// Rename returns a copy of f bound to another column.
func (f Field) Rename(name string) Field {
	f.name = name
	f.args = f.Values()
	return f
}

// Shape describes the field without its values.
func (f Field) Shape() string {
	var b strings.Builder
	f.writeShape(&b)
	return b.String()
}

func (f Field) writeShape(b *strings.Builder) {
	b.WriteString(f.name)
	b.WriteByte(' ')
	switch {
	case f.null && f.op == NotEqual:
		b.WriteString("IS NOT NULL")
	case f.null:
		b.WriteString("IS NULL")
	default:
		b.WriteString(f.op.String())
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(len(f.args)))
	}
}

// Validate checks that the field can be rendered.
func (f Field) Validate() error {
	if strings.TrimSpace(f.name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidField)
	}
	switch f.op {
	case Equal, NotEqual:
		if !f.null && len(f.args) != 1 {
			return fmt.Errorf("%w: %s needs one value", ErrInvalidField, f.name)
		}
	case Between, NotBetween:
		if len(f.args) != 2 {
			return fmt.Errorf("%w: %s %s needs two values, got %d", ErrInvalidField, f.name, f.op, len(f.args))
		}
	case In, NotIn:
	case LessThan, GreaterThan, LessThanOrEqual, GreaterThanOrEqual, Like, NotLike:
		if len(f.args) != 1 || isNil(f.args[0]) {
			return fmt.Errorf("%w: %s %s needs a non-null value", ErrInvalidField, f.name, f.op)
		}
	default:
		return fmt.Errorf("%w: unknown operation %d", ErrInvalidField, int(f.op))
	}
	return nil
}

// String renders the field for debugging, e.g. "age >= 18".
func (f Field) String() string {
	switch {
	case f.null && f.op == NotEqual:
		return f.name + " IS NOT NULL"
	case f.null:
		return f.name + " IS NULL"
	}
	return fmt.Sprintf("%s %s %v", f.name, f.op, f.args)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// flatten expands a slice or array into its elements. []byte is a scalar.
func flatten(v any) []any {
	if v == nil {
		return nil
	}
	if vs, ok := v.([]any); ok {
		return append([]any(nil), vs...)
	}
	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}

func flattenAll(values []any) []any {
	if len(values) == 1 {
		return flatten(values[0])
	}
	return append([]any(nil), values...)
}
