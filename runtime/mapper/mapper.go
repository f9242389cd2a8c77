// Package mapper resolves Go struct types into table and column metadata.
//
// Column names come from the `db` struct tag and fall back to the
// snake_case form of the field name. Tag options mark keys:
//
//	type User struct {
//	    ID        int64  `db:"id,primary,identity"`
//	    FirstName string // column "first_name"
//	    Secret    string `db:"-"`
//	}
//
// The table name is taken from a TableName() string method, or is the
// pluralised snake_case type name ("users" for User).
package mapper

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/jinzhu/inflection"
	"github.com/jmoiron/sqlx/reflectx"
)

// ErrNotStruct is returned when a type cannot be mapped.
var ErrNotStruct = errors.New("mapper: type is not a struct")

// Tabler lets an entity choose its own table name.
type Tabler interface {
	TableName() string
}

// Field describes one mapped struct field
type Field struct {
	Name     string // Go field name
	Column   string
	Index    []int
	Type     reflect.Type
	Primary  bool
	Identity bool
}

// Value is a column paired with the value read from an entity.
type Value struct {
	Column string
	Value  any
}

// Class holds the mapping of one struct type
type Class struct {
	Type   reflect.Type
	Table  string
	Fields []Field

	byColumn map[string]int
	byName   map[string]int
}

var (
	classes     sync.Map // reflect.Type -> *Class
	tablerType  = reflect.TypeOf((*Tabler)(nil)).Elem()
	columnsOnce sync.Once
	columns     *reflectx.Mapper
)

// For returns the class of T.
func For[T any]() (*Class, error) {
	return Of(reflect.TypeOf((*T)(nil)).Elem())
}

// Of returns the class of t, which must be a struct or a pointer to one.
func Of(t reflect.Type) (*Class, error) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v", ErrNotStruct, t)
	}
	if c, ok := classes.Load(t); ok {
		return c.(*Class), nil
	}
	c := build(t)
	actual, _ := classes.LoadOrStore(t, c)
	return actual.(*Class), nil
}

func build(t reflect.Type) *Class {
	c := &Class{
		Type:     t,
		Table:    tableName(t),
		byColumn: map[string]int{},
		byName:   map[string]int{},
	}
	collect(t, nil, c)

	// Fall back to a field called ID when nothing is tagged primary.
	if _, ok := c.PrimaryKey(); !ok {
		for i := range c.Fields {
			if strings.EqualFold(c.Fields[i].Name, "id") {
				c.Fields[i].Primary = true
				break
			}
		}
	}
	return c
}

func collect(t reflect.Type, parent []int, c *Class) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("db")
		if tag == "-" {
			continue
		}
		index := append(append([]int(nil), parent...), i)

		name, opts := parseTag(tag)
		if sf.Anonymous && name == "" {
			ft := sf.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				collect(ft, index, c)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = SnakeCase(sf.Name)
		}
		f := Field{
			Name:     sf.Name,
			Column:   name,
			Index:    index,
			Type:     sf.Type,
			Primary:  opts["primary"],
			Identity: opts["identity"],
		}
		if _, dup := c.byColumn[strings.ToLower(name)]; dup {
			continue
		}
		c.byColumn[strings.ToLower(name)] = len(c.Fields)
		c.byName[sf.Name] = len(c.Fields)
		c.Fields = append(c.Fields, f)
	}
}

func parseTag(tag string) (string, map[string]bool) {
	if tag == "" {
		return "", nil
	}
	parts := strings.Split(tag, ",")
	opts := make(map[string]bool, len(parts)-1)
	for _, p := range parts[1:] {
		opts[strings.TrimSpace(p)] = true
	}
	return strings.TrimSpace(parts[0]), opts
}

func tableName(t reflect.Type) string {
	if t.Implements(tablerType) {
		return reflect.Zero(t).Interface().(Tabler).TableName()
	}
	if reflect.PointerTo(t).Implements(tablerType) {
		return reflect.New(t).Interface().(Tabler).TableName()
	}
	return inflection.Plural(SnakeCase(t.Name()))
}

// Columns returns all mapped column names in declaration order.
func (c *Class) Columns() []string {
	cols := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		cols[i] = f.Column
	}
	return cols
}

// PrimaryKey returns the primary key field.
func (c *Class) PrimaryKey() (Field, bool) {
	for _, f := range c.Fields {
		if f.Primary {
			return f, true
		}
	}
	return Field{}, false
}

// Identity returns the identity (auto increment) field.
func (c *Class) Identity() (Field, bool) {
	for _, f := range c.Fields {
		if f.Identity {
			return f, true
		}
	}
	return Field{}, false
}

// Field looks up a field by column name (case-insensitive) or Go field name.
func (c *Class) Field(name string) (Field, bool) {
	if i, ok := c.byName[name]; ok {
		return c.Fields[i], true
	}
	if i, ok := c.byColumn[strings.ToLower(name)]; ok {
		return c.Fields[i], true
	}
	return Field{}, false
}

// Resolve maps a Go field name or column name onto the column name.
// Unknown names are returned unchanged.
func (c *Class) Resolve(name string) string {
	if f, ok := c.Field(name); ok {
		return f.Column
	}
	return name
}

// Values reads every mapped column from entity, a struct or pointer to one.
func (c *Class) Values(entity any) ([]Value, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("mapper: nil %v", c.Type)
		}
		v = v.Elem()
	}
	if v.Type() != c.Type {
		return nil, fmt.Errorf("mapper: expected %v, got %v", c.Type, v.Type())
	}

	values := make([]Value, 0, len(c.Fields))
	for _, f := range c.Fields {
		fv, ok := fieldByIndex(v, f.Index)
		if !ok {
			values = append(values, Value{Column: f.Column})
			continue
		}
		values = append(values, Value{Column: f.Column, Value: fv.Interface()})
	}
	return values, nil
}

// fieldByIndex walks index without allocating nil embedded pointers.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

// ColumnMapper returns a sqlx mapper that follows the same naming rules,
// for scanning rows into structs. Names are lower-cased, so lookups must
// lower-case column names too.
func ColumnMapper() *reflectx.Mapper {
	columnsOnce.Do(func() {
		columns = reflectx.NewMapperTagFunc("db",
			func(name string) string { return strings.ToLower(SnakeCase(name)) },
			strings.ToLower)
	})
	return columns
}

// SnakeCase converts "UserID" to "user_id" and "HTTPServer" to "http_server".
func SnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
