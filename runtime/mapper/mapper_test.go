package mapper

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Audit struct {
	CreatedAt time.Time
	UpdatedBy string `db:"updated_by"`
}

type Customer struct {
	ID        int64  `db:"id,primary,identity"`
	FirstName string
	Email     string `db:"email_address"`
	Secret    string `db:"-"`
	internal  string
	Audit
}

type OrderLine struct {
	ID    int
	SKU   string
	Price float64
}

type Person struct {
	Key  string `db:"person_key,primary"`
	Name string
}

func (Person) TableName() string { return "people" }

type Invoice struct {
	Number string
}

func (*Invoice) TableName() string { return "billing.invoices" }

func TestClass(t *testing.T) {
	c, err := For[Customer]()
	require.NoError(t, err)

	assert.Equal(t, "customers", c.Table)
	assert.Equal(t, []string{"id", "first_name", "email_address", "created_at", "updated_by"}, c.Columns())

	pk, ok := c.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, "ID", pk.Name)

	id, ok := c.Identity()
	require.True(t, ok)
	assert.Equal(t, "id", id.Column)

	f, ok := c.Field("CreatedAt")
	require.True(t, ok)
	assert.Equal(t, []int{5, 0}, f.Index)

	assert.Equal(t, "email_address", c.Resolve("Email"))
	assert.Equal(t, "email_address", c.Resolve("EMAIL_ADDRESS"))
	assert.Equal(t, "unknown", c.Resolve("unknown"))
}

func TestClassIsCached(t *testing.T) {
	a, err := For[Customer]()
	require.NoError(t, err)
	b, err := Of(reflect.TypeOf(&Customer{}))
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestPrimaryKeyFallsBackToID(t *testing.T) {
	c, err := For[OrderLine]()
	require.NoError(t, err)

	pk, ok := c.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, "id", pk.Column)
	_, ok = c.Identity()
	assert.False(t, ok)
	assert.Equal(t, "order_lines", c.Table)
	assert.Equal(t, []string{"id", "sku", "price"}, c.Columns())
}

func TestTableName(t *testing.T) {
	c, err := For[Person]()
	require.NoError(t, err)
	assert.Equal(t, "people", c.Table)
	pk, _ := c.PrimaryKey()
	assert.Equal(t, "person_key", pk.Column)

	c, err = For[Invoice]()
	require.NoError(t, err)
	assert.Equal(t, "billing.invoices", c.Table)
}

func TestNotStruct(t *testing.T) {
	_, err := For[int]()
	assert.ErrorIs(t, err, ErrNotStruct)
	_, err = Of(nil)
	assert.ErrorIs(t, err, ErrNotStruct)
}

func TestValues(t *testing.T) {
	c, err := For[OrderLine]()
	require.NoError(t, err)

	values, err := c.Values(&OrderLine{ID: 3, SKU: "A-1", Price: 9.5})
	require.NoError(t, err)
	assert.Equal(t, []Value{
		{Column: "id", Value: 3},
		{Column: "sku", Value: "A-1"},
		{Column: "price", Value: 9.5},
	}, values)

	_, err = c.Values((*OrderLine)(nil))
	assert.Error(t, err)
	_, err = c.Values(Person{})
	assert.Error(t, err)
}

func TestValuesWithNilEmbeddedPointer(t *testing.T) {
	type Base struct{ Tenant string }
	type Row struct {
		ID int
		*Base
	}
	c, err := For[Row]()
	require.NoError(t, err)

	values, err := c.Values(Row{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, []Value{{Column: "id", Value: 1}, {Column: "tenant"}}, values)
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"ID":         "id",
		"UserID":     "user_id",
		"FirstName":  "first_name",
		"HTTPServer": "http_server",
		"Address2":   "address2",
		"Line2Total": "line2_total",
		"already":    "already",
	}
	for in, want := range tests {
		assert.Equal(t, want, SnakeCase(in), in)
	}
}

func TestColumnMapper(t *testing.T) {
	m := ColumnMapper()
	assert.Same(t, m, ColumnMapper())

	fields := m.TypeMap(reflect.TypeOf(Customer{}))
	for _, name := range []string{"id", "first_name", "email_address", "created_at", "updated_by"} {
		assert.NotNil(t, fields.GetByPath(name), name)
	}
	assert.Nil(t, fields.GetByPath("secret"))
}
