package dbkit

import (
	"database/sql"

	"github.com/satishbabariya/dbkit/query/field"
	"github.com/satishbabariya/dbkit/runtime/trace"
)

// Option adjusts a single operation.
type Option func(*options)

type options struct {
	fields     []string
	hints      string
	trace      trace.Trace
	traceKey   string
	tx         *sql.Tx
	order      []field.OrderField
	top        int
	table      string
	primaryKey string
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithFields limits the columns read, or for updates the columns written.
func WithFields(names ...string) Option {
	return func(o *options) { o.fields = append(o.fields, names...) }
}

// WithHints appends table hints after the table name, e.g. "WITH (NOLOCK)".
func WithHints(hints string) Option {
	return func(o *options) { o.hints = hints }
}

// WithTrace sets the trace for this call.
func WithTrace(t trace.Trace) Option {
	return func(o *options) { o.trace = t }
}

// WithTraceKey overrides the key passed to the trace, "BatchQuery" by default
// for BatchQuery and so on.
func WithTraceKey(key string) Option {
	return func(o *options) { o.traceKey = key }
}

// WithTx runs the call inside tx.
func WithTx(tx *sql.Tx) Option {
	return func(o *options) { o.tx = tx }
}

// WithOrder sets ORDER BY for Query.
func WithOrder(order ...field.OrderField) Option {
	return func(o *options) { o.order = append(o.order, order...) }
}

// WithTop limits Query to n rows.
func WithTop(n int) Option {
	return func(o *options) { o.top = n }
}

// WithTable overrides the table derived from the entity type.
func WithTable(table string) Option {
	return func(o *options) { o.table = table }
}

// WithPrimaryKey names the key column for table operations, used when the
// where is a scalar or nil.
func WithPrimaryKey(column string) Option {
	return func(o *options) { o.primaryKey = column }
}

func (o *options) key(def string) string {
	if o.traceKey != "" {
		return o.traceKey
	}
	return def
}
