// Package request describes statement shapes. A request carries everything
// needed to render SQL text, and its Key identifies that text: two requests
// with equal keys always render the same statement.
package request

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/satishbabariya/dbkit/query/field"
	"github.com/satishbabariya/dbkit/query/filter"
)

var (
	ErrEmptyTable          = errors.New("request: table name is empty")
	ErrMissingOrder        = errors.New("request: order by is required for paging")
	ErrInvalidPage         = errors.New("request: page must not be negative")
	ErrInvalidRowsPerBatch = errors.New("request: rows per batch must be at least 1")
	ErrInvalidSkip         = errors.New("request: skip must not be negative")
	ErrInvalidTake         = errors.New("request: take must be at least 1")
	ErrInvalidTop          = errors.New("request: top must not be negative")
	ErrEmptyColumns        = errors.New("request: no columns to write")
	ErrMissingField        = errors.New("request: aggregate field is required")
)

// Kind names the statement a request renders.
type Kind string

const (
	KindQuery      Kind = "Query"
	KindBatchQuery Kind = "BatchQuery"
	KindSkipQuery  Kind = "SkipQuery"
	KindCount      Kind = "Count"
	KindAggregate  Kind = "Aggregate"
	KindUpdate     Kind = "Update"
	KindDelete     Kind = "Delete"
	KindInsert     Kind = "Insert"
	KindExists     Kind = "Exists"
)

// Request is implemented by every request type.
type Request interface {
	Kind() Kind
	// Key identifies the rendered text, as "Kind:table:hash".
	Key() string
	// Validate reports invalid requests before anything is rendered.
	Validate() error
}

// Common holds the parts shared by all requests.
type Common struct {
	Table  string
	Fields []string
	Where  *filter.Group
	Order  []field.OrderField
	Hints  string
	// Transaction marks requests executed inside a transaction. It does
	// not change the text and is not part of the key.
	Transaction bool
}

func (c Common) validate() error {
	if strings.TrimSpace(c.Table) == "" {
		return ErrEmptyTable
	}
	return c.Where.Validate()
}

// shape is the msgpack-encoded input of a key.
type shape struct {
	Kind   Kind     `msgpack:"k"`
	Table  string   `msgpack:"t"`
	Fields []string `msgpack:"f,omitempty"`
	Where  string   `msgpack:"w,omitempty"`
	Order  []string `msgpack:"o,omitempty"`
	Hints  string   `msgpack:"h,omitempty"`
	Top    int      `msgpack:"n,omitempty"`
	Extra  []string `msgpack:"x,omitempty"`
}

func (c Common) shape(kind Kind) shape {
	s := shape{
		Kind:   kind,
		Table:  c.Table,
		Fields: c.Fields,
		Where:  c.Where.Shape(),
		Hints:  c.Hints,
	}
	for _, o := range c.Order {
		s.Order = append(s.Order, o.String())
	}
	return s
}

func (s shape) key() string {
	data, err := msgpack.Marshal(s)
	if err != nil {
		data = []byte(fmt.Sprintf("%#v", s))
	}
	h := fnv.New64a()
	_, _ = h.Write(data)
	return string(s.Kind) + ":" + s.Table + ":" + hex.EncodeToString(h.Sum(nil))
}

// QueryRequest selects rows, optionally limited to Top rows.
type QueryRequest struct {
	Common
	Top int
}

func (r QueryRequest) Kind() Kind { return KindQuery }

func (r QueryRequest) Key() string {
	s := r.shape(KindQuery)
	s.Top = r.Top
	return s.key()
}

func (r QueryRequest) Validate() error {
	if r.Top < 0 {
		return ErrInvalidTop
	}
	return r.validate()
}

// BatchQueryRequest selects page Page of RowsPerBatch rows; pages start at 0.
type BatchQueryRequest struct {
	Common
	Page         int
	RowsPerBatch int
}

func (r BatchQueryRequest) Kind() Kind { return KindBatchQuery }

// Key ignores the page window; it is bound as arguments.
func (r BatchQueryRequest) Key() string { return r.shape(KindBatchQuery).key() }

func (r BatchQueryRequest) Validate() error {
	switch {
	case r.Page < 0:
		return ErrInvalidPage
	case r.RowsPerBatch < 1:
		return ErrInvalidRowsPerBatch
	case len(r.Order) == 0:
		return ErrMissingOrder
	}
	return r.validate()
}

// Window converts the page into skip/take.
func (r BatchQueryRequest) Window() (skip, take int) {
	return r.Page * r.RowsPerBatch, r.RowsPerBatch
}

// SkipQueryRequest skips Skip rows and returns the next Take.
type SkipQueryRequest struct {
	Common
	Skip int
	Take int
}

func (r SkipQueryRequest) Kind() Kind { return KindSkipQuery }

// Key ignores skip and take; they are bound as arguments.
func (r SkipQueryRequest) Key() string { return r.shape(KindSkipQuery).key() }

func (r SkipQueryRequest) Validate() error {
	switch {
	case r.Skip < 0:
		return ErrInvalidSkip
	case r.Take < 1:
		return ErrInvalidTake
	case len(r.Order) == 0:
		return ErrMissingOrder
	}
	return r.validate()
}

// CountRequest counts matching rows.
type CountRequest struct {
	Common
}

func (r CountRequest) Kind() Kind      { return KindCount }
func (r CountRequest) Key() string     { return r.shape(KindCount).key() }
func (r CountRequest) Validate() error { return r.validate() }

// Function is an aggregate function.
type Function string

const (
	Min     Function = "MIN"
	Max     Function = "MAX"
	Sum     Function = "SUM"
	Average Function = "AVG"
)

// Name returns the operation name of the function, e.g. "Average".
func (f Function) Name() string {
	switch f {
	case Min:
		return "Min"
	case Max:
		return "Max"
	case Sum:
		return "Sum"
	case Average:
		return "Average"
	}
	return string(f)
}

// AggregateRequest computes Function over Field.
type AggregateRequest struct {
	Common
	Function Function
	Field    string
}

func (r AggregateRequest) Kind() Kind { return KindAggregate }

func (r AggregateRequest) Key() string {
	s := r.shape(KindAggregate)
	s.Extra = []string{string(r.Function), r.Field}
	return s.key()
}

func (r AggregateRequest) Validate() error {
	if strings.TrimSpace(r.Field) == "" {
		return ErrMissingField
	}
	switch r.Function {
	case Min, Max, Sum, Average:
	default:
		return fmt.Errorf("request: unknown aggregate %q", r.Function)
	}
	return r.validate()
}

// UpdateRequest sets Fields on matching rows.
type UpdateRequest struct {
	Common
}

func (r UpdateRequest) Kind() Kind  { return KindUpdate }
func (r UpdateRequest) Key() string { return r.shape(KindUpdate).key() }

func (r UpdateRequest) Validate() error {
	if len(r.Fields) == 0 {
		return ErrEmptyColumns
	}
	return r.validate()
}

// DeleteRequest deletes matching rows.
type DeleteRequest struct {
	Common
}

func (r DeleteRequest) Kind() Kind      { return KindDelete }
func (r DeleteRequest) Key() string     { return r.shape(KindDelete).key() }
func (r DeleteRequest) Validate() error { return r.validate() }

// InsertRequest inserts one row of Fields. Identity names the generated
// key column to read back, if any.
type InsertRequest struct {
	Common
	Identity string
}

func (r InsertRequest) Kind() Kind { return KindInsert }

func (r InsertRequest) Key() string {
	s := r.shape(KindInsert)
	if r.Identity != "" {
		s.Extra = []string{r.Identity}
	}
	return s.key()
}

func (r InsertRequest) Validate() error {
	if len(r.Fields) == 0 {
		return ErrEmptyColumns
	}
	return r.validate()
}

// ExistsRequest checks whether any row matches.
type ExistsRequest struct {
	Common
}

func (r ExistsRequest) Kind() Kind      { return KindExists }
func (r ExistsRequest) Key() string     { return r.shape(KindExists).key() }
func (r ExistsRequest) Validate() error { return r.validate() }
