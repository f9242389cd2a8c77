package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/satishbabariya/dbkit"
	"github.com/satishbabariya/dbkit/query/dialect"
	"github.com/satishbabariya/dbkit/query/field"
	"github.com/satishbabariya/dbkit/query/filter"
	"github.com/satishbabariya/dbkit/query/request"
	"github.com/satishbabariya/dbkit/query/sqlgen"
)

// Operation names accepted by Operation.Op.
const (
	OpQuery   = "query"
	OpBatch   = "batch"
	OpSkip    = "skip"
	OpCount   = "count"
	OpMin     = "min"
	OpMax     = "max"
	OpSum     = "sum"
	OpAverage = "avg"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpExists  = "exists"
)

// Operation is one table operation as read from flags or a request file.
type Operation struct {
	Name   string         `yaml:"name,omitempty"`
	Op     string         `yaml:"op"`
	Table  string         `yaml:"table"`
	Where  string         `yaml:"where,omitempty"`
	Args   []any          `yaml:"args,omitempty"`
	Order  string         `yaml:"order,omitempty"`
	Fields []string       `yaml:"fields,omitempty"`
	Field  string         `yaml:"field,omitempty"`
	Hints  string         `yaml:"hints,omitempty"`
	Top    int            `yaml:"top,omitempty"`
	Page   int            `yaml:"page,omitempty"`
	Rows   int            `yaml:"rows,omitempty"`
	Skip   int            `yaml:"skip,omitempty"`
	Take   int            `yaml:"take,omitempty"`
	Set    map[string]any `yaml:"set,omitempty"`
}

// Result is what an operation returned: rows for reads, a scalar otherwise.
type Result struct {
	Rows   []map[string]any
	Scalar any
	IsRows bool
}

// Title names the operation for output headers.
func (o Operation) Title() string {
	if o.Name != "" {
		return o.Name
	}
	return fmt.Sprintf("%s %s", o.Op, o.Table)
}

func (o Operation) where() (*filter.Group, error) {
	if strings.TrimSpace(o.Where) == "" {
		if len(o.Args) > 0 {
			return nil, fmt.Errorf("%s: args given without where", o.Title())
		}
		return nil, nil
	}
	return filter.Expr(o.Where, o.Args...).Group()
}

func (o Operation) order() ([]field.OrderField, error) {
	return field.ParseOrder(o.Order)
}

func (o Operation) function() (request.Function, bool) {
	switch o.Op {
	case OpMin:
		return request.Min, true
	case OpMax:
		return request.Max, true
	case OpSum:
		return request.Sum, true
	case OpAverage:
		return request.Average, true
	}
	return "", false
}

func (o Operation) options() []dbkit.Option {
	var opts []dbkit.Option
	if len(o.Fields) > 0 {
		opts = append(opts, dbkit.WithFields(o.Fields...))
	}
	if o.Hints != "" {
		opts = append(opts, dbkit.WithHints(o.Hints))
	}
	if o.Top > 0 {
		opts = append(opts, dbkit.WithTop(o.Top))
	}
	return opts
}

// Execute runs the operation against db.
func (o Operation) Execute(ctx context.Context, db *dbkit.DB) (Result, error) {
	if o.Table == "" {
		return Result{}, fmt.Errorf("%s: table is required", o.Title())
	}
	where, err := o.where()
	if err != nil {
		return Result{}, err
	}
	order, err := o.order()
	if err != nil {
		return Result{}, err
	}
	opts := o.options()
	if len(order) > 0 {
		opts = append(opts, dbkit.WithOrder(order...))
	}

	// A nil *filter.Group must not reach the where parameter as a typed nil
	var w any
	if where != nil {
		w = where
	}

	rows := func(r []map[string]any, err error) (Result, error) {
		return Result{Rows: r, IsRows: true}, err
	}
	scalar := func(v any, err error) (Result, error) {
		return Result{Scalar: v}, err
	}

	switch o.Op {
	case OpQuery, "":
		return rows(dbkit.QueryTable(ctx, db, o.Table, w, opts...))
	case OpBatch:
		return rows(dbkit.BatchQueryTable(ctx, db, o.Table, o.Page, o.Rows, order, w, opts...))
	case OpSkip:
		return rows(dbkit.SkipQueryTable(ctx, db, o.Table, o.Skip, o.Take, order, w, opts...))
	case OpCount:
		return scalar(dbkit.CountTable(ctx, db, o.Table, w, opts...))
	case OpMin:
		return scalar(dbkit.MinTable(ctx, db, o.Table, o.Field, w, opts...))
	case OpMax:
		return scalar(dbkit.MaxTable(ctx, db, o.Table, o.Field, w, opts...))
	case OpSum:
		return scalar(dbkit.SumTable(ctx, db, o.Table, o.Field, w, opts...))
	case OpAverage:
		return scalar(dbkit.AverageTable(ctx, db, o.Table, o.Field, w, opts...))
	case OpExists:
		return scalar(dbkit.ExistsTable(ctx, db, o.Table, w, opts...))
	case OpUpdate:
		if w == nil {
			w = filter.All()
		}
		return scalar(dbkit.UpdateTable(ctx, db, o.Table, o.Set, w, opts...))
	case OpDelete:
		if w == nil {
			return scalar(dbkit.DeleteAllTable(ctx, db, o.Table, opts...))
		}
		return scalar(dbkit.DeleteTable(ctx, db, o.Table, w, opts...))
	}
	return Result{}, fmt.Errorf("unknown operation %q", o.Op)
}

// Render builds the statement and arguments the operation would run,
// without a database.
func (o Operation) Render(d dialect.Dialect) (string, []any, error) {
	where, err := o.where()
	if err != nil {
		return "", nil, err
	}
	order, err := o.order()
	if err != nil {
		return "", nil, err
	}
	common := request.Common{
		Table:  o.Table,
		Fields: field.Distinct(o.Fields),
		Where:  where,
		Order:  order,
		Hints:  o.Hints,
	}
	b := sqlgen.New(d)
	args := where.Values()

	var req request.Request
	switch o.Op {
	case OpQuery, "":
		req = request.QueryRequest{Common: common, Top: o.Top}
	case OpBatch:
		r := request.BatchQueryRequest{Common: common, Page: o.Page, RowsPerBatch: o.Rows}
		skip, take := r.Window()
		args = append(args, b.PagingArgs(skip, take)...)
		req = r
	case OpSkip:
		req = request.SkipQueryRequest{Common: common, Skip: o.Skip, Take: o.Take}
		args = append(args, b.PagingArgs(o.Skip, o.Take)...)
	case OpCount:
		common.Fields = nil
		req = request.CountRequest{Common: common}
	case OpMin, OpMax, OpSum, OpAverage:
		fn, _ := o.function()
		common.Fields = nil
		req = request.AggregateRequest{Common: common, Function: fn, Field: o.Field}
	case OpExists:
		common.Fields = nil
		req = request.ExistsRequest{Common: common}
	case OpUpdate:
		columns := make([]string, 0, len(o.Set))
		for k := range o.Set {
			columns = append(columns, k)
		}
		sort.Strings(columns)
		set := make([]any, len(columns))
		for i, c := range columns {
			set[i] = o.Set[c]
		}
		common.Fields = columns
		req = request.UpdateRequest{Common: common}
		args = append(set, args...)
	case OpDelete:
		common.Fields = nil
		req = request.DeleteRequest{Common: common}
	default:
		return "", nil, fmt.Errorf("unknown operation %q", o.Op)
	}

	text, err := b.Build(req)
	if err != nil {
		return "", nil, err
	}
	return text, args, nil
}
