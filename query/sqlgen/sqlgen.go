// Package sqlgen renders request shapes into SQL text for a dialect.
//
// The builder only produces text. Arguments are bound at execution time in
// the same order the placeholders are written: SET values first, then the
// WHERE values of the filter group, then any paging window.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/dbkit/query/dialect"
	"github.com/satishbabariya/dbkit/query/field"
	"github.com/satishbabariya/dbkit/query/request"
)

// Builder generates SQL for one dialect. It is safe for concurrent use.
type Builder struct {
	d dialect.Dialect
}

// New returns a builder for d.
func New(d dialect.Dialect) *Builder {
	return &Builder{d: d}
}

// Dialect returns the builder's dialect.
func (b *Builder) Dialect() dialect.Dialect { return b.d }

// Build renders any request.
func (b *Builder) Build(req request.Request) (string, error) {
	switch r := req.(type) {
	case request.QueryRequest:
		return b.Query(r)
	case request.BatchQueryRequest:
		return b.BatchQuery(r)
	case request.SkipQueryRequest:
		return b.SkipQuery(r)
	case request.CountRequest:
		return b.Count(r)
	case request.AggregateRequest:
		return b.Aggregate(r)
	case request.UpdateRequest:
		return b.Update(r)
	case request.DeleteRequest:
		return b.Delete(r)
	case request.InsertRequest:
		return b.Insert(r)
	case request.ExistsRequest:
		return b.Exists(r)
	default:
		return "", fmt.Errorf("sqlgen: unsupported request %T", req)
	}
}

// Query renders SELECT cols FROM t [WHERE] [ORDER BY] with an optional row limit.
func (b *Builder) Query(r request.QueryRequest) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	var parts []string
	argIndex := 1

	if r.Top > 0 && b.d.Paging() != dialect.LimitOffset {
		parts = append(parts, fmt.Sprintf("SELECT TOP (%d) %s", r.Top, b.columns(r.Fields)))
	} else {
		parts = append(parts, "SELECT "+b.columns(r.Fields))
	}
	parts = append(parts, b.from(r.Common))

	if where := b.where(r.Common, &argIndex); where != "" {
		parts = append(parts, "WHERE "+where)
	}
	if len(r.Order) > 0 {
		parts = append(parts, "ORDER BY "+b.orderBy(r.Order))
	}
	if r.Top > 0 && b.d.Paging() == dialect.LimitOffset {
		parts = append(parts, fmt.Sprintf("LIMIT %d", r.Top))
	}
	return strings.Join(parts, " ") + ";", nil
}

// BatchQuery renders one page. The window is bound through PagingArgs.
func (b *Builder) BatchQuery(r request.BatchQueryRequest) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	return b.paged(r.Common), nil
}

// SkipQuery renders a skip/take window. The window is bound through PagingArgs.
func (b *Builder) SkipQuery(r request.SkipQueryRequest) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	return b.paged(r.Common), nil
}

func (b *Builder) paged(c request.Common) string {
	if b.d.Paging() == dialect.RowNumber {
		return b.rowNumber(c)
	}

	argIndex := 1
	parts := []string{"SELECT " + b.columns(c.Fields), b.from(c)}
	if where := b.where(c, &argIndex); where != "" {
		parts = append(parts, "WHERE "+where)
	}
	parts = append(parts, "ORDER BY "+b.orderBy(c.Order))

	if b.d.Paging() == dialect.OffsetFetch {
		parts = append(parts, fmt.Sprintf("OFFSET %s ROWS FETCH NEXT %s ROWS ONLY",
			b.d.Placeholder(argIndex), b.d.Placeholder(argIndex+1)))
	} else {
		parts = append(parts, fmt.Sprintf("LIMIT %s OFFSET %s",
			b.d.Placeholder(argIndex), b.d.Placeholder(argIndex+1)))
	}
	return strings.Join(parts, " ") + ";"
}

// PagingArgs returns the arguments that follow the WHERE values of a paged
// statement, in the order the dialect's paging clause expects them.
func (b *Builder) PagingArgs(skip, take int) []any {
	switch b.d.Paging() {
	case dialect.OffsetFetch:
		return []any{skip, take}
	case dialect.RowNumber:
		return []any{skip + 1, skip + take}
	default:
		return []any{take, skip}
	}
}

// Update renders UPDATE t SET a = ?, ... [WHERE].
func (b *Builder) Update(r request.UpdateRequest) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	argIndex := 1
	sets := make([]string, len(r.Fields))
	for i, col := range r.Fields {
		sets[i] = fmt.Sprintf("%s = %s", b.d.Quote(col), b.d.Placeholder(argIndex))
		argIndex++
	}

	parts := []string{
		"UPDATE " + b.d.Quote(r.Table),
		"SET " + strings.Join(sets, ", "),
	}
	if where := b.where(r.Common, &argIndex); where != "" {
		parts = append(parts, "WHERE "+where)
	}
	return strings.Join(parts, " ") + ";", nil
}

// Delete renders DELETE FROM t [WHERE].
func (b *Builder) Delete(r request.DeleteRequest) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	argIndex := 1
	parts := []string{"DELETE FROM " + b.d.Quote(r.Table)}
	if where := b.where(r.Common, &argIndex); where != "" {
		parts = append(parts, "WHERE "+where)
	}
	return strings.Join(parts, " ") + ";", nil
}

// Insert renders INSERT INTO t (cols) VALUES (...), reading back the
// identity column where the dialect can return it.
func (b *Builder) Insert(r request.InsertRequest) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	cols := make([]string, len(r.Fields))
	values := make([]string, len(r.Fields))
	for i, col := range r.Fields {
		cols[i] = b.d.Quote(col)
		values[i] = b.d.Placeholder(i + 1)
	}

	parts := []string{
		fmt.Sprintf("INSERT INTO %s (%s)", b.d.Quote(r.Table), strings.Join(cols, ", ")),
	}
	if r.Identity != "" && b.d.Identity() == dialect.Output {
		parts = append(parts, "OUTPUT INSERTED."+b.d.Quote(r.Identity))
	}
	parts = append(parts, fmt.Sprintf("VALUES (%s)", strings.Join(values, ", ")))
	if r.Identity != "" && b.d.Identity() == dialect.Returning {
		parts = append(parts, "RETURNING "+b.d.Quote(r.Identity))
	}
	return strings.Join(parts, " ") + ";", nil
}

// Exists renders a single row probe.
func (b *Builder) Exists(r request.ExistsRequest) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	argIndex := 1
	var parts []string
	if b.d.Paging() == dialect.LimitOffset {
		parts = append(parts, "SELECT 1 AS "+b.d.Quote("ExistsValue"))
	} else {
		parts = append(parts, "SELECT TOP (1) 1 AS "+b.d.Quote("ExistsValue"))
	}
	parts = append(parts, b.from(r.Common))
	if where := b.where(r.Common, &argIndex); where != "" {
		parts = append(parts, "WHERE "+where)
	}
	if b.d.Paging() == dialect.LimitOffset {
		parts = append(parts, "LIMIT 1")
	}
	return strings.Join(parts, " ") + ";", nil
}

// columns returns the quoted select list, or * when no field is requested.
func (b *Builder) columns(fields []string) string {
	fields = field.Distinct(fields)
	if len(fields) == 0 {
		return "*"
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = b.d.Quote(f)
	}
	return strings.Join(quoted, ", ")
}

// from renders FROM t followed by the table hints, if any.
func (b *Builder) from(c request.Common) string {
	s := "FROM " + b.d.Quote(c.Table)
	if hints := strings.TrimSpace(c.Hints); hints != "" {
		s += " " + hints
	}
	return s
}

func (b *Builder) orderBy(order []field.OrderField) string {
	parts := make([]string, len(order))
	for i, o := range order {
		parts[i] = b.d.Quote(o.Name) + " " + o.Direction.String()
	}
	return strings.Join(parts, ", ")
}

func (b *Builder) where(c request.Common, argIndex *int) string {
	return buildWhereRecursive(c.Where, argIndex, b.d.Placeholder, b.d.Quote)
}
