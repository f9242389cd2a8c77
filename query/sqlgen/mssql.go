package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/dbkit/query/request"
)

// rowNumberColumn is the window column added by rowNumber.
const rowNumberColumn = "RowNumber"

// rowNumber pages with ROW_NUMBER() for SQL Server releases without
// OFFSET/FETCH:
//
//	WITH CTE AS (SELECT ROW_NUMBER() OVER (ORDER BY ...) AS [RowNumber], cols
//	FROM t WHERE ...) SELECT cols FROM CTE
//	WHERE ([RowNumber] BETWEEN @pN AND @pN+1) ORDER BY [RowNumber];
//
// The outer query orders by the window column, so the ordering columns need
// not be among the selected fields.
func (b *Builder) rowNumber(c request.Common) string {
	argIndex := 1
	cols := b.columns(c.Fields)
	order := b.orderBy(c.Order)

	inner := []string{
		fmt.Sprintf("SELECT ROW_NUMBER() OVER (ORDER BY %s) AS %s, %s", order, b.d.Quote(rowNumberColumn), cols),
		b.from(c),
	}
	if where := b.where(c, &argIndex); where != "" {
		inner = append(inner, "WHERE "+where)
	}

	parts := []string{
		"WITH CTE AS (" + strings.Join(inner, " ") + ")",
		"SELECT " + cols,
		"FROM CTE",
		fmt.Sprintf("WHERE (%s BETWEEN %s AND %s)",
			b.d.Quote(rowNumberColumn), b.d.Placeholder(argIndex), b.d.Placeholder(argIndex+1)),
		"ORDER BY " + b.d.Quote(rowNumberColumn),
	}
	return strings.Join(parts, " ") + ";"
}
