package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/dbkit/query/request"
)

// Count renders SELECT COUNT(*) AS CountValue FROM t [WHERE].
func (b *Builder) Count(r request.CountRequest) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	return b.aggregate(r.Common, b.d.CountFunc(), "*", "CountValue"), nil
}

// Aggregate renders SELECT FN(field) AS FnValue FROM t [WHERE], e.g.
// MIN(price) AS MinValue.
func (b *Builder) Aggregate(r request.AggregateRequest) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	return b.aggregate(r.Common, string(r.Function), b.d.Quote(r.Field), r.Function.Name()+"Value"), nil
}

func (b *Builder) aggregate(c request.Common, fn, arg, alias string) string {
	argIndex := 1
	parts := []string{
		fmt.Sprintf("SELECT %s(%s) AS %s", fn, arg, b.d.Quote(alias)),
		b.from(c),
	}
	if where := b.where(c, &argIndex); where != "" {
		parts = append(parts, "WHERE "+where)
	}
	return strings.Join(parts, " ") + ";"
}
