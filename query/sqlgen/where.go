package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/dbkit/query/filter"
)

// buildWhereRecursive renders a filter group. Direct fields come first,
// then nested groups in parentheses, matching the order of
// (*filter.Group).Values.
func buildWhereRecursive(where *filter.Group, argIndex *int, placeholder func(int) string, quoter func(string) string) string {
	if where.IsEmpty() {
		return ""
	}

	var parts []string

	for _, f := range where.Fields() {
		parts = append(parts, buildCondition(f, argIndex, placeholder, quoter))
	}

	for _, group := range where.Groups() {
		if groupSQL := buildWhereRecursive(group, argIndex, placeholder, quoter); groupSQL != "" {
			parts = append(parts, "("+groupSQL+")")
		}
	}

	result := strings.Join(parts, " "+where.Conjunction().String()+" ")

	if where.IsNot() {
		result = "NOT (" + result + ")"
	}
	return result
}

// buildCondition renders one field and advances argIndex past its placeholders.
func buildCondition(f filter.Field, argIndex *int, placeholder func(int) string, quoter func(string) string) string {
	col := quoter(f.Name())
	next := func() string {
		p := placeholder(*argIndex)
		(*argIndex)++
		return p
	}

	if f.IsNull() {
		if f.Operation() == filter.NotEqual {
			return col + " IS NOT NULL"
		}
		return col + " IS NULL"
	}

	switch f.Operation() {
	case filter.In, filter.NotIn:
		n := len(f.Values())
		if n == 0 {
			// An empty list matches nothing, its negation everything.
			if f.Operation() == filter.In {
				return "1 = 0"
			}
			return "1 = 1"
		}
		placeholders := make([]string, n)
		for i := range placeholders {
			placeholders[i] = next()
		}
		return fmt.Sprintf("%s %s (%s)", col, f.Operation(), strings.Join(placeholders, ", "))

	case filter.Between, filter.NotBetween:
		lo := next()
		hi := next()
		return fmt.Sprintf("%s %s %s AND %s", col, f.Operation(), lo, hi)

	default:
		return fmt.Sprintf("%s %s %s", col, f.Operation(), next())
	}
}
