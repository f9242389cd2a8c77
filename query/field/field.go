// Package field describes the columns a statement reads and the order it returns them in.
package field

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOrder is returned when an order expression cannot be parsed.
var ErrInvalidOrder = errors.New("field: invalid order expression")

// Direction represents sort direction
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// String returns the SQL keyword for the direction.
func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// OrderField represents one ORDER BY item
type OrderField struct {
	Name      string
	Direction Direction
}

// Asc orders by name ascending.
func Asc(name string) OrderField {
	return OrderField{Name: name, Direction: Ascending}
}

// Desc orders by name descending.
func Desc(name string) OrderField {
	return OrderField{Name: name, Direction: Descending}
}

// String renders the order item as "name ASC".
func (o OrderField) String() string {
	return o.Name + " " + o.Direction.String()
}

// ParseOrder parses a comma separated list such as "last_name desc, id".
func ParseOrder(s string) ([]OrderField, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var result []OrderField
	for _, part := range strings.Split(s, ",") {
		words := strings.Fields(part)
		switch len(words) {
		case 1:
			result = append(result, Asc(words[0]))
		case 2:
			switch strings.ToUpper(words[1]) {
			case "ASC", "ASCENDING":
				result = append(result, Asc(words[0]))
			case "DESC", "DESCENDING":
				result = append(result, Desc(words[0]))
			default:
				return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidOrder, words[1])
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidOrder, strings.TrimSpace(part))
		}
	}
	return result, nil
}

// Names returns the field names of the order items.
func Names(fields []OrderField) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// Distinct removes case-insensitive duplicates, keeping the first occurrence.
func Distinct(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		key := strings.ToLower(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}
