package executor

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"

	"github.com/satishbabariya/dbkit/runtime/mapper"
)

var errNoColumns = errors.New("statement returned no columns")

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// scanAll reads every row into a T. Struct types are filled by column
// name and unknown columns are skipped; any other type takes the first
// column.
func scanAll[T any](rows *sql.Rows) ([]T, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, errNoColumns
	}

	asStruct := t.Kind() == reflect.Struct && t != timeType && !reflect.PointerTo(t).Implements(scannerType)
	var traversals [][]int
	if asStruct {
		lowered := make([]string, len(columns))
		for i, c := range columns {
			lowered[i] = strings.ToLower(c)
		}
		traversals = mapper.ColumnMapper().TraversalsByName(t, lowered)
	}

	out := make([]T, 0)
	values := make([]any, len(columns))
	for rows.Next() {
		var item T
		if asStruct {
			v := reflect.ValueOf(&item).Elem()
			for i, index := range traversals {
				if len(index) == 0 {
					values[i] = new(any)
					continue
				}
				values[i] = reflectx.FieldByIndexes(v, index).Addr().Interface()
			}
		} else {
			values[0] = &item
			for i := 1; i < len(values); i++ {
				values[i] = new(any)
			}
		}
		if err := rows.Scan(values...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// scanMaps reads every row into a map keyed by column name.
func scanMaps(rows *sql.Rows) ([]map[string]any, error) {
	out := make([]map[string]any, 0)
	for rows.Next() {
		m := make(map[string]any)
		if err := sqlx.MapScan(rows, m); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for k, v := range m {
			m[k] = normalize(v)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanScalar(rows *sql.Rows) (any, error) {
	if !rows.Next() {
		return nil, rows.Err()
	}
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, errNoColumns
	}
	values := make([]any, len(columns))
	for i := range values {
		values[i] = new(any)
	}
	if err := rows.Scan(values...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	return normalize(*(values[0].(*any))), rows.Err()
}

// normalize turns driver byte slices into strings.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
