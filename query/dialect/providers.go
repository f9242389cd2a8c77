package dialect

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/lib/pq"
)

// offsetFetchSince is the first SQL Server release (2012) with OFFSET … FETCH.
var offsetFetchSince = version.Must(version.NewVersion("11.0"))

type postgres struct{}

func (postgres) Name() string { return Postgres }

func (postgres) Quote(ident string) string {
	return quoteParts(ident, func(p string) string {
		return pq.QuoteIdentifier(unquote(p))
	})
}

func (postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (postgres) CountFunc() string        { return "COUNT" }
func (postgres) Paging() PagingStyle      { return LimitOffset }
func (postgres) Identity() IdentityStyle  { return Returning }

type mysql struct{}

func (mysql) Name() string { return MySQL }

func (mysql) Quote(ident string) string {
	return quoteParts(ident, func(p string) string {
		return "`" + strings.ReplaceAll(unquote(p), "`", "``") + "`"
	})
}

func (mysql) Placeholder(int) string  { return "?" }
func (mysql) CountFunc() string       { return "COUNT" }
func (mysql) Paging() PagingStyle     { return LimitOffset }
func (mysql) Identity() IdentityStyle { return LastInsertID }

type sqlite struct{}

func (sqlite) Name() string { return SQLite }

func (sqlite) Quote(ident string) string {
	return quoteParts(ident, func(p string) string {
		return `"` + strings.ReplaceAll(unquote(p), `"`, `""`) + `"`
	})
}

func (sqlite) Placeholder(int) string  { return "?" }
func (sqlite) CountFunc() string       { return "COUNT" }
func (sqlite) Paging() PagingStyle     { return LimitOffset }
func (sqlite) Identity() IdentityStyle { return LastInsertID }

type sqlserver struct {
	version *version.Version
}

func (sqlserver) Name() string { return SQLServer }

func (sqlserver) Quote(ident string) string {
	return quoteParts(ident, func(p string) string {
		return "[" + strings.ReplaceAll(unquote(p), "]", "]]") + "]"
	})
}

func (sqlserver) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }
func (sqlserver) CountFunc() string        { return "COUNT_BIG" }
func (sqlserver) Identity() IdentityStyle  { return Output }

// Paging falls back to ROW_NUMBER() for servers older than 2012. An
// unknown version is assumed to be current.
func (s sqlserver) Paging() PagingStyle {
	if s.version != nil && s.version.LessThan(offsetFetchSince) {
		return RowNumber
	}
	return OffsetFetch
}
