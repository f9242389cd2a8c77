// Package dialect describes how each supported database spells identifiers,
// placeholders and paging.
package dialect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// Dialect names.
const (
	Postgres  = "postgres"
	MySQL     = "mysql"
	SQLite    = "sqlite"
	SQLServer = "sqlserver"
)

// ErrUnsupported is returned for an unknown provider name.
var ErrUnsupported = errors.New("dialect: unsupported provider")

// PagingStyle is the syntax used for skip/take windows.
type PagingStyle int

const (
	// LimitOffset renders "LIMIT ? OFFSET ?".
	LimitOffset PagingStyle = iota
	// OffsetFetch renders "OFFSET ? ROWS FETCH NEXT ? ROWS ONLY".
	OffsetFetch
	// RowNumber wraps the query in a ROW_NUMBER() window.
	RowNumber
)

func (p PagingStyle) String() string {
	switch p {
	case OffsetFetch:
		return "offsetfetch"
	case RowNumber:
		return "rownumber"
	default:
		return "limitoffset"
	}
}

// IdentityStyle is how an INSERT reports a generated key.
type IdentityStyle int

const (
	// LastInsertID reads sql.Result.LastInsertId.
	LastInsertID IdentityStyle = iota
	// Returning appends "RETURNING col".
	Returning
	// Output inserts "OUTPUT INSERTED.col" before VALUES.
	Output
)

// Dialect generates provider specific SQL fragments.
type Dialect interface {
	// Name returns one of the dialect name constants.
	Name() string
	// Quote quotes a possibly schema-qualified identifier.
	Quote(ident string) string
	// Placeholder returns the bind marker for the n-th argument, starting at 1.
	Placeholder(n int) string
	// CountFunc returns the COUNT function name.
	CountFunc() string
	// Paging returns the paging syntax.
	Paging() PagingStyle
	// Identity returns how inserted identities are read back.
	Identity() IdentityStyle
}

// Option configures a dialect.
type Option func(*settings) error

type settings struct {
	version *version.Version
}

// WithServerVersion records the server version, e.g. "10.50.6000" for
// SQL Server 2008 R2. Only SQL Server uses it today.
func WithServerVersion(v string) Option {
	return func(s *settings) error {
		parsed, err := version.NewVersion(v)
		if err != nil {
			return fmt.Errorf("dialect: invalid server version %q: %w", v, err)
		}
		s.version = parsed
		return nil
	}
}

// New returns the dialect for a provider name. Common aliases such as
// "postgresql", "mariadb", "sqlite3" and "mssql" are accepted.
func New(provider string, opts ...Option) (Dialect, error) {
	var s settings
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return nil, err
		}
	}

	switch Normalize(provider) {
	case Postgres:
		return postgres{}, nil
	case MySQL:
		return mysql{}, nil
	case SQLite:
		return sqlite{}, nil
	case SQLServer:
		return sqlserver{version: s.version}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, provider)
	}
}

// MustNew is New that panics on error.
func MustNew(provider string, opts ...Option) Dialect {
	d, err := New(provider, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// CacheName identifies the statements d renders. Dialects with the same
// name can differ in paging, so the paging style is part of it:
// "sqlserver/rownumber".
func CacheName(d Dialect) string {
	return d.Name() + "/" + d.Paging().String()
}

// Normalize maps provider aliases onto dialect names. Unknown names are
// returned lower-cased.
func Normalize(provider string) string {
	switch p := strings.ToLower(strings.TrimSpace(provider)); p {
	case "postgresql", "postgres", "pg", "pgx":
		return Postgres
	case "mysql", "mariadb":
		return MySQL
	case "sqlite", "sqlite3":
		return SQLite
	case "sqlserver", "mssql":
		return SQLServer
	default:
		return p
	}
}

// DriverName maps a dialect onto the database/sql driver registered for it.
func DriverName(provider string) string {
	switch Normalize(provider) {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite3"
	case SQLServer:
		return "sqlserver"
	default:
		return ""
	}
}

// quoteParts splits a schema-qualified identifier on unquoted dots and
// quotes each part with quote.
func quoteParts(ident string, quote func(string) string) string {
	ident = strings.TrimSpace(ident)
	if ident == "" || ident == "*" {
		return ident
	}
	parts := splitQualified(ident)
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}

// splitQualified splits on dots that are not inside a quoted section.
func splitQualified(ident string) []string {
	var (
		parts []string
		buf   strings.Builder
		quote rune
	)
	for _, r := range ident {
		switch {
		case quote != 0:
			buf.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '`':
			quote = r
			buf.WriteRune(r)
		case r == '[':
			quote = ']'
			buf.WriteRune(r)
		case r == '.':
			parts = append(parts, strings.TrimSpace(buf.String()))
			buf.Reset()
		default:
			buf.WriteRune(r)
		}
	}
	return append(parts, strings.TrimSpace(buf.String()))
}

// unquote strips one level of identifier quoting.
func unquote(part string) string {
	if len(part) < 2 {
		return part
	}
	switch first, last := part[0], part[len(part)-1]; {
	case first == '"' && last == '"':
		return strings.ReplaceAll(part[1:len(part)-1], `""`, `"`)
	case first == '`' && last == '`':
		return strings.ReplaceAll(part[1:len(part)-1], "``", "`")
	case first == '[' && last == ']':
		return strings.ReplaceAll(part[1:len(part)-1], "]]", "]")
	}
	return part
}
