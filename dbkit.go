// Package dbkit is a micro-ORM over database/sql.
//
// Every operation takes a "where" value in one of several shapes (a map or
// struct of equalities, a filter.Expr boolean expression, a filter.Field,
// a []filter.Field or a *filter.Group), normalizes it to a filter group and
// runs it through one path: fetch or build the command text for the
// request shape, bind the filter values, call the trace hooks and execute.
//
//	db, err := dbkit.Open("postgres", dsn)
//	users, err := dbkit.BatchQuery[User](ctx, db, 0, 50,
//		[]field.OrderField{field.Asc("id")},
//		filter.Expr("Age >= ?", 18))
package dbkit

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/satishbabariya/dbkit/internal/debug"
	"github.com/satishbabariya/dbkit/query/cache"
	"github.com/satishbabariya/dbkit/query/dialect"
	"github.com/satishbabariya/dbkit/query/filter"
	"github.com/satishbabariya/dbkit/query/sqlgen"
	"github.com/satishbabariya/dbkit/runtime/executor"
	"github.com/satishbabariya/dbkit/runtime/trace"
)

var (
	// ErrPrimaryKeyRequired is returned when an operation needs a key
	// column that the entity or options do not provide.
	ErrPrimaryKeyRequired = filter.ErrPrimaryKeyRequired
	// ErrWhereRequired is returned by Delete when where filters nothing; use DeleteAll.
	ErrWhereRequired = errors.New("dbkit: where is required, use DeleteAll to delete every row")
	// ErrTransactionsUnsupported is returned when the connection cannot begin a transaction.
	ErrTransactionsUnsupported = errors.New("dbkit: connection does not support transactions")
)

// DB runs operations on a connection for one dialect.
type DB struct {
	conn    executor.Conn
	dialect dialect.Dialect
	builder *sqlgen.Builder
	cache   *cache.CommandTextCache
	exec    *executor.Executor
	trace   trace.Trace
	logger  *slog.Logger
	closer  io.Closer
	depth   int // savepoint nesting inside a transaction
}

// Setting configures a DB.
type Setting func(*DB)

// SetLogger sets the logger. The default is the debug package logger.
func SetLogger(logger *slog.Logger) Setting {
	return func(db *DB) { db.logger = logger }
}

// SetCache sets the command-text cache. The default is cache.Default.
func SetCache(c *cache.CommandTextCache) Setting {
	return func(db *DB) { db.cache = c }
}

// SetTrace sets the trace used when an operation has no WithTrace option.
func SetTrace(t trace.Trace) Setting {
	return func(db *DB) { db.trace = t }
}

// New wraps an open connection.
func New(conn executor.Conn, d dialect.Dialect, settings ...Setting) *DB {
	db := &DB{
		conn:    conn,
		dialect: d,
		cache:   cache.Default,
		logger:  debug.Logger(),
	}
	for _, s := range settings {
		s(db)
	}
	db.builder = sqlgen.New(d)
	db.exec = executor.New(db.trace, db.logger)
	return db
}

// Open opens a database for a provider name such as "postgres", "mysql"
// or "sqlite". The returned DB owns the connection pool.
func Open(provider, dsn string, settings ...Setting) (*DB, error) {
	d, err := dialect.New(provider)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(dialect.DriverName(provider), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", d.Name(), err)
	}
	db := New(sqlDB, d, settings...)
	db.closer = sqlDB
	return db, nil
}

// Close closes the pool when the DB was created by Open.
func (db *DB) Close() error {
	if db.closer == nil {
		return nil
	}
	return db.closer.Close()
}

// Conn returns the underlying connection.
func (db *DB) Conn() executor.Conn { return db.conn }

// Dialect returns the SQL dialect.
func (db *DB) Dialect() dialect.Dialect { return db.dialect }

// Cache returns the command-text cache.
func (db *DB) Cache() *cache.CommandTextCache { return db.cache }

// Logger returns the logger.
func (db *DB) Logger() *slog.Logger { return db.logger }

// with returns a copy of db bound to another connection.
func (db *DB) with(conn executor.Conn, depth int) *DB {
	c := *db
	c.conn = conn
	c.closer = nil
	c.depth = depth
	return &c
}
