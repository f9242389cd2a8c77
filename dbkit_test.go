package dbkit

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/dbkit/query/cache"
	"github.com/satishbabariya/dbkit/query/dialect"
	"github.com/satishbabariya/dbkit/query/field"
	"github.com/satishbabariya/dbkit/query/filter"
	"github.com/satishbabariya/dbkit/runtime/trace"
)

type Member struct {
	ID    int64 `db:"id,primary,identity"`
	Name  string
	Age   int
	Email string
}

var byID = []field.OrderField{field.Asc("ID")}

func mockDB(t *testing.T, provider string, settings ...Setting) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		conn.Close()
	})
	settings = append([]Setting{SetCache(cache.New(0))}, settings...)
	return New(conn, dialect.MustNew(provider), settings...), mock
}

func memberRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "age", "email"}).
		AddRow(int64(21), "Ann", int64(30), "ann@example.com")
}

func TestBatchQuery(t *testing.T) {
	db, mock := mockDB(t, dialect.SQLite)
	mock.ExpectQuery(`SELECT "id", "name", "age", "email" FROM "members" WHERE "age" >= ? ORDER BY "id" ASC LIMIT ? OFFSET ?;`).
		WithArgs(18, 10, 20).
		WillReturnRows(memberRows())

	members, err := BatchQuery[Member](context.Background(), db, 2, 10, byID, filter.Expr("Age >= ?", 18))
	require.NoError(t, err)
	assert.Equal(t, []Member{{ID: 21, Name: "Ann", Age: 30, Email: "ann@example.com"}}, members)
}

func TestBatchQuerySQLServerArgsOrder(t *testing.T) {
	db, mock := mockDB(t, dialect.SQLServer)
	mock.ExpectQuery(`SELECT [id], [name], [age], [email] FROM [members] WHERE [age] >= @p1 ORDER BY [id] ASC OFFSET @p2 ROWS FETCH NEXT @p3 ROWS ONLY;`).
		WithArgs(18, 20, 10).
		WillReturnRows(memberRows())

	_, err := BatchQuery[Member](context.Background(), db, 2, 10, byID, filter.Ge("age", 18))
	require.NoError(t, err)
}

func TestSharedCacheSeparatesSQLServerPaging(t *testing.T) {
	shared := cache.New(0)
	open := func(d dialect.Dialect) (*DB, sqlmock.Sqlmock) {
		conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		t.Cleanup(func() {
			assert.NoError(t, mock.ExpectationsWereMet())
			conn.Close()
		})
		return New(conn, d, SetCache(shared)), mock
	}
	ctx := context.Background()

	legacy, legacyMock := open(dialect.MustNew(dialect.SQLServer, dialect.WithServerVersion("10.50")))
	legacyMock.ExpectQuery(`WITH CTE AS (SELECT ROW_NUMBER() OVER (ORDER BY [ID] ASC) AS [RowNumber], * FROM [members]) ` +
		`SELECT * FROM CTE WHERE ([RowNumber] BETWEEN @p1 AND @p2) ORDER BY [RowNumber];`).
		WithArgs(11, 20).
		WillReturnRows(sqlmock.NewRows([]string{"ID"}))

	current, currentMock := open(dialect.MustNew(dialect.SQLServer))
	currentMock.ExpectQuery(`SELECT * FROM [members] ORDER BY [ID] ASC OFFSET @p1 ROWS FETCH NEXT @p2 ROWS ONLY;`).
		WithArgs(10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"ID"}))

	_, err := BatchQueryTable(ctx, legacy, "members", 1, 10, byID, nil)
	require.NoError(t, err)
	_, err = BatchQueryTable(ctx, current, "members", 1, 10, byID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, shared.Stats().Size)
}

func TestBatchQueryTable(t *testing.T) {
	db, mock := mockDB(t, dialect.MySQL)
	mock.ExpectQuery("SELECT `id`, `name` FROM `members` ORDER BY `name` DESC LIMIT ? OFFSET ?;").
		WithArgs(3, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), []byte("Zed")))

	rows, err := BatchQueryTable(context.Background(), db, "members", 0, 3,
		[]field.OrderField{field.Desc("name")}, nil, WithFields("id", "name"))
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": int64(1), "name": "Zed"}}, rows)
}

func TestSkipQuerySharesBatchText(t *testing.T) {
	db, mock := mockDB(t, dialect.Postgres)
	text := `SELECT "id", "name", "age", "email" FROM "members" WHERE "name" = $1 ORDER BY "id" ASC LIMIT $2 OFFSET $3;`
	mock.ExpectQuery(text).WithArgs("Ann", 5, 0).WillReturnRows(memberRows())
	mock.ExpectQuery(text).WithArgs("Bob", 4, 3).WillReturnRows(memberRows())

	ctx := context.Background()
	_, err := BatchQuery[Member](ctx, db, 0, 5, byID, map[string]any{"name": "Ann"})
	require.NoError(t, err)
	_, err = SkipQuery[Member](ctx, db, 3, 4, byID, map[string]any{"name": "Bob"})
	require.NoError(t, err)
}

func TestPagingValidation(t *testing.T) {
	db, _ := mockDB(t, dialect.SQLite)
	ctx := context.Background()

	_, err := BatchQuery[Member](ctx, db, 0, 10, nil, nil)
	assert.Error(t, err)
	_, err = BatchQuery[Member](ctx, db, -1, 10, byID, nil)
	assert.Error(t, err)
	_, err = SkipQueryTable(ctx, db, "members", 0, 0, byID, nil)
	assert.Error(t, err)
	_, err = SkipQueryTable(ctx, db, "", 0, 1, byID, nil)
	assert.Error(t, err)
}

func TestCount(t *testing.T) {
	db, mock := mockDB(t, dialect.SQLite)
	text := `SELECT COUNT(*) AS "CountValue" FROM "members" WHERE "age" > ?;`
	mock.ExpectQuery(text).WithArgs(18).WillReturnRows(sqlmock.NewRows([]string{"CountValue"}).AddRow(int64(3)))
	mock.ExpectQuery(text).WithArgs(65).WillReturnRows(sqlmock.NewRows([]string{"CountValue"}).AddRow("4"))
	mock.ExpectQuery(`SELECT COUNT(*) AS "CountValue" FROM "members";`).
		WillReturnRows(sqlmock.NewRows([]string{"CountValue"}).AddRow(int64(9)))

	ctx := context.Background()
	n, err := Count[Member](ctx, db, filter.Expr("Age > ?", 18))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = Count[Member](ctx, db, filter.Expr("Age > ?", 65))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = CountAllTable(ctx, db, "members")
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)

	stats := db.Cache().Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestMin(t *testing.T) {
	db, mock := mockDB(t, dialect.Postgres)
	mock.ExpectQuery(`SELECT MIN("age") AS "MinValue" FROM "members" WHERE "email" LIKE $1;`).
		WithArgs("%@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"MinValue"}).AddRow(int64(18)))
	mock.ExpectQuery(`SELECT MIN("age") AS "MinValue" FROM "members";`).
		WillReturnRows(sqlmock.NewRows([]string{"MinValue"}).AddRow(nil))

	ctx := context.Background()
	v, err := Min[Member](ctx, db, "Age", filter.Matches("Email", "%@example.com"))
	require.NoError(t, err)
	assert.Equal(t, int64(18), v)

	v, err = MinTable(ctx, db, "members", "age", nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestOtherAggregates(t *testing.T) {
	db, mock := mockDB(t, dialect.SQLite)
	mock.ExpectQuery(`SELECT MAX("age") AS "MaxValue" FROM "members";`).
		WillReturnRows(sqlmock.NewRows([]string{"MaxValue"}).AddRow(int64(70)))
	mock.ExpectQuery(`SELECT SUM("age") AS "SumValue" FROM "members";`).
		WillReturnRows(sqlmock.NewRows([]string{"SumValue"}).AddRow(int64(100)))
	mock.ExpectQuery(`SELECT AVG("age") AS "AverageValue" FROM "members";`).
		WillReturnRows(sqlmock.NewRows([]string{"AverageValue"}).AddRow(25.5))

	ctx := context.Background()
	v, err := Max[Member](ctx, db, "Age", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(70), v)

	v, err = Sum[Member](ctx, db, "Age", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(100), v)

	v, err = Average[Member](ctx, db, "Age", nil)
	require.NoError(t, err)
	assert.Equal(t, 25.5, v)

	_, err = MaxTable(ctx, db, "members", "", nil)
	assert.Error(t, err)
}

func TestUpdate(t *testing.T) {
	db, mock := mockDB(t, dialect.SQLite)
	mock.ExpectExec(`UPDATE "members" SET "name" = ?, "age" = ?, "email" = ? WHERE "id" = ?;`).
		WithArgs("Ann", 31, "ann@example.com", 21).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "members" SET "age" = ? WHERE "name" = ?;`).
		WithArgs(32, "Ann").
		WillReturnResult(sqlmock.NewResult(0, 2))

	ctx := context.Background()
	ann := Member{ID: 21, Name: "Ann", Age: 31, Email: "ann@example.com"}
	n, err := Update(ctx, db, ann, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ann.Age = 32
	n, err = Update(ctx, db, ann, map[string]any{"Name": "Ann"}, WithFields("Age"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUpdateTable(t *testing.T) {
	db, mock := mockDB(t, dialect.Postgres)
	mock.ExpectExec(`UPDATE "members" SET "name" = $1 WHERE "id" = $2;`).
		WithArgs("Bob", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "members" SET "active" = $1, "name" = $2 WHERE "age" < $3;`).
		WithArgs(false, "minor", 18).
		WillReturnResult(sqlmock.NewResult(0, 4))

	ctx := context.Background()
	n, err := UpdateTable(ctx, db, "members", map[string]any{"id": 5, "name": "Bob"}, nil, WithPrimaryKey("id"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = UpdateTable(ctx, db, "members", map[string]any{"name": "minor", "active": false}, filter.Lt("age", 18))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	_, err = UpdateTable(ctx, db, "members", map[string]any{"name": "x"}, nil)
	assert.ErrorIs(t, err, ErrPrimaryKeyRequired)
}

func TestDelete(t *testing.T) {
	db, mock := mockDB(t, dialect.SQLite)
	mock.ExpectExec(`DELETE FROM "members" WHERE "id" = ?;`).
		WithArgs(21).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "members";`).
		WillReturnResult(sqlmock.NewResult(0, 7))

	ctx := context.Background()
	n, err := Delete[Member](ctx, db, int64(21))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = Delete[Member](ctx, db, nil)
	assert.ErrorIs(t, err, ErrWhereRequired)
	_, err = DeleteTable(ctx, db, "members", 21)
	assert.ErrorIs(t, err, ErrPrimaryKeyRequired)

	n, err = DeleteAll[Member](ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestDeleteRefusesEmptyFilter(t *testing.T) {
	db, _ := mockDB(t, dialect.SQLite)
	ctx := context.Background()

	for name, where := range map[string]any{
		"empty map":          map[string]any{},
		"empty field list":   []filter.Field{},
		"empty group":        filter.All(),
		"nested empty group": filter.AnyOf(filter.All(), filter.Any()),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Delete[Member](ctx, db, where)
			assert.ErrorIs(t, err, ErrWhereRequired)
			_, err = DeleteTable(ctx, db, "members", where)
			assert.ErrorIs(t, err, ErrWhereRequired)
		})
	}

	_, err := Delete[Member](ctx, db, struct{}{})
	assert.ErrorIs(t, err, filter.ErrUnsupportedWhere)
}

func TestExists(t *testing.T) {
	db, mock := mockDB(t, dialect.SQLite)
	text := `SELECT 1 AS "ExistsValue" FROM "members" WHERE "email" = ? LIMIT 1;`
	mock.ExpectQuery(text).WithArgs("a@b.c").WillReturnRows(sqlmock.NewRows([]string{"ExistsValue"}).AddRow(int64(1)))
	mock.ExpectQuery(text).WithArgs("x@y.z").WillReturnRows(sqlmock.NewRows([]string{"ExistsValue"}))

	ctx := context.Background()
	ok, err := Exists[Member](ctx, db, map[string]any{"Email": "a@b.c"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ExistsTable(ctx, db, "members", map[string]any{"email": "x@y.z"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsert(t *testing.T) {
	t.Run("last insert id", func(t *testing.T) {
		db, mock := mockDB(t, dialect.SQLite)
		mock.ExpectExec(`INSERT INTO "members" ("name", "age", "email") VALUES (?, ?, ?);`).
			WithArgs("Ann", 30, "ann@example.com").
			WillReturnResult(sqlmock.NewResult(7, 1))

		id, err := Insert(context.Background(), db, Member{Name: "Ann", Age: 30, Email: "ann@example.com"})
		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
	})

	t.Run("returning", func(t *testing.T) {
		db, mock := mockDB(t, dialect.Postgres)
		mock.ExpectQuery(`INSERT INTO "members" ("name", "age", "email") VALUES ($1, $2, $3) RETURNING "id";`).
			WithArgs("Ann", 30, "").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))

		id, err := Insert(context.Background(), db, &Member{Name: "Ann", Age: 30})
		require.NoError(t, err)
		assert.Equal(t, int64(8), id)
	})

	t.Run("table without identity", func(t *testing.T) {
		db, mock := mockDB(t, dialect.SQLite)
		mock.ExpectExec(`INSERT INTO "audit" ("action", "actor") VALUES (?, ?);`).
			WithArgs("login", "ann").
			WillReturnResult(sqlmock.NewResult(3, 1))

		id, err := InsertTable(context.Background(), db, "audit", map[string]any{"actor": "ann", "action": "login"})
		require.NoError(t, err)
		assert.Nil(t, id)
	})
}

func TestExecute(t *testing.T) {
	db, mock := mockDB(t, dialect.Postgres)
	mock.ExpectQuery(`SELECT COUNT(*) FROM members WHERE age > $1`).
		WithArgs(18).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectExec(`DELETE FROM members WHERE id IN ($1, $2)`).
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`SELECT id, name FROM members WHERE name = $1`).
		WithArgs("Ann").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Ann"))

	ctx := context.Background()
	v, err := ExecuteScalar(ctx, db, `SELECT COUNT(*) FROM members WHERE age > :age`, map[string]any{"age": 18})
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	n, err := ExecuteNonQuery(ctx, db, `DELETE FROM members WHERE id IN (?)`, []any{[]int{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	members, err := ExecuteQuery[Member](ctx, db, `SELECT id, name FROM members WHERE name = ?`, "Ann")
	require.NoError(t, err)
	assert.Equal(t, []Member{{ID: 1, Name: "Ann"}}, members)
}

func TestTraceHooks(t *testing.T) {
	var keys []string
	guard := trace.Funcs{Before: func(_ context.Context, log *trace.CancellableLog) {
		keys = append(keys, log.Key)
		if log.Key == trace.KeyUpdate {
			log.Cancel(false)
		}
	}}
	db, mock := mockDB(t, dialect.SQLite, SetTrace(guard))
	mock.ExpectQuery(`SELECT COUNT(*) AS "CountValue" FROM "members";`).
		WillReturnRows(sqlmock.NewRows([]string{"CountValue"}).AddRow(int64(1)))

	ctx := context.Background()
	n, err := Update(ctx, db, Member{ID: 1, Name: "x"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = CountAll[Member](ctx, db, WithTraceKey("MemberCount"))
	require.NoError(t, err)
	assert.Equal(t, []string{trace.KeyUpdate, "MemberCount"}, keys)

	throw := trace.Funcs{Before: func(_ context.Context, log *trace.CancellableLog) { log.Cancel(true) }}
	_, err = Delete[Member](ctx, db, int64(1), WithTrace(throw))
	assert.ErrorIs(t, err, trace.ErrCancelled)
}

func TestTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		db, mock := mockDB(t, dialect.SQLite)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "members" WHERE "id" = ?;`).WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := db.Transaction(ctx, func(tx *DB) error {
			_, err := Delete[Member](ctx, tx, int64(1))
			return err
		})
		require.NoError(t, err)
	})

	t.Run("rollback on error", func(t *testing.T) {
		db, mock := mockDB(t, dialect.SQLite)
		mock.ExpectBegin()
		mock.ExpectRollback()

		stop := errors.New("stop")
		err := db.Transaction(ctx, func(*DB) error { return stop })
		assert.ErrorIs(t, err, stop)
	})

	t.Run("rollback on panic", func(t *testing.T) {
		db, mock := mockDB(t, dialect.SQLite)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = db.Transaction(ctx, func(*DB) error { panic("boom") })
		})
	})

	t.Run("nested savepoints", func(t *testing.T) {
		db, mock := mockDB(t, dialect.Postgres)
		mock.ExpectBegin()
		mock.ExpectExec(`SAVEPOINT sp_1`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`ROLLBACK TO SAVEPOINT sp_1`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`SAVEPOINT sp_1`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`SAVEPOINT sp_2`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`RELEASE SAVEPOINT sp_2`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`RELEASE SAVEPOINT sp_1`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := db.Transaction(ctx, func(tx *DB) error {
			inner := tx.Transaction(ctx, func(*DB) error { return errors.New("inner") })
			assert.EqualError(t, inner, "inner")
			return tx.Transaction(ctx, func(tx2 *DB) error {
				return tx2.Transaction(ctx, func(*DB) error { return nil })
			})
		})
		require.NoError(t, err)
	})

	t.Run("sql server savepoints", func(t *testing.T) {
		db, mock := mockDB(t, dialect.SQLServer)
		mock.ExpectBegin()
		mock.ExpectExec(`SAVE TRANSACTION sp_1`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := db.Transaction(ctx, func(tx *DB) error {
			return tx.Transaction(ctx, func(*DB) error { return nil })
		})
		require.NoError(t, err)
	})

	t.Run("unsupported connection", func(t *testing.T) {
		db := New(noTxConn{}, dialect.MustNew(dialect.SQLite))
		err := db.Transaction(ctx, func(*DB) error { return nil })
		assert.ErrorIs(t, err, ErrTransactionsUnsupported)
	})
}

type noTxConn struct{}

func (noTxConn) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("not implemented")
}

func (noTxConn) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not implemented")
}

func TestToInt64(t *testing.T) {
	tests := []struct {
		in   any
		want int64
	}{
		{nil, 0},
		{int64(3), 3},
		{7, 7},
		{int32(8), 8},
		{uint64(9), 9},
		{float64(10), 10},
		{"11", 11},
		{[]byte("12"), 12},
	}
	for _, tt := range tests {
		got, err := toInt64(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := toInt64(true)
	assert.Error(t, err)
	_, err = toInt64("x")
	assert.Error(t, err)
}
