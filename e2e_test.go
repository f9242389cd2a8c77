package dbkit_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/satishbabariya/dbkit"
	"github.com/satishbabariya/dbkit/query/cache"
	"github.com/satishbabariya/dbkit/query/dialect"
	"github.com/satishbabariya/dbkit/query/field"
	"github.com/satishbabariya/dbkit/query/filter"
	"github.com/satishbabariya/dbkit/runtime/trace"
	"github.com/satishbabariya/dbkit/telemetry"
)

type Person struct {
	ID    int64 `db:"id,primary,identity"`
	Name  string
	Age   int
	Email string
}

// TestConfig holds the connection for one provider
type TestConfig struct {
	Provider    string
	DatabaseURL string
	Schema      string
}

// getTestConfigs returns the providers to run against. SQLite always runs;
// the servers run when their URL is set.
func getTestConfigs(t *testing.T) []TestConfig {
	configs := []TestConfig{{
		Provider:    dialect.SQLite,
		DatabaseURL: "file:" + filepath.Join(t.TempDir(), "e2e.db"),
		Schema: `CREATE TABLE people (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			age INTEGER NOT NULL,
			email TEXT NOT NULL DEFAULT ''
		)`,
	}}
	if url := os.Getenv("DBKIT_POSTGRES_TEST_URL"); url != "" {
		configs = append(configs, TestConfig{
			Provider:    dialect.Postgres,
			DatabaseURL: url,
			Schema: `CREATE TABLE people (
				id BIGSERIAL PRIMARY KEY,
				name TEXT NOT NULL,
				age INTEGER NOT NULL,
				email TEXT NOT NULL DEFAULT ''
			)`,
		})
	}
	if url := os.Getenv("DBKIT_MYSQL_TEST_URL"); url != "" {
		configs = append(configs, TestConfig{
			Provider:    dialect.MySQL,
			DatabaseURL: url,
			Schema: `CREATE TABLE people (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(100) NOT NULL,
				age INT NOT NULL,
				email VARCHAR(200) NOT NULL DEFAULT ''
			)`,
		})
	}
	return configs
}

// TestSuite runs every operation against a live database
type TestSuite struct {
	suite.Suite
	config *TestConfig
	sqlDB  *sql.DB
	db     *dbkit.DB
	cache  *cache.CommandTextCache
}

func (s *TestSuite) SetupSuite() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sqlDB, err := sql.Open(dialect.DriverName(s.config.Provider), s.config.DatabaseURL)
	s.Require().NoError(err)
	if s.config.Provider == dialect.SQLite {
		// One connection keeps transactions and plain calls from locking each other
		sqlDB.SetMaxOpenConns(1)
	}
	s.Require().NoError(sqlDB.PingContext(ctx))

	_, _ = sqlDB.ExecContext(ctx, "DROP TABLE IF EXISTS people")
	_, err = sqlDB.ExecContext(ctx, s.config.Schema)
	s.Require().NoError(err)

	s.sqlDB = sqlDB
	s.cache = cache.New(0)
	s.db = dbkit.New(sqlDB, dialect.MustNew(s.config.Provider), dbkit.SetCache(s.cache))
}

func (s *TestSuite) SetupTest() {
	_, err := s.sqlDB.ExecContext(context.Background(), "DELETE FROM people")
	s.Require().NoError(err)
}

func (s *TestSuite) TearDownSuite() {
	if s.sqlDB != nil {
		_, _ = s.sqlDB.Exec("DROP TABLE people")
		s.sqlDB.Close()
	}
}

// seed inserts people p1..pn with age i.
func (s *TestSuite) seed(ctx context.Context, n int) []int64 {
	ids := make([]int64, 0, n)
	for i := 1; i <= n; i++ {
		id, err := dbkit.Insert(ctx, s.db, Person{
			Name:  fmt.Sprintf("p%d", i),
			Age:   i,
			Email: fmt.Sprintf("p%d@example.com", i),
		})
		s.Require().NoError(err)
		ids = append(ids, toInt(s.T(), id))
	}
	return ids
}

func toInt(t *testing.T, v any) int64 {
	t.Helper()
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	n, err := strconv.ParseFloat(fmt.Sprint(v), 64)
	require.NoError(t, err, "%T %v", v, v)
	return int64(n)
}

func ages(people []Person) []int {
	out := make([]int, len(people))
	for i, p := range people {
		out[i] = p.Age
	}
	return out
}

var byID = []field.OrderField{field.Asc("ID")}

func (s *TestSuite) TestInsertAndQuery() {
	ctx := context.Background()
	ids := s.seed(ctx, 3)
	s.Less(ids[0], ids[1])
	s.Less(ids[1], ids[2])

	people, err := dbkit.Query[Person](ctx, s.db, map[string]any{"Name": "p2"})
	s.Require().NoError(err)
	s.Require().Len(people, 1)
	s.Equal(Person{ID: ids[1], Name: "p2", Age: 2, Email: "p2@example.com"}, people[0])

	people, err = dbkit.QueryAll[Person](ctx, s.db, dbkit.WithOrder(field.Desc("Age")), dbkit.WithTop(2))
	s.Require().NoError(err)
	s.Equal([]int{3, 2}, ages(people))

	people, err = dbkit.Query[Person](ctx, s.db, ids[0], dbkit.WithFields("ID", "Name"))
	s.Require().NoError(err)
	s.Require().Len(people, 1)
	s.Equal(Person{ID: ids[0], Name: "p1"}, people[0])

	rows, err := dbkit.QueryTable(ctx, s.db, "people", filter.InList("age", 1, 3), dbkit.WithOrder(field.Asc("age")))
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("p3", fmt.Sprint(rows[1]["name"]))
}

func (s *TestSuite) TestBatchQuery() {
	ctx := context.Background()
	s.seed(ctx, 25)
	adults := filter.Expr("Age >= ?", 5)

	people, err := dbkit.BatchQuery[Person](ctx, s.db, 0, 10, byID, adults)
	s.Require().NoError(err)
	s.Equal([]int{5, 6, 7, 8, 9, 10, 11, 12, 13, 14}, ages(people))

	before := s.cache.Stats().Size
	people, err = dbkit.BatchQuery[Person](ctx, s.db, 2, 10, byID, filter.Expr("Age >= ?", 5))
	s.Require().NoError(err)
	s.Equal([]int{25}, ages(people))
	s.Equal(before, s.cache.Stats().Size, "same shape reuses the command text")

	people, err = dbkit.BatchQuery[Person](ctx, s.db, 3, 10, byID, adults)
	s.Require().NoError(err)
	s.Empty(people)

	rows, err := dbkit.BatchQueryTable(ctx, s.db, "people", 1, 4,
		[]field.OrderField{field.Desc("age")}, filter.Expr("age < ? OR name = ?", 10, "p20"))
	s.Require().NoError(err)
	s.Require().Len(rows, 4)
	s.Equal(int64(6), toInt(s.T(), rows[0]["age"]))
	s.Equal(int64(3), toInt(s.T(), rows[3]["age"]))
}

func (s *TestSuite) TestSkipQuery() {
	ctx := context.Background()
	s.seed(ctx, 12)

	people, err := dbkit.SkipQuery[Person](ctx, s.db, 3, 4, byID, filter.Expr("Age >= ?", 5))
	s.Require().NoError(err)
	s.Equal([]int{8, 9, 10, 11}, ages(people))

	people, err = dbkit.SkipQuery[Person](ctx, s.db, 0, 100, []field.OrderField{field.Desc("Age")}, nil)
	s.Require().NoError(err)
	s.Len(people, 12)
	s.Equal(12, people[0].Age)

	_, err = dbkit.SkipQuery[Person](ctx, s.db, 0, 10, nil, nil)
	s.Error(err)
}

func (s *TestSuite) TestCount() {
	ctx := context.Background()
	s.seed(ctx, 25)

	n, err := dbkit.Count[Person](ctx, s.db, filter.Expr("Age > ?", 20))
	s.Require().NoError(err)
	s.Equal(int64(5), n)

	n, err = dbkit.CountAll[Person](ctx, s.db)
	s.Require().NoError(err)
	s.Equal(int64(25), n)

	n, err = dbkit.CountTable(ctx, s.db, "people", map[string]any{"name": "p7"})
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	n, err = dbkit.Count[Person](ctx, s.db, filter.Expr("Name = ? AND Age = ?", "p7", 8))
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *TestSuite) TestAggregates() {
	ctx := context.Background()
	s.seed(ctx, 25)

	v, err := dbkit.Min[Person](ctx, s.db, "Age", filter.Expr("Age > ?", 10))
	s.Require().NoError(err)
	s.Equal(int64(11), toInt(s.T(), v))

	v, err = dbkit.Min[Person](ctx, s.db, "Age", filter.Expr("Age > ?", 100))
	s.Require().NoError(err)
	s.Nil(v)

	v, err = dbkit.MinTable(ctx, s.db, "people", "age", nil)
	s.Require().NoError(err)
	s.Equal(int64(1), toInt(s.T(), v))

	v, err = dbkit.Max[Person](ctx, s.db, "Age", nil)
	s.Require().NoError(err)
	s.Equal(int64(25), toInt(s.T(), v))

	v, err = dbkit.Sum[Person](ctx, s.db, "Age", nil)
	s.Require().NoError(err)
	s.Equal(int64(325), toInt(s.T(), v))

	v, err = dbkit.Average[Person](ctx, s.db, "Age", nil)
	s.Require().NoError(err)
	s.Equal(int64(13), toInt(s.T(), v))
}

func (s *TestSuite) TestUpdate() {
	ctx := context.Background()
	ids := s.seed(ctx, 5)

	n, err := dbkit.Update(ctx, s.db, Person{ID: ids[0], Name: "renamed", Age: 40, Email: "r@example.com"}, nil)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	people, err := dbkit.Query[Person](ctx, s.db, ids[0])
	s.Require().NoError(err)
	s.Require().Len(people, 1)
	s.Equal(Person{ID: ids[0], Name: "renamed", Age: 40, Email: "r@example.com"}, people[0])

	n, err = dbkit.Update(ctx, s.db, Person{Age: 99}, filter.Expr("Age BETWEEN ? AND ?", 2, 4), dbkit.WithFields("Age"))
	s.Require().NoError(err)
	s.Equal(int64(3), n)

	n, err = dbkit.UpdateTable(ctx, s.db, "people", map[string]any{"email": "none"}, map[string]any{"age": 99})
	s.Require().NoError(err)
	s.Equal(int64(3), n)

	count, err := dbkit.Count[Person](ctx, s.db, map[string]any{"Email": "none", "Age": 99})
	s.Require().NoError(err)
	s.Equal(int64(3), count)
}

func (s *TestSuite) TestDeleteAndExists() {
	ctx := context.Background()
	ids := s.seed(ctx, 4)

	ok, err := dbkit.Exists[Person](ctx, s.db, ids[1])
	s.Require().NoError(err)
	s.True(ok)

	n, err := dbkit.Delete[Person](ctx, s.db, ids[1])
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	ok, err = dbkit.Exists[Person](ctx, s.db, ids[1])
	s.Require().NoError(err)
	s.False(ok)

	_, err = dbkit.Delete[Person](ctx, s.db, nil)
	s.ErrorIs(err, dbkit.ErrWhereRequired)

	n, err = dbkit.DeleteTable(ctx, s.db, "people", filter.Not(filter.All(filter.Eq("name", "p4"))))
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	n, err = dbkit.DeleteAll[Person](ctx, s.db)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *TestSuite) TestExecute() {
	ctx := context.Background()
	s.seed(ctx, 6)

	people, err := dbkit.ExecuteQuery[Person](ctx, s.db,
		"SELECT id, name, age, email FROM people WHERE age IN (?) ORDER BY age", []any{[]int{2, 4, 6}})
	s.Require().NoError(err)
	s.Equal([]int{2, 4, 6}, ages(people))

	v, err := dbkit.ExecuteScalar(ctx, s.db, "SELECT COUNT(*) FROM people WHERE age > :age", map[string]any{"age": 3})
	s.Require().NoError(err)
	s.Equal(int64(3), toInt(s.T(), v))

	n, err := dbkit.ExecuteNonQuery(ctx, s.db, "UPDATE people SET email = ? WHERE age <= ?", []any{"x", 2})
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	rows, err := dbkit.ExecuteQueryMaps(ctx, s.db, "SELECT name FROM people WHERE email = ?", "x")
	s.Require().NoError(err)
	s.Len(rows, 2)
}

func (s *TestSuite) TestTransaction() {
	ctx := context.Background()

	err := s.db.Transaction(ctx, func(tx *dbkit.DB) error {
		if _, err := dbkit.Insert(ctx, tx, Person{Name: "kept", Age: 1}); err != nil {
			return err
		}
		// The nested failure only rolls back to its savepoint
		nested := tx.Transaction(ctx, func(inner *dbkit.DB) error {
			if _, err := dbkit.Insert(ctx, inner, Person{Name: "dropped", Age: 2}); err != nil {
				return err
			}
			return fmt.Errorf("abort nested")
		})
		s.EqualError(nested, "abort nested")
		return nil
	})
	s.Require().NoError(err)

	err = s.db.Transaction(ctx, func(tx *dbkit.DB) error {
		if _, err := dbkit.Insert(ctx, tx, Person{Name: "rolled back", Age: 3}); err != nil {
			return err
		}
		return fmt.Errorf("abort outer")
	})
	s.EqualError(err, "abort outer")

	people, err := dbkit.QueryAll[Person](ctx, s.db)
	s.Require().NoError(err)
	s.Require().Len(people, 1)
	s.Equal("kept", people[0].Name)
}

func (s *TestSuite) TestTraceAndTelemetry() {
	ctx := context.Background()
	s.seed(ctx, 3)

	collector := telemetry.NewCollector()
	readOnly := collector.Observe(trace.Funcs{Before: func(_ context.Context, log *trace.CancellableLog) {
		switch log.Key {
		case trace.KeyUpdate:
			log.Cancel(false)
		case trace.KeyDelete:
			log.Cancel(true)
		}
	}})
	db := dbkit.New(s.sqlDB, dialect.MustNew(s.config.Provider),
		dbkit.SetCache(s.cache), dbkit.SetTrace(trace.Chain(readOnly, collector)))

	n, err := dbkit.UpdateTable(ctx, db, "people", map[string]any{"age": 0}, filter.Gt("age", 0))
	s.Require().NoError(err)
	s.Zero(n)

	_, err = dbkit.DeleteAllTable(ctx, db, "people")
	s.ErrorIs(err, trace.ErrCancelled)

	count, err := dbkit.CountAll[Person](ctx, db)
	s.Require().NoError(err)
	s.Equal(int64(3), count)

	if !collector.Enabled() {
		return
	}
	stats := map[string]telemetry.Stat{}
	for _, st := range collector.Snapshot().Stats {
		stats[st.Key] = st
	}
	s.Equal(int64(1), stats[trace.KeyCount].Count)
	s.Equal(int64(1), stats[trace.KeyUpdate].Cancelled)
	s.Equal(int64(1), stats[trace.KeyDelete].Cancelled)
}

// TestE2ESuite runs the suite for every configured provider
func TestE2ESuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping database suite in short mode")
	}
	for _, config := range getTestConfigs(t) {
		t.Run(fmt.Sprintf("E2E_%s", config.Provider), func(t *testing.T) {
			suite.Run(t, &TestSuite{config: &config})
		})
	}
}
