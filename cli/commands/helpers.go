package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbkit"
	"github.com/satishbabariya/dbkit/cli/internal/config"
	"github.com/satishbabariya/dbkit/cli/internal/ui"
	"github.com/satishbabariya/dbkit/internal/debug"
	"github.com/satishbabariya/dbkit/query/cache"
	"github.com/satishbabariya/dbkit/query/dialect"
	"github.com/satishbabariya/dbkit/telemetry"
)

// session is an open database plus the collector tracing it.
type session struct {
	db        *dbkit.DB
	collector *telemetry.Collector
	stats     bool
}

// settings merges the config file and environment with the flags.
func (g *globals) settings() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if g.provider != "" {
		cfg.Provider = g.provider
	}
	if g.url != "" {
		cfg.URL = g.url
	}
	if g.serverVersion != "" {
		cfg.ServerVersion = g.serverVersion
	}
	cfg.Debug = cfg.Debug || g.debug
	debug.Init(cfg.Debug)
	return cfg, nil
}

// dialect resolves the dialect without opening a connection. The provider
// defaults to the one detected from the URL.
func (g *globals) dialect() (dialect.Dialect, error) {
	cfg, err := g.settings()
	if err != nil {
		return nil, err
	}
	provider := cfg.Provider
	if provider == "" && cfg.URL != "" {
		if provider, _, err = config.Detect(cfg.URL); err != nil {
			return nil, err
		}
	}
	if provider == "" {
		return nil, fmt.Errorf("no provider: set --provider or --url")
	}
	return dialect.New(provider, dialectOptions(cfg)...)
}

func dialectOptions(cfg *config.Config) []dialect.Option {
	if cfg.ServerVersion == "" {
		return nil
	}
	return []dialect.Option{dialect.WithServerVersion(cfg.ServerVersion)}
}

// open connects to the configured database.
func (g *globals) open(ctx context.Context) (*session, error) {
	cfg, err := g.settings()
	if err != nil {
		return nil, err
	}
	provider, dsn, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	d, err := dialect.New(provider, dialectOptions(cfg)...)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(dialect.DriverName(provider), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", d.Name(), err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", d.Name(), err)
	}
	debug.Debug("Connected", "provider", d.Name())

	collector := telemetry.NewCollector(
		telemetry.WithSlowThreshold(cfg.SlowThreshold),
		telemetry.WithLogger(debug.Logger()),
	)
	db := dbkit.New(sqlDB, d,
		dbkit.SetLogger(debug.Logger()),
		dbkit.SetCache(cache.New(cfg.CacheSize)),
		dbkit.SetTrace(collector),
	)
	return &session{db: db, collector: collector, stats: g.stats}, nil
}

// close releases the connection and prints statistics when asked.
func (s *session) close() {
	if s.stats {
		if err := ui.PrintStats(s.collector.Snapshot()); err != nil {
			ui.PrintError("%v", err)
		}
	}
	if sqlDB, ok := s.db.Conn().(*sql.DB); ok {
		sqlDB.Close()
	}
}

// run executes op and prints its result.
func (s *session) run(ctx context.Context, op Operation) error {
	res, err := op.Execute(ctx, s.db)
	if err != nil {
		return err
	}
	printResult(op, res)
	return nil
}

func printResult(op Operation, res Result) {
	if res.IsRows {
		if err := ui.PrintRows(res.Rows, op.Fields...); err != nil {
			ui.PrintError("%v", err)
		}
		return
	}
	switch op.Op {
	case OpUpdate, OpDelete:
		ui.PrintSuccess("%s: %v row(s) affected", op.Title(), res.Scalar)
	default:
		ui.PrintValue(op.Title(), res.Scalar)
	}
}

// addFilterFlags registers --where, --arg, --order and --fields.
func addFilterFlags(cmd *cobra.Command, op *Operation, args *[]string) {
	cmd.Flags().StringVarP(&op.Where, "where", "w", "", `filter expression, e.g. "age >= ? AND name LIKE ?"`)
	cmd.Flags().StringArrayVarP(args, "arg", "a", nil, "positional value for a ? in --where (repeatable)")
	cmd.Flags().StringVar(&op.Hints, "hints", "", "table hints appended after the table name")
}

// parseArgs turns flag strings into typed values: integers, floats,
// booleans and "null" are recognised, everything else stays a string.
func parseArgs(raw []string) []any {
	out := make([]any, len(raw))
	for i, s := range raw {
		out[i] = parseValue(s)
	}
	return out
}

func parseValue(s string) any {
	if strings.EqualFold(s, "null") {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// parseAssignments parses "column=value" pairs.
func parseAssignments(pairs []string) (map[string]any, error) {
	set := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected column=value", p)
		}
		set[k] = parseValue(v)
	}
	return set, nil
}

// isTerminal reports whether stdin is interactive.
func isTerminal() bool {
	fi, err := os.Stdin.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
