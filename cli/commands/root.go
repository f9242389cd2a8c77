// Package commands implements the dbkit CLI.
package commands

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbkit/cli/internal/version"
)

// globals are the persistent flags shared by every command.
type globals struct {
	provider      string
	url           string
	serverVersion string
	debug         bool
	stats         bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:           "dbkit",
		Short:         "Run and inspect dbkit table operations",
		Long:          "dbkit runs paged queries, counts, aggregates and updates against a table and renders the SQL each dialect generates.",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.provider, "provider", "", "database provider (postgres, mysql, sqlite, sqlserver)")
	flags.StringVar(&g.url, "url", "", "database URL or DSN (default: config file, DBKIT_URL or DATABASE_URL)")
	flags.StringVar(&g.serverVersion, "server-version", "", "database server version, selects SQL Server paging")
	flags.BoolVar(&g.debug, "debug", false, "log generated statements")
	flags.BoolVar(&g.stats, "stats", false, "print execution statistics")

	rootCmd.AddCommand(newQueryCommand(g))
	rootCmd.AddCommand(newCountCommand(g))
	for _, op := range []string{OpMin, OpMax, OpSum, OpAverage} {
		rootCmd.AddCommand(newAggregateCommand(g, op))
	}
	rootCmd.AddCommand(newUpdateCommand(g))
	rootCmd.AddCommand(newRenderCommand(g))
	rootCmd.AddCommand(newRunCommand(g))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// Execute is the main entry point for the CLI. Interrupts cancel the
// running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}
