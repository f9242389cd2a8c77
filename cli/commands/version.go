package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbkit/cli/internal/version"
	"github.com/satishbabariya/dbkit/query/dialect"
)

func newVersionCommand() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get(dialect.Postgres, dialect.MySQL, dialect.SQLite, dialect.SQLServer)
			if full {
				fmt.Fprintln(cmd.OutOrStdout(), info.FullString())
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "print build details")
	return cmd
}
