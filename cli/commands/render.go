package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbkit/cli/internal/ui"
	"github.com/satishbabariya/dbkit/query/dialect"
)

func newRenderCommand(g *globals) *cobra.Command {
	var (
		op   Operation
		args []string
		sets []string
		all  bool
	)

	cmd := &cobra.Command{
		Use:   "render <op> <table>",
		Short: "Print the SQL an operation generates",
		Long: `Print the statement and bound arguments an operation generates, without
connecting to a database. op is one of query, batch, skip, count, min, max,
sum, avg, exists, update or delete.`,
		Example: `  dbkit render batch users --provider sqlserver --server-version 10.50 --order id --page 2 --rows 25
  dbkit render count users --all --where "age > ?" --arg 30`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, positional []string) error {
			op.Op, op.Table = positional[0], positional[1]
			op.Args = parseArgs(args)
			if len(sets) > 0 {
				set, err := parseAssignments(sets)
				if err != nil {
					return err
				}
				op.Set = set
			}

			if all {
				return renderAll(op)
			}
			d, err := g.dialect()
			if err != nil {
				return err
			}
			return renderOne(op, d)
		},
	}

	addFilterFlags(cmd, &op, &args)
	cmd.Flags().StringVarP(&op.Order, "order", "o", "", "order expression")
	cmd.Flags().StringSliceVarP(&op.Fields, "fields", "f", nil, "columns to read")
	cmd.Flags().StringVar(&op.Field, "field", "", "aggregate column")
	cmd.Flags().StringArrayVarP(&sets, "set", "s", nil, "column=value for update")
	cmd.Flags().IntVar(&op.Top, "top", 0, "row limit for query")
	cmd.Flags().IntVar(&op.Page, "page", 0, "zero-based page for batch")
	cmd.Flags().IntVar(&op.Rows, "rows", 10, "rows per batch")
	cmd.Flags().IntVar(&op.Skip, "skip", 0, "rows to skip")
	cmd.Flags().IntVar(&op.Take, "take", 10, "rows to take")
	cmd.Flags().BoolVar(&all, "all", false, "render for every dialect")
	return cmd
}

func renderOne(op Operation, d dialect.Dialect) error {
	text, args, err := op.Render(d)
	if err != nil {
		return err
	}
	return ui.PrintSQL(fmt.Sprintf("%s (%s)", op.Title(), d.Name()), text, args)
}

func renderAll(op Operation) error {
	for _, name := range []string{dialect.Postgres, dialect.MySQL, dialect.SQLite, dialect.SQLServer} {
		if err := renderOne(op, dialect.MustNew(name)); err != nil {
			return err
		}
	}
	return nil
}
