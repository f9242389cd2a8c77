package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueryCommand(g *globals) *cobra.Command {
	var (
		op   Operation
		args []string
	)

	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Read rows from a table",
		Long: `Read rows from a table. --page/--rows runs a batch query, --skip/--take
a skip query; both need --order. Without them all matching rows are read.`,
		Example: `  dbkit query users --where "age >= ?" --arg 18 --order "id" --page 0 --rows 20
  dbkit query users --skip 40 --take 20 --order "created_at desc"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			op.Table = positional[0]
			op.Args = parseArgs(args)

			flags := cmd.Flags()
			batch := flags.Changed("page") || flags.Changed("rows")
			skip := flags.Changed("skip") || flags.Changed("take")
			switch {
			case batch && skip:
				return fmt.Errorf("--page/--rows and --skip/--take are exclusive")
			case batch:
				op.Op = OpBatch
			case skip:
				op.Op = OpSkip
			default:
				op.Op = OpQuery
			}

			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return s.run(cmd.Context(), op)
		},
	}

	addFilterFlags(cmd, &op, &args)
	cmd.Flags().StringVarP(&op.Order, "order", "o", "", `order, e.g. "last_name desc, id"`)
	cmd.Flags().StringSliceVarP(&op.Fields, "fields", "f", nil, "columns to read (default: all)")
	cmd.Flags().IntVar(&op.Top, "top", 0, "limit a plain query to n rows")
	cmd.Flags().IntVar(&op.Page, "page", 0, "zero-based page for a batch query")
	cmd.Flags().IntVar(&op.Rows, "rows", 10, "rows per batch")
	cmd.Flags().IntVar(&op.Skip, "skip", 0, "rows to skip")
	cmd.Flags().IntVar(&op.Take, "take", 10, "rows to take")

	return cmd
}

func newCountCommand(g *globals) *cobra.Command {
	var (
		op   = Operation{Op: OpCount}
		args []string
	)

	cmd := &cobra.Command{
		Use:     "count <table>",
		Short:   "Count the rows of a table",
		Example: `  dbkit count users --where "active = ?" --arg true`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			op.Table = positional[0]
			op.Args = parseArgs(args)

			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return s.run(cmd.Context(), op)
		},
	}

	addFilterFlags(cmd, &op, &args)
	return cmd
}

func newAggregateCommand(g *globals, name string) *cobra.Command {
	var (
		op   = Operation{Op: name}
		args []string
	)

	fn, _ := op.function()
	cmd := &cobra.Command{
		Use:     name + " <table>",
		Short:   fmt.Sprintf("Compute the %s of a column", fn.Name()),
		Example: fmt.Sprintf(`  dbkit %s orders --field total --where "status = ?" --arg paid`, name),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			op.Table = positional[0]
			op.Args = parseArgs(args)

			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return s.run(cmd.Context(), op)
		},
	}

	addFilterFlags(cmd, &op, &args)
	cmd.Flags().StringVar(&op.Field, "field", "", "column to aggregate")
	_ = cmd.MarkFlagRequired("field")
	return cmd
}
