package commands

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbkit/cli/internal/ui"
)

// errAborted is returned when the user declines an unfiltered update.
var errAborted = errors.New("update aborted")

func newUpdateCommand(g *globals) *cobra.Command {
	var (
		op   = Operation{Op: OpUpdate}
		args []string
		sets []string
		yes  bool
	)

	cmd := &cobra.Command{
		Use:   "update <table>",
		Short: "Update the rows of a table",
		Long: `Update the rows of a table matching --where. Without --where every row is
updated, which asks for confirmation unless --yes is given.`,
		Example: `  dbkit update users --set active=false --where "last_login < ?" --arg 2024-01-01`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			op.Table = positional[0]
			op.Args = parseArgs(args)

			set, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			op.Set = set

			if op.Where == "" && !yes {
				if err := confirmUnfiltered(op.Table); err != nil {
					return err
				}
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
	cmd.Flags().StringArrayVarP(&sets, "set", "s", nil, "column=value to write (repeatable)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "update every row without asking")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

func confirmUnfiltered(table string) error {
	if !isTerminal() {
		return fmt.Errorf("refusing to update every row of %s without --where; pass --yes", table)
	}
	ui.PrintWarning("No --where given: every row of %s will be updated", table)

	confirmed := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Update all rows of %s?", table),
		Default: false,
	}
	if err := survey.AskOne(prompt, &confirmed); err != nil {
		return err
	}
	if !confirmed {
		return errAborted
	}
	return nil
}
