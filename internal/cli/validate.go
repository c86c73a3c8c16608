package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mkarpov/readquiz/internal/draft"
)

// NewValidateCommand checks a draft file against the structural schema
// without touching the database.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a draft file without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			tree, err := draft.Parse(string(text))
			var cerr *draft.ContentError
			if errors.As(err, &cerr) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.RedString("invalid:"), cerr.Reason)
				return err
			}
			if err != nil {
				return err
			}

			quotes, err := draft.ExtractQuotes(tree)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d steps, %d root steps, %d quotes\n",
				color.GreenString("valid:"),
				len(draft.Steps(tree)), len(draft.RootSteps(tree)), len(quotes))
			return nil
		},
	}
}
