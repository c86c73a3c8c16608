package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mkarpov/readquiz/internal/draft"
)

// NewStateCommand prints a session's navigation state and history.
func NewStateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state <session-id>",
		Short: "Inspect a session's state document and step history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("session id %q is not a number", args[0])
			}

			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			state, err := s.GetState(cmd.Context(), sessionID)
			if err != nil {
				return err
			}

			doc, err := json.MarshalIndent(state.Data, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d\n%s\n", state.Version, doc)

			records, err := s.GetStepRecords(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			trace := draft.StringSlice(state.Data["steps_trace"])
			fmt.Fprintf(cmd.OutOrStdout(), "trace %v, %d history rows\n", trace, len(records))
			return nil
		},
	}
}
