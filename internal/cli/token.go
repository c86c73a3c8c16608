package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkarpov/readquiz/internal/auth"
)

// NewTokenCommand groups token operations. Tokens minted here use the
// reference hex codec; they are for local testing, not production use.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and inspect session tokens",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Create a session and print its token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			sessions := auth.NewSessions(s, auth.HexCodec{}, opts.Log)
			token, id, err := sessions.Create(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %d\ntoken %s\n", id, token)
			return nil
		},
	})

	return cmd
}
