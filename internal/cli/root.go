// Package cli holds the readquiz admin commands: draft authoring and
// activation, offline validation, token issuance, and session
// inspection. The process serving quizzes embeds the engine directly;
// this surface is for operators.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkarpov/readquiz/internal/config"
	"github.com/mkarpov/readquiz/internal/store"
)

// RootOptions carries global flags and the loaded configuration shared
// by every subcommand.
type RootOptions struct {
	EnvFile string
	Config  config.Config
	Log     *slog.Logger
}

// NewRootCommand creates the readquiz root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:          "readquiz",
		Short:        "Administer readquiz drafts and sessions",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.EnvFile)
			if err != nil {
				return err
			}
			opts.Config = cfg
			opts.Log = slog.New(slog.NewTextHandler(os.Stderr, nil))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env", "", "path to a .env file")

	cmd.AddCommand(NewDraftCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))

	return cmd
}

func (o *RootOptions) openStore() (*store.Store, error) {
	return store.Open(o.Config.DBPath)
}
