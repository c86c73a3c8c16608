package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mkarpov/readquiz/internal/draft"
)

// NewDraftCommand groups the draft authoring subcommands.
func NewDraftCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Author, activate, and rotate draft versions",
	}
	cmd.AddCommand(newDraftAddCommand(opts))
	cmd.AddCommand(newDraftActivateCommand(opts))
	cmd.AddCommand(newDraftListCommand(opts))
	cmd.AddCommand(newDraftRotateCommand(opts))
	return cmd
}

func newDraftAddCommand(opts *RootOptions) *cobra.Command {
	var name, publisher, link string

	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Add a new draft version from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			// Reject broken drafts at the door; an unparseable row in
			// draft_version would only fail later at activation.
			if _, err := draft.Parse(string(text)); err != nil {
				return fmt.Errorf("draft does not validate: %w", err)
			}

			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := s.AddDraft(cmd.Context(), string(text), name, publisher, link, opts.Config.AdminID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added draft %s as version %d\n",
				color.CyanString(name), id)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "draft name (required)")
	cmd.Flags().StringVar(&publisher, "publisher", "", "publisher attribution")
	cmd.Flags().StringVar(&link, "link", "", "purchase link")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newDraftActivateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <name>",
		Short: "Make the latest version of a draft the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			d, err := s.GetDraftByName(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("draft %q: %w", args[0], err)
			}
			if err := s.SetActiveDraft(cmd.Context(), d.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %d is now active\n",
				color.GreenString(d.Name), d.ID)
			return nil
		},
	}
}

func newDraftListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known draft names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			names, err := s.DraftNames(cmd.Context())
			if err != nil {
				return err
			}
			active, err := s.GetActiveDraft(cmd.Context())
			if err != nil {
				active.Name = "" // no active draft is a listable state
			}

			for _, name := range names {
				if name == active.Name {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n",
						color.GreenString(name), color.HiBlackString("(active)"))
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newDraftRotateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Rotate the daily draft selection now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			next, err := s.RotateDailyDraft(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "daily draft is now %s (version %d)\n",
				color.GreenString(next.Name), next.ID)
			return nil
		},
	}
}
