package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var hideOpts struct {
	all bool
}

var hideCmd = &cobra.Command{
	Use:   "hide [id]",
	Short: "Revoke a queued or showing message",
	Long: `Revoke a message by id.

A showing message has its window closed and the queue advances; a pending
message is removed from the queue. The message stays in the store marked
hidden and will not be re-shown. Hiding an unknown id does nothing.

Use --all to revoke every pending and showing message at once, e.g. at the
end of a session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHide,
}

func init() {
	rootCmd.AddCommand(hideCmd)

	hideCmd.Flags().BoolVar(&hideOpts.all, "all", false,
		"Revoke every pending and showing message")
}

func runHide(cmd *cobra.Command, args []string) error {
	q, err := getQueue()
	if err != nil {
		return err
	}

	if hideOpts.all {
		if len(args) > 0 {
			return fmt.Errorf("cannot combine an id with --all")
		}
		if err := q.HideAll(); err != nil {
			return fmt.Errorf("failed to hide all messages: %w", err)
		}
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("specify a message id or --all")
	}
	if err := q.Hide(args[0]); err != nil {
		return fmt.Errorf("failed to hide %s: %w", args[0], err)
	}
	return nil
}
