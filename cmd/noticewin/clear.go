package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset the queue and delete pending messages",
	Long: `Reset the queue completely.

Every pending and showing message is deleted from the store and any open
window is closed. Messages already shown or hidden keep their history rows.`,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	q, err := getQueue()
	if err != nil {
		return err
	}
	if err := q.ClearAll(); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}
