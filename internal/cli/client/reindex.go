package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ReindexCmd creates the reindex command.
func ReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the vector index from stored documents",
		Long:  "Schedules a full rebuild of the vector index from every stored document.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex()
		},
	}
}

func runReindex() error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	if _, err := api.Post("/reindex", nil); err != nil {
		return fmt.Errorf("failed to schedule reindex: %w", err)
	}

	fmt.Println("Reindex scheduled.")
	return nil
}
