package admin

import (
	"context"
	"fmt"

	"github.com/medra-health/medirag/internal/config"
	"github.com/spf13/cobra"
)

// ReindexCmd returns the reindex command. It rebuilds the vector index
// in-process, without going through a running server.
func ReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the vector index from stored documents",
		Long:  "Re-extracts, re-chunks and re-embeds every stored document and rebuilds the vector index",
		RunE:  runReindex,
	}

	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations")

	return cmd
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")

	c, err := buildComponents(ctx, cfg, !noMigrate)
	if err != nil {
		return err
	}
	defer c.Close()

	report, err := c.ingestion.ReindexAll(ctx)
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	fmt.Printf("Reindexed %d documents (%d failed): %d chunks indexed, %d skipped\n",
		report.Processed, report.Failed, report.IndexedChunkCount, report.SkippedChunkCount)
	return nil
}
