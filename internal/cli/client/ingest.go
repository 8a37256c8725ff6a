package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// IngestItem reports the outcome for one uploaded file.
type IngestItem struct {
	Filename  string `json:"filename"`
	ContentID string `json:"content_id,omitempty"`
	Key       string `json:"key,omitempty"`
	Error     string `json:"error,omitempty"`
}

// IngestResponse represents the ingest API response.
type IngestResponse struct {
	Stored            []IngestItem `json:"stored"`
	AlreadyPresent    []IngestItem `json:"already_present"`
	Failed            []IngestItem `json:"failed"`
	IndexedChunkCount int          `json:"indexed_chunk_count"`
	SkippedChunkCount int          `json:"skipped_chunk_count"`
}

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Upload and index documents",
		Long:  "Uploads one or more PDF or text files and indexes their content for search.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runIngest(args, outputJSON)
		},
	}

	return cmd
}

func runIngest(paths []string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.PostFiles("/documents", paths)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	var ingestResp IngestResponse
	if err := json.Unmarshal(resp.Data, &ingestResp); err != nil {
		return fmt.Errorf("failed to parse ingest response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(ingestResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	for _, item := range ingestResp.Stored {
		fmt.Printf("stored   %s (%s)\n", item.Filename, item.ContentID)
	}
	for _, item := range ingestResp.AlreadyPresent {
		fmt.Printf("skipped  %s (already present as %s)\n", item.Filename, item.ContentID)
	}
	for _, item := range ingestResp.Failed {
		fmt.Printf("failed   %s: %s\n", item.Filename, item.Error)
	}
	fmt.Printf("\nIndexed %d chunks", ingestResp.IndexedChunkCount)
	if ingestResp.SkippedChunkCount > 0 {
		fmt.Printf(", skipped %d", ingestResp.SkippedChunkCount)
	}
	fmt.Println()

	if len(ingestResp.Failed) > 0 {
		return fmt.Errorf("%d of %d files failed", len(ingestResp.Failed), len(paths))
	}
	return nil
}
