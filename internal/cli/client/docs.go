package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// DocumentInfo represents one stored document blob.
type DocumentInfo struct {
	Key          string `json:"key"`
	Filename     string `json:"filename,omitempty"`
	ContentHash  string `json:"content_hash,omitempty"`
	Size         int64  `json:"size_bytes"`
	LastModified string `json:"last_modified,omitempty"`
}

// ListDocumentsResponse represents the document listing API response.
type ListDocumentsResponse struct {
	Documents []DocumentInfo `json:"documents"`
}

// DocsCmd creates the docs command group.
func DocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage stored documents",
	}

	cmd.AddCommand(docsListCmd())
	cmd.AddCommand(docsGetCmd())
	cmd.AddCommand(docsDeleteCmd())

	return cmd
}

func docsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDocsList(outputJSON)
		},
	}
}

func docsGetCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "get <content-id>",
		Short: "Download a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocsGet(args[0], outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "Output file path (defaults to the content id)")

	return cmd
}

func docsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <content-id>",
		Short: "Delete a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocsDelete(args[0])
		},
	}
}

func runDocsList(outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Get("/documents")
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	var listResp ListDocumentsResponse
	if err := json.Unmarshal(resp.Data, &listResp); err != nil {
		return fmt.Errorf("failed to parse document list: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(listResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(listResp.Documents) == 0 {
		fmt.Println("No documents stored.")
		return nil
	}

	for _, doc := range listResp.Documents {
		name := doc.Filename
		if name == "" {
			name = doc.Key
		}
		fmt.Printf("%s  %8d bytes  %s\n", doc.ContentHash, doc.Size, name)
	}

	return nil
}

func runDocsGet(contentID, outputPath string) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	if outputPath == "" {
		outputPath = contentID
	}

	if err := api.DownloadFile("/documents/"+contentID, outputPath); err != nil {
		return fmt.Errorf("failed to download document: %w", err)
	}

	fmt.Printf("Saved %s\n", outputPath)
	return nil
}

func runDocsDelete(contentID string) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	if _, err := api.Delete("/documents/" + contentID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	fmt.Printf("Deleted %s\n", contentID)
	return nil
}
