package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// AskRequest represents the ask API request.
type AskRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}

// AskResponse represents the ask API response.
type AskResponse struct {
	Answer  string         `json:"answer"`
	Sources []SearchResult `json:"sources"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question over indexed documents",
		Long:  "Retrieves relevant document chunks and answers the question using them as context.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(args[0], topK, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&topK, "top", "n", 0, "Number of chunks used as context (server default if 0)")

	return cmd
}

func runAsk(question string, topK int, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Post("/ask", AskRequest{Question: question, K: topK})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	var askResp AskResponse
	if err := json.Unmarshal(resp.Data, &askResp); err != nil {
		return fmt.Errorf("failed to parse answer: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(askResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(askResp.Answer)
	if len(askResp.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range askResp.Sources {
			fmt.Printf("  %s (%.3f)\n", src.ID, src.Score)
		}
	}

	return nil
}
