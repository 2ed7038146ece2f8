package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// DocumentItem is the document shape returned by the API.
type DocumentItem struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Source     string `json:"source"`
	SourceRef  string `json:"source_ref,omitempty"`
	HasVectors bool   `json:"has_vectors"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// AddCmd ingests a document from a URL or a local file.
func AddCmd() *cobra.Command {
	var sourceURL string

	cmd := &cobra.Command{
		Use:   "add [file]",
		Short: "Ingest a document from a URL or a local file",
		Long:  "Fetches a web page with --url, or uploads a local .pdf, .txt or .md file, and indexes it for retrieval.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sourceURL == "" && len(args) == 0 {
				return fmt.Errorf("provide a file path or --url")
			}
			if sourceURL != "" && len(args) > 0 {
				return fmt.Errorf("provide either a file path or --url, not both")
			}

			api, err := NewAPIClient()
			if err != nil {
				return err
			}

			var resp *APIResponse
			if sourceURL != "" {
				resp, err = api.Post("/documents", map[string]string{"url": sourceURL})
			} else {
				resp, err = api.PostFile("/documents", args[0])
			}
			if err != nil {
				return err
			}

			var doc DocumentItem
			if err := json.Unmarshal(resp.Data, &doc); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}

			fmt.Printf("Ingested %q (id: %s, chunks: %d)\n", doc.Title, doc.ID, doc.ChunkCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceURL, "url", "", "Web page URL to ingest")

	return cmd
}
