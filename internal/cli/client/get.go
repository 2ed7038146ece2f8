package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// DocumentDetail extends DocumentItem with the extracted content.
type DocumentDetail struct {
	DocumentItem
	Content string `json:"content"`
}

// GetCmd fetches one document with its extracted content.
func GetCmd() *cobra.Command {
	var showContent bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient()
			if err != nil {
				return err
			}

			resp, err := api.Get("/documents/" + args[0])
			if err != nil {
				return err
			}

			var doc DocumentDetail
			if err := json.Unmarshal(resp.Data, &doc); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}

			fmt.Printf("ID:      %s\n", doc.ID)
			fmt.Printf("Title:   %s\n", doc.Title)
			fmt.Printf("Source:  %s", doc.Source)
			if doc.SourceRef != "" {
				fmt.Printf(" (%s)", doc.SourceRef)
			}
			fmt.Println()
			fmt.Printf("Chunks:  %d\n", doc.ChunkCount)
			fmt.Printf("Created: %s\n", doc.CreatedAt)
			if showContent {
				fmt.Println()
				fmt.Println(doc.Content)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showContent, "content", false, "Print the extracted content")

	return cmd
}
