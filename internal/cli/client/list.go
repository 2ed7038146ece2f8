package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// DocumentListData is one page of the list endpoint payload.
type DocumentListData struct {
	Items   []DocumentItem `json:"items"`
	Cursor  string         `json:"cursor"`
	HasMore bool           `json:"has_more"`
}

// ListCmd lists the caller's documents, following pagination cursors until
// every page is printed.
func ListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your ingested documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient()
			if err != nil {
				return err
			}

			total := 0
			cursor := ""
			for {
				path := "/documents"
				if cursor != "" {
					path += "?cursor=" + url.QueryEscape(cursor)
				}

				resp, err := api.Get(path)
				if err != nil {
					return err
				}

				var data DocumentListData
				if err := json.Unmarshal(resp.Data, &data); err != nil {
					return fmt.Errorf("failed to decode response: %w", err)
				}

				for _, doc := range data.Items {
					indexed := "indexed"
					if !doc.HasVectors {
						indexed = "pending"
					}
					fmt.Printf("%s  %-40q  %s  %d chunks  [%s]\n",
						doc.ID, doc.Title, doc.Source, doc.ChunkCount, indexed)
				}
				total += len(data.Items)

				if !data.HasMore || data.Cursor == "" {
					break
				}
				cursor = data.Cursor
			}

			if total == 0 {
				fmt.Println("No documents.")
			}
			return nil
		},
	}
}
