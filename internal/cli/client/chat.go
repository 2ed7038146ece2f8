package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ChatData is the chat endpoint payload.
type ChatData struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	HasContext bool     `json:"has_context"`
	Status     string   `json:"status"`
	Provider   string   `json:"provider,omitempty"`
	Model      string   `json:"model,omitempty"`
}

// ChatCmd asks a question against the caller's documents.
func ChatCmd() *cobra.Command {
	var (
		model       string
		documentID  string
		showSources bool
	)

	cmd := &cobra.Command{
		Use:   "chat <question...>",
		Short: "Ask a question about your documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient()
			if err != nil {
				return err
			}

			body := map[string]string{"question": strings.Join(args, " ")}
			if model != "" {
				body["model"] = model
			}
			if documentID != "" {
				body["document_id"] = documentID
			}

			resp, err := api.Post("/chat", body)
			if err != nil {
				return err
			}

			var data ChatData
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}

			fmt.Println(data.Answer)
			if data.Status != "success" {
				fmt.Printf("\n[status: %s]\n", data.Status)
			}
			if showSources && len(data.Sources) > 0 {
				fmt.Println("\nSources:")
				for i, s := range data.Sources {
					fmt.Printf("%d. %s\n", i+1, s)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to answer with (pins the provider)")
	cmd.Flags().StringVar(&documentID, "document", "", "Restrict retrieval to one document id")
	cmd.Flags().BoolVar(&showSources, "sources", false, "Print the source chunks")

	return cmd
}

// ResetCmd clears the conversation memory.
func ResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear your chat history",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient()
			if err != nil {
				return err
			}

			if _, err := api.Post("/chat/reset", nil); err != nil {
				return err
			}

			fmt.Println("Chat history cleared.")
			return nil
		},
	}
}
