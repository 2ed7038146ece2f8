package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doctalk-ai/doctalk/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "doctalk",
		Short: "Doctalk CLI - chat with your documents",
		Long: `Doctalk CLI ingests documents and answers questions about them.

Environment variables:
  DOCTALK_USER_ID   User identity sent with every request (required)
  DOCTALK_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.AddCommand(client.AddCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.GetCmd())
	rootCmd.AddCommand(client.DeleteCmd())
	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.ResetCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
