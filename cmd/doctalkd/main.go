package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doctalk-ai/doctalk/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "doctalkd",
		Short: "Doctalk daemon",
		Long:  "Doctalk daemon for running the document assistant API server",
	}

	rootCmd.AddCommand(admin.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
