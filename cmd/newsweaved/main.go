package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/newsweave/internal/cli"
	"github.com/cloo-solutions/newsweave/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsweaved",
		Short: "newsweave daemon",
		Long:  "newsweave daemon for running the API server and attribution worker, applying migrations and clustering the scrape window",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(admin.ClusterCmd())
	rootCmd.AddCommand(admin.RunsCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
