package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/newsweave/internal/cli"
	"github.com/cloo-solutions/newsweave/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsweave",
		Short: "Group news into stories and attribute generated articles",
		Long: `newsweave clusters scraped documents into stories and attributes the
paragraphs of generated articles to the sources that support them.

The split, cluster and attribute commands run locally over JSONL files.
The remote commands talk to a newsweaved server.

Environment variables:
  NEWSWEAVE_OPENAI_API_KEY   OpenAI key (required for attribute)
  NEWSWEAVE_LEXICON_FILE     Optional TOML stopword and segmentation lexicon
  NEWSWEAVE_API_TOKEN        newsweaved API token (remote commands)
  NEWSWEAVE_API_URL          newsweaved URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.SplitCmd())
	rootCmd.AddCommand(client.ClusterCmd())
	rootCmd.AddCommand(client.AttributeCmd())
	rootCmd.AddCommand(client.RemoteCmd())
	rootCmd.AddCommand(client.AuthCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
