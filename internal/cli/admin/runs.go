package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/newsweave/internal/cli"
	"github.com/cloo-solutions/newsweave/internal/service"
)

// RunsCmd returns the runs command
func RunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect cluster runs",
		Long:  "List and show recorded cluster runs",
	}

	cmd.AddCommand(RunsListCmd())
	cmd.AddCommand(RunsShowCmd())

	return cmd
}

// ListRunsOutput is the JSON shape of runs list.
type ListRunsOutput struct {
	Items   []service.ClusterRunSnapshot `json:"items"`
	Cursor  string                       `json:"cursor,omitempty"`
	HasMore bool                         `json:"has_more"`
}

func RunsListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cluster runs",
		Long:  "List cluster runs newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.OutputFormat(cmd)
			if err != nil {
				return err
			}
			ctx := context.Background()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			page, err := a.clusters.ListRuns(ctx, cursor, limit)
			if err != nil {
				return fmt.Errorf("failed to list cluster runs: %w", err)
			}

			result := ListRunsOutput{Items: make([]service.ClusterRunSnapshot, len(page.Items)), Cursor: page.Cursor, HasMore: page.HasMore}
			for i, r := range page.Items {
				result.Items[i] = service.NewClusterRunSnapshot(r)
			}

			out := cmd.OutOrStdout()
			if format == cli.OutputJSON {
				return cli.PrintJSON(out, result)
			}
			if len(result.Items) == 0 {
				fmt.Fprintln(out, "No cluster runs found")
				return nil
			}
			fmt.Fprintln(out, cli.ClusterRunListTable(result.Items))
			if result.HasMore {
				fmt.Fprintf(out, "\nMore results available. Use --cursor %s\n", result.Cursor)
			}
			return nil
		},
	}

	cli.AddOutputFlag(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", service.DefaultClusterRunPageSize, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func RunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the clusters of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.OutputFormat(cmd)
			if err != nil {
				return err
			}
			ctx := context.Background()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.clusters.GetRun(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get cluster run: %w", err)
			}

			snapshot := service.NewClusterRunSnapshot(run)
			out := cmd.OutOrStdout()
			if format == cli.OutputJSON {
				return cli.PrintJSON(out, snapshot)
			}
			fmt.Fprintln(out, cli.ClusterRunSummary(snapshot))
			fmt.Fprintln(out, cli.ClusterRunTable(snapshot))
			return nil
		},
	}

	cli.AddOutputFlag(cmd)

	return cmd
}

func openApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, logger, false)
}
