package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/newsweave/internal/cli"
	"github.com/cloo-solutions/newsweave/internal/service"
)

// ClusterCmd returns the cluster command
func ClusterCmd() *cobra.Command {
	var (
		since      time.Duration
		eps        float64
		minSamples int
	)

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Cluster recent documents into stories",
		Long:  "Cluster every stored document scraped within the window and record the run as a new generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.OutputFormat(cmd)
			if err != nil {
				return err
			}
			ctx := context.Background()

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("since") {
				since = cfg.ClusterWindow
			}
			if !cmd.Flags().Changed("eps") {
				eps = cfg.ClusterEps
			}
			if !cmd.Flags().Changed("min-samples") {
				minSamples = cfg.ClusterMinSamples
			}
			if since <= 0 {
				return fmt.Errorf("--since must be positive")
			}

			a, err := newApp(ctx, cfg, logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.clusters.RunWindow(ctx, time.Now().UTC().Add(-since), service.ClusterParams{
				Eps:        eps,
				MinSamples: minSamples,
			})
			if err != nil {
				return fmt.Errorf("failed to cluster documents: %w", err)
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

	cmd.Flags().DurationVar(&since, "since", 48*time.Hour, "Cluster documents newer than this (default NEWSWEAVE_CLUSTER_WINDOW)")
	cmd.Flags().Float64Var(&eps, "eps", 0.4, "Maximum cosine distance between neighbours (default NEWSWEAVE_CLUSTER_EPS)")
	cmd.Flags().IntVar(&minSamples, "min-samples", 2, "Neighbours required for a core document (default NEWSWEAVE_CLUSTER_MIN_SAMPLES)")
	cli.AddOutputFlag(cmd)

	return cmd
}
