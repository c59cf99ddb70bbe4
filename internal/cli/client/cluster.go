package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/newsweave/internal/cli"
	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/service"
	"github.com/cloo-solutions/newsweave/internal/textnorm"
)

// ClusterCmd creates the cluster command.
func ClusterCmd() *cobra.Command {
	var (
		input      string
		eps        float64
		minSamples int
		sqlitePath string
	)

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Group documents into stories",
		Long: `Clusters a JSONL file of documents into stories. Each line is one record:
{"id": "...", "text": "...", "timestamp": "2024-03-01T08:00:00Z", "source_label": "..."}

With --sqlite the documents and the run are recorded in a local store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.OutputFormat(cmd)
			if err != nil {
				return err
			}
			l, err := openLocal(sqlitePath)
			if err != nil {
				return err
			}
			defer l.Close()

			params := service.ClusterParams{Eps: l.cfg.ClusterEps, MinSamples: l.cfg.ClusterMinSamples}
			if cmd.Flags().Changed("eps") {
				params.Eps = eps
			}
			if cmd.Flags().Changed("min-samples") {
				params.MinSamples = minSamples
			}

			run, err := runCluster(cmd.Context(), l, input, params)
			if err != nil {
				return err
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

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSONL file of documents (- for stdin)")
	cmd.Flags().Float64Var(&eps, "eps", 0.4, "Maximum cosine distance between neighbours (default NEWSWEAVE_CLUSTER_EPS)")
	cmd.Flags().IntVar(&minSamples, "min-samples", 2, "Neighbours required for a core document (default NEWSWEAVE_CLUSTER_MIN_SAMPLES)")
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "Record documents and the run in this SQLite file")
	cli.AddOutputFlag(cmd)
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runCluster(ctx context.Context, l *local, input string, params service.ClusterParams) (*domain.ClusterRun, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	docs, err := ReadDocumentsFile(input)
	if err != nil {
		return nil, err
	}
	normalizer, err := textnorm.FromFile(l.cfg.LexiconFile)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration, "invalid lexicon file", err)
	}

	deps := service.ClusterServiceDeps{Normalizer: normalizer, Logger: l.logger}
	if l.store != nil {
		if err := l.ingest(ctx, docs); err != nil {
			return nil, err
		}
		deps.Documents = l.store
		deps.Runs = l.store
		deps.Tx = l.store
	}

	run, err := service.NewClusterService(deps).Run(ctx, docs, params)
	if err != nil {
		return nil, fmt.Errorf("failed to cluster documents: %w", err)
	}
	return run, nil
}
