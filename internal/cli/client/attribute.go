package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/newsweave/internal/cli"
	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/service"
)

// AttributeCmd creates the attribute command.
func AttributeCmd() *cobra.Command {
	var (
		generated  string
		sources    string
		strategy   string
		threshold  float64
		sqlitePath string
	)

	cmd := &cobra.Command{
		Use:   "attribute",
		Short: "Attribute a generated article to its sources",
		Long: `Matches every paragraph of a generated article against the paragraphs of its
source documents. The similarity strategy compares embeddings against --threshold;
the llm strategy asks a judge model. Both need NEWSWEAVE_OPENAI_API_KEY.`,
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

			req := attributeRequest{generated: generated, sources: sources}
			if cmd.Flags().Changed("strategy") {
				req.strategy = domain.AttributionStrategy(strategy)
			}
			if cmd.Flags().Changed("threshold") {
				req.threshold = &threshold
			}

			run, err := runAttribute(cmd.Context(), l, req)
			if err != nil {
				return err
			}

			snapshot := service.NewAttributionRunSnapshot(run)
			out := cmd.OutOrStdout()
			if format == cli.OutputJSON {
				if err := cli.PrintJSON(out, snapshot); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, attributionSummary(run))
				fmt.Fprintln(out, cli.AttributionTable(snapshot.Entries))
			}
			if run.State == domain.RunStateFailed {
				return fmt.Errorf("attribution run %s failed: %s", run.ID, run.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&generated, "generated", "g", "", "JSON file holding the generated document record")
	cmd.Flags().StringVarP(&sources, "sources", "s", "", "JSONL file of source documents (- for stdin)")
	cmd.Flags().StringVar(&strategy, "strategy", string(domain.StrategySimilarity), "Attribution strategy: similarity or llm (default NEWSWEAVE_ATTRIBUTION_STRATEGY)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.75, "Minimum cosine similarity for the similarity strategy (default NEWSWEAVE_ATTRIBUTION_THRESHOLD)")
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "Record documents and entries in this SQLite file")
	cli.AddOutputFlag(cmd)
	_ = cmd.MarkFlagRequired("generated")
	_ = cmd.MarkFlagRequired("sources")

	return cmd
}

type attributeRequest struct {
	generated string
	sources   string
	strategy  domain.AttributionStrategy
	threshold *float64
}

func runAttribute(ctx context.Context, l *local, req attributeRequest) (*domain.AttributionRun, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.cfg.HasOpenAI() {
		return nil, domain.NewConfigurationError("NEWSWEAVE_OPENAI_API_KEY is required for attribution")
	}

	generated, err := ReadDocumentFile(req.generated)
	if err != nil {
		return nil, err
	}
	sources, err := ReadDocumentsFile(req.sources)
	if err != nil {
		return nil, err
	}

	attributors, err := cli.BuildAttributors(l.cfg, l.embeddingCache(), l.logger)
	if err != nil {
		return nil, err
	}
	deps := service.AttributionServiceDeps{
		Attributors:      attributors,
		DefaultStrategy:  l.cfg.Strategy(),
		DefaultThreshold: l.cfg.AttributionThreshold,
		Logger:           l.logger,
	}
	if l.store != nil {
		if err := l.ingest(ctx, append([]*domain.Document{generated}, sources...)); err != nil {
			return nil, err
		}
		deps.Documents = l.store
		deps.Entries = l.store
		deps.Tx = l.store
	}
	svc, err := service.NewAttributionService(deps)
	if err != nil {
		return nil, err
	}

	run, err := svc.Run(ctx, service.AttributionRequest{
		Generated: generated,
		Sources:   sources,
		Strategy:  req.strategy,
		Threshold: req.threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attribute %s: %w", generated.ID, err)
	}
	return run, nil
}

func attributionSummary(run *domain.AttributionRun) string {
	attributed := 0
	for _, e := range run.Entries {
		if e.Status == domain.EntryStatusMatched {
			attributed++
		}
	}
	return fmt.Sprintf("Run %s (%s, threshold %g): %s, %d of %d paragraphs attributed",
		run.ID, run.Strategy, run.Threshold, run.State, attributed, len(run.Entries))
}
