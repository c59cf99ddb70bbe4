package client

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/newsweave/internal/api/handlers"
	"github.com/cloo-solutions/newsweave/internal/cli"
	"github.com/cloo-solutions/newsweave/internal/domain"
	"github.com/cloo-solutions/newsweave/internal/service"
)

// RemoteCmd groups the commands that talk to a running newsweaved.
func RemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Work against a newsweaved server",
		Long:  "Push documents, trigger runs and read results from a newsweaved API server",
	}

	cmd.AddCommand(RemotePushCmd())
	cmd.AddCommand(RemoteClusterCmd())
	cmd.AddCommand(RemoteRunsCmd())
	cmd.AddCommand(RemoteAttributeCmd())
	cmd.AddCommand(RemoteJobCmd())
	cmd.AddCommand(RemoteEntriesCmd())

	return cmd
}

// RemotePushCmd uploads a JSONL file through POST /documents.
func RemotePushCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upload documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.OutputFormat(cmd)
			if err != nil {
				return err
			}
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			docs, err := ReadDocumentsFile(input)
			if err != nil {
				return err
			}
			records := make([]domain.DocumentRecord, len(docs))
			for i, d := range docs {
				records[i] = d.ToRecord()
			}

			resp, err := client.Post("/documents", records)
			if err != nil {
				return fmt.Errorf("failed to push documents: %w", err)
			}
			var result service.IngestResult
			if err := resp.Decode(&result); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == cli.OutputJSON {
				return cli.PrintJSON(out, result)
			}
			fmt.Fprintf(out, "Created %d, already present %d, rejected %d\n", len(result.Created), len(result.Existing), len(result.Rejected))
			for _, r := range result.Rejected {
				fmt.Fprintf(out, "  #%d %s: %s\n", r.Position, r.ID, r.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSONL file of documents (- for stdin)")
	_ = cmd.MarkFlagRequired("input")
	AddAPIFlags(cmd)
	cli.AddOutputFlag(cmd)

	return cmd
}

// RemoteClusterCmd triggers POST /cluster-runs.
func RemoteClusterCmd() *cobra.Command {
	var (
		since       string
		documentIDs []string
		eps         float64
		minSamples  int
	)

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Run clustering on the server",
		Long:  "Clusters the stored documents newer than --since (or the server window), or exactly --ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.OutputFormat(cmd)
			if err != nil {
				return err
			}
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			body := map[string]interface{}{}
			if since != "" {
				body["since"] = since
			}
			if len(documentIDs) > 0 {
				body["document_ids"] = documentIDs
			}
			if cmd.Flags().Changed("eps") {
				body["eps"] = eps
			}
			if cmd.Flags().Changed("min-samples") {
				body["min_samples"] = minSamples
			}

			resp, err := client.Post("/cluster-runs", body)
			if err != nil {
				return fmt.Errorf("failed to run clustering: %w", err)
			}
			var run service.ClusterRunSnapshot
			if err := resp.Decode(&run); err != nil {
				return err
			}
			return printClusterRun(cmd.OutOrStdout(), run, format)
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "RFC3339 time or duration such as 48h")
	cmd.Flags().StringSliceVar(&documentIDs, "ids", nil, "Cluster exactly these document ids")
	cmd.Flags().Float64Var(&eps, "eps", 0, "Override the server eps")
	cmd.Flags().IntVar(&minSamples, "min-samples", 0, "Override the server min_samples")
	AddAPIFlags(cmd)
	cli.AddOutputFlag(cmd)

	return cmd
}

// RemoteRunsCmd reads GET /cluster-runs and GET /cluster-runs/{id}.
func RemoteRunsCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List cluster runs or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.OutputFormat(cmd)
			if err != nil {
				return err
			}
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				resp, err := client.Get("/cluster-runs/" + url.PathEscape(args[0]))
				if err != nil {
					return fmt.Errorf("failed to get cluster run: %w", err)
				}
				var run service.ClusterRunSnapshot
				if err := resp.Decode(&run); err != nil {
					return err
				}
				return printClusterRun(out, run, format)
			}

			query := url.Values{}
			query.Set("limit", strconv.Itoa(limit))
			if cursor != "" {
				query.Set("cursor", cursor)
			}
			resp, err := client.Get("/cluster-runs?" + query.Encode())
			if err != nil {
				return fmt.Errorf("failed to list cluster runs: %w", err)
			}
			var page handlers.ListClusterRunsResponse
			if err := resp.Decode(&page); err != nil {
				return err
			}
			if format == cli.OutputJSON {
				return cli.PrintJSON(out, page)
			}
			if len(page.Items) == 0 {
				fmt.Fprintln(out, "No cluster runs found")
				return nil
			}
			fmt.Fprintln(out, cli.ClusterRunListTable(page.Items))
			if page.HasMore {
				fmt.Fprintf(out, "\nMore results available. Use --cursor %s\n", page.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", service.DefaultClusterRunPageSize, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")
	AddAPIFlags(cmd)
	cli.AddOutputFlag(cmd)

	return cmd
}

// RemoteAttributeCmd queues an attribution job through POST /attributions.
func RemoteAttributeCmd() *cobra.Command {
	var (
		documentID string
		sourceIDs  []string
		strategy   string
		threshold  float64
		wait       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "attribute",
		Short: "Queue an attribution job",
		Long:  "Queues attribution of a stored generated document against stored sources. With --wait, polls until the job finishes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.OutputFormat(cmd)
			if err != nil {
				return err
			}
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			body := map[string]interface{}{
				"document_id":         documentID,
				"source_document_ids": sourceIDs,
			}
			if strategy != "" {
				body["strategy"] = strategy
			}
			if cmd.Flags().Changed("threshold") {
				body["threshold"] = threshold
			}

			resp, err := client.Post("/attributions", body)
			if err != nil {
				return fmt.Errorf("failed to queue attribution: %w", err)
			}
			var job *handlers.AttributionJobResponse
			if err := resp.Decode(&job); err != nil {
				return err
			}
			if wait > 0 {
				if job, err = waitForJob(client, job.ID, wait, time.Second); err != nil {
					return err
				}
			}
			return printJob(cmd.OutOrStdout(), job, format)
		},
	}

	cmd.Flags().StringVar(&documentID, "document", "", "Generated document id")
	cmd.Flags().StringSliceVar(&sourceIDs, "sources", nil, "Source document ids")
	cmd.Flags().StringVar(&strategy, "strategy", "", "similarity or llm (default server strategy)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Override the server threshold")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Poll the job for up to this long")
	_ = cmd.MarkFlagRequired("document")
	_ = cmd.MarkFlagRequired("sources")
	AddAPIFlags(cmd)
	cli.AddOutputFlag(cmd)

	return cmd
}

// RemoteJobCmd reads GET /attribution-jobs/{id}.
func RemoteJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job <job-id>",
		Short: "Show an attribution job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.OutputFormat(cmd)
			if err != nil {
				return err
			}
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			job, err := getJob(client, args[0])
			if err != nil {
				return err
			}
			return printJob(cmd.OutOrStdout(), job, format)
		},
	}

	AddAPIFlags(cmd)
	cli.AddOutputFlag(cmd)

	return cmd
}

// RemoteEntriesCmd reads GET /attributions/{document_id}.
func RemoteEntriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries <document-id>",
		Short: "Show stored attribution entries of a generated document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.OutputFormat(cmd)
			if err != nil {
				return err
			}
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := client.Get("/attributions/" + url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("failed to get attribution entries: %w", err)
			}
			var result handlers.AttributionEntriesResponse
			if err := resp.Decode(&result); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == cli.OutputJSON {
				return cli.PrintJSON(out, result)
			}
			if len(result.Entries) == 0 {
				fmt.Fprintf(out, "No attribution entries for %s\n", result.DocumentID)
				return nil
			}
			fmt.Fprintln(out, cli.AttributionTable(result.Entries))
			return nil
		},
	}

	AddAPIFlags(cmd)
	cli.AddOutputFlag(cmd)

	return cmd
}

func getJob(client *APIClient, id string) (*handlers.AttributionJobResponse, error) {
	var job *handlers.AttributionJobResponse
	resp, err := client.Get("/attribution-jobs/" + url.PathEscape(id))
	if err != nil {
		return job, fmt.Errorf("failed to get attribution job: %w", err)
	}
	err = resp.Decode(&job)
	return job, err
}

func waitForJob(client *APIClient, id string, timeout, interval time.Duration) (*handlers.AttributionJobResponse, error) {
	deadline := time.Now().Add(timeout)
	for {
		job, err := getJob(client, id)
		if err != nil {
			return job, err
		}
		if job.Status == string(domain.AttributionJobStatusCompleted) || job.Status == string(domain.AttributionJobStatusFailed) {
			return job, nil
		}
		if time.Now().Add(interval).After(deadline) {
			return job, nil
		}
		time.Sleep(interval)
	}
}

func printJob(out io.Writer, job *handlers.AttributionJobResponse, format string) error {
	if format == cli.OutputJSON {
		return cli.PrintJSON(out, job)
	}
	fmt.Fprintf(out, "Job %s: %s\n", job.ID, job.Status)
	fmt.Fprintf(out, "Document: %s (%d sources, %s, threshold %g)\n", job.DocumentID, len(job.SourceDocumentIDs), job.Strategy, job.Threshold)
	if job.RunID != "" {
		fmt.Fprintf(out, "Run: %s\n", job.RunID)
	}
	if job.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", job.Error)
	}
	return nil
}

func printClusterRun(out io.Writer, run service.ClusterRunSnapshot, format string) error {
	if format == cli.OutputJSON {
		return cli.PrintJSON(out, run)
	}
	fmt.Fprintln(out, cli.ClusterRunSummary(run))
	fmt.Fprintln(out, cli.ClusterRunTable(run))
	return nil
}
