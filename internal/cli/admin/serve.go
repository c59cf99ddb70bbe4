package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloo-solutions/newsweave/internal/api/handlers"
	"github.com/cloo-solutions/newsweave/internal/api/middleware"
	"github.com/cloo-solutions/newsweave/internal/jobs"
	"github.com/cloo-solutions/newsweave/internal/server"
	"github.com/cloo-solutions/newsweave/internal/service"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the newsweave API server and the attribution job worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (default NEWSWEAVE_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireAPIToken(); err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")

	a, err := newApp(ctx, cfg, logger, !noMigrate)
	if err != nil {
		return err
	}
	defer a.Close()

	var worker *jobs.Worker
	if a.attribution != nil {
		processor := jobs.NewAttributionWorker(a.jobRepo, a.attribution, logger)
		worker = jobs.NewWorker(processor, cfg.WorkerPollInterval, logger)
		go worker.Start(ctx)
	}

	defaults := service.ClusterParams{Eps: cfg.ClusterEps, MinSamples: cfg.ClusterMinSamples}
	router := server.NewRouter(server.RouterConfig{
		TokenValidator:     middleware.StaticToken{Token: cfg.APIToken},
		Logger:             logger,
		Health:             a.pool,
		DocumentHandler:    handlers.NewDocumentHandler(a.documents),
		ClusterRunHandler:  handlers.NewClusterRunHandler(a.clusters, defaults, cfg.ClusterWindow),
		AttributionHandler: handlers.NewAttributionHandler(a.jobs, a.entryLister()),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
