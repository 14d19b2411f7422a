package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cryptoganster/cryptoingest/internal/app"
	"github.com/cryptoganster/cryptoingest/internal/domain"
)

// newServeCmd creates the 'serve' subcommand: the long-running service with
// the HTTP API, the worker pool, and periodic source polling.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion service",
		Long: `Starts the HTTP API, the pipeline worker pool, and the configured
source adapters. Web and RSS sources are polled on the configured interval;
content can also be submitted directly through the API.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.Logger

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:           a.Server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", a.Config.Pipeline.Workers))
		a.Dispatcher.Run(ctx)
	}()

	if len(a.Config.Sources.WebURLs) > 0 || len(a.Config.Sources.RSSFeeds) > 0 {
		go pollSources(ctx, a)
	}

	go func() {
		logger.Info("http server started", zap.Int("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	a.Queue.Close()
	logger.Info("shutdown complete")
	return nil
}

// pollSources runs the configured source adapters on the collect interval.
// Each round is tracked as one ingestion job per source.
func pollSources(ctx context.Context, a *app.App) {
	interval := a.Config.Sources.CollectInterval()
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		collectRound(ctx, a)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func collectRound(ctx context.Context, a *app.App) {
	if urls := a.Config.Sources.WebURLs; len(urls) > 0 {
		runSourceJob(ctx, a, a.Config.Sources.WebSourceID, func(ctx context.Context, jobID string) (domain.JobMetrics, error) {
			return a.WebSource.Collect(ctx, jobID, urls)
		})
	}
	if feeds := a.Config.Sources.RSSFeeds; len(feeds) > 0 {
		runSourceJob(ctx, a, a.Config.Sources.RSSSourceID, func(ctx context.Context, jobID string) (domain.JobMetrics, error) {
			return a.RSSSource.Collect(ctx, jobID, feeds)
		})
	}
}

// runSourceJob creates a job for one collection round and executes it under
// the job runner's retry lifecycle.
func runSourceJob(ctx context.Context, a *app.App, sourceID string, collect func(context.Context, string) (domain.JobMetrics, error)) {
	jobID, err := a.IDs.NewID()
	if err != nil {
		a.Logger.Error("generate job id", zap.Error(err))
		return
	}
	job, err := domain.NewIngestionJob(jobID, sourceID, a.Clock.Now())
	if err != nil {
		a.Logger.Error("build collection job", zap.Error(err))
		return
	}
	if err := a.Jobs.Create(ctx, job); err != nil {
		a.Logger.Error("create collection job", zap.String("source_id", sourceID), zap.Error(err))
		return
	}
	err = a.Runner.Execute(ctx, jobID, func(ctx context.Context) (domain.JobMetrics, error) {
		return collect(ctx, jobID)
	})
	if err != nil && ctx.Err() == nil {
		a.Logger.Warn("collection job failed",
			zap.String("job_id", jobID),
			zap.String("source_id", sourceID),
			zap.Error(err),
		)
	}
}
