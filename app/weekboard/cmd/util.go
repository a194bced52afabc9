package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ktaey129/weekboard/internal/config"
	"github.com/ktaey129/weekboard/internal/github"
	"github.com/ktaey129/weekboard/internal/jobs"
	"github.com/ktaey129/weekboard/internal/telemetry"
)

const telemetryShutdownTimeout = 5 * time.Second

// jobBuilder assembles a job from the validated configuration and the shared client
type jobBuilder func(cfg config.Config, client *github.Client, rt jobs.Runtime) jobs.Job

// setupContext returns a context that is cancelled on the first interrupt. A second interrupt exits immediately
func setupContext(parent context.Context, logger *log.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		select {
		case <-interrupt:
		case <-ctx.Done():
			return
		}
		logger.Println("Interrupt signal detected, finishing the current item...")
		cancel()
		<-interrupt
		logger.Fatal("Forcing shutdown")
	}()

	return ctx, func() {
		signal.Stop(interrupt)
		cancel()
	}
}

// runJob loads and validates the configuration for job, then runs it. Nothing touches the network until the
// configuration is known to be complete
func (a *app) runJob(cmd *cobra.Command, job config.Job, build jobBuilder) error {
	cfg, err := config.Load(a.getenv)
	if err != nil {
		return err
	}
	a.applyFlags(cmd, job, &cfg)
	if err := cfg.Validate(job); err != nil {
		return err
	}

	ctx, stop := setupContext(cmd.Context(), a.logger)
	defer stop()

	provider, err := createTelemetryProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create telemetry provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			a.logger.Printf("Warning: failed to flush telemetry: %v", err)
		}
	}()

	client, err := createGithubClient(cfg, a.logger)
	if err != nil {
		return err
	}
	defer client.Close()

	rt := jobs.Runtime{Logger: a.logger, Tracer: provider.Tracer(), RunID: telemetry.NewRunID()}
	j := build(cfg, client, rt)

	a.logger.Printf("[%s] Starting run %s for %s", j.Name(), rt.RunID, target(cfg, job))
	_, err = j.Run(ctx)
	if errors.Is(err, context.Canceled) {
		a.logger.Printf("[%s] Interrupted by user", j.Name())
		return nil
	}
	return err
}

// applyFlags overrides configuration values with the flags given on the command line. --delay sets the pacing of
// whichever job is running
func (a *app) applyFlags(cmd *cobra.Command, job config.Job, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.RequestTimeout = a.timeout
	}
	if flags.Changed("page-delay") {
		cfg.PageDelay = a.pageDelay
	}
	if flags.Changed("debug") {
		cfg.Debug = a.debug
	}
	if flags.Changed("delay") {
		switch job {
		case config.JobCreateIssues:
			cfg.CreateDelay = a.delay
		case config.JobLinkIssues:
			cfg.LinkDelay = a.delay
		case config.JobRetitleIssues:
			cfg.UpdateDelay = a.delay
		}
	}
}

func target(cfg config.Config, job config.Job) string {
	if job == config.JobDiscoverProject {
		return cfg.Owner
	}
	return cfg.Owner + "/" + cfg.Repo
}

func createGithubClient(cfg config.Config, logger *log.Logger) (*github.Client, error) {
	return github.NewClient(github.Options{
		Token:              cfg.Token,
		Owner:              cfg.Owner,
		Repo:               cfg.Repo,
		APIURL:             cfg.APIURL,
		GraphQLURL:         cfg.GraphQLURL,
		Timeout:            cfg.RequestTimeout,
		RateLimitThreshold: cfg.RateLimitThreshold,
		PageDelay:          cfg.PageDelay,
		Debug:              cfg.Debug,
		Logger:             logger,
	})
}

func createTelemetryProvider(ctx context.Context, cfg config.Config) (*telemetry.Provider, error) {
	telemetryConfig := telemetry.TelemetryConfig{
		Enabled:        cfg.TelemetryEnabled,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		ServiceVersion: version,
	}
	return telemetry.NewProvider(ctx, telemetryConfig)
}
