package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"storyvox/internal/api"
	"storyvox/internal/config"
	"storyvox/internal/logging"
	"storyvox/internal/notifications"
	"storyvox/internal/preflight"
	"storyvox/internal/runstore"
	"storyvox/internal/workspace"
)

var errServerRunning = errors.New("another storyvox server is already running")

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bindFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bindFlag != "" {
				cfg.Paths.APIBind = bindFlag
			}

			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire server lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("%w (lock %s)", errServerRunning, cfg.LockPath())
			}
			defer func() { _ = lock.Unlock() }()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(runCtx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&bindFlag, "bind", "", "Override the configured API bind address")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	prepareHost(ctx, cfg, logger)

	store, err := runstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer store.Close()

	a := newApp(cfg, logger, store, notifications.NewService(cfg))
	srv, err := api.New(a.services(store), api.Options{
		Bind:              cfg.Paths.APIBind,
		Token:             cfg.Paths.APIToken,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		MaxConcurrentRuns: cfg.Server.MaxConcurrentRuns,
		OutputDir:         cfg.Paths.OutputDir,
		DefaultVoice:      cfg.TTS.DefaultVoice,
		DefaultSeed:       cfg.Replicate.Seed,
		Logger:            logger,
	})
	if err != nil {
		return err
	}
	defer srv.Release()

	if err := srv.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	srv.Stop()
	logger.Info("storyvox server shutting down")
	return nil
}

// prepareHost runs the startup housekeeping: log retention, leftover
// workspace pruning, and preflight checks. Nothing here blocks startup.
func prepareHost(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	logging.PruneOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "*.log"},
		logging.RetentionTarget{Dir: cfg.ToolLogDir(), Pattern: "*.log"},
	)

	stale := workspace.CleanStale(ctx, cfg.Paths.TempDir, cfg.StaleAge(), nil, logger)
	if len(stale.Removed) > 0 {
		logger.Info("pruned stale workspaces",
			logging.Int("removed", len(stale.Removed)),
			logging.String(logging.FieldEventType, "stale_workspaces_pruned"),
		)
	}

	for _, status := range preflight.MissingRequired(preflight.CheckSystemDeps(cfg)) {
		logging.WarnWithContext(logger, "required tool unavailable", "dependency_missing",
			logging.String("dependency", status.Name),
			logging.String("command", status.Command),
			logging.String("detail", status.Detail),
			logging.String(logging.FieldErrorHint, "install the tool or set its path under [tools]"),
			logging.String(logging.FieldImpact, "runs that need it will fail"),
		)
	}
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "dependent endpoints will answer with errors"),
		)
	}
}
