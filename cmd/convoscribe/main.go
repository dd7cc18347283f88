package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	convoscribe "github.com/draftwing/convoscribe"
	"github.com/draftwing/convoscribe/internal/browser"
	"github.com/draftwing/convoscribe/internal/config"
	"github.com/draftwing/convoscribe/internal/domain"
	"github.com/draftwing/convoscribe/internal/flush"
	"github.com/draftwing/convoscribe/internal/repository"
	"github.com/draftwing/convoscribe/internal/service"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Pick the conversation store: Postgres when configured, in-memory
	// otherwise.
	var store domain.ConversationStore
	if cfg.DatabaseURL != "" {
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		migrationsFS, err := fs.Sub(convoscribe.MigrationsFS, "migrations")
		if err != nil {
			slog.Error("failed to load embedded migrations", "error", err)
			os.Exit(1)
		}
		if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		store = repository.NewConversationRepository(pool)
	} else {
		slog.Warn("no DATABASE_URL set, captures stay in memory")
		store = repository.NewMemoryConversationStore()
	}

	auth := service.NewStaticAuthenticator(cfg.AuthUserID)
	project := service.NewStaticProjectResolver(cfg.ProjectID)

	// Attach to the chat page
	page, err := browser.Connect(ctx, cfg.PageURL, browser.Options{
		DebuggerURL: cfg.DebuggerURL,
		Headless:    cfg.Headless,
	})
	if err != nil {
		slog.Error("failed to attach to page", "error", err)
		os.Exit(1)
	}

	flusher := flush.New(store, auth, flush.Options{
		Interval:  cfg.FlushInterval,
		BatchSize: cfg.FlushBatchSize,
	})

	monitor := service.NewMonitor(service.MonitorDeps{
		Page:     page,
		Flusher:  flusher,
		Auth:     auth,
		Project:  project,
		Debounce: cfg.ScanDebounce,
		Cooldown: cfg.ScanCooldown(),
	})

	// Persistence flush runs independently of scanning
	go func() {
		if err := flusher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("flusher stopped", "error", err)
		}
	}()

	slog.Info("starting capture",
		"page_url", cfg.PageURL,
		"fast_mode", cfg.FastMode,
		"cooldown", cfg.ScanCooldown(),
	)
	if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("monitor stopped", "error", err)
		os.Exit(1)
	}

	slog.Info("capture stopped gracefully")
}
