package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/terra-clan/humanarch/internal/api"
	"github.com/terra-clan/humanarch/internal/app"
	"github.com/terra-clan/humanarch/internal/cleanup"
	"github.com/terra-clan/humanarch/internal/community"
	"github.com/terra-clan/humanarch/internal/config"
	"github.com/terra-clan/humanarch/internal/content"
	"github.com/terra-clan/humanarch/internal/events"
	"github.com/terra-clan/humanarch/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long:  "Runs the HTTP API server. Configuration is read from the environment and an optional .env file.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func setupLogging(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	switch cfg.Storage.Backend {
	case config.StorageRedis:
		return storage.NewRedisRepository(ctx, storage.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	default:
		return storage.NewMemoryRepository(), nil
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if contentDir != "" {
		cfg.Content.Dir = contentDir
	}

	setupLogging(cfg.Log)

	slog.Info("starting humanarch",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Backend,
	)

	loader := content.NewLoader()
	if err := loader.Load(cfg.Content.Dir); err != nil {
		return fmt.Errorf("failed to load content: %w", err)
	}
	slog.Info("content loaded",
		"dir", cfg.Content.Dir,
		"products", len(loader.Products()),
		"questions", len(loader.Questions()),
		"posts", len(loader.Posts()),
	)

	initCtx, initCancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer initCancel()

	repo, err := openRepository(initCtx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open session storage: %w", err)
	}
	defer repo.Close()

	bus := events.NewBus(events.DefaultBufferSize)
	defer bus.Close()

	registry := app.NewRegistry(loader, repo, app.Config{
		Bus: bus,
		TTL: cfg.Session.TTL,
		Timing: app.Timing{
			Assessment: cfg.Timing.AssessmentDelay,
			Purchase:   cfg.Timing.PurchaseDelay,
			Completion: cfg.Timing.CompletionDelay,
		},
	})

	guild := community.NewMemoryGuild(loader.SeedPosts(),
		community.WithRegistrationDelay(cfg.Timing.RegistrationDelay),
		community.WithBus(bus),
	)
	defer guild.Close()

	cleaner := cleanup.NewCleaner(registry, cfg.Cleanup.Interval, nil)

	server := api.NewServer(cfg.Server, cfg.CORS, cfg.Community.FeedLimit, api.Deps{
		Registry: registry,
		Content:  loader,
		Guild:    guild,
		Bus:      bus,
		Repo:     repo,
	})
	// No WriteTimeout: event streams stay open
	httpServer := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return cleaner.Run(gCtx)
	})

	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		return nil
	})

	runErr := g.Wait()

	// Persist whatever the last requests and timers changed
	closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer closeCancel()
	if err := registry.Close(closeCtx); err != nil {
		slog.Error("failed to persist sessions", "error", err)
	}

	slog.Info("humanarch stopped")
	return runErr
}
