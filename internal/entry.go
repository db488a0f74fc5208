// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/mcmassia/nexusdrive/internal/api"
	"github.com/mcmassia/nexusdrive/internal/importer"
	"github.com/mcmassia/nexusdrive/internal/inbox"
	"github.com/mcmassia/nexusdrive/internal/index"
	"github.com/mcmassia/nexusdrive/internal/mcpserver"
	"github.com/mcmassia/nexusdrive/internal/objectservice"
	"github.com/mcmassia/nexusdrive/internal/sse"
	"github.com/mcmassia/nexusdrive/internal/storage"
)

// runtime holds the components shared by every command.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	db     *index.DB
	assets storage.AssetStore
	broker *sse.Broker
	svc    *objectservice.Service
}

func (rt *runtime) Close() {
	rt.broker.Close()
	if err := rt.db.Close(); err != nil {
		rt.logger.Warn("close index failed", slog.String("error", err.Error()))
	}
}

func newRuntime(ctx context.Context, opts ...Option) (*runtime, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("asset_backend", cfg.Assets.Backend),
		slog.String("inbox_dir", cfg.Import.InboxDir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	assets, err := openAssets(ctx, &cfg.Assets)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Reconcile(ctx, db, logger); err != nil {
		logger.Warn("initial reconcile failed", slog.String("error", err.Error()))
	}

	engineOpts := []importer.EngineOption{
		importer.WithObjectStore(db),
		importer.WithAssetStore(assets),
		importer.WithSchemaStore(db),
		importer.WithManifestStore(db),
		importer.WithProgressEvery(cfg.Import.ProgressEvery),
		importer.WithLogger(logger),
	}
	if cfg.Import.SanitizeHTML {
		engineOpts = append(engineOpts, importer.WithSanitizer(importer.NewSanitizer()))
	}

	broker := sse.NewBroker(250 * time.Millisecond)
	svc := objectservice.NewService(db, assets, importer.New(engineOpts...),
		objectservice.WithNotifier(broker),
		objectservice.WithMaxArchiveBytes(cfg.Import.MaxArchiveBytes),
		objectservice.WithLogger(logger),
	)

	return &runtime{cfg: cfg, logger: logger, db: db, assets: assets, broker: broker, svc: svc}, nil
}

func openAssets(ctx context.Context, cfg *AssetsConfig) (storage.AssetStore, error) {
	if cfg.Backend == AssetBackendS3 {
		return storage.NewS3(ctx, storage.S3Options{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
			PathStyle: cfg.S3.PathStyle,
		})
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return storage.NewFS(cfg.Dir)
}

func writeHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run starts the HTTP server and, when configured, the inbox watcher.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(ctx, opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg, logger := rt.cfg, rt.logger

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, rt.broker, cfg.Import.MaxArchiveBytes)
	attachments := api.NewAttachmentHandler(rt.svc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", writeHealth)
	r.Get("/health/ready", writeHealth)

	r.Mount("/api", apiRouter)
	r.With(api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token)).
		Get("/attachments/{filename}", attachments.ServeFile)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Import.InboxDir != "" {
		g.Go(func() error {
			importFn := func(ctx context.Context, ra io.ReaderAt, size int64) error {
				_, err := rt.svc.Import(ctx, ra, size, cfg.Import.Overwrite)
				return err
			}
			if err := inbox.Watch(gCtx, cfg.Import.InboxDir, importFn, logger, rt.broker.InboxEvent); err != nil {
				return fmt.Errorf("inbox watcher: %w", err)
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Unblock the inbox watcher.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// ImportFile imports a single archive from disk and returns its summary.
func ImportFile(ctx context.Context, path string, overwrite bool, opts ...Option) (*importer.Result, error) {
	rt, err := newRuntime(ctx, opts...)
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	return rt.svc.Import(ctx, f, info.Size(), overwrite)
}

// RevertLast undoes the most recent import.
func RevertLast(ctx context.Context, opts ...Option) (*importer.RevertResult, error) {
	rt, err := newRuntime(ctx, opts...)
	if err != nil {
		return nil, err
	}
	defer rt.Close()
	return rt.svc.Revert(ctx)
}

// ServeMCP exposes the import tools over MCP on stdin/stdout.
func ServeMCP(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(ctx, append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.svc, rt.assets).ServeStdio()
}
