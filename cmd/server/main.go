// Deepfake Defender - spot-the-fake game server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/deepfake-defender/internal/api"
	"github.com/ashureev/deepfake-defender/internal/config"
	"github.com/ashureev/deepfake-defender/internal/game"
	"github.com/ashureev/deepfake-defender/internal/identity"
	"github.com/ashureev/deepfake-defender/internal/imagesource"
	"github.com/ashureev/deepfake-defender/internal/logging"
	"github.com/ashureev/deepfake-defender/internal/middleware"
	"github.com/ashureev/deepfake-defender/internal/session"
	"github.com/ashureev/deepfake-defender/internal/store"
	"github.com/ashureev/deepfake-defender/internal/tips"
	"github.com/ashureev/deepfake-defender/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, logCloser := logging.New(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	defer func() {
		if closeErr := logCloser.Close(); closeErr != nil {
			slog.Error("Failed to close log file", "error", closeErr)
		}
	}()

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"image_source", cfg.ImageSource,
		"draw_policy", cfg.DrawPolicy.String(),
		"guess_policy", cfg.GuessPolicy.String())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	tipList, err := tips.Load(cfg.TipsFile)
	if err != nil {
		slog.Error("Failed to load tips", "error", err, "file", cfg.TipsFile)
		os.Exit(1)
	}

	images, err := newProvider(cfg)
	if err != nil {
		slog.Error("Failed to initialize image source", "error", err)
		os.Exit(1)
	}
	for _, w := range images.Warnings() {
		slog.Warn("Image source warning", "warning", w)
	}
	slog.Info("Image source ready", "source", cfg.ImageSource, "pool", images.Counts())

	// Initialize services.
	games := game.NewManager(game.Config{
		GuessPolicy: cfg.GuessPolicy,
		Tips:        tipList,
		Rand:        game.NewRand(cfg.RandomSeed),
		Logger:      logger.With("component", "game"),
	})
	sessions := session.NewRegistry(func() game.Source {
		return images.NewDeck(cfg.DrawPolicy, games.Rand())
	})

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, games, sessions, images, cfg)
	healthHandler := api.NewHealthHandler(baseHandler)
	gameHandler := api.NewGameHandler(baseHandler)
	imageHandler := api.NewImageHandler(baseHandler)
	statsHandler := api.NewStatsHandler(baseHandler)
	liveHandler := api.NewLiveHandler(baseHandler)

	allowedOrigins := []string{"*"}
	if !cfg.IsDevelopment() {
		allowedOrigins = []string{cfg.FrontendURL}
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(allowedOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/*", web.SPAHandler())

	// Game routes carry the anonymous player identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		gameHandler.RegisterRoutes(r)
		imageHandler.RegisterRoutes(r)
		statsHandler.RegisterRoutes(r)
		r.Get("/ws/game", liveHandler.ServeHTTP)
	})

	// Create server.
	// WebSocket connections are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start TTL worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.StartTTLWorker(ctx, repo, sessions, cfg.SessionTTL, cfg.GameRetention)

	// SIGHUP rescans the image folder so new images reach new games.
	if folder, ok := images.(*imagesource.Folder); ok {
		go rescanOnHangup(ctx, folder)
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Record in-progress games before the database closes.
	session.Flush(shutdownCtx, repo, sessions)

	slog.Info("Server stopped successfully")
}

func newProvider(cfg *config.Config) (imagesource.Provider, error) {
	if cfg.ImageSource == config.SourceRemote {
		return imagesource.NewRemote(imagesource.RemoteConfig{
			AIURL:      cfg.Remote.AIURL,
			RealURL:    cfg.Remote.RealURL,
			MaxRetries: cfg.Remote.Retries,
			BaseDelay:  cfg.Remote.BaseDelay,
			Timeout:    cfg.Remote.Timeout,
			CacheSize:  cfg.Remote.CacheSize,
		}), nil
	}
	folder, err := imagesource.NewFolder(cfg.ImageDir)
	if err != nil {
		return nil, err
	}
	return folder, nil
}

func rescanOnHangup(ctx context.Context, folder *imagesource.Folder) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			if err := folder.Rescan(); err != nil {
				slog.Error("Image folder rescan failed", "error", err)
				continue
			}
			slog.Info("Image folder rescanned", "pool", folder.Counts())
		case <-ctx.Done():
			return
		}
	}
}
