package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Maidang1/lumina-store/pkg/gallerystore/api"
	"github.com/Maidang1/lumina-store/pkg/gallerystore/config"
)

// ServerConfig is the process-level configuration, read from the environment.
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	Backend string `env:"GALLERY_BACKEND" env-default:"github"`
	Owner   string `env:"GALLERY_OWNER"`
	Repo    string `env:"GALLERY_REPO"`
	Branch  string `env:"GALLERY_BRANCH" env-default:"main"`
	Token   string `env:"GALLERY_TOKEN"`
	BaseURL string `env:"GALLERY_BASE_URL"`

	CommitterName  string `env:"GALLERY_COMMITTER_NAME"`
	CommitterEmail string `env:"GALLERY_COMMITTER_EMAIL"`

	MaxRetries      int `env:"GALLERY_MAX_RETRIES" env-default:"4"`
	RetryBaseMs     int `env:"GALLERY_RETRY_BASE_MS" env-default:"500"`
	WriteIntervalMs int `env:"GALLERY_WRITE_INTERVAL_MS" env-default:"1000"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		logger.Error("failed to read configuration", "error", err)
		os.Exit(1)
	}

	storeCfg, err := config.Load(
		config.WithBackend(cfg.Backend),
		config.WithRepository(cfg.Owner, cfg.Repo, cfg.Branch),
		config.WithToken(cfg.Token),
		config.WithCommitter(cfg.CommitterName, cfg.CommitterEmail),
		config.WithWritePacing(
			cfg.MaxRetries,
			time.Duration(cfg.RetryBaseMs)*time.Millisecond,
			time.Duration(cfg.WriteIntervalMs)*time.Millisecond,
		),
		func(c *config.StoreConfig) error {
			c.BaseURL = cfg.BaseURL
			return nil
		},
	)
	if err != nil {
		logger.Error("invalid store configuration", "error", err)
		os.Exit(1)
	}

	store, err := storeCfg.BuildStore()
	if err != nil {
		logger.Error("failed to build store", "error", err)
		os.Exit(1)
	}

	imagesHandler := api.NewImagesHandler(store, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Mount("/api/images", imagesHandler.Routes())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("server starting",
			"port", cfg.Port,
			"backend", storeCfg.Backend,
			"environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
