// Command therascoped is the therascope HTTP service. It serves session
// evaluation, block commits and report reads, plus a health check.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/therascope/therascope/internal/api"
	"github.com/therascope/therascope/internal/platform"
	"github.com/therascope/therascope/internal/records"
	"github.com/therascope/therascope/internal/reporting"
	"github.com/therascope/therascope/pkg/config"
	"github.com/therascope/therascope/pkg/scoring"
)

type serverConfig struct {
	Port             string
	DatabaseURL      string
	ConfigPath       string
	StorageBackend   string
	StorageBucket    string
	AWSRegion        string
	S3Endpoint       string
	LocalStoragePath string
	APIKey           string
}

func loadConfig() serverConfig {
	return serverConfig{
		Port:             envOrDefault("PORT", "8080"),
		DatabaseURL:      envOrDefault("DATABASE_URL", "postgres://localhost:5432/therascope?sslmode=disable"),
		ConfigPath:       os.Getenv("THERASCOPE_CONFIG"),
		StorageBackend:   envOrDefault("STORAGE_BACKEND", "local"),
		StorageBucket:    os.Getenv("STORAGE_BUCKET"),
		AWSRegion:        os.Getenv("AWS_REGION"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		LocalStoragePath: envOrDefault("LOCAL_STORAGE_PATH", "/tmp/therascope-data"),
		APIKey:           os.Getenv("API_KEY"),
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using process environment")
	}
	if err := run(loadConfig(), logger); err != nil {
		logger.Error("therascoped failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg serverConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCfg := config.DefaultConfig()
	if cfg.ConfigPath != "" {
		loaded, err := config.Load(cfg.ConfigPath)
		if err != nil {
			return err
		}
		appCfg = loaded
	}
	locale, err := scoring.ParseLocale(appCfg.Engine.Locale)
	if err != nil {
		return err
	}

	db, err := records.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := platform.AutoMigrate(db.DB); err != nil {
		return err
	}

	storage, err := reporting.NewStorage(ctx, reporting.StorageOptions{
		Backend:   cfg.StorageBackend,
		LocalPath: cfg.LocalStoragePath,
		Bucket:    cfg.StorageBucket,
		S3: reporting.S3Config{
			Bucket:    cfg.StorageBucket,
			Region:    cfg.AWSRegion,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		},
	})
	if err != nil {
		return err
	}

	svc := reporting.NewService(records.NewStore(db), storage,
		reporting.WithResolver(appCfg.Taxonomy),
		reporting.WithLocale(locale),
		reporting.WithLogger(logger),
	)

	mux := http.NewServeMux()
	api.NewHandler(svc, nil, logger).RegisterRoutes(mux)
	mux.HandleFunc("GET /healthz", healthHandler(db))

	var handler http.Handler = mux
	handler = api.APIKeyAuth(cfg.APIKey)(handler)
	handler = api.CORS(handler)
	handler = api.RequestLog(logger)(handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting therascoped", "port", cfg.Port, "storage", cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
