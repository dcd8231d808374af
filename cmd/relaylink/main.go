package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmelnik/relaylink/internal/auth"
	"github.com/dmelnik/relaylink/internal/config"
	"github.com/dmelnik/relaylink/internal/connection"
	"github.com/dmelnik/relaylink/internal/database"
	"github.com/dmelnik/relaylink/internal/metrics"
	"github.com/dmelnik/relaylink/internal/netcheck"
	"github.com/dmelnik/relaylink/internal/recorder"
	"github.com/dmelnik/relaylink/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/client.local.yaml", "path to config file")
	flag.Parse()

	// Bootstrap logger; replaced once the configured level is known.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting relaylink",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"server_host", cfg.Server.Host,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Credential source
	tokenSource, err := auth.FromConfig(cfg.Auth)
	if err != nil {
		logger.Error("failed to configure credential source", "error", err)
		os.Exit(1)
	}

	// Reachability checker
	checker := netcheck.FromProbeURL(cfg.Reachability.ProbeURL, cfg.Reachability.Timeout)

	// Metrics
	var metricSet *metrics.Set
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		metricSet = metrics.New(registry)
	}

	// Connection manager
	mgr := connection.NewManager(
		connection.NewManagerConfig(cfg.Server.Host, cfg.Connection),
		checker,
		logger,
		connection.WithMetrics(metricSet),
	)

	// Exhausted retries are terminal for the process; the supervisor
	// restarts us with a fresh credential fetch.
	mgr.Register(connection.EventError, func(ev connection.Event) {
		if errors.Is(ev.Err, connection.ErrRetriesExhausted) {
			logger.Error("reconnect attempts exhausted, shutting down")
			cancel()
		}
	})

	// Optional frame recorder
	var (
		pool *pgxpool.Pool
		rec  *recorder.Recorder
	)
	if cfg.Recorder.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Recorder.Database.Host,
			"port", cfg.Recorder.Database.Port,
			"database", cfg.Recorder.Database.Name,
		)

		pool, err = database.Connect(ctx, cfg.Recorder.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		rec = recorder.New(recorder.FromConfig(cfg.Recorder), pool, logger)
		if err := rec.Start(ctx); err != nil {
			logger.Error("failed to start frame recorder", "error", err)
			os.Exit(1)
		}
		rec.Attach(mgr)
	}

	// Health and metrics server
	healthPort := 8080
	if cfg.Metrics.Port > 0 {
		healthPort = cfg.Metrics.Port
	}

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", healthPort),
		Handler: createHandler(cfg, registry, mgr, rec, pool),
	}

	go func() {
		logger.Info("starting health server", "port", healthPort)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Connect
	token, err := tokenSource.Token(ctx)
	if err != nil {
		logger.Error("failed to obtain credential", "error", err)
		os.Exit(1)
	}
	mgr.Connect(ctx, token)

	logger.Info("relaylink running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", healthPort),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	mgr.Disconnect()

	if rec != nil {
		rec.Detach(mgr)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		rec.Stop(shutdownCtx)
		shutdownCancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("relaylink stopped")
}

// createHandler builds the health and metrics HTTP handler.
func createHandler(
	cfg *config.ClientConfig,
	registry *prometheus.Registry,
	mgr *connection.Manager,
	rec *recorder.Recorder,
	pool *pgxpool.Pool,
) http.Handler {
	mux := http.NewServeMux()

	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		stats := mgr.Stats()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		health.Components["connection"] = map[string]interface{}{
			"state":              stats.State.String(),
			"queue_depth":        stats.QueueDepth,
			"queue_dropped":      stats.QueueDropped,
			"reconnect_attempts": stats.ReconnectAttempts,
		}
		if stats.State != connection.StateOpen {
			health.Status = "degraded"
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}

		if rec != nil {
			recStats := rec.Stats()
			health.Components["recorder"] = map[string]interface{}{
				"inserts": recStats.Inserts,
				"dropped": recStats.Dropped,
				"errors":  recStats.Errors,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
