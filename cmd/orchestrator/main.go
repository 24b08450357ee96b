// cmd/orchestrator/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"conversation-orchestrator/internal/app"
	"conversation-orchestrator/internal/common/camunda"
	"conversation-orchestrator/internal/common/config"
	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/common/observability"
	"conversation-orchestrator/internal/common/validation"
	"conversation-orchestrator/pkg/registry"
)

const serviceName = "conversation-orchestrator"

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting orchestrator...", zap.String("version", cfg.App.Version))

	obs := observability.New(serviceName)
	defer obs.Shutdown()
	if cfg.Tracing.Enabled {
		if err := obs.EnableTracing(serviceName, cfg.Tracing.JaegerEndpoint, cfg.Tracing.SampleRatio); err != nil {
			zapLog.Warn("tracing disabled", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Collaborators ---
	infra, err := app.Connect(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("infrastructure init failed", zap.Error(err))
	}
	defer infra.Close()

	orchestrator, err := app.Build(cfg, infra, obs, log)
	if err != nil {
		zapLog.Fatal("orchestrator wiring failed", zap.Error(err))
	}
	defer orchestrator.Close()
	zapLog.Info("Conductor ready", zap.Int("specialists", len(orchestrator.Registry.Names())))

	// --- Activity catalog ---
	catalog, err := registry.Load(cfg.Camunda.ActivityRegistry)
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.Error(err))
	}
	if err := catalog.Check(); err != nil {
		zapLog.Fatal("activity registry invalid", zap.Error(err))
	}
	validator := validation.NewValidator()
	if err := catalog.RegisterSchemas(validator); err != nil {
		zapLog.Fatal("activity schemas invalid", zap.Error(err))
	}

	// --- Zeebe workers ---
	var zeebe *camunda.Client
	var registrar *camunda.Registrar
	if cfg.Camunda.Enabled {
		err = app.RetryWithBackoff(ctx, func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Camunda)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		registrar = camunda.NewRegistrar(zeebe.GetClient(), validator, log)
		orchestrator.RegisterWorkers(registrar)
		zapLog.Info("Workers registered", zap.Strings("taskTypes", registrar.TaskTypes()))
	} else {
		zapLog.Warn("camunda disabled, no job workers opened")
	}

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		ready := true
		record := func(name string, err error) {
			if err != nil {
				checks[name] = err.Error()
				ready = false
				return
			}
			checks[name] = "ok"
		}
		record("postgres", infra.Postgres.Ping(checkCtx))
		record("redis", infra.Redis.Ping(checkCtx))
		if zeebe != nil {
			record("zeebe", zeebe.HealthCheck(checkCtx))
		}

		if !ready {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", checks)
			return
		}
		writeStatus(w, http.StatusOK, "ready", checks)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if registrar != nil {
		registrar.Close()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Orchestrator stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, status string, checks map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	body := map[string]interface{}{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if checks != nil {
		body["checks"] = checks
	}
	json.NewEncoder(w).Encode(body)
}
