// cmd/alert-runner/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"jobalert-workers/internal/common/config"
	"jobalert-workers/internal/common/database"
	"jobalert-workers/internal/common/logger"
	"jobalert-workers/internal/common/observability"
	"jobalert-workers/internal/dispatch"
	"jobalert-workers/internal/ledger"
	"jobalert-workers/internal/models"
	"jobalert-workers/internal/orchestrator"
	"jobalert-workers/internal/rategate"
	"jobalert-workers/internal/session"
	"jobalert-workers/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting alert runner...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New("alert-runner")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rds *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rds, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rds.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rds.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init APNs transport ---
	pushClient, err := dispatch.NewAPNsClient(cfg.Push.APNs)
	if err != nil {
		zapLog.Fatal("apns client initialization failed", zap.Error(err))
	}
	zapLog.Info("APNs client initialized",
		zap.String("topic", cfg.Push.APNs.Topic),
		zap.Bool("production", cfg.Push.APNs.Production),
	)

	// --- Assemble the pipeline ---
	deviceStore := store.NewDeviceStore(pg.DB, log)
	jobStore := store.NewJobStore(pg.DB, log)
	dedupLedger := ledger.New(pg.DB, log)
	pairLock := ledger.NewPairLock(rds.Client, time.Duration(cfg.Pipeline.LockLease)*time.Millisecond)
	sessionStore := session.NewStore(pg.DB, log)

	gate := rategate.New(
		rategate.NewRedisCounterStore(rds.Client),
		rategate.Limits{
			MaxPerHour:      cfg.Pipeline.MaxPerHour,
			MaxPerDay:       cfg.Pipeline.MaxPerDay,
			QuietHoursStart: cfg.Pipeline.QuietHoursStart,
			QuietHoursEnd:   cfg.Pipeline.QuietHoursEnd,
		},
		log,
	)

	dispatcher := dispatch.New(
		pushClient,
		dispatch.Config{
			Topic:       cfg.Push.APNs.Topic,
			Timeout:     time.Duration(cfg.Push.APNs.Timeout) * time.Millisecond,
			SendsPerSec: cfg.Push.APNs.SendsPerSec,
		},
		deviceStore,
		log,
	)

	orch := orchestrator.New(
		deviceStore, jobStore, dedupLedger, pairLock, sessionStore, gate, dispatcher,
		orchestrator.Config{
			RecencyWindow: time.Duration(cfg.Pipeline.RecencyWindow) * time.Hour,
			DeviceTimeout: time.Duration(cfg.Pipeline.DeviceTimeout) * time.Millisecond,
			DefaultLimit:  cfg.Pipeline.JobLimit,
			DefaultSource: cfg.Pipeline.SourceFilter,
		},
		log,
	)

	// One pass at a time: a scheduled tick overlapping a manual run (or a
	// slow previous tick) is dropped, not queued.
	var passMu sync.Mutex
	runPass := func(ctx context.Context, opts orchestrator.Options, trigger string) (models.RunStats, error) {
		start := time.Now()
		stats, err := orch.RunPass(ctx, opts)
		status := "success"
		if err != nil {
			status = "error"
			log.Error("pass failed", map[string]interface{}{
				"trigger": trigger,
				"error":   err.Error(),
			})
		}
		obs.RecordPass(ctx, status)
		obs.RecordPassDuration(ctx, time.Since(start), status)
		log.Info("pass finished", map[string]interface{}{
			"trigger":           trigger,
			"status":            status,
			"notificationsSent": stats.NotificationsSent,
		})
		return stats, err
	}

	// --- Scheduler ---
	scheduler := cron.New()
	if cfg.Scheduler.Enabled {
		_, err := scheduler.AddFunc(cfg.Scheduler.Interval, func() {
			if !passMu.TryLock() {
				log.Warn("pass already running, skipping scheduled tick", nil)
				return
			}
			defer passMu.Unlock()
			runPass(context.Background(), orchestrator.Options{}, "schedule")
		})
		if err != nil {
			zapLog.Fatal("invalid scheduler interval", zap.Error(err))
		}
		scheduler.Start()
		zapLog.Info("Scheduler started", zap.String("interval", cfg.Scheduler.Interval))
	}

	// --- Admin/metrics HTTP server ---
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"state":  string(orch.State()),
		})
	})
	mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		opts := orchestrator.Options{
			Source: r.URL.Query().Get("source"),
			DryRun: r.URL.Query().Get("dry_run") == "true",
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			opts.Limit = limit
		}

		if !passMu.TryLock() {
			http.Error(w, "a pass is already running", http.StatusConflict)
			return
		}
		stats, err := runPass(r.Context(), opts, "http")
		passMu.Unlock()
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	server := &http.Server{
		Addr:    cfg.App.ListenAddr,
		Handler: mux,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.App.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	zapLog.Info("Alert runner is ready")

	// --- Graceful shutdown ---
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLog.Info("Shutdown signal received, stopping...")

	if cfg.Scheduler.Enabled {
		schedCtx := scheduler.Stop()
		<-schedCtx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}

	// Wait for an in-flight pass before closing the stores.
	passMu.Lock()
	passMu.Unlock()

	zapLog.Info("Alert runner stopped")
}
