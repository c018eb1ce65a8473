// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"swipestats-workers/internal/common/aws"
	"swipestats-workers/internal/common/camunda"
	"swipestats-workers/internal/common/config"
	"swipestats-workers/internal/common/database"
	apperrors "swipestats-workers/internal/common/errors"
	"swipestats-workers/internal/common/logger"
	"swipestats-workers/internal/common/metrics"
	"swipestats-workers/internal/common/observability"
	"swipestats-workers/internal/ingest/pipeline"
	"swipestats-workers/internal/repository"

	lp "swipestats-workers/internal/workers/data-access/load-profile"
	ss "swipestats-workers/internal/workers/data-access/search-stats"
	as "swipestats-workers/internal/workers/ingestion/aggregate-stats"
	ac "swipestats-workers/internal/workers/ingestion/apply-consent"
	iu "swipestats-workers/internal/workers/ingestion/ingest-upload"
	mp "swipestats-workers/internal/workers/ingestion/merge-profiles"
	ne "swipestats-workers/internal/workers/ingestion/normalize-export"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	ctx := context.Background()

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		RetryConfig:            camunda.DefaultRetryConfig,
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Storage ---
	conns, err := database.Connect(ctx, cfg, database.DefaultRetryPolicy, zapLog)
	if err != nil {
		zapLog.Fatal("storage connection failed", zap.Error(err))
	}
	defer conns.Close()

	store := repository.NewPostgresProfileStore(conns.Postgres.DB, cfg.Pipeline.ProfileTable)
	if err := store.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("profile schema setup failed", zap.Error(err))
	}

	locker := repository.NewRedisProfileLocker(
		conns.Redis.Client,
		config.GetDuration(cfg.Pipeline.LockTTL),
		config.GetDuration(cfg.Pipeline.LockWait),
		config.GetDuration(cfg.Pipeline.LockRetry),
	)

	opts := []pipeline.Option{
		pipeline.WithRecorder(pipeline.Recorders{metrics.PipelineRecorder{}, obs}),
	}

	if conns.Elasticsearch != nil {
		indexer := repository.NewElasticsearchStatsIndexer(conns.Elasticsearch.Client, cfg.Pipeline.StatsIndex)
		if err := indexer.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("stats index setup failed", zap.Error(err), zap.String("index", indexer.Index()))
		}
		opts = append(opts, pipeline.WithIndexer(indexer))
		zapLog.Info("Stats indexing enabled", zap.String("index", indexer.Index()))
	}

	// --- SNS ingest events (optional) ---
	if cfg.AWS.EventsTopicARN != "" {
		publisher, err := aws.NewProfileEventPublisher(ctx, cfg.AWS.Region, cfg.AWS.EventsTopicARN)
		if err != nil {
			zapLog.Fatal("sns publisher setup failed", zap.Error(err))
		}
		opts = append(opts, pipeline.WithNotifier(publisher))
		zapLog.Info("Ingest events enabled", zap.String("topic", publisher.TopicARN()))
	}

	svc := pipeline.NewService(store, locker, log, opts...)

	// --- Workers ---
	timeout := func(taskType string) time.Duration {
		return config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout)
	}

	type registration struct {
		taskType string
		handler  camunda.JobHandler
	}
	handlers := []registration{
		{iu.TaskType, iu.NewHandler(&iu.Config{Timeout: timeout(iu.TaskType)}, svc, log)},
		{ne.TaskType, ne.NewHandler(&ne.Config{Timeout: timeout(ne.TaskType)}, log)},
		{ac.TaskType, ac.NewHandler(&ac.Config{Timeout: timeout(ac.TaskType)}, log)},
		{mp.TaskType, mp.NewHandler(&mp.Config{Timeout: timeout(mp.TaskType)}, log)},
		{as.TaskType, as.NewHandler(&as.Config{Timeout: timeout(as.TaskType)}, log)},
		{lp.TaskType, lp.NewHandler(&lp.Config{Timeout: timeout(lp.TaskType)}, store, log)},
	}
	if conns.Elasticsearch != nil {
		handlers = append(handlers, registration{
			ss.TaskType,
			ss.NewHandler(&ss.Config{Timeout: timeout(ss.TaskType), Index: cfg.Pipeline.StatsIndex}, conns.Elasticsearch.Client, log),
		})
	}

	var workers []*camunda.CamundaWorker
	for _, h := range handlers {
		w := camunda.NewWorker(zeebe.GetClient(), h.taskType, config.GetWorkerConfig(cfg, h.taskType), h.handler, zapLog)
		if w != nil {
			workers = append(workers, w)
		}
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Processes ---
	if cfg.Camunda.ProcessDir != "" {
		defs, err := camunda.LoadProcessDefinitions(cfg.Camunda.ProcessDir)
		if err != nil {
			zapLog.Fatal("process definitions unreadable", zap.Error(err))
		}
		served := make([]string, 0, len(workers))
		for _, w := range workers {
			served = append(served, w.TaskType())
		}
		if missing := camunda.UnhandledTaskTypes(defs, served); len(missing) > 0 {
			zapLog.Warn("Deployed processes use task types without a running worker", zap.Strings("taskTypes", missing))
		}
		if err := zeebe.DeployProcesses(ctx, defs); err != nil {
			zapLog.Fatal("process deployment failed", zap.Error(err))
		}
		zapLog.Info("Processes deployed", zap.Int("count", len(defs)))
	}

	// --- Health & Metrics Server ---
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := conns.Ready(checkCtx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, apperrors.FromError(err).Message)
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	http.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.App.HTTPPort)}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing metrics", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
