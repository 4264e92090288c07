// cmd/query-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"icra-sorgu/internal/common/config"
	"icra-sorgu/internal/common/database"
	"icra-sorgu/internal/common/logger"
	"icra-sorgu/internal/common/observability"
	"icra-sorgu/internal/httpapi"
	"icra-sorgu/internal/query"
	"icra-sorgu/internal/registry"
	"icra-sorgu/internal/session"
	"icra-sorgu/internal/store"
	memorystore "icra-sorgu/internal/store/memory"
	postgresstore "icra-sorgu/internal/store/postgres"
	redisstore "icra-sorgu/internal/store/redis"
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
			delay *= 2
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

	zapLog.Info("Starting query service...",
		zap.String("environment", cfg.App.Environment),
		zap.String("storeBackend", cfg.Store.Backend),
	)

	obs := observability.New("query-service")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Result store backend ---
	var resultStore store.ResultStore
	switch cfg.Store.Backend {
	case "redis":
		var redisClient *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return redisClient.Ping(pingCtx)
		}, 5, 2*time.Second, zapLog, "Redis initialization")
		if err != nil {
			zapLog.Fatal("redis init failed", zap.Error(err))
		}
		resultStore = redisstore.NewStore(redisClient.GetClient(), time.Duration(cfg.Store.TTL)*time.Second)
	case "postgres":
		var pgClient *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pgClient, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return pgClient.Ping(pingCtx)
		}, 5, 2*time.Second, zapLog, "Postgres initialization")
		if err != nil {
			zapLog.Fatal("postgres init failed", zap.Error(err))
		}
		resultStore = postgresstore.NewStore(pgClient.GetDB())
	default:
		resultStore = memorystore.NewStore()
	}
	defer resultStore.Close()

	// --- Registry client and orchestration ---
	registryClient := registry.NewHTTPClient(cfg.Registry.BaseURL, cfg.Registry.RequestTimeout())

	sessions := session.NewManager(registryClient, log)
	controller := session.NewController(sessions, os.Getenv("REGISTRY_CREDENTIAL"), log)
	dispatcher := query.NewDispatcher(registryClient, sessions, cfg.Registry.DisabledQueries, log)
	poller := query.NewPoller(registryClient, resultStore, log)

	pollPolicy := query.PollPolicy{
		MaxAttempts: cfg.Polling.MaxAttempts,
		Interval:    cfg.Polling.IntervalDuration(),
	}

	// Pick up a session that survived a restart before serving.
	recoverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if _, err := sessions.Recover(recoverCtx); err != nil {
		zapLog.Warn("session recovery failed, starting disconnected", zap.Error(err))
	}
	cancel()

	apiServer := httpapi.NewServer(sessions, controller, dispatcher, poller, resultStore, pollPolicy, log)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      apiServer.Router(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	// Metrics + pprof on the side channel
	metricsServer := &http.Server{
		Addr: cfg.Server.MetricsAddress,
	}
	http.Handle("/metrics", promhttp.Handler())

	go func() {
		zapLog.Info("metrics server listening", zap.String("address", cfg.Server.MetricsAddress))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("metrics server error", zap.Error(err))
		}
	}()

	go func() {
		zapLog.Info("api server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("api server error", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zapLog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("api server shutdown error", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("metrics server shutdown error", zap.Error(err))
	}

	// Leave the remote session closed rather than leaked.
	if err := sessions.Logout(shutdownCtx); err != nil {
		zapLog.Warn("logout on shutdown failed", zap.Error(err))
	}

	zapLog.Info("shutdown complete")
}
