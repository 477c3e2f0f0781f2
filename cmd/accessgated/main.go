package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/enrollhq/accessgate/pkg/api"
	"github.com/enrollhq/accessgate/pkg/audit"
	"github.com/enrollhq/accessgate/pkg/config"
	"github.com/enrollhq/accessgate/pkg/crmclient"
	"github.com/enrollhq/accessgate/pkg/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	var redisClient *redis.Client
	if cfg.Cache.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisURL,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		defer redisClient.Close()
		log.WithField("addr", cfg.Cache.RedisURL).Info("shared directory cache enabled")
	}

	var auditDB *sql.DB
	recorder := audit.Recorder(audit.Nop{})
	if cfg.Audit.DatabaseURL != "" {
		auditDB, err = sql.Open("postgres", cfg.Audit.DatabaseURL)
		if err != nil {
			log.WithError(err).Error("failed to open audit database")
			os.Exit(1)
		}
		defer auditDB.Close()

		store, err := audit.NewStore(auditDB, log)
		if err != nil {
			log.WithError(err).Error("failed to initialize audit store")
			os.Exit(1)
		}
		recorder = store
		log.Info("audit trail enabled")
	}

	crmOpts := []crmclient.Option{
		crmclient.WithHTTPClient(&http.Client{Timeout: cfg.CRM.Timeout}),
	}
	if metrics != nil {
		crmOpts = append(crmOpts, crmclient.WithMetrics(metrics))
	}
	if redisClient != nil {
		crmOpts = append(crmOpts, crmclient.WithRedis(redisClient, cfg.Cache.TTL))
	}
	crm, err := crmclient.New(cfg.CRM.BaseURL, crmOpts...)
	if err != nil {
		log.WithError(err).Error("failed to create CRM client")
		os.Exit(1)
	}

	serverOpts := []api.ServerOption{
		api.WithAuditRecorder(recorder),
		api.WithHealthChecker(observability.NewHealthChecker(auditDB, redisClient)),
	}
	if metrics != nil {
		serverOpts = append(serverOpts, api.WithMetrics(metrics, registry))
	}
	server := api.NewServer(crm, log, serverOpts...)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithField("addr", httpServer.Addr).Info("access gateway listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
