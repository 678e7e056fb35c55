package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"submission-harvester/internal/api"
	"submission-harvester/internal/audit"
	"submission-harvester/internal/config"
	"submission-harvester/internal/credentials"
	"submission-harvester/internal/flow"
	"submission-harvester/internal/graphstore"
	"submission-harvester/internal/harvest"
	"submission-harvester/internal/ratelimit"
	"submission-harvester/internal/sparql"
	"submission-harvester/internal/vocab"
)

func main() {
	cfg := config.Load()
	logger, closeLog := cfg.SetupLogger()
	defer func() { _ = closeLog() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	client := sparql.New(sparql.Config{
		QueryEndpoint:  cfg.SparqlQueryEndpoint,
		UpdateEndpoint: cfg.SparqlUpdateEndpoint,
		Timeout:        cfg.SparqlTimeout,
	}, logger)
	store := graphstore.New(client, logger)
	creds := credentials.New(client, logger)
	coordinator := harvest.New(store, creds, logger)

	var auditLog *audit.Log
	if cfg.AuditDSN != "" {
		var err error
		auditLog, err = audit.New(ctx, cfg.AuditDSN, logger)
		if err != nil {
			logger.Error("could not open audit store", "err", err)
			os.Exit(1)
		}
		defer auditLog.Close()
		if err := auditLog.Migrate(ctx); err != nil {
			logger.Error("audit migrations failed", "err", err)
			os.Exit(1)
		}
	}

	scanner := &flow.HTMLScanner{ShareFolder: cfg.ShareFolder}
	var auditSink flow.AuditLog
	if auditLog != nil {
		auditSink = auditLog
	}
	engine := flow.New(store, creds, coordinator, scanner, auditSink, logger)

	dispatcher := flow.NewDispatcher(store, logger)
	dispatcher.HandleDownloadEvents(vocab.OperationRegister, engine.OnRegisterEvent)
	dispatcher.HandleDownloadEvents(vocab.OperationImport, engine.OnImportEvent)
	dispatcher.HandleTaskReady(vocab.OperationImport, engine.OnImportTaskReady)

	gate := flow.NewGate(cfg.GateQueueDepth, cfg.GateMaxWait)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	limiter := ratelimit.NewVendorBucket(rdb, cfg.RateLimitCapacity, cfg.RateLimitRefill, cfg.RateLimitTTL)

	server := api.New(cfg, store, engine, dispatcher, gate, limiter, logger)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	logger.Info("harvester listening", "port", cfg.HTTPPort)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}
