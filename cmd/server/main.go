package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"refiling/internal/artifact"
	"refiling/internal/filing"
	"refiling/internal/filing/document"
	filinghandler "refiling/internal/filing/handler"
	"refiling/internal/filing/ledger"
	"refiling/internal/filing/metrics"
	"refiling/internal/filing/models"
	"refiling/internal/filing/poller"
	"refiling/internal/filing/transport"
	httpapi "refiling/internal/http"
	"refiling/internal/jwttoken"
	"refiling/internal/platform/config"
	"refiling/internal/platform/httpserver"
	"refiling/internal/platform/logger"
	"refiling/internal/platform/postgres"
	platformredis "refiling/internal/platform/redis"
)

// main wires dependencies and owns the process lifecycle. Business rules live
// in internal packages; nothing here makes a filing decision.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		ledgerStore   ledger.Store   = ledger.NewInMemory()
		artifactStore artifact.Store = artifact.NewInMemory()
	)
	if cfg.PostgresURL != "" {
		db, err := postgres.Open(cfg.PostgresURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ledgerStore = ledger.NewPostgres(db)
		artifactStore = artifact.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		log.Warn("no postgres configured, using in-memory stores")
	}

	// Sweep lock: Redis when configured, per-process otherwise.
	var locker poller.Locker = poller.NoopLocker{}
	if cfg.Redis.URL != "" {
		redisClient, err := platformredis.New(cfg.Redis)
		if err != nil {
			log.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		locker = poller.NewRedisLocker(redisClient)
		log.Info("using redis sweep lock")
	}

	var client transport.Client
	switch cfg.TransportMode {
	case config.TransportLive:
		client, err = transport.NewSFTP(cfg)
		if err != nil {
			log.Error("sftp transport setup failed", "error", err)
			os.Exit(1)
		}
	default:
		client = transport.NewMock()
	}
	log.Info("transport selected", "mode", string(cfg.TransportMode), "environment", string(cfg.Environment))

	builder, err := document.NewBuilder(document.Context{
		FilerTaxID:      cfg.FilerTaxID,
		TransmitterCode: cfg.TransmitterCode,
		OrgName:         cfg.OrgName,
		ContactName:     cfg.ContactName,
		ContactPhone:    cfg.ContactPhone,
	})
	if err != nil {
		log.Error("document builder setup failed", "error", err)
		os.Exit(1)
	}

	filingMetrics := metrics.New()
	transactions := filing.NewInMemoryTransactionSource()

	service, err := filing.New(
		ledgerStore,
		artifactStore,
		client,
		builder,
		transactions,
		models.Environment(cfg.Environment),
		cfg.OrgName,
		filing.WithLogger(log),
		filing.WithMetrics(filingMetrics),
		filing.WithRetryCeiling(cfg.RetryCeiling),
	)
	if err != nil {
		log.Error("filing service setup failed", "error", err)
		os.Exit(1)
	}

	sweeper := poller.NewSweeper(service, locker, log,
		poller.WithSweepObserver(filingMetrics.SweepDuration.Observe))
	go func() {
		if err := sweeper.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("poll sweeper stopped", "error", err)
		}
	}()

	tokenService := jwttoken.NewService(cfg.JWTSigningKey, "refiling", "refiling-operators")

	router := httpapi.NewRouter(httpapi.RouterDeps{
		Filing:         filinghandler.New(service, log),
		TokenValidator: tokenService,
		AdminToken:     cfg.AdminToken,
		Logger:         log,
	})
	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("server starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
