package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/inventory-ledger/internal/adapter/alerting"
	"github.com/rl1809/inventory-ledger/internal/adapter/handler"
	"github.com/rl1809/inventory-ledger/internal/adapter/handler/inventoryrpc"
	"github.com/rl1809/inventory-ledger/internal/adapter/storage"
	"github.com/rl1809/inventory-ledger/internal/config"
	"github.com/rl1809/inventory-ledger/internal/core/service"
	"github.com/rl1809/inventory-ledger/internal/logger"
	"github.com/rl1809/inventory-ledger/internal/port"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{Service: cfg.Service, Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	security, securityCloser := logger.NewSecurity(cfg.Service, logger.SecurityOptions{
		Path:       cfg.Log.SecurityLogPath,
		MaxSizeMB:  cfg.Log.SecurityMaxSizeMB,
		MaxBackups: cfg.Log.SecurityMaxBackups,
		MaxAgeDays: cfg.Log.SecurityMaxAgeDays,
	})
	defer securityCloser.Close()

	// Initialize store
	store, err := storage.Open(ctx, storage.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	log.Info().Str("driver", string(store.Dialect())).Msg("connected to database")

	if cfg.Database.Migrate {
		if err := store.RunMigrations(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info().Msg("database migrations applied")
	}

	// Alerting channel
	alerts, closeAlerts, err := buildAlerts(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAlerts()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(reg)

	// Services
	ledger := service.NewLedger(store,
		service.WithAlerts(alerts),
		service.WithMetrics(metrics),
		service.WithLogger(log),
		service.WithTxTimeout(cfg.Database.TxTimeout),
		service.WithAlertTimeout(cfg.Alerts.PublishTimeout),
	)
	restock := service.NewRestockQueue(ledger, alerts, metrics, log, service.RestockOptions{
		QueueSize:   cfg.Restock.QueueSize,
		MaxAttempts: cfg.Restock.MaxAttempts,
		Backoff:     cfg.Restock.Backoff,
		MaxBackoff:  cfg.Restock.MaxBackoff,
		JobTimeout:  cfg.Database.TxTimeout,
	})
	checkout := service.NewCheckoutService(ledger, restock, security, log)
	cart := service.NewCartService(ledger)
	reports := service.NewReportService(ledger, cfg.Inventory.LowStockThreshold)

	g, gctx := errgroup.WithContext(ctx)

	// Restock workers drain the queue after the servers stop accepting work.
	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		restock.Run(workerCtx, cfg.Restock.Workers)
	}()

	// HTTP server
	httpHandler := handler.NewHTTPHandler(ledger, checkout, cart, reports)
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httpHandler.Routes(log, reg, cfg.HTTP.RequestTimeout),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// gRPC server
	var grpcServer *grpc.Server
	if cfg.GRPC.Enabled {
		grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
		inventoryrpc.RegisterInventoryLedgerServer(grpcServer, handler.NewGRPCHandler(ledger, reports, log))

		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.GRPC.Addr, err)
		}
		g.Go(func() error {
			log.Info().Str("addr", cfg.GRPC.Addr).Msg("gRPC server listening")
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP shutdown")
		}
		log.Info().Msg("HTTP server stopped")

		if grpcServer != nil {
			grpcServer.GracefulStop()
			log.Info().Msg("gRPC server stopped")
		}

		restock.Close()
		select {
		case <-workersDone:
		case <-shutdownCtx.Done():
			stopWorkers()
			<-workersDone
		}
		log.Info().Int("pending", restock.Len()).Msg("restock workers stopped")
		return nil
	})

	return g.Wait()
}

// buildAlerts assembles the enabled sinks. Remote sinks sit behind a circuit
// breaker; the log sink is always on.
func buildAlerts(ctx context.Context, cfg config.Config, log zerolog.Logger) (port.AlertPublisher, func(), error) {
	breaker := alerting.BreakerSettings{
		FailureThreshold: cfg.Alerts.FailureThreshold,
		OpenTimeout:      cfg.Alerts.OpenTimeout,
	}
	sinks := []port.AlertPublisher{alerting.NewLogSink(log)}
	var closers []func()

	if cfg.SinkEnabled("redis") {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")

		sink := alerting.NewRedisSink(rdb, cfg.Alerts.Stream, cfg.Alerts.StreamMaxLen, cfg.Alerts.DedupeTTL)
		sinks = append(sinks, alerting.NewBreaker("redis-alerts", sink, breaker, log))
		closers = append(closers, func() { rdb.Close() })
	}

	if cfg.SinkEnabled("kafka") {
		sink := alerting.NewKafkaSink(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		sinks = append(sinks, alerting.NewBreaker("kafka-alerts", sink, breaker, log))
		closers = append(closers, func() { sink.Close() })
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka alerts enabled")
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return alerting.NewFanout(sinks...), closeAll, nil
}
