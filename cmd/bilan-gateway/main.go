package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mocksi/bilan-sub001/internal/analytics"
	"github.com/Mocksi/bilan-sub001/internal/config"
	"github.com/Mocksi/bilan-sub001/internal/consumer"
	"github.com/Mocksi/bilan-sub001/internal/correlate"
	"github.com/Mocksi/bilan-sub001/internal/db"
	"github.com/Mocksi/bilan-sub001/internal/httpserver"
	"github.com/Mocksi/bilan-sub001/internal/metrics"
	"github.com/Mocksi/bilan-sub001/internal/migrate"
	"github.com/Mocksi/bilan-sub001/internal/obs"
	"github.com/Mocksi/bilan-sub001/internal/queue"
	"github.com/Mocksi/bilan-sub001/internal/store"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.Printf("config: %s", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.NewGorm(ctx, cfg.SQLitePath, cfg.PostgresURL, db.Options{})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer sqlDB.Close()

	migCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := migrate.AutoMigrate(migCtx, gdb); err != nil {
		cancel()
		log.Fatalf("db migrate: %v", err)
	}
	cancel()

	// One-time backfill: canonicalize turn ids on legacy vote rows.
	backfillCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	if n, err := correlate.MigrateVoteTurnIDs(backfillCtx, gdb, 200); err != nil {
		log.Printf("vote turn id backfill: %v", err)
	} else if n > 0 {
		log.Printf("vote turn id backfill: %d rows migrated", n)
	}
	cancel()

	stats := obs.New()

	var recorder *metrics.RedisRecorder
	if cfg.EnableMetrics {
		rdb, err := metrics.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping: %v", err)
		}
		cancel()
		defer rdb.Close()
		recorder = metrics.NewRedisRecorder(rdb)
	}

	engine := analytics.NewEngine(gdb,
		analytics.WithStats(stats),
		analytics.WithCacheTTL(cfg.CacheTTL),
		analytics.WithHalfLife(cfg.TrustHalfLife),
	)
	writer := &store.Writer{DB: gdb, Stats: stats, AfterCommit: engine.InvalidateCache}

	var publisher queue.Publisher
	var nsqPublisher *queue.NSQPublisher
	if cfg.NSQDAddress != "" {
		nsqPublisher, err = queue.NewNSQPublisher(cfg.NSQDAddress)
		if err != nil {
			log.Fatalf("nsq publisher: %v", err)
		}
		defer nsqPublisher.Stop()
		publisher = queue.ObservePublisher(nsqPublisher, stats)
	}

	var eventConsumer *consumer.NSQConsumer
	if cfg.RunConsumers {
		eventConsumer, err = consumer.NewNSQEventConsumer(ctx, cfg, writer, recorder, stats)
		if err != nil {
			log.Fatalf("event consumer: %v", err)
		}
	}

	srv := httpserver.New(cfg, httpserver.Deps{
		DB:        gdb,
		Writer:    writer,
		Engine:    engine,
		Publisher: publisher,
		Recorder:  recorder,
		Stats:     stats,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Printf("http listening on %s", cfg.HTTPAddr)

	if cfg.RunConsumers {
		log.Printf("event consumer enabled (channel=%s)", cfg.NSQEventChannel)
	}

	select {
	case <-ctx.Done():
		log.Printf("shutdown requested")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	eventConsumer.Stop()
}
