package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RicardoG06/BancaInternet/internal/accounts"
	"github.com/RicardoG06/BancaInternet/internal/api"
	"github.com/RicardoG06/BancaInternet/internal/auth"
	"github.com/RicardoG06/BancaInternet/internal/config"
	"github.com/RicardoG06/BancaInternet/internal/events"
	eventskafka "github.com/RicardoG06/BancaInternet/internal/events/kafka"
	"github.com/RicardoG06/BancaInternet/internal/store"
	"github.com/RicardoG06/BancaInternet/internal/transfer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	var logger *zap.Logger
	if cfg.Env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := store.NewPostgres(ctx, cfg.DBSource)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// Redis holds idempotency records when configured; Postgres is the
	// fallback so a single-dependency deployment still works.
	var idem store.IdempotencyStore = pg
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		defer rdb.Close()
		idem = store.NewRedisIdempotency(rdb)
	}

	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := eventskafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = events.NewBreakerPublisher(kp)
	}

	engine := transfer.NewEngine(pg, pg, idem, publisher, logger, cfg.IdempotencyTTL)
	reader := accounts.NewReader(pg, pg, pg)
	verifier := auth.NewVerifier([]byte(cfg.JWTSecret))
	handler := api.NewHandler(engine, reader, logger)
	router := api.NewRouter(handler, verifier, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
