package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/seatmap-engine/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/seatmap-engine/internal/adapters/mongo"
	"github.com/robertarktes/seatmap-engine/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/seatmap-engine/internal/adapters/redis"
	"github.com/robertarktes/seatmap-engine/internal/clock"
	"github.com/robertarktes/seatmap-engine/internal/config"
	"github.com/robertarktes/seatmap-engine/internal/confirmations"
	httphandler "github.com/robertarktes/seatmap-engine/internal/http"
	"github.com/robertarktes/seatmap-engine/internal/idempotency"
	"github.com/robertarktes/seatmap-engine/internal/observability"
	"github.com/robertarktes/seatmap-engine/internal/rateLimit"
	"github.com/robertarktes/seatmap-engine/internal/seating"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.SetupOTel(ctx, cfg, "seatmap-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	crdbRepo := crdb.NewRepository(pool)
	if err := crdbRepo.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate crdb: %v", err)
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database(cfg.MongoDB)
	seatMaps := mongoadapter.NewSeatMapStore(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	redisCache := redisadapter.NewCache(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(redisCache, logger)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	consumer, err := rabbit.NewConsumer(rabbitConn, cfg.ConfirmQueue, rabbit.ConfirmRoutingKey)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer consumer.Close()

	engine := seating.NewEngine(seatMaps, crdbRepo, seating.Recorders{crdbRepo, audit}, clock.Real(), logger, seating.Config{
		DefaultLease:  cfg.HoldTTL,
		MinLease:      cfg.HoldTTLMin,
		MaxLease:      cfg.HoldTTLMax,
		SweepInterval: cfg.SweepInterval,
	})

	handlers := httphandler.NewHandlers(engine, crdbRepo, map[string]httphandler.HealthChecker{
		"crdb":  crdbRepo,
		"mongo": seatMaps,
		"redis": redisCache,
	}, logger)
	r := httphandler.SetupRouter(handlers, logger, rl, idemp, httphandler.RouterConfig{
		JWTSecret: cfg.JWTSecret,
		RateLimit: cfg.RateLimit,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sweeper := engine.Sweeper()
	if err := sweeper.Start(ctx); err != nil {
		log.Fatalf("failed to start sweeper: %v", err)
	}
	defer sweeper.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	g.Go(func() error {
		deliveries, err := consumer.Consume(gctx)
		if err != nil {
			return errors.Wrap(err, "consume confirmations")
		}
		return confirmations.NewWorker(engine, logger, cfg.ConfirmRetry).Run(gctx, deliveries)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown Server ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("api exited with error")
		stop()
		sweeper.Stop()
		os.Exit(1)
	}
	logger.Info("Server exiting")
}
