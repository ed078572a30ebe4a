package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/seatmap-engine/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/seatmap-engine/internal/adapters/mongo"
	"github.com/robertarktes/seatmap-engine/internal/clock"
	"github.com/robertarktes/seatmap-engine/internal/config"
	"github.com/robertarktes/seatmap-engine/internal/observability"
	"github.com/robertarktes/seatmap-engine/internal/seating"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// The expiry worker reclaims lapsed holds without serving traffic. It can run
// next to the api's own sweeper since both only touch seats whose hold has
// already expired.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "seatmap-expiry-worker")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database(cfg.MongoDB)

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()

	recorder := seating.Recorders{crdb.NewRepository(pool), mongoadapter.NewAuditLogger(mongoDB, logger)}
	sweeper := seating.NewSweeper(mongoadapter.NewSeatMapStore(mongoDB, logger), clock.Real(), recorder, logger, cfg.SweepInterval)

	sweeper.Run(ctx)
	logger.Info("Shutdown expiry worker")
}
