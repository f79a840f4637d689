package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/geofence-server/internal/database"
	"github.com/smukkama/geofence-server/internal/geofence"
	"github.com/smukkama/geofence-server/internal/protocol"
	"github.com/smukkama/geofence-server/internal/queue"
	"github.com/smukkama/geofence-server/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Geofence Evaluator Service...")

	// Connect to database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	fmt.Println("Connected to Redis")

	// Create sample guard
	var guard geofence.SampleGuard
	if cfg.Evaluator.RejectStaleSamples {
		guard = geofence.NewRedisSampleGuard(redisClient, cfg.Evaluator.GuardTTL)
		fmt.Println("Stale sample rejection enabled")
	}

	// Create producers for events and notification intents
	eventProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer eventProducer.Close()
	intentProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications)
	defer intentProducer.Close()
	fmt.Println("Kafka producers initialized")

	// Create evaluator and service
	evaluator := geofence.NewEvaluator(db, db, guard, cfg.Evaluator.PersistTimeout)
	service := geofence.NewService(evaluator, db, eventProducer, intentProducer)

	// Create consumer for raw locations
	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicLocations, "evaluator-group")
	defer consumer.Close()
	fmt.Println("Kafka consumer initialized")

	fmt.Println("\n✓ Geofence Evaluator Service is running")
	fmt.Println("✓ Press Ctrl+C to stop")

	// Start consuming and evaluating
	go func() {
		for {
			msg, err := consumer.Consume(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("Failed to consume message: %v\n", err)
				continue
			}

			// Decode location message
			locMsg, err := protocol.DecodeLocationMessage(msg.Value)
			if err != nil {
				log.Printf("Failed to decode message: %v\n", err)
				consumer.Commit(ctx, msg)
				continue
			}

			// Evaluate against the device's geofences. A partial-failure
			// error leaves the offset uncommitted so the sample is
			// redelivered and the failed pairs regenerated.
			if err := service.ProcessMessage(ctx, locMsg); err != nil {
				log.Printf("Failed to evaluate location: %v\n", err)
				continue
			}

			// Commit offset
			if err := consumer.Commit(ctx, msg); err != nil {
				log.Printf("Failed to commit offset: %v\n", err)
			}
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	cancel()
	fmt.Println("\nShutting down gracefully...")
}
