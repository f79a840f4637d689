package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/smukkama/geofence-server/internal/database"
	"github.com/smukkama/geofence-server/internal/notification"
	"github.com/smukkama/geofence-server/internal/protocol"
	"github.com/smukkama/geofence-server/internal/queue"
	"github.com/smukkama/geofence-server/internal/timer"
	"github.com/smukkama/geofence-server/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Notification Service...")

	// Connect to database for delivery bookkeeping
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	// Create channel notifiers
	push := notification.NewPushNotifier(&cfg.FCM)
	telegram := notification.NewTelegramNotifier(&cfg.Telegram)
	email := notification.NewEmailNotifier(&cfg.SMTP)

	// Test SMTP connection (optional, will skip if not configured)
	if err := email.TestConnection(); err != nil {
		fmt.Printf("Note: %v (emails will be logged only)\n", err)
	}

	// Create scheduler for notifications with a future scheduled_at
	scheduler := timer.NewScheduler()
	scheduler.Start()
	defer scheduler.Stop()
	fmt.Println("Scheduler started")

	dispatcher := notification.NewDispatcher(db, push, telegram, email, scheduler)

	// Create consumer for notification intents
	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications, "notification-group")
	defer consumer.Close()
	fmt.Println("Kafka consumer initialized")

	ctx := context.Background()

	fmt.Println("\n✓ Notification Service is running")
	fmt.Println("✓ Press Ctrl+C to stop")

	// Start consuming intents
	go func() {
		for {
			msg, err := consumer.Consume(ctx)
			if err != nil {
				log.Printf("Failed to consume message: %v\n", err)
				continue
			}

			// Decode notification intent
			intent, err := protocol.DecodeNotificationIntent(msg.Value)
			if err != nil {
				log.Printf("Failed to decode intent: %v\n", err)
				consumer.Commit(ctx, msg)
				continue
			}

			// Deliver or schedule
			if err := dispatcher.HandleIntent(ctx, intent); err != nil {
				log.Printf("Failed to handle intent: %v\n", err)
			}

			// Commit offset; failures are recorded on the notification row
			if err := consumer.Commit(ctx, msg); err != nil {
				log.Printf("Failed to commit offset: %v\n", err)
			}
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
}
