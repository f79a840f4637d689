package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smukkama/geofence-server/internal/database"
	"github.com/smukkama/geofence-server/internal/protocol"
	"github.com/smukkama/geofence-server/internal/timer"
)

// Dispatcher routes notification intents to the channel notifiers and records
// the outcome on the notification row. Intents with a future scheduled_at are
// held on the scheduler until they are due.
type Dispatcher struct {
	db        *database.DB
	push      *PushNotifier
	telegram  *TelegramNotifier
	email     *EmailNotifier
	scheduler *timer.Scheduler
}

// NewDispatcher creates a dispatcher
func NewDispatcher(db *database.DB, push *PushNotifier, telegram *TelegramNotifier, email *EmailNotifier, scheduler *timer.Scheduler) *Dispatcher {
	return &Dispatcher{
		db:        db,
		push:      push,
		telegram:  telegram,
		email:     email,
		scheduler: scheduler,
	}
}

// HandleIntent delivers an intent now, or schedules it if its delivery time
// has not arrived yet
func (d *Dispatcher) HandleIntent(ctx context.Context, intent *protocol.NotificationIntent) error {
	if intent.ScheduledAt != nil && intent.ScheduledAt.After(time.Now()) {
		captured := *intent
		err := d.scheduler.Schedule(intent.IntentID, *intent.ScheduledAt, func() {
			if err := d.Deliver(context.Background(), &captured); err != nil {
				fmt.Printf("Failed to deliver scheduled notification %s: %v\n", captured.IntentID, err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule notification: %w", err)
		}
		fmt.Printf("Notification %s scheduled for %s\n", intent.IntentID, intent.ScheduledAt)
		return nil
	}

	return d.Deliver(ctx, intent)
}

// Deliver sends the intent over its channel and updates the notification row
func (d *Dispatcher) Deliver(ctx context.Context, intent *protocol.NotificationIntent) error {
	var providerID string
	var err error

	switch intent.Channel {
	case protocol.ChannelPush:
		providerID, err = d.push.Send(ctx, intent)
	case protocol.ChannelTelegram:
		providerID, err = d.telegram.Send(ctx, intent)
	case protocol.ChannelEmail:
		err = d.email.Send(intent)
	default:
		err = fmt.Errorf("unknown channel %q", intent.Channel)
	}

	if err != nil {
		d.recordFailure(ctx, intent, err)
		return fmt.Errorf("failed to deliver %s notification: %w", intent.Channel, err)
	}

	d.recordSuccess(ctx, intent, providerID)
	return nil
}

func (d *Dispatcher) recordSuccess(ctx context.Context, intent *protocol.NotificationIntent, providerID string) {
	if intent.NotificationID == 0 {
		return
	}

	var fcmID, telegramID *string
	switch intent.Channel {
	case protocol.ChannelPush:
		if providerID != "" {
			fcmID = &providerID
		}
	case protocol.ChannelTelegram:
		if providerID != "" {
			telegramID = &providerID
		}
	}

	if err := d.db.MarkNotificationSent(ctx, intent.NotificationID, fcmID, telegramID); err != nil {
		fmt.Printf("Failed to mark notification %d sent: %v\n", intent.NotificationID, err)
	}

	details, _ := json.Marshal(map[string]string{
		"channel":     intent.Channel,
		"provider_id": providerID,
	})
	if err := d.db.InsertNotificationLog(ctx, intent.NotificationID, "sent", details, nil); err != nil {
		fmt.Printf("Failed to log notification %d: %v\n", intent.NotificationID, err)
	}
}

func (d *Dispatcher) recordFailure(ctx context.Context, intent *protocol.NotificationIntent, deliveryErr error) {
	if intent.NotificationID == 0 {
		return
	}

	msg := deliveryErr.Error()
	if err := d.db.MarkNotificationFailed(ctx, intent.NotificationID, msg); err != nil {
		fmt.Printf("Failed to mark notification %d failed: %v\n", intent.NotificationID, err)
	}

	details, _ := json.Marshal(map[string]string{"channel": intent.Channel})
	if err := d.db.InsertNotificationLog(ctx, intent.NotificationID, "failed", details, &msg); err != nil {
		fmt.Printf("Failed to log notification %d: %v\n", intent.NotificationID, err)
	}
}
