package geofence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/smukkama/geofence-server/internal/database"
	"github.com/smukkama/geofence-server/internal/protocol"
)

// Publisher sends one keyed message to a topic
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// NotificationStore persists pending notification rows
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *database.Notification) error
}

// Service consumes location messages, evaluates them and fans the results out:
// integration events to the events topic, notification rows to the database
// and delivery intents to the notifications topic.
type Service struct {
	evaluator     *Evaluator
	notifications NotificationStore
	events        Publisher
	intents       Publisher
}

// NewService creates the evaluation service
func NewService(evaluator *Evaluator, notifications NotificationStore, events, intents Publisher) *Service {
	return &Service{
		evaluator:     evaluator,
		notifications: notifications,
		events:        events,
		intents:       intents,
	}
}

// ProcessMessage evaluates one location message end to end
func (s *Service) ProcessMessage(ctx context.Context, msg *protocol.LocationMessage) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid location message: %w", err)
	}

	coord, err := msg.Coordinate()
	if err != nil {
		return fmt.Errorf("invalid coordinate: %w", err)
	}

	result, err := s.evaluator.Evaluate(ctx, msg.DeviceID, coord, msg.Timestamp)
	if errors.Is(err, ErrStaleSample) {
		log.Printf("Dropping stale sample for device %s at %s", msg.DeviceID, msg.Timestamp)
		return nil
	}
	if errors.Is(err, ErrDeviceNotFound) {
		log.Printf("Dropping sample for unknown device %s", msg.DeviceID)
		return nil
	}
	if err != nil {
		return err
	}

	for _, shapeErr := range result.ShapeErrors {
		log.Printf("Skipped geofence %d for device %s: %v", shapeErr.GeofenceID, msg.DeviceID, shapeErr.Err)
	}
	for _, failed := range result.FailedStates {
		log.Printf("State write failed for device %s geofence %d: %v", msg.DeviceID, failed.GeofenceID, failed.Err)
	}

	for i := range result.Events {
		if err := s.publishEvent(ctx, &result.Events[i]); err != nil {
			log.Printf("Failed to publish event %s: %v", result.Events[i].EventID, err)
		}
	}

	for i := range result.Intents {
		if err := s.dispatchIntent(ctx, result.Device, &result.Intents[i]); err != nil {
			log.Printf("Failed to dispatch intent %s: %v", result.Intents[i].IntentID, err)
		}
	}

	if len(result.FailedStates) > 0 {
		return fmt.Errorf("%d state writes failed for device %s", len(result.FailedStates), msg.DeviceID)
	}

	return nil
}

func (s *Service) publishEvent(ctx context.Context, event *protocol.IntegrationEvent) error {
	data, err := protocol.EncodeIntegrationEvent(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return s.events.Publish(ctx, event.DeviceID, data)
}

// dispatchIntent creates the pending notification row first so the intent
// carries a durable notification id into the delivery pipeline
func (s *Service) dispatchIntent(ctx context.Context, device *database.Device, intent *protocol.NotificationIntent) error {
	row := &database.Notification{
		DeviceID:    device.ID,
		GeofenceID:  intent.GeofenceID,
		Type:        channelToType(intent.Channel),
		Title:       intent.Title,
		Message:     intent.Message,
		Priority:    intent.Priority,
		EnableSound: intent.EnableSound,
		EventType:   &intent.EventType,
		ScheduledAt: intent.ScheduledAt,
	}
	if intent.Latitude != nil && intent.Longitude != nil {
		locationData, err := json.Marshal(map[string]string{
			"latitude":  intent.Latitude.String(),
			"longitude": intent.Longitude.String(),
		})
		if err == nil {
			row.LocationData = locationData
		}
	}

	if err := s.notifications.InsertNotification(ctx, row); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	intent.NotificationID = row.ID

	data, err := protocol.EncodeNotificationIntent(intent)
	if err != nil {
		return fmt.Errorf("failed to encode intent: %w", err)
	}
	return s.intents.Publish(ctx, intent.DeviceID, data)
}

func channelToType(channel string) string {
	switch channel {
	case protocol.ChannelPush:
		return database.NotificationTypePush
	case protocol.ChannelTelegram:
		return database.NotificationTypeTelegram
	case protocol.ChannelEmail:
		return database.NotificationTypeEmail
	default:
		return channel
	}
}
