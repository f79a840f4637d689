package protocol

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Integration event types published on the events topic
const (
	EventGeofenceEnter = "geofence.enter"
	EventGeofenceExit  = "geofence.exit"
)

// IntegrationEvent is an asynchronous fact about a geofence transition,
// published for downstream consumers independently of notification delivery
type IntegrationEvent struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	DeviceID   string          `json:"device_id"`
	GeofenceID int64           `json:"geofence_id"`
	Latitude   decimal.Decimal `json:"latitude"`
	Longitude  decimal.Decimal `json:"longitude"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Notification channels
const (
	ChannelPush     = "push"
	ChannelTelegram = "telegram"
	ChannelEmail    = "email"
)

// NotificationIntent instructs the notification service to deliver one
// message over one channel. It carries everything delivery needs so the
// dispatcher does not have to re-read device rows.
type NotificationIntent struct {
	IntentID       string           `json:"intent_id"`
	NotificationID int64            `json:"notification_id"`
	DeviceID       string           `json:"device_id"`
	Channel        string           `json:"channel"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	Priority       string           `json:"priority"`
	EnableSound    bool             `json:"enable_sound"`
	GeofenceID     *int64           `json:"geofence_id,omitempty"`
	EventType      string           `json:"event_type,omitempty"`
	Latitude       *decimal.Decimal `json:"latitude,omitempty"`
	Longitude      *decimal.Decimal `json:"longitude,omitempty"`
	PushToken      string           `json:"push_token,omitempty"`
	TelegramChatID string           `json:"telegram_chat_id,omitempty"`
	EmailTo        string           `json:"email_to,omitempty"`
	ScheduledAt    *time.Time       `json:"scheduled_at,omitempty"`
}

// EncodeIntegrationEvent encodes an IntegrationEvent to JSON
func EncodeIntegrationEvent(event *IntegrationEvent) ([]byte, error) {
	return json.Marshal(event)
}

// DecodeIntegrationEvent decodes JSON to IntegrationEvent
func DecodeIntegrationEvent(data []byte) (*IntegrationEvent, error) {
	var event IntegrationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// EncodeNotificationIntent encodes a NotificationIntent to JSON
func EncodeNotificationIntent(intent *NotificationIntent) ([]byte, error) {
	return json.Marshal(intent)
}

// DecodeNotificationIntent decodes JSON to NotificationIntent
func DecodeNotificationIntent(data []byte) (*NotificationIntent, error) {
	var intent NotificationIntent
	if err := json.Unmarshal(data, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}
