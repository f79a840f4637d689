package geofence

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smukkama/geofence-server/internal/database"
	"github.com/smukkama/geofence-server/internal/protocol"
)

type fakePublisher struct {
	keys   []string
	values [][]byte
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, key string, value []byte) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
	return nil
}

type fakeNotificationStore struct {
	inserted []*database.Notification
	nextID   int64
}

func (s *fakeNotificationStore) InsertNotification(ctx context.Context, n *database.Notification) error {
	s.nextID++
	n.ID = s.nextID
	n.Status = database.NotificationStatusPending
	s.inserted = append(s.inserted, n)
	return nil
}

func locationMessage(lat, lon string) *protocol.LocationMessage {
	return &protocol.LocationMessage{
		DeviceID:   "device-abc",
		Latitude:   decimal.RequireFromString(lat),
		Longitude:  decimal.RequireFromString(lon),
		Timestamp:  time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		ReceivedAt: time.Date(2026, 3, 14, 12, 0, 1, 0, time.UTC),
	}
}

func TestServiceProcessMessageEnter(t *testing.T) {
	store := &fakeStore{
		associations: []database.Association{
			{Geofence: circleGeofence(7, "42.0", "74.0", "500"), IsInside: false},
		},
	}
	events := &fakePublisher{}
	intents := &fakePublisher{}
	notifications := &fakeNotificationStore{}

	service := NewService(newTestEvaluator(store, nil), notifications, events, intents)

	err := service.ProcessMessage(context.Background(), locationMessage("42.0", "74.0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events.values) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(events.values))
	}
	event, err := protocol.DecodeIntegrationEvent(events.values[0])
	if err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if event.Type != protocol.EventGeofenceEnter || event.GeofenceID != 7 {
		t.Errorf("unexpected event %+v", event)
	}
	if events.keys[0] != "device-abc" {
		t.Errorf("event must be keyed by device id, got %q", events.keys[0])
	}

	if len(notifications.inserted) != 1 {
		t.Fatalf("expected 1 notification row, got %d", len(notifications.inserted))
	}
	row := notifications.inserted[0]
	if row.Type != database.NotificationTypePush {
		t.Errorf("expected push notification row, got %q", row.Type)
	}
	if row.Title != "Geofence: zone-7" {
		t.Errorf("unexpected title %q", row.Title)
	}

	if len(intents.values) != 1 {
		t.Fatalf("expected 1 published intent, got %d", len(intents.values))
	}
	intent, err := protocol.DecodeNotificationIntent(intents.values[0])
	if err != nil {
		t.Fatalf("failed to decode intent: %v", err)
	}
	if intent.NotificationID != row.ID {
		t.Errorf("intent must carry the notification row id, got %d want %d", intent.NotificationID, row.ID)
	}
}

func TestServiceProcessMessageNoTransition(t *testing.T) {
	store := &fakeStore{
		associations: []database.Association{
			{Geofence: circleGeofence(7, "42.0", "74.0", "500"), IsInside: true},
		},
	}
	events := &fakePublisher{}
	intents := &fakePublisher{}
	notifications := &fakeNotificationStore{}

	service := NewService(newTestEvaluator(store, nil), notifications, events, intents)

	err := service.ProcessMessage(context.Background(), locationMessage("42.0", "74.0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events.values) != 0 || len(intents.values) != 0 || len(notifications.inserted) != 0 {
		t.Error("no outputs expected when the device stays inside")
	}
}

func TestServiceProcessMessageUnknownDevice(t *testing.T) {
	events := &fakePublisher{}
	intents := &fakePublisher{}
	evaluator := NewEvaluator(
		&fakeDirectory{devices: map[string]*database.Device{}},
		&fakeStore{},
		nil,
		0,
	)
	service := NewService(evaluator, &fakeNotificationStore{}, events, intents)

	// Unknown devices are dropped without error so the offset still commits
	err := service.ProcessMessage(context.Background(), locationMessage("42.0", "74.0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServiceProcessMessageInvalid(t *testing.T) {
	service := NewService(newTestEvaluator(&fakeStore{}, nil), &fakeNotificationStore{}, &fakePublisher{}, &fakePublisher{})

	msg := locationMessage("42.0", "74.0")
	msg.DeviceID = ""
	if err := service.ProcessMessage(context.Background(), msg); err == nil {
		t.Error("expected error for message without device id")
	}
}
