package geofence

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smukkama/geofence-server/internal/database"
	"github.com/smukkama/geofence-server/internal/geometry"
	"github.com/smukkama/geofence-server/internal/protocol"
)

func strPtr(s string) *string {
	return &s
}

func testTransition(kind TransitionKind, gf *database.Geofence) *Transition {
	return &Transition{
		Geofence: gf,
		Kind:     kind,
		Coordinate: geometry.Coordinate{
			Lat: decimal.RequireFromString("42.0"),
			Lon: decimal.RequireFromString("74.0"),
		},
		OccurredAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func testDevice() *database.Device {
	return &database.Device{
		ID:             1,
		DeviceID:       "device-abc",
		UserID:         "user-1",
		Platform:       database.PlatformAndroid,
		Status:         database.DeviceStatusActive,
		FCMToken:       strPtr("fcm-token-123"),
		TelegramChatID: strPtr("555001"),
	}
}

func TestBuildIntentsBothChannels(t *testing.T) {
	gf := &database.Geofence{
		ID:             7,
		Name:           "Home",
		EnablePush:     true,
		EnableTelegram: true,
		EnableSound:    true,
	}
	intents := BuildIntents(testTransition(TransitionEntered, gf), testDevice())

	if len(intents) != 2 {
		t.Fatalf("expected 2 intents, got %d", len(intents))
	}

	push := intents[0]
	if push.Channel != protocol.ChannelPush {
		t.Errorf("expected first intent channel push, got %s", push.Channel)
	}
	if push.Title != "Geofence: Home" {
		t.Errorf("unexpected title %q", push.Title)
	}
	if push.Message != "Device entered geofence Home" {
		t.Errorf("unexpected message %q", push.Message)
	}
	if push.Priority != database.PriorityHigh {
		t.Errorf("expected high priority, got %s", push.Priority)
	}
	if push.PushToken != "fcm-token-123" {
		t.Errorf("unexpected push token %q", push.PushToken)
	}
	if !push.EnableSound {
		t.Error("expected sound enabled")
	}
	if push.EventType != protocol.EventGeofenceEnter {
		t.Errorf("unexpected event type %q", push.EventType)
	}

	tg := intents[1]
	if tg.Channel != protocol.ChannelTelegram {
		t.Errorf("expected second intent channel telegram, got %s", tg.Channel)
	}
	if tg.TelegramChatID != "555001" {
		t.Errorf("unexpected telegram chat id %q", tg.TelegramChatID)
	}

	if push.IntentID == tg.IntentID {
		t.Error("intent ids must be unique")
	}
}

func TestBuildIntentsCustomMessage(t *testing.T) {
	gf := &database.Geofence{
		ID:                  7,
		Name:                "Office",
		EnablePush:          true,
		NotificationMessage: strPtr("Back at the office"),
	}
	intents := BuildIntents(testTransition(TransitionEntered, gf), testDevice())

	if len(intents) != 1 {
		t.Fatalf("expected 1 intent, got %d", len(intents))
	}
	if intents[0].Message != "Back at the office" {
		t.Errorf("expected custom message, got %q", intents[0].Message)
	}
}

func TestBuildIntentsExitMessage(t *testing.T) {
	gf := &database.Geofence{
		ID:         7,
		Name:       "School",
		EnablePush: true,
	}
	intents := BuildIntents(testTransition(TransitionExited, gf), testDevice())

	if len(intents) != 1 {
		t.Fatalf("expected 1 intent, got %d", len(intents))
	}
	if intents[0].Message != "Device exited geofence School" {
		t.Errorf("unexpected message %q", intents[0].Message)
	}
	if intents[0].EventType != protocol.EventGeofenceExit {
		t.Errorf("unexpected event type %q", intents[0].EventType)
	}
}

func TestBuildIntentsNoChannelsConfigured(t *testing.T) {
	gf := &database.Geofence{ID: 7, Name: "Quiet"}
	intents := BuildIntents(testTransition(TransitionEntered, gf), testDevice())

	if len(intents) != 0 {
		t.Errorf("expected no intents, got %d", len(intents))
	}
}

func TestBuildIntentsMissingTokens(t *testing.T) {
	gf := &database.Geofence{
		ID:             7,
		Name:           "Home",
		EnablePush:     true,
		EnableTelegram: true,
	}
	device := testDevice()
	device.FCMToken = nil
	device.TelegramChatID = strPtr("")

	intents := BuildIntents(testTransition(TransitionEntered, gf), device)

	if len(intents) != 0 {
		t.Errorf("expected no intents without tokens, got %d", len(intents))
	}
}
