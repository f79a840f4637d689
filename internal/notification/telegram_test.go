package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smukkama/geofence-server/internal/protocol"
	"github.com/smukkama/geofence-server/pkg/config"
)

func telegramIntent() *protocol.NotificationIntent {
	lat := decimal.RequireFromString("42.0")
	lon := decimal.RequireFromString("74.0")
	return &protocol.NotificationIntent{
		IntentID:       "intent-2",
		NotificationID: 12,
		DeviceID:       "device-abc",
		Channel:        protocol.ChannelTelegram,
		Title:          "Geofence: Home",
		Message:        "Device exited geofence Home",
		EnableSound:    false,
		EventType:      protocol.EventGeofenceExit,
		Latitude:       &lat,
		Longitude:      &lon,
		TelegramChatID: "555001",
	}
}

func TestTelegramNotifierSend(t *testing.T) {
	var received telegramSendRequest
	var path string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]int64{"message_id": 9001},
		})
	}))
	defer server.Close()

	notifier := NewTelegramNotifier(&config.TelegramConfig{
		BaseURL:  server.URL + "/bot",
		BotToken: "bot-token",
		Timeout:  5 * time.Second,
	})

	messageID, err := notifier.Send(context.Background(), telegramIntent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if messageID != "9001" {
		t.Errorf("expected message id 9001, got %q", messageID)
	}
	if path != "/botbot-token/sendMessage" {
		t.Errorf("unexpected path %q", path)
	}
	if received.ChatID != "555001" {
		t.Errorf("unexpected chat id %q", received.ChatID)
	}
	if !received.DisableNotification {
		t.Error("expected silent delivery when sound is disabled")
	}
	if !strings.Contains(received.Text, "Device exited geofence Home") {
		t.Errorf("message body missing from text: %q", received.Text)
	}
	if !strings.Contains(received.Text, "Location: 42.0, 74.0") {
		t.Errorf("location line missing from text: %q", received.Text)
	}
}

func TestTelegramNotifierRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"description": "Bad Request: chat not found",
		})
	}))
	defer server.Close()

	notifier := NewTelegramNotifier(&config.TelegramConfig{
		BaseURL:  server.URL + "/bot",
		BotToken: "bot-token",
		Timeout:  5 * time.Second,
	})

	_, err := notifier.Send(context.Background(), telegramIntent())
	if err == nil {
		t.Fatal("expected error for rejected message")
	}
}

func TestTelegramNotifierSkipsWhenUnconfigured(t *testing.T) {
	notifier := NewTelegramNotifier(&config.TelegramConfig{Timeout: time.Second})

	messageID, err := notifier.Send(context.Background(), telegramIntent())
	if err != nil {
		t.Fatalf("unconfigured notifier must not fail: %v", err)
	}
	if messageID != "" {
		t.Errorf("expected empty message id, got %q", messageID)
	}
}
