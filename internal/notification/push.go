package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/smukkama/geofence-server/internal/protocol"
	"github.com/smukkama/geofence-server/pkg/config"
)

// PushNotifier delivers notifications through Firebase Cloud Messaging
type PushNotifier struct {
	config *config.FCMConfig
	client *http.Client
}

// NewPushNotifier creates a new FCM notifier
func NewPushNotifier(cfg *config.FCMConfig) *PushNotifier {
	return &PushNotifier{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type fcmRequest struct {
	To           string          `json:"to"`
	Priority     string          `json:"priority"`
	Notification fcmNotification `json:"notification"`
	Data         map[string]any  `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound,omitempty"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// Send delivers one push notification and returns the provider message id
func (p *PushNotifier) Send(ctx context.Context, intent *protocol.NotificationIntent) (string, error) {
	// Skip sending if FCM is not configured
	if p.config.ServerKey == "" {
		fmt.Printf("FCM not configured, skipping push: %s\n", intent.Title)
		return "", nil
	}

	req := fcmRequest{
		To:       intent.PushToken,
		Priority: fcmPriority(intent.Priority),
		Notification: fcmNotification{
			Title: intent.Title,
			Body:  intent.Message,
		},
		Data: map[string]any{
			"event_type": intent.EventType,
		},
	}
	if intent.EnableSound {
		req.Notification.Sound = "default"
	}
	if intent.GeofenceID != nil {
		req.Data["geofence_id"] = *intent.GeofenceID
	}
	if intent.Latitude != nil && intent.Longitude != nil {
		req.Data["latitude"] = intent.Latitude.String()
		req.Data["longitude"] = intent.Longitude.String()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode FCM request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build FCM request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "key="+p.config.ServerKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call FCM: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("FCM returned status %d", resp.StatusCode)
	}

	var fcmResp fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&fcmResp); err != nil {
		return "", fmt.Errorf("failed to decode FCM response: %w", err)
	}

	if len(fcmResp.Results) > 0 {
		result := fcmResp.Results[0]
		if result.Error != "" {
			return "", fmt.Errorf("FCM rejected message: %s", result.Error)
		}
		return result.MessageID, nil
	}

	if fcmResp.Failure > 0 {
		return "", fmt.Errorf("FCM reported %d failures", fcmResp.Failure)
	}

	return "", nil
}

func fcmPriority(priority string) string {
	switch priority {
	case "high", "urgent":
		return "high"
	default:
		return "normal"
	}
}
