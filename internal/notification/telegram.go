package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/smukkama/geofence-server/internal/protocol"
	"github.com/smukkama/geofence-server/pkg/config"
)

// TelegramNotifier delivers notifications through the Telegram Bot API
type TelegramNotifier struct {
	config *config.TelegramConfig
	client *http.Client
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(cfg *config.TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type telegramSendRequest struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	DisableNotification bool   `json:"disable_notification"`
}

type telegramSendResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send delivers one Telegram message and returns the provider message id
func (t *TelegramNotifier) Send(ctx context.Context, intent *protocol.NotificationIntent) (string, error) {
	// Skip sending if the bot is not configured
	if t.config.BotToken == "" {
		fmt.Printf("Telegram not configured, skipping message: %s\n", intent.Title)
		return "", nil
	}

	text := intent.Title + "\n" + intent.Message
	if intent.Latitude != nil && intent.Longitude != nil {
		text += fmt.Sprintf("\nLocation: %s, %s", intent.Latitude, intent.Longitude)
	}

	req := telegramSendRequest{
		ChatID:              intent.TelegramChatID,
		Text:                text,
		DisableNotification: !intent.EnableSound,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode Telegram request: %w", err)
	}

	url := t.config.BaseURL + t.config.BotToken + "/sendMessage"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build Telegram request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call Telegram: %w", err)
	}
	defer resp.Body.Close()

	var tgResp telegramSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&tgResp); err != nil {
		return "", fmt.Errorf("failed to decode Telegram response: %w", err)
	}

	if !tgResp.OK {
		return "", fmt.Errorf("Telegram rejected message: %s", tgResp.Description)
	}

	return strconv.FormatInt(tgResp.Result.MessageID, 10), nil
}
