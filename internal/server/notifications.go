package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smukkama/geofence-server/internal/database"
)

type notificationStore interface {
	GetDeviceByDeviceID(ctx context.Context, deviceID string) (*database.Device, error)
	ListNotificationsByDevice(ctx context.Context, deviceID int64, limit, offset int) ([]*database.Notification, error)
}

// NotificationHandler serves notification history
type NotificationHandler struct {
	store notificationStore
}

// NewNotificationHandler creates a notification handler
func NewNotificationHandler(store notificationStore) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// Register mounts the notification routes
func (h *NotificationHandler) Register(r *gin.RouterGroup) {
	r.GET("/devices/:device_id/notifications", h.ListNotifications)
}

type notificationResponse struct {
	ID           int64           `json:"id"`
	GeofenceID   *int64          `json:"geofence_id,omitempty"`
	Type         string          `json:"type"`
	Title        string          `json:"title"`
	Message      string          `json:"message"`
	Priority     string          `json:"priority"`
	Status       string          `json:"status"`
	EventType    *string         `json:"event_type,omitempty"`
	LocationData json.RawMessage `json:"location_data,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	RetryCount   int             `json:"retry_count"`
	ScheduledAt  *time.Time      `json:"scheduled_at,omitempty"`
	SentAt       *time.Time      `json:"sent_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ListNotifications retrieves a device's notifications, newest first
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	device, err := h.store.GetDeviceByDeviceID(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch device"})
		return
	}
	if device == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	notifications, err := h.store.ListNotificationsByDevice(c.Request.Context(), device.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch notifications"})
		return
	}

	results := make([]notificationResponse, len(notifications))
	for i, n := range notifications {
		results[i] = notificationResponse{
			ID:           n.ID,
			GeofenceID:   n.GeofenceID,
			Type:         n.Type,
			Title:        n.Title,
			Message:      n.Message,
			Priority:     n.Priority,
			Status:       n.Status,
			EventType:    n.EventType,
			LocationData: n.LocationData,
			ErrorMessage: n.ErrorMessage,
			RetryCount:   n.RetryCount,
			ScheduledAt:  n.ScheduledAt,
			SentAt:       n.SentAt,
			CreatedAt:    n.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, results)
}
