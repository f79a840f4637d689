package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smukkama/geofence-server/internal/database"
)

type deviceStore interface {
	InsertDevice(ctx context.Context, d *database.Device) error
	GetDeviceByDeviceID(ctx context.Context, deviceID string) (*database.Device, error)
	ListDevicesByUser(ctx context.Context, userID string) ([]*database.Device, error)
	UpdateDevice(ctx context.Context, deviceID string, upd database.DeviceUpdate) (*database.Device, error)
	DeleteDevice(ctx context.Context, deviceID string) (bool, error)
}

// DeviceHandler serves device registration and management
type DeviceHandler struct {
	store deviceStore
}

// NewDeviceHandler creates a device handler
func NewDeviceHandler(store deviceStore) *DeviceHandler {
	return &DeviceHandler{store: store}
}

// Register mounts the device routes
func (h *DeviceHandler) Register(r *gin.RouterGroup) {
	r.POST("/devices", h.CreateDevice)
	r.GET("/devices/:device_id", h.GetDevice)
	r.PATCH("/devices/:device_id", h.UpdateDevice)
	r.DELETE("/devices/:device_id", h.DeleteDevice)
	r.GET("/users/:user_id/devices", h.ListUserDevices)
}

type createDeviceRequest struct {
	DeviceID       string          `json:"device_id" binding:"required"`
	UserID         string          `json:"user_id" binding:"required"`
	Name           *string         `json:"name"`
	Platform       string          `json:"platform" binding:"required,oneof=android ios web"`
	FCMToken       *string         `json:"fcm_token"`
	APNSToken      *string         `json:"apns_token"`
	TelegramChatID *string         `json:"telegram_chat_id"`
	Metadata       json.RawMessage `json:"metadata"`
}

type updateDeviceRequest struct {
	Name           *string         `json:"name"`
	FCMToken       *string         `json:"fcm_token"`
	APNSToken      *string         `json:"apns_token"`
	TelegramChatID *string         `json:"telegram_chat_id"`
	Status         *string         `json:"status" binding:"omitempty,oneof=active inactive suspended"`
	Metadata       json.RawMessage `json:"metadata"`
}

type deviceResponse struct {
	ID             int64           `json:"id"`
	DeviceID       string          `json:"device_id"`
	UserID         string          `json:"user_id"`
	Name           *string         `json:"name,omitempty"`
	Platform       string          `json:"platform"`
	Status         string          `json:"status"`
	FCMToken       *string         `json:"fcm_token,omitempty"`
	APNSToken      *string         `json:"apns_token,omitempty"`
	TelegramChatID *string         `json:"telegram_chat_id,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	LastSeen       *time.Time      `json:"last_seen,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toDeviceResponse(d *database.Device) deviceResponse {
	return deviceResponse{
		ID:             d.ID,
		DeviceID:       d.DeviceID,
		UserID:         d.UserID,
		Name:           d.Name,
		Platform:       d.Platform,
		Status:         d.Status,
		FCMToken:       d.FCMToken,
		APNSToken:      d.APNSToken,
		TelegramChatID: d.TelegramChatID,
		Metadata:       d.Metadata,
		LastSeen:       d.LastSeen,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// CreateDevice registers a new device
func (h *DeviceHandler) CreateDevice(c *gin.Context) {
	var req createDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.store.GetDeviceByDeviceID(c.Request.Context(), req.DeviceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check device"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "device already registered"})
		return
	}

	device := &database.Device{
		DeviceID:       req.DeviceID,
		UserID:         req.UserID,
		Name:           req.Name,
		Platform:       req.Platform,
		FCMToken:       req.FCMToken,
		APNSToken:      req.APNSToken,
		TelegramChatID: req.TelegramChatID,
		Metadata:       req.Metadata,
	}
	if err := h.store.InsertDevice(c.Request.Context(), device); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create device"})
		return
	}

	c.JSON(http.StatusCreated, toDeviceResponse(device))
}

// GetDevice retrieves one device by its external id
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	device, err := h.store.GetDeviceByDeviceID(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch device"})
		return
	}
	if device == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	c.JSON(http.StatusOK, toDeviceResponse(device))
}

// UpdateDevice applies a partial update
func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	var req updateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := h.store.UpdateDevice(c.Request.Context(), c.Param("device_id"), database.DeviceUpdate{
		Name:           req.Name,
		FCMToken:       req.FCMToken,
		APNSToken:      req.APNSToken,
		TelegramChatID: req.TelegramChatID,
		Status:         req.Status,
		Metadata:       req.Metadata,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update device"})
		return
	}
	if device == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	c.JSON(http.StatusOK, toDeviceResponse(device))
}

// DeleteDevice removes a device and its dependent rows
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	deleted, err := h.store.DeleteDevice(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete device"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListUserDevices retrieves all devices owned by a user
func (h *DeviceHandler) ListUserDevices(c *gin.Context) {
	devices, err := h.store.ListDevicesByUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch devices"})
		return
	}

	results := make([]deviceResponse, len(devices))
	for i, d := range devices {
		results[i] = toDeviceResponse(d)
	}
	c.JSON(http.StatusOK, results)
}
