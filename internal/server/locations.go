package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/smukkama/geofence-server/internal/database"
	"github.com/smukkama/geofence-server/internal/protocol"
)

type locationStore interface {
	GetDeviceByDeviceID(ctx context.Context, deviceID string) (*database.Device, error)
	GetLatestLocation(ctx context.Context, deviceID int64) (*database.Location, error)
	ListLocations(ctx context.Context, deviceID int64, q database.LocationQuery) ([]*database.Location, error)
}

// LocationHandler ingests location reports and serves location history.
// Reports are accepted onto the raw locations topic; persistence and geofence
// evaluation happen asynchronously downstream.
type LocationHandler struct {
	store     locationStore
	publisher Publisher
}

// NewLocationHandler creates a location handler
func NewLocationHandler(store locationStore, publisher Publisher) *LocationHandler {
	return &LocationHandler{store: store, publisher: publisher}
}

// Register mounts the location routes
func (h *LocationHandler) Register(r *gin.RouterGroup) {
	r.POST("/devices/:device_id/locations", h.ReportLocation)
	r.GET("/devices/:device_id/locations", h.ListLocations)
	r.GET("/devices/:device_id/locations/latest", h.GetLatestLocation)
}

type reportLocationRequest struct {
	Latitude  *decimal.Decimal `json:"latitude" binding:"required"`
	Longitude *decimal.Decimal `json:"longitude" binding:"required"`
	Altitude  *decimal.Decimal `json:"altitude"`
	Accuracy  *decimal.Decimal `json:"accuracy"`
	Speed     *decimal.Decimal `json:"speed"`
	Heading   *decimal.Decimal `json:"heading"`
	Timestamp *time.Time       `json:"timestamp"`
}

type locationResponse struct {
	ID        int64            `json:"id"`
	Latitude  decimal.Decimal  `json:"latitude"`
	Longitude decimal.Decimal  `json:"longitude"`
	Altitude  *decimal.Decimal `json:"altitude,omitempty"`
	Accuracy  *decimal.Decimal `json:"accuracy,omitempty"`
	Speed     *decimal.Decimal `json:"speed,omitempty"`
	Heading   *decimal.Decimal `json:"heading,omitempty"`
	Address   *string          `json:"address,omitempty"`
	City      *string          `json:"city,omitempty"`
	Country   *string          `json:"country,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

func toLocationResponse(l *database.Location) locationResponse {
	return locationResponse{
		ID:        l.ID,
		Latitude:  l.Lat,
		Longitude: l.Lon,
		Altitude:  nullableDecimal(l.Altitude),
		Accuracy:  nullableDecimal(l.Accuracy),
		Speed:     nullableDecimal(l.Speed),
		Heading:   nullableDecimal(l.Heading),
		Address:   l.Address,
		City:      l.City,
		Country:   l.Country,
		Timestamp: l.Timestamp,
	}
}

// ReportLocation accepts one location report and queues it for evaluation
func (h *LocationHandler) ReportLocation(c *gin.Context) {
	var req reportLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := h.store.GetDeviceByDeviceID(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch device"})
		return
	}
	if device == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	if device.Status != database.DeviceStatusActive {
		c.JSON(http.StatusConflict, gin.H{"error": "device is not active"})
		return
	}

	now := time.Now().UTC()
	timestamp := now
	if req.Timestamp != nil {
		timestamp = req.Timestamp.UTC()
	}

	msg := &protocol.LocationMessage{
		DeviceID:   device.DeviceID,
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		Altitude:   req.Altitude,
		Accuracy:   req.Accuracy,
		Speed:      req.Speed,
		Heading:    req.Heading,
		Timestamp:  timestamp,
		ReceivedAt: now,
	}
	if err := msg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := protocol.EncodeLocationMessage(msg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode location"})
		return
	}

	// Keyed by device id so one device's samples stay ordered
	if err := h.publisher.Publish(c.Request.Context(), device.DeviceID, data); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to queue location"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":    "accepted",
		"device_id": device.DeviceID,
		"timestamp": timestamp,
	})
}

// GetLatestLocation retrieves the most recent recorded position
func (h *LocationHandler) GetLatestLocation(c *gin.Context) {
	device, err := h.store.GetDeviceByDeviceID(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch device"})
		return
	}
	if device == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	location, err := h.store.GetLatestLocation(c.Request.Context(), device.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch location"})
		return
	}
	if location == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no locations recorded"})
		return
	}

	c.JSON(http.StatusOK, toLocationResponse(location))
}

// ListLocations retrieves location history, newest first
func (h *LocationHandler) ListLocations(c *gin.Context) {
	device, err := h.store.GetDeviceByDeviceID(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch device"})
		return
	}
	if device == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	query := database.LocationQuery{}
	if limit := c.Query("limit"); limit != "" {
		query.Limit, err = strconv.Atoi(limit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
			return
		}
	}
	if offset := c.Query("offset"); offset != "" {
		query.Offset, err = strconv.Atoi(offset)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset parameter"})
			return
		}
	}
	if start := c.Query("start"); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start parameter"})
			return
		}
		query.StartTime = &t
	}
	if end := c.Query("end"); end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end parameter"})
			return
		}
		query.EndTime = &t
	}

	locations, err := h.store.ListLocations(c.Request.Context(), device.ID, query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch locations"})
		return
	}

	results := make([]locationResponse, len(locations))
	for i, l := range locations {
		results[i] = toLocationResponse(l)
	}
	c.JSON(http.StatusOK, results)
}
