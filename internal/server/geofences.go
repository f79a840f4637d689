package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/smukkama/geofence-server/internal/database"
	"github.com/smukkama/geofence-server/internal/geometry"
)

type geofenceStore interface {
	InsertGeofence(ctx context.Context, g *database.Geofence) error
	GetGeofence(ctx context.Context, id int64) (*database.Geofence, error)
	ListGeofencesByUser(ctx context.Context, userID string) ([]*database.Geofence, error)
	UpdateGeofence(ctx context.Context, id int64, upd database.GeofenceUpdate) (*database.Geofence, error)
	DeleteGeofence(ctx context.Context, id int64) (bool, error)
	GetDeviceByDeviceID(ctx context.Context, deviceID string) (*database.Device, error)
	LinkDeviceGeofence(ctx context.Context, deviceID, geofenceID int64) (*database.DeviceGeofence, error)
	UnlinkDeviceGeofence(ctx context.Context, deviceID, geofenceID int64) (bool, error)
	ListDeviceGeofenceStates(ctx context.Context, deviceID int64) ([]*database.DeviceGeofence, error)
}

// GeofenceHandler serves geofence management and device association routes
type GeofenceHandler struct {
	store geofenceStore
}

// NewGeofenceHandler creates a geofence handler
func NewGeofenceHandler(store geofenceStore) *GeofenceHandler {
	return &GeofenceHandler{store: store}
}

// Register mounts the geofence routes
func (h *GeofenceHandler) Register(r *gin.RouterGroup) {
	r.POST("/geofences", h.CreateGeofence)
	r.GET("/geofences/:geofence_id", h.GetGeofence)
	r.PATCH("/geofences/:geofence_id", h.UpdateGeofence)
	r.DELETE("/geofences/:geofence_id", h.DeleteGeofence)
	r.GET("/users/:user_id/geofences", h.ListUserGeofences)

	r.POST("/devices/:device_id/geofences/:geofence_id", h.LinkGeofence)
	r.DELETE("/devices/:device_id/geofences/:geofence_id", h.UnlinkGeofence)
	r.GET("/devices/:device_id/geofences", h.ListDeviceGeofences)
}

type createGeofenceRequest struct {
	UserID      string  `json:"user_id" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
	Type        string  `json:"type" binding:"required,oneof=circle polygon rectangle"`

	CenterLatitude  *decimal.Decimal    `json:"center_latitude"`
	CenterLongitude *decimal.Decimal    `json:"center_longitude"`
	RadiusMeters    *decimal.Decimal    `json:"radius_meters"`
	PolygonVertices [][]decimal.Decimal `json:"polygon_vertices"`
	MinLatitude     *decimal.Decimal    `json:"min_latitude"`
	MaxLatitude     *decimal.Decimal    `json:"max_latitude"`
	MinLongitude    *decimal.Decimal    `json:"min_longitude"`
	MaxLongitude    *decimal.Decimal    `json:"max_longitude"`

	NotifyOnEnter       *bool           `json:"notify_on_enter"`
	NotifyOnExit        *bool           `json:"notify_on_exit"`
	NotificationMessage *string         `json:"notification_message"`
	EnableSound         *bool           `json:"enable_sound"`
	EnablePush          *bool           `json:"enable_push"`
	EnableTelegram      *bool           `json:"enable_telegram"`
	Metadata            json.RawMessage `json:"metadata"`
}

type updateGeofenceRequest struct {
	Name                *string         `json:"name"`
	Description         *string         `json:"description"`
	Status              *string         `json:"status" binding:"omitempty,oneof=active inactive archived"`
	NotifyOnEnter       *bool           `json:"notify_on_enter"`
	NotifyOnExit        *bool           `json:"notify_on_exit"`
	NotificationMessage *string         `json:"notification_message"`
	EnableSound         *bool           `json:"enable_sound"`
	EnablePush          *bool           `json:"enable_push"`
	EnableTelegram      *bool           `json:"enable_telegram"`
	Metadata            json.RawMessage `json:"metadata"`
}

type geofenceResponse struct {
	ID          int64   `json:"id"`
	UserID      string  `json:"user_id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Type        string  `json:"type"`

	CenterLatitude  *decimal.Decimal `json:"center_latitude,omitempty"`
	CenterLongitude *decimal.Decimal `json:"center_longitude,omitempty"`
	RadiusMeters    *decimal.Decimal `json:"radius_meters,omitempty"`
	PolygonVertices json.RawMessage  `json:"polygon_vertices,omitempty"`
	MinLatitude     *decimal.Decimal `json:"min_latitude,omitempty"`
	MaxLatitude     *decimal.Decimal `json:"max_latitude,omitempty"`
	MinLongitude    *decimal.Decimal `json:"min_longitude,omitempty"`
	MaxLongitude    *decimal.Decimal `json:"max_longitude,omitempty"`

	Status              string          `json:"status"`
	NotifyOnEnter       bool            `json:"notify_on_enter"`
	NotifyOnExit        bool            `json:"notify_on_exit"`
	NotificationMessage *string         `json:"notification_message,omitempty"`
	EnableSound         bool            `json:"enable_sound"`
	EnablePush          bool            `json:"enable_push"`
	EnableTelegram      bool            `json:"enable_telegram"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func nullableDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	return &d.Decimal
}

func toGeofenceResponse(g *database.Geofence) geofenceResponse {
	return geofenceResponse{
		ID:                  g.ID,
		UserID:              g.UserID,
		Name:                g.Name,
		Description:         g.Description,
		Type:                string(g.Kind),
		CenterLatitude:      nullableDecimal(g.CenterLat),
		CenterLongitude:     nullableDecimal(g.CenterLon),
		RadiusMeters:        nullableDecimal(g.RadiusMeters),
		PolygonVertices:     g.PolygonVertices,
		MinLatitude:         nullableDecimal(g.MinLat),
		MaxLatitude:         nullableDecimal(g.MaxLat),
		MinLongitude:        nullableDecimal(g.MinLon),
		MaxLongitude:        nullableDecimal(g.MaxLon),
		Status:              g.Status,
		NotifyOnEnter:       g.NotifyOnEnter,
		NotifyOnExit:        g.NotifyOnExit,
		NotificationMessage: g.NotificationMessage,
		EnableSound:         g.EnableSound,
		EnablePush:          g.EnablePush,
		EnableTelegram:      g.EnableTelegram,
		Metadata:            g.Metadata,
		CreatedAt:           g.CreatedAt,
		UpdatedAt:           g.UpdatedAt,
	}
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// CreateGeofence creates a geofence after validating its geometry
func (h *GeofenceHandler) CreateGeofence(c *gin.Context) {
	var req createGeofenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	geofence := &database.Geofence{
		UserID:              req.UserID,
		Name:                req.Name,
		Description:         req.Description,
		Kind:                geometry.ShapeKind(req.Type),
		CenterLat:           toNullDecimal(req.CenterLatitude),
		CenterLon:           toNullDecimal(req.CenterLongitude),
		RadiusMeters:        toNullDecimal(req.RadiusMeters),
		MinLat:              toNullDecimal(req.MinLatitude),
		MaxLat:              toNullDecimal(req.MaxLatitude),
		MinLon:              toNullDecimal(req.MinLongitude),
		MaxLon:              toNullDecimal(req.MaxLongitude),
		NotifyOnEnter:       boolOr(req.NotifyOnEnter, true),
		NotifyOnExit:        boolOr(req.NotifyOnExit, true),
		NotificationMessage: req.NotificationMessage,
		EnableSound:         boolOr(req.EnableSound, true),
		EnablePush:          boolOr(req.EnablePush, true),
		EnableTelegram:      boolOr(req.EnableTelegram, false),
		Metadata:            req.Metadata,
	}
	if len(req.PolygonVertices) > 0 {
		vertices, err := json.Marshal(req.PolygonVertices)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid polygon vertices"})
			return
		}
		geofence.PolygonVertices = vertices
	}

	// Reject malformed geometry before it reaches the evaluator
	shape, err := geofence.Shape()
	if err == nil {
		err = geometry.Validate(shape)
	}
	if err != nil {
		if errors.Is(err, geometry.ErrInvalidShape) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate geometry"})
		return
	}

	if err := h.store.InsertGeofence(c.Request.Context(), geofence); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create geofence"})
		return
	}

	c.JSON(http.StatusCreated, toGeofenceResponse(geofence))
}

func (h *GeofenceHandler) geofenceID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("geofence_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid geofence id"})
		return 0, false
	}
	return id, true
}

// GetGeofence retrieves one geofence
func (h *GeofenceHandler) GetGeofence(c *gin.Context) {
	id, ok := h.geofenceID(c)
	if !ok {
		return
	}

	geofence, err := h.store.GetGeofence(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch geofence"})
		return
	}
	if geofence == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "geofence not found"})
		return
	}

	c.JSON(http.StatusOK, toGeofenceResponse(geofence))
}

// UpdateGeofence applies a partial update. Geometry is immutable; create a
// new geofence to change the shape.
func (h *GeofenceHandler) UpdateGeofence(c *gin.Context) {
	id, ok := h.geofenceID(c)
	if !ok {
		return
	}

	var req updateGeofenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	geofence, err := h.store.UpdateGeofence(c.Request.Context(), id, database.GeofenceUpdate{
		Name:                req.Name,
		Description:         req.Description,
		Status:              req.Status,
		NotifyOnEnter:       req.NotifyOnEnter,
		NotifyOnExit:        req.NotifyOnExit,
		NotificationMessage: req.NotificationMessage,
		EnableSound:         req.EnableSound,
		EnablePush:          req.EnablePush,
		EnableTelegram:      req.EnableTelegram,
		Metadata:            req.Metadata,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update geofence"})
		return
	}
	if geofence == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "geofence not found"})
		return
	}

	c.JSON(http.StatusOK, toGeofenceResponse(geofence))
}

// DeleteGeofence removes a geofence
func (h *GeofenceHandler) DeleteGeofence(c *gin.Context) {
	id, ok := h.geofenceID(c)
	if !ok {
		return
	}

	deleted, err := h.store.DeleteGeofence(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete geofence"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "geofence not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListUserGeofences retrieves all geofences owned by a user
func (h *GeofenceHandler) ListUserGeofences(c *gin.Context) {
	geofences, err := h.store.ListGeofencesByUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch geofences"})
		return
	}

	results := make([]geofenceResponse, len(geofences))
	for i, g := range geofences {
		results[i] = toGeofenceResponse(g)
	}
	c.JSON(http.StatusOK, results)
}

type deviceGeofenceResponse struct {
	GeofenceID    int64      `json:"geofence_id"`
	IsInside      bool       `json:"is_inside"`
	LastEnteredAt *time.Time `json:"last_entered_at,omitempty"`
	LastExitedAt  *time.Time `json:"last_exited_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (h *GeofenceHandler) resolvePair(c *gin.Context) (*database.Device, int64, bool) {
	geofenceID, ok := h.geofenceID(c)
	if !ok {
		return nil, 0, false
	}

	device, err := h.store.GetDeviceByDeviceID(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch device"})
		return nil, 0, false
	}
	if device == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return nil, 0, false
	}

	return device, geofenceID, true
}

// LinkGeofence starts tracking a (device, geofence) pair
func (h *GeofenceHandler) LinkGeofence(c *gin.Context) {
	device, geofenceID, ok := h.resolvePair(c)
	if !ok {
		return
	}

	geofence, err := h.store.GetGeofence(c.Request.Context(), geofenceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch geofence"})
		return
	}
	if geofence == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "geofence not found"})
		return
	}

	state, err := h.store.LinkDeviceGeofence(c.Request.Context(), device.ID, geofenceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to link geofence"})
		return
	}

	c.JSON(http.StatusCreated, deviceGeofenceResponse{
		GeofenceID:    state.GeofenceID,
		IsInside:      state.IsInside,
		LastEnteredAt: state.LastEnteredAt,
		LastExitedAt:  state.LastExitedAt,
		CreatedAt:     state.CreatedAt,
		UpdatedAt:     state.UpdatedAt,
	})
}

// UnlinkGeofence stops tracking a (device, geofence) pair
func (h *GeofenceHandler) UnlinkGeofence(c *gin.Context) {
	device, geofenceID, ok := h.resolvePair(c)
	if !ok {
		return
	}

	unlinked, err := h.store.UnlinkDeviceGeofence(c.Request.Context(), device.ID, geofenceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unlink geofence"})
		return
	}
	if !unlinked {
		c.JSON(http.StatusNotFound, gin.H{"error": "geofence not linked"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListDeviceGeofences retrieves the tracking states for a device
func (h *GeofenceHandler) ListDeviceGeofences(c *gin.Context) {
	device, err := h.store.GetDeviceByDeviceID(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch device"})
		return
	}
	if device == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	states, err := h.store.ListDeviceGeofenceStates(c.Request.Context(), device.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch geofence states"})
		return
	}

	results := make([]deviceGeofenceResponse, len(states))
	for i, s := range states {
		results[i] = deviceGeofenceResponse{
			GeofenceID:    s.GeofenceID,
			IsInside:      s.IsInside,
			LastEnteredAt: s.LastEnteredAt,
			LastExitedAt:  s.LastExitedAt,
			CreatedAt:     s.CreatedAt,
			UpdatedAt:     s.UpdatedAt,
		}
	}
	c.JSON(http.StatusOK, results)
}
