package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smukkama/geofence-server/internal/geometry"
)

// Device represents a tracked mobile device
type Device struct {
	ID             int64
	DeviceID       string
	UserID         string
	Name           *string
	Platform       string
	Status         string
	FCMToken       *string
	APNSToken      *string
	TelegramChatID *string
	Metadata       json.RawMessage
	LastSeen       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Device platform constants
const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
	PlatformWeb     = "web"
)

// Device status constants
const (
	DeviceStatusActive    = "active"
	DeviceStatusInactive  = "inactive"
	DeviceStatusSuspended = "suspended"
)

// Geofence represents a user-defined geographic zone with notification rules.
// Shape parameters are nullable columns; Shape() is the single place that
// turns them into a geometry.Shape variant.
type Geofence struct {
	ID          int64
	UserID      string
	Name        string
	Description *string
	Kind        geometry.ShapeKind

	// Circle parameters
	CenterLat    decimal.NullDecimal
	CenterLon    decimal.NullDecimal
	RadiusMeters decimal.NullDecimal

	// Polygon parameters: JSON array of [lat, lng] pairs
	PolygonVertices json.RawMessage

	// Rectangle parameters
	MinLat decimal.NullDecimal
	MaxLat decimal.NullDecimal
	MinLon decimal.NullDecimal
	MaxLon decimal.NullDecimal

	Status              string
	NotifyOnEnter       bool
	NotifyOnExit        bool
	NotificationMessage *string
	EnableSound         bool
	EnablePush          bool
	EnableTelegram      bool
	Metadata            json.RawMessage
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Geofence status constants
const (
	GeofenceStatusActive   = "active"
	GeofenceStatusInactive = "inactive"
	GeofenceStatusArchived = "archived"
)

// Shape builds the geometry variant for the geofence's declared kind. It
// fails with geometry.ErrInvalidShape when required parameters are absent,
// so a malformed geofence is never silently treated as "outside".
func (g *Geofence) Shape() (geometry.Shape, error) {
	switch g.Kind {
	case geometry.KindCircle:
		if !g.CenterLat.Valid || !g.CenterLon.Valid || !g.RadiusMeters.Valid {
			return nil, fmt.Errorf("%w: circle geofence %d missing center or radius", geometry.ErrInvalidShape, g.ID)
		}
		return geometry.Circle{
			Center: geometry.Coordinate{
				Lat: g.CenterLat.Decimal,
				Lon: g.CenterLon.Decimal,
			},
			RadiusMeters: g.RadiusMeters.Decimal,
		}, nil

	case geometry.KindPolygon:
		if len(g.PolygonVertices) == 0 {
			return nil, fmt.Errorf("%w: polygon geofence %d has no vertices", geometry.ErrInvalidShape, g.ID)
		}
		var pairs [][]decimal.Decimal
		if err := json.Unmarshal(g.PolygonVertices, &pairs); err != nil {
			return nil, fmt.Errorf("%w: polygon geofence %d vertices: %v", geometry.ErrInvalidShape, g.ID, err)
		}
		vertices := make([]geometry.Coordinate, 0, len(pairs))
		for i, pair := range pairs {
			if len(pair) != 2 {
				return nil, fmt.Errorf("%w: polygon geofence %d vertex %d is not a [lat, lng] pair", geometry.ErrInvalidShape, g.ID, i)
			}
			vertices = append(vertices, geometry.Coordinate{Lat: pair[0], Lon: pair[1]})
		}
		return geometry.Polygon{Vertices: vertices}, nil

	case geometry.KindRectangle:
		if !g.MinLat.Valid || !g.MaxLat.Valid || !g.MinLon.Valid || !g.MaxLon.Valid {
			return nil, fmt.Errorf("%w: rectangle geofence %d missing bounds", geometry.ErrInvalidShape, g.ID)
		}
		return geometry.Rect{
			MinLat: g.MinLat.Decimal,
			MaxLat: g.MaxLat.Decimal,
			MinLon: g.MinLon.Decimal,
			MaxLon: g.MaxLon.Decimal,
		}, nil

	default:
		return nil, fmt.Errorf("%w: geofence %d has unknown kind %q", geometry.ErrInvalidShape, g.ID, g.Kind)
	}
}

// DeviceGeofence tracks the last known containment state for one
// (device, geofence) pair
type DeviceGeofence struct {
	ID            int64
	DeviceID      int64
	GeofenceID    int64
	IsInside      bool
	LastEnteredAt *time.Time
	LastExitedAt  *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Association is a geofence together with the device's last known
// containment state, as loaded for one evaluation pass
type Association struct {
	Geofence      Geofence
	IsInside      bool
	LastEnteredAt *time.Time
	LastExitedAt  *time.Time
}

// Location represents one recorded device position
type Location struct {
	ID        int64
	DeviceID  int64
	Lat       decimal.Decimal
	Lon       decimal.Decimal
	Altitude  decimal.NullDecimal
	Accuracy  decimal.NullDecimal
	Speed     decimal.NullDecimal
	Heading   decimal.NullDecimal
	Address   *string
	City      *string
	Country   *string
	Timestamp time.Time
	CreatedAt time.Time
}

// Notification represents one queued or delivered notification
type Notification struct {
	ID                int64
	DeviceID          int64
	GeofenceID        *int64
	Type              string
	Title             string
	Message           string
	Priority          string
	EnableSound       bool
	Status            string
	EventType         *string
	LocationData      json.RawMessage
	FCMMessageID      *string
	TelegramMessageID *string
	ErrorMessage      *string
	RetryCount        int
	ScheduledAt       *time.Time
	SentAt            *time.Time
	DeliveredAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Notification type constants
const (
	NotificationTypePush     = "push"
	NotificationTypeTelegram = "telegram"
	NotificationTypeSMS      = "sms"
	NotificationTypeEmail    = "email"
)

// Notification status constants
const (
	NotificationStatusPending   = "pending"
	NotificationStatusSent      = "sent"
	NotificationStatusFailed    = "failed"
	NotificationStatusDelivered = "delivered"
)

// Notification priority constants
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// NotificationLog records one delivery attempt or status change
type NotificationLog struct {
	ID             int64
	NotificationID int64
	Action         string
	Details        json.RawMessage
	ErrorMessage   *string
	CreatedAt      time.Time
}
