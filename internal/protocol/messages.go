package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smukkama/geofence-server/internal/geometry"
)

// LocationMessage is the internal message format for location reports on the
// raw locations topic. Coordinates travel as JSON numbers and are decoded
// into decimals so no precision is lost between ingest and evaluation.
type LocationMessage struct {
	DeviceID   string               `json:"device_id"`
	Latitude   decimal.Decimal      `json:"latitude"`
	Longitude  decimal.Decimal      `json:"longitude"`
	Altitude   *decimal.Decimal     `json:"altitude,omitempty"`
	Accuracy   *decimal.Decimal     `json:"accuracy,omitempty"`
	Speed      *decimal.Decimal     `json:"speed,omitempty"`
	Heading    *decimal.Decimal     `json:"heading,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
	ReceivedAt time.Time            `json:"received_at"`
}

// Coordinate returns the message's position as a validated coordinate
func (m *LocationMessage) Coordinate() (geometry.Coordinate, error) {
	return geometry.NewCoordinate(m.Latitude, m.Longitude)
}

// Validate checks the message's required fields and ranges
func (m *LocationMessage) Validate() error {
	if m.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if _, err := m.Coordinate(); err != nil {
		return err
	}
	if m.Heading != nil {
		if m.Heading.IsNegative() || m.Heading.GreaterThan(decimal.NewFromInt(360)) {
			return fmt.Errorf("heading %s out of range [0, 360]", m.Heading)
		}
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// EncodeLocationMessage encodes a LocationMessage to JSON
func EncodeLocationMessage(msg *LocationMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeLocationMessage decodes JSON to LocationMessage
func DecodeLocationMessage(data []byte) (*LocationMessage, error) {
	var msg LocationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
