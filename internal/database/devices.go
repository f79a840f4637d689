package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const deviceColumns = `id, device_id, user_id, name, platform, status, fcm_token,
	apns_token, telegram_chat_id, metadata, last_seen, created_at, updated_at`

func scanDevice(row interface{ Scan(...any) error }) (*Device, error) {
	var d Device
	err := row.Scan(
		&d.ID,
		&d.DeviceID,
		&d.UserID,
		&d.Name,
		&d.Platform,
		&d.Status,
		&d.FCMToken,
		&d.APNSToken,
		&d.TelegramChatID,
		&d.Metadata,
		&d.LastSeen,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// InsertDevice inserts a new device and fills in its generated fields
func (db *DB) InsertDevice(ctx context.Context, d *Device) error {
	query := `
		INSERT INTO devices (device_id, user_id, name, platform, status,
			fcm_token, apns_token, telegram_chat_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, status, created_at, updated_at
	`

	status := d.Status
	if status == "" {
		status = DeviceStatusActive
	}

	return db.QueryRowContext(
		ctx,
		query,
		d.DeviceID,
		d.UserID,
		d.Name,
		d.Platform,
		status,
		d.FCMToken,
		d.APNSToken,
		d.TelegramChatID,
		nullJSON(d.Metadata),
	).Scan(&d.ID, &d.Status, &d.CreatedAt, &d.UpdatedAt)
}

// GetDeviceByDeviceID retrieves a device by its external identifier.
// Returns (nil, nil) when the device does not exist.
func (db *DB) GetDeviceByDeviceID(ctx context.Context, deviceID string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = $1`
	return scanDevice(db.QueryRowContext(ctx, query, deviceID))
}

// ListDevicesByUser retrieves all devices owned by a user
func (db *DB) ListDevicesByUser(ctx context.Context, userID string) ([]*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE user_id = $1 ORDER BY created_at`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}

	return devices, rows.Err()
}

// DeviceUpdate holds the mutable device fields; nil fields are left unchanged
type DeviceUpdate struct {
	Name           *string
	FCMToken       *string
	APNSToken      *string
	TelegramChatID *string
	Status         *string
	Metadata       json.RawMessage
}

// UpdateDevice applies a partial update and returns the updated device.
// Returns (nil, nil) when the device does not exist.
func (db *DB) UpdateDevice(ctx context.Context, deviceID string, upd DeviceUpdate) (*Device, error) {
	query := `
		UPDATE devices
		SET name = COALESCE($2, name),
		    fcm_token = COALESCE($3, fcm_token),
		    apns_token = COALESCE($4, apns_token),
		    telegram_chat_id = COALESCE($5, telegram_chat_id),
		    status = COALESCE($6, status),
		    metadata = COALESCE($7, metadata),
		    updated_at = CURRENT_TIMESTAMP
		WHERE device_id = $1
		RETURNING ` + deviceColumns

	return scanDevice(db.QueryRowContext(
		ctx,
		query,
		deviceID,
		upd.Name,
		upd.FCMToken,
		upd.APNSToken,
		upd.TelegramChatID,
		upd.Status,
		nullJSON(upd.Metadata),
	))
}

// DeleteDevice removes a device and (via cascade) its locations, states and
// notifications. Returns false when the device does not exist.
func (db *DB) DeleteDevice(ctx context.Context, deviceID string) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM devices WHERE device_id = $1`, deviceID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// TouchDeviceLastSeen updates the device's last_seen timestamp
func (db *DB) TouchDeviceLastSeen(ctx context.Context, deviceID string, seenAt time.Time) error {
	_, err := db.ExecContext(
		ctx,
		`UPDATE devices
		SET last_seen = GREATEST(COALESCE(last_seen, $2), $2), updated_at = CURRENT_TIMESTAMP
		WHERE device_id = $1`,
		deviceID,
		seenAt,
	)
	return err
}

// nullJSON maps empty JSON payloads to NULL
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
