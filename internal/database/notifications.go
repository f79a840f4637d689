package database

import (
	"context"
	"encoding/json"
)

const notificationColumns = `id, device_id, geofence_id, notification_type, title,
	message, priority, enable_sound, status, event_type, location_data,
	fcm_message_id, telegram_message_id, error_message, retry_count,
	scheduled_at, sent_at, delivered_at, created_at, updated_at`

func scanNotification(row interface{ Scan(...any) error }, n *Notification) error {
	return row.Scan(
		&n.ID,
		&n.DeviceID,
		&n.GeofenceID,
		&n.Type,
		&n.Title,
		&n.Message,
		&n.Priority,
		&n.EnableSound,
		&n.Status,
		&n.EventType,
		&n.LocationData,
		&n.FCMMessageID,
		&n.TelegramMessageID,
		&n.ErrorMessage,
		&n.RetryCount,
		&n.ScheduledAt,
		&n.SentAt,
		&n.DeliveredAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
}

// InsertNotification inserts a pending notification and fills in its
// generated fields
func (db *DB) InsertNotification(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (device_id, geofence_id, notification_type,
			title, message, priority, enable_sound, event_type, location_data, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, status, retry_count, created_at, updated_at
	`

	priority := n.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	return db.QueryRowContext(
		ctx,
		query,
		n.DeviceID,
		n.GeofenceID,
		n.Type,
		n.Title,
		n.Message,
		priority,
		n.EnableSound,
		n.EventType,
		nullJSON(n.LocationData),
		n.ScheduledAt,
	).Scan(&n.ID, &n.Status, &n.RetryCount, &n.CreatedAt, &n.UpdatedAt)
}

// ListNotificationsByDevice retrieves notifications for a device, newest first
func (db *DB) ListNotificationsByDevice(ctx context.Context, deviceID int64, limit, offset int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE device_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, deviceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		var n Notification
		if err := scanNotification(rows, &n); err != nil {
			return nil, err
		}
		notifications = append(notifications, &n)
	}

	return notifications, rows.Err()
}

// MarkNotificationSent records a successful delivery handoff. The provider
// message id lands in the column matching the notification's channel.
func (db *DB) MarkNotificationSent(ctx context.Context, id int64, fcmMessageID, telegramMessageID *string) error {
	query := `
		UPDATE notifications
		SET status = $2,
		    fcm_message_id = COALESCE($3, fcm_message_id),
		    telegram_message_id = COALESCE($4, telegram_message_id),
		    sent_at = CURRENT_TIMESTAMP,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	_, err := db.ExecContext(ctx, query, id, NotificationStatusSent, fcmMessageID, telegramMessageID)
	return err
}

// MarkNotificationFailed records a failed delivery attempt
func (db *DB) MarkNotificationFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE notifications
		SET status = $2,
		    error_message = $3,
		    retry_count = retry_count + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	_, err := db.ExecContext(ctx, query, id, NotificationStatusFailed, errorMessage)
	return err
}

// InsertNotificationLog appends one delivery audit entry
func (db *DB) InsertNotificationLog(ctx context.Context, notificationID int64, action string, details json.RawMessage, errorMessage *string) error {
	query := `
		INSERT INTO notification_logs (notification_id, action, details, error_message)
		VALUES ($1, $2, $3, $4)
	`

	_, err := db.ExecContext(ctx, query, notificationID, action, nullJSON(details), errorMessage)
	return err
}
