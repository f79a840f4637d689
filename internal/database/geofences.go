package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

const geofenceColumns = `id, user_id, name, description, geofence_type,
	center_latitude, center_longitude, radius_meters, polygon_vertices,
	min_latitude, max_latitude, min_longitude, max_longitude,
	status, notify_on_enter, notify_on_exit, notification_message,
	enable_sound, enable_push, enable_telegram, metadata, created_at, updated_at`

// prefixColumns qualifies a comma-separated column list with a table alias
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func scanGeofence(row interface{ Scan(...any) error }, g *Geofence) error {
	return row.Scan(
		&g.ID,
		&g.UserID,
		&g.Name,
		&g.Description,
		&g.Kind,
		&g.CenterLat,
		&g.CenterLon,
		&g.RadiusMeters,
		&g.PolygonVertices,
		&g.MinLat,
		&g.MaxLat,
		&g.MinLon,
		&g.MaxLon,
		&g.Status,
		&g.NotifyOnEnter,
		&g.NotifyOnExit,
		&g.NotificationMessage,
		&g.EnableSound,
		&g.EnablePush,
		&g.EnableTelegram,
		&g.Metadata,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
}

// InsertGeofence inserts a new geofence and fills in its generated fields
func (db *DB) InsertGeofence(ctx context.Context, g *Geofence) error {
	query := `
		INSERT INTO geofences (user_id, name, description, geofence_type,
			center_latitude, center_longitude, radius_meters, polygon_vertices,
			min_latitude, max_latitude, min_longitude, max_longitude,
			notify_on_enter, notify_on_exit, notification_message,
			enable_sound, enable_push, enable_telegram, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, status, created_at, updated_at
	`

	return db.QueryRowContext(
		ctx,
		query,
		g.UserID,
		g.Name,
		g.Description,
		g.Kind,
		g.CenterLat,
		g.CenterLon,
		g.RadiusMeters,
		nullJSON(g.PolygonVertices),
		g.MinLat,
		g.MaxLat,
		g.MinLon,
		g.MaxLon,
		g.NotifyOnEnter,
		g.NotifyOnExit,
		g.NotificationMessage,
		g.EnableSound,
		g.EnablePush,
		g.EnableTelegram,
		nullJSON(g.Metadata),
	).Scan(&g.ID, &g.Status, &g.CreatedAt, &g.UpdatedAt)
}

// GetGeofence retrieves a geofence by ID. Returns (nil, nil) when absent.
func (db *DB) GetGeofence(ctx context.Context, id int64) (*Geofence, error) {
	query := `SELECT ` + geofenceColumns + ` FROM geofences WHERE id = $1`

	var g Geofence
	err := scanGeofence(db.QueryRowContext(ctx, query, id), &g)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGeofencesByUser retrieves all geofences owned by a user
func (db *DB) ListGeofencesByUser(ctx context.Context, userID string) ([]*Geofence, error) {
	query := `SELECT ` + geofenceColumns + ` FROM geofences WHERE user_id = $1 ORDER BY created_at`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var geofences []*Geofence
	for rows.Next() {
		var g Geofence
		if err := scanGeofence(rows, &g); err != nil {
			return nil, err
		}
		geofences = append(geofences, &g)
	}

	return geofences, rows.Err()
}

// GeofenceUpdate holds the mutable geofence fields; nil fields are left unchanged
type GeofenceUpdate struct {
	Name                *string
	Description         *string
	Status              *string
	NotifyOnEnter       *bool
	NotifyOnExit        *bool
	NotificationMessage *string
	EnableSound         *bool
	EnablePush          *bool
	EnableTelegram      *bool
	Metadata            json.RawMessage
}

// UpdateGeofence applies a partial update and returns the updated geofence.
// Returns (nil, nil) when the geofence does not exist. Shape parameters are
// immutable after creation; create a new geofence to change geometry.
func (db *DB) UpdateGeofence(ctx context.Context, id int64, upd GeofenceUpdate) (*Geofence, error) {
	query := `
		UPDATE geofences
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    status = COALESCE($4, status),
		    notify_on_enter = COALESCE($5, notify_on_enter),
		    notify_on_exit = COALESCE($6, notify_on_exit),
		    notification_message = COALESCE($7, notification_message),
		    enable_sound = COALESCE($8, enable_sound),
		    enable_push = COALESCE($9, enable_push),
		    enable_telegram = COALESCE($10, enable_telegram),
		    metadata = COALESCE($11, metadata),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING ` + geofenceColumns

	var g Geofence
	err := scanGeofence(db.QueryRowContext(
		ctx,
		query,
		id,
		upd.Name,
		upd.Description,
		upd.Status,
		upd.NotifyOnEnter,
		upd.NotifyOnExit,
		upd.NotificationMessage,
		upd.EnableSound,
		upd.EnablePush,
		upd.EnableTelegram,
		nullJSON(upd.Metadata),
	), &g)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// DeleteGeofence removes a geofence and (via cascade) its device states.
// Returns false when the geofence does not exist.
func (db *DB) DeleteGeofence(ctx context.Context, id int64) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM geofences WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// LinkDeviceGeofence creates the tracking state row for a (device, geofence)
// pair. The state starts as is_inside=false; linking an already linked pair
// is a no-op that returns the existing state.
func (db *DB) LinkDeviceGeofence(ctx context.Context, deviceID, geofenceID int64) (*DeviceGeofence, error) {
	query := `
		INSERT INTO device_geofences (device_id, geofence_id)
		VALUES ($1, $2)
		ON CONFLICT (device_id, geofence_id) DO UPDATE
		SET updated_at = device_geofences.updated_at
		RETURNING id, device_id, geofence_id, is_inside, last_entered_at, last_exited_at, created_at, updated_at
	`

	var dg DeviceGeofence
	err := db.QueryRowContext(ctx, query, deviceID, geofenceID).Scan(
		&dg.ID,
		&dg.DeviceID,
		&dg.GeofenceID,
		&dg.IsInside,
		&dg.LastEnteredAt,
		&dg.LastExitedAt,
		&dg.CreatedAt,
		&dg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &dg, nil
}

// UnlinkDeviceGeofence removes the tracking state row for a pair.
// Returns false when the pair was not linked.
func (db *DB) UnlinkDeviceGeofence(ctx context.Context, deviceID, geofenceID int64) (bool, error) {
	result, err := db.ExecContext(
		ctx,
		`DELETE FROM device_geofences WHERE device_id = $1 AND geofence_id = $2`,
		deviceID, geofenceID,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListDeviceGeofenceStates retrieves all tracking states for a device
func (db *DB) ListDeviceGeofenceStates(ctx context.Context, deviceID int64) ([]*DeviceGeofence, error) {
	query := `
		SELECT id, device_id, geofence_id, is_inside, last_entered_at, last_exited_at, created_at, updated_at
		FROM device_geofences
		WHERE device_id = $1
		ORDER BY geofence_id
	`

	rows, err := db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*DeviceGeofence
	for rows.Next() {
		var dg DeviceGeofence
		if err := rows.Scan(
			&dg.ID,
			&dg.DeviceID,
			&dg.GeofenceID,
			&dg.IsInside,
			&dg.LastEnteredAt,
			&dg.LastExitedAt,
			&dg.CreatedAt,
			&dg.UpdatedAt,
		); err != nil {
			return nil, err
		}
		states = append(states, &dg)
	}

	return states, rows.Err()
}

// ListActiveAssociations loads, for one device, every active geofence
// together with the last known containment state for that pair
func (db *DB) ListActiveAssociations(ctx context.Context, deviceID int64) ([]Association, error) {
	query := `
		SELECT ` + prefixColumns("g", geofenceColumns) + `,
		       dg.is_inside, dg.last_entered_at, dg.last_exited_at
		FROM device_geofences dg
		JOIN geofences g ON g.id = dg.geofence_id
		WHERE dg.device_id = $1 AND g.status = 'active'
		ORDER BY g.id
	`

	rows, err := db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assocs []Association
	for rows.Next() {
		var a Association
		if err := rows.Scan(
			&a.Geofence.ID,
			&a.Geofence.UserID,
			&a.Geofence.Name,
			&a.Geofence.Description,
			&a.Geofence.Kind,
			&a.Geofence.CenterLat,
			&a.Geofence.CenterLon,
			&a.Geofence.RadiusMeters,
			&a.Geofence.PolygonVertices,
			&a.Geofence.MinLat,
			&a.Geofence.MaxLat,
			&a.Geofence.MinLon,
			&a.Geofence.MaxLon,
			&a.Geofence.Status,
			&a.Geofence.NotifyOnEnter,
			&a.Geofence.NotifyOnExit,
			&a.Geofence.NotificationMessage,
			&a.Geofence.EnableSound,
			&a.Geofence.EnablePush,
			&a.Geofence.EnableTelegram,
			&a.Geofence.Metadata,
			&a.Geofence.CreatedAt,
			&a.Geofence.UpdatedAt,
			&a.IsInside,
			&a.LastEnteredAt,
			&a.LastExitedAt,
		); err != nil {
			return nil, err
		}
		assocs = append(assocs, a)
	}

	return assocs, rows.Err()
}

// UpsertDeviceGeofenceState records the containment outcome of one
// evaluation for one (device, geofence) pair. Timestamps are only advanced,
// never cleared: a nil enteredAt/exitedAt keeps the stored value.
func (db *DB) UpsertDeviceGeofenceState(ctx context.Context, deviceID, geofenceID int64, isInside bool, enteredAt, exitedAt *time.Time) error {
	query := `
		INSERT INTO device_geofences (device_id, geofence_id, is_inside, last_entered_at, last_exited_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_id, geofence_id) DO UPDATE
		SET is_inside = EXCLUDED.is_inside,
		    last_entered_at = COALESCE(EXCLUDED.last_entered_at, device_geofences.last_entered_at),
		    last_exited_at = COALESCE(EXCLUDED.last_exited_at, device_geofences.last_exited_at),
		    updated_at = CURRENT_TIMESTAMP
	`

	_, err := db.ExecContext(ctx, query, deviceID, geofenceID, isInside, enteredAt, exitedAt)
	return err
}
