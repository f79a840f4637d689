package database

import (
	"context"
	"database/sql"
	"strconv"
	"time"
)

const locationColumns = `id, device_id, latitude, longitude, altitude, accuracy,
	speed, heading, address, city, country, timestamp, created_at`

func scanLocation(row interface{ Scan(...any) error }, l *Location) error {
	return row.Scan(
		&l.ID,
		&l.DeviceID,
		&l.Lat,
		&l.Lon,
		&l.Altitude,
		&l.Accuracy,
		&l.Speed,
		&l.Heading,
		&l.Address,
		&l.City,
		&l.Country,
		&l.Timestamp,
		&l.CreatedAt,
	)
}

// InsertLocation inserts one recorded position
func (db *DB) InsertLocation(ctx context.Context, l *Location) error {
	query := `
		INSERT INTO locations (device_id, latitude, longitude, altitude,
			accuracy, speed, heading, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	return db.QueryRowContext(
		ctx,
		query,
		l.DeviceID,
		l.Lat,
		l.Lon,
		l.Altitude,
		l.Accuracy,
		l.Speed,
		l.Heading,
		l.Timestamp,
	).Scan(&l.ID, &l.CreatedAt)
}

// GetLatestLocation retrieves the most recent position for a device.
// Returns (nil, nil) when the device has no recorded positions.
func (db *DB) GetLatestLocation(ctx context.Context, deviceID int64) (*Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations
		WHERE device_id = $1 ORDER BY timestamp DESC LIMIT 1`

	var l Location
	err := scanLocation(db.QueryRowContext(ctx, query, deviceID), &l)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// LocationQuery bounds a location history listing
type LocationQuery struct {
	Limit     int
	Offset    int
	StartTime *time.Time
	EndTime   *time.Time
}

// ListLocations retrieves location history for a device, newest first
func (db *DB) ListLocations(ctx context.Context, deviceID int64, q LocationQuery) ([]*Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE device_id = $1`
	args := []any{deviceID}

	if q.StartTime != nil {
		args = append(args, *q.StartTime)
		query += ` AND timestamp >= $` + strconv.Itoa(len(args))
	}
	if q.EndTime != nil {
		args = append(args, *q.EndTime)
		query += ` AND timestamp <= $` + strconv.Itoa(len(args))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` ORDER BY timestamp DESC LIMIT $` + strconv.Itoa(len(args))
	args = append(args, q.Offset)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []*Location
	for rows.Next() {
		var l Location
		if err := scanLocation(rows, &l); err != nil {
			return nil, err
		}
		locations = append(locations, &l)
	}

	return locations, rows.Err()
}
