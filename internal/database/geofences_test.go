package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	return &DB{mockDB}, mock, func() { _ = mockDB.Close() }
}

func TestListActiveAssociations(t *testing.T) {
	db, mock, closeDB := newMockDB(t)
	defer closeDB()

	now := time.Now()
	entered := now.Add(-time.Hour)
	columns := []string{
		"id", "user_id", "name", "description", "geofence_type",
		"center_latitude", "center_longitude", "radius_meters", "polygon_vertices",
		"min_latitude", "max_latitude", "min_longitude", "max_longitude",
		"status", "notify_on_enter", "notify_on_exit", "notification_message",
		"enable_sound", "enable_push", "enable_telegram", "metadata", "created_at", "updated_at",
		"is_inside", "last_entered_at", "last_exited_at",
	}
	rows := sqlmock.NewRows(columns).AddRow(
		7, "user-1", "Home", nil, "circle",
		"42.0", "74.0", "500", nil,
		nil, nil, nil, nil,
		"active", true, true, nil,
		true, true, false, nil, now, now,
		true, entered, nil,
	)

	mock.ExpectQuery(`JOIN geofences g ON g.id = dg.geofence_id`).
		WithArgs(int64(1)).
		WillReturnRows(rows)

	assocs, err := db.ListActiveAssociations(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(assocs) != 1 {
		t.Fatalf("expected 1 association, got %d", len(assocs))
	}

	assoc := assocs[0]
	if assoc.Geofence.ID != 7 || assoc.Geofence.Name != "Home" {
		t.Errorf("unexpected geofence %+v", assoc.Geofence)
	}
	if !assoc.IsInside {
		t.Error("expected is_inside true")
	}
	if assoc.LastEnteredAt == nil || !assoc.LastEnteredAt.Equal(entered) {
		t.Errorf("unexpected last_entered_at %v", assoc.LastEnteredAt)
	}
	if !assoc.Geofence.CenterLat.Valid || !assoc.Geofence.CenterLat.Decimal.Equal(decimal.RequireFromString("42.0")) {
		t.Errorf("unexpected center latitude %+v", assoc.Geofence.CenterLat)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpsertDeviceGeofenceState(t *testing.T) {
	db, mock, closeDB := newMockDB(t)
	defer closeDB()

	entered := time.Now()
	mock.ExpectExec(`INSERT INTO device_geofences`).
		WithArgs(int64(1), int64(7), true, entered, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := db.UpsertDeviceGeofenceState(context.Background(), 1, 7, true, &entered, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpsertDeviceGeofenceStateError(t *testing.T) {
	db, mock, closeDB := newMockDB(t)
	defer closeDB()

	mock.ExpectExec(`INSERT INTO device_geofences`).
		WillReturnError(sqlmock.ErrCancelled)

	err := db.UpsertDeviceGeofenceState(context.Background(), 1, 7, false, nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGetGeofenceNotFound(t *testing.T) {
	db, mock, closeDB := newMockDB(t)
	defer closeDB()

	columns := []string{"id"}
	mock.ExpectQuery(`FROM geofences WHERE id =`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(columns))

	geofence, err := db.GetGeofence(context.Background(), 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if geofence != nil {
		t.Errorf("expected nil geofence, got %+v", geofence)
	}
}

func TestDeleteGeofence(t *testing.T) {
	db, mock, closeDB := newMockDB(t)
	defer closeDB()

	mock.ExpectExec(`DELETE FROM geofences WHERE id = (.+)`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := db.DeleteGeofence(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Error("expected deleted true")
	}
}

func TestDeleteGeofenceMissing(t *testing.T) {
	db, mock, closeDB := newMockDB(t)
	defer closeDB()

	mock.ExpectExec(`DELETE FROM geofences WHERE id = (.+)`).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := db.DeleteGeofence(context.Background(), 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Error("expected deleted false")
	}
}
