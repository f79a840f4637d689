package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/smukkama/geofence-server/internal/database"
	"github.com/smukkama/geofence-server/internal/geometry"
)

type mockGeofenceStore struct {
	insertFn     func(ctx context.Context, g *database.Geofence) error
	getFn        func(ctx context.Context, id int64) (*database.Geofence, error)
	getDeviceFn  func(ctx context.Context, deviceID string) (*database.Device, error)
	linkFn       func(ctx context.Context, deviceID, geofenceID int64) (*database.DeviceGeofence, error)
	unlinkFn     func(ctx context.Context, deviceID, geofenceID int64) (bool, error)
	listStatesFn func(ctx context.Context, deviceID int64) ([]*database.DeviceGeofence, error)
}

func (m *mockGeofenceStore) InsertGeofence(ctx context.Context, g *database.Geofence) error {
	return m.insertFn(ctx, g)
}

func (m *mockGeofenceStore) GetGeofence(ctx context.Context, id int64) (*database.Geofence, error) {
	return m.getFn(ctx, id)
}

func (m *mockGeofenceStore) ListGeofencesByUser(ctx context.Context, userID string) ([]*database.Geofence, error) {
	return nil, nil
}

func (m *mockGeofenceStore) UpdateGeofence(ctx context.Context, id int64, upd database.GeofenceUpdate) (*database.Geofence, error) {
	return nil, nil
}

func (m *mockGeofenceStore) DeleteGeofence(ctx context.Context, id int64) (bool, error) {
	return false, nil
}

func (m *mockGeofenceStore) GetDeviceByDeviceID(ctx context.Context, deviceID string) (*database.Device, error) {
	return m.getDeviceFn(ctx, deviceID)
}

func (m *mockGeofenceStore) LinkDeviceGeofence(ctx context.Context, deviceID, geofenceID int64) (*database.DeviceGeofence, error) {
	return m.linkFn(ctx, deviceID, geofenceID)
}

func (m *mockGeofenceStore) UnlinkDeviceGeofence(ctx context.Context, deviceID, geofenceID int64) (bool, error) {
	return m.unlinkFn(ctx, deviceID, geofenceID)
}

func (m *mockGeofenceStore) ListDeviceGeofenceStates(ctx context.Context, deviceID int64) ([]*database.DeviceGeofence, error) {
	return m.listStatesFn(ctx, deviceID)
}

func setupGeofenceRouter(store geofenceStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewGeofenceHandler(store)
	h.Register(r.Group(""))
	return r
}

func TestCreateGeofenceCircle(t *testing.T) {
	var inserted *database.Geofence
	store := &mockGeofenceStore{
		insertFn: func(_ context.Context, g *database.Geofence) error {
			g.ID = 7
			g.Status = database.GeofenceStatusActive
			inserted = g
			return nil
		},
	}

	r := setupGeofenceRouter(store)
	w := httptest.NewRecorder()

	body := `{
		"user_id": "user-1",
		"name": "Home",
		"type": "circle",
		"center_latitude": "42.0",
		"center_longitude": "74.0",
		"radius_meters": "500"
	}`
	req, _ := http.NewRequest("POST", "/geofences", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	if inserted == nil {
		t.Fatal("geofence was not inserted")
	}
	if inserted.Kind != geometry.KindCircle {
		t.Errorf("unexpected kind %q", inserted.Kind)
	}
	if !inserted.NotifyOnEnter || !inserted.NotifyOnExit {
		t.Error("notifications must default to enabled")
	}

	var resp geofenceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ID != 7 || resp.Type != "circle" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestCreateGeofenceMissingRadius(t *testing.T) {
	store := &mockGeofenceStore{
		insertFn: func(_ context.Context, g *database.Geofence) error {
			t.Fatal("invalid geofence must not be inserted")
			return nil
		},
	}

	r := setupGeofenceRouter(store)
	w := httptest.NewRecorder()

	body := `{
		"user_id": "user-1",
		"name": "Home",
		"type": "circle",
		"center_latitude": "42.0",
		"center_longitude": "74.0"
	}`
	req, _ := http.NewRequest("POST", "/geofences", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateGeofencePolygonTooFewVertices(t *testing.T) {
	store := &mockGeofenceStore{
		insertFn: func(_ context.Context, g *database.Geofence) error {
			t.Fatal("invalid geofence must not be inserted")
			return nil
		},
	}

	r := setupGeofenceRouter(store)
	w := httptest.NewRecorder()

	body := `{
		"user_id": "user-1",
		"name": "Broken",
		"type": "polygon",
		"polygon_vertices": [["0", "0"], ["0", "1"]]
	}`
	req, _ := http.NewRequest("POST", "/geofences", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLinkGeofence(t *testing.T) {
	store := &mockGeofenceStore{
		getDeviceFn: func(_ context.Context, deviceID string) (*database.Device, error) {
			return activeDevice(), nil
		},
		getFn: func(_ context.Context, id int64) (*database.Geofence, error) {
			return &database.Geofence{ID: id, Status: database.GeofenceStatusActive}, nil
		},
		linkFn: func(_ context.Context, deviceID, geofenceID int64) (*database.DeviceGeofence, error) {
			if deviceID != 1 || geofenceID != 7 {
				t.Fatalf("unexpected pair (%d, %d)", deviceID, geofenceID)
			}
			return &database.DeviceGeofence{ID: 3, DeviceID: deviceID, GeofenceID: geofenceID}, nil
		},
	}

	r := setupGeofenceRouter(store)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/devices/device-abc/geofences/7", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp deviceGeofenceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.GeofenceID != 7 || resp.IsInside {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestUnlinkGeofenceNotLinked(t *testing.T) {
	store := &mockGeofenceStore{
		getDeviceFn: func(_ context.Context, deviceID string) (*database.Device, error) {
			return activeDevice(), nil
		},
		unlinkFn: func(_ context.Context, deviceID, geofenceID int64) (bool, error) {
			return false, nil
		},
	}

	r := setupGeofenceRouter(store)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/devices/device-abc/geofences/7", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
