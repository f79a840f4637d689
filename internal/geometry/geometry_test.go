package geometry

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func coord(t *testing.T, lat, lon string) Coordinate {
	t.Helper()
	c, err := NewCoordinate(decimal.RequireFromString(lat), decimal.RequireFromString(lon))
	if err != nil {
		t.Fatalf("NewCoordinate(%s, %s) failed: %v", lat, lon, err)
	}
	return c
}

func TestNewCoordinate_OutOfRange(t *testing.T) {
	_, err := NewCoordinate(decimal.NewFromInt(91), decimal.NewFromInt(0))
	if err == nil {
		t.Error("Expected error for latitude 91")
	}

	_, err = NewCoordinate(decimal.NewFromInt(0), decimal.NewFromInt(-181))
	if err == nil {
		t.Error("Expected error for longitude -181")
	}
}

func TestCircle_Contains(t *testing.T) {
	circle := Circle{
		Center:       coord(t, "0", "0"),
		RadiusMeters: decimal.NewFromInt(1000),
	}

	inside, err := Contains(circle, coord(t, "0", "0.0089"))
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !inside {
		t.Error("Point ~990m east of center should be inside 1000m circle")
	}

	inside, err = Contains(circle, coord(t, "0", "0.02"))
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if inside {
		t.Error("Point ~2224m east of center should be outside 1000m circle")
	}
}

func TestCircle_BoundaryInclusive(t *testing.T) {
	// A point at exactly distance = radius is inside
	dist := haversine(0, 0, 0, 0.009)
	circle := Circle{
		Center:       coord(t, "0", "0"),
		RadiusMeters: decimal.NewFromFloat(dist),
	}

	inside, err := Contains(circle, coord(t, "0.009", "0"))
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !inside {
		t.Error("Point at exactly radius distance should be inside")
	}
}

func TestCircle_CenterIsInside(t *testing.T) {
	circle := Circle{
		Center:       coord(t, "42.0", "74.0"),
		RadiusMeters: decimal.NewFromInt(500),
	}

	inside, err := Contains(circle, coord(t, "42.0", "74.0"))
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !inside {
		t.Error("Center point (distance 0) should be inside")
	}
}

func TestCircle_InvalidRadius(t *testing.T) {
	circle := Circle{
		Center:       coord(t, "0", "0"),
		RadiusMeters: decimal.Zero,
	}

	_, err := Contains(circle, coord(t, "0", "0"))
	if !errors.Is(err, ErrInvalidShape) {
		t.Errorf("Expected ErrInvalidShape, got %v", err)
	}
}

func TestPolygon_Contains(t *testing.T) {
	square := Polygon{Vertices: []Coordinate{
		coord(t, "0", "0"),
		coord(t, "0", "10"),
		coord(t, "10", "10"),
		coord(t, "10", "0"),
	}}

	inside, err := Contains(square, coord(t, "5", "5"))
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !inside {
		t.Error("Point (5,5) should be inside the square")
	}

	inside, err = Contains(square, coord(t, "15", "5"))
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if inside {
		t.Error("Point (15,5) should be outside the square")
	}
}

func TestPolygon_EdgeCountsAsInside(t *testing.T) {
	square := Polygon{Vertices: []Coordinate{
		coord(t, "0", "0"),
		coord(t, "0", "10"),
		coord(t, "10", "10"),
		coord(t, "10", "0"),
	}}

	inside, err := Contains(square, coord(t, "0", "5"))
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !inside {
		t.Error("Point on polygon edge should count as inside")
	}
}

func TestPolygon_TooFewVertices(t *testing.T) {
	degenerate := Polygon{Vertices: []Coordinate{
		coord(t, "0", "0"),
		coord(t, "1", "1"),
	}}

	_, err := Contains(degenerate, coord(t, "0", "0"))
	if !errors.Is(err, ErrInvalidShape) {
		t.Errorf("Expected ErrInvalidShape for 2-vertex polygon, got %v", err)
	}
}

func TestRect_Contains(t *testing.T) {
	rect := Rect{
		MinLat: decimal.RequireFromString("10"),
		MaxLat: decimal.RequireFromString("20"),
		MinLon: decimal.RequireFromString("30"),
		MaxLon: decimal.RequireFromString("40"),
	}

	inside, err := Contains(rect, coord(t, "15", "35"))
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !inside {
		t.Error("Point (15,35) should be inside the rectangle")
	}

	inside, err = Contains(rect, coord(t, "25", "35"))
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if inside {
		t.Error("Point (25,35) should be outside the rectangle")
	}
}

func TestRect_BoundaryInclusive(t *testing.T) {
	rect := Rect{
		MinLat: decimal.RequireFromString("10"),
		MaxLat: decimal.RequireFromString("20"),
		MinLon: decimal.RequireFromString("30"),
		MaxLon: decimal.RequireFromString("40"),
	}

	// Point exactly on min_lat is inside
	inside, err := Contains(rect, coord(t, "10", "35"))
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !inside {
		t.Error("Point on min_lat boundary should be inside")
	}
}

func TestRect_InvertedBounds(t *testing.T) {
	rect := Rect{
		MinLat: decimal.RequireFromString("20"),
		MaxLat: decimal.RequireFromString("10"),
		MinLon: decimal.RequireFromString("30"),
		MaxLon: decimal.RequireFromString("40"),
	}

	_, err := Contains(rect, coord(t, "15", "35"))
	if !errors.Is(err, ErrInvalidShape) {
		t.Errorf("Expected ErrInvalidShape for inverted bounds, got %v", err)
	}
}

func TestContains_NilShape(t *testing.T) {
	_, err := Contains(nil, coord(t, "0", "0"))
	if !errors.Is(err, ErrInvalidShape) {
		t.Errorf("Expected ErrInvalidShape for nil shape, got %v", err)
	}
}
