package geometry

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const earthRadiusMeters = 6371000

// ErrInvalidShape is returned when a shape's parameters are missing or
// structurally invalid for its kind.
var ErrInvalidShape = &ShapeError{"invalid shape"}

// ShapeError represents a shape validation error
type ShapeError struct {
	msg string
}

func (e *ShapeError) Error() string {
	return e.msg
}

// Coordinate is a WGS84 position. Latitude and longitude are kept as decimals
// so repeated comparisons (rectangle bounds, stored coordinates) are exact;
// conversion to float64 happens once, at the trigonometry boundary.
type Coordinate struct {
	Lat decimal.Decimal
	Lon decimal.Decimal
}

// NewCoordinate builds a validated coordinate
func NewCoordinate(lat, lon decimal.Decimal) (Coordinate, error) {
	c := Coordinate{Lat: lat, Lon: lon}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Validate checks that the coordinate is within WGS84 bounds
func (c Coordinate) Validate() error {
	if c.Lat.LessThan(decimal.NewFromInt(-90)) || c.Lat.GreaterThan(decimal.NewFromInt(90)) {
		return fmt.Errorf("latitude %s out of range [-90, 90]", c.Lat)
	}
	if c.Lon.LessThan(decimal.NewFromInt(-180)) || c.Lon.GreaterThan(decimal.NewFromInt(180)) {
		return fmt.Errorf("longitude %s out of range [-180, 180]", c.Lon)
	}
	return nil
}

func (c Coordinate) floats() (lat, lon float64) {
	return c.Lat.InexactFloat64(), c.Lon.InexactFloat64()
}

// ShapeKind identifies the geometric variant of a geofence
type ShapeKind string

const (
	KindCircle    ShapeKind = "circle"
	KindPolygon   ShapeKind = "polygon"
	KindRectangle ShapeKind = "rectangle"
)

// Shape is the tagged variant of geofence geometries. The concrete types are
// Circle, Polygon and Rect; a shape with missing parameters cannot be
// constructed from a valid value of one of these types.
type Shape interface {
	Kind() ShapeKind
	validate() error
	contains(c Coordinate) bool
}

// Validate checks that the shape's parameters are structurally valid for its
// kind. It fails with ErrInvalidShape otherwise.
func Validate(s Shape) error {
	if s == nil {
		return fmt.Errorf("%w: no shape", ErrInvalidShape)
	}
	if err := s.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	return nil
}

// Contains reports whether the coordinate lies within the shape. It fails
// with ErrInvalidShape when the shape's parameters are structurally invalid.
func Contains(s Shape, c Coordinate) (bool, error) {
	if err := Validate(s); err != nil {
		return false, err
	}
	return s.contains(c), nil
}

// Circle is a center point with a radius in meters. Containment uses
// great-circle (haversine) surface distance; the boundary is inclusive.
type Circle struct {
	Center       Coordinate
	RadiusMeters decimal.Decimal
}

func (s Circle) Kind() ShapeKind { return KindCircle }

func (s Circle) validate() error {
	if err := s.Center.Validate(); err != nil {
		return fmt.Errorf("circle center: %v", err)
	}
	if !s.RadiusMeters.IsPositive() {
		return fmt.Errorf("circle radius %s must be positive", s.RadiusMeters)
	}
	return nil
}

func (s Circle) contains(c Coordinate) bool {
	lat, lon := c.floats()
	centerLat, centerLon := s.Center.floats()
	dist := haversine(lat, lon, centerLat, centerLon)
	return dist <= s.RadiusMeters.InexactFloat64()
}

// Polygon is an ordered list of at least three vertices. The point-in-polygon
// test ray-casts over a planar (lng, lat) projection, which is accurate
// enough at geofence scale; points exactly on an edge count as inside.
type Polygon struct {
	Vertices []Coordinate
}

func (s Polygon) Kind() ShapeKind { return KindPolygon }

func (s Polygon) validate() error {
	if len(s.Vertices) < 3 {
		return fmt.Errorf("polygon has %d vertices, need at least 3", len(s.Vertices))
	}
	for i, v := range s.Vertices {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("polygon vertex %d: %v", i, err)
		}
	}
	return nil
}

func (s Polygon) contains(c Coordinate) bool {
	lat, lon := c.floats()

	// Treat the boundary as inside so a point on an edge classifies
	// consistently regardless of ray direction.
	n := len(s.Vertices)
	for i := 0; i < n; i++ {
		aLat, aLon := s.Vertices[i].floats()
		bLat, bLon := s.Vertices[(i+1)%n].floats()
		if onSegment(lon, lat, aLon, aLat, bLon, bLat) {
			return true
		}
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		iLat, iLon := s.Vertices[i].floats()
		jLat, jLon := s.Vertices[j].floats()
		if (iLat > lat) != (jLat > lat) &&
			lon < (jLon-iLon)*(lat-iLat)/(jLat-iLat)+iLon {
			inside = !inside
		}
	}
	return inside
}

// Rect is an axis-aligned bounding box. Bounds are inclusive and compared as
// decimals, so a point exactly on min_lat is inside.
type Rect struct {
	MinLat decimal.Decimal
	MaxLat decimal.Decimal
	MinLon decimal.Decimal
	MaxLon decimal.Decimal
}

func (s Rect) Kind() ShapeKind { return KindRectangle }

func (s Rect) validate() error {
	min := Coordinate{Lat: s.MinLat, Lon: s.MinLon}
	max := Coordinate{Lat: s.MaxLat, Lon: s.MaxLon}
	if err := min.Validate(); err != nil {
		return fmt.Errorf("rectangle min corner: %v", err)
	}
	if err := max.Validate(); err != nil {
		return fmt.Errorf("rectangle max corner: %v", err)
	}
	if s.MinLat.GreaterThan(s.MaxLat) {
		return fmt.Errorf("rectangle min_lat %s > max_lat %s", s.MinLat, s.MaxLat)
	}
	if s.MinLon.GreaterThan(s.MaxLon) {
		return fmt.Errorf("rectangle min_lon %s > max_lon %s", s.MinLon, s.MaxLon)
	}
	return nil
}

func (s Rect) contains(c Coordinate) bool {
	return !c.Lat.LessThan(s.MinLat) && !c.Lat.GreaterThan(s.MaxLat) &&
		!c.Lon.LessThan(s.MinLon) && !c.Lon.GreaterThan(s.MaxLon)
}

// haversine returns the great-circle distance in meters between two points
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// onSegment reports whether (x, y) lies on the segment (ax, ay)-(bx, by)
func onSegment(x, y, ax, ay, bx, by float64) bool {
	const eps = 1e-12
	cross := (bx-ax)*(y-ay) - (by-ay)*(x-ax)
	if math.Abs(cross) > eps {
		return false
	}
	return x >= math.Min(ax, bx)-eps && x <= math.Max(ax, bx)+eps &&
		y >= math.Min(ay, by)-eps && y <= math.Max(ay, by)+eps
}
