package geo

import (
	"errors"
	"fmt"
	"math"
)

const (
	// EarthCircumference is the equatorial circumference used by the Web-Mercator tile scheme (meters)
	EarthCircumference = 40075016.686

	// DefaultZoom matches the precision of the map tiles the planner is drawn over
	DefaultZoom = 18

	// MaxMercatorLatitude is the latitude at which the spherical Mercator projection is clipped
	MaxMercatorLatitude = 85.05112878
)

var (
	// ErrInvalidCoordinate is returned for NaN or infinite coordinates, or coordinates outside the globe
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrPoleProximity is returned for latitudes the Mercator tile projection cannot represent
	ErrPoleProximity = errors.New("coordinate too close to pole")
)

// Frame is a local tangent-plane frame anchored at an origin.
// Local X is east, local Z is south and local Y is altitude, all in meters.
type Frame struct {
	OriginLat float64 `json:"origin_lat"`
	OriginLon float64 `json:"origin_lon"`
	Zoom      int     `json:"zoom"`
}

// NewFrame creates a frame anchored at lat/lon using the default zoom level
func NewFrame(lat, lon float64) (Frame, error) {
	return NewFrameWithZoom(lat, lon, DefaultZoom)
}

// NewFrameWithZoom creates a frame anchored at lat/lon with an explicit reference zoom
func NewFrameWithZoom(lat, lon float64, zoom int) (Frame, error) {
	if err := CheckLatLon(lat, lon); err != nil {
		return Frame{}, fmt.Errorf("frame origin: %w", err)
	}
	if zoom < 0 || zoom > 30 {
		return Frame{}, fmt.Errorf("invalid zoom level: %d", zoom)
	}
	return Frame{OriginLat: lat, OriginLon: lon, Zoom: zoom}, nil
}

// MetersPerTile returns the ground size of one tile at the origin latitude
func (f Frame) MetersPerTile() float64 {
	return EarthCircumference * math.Cos(toRadians(f.OriginLat)) / f.tiles()
}

// ToLocal converts a geodetic position to the local frame
func (f Frame) ToLocal(lat, lon, alt float64) (Vec3, error) {
	if err := CheckPosition(lat, lon, alt); err != nil {
		return Vec3{}, err
	}

	x0, y0 := f.tileXY(f.OriginLat, f.OriginLon)
	x, y := f.tileXY(lat, lon)
	mpt := f.MetersPerTile()

	p := Vec3{(x - x0) * mpt, alt, (y - y0) * mpt}
	if !IsFinite(p) {
		return Vec3{}, fmt.Errorf("%w: local position not finite for %f,%f", ErrInvalidCoordinate, lat, lon)
	}
	return p, nil
}

// ToGeodetic converts a local frame position back to latitude, longitude and altitude
func (f Frame) ToGeodetic(p Vec3) (lat, lon, alt float64, err error) {
	if !IsFinite(p) {
		return 0, 0, 0, fmt.Errorf("%w: local position %v", ErrInvalidCoordinate, p)
	}
	mpt := f.MetersPerTile()
	if mpt == 0 || math.IsNaN(mpt) {
		return 0, 0, 0, fmt.Errorf("%w: frame origin %f", ErrPoleProximity, f.OriginLat)
	}

	x0, y0 := f.tileXY(f.OriginLat, f.OriginLon)
	n := f.tiles()
	x := x0 + p.X()/mpt
	y := y0 + p.Z()/mpt

	lon = x/n*360 - 180
	lat = toDegrees(math.Atan(math.Sinh(math.Pi * (1 - 2*y/n))))
	alt = p.Y()

	if err := CheckPosition(lat, lon, alt); err != nil {
		return 0, 0, 0, err
	}
	return lat, lon, alt, nil
}

func (f Frame) tiles() float64 {
	return math.Exp2(float64(f.Zoom))
}

// tileXY projects to fractional Web-Mercator tile coordinates at the frame zoom
func (f Frame) tileXY(lat, lon float64) (float64, float64) {
	n := f.tiles()
	latRad := toRadians(lat)
	x := (lon + 180) / 360 * n
	y := (1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n
	return x, y
}

// CheckLatLon reports whether lat/lon are finite, on the globe and away from the poles
func CheckLatLon(lat, lon float64) error {
	if !isFinite(lat) || !isFinite(lon) {
		return fmt.Errorf("%w: %v,%v", ErrInvalidCoordinate, lat, lon)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: %f,%f out of range", ErrInvalidCoordinate, lat, lon)
	}
	if math.Abs(lat) > MaxMercatorLatitude {
		return fmt.Errorf("%w: latitude %f", ErrPoleProximity, lat)
	}
	return nil
}

// CheckPosition is CheckLatLon plus a finite altitude
func CheckPosition(lat, lon, alt float64) error {
	if err := CheckLatLon(lat, lon); err != nil {
		return err
	}
	if !isFinite(alt) {
		return fmt.Errorf("%w: altitude %v", ErrInvalidCoordinate, alt)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
