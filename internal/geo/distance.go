package geo

import "math"

// EarthRadius is the mean earth radius used for great-circle distances (meters)
const EarthRadius = 6371000.0

// Position is a geodetic point with altitude in meters
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// Haversine returns the great-circle distance between two points in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// Distance3D combines horizontal great-circle distance and altitude change
func Distance3D(a, b Position) float64 {
	h := Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
	v := b.Alt - a.Alt
	return math.Sqrt(h*h + v*v)
}

// InitialBearing returns the true course from point 1 to point 2 in degrees [0, 360)
func InitialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dLambda := toRadians(lon2 - lon1)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return NormalizeHeading(toDegrees(math.Atan2(y, x)))
}

// NormalizeHeading wraps a heading into [0, 360)
func NormalizeHeading(deg float64) float64 {
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	return h
}
