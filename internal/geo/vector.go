package geo

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a position or direction in the local frame, meters. Index 0 is
// east, 1 is up and 2 is south. It encodes to JSON as [x, y, z].
type Vec3 = mgl64.Vec3

// Up is the world-up direction of the local frame
var Up = Vec3{0, 1, 0}

// Horizontal drops the vertical component
func Horizontal(v Vec3) Vec3 { return Vec3{v.X(), 0, v.Z()} }

// IsFinite reports whether no component is NaN or infinite
func IsFinite(v Vec3) bool { return isFinite(v.X()) && isFinite(v.Y()) && isFinite(v.Z()) }

// Normalize returns a unit vector in the same direction, or the zero vector
// when v has no length.
func Normalize(v Vec3) Vec3 {
	if l := v.Len(); l == 0 || math.IsInf(l, 0) || math.IsNaN(l) {
		return Vec3{}
	}
	return v.Normalize()
}
