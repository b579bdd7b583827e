package drag

import (
	"fmt"

	"github.com/yegors/mission-planner/internal/geo"
)

// LockMode constrains which axes a drag may change
type LockMode string

const (
	// LockNone moves the point freely in the plane facing the camera
	LockNone LockMode = "none"
	// LockAltitudeOnly keeps altitude fixed; latitude and longitude move
	LockAltitudeOnly LockMode = "altitude_only"
	// LockHorizontalOnly keeps latitude and longitude fixed; altitude moves
	LockHorizontalOnly LockMode = "horizontal_only"
)

// ParseLockMode accepts the wire names of the lock modes. An empty string is LockNone.
func ParseLockMode(s string) (LockMode, error) {
	switch LockMode(s) {
	case "", LockNone:
		return LockNone, nil
	case LockAltitudeOnly, LockHorizontalOnly:
		return LockMode(s), nil
	}
	return "", fmt.Errorf("unknown lock mode %q", s)
}

// constraintPlane returns the plane a drag of point is projected onto
func (l LockMode) constraintPlane(point geo.Vec3, cam Camera) Plane {
	switch l {
	case LockAltitudeOnly:
		return Plane{Point: point, Normal: geo.Up}
	case LockHorizontalOnly:
		n := geo.Normalize(geo.Horizontal(point.Sub(cam.Position)))
		if n.Len() == 0 {
			n = geo.Vec3{1, 0, 0}
		}
		return Plane{Point: point, Normal: n}
	default:
		n := geo.Normalize(point.Sub(cam.Position))
		if n.Len() == 0 {
			n = geo.Normalize(cam.Target.Sub(cam.Position))
		}
		return Plane{Point: point, Normal: n}
	}
}

// constrain pins the axes the lock mode holds fixed to their values in from
func (l LockMode) constrain(from, hit geo.Vec3) geo.Vec3 {
	switch l {
	case LockAltitudeOnly:
		hit[1] = from.Y()
	case LockHorizontalOnly:
		hit[0], hit[2] = from.X(), from.Z()
	}
	return hit
}
