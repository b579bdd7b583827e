package drag

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/yegors/mission-planner/internal/geo"
)

// ErrDegenerateCamera is returned when a camera has no usable viewing direction
var ErrDegenerateCamera = errors.New("degenerate camera")

const (
	defaultFOV = 60
	nearPlane  = 0.1
	farPlane   = 100000
)

// Camera is a perspective camera in the local frame
type Camera struct {
	Position geo.Vec3 `json:"position"`
	Target   geo.Vec3 `json:"target"`
	Up       geo.Vec3 `json:"up"`
	// FOV is the vertical field of view in degrees
	FOV    float64 `json:"fov"`
	Aspect float64 `json:"aspect"`
}

// Ray is a half-line from Origin along the unit vector Direction
type Ray struct {
	Origin    geo.Vec3 `json:"origin"`
	Direction geo.Vec3 `json:"direction"`
}

// At returns the point at distance t along the ray
func (r Ray) At(t float64) geo.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// worldFromNDC returns the inverse of projection * view
func (c Camera) worldFromNDC() (mgl64.Mat4, error) {
	if !geo.IsFinite(c.Position) || !geo.IsFinite(c.Target) || !geo.IsFinite(c.Up) {
		return mgl64.Mat4{}, ErrDegenerateCamera
	}
	up := c.Up
	if up.Len() == 0 {
		up = geo.Up
	}
	forward := c.Target.Sub(c.Position)
	if forward.Len() == 0 || forward.Cross(up).Len() < 1e-9*forward.Len()*up.Len() {
		return mgl64.Mat4{}, ErrDegenerateCamera
	}

	fov := c.FOV
	if !(fov > 0 && fov < 180) {
		fov = defaultFOV
	}
	aspect := c.Aspect
	if !(aspect > 0) || math.IsInf(aspect, 0) {
		aspect = 1
	}

	view := mgl64.LookAtV(c.Position, c.Target, up)
	proj := mgl64.Perspective(mgl64.DegToRad(fov), aspect, nearPlane, farPlane)
	ndcFromWorld := proj.Mul4(view)
	if ndcFromWorld.Det() == 0 {
		return mgl64.Mat4{}, ErrDegenerateCamera
	}
	return ndcFromWorld.Inv(), nil
}

// Ray casts a ray through a pointer position given in normalised device
// coordinates: x and y in [-1, 1], +y towards the top of the viewport.
func (c Camera) Ray(x, y float64) (Ray, error) {
	worldFromNDC, err := c.worldFromNDC()
	if err != nil {
		return Ray{}, err
	}
	near := unproject(worldFromNDC, mgl64.Vec4{x, y, -1, 1})
	far := unproject(worldFromNDC, mgl64.Vec4{x, y, 1, 1})

	dir := geo.Normalize(far.Sub(near))
	if dir.Len() == 0 || !geo.IsFinite(dir) {
		return Ray{}, ErrDegenerateCamera
	}
	return Ray{Origin: c.Position, Direction: dir}, nil
}

func unproject(m mgl64.Mat4, ndc mgl64.Vec4) geo.Vec3 {
	p := m.Mul4x1(ndc)
	return p.Vec3().Mul(1 / p.W())
}

// Plane is the set of points p with (p - Point)·Normal == 0
type Plane struct {
	Point  geo.Vec3 `json:"point"`
	Normal geo.Vec3 `json:"normal"`
}

// Intersect returns where the ray meets the plane. It reports false when the ray
// is parallel to the plane or the plane is behind the ray origin.
func (p Plane) Intersect(r Ray) (geo.Vec3, bool) {
	denom := p.Normal.Dot(r.Direction)
	if math.Abs(denom) < 1e-9 {
		return geo.Vec3{}, false
	}
	t := p.Point.Sub(r.Origin).Dot(p.Normal) / denom
	if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return geo.Vec3{}, false
	}
	return r.At(t), true
}
