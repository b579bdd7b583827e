package mission

import "fmt"

// Patch is a partial update to one command. Nil fields are left alone; fields the
// target variant does not carry are ignored, so a Patch with Alt applied to a Land
// command is a no-op.
type Patch struct {
	Lat             *float64 `json:"lat,omitempty"`
	Lon             *float64 `json:"lon,omitempty"`
	Alt             *float64 `json:"alt,omitempty"`
	Speed           *float64 `json:"speed,omitempty"`
	HoldSeconds     *float64 `json:"hold_seconds,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	RadiusMeters    *float64 `json:"radius_meters,omitempty"`
	Turns           *float64 `json:"turns,omitempty"`
}

// IsEmpty reports whether the patch sets no field at all
func (p Patch) IsEmpty() bool {
	return p.Lat == nil && p.Lon == nil && p.Alt == nil && p.Speed == nil &&
		p.HoldSeconds == nil && p.DurationSeconds == nil && p.RadiusMeters == nil && p.Turns == nil
}

func (p Patch) apply(c Command) (Command, error) {
	var out Command
	switch v := c.(type) {
	case Takeoff:
		set(&v.Lat, p.Lat)
		set(&v.Lon, p.Lon)
		set(&v.Alt, p.Alt)
		out = v
	case Waypoint:
		set(&v.Lat, p.Lat)
		set(&v.Lon, p.Lon)
		set(&v.Alt, p.Alt)
		set(&v.HoldSeconds, p.HoldSeconds)
		if p.Speed != nil {
			speed := *p.Speed
			v.Speed = &speed
		}
		out = v
	case Wait:
		set(&v.DurationSeconds, p.DurationSeconds)
		out = v
	case CirclePoint:
		set(&v.Lat, p.Lat)
		set(&v.Lon, p.Lon)
		set(&v.RadiusMeters, p.RadiusMeters)
		set(&v.Turns, p.Turns)
		out = v
	case SpeedChange:
		set(&v.SpeedMetersPerSecond, p.Speed)
		out = v
	case Land, ReturnToHome:
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, c)
	}

	if err := checkCommand(out); err != nil {
		return nil, err
	}
	return out, nil
}

func set(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// Float returns a pointer to v, for building patches and optional speeds
func Float(v float64) *float64 {
	return &v
}
