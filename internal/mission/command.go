package mission

// Kind identifies a mission command variant
type Kind string

const (
	KindTakeoff      Kind = "takeoff"
	KindWaypoint     Kind = "waypoint"
	KindWait         Kind = "wait"
	KindLand         Kind = "land"
	KindReturnToHome Kind = "return_to_home"
	KindCirclePoint  Kind = "circle_point"
	KindSpeedChange  Kind = "speed_change"
)

// Command is one step of a mission. The set of implementations is closed:
// Takeoff, Waypoint, Wait, Land, ReturnToHome, CirclePoint and SpeedChange.
type Command interface {
	Kind() Kind
	Sequence() int
	withSeq(seq int) Command
}

// Takeoff climbs vertically to Alt above the launch point
type Takeoff struct {
	Seq int     `json:"seq"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// Waypoint is a 3D point the vehicle flies through.
// Speed, when set, overrides the current cruise speed for the leg into this point.
type Waypoint struct {
	Seq         int      `json:"seq"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	Alt         float64  `json:"alt"`
	Speed       *float64 `json:"speed,omitempty"`
	HoldSeconds float64  `json:"hold_seconds,omitempty"`
}

// Wait holds position for a duration
type Wait struct {
	Seq             int     `json:"seq"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Land descends and lands at the current position
type Land struct {
	Seq int `json:"seq"`
}

// ReturnToHome flies back to the launch point
type ReturnToHome struct {
	Seq int `json:"seq"`
}

// CirclePoint orbits a point for a number of turns
type CirclePoint struct {
	Seq          int     `json:"seq"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	RadiusMeters float64 `json:"radius_meters"`
	Turns        float64 `json:"turns"`
}

// SpeedChange sets the cruise speed for the following legs
type SpeedChange struct {
	Seq                  int     `json:"seq"`
	SpeedMetersPerSecond float64 `json:"speed_meters_per_second"`
}

func (Takeoff) Kind() Kind      { return KindTakeoff }
func (Waypoint) Kind() Kind     { return KindWaypoint }
func (Wait) Kind() Kind         { return KindWait }
func (Land) Kind() Kind         { return KindLand }
func (ReturnToHome) Kind() Kind { return KindReturnToHome }
func (CirclePoint) Kind() Kind  { return KindCirclePoint }
func (SpeedChange) Kind() Kind  { return KindSpeedChange }

func (c Takeoff) Sequence() int      { return c.Seq }
func (c Waypoint) Sequence() int     { return c.Seq }
func (c Wait) Sequence() int         { return c.Seq }
func (c Land) Sequence() int         { return c.Seq }
func (c ReturnToHome) Sequence() int { return c.Seq }
func (c CirclePoint) Sequence() int  { return c.Seq }
func (c SpeedChange) Sequence() int  { return c.Seq }

func (c Takeoff) withSeq(seq int) Command      { c.Seq = seq; return c }
func (c Waypoint) withSeq(seq int) Command     { c.Seq = seq; return c }
func (c Wait) withSeq(seq int) Command         { c.Seq = seq; return c }
func (c Land) withSeq(seq int) Command         { c.Seq = seq; return c }
func (c ReturnToHome) withSeq(seq int) Command { c.Seq = seq; return c }
func (c CirclePoint) withSeq(seq int) Command  { c.Seq = seq; return c }
func (c SpeedChange) withSeq(seq int) Command  { c.Seq = seq; return c }

// Position returns the position a positional command carries. CirclePoint has
// no altitude of its own and reports 0; Mission.FlownPosition resolves it.
func Position(c Command) (lat, lon, alt float64, ok bool) {
	switch v := c.(type) {
	case Takeoff:
		return v.Lat, v.Lon, v.Alt, true
	case Waypoint:
		return v.Lat, v.Lon, v.Alt, true
	case CirclePoint:
		return v.Lat, v.Lon, 0, true
	}
	return 0, 0, 0, false
}

// IsPositional reports whether the command carries a map position
func IsPositional(c Command) bool {
	_, _, _, ok := Position(c)
	return ok
}
