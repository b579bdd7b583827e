// Package stats estimates mission distance and flight time by simulating the
// command sequence.
package stats

import (
	"math"
	"time"

	"github.com/yegors/mission-planner/internal/geo"
	"github.com/yegors/mission-planner/internal/mission"
)

// Params holds the vehicle speeds used by the simulation, in meters per second
type Params struct {
	TakeoffSpeed float64 `json:"takeoff_speed" toml:"takeoff_speed"`
	LandingSpeed float64 `json:"landing_speed" toml:"landing_speed"`
	DefaultSpeed float64 `json:"default_speed" toml:"default_speed"`
}

// DefaultParams returns the speeds of a small multirotor
func DefaultParams() Params {
	return Params{
		TakeoffSpeed: 2.5,
		LandingSpeed: 1.5,
		DefaultSpeed: 10,
	}
}

// withDefaults replaces non-positive speeds so the simulation never divides by zero
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if !(p.TakeoffSpeed > 0) {
		p.TakeoffSpeed = d.TakeoffSpeed
	}
	if !(p.LandingSpeed > 0) {
		p.LandingSpeed = d.LandingSpeed
	}
	if !(p.DefaultSpeed > 0) {
		p.DefaultSpeed = d.DefaultSpeed
	}
	return p
}

// Stats is the estimated length and duration of a mission
type Stats struct {
	DistanceMeters float64 `json:"distance_meters"`
	TimeSeconds    float64 `json:"time_seconds"`
}

// Rounded returns the stats rounded to 2 decimal places for display
func (s Stats) Rounded() Stats {
	return Stats{
		DistanceMeters: round2(s.DistanceMeters),
		TimeSeconds:    round2(s.TimeSeconds),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Leg is one horizontal segment between two positional commands
type Leg struct {
	FromSeq           int     `json:"from_seq"`
	ToSeq             int     `json:"to_seq"`
	HorizontalMeters  float64 `json:"horizontal_meters"`
	DistanceMeters    float64 `json:"distance_meters"`
	TrueBearing       float64 `json:"true_bearing"`
	MagneticVariation float64 `json:"magnetic_variation"`
	MagneticHeading   float64 `json:"magnetic_heading"`
	Speed             float64 `json:"speed"`
	TimeSeconds       float64 `json:"time_seconds"`
}

// Compute simulates the mission and returns unrounded totals.
//
// Takeoff climbs from the frame origin, waypoints add 3D distance at the current
// speed plus any hold time, Wait adds its duration and Land descends from the
// takeoff altitude. CirclePoint and ReturnToHome add nothing.
func Compute(m mission.Mission, frame geo.Frame, params Params) Stats {
	s, _ := simulate(m, frame, params, nil)
	return s
}

// Legs returns the per-leg breakdown of the same simulation Compute runs. Magnetic
// headings are evaluated for date.
func Legs(m mission.Mission, frame geo.Frame, params Params, date time.Time) []Leg {
	_, legs := simulate(m, frame, params, &date)
	return legs
}

type point struct {
	seq int
	pos geo.Position
}

func simulate(m mission.Mission, frame geo.Frame, params Params, date *time.Time) (Stats, []Leg) {
	params = params.withDefaults()

	var (
		s               Stats
		legs            []Leg
		currentAltitude float64
		currentSpeed    = params.DefaultSpeed
		previous        *point
	)

	for _, c := range m.Commands() {
		switch cmd := c.(type) {
		case mission.SpeedChange:
			if cmd.SpeedMetersPerSecond > 0 {
				currentSpeed = cmd.SpeedMetersPerSecond
			}

		case mission.Takeoff:
			currentAltitude = cmd.Alt
			s.TimeSeconds += cmd.Alt / params.TakeoffSpeed
			s.DistanceMeters += cmd.Alt
			previous = &point{
				seq: cmd.Seq,
				pos: geo.Position{Lat: frame.OriginLat, Lon: frame.OriginLon, Alt: cmd.Alt},
			}

		case mission.Waypoint:
			here := geo.Position{Lat: cmd.Lat, Lon: cmd.Lon, Alt: cmd.Alt}
			if previous != nil {
				speed := currentSpeed
				if cmd.Speed != nil && *cmd.Speed > 0 {
					speed = *cmd.Speed
				}
				horizontal := geo.Haversine(previous.pos.Lat, previous.pos.Lon, here.Lat, here.Lon)
				dist := geo.Distance3D(previous.pos, here)
				legTime := dist / speed
				s.DistanceMeters += dist
				s.TimeSeconds += legTime

				if date != nil {
					legs = append(legs, newLeg(previous, cmd.Seq, here, horizontal, dist, speed, legTime, *date))
				}
			}
			s.TimeSeconds += cmd.HoldSeconds
			previous = &point{seq: cmd.Seq, pos: here}

		case mission.Wait:
			s.TimeSeconds += cmd.DurationSeconds

		case mission.Land:
			s.DistanceMeters += currentAltitude
			s.TimeSeconds += currentAltitude / params.LandingSpeed

		case mission.CirclePoint, mission.ReturnToHome:
			// not modelled
		}
	}

	return s, legs
}

func newLeg(from *point, toSeq int, to geo.Position, horizontal, dist, speed, legTime float64, date time.Time) Leg {
	bearing := geo.InitialBearing(from.pos.Lat, from.pos.Lon, to.Lat, to.Lon)
	variation := geo.MagneticVariation(from.pos.Lat, from.pos.Lon, from.pos.Alt, date)
	return Leg{
		FromSeq:           from.seq,
		ToSeq:             toSeq,
		HorizontalMeters:  horizontal,
		DistanceMeters:    dist,
		TrueBearing:       bearing,
		MagneticVariation: variation,
		MagneticHeading:   geo.MagneticHeading(bearing, variation),
		Speed:             speed,
		TimeSeconds:       legTime,
	}
}
