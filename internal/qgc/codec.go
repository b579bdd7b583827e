// Package qgc reads and writes missions in the QGC WPL 110 text format used by
// ground control software.
package qgc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yegors/mission-planner/internal/geo"
	"github.com/yegors/mission-planner/internal/mission"
)

// Header is the first line of every mission file
const Header = "QGC WPL 110"

// MAVLink command codes used in mission records
const (
	CmdWaypoint    = 16
	CmdLoiterTurns = 18
	CmdLoiterTime  = 19
	CmdReturnHome  = 20
	CmdLand        = 21
	CmdTakeoff     = 22
	CmdSpeedChange = 178
)

// MAVLink coordinate frames
const (
	FrameGlobal            = 0
	FrameGlobalRelativeAlt = 3
)

// FieldCount is the number of columns in a mission record
const FieldCount = 12

// Record is one line of a mission file
type Record struct {
	Line         int        `json:"line"`
	Seq          int        `json:"seq"`
	Current      int        `json:"current"`
	Frame        int        `json:"frame"`
	Command      int        `json:"command"`
	Params       [4]float64 `json:"params"`
	Lat          float64    `json:"lat"`
	Lon          float64    `json:"lon"`
	Alt          float64    `json:"alt"`
	Autocontinue int        `json:"autocontinue"`
}

func (r Record) String() string {
	fields := []string{
		strconv.Itoa(r.Seq),
		strconv.Itoa(r.Current),
		strconv.Itoa(r.Frame),
		strconv.Itoa(r.Command),
		formatFloat(r.Params[0]),
		formatFloat(r.Params[1]),
		formatFloat(r.Params[2]),
		formatFloat(r.Params[3]),
		formatFloat(r.Lat),
		formatFloat(r.Lon),
		formatFloat(r.Alt),
		strconv.Itoa(r.Autocontinue),
	}
	return strings.Join(fields, "\t")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Encode writes the mission as a QGC WPL 110 file. Line 2 is the home record at
// the frame origin and defaultAltitude; every command follows as one record.
//
// A SpeedChange updates the speed written into param1 of the waypoints after it.
// A Waypoint with its own speed writes that instead. CirclePoint is written at
// the altitude it is flown at (see mission.FlownAltitudes).
func Encode(m mission.Mission, origin geo.Frame, defaultAltitude float64) (string, error) {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteByte('\n')

	home := Record{
		Seq:          0,
		Current:      1,
		Frame:        FrameGlobal,
		Command:      CmdWaypoint,
		Lat:          origin.OriginLat,
		Lon:          origin.OriginLon,
		Alt:          defaultAltitude,
		Autocontinue: 1,
	}
	b.WriteString(home.String())
	b.WriteByte('\n')

	currentSpeed := 0.0
	flown := m.FlownAltitudes(defaultAltitude)

	for i, c := range m.Commands() {
		rec := Record{
			Seq:          i + 1,
			Frame:        FrameGlobalRelativeAlt,
			Autocontinue: 1,
		}

		switch cmd := c.(type) {
		case mission.Takeoff:
			rec.Command = CmdTakeoff
			rec.Lat, rec.Lon, rec.Alt = cmd.Lat, cmd.Lon, cmd.Alt
		case mission.Waypoint:
			rec.Command = CmdWaypoint
			rec.Params[0] = currentSpeed
			if cmd.Speed != nil {
				rec.Params[0] = *cmd.Speed
			}
			rec.Lat, rec.Lon, rec.Alt = cmd.Lat, cmd.Lon, cmd.Alt
		case mission.Wait:
			rec.Command = CmdLoiterTime
			rec.Params[0] = cmd.DurationSeconds
		case mission.Land:
			rec.Command = CmdLand
		case mission.ReturnToHome:
			rec.Command = CmdReturnHome
		case mission.CirclePoint:
			rec.Command = CmdLoiterTurns
			rec.Params[0] = cmd.Turns
			rec.Params[2] = cmd.RadiusMeters
			rec.Lat, rec.Lon, rec.Alt = cmd.Lat, cmd.Lon, flown[i]
		case mission.SpeedChange:
			rec.Command = CmdSpeedChange
			rec.Params[0] = 1 // ground speed
			rec.Params[1] = cmd.SpeedMetersPerSecond
			rec.Params[2] = -1 // throttle unchanged
			currentSpeed = cmd.SpeedMetersPerSecond
		default:
			return "", fmt.Errorf("%w: %T", mission.ErrUnknownCommand, c)
		}

		b.WriteString(rec.String())
		b.WriteByte('\n')
	}

	return b.String(), nil
}
