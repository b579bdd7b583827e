package qgc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yegors/mission-planner/internal/geo"
	"github.com/yegors/mission-planner/internal/mission"
)

var (
	ErrInvalidHeader      = errors.New("invalid header")
	ErrMalformedRecord    = errors.New("malformed record")
	ErrInvalidCoordinate  = errors.New("invalid coordinate")
	ErrUnsupportedCommand = errors.New("unsupported command")
)

// ParseError reports the line at which a mission file was rejected.
// Kind is one of the Err* sentinels above and is matched by errors.Is.
type ParseError struct {
	Kind   error
	Line   int
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Kind)
	}
	return fmt.Sprintf("line %d: %v: %s", e.Line, e.Kind, e.Detail)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

func parseErr(kind error, line int, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Line: line, Detail: fmt.Sprintf(format, args...)}
}

// File is a parsed mission file
type File struct {
	// Home is the record on line 2 when it has seq 0, otherwise nil
	Home    *Record  `json:"home,omitempty"`
	Records []Record `json:"records"`
}

// ParsedWaypoint is a positional record from an uploaded mission file
type ParsedWaypoint struct {
	Seq int     `json:"seq"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// Parse reads every record of a mission file. Blank lines are skipped; any other
// line must have exactly FieldCount whitespace-separated fields.
func Parse(text string) (*File, error) {
	lines := strings.Split(text, "\n")
	if strings.TrimRight(lines[0], "\r") != Header {
		return nil, parseErr(ErrInvalidHeader, 1, "expected %q", Header)
	}

	file := &File{}
	for i, raw := range lines[1:] {
		lineNo := i + 2
		line := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := parseRecord(line, lineNo)
		if err != nil {
			return nil, err
		}
		if lineNo == 2 && rec.Seq == 0 {
			home := rec
			file.Home = &home
			continue
		}
		file.Records = append(file.Records, rec)
	}
	return file, nil
}

func parseRecord(line string, lineNo int) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) != FieldCount {
		return Record{}, parseErr(ErrMalformedRecord, lineNo, "expected %d fields, got %d", FieldCount, len(fields))
	}

	rec := Record{Line: lineNo}
	ints := []struct {
		dst  *int
		col  int
		name string
	}{
		{&rec.Seq, 0, "seq"},
		{&rec.Current, 1, "current"},
		{&rec.Frame, 2, "frame"},
		{&rec.Command, 3, "command"},
		{&rec.Autocontinue, 11, "autocontinue"},
	}
	for _, f := range ints {
		v, err := strconv.Atoi(fields[f.col])
		if err != nil {
			return Record{}, parseErr(ErrMalformedRecord, lineNo, "bad %s %q", f.name, fields[f.col])
		}
		*f.dst = v
	}

	for p := 0; p < 4; p++ {
		v, err := strconv.ParseFloat(fields[4+p], 64)
		if err != nil {
			return Record{}, parseErr(ErrMalformedRecord, lineNo, "bad param%d %q", p+1, fields[4+p])
		}
		rec.Params[p] = v
	}

	coords := []struct {
		dst  *float64
		col  int
		name string
	}{
		{&rec.Lat, 8, "lat"},
		{&rec.Lon, 9, "lon"},
		{&rec.Alt, 10, "alt"},
	}
	for _, f := range coords {
		v, err := strconv.ParseFloat(fields[f.col], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Record{}, parseErr(ErrInvalidCoordinate, lineNo, "bad %s %q", f.name, fields[f.col])
		}
		*f.dst = v
	}

	return rec, nil
}

// Decode is the upload path: it returns the positional records of a mission file
// with Seq re-based to the mission index. Records at exactly 0,0 are treated as
// placeholders and dropped, so a real waypoint at 0,0 is lost.
func Decode(text string) ([]ParsedWaypoint, error) {
	file, err := Parse(text)
	if err != nil {
		return nil, err
	}

	offset := 0
	if file.Home != nil {
		offset = 1
	}

	waypoints := make([]ParsedWaypoint, 0, len(file.Records))
	for _, rec := range file.Records {
		if rec.Lat == 0 && rec.Lon == 0 {
			continue
		}
		waypoints = append(waypoints, ParsedWaypoint{
			Seq: rec.Seq - offset,
			Lat: rec.Lat,
			Lon: rec.Lon,
			Alt: rec.Alt,
		})
	}
	return waypoints, nil
}

// DecodeMission rebuilds a full mission from a file written by Encode or by other
// ground control tools. Any bad record aborts the whole import.
func DecodeMission(text string) (mission.Mission, error) {
	file, err := Parse(text)
	if err != nil {
		return mission.Mission{}, err
	}

	var (
		m            mission.Mission
		currentSpeed float64
	)
	for _, rec := range file.Records {
		var c mission.Command
		switch rec.Command {
		case CmdTakeoff:
			c = mission.Takeoff{Lat: rec.Lat, Lon: rec.Lon, Alt: rec.Alt}
		case CmdWaypoint:
			wp := mission.Waypoint{Lat: rec.Lat, Lon: rec.Lon, Alt: rec.Alt}
			if p1 := rec.Params[0]; p1 > 0 && p1 != currentSpeed {
				wp.Speed = mission.Float(p1)
			}
			c = wp
		case CmdLoiterTime:
			c = mission.Wait{DurationSeconds: rec.Params[0]}
		case CmdLand:
			c = mission.Land{}
		case CmdReturnHome:
			c = mission.ReturnToHome{}
		case CmdLoiterTurns:
			c = mission.CirclePoint{Lat: rec.Lat, Lon: rec.Lon, RadiusMeters: rec.Params[2], Turns: rec.Params[0]}
		case CmdSpeedChange:
			c = mission.SpeedChange{SpeedMetersPerSecond: rec.Params[1]}
			currentSpeed = rec.Params[1]
		default:
			return mission.Mission{}, parseErr(ErrUnsupportedCommand, rec.Line, "command %d", rec.Command)
		}

		m, err = m.Append(c)
		if err != nil {
			kind := ErrMalformedRecord
			if errors.Is(err, geo.ErrInvalidCoordinate) || errors.Is(err, geo.ErrPoleProximity) {
				kind = ErrInvalidCoordinate
			}
			return mission.Mission{}, parseErr(kind, rec.Line, "%v", err)
		}
	}
	return m, nil
}
