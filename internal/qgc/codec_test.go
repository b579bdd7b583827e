package qgc

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yegors/mission-planner/internal/geo"
	"github.com/yegors/mission-planner/internal/mission"
)

const (
	originLat = 18.52789
	originLon = 73.85223
)

func testFrame(t *testing.T) geo.Frame {
	t.Helper()
	f, err := geo.NewFrame(originLat, originLon)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	return f
}

func mustMission(t *testing.T, cmds ...mission.Command) mission.Mission {
	t.Helper()
	m, err := mission.New(cmds...)
	if err != nil {
		t.Fatalf("mission.New: %v", err)
	}
	return m
}

func mustEncode(t *testing.T, m mission.Mission) string {
	t.Helper()
	text, err := Encode(m, testFrame(t), 5)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return text
}

func TestEncodeConcreteScenario(t *testing.T) {
	m := mustMission(t,
		mission.Takeoff{Lat: 18.52789, Lon: 73.85223, Alt: 5},
		mission.Waypoint{Lat: 18.52800, Lon: 73.85230, Alt: 5, Speed: mission.Float(10)},
		mission.Land{},
	)
	text := mustEncode(t, m)

	want := strings.Join([]string{
		"QGC WPL 110",
		"0\t1\t0\t16\t0\t0\t0\t0\t18.52789\t73.85223\t5\t1",
		"1\t0\t3\t22\t0\t0\t0\t0\t18.52789\t73.85223\t5\t1",
		"2\t0\t3\t16\t10\t0\t0\t0\t18.528\t73.8523\t5\t1",
		"3\t0\t3\t21\t0\t0\t0\t0\t0\t0\t0\t1",
	}, "\n") + "\n"

	if diff := cmp.Diff(want, text); diff != "" {
		t.Fatalf("encoded file mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeNonPositionalPayloads(t *testing.T) {
	m := mustMission(t,
		mission.Takeoff{Lat: originLat, Lon: originLon, Alt: 8},
		mission.SpeedChange{SpeedMetersPerSecond: 6},
		mission.Waypoint{Lat: 18.528, Lon: 73.8523, Alt: 12},
		mission.Wait{DurationSeconds: 30},
		mission.CirclePoint{Lat: 18.529, Lon: 73.853, RadiusMeters: 25, Turns: 2},
		mission.ReturnToHome{},
	)
	lines := strings.Split(strings.TrimSuffix(mustEncode(t, m), "\n"), "\n")
	if len(lines) != 8 {
		t.Fatalf("got %d lines, want 8", len(lines))
	}

	tests := []struct {
		line int
		want string
	}{
		{3, "2\t0\t3\t178\t1\t6\t-1\t0\t0\t0\t0\t1"},
		{4, "3\t0\t3\t16\t6\t0\t0\t0\t18.528\t73.8523\t12\t1"},
		{5, "4\t0\t3\t19\t30\t0\t0\t0\t0\t0\t0\t1"},
		{6, "5\t0\t3\t18\t2\t0\t25\t0\t18.529\t73.853\t12\t1"},
		{7, "6\t0\t3\t20\t0\t0\t0\t0\t0\t0\t0\t1"},
	}
	for _, tt := range tests {
		if got := lines[tt.line]; got != tt.want {
			t.Errorf("line %d = %q, want %q", tt.line+1, got, tt.want)
		}
	}
	for i, line := range lines[1:] {
		if n := len(strings.Split(line, "\t")); n != FieldCount {
			t.Errorf("line %d has %d tab-separated fields", i+2, n)
		}
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	m := mustMission(t,
		mission.Takeoff{Lat: originLat, Lon: originLon, Alt: 5},
		mission.Waypoint{Lat: 18.528, Lon: 73.8523, Alt: 7.5},
		mission.Wait{DurationSeconds: 4},
		mission.SpeedChange{SpeedMetersPerSecond: 3},
		mission.Waypoint{Lat: -33.8688123, Lon: 151.2093456, Alt: 120.25, Speed: mission.Float(9)},
		mission.Waypoint{Lat: 18.6, Lon: 73.9, Alt: 40},
		mission.CirclePoint{Lat: 18.61, Lon: 73.91, RadiusMeters: 30, Turns: 1},
		mission.Land{},
	)

	var want []ParsedWaypoint
	for i := 0; i < m.Len(); i++ {
		pos, ok, err := m.FlownPosition(i, 5)
		if err != nil {
			t.Fatalf("FlownPosition(%d): %v", i, err)
		}
		if ok {
			want = append(want, ParsedWaypoint{Seq: i, Lat: pos.Lat, Lon: pos.Lon, Alt: pos.Alt})
		}
	}
	if circle := want[len(want)-1]; circle.Alt != 40 {
		t.Fatalf("circle flown at %v, want the preceding waypoint altitude", circle.Alt)
	}

	got, err := Decode(mustEncode(t, m))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeMissionRoundTrip(t *testing.T) {
	m := mustMission(t,
		mission.Takeoff{Lat: originLat, Lon: originLon, Alt: 5},
		mission.SpeedChange{SpeedMetersPerSecond: 4},
		mission.Waypoint{Lat: 18.528, Lon: 73.8523, Alt: 5},
		mission.Waypoint{Lat: 18.529, Lon: 73.8524, Alt: 6, Speed: mission.Float(11)},
		mission.Wait{DurationSeconds: 12},
		mission.CirclePoint{Lat: 18.53, Lon: 73.853, RadiusMeters: 10, Turns: 3},
		mission.ReturnToHome{},
	)
	got, err := DecodeMission(mustEncode(t, m))
	if err != nil {
		t.Fatalf("DecodeMission: %v", err)
	}
	if diff := cmp.Diff(m.Commands(), got.Commands()); diff != "" {
		t.Fatalf("mission mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeDropsZeroCoordinates(t *testing.T) {
	text := "QGC WPL 110\n" +
		"0\t1\t0\t16\t0\t0\t0\t0\t18.5\t73.8\t5\t1\n" +
		"1\t0\t3\t16\t0\t0\t0\t0\t0\t0\t10\t1\n" +
		"2\t0\t3\t16\t0\t0\t0\t0\t18.51\t73.81\t10\t1\n"
	got, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []ParsedWaypoint{{Seq: 1, Lat: 18.51, Lon: 73.81, Alt: 10}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeAcceptsCRLFAndSpaces(t *testing.T) {
	text := "QGC WPL 110\r\n" +
		"0 1 0 16 0 0 0 0 18.5 73.8 5 1\r\n" +
		"1 0 3 22 0 0 0 0 18.5 73.8 5 1\r\n\r\n"
	got, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 1 || got[0].Seq != 0 {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind error
		line int
	}{
		{
			name: "missing header",
			text: "0\t1\t0\t16\t0\t0\t0\t0\t18.5\t73.8\t5\t1\n",
			kind: ErrInvalidHeader,
			line: 1,
		},
		{
			name: "wrong version",
			text: "QGC WPL 120\n",
			kind: ErrInvalidHeader,
			line: 1,
		},
		{
			name: "empty",
			text: "",
			kind: ErrInvalidHeader,
			line: 1,
		},
		{
			name: "eleven fields",
			text: "QGC WPL 110\n0\t1\t0\t16\t0\t0\t0\t0\t18.5\t73.8\t5\t1\n1\t0\t3\t16\t0\t0\t0\t0\t18.5\t73.8\t5\n",
			kind: ErrMalformedRecord,
			line: 3,
		},
		{
			name: "non numeric command",
			text: "QGC WPL 110\n0\t1\t0\tWP\t0\t0\t0\t0\t18.5\t73.8\t5\t1\n",
			kind: ErrMalformedRecord,
			line: 2,
		},
		{
			name: "nan latitude",
			text: "QGC WPL 110\n0\t1\t0\t16\t0\t0\t0\t0\tNaN\t73.8\t5\t1\n",
			kind: ErrInvalidCoordinate,
			line: 2,
		},
		{
			name: "garbage altitude",
			text: "QGC WPL 110\n0\t1\t0\t16\t0\t0\t0\t0\t18.5\t73.8\thigh\t1\n",
			kind: ErrInvalidCoordinate,
			line: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.text)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("error = %v, want %v", err, tt.kind)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error %T is not a *ParseError", err)
			}
			if perr.Line != tt.line {
				t.Fatalf("line = %d, want %d", perr.Line, tt.line)
			}
		})
	}
}

func TestDecodeMissionRejectsUnsupportedCommand(t *testing.T) {
	text := "QGC WPL 110\n" +
		"0\t1\t0\t16\t0\t0\t0\t0\t18.5\t73.8\t5\t1\n" +
		"1\t0\t3\t22\t0\t0\t0\t0\t18.5\t73.8\t5\t1\n" +
		"2\t0\t3\t177\t1\t3\t0\t0\t0\t0\t0\t1\n"
	m, err := DecodeMission(text)
	if !errors.Is(err, ErrUnsupportedCommand) {
		t.Fatalf("error = %v, want ErrUnsupportedCommand", err)
	}
	if m.Len() != 0 {
		t.Fatal("failed import must not return partial state")
	}
	var perr *ParseError
	if errors.As(err, &perr) && perr.Line != 4 {
		t.Fatalf("line = %d, want 4", perr.Line)
	}
}

func TestDecodeMissionRejectsOutOfRangeCoordinate(t *testing.T) {
	text := "QGC WPL 110\n" +
		"0\t1\t0\t16\t0\t0\t0\t0\t18.5\t73.8\t5\t1\n" +
		"1\t0\t3\t16\t0\t0\t0\t0\t95\t73.8\t5\t1\n"
	if _, err := DecodeMission(text); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("error = %v, want ErrInvalidCoordinate", err)
	}
}
