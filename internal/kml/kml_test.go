package kml

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/yegors/mission-planner/internal/geo"
	"github.com/yegors/mission-planner/internal/mission"
)

func TestEncode(t *testing.T) {
	frame, err := geo.NewFrame(18.52789, 73.85223)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	m, err := mission.New(
		mission.Takeoff{Lat: 18.52789, Lon: 73.85223, Alt: 5},
		mission.Waypoint{Lat: 18.528, Lon: 73.8523, Alt: 15, Speed: mission.Float(8)},
		mission.CirclePoint{Lat: 18.529, Lon: 73.853, RadiusMeters: 20, Turns: 2},
		mission.Wait{DurationSeconds: 5},
		mission.ReturnToHome{},
	)
	if err != nil {
		t.Fatalf("mission.New: %v", err)
	}

	out, err := Encode(m, frame, 5, "Survey")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var doc struct {
		Document struct {
			Name       string `xml:"name"`
			Placemarks []struct {
				Name       string `xml:"name"`
				LineString *struct {
					Coordinates string `xml:"coordinates"`
				} `xml:"LineString"`
			} `xml:"Placemark"`
		} `xml:"Document"`
	}
	if err := xml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not valid XML: %v\n%s", err, out)
	}
	if doc.Document.Name != "Survey" {
		t.Errorf("document name = %q", doc.Document.Name)
	}

	// flight path + takeoff + waypoint + circle
	if got := len(doc.Document.Placemarks); got != 4 {
		t.Fatalf("got %d placemarks, want 4", got)
	}
	track := doc.Document.Placemarks[0].LineString
	if track == nil {
		t.Fatal("first placemark should be the flight path")
	}
	// home, takeoff, waypoint, circle, climb-back at home, home on ground
	coords := strings.Fields(track.Coordinates)
	if len(coords) != 6 {
		t.Fatalf("flight path has %d coordinates, want 6: %q", len(coords), track.Coordinates)
	}
	// the circle is flown at the preceding waypoint's altitude
	if !strings.HasSuffix(coords[3], ",15") {
		t.Errorf("circle coordinate = %q, want altitude 15", coords[3])
	}
	if !strings.Contains(string(out), "relativeToGround") {
		t.Error("expected relativeToGround altitude mode")
	}
}
