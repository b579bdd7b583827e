// Package kml renders a mission as a KML document for 3D viewers.
package kml

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/twpayne/go-kml"
	"github.com/twpayne/go-kml/icon"

	"github.com/yegors/mission-planner/internal/geo"
	"github.com/yegors/mission-planner/internal/mission"
)

const balloonText = `<b><font size="+2">$[name]</font></b><br/><br/>$[description]<br/>`

// Encode returns a KML document with the flight path as an extruded line relative
// to ground and one placemark per positional command. The path starts and, for
// return-to-home, ends at the frame origin.
func Encode(m mission.Mission, frame geo.Frame, defaultAltitude float64, name string) ([]byte, error) {
	home := kml.Coordinate{Lon: frame.OriginLon, Lat: frame.OriginLat}
	points := []kml.Coordinate{home}
	var placemarks []kml.Element

	flown := m.FlownAltitudes(defaultAltitude)
	last := home

	for i, c := range m.Commands() {
		var (
			pt          kml.Coordinate
			label, desc string
		)
		switch cmd := c.(type) {
		case mission.Takeoff:
			pt = kml.Coordinate{Lon: cmd.Lon, Lat: cmd.Lat, Alt: cmd.Alt}
			label = fmt.Sprintf("Takeoff %d", cmd.Seq)
			desc = fmt.Sprintf("Climb to %.1fm", cmd.Alt)
		case mission.Waypoint:
			pt = kml.Coordinate{Lon: cmd.Lon, Lat: cmd.Lat, Alt: cmd.Alt}
			label = fmt.Sprintf("WP %d", cmd.Seq)
			desc = fmt.Sprintf("Altitude: %.1fm", cmd.Alt)
			if cmd.Speed != nil {
				desc += fmt.Sprintf("<br/>Speed: %.1fm/s", *cmd.Speed)
			}
			if cmd.HoldSeconds > 0 {
				desc += fmt.Sprintf("<br/>Hold: %.0fs", cmd.HoldSeconds)
			}
		case mission.CirclePoint:
			pt = kml.Coordinate{Lon: cmd.Lon, Lat: cmd.Lat, Alt: flown[i]}
			label = fmt.Sprintf("Circle %d", cmd.Seq)
			desc = fmt.Sprintf("Radius: %.1fm<br/>Turns: %g", cmd.RadiusMeters, cmd.Turns)
		case mission.ReturnToHome:
			points = append(points, kml.Coordinate{Lon: home.Lon, Lat: home.Lat, Alt: flown[i]}, home)
			last = home
			continue
		case mission.Land:
			landed := kml.Coordinate{Lon: last.Lon, Lat: last.Lat}
			points = append(points, landed)
			last = landed
			continue
		default:
			continue
		}

		points = append(points, pt)
		last = pt
		placemarks = append(placemarks, kml.Placemark(
			kml.Name(label),
			kml.Description(desc),
			kml.StyleURL("#style"+string(c.Kind())),
			kml.Point(
				kml.AltitudeMode(kml.AltitudeModeRelativeToGround),
				kml.Coordinates(pt),
			),
		))
	}

	track := kml.Placemark(
		kml.Name("Flight path"),
		kml.StyleURL("#styleTrack"),
		kml.LineString(
			kml.AltitudeMode(kml.AltitudeModeRelativeToGround),
			kml.Extrude(true),
			kml.Tessellate(false),
			kml.Coordinates(points...),
		),
	)

	doc := kml.Document(kml.Name(name)).
		Add(kml.Description(fmt.Sprintf("%d commands", m.Len()))).
		Add(styles()...).
		Add(track).
		Add(placemarks...)

	var buf bytes.Buffer
	if err := kml.KML(doc).WriteIndent(&buf, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to write KML: %w", err)
	}
	return buf.Bytes(), nil
}

func pointStyle(kind mission.Kind, paddle string) kml.Element {
	return kml.SharedStyle(
		"style"+string(kind),
		kml.IconStyle(
			kml.Scale(0.8),
			kml.Icon(kml.Href(icon.PaddleHref(paddle))),
		),
		kml.BalloonStyle(
			kml.BgColor(color.RGBA{R: 0xde, G: 0xde, B: 0xde, A: 0x40}),
			kml.Text(balloonText),
		),
	)
}

func styles() []kml.Element {
	return []kml.Element{
		pointStyle(mission.KindTakeoff, "grn-circle"),
		pointStyle(mission.KindWaypoint, "ltblu-circle"),
		pointStyle(mission.KindCirclePoint, "ylw-diamond"),
		kml.SharedStyle(
			"styleTrack",
			kml.LineStyle(
				kml.Color(color.RGBA{R: 0xff, G: 0x80, A: 0xff}),
				kml.Width(3),
			),
			kml.PolyStyle(
				kml.Color(color.RGBA{R: 0xff, G: 0x80, A: 0x40}),
			),
		),
	}
}
