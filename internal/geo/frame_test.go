package geo

import (
	"errors"
	"math"
	"testing"
)

const (
	puneLat = 18.52789
	puneLon = 73.85223
)

func mustFrame(t *testing.T, lat, lon float64) Frame {
	t.Helper()
	f, err := NewFrame(lat, lon)
	if err != nil {
		t.Fatalf("NewFrame(%f, %f): %v", lat, lon, err)
	}
	return f
}

func TestMetersPerTileAtEquator(t *testing.T) {
	f := mustFrame(t, 0, 0)
	want := EarthCircumference / math.Exp2(18)
	if got := f.MetersPerTile(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("MetersPerTile() = %f, want %f", got, want)
	}
}

func TestToLocalOriginMapsToZero(t *testing.T) {
	f := mustFrame(t, puneLat, puneLon)
	p, err := f.ToLocal(puneLat, puneLon, 42)
	if err != nil {
		t.Fatalf("ToLocal: %v", err)
	}
	if math.Abs(p.X()) > 1e-9 || math.Abs(p.Z()) > 1e-9 || p.Y() != 42 {
		t.Fatalf("origin should map to (0, alt, 0), got %+v", p)
	}
}

func TestToLocalAxes(t *testing.T) {
	f := mustFrame(t, puneLat, puneLon)

	east, err := f.ToLocal(puneLat, puneLon+0.001, 0)
	if err != nil {
		t.Fatalf("ToLocal east: %v", err)
	}
	if east.X() <= 0 || math.Abs(east.Z()) > 1e-6 {
		t.Fatalf("point east of origin should have +X and zero Z, got %+v", east)
	}

	north, err := f.ToLocal(puneLat+0.001, puneLon, 0)
	if err != nil {
		t.Fatalf("ToLocal north: %v", err)
	}
	if north.Z() >= 0 || math.Abs(north.X()) > 1e-6 {
		t.Fatalf("point north of origin should have -Z (south is +Z), got %+v", north)
	}

	// 0.001 deg of longitude at this latitude is roughly 105 m on the ground
	if east.X() < 90 || east.X() > 120 {
		t.Fatalf("unexpected east offset %f m", east.X())
	}
}

func TestRoundTripWithinFiveKilometres(t *testing.T) {
	f := mustFrame(t, puneLat, puneLon)

	offsets := []struct{ dLat, dLon, alt float64 }{
		{0, 0, 0},
		{0.0001, 0.0001, 5},
		{-0.02, 0.03, 120},
		{0.04, -0.04, 400},
		{-0.044, -0.046, 0.5},
	}

	for _, o := range offsets {
		lat, lon := puneLat+o.dLat, puneLon+o.dLon
		if d := Haversine(puneLat, puneLon, lat, lon); d > 5000*1.5 {
			t.Fatalf("test point too far from origin: %f m", d)
		}

		p, err := f.ToLocal(lat, lon, o.alt)
		if err != nil {
			t.Fatalf("ToLocal(%f, %f): %v", lat, lon, err)
		}
		gotLat, gotLon, gotAlt, err := f.ToGeodetic(p)
		if err != nil {
			t.Fatalf("ToGeodetic(%+v): %v", p, err)
		}
		if math.Abs(gotLat-lat) > 1e-6 || math.Abs(gotLon-lon) > 1e-6 {
			t.Errorf("round trip (%f, %f) -> (%f, %f)", lat, lon, gotLat, gotLon)
		}
		if math.Abs(gotAlt-o.alt) > 0.1 {
			t.Errorf("round trip altitude %f -> %f", o.alt, gotAlt)
		}
	}
}

func TestToLocalRejectsNonFinite(t *testing.T) {
	f := mustFrame(t, puneLat, puneLon)
	cases := []struct{ lat, lon, alt float64 }{
		{math.NaN(), puneLon, 0},
		{puneLat, math.Inf(1), 0},
		{puneLat, puneLon, math.NaN()},
	}
	for _, c := range cases {
		if _, err := f.ToLocal(c.lat, c.lon, c.alt); !errors.Is(err, ErrInvalidCoordinate) {
			t.Errorf("ToLocal(%v, %v, %v) error = %v, want ErrInvalidCoordinate", c.lat, c.lon, c.alt, err)
		}
	}
}

func TestToGeodeticRejectsNonFinite(t *testing.T) {
	f := mustFrame(t, puneLat, puneLon)
	if _, _, _, err := f.ToGeodetic(Vec3{math.NaN(), 0, 0}); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("error = %v, want ErrInvalidCoordinate", err)
	}
}

func TestPoleProximity(t *testing.T) {
	if _, err := NewFrame(89.9, 0); !errors.Is(err, ErrPoleProximity) {
		t.Fatalf("NewFrame near pole error = %v, want ErrPoleProximity", err)
	}

	f := mustFrame(t, 60, 0)
	if _, err := f.ToLocal(-89, 0, 0); !errors.Is(err, ErrPoleProximity) {
		t.Fatalf("ToLocal near pole error = %v, want ErrPoleProximity", err)
	}

	// A point far enough north in local space lands beyond the Mercator limit
	if _, _, _, err := f.ToGeodetic(Vec3{0, 0, -1e9}); err == nil {
		t.Fatal("expected error for point beyond the projection limit")
	}
}

func TestNewFrameRejectsBadZoom(t *testing.T) {
	if _, err := NewFrameWithZoom(0, 0, -1); err == nil {
		t.Fatal("expected error for negative zoom")
	}
}
