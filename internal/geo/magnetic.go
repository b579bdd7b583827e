package geo

import (
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// MagneticVariation returns the magnetic declination in degrees (+East, -West)
// for a position and date. It returns 0 when the model cannot be evaluated.
func MagneticVariation(lat, lon, altMeters float64, date time.Time) float64 {
	loc := egm96.NewLocationGeodetic(lat, lon, altMeters)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0.0
	}

	return mag.D()
}

// MagneticHeading converts a true heading to a magnetic heading given the variation
func MagneticHeading(trueHeading, variation float64) float64 {
	return NormalizeHeading(trueHeading - variation)
}
