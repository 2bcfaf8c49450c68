// Package units converts stored speeds into display units. Fix speeds are
// always stored in meters per second; conversion happens at the API edge.
package units

import "strings"

// Supported display units.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph" // alias for kmph
)

const (
	metersPerSecondToMPH = 2.2369362920544
	metersPerSecondToKPH = 3.6
)

// IsValid reports whether unit names a supported display unit.
func IsValid(unit string) bool {
	switch unit {
	case MPS, MPH, KMPH, KPH:
		return true
	}
	return false
}

// ValidUnitsString lists the supported units for error messages.
func ValidUnitsString() string {
	return strings.Join([]string{MPS, MPH, KMPH, KPH}, ", ")
}

// ConvertSpeed converts a speed in meters per second to the target unit.
// Unknown units pass the value through unchanged.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * metersPerSecondToMPH
	case KMPH, KPH:
		return speedMPS * metersPerSecondToKPH
	default:
		return speedMPS
	}
}

// Label returns the display suffix for a unit, e.g. "km/h".
func Label(unit string) string {
	switch unit {
	case MPH:
		return "mph"
	case KMPH, KPH:
		return "km/h"
	default:
		return "m/s"
	}
}
