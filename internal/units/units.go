// Package units provides shared constants and validation for temperature units
package units

import "math"

// Unit constants
const (
	Kelvin  = "kelvin"
	Celsius = "celsius"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Kelvin, Celsius}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "kelvin, celsius"
}

// kelvinOffset is the Celsius value of 0 K negated.
const kelvinOffset = 273.15

// ConvertTemperature converts a temperature from kelvin to the target units.
// Surface temperature products are stored in kelvin. NaN passes through.
func ConvertTemperature(kelvin float64, targetUnits string) float64 {
	if math.IsNaN(kelvin) {
		return kelvin
	}
	switch targetUnits {
	case Celsius:
		return kelvin - kelvinOffset
	default:
		return kelvin
	}
}

// ConvertSlice converts every value in place and returns the slice.
func ConvertSlice(values []float64, targetUnits string) []float64 {
	if targetUnits == Kelvin || targetUnits == "" {
		return values
	}
	for i, v := range values {
		values[i] = ConvertTemperature(v, targetUnits)
	}
	return values
}
