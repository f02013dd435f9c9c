package scene

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// SensorClass identifies the mission family a scene comes from.
type SensorClass string

const (
	ECOSTRESS SensorClass = "ECOSTRESS"
	LANDSAT   SensorClass = "LANDSAT"
	SLSTR     SensorClass = "SLSTR"
	MODIS     SensorClass = "MODIS"
)

// KnownSensors lists the sensor classes with a built-in normalization policy.
var KnownSensors = []SensorClass{ECOSTRESS, LANDSAT, SLSTR, MODIS}

var sensorAliases = map[string]SensorClass{
	"ECOSTRESS": ECOSTRESS,
	"ECO":       ECOSTRESS,
	"LANDSAT":   LANDSAT,
	"LANDSAT8":  LANDSAT,
	"LANDSAT9":  LANDSAT,
	"L8":        LANDSAT,
	"L9":        LANDSAT,
	"SLSTR":     SLSTR,
	"SENTINEL3": SLSTR,
	"S3":        SLSTR,
	"MODIS":     MODIS,
	"TERRA":     MODIS,
	"AQUA":      MODIS,
}

// ParseSensorClass normalises a sensor name. Mission aliases such as
// "Landsat-9" or "Sentinel-3" map to their class; anything else is kept
// upper-cased so new sensors can flow through with default handling.
func ParseSensorClass(s string) (SensorClass, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if key == "" {
		return "", fmt.Errorf("empty sensor class")
	}
	compact := strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	if c, ok := sensorAliases[compact]; ok {
		return c, nil
	}
	return SensorClass(key), nil
}

// Known reports whether c is one of KnownSensors.
func (c SensorClass) Known() bool {
	for _, k := range KnownSensors {
		if c == k {
			return true
		}
	}
	return false
}

func (c SensorClass) String() string { return string(c) }

// Descriptor is the immutable catalog record for one scene.
type Descriptor struct {
	ID     string
	Sensor SensorClass
	// DataLocator addresses the LST band.
	DataLocator string
	// QualityLocator addresses the per-pixel quality band; empty when the
	// product has none.
	QualityLocator string
	// PanLocator addresses a companion high-resolution band used by the
	// sharpening hook; empty when unavailable.
	PanLocator       string
	Acquired         time.Time
	NativeResolution float64 // metres
	NativeCRS        string
	// Footprint is the WGS84 bounding box, zero when unknown.
	Footprint orb.Bound
}

// HasQuality reports whether the descriptor carries a quality band.
func (d Descriptor) HasQuality() bool { return d.QualityLocator != "" }

// Validate checks the fields every downstream stage relies on.
func (d Descriptor) Validate() error {
	switch {
	case d.ID == "":
		return fmt.Errorf("scene descriptor has no id")
	case d.Sensor == "":
		return fmt.Errorf("scene %s has no sensor class", d.ID)
	case d.DataLocator == "":
		return fmt.Errorf("scene %s has no data locator", d.ID)
	case d.Acquired.IsZero():
		return fmt.Errorf("scene %s has no acquisition time", d.ID)
	case d.NativeResolution < 0:
		return fmt.Errorf("scene %s has negative native resolution %v", d.ID, d.NativeResolution)
	}
	return nil
}

// HasFootprint reports whether Footprint was populated.
func (d Descriptor) HasFootprint() bool {
	return d.Footprint != (orb.Bound{})
}
