package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fusion"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/quality"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/scene"
)

// Settings is the validated, resolved configuration the pipeline runs on.
// Build it with FusionConfig.Settings and treat it as read-only.
type Settings struct {
	AOI     string
	Window  scene.Window
	Out     string
	Catalog string

	TargetResolution float64
	TargetCRS        string // AutoCRS resolves from the AOI
	Kernel           raster.Kernel

	CloudMaskEnabled bool
	MaxCloudPercent  float64
	QualityDecoders  map[scene.SensorClass]quality.FlagDecoder

	EnhancementModelID string
	SharpenEnabled     bool

	Policy        fusion.Policy
	Tolerance     time.Duration
	Sensors       []scene.SensorClass
	SensorWeights map[scene.SensorClass]float64
	Workers       int

	OutputUnits string
	NoData      float64
	PreviewPath string
}

// Settings validates c and resolves it into Settings. AOI, start, end and
// out are required.
func (c *FusionConfig) Settings() (*Settings, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	required := []struct {
		name string
		val  *string
	}{{"aoi", c.AOI}, {"start", c.Start}, {"end", c.End}, {"out", c.Out}}
	var missing []error
	for _, r := range required {
		if r.val == nil || *r.val == "" {
			missing = append(missing, fmt.Errorf("%s is required", r.name))
		}
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}
	window, err := scene.ParseWindow(*c.Start, *c.End)
	if err != nil {
		return nil, err
	}

	s := &Settings{
		AOI:                *c.AOI,
		Window:             window,
		Out:                *c.Out,
		Catalog:            c.getString(c.Catalog),
		TargetResolution:   c.GetTargetResolution(),
		TargetCRS:          c.GetTargetCRS(),
		Kernel:             c.GetResampleKernel(),
		CloudMaskEnabled:   c.GetCloudMaskEnabled(),
		MaxCloudPercent:    c.GetMaxCloudPercent(),
		QualityDecoders:    map[scene.SensorClass]quality.FlagDecoder{},
		EnhancementModelID: c.GetEnhancementModelID(),
		SharpenEnabled:     c.GetSharpenEnabled(),
		Policy:             c.GetFusionPolicy(),
		Tolerance:          time.Duration(c.GetFusionToleranceDays()) * 24 * time.Hour,
		Sensors:            c.GetSensors(),
		SensorWeights:      map[scene.SensorClass]float64{},
		Workers:            c.GetWorkers(),
		OutputUnits:        c.GetOutputUnits(),
		NoData:             c.GetNoDataValue(),
		PreviewPath:        c.getString(c.Preview),
	}
	for name, bits := range c.QualityBits {
		sc, err := scene.ParseSensorClass(name)
		if err != nil {
			return nil, fmt.Errorf("quality_bits: %w", err)
		}
		m, err := quality.NewBitMask(bits...)
		if err != nil {
			return nil, fmt.Errorf("quality_bits[%s]: %w", name, err)
		}
		s.QualityDecoders[sc] = m
	}
	for name, w := range c.SensorWeights {
		sc, err := scene.ParseSensorClass(name)
		if err != nil {
			return nil, fmt.Errorf("sensor_weights: %w", err)
		}
		s.SensorWeights[sc] = w
	}
	return s, nil
}

// Weight returns the fusion weight of a sensor class, 1 when unconfigured.
func (s *Settings) Weight(sensor scene.SensorClass) float64 {
	if w, ok := s.SensorWeights[sensor]; ok {
		return w
	}
	return 1
}

// QualityFilter builds the quality filter described by s.
func (s *Settings) QualityFilter() *quality.Filter {
	f := quality.NewFilter(s.MaxCloudPercent)
	f.Decoders = s.QualityDecoders
	return f
}
