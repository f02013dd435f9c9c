package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fusion"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/quality"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/scene"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/units"
)

// DefaultConfigPath is the path to the canonical fusion defaults file.
const DefaultConfigPath = "config/fusion.defaults.json"

// AutoCRS selects the UTM zone of the AOI centre as target CRS.
const AutoCRS = "auto"

// maxFileSize bounds config files read from disk.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// FusionConfig is the file schema for a fusion run. Every field is optional;
// Get* methods supply defaults for fields left unset, so partial configs are
// safe and files can be layered with Merge.
type FusionConfig struct {
	// Run inputs
	AOI     *string `json:"aoi,omitempty" yaml:"aoi,omitempty"` // WKT, GeoJSON or file path
	Start   *string `json:"start,omitempty" yaml:"start,omitempty"`
	End     *string `json:"end,omitempty" yaml:"end,omitempty"`
	Out     *string `json:"out,omitempty" yaml:"out,omitempty"`
	Catalog *string `json:"catalog,omitempty" yaml:"catalog,omitempty"` // manifest .geojson or index .db

	// Target grid
	TargetResolution *float64 `json:"target_resolution,omitempty" yaml:"target_resolution,omitempty"` // metres
	TargetCRS        *string  `json:"target_crs,omitempty" yaml:"target_crs,omitempty"`
	ResampleKernel   *string  `json:"resample_kernel,omitempty" yaml:"resample_kernel,omitempty"`
	// EcostressResample is the legacy "area"|"cubic" switch; it only
	// applies when resample_kernel is unset.
	EcostressResample *string `json:"ecostress_resample,omitempty" yaml:"ecostress_resample,omitempty"`

	// Quality filter
	CloudMaskEnabled *bool            `json:"cloud_mask_enabled,omitempty" yaml:"cloud_mask_enabled,omitempty"`
	MaxCloudPercent  *float64         `json:"max_cloud_percent,omitempty" yaml:"max_cloud_percent,omitempty"`
	QualityBits      map[string][]int `json:"quality_bits,omitempty" yaml:"quality_bits,omitempty"` // sensor -> flag bit positions

	// Enhancement and sharpening hooks
	EnhancementModelID *string `json:"enhancement_model_id,omitempty" yaml:"enhancement_model_id,omitempty"`
	SharpenEnabled     *bool   `json:"sharpen_enabled,omitempty" yaml:"sharpen_enabled,omitempty"`

	// Fusion
	FusionPolicy        *string            `json:"fusion_policy,omitempty" yaml:"fusion_policy,omitempty"`
	FusionToleranceDays *int               `json:"fusion_tolerance_days,omitempty" yaml:"fusion_tolerance_days,omitempty"`
	Sensors             []string           `json:"sensors,omitempty" yaml:"sensors,omitempty"`
	SensorWeights       map[string]float64 `json:"sensor_weights,omitempty" yaml:"sensor_weights,omitempty"`
	Workers             *int               `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Export
	OutputUnits *string  `json:"output_units,omitempty" yaml:"output_units,omitempty"`
	NoDataValue *float64 `json:"nodata_value,omitempty" yaml:"nodata_value,omitempty"`
	Preview     *string  `json:"preview,omitempty" yaml:"preview,omitempty"` // PNG path
}

// Helper functions to create pointers, used by flag overlays
func PtrFloat64(v float64) *float64 { return &v }
func PtrBool(v bool) *bool          { return &v }
func PtrString(v string) *string    { return &v }
func PtrInt(v int) *int             { return &v }

// EmptyFusionConfig returns a FusionConfig with all fields unset.
func EmptyFusionConfig() *FusionConfig {
	return &FusionConfig{}
}

// LoadFusionConfig loads a FusionConfig from a .json, .yaml or .yml file
// no larger than 1MB. The result is validated.
func LoadFusionConfig(path string) (*FusionConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyFusionConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *FusionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadFusionConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Merge returns a copy of c with every field set in overlay taking
// precedence. Maps and slices from overlay replace, not extend, c's.
func (c *FusionConfig) Merge(overlay *FusionConfig) *FusionConfig {
	out := *c
	if overlay == nil {
		return &out
	}
	mergePtr(&out.AOI, overlay.AOI)
	mergePtr(&out.Start, overlay.Start)
	mergePtr(&out.End, overlay.End)
	mergePtr(&out.Out, overlay.Out)
	mergePtr(&out.Catalog, overlay.Catalog)
	mergePtr(&out.TargetResolution, overlay.TargetResolution)
	mergePtr(&out.TargetCRS, overlay.TargetCRS)
	mergePtr(&out.ResampleKernel, overlay.ResampleKernel)
	mergePtr(&out.EcostressResample, overlay.EcostressResample)
	mergePtr(&out.CloudMaskEnabled, overlay.CloudMaskEnabled)
	mergePtr(&out.MaxCloudPercent, overlay.MaxCloudPercent)
	mergePtr(&out.EnhancementModelID, overlay.EnhancementModelID)
	mergePtr(&out.SharpenEnabled, overlay.SharpenEnabled)
	mergePtr(&out.FusionPolicy, overlay.FusionPolicy)
	mergePtr(&out.FusionToleranceDays, overlay.FusionToleranceDays)
	mergePtr(&out.Workers, overlay.Workers)
	mergePtr(&out.OutputUnits, overlay.OutputUnits)
	mergePtr(&out.NoDataValue, overlay.NoDataValue)
	mergePtr(&out.Preview, overlay.Preview)
	if overlay.Sensors != nil {
		out.Sensors = append([]string(nil), overlay.Sensors...)
	}
	if overlay.SensorWeights != nil {
		out.SensorWeights = overlay.SensorWeights
	}
	if overlay.QualityBits != nil {
		out.QualityBits = overlay.QualityBits
	}
	return &out
}

func mergePtr[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

// Validate checks that the configuration values are valid.
func (c *FusionConfig) Validate() error {
	if c.TargetResolution != nil {
		if r := *c.TargetResolution; !(r > 0) || math.IsInf(r, 0) {
			return fmt.Errorf("target_resolution must be positive, got %v", r)
		}
	}
	if c.TargetCRS != nil && *c.TargetCRS != AutoCRS {
		if _, err := raster.Proj4(*c.TargetCRS); err != nil {
			return fmt.Errorf("target_crs: %w", err)
		}
	}
	if c.ResampleKernel != nil {
		if _, err := raster.ParseKernel(*c.ResampleKernel); err != nil {
			return fmt.Errorf("resample_kernel: %w", err)
		}
	}
	if c.EcostressResample != nil {
		if v := *c.EcostressResample; v != "area" && v != "cubic" {
			return fmt.Errorf("ecostress_resample must be area or cubic, got %q", v)
		}
	}
	if c.MaxCloudPercent != nil {
		if p := *c.MaxCloudPercent; !(p >= 0 && p <= 100) {
			return fmt.Errorf("max_cloud_percent must be between 0 and 100, got %v", p)
		}
	}
	if c.FusionPolicy != nil {
		if _, err := fusion.ParsePolicy(*c.FusionPolicy); err != nil {
			return fmt.Errorf("fusion_policy: %w", err)
		}
	}
	if c.FusionToleranceDays != nil && *c.FusionToleranceDays < 0 {
		return fmt.Errorf("fusion_tolerance_days must be non-negative, got %d", *c.FusionToleranceDays)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.OutputUnits != nil && !units.IsValid(*c.OutputUnits) {
		return fmt.Errorf("output_units must be one of: %s, got %q", units.GetValidUnitsString(), *c.OutputUnits)
	}
	if c.NoDataValue != nil {
		if v := *c.NoDataValue; math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("nodata_value must be finite, got %v", v)
		}
	}
	for _, s := range c.Sensors {
		if _, err := scene.ParseSensorClass(s); err != nil {
			return fmt.Errorf("sensors: %w", err)
		}
	}
	for s, w := range c.SensorWeights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("sensor_weights[%s] must be a non-negative number, got %v", s, w)
		}
	}
	for s, bits := range c.QualityBits {
		if _, err := quality.NewBitMask(bits...); err != nil {
			return fmt.Errorf("quality_bits[%s]: %w", s, err)
		}
	}
	if c.Start != nil && c.End != nil {
		if _, err := scene.ParseWindow(*c.Start, *c.End); err != nil {
			return err
		}
	}
	return nil
}

// GetTargetResolution returns the target_resolution value or the default.
func (c *FusionConfig) GetTargetResolution() float64 {
	if c.TargetResolution == nil {
		return 30
	}
	return *c.TargetResolution
}

// GetTargetCRS returns the target_crs value or the default.
func (c *FusionConfig) GetTargetCRS() string {
	if c.TargetCRS == nil || *c.TargetCRS == "" {
		return "EPSG:32612"
	}
	return *c.TargetCRS
}

// GetResampleKernel returns the configured kernel. Without resample_kernel
// the legacy ecostress_resample switch decides, then average.
func (c *FusionConfig) GetResampleKernel() raster.Kernel {
	if c.ResampleKernel != nil {
		if k, err := raster.ParseKernel(*c.ResampleKernel); err == nil {
			return k
		}
	}
	if c.EcostressResample != nil && *c.EcostressResample == "cubic" {
		return raster.KernelCubic
	}
	return raster.KernelAverage
}

// GetCloudMaskEnabled returns the cloud_mask_enabled value or the default.
func (c *FusionConfig) GetCloudMaskEnabled() bool {
	if c.CloudMaskEnabled == nil {
		return true
	}
	return *c.CloudMaskEnabled
}

// GetMaxCloudPercent returns the max_cloud_percent value or the default.
func (c *FusionConfig) GetMaxCloudPercent() float64 {
	if c.MaxCloudPercent == nil {
		return 20
	}
	return *c.MaxCloudPercent
}

// GetEnhancementModelID returns the enhancement_model_id value or "".
func (c *FusionConfig) GetEnhancementModelID() string {
	if c.EnhancementModelID == nil {
		return ""
	}
	return *c.EnhancementModelID
}

// GetSharpenEnabled returns the sharpen_enabled value or the default.
func (c *FusionConfig) GetSharpenEnabled() bool {
	if c.SharpenEnabled == nil {
		return false
	}
	return *c.SharpenEnabled
}

// GetFusionPolicy returns the fusion_policy value or the default.
func (c *FusionConfig) GetFusionPolicy() fusion.Policy {
	if c.FusionPolicy == nil {
		return fusion.PolicyMean
	}
	p, err := fusion.ParsePolicy(*c.FusionPolicy)
	if err != nil {
		return fusion.PolicyMean
	}
	return p
}

// GetFusionToleranceDays returns the fusion_tolerance_days value or the default.
func (c *FusionConfig) GetFusionToleranceDays() int {
	if c.FusionToleranceDays == nil {
		return 3
	}
	return *c.FusionToleranceDays
}

// GetSensors returns the sensor classes to search, defaulting to all known.
func (c *FusionConfig) GetSensors() []scene.SensorClass {
	if len(c.Sensors) == 0 {
		return append([]scene.SensorClass(nil), scene.KnownSensors...)
	}
	out := make([]scene.SensorClass, 0, len(c.Sensors))
	for _, s := range c.Sensors {
		if sc, err := scene.ParseSensorClass(s); err == nil {
			out = append(out, sc)
		}
	}
	return out
}

// GetWorkers returns the workers value or the default (0 = GOMAXPROCS).
func (c *FusionConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetOutputUnits returns the output_units value or the default.
func (c *FusionConfig) GetOutputUnits() string {
	if c.OutputUnits == nil {
		return units.Kelvin
	}
	return *c.OutputUnits
}

// GetNoDataValue returns the nodata_value value or the default.
func (c *FusionConfig) GetNoDataValue() float64 {
	if c.NoDataValue == nil {
		return raster.DefaultNoData
	}
	return *c.NoDataValue
}

func (c *FusionConfig) getString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
