package inventory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MeasurementConfig holds the empirical thresholds behind the statistical
// girth/diameter heuristic. The band edges were chosen against regional
// survey data and should be re-validated before use on other forest types.
type MeasurementConfig struct {
	// GirthMeanMin: a column mean above this (cm) is girth with high confidence.
	GirthMeanMin float64 `yaml:"girthMeanMin" json:"girthMeanMin"`
	// DiameterMeanMax: a column mean below this (cm) is diameter with high confidence.
	DiameterMeanMax float64 `yaml:"diameterMeanMax" json:"diameterMeanMax"`
	// AmbiguousGirthP75: in the ambiguous band, a 75th percentile above this is girth.
	AmbiguousGirthP75 float64 `yaml:"ambiguousGirthP75" json:"ambiguousGirthP75"`
	// Physically plausible diameter bounds (cm); values outside are hard errors.
	MinPlausibleDiameter float64 `yaml:"minPlausibleDiameter" json:"minPlausibleDiameter"`
	MaxPlausibleDiameter float64 `yaml:"maxPlausibleDiameter" json:"maxPlausibleDiameter"`
}

// SpeciesConfig holds the species-matching confidence floors.
type SpeciesConfig struct {
	// MinFuzzyConfidence is the acceptance floor for fuzzy matches.
	MinFuzzyConfidence float64 `yaml:"minFuzzyConfidence" json:"minFuzzyConfidence"`
	// AbbreviationFloor is the acceptance floor for single-token abbreviations.
	AbbreviationFloor float64 `yaml:"abbreviationFloor" json:"abbreviationFloor"`
	// TwoTokenFloor is the base confidence for genus+epithet abbreviations.
	TwoTokenFloor float64 `yaml:"twoTokenFloor" json:"twoTokenFloor"`
	// MaxSuggestions caps the ranked near-miss list on no-match.
	MaxSuggestions int `yaml:"maxSuggestions" json:"maxSuggestions"`
	// LowConfidenceWarning: accepted matches below this raise a warning.
	LowConfidenceWarning float64 `yaml:"lowConfidenceWarning" json:"lowConfidenceWarning"`
}

// BoundaryConfig holds the containment tolerance and correction ceiling.
type BoundaryConfig struct {
	// TolerancePct is the maximum fraction (percent) of points allowed out
	// of boundary before the upload is rejected outright.
	TolerancePct float64 `yaml:"tolerancePct" json:"tolerancePct"`
	// MaxSnapDistanceM flags any individual correction moving a point
	// further than this (meters) as a warning.
	MaxSnapDistanceM float64 `yaml:"maxSnapDistanceM" json:"maxSnapDistanceM"`
}

// RetentionConfig holds the mother-tree selection parameters.
type RetentionConfig struct {
	// EligibleDiameterCM: trees below this diameter are seedlings and are
	// excluded from gridding entirely.
	EligibleDiameterCM float64 `yaml:"eligibleDiameterCM" json:"eligibleDiameterCM"`
	// GridSpacingM is the retention grid cell size in meters.
	GridSpacingM float64 `yaml:"gridSpacingM" json:"gridSpacingM"`
}

// MQTTConfig holds MQTT connection settings for report publishing.
type MQTTConfig struct {
	Broker        string `yaml:"broker,omitempty" json:"broker,omitempty"`
	PublishPrefix string `yaml:"publishPrefix,omitempty" json:"publishPrefix,omitempty"`
	ClientID      string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// Config is the full configuration file. Zero values are filled with
// defaults by LoadConfig, so a partial file only overrides what it names.
type Config struct {
	Measurement MeasurementConfig `yaml:"measurement" json:"measurement"`
	Species     SpeciesConfig     `yaml:"species" json:"species"`
	Boundary    BoundaryConfig    `yaml:"boundary" json:"boundary"`
	Retention   RetentionConfig   `yaml:"retention" json:"retention"`
	MQTT        MQTTConfig        `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`
	// ExtraFrames are appended after the built-in reference frames.
	ExtraFrames []ReferenceFrame `yaml:"extraFrames,omitempty" json:"extraFrames,omitempty"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() *Config {
	return &Config{
		Measurement: MeasurementConfig{
			GirthMeanMin:         100,
			DiameterMeanMax:      50,
			AmbiguousGirthP75:    90,
			MinPlausibleDiameter: 1,
			MaxPlausibleDiameter: 500,
		},
		Species: SpeciesConfig{
			MinFuzzyConfidence:   0.6,
			AbbreviationFloor:    0.65,
			TwoTokenFloor:        0.8,
			MaxSuggestions:       3,
			LowConfidenceWarning: 0.8,
		},
		Boundary: BoundaryConfig{
			TolerancePct:     5,
			MaxSnapDistanceM: 50,
		},
		Retention: RetentionConfig{
			EligibleDiameterCM: 10,
			GridSpacingM:       20,
		},
	}
}

// LoadConfig loads configuration from a YAML file, filling unset fields
// with defaults and validating the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyConfigDefaults(config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig writes the configuration to a YAML file.
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// applyConfigDefaults restores defaults for fields a partial file left at
// their zero value. Unmarshaling into a defaulted struct covers missing
// sections, but an explicitly empty section zeroes its fields.
func applyConfigDefaults(c *Config) {
	d := DefaultConfig()
	if c.Measurement.GirthMeanMin == 0 {
		c.Measurement.GirthMeanMin = d.Measurement.GirthMeanMin
	}
	if c.Measurement.DiameterMeanMax == 0 {
		c.Measurement.DiameterMeanMax = d.Measurement.DiameterMeanMax
	}
	if c.Measurement.AmbiguousGirthP75 == 0 {
		c.Measurement.AmbiguousGirthP75 = d.Measurement.AmbiguousGirthP75
	}
	if c.Measurement.MinPlausibleDiameter == 0 {
		c.Measurement.MinPlausibleDiameter = d.Measurement.MinPlausibleDiameter
	}
	if c.Measurement.MaxPlausibleDiameter == 0 {
		c.Measurement.MaxPlausibleDiameter = d.Measurement.MaxPlausibleDiameter
	}
	if c.Species.MinFuzzyConfidence == 0 {
		c.Species.MinFuzzyConfidence = d.Species.MinFuzzyConfidence
	}
	if c.Species.AbbreviationFloor == 0 {
		c.Species.AbbreviationFloor = d.Species.AbbreviationFloor
	}
	if c.Species.TwoTokenFloor == 0 {
		c.Species.TwoTokenFloor = d.Species.TwoTokenFloor
	}
	if c.Species.MaxSuggestions == 0 {
		c.Species.MaxSuggestions = d.Species.MaxSuggestions
	}
	if c.Species.LowConfidenceWarning == 0 {
		c.Species.LowConfidenceWarning = d.Species.LowConfidenceWarning
	}
	if c.Boundary.TolerancePct == 0 {
		c.Boundary.TolerancePct = d.Boundary.TolerancePct
	}
	if c.Boundary.MaxSnapDistanceM == 0 {
		c.Boundary.MaxSnapDistanceM = d.Boundary.MaxSnapDistanceM
	}
	if c.Retention.EligibleDiameterCM == 0 {
		c.Retention.EligibleDiameterCM = d.Retention.EligibleDiameterCM
	}
	if c.Retention.GridSpacingM == 0 {
		c.Retention.GridSpacingM = d.Retention.GridSpacingM
	}
}

// Validate rejects configurations that cannot produce a coherent pass.
func (c *Config) Validate() error {
	if c.Measurement.DiameterMeanMax >= c.Measurement.GirthMeanMin {
		return fmt.Errorf("measurement.diameterMeanMax (%.1f) must be below measurement.girthMeanMin (%.1f)",
			c.Measurement.DiameterMeanMax, c.Measurement.GirthMeanMin)
	}
	if c.Measurement.MinPlausibleDiameter >= c.Measurement.MaxPlausibleDiameter {
		return fmt.Errorf("measurement plausible-diameter bounds are inverted")
	}
	if c.Species.MinFuzzyConfidence < 0 || c.Species.MinFuzzyConfidence > 1 {
		return fmt.Errorf("species.minFuzzyConfidence must be in [0,1], got %.2f", c.Species.MinFuzzyConfidence)
	}
	if c.Boundary.TolerancePct < 0 || c.Boundary.TolerancePct > 100 {
		return fmt.Errorf("boundary.tolerancePct must be in [0,100], got %.1f", c.Boundary.TolerancePct)
	}
	if c.Boundary.MaxSnapDistanceM <= 0 {
		return fmt.Errorf("boundary.maxSnapDistanceM must be positive, got %.1f", c.Boundary.MaxSnapDistanceM)
	}
	if c.Retention.GridSpacingM <= 0 {
		return fmt.Errorf("retention.gridSpacingM must be positive, got %.1f", c.Retention.GridSpacingM)
	}
	for i, f := range c.ExtraFrames {
		if f.Name == "" {
			return fmt.Errorf("extraFrames[%d].name is required", i)
		}
		if f.Kind != FrameGeographic && f.Kind != FrameProjected {
			return fmt.Errorf("extraFrames[%d].kind must be geographic or projected", i)
		}
		if f.MinX >= f.MaxX || f.MinY >= f.MaxY {
			return fmt.Errorf("extraFrames[%d] bounding box is degenerate", i)
		}
	}
	return nil
}
