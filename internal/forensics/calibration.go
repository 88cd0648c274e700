package forensics

import (
	"fmt"
	"math"
	"os"

	"github.com/BurntSushi/toml"
)

// Profile selects one of the two calibration variants. Both share the same
// extractor implementations; only block sizes, resolution caps, weights and
// thresholds differ.
type Profile string

const (
	// ProfileGeneric analyzes any scanned document with the baseline
	// weight vector over six features.
	ProfileGeneric Profile = "generic"

	// ProfileSpecialized adds the security-mark extractor and a
	// document-type classifier that picks per-category weights.
	ProfileSpecialized Profile = "specialized"
)

// FeatureThresholds holds the two anomaly cut-offs for one feature. A score
// below Critical raises a critical anomaly; a score in [Critical, Warning)
// raises a warning.
type FeatureThresholds struct {
	Critical float64
	Warning  float64
}

// Calibration is the explicit, named configuration table for one profile.
// Every constant the stage-1/2/3 decision logic depends on lives here so
// the scoring engine can be unit-tested independently of the extractors.
type Calibration struct {
	Profile Profile

	// MaxDimension caps decoded image size; larger inputs are box-downscaled.
	MaxDimension int

	// BlockSize is the square block edge used by the blockwise extractors.
	BlockSize int

	// GenuineThreshold is the stage-3 confidence floor for a genuine verdict.
	GenuineThreshold float64

	// ForgeryBase and ForgeryFraction define the deliberately depressed
	// confidence reported when the stage-1 critical gate fires:
	// base + fraction * rawConfidence.
	ForgeryBase     float64
	ForgeryFraction float64

	// Warning-count multipliers for stage 2.
	ManyWarningsFactor  float64 // applied for >= ManyWarningsCount warnings
	SingleWarningFactor float64 // applied for exactly one warning
	ManyWarningsCount   int
	CriticalGateCount   int // criticals needed to trip stage 1

	// Weights is the baseline weight vector; it must sum to 1 over the
	// profile's feature set.
	Weights map[Feature]float64

	// CategoryWeights holds per-category overrides selected by the
	// document-type classifier (specialized profile only).
	CategoryWeights map[Category]map[Feature]float64

	// Thresholds holds per-feature anomaly cut-offs.
	Thresholds map[Feature]FeatureThresholds
}

// Features returns the profile's feature set in fixed order.
func (c Calibration) Features() []Feature {
	out := make([]Feature, 0, len(c.Weights))
	for _, f := range featureOrder {
		if _, ok := c.Weights[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// GenericCalibration is the baseline variant: six features, 16px blocks,
// 1200px resolution cap.
func GenericCalibration() Calibration {
	return Calibration{
		Profile:             ProfileGeneric,
		MaxDimension:        1200,
		BlockSize:           16,
		GenuineThreshold:    0.75,
		ForgeryBase:         0.15,
		ForgeryFraction:     0.15,
		ManyWarningsFactor:  0.85,
		SingleWarningFactor: 0.95,
		ManyWarningsCount:   3,
		CriticalGateCount:   2,
		Weights: map[Feature]float64{
			FeatureEdge:             0.20,
			FeatureTexture:          0.20,
			FeatureCompression:      0.15,
			FeatureColorCorrelation: 0.15,
			FeatureNoiseResidual:    0.15,
			FeatureAlignment:        0.15,
		},
		Thresholds: map[Feature]FeatureThresholds{
			FeatureEdge:             {Critical: 0.45, Warning: 0.65},
			FeatureTexture:          {Critical: 0.50, Warning: 0.70},
			FeatureCompression:      {Critical: 0.40, Warning: 0.60},
			FeatureColorCorrelation: {Critical: 0.40, Warning: 0.60},
			FeatureNoiseResidual:    {Critical: 0.45, Warning: 0.65},
			FeatureAlignment:        {Critical: 0.35, Warning: 0.55},
		},
	}
}

// SpecializedCalibration is the document-type-aware variant: adds the
// security-mark feature, coarser 24px blocks and a tighter 1000px cap.
// Field-name repurposing on the wire (ocrConsistency carries the type
// confidence, fontConsistency the security score) is handled by the
// synthesizer, not here.
func SpecializedCalibration() Calibration {
	cal := Calibration{
		Profile:             ProfileSpecialized,
		MaxDimension:        1000,
		BlockSize:           24,
		GenuineThreshold:    0.75,
		ForgeryBase:         0.15,
		ForgeryFraction:     0.15,
		ManyWarningsFactor:  0.85,
		SingleWarningFactor: 0.95,
		ManyWarningsCount:   3,
		CriticalGateCount:   2,
		Weights: map[Feature]float64{
			FeatureEdge:             0.18,
			FeatureTexture:          0.17,
			FeatureCompression:      0.13,
			FeatureColorCorrelation: 0.12,
			FeatureNoiseResidual:    0.14,
			FeatureAlignment:        0.12,
			FeatureSecurityMarks:    0.14,
		},
		Thresholds: map[Feature]FeatureThresholds{
			FeatureEdge:             {Critical: 0.45, Warning: 0.65},
			FeatureTexture:          {Critical: 0.50, Warning: 0.70},
			FeatureCompression:      {Critical: 0.40, Warning: 0.60},
			FeatureColorCorrelation: {Critical: 0.40, Warning: 0.60},
			FeatureNoiseResidual:    {Critical: 0.45, Warning: 0.65},
			FeatureAlignment:        {Critical: 0.35, Warning: 0.55},
			FeatureSecurityMarks:    {Critical: 0.30, Warning: 0.50},
		},
	}
	cal.CategoryWeights = map[Category]map[Feature]float64{
		// ID cards carry strong security printing; lean on marks and edges.
		CategoryIDCard: {
			FeatureEdge:             0.20,
			FeatureTexture:          0.15,
			FeatureCompression:      0.12,
			FeatureColorCorrelation: 0.11,
			FeatureNoiseResidual:    0.12,
			FeatureAlignment:        0.10,
			FeatureSecurityMarks:    0.20,
		},
		// Passport pages are text-heavy with regular line pitch.
		CategoryPassport: {
			FeatureEdge:             0.17,
			FeatureTexture:          0.15,
			FeatureCompression:      0.12,
			FeatureColorCorrelation: 0.12,
			FeatureNoiseResidual:    0.12,
			FeatureAlignment:        0.18,
			FeatureSecurityMarks:    0.14,
		},
		// Plain A4 credentials rarely have holograms; de-emphasize marks.
		CategoryA4Document: {
			FeatureEdge:             0.20,
			FeatureTexture:          0.18,
			FeatureCompression:      0.14,
			FeatureColorCorrelation: 0.13,
			FeatureNoiseResidual:    0.14,
			FeatureAlignment:        0.16,
			FeatureSecurityMarks:    0.05,
		},
	}
	return cal
}

// CalibrationFor returns the preset table for a profile.
func CalibrationFor(profile Profile) (Calibration, error) {
	switch profile {
	case ProfileGeneric, "":
		return GenericCalibration(), nil
	case ProfileSpecialized:
		return SpecializedCalibration(), nil
	default:
		return Calibration{}, fmt.Errorf("unknown analysis profile: %q", profile)
	}
}

// calibrationOverride mirrors the subset of Calibration that an operator
// may tune from a TOML file.
type calibrationOverride struct {
	GenuineThreshold *float64           `toml:"genuine_threshold"`
	MaxDimension     *int               `toml:"max_dimension"`
	BlockSize        *int               `toml:"block_size"`
	Weights          map[string]float64 `toml:"weights"`
	Critical         map[string]float64 `toml:"critical_thresholds"`
	Warning          map[string]float64 `toml:"warning_thresholds"`
}

// LoadOverrides applies operator tuning from a TOML file on top of a preset
// calibration, then revalidates the merged table.
func LoadOverrides(cal Calibration, path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Calibration{}, fmt.Errorf("read calibration file: %w", err)
	}

	var ov calibrationOverride
	if err := toml.Unmarshal(data, &ov); err != nil {
		return Calibration{}, fmt.Errorf("parse calibration file: %w", err)
	}

	if ov.GenuineThreshold != nil {
		cal.GenuineThreshold = *ov.GenuineThreshold
	}
	if ov.MaxDimension != nil {
		cal.MaxDimension = *ov.MaxDimension
	}
	if ov.BlockSize != nil {
		cal.BlockSize = *ov.BlockSize
	}

	// Copy maps before mutating so presets stay untouched.
	if len(ov.Weights) > 0 || len(ov.Critical) > 0 || len(ov.Warning) > 0 {
		weights := make(map[Feature]float64, len(cal.Weights))
		for f, w := range cal.Weights {
			weights[f] = w
		}
		thresholds := make(map[Feature]FeatureThresholds, len(cal.Thresholds))
		for f, t := range cal.Thresholds {
			thresholds[f] = t
		}
		for name, w := range ov.Weights {
			f := Feature(name)
			if _, ok := weights[f]; !ok {
				return Calibration{}, fmt.Errorf("calibration override names unknown feature %q", name)
			}
			weights[f] = w
		}
		for name, v := range ov.Critical {
			f := Feature(name)
			t, ok := thresholds[f]
			if !ok {
				return Calibration{}, fmt.Errorf("calibration override names unknown feature %q", name)
			}
			t.Critical = v
			thresholds[f] = t
		}
		for name, v := range ov.Warning {
			f := Feature(name)
			t, ok := thresholds[f]
			if !ok {
				return Calibration{}, fmt.Errorf("calibration override names unknown feature %q", name)
			}
			t.Warning = v
			thresholds[f] = t
		}
		cal.Weights = weights
		cal.Thresholds = thresholds
	}

	if err := cal.Validate(); err != nil {
		return Calibration{}, err
	}
	return cal, nil
}

// Validate checks the structural invariants of a calibration table.
func (c Calibration) Validate() error {
	if c.MaxDimension <= 0 {
		return fmt.Errorf("calibration %s: max dimension must be positive", c.Profile)
	}
	if c.BlockSize < 2 {
		return fmt.Errorf("calibration %s: block size must be at least 2", c.Profile)
	}
	if c.GenuineThreshold <= 0 || c.GenuineThreshold > 1 {
		return fmt.Errorf("calibration %s: genuine threshold %f outside (0,1]", c.Profile, c.GenuineThreshold)
	}
	if err := validateWeights(c.Profile, "base", c.Weights); err != nil {
		return err
	}
	for cat, w := range c.CategoryWeights {
		if err := validateWeights(c.Profile, string(cat), w); err != nil {
			return err
		}
	}
	for f, t := range c.Thresholds {
		if t.Critical < 0 || t.Warning > 1 || t.Critical >= t.Warning {
			return fmt.Errorf("calibration %s: thresholds for %s must satisfy 0 <= critical < warning <= 1", c.Profile, f)
		}
	}
	for f := range c.Weights {
		if _, ok := c.Thresholds[f]; !ok {
			return fmt.Errorf("calibration %s: feature %s has a weight but no thresholds", c.Profile, f)
		}
	}
	return nil
}

func validateWeights(profile Profile, name string, weights map[Feature]float64) error {
	var sum float64
	for f, w := range weights {
		if w < 0 {
			return fmt.Errorf("calibration %s: %s weight for %s is negative", profile, name, f)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("calibration %s: %s weights sum to %f, want 1", profile, name, sum)
	}
	return nil
}
