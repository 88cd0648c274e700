package forensics

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestPresetCalibrations_Validate(t *testing.T) {
	for _, cal := range []Calibration{GenericCalibration(), SpecializedCalibration()} {
		if err := cal.Validate(); err != nil {
			t.Errorf("%s preset failed validation: %v", cal.Profile, err)
		}
	}
}

func TestCalibrationFor(t *testing.T) {
	cal, err := CalibrationFor(ProfileGeneric)
	if err != nil || cal.Profile != ProfileGeneric {
		t.Errorf("expected generic calibration, got %v (%v)", cal.Profile, err)
	}

	cal, err = CalibrationFor("")
	if err != nil || cal.Profile != ProfileGeneric {
		t.Errorf("expected empty profile to default to generic, got %v (%v)", cal.Profile, err)
	}

	cal, err = CalibrationFor(ProfileSpecialized)
	if err != nil || cal.Profile != ProfileSpecialized {
		t.Errorf("expected specialized calibration, got %v (%v)", cal.Profile, err)
	}

	if _, err = CalibrationFor("aggressive"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestCalibration_FeatureSets(t *testing.T) {
	generic := GenericCalibration().Features()
	if len(generic) != 6 {
		t.Errorf("expected 6 generic features, got %d", len(generic))
	}
	for _, f := range generic {
		if f == FeatureSecurityMarks {
			t.Error("generic profile must not include the security-mark feature")
		}
	}

	specialized := SpecializedCalibration().Features()
	if len(specialized) != 7 {
		t.Errorf("expected 7 specialized features, got %d", len(specialized))
	}
	if specialized[len(specialized)-1] != FeatureSecurityMarks {
		t.Errorf("expected security marks last in feature order, got %s", specialized[len(specialized)-1])
	}

	// Order must be identical across calls.
	again := SpecializedCalibration().Features()
	for i := range specialized {
		if specialized[i] != again[i] {
			t.Fatalf("feature order not stable at index %d: %s vs %s", i, specialized[i], again[i])
		}
	}
}

func TestCalibration_ValidateRejectsBadTables(t *testing.T) {
	cases := map[string]func(*Calibration){
		"zero max dimension":    func(c *Calibration) { c.MaxDimension = 0 },
		"block size too small":  func(c *Calibration) { c.BlockSize = 1 },
		"threshold above one":   func(c *Calibration) { c.GenuineThreshold = 1.5 },
		"unbalanced weights":    func(c *Calibration) { c.Weights[FeatureEdge] = 0.90 },
		"negative weight":       func(c *Calibration) { c.Weights[FeatureEdge] = -0.20; c.Weights[FeatureTexture] = 0.60 },
		"inverted cutoffs":      func(c *Calibration) { c.Thresholds[FeatureEdge] = FeatureThresholds{Critical: 0.70, Warning: 0.50} },
		"weight sans threshold": func(c *Calibration) { delete(c.Thresholds, FeatureEdge) },
	}

	for name, mutate := range cases {
		cal := GenericCalibration()
		mutate(&cal)
		if err := cal.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func writeCalibrationFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calibration.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write calibration file: %v", err)
	}
	return path
}

func TestLoadOverrides_AppliesTuning(t *testing.T) {
	path := writeCalibrationFile(t, `
genuine_threshold = 0.80
max_dimension = 900
block_size = 32

[weights]
edge_consistency = 0.25
texture_uniformity = 0.15

[critical_thresholds]
edge_consistency = 0.50

[warning_thresholds]
edge_consistency = 0.70
`)

	cal, err := LoadOverrides(GenericCalibration(), path)
	if err != nil {
		t.Fatalf("failed to load overrides: %v", err)
	}

	if cal.GenuineThreshold != 0.80 {
		t.Errorf("expected genuine threshold 0.80, got %f", cal.GenuineThreshold)
	}
	if cal.MaxDimension != 900 || cal.BlockSize != 32 {
		t.Errorf("expected dimensions 900/32, got %d/%d", cal.MaxDimension, cal.BlockSize)
	}
	if cal.Weights[FeatureEdge] != 0.25 || cal.Weights[FeatureTexture] != 0.15 {
		t.Errorf("expected reweighted edge/texture, got %f/%f",
			cal.Weights[FeatureEdge], cal.Weights[FeatureTexture])
	}
	if cal.Thresholds[FeatureEdge] != (FeatureThresholds{Critical: 0.50, Warning: 0.70}) {
		t.Errorf("expected overridden edge thresholds, got %+v", cal.Thresholds[FeatureEdge])
	}

	// Untouched entries keep their preset values.
	if cal.Thresholds[FeatureTexture] != (FeatureThresholds{Critical: 0.50, Warning: 0.70}) {
		t.Errorf("expected preset texture thresholds, got %+v", cal.Thresholds[FeatureTexture])
	}
}

func TestLoadOverrides_PresetStaysUntouched(t *testing.T) {
	path := writeCalibrationFile(t, `
[weights]
edge_consistency = 0.25
texture_uniformity = 0.15
`)

	if _, err := LoadOverrides(GenericCalibration(), path); err != nil {
		t.Fatalf("failed to load overrides: %v", err)
	}

	fresh := GenericCalibration()
	if fresh.Weights[FeatureEdge] != 0.20 {
		t.Errorf("preset mutated by override load: edge weight %f", fresh.Weights[FeatureEdge])
	}
}

func TestLoadOverrides_RejectsBadInput(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadOverrides(GenericCalibration(), filepath.Join(t.TempDir(), "absent.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("malformed toml", func(t *testing.T) {
		path := writeCalibrationFile(t, `genuine_threshold = [not toml`)
		if _, err := LoadOverrides(GenericCalibration(), path); err == nil {
			t.Error("expected error for malformed file")
		}
	})

	t.Run("unknown feature", func(t *testing.T) {
		path := writeCalibrationFile(t, `
[weights]
halo_brightness = 0.20
`)
		if _, err := LoadOverrides(GenericCalibration(), path); err == nil {
			t.Error("expected error for unknown feature name")
		}
	})

	t.Run("unbalanced result", func(t *testing.T) {
		path := writeCalibrationFile(t, `
[weights]
edge_consistency = 0.90
`)
		if _, err := LoadOverrides(GenericCalibration(), path); err == nil {
			t.Error("expected validation error for unbalanced merged weights")
		}
	})
}

func TestCategoryWeights_SumToOne(t *testing.T) {
	cal := SpecializedCalibration()
	for cat, weights := range cal.CategoryWeights {
		var sum float64
		for _, w := range weights {
			sum += w
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("%s weights sum to %f, want 1", cat, sum)
		}
	}
}
