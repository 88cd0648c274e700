package forensics

import (
	"go-document-forensics/internal/raster"
)

// Security-mark pixel classification bands. Hologram foil reads as
// saturated and bright; printed watermarks sit in a narrow mid-brightness
// band with almost no chroma.
const (
	holoMinSaturation = 0.50
	holoMinBrightness = 0.60

	watermarkMinBrightness = 0.35
	watermarkMaxBrightness = 0.65
	watermarkMaxSaturation = 0.15

	securitySampleStep = 2
)

// SecurityMarkDensity classifies sampled pixels as hologram-like or
// watermark-like and folds the two bucket fractions into one combined
// score. Only the specialized profile weighs this feature. Neutral default
// 0.75 for images too small to sample.
func SecurityMarkDensity(img *raster.Image, cal Calibration) FeatureScore {
	w, h := img.Width, img.Height
	if w < securitySampleStep || h < securitySampleStep {
		return FeatureScore{Feature: FeatureSecurityMarks, Score: 0.75}
	}

	var holo, watermark, sampled int
	for y := 0; y < h; y += securitySampleStep {
		for x := 0; x < w; x += securitySampleStep {
			r, g, b := img.RGB(x, y)
			rf, gf, bf := float64(r)/255.0, float64(g)/255.0, float64(b)/255.0

			max := rf
			if gf > max {
				max = gf
			}
			if bf > max {
				max = bf
			}
			min := rf
			if gf < min {
				min = gf
			}
			if bf < min {
				min = bf
			}

			brightness := max
			saturation := 0.0
			if max > 0 {
				saturation = (max - min) / max
			}

			switch {
			case saturation > holoMinSaturation && brightness > holoMinBrightness:
				holo++
			case brightness >= watermarkMinBrightness && brightness <= watermarkMaxBrightness &&
				saturation < watermarkMaxSaturation:
				watermark++
			}
			sampled++
		}
	}

	if sampled == 0 {
		return FeatureScore{Feature: FeatureSecurityMarks, Score: 0.75}
	}

	holoFrac := float64(holo) / float64(sampled)
	watermarkFrac := float64(watermark) / float64(sampled)

	// Either mark type alone can carry the score; holograms count double
	// since their pixel footprint is small on genuine documents.
	combined := clamp01(0.30 + 2.0*holoFrac + 0.90*watermarkFrac)

	return FeatureScore{
		Feature: FeatureSecurityMarks,
		Score:   combined,
		Raw: map[string]float64{
			"hologram_fraction":  holoFrac,
			"watermark_fraction": watermarkFrac,
			"sampled_pixels":     float64(sampled),
		},
	}
}
