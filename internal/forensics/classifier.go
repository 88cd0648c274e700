package forensics

import (
	"fmt"
	"math"

	"go-document-forensics/internal/raster"
)

// aspectBucket maps a coarse document class to its nominal width/height
// ratio and the tolerance within which a match counts.
type aspectBucket struct {
	category  Category
	ratio     float64
	tolerance float64
}

// Tolerance bands overlap (passport pages and portrait A4 sit within a
// hundredth of each other), so matching picks the bucket with the smallest
// distance relative to its tolerance; ties break in slice order.
var aspectBuckets = []aspectBucket{
	{CategoryIDCard, 1.586, 0.15},
	{CategoryPassport, 0.70, 0.08},
	{CategoryA4Document, 0.707, 0.06},
	{CategoryA4Document, 1.414, 0.10},
}

// headerFraction is the share of rows at the top of the image treated as
// the header region for color-cue sampling.
const headerFraction = 0.2

// Classifier guesses a coarse document category from aspect ratio and
// header-region color statistics. The guess is purely advisory: it selects
// a per-category weight vector and never gates the verdict. Ambiguous
// images fall back to the generic category with baseline weights.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify returns the best-guess category with a confidence in [0,1] and
// the visual cues that matched.
func (c *Classifier) Classify(img *raster.Image) DocumentTypeGuess {
	ratio := img.AspectRatio()

	var category Category = CategoryGeneric
	confidence := 0.5
	var cues []string

	best := math.Inf(1)
	for _, b := range aspectBuckets {
		norm := math.Abs(ratio-b.ratio) / b.tolerance
		if norm <= 1.0 && norm < best {
			best = norm
			category = b.category
		}
	}
	if !math.IsInf(best, 1) {
		// Confidence decays linearly with distance from the nominal ratio
		confidence = clamp01(0.6 + 0.35*(1.0-best))
		cues = append(cues, fmt.Sprintf("aspect_ratio:%s", category))
	}

	saffron, blue := c.headerColorRatios(img)
	if saffron > 0.08 {
		cues = append(cues, "header_band:saffron")
		if category == CategoryIDCard || category == CategoryGeneric {
			category = CategoryIDCard
			confidence = clamp01(confidence + 0.10)
		}
	}
	if blue > 0.12 {
		cues = append(cues, "header_band:blue")
		if category == CategoryGeneric {
			category = CategoryIDCard
			confidence = clamp01(confidence + 0.05)
		}
	}

	return DocumentTypeGuess{
		Category:   category,
		Confidence: confidence,
		Cues:       cues,
	}
}

// headerColorRatios samples the header region and reports the fraction of
// pixels in the saffron (orange) and blue hue ranges used as category cues.
func (c *Classifier) headerColorRatios(img *raster.Image) (saffron, blue float64) {
	headerRows := int(float64(img.Height) * headerFraction)
	if headerRows < 1 {
		headerRows = 1
	}

	var saffronN, blueN, sampled int
	for y := 0; y < headerRows; y++ {
		for x := 0; x < img.Width; x += 2 {
			r, g, b := img.RGB(x, y)
			h, s, v := rgbToHSV(float64(r)/255.0, float64(g)/255.0, float64(b)/255.0)
			if s < 0.25 || v < 0.2 {
				sampled++
				continue
			}
			if h >= 15 && h <= 45 {
				saffronN++
			} else if h >= 200 && h <= 250 {
				blueN++
			}
			sampled++
		}
	}
	if sampled == 0 {
		return 0, 0
	}
	return float64(saffronN) / float64(sampled), float64(blueN) / float64(sampled)
}

func rgbToHSV(r, g, b float64) (h, s, v float64) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min

	v = max
	if max == 0 {
		s = 0
	} else {
		s = delta / max
	}

	if delta == 0 {
		h = 0
	} else if max == r {
		h = 60 * ((g - b) / delta)
	} else if max == g {
		h = 60 * (((b - r) / delta) + 2)
	} else {
		h = 60 * (((r - g) / delta) + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}
