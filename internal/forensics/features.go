package forensics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"go-document-forensics/internal/raster"
)

// Extractor computes one FeatureScore from the shared raster image. Every
// extractor is a pure single-or-few-pass function: it never errors, never
// mutates the image, and returns a documented neutral default for
// degenerate input instead of NaN.
type Extractor func(img *raster.Image, cal Calibration) FeatureScore

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normStdDev returns stddev/mean, the dispersion measure the consistency
// scores are built on. A zero mean means a perfectly flat observation set,
// which reads as zero dispersion.
func normStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := stat.Mean(values, nil)
	if mean <= 1e-12 {
		return 0
	}
	return stat.StdDev(values, nil) / mean
}

// EdgeConsistency scores spatial homogeneity of gradient magnitudes.
// Splice and cut-paste manipulation introduces localized magnitude
// outliers; an authentic scan has statistically even edge strength.
// Neutral default 1.0 for images too small to convolve or with no
// gradient energy at all.
func EdgeConsistency(img *raster.Image, cal Calibration) FeatureScore {
	w, h := img.Width, img.Height
	if w < 3 || h < 3 {
		return FeatureScore{Feature: FeatureEdge, Score: 1.0}
	}

	mags := make([]float64, 0, (w-2)*(h-2))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -img.LumAt(x-1, y-1) + img.LumAt(x+1, y-1) +
				-2*img.LumAt(x-1, y) + 2*img.LumAt(x+1, y) +
				-img.LumAt(x-1, y+1) + img.LumAt(x+1, y+1)
			gy := -img.LumAt(x-1, y-1) - 2*img.LumAt(x, y-1) - img.LumAt(x+1, y-1) +
				img.LumAt(x-1, y+1) + 2*img.LumAt(x, y+1) + img.LumAt(x+1, y+1)
			mags = append(mags, math.Sqrt(gx*gx+gy*gy))
		}
	}

	mean := stat.Mean(mags, nil)
	if mean <= 1e-12 {
		// Flat image: no edges to be inconsistent
		return FeatureScore{
			Feature: FeatureEdge,
			Score:   1.0,
			Raw:     map[string]float64{"mean_magnitude": 0, "stddev": 0},
		}
	}
	sd := stat.StdDev(mags, nil)
	return FeatureScore{
		Feature: FeatureEdge,
		Score:   clamp01(1.0 - sd/mean),
		Raw:     map[string]float64{"mean_magnitude": mean, "stddev": sd},
	}
}

// TextureUniformity partitions the luminance plane into fixed-size blocks
// and scores the dispersion of per-block variance. Tampered regions carry
// a different local texture signature than the surrounding material.
// Neutral default 1.0 when fewer than two full blocks fit.
func TextureUniformity(img *raster.Image, cal Calibration) FeatureScore {
	bs := cal.BlockSize
	blocksX, blocksY := img.Width/bs, img.Height/bs
	if blocksX*blocksY < 2 {
		return FeatureScore{Feature: FeatureTexture, Score: 1.0}
	}

	variances := make([]float64, 0, blocksX*blocksY)
	block := make([]float64, 0, bs*bs)
	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			block = block[:0]
			for y := by * bs; y < (by+1)*bs; y++ {
				for x := bx * bs; x < (bx+1)*bs; x++ {
					block = append(block, img.LumAt(x, y))
				}
			}
			variances = append(variances, stat.Variance(block, nil))
		}
	}

	return FeatureScore{
		Feature: FeatureTexture,
		Score:   clamp01(1.0 - normStdDev(variances)),
		Raw: map[string]float64{
			"blocks":        float64(len(variances)),
			"mean_variance": stat.Mean(variances, nil),
		},
	}
}

// CompressionArtifacts compares horizontal pixel-to-pixel differences at
// 8-pixel-period block boundaries against interior positions. Re-encoded or
// composite JPEG sources leave boundary discontinuities that push the
// boundary/interior ratio away from 1. Neutral default 1.0 for images
// without both boundary and interior samples or with no horizontal energy.
func CompressionArtifacts(img *raster.Image, cal Calibration) FeatureScore {
	w, h := img.Width, img.Height
	if w < 10 || h < 1 {
		return FeatureScore{Feature: FeatureCompression, Score: 1.0}
	}

	var boundarySum, interiorSum float64
	var boundaryN, interiorN int
	for y := 0; y < h; y++ {
		for x := 0; x < w-1; x++ {
			diff := math.Abs(img.LumAt(x+1, y) - img.LumAt(x, y))
			if x%8 == 7 {
				boundarySum += diff
				boundaryN++
			} else {
				interiorSum += diff
				interiorN++
			}
		}
	}

	if boundaryN == 0 || interiorN == 0 {
		return FeatureScore{Feature: FeatureCompression, Score: 1.0}
	}
	boundaryAvg := boundarySum / float64(boundaryN)
	interiorAvg := interiorSum / float64(interiorN)
	if boundaryAvg <= 1e-12 && interiorAvg <= 1e-12 {
		// Flat image: no discontinuities anywhere
		return FeatureScore{
			Feature: FeatureCompression,
			Score:   1.0,
			Raw:     map[string]float64{"boundary_avg": 0, "interior_avg": 0, "ratio": 1},
		}
	}

	var ratio float64
	if interiorAvg <= 1e-12 {
		// All energy sits exactly on block boundaries
		ratio = math.Inf(1)
	} else {
		ratio = boundaryAvg / interiorAvg
	}
	return FeatureScore{
		Feature: FeatureCompression,
		Score:   clamp01(1.0 - math.Abs(ratio-1.0)),
		Raw: map[string]float64{
			"boundary_avg": boundaryAvg,
			"interior_avg": interiorAvg,
			"ratio":        ratio,
		},
	}
}

// ColorChannelCorrelation computes the per-block Pearson correlation
// between the red and green channels and scores its stability. Regions
// spliced in from a different capture break the otherwise stable
// inter-channel correlation. Uniform blocks count as perfectly correlated.
// Neutral default 1.0 when fewer than two blocks fit.
func ColorChannelCorrelation(img *raster.Image, cal Calibration) FeatureScore {
	bs := cal.BlockSize
	blocksX, blocksY := img.Width/bs, img.Height/bs
	if blocksX*blocksY < 2 {
		return FeatureScore{Feature: FeatureColorCorrelation, Score: 1.0}
	}

	corrs := make([]float64, 0, blocksX*blocksY)
	reds := make([]float64, 0, bs*bs)
	greens := make([]float64, 0, bs*bs)
	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			reds = reds[:0]
			greens = greens[:0]
			for y := by * bs; y < (by+1)*bs; y++ {
				for x := bx * bs; x < (bx+1)*bs; x++ {
					r, g, _ := img.RGB(x, y)
					reds = append(reds, float64(r))
					greens = append(greens, float64(g))
				}
			}
			corr := stat.Correlation(reds, greens, nil)
			if math.IsNaN(corr) {
				// Zero-variance block: a single flat capture patch
				corr = 1.0
			}
			corrs = append(corrs, corr)
		}
	}

	sd := stat.StdDev(corrs, nil)
	return FeatureScore{
		Feature: FeatureColorCorrelation,
		Score:   clamp01(1.0 - 3.0*sd),
		Raw: map[string]float64{
			"mean_correlation":   stat.Mean(corrs, nil),
			"stddev_correlation": sd,
		},
	}
}

// NoiseResidualUniformity subtracts each pixel's 8-neighbor local mean to
// obtain a noise residual field and scores the coefficient of variation of
// per-block residual spread. Sensor and print noise is stationary in
// genuine captures; local edits disturb that stationarity. Neutral default
// 1.0 for flat images or when fewer than two blocks fit.
func NoiseResidualUniformity(img *raster.Image, cal Calibration) FeatureScore {
	w, h := img.Width, img.Height
	bs := cal.BlockSize
	if w < bs+2 || h < bs+2 {
		return FeatureScore{Feature: FeatureNoiseResidual, Score: 1.0}
	}

	// Residual field over the interior; border pixels lack 8 neighbors.
	residual := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			neighborMean := (img.LumAt(x-1, y-1) + img.LumAt(x, y-1) + img.LumAt(x+1, y-1) +
				img.LumAt(x-1, y) + img.LumAt(x+1, y) +
				img.LumAt(x-1, y+1) + img.LumAt(x, y+1) + img.LumAt(x+1, y+1)) / 8.0
			residual[y*w+x] = img.LumAt(x, y) - neighborMean
		}
	}

	blocksX, blocksY := (w-2)/bs, (h-2)/bs
	if blocksX*blocksY < 2 {
		return FeatureScore{Feature: FeatureNoiseResidual, Score: 1.0}
	}

	blockStds := make([]float64, 0, blocksX*blocksY)
	block := make([]float64, 0, bs*bs)
	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			block = block[:0]
			for y := 1 + by*bs; y < 1+(by+1)*bs; y++ {
				for x := 1 + bx*bs; x < 1+(bx+1)*bs; x++ {
					block = append(block, residual[y*w+x])
				}
			}
			blockStds = append(blockStds, stat.StdDev(block, nil))
		}
	}

	mean := stat.Mean(blockStds, nil)
	if mean <= 1e-12 {
		return FeatureScore{
			Feature: FeatureNoiseResidual,
			Score:   1.0,
			Raw:     map[string]float64{"mean_block_stddev": 0, "cov": 0},
		}
	}
	cov := stat.StdDev(blockStds, nil) / mean
	return FeatureScore{
		Feature: FeatureNoiseResidual,
		Score:   clamp01(1.0 - cov),
		Raw: map[string]float64{
			"mean_block_stddev": mean,
			"cov":               cov,
		},
	}
}

// TextLineAlignment projects luminance onto a 1-D horizontal profile,
// segments candidate text-line bands below 90% of the global mean, and
// scores the regularity of band heights. Printed documents have regular
// line pitch; doctored insertions disturb it. Neutral default 0.75 when
// fewer than 3 bands are detected.
func TextLineAlignment(img *raster.Image, cal Calibration) FeatureScore {
	w, h := img.Width, img.Height
	if w == 0 || h == 0 {
		return FeatureScore{Feature: FeatureAlignment, Score: 0.75}
	}

	rowMeans := make([]float64, h)
	for y := 0; y < h; y++ {
		var sum float64
		for x := 0; x < w; x++ {
			sum += img.LumAt(x, y)
		}
		rowMeans[y] = sum / float64(w)
	}

	threshold := 0.9 * stat.Mean(rowMeans, nil)

	var heights []float64
	run := 0
	for y := 0; y < h; y++ {
		if rowMeans[y] < threshold {
			run++
			continue
		}
		if run > 0 {
			heights = append(heights, float64(run))
			run = 0
		}
	}
	if run > 0 {
		heights = append(heights, float64(run))
	}

	if len(heights) < 3 {
		return FeatureScore{
			Feature: FeatureAlignment,
			Score:   0.75,
			Raw:     map[string]float64{"bands": float64(len(heights))},
		}
	}

	mean := stat.Mean(heights, nil)
	cov := stat.StdDev(heights, nil) / mean
	return FeatureScore{
		Feature: FeatureAlignment,
		Score:   clamp01(1.0 - cov),
		Raw: map[string]float64{
			"bands":            float64(len(heights)),
			"mean_band_height": mean,
			"cov":              cov,
		},
	}
}
