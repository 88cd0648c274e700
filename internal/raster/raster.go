package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

var (
	// ErrDecode indicates the input bytes could not be decoded as a raster image
	ErrDecode = errors.New("undecodable image data")

	// ErrEmptyImage indicates the decoded image has zero extent
	ErrEmptyImage = errors.New("image has zero extent")
)

// Image is an owned, fixed-layout pixel buffer with a derived luminance
// plane. It is immutable once constructed: a single analysis owns it and
// every extractor reads it without copying or mutating.
type Image struct {
	Width  int
	Height int

	// Pix holds interleaved RGBA samples, stride Width*4.
	Pix []uint8

	// Lum holds one luminance value per pixel in [0,255] derived with
	// Rec.601 weights.
	Lum []float64
}

// Decode parses raw encoded bytes into a normalized Image. When either
// dimension exceeds maxDim the image is downscaled preserving aspect ratio
// using an area-average filter; images are never upscaled. Resampling by
// box averaging avoids introducing block artifacts that would bias the
// compression and texture extractors downstream.
func Decode(data []byte, maxDim int) (*Image, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return FromImage(src, maxDim)
}

// FromImage builds a normalized Image from an already decoded image.Image.
func FromImage(src image.Image, maxDim int) (*Image, error) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyImage
	}

	pix := rgbaSamples(src)

	if maxDim > 0 && (w > maxDim || h > maxDim) {
		pix, w, h = downscale(pix, w, h, maxDim)
		if w <= 0 || h <= 0 {
			return nil, ErrEmptyImage
		}
	}

	img := &Image{
		Width:  w,
		Height: h,
		Pix:    pix,
		Lum:    make([]float64, w*h),
	}
	for i := 0; i < w*h; i++ {
		r := float64(pix[i*4])
		g := float64(pix[i*4+1])
		b := float64(pix[i*4+2])
		img.Lum[i] = 0.299*r + 0.587*g + 0.114*b
	}
	return img, nil
}

// RGB returns the color samples at (x, y). Out-of-range coordinates are
// the caller's bug; extractors iterate within Width/Height by contract.
func (img *Image) RGB(x, y int) (r, g, b uint8) {
	i := (y*img.Width + x) * 4
	return img.Pix[i], img.Pix[i+1], img.Pix[i+2]
}

// LumAt returns the luminance value at (x, y).
func (img *Image) LumAt(x, y int) float64 {
	return img.Lum[y*img.Width+x]
}

// AspectRatio returns width divided by height.
func (img *Image) AspectRatio() float64 {
	return float64(img.Width) / float64(img.Height)
}

// rgbaSamples flattens an image.Image into interleaved RGBA bytes.
// The fast path indexes *image.RGBA storage directly; everything else
// goes through the color model.
func rgbaSamples(src image.Image) []uint8 {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pix := make([]uint8, w*h*4)

	if rgba, ok := src.(*image.RGBA); ok {
		for y := 0; y < h; y++ {
			srcRow := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
			copy(pix[y*w*4:(y+1)*w*4], srcRow)
		}
		return pix
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := (y*w + x) * 4
			pix[i] = uint8(r >> 8)
			pix[i+1] = uint8(g >> 8)
			pix[i+2] = uint8(b >> 8)
			pix[i+3] = uint8(a >> 8)
		}
	}
	return pix
}

// downscale shrinks the buffer so max(width, height) == maxDim, averaging
// every source pixel that falls into a target cell. Bin edges are computed
// with integer arithmetic so repeated runs over the same bytes produce
// identical output.
func downscale(pix []uint8, w, h, maxDim int) ([]uint8, int, int) {
	tw, th := w, h
	if w >= h {
		tw = maxDim
		th = h * maxDim / w
	} else {
		th = maxDim
		tw = w * maxDim / h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	out := make([]uint8, tw*th*4)
	for ty := 0; ty < th; ty++ {
		y0 := ty * h / th
		y1 := (ty + 1) * h / th
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for tx := 0; tx < tw; tx++ {
			x0 := tx * w / tw
			x1 := (tx + 1) * w / tw
			if x1 <= x0 {
				x1 = x0 + 1
			}

			var sumR, sumG, sumB, sumA uint64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					i := (y*w + x) * 4
					sumR += uint64(pix[i])
					sumG += uint64(pix[i+1])
					sumB += uint64(pix[i+2])
					sumA += uint64(pix[i+3])
				}
			}

			n := uint64((y1 - y0) * (x1 - x0))
			o := (ty*tw + tx) * 4
			out[o] = uint8(sumR / n)
			out[o+1] = uint8(sumG / n)
			out[o+2] = uint8(sumB / n)
			out[o+3] = uint8(sumA / n)
		}
	}
	return out, tw, th
}
