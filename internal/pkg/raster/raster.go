// Package raster turns uploaded or downloaded imagery into model input.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// DefaultMaxPixels is the decode limit used when none is configured,
// roughly a 40 megapixel frame.
const DefaultMaxPixels = 40_000_000

var (
	// ErrEmptyImage is returned for a zero-length payload.
	ErrEmptyImage = errors.New("empty image")
	// ErrImageTooLarge is returned when the header declares more pixels than allowed.
	ErrImageTooLarge = errors.New("image too large")
)

// Decode reads a PNG, JPEG, GIF, BMP or TIFF payload, honouring EXIF
// orientation. The header is checked first, so an image declaring more
// than maxPixels pixels is refused before its pixels are allocated;
// maxPixels <= 0 means DefaultMaxPixels.
func Decode(data []byte, maxPixels int) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrEmptyImage
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, ErrEmptyImage
	}
	return img, nil
}

// ToFloat32 resizes img to width x height with bilinear sampling and
// returns its RGB channels in HWC order scaled to [0,1]. Alpha is dropped.
func ToFloat32(img image.Image, width, height int) ([]float32, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	resized := img
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		resized = resize.Resize(uint(width), uint(height), img, resize.Bilinear)
	}

	b := resized.Bounds()
	out := make([]float32, 0, width*height*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := resized.At(x, y).RGBA()
			out = append(out,
				float32(r>>8)/255,
				float32(g>>8)/255,
				float32(bl>>8)/255,
			)
		}
	}
	return out, nil
}

// EncodePNG is used by tests and the tile preview to produce a payload.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
