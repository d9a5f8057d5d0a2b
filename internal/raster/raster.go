// Package raster holds the decode and canvas helpers shared by redaction and
// image compression.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/Lllllllleong/documentpacker/internal/models"
	"golang.org/x/image/draw"

	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode decodes any registered image format and reports its name.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image: %w", models.ErrInvalidInput)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %v: %w", err, models.ErrDecodeFailure)
	}
	return img, format, nil
}

// ToRGBA copies img onto a fresh RGBA canvas with origin (0,0).
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Blank returns a white canvas of the given size. Sizes below 1 become 1.
func Blank(w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, max(1, w), max(1, h)))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	return dst
}

// Fill paints r solid black, clipped to the canvas.
func Fill(dst *image.RGBA, r image.Rectangle) {
	draw.Draw(dst, r.Intersect(dst.Bounds()), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
}

// Band returns a white w x h canvas with the bottom frac of its height
// painted black. The band height is floored.
func Band(w, h int, frac float64) *image.RGBA {
	dst := Blank(w, h)
	if frac > 0 {
		b := dst.Bounds()
		bh := int(math.Floor(float64(b.Dy()) * frac))
		Fill(dst, image.Rect(0, b.Dy()-bh, b.Dx(), b.Dy()))
	}
	return dst
}

// Flatten composites img over white, dropping any alpha channel, and scales
// it to w x h with Catmull-Rom resampling.
func Flatten(img image.Image, w, h int) *image.RGBA {
	dst := Blank(w, h)
	src := img.Bounds()
	if src.Dx() == w && src.Dy() == h {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	return dst
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG encodes img as JPEG at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
