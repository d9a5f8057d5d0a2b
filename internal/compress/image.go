// Package compress holds the image recompressor and the PDF relinearizer.
package compress

import (
	"context"
	"math"

	"github.com/Lllllllleong/documentpacker/internal/raster"
)

const (
	// MaxEdge bounds the longest side of a recompressed image, in pixels.
	MaxEdge = 2000
	// ImageQuality is the JPEG quality used for recompressed images.
	ImageQuality = 70
)

// ImageResult is the output of CompressImage. Bytes is always a JPEG.
type ImageResult struct {
	Bytes          []byte
	OriginalSize   int64
	FinalSize      int64
	ReductionRatio float64
	Width          int
	Height         int
}

// CompressImage bounds the image to MaxEdge on its longest side, flattens any
// transparency onto white, and re-encodes it as JPEG.
func CompressImage(ctx context.Context, data []byte) (ImageResult, error) {
	if err := ctx.Err(); err != nil {
		return ImageResult{}, err
	}
	img, _, err := raster.Decode(data)
	if err != nil {
		return ImageResult{}, err
	}

	b := img.Bounds()
	w, h := fit(b.Dx(), b.Dy(), MaxEdge)
	out, err := raster.EncodeJPEG(raster.Flatten(img, w, h), ImageQuality)
	if err != nil {
		return ImageResult{}, err
	}

	orig, final := int64(len(data)), int64(len(out))
	return ImageResult{
		Bytes:          out,
		OriginalSize:   orig,
		FinalSize:      final,
		ReductionRatio: Reduction(orig, final),
		Width:          w,
		Height:         h,
	}, nil
}

// fit scales w x h down, preserving aspect ratio, so neither side exceeds edge.
func fit(w, h, edge int) (int, int) {
	longest := max(w, h)
	if longest <= edge {
		return w, h
	}
	scale := float64(edge) / float64(longest)
	return max(1, int(math.Round(float64(w)*scale))), max(1, int(math.Round(float64(h)*scale)))
}

// Reduction returns 1 - final/original, or 0 when original is 0.
func Reduction(original, final int64) float64 {
	if original == 0 {
		return 0
	}
	return 1 - float64(final)/float64(original)
}
