// Package ocr defines the text recognizer capability used by redaction and
// hint inference, plus a Tesseract-backed implementation.
package ocr

import (
	"context"
	"image"
)

// Word is one recognized token and its pixel bounds (origin top-left).
type Word struct {
	Text string
	Box  image.Rectangle
}

// Recognition is the output of one recognizer call.
type Recognition struct {
	Text  string
	Words []Word
}

// Recognizer extracts text and word locations from a raster. Implementations
// may be slow and may fail; callers must tolerate both.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (Recognition, error)
}

// RecognizerFunc adapts a plain function to Recognizer.
type RecognizerFunc func(ctx context.Context, img image.Image) (Recognition, error)

func (f RecognizerFunc) Recognize(ctx context.Context, img image.Image) (Recognition, error) {
	return f(ctx, img)
}
