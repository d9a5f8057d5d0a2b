// Package redact masks probable sensitive regions (machine-readable zones,
// national ID and social security numbers) in images and PDFs.
//
// Redaction is best-effort pixel masking. Internal failures never fail the
// caller: they are logged and reported as an unmasked result carrying the
// original bytes. Only context cancellation is returned as an error.
package redact

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/documentpacker/internal/bytescan"
	"github.com/Lllllllleong/documentpacker/internal/models"
	"github.com/Lllllllleong/documentpacker/internal/ocr"
	"github.com/Lllllllleong/documentpacker/internal/pdfgen"
	"github.com/Lllllllleong/documentpacker/internal/raster"
)

const (
	// ImageFallbackFraction is the bottom share of an image masked when the
	// recognized text carries an MRZ marker.
	ImageFallbackFraction = 0.20
	// PDFBandFraction is the bottom share of the first PDF page masked when the
	// document bytes carry an MRZ marker.
	PDFBandFraction = 0.18

	jpegQuality = 90
)

var (
	mrzRe        = regexp.MustCompile(`<{3,}`)
	ssnRe        = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	nationalIDRe = regexp.MustCompile(`(?i)\b[A-Z]\d{8,9}\b`)
)

// Sensitive reports whether a single recognized word should be masked.
func Sensitive(word string) bool {
	return ssnRe.MatchString(word) || nationalIDRe.MatchString(word) || mrzRe.MatchString(word)
}

// HasMRZ reports whether text carries a machine-readable-zone filler run.
func HasMRZ(text string) bool {
	return mrzRe.MatchString(text)
}

// Result is the output of one redaction call.
type Result struct {
	Bytes  []byte
	Masked bool
}

// Snapshot is a side-by-side PNG rendering of a document before and after
// redaction.
type Snapshot struct {
	Original []byte
	Redacted []byte
	Masked   bool
}

// Engine runs redaction with an injected recognizer. A nil recognizer is
// treated as unavailable and images are returned unmasked.
type Engine struct {
	recognizer ocr.Recognizer
	logger     *slog.Logger
}

// New returns an Engine. A nil logger means slog.Default().
func New(r ocr.Recognizer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{recognizer: r, logger: logger}
}

// Redact masks data according to its kind. The returned error is non-nil
// only when ctx is done.
func (e *Engine) Redact(ctx context.Context, data []byte, k models.Kind) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if k == models.KindPDF {
		return e.redactPDF(ctx, data)
	}
	return e.redactImage(ctx, data)
}

func (e *Engine) redactImage(ctx context.Context, data []byte) (Result, error) {
	unchanged := Result{Bytes: data}

	img, format, err := raster.Decode(data)
	if err != nil {
		e.logger.Warn("Redaction skipped, image did not decode.", "error", err)
		return unchanged, nil
	}
	canvas := raster.ToRGBA(img)

	boxes, err := e.boxes(ctx, canvas)
	if err != nil {
		return Result{}, err
	}
	if len(boxes) == 0 {
		return unchanged, nil
	}
	for _, b := range boxes {
		raster.Fill(canvas, b)
	}

	var out []byte
	if format == "png" {
		out, err = raster.EncodePNG(canvas)
	} else {
		out, err = raster.EncodeJPEG(canvas, jpegQuality)
	}
	if err != nil {
		e.logger.Warn("Redaction skipped, re-encode failed.", "error", err)
		return unchanged, nil
	}
	e.logger.Debug("Image redacted.", "boxes", len(boxes), "format", format)
	return Result{Bytes: out, Masked: true}, nil
}

// boxes runs the recognizer over canvas and returns the regions to mask.
// Recognizer failures yield no boxes.
func (e *Engine) boxes(ctx context.Context, canvas *image.RGBA) ([]image.Rectangle, error) {
	if e.recognizer == nil {
		e.logger.Debug("Redaction without recognizer.", "error", models.ErrRecognizerUnavailable)
		return nil, nil
	}
	rec, err := e.recognizer.Recognize(ctx, canvas)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Warn("Recognizer failed, leaving image unmasked.",
			"error", fmt.Errorf("%w: %v", models.ErrRecognizerUnavailable, err))
		return nil, nil
	}

	var out []image.Rectangle
	bounds := canvas.Bounds()
	if HasMRZ(rec.Text) {
		top := bounds.Min.Y + int(float64(bounds.Dy())*(1-ImageFallbackFraction))
		out = append(out, image.Rect(bounds.Min.X, top, bounds.Max.X, bounds.Max.Y))
	}
	for _, w := range rec.Words {
		t := strings.TrimSpace(w.Text)
		if t == "" || !Sensitive(t) {
			continue
		}
		out = append(out, normalizeBox(w.Box))
	}
	return out, nil
}

// normalizeBox clamps the origin at zero and guarantees at least a 1x1 area.
func normalizeBox(r image.Rectangle) image.Rectangle {
	r = r.Canon()
	x, y := max(0, r.Min.X), max(0, r.Min.Y)
	w, h := max(1, r.Dx()), max(1, r.Dy())
	return image.Rect(x, y, x+w, y+h)
}

// redactPDF replaces the first page with a blank canvas of the same size,
// banded at the bottom when an MRZ marker is found, and copies the remaining
// pages through unchanged.
func (e *Engine) redactPDF(ctx context.Context, data []byte) (Result, error) {
	unchanged := Result{Bytes: data}
	masked := HasMRZ(bytescan.Printable(data))

	w, h, pages, err := firstPage(data)
	if err != nil {
		e.logger.Warn("Redaction skipped, PDF did not load.", "error", err)
		return unchanged, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	band := 0.0
	if masked {
		band = PDFBandFraction
	}
	first, err := pdfgen.BandPage(w, h, band, time.Time{})
	if err != nil {
		e.logger.Warn("Redaction skipped, band page failed.", "error", err)
		return unchanged, nil
	}
	if pages == 1 {
		return Result{Bytes: first, Masked: masked}, nil
	}

	out, err := appendRest(first, data)
	if err != nil {
		e.logger.Warn("Redaction skipped, page reassembly failed.", "error", err)
		return unchanged, nil
	}
	return Result{Bytes: out, Masked: masked}, nil
}

// firstPage returns the floored first-page size (at least 1x1) and the page
// count.
func firstPage(data []byte) (w, h, pages int, err error) {
	dims, err := api.PageDims(bytes.NewReader(data), newConf())
	if err != nil {
		return 0, 0, 0, fmt.Errorf("page dimensions: %v: %w", err, models.ErrDecodeFailure)
	}
	if len(dims) == 0 {
		return 0, 0, 0, fmt.Errorf("no pages: %w", models.ErrDecodeFailure)
	}
	w = max(1, int(math.Floor(dims[0].Width)))
	h = max(1, int(math.Floor(dims[0].Height)))
	return w, h, len(dims), nil
}

func appendRest(first, data []byte) ([]byte, error) {
	var rest bytes.Buffer
	if err := api.Trim(bytes.NewReader(data), &rest, []string{"2-"}, newConf()); err != nil {
		return nil, fmt.Errorf("copy pages 2-: %w", err)
	}
	var out bytes.Buffer
	rs := []io.ReadSeeker{bytes.NewReader(first), bytes.NewReader(rest.Bytes())}
	if err := api.MergeRaw(rs, &out, false, newConf()); err != nil {
		return nil, fmt.Errorf("merge pages: %w", err)
	}
	return out.Bytes(), nil
}

// Preview renders PNG snapshots of data before and after redaction. PDFs are
// shown as the blank-canvas approximation used by Redact.
func (e *Engine) Preview(ctx context.Context, data []byte, k models.Kind) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	if k == models.KindPDF {
		return e.previewPDF(data)
	}

	img, _, err := raster.Decode(data)
	if err != nil {
		return Snapshot{}, err
	}
	canvas := raster.ToRGBA(img)
	orig, err := raster.EncodePNG(canvas)
	if err != nil {
		return Snapshot{}, err
	}
	boxes, err := e.boxes(ctx, canvas)
	if err != nil {
		return Snapshot{}, err
	}
	for _, b := range boxes {
		raster.Fill(canvas, b)
	}
	red, err := raster.EncodePNG(canvas)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Original: orig, Redacted: red, Masked: len(boxes) > 0}, nil
}

func (e *Engine) previewPDF(data []byte) (Snapshot, error) {
	w, h, _, err := firstPage(data)
	if err != nil {
		return Snapshot{}, err
	}
	orig, err := raster.EncodePNG(raster.Blank(w, h))
	if err != nil {
		return Snapshot{}, err
	}
	masked := HasMRZ(bytescan.Printable(data))
	band := 0.0
	if masked {
		band = PDFBandFraction
	}
	red, err := raster.EncodePNG(raster.Band(w, h, band))
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Original: orig, Redacted: red, Masked: masked}, nil
}

func newConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
