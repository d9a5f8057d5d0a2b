// Package hints guesses naming fields (DocType, Side, DateISO) for a batch
// item from its file name, EXIF data, recognized text and, optionally, an AI
// suggester.
package hints

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/Lllllllleong/documentpacker/internal/bytescan"
	"github.com/Lllllllleong/documentpacker/internal/models"
	"github.com/Lllllllleong/documentpacker/internal/ocr"
	"github.com/Lllllllleong/documentpacker/internal/raster"
	"github.com/Lllllllleong/documentpacker/internal/template"
)

const (
	FieldDocType = "DocType"
	FieldSide    = "Side"

	SideFront = "Front"
	SideBack  = "Back"

	// MaxRecognizeSize is the largest input passed to the recognizer.
	MaxRecognizeSize = 5 * 1024 * 1024
)

type docPattern struct {
	re      *regexp.Regexp
	docType string
}

var (
	nameDocPatterns = []docPattern{
		{regexp.MustCompile(`(?i)\b(i[\s_-]?20)\b`), "I-20"},
		{regexp.MustCompile(`(?i)\b(i[\s_-]?765)\b`), "I-765"},
		{regexp.MustCompile(`(?i)\bead\b`), "EAD"},
		{regexp.MustCompile(`(?i)\bpassport\b`), "Passport"},
	}
	textDocPatterns = []docPattern{
		{regexp.MustCompile(`(?i)\bpassport\b`), "Passport"},
		{regexp.MustCompile(`(?i)\bi[-\s]?20\b`), "I-20"},
		{regexp.MustCompile(`(?i)\bi[-\s]?765\b`), "I-765"},
		{regexp.MustCompile(`(?i)\bead\b|employment authorization document`), "EAD"},
	}

	backNameRe  = regexp.MustCompile(`(?i)\b(back|verso)\b|\bpassport[_-]?back\b`)
	frontNameRe = regexp.MustCompile(`(?i)\b(front|recto)\b|\bpassport[_-]?front\b`)

	frontTextRe = regexp.MustCompile(`(?i)united states of america|department of state|passport`)
	backTextRe  = regexp.MustCompile(`(?i)<<<|machine readable zone|mrz`)
)

// FromName applies the file-name fast path.
func FromName(name string) models.FieldMap {
	out := models.FieldMap{}
	for _, p := range nameDocPatterns {
		if p.re.MatchString(name) {
			out[FieldDocType] = p.docType
			break
		}
	}
	switch {
	case backNameRe.MatchString(name):
		out[FieldSide] = SideBack
	case frontNameRe.MatchString(name):
		out[FieldSide] = SideFront
	}
	return out
}

// FromText maps keywords in recognized or extracted text to DocType and Side.
func FromText(text string) models.FieldMap {
	out := models.FieldMap{}
	for _, p := range textDocPatterns {
		if p.re.MatchString(text) {
			out[FieldDocType] = p.docType
			break
		}
	}
	switch {
	case frontTextRe.MatchString(text):
		out[FieldSide] = SideFront
	case backTextRe.MatchString(text):
		out[FieldSide] = SideBack
	}
	return out
}

// ExifDate returns the capture date of a JPEG or TIFF as YYYY-MM-DD.
func ExifDate(data []byte) (string, bool) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	t, err := x.DateTime()
	if err != nil {
		return "", false
	}
	return t.Format(time.DateOnly), true
}

// Suggester proposes fields from document text.
type Suggester interface {
	Suggest(ctx context.Context, text string) (*models.Suggestion, error)
}

// Inferrer runs the hint pipeline. Every stage is best-effort; failures leave
// the fields of that stage unset.
type Inferrer struct {
	recognizer ocr.Recognizer
	suggester  Suggester
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures an Inferrer.
type Option func(*Inferrer)

func WithClock(now func() time.Time) Option { return func(in *Inferrer) { in.now = now } }

func WithLogger(l *slog.Logger) Option { return func(in *Inferrer) { in.logger = l } }

// New returns an Inferrer. Either collaborator may be nil.
func New(r ocr.Recognizer, s Suggester, opts ...Option) *Inferrer {
	in := &Inferrer{recognizer: r, suggester: s, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Infer returns the hinted fields for it. OCREnabled turns on text analysis
// and AIEnabled consults the suggester with that text.
func (in *Inferrer) Infer(ctx context.Context, it *models.DocumentItem, opts models.PackOptions) models.FieldMap {
	out := FromName(it.Name)

	if it.Kind == models.KindImage {
		if d, ok := ExifDate(it.Data); ok {
			out[template.FieldDateISO] = d
		}
	}
	if out[template.FieldDateISO] == "" {
		out[template.FieldDateISO] = in.now().UTC().Format(time.DateOnly)
	}

	if !opts.OCREnabled || len(it.Data) >= MaxRecognizeSize {
		return out
	}
	text := in.text(ctx, it)
	merge(out, FromText(text))

	if opts.AIEnabled && in.suggester != nil && text != "" {
		s, err := in.suggester.Suggest(ctx, text)
		if err != nil {
			in.logger.Warn("AI suggestion failed.", "item", it.ID, "error", err)
		} else if s != nil {
			if s.DocType != "" {
				out[FieldDocType] = s.DocType
			}
			if s.Side != "" {
				out[FieldSide] = s.Side
			}
		}
	}
	return out
}

func (in *Inferrer) text(ctx context.Context, it *models.DocumentItem) string {
	if it.Kind == models.KindPDF {
		return bytescan.Printable(it.Data)
	}
	if in.recognizer == nil {
		return ""
	}
	img, _, err := raster.Decode(it.Data)
	if err != nil {
		in.logger.Debug("Hint OCR skipped.", "item", it.ID, "error", err)
		return ""
	}
	rec, err := in.recognizer.Recognize(ctx, img)
	if err != nil {
		in.logger.Warn("Hint OCR failed.", "item", it.ID, "error", err)
		return ""
	}
	return rec.Text
}

func merge(dst, src models.FieldMap) {
	for k, v := range src {
		if v != "" {
			dst[k] = v
		}
	}
}

// Apply fills the empty or absent fields of it from h and marks it ready.
// Values the caller already set are never replaced.
func Apply(it *models.DocumentItem, h models.FieldMap) {
	if it.Fields == nil {
		it.Fields = models.FieldMap{}
	}
	for k, v := range h {
		if v != "" && it.Fields[k] == "" {
			it.Fields[k] = v
		}
	}
	if it.Status == models.StatusQueued {
		it.Status = models.StatusReady
	}
}
