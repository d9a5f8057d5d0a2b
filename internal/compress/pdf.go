package compress

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/Lllllllleong/documentpacker/internal/bytescan"
	"github.com/Lllllllleong/documentpacker/internal/models"
	"github.com/Lllllllleong/documentpacker/internal/pdfgen"
)

// ContentClass is the heuristic category of a PDF.
type ContentClass string

const (
	ClassImageOnly ContentClass = "image-only"
	ClassText      ContentClass = "text"
	ClassMixed     ContentClass = "mixed"
	ClassUnknown   ContentClass = "unknown"
)

const (
	NoteOptimized         = "lightly optimized"
	NoteServerRecommended = "lightly optimized / server recommended"
)

var (
	imageMarkerRe = regexp.MustCompile(`/Image`)
	textMarkerRe  = regexp.MustCompile(`\bTj\b|\bTJ\b|/Font`)
)

// PDFOptions configures CompressPDF.
type PDFOptions struct {
	// Timestamp replaces the creation and modification dates the writer
	// stamps into the output. Zero leaves them as written.
	Timestamp time.Time
}

// PDFResult is the output of CompressPDF.
type PDFResult struct {
	Bytes             []byte
	OriginalSize      int64
	FinalSize         int64
	ContentClass      ContentClass
	ServerRecommended bool
	Note              string
}

// ClassifyContent inspects the printable projection of the first
// bytescan.Limit bytes for image and text-drawing markers.
func ClassifyContent(data []byte) ContentClass {
	txt := bytescan.Printable(data)
	hasImage := imageMarkerRe.MatchString(txt)
	hasText := textMarkerRe.MatchString(txt)
	switch {
	case hasImage && !hasText:
		return ClassImageOnly
	case hasText && !hasImage:
		return ClassText
	case hasImage && hasText:
		return ClassMixed
	default:
		return ClassUnknown
	}
}

// CompressPDF re-serializes the document with object and cross-reference
// streams. Embedded images are not recompressed. Text-heavy documents are
// flagged for server-side recompression.
func CompressPDF(ctx context.Context, data []byte, opts PDFOptions) (PDFResult, error) {
	if err := ctx.Err(); err != nil {
		return PDFResult{}, err
	}
	if len(data) == 0 {
		return PDFResult{}, fmt.Errorf("empty pdf: %w", models.ErrInvalidInput)
	}
	class := ClassifyContent(data)

	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &out, pdfgen.Config()); err != nil {
		return PDFResult{}, fmt.Errorf("optimize pdf: %v: %w", err, models.ErrDecodeFailure)
	}
	b := pdfgen.Stabilize(out.Bytes(), opts.Timestamp)

	res := PDFResult{
		Bytes:        b,
		OriginalSize: int64(len(data)),
		FinalSize:    int64(len(b)),
		ContentClass: class,
		Note:         NoteOptimized,
	}
	if class == ClassText {
		res.ServerRecommended = true
		res.Note = NoteServerRecommended
	}
	return res, nil
}
