// Package kind classifies batch inputs and gives advisory size estimates.
package kind

import (
	"fmt"
	"math"
	"mime"
	"strings"

	"github.com/Lllllllleong/documentpacker/internal/models"
)

const (
	PDFMIMEType = "application/pdf"

	minImageEstimate = 60 * 1024
)

// Classify reports whether an input is a PDF or an image. Anything that is not
// recognizably a PDF is treated as an image.
func Classify(fileName, mimeType string) models.Kind {
	if isPDFMIME(mimeType) || strings.HasSuffix(strings.ToLower(fileName), ".pdf") {
		return models.KindPDF
	}
	return models.KindImage
}

func isPDFMIME(mimeType string) bool {
	if mimeType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.EqualFold(strings.TrimSpace(mimeType), PDFMIMEType)
	}
	return mt == PDFMIMEType
}

// Estimate returns a cheap pre-processing guess of the packed size. It is
// never consulted for packing correctness.
func Estimate(size int64, k models.Kind) int64 {
	s := float64(size)
	if k == models.KindImage {
		return int64(math.Round(math.Max(s*0.4, math.Min(s, minImageEstimate))))
	}
	return int64(math.Round(s * 0.85))
}

// NewItem builds a queued DocumentItem for raw input bytes.
func NewItem(id, name, mimeType string, data []byte, fields models.FieldMap) *models.DocumentItem {
	k := Classify(name, mimeType)
	size := int64(len(data))
	est := Estimate(size, k)
	if fields == nil {
		fields = models.FieldMap{}
	}
	return &models.DocumentItem{
		ID:            id,
		Name:          name,
		MIMEType:      mimeType,
		Data:          data,
		Kind:          k,
		OriginalSize:  size,
		EstimatedSize: &est,
		Status:        models.StatusQueued,
		Fields:        fields,
	}
}

// Validate rejects items the pipeline cannot pack.
func Validate(it *models.DocumentItem) error {
	if len(it.Data) == 0 {
		return fmt.Errorf("%w: %q is empty", models.ErrInvalidInput, it.Name)
	}
	if it.Kind != models.KindPDF && it.Kind != models.KindImage {
		return fmt.Errorf("%w: unsupported kind %q for %q", models.ErrInvalidInput, it.Kind, it.Name)
	}
	return nil
}
