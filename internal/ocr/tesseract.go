package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// TesseractConfig configures the Tesseract recognizer.
type TesseractConfig struct {
	Languages   []string // default ["eng"]
	TessdataDir string   // optional; overrides TESSDATA_PREFIX
}

// Tesseract recognizes text with libtesseract through gosseract. A fresh
// client is created and closed for every call, so one Tesseract value can be
// shared but never holds engine state between documents.
type Tesseract struct {
	cfg           TesseractConfig
	clientFactory func() *gosseract.Client
	logger        *slog.Logger
}

// NewTesseract returns a Tesseract recognizer.
func NewTesseract(cfg TesseractConfig, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	return &Tesseract{cfg: cfg, clientFactory: gosseract.NewClient, logger: logger}
}

// Recognize implements Recognizer.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (Recognition, error) {
	if err := ctx.Err(); err != nil {
		return Recognition{}, err
	}
	start := time.Now()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Recognition{}, fmt.Errorf("encode raster for tesseract: %w", err)
	}

	c := t.clientFactory()
	defer c.Close()

	if t.cfg.TessdataDir != "" {
		c.TessdataPrefix = t.cfg.TessdataDir
	}
	if err := c.SetLanguage(t.cfg.Languages...); err != nil {
		return Recognition{}, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return Recognition{}, fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return Recognition{}, fmt.Errorf("recognize text: %w", err)
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Recognition{}, fmt.Errorf("word boxes: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		words = append(words, Word{Text: b.Word, Box: b.Box})
	}
	t.logger.Debug("tesseract ok",
		"duration_ms", time.Since(start).Milliseconds(),
		"chars", len(text),
		"words", len(words),
	)
	return Recognition{Text: text, Words: words}, nil
}
