// Package pack turns an ordered batch of documents into a zip archive of
// compressed, renamed PDFs plus a hashed manifest.
package pack

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/Lllllllleong/documentpacker/internal/compress"
	"github.com/Lllllllleong/documentpacker/internal/kind"
	"github.com/Lllllllleong/documentpacker/internal/models"
	"github.com/Lllllllleong/documentpacker/internal/pdfgen"
	"github.com/Lllllllleong/documentpacker/internal/redact"
	"github.com/Lllllllleong/documentpacker/internal/template"
)

// Redactor masks sensitive regions. It must only fail when ctx is done.
type Redactor interface {
	Redact(ctx context.Context, data []byte, k models.Kind) (redact.Result, error)
}

// Orchestrator packs batches sequentially. It holds no per-batch state and
// may be reused.
type Orchestrator struct {
	redactor   Redactor
	now        func() time.Time
	level      int
	renderOpts []template.Option
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the source of the batch timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithCompressionLevel sets the archive deflate level.
func WithCompressionLevel(level int) Option {
	return func(o *Orchestrator) { o.level = level }
}

// WithRenderOptions passes extra options to the per-batch template renderer.
func WithRenderOptions(opts ...template.Option) Option {
	return func(o *Orchestrator) { o.renderOpts = append(o.renderOpts, opts...) }
}

// New returns an Orchestrator. A nil redactor gets a recognizer-less
// redact.Engine, which still applies the PDF MRZ band.
func New(r Redactor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		redactor: r,
		now:      time.Now,
		level:    DefaultLevel,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.redactor == nil {
		o.redactor = redact.New(nil, o.logger)
	}
	return o
}

type packed struct {
	data              []byte
	serverRecommended bool
	note              string
}

// Pack processes items in order and returns the archive, manifest and per-item
// updates. Items are not modified, except that an item whose processing fails
// is marked StatusError. Any item failure or cancellation aborts the batch
// and no partial result is returned; item failures are reported as
// *models.ItemError. onProgress, when non-nil, is called once per item with
// round(100*(i+1)/n).
func (o *Orchestrator) Pack(ctx context.Context, items []*models.DocumentItem, tmpl string, onProgress func(int), opts models.PackOptions) (*models.PackResult, error) {
	batchTime := o.now().UTC()
	stamp := batchTime.Format(TimestampLayout)
	renderer := template.NewRenderer(append(
		[]template.Option{template.WithClock(func() time.Time { return batchTime })},
		o.renderOpts...,
	)...)
	if tmpl == "" {
		tmpl = template.DefaultTemplate
	}

	n := len(items)
	logCtx := o.logger.With("items", n, "redact", opts.Redact)
	logCtx.Info("Pack started.")

	var buf bytes.Buffer
	aw := NewArchiveWriter(&buf, o.level, batchTime)
	entries := make([]models.ManifestEntry, 0, n)
	updates := make([]models.ItemUpdate, 0, n)

	for i, it := range items {
		if err := ctx.Err(); err != nil {
			logCtx.Warn("Pack cancelled.", "itemIndex", i)
			return nil, fmt.Errorf("pack cancelled before item %d: %w", i+1, err)
		}

		out, err := o.packItem(ctx, it, opts, batchTime)
		if err != nil {
			if ctx.Err() == nil {
				it.Status = models.StatusError
			}
			logCtx.Error("Item failed, aborting pack.", "itemIndex", i, "name", it.Name, "error", err)
			return nil, &models.ItemError{Index: i, ID: it.ID, Name: it.Name, Err: err}
		}

		fields := it.Fields.Clone()
		fields[template.FieldIndex1] = strconv.Itoa(i + 1)
		name := renderer.Render(tmpl, fields)

		sum := sha256.Sum256(out.data)
		hash := hex.EncodeToString(sum[:])

		if err := aw.Add(name, out.data); err != nil {
			return nil, &models.ItemError{Index: i, ID: it.ID, Name: it.Name, Err: err}
		}
		entries = append(entries, models.ManifestEntry{
			OriginalName: it.Name,
			RenderedName: name,
			OriginalSize: it.OriginalSize,
			FinalSize:    int64(len(out.data)),
			SHA256Hex:    hash,
			Timestamp:    stamp,
		})
		updates = append(updates, models.ItemUpdate{
			ID:                it.ID,
			RenderedName:      name,
			FinalSize:         int64(len(out.data)),
			ServerRecommended: out.serverRecommended,
			Note:              out.note,
		})
		logCtx.Debug("Item packed.", "itemIndex", i, "renderedName", name, "finalSize", len(out.data))

		if onProgress != nil {
			onProgress(Progress(i, n))
		}
	}

	manifest := FormatManifest(entries)
	if err := aw.Add(ManifestName, []byte(manifest)); err != nil {
		return nil, err
	}
	if err := aw.Close(); err != nil {
		return nil, err
	}
	logCtx.Info("Pack complete.", "archiveSize", buf.Len())

	return &models.PackResult{
		Archive:  buf.Bytes(),
		Manifest: manifest,
		Entries:  entries,
		Updates:  updates,
	}, nil
}

func (o *Orchestrator) packItem(ctx context.Context, it *models.DocumentItem, opts models.PackOptions, batchTime time.Time) (packed, error) {
	if err := kind.Validate(it); err != nil {
		return packed{}, err
	}

	input := it.Data
	if opts.Redact {
		res, err := o.redactor.Redact(ctx, input, it.Kind)
		if err != nil {
			return packed{}, err
		}
		if res.Masked {
			input = res.Bytes
		}
	}

	switch it.Kind {
	case models.KindImage:
		img, err := compress.CompressImage(ctx, input)
		if err != nil {
			return packed{}, err
		}
		data, err := pdfgen.ImagePage(img.Bytes, batchTime)
		if err != nil {
			return packed{}, fmt.Errorf("image container: %v: %w", err, models.ErrDecodeFailure)
		}
		return packed{data: data}, nil
	case models.KindPDF:
		res, err := compress.CompressPDF(ctx, input, compress.PDFOptions{Timestamp: batchTime})
		if err != nil {
			return packed{}, err
		}
		return packed{data: res.Bytes, serverRecommended: res.ServerRecommended, note: res.Note}, nil
	}
	return packed{}, fmt.Errorf("%w: kind %q", models.ErrInvalidInput, it.Kind)
}

// Progress is the percentage reported after item i (0-based) of n.
func Progress(i, n int) int {
	if n <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(i+1) / float64(n)))
}
