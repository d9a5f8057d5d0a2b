// Package pdfgen builds the one-page PDFs the packer emits and pins every
// per-write value pdfcpu stamps into its output, so identical input at an
// identical timestamp yields identical bytes.
package pdfgen

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/Lllllllleong/documentpacker/internal/raster"
)

// Config returns the pdfcpu configuration generated and optimized PDFs are
// written with: relaxed validation, object streams and an xref stream.
func Config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = true
	conf.WriteXRefStream = true
	return conf
}

// ImagePage places a JPEG or PNG full-bleed on a single page whose size in
// points equals the image size in pixels. JPEG data is embedded as is.
func ImagePage(img []byte, ts time.Time) ([]byte, error) {
	imp := pdfcpu.DefaultImportConfig()
	imp.Pos = types.Full

	var out bytes.Buffer
	if err := api.ImportImages(nil, &out, []io.Reader{bytes.NewReader(img)}, imp, Config()); err != nil {
		return nil, fmt.Errorf("import image: %w", err)
	}
	return Stabilize(out.Bytes(), ts), nil
}

// BandPage returns a single white page of width x height points with a black
// band over the bottom band fraction of its height. band <= 0 gives a blank
// page.
func BandPage(width, height int, band float64, ts time.Time) ([]byte, error) {
	png, err := raster.EncodePNG(raster.Band(width, height, band))
	if err != nil {
		return nil, err
	}
	return ImagePage(png, ts)
}
