package pack

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentpacker/internal/kind"
	"github.com/Lllllllleong/documentpacker/internal/models"
	"github.com/Lllllllleong/documentpacker/internal/pdfgen"
	"github.com/Lllllllleong/documentpacker/internal/pdfgen/pdftest"
	"github.com/Lllllllleong/documentpacker/internal/redact"
	"github.com/Lllllllleong/documentpacker/internal/template"
)

var batchTime = time.Date(2024, 9, 6, 10, 15, 30, 0, time.UTC)

func fixedClock() time.Time { return batchTime }

func newTestOrchestrator(r Redactor) *Orchestrator {
	return New(r,
		WithClock(fixedClock),
		WithRenderOptions(template.WithRandom4(func() string { return "4242" })),
	)
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imageItem(t *testing.T, id, name string, c color.Color) *models.DocumentItem {
	return kind.NewItem(id, name, "image/png", pngBytes(t, 24, 16, c), models.FieldMap{"Last": "Doe"})
}

type zipEntry struct {
	name string
	data []byte
}

func readZip(t *testing.T, b []byte) []zipEntry {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	var out []zipEntry
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, zip.Deflate, f.Method)
		out = append(out, zipEntry{name: f.Name, data: data})
	}
	return out
}

func assertPageSize(t *testing.T, pdf []byte, w, h float64) {
	t.Helper()
	dims, err := api.PageDims(bytes.NewReader(pdf), pdfgen.Config())
	require.NoError(t, err)
	require.Len(t, dims, 1)
	assert.InDelta(t, w, dims[0].Width, 0.01)
	assert.InDelta(t, h, dims[0].Height, 0.01)
}

func threeItems(t *testing.T) []*models.DocumentItem {
	return []*models.DocumentItem{
		imageItem(t, "a", "a.png", color.RGBA{255, 0, 0, 255}),
		imageItem(t, "b", "b.png", color.RGBA{0, 255, 0, 255}),
		imageItem(t, "c", "c.png", color.RGBA{0, 0, 255, 255}),
	}
}

func TestPackOrderingAndProgress(t *testing.T) {
	items := threeItems(t)
	var progress []int

	res, err := newTestOrchestrator(nil).Pack(context.Background(), items, "{{Index1}}.pdf",
		func(p int) { progress = append(progress, p) }, models.PackOptions{})
	require.NoError(t, err)

	assert.Equal(t, []int{33, 67, 100}, progress)

	entries := readZip(t, res.Archive)
	require.Len(t, entries, 4)
	assert.Equal(t, []string{"1.pdf", "2.pdf", "3.pdf", ManifestName},
		[]string{entries[0].name, entries[1].name, entries[2].name, entries[3].name})
	assert.Equal(t, res.Manifest, string(entries[3].data))

	lines := strings.Split(res.Manifest, "\n")
	require.Len(t, lines, 3)
	for i, line := range lines {
		parts := strings.Split(line, " | ")
		require.Len(t, parts, 6)
		assert.Equal(t, items[i].Name, parts[0])
		assert.Equal(t, entries[i].name, parts[1])

		sum := sha256.Sum256(entries[i].data)
		assert.Equal(t, hex.EncodeToString(sum[:]), parts[4])
		assert.Equal(t, "2024-09-06T10:15:30.000Z", parts[5])
		assert.True(t, bytes.HasPrefix(entries[i].data, []byte("%PDF-")))
	}

	require.Len(t, res.Updates, 3)
	for i, u := range res.Updates {
		assert.Equal(t, items[i].ID, u.ID)
		assert.Equal(t, res.Entries[i].RenderedName, u.RenderedName)
		assert.Equal(t, int64(len(entries[i].data)), u.FinalSize)
		assert.False(t, u.ServerRecommended)
	}
}

func TestPackImageContainerMatchesPixels(t *testing.T) {
	items := []*models.DocumentItem{imageItem(t, "a", "a.png", color.White)}
	res, err := newTestOrchestrator(nil).Pack(context.Background(), items, "", nil, models.PackOptions{})
	require.NoError(t, err)

	entries := readZip(t, res.Archive)
	assert.Equal(t, "Doe_2024-09-06.pdf", entries[0].name)
	assertPageSize(t, entries[0].data, 24, 16)
}

func TestPackHashStability(t *testing.T) {
	o := newTestOrchestrator(nil)
	a, err := o.Pack(context.Background(), threeItems(t), "{{Last}}_{{Index1}}", nil, models.PackOptions{})
	require.NoError(t, err)
	b, err := o.Pack(context.Background(), threeItems(t), "{{Last}}_{{Index1}}", nil, models.PackOptions{})
	require.NoError(t, err)

	assert.Equal(t, a.Manifest, b.Manifest)
	assert.Equal(t, a.Archive, b.Archive)
}

func mrzPDF() []byte {
	return pdftest.Document([]pdftest.Page{
		pdftest.TextPage(300, 200, "PASSPORT", "P<USADOE<<JANE<<<<<<<<<<<<<<<<<<<<<<<<<<<<<"),
		pdftest.TextPage(300, 200, "page two"),
		pdftest.TextPage(300, 200, "page three"),
	})
}

func TestPackPDFHashStability(t *testing.T) {
	batch := func() []*models.DocumentItem {
		return []*models.DocumentItem{
			kind.NewItem("p", "id.pdf", "application/pdf", mrzPDF(), models.FieldMap{"Last": "Doe"}),
			imageItem(t, "i", "scan.png", color.RGBA{0, 0, 255, 255}),
		}
	}

	for _, redacted := range []bool{false, true} {
		opts := models.PackOptions{Redact: redacted}
		a, err := newTestOrchestrator(nil).Pack(context.Background(), batch(), "{{Last}}_{{Index1}}", nil, opts)
		require.NoError(t, err)
		time.Sleep(1100 * time.Millisecond)
		b, err := newTestOrchestrator(nil).Pack(context.Background(), batch(), "{{Last}}_{{Index1}}", nil, opts)
		require.NoError(t, err)

		require.Len(t, a.Entries, 2)
		for i := range a.Entries {
			assert.Equal(t, a.Entries[i].SHA256Hex, b.Entries[i].SHA256Hex, "redact=%v entry %d", redacted, i)
		}
		assert.Equal(t, a.Archive, b.Archive, "redact=%v", redacted)
	}
}

func TestPackRedactsMultiPagePDF(t *testing.T) {
	items := []*models.DocumentItem{kind.NewItem("p", "passport.pdf", "application/pdf", mrzPDF(), nil)}
	res, err := newTestOrchestrator(nil).Pack(context.Background(), items, "x", nil, models.PackOptions{Redact: true})
	require.NoError(t, err)

	out := readZip(t, res.Archive)[0].data
	n, err := api.PageCount(bytes.NewReader(out), pdfgen.Config())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NotContains(t, string(out), "P<USADOE")
	assert.Contains(t, string(out), "(page two) Tj")
	assert.Contains(t, string(out), "(page three) Tj")

	pages, err := api.ExtractImagesRaw(bytes.NewReader(out), []string{"1"}, pdfgen.Config())
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Len(t, pages[0], 1)
	for _, raw := range pages[0] {
		img, _, err := image.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 300, 200), img.Bounds())
		assert.Equal(t, color.RGBAModel.Convert(color.White), color.RGBAModel.Convert(img.At(150, 163)))
		assert.Equal(t, color.RGBAModel.Convert(color.Black), color.RGBAModel.Convert(img.At(150, 164)))
		assert.Equal(t, color.RGBAModel.Convert(color.Black), color.RGBAModel.Convert(img.At(150, 199)))
	}

	rest, err := api.ExtractImagesRaw(bytes.NewReader(out), []string{"2-3"}, pdfgen.Config())
	require.NoError(t, err)
	for _, m := range rest {
		assert.Empty(t, m)
	}
}

func TestPackKeepsDuplicateNames(t *testing.T) {
	items := threeItems(t)[:2]
	res, err := newTestOrchestrator(nil).Pack(context.Background(), items, "same.pdf", nil, models.PackOptions{})
	require.NoError(t, err)

	entries := readZip(t, res.Archive)
	require.Len(t, entries, 3)
	assert.Equal(t, "same.pdf", entries[0].name)
	assert.Equal(t, "same.pdf", entries[1].name)
	assert.NotEqual(t, entries[0].data, entries[1].data)
}

func TestPackAbortsOnDecodeFailure(t *testing.T) {
	items := threeItems(t)
	items[1] = kind.NewItem("bad", "bad.jpg", "image/jpeg", []byte("not a jpeg"), nil)
	var progress []int

	res, err := newTestOrchestrator(nil).Pack(context.Background(), items, "{{Index1}}",
		func(p int) { progress = append(progress, p) }, models.PackOptions{})
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDecodeFailure)

	var itemErr *models.ItemError
	require.ErrorAs(t, err, &itemErr)
	assert.Equal(t, 1, itemErr.Index)
	assert.Equal(t, "bad", itemErr.ID)
	assert.Equal(t, models.StatusError, items[1].Status)
	assert.Equal(t, models.StatusQueued, items[2].Status)
	assert.Equal(t, []int{33}, progress)
}

func TestPackRejectsEmptyItem(t *testing.T) {
	items := []*models.DocumentItem{kind.NewItem("e", "empty.pdf", "application/pdf", nil, nil)}
	_, err := newTestOrchestrator(nil).Pack(context.Background(), items, "", nil, models.PackOptions{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestPackCancellationBetweenItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var progress []int

	res, err := newTestOrchestrator(nil).Pack(ctx, threeItems(t), "{{Index1}}", func(p int) {
		progress = append(progress, p)
		cancel()
	}, models.PackOptions{})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{33}, progress)
}

type stubRedactor struct {
	calls int
	out   redact.Result
}

func (s *stubRedactor) Redact(_ context.Context, data []byte, _ models.Kind) (redact.Result, error) {
	s.calls++
	if !s.out.Masked {
		return redact.Result{Bytes: data}, nil
	}
	return s.out, nil
}

func TestPackUsesRedactedBytesOnlyWhenMasked(t *testing.T) {
	item := imageItem(t, "a", "a.png", color.White)
	original := bytes.Clone(item.Data)

	masked := &stubRedactor{out: redact.Result{Bytes: pngBytes(t, 10, 20, color.Black), Masked: true}}
	res, err := newTestOrchestrator(masked).Pack(context.Background(), []*models.DocumentItem{item}, "x", nil,
		models.PackOptions{Redact: true})
	require.NoError(t, err)
	assert.Equal(t, 1, masked.calls)
	assertPageSize(t, readZip(t, res.Archive)[0].data, 10, 20)
	assert.Equal(t, original, item.Data)

	clean := &stubRedactor{out: redact.Result{Bytes: pngBytes(t, 10, 20, color.Black)}}
	res, err = newTestOrchestrator(clean).Pack(context.Background(), []*models.DocumentItem{item}, "x", nil,
		models.PackOptions{Redact: true})
	require.NoError(t, err)
	assertPageSize(t, readZip(t, res.Archive)[0].data, 24, 16)

	skipped := &stubRedactor{}
	_, err = newTestOrchestrator(skipped).Pack(context.Background(), []*models.DocumentItem{item}, "x", nil,
		models.PackOptions{})
	require.NoError(t, err)
	assert.Zero(t, skipped.calls)
}

func TestPackPDFItem(t *testing.T) {
	doc := pdftest.Document([]pdftest.Page{pdftest.TextPage(300, 200, "Pay stub")})
	items := []*models.DocumentItem{kind.NewItem("p", "stub.pdf", "", doc, models.FieldMap{"DocType": "Pay Stub"})}

	res, err := newTestOrchestrator(nil).Pack(context.Background(), items, "{{DocType}}", nil, models.PackOptions{})
	require.NoError(t, err)

	require.Len(t, res.Updates, 1)
	u := res.Updates[0]
	assert.Equal(t, "Pay_Stub.pdf", u.RenderedName)
	assert.True(t, u.ServerRecommended)
	assert.Equal(t, "lightly optimized / server recommended", u.Note)

	models.ApplyUpdates(items, res.Updates)
	assert.Equal(t, models.StatusReady, items[0].Status)
	assert.Equal(t, u.FinalSize, items[0].FinalSize)
}

func TestPackEmptyBatch(t *testing.T) {
	res, err := newTestOrchestrator(nil).Pack(context.Background(), nil, "", func(int) {
		t.Fatal("progress must not be reported for an empty batch")
	}, models.PackOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Manifest)
	entries := readZip(t, res.Archive)
	require.Len(t, entries, 1)
	assert.Equal(t, ManifestName, entries[0].name)
}

func TestProgress(t *testing.T) {
	tests := []struct {
		i, n, want int
	}{
		{0, 1, 100},
		{0, 3, 33},
		{1, 3, 67},
		{2, 3, 100},
		{0, 2, 50},
		{0, 8, 13},
		{6, 7, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Progress(tt.i, tt.n), "i=%d n=%d", tt.i, tt.n)
	}
}

func TestManifestLine(t *testing.T) {
	line := ManifestLine(models.ManifestEntry{
		OriginalName: "scan.png",
		RenderedName: "Doe.pdf",
		OriginalSize: 1200,
		FinalSize:    800,
		SHA256Hex:    "ab12",
		Timestamp:    "2024-09-06T10:15:30.000Z",
	})
	assert.Equal(t, "scan.png | Doe.pdf | 1200 | 800 | ab12 | 2024-09-06T10:15:30.000Z", line)
}
