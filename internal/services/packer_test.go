package services

import (
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentpacker/internal/models"
)

func TestLoadPackerConfig(t *testing.T) {
	t.Setenv("PROJECT_ID", "proj")
	t.Setenv("PACKED_ARCHIVE_BUCKET", "out")
	t.Setenv("OCR_ENABLED", "true")
	t.Setenv("TESSERACT_LANG", "eng+spa")

	cfg, err := LoadPackerConfig()
	require.NoError(t, err)
	assert.Equal(t, "proj", cfg.ProjectID)
	assert.Equal(t, "out", cfg.ArchiveBucket)
	assert.Equal(t, "packs", cfg.CollectionName)
	assert.Equal(t, "us-central1", cfg.VertexRegion)
	assert.Equal(t, "eng+spa", cfg.TesseractLang)
	assert.True(t, cfg.OCREnabled)
	assert.False(t, cfg.AIEnabled)
	assert.Empty(t, cfg.RecompressWorkflowID)
	assert.NotEmpty(t, cfg.DefaultTemplate)
}

func TestLoadPackerConfigMissing(t *testing.T) {
	t.Setenv("PROJECT_ID", "")
	t.Setenv("PACKED_ARCHIVE_BUCKET", "out")
	_, err := LoadPackerConfig()
	assert.ErrorContains(t, err, "PROJECT_ID")

	t.Setenv("PROJECT_ID", "proj")
	t.Setenv("PACKED_ARCHIVE_BUCKET", "")
	_, err = LoadPackerConfig()
	assert.ErrorContains(t, err, "PACKED_ARCHIVE_BUCKET")
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *models.PackRequest
		wantErr bool
	}{
		{"nil", nil, true},
		{"no bucket", &models.PackRequest{Prefix: "in/"}, true},
		{"no inputs or prefix", &models.PackRequest{Bucket: "b"}, true},
		{"empty object", &models.PackRequest{Bucket: "b", Inputs: []models.PackInput{{Object: ""}}}, true},
		{"prefix", &models.PackRequest{Bucket: "b", Prefix: "in/"}, false},
		{"inputs", &models.PackRequest{Bucket: "b", Inputs: []models.PackInput{{Object: "a.pdf"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRequest(tt.req)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidInput)
				assert.True(t, IsCallerError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveRedact(t *testing.T) {
	on, off := true, false
	assert.True(t, resolveRedact(nil, true))
	assert.False(t, resolveRedact(nil, false))
	assert.True(t, resolveRedact(&on, false))
	assert.False(t, resolveRedact(&off, true))
}

func TestBatchHash(t *testing.T) {
	a := &models.DocumentItem{Name: "a.pdf", Data: []byte("one")}
	b := &models.DocumentItem{Name: "b.png", Data: []byte("two")}

	base := BatchHash([]*models.DocumentItem{a, b}, "{{Last}}.pdf", false)
	assert.Len(t, base, 64)
	assert.Equal(t, base, BatchHash([]*models.DocumentItem{a, b}, "{{Last}}.pdf", false))

	assert.NotEqual(t, base, BatchHash([]*models.DocumentItem{b, a}, "{{Last}}.pdf", false), "order")
	assert.NotEqual(t, base, BatchHash([]*models.DocumentItem{a, b}, "{{First}}.pdf", false), "template")
	assert.NotEqual(t, base, BatchHash([]*models.DocumentItem{a, b}, "{{Last}}.pdf", true), "redact")

	c := &models.DocumentItem{Name: "a.pdf", Data: []byte("ONE")}
	assert.NotEqual(t, base, BatchHash([]*models.DocumentItem{c, b}, "{{Last}}.pdf", false), "content")
}

func TestRecommendedItems(t *testing.T) {
	updates := []models.ItemUpdate{
		{ID: "1", RenderedName: "a.pdf"},
		{ID: "2", RenderedName: "b.pdf", ServerRecommended: true},
		{ID: "3", RenderedName: "c.pdf", ServerRecommended: true},
	}
	assert.Equal(t, []string{"b.pdf", "c.pdf"}, RecommendedItems(updates))
	assert.Nil(t, RecommendedItems(updates[:1]))
}

func TestArchiveName(t *testing.T) {
	ts := time.Date(2024, 9, 6, 14, 5, 59, 0, time.UTC)
	assert.Equal(t, "DocPackr_2024-09-06_1405.zip", ArchiveName(ts))
}

func TestPackableObjects(t *testing.T) {
	names := []string{
		"uploads/jane/i20.pdf",
		"uploads/jane/jane.batch.json",
		"uploads/jane/passport.JPG",
		"packs/abc/DocPackr_2024-09-06_1405.zip",
		"packs/abc/manifest.txt",
		"uploads/jane/old.ZIP",
		"uploads/packs/x/scan.pdf",
		"uploads/jane/manifest.txt",
	}
	assert.Equal(t, []string{"uploads/jane/i20.pdf", "uploads/jane/passport.JPG"}, PackableObjects(names))
	assert.Nil(t, PackableObjects([]string{"packs/a/manifest.txt"}))
}

func TestDecodeBatchRequest(t *testing.T) {
	assert.True(t, IsBatchObject("uploads/jane.batch.json"))
	assert.False(t, IsBatchObject("uploads/jane.json"))

	req, err := DecodeBatchRequest([]byte(`{"prefix":"uploads/jane/","redact":true}`), "incoming")
	require.NoError(t, err)
	assert.Equal(t, "incoming", req.Bucket)
	assert.Equal(t, "uploads/jane/", req.Prefix)
	require.NotNil(t, req.Redact)
	assert.True(t, *req.Redact)

	req, err = DecodeBatchRequest([]byte(`{"bucket":"other","inputs":[{"object":"a.pdf"}]}`), "incoming")
	require.NoError(t, err)
	assert.Equal(t, "other", req.Bucket)

	_, err = DecodeBatchRequest([]byte(`{`), "incoming")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestIsCallerError(t *testing.T) {
	decode := &models.ItemError{Index: 1, Name: "bad.png", Err: fmt.Errorf("%w: truncated", models.ErrDecodeFailure)}
	assert.True(t, IsCallerError(fmt.Errorf("failed to pack documents: %w", decode)))
	assert.True(t, IsCallerError(fmt.Errorf("input 2: %w", storage.ErrObjectNotExist)))
	assert.False(t, IsCallerError(fmt.Errorf("upload: %w", models.ErrArchiveWrite)))
}
