package ocr

import (
	"context"
	"image"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecognizerFunc(t *testing.T) {
	var r Recognizer = RecognizerFunc(func(ctx context.Context, img image.Image) (Recognition, error) {
		return Recognition{Text: "P<USA", Words: []Word{{Text: "P<USA", Box: image.Rect(0, 0, 10, 4)}}}, nil
	})
	rec, err := r.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	require.NoError(t, err)
	assert.Equal(t, "P<USA", rec.Text)
	assert.Equal(t, image.Rect(0, 0, 10, 4), rec.Words[0].Box)
}

func TestNewTesseractDefaults(t *testing.T) {
	tr := NewTesseract(TesseractConfig{}, nil)
	assert.Equal(t, []string{"eng"}, tr.cfg.Languages)
	assert.NotNil(t, tr.logger)

	tr = NewTesseract(TesseractConfig{Languages: []string{"eng", "spa"}}, nil)
	assert.Equal(t, []string{"eng", "spa"}, tr.cfg.Languages)
}

func TestTesseractCanceled(t *testing.T) {
	tr := NewTesseract(TesseractConfig{}, nil)
	tr.clientFactory = func() *gosseract.Client {
		t.Fatal("client must not be created for a canceled context")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Recognize(ctx, image.NewGray(image.Rect(0, 0, 1, 1)))
	assert.ErrorIs(t, err, context.Canceled)
}
