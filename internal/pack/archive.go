package pack

import (
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/Lllllllleong/documentpacker/internal/models"
)

// DefaultLevel is the deflate level used for packed archives.
const DefaultLevel = 6

// ArchiveWriter streams deflated entries into a zip file. Entry names are not
// de-duplicated: adding the same name twice writes two entries, in order.
type ArchiveWriter struct {
	zw       *zip.Writer
	modified time.Time
}

// NewArchiveWriter writes a zip to w. Every entry carries modified as its
// timestamp so identical inputs give identical archives.
func NewArchiveWriter(w io.Writer, level int, modified time.Time) *ArchiveWriter {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
	return &ArchiveWriter{zw: zw, modified: modified.UTC()}
}

// Add writes one entry.
func (a *ArchiveWriter) Add(name string, data []byte) error {
	w, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: a.modified,
	})
	if err != nil {
		return fmt.Errorf("create entry %q: %v: %w", name, err, models.ErrArchiveWrite)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write entry %q: %v: %w", name, err, models.ErrArchiveWrite)
	}
	return nil
}

// Close writes the central directory.
func (a *ArchiveWriter) Close() error {
	if err := a.zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %v: %w", err, models.ErrArchiveWrite)
	}
	return nil
}
