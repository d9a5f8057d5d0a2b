package pack

import (
	"strconv"
	"strings"

	"github.com/Lllllllleong/documentpacker/internal/models"
)

const (
	// ManifestName is the archive entry holding the manifest.
	ManifestName = "manifest.txt"
	// TimestampLayout formats the batch timestamp written on every line.
	TimestampLayout = "2006-01-02T15:04:05.000Z"

	fieldSep = " | "
)

// ManifestLine formats one entry as
// "originalName | renderedName | originalSize | finalSize | sha256 | timestamp".
func ManifestLine(e models.ManifestEntry) string {
	return strings.Join([]string{
		e.OriginalName,
		e.RenderedName,
		strconv.FormatInt(e.OriginalSize, 10),
		strconv.FormatInt(e.FinalSize, 10),
		e.SHA256Hex,
		e.Timestamp,
	}, fieldSep)
}

// FormatManifest joins the lines of entries with "\n", without a trailing
// newline.
func FormatManifest(entries []models.ManifestEntry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = ManifestLine(e)
	}
	return strings.Join(lines, "\n")
}
