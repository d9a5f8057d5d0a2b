package template

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	pdfExt       = ".pdf"
	fallbackBase = "document"

	// MaxBaseBytes bounds the name before ".pdf" is appended.
	MaxBaseBytes = 115
	// MaxNameBytes is the hard cap on a rendered name.
	MaxNameBytes = 119

	unsafeChars = `<>:"/\|?*`
)

// Extensions removed from the end of a rendered name before ".pdf" is
// appended. Other dots are kept since they are common in names ("J.Doe").
var strippedExts = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".webp",
	".heic", ".heif", ".tif", ".tiff", ".bmp",
}

// EnsurePDF turns an arbitrary rendered string into a safe file name that ends
// in exactly one ".pdf" and is at most MaxNameBytes long.
func EnsurePDF(name string) string {
	base := trimBase(safeBase(name))
	if len(base) > MaxBaseBytes {
		base = trimBase(truncateUTF8(base, MaxBaseBytes))
	}
	if base == "" {
		base = fallbackBase
	}
	out := base + pdfExt
	if len(out) > MaxNameBytes {
		out = truncateUTF8(out, MaxNameBytes)
	}
	return out
}

// trimBase strips known extensions and edge underscores until neither is
// left, so "x.pdf_.jpg" becomes "x".
func trimBase(s string) string {
	for {
		next := strings.Trim(stripExtensions(s), "_")
		if next == s {
			return s
		}
		s = next
	}
}

func stripExtensions(s string) string {
	for {
		lower := strings.ToLower(s)
		stripped := false
		for _, ext := range strippedExts {
			if strings.HasSuffix(lower, ext) {
				s = s[:len(s)-len(ext)]
				stripped = true
				break
			}
		}
		if !stripped {
			return s
		}
	}
}

// safeBase drops control and path-unsafe characters and collapses every run
// of them, whitespace and underscores into one underscore. Leading and
// trailing separators are dropped.
func safeBase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	sep := false
	for _, r := range s {
		if r == '_' || unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune(unsafeChars, r) {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('_')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}

func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
