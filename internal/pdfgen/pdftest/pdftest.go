// Package pdftest writes small uncompressed PDFs for tests. Content streams
// stay plaintext, so tests can put known text or MRZ lines on a page and
// read them back.
package pdftest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Page describes one page. Content is a raw content stream; Font adds
// Helvetica as /F1.
type Page struct {
	Width, Height float64
	Content       []byte
	Font          bool
}

// TextPage returns a page showing each line in Helvetica, top to bottom.
func TextPage(width, height float64, lines ...string) Page {
	var b strings.Builder
	y := height - 20
	for _, l := range lines {
		fmt.Fprintf(&b, "BT /F1 10 Tf 10 %s Td (%s) Tj ET\n", num(y), l)
		y -= 14
	}
	return Page{Width: width, Height: height, Content: []byte(b.String()), Font: true}
}

// Document serializes pages into a complete PDF file.
func Document(pages []Page) []byte {
	w := &objWriter{offsets: make(map[int]int)}
	w.buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	const catalogNum, pagesNum = 1, 2
	next := 3
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", next)
		next += 3
	}

	w.object(catalogNum, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesNum))
	w.object(pagesNum, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))

	n := 3
	for _, p := range pages {
		page, content, font := n, n+1, n+2
		n += 3
		res := "<< >>"
		if p.Font {
			res = fmt.Sprintf("<< /Font << /F1 %d 0 R >> >>", font)
		}
		w.object(page, fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %s %s] /Resources %s /Contents %d 0 R >>",
			pagesNum, num(p.Width), num(p.Height), res, content,
		))
		w.stream(content, p.Content)
		w.object(font, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	}
	return w.finish(next - 1)
}

type objWriter struct {
	buf     bytes.Buffer
	offsets map[int]int
}

func (w *objWriter) begin(n int, dict string) {
	w.offsets[n] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\n", n, dict)
}

func (w *objWriter) object(n int, dict string) {
	w.begin(n, dict)
	w.buf.WriteString("endobj\n")
}

func (w *objWriter) stream(n int, data []byte) {
	w.begin(n, fmt.Sprintf("<< /Length %d >>", len(data)))
	w.buf.WriteString("stream\n")
	w.buf.Write(data)
	w.buf.WriteString("\nendstream\nendobj\n")
}

func (w *objWriter) finish(last int) []byte {
	xref := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n", last+1)
	w.buf.WriteString("0000000000 65535 f \n")
	for n := 1; n <= last; n++ {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", w.offsets[n])
	}
	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", last+1, xref)
	return w.buf.Bytes()
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
