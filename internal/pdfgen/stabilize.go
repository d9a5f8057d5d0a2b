package pdfgen

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"time"
)

var (
	dateRe   = regexp.MustCompile(`/(?:CreationDate|ModDate)\s*\(D:(\d{14})`)
	fileIDRe = regexp.MustCompile(`/ID\s*\[\s*<([0-9A-Fa-f]*)>\s*<([0-9A-Fa-f]*)>\s*\]`)
)

// Stabilize pins the per-write values a PDF writer stamps into plaintext
// dictionaries: document dates become ts (when non-zero) and the trailer file
// ID becomes a digest of the rest of the document. Every replacement keeps its
// byte length, so cross-reference offsets stay valid. Values inside
// compressed object streams are left alone.
func Stabilize(pdf []byte, ts time.Time) []byte {
	out := bytes.Clone(pdf)

	if !ts.IsZero() {
		stamp := []byte(ts.UTC().Format("20060102150405"))
		for _, m := range dateRe.FindAllSubmatchIndex(out, -1) {
			copy(out[m[2]:m[3]], stamp)
		}
	}

	ids := fileIDRe.FindAllSubmatchIndex(out, -1)
	if len(ids) == 0 {
		return out
	}
	for _, m := range ids {
		zero(out[m[2]:m[3]])
		zero(out[m[4]:m[5]])
	}
	sum := sha256.Sum256(out)
	digest := []byte(hex.EncodeToString(sum[:]))
	for _, m := range ids {
		fill(out[m[2]:m[3]], digest)
		fill(out[m[4]:m[5]], digest)
	}
	return out
}

func zero(b []byte) {
	for i := range b {
		b[i] = '0'
	}
}

func fill(dst, digest []byte) {
	for i := range dst {
		dst[i] = digest[i%len(digest)]
	}
}
