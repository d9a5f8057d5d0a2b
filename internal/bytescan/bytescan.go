// Package bytescan projects raw document bytes onto printable ASCII so that
// structural markers can be found with plain text matching.
package bytescan

// Limit is how much of a document is inspected.
const Limit = 1_500_000

// Printable returns the first Limit bytes of b with every byte outside
// printable ASCII (0x20..0x7e) replaced by a space.
func Printable(b []byte) string {
	if len(b) > Limit {
		b = b[:Limit]
	}
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 0x20 && c <= 0x7e {
			out[i] = c
		} else {
			out[i] = ' '
		}
	}
	return string(out)
}
