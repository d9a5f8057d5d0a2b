package bytescan

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintable(t *testing.T) {
	assert.Equal(t, "ab c  ~", Printable([]byte{'a', 'b', 0x00, 'c', '\n', 0xff, '~'}))
	assert.Equal(t, "", Printable(nil))
}

func TestPrintableStopsAtLimit(t *testing.T) {
	b := bytes.Repeat([]byte{'x'}, Limit+10)
	assert.Len(t, Printable(b), Limit)
}
