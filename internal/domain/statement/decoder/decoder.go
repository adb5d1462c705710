// Package decoder detects the text encoding of raw statement files.
// Brazilian bank exports are frequently Windows-1252 rather than UTF-8.
package decoder

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Decode interprets raw bytes as UTF-8 and re-decodes as Windows-1252 when
// the result carries replacement characters. Decoding never fails; at worst
// the caller parses zero transactions out of the returned text.
func Decode(data []byte) string {
	text := string(data)
	if !strings.ContainsRune(text, utf8.RuneError) {
		return text
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return text
	}
	return string(decoded)
}
