package link

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DecodeText decodes instrument bytes to text without ever failing.
//
// Valid UTF-8 is returned unchanged. Otherwise the bytes are decoded as
// Latin-1 after stripping NUL bytes, which extended-character analyzers
// commonly embed. If that fails the bytes are decoded as UTF-8 with invalid
// sequences replaced by U+FFFD.
func DecodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}

	stripped := bytes.ReplaceAll(raw, []byte{0}, nil)
	if out, err := charmap.ISO8859_1.NewDecoder().Bytes(stripped); err == nil {
		return string(out)
	}

	return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
}
