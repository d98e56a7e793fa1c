package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Plain-text decoding is attempted in a fixed order; the first decoding that
// succeeds and yields non-empty content wins. Latin-1 accepts any byte
// sequence, so CP1252 is effectively a terminal safety net.
func extractPlainText(data []byte) (string, error) {
	if utf8.Valid(data) {
		if text := string(data); strings.TrimSpace(text) != "" {
			return text, nil
		}
	}

	if text, ok := decodeUTF16(data); ok && strings.TrimSpace(text) != "" {
		return text, nil
	}

	for _, dec := range []*encoding.Decoder{
		charmap.ISO8859_1.NewDecoder(),
		charmap.Windows1252.NewDecoder(),
	} {
		decoded, err := dec.Bytes(data)
		if err != nil {
			continue
		}
		if text := string(decoded); strings.TrimSpace(text) != "" {
			return text, nil
		}
	}

	return "", fmt.Errorf("%w: no supported encoding produced content", ErrDecodeFailed)
}

// decodeUTF16 decodes BOM-aware UTF-16, defaulting to little-endian. The
// x/text decoder substitutes U+FFFD instead of failing, so replacement
// characters are treated as a decode failure.
func decodeUTF16(data []byte) (string, bool) {
	if len(data)%2 != 0 {
		return "", false
	}

	dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	decoded, err := dec.Bytes(data)
	if err != nil {
		return "", false
	}

	text := string(decoded)
	if strings.ContainsRune(text, utf8.RuneError) {
		return "", false
	}
	return text, true
}
