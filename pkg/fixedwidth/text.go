package fixedwidth

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Charset names a text encoding used for input or output files.
type Charset string

const (
	Latin1      Charset = "latin1"
	Windows1252 Charset = "windows1252"
	UTF8        Charset = "utf8"
)

// ParseCharset accepts the usual aliases of the supported charsets.
func ParseCharset(name string) (Charset, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "-", "")) {
	case "", "latin1", "iso88591":
		return Latin1, nil
	case "windows1252", "cp1252":
		return Windows1252, nil
	case "utf8":
		return UTF8, nil
	}
	return "", fmt.Errorf("unsupported charset %q", name)
}

func (c Charset) table() *charmap.Charmap {
	switch c {
	case Windows1252:
		return charmap.Windows1252
	case UTF8:
		return nil
	}
	return charmap.ISO8859_1
}

// Decode converts raw file bytes to a Go string.
func (c Charset) Decode(b []byte) (string, error) {
	cm := c.table()
	if cm == nil {
		return string(b), nil
	}
	out, err := cm.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", c, err)
	}
	return string(out), nil
}

// Encode converts s to the charset. Characters the charset cannot hold
// are replaced rather than failing the whole blob.
func (c Charset) Encode(s string) ([]byte, error) {
	cm := c.table()
	if cm == nil {
		return []byte(s), nil
	}
	out, err := encoding.ReplaceUnsupported(cm.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c, err)
	}
	return out, nil
}

// DecodeAuto returns data as text, trusting UTF-8 when the bytes are valid
// UTF-8 and falling back to latin-1 otherwise.
func DecodeAuto(data []byte) (string, Charset) {
	if utf8.Valid(data) {
		return string(data), UTF8
	}
	s, _ := Latin1.Decode(data)
	return s, Latin1
}

// SplitLines splits text into lines without their terminators. A trailing
// terminator does not produce an extra empty line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// DetectEOL returns the terminator of the first line, "\n" by default.
func DetectEOL(text string) string {
	i := strings.IndexByte(text, '\n')
	if i > 0 && text[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
