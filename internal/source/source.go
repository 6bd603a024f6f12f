// Package source reads reStructuredText input files into UTF-8 text.
package source

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Encoding resolves an IANA or MIME encoding name. The empty name and
// "utf-8" select UTF-8 with BOM detection; "utf-16" honours a BOM.
func Encoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8", "utf-8-sig":
		return unicode.UTF8BOM, nil
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		if enc, err = ianaindex.MIME.Encoding(name); err != nil || enc == nil {
			return nil, fmt.Errorf("unknown encoding %q", name)
		}
	}
	return enc, nil
}

// Decode converts raw bytes in the named encoding to UTF-8. A leading
// byte order mark is dropped and invalid sequences become U+FFFD.
func Decode(data []byte, name string) (string, error) {
	enc, err := Encoding(name)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	out = bytes.TrimPrefix(out, utf8BOM)
	return strings.ToValidUTF8(string(out), "�"), nil
}

// ReadFile reads path and decodes it with the named encoding.
func ReadFile(path, name string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text, err := Decode(data, name)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return text, nil
}
