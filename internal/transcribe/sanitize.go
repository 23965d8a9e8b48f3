package transcribe

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// Sanitizer makes a string safe to print on an output with a given
// character encoding.
type Sanitizer func(string) string

// Identity returns s unchanged.
func Identity(s string) string { return s }

// NewSanitizer returns a Sanitizer for the named output encoding. Runes the
// encoding cannot represent are replaced with '?'. UTF-8 (or an empty name)
// yields Identity.
func NewSanitizer(encodingName string) (Sanitizer, error) {
	name := strings.ToLower(strings.TrimSpace(encodingName))
	switch name {
	case "", "utf-8", "utf8":
		return Identity, nil
	case "ascii", "us-ascii", "ansi_x3.4-1968":
		return func(s string) string {
			return replaceRunes(s, func(r rune) bool { return r < utf8.RuneSelf })
		}, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("output encoding %q: %w", encodingName, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("output encoding %q is not supported", encodingName)
	}
	if canonical, _ := ianaindex.IANA.Name(enc); strings.EqualFold(canonical, "UTF-8") {
		return Identity, nil
	}

	return func(s string) string {
		return replaceRunes(s, func(r rune) bool { return encodable(enc, r) })
	}, nil
}

func encodable(enc encoding.Encoding, r rune) bool {
	if r == utf8.RuneError {
		return false
	}
	_, err := enc.NewEncoder().String(string(r))
	return err == nil
}

func replaceRunes(s string, ok func(rune) bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if ok(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}
