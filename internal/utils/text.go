package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxTextLength is the provider limit for a text message body.
	MaxTextLength = 4096
	// MaxCaptionLength is the provider limit for a media caption.
	MaxCaptionLength = 1024
)

var newlineReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeNewlines converts CRLF and lone CR to LF.
func NormalizeNewlines(s string) string {
	return newlineReplacer.Replace(s)
}

// Truncate cuts s to at most limit characters without splitting a rune.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// SanitizeText prepares an outbound body: newline normalization, removal of
// control characters other than LF and tab, then truncation.
func SanitizeText(s string, limit int) string {
	s = NormalizeNewlines(s)
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return Truncate(s, limit)
}

// NormalizeLabel lowercases s, drops punctuation and collapses whitespace so
// "  Daily-Horoscope! " and "daily horoscope" compare equal.
func NormalizeLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizePhone strips the provider prefix, spaces and a leading plus.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimPrefix(phone, "whatsapp:")
	phone = strings.TrimPrefix(phone, "+")
	return strings.ReplaceAll(phone, " ", "")
}
