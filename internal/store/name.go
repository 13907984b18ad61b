package store

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const maxSlugLen = 50

// Slug turns a prompt into a filesystem-safe stem: drop anything outside
// letters, digits, underscore, space and hyphen, collapse space/hyphen runs
// into single underscores, cap the length. Idempotent.
func Slug(prompt string) string {
	var b strings.Builder
	sep := false
	for _, r := range prompt {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			sep = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			sep = true
		}
	}

	s := b.String()
	if len(s) > maxSlugLen {
		// Cut on a rune boundary so multi-byte prompts stay valid UTF-8.
		cut := maxSlugLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	s = strings.Trim(s, "_")
	if s == "" {
		return "image"
	}
	return s
}

// Filename derives the timestamped image name the CLI and web UI both use.
func Filename(t time.Time, prompt, ext string) string {
	return t.Format("2006-01-02_15-04-05") + "_" + Slug(prompt) + "." + ext
}
