// Package textutil provides text sanitization helpers shared by the
// transcription pipeline: ASCII normalization of ASR output and safe
// filesystem path components for downloaded media.
package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	collapseWS  = regexp.MustCompile(`\s+`)
	winBadChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	winTrailing = regexp.MustCompile(`[ .]+$`)
)

// stripMarks removes combining marks after NFKD decomposition, so that
// accented characters fold to their base letter ("transcripción" -> "transcripcion").
var stripMarks = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
)

// RemoveDiacriticsToASCII normalizes s to 7-bit ASCII: diacritics are folded
// to base letters, control characters and non-ASCII runes are dropped, and
// whitespace runs (including newlines and tabs) collapse to single spaces.
func RemoveDiacriticsToASCII(s string) string {
	if s == "" {
		return ""
	}

	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r == '\r' || r == '\n' || r == '\t':
			b.WriteByte(' ')
		case r >= 32 && r <= 126:
			b.WriteRune(r)
		}
	}

	return strings.TrimSpace(collapseWS.ReplaceAllString(b.String(), " "))
}

// SafePathComponent turns an arbitrary title into a single path component
// that is safe on every platform we ship to, including Windows. The result
// is never empty and never longer than maxLen.
func SafePathComponent(name string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 80
	}

	name = RemoveDiacriticsToASCII(name)
	name = winBadChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(winTrailing.ReplaceAllString(name, ""))

	if name == "" {
		name = "item"
	}

	if len(name) > maxLen {
		name = strings.TrimRight(name[:maxLen], "_- .")
		if name == "" {
			name = "item"
		}
	}

	return name
}
