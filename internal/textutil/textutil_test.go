package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoveDiacriticsToASCII(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"plain ascii untouched", "hello world", "hello world"},
		{"spanish accents folded", "transcripción canción", "transcripcion cancion"},
		{"newlines and tabs collapse", "hola\n\tmundo", "hola mundo"},
		{"whitespace runs collapse", "a   b \r\n c", "a b c"},
		{"control characters dropped", "ok\x00\x01bye", "okbye"},
		{"non-ascii dropped", "日本語 ok", "ok"},
		{"leading and trailing trimmed", "  padded  ", "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RemoveDiacriticsToASCII(tt.input))
		})
	}
}

func TestSafePathComponent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"plain name", "episode one", 80, "episode one"},
		{"windows reserved chars replaced", `a<b>c:d"e`, 80, "a_b_c_d_e"},
		{"slashes replaced", "a/b\\c", 80, "a_b_c"},
		{"empty becomes item", "", 80, "item"},
		{"only bad chars becomes item", "???", 80, "item"},
		{"trailing dots stripped", "name...", 80, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SafePathComponent(tt.input, tt.maxLen))
		})
	}
}

func TestSafePathComponent_Truncation(t *testing.T) {
	long := strings.Repeat("x", 200)
	got := SafePathComponent(long, 60)
	assert.Len(t, got, 60)

	// Truncation must not leave dangling separators.
	got = SafePathComponent(strings.Repeat("y", 59)+"-"+strings.Repeat("z", 50), 60)
	assert.Equal(t, strings.Repeat("y", 59), got)
}
