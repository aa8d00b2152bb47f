package feed

import (
	"strings"
	"testing"
)

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain title unchanged",
			input:    "Weekly Update",
			expected: "Weekly Update",
		},
		{
			name:     "slash substituted",
			input:    "TCP/IP Illustrated",
			expected: "TCP∕IP Illustrated",
		},
		{
			name:     "colon substituted",
			input:    "Release: 2.0",
			expected: "Release꞉ 2.0",
		},
		{
			name:     "question mark substituted",
			input:    "What happened?",
			expected: "What happened﹖",
		},
		{
			name:     "trailing url stripped",
			input:    "Great read https://example.com/article",
			expected: "Great read",
		},
		{
			name:     "embedded url kept",
			input:    "See https://example.com for details",
			expected: "See https꞉∕∕example.com for details",
		},
		{
			name:     "whitespace trimmed",
			input:    "  padded title  ",
			expected: "padded title",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeFilename(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got: %q", tt.expected, got)
			}
		})
	}
}

func TestSafeFilenameTruncation(t *testing.T) {
	long := strings.Repeat("a", 120)
	got := SafeFilename(long)

	runes := []rune(got)
	if len(runes) != 81 {
		t.Errorf("Expected 81 runes (80 plus ellipsis), got: %d", len(runes))
	}
	if runes[len(runes)-1] != '…' {
		t.Errorf("Expected trailing ellipsis, got: %q", string(runes[len(runes)-1]))
	}
}

func TestSafeFilenameMultibyteTruncation(t *testing.T) {
	long := strings.Repeat("日", 100)
	got := SafeFilename(long)

	runes := []rune(got)
	if len(runes) != 81 {
		t.Errorf("Expected truncation by rune count, got: %d runes", len(runes))
	}
}
