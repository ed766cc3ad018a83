package main

import (
	"testing"
	"unicode/utf8"
)

func TestTruncateLabel(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"short untouched", "openai / whisper-1", "openai / whisper-1"},
		{"exact length untouched", "0123456789012345678", "0123456789012345678"},
		{"long ascii", "openai / text-embedding-3-small", "openai / text-em…"},
		{"multibyte at the cut", "ollama / qwen2.5-übersetzer-groß", "ollama / qwen2.5…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateLabel(tt.value, 19)
			if got != tt.want {
				t.Errorf("truncateLabel(%q) = %q, want %q", tt.value, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncateLabel(%q) produced invalid UTF-8 %q", tt.value, got)
			}
		})
	}
}
