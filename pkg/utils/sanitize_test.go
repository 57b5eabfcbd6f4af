package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Projects", "Projects"},
		{`a/b\c`, "a_b_c"},
		{`<x>:"y"|z?*`, "_x___y__z__"},
		{"  padded  ", "padded"},
		{"...dots...", "dots"},
		{". . x", "x"},
		{"multi   space\tname", "multi space name"},
		{"bell\x07char", "bellchar"},
		{"...", ""},
		{"", ""},
		{"café", "café"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeSegment(tt.in))
		})
	}
}

func TestSanitizeSegment_Idempotent(t *testing.T) {
	inputs := []string{
		"a/b", " . .x. . ", `"quoted"`, "tab\tand\nnewline", "..hidden", "trailing. ", "日本語/フォルダ", " nbsp ",
	}
	for _, in := range inputs {
		once := SanitizeSegment(in)
		assert.Equal(t, once, SanitizeSegment(once), in)
		assert.False(t, strings.ContainsAny(once, `/\:*?"<>|`), in)
	}
}
