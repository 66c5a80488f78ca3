package db

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateTextKeepsRunesWhole(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"xé", 2, "x"},
		{"xé", 3, "xé"},
		{"日本語", 4, "日"},
		{"abc", 0, ""},
	}
	for _, tc := range cases {
		if got := TruncateText(tc.in, tc.n); got != tc.want {
			t.Fatalf("TruncateText(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}

	long := "x" + strings.Repeat("é", 600)
	got := TruncateText(long, 1024)
	if !utf8.ValidString(got) || len(got) != 1023 {
		t.Fatalf("expected 1023 valid bytes, got len=%d valid=%v", len(got), utf8.ValidString(got))
	}
}
