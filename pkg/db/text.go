package db

import "unicode/utf8"

// TruncateText shortens s to at most n bytes without splitting a UTF-8
// sequence. Postgres rejects text columns holding a partial rune.
func TruncateText(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
