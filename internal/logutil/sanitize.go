package logutil

import "strings"

// SanitizeForLog strips newlines, tabs, and other control characters from
// user-provided strings before they are interpolated into log lines, so a
// crafted user_id cannot forge log entries.
func SanitizeForLog(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		}
		if r < 32 {
			return -1
		}
		return r
	}, s)
}
