package parser

import "time"

// DateLayout is the fixed timestamp layout, YYYY-MM-DD HH:mm:ss,fff.
const DateLayout = "2006-01-02 15:04:05,000"

// dateShape marks the separator bytes of DateLayout; every other position
// must be an ASCII digit.
const dateShape = "____-__-__ __:__:__,___"

// ParseDate parses s with DateLayout and returns epoch milliseconds.
// Timestamps are naive and taken as UTC; no zone conversion is applied.
// s must match the layout byte for byte: zero-padded fields and a comma
// before the milliseconds.
func ParseDate(s string) (int64, bool) {
	if !matchesShape(s) {
		return 0, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}

// matchesShape reports whether s has the exact width and separators of
// DateLayout. time.Parse alone accepts '.' for ',' and unpadded hours.
func matchesShape(s string) bool {
	if len(s) != len(dateShape) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if dateShape[i] == '_' {
			if s[i] < '0' || s[i] > '9' {
				return false
			}
		} else if s[i] != dateShape[i] {
			return false
		}
	}
	return true
}

// FormatDate renders epoch milliseconds with DateLayout.
func FormatDate(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(DateLayout)
}
