package workbook

import "strings"

// isDateFormat reports whether a built-in number format ID renders a date or time.
func isDateFormat(fmtID int) bool {
	switch fmtID {
	case 14, 15, 16, 17, 18, 19, 20, 21, 22, 27, 30, 36, 45, 46, 47, 50, 57:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom number format code renders a
// date: it contains y, d or h tokens outside quoted literals and brackets.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case ch == '"':
			inQuote = !inQuote
		case inQuote:
		case ch == '[':
			inBracket = true
		case ch == ']':
			inBracket = false
		case inBracket:
		case ch == '\\' || ch == '_' || ch == '*':
			i++ // the next character is a literal or padding
		default:
			b.WriteByte(ch)
		}
	}
	// only the first section decides, the others are for negatives/zero/text
	section, _, _ := strings.Cut(strings.ToLower(b.String()), ";")
	return strings.ContainsAny(section, "ydh")
}
