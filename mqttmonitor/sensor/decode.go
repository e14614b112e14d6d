package sensor

import "strings"

const (
	minPrintable = 32  // ' '
	maxPrintable = 126 // '~'
)

// asciiSpace matches the characters C's isspace treats as whitespace.
const asciiSpace = " \t\n\v\f\r"

// AppendPrintable appends the printable ASCII bytes of src to dst and returns
// the extended buffer. Everything else is dropped, not replaced.
func AppendPrintable(dst, src []byte) []byte {
	for _, b := range src {
		if b >= minPrintable && b <= maxPrintable {
			dst = append(dst, b)
		}
	}
	return dst
}

// Printable returns the printable ASCII bytes of src as a string.
func Printable(src []byte) string {
	return string(AppendPrintable(make([]byte, 0, len(src)), src))
}

// LooksLikeObject reports whether s, once trimmed, is non-empty and enclosed
// in braces. It is a shape check only: "{garbage}" passes.
func LooksLikeObject(s string) bool {
	s = strings.Trim(s, asciiSpace)
	if len(s) == 0 {
		return false
	}
	return s[0] == '{' && s[len(s)-1] == '}'
}
