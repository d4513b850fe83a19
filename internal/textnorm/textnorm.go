// Package textnorm normalizes user-entered text fields.
package textnorm

import "strings"

// SoftHyphen is U+00AD. Copy-pasted addresses and names regularly carry it.
const SoftHyphen = "\u00ad"

const asciiSpace = " \t\n\v\f\r"

// Trim removes every soft hyphen (including interior ones) and trims
// leading and trailing ASCII whitespace.
func Trim(s string) string {
	return strings.Trim(strings.ReplaceAll(s, SoftHyphen, ""), asciiSpace)
}

// TrimPtr is Trim for optional values; nil yields "".
func TrimPtr(s *string) string {
	if s == nil {
		return ""
	}
	return Trim(*s)
}

// IsFilled reports whether s still has content after Trim.
func IsFilled(s string) bool {
	return Trim(s) != ""
}
