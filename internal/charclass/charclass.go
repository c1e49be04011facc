// Package charclass implements the character classes used by alias
// specification patterns (alpha, number, alnum, ident, fqdn), and the
// case-folding rules applied to them.
package charclass

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Class identifies one of the identifier field character classes.
type Class int

// Valid character classes.
const (
	Alpha Class = iota
	Number
	Alnum
	Ident
	FQDN
)

var names = map[Class]string{
	Alpha:  "alpha",
	Number: "number",
	Alnum:  "alnum",
	Ident:  "ident",
	FQDN:   "fqdn",
}

// String returns the class's canonical lower-case name, as used in
// "%name%" fields.
func (c Class) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Parse looks up a Class by its "%name%" token, e.g. "ident".
func Parse(name string) (Class, bool) {
	for c, n := range names {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isNumber(b byte) bool {
	return b >= '0' && b <= '9'
}

func isAlnum(b byte) bool {
	return isAlpha(b) || isNumber(b)
}

func isIdent(b byte) bool {
	return isAlnum(b) || b == '-' || b == '_'
}

// fqdnByte reports whether b may appear anywhere in an fqdn field
// (alnum, '-', or the label separator '.').
func fqdnByte(b byte) bool {
	return isAlnum(b) || b == '-' || b == '.'
}

// IsMember reports whether b belongs to class c. For FQDN it reports only
// whether b may appear in an fqdn field (alnum, '-' or '.'); the label
// structure (labels separated by single dots) is checked with ValidFQDN.
func (c Class) IsMember(b byte) bool {
	switch c {
	case Alpha:
		return isAlpha(b)
	case Number:
		return isNumber(b)
	case Alnum:
		return isAlnum(b)
	case Ident:
		return isIdent(b)
	case FQDN:
		return fqdnByte(b)
	default:
		return false
	}
}

// IsVowel reports whether b is an ASCII vowel, case-folded.
func IsVowel(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
		return true
	default:
		return false
	}
}

// Fold applies the configured case-folding to s. trualias input is
// constrained to 7-bit ASCII, on which the Unicode case fold used here
// amounts to plain lower-casing.
func Fold(s string, caseSensitive bool) string {
	if caseSensitive {
		return s
	}
	return foldCaser.String(s)
}

// foldCaser performs the fold used when CASE SENSITIVE is false. It uses
// golang.org/x/text/cases rather than strings.ToLower, so the folding rule
// stays expressed in the same library the rest of the stack uses for text
// normalization.
var foldCaser = cases.Fold()

// Labels splits an fqdn-class capture into its dot-separated labels.
// It returns false if the string is not a well-formed sequence of
// non-empty alnum/dash labels separated by single dots.
func Labels(s string) ([]string, bool) {
	if s == "" {
		return nil, false
	}
	labels := strings.Split(s, ".")
	for _, l := range labels {
		if l == "" {
			return nil, false
		}
		for i := 0; i < len(l); i++ {
			if !isAlnum(l[i]) && l[i] != '-' {
				return nil, false
			}
		}
	}
	return labels, true
}

// ValidFQDN reports whether s is a well-formed fqdn-class capture.
func ValidFQDN(s string) bool {
	_, ok := Labels(s)
	return ok
}
