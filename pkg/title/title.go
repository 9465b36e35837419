// Package title reads and writes the metadata segment that taskbutler keeps
// at the end of a task title, after a configured delimiter:
//
//	Buy milk ‣ ◑ 50 %
//	https://docs.google.com/document/d/x/edit (Buy milk) ‣ ◑ 50 %
//
// Titles are the only place sync state is persisted, so every feature goes
// through this package instead of splitting strings itself.
package title

import (
	"strings"
	"unicode"
)

// Annotated is a title split into its human-readable headline and the
// machine-written metadata after the delimiter.
type Annotated struct {
	Headline    string
	Metadata    string
	HasMetadata bool
}

// split cuts on the first occurrence of delim and returns both sides untouched.
func split(s, delim string) (head, meta string, ok bool) {
	if delim == "" {
		return s, "", false
	}
	return strings.Cut(s, delim)
}

// Decode splits s on the first occurrence of delim. The single padding space
// Encode writes on each side of the delimiter is removed; anything else is
// kept as-is. An empty delimiter means titles carry no metadata.
func Decode(s, delim string) Annotated {
	head, meta, ok := split(s, delim)
	if !ok {
		return Annotated{Headline: s}
	}
	return Annotated{
		Headline:    strings.TrimSuffix(head, " "),
		Metadata:    strings.TrimPrefix(meta, " "),
		HasMetadata: true,
	}
}

// Encode appends metadata to headline. With empty metadata the headline is
// returned unchanged.
func Encode(headline, delim, metadata string) string {
	if metadata == "" || delim == "" {
		return headline
	}
	return strings.TrimRightFunc(headline, unicode.IsSpace) + " " + delim + " " + metadata
}

// Headline returns the part of s before the delimiter, without trailing space.
func Headline(s, delim string) string {
	return strings.TrimRightFunc(Decode(s, delim).Headline, unicode.IsSpace)
}

// PrependReference puts ref in front of the headline, wrapping the headline
// in parentheses, and keeps the metadata segment byte-for-byte.
func PrependReference(s, delim, ref string) string {
	head, meta, ok := split(s, delim)
	out := ref + " (" + strings.TrimRightFunc(head, unicode.IsSpace) + ")"
	if !ok {
		return out
	}
	return out + " " + delim + meta
}

// Contains reports whether marker occurs anywhere in s. An empty marker never
// matches, so a misconfigured feature cannot mark every task as synced.
func Contains(s, marker string) bool {
	return marker != "" && strings.Contains(s, marker)
}

// Alnum drops every rune that is not a letter or a digit.
func Alnum(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
