// Package names canonicalizes instructor display names and derives the
// alternate renderings used by fuzzy matching.
//
// Every function here is pure: no I/O, no shared state, safe for
// concurrent use.
package names

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	commaSpacing    = regexp.MustCompile(`\s*,\s*`)
	trailingInitial = regexp.MustCompile(`\s+[A-Z](\.[A-Z])*\s*$`)
	dottedInitials  = regexp.MustCompile(`([A-Z])\.([A-Z])`)
	dotsAndSpaces   = regexp.MustCompile(`[.\s]+`)

	stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Normalize returns the comparison form of a raw display name:
// lowercase "given surname", punctuation stripped, whitespace collapsed.
// "Last, First" input is reordered; "First Middle Last" keeps first and last.
// An empty result means the input carried no name.
func Normalize(raw string) string {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" {
		return ""
	}

	name = commaSpacing.ReplaceAllString(name, ", ")
	name = trailingInitial.ReplaceAllString(name, "")
	name = dottedInitials.ReplaceAllString(name, "$1 $2")
	name = dotsAndSpaces.ReplaceAllString(name, " ")
	name = strings.ReplaceAll(name, ".", "")
	name = strings.ReplaceAll(name, "-", " ")

	if last, first, ok := strings.Cut(name, ", "); ok {
		return collapse(strings.ToLower(strings.TrimSpace(first) + " " + strings.TrimSpace(last)))
	}

	parts := strings.Fields(name)
	if len(parts) > 2 {
		return strings.ToLower(parts[0] + " " + parts[len(parts)-1])
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Fold removes combining marks so "José" and "Jose" compare equal.
func Fold(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		return s
	}
	return out
}

// Key returns the index key for a raw name, optionally accent-folded.
func Key(raw string, fold bool) string {
	n := Normalize(raw)
	if fold && n != "" {
		return Fold(n)
	}
	return n
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
