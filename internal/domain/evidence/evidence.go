// Package evidence decides whether two instructors' course lists corroborate
// a name match.
package evidence

import (
	"strings"
	"unicode"
)

// Level reports which signal established an overlap.
type Level int

// Overlap levels, strongest first.
const (
	LevelNone Level = iota
	LevelNumber
	LevelDepartment
	LevelExact
)

func (l Level) String() string {
	switch l {
	case LevelExact:
		return "exact"
	case LevelDepartment:
		return "department"
	case LevelNumber:
		return "number"
	default:
		return "none"
	}
}

// HasOverlap reports whether the course lists share an exact code, a
// department prefix, or a catalog number, checked in that order.
func HasOverlap(candidate, reference []string) bool {
	return Compare(candidate, reference) != LevelNone
}

// Compare returns the strongest overlap level between two course lists.
func Compare(candidate, reference []string) Level {
	if len(candidate) == 0 || len(reference) == 0 {
		return LevelNone
	}
	if intersects(candidate, reference, strings.ToUpper) {
		return LevelExact
	}
	if intersects(candidate, reference, Prefix) {
		return LevelDepartment
	}
	if intersects(candidate, reference, Number) {
		return LevelNumber
	}
	return LevelNone
}

// Prefix returns the leading letters of a course code, uppercased ("cs3345" -> "CS").
func Prefix(code string) string {
	end := strings.IndexFunc(code, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(code)
	}
	return strings.ToUpper(code[:end])
}

// Number returns the digits of a course code ("CS3345" -> "3345").
func Number(code string) string {
	return keep(code, unicode.IsDigit)
}

func keep(code string, pred func(rune) bool) string {
	var b strings.Builder
	for _, r := range code {
		if pred(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// intersects maps both lists through key and reports a shared non-empty key.
func intersects(a, b []string, key func(string) string) bool {
	seen := make(map[string]struct{}, len(a))
	for _, c := range a {
		if k := key(strings.TrimSpace(c)); k != "" {
			seen[k] = struct{}{}
		}
	}
	for _, c := range b {
		if k := key(strings.TrimSpace(c)); k != "" {
			if _, ok := seen[k]; ok {
				return true
			}
		}
	}
	return false
}
