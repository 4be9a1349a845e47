package names

import (
	"slices"
	"strings"
)

// Variations returns alternate renderings of a normalized name, sorted and
// de-duplicated. The input itself is always included.
//
// Two-part names add the swapped order. Longer names add first+last,
// first+second, last+first and first+third, every form with one middle
// token dropped, and the form without the first token. Names with more than
// three parts also pair the first token with the last two, the last three,
// and each trailing token on its own.
func Variations(normalized string) []string {
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return nil
	}

	parts := strings.Fields(normalized)
	set := map[string]struct{}{normalized: {}}
	add := func(tokens ...string) {
		set[strings.Join(tokens, " ")] = struct{}{}
	}

	n := len(parts)
	switch {
	case n == 2:
		add(parts[1], parts[0])
	case n > 2:
		first, last := parts[0], parts[n-1]
		add(first, last)
		add(first, parts[1])
		add(last, first)
		add(first, parts[2])

		for i := 1; i < n-1; i++ {
			without := make([]string, 0, n-1)
			without = append(without, parts[:i]...)
			without = append(without, parts[i+1:]...)
			add(without...)
		}
		add(parts[1:]...)

		if n > 3 {
			add(first, parts[n-2], last)
			add(first, parts[n-3], parts[n-2], last)
			for _, tail := range parts[1:] {
				add(first, tail)
			}
		}
	}

	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
