// Package index groups source records by normalized instructor name.
package index

import (
	"slices"
	"strconv"

	"github.com/okian/profmatch/internal/domain/names"
)

// Ref is one source record with its position in the input.
type Ref[R any] struct {
	ID      string // stable identifier: "<raw name>#<position>"
	RawName string
	Pos     int
	Record  R
}

// RefID builds the identifier of the record at pos under raw.
func RefID(raw string, pos int) string {
	return raw + "#" + strconv.Itoa(pos)
}

// Group holds every record whose raw name normalizes to Key.
type Group[R any] struct {
	Key      string
	RawName  string   // representative raw name: the smallest merged one
	RawNames []string // every raw name merged here, sorted
	Refs     []Ref[R]
}

// Index maps normalized names to groups. It is read-only once built.
type Index[R any] struct {
	groups map[string]*Group[R]
	keys   []string
}

// Build normalizes every raw name of data and groups the records.
// Raw names that collide merge their record lists. Raw names that normalize
// to the empty string are left out.
func Build[R any](data map[string][]R, fold bool) *Index[R] {
	raws := make([]string, 0, len(data))
	for raw := range data {
		raws = append(raws, raw)
	}
	slices.Sort(raws)

	idx := &Index[R]{groups: make(map[string]*Group[R], len(data))}
	for _, raw := range raws {
		key := names.Key(raw, fold)
		if key == "" {
			continue
		}
		g, ok := idx.groups[key]
		if !ok {
			g = &Group[R]{Key: key, RawName: raw}
			idx.groups[key] = g
			idx.keys = append(idx.keys, key)
		}
		g.RawNames = append(g.RawNames, raw)
		for pos, rec := range data[raw] {
			g.Refs = append(g.Refs, Ref[R]{ID: RefID(raw, pos), RawName: raw, Pos: pos, Record: rec})
		}
	}
	slices.Sort(idx.keys)
	return idx
}

// Get returns the group for a normalized key.
func (x *Index[R]) Get(key string) (*Group[R], bool) {
	g, ok := x.groups[key]
	return g, ok
}

// Lookup normalizes raw and returns its group.
func (x *Index[R]) Lookup(raw string, fold bool) (*Group[R], bool) {
	return x.Get(names.Key(raw, fold))
}

// Keys returns the normalized keys in sorted order.
func (x *Index[R]) Keys() []string {
	return x.keys
}

// Len returns the number of groups.
func (x *Index[R]) Len() int {
	return len(x.keys)
}

// Records returns the number of records across all groups.
func (x *Index[R]) Records() int {
	n := 0
	for _, g := range x.groups {
		n += len(g.Refs)
	}
	return n
}

// Without returns a new index holding only the records for which consumed
// returns false. Groups left empty are dropped. The receiver is not modified.
func (x *Index[R]) Without(consumed func(id string) bool) *Index[R] {
	out := &Index[R]{groups: make(map[string]*Group[R], len(x.groups))}
	for _, key := range x.keys {
		g := x.groups[key]
		var kept []Ref[R]
		for _, ref := range g.Refs {
			if !consumed(ref.ID) {
				kept = append(kept, ref)
			}
		}
		if len(kept) == 0 {
			continue
		}
		out.groups[key] = &Group[R]{Key: key, RawName: g.RawName, RawNames: g.RawNames, Refs: kept}
		out.keys = append(out.keys, key)
	}
	return out
}
