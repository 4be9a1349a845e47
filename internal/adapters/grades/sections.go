// Package grades turns course-section listings and grade-distribution CSVs
// into the ratings snapshot consumed by the matching pipeline.
package grades

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/okian/profmatch/internal/domain/names"
)

// Section is one course-section listing. Instructor fields are comma-separated;
// only the first instructor teaches the section for rating purposes.
type Section struct {
	CoursePrefix  string `json:"course_prefix"`
	CourseNumber  text   `json:"course_number"`
	Instructors   string `json:"instructors"`
	InstructorIDs string `json:"instructor_ids"`
}

// Course returns the section's course code, e.g. "CS1336".
func (s Section) Course() string {
	return strings.ToUpper(strings.TrimSpace(s.CoursePrefix)) + strings.TrimSpace(string(s.CourseNumber))
}

// Primary returns the normalized name and id of the first listed instructor.
func (s Section) Primary() (name, id string, ok bool) {
	rawName, _, _ := strings.Cut(s.Instructors, ",")
	rawID, _, _ := strings.Cut(s.InstructorIDs, ",")
	name = names.Normalize(rawName)
	id = strings.TrimSpace(rawID)
	return name, id, name != "" && id != ""
}

// Profile is one instructor id seen under a normalized name, with the courses taught.
type Profile struct {
	InstructorID string
	Courses      map[string]struct{}
}

// Teaches reports whether the profile taught course.
func (p Profile) Teaches(course string) bool {
	_, ok := p.Courses[course]
	return ok
}

// Profiles maps a normalized instructor name to every id published under it.
type Profiles map[string][]Profile

// Add records that id, listed as name, taught course.
func (p Profiles) Add(name, id, course string) {
	for i := range p[name] {
		if p[name][i].InstructorID == id {
			p[name][i].Courses[course] = struct{}{}
			return
		}
	}
	p[name] = append(p[name], Profile{InstructorID: id, Courses: map[string]struct{}{course: {}}})
}

// Owners maps every instructor id to the name it was first listed under,
// in sorted name order.
func (p Profiles) Owners() map[string]string {
	out := make(map[string]string)
	for _, name := range slices.Sorted(maps.Keys(p)) {
		for _, prof := range p[name] {
			if _, seen := out[prof.InstructorID]; !seen {
				out[prof.InstructorID] = name
			}
		}
	}
	return out
}

// LoadSections reads every *.json section file in dir.
func LoadSections(ctx context.Context, dir string) (Profiles, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	slices.Sort(files)

	profiles := make(Profiles)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read sections: %w", err)
		}
		var sections []Section
		if err := json.Unmarshal(data, &sections); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", file, ErrMalformed, err)
		}
		for _, s := range sections {
			name, id, ok := s.Primary()
			if !ok || s.Course() == "" {
				continue
			}
			profiles.Add(name, id, s.Course())
		}
	}
	return profiles, nil
}

// text accepts a JSON string or number.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = text(n.String())
	return nil
}
