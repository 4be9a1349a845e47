package grades

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/okian/profmatch/internal/domain/model"
	"github.com/okian/profmatch/internal/domain/names"
	"github.com/okian/profmatch/pkg/logger"
	"github.com/okian/profmatch/pkg/metrics"
)

// Grade CSV columns.
const (
	ColInstructor = "Instructor 1"
	ColSubject    = "Subject"
	ColCatalog    = "Catalog Nbr"
)

// GradePoints is the point value of every letter column. W is penalized
// less than F; P counts as full credit.
var GradePoints = map[string]float64{
	"A+": 4.0, "A": 4.0, "A-": 3.67,
	"B+": 3.33, "B": 3.0, "B-": 2.67,
	"C+": 2.33, "C": 2.0, "C-": 1.67,
	"D+": 1.33, "D": 1.0, "D-": 0.67,
	"F": 0.0, "W": 0.67, "P": 4.0, "NP": 0.0,
}

// gradeOrder fixes summation order so ratings round the same way every run.
var gradeOrder = slices.Sorted(maps.Keys(GradePoints))

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// tally accumulates grade counts.
type tally struct {
	points float64
	count  int
}

func (t *tally) add(o tally) {
	t.points += o.points
	t.count += o.count
}

// rating scales the mean grade point to 0..5, rounded to two places.
func (t tally) rating() model.Value {
	if t.count == 0 {
		return model.NA()
	}
	return model.Num(round2(t.points / float64(t.count) / 4 * 5))
}

// round2 rounds x to two decimal places, ties to even on the exact binary value.
func round2(x float64) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 2, 64), 64)
	return v
}

// Aggregator builds ratings from section listings and grade distributions.
type Aggregator struct {
	logger logger.Logger
}

// New creates an Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{logger: logger.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run loads sections from sectionsDir and aggregates every grade CSV in gradesDir.
func (a *Aggregator) Run(ctx context.Context, sectionsDir, gradesDir string) (model.Ratings, error) {
	profiles, err := LoadSections(ctx, sectionsDir)
	if err != nil {
		return nil, err
	}
	a.logger.Info(ctx, "sections loaded", logger.Int("names", len(profiles)))
	return a.Aggregate(ctx, profiles, gradesDir)
}

// Aggregate attributes every grade row to the instructor ids listed under the
// row's normalized name that taught the row's course, then computes ratings.
// Output is keyed by normalized name with records sorted by instructor id.
func (a *Aggregator) Aggregate(ctx context.Context, profiles Profiles, gradesDir string) (model.Ratings, error) {
	files, err := filepath.Glob(filepath.Join(gradesDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	slices.Sort(files)

	// instructor id -> course -> tally
	byID := make(map[string]map[string]*tally)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := a.readFile(ctx, file, func(name, course string, t tally) {
			for _, prof := range profiles[name] {
				if !prof.Teaches(course) {
					continue
				}
				courses := byID[prof.InstructorID]
				if courses == nil {
					courses = make(map[string]*tally)
					byID[prof.InstructorID] = courses
				}
				if courses[course] == nil {
					courses[course] = &tally{}
				}
				courses[course].add(t)
			}
		})
		if err != nil {
			return nil, err
		}
		a.logger.Debug(ctx, "grade file read", logger.String("file", filepath.Base(file)), logger.Int("rows", rows))
	}

	owners := profiles.Owners()
	out := make(model.Ratings)
	for id, courses := range byID {
		name, ok := owners[id]
		if !ok {
			continue
		}
		var total tally
		rec := model.RatingRecord{InstructorID: id, CourseRatings: make(map[string]model.Value, len(courses))}
		for _, course := range slices.Sorted(maps.Keys(courses)) {
			t := courses[course]
			total.add(*t)
			rec.CourseRatings[course] = t.rating()
		}
		rec.OverallRating = total.rating()
		rec.TotalCount = total.count
		out[name] = append(out[name], rec)
	}

	for _, name := range slices.Sorted(maps.Keys(out)) {
		recs := out[name]
		slices.SortFunc(recs, func(x, y model.RatingRecord) int { return strings.Compare(x.InstructorID, y.InstructorID) })
		if len(recs) > 1 {
			ids := make([]string, len(recs))
			for i, r := range recs {
				ids[i] = r.InstructorID
			}
			a.logger.Debug(ctx, "name has multiple instructor ids", logger.String("name", name), logger.Strings("ids", ids))
		}
	}

	metrics.RecordProducerRecords("grades", out.Count())
	a.logger.Info(ctx, "ratings aggregated", logger.Int("names", len(out)), logger.Int("records", out.Count()))
	return out, nil
}

// readFile streams one grade CSV, calling emit for every usable row.
func (a *Aggregator) readFile(ctx context.Context, file string, emit func(name, course string, t tally)) (int, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, fmt.Errorf("read grades: %w", err)
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReader(f)
	if head, _ := br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", file, ErrMalformed, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.Trim(strings.TrimSpace(h), `"`))] = i
	}
	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	used := 0
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return used, fmt.Errorf("%s:%d: %w: %w", file, line, ErrMalformed, err)
		}

		name := names.Normalize(field(rec, ColInstructor))
		subject := strings.ToUpper(field(rec, ColSubject))
		catalog := field(rec, ColCatalog)
		if name == "" || subject == "" || catalog == "" {
			continue
		}

		var t tally
		valid := true
		for _, grade := range gradeOrder {
			points := GradePoints[grade]
			v := field(rec, grade)
			if v == "" {
				continue
			}
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				valid = false
				break
			}
			t.count += int(n)
			t.points += points * float64(int(n))
		}
		if !valid {
			a.logger.Warn(ctx, "skipping row with unreadable grade count",
				logger.String("file", filepath.Base(file)), logger.Int("line", line))
			continue
		}
		if t.count == 0 {
			continue
		}
		emit(name, subject+catalog, t)
		used++
	}
	return used, nil
}
