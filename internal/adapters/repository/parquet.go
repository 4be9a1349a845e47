package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/parquet-go/parquet-go"

	"github.com/okian/profmatch/internal/domain/model"
)

// MatchedRow is one merged entry flattened for columnar export.
// Missing ("N/A") values are null. Course ratings are kept as JSON text.
type MatchedRow struct {
	Name             string   `parquet:"name"`
	InstructorID     string   `parquet:"instructor_id"`
	OverallRating    *float64 `parquet:"overall_grade_rating,optional"`
	TotalCount       int64    `parquet:"total_grade_count"`
	CourseRatings    string   `parquet:"course_ratings"`
	ReviewID         string   `parquet:"rmp_id"`
	Department       string   `parquet:"department"`
	URL              string   `parquet:"url"`
	QualityRating    *float64 `parquet:"quality_rating,optional"`
	DifficultyRating *float64 `parquet:"difficulty_rating,optional"`
	WouldTakeAgain   *float64 `parquet:"would_take_again,optional"`
	RatingsCount     *float64 `parquet:"ratings_count,optional"`
	Tags             []string `parquet:"tags,list"`
	Tier             string   `parquet:"match_tier"`
	Score            int64    `parquet:"match_score"`
}

// Rows flattens matched entries in name order.
func Rows(matched model.Matched) ([]MatchedRow, error) {
	names := make([]string, 0, len(matched))
	for name := range matched {
		names = append(names, name)
	}
	slices.Sort(names)

	rows := make([]MatchedRow, 0, matched.Count())
	for _, name := range names {
		for i := range matched[name] {
			e := &matched[name][i]
			courses, err := json.Marshal(e.CourseRatings)
			if err != nil {
				return nil, fmt.Errorf("%q course ratings: %w", name, err)
			}
			rows = append(rows, MatchedRow{
				Name:             name,
				InstructorID:     e.InstructorID,
				OverallRating:    nullable(e.OverallRating),
				TotalCount:       int64(e.TotalCount),
				CourseRatings:    string(courses),
				ReviewID:         e.ReviewID,
				Department:       e.Department,
				URL:              e.URL,
				QualityRating:    nullable(e.QualityRating),
				DifficultyRating: nullable(e.DifficultyRating),
				WouldTakeAgain:   nullable(e.WouldTakeAgain),
				RatingsCount:     nullable(e.RatingsCount),
				Tags:             e.Tags,
				Tier:             e.Tier,
				Score:            int64(e.Score),
			})
		}
	}
	return rows, nil
}

// ExportParquet writes one row per matched entry to path and returns the row count.
func ExportParquet(ctx context.Context, path string, matched model.Matched) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rows, err := Rows(matched)
	if err != nil {
		return 0, fmt.Errorf("export parquet: %w", err)
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[MatchedRow](&buf)
	if _, err := w.Write(rows); err != nil {
		return 0, fmt.Errorf("export parquet: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("export parquet: %w", err)
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("export parquet: %w", err)
	}
	return len(rows), nil
}

func nullable(v model.Value) *float64 {
	f, ok := v.Float()
	if !ok {
		return nil
	}
	return &f
}
