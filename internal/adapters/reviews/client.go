// Package reviews fetches instructor review profiles from the review site's
// GraphQL search endpoint and shapes them into the reviews snapshot.
package reviews

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/okian/profmatch/internal/domain/model"
	"github.com/okian/profmatch/pkg/logger"
	"github.com/okian/profmatch/pkg/metrics"
)

const (
	defaultPageSize    = 1000
	defaultHTTPTimeout = 30 * time.Second
	defaultProfileBase = "https://www.ratemyprofessors.com/professor"
	maxTags            = 5
	maxErrorBody       = 512
)

var courseNoise = regexp.MustCompile(`[-_\s]+`)

// Config captures the endpoint and school to fetch.
type Config struct {
	Endpoint string
	SchoolID string
	// Authorization is sent verbatim in the Authorization header.
	Authorization string
	PageSize      int
	// ProfileBase prefixes the numeric profile id to build profile URLs.
	ProfileBase string
	Timeout     time.Duration
}

// Client pages through the search endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
	logger     logger.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithClock overrides the fetch timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient constructs a review client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.SchoolID = strings.TrimSpace(cfg.SchoolID)
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.ProfileBase == "" {
		cfg.ProfileBase = defaultProfileBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns every profile of the configured school keyed by lowercase
// "first last". Profiles sharing a name are kept as a list in fetch order.
func (c *Client) Fetch(ctx context.Context) (model.Reviews, error) {
	out := make(model.Reviews)
	stamp := c.now().UTC().Format(time.RFC3339)

	cursor := ""
	for page := 1; ; page++ {
		resp, err := c.page(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("fetch reviews page %d: %w", page, err)
		}
		teachers := resp.Data.Search.Teachers

		for _, edge := range teachers.Edges {
			key, rec := toRecord(edge.Node, c.cfg.ProfileBase, stamp)
			if key == "" {
				continue
			}
			if len(out[key]) > 0 {
				c.logger.Debug(ctx, "duplicate review name", logger.String("name", key), logger.String("rmp_id", rec.ID))
			}
			out[key] = append(out[key], rec)
		}
		c.logger.Debug(ctx, "review page fetched",
			logger.Int("page", page),
			logger.Int("teachers", len(teachers.Edges)),
			logger.Int("result_count", teachers.ResultCount),
		)

		next := teachers.PageInfo.EndCursor
		if !teachers.PageInfo.HasNextPage || len(teachers.Edges) == 0 || next == "" || next == cursor {
			break
		}
		cursor = next
	}

	metrics.RecordProducerRecords("reviews", out.Count())
	c.logger.Info(ctx, "reviews fetched", logger.Int("names", len(out)), logger.Int("records", out.Count()))
	return out, nil
}

func (c *Client) page(ctx context.Context, cursor string) (*searchResponse, error) {
	body, err := json.Marshal(searchRequest{
		Query: searchQuery,
		Variables: searchVariables{
			Count:  c.cfg.PageSize,
			Cursor: cursor,
			Query:  searchInput{SchoolID: c.cfg.SchoolID, Fallback: true},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Authorization != "" {
		req.Header.Set("Authorization", c.cfg.Authorization)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordErrorByComponent("reviews", "request_failed")
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		metrics.RecordErrorByComponent("reviews", "http_status")
		return nil, fmt.Errorf("%w: %d: %s", ErrHTTPStatus, res.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResponse, err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrResponse, out.Errors[0].Message)
	}
	if out.Data == nil || out.Data.Search.Teachers == nil {
		return nil, fmt.Errorf("%w: missing teachers", ErrResponse)
	}
	return &out, nil
}

// toRecord shapes one search node. The returned key is empty when the node has no name.
func toRecord(t teacher, profileBase, stamp string) (string, model.ReviewRecord) {
	display := strings.TrimSpace(t.FirstName + " " + t.LastName)
	key := strings.Join(strings.Fields(strings.ToLower(display)), " ")

	rec := model.ReviewRecord{
		Department:       t.Department,
		QualityRating:    value(t.AvgRating),
		DifficultyRating: value(t.AvgDifficulty),
		WouldTakeAgain:   model.NA(),
		RatingsCount:     value(t.NumRatings),
		Courses:          []string{},
		Tags:             []string{},
		OriginalFormat:   display,
		LastUpdated:      stamp,
	}
	if t.LegacyID != 0 {
		rec.ID = strconv.FormatInt(t.LegacyID, 10)
		rec.URL = strings.TrimRight(profileBase, "/") + "/" + rec.ID
	}
	if p := t.WouldTakeAgainPercent; p != nil && *p >= 0 {
		rec.WouldTakeAgain = model.Num(math.RoundToEven(*p))
	}

	seen := make(map[string]struct{}, len(t.CourseCodes))
	for _, cc := range t.CourseCodes {
		code := NormalizeCourse(cc.CourseName)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		rec.Courses = append(rec.Courses, code)
	}
	slices.Sort(rec.Courses)

	tags := slices.Clone(t.TeacherRatingTags)
	slices.SortStableFunc(tags, func(a, b ratingTag) int { return b.TagCount - a.TagCount })
	for _, tag := range tags[:min(len(tags), maxTags)] {
		rec.Tags = append(rec.Tags, tag.TagName)
	}

	return key, rec
}

// NormalizeCourse removes separators and uppercases, e.g. "cs-1336" -> "CS1336".
func NormalizeCourse(name string) string {
	return strings.ToUpper(courseNoise.ReplaceAllString(name, ""))
}

func value(f *float64) model.Value {
	if f == nil {
		return model.NA()
	}
	return model.Num(*f)
}
