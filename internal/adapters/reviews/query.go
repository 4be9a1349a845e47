package reviews

// searchQuery pages through every teacher of a school.
const searchQuery = `query TeacherSearchPaginationQuery($count: Int!, $cursor: String, $query: TeacherSearchQuery!) {
  search: newSearch {
    teachers(query: $query, first: $count, after: $cursor) {
      edges {
        cursor
        node {
          id
          legacyId
          firstName
          lastName
          department
          avgRating
          avgDifficulty
          numRatings
          wouldTakeAgainPercent
          courseCodes { courseName courseCount }
          teacherRatingTags { tagName tagCount }
        }
      }
      pageInfo { hasNextPage endCursor }
      resultCount
    }
  }
}`

type searchRequest struct {
	Query     string          `json:"query"`
	Variables searchVariables `json:"variables"`
}

type searchVariables struct {
	Count  int         `json:"count"`
	Cursor string      `json:"cursor"`
	Query  searchInput `json:"query"`
}

type searchInput struct {
	Text     string `json:"text"`
	SchoolID string `json:"schoolID"`
	Fallback bool   `json:"fallback"`
}

type searchResponse struct {
	Data *struct {
		Search struct {
			Teachers *struct {
				Edges []struct {
					Cursor string  `json:"cursor"`
					Node   teacher `json:"node"`
				} `json:"edges"`
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				ResultCount int `json:"resultCount"`
			} `json:"teachers"`
		} `json:"search"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type teacher struct {
	ID                    string   `json:"id"`
	LegacyID              int64    `json:"legacyId"`
	FirstName             string   `json:"firstName"`
	LastName              string   `json:"lastName"`
	Department            string   `json:"department"`
	AvgRating             *float64 `json:"avgRating"`
	AvgDifficulty         *float64 `json:"avgDifficulty"`
	NumRatings            *float64 `json:"numRatings"`
	WouldTakeAgainPercent *float64 `json:"wouldTakeAgainPercent"`
	CourseCodes           []courseCode `json:"courseCodes"`
	TeacherRatingTags     []ratingTag  `json:"teacherRatingTags"`
}

type courseCode struct {
	CourseName  string `json:"courseName"`
	CourseCount int    `json:"courseCount"`
}

type ratingTag struct {
	TagName  string `json:"tagName"`
	TagCount int    `json:"tagCount"`
}
