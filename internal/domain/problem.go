package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Rating bounds of the Codeforces difficulty scale
const (
	MinRating = 800
	MaxRating = 3500

	// DefaultPathMaxRating caps a path whose request omits max_rating
	DefaultPathMaxRating = 1600

	// DefaultReferenceRating stands in for an unrated reference problem
	DefaultReferenceRating = 1200
)

// Problem represents a Codeforces problem cached locally.
// Tags hold canonical slugs (see NormalizeTag).
type Problem struct {
	ID          int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	ContestID   int            `json:"contest_id" gorm:"not null;uniqueIndex:uq_problem_contest_index"`
	Index       string         `json:"problem_index" gorm:"column:problem_index;type:varchar(5);not null;uniqueIndex:uq_problem_contest_index"`
	Name        string         `json:"name" gorm:"type:varchar(500);not null"`
	Rating      *int           `json:"rating" gorm:"index"`
	SolvedCount int            `json:"solved_count" gorm:"not null;default:0;index"`
	Tags        pq.StringArray `json:"tags" gorm:"type:text[]"`
	ContestName string         `json:"contest_name"`
	URL         string         `json:"url" gorm:"not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Problem) TableName() string {
	return "problems"
}

// HasRating reports whether the problem carries a difficulty rating
func (p *Problem) HasRating() bool {
	return p.Rating != nil
}

// RatingOr returns the rating, or def when the problem is unrated
func (p *Problem) RatingOr(def int) int {
	if p.Rating == nil {
		return def
	}
	return *p.Rating
}

// Code returns the short contest+index identifier, e.g. "1920A"
func (p *Problem) Code() string {
	return fmt.Sprintf("%d%s", p.ContestID, p.Index)
}

// HasAnyTag reports whether the problem carries at least one of the given tag slugs
func (p *Problem) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range p.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// HasAllTags reports whether the problem carries every given tag slug
func (p *Problem) HasAllTags(tags []string) bool {
	for _, want := range tags {
		found := false
		for _, have := range p.Tags {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// NormalizeTag converts a topic name into its canonical slug:
// lower case, trimmed, inner spaces replaced by dashes.
func NormalizeTag(tag string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(tag)), " ", "-")
}

// NormalizeTags normalizes and de-duplicates a list of topic names,
// dropping empty entries. Input order is preserved.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		slug := NormalizeTag(t)
		if slug == "" {
			continue
		}
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, slug)
	}
	return out
}

// ProblemURL builds the public problemset URL for a Codeforces problem
func ProblemURL(contestID int, index string) string {
	return fmt.Sprintf("https://codeforces.com/problemset/problem/%d/%s", contestID, index)
}

// RatingWindow is an inclusive rating interval
type RatingWindow struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether rating lies inside the window
func (w RatingWindow) Contains(rating int) bool {
	return rating >= w.Min && rating <= w.Max
}

// SortBy selects the ordering of search results
type SortBy string

const (
	SortByRating           SortBy = "rating"
	SortBySolvedCount      SortBy = "solved_count"
	SortByEducationalScore SortBy = "educational_score"
)

// Valid reports whether s is a known ordering
func (s SortBy) Valid() bool {
	switch s {
	case SortByRating, SortBySolvedCount, SortByEducationalScore:
		return true
	default:
		return false
	}
}

// ProblemFilter represents filtering options for problem search
type ProblemFilter struct {
	Tags           []string
	MinRating      *int
	MaxRating      *int
	MinSolvedCount *int
	SearchText     string
	ExcludeIDs     []int64
	SortBy         SortBy
	Limit          int
	Offset         int
}

// ProblemRepository is the Corpus Accessor: a read interface over the
// problem corpus returning fully materialized problems with tags resolved.
type ProblemRepository interface {
	FetchCandidates(ctx context.Context, topics []string, minRating, maxRating int, excludeIDs []int64) ([]Problem, error)
	FetchProblemsByTagOverlap(ctx context.Context, tags []string, window RatingWindow, excludeIDs []int64, limit int) ([]Problem, error)
	FetchSolvedRatings(ctx context.Context, userID uuid.UUID, topic string) ([]int, error)
	FindByID(ctx context.Context, id int64) (*Problem, error)
	FindByCode(ctx context.Context, contestID int, index string) (*Problem, error)
	Search(ctx context.Context, filter ProblemFilter) ([]Problem, error)
	ListTags(ctx context.Context) ([]string, error)
	FindAllRated(ctx context.Context) ([]Problem, error)
	UpsertBatch(ctx context.Context, problems []Problem) error
	Count(ctx context.Context) (int64, error)
}

// ProblemSummary is the compact representation handed to the tool layer and API clients
type ProblemSummary struct {
	ID          int64    `json:"id"`
	ContestID   int      `json:"contest_id"`
	Index       string   `json:"problem_index"`
	Name        string   `json:"name"`
	Rating      *int     `json:"rating"`
	SolvedCount int      `json:"solved_count"`
	Tags        []string `json:"tags"`
	URL         string   `json:"url"`
	ContestName string   `json:"contest_name,omitempty"`
}

// ToSummary converts a Problem to a ProblemSummary
func (p *Problem) ToSummary() ProblemSummary {
	tags := []string(p.Tags)
	if tags == nil {
		tags = []string{}
	}
	return ProblemSummary{
		ID:          p.ID,
		ContestID:   p.ContestID,
		Index:       p.Index,
		Name:        p.Name,
		Rating:      p.Rating,
		SolvedCount: p.SolvedCount,
		Tags:        tags,
		URL:         p.URL,
		ContestName: p.ContestName,
	}
}

// Summaries converts a slice of problems to summaries
func Summaries(problems []Problem) []ProblemSummary {
	out := make([]ProblemSummary, len(problems))
	for i := range problems {
		out[i] = problems[i].ToSummary()
	}
	return out
}

// ProblemStats represents statistics about the problem corpus
type ProblemStats struct {
	Total  int            `json:"total"`
	Rated  int            `json:"rated"`
	ByBand map[int]int    `json:"by_band"`
	ByTag  map[string]int `json:"by_tag"`
}

// SimilarProblem is a problem ranked against a reference problem
type SimilarProblem struct {
	ProblemSummary
	Similarity float64 `json:"similarity"`
}

// SearchQuery is a problem search as issued by API clients and the tool layer
type SearchQuery struct {
	Tags            []string   `json:"tags,omitempty"`
	MinRating       *int       `json:"min_rating,omitempty"`
	MaxRating       *int       `json:"max_rating,omitempty"`
	ExcludeSolvedBy *uuid.UUID `json:"exclude_solved_by,omitempty"`
	MinSolvedCount  *int       `json:"min_solved_count,omitempty"`
	SearchText      string     `json:"search_text,omitempty"`
	SortBy          SortBy     `json:"sort_by,omitempty"`
	Limit           int        `json:"limit,omitempty"`
	Offset          int        `json:"offset,omitempty"`
}
