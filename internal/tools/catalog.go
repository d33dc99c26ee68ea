package tools

import (
	"context"

	"github.com/google/uuid"

	"github.com/cp-path-builder/backend/internal/domain"
)

const (
	defaultToolLimit    = 10
	defaultHistoryLimit = 20
)

type catalogEntry struct {
	name        string
	description string
	schema      string
	handler     handlerFunc
}

var catalog = []catalogEntry{
	{
		name: "search_problems",
		description: "Search Codeforces problems by topic tags, rating range and name. " +
			"Problems the user already solved are excluded unless exclude_solved is false. " +
			"Results are ordered for learning value by default.",
		schema: `{
  "type": "object",
  "properties": {
    "tags": {"type": "array", "items": {"type": "string", "minLength": 1}, "description": "Topic tags the problem must all carry, e.g. [\"dp\", \"greedy\"]"},
    "min_rating": {"type": "integer", "minimum": 800, "maximum": 3500, "description": "Minimum problem rating"},
    "max_rating": {"type": "integer", "minimum": 800, "maximum": 3500, "description": "Maximum problem rating"},
    "exclude_solved": {"type": "boolean", "description": "Skip problems the user has solved (default true)"},
    "min_solved_count": {"type": "integer", "minimum": 0, "description": "Minimum number of people who solved the problem"},
    "search_query": {"type": "string", "description": "Case-insensitive text search on the problem name"},
    "sort_by": {"type": "string", "enum": ["rating", "solved_count", "educational_score"], "description": "Result ordering (default educational_score)"},
    "limit": {"type": "integer", "minimum": 1, "maximum": 20, "description": "Max number of results (default 10)"}
  },
  "additionalProperties": false
}`,
		handler: searchProblems,
	},
	{
		name: "get_problem_details",
		description: "Get details of a single problem, looked up by internal id " +
			"or by contest id and problem index.",
		schema: `{
  "type": "object",
  "properties": {
    "problem_id": {"type": "integer", "minimum": 1, "description": "Internal problem id"},
    "contest_id": {"type": "integer", "minimum": 1, "description": "Codeforces contest id, e.g. 1920"},
    "problem_index": {"type": "string", "minLength": 1, "maxLength": 5, "description": "Problem index within the contest, e.g. \"C1\""}
  },
  "anyOf": [
    {"required": ["problem_id"]},
    {"required": ["contest_id", "problem_index"]}
  ],
  "additionalProperties": false
}`,
		handler: getProblemDetails,
	},
	{
		name: "find_similar_problems",
		description: "Find problems similar to a reference problem by tag overlap and rating proximity. " +
			"Useful after the user solves or struggles with a problem.",
		schema: `{
  "type": "object",
  "properties": {
    "problem_id": {"type": "integer", "minimum": 1, "description": "Internal id of the reference problem"},
    "exclude_solved": {"type": "boolean", "description": "Skip problems the user has solved (default true)"},
    "limit": {"type": "integer", "minimum": 1, "maximum": 20, "description": "Max number of results (default 10)"}
  },
  "required": ["problem_id"],
  "additionalProperties": false
}`,
		handler: findSimilarProblems,
	},
	{
		name:        "get_user_stats",
		description: "Get the user's solving statistics: totals, time spent, paths and rating distribution of solved problems.",
		schema:      `{"type": "object", "properties": {}, "additionalProperties": false}`,
		handler:     getUserStats,
	},
	{
		name:        "get_topic_strengths",
		description: "Get per-topic skill estimates for the user, weakest topic first.",
		schema:      `{"type": "object", "properties": {}, "additionalProperties": false}`,
		handler:     getTopicStrengths,
	},
	{
		name:        "get_solved_history",
		description: "Get the user's most recently solved problems, optionally under one topic tag.",
		schema: `{
  "type": "object",
  "properties": {
    "limit": {"type": "integer", "minimum": 1, "maximum": 50, "description": "Max number of results (default 20)"},
    "tag_filter": {"type": "string", "description": "Only problems carrying this tag, e.g. \"dp\""}
  },
  "additionalProperties": false
}`,
		handler: getSolvedHistory,
	},
	{
		name:        "get_available_tags",
		description: "List every topic tag in the problem database. Use it to check tag names before searching.",
		schema:      `{"type": "object", "properties": {}, "additionalProperties": false}`,
		handler:     getAvailableTags,
	},
}

type searchArgs struct {
	Tags           []string `json:"tags"`
	MinRating      *int     `json:"min_rating"`
	MaxRating      *int     `json:"max_rating"`
	ExcludeSolved  *bool    `json:"exclude_solved"`
	MinSolvedCount *int     `json:"min_solved_count"`
	SearchQuery    string   `json:"search_query"`
	SortBy         string   `json:"sort_by"`
	Limit          int      `json:"limit"`
}

func searchProblems(ctx context.Context, r Recommender, call Call) (any, error) {
	var args searchArgs
	if err := decode(call.Args, &args); err != nil {
		return nil, err
	}
	if args.Limit == 0 {
		args.Limit = defaultToolLimit
	}

	problems, err := r.Search(ctx, domain.SearchQuery{
		Tags:            args.Tags,
		MinRating:       args.MinRating,
		MaxRating:       args.MaxRating,
		ExcludeSolvedBy: excludeFor(call.UserID, args.ExcludeSolved),
		MinSolvedCount:  args.MinSolvedCount,
		SearchText:      args.SearchQuery,
		SortBy:          domain.SortBy(args.SortBy),
		Limit:           args.Limit,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"problems": problems, "count": len(problems)}, nil
}

type problemDetailsArgs struct {
	ProblemID    int64  `json:"problem_id"`
	ContestID    int    `json:"contest_id"`
	ProblemIndex string `json:"problem_index"`
}

func getProblemDetails(ctx context.Context, r Recommender, call Call) (any, error) {
	var args problemDetailsArgs
	if err := decode(call.Args, &args); err != nil {
		return nil, err
	}

	var (
		problem *domain.Problem
		err     error
	)
	if args.ProblemID != 0 {
		problem, err = r.GetProblem(ctx, args.ProblemID)
	} else {
		problem, err = r.GetProblemByCode(ctx, args.ContestID, args.ProblemIndex)
	}
	if err != nil {
		return nil, err
	}
	return problem.ToSummary(), nil
}

type similarArgs struct {
	ProblemID     int64 `json:"problem_id"`
	ExcludeSolved *bool `json:"exclude_solved"`
	Limit         int   `json:"limit"`
}

func findSimilarProblems(ctx context.Context, r Recommender, call Call) (any, error) {
	var args similarArgs
	if err := decode(call.Args, &args); err != nil {
		return nil, err
	}
	if args.Limit == 0 {
		args.Limit = defaultToolLimit
	}

	similar, err := r.FindSimilar(ctx, args.ProblemID, excludeFor(call.UserID, args.ExcludeSolved), args.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"problems": similar, "count": len(similar)}, nil
}

func getUserStats(ctx context.Context, r Recommender, call Call) (any, error) {
	return r.UserStats(ctx, call.UserID)
}

func getTopicStrengths(ctx context.Context, r Recommender, call Call) (any, error) {
	strengths, err := r.TopicStrengths(ctx, call.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"topics": strengths}, nil
}

type historyArgs struct {
	Limit     int    `json:"limit"`
	TagFilter string `json:"tag_filter"`
}

func getSolvedHistory(ctx context.Context, r Recommender, call Call) (any, error) {
	var args historyArgs
	if err := decode(call.Args, &args); err != nil {
		return nil, err
	}
	if args.Limit == 0 {
		args.Limit = defaultHistoryLimit
	}

	history, err := r.SolvedHistory(ctx, call.UserID, args.Limit, args.TagFilter)
	if err != nil {
		return nil, err
	}
	return map[string]any{"solved": history, "count": len(history)}, nil
}

func getAvailableTags(ctx context.Context, r Recommender, _ Call) (any, error) {
	tags, err := r.AvailableTags(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tags": tags}, nil
}

// excludeFor resolves the exclude_solved flag, which defaults to true
func excludeFor(userID uuid.UUID, flag *bool) *uuid.UUID {
	if userID == uuid.Nil || (flag != nil && !*flag) {
		return nil
	}
	return &userID
}
