// Package data loads the Codeforces problemset into the problem corpus.
package data

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/cp-path-builder/backend/internal/domain"
)

// DefaultProblemsetURL is the Codeforces API endpoint listing every problem
const DefaultProblemsetURL = "https://codeforces.com/api/problemset.problems"

//go:embed sample_problemset.json
var sampleProblemset []byte

// cfProblem is one entry of problemset.problems
type cfProblem struct {
	ContestID int      `json:"contestId"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Rating    *int     `json:"rating"`
	Tags      []string `json:"tags"`
}

type cfStatistic struct {
	ContestID   int    `json:"contestId"`
	Index       string `json:"index"`
	SolvedCount int    `json:"solvedCount"`
}

type cfProblemset struct {
	Problems          []cfProblem   `json:"problems"`
	ProblemStatistics []cfStatistic `json:"problemStatistics"`
}

// cfEnvelope accepts both the raw API response and a bare result object
type cfEnvelope struct {
	Status  string        `json:"status"`
	Comment string        `json:"comment"`
	Result  *cfProblemset `json:"result"`
	cfProblemset
}

// ProblemStore is the persistence the seeder writes to
type ProblemStore interface {
	UpsertBatch(ctx context.Context, problems []domain.Problem) error
	Count(ctx context.Context) (int64, error)
}

// CacheInvalidator drops cached entries under a key prefix
type CacheInvalidator interface {
	Invalidate(ctx context.Context, prefix string) error
}

// Seeder handles corpus loading
type Seeder struct {
	problems    ProblemStore
	client      *http.Client
	invalidator CacheInvalidator
	prefixes    []string
	logger      *zap.Logger
}

// NewSeeder creates a new corpus seeder
func NewSeeder(problems ProblemStore, logger *zap.Logger) *Seeder {
	return &Seeder{
		problems: problems,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

// InvalidateOnSeed makes every successful seed drop the cached entries
// under prefixes, so readers never see results computed from the old corpus.
func (s *Seeder) InvalidateOnSeed(invalidator CacheInvalidator, prefixes ...string) *Seeder {
	s.invalidator = invalidator
	s.prefixes = prefixes
	return s
}

// ParseProblemset decodes a problemset.problems payload into problems.
// Tags are normalized, solve counts joined from problemStatistics and
// duplicate contest/index pairs dropped.
func ParseProblemset(r io.Reader) ([]domain.Problem, error) {
	var env cfEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode problemset: %w", err)
	}
	if env.Status != "" && env.Status != "OK" {
		return nil, fmt.Errorf("problemset request failed: %s", env.Comment)
	}

	set := env.cfProblemset
	if env.Result != nil {
		set = *env.Result
	}

	solved := make(map[string]int, len(set.ProblemStatistics))
	for _, st := range set.ProblemStatistics {
		solved[problemKey(st.ContestID, st.Index)] = st.SolvedCount
	}

	problems := make([]domain.Problem, 0, len(set.Problems))
	seen := make(map[string]struct{}, len(set.Problems))
	for _, p := range set.Problems {
		index := strings.ToUpper(strings.TrimSpace(p.Index))
		if p.ContestID <= 0 || index == "" || p.Name == "" {
			continue
		}
		key := problemKey(p.ContestID, index)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		problems = append(problems, domain.Problem{
			ContestID:   p.ContestID,
			Index:       index,
			Name:        p.Name,
			Rating:      p.Rating,
			SolvedCount: solved[key],
			Tags:        domain.NormalizeTags(p.Tags),
			URL:         domain.ProblemURL(p.ContestID, index),
		})
	}

	return problems, nil
}

func problemKey(contestID int, index string) string {
	return fmt.Sprintf("%d-%s", contestID, strings.ToUpper(index))
}

// SeedFromReader parses and upserts a problemset payload
func (s *Seeder) SeedFromReader(ctx context.Context, r io.Reader) (int, error) {
	problems, err := ParseProblemset(r)
	if err != nil {
		return 0, err
	}
	if err := s.problems.UpsertBatch(ctx, problems); err != nil {
		return 0, fmt.Errorf("failed to store problems: %w", err)
	}

	s.logger.Info("Problems seeded",
		zap.Int("count", len(problems)),
	)
	s.invalidateCache(ctx)
	return len(problems), nil
}

// invalidateCache is best effort; stale entries still expire on their TTL
func (s *Seeder) invalidateCache(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	for _, prefix := range s.prefixes {
		if err := s.invalidator.Invalidate(ctx, prefix); err != nil {
			s.logger.Warn("Cache invalidation failed",
				zap.String("prefix", prefix),
				zap.Error(err),
			)
		}
	}
}

// SeedFromFile loads a problemset payload saved to disk
func (s *Seeder) SeedFromFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open problemset file: %w", err)
	}
	defer f.Close()

	s.logger.Info("Seeding problems from file", zap.String("path", path))
	return s.SeedFromReader(ctx, f)
}

// SeedFromURL downloads the problemset from the Codeforces API
func (s *Seeder) SeedFromURL(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "cp-path-builder/1.0")

	s.logger.Info("Fetching problemset", zap.String("url", url))
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch problemset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed to fetch problemset: HTTP %d", resp.StatusCode)
	}
	return s.SeedFromReader(ctx, resp.Body)
}

// SeedSample loads the embedded sample corpus into an empty database.
// It does nothing when problems already exist.
func (s *Seeder) SeedSample(ctx context.Context) (int, error) {
	count, err := s.problems.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("Problems already seeded, skipping",
			zap.Int64("count", count),
		)
		return 0, nil
	}
	return s.SeedFromReader(ctx, bytes.NewReader(sampleProblemset))
}
