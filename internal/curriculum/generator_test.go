package curriculum

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cp-path-builder/backend/internal/domain"
)

var corpusTags = []string{"dp", "greedy", "math", "graphs", "strings", "implementation"}

func buildCorpus(seed int64, n int) []domain.Problem {
	rng := rand.New(rand.NewSource(seed))
	corpus := make([]domain.Problem, n)
	for i := range corpus {
		rating := 800 + rng.Intn(13)*100
		tagCount := rng.Intn(4)
		tags := make([]string, 0, tagCount)
		for _, idx := range rng.Perm(len(corpusTags))[:tagCount] {
			tags = append(tags, corpusTags[idx])
		}
		corpus[i] = problem(int64(i+1), rating, rng.Intn(20000), tags...)
	}
	return corpus
}

func baseConfig() PathConfig {
	return PathConfig{
		Topics:       []string{"DP", "greedy"},
		MinRating:    1000,
		MaxRating:    1600,
		Mode:         domain.PathModeLearning,
		ProblemCount: 30,
	}
}

func TestPathConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PathConfig)
	}{
		{"no topics", func(c *PathConfig) { c.Topics = nil }},
		{"blank topic", func(c *PathConfig) { c.Topics = []string{""} }},
		{"min below scale", func(c *PathConfig) { c.MinRating = 700 }},
		{"max above scale", func(c *PathConfig) { c.MaxRating = 3600 }},
		{"min above max", func(c *PathConfig) { c.MinRating, c.MaxRating = 1800, 1200 }},
		{"unknown mode", func(c *PathConfig) { c.Mode = "speedrun" }},
		{"zero count", func(c *PathConfig) { c.ProblemCount = 0 }},
		{"negative step", func(c *PathConfig) { c.RatingStep = -100 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidPathConfig)
		})
	}

	assert.NoError(t, baseConfig().Validate())
}

func TestGenerate_InvalidConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.Topics = nil
	_, err := Generate(cfg, buildCorpus(1, 50), NewSource(1))
	assert.ErrorIs(t, err, domain.ErrInvalidPathConfig)
}

func TestGenerate_NoCandidates(t *testing.T) {
	cfg := baseConfig()
	cfg.Topics = []string{"geometry"}
	_, err := Generate(cfg, buildCorpus(1, 200), NewSource(1))
	assert.ErrorIs(t, err, domain.ErrNoMatchingProblems)

	_, err = Generate(baseConfig(), nil, NewSource(1))
	assert.ErrorIs(t, err, domain.ErrNoMatchingProblems)
}

func TestGenerate_PathInvariants(t *testing.T) {
	corpus := buildCorpus(42, 600)
	topics := []string{"dp", "greedy"}

	for seed := int64(1); seed <= 25; seed++ {
		for _, mode := range []domain.PathMode{domain.PathModeLearning, domain.PathModeRevision, domain.PathModeChallenge} {
			cfg := baseConfig()
			cfg.Mode = mode
			cfg.ExcludeIDs = []int64{1, 2, 3, 4, 5, 10, 20, 30, 40, 50}

			res, err := Generate(cfg, corpus, NewSource(seed))
			require.NoError(t, err)

			eligible := filterCandidates(cfg, corpus)
			assert.Len(t, res.Problems, min(cfg.ProblemCount, len(eligible)))
			assert.Equal(t, len(eligible), res.Candidates)

			seen := map[int64]bool{}
			for i, p := range res.Problems {
				require.NotNil(t, p.Rating)
				assert.GreaterOrEqual(t, *p.Rating, cfg.MinRating)
				assert.LessOrEqual(t, *p.Rating, cfg.MaxRating)
				assert.True(t, p.HasAnyTag(topics), "problem %d lacks a requested topic", p.ID)
				assert.NotContains(t, cfg.ExcludeIDs, p.ID)
				assert.False(t, seen[p.ID], "duplicate id %d", p.ID)
				seen[p.ID] = true
				if i > 0 {
					assert.LessOrEqual(t, *res.Problems[i-1].Rating, *p.Rating)
				}
			}
		}
	}
}

func TestGenerate_ExcludingPreviousRunNeverRepeats(t *testing.T) {
	corpus := buildCorpus(7, 800)
	cfg := baseConfig()

	first, err := Generate(cfg, corpus, NewSource(11))
	require.NoError(t, err)

	cfg.ExcludeIDs = first.IDs()
	second, err := Generate(cfg, corpus, NewSource(11))
	require.NoError(t, err)

	for _, id := range second.IDs() {
		assert.False(t, slices.Contains(first.IDs(), id), "id %d repeated", id)
	}
}

func TestGenerate_ShortCorpus(t *testing.T) {
	corpus := []domain.Problem{
		problem(1, 1100, 100, "dp"),
		problem(2, 1300, 100, "greedy", "math"),
		problem(3, 1500, 100, "dp"),
		problem(4, 1500, 100, "math"),
		problem(5, 2000, 100, "dp"),
		problem(6, 0, 100, "dp"),
	}

	res, err := Generate(baseConfig(), corpus, NewSource(5))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, res.IDs())
}

func TestGenerate_DuplicateCandidates(t *testing.T) {
	p := problem(1, 1200, 100, "dp")
	res, err := Generate(baseConfig(), []domain.Problem{p, p, p}, NewSource(5))
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, res.IDs())
}

func TestGenerate_SameSeedSamePath(t *testing.T) {
	corpus := buildCorpus(3, 500)
	a, err := Generate(baseConfig(), corpus, NewSource(77))
	require.NoError(t, err)
	b, err := Generate(baseConfig(), corpus, NewSource(77))
	require.NoError(t, err)
	assert.Equal(t, a.IDs(), b.IDs())
}

func TestGenerate_ModeShapesDifficulty(t *testing.T) {
	corpus := buildCorpus(9, 2000)

	mean := func(mode domain.PathMode) float64 {
		cfg := baseConfig()
		cfg.Mode = mode
		res, err := Generate(cfg, corpus, NewSource(1))
		require.NoError(t, err)
		sum := 0
		for _, p := range res.Problems {
			sum += *p.Rating
		}
		return float64(sum) / float64(len(res.Problems))
	}

	assert.Less(t, mean(domain.PathModeLearning), mean(domain.PathModeRevision))
	assert.Less(t, mean(domain.PathModeRevision), mean(domain.PathModeChallenge))
}
