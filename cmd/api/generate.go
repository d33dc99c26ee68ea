package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cp-path-builder/backend/internal/curriculum"
	"github.com/cp-path-builder/backend/internal/domain"
	"github.com/cp-path-builder/backend/internal/infrastructure"
	"github.com/cp-path-builder/backend/internal/repository"
)

var generateCmd = newGenerateCmd()

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "generate",
		Short:   "Print a generated path from the database corpus",
		Example: `  cpath generate --topics dp,greedy --min 1200 --max 1600 --mode learning --count 20 --seed 7`,
		RunE:    runGenerate,
	}

	f := cmd.Flags()
	f.StringSlice("topics", nil, "topics to practice (comma separated)")
	f.Int("min", 0, "minimum rating (default path.min_rating)")
	f.Int("max", 0, "maximum rating (default 1600 within path.max_rating)")
	f.String("mode", string(domain.PathModeLearning), "learning, revision or challenge")
	f.Int("count", 0, "number of problems (default path.default_size)")
	f.Int64("seed", 0, "random seed (default path.random_seed); 0 picks one from the clock")
	_ = cmd.MarkFlagRequired("topics")
	return cmd
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	rt, err := loadApp()
	if err != nil {
		return err
	}
	defer rt.close()

	cfg, seed, err := generateConfig(cmd, &rt.config.Path)
	if err != nil {
		return err
	}

	database, err := rt.openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	candidates, err := repository.NewProblemRepository(database.DB).
		FetchCandidates(cmd.Context(), cfg.Topics, cfg.MinRating, cfg.MaxRating, nil)
	if err != nil {
		return err
	}

	result, err := curriculum.Generate(cfg, candidates, curriculum.NewSource(seed))
	if err != nil {
		return err
	}

	return printPath(cmd.OutOrStdout(), result)
}

// generateConfig builds the engine config and seed from the command flags.
// Flags left unset fall back to the configured path settings, the same
// defaults the API applies to a create request.
func generateConfig(cmd *cobra.Command, settings *infrastructure.PathConfig) (curriculum.PathConfig, int64, error) {
	f := cmd.Flags()
	topics, _ := f.GetStringSlice("topics")
	mode, _ := f.GetString("mode")

	req := domain.CreatePathRequest{Topics: topics, Mode: domain.PathMode(mode)}
	req.MinRating, _ = f.GetInt("min")
	req.MaxRating, _ = f.GetInt("max")
	req.ProblemCount, _ = f.GetInt("count")

	lo, hi := domain.RatingBounds(settings.MinRating, settings.MaxRating)
	req.ApplyDefaults(settings.DefaultSize, lo, hi)
	if settings.MaxSize > 0 && req.ProblemCount > settings.MaxSize {
		return curriculum.PathConfig{}, 0, domain.NewDomainError(domain.ErrInvalidPathConfig,
			fmt.Sprintf("count must not exceed %d", settings.MaxSize))
	}
	if err := req.CheckRatingWindow(lo, hi); err != nil {
		return curriculum.PathConfig{}, 0, err
	}

	seed := settings.RandomSeed
	if f.Changed("seed") {
		seed, _ = f.GetInt64("seed")
	}

	cfg := curriculum.PathConfig{
		Topics:       domain.NormalizeTags(req.Topics),
		MinRating:    req.MinRating,
		MaxRating:    req.MaxRating,
		Mode:         req.Mode,
		ProblemCount: req.ProblemCount,
		RatingStep:   settings.RatingStep,
	}
	if err := cfg.Validate(); err != nil {
		return curriculum.PathConfig{}, 0, err
	}
	return cfg, seed, nil
}

func printPath(out io.Writer, result *curriculum.Result) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tCODE\tRATING\tSCORE\tNAME\tTAGS")
	for i := range result.Problems {
		p := &result.Problems[i]
		fmt.Fprintf(w, "%d\t%s\t%d\t%.1f\t%s\t%s\n",
			i+1, p.Code(), p.RatingOr(0), curriculum.EducationalScore(p), p.Name, strings.Join(p.Tags, ","))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	bands := make([]string, 0, len(result.Quotas))
	for _, key := range result.Quotas.Keys() {
		bands = append(bands, strconv.Itoa(key)+":"+strconv.Itoa(result.Quotas[key]))
	}
	_, err := fmt.Fprintf(out, "\n%d problems from %d candidates, quotas %s\n",
		len(result.Problems), result.Candidates, strings.Join(bands, " "))
	return err
}
