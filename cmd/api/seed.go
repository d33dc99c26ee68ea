package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cp-path-builder/backend/internal/data"
	"github.com/cp-path-builder/backend/internal/repository"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the Codeforces problemset into the corpus",
	Long: `Loads a problemset.problems payload and upserts every problem.
Use --file for a saved API response, --fetch to download it from Codeforces,
or neither to load the bundled sample into an empty database.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().String("file", "", "path to a saved problemset.problems response")
	seedCmd.Flags().Bool("fetch", false, "download the problemset from the Codeforces API")
	seedCmd.Flags().String("url", data.DefaultProblemsetURL, "problemset endpoint used with --fetch")
	seedCmd.MarkFlagsMutuallyExclusive("file", "fetch")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	file, _ := cmd.Flags().GetString("file")
	fetch, _ := cmd.Flags().GetBool("fetch")
	url, _ := cmd.Flags().GetString("url")

	rt, err := loadApp()
	if err != nil {
		return err
	}
	defer rt.close()

	database, err := rt.openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.AutoMigrate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	cache := rt.openCache(ctx)
	if cache != nil {
		defer cache.Close()
	}
	seeder := rt.newSeeder(repository.NewProblemRepository(database.DB), cache)

	var n int
	switch {
	case file != "":
		n, err = seeder.SeedFromFile(ctx, file)
	case fetch:
		n, err = seeder.SeedFromURL(ctx, url)
	default:
		n, err = seeder.SeedSample(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d problems\n", n)
	return nil
}
