// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/profile-stats/internal/cache"
	"github.com/naka-gawa/profile-stats/internal/config"
	"github.com/naka-gawa/profile-stats/internal/gateway"
	"github.com/naka-gawa/profile-stats/internal/logger"
	"github.com/naka-gawa/profile-stats/internal/metrics"
	"github.com/naka-gawa/profile-stats/internal/render"
	"github.com/naka-gawa/profile-stats/internal/usecase"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Fetches GitHub profile stats and writes them into SVG templates",
	Long: `Fetches repository, star, follower, commit and lines-of-code counts for the
account named by USER_NAME and writes them into the placeholder elements of
the given SVG templates. ACCESS_TOKEN must hold a GitHub token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		verbose, _ := cmd.InheritedFlags().GetBool("verbose")
		svgs, _ := cmd.Flags().GetStringSlice("svg")
		animated, _ := cmd.Flags().GetStringSlice("animated")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if len(svgs)+len(animated) == 0 && !dryRun {
			return errors.New("at least one --svg or --animated template is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		log := logger.New(level, cfg.Log.Format, os.Stderr)

		// Inject dependencies and run the main business logic.
		counter := metrics.NewQueryCounter()
		timings := &metrics.Timings{}
		githubGateway, err := gateway.NewGitHubGateway(gateway.Options{
			Endpoint: cfg.GitHub.Endpoint,
			Token:    cfg.GitHub.Token,
			Timeout:  cfg.GitHub.Timeout,
		}, counter, log)
		if err != nil {
			return fmt.Errorf("failed to create GitHub gateway: %w", err)
		}

		fs := afero.NewOsFs()
		aggregator := usecase.NewAggregator(githubGateway, cache.New(fs, cfg.Cache.Dir), timings, usecase.Affiliations{
			Repos: cfg.GitHub.RepoAffiliations,
			Loc:   cfg.GitHub.LocAffiliations,
		}, log)

		stats, err := aggregator.Aggregate(ctx, cfg.GitHub.User)
		if err != nil {
			return fmt.Errorf("failed to aggregate stats: %w", err)
		}

		if dryRun {
			jsonData, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal results to JSON: %w", err)
			}
			fmt.Println(string(jsonData))
		} else {
			now := time.Now()
			if err := writeTemplates(fs, svgs, usecase.NewCard(*stats, false, now), log); err != nil {
				return err
			}
			if err := writeTemplates(fs, animated, usecase.NewCard(*stats, true, now), log); err != nil {
				return err
			}
		}

		reportDiagnostics(ctx, log, githubGateway, counter, timings)
		return nil
	},
}

func writeTemplates(fs afero.Fs, paths []string, card render.Card, log zerolog.Logger) error {
	for _, path := range paths {
		if err := render.Overwrite(fs, path, card); err != nil {
			return err
		}
		log.Info().Str("template", path).Msg("Template updated")
	}
	return nil
}

// reportDiagnostics logs how many queries were issued, how long the steps took
// and how much of the GraphQL budget is left. Failure to read the budget is not fatal.
func reportDiagnostics(ctx context.Context, log zerolog.Logger, fetcher gateway.Fetcher, counter *metrics.QueryCounter, timings *metrics.Timings) {
	for _, name := range counter.Names() {
		log.Info().Str("query", name).Int("calls", counter.Count(name)).Msg("GraphQL calls")
	}
	summary := timings.Summary()
	log.Info().
		Int("total_calls", counter.Total()).
		Int("steps", summary.Count).
		Float64("total_seconds", summary.Sum).
		Float64("slowest_seconds", summary.Max).
		Msg("Run complete")

	rl, err := fetcher.FetchRateLimit(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Could not read GraphQL rate limit")
		return
	}
	log.Info().
		Int("remaining", rl.Remaining).
		Int("limit", rl.Limit).
		Time("reset_at", rl.ResetAt).
		Msg("GraphQL budget")
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringSlice("svg", nil, "SVG template to update in place (repeatable)")
	renderCmd.Flags().StringSlice("animated", nil, "SVG template whose progress element is updated too (repeatable)")
	renderCmd.Flags().Bool("dry-run", false, "Print the stats as JSON instead of writing templates")
}
