// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/profile-stats/internal/cache"
	"github.com/naka-gawa/profile-stats/internal/domain"
	"github.com/naka-gawa/profile-stats/internal/gateway"
	"github.com/naka-gawa/profile-stats/internal/metrics"
)

// Affiliations selects which repositories are counted.
// Repos applies to the repository and star counts, Loc to the lines-of-code crawl.
type Affiliations struct {
	Repos []string
	Loc   []string
}

// Aggregator is the use case for collecting profile stats.
// It orchestrates the fetching and combining of data.
type Aggregator struct {
	fetcher      gateway.Fetcher
	store        *cache.Store
	timings      *metrics.Timings
	affiliations Affiliations
	logger       zerolog.Logger
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(fetcher gateway.Fetcher, store *cache.Store, timings *metrics.Timings, affiliations Affiliations, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		fetcher:      fetcher,
		store:        store,
		timings:      timings,
		affiliations: affiliations,
		logger:       logger,
	}
}

// measure runs fn through metrics.PerfCounter and records the elapsed time under name.
func measure[T any](a *Aggregator, name string, fn func() (T, error)) (T, error) {
	result, elapsed, err := metrics.PerfCounter(fn)
	if err != nil {
		return result, err
	}
	a.timings.Record(name, elapsed)
	a.logger.Info().Str("step", name).Float64("ms", elapsed*1000).Msg("Step completed")
	return result, nil
}

// Aggregate performs the main business logic.
// The account lookup runs first because the lines-of-code crawl attributes
// commits by the account's node id; the remaining statistics are fetched concurrently.
func (a *Aggregator) Aggregate(ctx context.Context, login string) (*domain.ProfileStats, error) {
	a.logger.Debug().Str("login", login).Msg("Usecase: Starting data aggregation...")

	user, err := measure(a, "account data", func() (*domain.User, error) {
		return a.fetcher.FetchUser(ctx, login)
	})
	if err != nil {
		return nil, err
	}

	stats := &domain.ProfileStats{User: *user}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		var err error
		stats.Followers, err = measure(a, "followers", func() (int, error) {
			return a.fetcher.FetchFollowers(egCtx, login)
		})
		return err
	})

	eg.Go(func() error {
		var err error
		stats.Repos, err = measure(a, "repositories", func() (int, error) {
			return a.fetcher.FetchRepoCount(egCtx, login, a.affiliations.Repos)
		})
		return err
	})

	eg.Go(func() error {
		var err error
		stats.Stars, err = measure(a, "stars", func() (int, error) {
			edges, err := a.fetcher.FetchStarEdges(egCtx, login, a.affiliations.Repos)
			if err != nil {
				return 0, err
			}
			return StarsCounter(edges), nil
		})
		return err
	})

	eg.Go(func() error {
		var err error
		stats.Loc, err = measure(a, "lines of code", func() (domain.LocStats, error) {
			return a.refreshLoc(egCtx, *user)
		})
		return err
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	a.logger.Debug().Msg("Usecase: All data fetched successfully.")

	stats.Commits, err = measure(a, "commits", func() (int, error) {
		return a.countCommits(login)
	})
	if err != nil {
		return nil, err
	}

	a.logger.Debug().Msg("Usecase: Aggregation complete.")
	return stats, nil
}

func (a *Aggregator) countCommits(login string) (int, error) {
	f, err := a.store.Open(login)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := CommitCounter(f, cache.DataStartLine)
	if err != nil {
		return 0, fmt.Errorf("failed to count commits: %w", err)
	}
	return n, nil
}
