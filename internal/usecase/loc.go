package usecase

import (
	"context"
	"errors"

	"github.com/naka-gawa/profile-stats/internal/cache"
	"github.com/naka-gawa/profile-stats/internal/domain"
)

// refreshLoc brings the lines-of-code cache of user up to date and returns the totals.
// Only repositories whose commit count changed since the last run are crawled again.
// Progress made before a failure is saved so the next run can resume.
func (a *Aggregator) refreshLoc(ctx context.Context, user domain.User) (domain.LocStats, error) {
	repos, err := a.fetcher.FetchRepositories(ctx, user.Login, a.affiliations.Loc)
	if err != nil {
		return domain.LocStats{}, err
	}

	entries, err := a.store.Load(user.Login)
	if err != nil {
		return domain.LocStats{}, err
	}
	if len(entries) != len(repos) {
		a.logger.Info().Int("cached", len(entries)).Int("repositories", len(repos)).Msg("Repository count changed, rebuilding LOC cache")
		entries = make([]cache.Entry, len(repos))
	}

	for i, repo := range repos {
		hash := cache.HashRepo(repo.NameWithOwner)
		if entries[i].RepoHash != hash {
			entries[i] = cache.Entry{RepoHash: hash, TotalCommits: -1}
		}
		if entries[i].TotalCommits == repo.TotalCommits {
			continue
		}

		tally, err := a.fetcher.FetchCommitHistory(ctx, repo.NameWithOwner, user.ID)
		if err != nil {
			// The entry keeps its old commit total so it is retried next run.
			if saveErr := a.store.Save(user.Login, entries); saveErr != nil {
				return domain.LocStats{}, errors.Join(err, saveErr)
			}
			return domain.LocStats{}, err
		}
		a.logger.Debug().Str("repo", repo.NameWithOwner).Int("commits", tally.Commits).Msg("Recounted repository")
		entries[i] = cache.Entry{
			RepoHash:     hash,
			TotalCommits: repo.TotalCommits,
			OwnerCommits: tally.Commits,
			Additions:    tally.Additions,
			Deletions:    tally.Deletions,
		}
	}

	if err := a.store.Save(user.Login, entries); err != nil {
		return domain.LocStats{}, err
	}

	var loc domain.LocStats
	for _, e := range entries {
		loc.Additions += e.Additions
		loc.Deletions += e.Deletions
	}
	return loc, nil
}
