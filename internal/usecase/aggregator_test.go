package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/profile-stats/internal/cache"
	"github.com/naka-gawa/profile-stats/internal/domain"
	"github.com/naka-gawa/profile-stats/internal/metrics"
)

// mockFetcher is a mock implementation of the gateway.Fetcher interface.
// It allows us to simulate the behavior of the GitHub gateway without making real API calls.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchUser(ctx context.Context, login string) (*domain.User, error) {
	args := m.Called(ctx, login)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockFetcher) FetchFollowers(ctx context.Context, login string) (int, error) {
	args := m.Called(ctx, login)
	return args.Int(0), args.Error(1)
}

func (m *mockFetcher) FetchRepoCount(ctx context.Context, login string, affiliations []string) (int, error) {
	args := m.Called(ctx, login, affiliations)
	return args.Int(0), args.Error(1)
}

func (m *mockFetcher) FetchStarEdges(ctx context.Context, login string, affiliations []string) ([]domain.RepositoryEdge, error) {
	args := m.Called(ctx, login, affiliations)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RepositoryEdge), args.Error(1)
}

func (m *mockFetcher) FetchRepositories(ctx context.Context, login string, affiliations []string) ([]domain.Repository, error) {
	args := m.Called(ctx, login, affiliations)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Repository), args.Error(1)
}

func (m *mockFetcher) FetchCommitHistory(ctx context.Context, nameWithOwner, authorID string) (domain.CommitTally, error) {
	args := m.Called(ctx, nameWithOwner, authorID)
	return args.Get(0).(domain.CommitTally), args.Error(1)
}

func (m *mockFetcher) FetchRateLimit(ctx context.Context) (*domain.RateLimit, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateLimit), args.Error(1)
}

var testAffiliations = Affiliations{
	Repos: []string{"OWNER"},
	Loc:   []string{"OWNER", "COLLABORATOR", "ORGANIZATION_MEMBER"},
}

func newTestAggregator(fetcher *mockFetcher) (*Aggregator, *cache.Store, *metrics.Timings) {
	store := cache.New(afero.NewMemMapFs(), "cache")
	timings := &metrics.Timings{}
	return NewAggregator(fetcher, store, timings, testAffiliations, zerolog.Nop()), store, timings
}

func TestAggregator_Aggregate(t *testing.T) {
	user := &domain.User{Login: "any-user", ID: "me", CreatedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
	repos := []domain.Repository{
		{NameWithOwner: "any-user/alpha", TotalCommits: 30},
		{NameWithOwner: "any-user/beta", TotalCommits: 0},
	}
	edges := []domain.RepositoryEdge{domain.NewRepositoryEdge(10), domain.NewRepositoryEdge(25), domain.NewRepositoryEdge(7)}

	testCases := []struct {
		name        string
		setup       func(f *mockFetcher)
		expected    *domain.ProfileStats
		expectError bool
	}{
		{
			name: "happy path - successfully aggregates data from multiple sources",
			setup: func(f *mockFetcher) {
				f.On("FetchUser", mock.Anything, "any-user").Return(user, nil)
				f.On("FetchFollowers", mock.Anything, "any-user").Return(196, nil)
				f.On("FetchRepoCount", mock.Anything, "any-user", testAffiliations.Repos).Return(2, nil)
				f.On("FetchStarEdges", mock.Anything, "any-user", testAffiliations.Repos).Return(edges, nil)
				f.On("FetchRepositories", mock.Anything, "any-user", testAffiliations.Loc).Return(repos, nil)
				f.On("FetchCommitHistory", mock.Anything, "any-user/alpha", "me").Return(domain.CommitTally{Commits: 20, Additions: 1000, Deletions: 200}, nil)
				f.On("FetchCommitHistory", mock.Anything, "any-user/beta", "me").Return(domain.CommitTally{}, nil)
			},
			expected: &domain.ProfileStats{
				User:      *user,
				Commits:   20,
				Stars:     42,
				Repos:     2,
				Followers: 196,
				Loc:       domain.LocStats{Additions: 1000, Deletions: 200},
			},
		},
		{
			name: "error case - account lookup fails",
			setup: func(f *mockFetcher) {
				f.On("FetchUser", mock.Anything, "any-user").Return(nil, errors.New("github api error"))
			},
			expectError: true,
		},
		{
			name: "error case - followers fail",
			setup: func(f *mockFetcher) {
				f.On("FetchUser", mock.Anything, "any-user").Return(user, nil)
				f.On("FetchFollowers", mock.Anything, "any-user").Return(0, errors.New("github api error"))
				f.On("FetchRepoCount", mock.Anything, "any-user", testAffiliations.Repos).Return(2, nil).Maybe()
				f.On("FetchStarEdges", mock.Anything, "any-user", testAffiliations.Repos).Return(edges, nil).Maybe()
				f.On("FetchRepositories", mock.Anything, "any-user", testAffiliations.Loc).Return([]domain.Repository{}, nil).Maybe()
			},
			expectError: true,
		},
		{
			name: "empty case - no repositories",
			setup: func(f *mockFetcher) {
				f.On("FetchUser", mock.Anything, "any-user").Return(user, nil)
				f.On("FetchFollowers", mock.Anything, "any-user").Return(0, nil)
				f.On("FetchRepoCount", mock.Anything, "any-user", testAffiliations.Repos).Return(0, nil)
				f.On("FetchStarEdges", mock.Anything, "any-user", testAffiliations.Repos).Return([]domain.RepositoryEdge{}, nil)
				f.On("FetchRepositories", mock.Anything, "any-user", testAffiliations.Loc).Return([]domain.Repository{}, nil)
			},
			expected: &domain.ProfileStats{User: *user},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := new(mockFetcher)
			tc.setup(fetcher)
			aggregator, _, timings := newTestAggregator(fetcher)

			stats, err := aggregator.Aggregate(context.Background(), "any-user")

			if tc.expectError {
				assert.Error(t, err)
				assert.Nil(t, stats)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, stats)
				assert.Equal(t, 6, timings.Summary().Count)
			}
			fetcher.AssertExpectations(t)
		})
	}
}

func TestAggregator_RefreshLocUsesCache(t *testing.T) {
	user := domain.User{Login: "any-user", ID: "me"}
	fetcher := new(mockFetcher)
	aggregator, store, _ := newTestAggregator(fetcher)

	require.NoError(t, store.Save("any-user", []cache.Entry{
		{RepoHash: cache.HashRepo("any-user/alpha"), TotalCommits: 30, OwnerCommits: 20, Additions: 1000, Deletions: 200},
		{RepoHash: cache.HashRepo("any-user/beta"), TotalCommits: 5, OwnerCommits: 5, Additions: 50, Deletions: 5},
	}))

	fetcher.On("FetchRepositories", mock.Anything, "any-user", testAffiliations.Loc).Return([]domain.Repository{
		{NameWithOwner: "any-user/alpha", TotalCommits: 30},
		{NameWithOwner: "any-user/beta", TotalCommits: 8},
	}, nil)
	// Only beta changed.
	fetcher.On("FetchCommitHistory", mock.Anything, "any-user/beta", "me").Return(domain.CommitTally{Commits: 8, Additions: 80, Deletions: 8}, nil).Once()

	loc, err := aggregator.refreshLoc(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, domain.LocStats{Additions: 1080, Deletions: 208}, loc)
	assert.Equal(t, 872, loc.Net())
	fetcher.AssertExpectations(t)
	fetcher.AssertNotCalled(t, "FetchCommitHistory", mock.Anything, "any-user/alpha", "me")

	commits, err := aggregator.countCommits("any-user")
	require.NoError(t, err)
	assert.Equal(t, 28, commits)
}

func TestAggregator_RefreshLocSavesProgressOnFailure(t *testing.T) {
	user := domain.User{Login: "any-user", ID: "me"}
	fetcher := new(mockFetcher)
	aggregator, store, _ := newTestAggregator(fetcher)

	fetcher.On("FetchRepositories", mock.Anything, "any-user", testAffiliations.Loc).Return([]domain.Repository{
		{NameWithOwner: "any-user/alpha", TotalCommits: 3},
		{NameWithOwner: "any-user/beta", TotalCommits: 4},
	}, nil)
	fetcher.On("FetchCommitHistory", mock.Anything, "any-user/alpha", "me").Return(domain.CommitTally{Commits: 3, Additions: 30, Deletions: 3}, nil)
	fetcher.On("FetchCommitHistory", mock.Anything, "any-user/beta", "me").Return(domain.CommitTally{}, errors.New("anti-abuse limit"))

	_, err := aggregator.refreshLoc(context.Background(), user)
	require.Error(t, err)

	entries, err := store.Load("any-user")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 3, entries[0].TotalCommits)
	assert.Equal(t, 30, entries[0].Additions)
	assert.Equal(t, -1, entries[1].TotalCommits)
}
