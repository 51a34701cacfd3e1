// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/rs/zerolog"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/profile-stats/internal/domain"
	"github.com/naka-gawa/profile-stats/internal/metrics"
)

// DefaultEndpoint is the public GitHub GraphQL endpoint.
const DefaultEndpoint = "https://api.github.com/graphql"

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	FetchUser(ctx context.Context, login string) (*domain.User, error)
	FetchFollowers(ctx context.Context, login string) (int, error)
	FetchRepoCount(ctx context.Context, login string, affiliations []string) (int, error)
	FetchStarEdges(ctx context.Context, login string, affiliations []string) ([]domain.RepositoryEdge, error)
	FetchRepositories(ctx context.Context, login string, affiliations []string) ([]domain.Repository, error)
	FetchCommitHistory(ctx context.Context, nameWithOwner, authorID string) (domain.CommitTally, error)
	FetchRateLimit(ctx context.Context) (*domain.RateLimit, error)
}

// Options configures a GitHubGateway.
type Options struct {
	// Endpoint is the GraphQL URL, DefaultEndpoint when empty.
	Endpoint string
	// Token is a GitHub personal access token.
	Token string
	// Timeout bounds every HTTP request; zero means no timeout.
	Timeout time.Duration
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	executor      *Executor
	restClient    *github.Client
	graphqlClient *githubv4.Client
	counter       *metrics.QueryCounter
	logger        zerolog.Logger
}

// NewHTTPClient returns a client that authenticates every request with a bearer token
// and sleeps through GitHub's secondary rate limits. The waiter re-sends throttled
// requests, so it is only used for the githubv4 and REST clients.
func NewHTTPClient(token string, timeout time.Duration) (*http.Client, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		},
	}, nil
}

// NewExecutorClient returns a bearer-token client that sends each request exactly once.
func NewExecutorClient(token string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		},
	}
}

// restBaseURL maps a GraphQL endpoint to the REST root of the same server:
// https://api.github.com/graphql gives https://api.github.com/ and
// https://ghe.example.com/api/graphql gives https://ghe.example.com/api/v3/.
func restBaseURL(endpoint string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid GraphQL endpoint %q: %w", endpoint, err)
	}
	path := strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/graphql")
	if strings.HasSuffix(path, "/api") {
		path += "/v3"
	}
	u.Path = path + "/"
	u.RawQuery = ""
	return u, nil
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(opt Options, counter *metrics.QueryCounter, logger zerolog.Logger) (*GitHubGateway, error) {
	if opt.Endpoint == "" {
		opt.Endpoint = DefaultEndpoint
	}
	httpClient, err := NewHTTPClient(opt.Token, opt.Timeout)
	if err != nil {
		return nil, err
	}
	baseURL, err := restBaseURL(opt.Endpoint)
	if err != nil {
		return nil, err
	}
	restClient := github.NewClient(httpClient)
	restClient.BaseURL = baseURL
	return &GitHubGateway{
		executor:      NewExecutor(opt.Endpoint, NewExecutorClient(opt.Token, opt.Timeout), counter),
		restClient:    restClient,
		graphqlClient: githubv4.NewEnterpriseClient(opt.Endpoint, httpClient),
		counter:       counter,
		logger:        logger,
	}, nil
}

const userQuery = `
query($login: String!) {
    user(login: $login) {
        id
        createdAt
    }
}`

type userData struct {
	User *struct {
		ID        string     `json:"id"`
		CreatedAt *time.Time `json:"createdAt"`
	} `json:"user"`
}

// FetchUser returns the account's node id and creation time.
func (g *GitHubGateway) FetchUser(ctx context.Context, login string) (*domain.User, error) {
	g.logger.Debug().Str("login", login).Msg("Fetching account data")
	data, err := executeInto[userData](ctx, g.executor, "user_getter", userQuery, map[string]any{"login": login})
	if err != nil {
		return nil, err
	}
	if data.User == nil {
		return nil, fmt.Errorf("user_getter: user: %w", ErrMissingField)
	}
	if data.User.ID == "" {
		return nil, fmt.Errorf("user_getter: user.id: %w", ErrMissingField)
	}
	if data.User.CreatedAt == nil {
		return nil, fmt.Errorf("user_getter: user.createdAt: %w", ErrMissingField)
	}
	return &domain.User{Login: login, ID: data.User.ID, CreatedAt: *data.User.CreatedAt}, nil
}

const followersQuery = `
query($login: String!) {
    user(login: $login) {
        followers {
            totalCount
        }
    }
}`

type followersData struct {
	User *struct {
		Followers *struct {
			TotalCount int `json:"totalCount"`
		} `json:"followers"`
	} `json:"user"`
}

// FetchFollowers returns the follower count of login.
func (g *GitHubGateway) FetchFollowers(ctx context.Context, login string) (int, error) {
	g.logger.Debug().Str("login", login).Msg("Fetching follower count")
	data, err := executeInto[followersData](ctx, g.executor, "follower_getter", followersQuery, map[string]any{"login": login})
	if err != nil {
		return 0, err
	}
	if data.User == nil || data.User.Followers == nil {
		return 0, fmt.Errorf("follower_getter: user.followers: %w", ErrMissingField)
	}
	return data.User.Followers.TotalCount, nil
}

const reposStarsQuery = `
query($owner_affiliation: [RepositoryAffiliation], $login: String!, $cursor: String) {
    user(login: $login) {
        repositories(first: 100, after: $cursor, ownerAffiliations: $owner_affiliation) {
            totalCount
            edges {
                node {
                    ... on Repository {
                        nameWithOwner
                        stargazers {
                            totalCount
                        }
                    }
                }
            }
            pageInfo {
                endCursor
                hasNextPage
            }
        }
    }
}`

type repositoriesPage struct {
	TotalCount int                     `json:"totalCount"`
	Edges      []domain.RepositoryEdge `json:"edges"`
	PageInfo   struct {
		EndCursor   *string `json:"endCursor"`
		HasNextPage bool    `json:"hasNextPage"`
	} `json:"pageInfo"`
}

type reposStarsData struct {
	User *struct {
		Repositories *repositoriesPage `json:"repositories"`
	} `json:"user"`
}

func (g *GitHubGateway) fetchRepositoriesPage(ctx context.Context, login string, affiliations []string, cursor *string) (*repositoriesPage, error) {
	variables := map[string]any{
		"owner_affiliation": affiliations,
		"login":             login,
		"cursor":            cursor,
	}
	data, err := executeInto[reposStarsData](ctx, g.executor, "graph_repos_stars", reposStarsQuery, variables)
	if err != nil {
		return nil, err
	}
	if data.User == nil || data.User.Repositories == nil {
		return nil, fmt.Errorf("graph_repos_stars: user.repositories: %w", ErrMissingField)
	}
	return data.User.Repositories, nil
}

// FetchRepoCount returns how many repositories login has under the given affiliations.
func (g *GitHubGateway) FetchRepoCount(ctx context.Context, login string, affiliations []string) (int, error) {
	g.logger.Debug().Strs("affiliations", affiliations).Msg("Fetching repository count")
	page, err := g.fetchRepositoriesPage(ctx, login, affiliations, nil)
	if err != nil {
		return 0, err
	}
	return page.TotalCount, nil
}

// FetchStarEdges returns one edge per repository under the given affiliations,
// following pagination until the listing is exhausted.
func (g *GitHubGateway) FetchStarEdges(ctx context.Context, login string, affiliations []string) ([]domain.RepositoryEdge, error) {
	g.logger.Debug().Strs("affiliations", affiliations).Msg("Fetching star counts")
	edges := []domain.RepositoryEdge{}
	var cursor *string
	for {
		page, err := g.fetchRepositoriesPage(ctx, login, affiliations, cursor)
		if err != nil {
			return nil, err
		}
		edges = append(edges, page.Edges...)
		if !page.PageInfo.HasNextPage || page.PageInfo.EndCursor == nil {
			break
		}
		cursor = page.PageInfo.EndCursor
		g.logger.Debug().Msg("  Fetching next page of repositories for stars...")
	}
	return edges, nil
}

// repositoriesQuery lists repositories with the size of their default branch history.
type repositoriesQuery struct {
	User struct {
		Repositories struct {
			Edges []struct {
				Node struct {
					NameWithOwner    string
					DefaultBranchRef *struct {
						Target struct {
							Commit struct {
								History struct {
									TotalCount int
								}
							} `graphql:"... on Commit"`
						}
					}
				}
			}
			PageInfo struct {
				HasNextPage bool
				EndCursor   githubv4.String
			}
		} `graphql:"repositories(first: 60, after: $cursor, ownerAffiliations: $affiliations)"`
	} `graphql:"user(login: $login)"`
}

// FetchRepositories lists every repository under the given affiliations along with
// its default branch commit count. Empty repositories report zero commits.
func (g *GitHubGateway) FetchRepositories(ctx context.Context, login string, affiliations []string) ([]domain.Repository, error) {
	g.logger.Debug().Strs("affiliations", affiliations).Msg("Fetching repositories for LOC")
	aff := make([]githubv4.RepositoryAffiliation, 0, len(affiliations))
	for _, a := range affiliations {
		aff = append(aff, githubv4.RepositoryAffiliation(a))
	}
	variables := map[string]interface{}{
		"login":        githubv4.String(login),
		"affiliations": aff,
		"cursor":       (*githubv4.String)(nil),
	}

	var repos []domain.Repository
	for {
		var q repositoriesQuery
		g.counter.Inc("loc_query")
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return nil, fmt.Errorf("failed to execute GraphQL query for repositories: %w", err)
		}
		for _, edge := range q.User.Repositories.Edges {
			repo := domain.Repository{NameWithOwner: edge.Node.NameWithOwner}
			if ref := edge.Node.DefaultBranchRef; ref != nil {
				repo.TotalCommits = ref.Target.Commit.History.TotalCount
			}
			repos = append(repos, repo)
		}
		if !q.User.Repositories.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.User.Repositories.PageInfo.EndCursor)
		g.logger.Debug().Msg("  Fetching next page of repositories for LOC...")
	}
	return repos, nil
}

// commitHistoryQuery walks the default branch history of one repository.
type commitHistoryQuery struct {
	Repository struct {
		DefaultBranchRef *struct {
			Target struct {
				Commit struct {
					History struct {
						TotalCount int
						Edges      []struct {
							Node struct {
								Additions int
								Deletions int
								Author    struct {
									User *struct {
										ID githubv4.ID
									}
								}
							}
						}
						PageInfo struct {
							HasNextPage bool
							EndCursor   githubv4.String
						}
					} `graphql:"history(first: 100, after: $cursor)"`
				} `graphql:"... on Commit"`
			}
		}
	} `graphql:"repository(name: $name, owner: $owner)"`
}

// FetchCommitHistory counts the commits, additions and deletions authorID made on the
// default branch of nameWithOwner ("owner/name").
func (g *GitHubGateway) FetchCommitHistory(ctx context.Context, nameWithOwner, authorID string) (domain.CommitTally, error) {
	owner, name, ok := strings.Cut(nameWithOwner, "/")
	if !ok || owner == "" || name == "" {
		return domain.CommitTally{}, fmt.Errorf("invalid repository name %q", nameWithOwner)
	}
	g.logger.Debug().Str("repo", nameWithOwner).Msg("Walking commit history")

	variables := map[string]interface{}{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(name),
		"cursor": (*githubv4.String)(nil),
	}

	var tally domain.CommitTally
	for {
		var q commitHistoryQuery
		g.counter.Inc("recursive_loc")
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return domain.CommitTally{}, fmt.Errorf("failed to execute GraphQL query for commit history of %s: %w", nameWithOwner, err)
		}
		ref := q.Repository.DefaultBranchRef
		if ref == nil {
			// Empty repository.
			return tally, nil
		}
		history := ref.Target.Commit.History
		for _, edge := range history.Edges {
			user := edge.Node.Author.User
			if user == nil || fmt.Sprint(user.ID) != authorID {
				continue
			}
			tally.Commits++
			tally.Additions += edge.Node.Additions
			tally.Deletions += edge.Node.Deletions
		}
		if !history.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(history.PageInfo.EndCursor)
	}
	return tally, nil
}

// FetchRateLimit reports the remaining GraphQL budget of the token.
func (g *GitHubGateway) FetchRateLimit(ctx context.Context) (*domain.RateLimit, error) {
	limits, _, err := g.restClient.RateLimit.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rate limits with REST API: %w", err)
	}
	if limits == nil || limits.GraphQL == nil {
		return nil, fmt.Errorf("rate_limit: resources.graphql: %w", ErrMissingField)
	}
	return &domain.RateLimit{
		Limit:     limits.GraphQL.Limit,
		Remaining: limits.GraphQL.Remaining,
		ResetAt:   limits.GraphQL.Reset.Time,
	}, nil
}
