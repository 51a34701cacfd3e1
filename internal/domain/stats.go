// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// User identifies the account whose card is rendered.
// ID is the GraphQL node id used to attribute commits to the owner.
type User struct {
	Login     string
	ID        string
	CreatedAt time.Time
}

// RepositoryEdge is one repository of a paged listing, reduced to its star count.
type RepositoryEdge struct {
	Node struct {
		Stargazers struct {
			TotalCount int `json:"totalCount"`
		} `json:"stargazers"`
	} `json:"node"`
}

// NewRepositoryEdge builds an edge carrying the given star count.
func NewRepositoryEdge(stars int) RepositoryEdge {
	var e RepositoryEdge
	e.Node.Stargazers.TotalCount = stars
	return e
}

// Repository is a repository together with the size of its default branch history.
type Repository struct {
	NameWithOwner string
	TotalCommits  int
}

// CommitTally holds what a single author contributed to one repository.
type CommitTally struct {
	Commits   int
	Additions int
	Deletions int
}

// LocStats holds lines-of-code churn across all repositories.
type LocStats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// Net returns additions minus deletions.
func (l LocStats) Net() int {
	return l.Additions - l.Deletions
}

// ProfileStats is the set of numbers written onto a profile card.
// It is the core domain entity of this application.
type ProfileStats struct {
	User      User     `json:"-"`
	Commits   int      `json:"commits"`
	Stars     int      `json:"stars"`
	Repos     int      `json:"repos"`
	Followers int      `json:"followers"`
	Loc       LocStats `json:"loc"`
}

// RateLimit is the remaining GraphQL budget reported by the API.
type RateLimit struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}
