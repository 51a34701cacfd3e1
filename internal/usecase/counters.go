package usecase

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/naka-gawa/profile-stats/internal/domain"
)

// StarsCounter sums the stargazer counts of edges.
func StarsCounter(edges []domain.RepositoryEdge) int {
	total := 0
	for _, edge := range edges {
		total += edge.Node.Stargazers.TotalCount
	}
	return total
}

// commitField is the 0-indexed token holding the owner's commit count.
const commitField = 2

// lineResult is the outcome of parsing one commit-log line.
type lineResult struct {
	value int
	ok    bool
}

// parseCommitLine extracts the commit count of a data line. Blank lines,
// lines with fewer than four tokens and non-integer fields are skipped.
func parseCommitLine(line string) lineResult {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return lineResult{}
	}
	n, err := strconv.Atoi(fields[commitField])
	if err != nil {
		return lineResult{}
	}
	return lineResult{value: n, ok: true}
}

// CommitCounter sums the commit column of a commit log read from r.
// startLine is the 1-indexed number of the first data line; everything before
// it is header. Malformed data lines are skipped.
func CommitCounter(r io.Reader, startLine int) (int, error) {
	total := 0
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		if lineNo < startLine {
			continue
		}
		if res := parseCommitLine(scanner.Text()); res.ok {
			total += res.value
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read commit log: %w", err)
	}
	return total, nil
}
