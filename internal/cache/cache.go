// Package cache persists per-repository lines-of-code tallies between runs.
//
// The cache is a plain text file with HeaderLines comment lines followed by one
// line per repository:
//
//	<sha256 of owner/name> <total commits> <owner commits> <additions> <deletions>
package cache

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// HeaderLines is the number of comment lines at the top of a cache file.
const HeaderLines = 6

// DataStartLine is the 1-indexed line number of the first entry.
const DataStartLine = HeaderLines + 1

// Entry is one repository's line in the cache.
type Entry struct {
	RepoHash     string
	TotalCommits int
	OwnerCommits int
	Additions    int
	Deletions    int
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %d %d %d %d", e.RepoHash, e.TotalCommits, e.OwnerCommits, e.Additions, e.Deletions)
}

// HashRepo returns the key stored for a repository.
func HashRepo(nameWithOwner string) string {
	sum := sha256.Sum256([]byte(nameWithOwner))
	return hex.EncodeToString(sum[:])
}

// Store reads and writes cache files below a directory.
type Store struct {
	fs  afero.Fs
	dir string
}

// New returns a Store rooted at dir on fs.
func New(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

// Path returns the cache file used for login.
func (s *Store) Path(login string) string {
	return filepath.Join(s.dir, HashRepo(login)+".txt")
}

// Load returns the entries cached for login. A missing file yields no entries.
// Lines that do not have five fields are kept as empty entries so that
// positions still line up with the repository list.
func (s *Store) Load(login string) ([]Entry, error) {
	f, err := s.fs.Open(s.Path(login))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		if lineNo < DataStartLine {
			continue
		}
		entries = append(entries, parseEntry(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	return entries, nil
}

func parseEntry(line string) Entry {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return Entry{}
	}
	nums := make([]int, 4)
	for i, f := range fields[1:] {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Entry{}
		}
		nums[i] = n
	}
	return Entry{RepoHash: fields[0], TotalCommits: nums[0], OwnerCommits: nums[1], Additions: nums[2], Deletions: nums[3]}
}

// Save overwrites the cache file of login with entries.
func (s *Store) Save(login string, entries []Entry) error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	var b strings.Builder
	for _, line := range header(login) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, e := range entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	if err := afero.WriteFile(s.fs, s.Path(login), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Open opens the cache file of login for reading.
func (s *Store) Open(login string) (afero.File, error) {
	f, err := s.fs.Open(s.Path(login))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return f, nil
}

func header(login string) []string {
	return []string{
		"# Lines of code cache for " + login + ".",
		"# One line per repository, in the order the API lists them:",
		"#   <repository hash> <total commits> <commits by owner> <lines added> <lines deleted>",
		"# A line is recomputed when the total commit count of its repository changes.",
		"# Delete this file to force a full rebuild.",
		"#",
	}
}
